package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// sessionAPIProvider mints tokens through the identity provider's hosted
// session API: POST /v1/sessions/{id}/tokens/{template} returns a short-lived
// JWT signed for the named template.
type sessionAPIProvider struct {
	baseURL     string
	sessionID   string
	clientToken string
	httpClient  *http.Client
}

func newSessionAPIProvider(baseURL, sessionID, clientToken string) *sessionAPIProvider {
	return &sessionAPIProvider{
		baseURL:     strings.TrimRight(baseURL, "/"),
		sessionID:   sessionID,
		clientToken: clientToken,
		httpClient:  &http.Client{Timeout: 10 * time.Second},
	}
}

func (p *sessionAPIProvider) Token(ctx context.Context, template string) (string, error) {
	endpoint := fmt.Sprintf("%s/v1/sessions/%s/tokens/%s", p.baseURL, p.sessionID, template)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, nil)
	if err != nil {
		return "", err
	}
	if p.clientToken != "" {
		req.Header.Set("Authorization", "Bearer "+p.clientToken)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("session token request failed: %s", resp.Status)
	}

	var payload struct {
		JWT string `json:"jwt"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("decode session token response: %w", err)
	}
	if payload.JWT == "" {
		return "", fmt.Errorf("session token response carried no token")
	}
	return payload.JWT, nil
}

func (p *sessionAPIProvider) SignOut(ctx context.Context) error {
	endpoint := fmt.Sprintf("%s/v1/sessions/%s/end", p.baseURL, p.sessionID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, nil)
	if err != nil {
		return err
	}
	if p.clientToken != "" {
		req.Header.Set("Authorization", "Bearer "+p.clientToken)
	}
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return fmt.Errorf("session end failed: %s", resp.Status)
	}
	return nil
}
