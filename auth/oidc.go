package auth

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
)

// oidcProvider mints backend-scoped tokens from an OIDC issuer using a
// long-lived refresh token. The signing template has no OIDC equivalent, so
// it maps to additional scopes via OIDC_TEMPLATE_SCOPES.
type oidcProvider struct {
	source   oauth2.TokenSource
	verifier *oidc.IDTokenVerifier
}

func newOIDCProvider(ctx context.Context) (*oidcProvider, error) {
	issuerURL := os.Getenv("OIDC_ISSUER_URL")
	clientID := os.Getenv("OIDC_CLIENT_ID")
	clientSecret := os.Getenv("OIDC_CLIENT_SECRET")
	refreshToken := os.Getenv("OIDC_REFRESH_TOKEN")

	if refreshToken == "" {
		return nil, fmt.Errorf("OIDC_REFRESH_TOKEN is required for the OIDC provider")
	}

	provider, err := oidc.NewProvider(ctx, issuerURL)
	if err != nil {
		return nil, fmt.Errorf("create OIDC provider: %w", err)
	}

	scopes := []string{oidc.ScopeOpenID, "profile", "email"}
	if extra := os.Getenv("OIDC_TEMPLATE_SCOPES"); extra != "" {
		scopes = append(scopes, strings.Fields(extra)...)
	}

	conf := &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Endpoint:     provider.Endpoint(),
		Scopes:       scopes,
	}

	logrus.WithField("issuer", issuerURL).Info("OIDC provider initialized")

	return &oidcProvider{
		source:   conf.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken}),
		verifier: provider.Verifier(&oidc.Config{ClientID: clientID}),
	}, nil
}

func (p *oidcProvider) Token(ctx context.Context, template string) (string, error) {
	tok, err := p.source.Token()
	if err != nil {
		return "", fmt.Errorf("obtain OIDC token: %w", err)
	}
	if raw, ok := tok.Extra("id_token").(string); ok && raw != "" {
		if _, err := p.verifier.Verify(ctx, raw); err != nil {
			return "", fmt.Errorf("verify ID token: %w", err)
		}
	}
	return tok.AccessToken, nil
}

func (p *oidcProvider) SignOut(context.Context) error {
	// OIDC has no session to end here; the refresh token is revoked at the
	// issuer, outside this process.
	return nil
}
