package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// RESTClient talks to the hosted table API over HTTP. It keeps a single
// outgoing-token slot: SetAuth replaces the bearer token used by every
// subsequent request, including ones already being built by other callers.
// The slot is replaced whole under the mutex, so no request observes a
// half-updated token.
type RESTClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client

	mu    sync.RWMutex
	token string
}

// NewRESTClient builds a client for the backend at baseURL. apiKey is the
// publishable key sent with every request; it doubles as the bearer token
// until SetAuth installs a user-scoped one.
func NewRESTClient(baseURL, apiKey string) *RESTClient {
	return &RESTClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

// SetAuth installs token as the outgoing bearer default. An empty token falls
// back to the publishable key.
func (c *RESTClient) SetAuth(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

func (c *RESTClient) bearer() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.token != "" {
		return c.token
	}
	return c.apiKey
}

func (c *RESTClient) Select(ctx context.Context, q Query) ([]Row, error) {
	params := url.Values{}
	if q.Columns != "" {
		params.Set("select", q.Columns)
	}
	applyFilters(params, q.Filters)
	if q.OrderBy != "" {
		dir := "asc"
		if q.Descending {
			dir = "desc"
		}
		params.Set("order", q.OrderBy+"."+dir)
	}
	if q.Limit > 0 {
		params.Set("limit", strconv.Itoa(q.Limit))
	}
	return c.do(ctx, http.MethodGet, q.Table, params, nil, "")
}

func (c *RESTClient) Insert(ctx context.Context, w Write) ([]Row, error) {
	params := url.Values{}
	prefer := ""
	if w.Returning != "" {
		params.Set("select", w.Returning)
		prefer = "return=representation"
	}
	return c.do(ctx, http.MethodPost, w.Table, params, w.Rows, prefer)
}

func (c *RESTClient) Upsert(ctx context.Context, w Write) ([]Row, error) {
	params := url.Values{}
	if w.OnConflict != "" {
		params.Set("on_conflict", w.OnConflict)
	}
	prefer := "resolution=merge-duplicates"
	if w.Returning != "" {
		params.Set("select", w.Returning)
		prefer += ",return=representation"
	}
	return c.do(ctx, http.MethodPost, w.Table, params, w.Rows, prefer)
}

func (c *RESTClient) Delete(ctx context.Context, table string, filters ...Filter) error {
	params := url.Values{}
	applyFilters(params, filters)
	_, err := c.do(ctx, http.MethodDelete, table, params, nil, "")
	return err
}

func applyFilters(params url.Values, filters []Filter) {
	for _, f := range filters {
		params.Set(f.Column, "eq."+f.Value)
	}
}

func (c *RESTClient) do(ctx context.Context, method, table string, params url.Values, body any, prefer string) ([]Row, error) {
	endpoint := c.baseURL + "/rest/v1/" + table
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("Authorization", "Bearer "+c.bearer())
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if prefer != "" {
		req.Header.Set("Prefer", prefer)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		apiErr := &Error{Status: resp.StatusCode}
		if err := json.NewDecoder(resp.Body).Decode(apiErr); err != nil || apiErr.Message == "" {
			apiErr.Message = resp.Status
		}
		logrus.WithFields(logrus.Fields{
			"table":  table,
			"method": method,
			"status": resp.StatusCode,
			"code":   apiErr.Code,
		}).Debug("table request failed")
		return nil, apiErr
	}

	if resp.StatusCode == http.StatusNoContent {
		return nil, nil
	}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, nil
	}
	var rows []Row
	if err := json.Unmarshal(raw, &rows); err != nil {
		// Single-object responses come back without the array wrapper.
		var row Row
		if err2 := json.Unmarshal(raw, &row); err2 != nil {
			return nil, fmt.Errorf("decode response: %w", err)
		}
		rows = []Row{row}
	}
	return rows, nil
}
