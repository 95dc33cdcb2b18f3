package backend

import (
	"context"

	"github.com/sirupsen/logrus"
)

// Refresher obtains a fresh backend-scoped token. A refresh is expected to
// push the new token into the client's outgoing default as a side effect, so
// the re-issued query picks it up without further plumbing.
type Refresher interface {
	Refresh(ctx context.Context) (string, error)
}

// AuthRetryClient decorates a Client so that a query failing with an
// authentication-expiry error triggers one token refresh and one re-issue of
// the same logical query. Any other outcome passes through unchanged, and a
// second failure after the refresh is surfaced as-is: never more than one
// retry per call.
type AuthRetryClient struct {
	inner     Client
	refresher Refresher
}

// WithAuthRetry wraps inner with the refresh-and-retry decorator.
func WithAuthRetry(inner Client, refresher Refresher) *AuthRetryClient {
	return &AuthRetryClient{inner: inner, refresher: refresher}
}

func (c *AuthRetryClient) Select(ctx context.Context, q Query) ([]Row, error) {
	rows, err := c.inner.Select(ctx, q)
	if !c.shouldRetry(ctx, q.Table, err) {
		return rows, err
	}
	return c.inner.Select(ctx, q)
}

func (c *AuthRetryClient) Insert(ctx context.Context, w Write) ([]Row, error) {
	rows, err := c.inner.Insert(ctx, w)
	if !c.shouldRetry(ctx, w.Table, err) {
		return rows, err
	}
	return c.inner.Insert(ctx, w)
}

func (c *AuthRetryClient) Upsert(ctx context.Context, w Write) ([]Row, error) {
	rows, err := c.inner.Upsert(ctx, w)
	if !c.shouldRetry(ctx, w.Table, err) {
		return rows, err
	}
	return c.inner.Upsert(ctx, w)
}

func (c *AuthRetryClient) Delete(ctx context.Context, table string, filters ...Filter) error {
	err := c.inner.Delete(ctx, table, filters...)
	if !c.shouldRetry(ctx, table, err) {
		return err
	}
	return c.inner.Delete(ctx, table, filters...)
}

// shouldRetry refreshes the token when err is the auth-expiry class and
// reports whether the query should be re-issued. A failed refresh still
// allows the single retry; the backend then reports the real state.
func (c *AuthRetryClient) shouldRetry(ctx context.Context, table string, err error) bool {
	if !IsAuthExpired(err) {
		return false
	}
	log := logrus.WithField("table", table)
	log.Info("token expired, refreshing and retrying query")
	if _, refreshErr := c.refresher.Refresh(ctx); refreshErr != nil {
		log.WithError(refreshErr).Warn("token refresh failed before retry")
	}
	return true
}
