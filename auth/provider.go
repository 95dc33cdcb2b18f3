// Package auth wraps the external identity provider's session and keeps the
// rest of the process supplied with short-lived backend-scoped tokens.
package auth

import (
	"context"
	"errors"
	"os"

	"github.com/sirupsen/logrus"
)

// SessionProvider is the identity provider's session surface as consumed
// here: mint a backend-scoped token from a named signing template, and end
// the session.
type SessionProvider interface {
	// Token returns a fresh token signed for the named template, or an error
	// if the provider cannot issue one.
	Token(ctx context.Context, template string) (string, error)

	// SignOut ends the provider session.
	SignOut(ctx context.Context) error
}

// ErrNotConfigured is returned by the stub provider installed when no
// identity provider credentials are present.
var ErrNotConfigured = errors.New("auth: no session provider configured")

// InitProvider selects a session provider from the environment. A hosted
// session API takes precedence; an OIDC issuer is the fallback. With neither
// configured a stub is returned so the process still starts, with every token
// request failing soft.
func InitProvider() SessionProvider {
	sessionConfigured := os.Getenv("SESSION_API_URL") != "" && os.Getenv("SESSION_ID") != ""
	oidcConfigured := os.Getenv("OIDC_ISSUER_URL") != "" && os.Getenv("OIDC_CLIENT_ID") != ""

	switch {
	case sessionConfigured:
		logrus.Info("Initializing hosted session provider.")
		return newSessionAPIProvider(
			os.Getenv("SESSION_API_URL"),
			os.Getenv("SESSION_ID"),
			os.Getenv("SESSION_CLIENT_TOKEN"),
		)
	case oidcConfigured:
		logrus.Info("Initializing OIDC session provider.")
		p, err := newOIDCProvider(context.Background())
		if err != nil {
			logrus.WithError(err).Error("Failed to initialize OIDC provider")
			return stubProvider{}
		}
		return p
	default:
		logrus.Warn("No session provider configured. Token requests will fail.")
		return stubProvider{}
	}
}

type stubProvider struct{}

func (stubProvider) Token(context.Context, string) (string, error) { return "", ErrNotConfigured }
func (stubProvider) SignOut(context.Context) error                 { return nil }
