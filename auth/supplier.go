package auth

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
)

// DefaultRefreshInterval is the fixed refresh cadence. It is not adaptive to
// the token's actual TTL; it just has to stay under the provider's expiry
// window.
const DefaultRefreshInterval = 45 * time.Second

// TokenSink receives every freshly minted token. The backend client's
// outgoing default and the realtime channel authenticator are sinks, so open
// subscriptions keep working across refreshes without re-authenticating.
type TokenSink interface {
	SetAuth(token string)
}

// Supplier holds the single in-memory token slot and the recurring refresh
// timer. Start when the user signs in, Stop on sign-out. The slot is an
// atomic single-value replacement: the refresh loop is the only writer and
// readers take value copies, so no lock is needed on the read path.
type Supplier struct {
	provider SessionProvider
	template string
	interval time.Duration
	cache    TokenCache
	cacheKey string
	sinks    []TokenSink

	token atomic.Value // string

	mu      sync.Mutex
	stop    chan struct{}
	running bool
}

// NewSupplier builds a supplier minting tokens for the named signing
// template. cache may be nil.
func NewSupplier(provider SessionProvider, template string, cache TokenCache) *Supplier {
	s := &Supplier{
		provider: provider,
		template: template,
		interval: DefaultRefreshInterval,
		cache:    cache,
		cacheKey: "session-token." + template,
	}
	s.token.Store("")
	return s
}

// SetInterval overrides the refresh cadence. Intended for tests.
func (s *Supplier) SetInterval(d time.Duration) { s.interval = d }

// AddSink registers a sink for future refreshes. Register sinks before Start.
func (s *Supplier) AddSink(sink TokenSink) { s.sinks = append(s.sinks, sink) }

// Current returns the active token, or "" when none is held.
func (s *Supplier) Current() string {
	return s.token.Load().(string)
}

// GetToken returns a usable token or empty. It fails soft: a provider error
// is logged and reported as no-token, never as an error to the caller. With
// an empty slot the cache is consulted before the provider, so a restarted
// process resumes on a still-valid token without minting a new one.
func (s *Supplier) GetToken(ctx context.Context) string {
	if tok := s.Current(); tok != "" {
		return tok
	}
	if tok := s.resume(ctx); tok != "" {
		return tok
	}
	tok, err := s.Refresh(ctx)
	if err != nil {
		logrus.WithError(err).Error("Error refreshing token")
		return ""
	}
	return tok
}

// cacheResumeSlack is the minimum remaining validity for a cached token to
// be worth resuming; anything closer to expiry gets minted fresh.
const cacheResumeSlack = 10 * time.Second

// resume loads the cached token into the slot and sinks if it is still
// comfortably inside its validity window.
func (s *Supplier) resume(ctx context.Context) string {
	if s.cache == nil {
		return ""
	}
	tok := s.cache.Get(ctx, s.cacheKey)
	if tok == "" {
		return ""
	}
	claims, err := InspectToken(tok)
	if err != nil || time.Until(claims.ExpiresAt) < cacheResumeSlack {
		return ""
	}
	s.token.Store(tok)
	for _, sink := range s.sinks {
		sink.SetAuth(tok)
	}
	logrus.Debug("resumed cached session token")
	return tok
}

// Refresh mints a fresh token, replaces the slot, and pushes the token into
// every sink and the cache. Implements backend.Refresher.
func (s *Supplier) Refresh(ctx context.Context) (string, error) {
	tok, err := s.provider.Token(ctx, s.template)
	if err != nil {
		return "", err
	}
	s.token.Store(tok)
	for _, sink := range s.sinks {
		sink.SetAuth(tok)
	}
	if s.cache != nil {
		s.cache.Save(ctx, s.cacheKey, tok)
	}
	return tok, nil
}

// Start begins the refresh loop: one immediate refresh, then one per
// interval. Starting an already-running supplier is a no-op.
func (s *Supplier) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.running = true
	s.stop = make(chan struct{})

	if _, err := s.Refresh(ctx); err != nil {
		logrus.WithError(err).Error("Error refreshing token")
	}

	go s.loop(s.stop)
	logrus.WithField("interval", s.interval).Info("token refresh started")
}

func (s *Supplier) loop(stop <-chan struct{}) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			logrus.Debug("refreshing backend token")
			if _, err := s.Refresh(context.Background()); err != nil {
				logrus.WithError(err).Error("Error refreshing token")
			}
		case <-stop:
			return
		}
	}
}

// Stop cancels the refresh timer and discards the held token. Sinks are reset
// to the empty token so later requests fall back to unauthenticated defaults.
func (s *Supplier) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	s.running = false
	close(s.stop)
	s.token.Store("")
	for _, sink := range s.sinks {
		sink.SetAuth("")
	}
	logrus.Info("token refresh stopped")
}

// SignOut stops the refresh loop and ends the provider session.
func (s *Supplier) SignOut(ctx context.Context) error {
	s.Stop()
	return s.provider.SignOut(ctx)
}
