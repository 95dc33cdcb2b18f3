package auth

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

// Mock provider minting a distinct token per call.
type mockProvider struct {
	calls    int
	err      error
	signOuts int
}

func (m *mockProvider) Token(ctx context.Context, template string) (string, error) {
	m.calls++
	if m.err != nil {
		return "", m.err
	}
	return fmt.Sprintf("token-%s-%d", template, m.calls), nil
}

func (m *mockProvider) SignOut(ctx context.Context) error {
	m.signOuts++
	return nil
}

type mockSink struct {
	tokens []string
}

func (m *mockSink) SetAuth(token string) { m.tokens = append(m.tokens, token) }

func TestSupplierRefreshPushesSinks(t *testing.T) {
	provider := &mockProvider{}
	sink := &mockSink{}
	s := NewSupplier(provider, "supabase", nil)
	s.AddSink(sink)

	tok, err := s.Refresh(context.Background())
	if err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	if tok != "token-supabase-1" {
		t.Errorf("unexpected token %q", tok)
	}
	if s.Current() != tok {
		t.Errorf("Current() = %q, want %q", s.Current(), tok)
	}
	if len(sink.tokens) != 1 || sink.tokens[0] != tok {
		t.Errorf("sink not pushed: %v", sink.tokens)
	}
}

func TestSupplierRefreshMintsDistinctTokens(t *testing.T) {
	provider := &mockProvider{}
	s := NewSupplier(provider, "supabase", nil)

	first, _ := s.Refresh(context.Background())
	second, _ := s.Refresh(context.Background())
	if first == second {
		t.Errorf("expected distinct tokens across refreshes, got %q twice", first)
	}
	if s.Current() != second {
		t.Errorf("slot holds %q, want latest %q", s.Current(), second)
	}
}

func TestSupplierGetTokenFailsSoft(t *testing.T) {
	provider := &mockProvider{err: errors.New("provider down")}
	s := NewSupplier(provider, "supabase", nil)

	if tok := s.GetToken(context.Background()); tok != "" {
		t.Errorf("expected empty token on provider failure, got %q", tok)
	}
}

func TestSupplierStartRefreshesOnInterval(t *testing.T) {
	provider := &mockProvider{}
	s := NewSupplier(provider, "supabase", nil)
	s.SetInterval(10 * time.Millisecond)

	s.Start(context.Background())
	defer s.Stop()

	deadline := time.After(time.Second)
	for provider.calls < 3 {
		select {
		case <-deadline:
			t.Fatalf("expected at least 3 refreshes, got %d", provider.calls)
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestSupplierStopClearsSlotAndSinks(t *testing.T) {
	provider := &mockProvider{}
	sink := &mockSink{}
	s := NewSupplier(provider, "supabase", nil)
	s.AddSink(sink)

	s.Start(context.Background())
	s.Stop()

	if s.Current() != "" {
		t.Errorf("expected empty slot after Stop, got %q", s.Current())
	}
	if len(sink.tokens) == 0 || sink.tokens[len(sink.tokens)-1] != "" {
		t.Errorf("expected sink reset to empty token, got %v", sink.tokens)
	}
}

func TestSupplierSignOutEndsProviderSession(t *testing.T) {
	provider := &mockProvider{}
	s := NewSupplier(provider, "supabase", nil)
	s.Start(context.Background())

	if err := s.SignOut(context.Background()); err != nil {
		t.Fatalf("SignOut failed: %v", err)
	}
	if provider.signOuts != 1 {
		t.Errorf("expected 1 provider sign-out, got %d", provider.signOuts)
	}
	if s.Current() != "" {
		t.Errorf("expected empty slot after sign-out")
	}
}

type mapCache struct {
	saved map[string]string
}

func (c *mapCache) Get(ctx context.Context, key string) string { return c.saved[key] }
func (c *mapCache) Save(ctx context.Context, key, token string) {
	if c.saved == nil {
		c.saved = map[string]string{}
	}
	c.saved[key] = token
}

func TestSupplierRefreshWritesCache(t *testing.T) {
	provider := &mockProvider{}
	cache := &mapCache{}
	s := NewSupplier(provider, "supabase", cache)

	tok, err := s.Refresh(context.Background())
	if err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	if cache.saved["session-token.supabase"] != tok {
		t.Errorf("cache not written: %v", cache.saved)
	}
}

func TestGetTokenResumesFromCache(t *testing.T) {
	provider := &mockProvider{err: errors.New("provider down")}
	cached := mintToken(t, "user-1", time.Now().Add(time.Hour))
	cache := &mapCache{saved: map[string]string{"session-token.supabase": cached}}
	sink := &mockSink{}
	s := NewSupplier(provider, "supabase", cache)
	s.AddSink(sink)

	tok := s.GetToken(context.Background())
	if tok != cached {
		t.Fatalf("expected cached token back, got %q", tok)
	}
	if s.Current() != cached {
		t.Errorf("slot not filled from cache")
	}
	if len(sink.tokens) != 1 || sink.tokens[0] != cached {
		t.Errorf("sink not pushed on resume: %v", sink.tokens)
	}
	if provider.calls != 0 {
		t.Errorf("provider consulted despite valid cached token, %d calls", provider.calls)
	}
}

func TestGetTokenIgnoresNearlyExpiredCachedToken(t *testing.T) {
	provider := &mockProvider{err: errors.New("provider down")}
	cached := mintToken(t, "user-1", time.Now().Add(2*time.Second))
	cache := &mapCache{saved: map[string]string{"session-token.supabase": cached}}
	s := NewSupplier(provider, "supabase", cache)

	if tok := s.GetToken(context.Background()); tok != "" {
		t.Errorf("expected fresh mint attempt for a nearly expired cache entry, got %q", tok)
	}
	if provider.calls != 1 {
		t.Errorf("expected provider fallback, %d calls", provider.calls)
	}
}

func TestGetTokenIgnoresUndecodableCachedToken(t *testing.T) {
	provider := &mockProvider{}
	cache := &mapCache{saved: map[string]string{"session-token.supabase": "garbage"}}
	s := NewSupplier(provider, "supabase", cache)

	tok := s.GetToken(context.Background())
	if tok == "" || tok == "garbage" {
		t.Fatalf("expected fresh provider token, got %q", tok)
	}
}
