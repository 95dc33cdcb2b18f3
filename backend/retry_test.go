package backend

import (
	"context"
	"errors"
	"testing"
)

// Mock client that fails each op a configurable number of times before
// succeeding.
type mockClient struct {
	failures  int
	failWith  error
	selects   int
	inserts   int
	upserts   int
	deletes   int
	lastQuery Query
	lastWrite Write
}

func (m *mockClient) attempt() error {
	if m.failures > 0 {
		m.failures--
		return m.failWith
	}
	return nil
}

func (m *mockClient) Select(ctx context.Context, q Query) ([]Row, error) {
	m.selects++
	m.lastQuery = q
	if err := m.attempt(); err != nil {
		return nil, err
	}
	return []Row{{"id": "1"}}, nil
}

func (m *mockClient) Insert(ctx context.Context, w Write) ([]Row, error) {
	m.inserts++
	m.lastWrite = w
	if err := m.attempt(); err != nil {
		return nil, err
	}
	return w.Rows, nil
}

func (m *mockClient) Upsert(ctx context.Context, w Write) ([]Row, error) {
	m.upserts++
	m.lastWrite = w
	if err := m.attempt(); err != nil {
		return nil, err
	}
	return w.Rows, nil
}

func (m *mockClient) Delete(ctx context.Context, table string, filters ...Filter) error {
	m.deletes++
	return m.attempt()
}

type mockRefresher struct {
	calls int
	err   error
}

func (m *mockRefresher) Refresh(ctx context.Context) (string, error) {
	m.calls++
	return "fresh-token", m.err
}

func expiredErr() error {
	return &Error{Status: 401, Code: "PGRST301", Message: "JWT expired"}
}

func TestAuthRetrySelectRetriesOnceAfterRefresh(t *testing.T) {
	inner := &mockClient{failures: 1, failWith: expiredErr()}
	refresher := &mockRefresher{}
	client := WithAuthRetry(inner, refresher)

	rows, err := client.Select(context.Background(), Query{Table: "catalog"})
	if err != nil {
		t.Fatalf("expected retried select to succeed, got %v", err)
	}
	if len(rows) != 1 {
		t.Errorf("expected 1 row, got %d", len(rows))
	}
	if inner.selects != 2 {
		t.Errorf("expected 2 select attempts, got %d", inner.selects)
	}
	if refresher.calls != 1 {
		t.Errorf("expected 1 refresh, got %d", refresher.calls)
	}
}

func TestAuthRetryNeverRetriesTwice(t *testing.T) {
	inner := &mockClient{failures: 5, failWith: expiredErr()}
	refresher := &mockRefresher{}
	client := WithAuthRetry(inner, refresher)

	_, err := client.Select(context.Background(), Query{Table: "catalog"})
	if !IsAuthExpired(err) {
		t.Fatalf("expected auth-expiry error to surface, got %v", err)
	}
	if inner.selects != 2 {
		t.Errorf("expected exactly 2 attempts, got %d", inner.selects)
	}
	if refresher.calls != 1 {
		t.Errorf("expected exactly 1 refresh, got %d", refresher.calls)
	}
}

func TestAuthRetryPassesThroughOtherErrors(t *testing.T) {
	innerErr := errors.New("connection refused")
	inner := &mockClient{failures: 1, failWith: innerErr}
	refresher := &mockRefresher{}
	client := WithAuthRetry(inner, refresher)

	_, err := client.Select(context.Background(), Query{Table: "catalog"})
	if !errors.Is(err, innerErr) {
		t.Fatalf("expected inner error to pass through, got %v", err)
	}
	if inner.selects != 1 {
		t.Errorf("expected 1 attempt, got %d", inner.selects)
	}
	if refresher.calls != 0 {
		t.Errorf("expected no refresh, got %d", refresher.calls)
	}
}

func TestAuthRetryStillRetriesWhenRefreshFails(t *testing.T) {
	inner := &mockClient{failures: 1, failWith: expiredErr()}
	refresher := &mockRefresher{err: errors.New("provider unreachable")}
	client := WithAuthRetry(inner, refresher)

	_, err := client.Upsert(context.Background(), Write{Table: "canvases"})
	if err != nil {
		t.Fatalf("expected retry to succeed despite refresh failure, got %v", err)
	}
	if inner.upserts != 2 {
		t.Errorf("expected 2 upsert attempts, got %d", inner.upserts)
	}
}

func TestAuthRetryDelete(t *testing.T) {
	inner := &mockClient{failures: 1, failWith: expiredErr()}
	refresher := &mockRefresher{}
	client := WithAuthRetry(inner, refresher)

	if err := client.Delete(context.Background(), "catalog", Eq("id", "7")); err != nil {
		t.Fatalf("expected retried delete to succeed, got %v", err)
	}
	if inner.deletes != 2 {
		t.Errorf("expected 2 delete attempts, got %d", inner.deletes)
	}
}

func TestIsAuthExpired(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"expired code", &Error{Code: "PGRST301", Message: "JWT expired"}, true},
		{"invalid code", &Error{Code: "PGRST303", Message: "anything"}, true},
		{"jwt message only", &Error{Code: "42501", Message: "invalid JWT claim"}, true},
		{"unrelated backend error", &Error{Code: "42501", Message: "permission denied"}, false},
		{"plain jwt error", errors.New("JWT verification failed"), true},
		{"plain other error", errors.New("timeout"), false},
	}
	for _, tc := range cases {
		if got := IsAuthExpired(tc.err); got != tc.want {
			t.Errorf("%s: IsAuthExpired = %v, want %v", tc.name, got, tc.want)
		}
	}
}
