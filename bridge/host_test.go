package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"social-canvas/backend"
	"social-canvas/core"
)

type mockConn struct {
	mu      sync.Mutex
	sent    [][]byte
	sendErr error
}

func (c *mockConn) Send(payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sendErr != nil {
		return c.sendErr
	}
	c.sent = append(c.sent, payload)
	return nil
}

func (c *mockConn) frames(t *testing.T) []map[string]any {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]map[string]any, 0, len(c.sent))
	for _, raw := range c.sent {
		var frame map[string]any
		if err := json.Unmarshal(raw, &frame); err != nil {
			t.Fatalf("sent frame is not JSON: %v", err)
		}
		out = append(out, frame)
	}
	return out
}

type mockPersister struct {
	mu      sync.Mutex
	saved   []core.Snapshot
	saveErr error
	loadDoc *core.CanvasDocument
	loadErr error
}

func (p *mockPersister) Save(ctx context.Context, userID, canvasName string, snapshot core.Snapshot) (*core.CanvasDocument, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.saveErr != nil {
		return nil, p.saveErr
	}
	p.saved = append(p.saved, snapshot)
	return &core.CanvasDocument{
		UserID:     userID,
		CanvasName: canvasName,
		Data:       snapshot,
		Version:    int64(len(p.saved)),
	}, nil
}

func (p *mockPersister) Load(ctx context.Context, userID, canvasName string) (*core.CanvasDocument, error) {
	return p.loadDoc, p.loadErr
}

func (p *mockPersister) saveCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.saved)
}

type silentNotifier struct {
	mu     sync.Mutex
	titles []string
}

func (n *silentNotifier) Alert(title, message string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.titles = append(n.titles, title)
}

func newTestHost(conn *mockConn, store *mockPersister, notify *silentNotifier) *Host {
	return NewHost(conn, store, notify, "user-1", "default")
}

func TestSendQueuesUntilReadyThenFlushesInOrder(t *testing.T) {
	conn := &mockConn{}
	host := newTestHost(conn, &mockPersister{}, &silentNotifier{})
	host.SetAutosaveInterval(time.Hour)
	host.Start(context.Background())

	host.Send(SetTool{Tool: "draw"})
	host.Send(AddText{Text: "first"})
	host.Send(AddText{Text: "second"})
	if len(conn.frames(t)) != 0 {
		t.Fatalf("expected no delivery before ready, got %d frames", len(conn.frames(t)))
	}

	host.HandleMessage(context.Background(), []byte(`{"type":"EDITOR_READY"}`))

	frames := conn.frames(t)
	if len(frames) != 3 {
		t.Fatalf("expected 3 flushed frames, got %d", len(frames))
	}
	if frames[0]["type"] != "SET_TOOL" {
		t.Errorf("frame 0 = %v", frames[0])
	}
	if frames[1]["text"] != "first" || frames[2]["text"] != "second" {
		t.Errorf("queue flushed out of order: %v", frames)
	}

	// Later sends deliver directly, exactly once.
	host.Send(ZoomToFit{})
	frames = conn.frames(t)
	if len(frames) != 4 || frames[3]["type"] != "ZOOM_TO_FIT" {
		t.Errorf("expected direct delivery after ready, got %v", frames)
	}
}

func TestReadyPushesStoredCanvas(t *testing.T) {
	conn := &mockConn{}
	store := &mockPersister{loadDoc: &core.CanvasDocument{
		UserID:     "user-1",
		CanvasName: "default",
		Data:       core.Snapshot{"store": map[string]any{}},
		Version:    3,
	}}
	host := newTestHost(conn, store, &silentNotifier{})
	host.SetAutosaveInterval(time.Hour)
	host.Start(context.Background())
	host.HandleMessage(context.Background(), []byte(`{"type":"EDITOR_READY"}`))

	frames := conn.frames(t)
	if len(frames) != 1 || frames[0]["type"] != "LOAD_CANVAS" {
		t.Fatalf("expected LOAD_CANVAS push, got %v", frames)
	}
	if frames[0]["data"] == nil {
		t.Error("LOAD_CANVAS carried no data")
	}
}

func TestStartToleratesMissingAndFailedLoad(t *testing.T) {
	host := newTestHost(&mockConn{}, &mockPersister{}, &silentNotifier{})
	host.Start(context.Background())
	if host.State() != StateLoadingLibrary {
		t.Errorf("state = %v", host.State())
	}

	host = newTestHost(&mockConn{}, &mockPersister{loadErr: errors.New("down")}, &silentNotifier{})
	host.Start(context.Background())
	host.HandleMessage(context.Background(), []byte(`{"type":"EDITOR_READY"}`))
	if host.State() != StateEditorReady {
		t.Errorf("load failure must not block the session, state = %v", host.State())
	}
}

func TestFallbackReadyFlushesLikeReady(t *testing.T) {
	conn := &mockConn{}
	host := newTestHost(conn, &mockPersister{}, &silentNotifier{})
	host.SetAutosaveInterval(time.Hour)
	host.Send(SetTool{Tool: "draw"})

	host.HandleMessage(context.Background(), []byte(`{"type":"FALLBACK_READY"}`))
	if host.State() != StateFallbackReady {
		t.Fatalf("state = %v", host.State())
	}
	if len(conn.frames(t)) != 1 {
		t.Errorf("expected queue flush on fallback, got %v", conn.frames(t))
	}

	// A late EDITOR_READY must not restart the session.
	host.HandleMessage(context.Background(), []byte(`{"type":"EDITOR_READY"}`))
	if host.State() != StateFallbackReady {
		t.Errorf("double ready transition, state = %v", host.State())
	}
}

func TestInitErrorAlerts(t *testing.T) {
	notify := &silentNotifier{}
	host := newTestHost(&mockConn{}, &mockPersister{}, notify)
	host.HandleMessage(context.Background(), []byte(`{"type":"INITIALIZATION_ERROR","error":"bundle failed"}`))

	if host.State() != StateInitError {
		t.Errorf("state = %v", host.State())
	}
	if len(notify.titles) != 1 || notify.titles[0] != "Loading Error" {
		t.Errorf("expected Loading Error alert, got %v", notify.titles)
	}
}

func TestSaveMessagePersistsSnapshot(t *testing.T) {
	store := &mockPersister{}
	host := newTestHost(&mockConn{}, store, &silentNotifier{})

	var saved *core.CanvasDocument
	host.SetOnSaved(func(doc *core.CanvasDocument) { saved = doc })

	host.HandleMessage(context.Background(), []byte(`{"type":"SAVE_CANVAS","data":{"store":{"k":"v"}}}`))
	if store.saveCount() != 1 {
		t.Fatalf("expected 1 save, got %d", store.saveCount())
	}
	if saved == nil || saved.Version != 1 {
		t.Errorf("onSaved not invoked with stored doc: %+v", saved)
	}

	host.HandleMessage(context.Background(), []byte(`{"type":"SAVE_CANVAS_DB","data":{"store":{}}}`))
	if store.saveCount() != 2 {
		t.Errorf("expected SAVE_CANVAS_DB to persist too, got %d", store.saveCount())
	}
}

func TestSaveFailureAlertsExceptTokenExpiry(t *testing.T) {
	notify := &silentNotifier{}
	store := &mockPersister{saveErr: errors.New("disk full")}
	host := newTestHost(&mockConn{}, store, notify)
	host.HandleMessage(context.Background(), []byte(`{"type":"SAVE_CANVAS","data":{"k":"v"}}`))
	if len(notify.titles) != 1 || notify.titles[0] != "Save Error" {
		t.Fatalf("expected Save Error alert, got %v", notify.titles)
	}

	notify = &silentNotifier{}
	store = &mockPersister{saveErr: &backend.Error{Code: "PGRST301", Message: "JWT expired"}}
	host = newTestHost(&mockConn{}, store, notify)
	host.HandleMessage(context.Background(), []byte(`{"type":"SAVE_CANVAS","data":{"k":"v"}}`))
	if len(notify.titles) != 0 {
		t.Errorf("token-expiry save failure must stay silent, got %v", notify.titles)
	}
}

func TestUnknownMessageIgnored(t *testing.T) {
	store := &mockPersister{}
	host := newTestHost(&mockConn{}, store, &silentNotifier{})
	host.HandleMessage(context.Background(), []byte(`{"type":"NOT_A_THING"}`))
	if store.saveCount() != 0 {
		t.Error("unknown message must be a no-op")
	}
}

func TestAutosaveRequestsOnInterval(t *testing.T) {
	conn := &mockConn{}
	host := newTestHost(conn, &mockPersister{}, &silentNotifier{})
	host.SetAutosaveInterval(10 * time.Millisecond)
	host.HandleMessage(context.Background(), []byte(`{"type":"EDITOR_READY"}`))
	defer host.Close()

	deadline := time.After(time.Second)
	for {
		autosaves := 0
		for _, frame := range conn.frames(t) {
			if frame["type"] == "AUTO_SAVE_REQUEST" {
				autosaves++
			}
		}
		if autosaves >= 2 {
			return
		}
		select {
		case <-deadline:
			t.Fatalf("expected periodic autosave requests, saw %d", autosaves)
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestCloseDiscardsQueueAndStopsAutosave(t *testing.T) {
	conn := &mockConn{}
	host := newTestHost(conn, &mockPersister{}, &silentNotifier{})
	host.Send(SetTool{Tool: "draw"})
	host.Close()

	// A ready transition after close must not deliver the discarded queue.
	host.HandleMessage(context.Background(), []byte(`{"type":"EDITOR_READY"}`))
	if len(conn.frames(t)) != 0 {
		t.Errorf("expected discarded queue, got %v", conn.frames(t))
	}

	// Close is idempotent.
	host.Close()
}
