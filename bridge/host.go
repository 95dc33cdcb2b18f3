package bridge

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"social-canvas/backend"
	"social-canvas/core"
)

// DefaultAutosaveInterval paces AUTO_SAVE_REQUEST messages once the editor is
// ready. Spaced wide enough not to collide with token refresh cycles.
const DefaultAutosaveInterval = 20 * time.Second

// State is the lifecycle of the sandboxed editor as seen by the host.
type State int

const (
	StateUninitialized State = iota
	StateLoadingLibrary
	StateEditorReady
	StateInitError
	// StateFallbackReady is the degraded-but-usable surface the sandbox
	// falls back to when the drawing library cannot initialize.
	StateFallbackReady
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateLoadingLibrary:
		return "loading_library"
	case StateEditorReady:
		return "editor_ready"
	case StateInitError:
		return "initialization_error"
	case StateFallbackReady:
		return "fallback_ready"
	}
	return "unknown"
}

// Conn is one send-only message channel into the sandbox. Implementations
// must not call back into the Host from Send.
type Conn interface {
	Send(payload []byte) error
}

// Persister loads and stores canvas documents for the bridge.
type Persister interface {
	Save(ctx context.Context, userID, canvasName string, snapshot core.Snapshot) (*core.CanvasDocument, error)
	Load(ctx context.Context, userID, canvasName string) (*core.CanvasDocument, error)
}

// Host drives one sandbox session: it queues outbound messages until the
// editor reports ready, flushes them in order, paces autosave, and persists
// the snapshots the sandbox sends back. All sends before EDITOR_READY are
// held in an unbounded FIFO; nothing is dropped or reordered. Close discards
// the queue and the autosave timer without draining.
type Host struct {
	userID     string
	canvasName string
	conn       Conn
	store      Persister
	notify     core.Notifier

	autosaveEvery time.Duration
	onSaved       func(*core.CanvasDocument)

	mu      sync.Mutex
	state   State
	queue   [][]byte
	initial core.Snapshot
	stop    chan struct{}
	closed  bool
}

// NewHost builds a host for one (user, canvas) session over conn.
func NewHost(conn Conn, store Persister, notify core.Notifier, userID, canvasName string) *Host {
	if notify == nil {
		notify = core.LogNotifier{}
	}
	return &Host{
		userID:        userID,
		canvasName:    canvasName,
		conn:          conn,
		store:         store,
		notify:        notify,
		autosaveEvery: DefaultAutosaveInterval,
	}
}

// SetAutosaveInterval overrides the autosave cadence. Intended for tests.
func (h *Host) SetAutosaveInterval(d time.Duration) { h.autosaveEvery = d }

// SetOnSaved registers a callback invoked after each successful persist.
func (h *Host) SetOnSaved(fn func(*core.CanvasDocument)) { h.onSaved = fn }

// State returns the current lifecycle state.
func (h *Host) State() State {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

// Start loads the stored document, if any, ahead of the editor becoming
// ready. A load failure is logged and the session starts fresh, matching the
// tolerant load contract.
func (h *Host) Start(ctx context.Context) {
	h.mu.Lock()
	h.state = StateLoadingLibrary
	h.mu.Unlock()

	doc, err := h.store.Load(ctx, h.userID, h.canvasName)
	if err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{
			"user_id": h.userID,
			"canvas":  h.canvasName,
		}).Error("Failed to load canvas, starting fresh")
		return
	}
	if doc == nil {
		logrus.WithFields(logrus.Fields{
			"user_id": h.userID,
			"canvas":  h.canvasName,
		}).Info("No existing canvas, starting fresh")
		return
	}
	h.mu.Lock()
	h.initial = doc.Data
	h.mu.Unlock()
}

// Send delivers m to the sandbox, or queues it if the editor is not ready
// yet. Queued messages flush in order on the ready transition.
func (h *Host) Send(m Outbound) error {
	payload, err := EncodeOutbound(m)
	if err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}
	if h.state == StateEditorReady || h.state == StateFallbackReady {
		return h.conn.Send(payload)
	}
	h.queue = append(h.queue, payload)
	logrus.WithField("queued", len(h.queue)).Debug("editor not ready, message queued")
	return nil
}

// HandleMessage processes one string-framed message from the sandbox.
// Unknown message types are logged and ignored.
func (h *Host) HandleMessage(ctx context.Context, raw []byte) {
	msg, err := DecodeInbound(raw)
	if err != nil {
		logrus.WithError(err).Warn("ignoring bridge message")
		return
	}

	switch msg.Type {
	case TypeEditorReady:
		logrus.WithField("canvas", h.canvasName).Info("editor ready")
		h.becomeReady(StateEditorReady)
	case TypeFallbackReady:
		logrus.WithField("canvas", h.canvasName).Warn("drawing library unavailable, fallback surface active")
		h.becomeReady(StateFallbackReady)
	case TypeInitError:
		h.mu.Lock()
		h.state = StateInitError
		h.mu.Unlock()
		logrus.WithField("error", msg.Error).Error("editor initialization failed")
		h.notify.Alert("Loading Error", "Failed to load drawing canvas: "+msg.Error)
	case TypeSaveCanvas, TypeSaveCanvasDB:
		h.persist(ctx, msg.Data)
	case TypeDebugStep:
		logrus.WithFields(logrus.Fields{
			"step":    msg.Step,
			"elapsed": msg.Timestamp,
		}).Debug(msg.Details)
	}
}

// becomeReady transitions into a usable state, flushes the pending queue in
// FIFO order, pushes the stored document into the editor, and starts the
// autosave timer. The lock is held across the flush so a concurrent Send
// cannot jump ahead of queued messages.
func (h *Host) becomeReady(s State) {
	h.mu.Lock()
	if h.closed || h.state == StateEditorReady || h.state == StateFallbackReady {
		h.mu.Unlock()
		return
	}
	h.state = s
	pending := h.queue
	h.queue = nil
	if len(pending) > 0 {
		logrus.WithField("count", len(pending)).Info("flushing queued bridge messages")
	}
	for _, payload := range pending {
		if err := h.conn.Send(payload); err != nil {
			logrus.WithError(err).Warn("failed to deliver queued message")
		}
	}
	initial := h.initial
	h.stop = make(chan struct{})
	stop := h.stop
	h.mu.Unlock()

	if initial != nil {
		if err := h.Send(LoadCanvas{Data: initial}); err != nil {
			logrus.WithError(err).Warn("failed to push stored canvas into editor")
		}
	}
	go h.autosaveLoop(stop)
}

func (h *Host) autosaveLoop(stop <-chan struct{}) {
	ticker := time.NewTicker(h.autosaveEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			logrus.Debug("requesting canvas autosave")
			if err := h.Send(AutoSaveRequest{}); err != nil {
				logrus.WithError(err).Warn("autosave request failed")
			}
		case <-stop:
			return
		}
	}
}

// persist stores a snapshot the sandbox sent back. Background autosave
// failures from token expiry are logged only; anything else alerts the user.
func (h *Host) persist(ctx context.Context, snapshot core.Snapshot) {
	if snapshot == nil {
		logrus.Warn("save message carried no snapshot")
		return
	}
	doc, err := h.store.Save(ctx, h.userID, h.canvasName, snapshot)
	if err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{
			"user_id": h.userID,
			"canvas":  h.canvasName,
		}).Error("Failed to save canvas")
		if !backend.IsAuthExpired(err) {
			h.notify.Alert("Save Error", "Failed to save canvas. Please try again.")
		}
		return
	}
	logrus.WithField("version", doc.Version).Debug("canvas saved")
	if h.onSaved != nil {
		h.onSaved(doc)
	}
}

// Close tears the session down: the autosave timer stops and any queued
// messages are discarded. There is no flush-on-exit; a save requested but not
// yet emitted by the sandbox is lost.
func (h *Host) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	h.queue = nil
	if h.stop != nil {
		close(h.stop)
		h.stop = nil
	}
}
