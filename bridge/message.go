// Package bridge is the host side of the request/response protocol between
// application code and the sandboxed drawing library. Messages are JSON
// objects framed as strings on the sandbox's message channel.
package bridge

import (
	"encoding/json"
	"fmt"

	"social-canvas/core"
)

// Sandbox-to-host message types.
const (
	TypeEditorReady   = "EDITOR_READY"
	TypeInitError     = "INITIALIZATION_ERROR"
	TypeSaveCanvas    = "SAVE_CANVAS"
	TypeSaveCanvasDB  = "SAVE_CANVAS_DB"
	TypeDebugStep     = "DEBUG_STEP"
	TypeFallbackReady = "FALLBACK_READY"
)

// Host-to-sandbox message types.
const (
	TypeLoadCanvas        = "LOAD_CANVAS"
	TypeAutoSaveRequest   = "AUTO_SAVE_REQUEST"
	TypeManualSaveRequest = "MANUAL_SAVE_REQUEST"
	TypeAddImage          = "ADD_IMAGE"
	TypeAddText           = "ADD_TEXT"
	TypeSetTool           = "SET_TOOL"
	TypeZoomToFit         = "ZOOM_TO_FIT"
)

// Inbound is a decoded sandbox-to-host message.
type Inbound struct {
	Type string `json:"type"`

	// INITIALIZATION_ERROR
	Error string `json:"error,omitempty"`

	// SAVE_CANVAS / SAVE_CANVAS_DB
	Data core.Snapshot `json:"data,omitempty"`

	// DEBUG_STEP
	Step      string `json:"step,omitempty"`
	Details   string `json:"details,omitempty"`
	Timestamp int64  `json:"timestamp,omitempty"`
}

// ErrUnknownMessage marks an inbound type outside the protocol catalog.
// Callers log it and carry on; an unknown message is never fatal.
type ErrUnknownMessage struct {
	Type string
}

func (e *ErrUnknownMessage) Error() string {
	return fmt.Sprintf("unknown bridge message type %q", e.Type)
}

// DecodeInbound parses one string-framed message from the sandbox.
func DecodeInbound(raw []byte) (*Inbound, error) {
	var msg Inbound
	if err := json.Unmarshal(raw, &msg); err != nil {
		return nil, fmt.Errorf("parse bridge message: %w", err)
	}
	switch msg.Type {
	case TypeEditorReady, TypeInitError, TypeSaveCanvas, TypeSaveCanvasDB,
		TypeDebugStep, TypeFallbackReady:
		return &msg, nil
	default:
		return nil, &ErrUnknownMessage{Type: msg.Type}
	}
}

// Outbound is a host-to-sandbox message. The implementations below are the
// complete catalog; EncodeOutbound switches over them exhaustively.
type Outbound interface {
	outbound()
}

type (
	// LoadCanvas replaces the sandbox document with a stored snapshot.
	LoadCanvas struct {
		Data core.Snapshot
	}

	// AutoSaveRequest asks the sandbox to emit a save message if the document
	// changed. The reply arrives asynchronously; the host never waits for it.
	AutoSaveRequest struct{}

	// ManualSaveRequest forces a save message regardless of change state.
	ManualSaveRequest struct{}

	// AddImage places a base64-encoded image at canvas coordinates.
	AddImage struct {
		Base64 string
		X      float64
		Y      float64
	}

	// AddText places a text shape at canvas coordinates.
	AddText struct {
		Text string
		X    float64
		Y    float64
	}

	// SetTool switches the active drawing tool.
	SetTool struct {
		Tool string
	}

	// ZoomToFit frames the whole document in the viewport.
	ZoomToFit struct{}
)

func (LoadCanvas) outbound() {}
func (AutoSaveRequest) outbound() {}
func (ManualSaveRequest) outbound() {}
func (AddImage) outbound() {}
func (AddText) outbound() {}
func (SetTool) outbound() {}
func (ZoomToFit) outbound() {}

// EncodeOutbound frames one host-to-sandbox message as JSON.
func EncodeOutbound(m Outbound) ([]byte, error) {
	var payload map[string]any
	switch v := m.(type) {
	case LoadCanvas:
		payload = map[string]any{"type": TypeLoadCanvas, "data": v.Data}
	case AutoSaveRequest:
		payload = map[string]any{"type": TypeAutoSaveRequest}
	case ManualSaveRequest:
		payload = map[string]any{"type": TypeManualSaveRequest}
	case AddImage:
		payload = map[string]any{"type": TypeAddImage, "base64": v.Base64, "x": v.X, "y": v.Y}
	case AddText:
		payload = map[string]any{"type": TypeAddText, "text": v.Text, "x": v.X, "y": v.Y}
	case SetTool:
		payload = map[string]any{"type": TypeSetTool, "tool": v.Tool}
	case ZoomToFit:
		payload = map[string]any{"type": TypeZoomToFit}
	default:
		return nil, fmt.Errorf("unhandled outbound message %T", m)
	}
	return json.Marshal(payload)
}
