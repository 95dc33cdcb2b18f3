package core

import (
	"context"
	"time"
)

type (
	// Snapshot is the drawing library's complete serialized document state.
	// The host treats it as opaque apart from the embedded asset records
	// rewritten at save time.
	Snapshot = map[string]any

	// CanvasDocument is one saved drawing, keyed by (UserID, CanvasName).
	CanvasDocument struct {
		UserID     string    `json:"user_id"`
		CanvasName string    `json:"canvas_name"`
		Data       Snapshot  `json:"data,omitempty"`
		Version    int64     `json:"version"`
		UpdatedAt  time.Time `json:"updated_at"`
	}

	// CanvasStore persists canvas documents. Implementations must treat a
	// missing document as a normal outcome: Load returns (nil, nil) when no
	// row exists for the key, on the first call and on every repeat.
	CanvasStore interface {
		// Save creates or replaces the document for (doc.UserID, doc.CanvasName)
		// and returns the stored row (data, version, updated_at).
		Save(ctx context.Context, doc *CanvasDocument) (*CanvasDocument, error)

		// Load returns the document for the key, or (nil, nil) if none exists.
		Load(ctx context.Context, userID, canvasName string) (*CanvasDocument, error)
	}

	// BucketStore is the object-storage surface used for canvas assets.
	BucketStore interface {
		// Upload writes an object under key, replacing any previous content.
		Upload(ctx context.Context, key string, data []byte, contentType string) error

		// PublicURL returns the publicly reachable URL for an uploaded key.
		PublicURL(key string) string
	}
)
