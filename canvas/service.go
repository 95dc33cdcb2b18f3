// Package canvas orchestrates canvas persistence: asset migration first,
// then the document upsert.
package canvas

import (
	"context"

	"social-canvas/assets"
	"social-canvas/core"
)

// Service implements the bridge's Persister over a canvas store and an asset
// rewriter.
type Service struct {
	store    core.CanvasStore
	rewriter *assets.Rewriter
}

// NewService builds the persistence service. rewriter may be nil to skip
// asset migration.
func NewService(store core.CanvasStore, rewriter *assets.Rewriter) *Service {
	return &Service{store: store, rewriter: rewriter}
}

// Save migrates inline assets to object storage (best-effort, per asset) and
// upserts the possibly-rewritten snapshot under (userID, canvasName).
func (s *Service) Save(ctx context.Context, userID, canvasName string, snapshot core.Snapshot) (*core.CanvasDocument, error) {
	if s.rewriter != nil {
		snapshot = s.rewriter.Rewrite(ctx, userID, canvasName, snapshot)
	}
	return s.store.Save(ctx, &core.CanvasDocument{
		UserID:     userID,
		CanvasName: canvasName,
		Data:       snapshot,
	})
}

// Load returns the stored document, or (nil, nil) when none exists yet.
func (s *Service) Load(ctx context.Context, userID, canvasName string) (*core.CanvasDocument, error) {
	return s.store.Load(ctx, userID, canvasName)
}
