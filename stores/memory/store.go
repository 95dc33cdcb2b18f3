package memory

import (
	"context"
	"sync"
	"time"

	"social-canvas/core"
)

type memStore struct {
	mu sync.RWMutex
	// docs is keyed by userID, then by canvas name.
	docs map[string]map[string]*core.CanvasDocument
}

// NewStore creates an in-memory canvas store.
func NewStore() *memStore {
	return &memStore{docs: make(map[string]map[string]*core.CanvasDocument)}
}

func (s *memStore) Save(_ context.Context, doc *core.CanvasDocument) (*core.CanvasDocument, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	byName, ok := s.docs[doc.UserID]
	if !ok {
		byName = make(map[string]*core.CanvasDocument)
		s.docs[doc.UserID] = byName
	}

	saved := &core.CanvasDocument{
		UserID:     doc.UserID,
		CanvasName: doc.CanvasName,
		Data:       doc.Data,
		Version:    1,
		UpdatedAt:  time.Now().UTC(),
	}
	if prev, ok := byName[doc.CanvasName]; ok {
		saved.Version = prev.Version + 1
	}
	byName[doc.CanvasName] = saved
	return saved, nil
}

func (s *memStore) Load(_ context.Context, userID, canvasName string) (*core.CanvasDocument, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.docs[userID][canvasName]
	if !ok {
		return nil, nil
	}
	return doc, nil
}
