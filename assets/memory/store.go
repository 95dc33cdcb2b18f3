package memory

import (
	"context"
	"sync"
)

// Object is one uploaded asset held in memory.
type Object struct {
	Data        []byte
	ContentType string
}

type memStore struct {
	mu      sync.RWMutex
	objects map[string]Object
}

// NewStore creates an in-memory asset bucket, used in tests and when no
// object storage is configured.
func NewStore() *memStore {
	return &memStore{objects: make(map[string]Object)}
}

func (s *memStore) Upload(_ context.Context, key string, data []byte, contentType string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	buf := make([]byte, len(data))
	copy(buf, data)
	s.objects[key] = Object{Data: buf, ContentType: contentType}
	return nil
}

func (s *memStore) PublicURL(key string) string {
	return "memory://" + key
}

// Get returns an uploaded object, for test assertions.
func (s *memStore) Get(key string) (Object, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	obj, ok := s.objects[key]
	return obj, ok
}
