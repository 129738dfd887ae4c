// Package memory provides in-memory store implementations for tests and
// local development.
package memory

import (
	"context"
	"sync"
)

// BlobStore keeps object bodies in a map.
type BlobStore struct {
	mu      sync.RWMutex
	objects map[string][]byte
	bucket  bool
}

// NewBlobStore creates an empty in-memory blob store.
func NewBlobStore() *BlobStore {
	return &BlobStore{objects: make(map[string][]byte)}
}

// EnsureBucket marks the bucket as created.
func (s *BlobStore) EnsureBucket(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bucket = true
	return nil
}

// Put stores a copy of data under key.
func (s *BlobStore) Put(_ context.Context, key, _ string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = append([]byte(nil), data...)
	return nil
}

// Delete removes the key; absent keys are fine.
func (s *BlobStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, key)
	return nil
}

// Get returns the stored body, for test assertions.
func (s *BlobStore) Get(key string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.objects[key]
	return data, ok
}

// Len reports how many objects are stored.
func (s *BlobStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.objects)
}
