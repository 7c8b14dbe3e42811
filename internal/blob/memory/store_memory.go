package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/CommandOSSLabs/personal-data-wallet-sub010/internal/blob"
	"github.com/CommandOSSLabs/personal-data-wallet-sub010/pkg/platform/sentinel"
)

// InMemoryStore is a content-addressed blob store for tests and the local sandbox.
type InMemoryStore struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{blobs: make(map[string][]byte)}
}

func (s *InMemoryStore) Fetch(_ context.Context, id string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.blobs[id]
	if !ok {
		return nil, fmt.Errorf("blob %s: %w", id, sentinel.ErrNotFound)
	}
	return append([]byte(nil), data...), nil
}

// Put stores data under its content id. Storing the same bytes twice is a no-op.
func (s *InMemoryStore) Put(_ context.Context, data []byte) (string, error) {
	id := blob.ContentID(data)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.blobs[id]; !ok {
		s.blobs[id] = append([]byte(nil), data...)
	}
	return id, nil
}

func (s *InMemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.blobs)
}
