package registry

import (
	"context"
	"sync"

	"github.com/CommandOSSLabs/personal-data-wallet-sub010/pkg/domain"
	"github.com/CommandOSSLabs/personal-data-wallet-sub010/pkg/platform/sentinel"
)

// Store persists registry state.
type Store interface {
	PutGrant(ctx context.Context, g AccessGrant) error
	// DeleteGrant returns sentinel.ErrNotFound when no grant matches.
	DeleteGrant(ctx context.Context, grantor, grantee domain.Address, scope string) error
	GetGrant(ctx context.Context, grantor, grantee domain.Address, scope string) (AccessGrant, error)
	ListGrants(ctx context.Context, grantor domain.Address) ([]AccessGrant, error)
	// PutContent returns sentinel.ErrConflict when the id is taken.
	PutContent(ctx context.Context, rec ContentRecord) error
	GetContent(ctx context.Context, contentID string) (ContentRecord, error)
}

// InMemoryStore is a Store guarded by a single RWMutex.
type InMemoryStore struct {
	mu      sync.RWMutex
	grants  map[grantKey]AccessGrant
	content map[string]ContentRecord
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		grants:  make(map[grantKey]AccessGrant),
		content: make(map[string]ContentRecord),
	}
}

func (s *InMemoryStore) PutGrant(_ context.Context, g AccessGrant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.grants[grantKey{g.Grantor, g.Grantee, g.Scope}] = g
	return nil
}

func (s *InMemoryStore) DeleteGrant(_ context.Context, grantor, grantee domain.Address, scope string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := grantKey{grantor, grantee, scope}
	if _, ok := s.grants[k]; !ok {
		return sentinel.ErrNotFound
	}
	delete(s.grants, k)
	return nil
}

func (s *InMemoryStore) GetGrant(_ context.Context, grantor, grantee domain.Address, scope string) (AccessGrant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, ok := s.grants[grantKey{grantor, grantee, scope}]
	if !ok {
		return AccessGrant{}, sentinel.ErrNotFound
	}
	return g, nil
}

func (s *InMemoryStore) ListGrants(_ context.Context, grantor domain.Address) ([]AccessGrant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []AccessGrant
	for k, g := range s.grants {
		if k.grantor == grantor {
			out = append(out, g)
		}
	}
	return out, nil
}

func (s *InMemoryStore) PutContent(_ context.Context, rec ContentRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.content[rec.ContentID]; ok {
		return sentinel.ErrConflict
	}
	s.content[rec.ContentID] = rec
	return nil
}

func (s *InMemoryStore) GetContent(_ context.Context, contentID string) (ContentRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.content[contentID]
	if !ok {
		return ContentRecord{}, sentinel.ErrNotFound
	}
	return rec, nil
}
