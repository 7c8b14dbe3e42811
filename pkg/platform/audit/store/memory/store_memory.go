package memory

import (
	"context"
	"sort"
	"sync"

	audit "github.com/CommandOSSLabs/personal-data-wallet-sub010/pkg/platform/audit"
)

type InMemoryStore struct {
	mu     sync.RWMutex
	events []audit.Event
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

func (s *InMemoryStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = nil
}

func (s *InMemoryStore) Append(_ context.Context, event audit.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

func (s *InMemoryStore) AppendBatch(_ context.Context, events []audit.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, events...)
	return nil
}

// ListBySubject returns a subject's events in insertion order.
func (s *InMemoryStore) ListBySubject(_ context.Context, subject string) ([]audit.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []audit.Event
	for _, e := range s.events {
		if e.Subject == subject {
			out = append(out, e)
		}
	}
	return out, nil
}

// ListByAction is a test convenience.
func (s *InMemoryStore) ListByAction(_ context.Context, action audit.AuditEvent) []audit.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []audit.Event
	for _, e := range s.events {
		if e.Action == string(action) {
			out = append(out, e)
		}
	}
	return out
}

// ListRecent returns up to limit events, newest first.
func (s *InMemoryStore) ListRecent(_ context.Context, limit int) ([]audit.Event, error) {
	s.mu.RLock()
	all := append([]audit.Event(nil), s.events...)
	s.mu.RUnlock()

	sort.SliceStable(all, func(i, j int) bool { return all[i].Timestamp.After(all[j].Timestamp) })
	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}
