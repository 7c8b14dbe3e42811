package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/CommandOSSLabs/personal-data-wallet-sub010/internal/session"
	"github.com/CommandOSSLabs/personal-data-wallet-sub010/pkg/platform/sentinel"
)

// InMemoryStore keeps session records in a map guarded by an RWMutex.
type InMemoryStore struct {
	mu      sync.RWMutex
	records map[string]session.Record
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{records: make(map[string]session.Record)}
}

func (s *InMemoryStore) Get(_ context.Context, subject session.Subject) (session.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[subject.Key()]
	if !ok {
		return session.Record{}, sentinel.ErrNotFound
	}
	rec.Signature = append([]byte(nil), rec.Signature...)
	return rec, nil
}

func (s *InMemoryStore) Put(_ context.Context, rec session.Record) error {
	rec.Signature = append([]byte(nil), rec.Signature...)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[rec.Subject().Key()] = rec
	return nil
}

func (s *InMemoryStore) Delete(_ context.Context, subject session.Subject) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, subject.Key())
	return nil
}

func (s *InMemoryStore) DeleteExpired(_ context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for k, rec := range s.records {
		if !now.Before(rec.ExpiresAt()) {
			delete(s.records, k)
			n++
		}
	}
	return n, nil
}

func (s *InMemoryStore) Len(context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records), nil
}

func (s *InMemoryStore) Oldest(_ context.Context, n int) ([]session.Subject, error) {
	s.mu.RLock()
	recs := make([]session.Record, 0, len(s.records))
	for _, rec := range s.records {
		recs = append(recs, rec)
	}
	s.mu.RUnlock()

	sort.Slice(recs, func(i, j int) bool {
		if !recs[i].CreatedAt.Equal(recs[j].CreatedAt) {
			return recs[i].CreatedAt.Before(recs[j].CreatedAt)
		}
		return recs[i].Subject().Key() < recs[j].Subject().Key()
	})
	if n > len(recs) {
		n = len(recs)
	}
	out := make([]session.Subject, 0, n)
	for _, rec := range recs[:n] {
		out = append(out, rec.Subject())
	}
	return out, nil
}
