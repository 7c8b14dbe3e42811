package memory

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/CommandOSSLabs/personal-data-wallet-sub010/pkg/domain"
	"github.com/CommandOSSLabs/personal-data-wallet-sub010/pkg/platform/sentinel"
)

// Cache keeps plaintexts in process. Entries are keyed by memory id and
// requesting wallet so one wallet's result is never served to another.
type Cache struct{ c *gocache.Cache }

// New creates a cache whose entries default to ttl. A zero ttl disables
// caching.
func New(ttl time.Duration) *Cache {
	if ttl <= 0 {
		return &Cache{}
	}
	return &Cache{c: gocache.New(ttl, time.Minute)}
}

func key(memoryID string, user domain.Address) string {
	return user.String() + "|" + memoryID
}

func (m *Cache) Get(_ context.Context, memoryID string, user domain.Address) ([]byte, error) {
	if m.c == nil {
		return nil, sentinel.ErrNotFound
	}
	v, ok := m.c.Get(key(memoryID, user))
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	b, _ := v.([]byte)
	return append([]byte(nil), b...), nil
}

// Set stores plaintext for ttl. A non-positive ttl skips caching.
func (m *Cache) Set(_ context.Context, memoryID string, user domain.Address, plaintext []byte, ttl time.Duration) error {
	if m.c == nil || ttl <= 0 {
		return nil
	}
	m.c.Set(key(memoryID, user), append([]byte(nil), plaintext...), ttl)
	return nil
}

func (m *Cache) Delete(_ context.Context, memoryID string, user domain.Address) error {
	if m.c == nil {
		return nil
	}
	m.c.Delete(key(memoryID, user))
	return nil
}

func (m *Cache) Len() int {
	if m.c == nil {
		return 0
	}
	return m.c.ItemCount()
}
