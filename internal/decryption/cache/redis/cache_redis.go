package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/CommandOSSLabs/personal-data-wallet-sub010/pkg/domain"
	"github.com/CommandOSSLabs/personal-data-wallet-sub010/pkg/platform/sentinel"
)

const keyPrefix = "pdw:plaintext:"

// Cache stores plaintexts in Redis with a per-entry TTL, keyed by requesting
// wallet and memory id.
type Cache struct {
	client redis.UniversalClient
}

func New(client redis.UniversalClient) *Cache {
	return &Cache{client: client}
}

func key(memoryID string, user domain.Address) string {
	return keyPrefix + user.String() + ":" + memoryID
}

func (c *Cache) Get(ctx context.Context, memoryID string, user domain.Address) ([]byte, error) {
	b, err := c.client.Get(ctx, key(memoryID, user)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read cached plaintext: %w", err)
	}
	return b, nil
}

// Set stores plaintext for ttl. A non-positive ttl skips caching.
func (c *Cache) Set(ctx context.Context, memoryID string, user domain.Address, plaintext []byte, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	if err := c.client.Set(ctx, key(memoryID, user), plaintext, ttl).Err(); err != nil {
		return fmt.Errorf("cache plaintext: %w", err)
	}
	return nil
}

func (c *Cache) Delete(ctx context.Context, memoryID string, user domain.Address) error {
	return c.client.Del(ctx, key(memoryID, user)).Err()
}
