package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/CommandOSSLabs/personal-data-wallet-sub010/internal/session"
	"github.com/CommandOSSLabs/personal-data-wallet-sub010/pkg/domain"
	"github.com/CommandOSSLabs/personal-data-wallet-sub010/pkg/platform/sentinel"
)

const (
	recordKeyPrefix = "pdw:session:"
	createdIndexKey = "pdw:sessions:created"
	expiresIndexKey = "pdw:sessions:expires"
)

// pruneIndexes drops index members whose expiry score is at or before
// ARGV[1] from both sorted sets in one step.
var pruneIndexes = redis.NewScript(`
local stale = redis.call('ZRANGEBYSCORE', KEYS[2], '-inf', ARGV[1])
for _, m in ipairs(stale) do
  redis.call('ZREM', KEYS[1], m)
end
redis.call('ZREMRANGEBYSCORE', KEYS[2], '-inf', ARGV[1])
return #stale
`)

// Store keeps each session record as a JSON string that Redis expires at the
// key's lifetime, plus two sorted sets indexing members by CreatedAt and
// ExpiresAt. Equal scores sort by member, which is Subject.Key.
type Store struct {
	client redis.UniversalClient
}

func New(client redis.UniversalClient) *Store {
	return &Store{client: client}
}

func recordKey(subject session.Subject) string { return recordKeyPrefix + subject.Key() }

func (s *Store) Get(ctx context.Context, subject session.Subject) (session.Record, error) {
	raw, err := s.client.Get(ctx, recordKey(subject)).Bytes()
	if errors.Is(err, redis.Nil) {
		return session.Record{}, sentinel.ErrNotFound
	}
	if err != nil {
		return session.Record{}, fmt.Errorf("get session: %w", err)
	}
	var rec session.Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return session.Record{}, fmt.Errorf("decode session: %w", err)
	}
	return rec, nil
}

func (s *Store) Put(ctx context.Context, rec session.Record) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	ttl := time.Until(rec.ExpiresAt())
	if ttl < time.Millisecond {
		ttl = time.Millisecond
	}
	member := rec.Subject().Key()

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, recordKeyPrefix+member, raw, ttl)
	pipe.ZAdd(ctx, createdIndexKey, redis.Z{Score: float64(rec.CreatedAt.UnixMilli()), Member: member})
	pipe.ZAdd(ctx, expiresIndexKey, redis.Z{Score: float64(rec.ExpiresAt().UnixMilli()), Member: member})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("put session: %w", err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, subject session.Subject) error {
	return s.deleteMembers(ctx, []string{subject.Key()})
}

func (s *Store) deleteMembers(ctx context.Context, members []string) error {
	if len(members) == 0 {
		return nil
	}
	keys := make([]string, len(members))
	zmembers := make([]any, len(members))
	for i, m := range members {
		keys[i] = recordKeyPrefix + m
		zmembers[i] = m
	}
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, keys...)
	pipe.ZRem(ctx, createdIndexKey, zmembers...)
	pipe.ZRem(ctx, expiresIndexKey, zmembers...)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("delete sessions: %w", err)
	}
	return nil
}

func (s *Store) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	members, err := s.client.ZRangeByScore(ctx, expiresIndexKey, &redis.ZRangeBy{
		Min: "-inf",
		Max: strconv.FormatInt(now.UnixMilli(), 10),
	}).Result()
	if err != nil {
		return 0, fmt.Errorf("scan expired sessions: %w", err)
	}
	if err := s.deleteMembers(ctx, members); err != nil {
		return 0, err
	}
	return len(members), nil
}

// prune removes index entries for records Redis has already expired.
func (s *Store) prune(ctx context.Context) error {
	now := strconv.FormatInt(time.Now().UnixMilli(), 10)
	if err := pruneIndexes.Run(ctx, s.client, []string{createdIndexKey, expiresIndexKey}, now).Err(); err != nil {
		return fmt.Errorf("prune session indexes: %w", err)
	}
	return nil
}

func (s *Store) Len(ctx context.Context) (int, error) {
	if err := s.prune(ctx); err != nil {
		return 0, err
	}
	n, err := s.client.ZCard(ctx, createdIndexKey).Result()
	if err != nil {
		return 0, fmt.Errorf("count sessions: %w", err)
	}
	return int(n), nil
}

func (s *Store) Oldest(ctx context.Context, n int) ([]session.Subject, error) {
	if n <= 0 {
		return nil, nil
	}
	if err := s.prune(ctx); err != nil {
		return nil, err
	}
	members, err := s.client.ZRange(ctx, createdIndexKey, 0, int64(n-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("range sessions: %w", err)
	}
	out := make([]session.Subject, 0, len(members))
	for _, m := range members {
		subject, err := parseMember(m)
		if err != nil {
			return nil, err
		}
		out = append(out, subject)
	}
	return out, nil
}

func parseMember(m string) (session.Subject, error) {
	addr, pkg, ok := strings.Cut(m, ":")
	if !ok {
		return session.Subject{}, fmt.Errorf("malformed session member %q", m)
	}
	a, err := domain.ParseAddress(addr)
	if err != nil {
		return session.Subject{}, err
	}
	p, err := domain.ParseObjectID(pkg)
	if err != nil {
		return session.Subject{}, err
	}
	return session.Subject{Address: a, PackageID: p}, nil
}
