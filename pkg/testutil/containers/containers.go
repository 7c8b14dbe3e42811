//go:build integration

// Package containers starts throwaway Redis and PostgreSQL instances for the
// integration suites. Everything is torn down through t.Cleanup.
package containers

import (
	"context"
	"database/sql"
	"testing"

	// Registers the "postgres" database/sql driver.
	_ "github.com/lib/pq"
	goredis "github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
)

const (
	redisImage    = "redis:7-alpine"
	postgresImage = "postgres:16-alpine"
)

// Redis is a connected client to a private Redis container.
type Redis struct {
	*goredis.Client
}

// Reset empties the database between tests.
func (r *Redis) Reset(ctx context.Context) error {
	return r.FlushDB(ctx).Err()
}

func NewRedis(t *testing.T) *Redis {
	t.Helper()
	ctx := context.Background()

	c, err := tcredis.Run(ctx, redisImage)
	stopOnCleanup(t, c, err)

	url, err := c.ConnectionString(ctx)
	if err != nil {
		t.Fatalf("redis connection string: %v", err)
	}
	opts, err := goredis.ParseURL(url)
	if err != nil {
		t.Fatalf("redis url %q: %v", url, err)
	}
	client := goredis.NewClient(opts)
	t.Cleanup(func() { _ = client.Close() })
	if err := client.Ping(ctx).Err(); err != nil {
		t.Fatalf("redis ping: %v", err)
	}
	return &Redis{Client: client}
}

// NewPostgres returns a lib/pq handle to an empty "pdw" database.
func NewPostgres(t *testing.T) *sql.DB {
	t.Helper()
	ctx := context.Background()

	c, err := tcpostgres.Run(ctx, postgresImage,
		tcpostgres.WithDatabase("pdw"),
		tcpostgres.WithUsername("pdw"),
		tcpostgres.WithPassword("pdw"),
		tcpostgres.BasicWaitStrategies(),
	)
	stopOnCleanup(t, c, err)

	dsn, err := c.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("postgres connection string: %v", err)
	}
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		t.Fatalf("open postgres: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err := db.PingContext(ctx); err != nil {
		t.Fatalf("ping postgres: %v", err)
	}
	return db
}

// stopOnCleanup fails the test when the container did not start and otherwise
// registers its termination. Cleanups run last-in first-out, so clients
// registered afterwards close before the container goes away.
func stopOnCleanup(t *testing.T, c testcontainers.Container, err error) {
	t.Helper()
	if c != nil {
		t.Cleanup(func() { _ = testcontainers.TerminateContainer(c) })
	}
	if err != nil {
		t.Fatalf("start container: %v", err)
	}
}
