package session

import (
	"context"
	"time"

	"github.com/CommandOSSLabs/personal-data-wallet-sub010/pkg/domain"
)

// Record is the persisted form of a Key. The ephemeral private key is never
// stored; it is re-derived from the manager seed.
type Record struct {
	Address    domain.Address  `json:"address"`
	PackageID  domain.ObjectID `json:"package_id"`
	TTLMinutes int             `json:"ttl_min"`
	CreatedAt  time.Time       `json:"created_at"`
	// Signature is the serialized wallet signature, nil while challenged.
	Signature []byte `json:"signature,omitempty"`
}

func (r Record) Subject() Subject { return Subject{Address: r.Address, PackageID: r.PackageID} }

func (r Record) ExpiresAt() time.Time {
	return r.CreatedAt.Add(time.Duration(r.TTLMinutes) * time.Minute)
}

// Store holds at most one record per subject. Implementations must be safe
// for concurrent use.
type Store interface {
	// Get returns sentinel.ErrNotFound when the subject has no record.
	Get(ctx context.Context, subject Subject) (Record, error)
	Put(ctx context.Context, rec Record) error
	Delete(ctx context.Context, subject Subject) error
	// DeleteExpired removes records with ExpiresAt <= now.
	DeleteExpired(ctx context.Context, now time.Time) (int, error)
	Len(ctx context.Context) (int, error)
	// Oldest returns up to n subjects ordered by CreatedAt, ties by Subject.Key.
	Oldest(ctx context.Context, n int) ([]Subject, error)
}
