// Package blob is the port to the content-addressed store that holds
// encrypted memories. The pipeline only needs "bytes for an id".
package blob

import (
	"context"
	"encoding/base64"

	"golang.org/x/crypto/blake2b"
)

// Store fetches and publishes ciphertext blobs. Fetch returns
// sentinel.ErrNotFound for unknown ids and wraps sentinel.ErrUnavailable
// when the store cannot be reached.
type Store interface {
	Fetch(ctx context.Context, id string) ([]byte, error)
	Put(ctx context.Context, data []byte) (string, error)
}

// ContentID is the unpadded base64url blake2b-256 digest of data.
func ContentID(data []byte) string {
	sum := blake2b.Sum256(data)
	return base64.RawURLEncoding.EncodeToString(sum[:])
}
