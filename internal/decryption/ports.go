package decryption

//go:generate mockgen -source=ports.go -destination=mocks/mocks.go -package=mocks

import (
	"context"
	"time"

	"github.com/CommandOSSLabs/personal-data-wallet-sub010/internal/session"
	"github.com/CommandOSSLabs/personal-data-wallet-sub010/internal/threshold"
	"github.com/CommandOSSLabs/personal-data-wallet-sub010/internal/wallet"
	"github.com/CommandOSSLabs/personal-data-wallet-sub010/pkg/domain"
)

// Sessions issues and signs session keys; satisfied by *session.Manager.
type Sessions interface {
	GetOrCreate(ctx context.Context, address domain.Address, packageID domain.ObjectID, ttlMinutes int) (*session.Key, error)
	EnsureSigned(ctx context.Context, address domain.Address, packageID domain.ObjectID, ttlMinutes int, signer wallet.Signer) (*session.Key, error)
}

// Decrypter is the threshold client; satisfied by *threshold.Client.
type Decrypter interface {
	Inspect(ciphertext []byte) (threshold.Header, error)
	Decrypt(ctx context.Context, ciphertext []byte, key *session.Key, approvalTx []byte) ([]byte, error)
}

// Signers resolves the wallet that signs for an address; satisfied by
// *wallet.Keyring. Addresses without a local signer must sign through the
// session API before decrypting.
type Signers interface {
	Get(address domain.Address) (wallet.Signer, error)
}

// Cache holds plaintexts keyed by memory and requesting wallet. Get returns
// sentinel.ErrNotFound on a miss.
type Cache interface {
	Get(ctx context.Context, memoryID string, user domain.Address) ([]byte, error)
	Set(ctx context.Context, memoryID string, user domain.Address, plaintext []byte, ttl time.Duration) error
}
