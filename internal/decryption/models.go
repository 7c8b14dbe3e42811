package decryption

import (
	"fmt"
	"time"

	"github.com/CommandOSSLabs/personal-data-wallet-sub010/pkg/domain"
)

// Request asks for one memory on behalf of one wallet. Ciphertext is used
// when present; otherwise the object is fetched from the blob store by BlobID.
type Request struct {
	MemoryID    string         `json:"memory_id"`
	UserAddress domain.Address `json:"user_address"`
	BlobID      string         `json:"blob_id,omitempty"`
	Ciphertext  []byte         `json:"ciphertext,omitempty"`
	// ContentHash is the optional SHA-256 of the expected plaintext.
	ContentHash []byte `json:"content_hash,omitempty"`
}

func (r Request) Validate() error {
	switch {
	case r.MemoryID == "":
		return fmt.Errorf("%w: memory id is required", ErrInvalidRequest)
	case r.UserAddress.IsZero():
		return fmt.Errorf("%w: user address is required", ErrInvalidRequest)
	case len(r.Ciphertext) == 0 && r.BlobID == "":
		return fmt.Errorf("%w: ciphertext or blob id is required", ErrInvalidRequest)
	case len(r.ContentHash) != 0 && len(r.ContentHash) != 32:
		return fmt.Errorf("%w: content hash must be 32 bytes", ErrInvalidRequest)
	}
	return nil
}

type Result struct {
	MemoryID    string         `json:"memory_id"`
	UserAddress domain.Address `json:"user_address"`
	Plaintext   []byte         `json:"plaintext"`
	FromCache   bool           `json:"from_cache"`
	Retries     int            `json:"retries"`
	Duration    time.Duration  `json:"duration"`
}

// Failure reports one request that did not decrypt.
type Failure struct {
	Request Request   `json:"request"`
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
	Retries int       `json:"retries"`
	Err     error     `json:"-"`
}

func (f Failure) Unwrap() error { return f.Err }

type BatchResult struct {
	Successful []Result  `json:"successful"`
	Failed     []Failure `json:"failed"`
}

// Stats is a point-in-time snapshot of pipeline activity.
type Stats struct {
	Total          int64         `json:"total"`
	Successes      int64         `json:"successes"`
	Failures       int64         `json:"failures"`
	CacheHits      int64         `json:"cache_hits"`
	CacheMisses    int64         `json:"cache_misses"`
	Retries        int64         `json:"retries"`
	AverageLatency time.Duration `json:"average_latency"`
}
