package httptransport

import (
	"encoding/hex"
	"strings"
	"time"

	"github.com/CommandOSSLabs/personal-data-wallet-sub010/internal/decryption"
	"github.com/CommandOSSLabs/personal-data-wallet-sub010/internal/identity"
	"github.com/CommandOSSLabs/personal-data-wallet-sub010/internal/session"
	"github.com/CommandOSSLabs/personal-data-wallet-sub010/pkg/domain"
	dErrors "github.com/CommandOSSLabs/personal-data-wallet-sub010/pkg/domain-errors"
)

// maxBatchSize bounds one batch request.
const maxBatchSize = 256

// HexBytes is a byte string carried as hex in JSON.
type HexBytes []byte

func (h HexBytes) MarshalText() ([]byte, error) {
	return []byte(hex.EncodeToString(h)), nil
}

func (h *HexBytes) UnmarshalText(text []byte) error {
	b, err := hex.DecodeString(strings.TrimPrefix(string(text), "0x"))
	if err != nil {
		return err
	}
	*h = b
	return nil
}

type SessionRequest struct {
	Address domain.Address `json:"address"`
}

func (r *SessionRequest) Validate() error {
	if r.Address.IsZero() {
		return dErrors.New(dErrors.CodeValidation, "address is required")
	}
	return nil
}

type SignatureRequest struct {
	Address domain.Address `json:"address"`
	// Signature is the base64 serialized Sui personal-message signature.
	Signature string `json:"signature"`
}

func (r *SignatureRequest) Validate() error {
	switch {
	case r.Address.IsZero():
		return dErrors.New(dErrors.CodeValidation, "address is required")
	case r.Signature == "":
		return dErrors.New(dErrors.CodeValidation, "signature is required")
	}
	return nil
}

type SessionResponse struct {
	Address     domain.Address  `json:"address"`
	PackageID   domain.ObjectID `json:"package_id"`
	TTLMinutes  int             `json:"ttl_minutes"`
	CreatedAt   time.Time       `json:"created_at"`
	ExpiresAt   time.Time       `json:"expires_at"`
	Challenge   []byte          `json:"challenge"`
	Signed      bool            `json:"signed"`
	AccessToken string          `json:"access_token,omitempty"`
}

func toSessionResponse(k *session.Key) SessionResponse {
	return SessionResponse{
		Address:    k.Address,
		PackageID:  k.PackageID,
		TTLMinutes: k.TTLMinutes,
		CreatedAt:  k.CreatedAt,
		ExpiresAt:  k.ExpiresAt(),
		Challenge:  k.Challenge,
		Signed:     k.IsSigned(),
	}
}

type DecryptRequest struct {
	MemoryID    string         `json:"memory_id"`
	UserAddress domain.Address `json:"user_address"`
	BlobID      string         `json:"blob_id,omitempty"`
	Ciphertext  []byte         `json:"ciphertext,omitempty"`
	// ContentHash is the hex SHA-256 of the expected plaintext.
	ContentHash HexBytes `json:"content_hash,omitempty"`
}

// Validate checks shape only; the pipeline validates semantics so batch
// items fail individually.
func (r *DecryptRequest) Validate() error {
	if r.MemoryID == "" {
		return dErrors.New(dErrors.CodeValidation, "memory_id is required")
	}
	if r.BlobID == "" && len(r.Ciphertext) == 0 {
		return dErrors.New(dErrors.CodeValidation, "blob_id or ciphertext is required")
	}
	return nil
}

func (r DecryptRequest) toModel() decryption.Request {
	return decryption.Request{
		MemoryID:    r.MemoryID,
		UserAddress: r.UserAddress,
		BlobID:      r.BlobID,
		Ciphertext:  r.Ciphertext,
		ContentHash: r.ContentHash,
	}
}

type BatchRequest struct {
	Requests []DecryptRequest `json:"requests"`
}

func (r *BatchRequest) Validate() error {
	switch {
	case len(r.Requests) == 0:
		return dErrors.New(dErrors.CodeValidation, "requests is required")
	case len(r.Requests) > maxBatchSize:
		return dErrors.New(dErrors.CodeValidation, "too many requests in one batch")
	}
	return nil
}

type DecryptResponse struct {
	MemoryID   string         `json:"memory_id"`
	User       domain.Address `json:"user_address"`
	Plaintext  []byte         `json:"plaintext"`
	FromCache  bool           `json:"from_cache"`
	Retries    int            `json:"retries"`
	DurationMS int64          `json:"duration_ms"`
}

func toDecryptResponse(r decryption.Result) DecryptResponse {
	return DecryptResponse{
		MemoryID:   r.MemoryID,
		User:       r.UserAddress,
		Plaintext:  r.Plaintext,
		FromCache:  r.FromCache,
		Retries:    r.Retries,
		DurationMS: r.Duration.Milliseconds(),
	}
}

type FailureResponse struct {
	MemoryID string               `json:"memory_id"`
	User     domain.Address       `json:"user_address"`
	Kind     decryption.ErrorKind `json:"kind"`
	Message  string               `json:"message"`
	Retries  int                  `json:"retries"`
}

type BatchResponse struct {
	Successful []DecryptResponse `json:"successful"`
	Failed     []FailureResponse `json:"failed"`
}

func toBatchResponse(b *decryption.BatchResult) BatchResponse {
	out := BatchResponse{
		Successful: make([]DecryptResponse, 0, len(b.Successful)),
		Failed:     make([]FailureResponse, 0, len(b.Failed)),
	}
	for _, r := range b.Successful {
		out.Successful = append(out.Successful, toDecryptResponse(r))
	}
	for _, f := range b.Failed {
		out.Failed = append(out.Failed, FailureResponse{
			MemoryID: f.Request.MemoryID,
			User:     f.Request.UserAddress,
			Kind:     f.Kind,
			Message:  f.Message,
			Retries:  f.Retries,
		})
	}
	return out
}

// IdentityRequest is the JSON form of an access policy.
type IdentityRequest struct {
	Kind      string         `json:"kind"`
	Owner     domain.Address `json:"owner"`
	App       domain.Address `json:"app,omitempty"`
	ExpiresAt time.Time      `json:"expires_at,omitempty"`
	Role      string         `json:"role,omitempty"`
}

// ToIdentity maps the request onto an identity. Structural checks happen
// when the identity is encoded.
func (r IdentityRequest) ToIdentity() (identity.Identity, error) {
	switch r.Kind {
	case "self":
		return identity.Self(r.Owner), nil
	case "app":
		return identity.App(r.Owner, r.App), nil
	case "time_locked":
		return identity.TimeLocked(r.Owner, r.ExpiresAt), nil
	case "role":
		return identity.Role(r.Owner, r.Role), nil
	default:
		return identity.Identity{}, dErrors.New(dErrors.CodeValidation, "kind must be self, app, time_locked or role")
	}
}

type EncryptRequest struct {
	Identity  IdentityRequest `json:"identity"`
	Plaintext []byte          `json:"plaintext"`
	// Store uploads the ciphertext to the blob store instead of returning it.
	Store bool `json:"store"`
}

func (r *EncryptRequest) Validate() error {
	if r.Identity.Owner.IsZero() {
		return dErrors.New(dErrors.CodeValidation, "identity.owner is required")
	}
	_, err := r.Identity.ToIdentity()
	return err
}

type EncryptResponse struct {
	Identity    HexBytes `json:"identity"`
	Ciphertext  []byte   `json:"ciphertext,omitempty"`
	BlobID      string   `json:"blob_id,omitempty"`
	ContentHash HexBytes `json:"content_hash"`
	// BackupKey must be stored by the caller out of band.
	BackupKey []byte `json:"backup_key"`
}

type SweepResponse struct {
	Removed int `json:"removed"`
}
