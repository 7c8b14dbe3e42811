// Package threshold encrypts data to an identity under a weighted set of key
// servers and decrypts it once enough servers approve the caller.
package threshold

import (
	"bytes"
	"context"
	"crypto/rand"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/crypto/chacha20poly1305"

	"github.com/CommandOSSLabs/personal-data-wallet-sub010/internal/identity"
	"github.com/CommandOSSLabs/personal-data-wallet-sub010/internal/platform/logger"
	"github.com/CommandOSSLabs/personal-data-wallet-sub010/internal/session"
	"github.com/CommandOSSLabs/personal-data-wallet-sub010/internal/threshold/sealbox"
	"github.com/CommandOSSLabs/personal-data-wallet-sub010/internal/threshold/shamir"
	"github.com/CommandOSSLabs/personal-data-wallet-sub010/pkg/domain"
	"github.com/CommandOSSLabs/personal-data-wallet-sub010/pkg/platform/sentinel"
)

const (
	dataKeySize = chacha20poly1305.KeySize
	nonceSize   = chacha20poly1305.NonceSizeX
)

// FetchRequest is a decryption attempt handed to the backend.
type FetchRequest struct {
	Header      Header
	ApprovalTx  []byte
	Certificate session.Certificate
	// EncKey is the requester's ephemeral X25519 key shares are resealed to.
	EncKey []byte
	// RequestSignature is the session key's signature over (ApprovalTx, EncKey).
	RequestSignature []byte
}

// KeyRequest is the slice of a FetchRequest sent to one key server.
type KeyRequest struct {
	PackageID        domain.ObjectID     `json:"package_id"`
	Identity         []byte              `json:"identity"`
	Shares           []SealedShare       `json:"shares"`
	ApprovalTx       []byte              `json:"approval_tx"`
	Certificate      session.Certificate `json:"certificate"`
	EncKey           []byte              `json:"enc_key"`
	RequestSignature []byte              `json:"request_signature"`
}

// For builds the request for serverID, carrying only that server's shares.
func (r FetchRequest) For(serverID string) KeyRequest {
	kr := KeyRequest{
		PackageID:        r.Header.PackageID,
		Identity:         r.Header.Identity,
		ApprovalTx:       r.ApprovalTx,
		Certificate:      r.Certificate,
		EncKey:           r.EncKey,
		RequestSignature: r.RequestSignature,
	}
	for _, s := range r.Header.Servers {
		if s.ServerID == serverID {
			kr.Shares = s.Shares
		}
	}
	return kr
}

// KeyResponse carries one server's shares resealed to the request's EncKey.
type KeyResponse struct {
	ServerID string        `json:"server_id"`
	Shares   []SealedShare `json:"shares"`
}

// Backend reaches the key servers. Implementations return responses worth at
// least the header threshold, or a *QuorumError / *ServerError.
type Backend interface {
	FetchShares(ctx context.Context, req FetchRequest) ([]KeyResponse, error)
}

// EncryptResult holds the ciphertext and the symmetric backup key. The backup
// key must be stored out of band and never logged.
type EncryptResult struct {
	Ciphertext []byte
	BackupKey  []byte
}

func (r EncryptResult) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("ciphertext_len", len(r.Ciphertext)),
		logger.Redacted("backup_key"),
	)
}

type Client struct {
	cfg     Config
	backend Backend
	logger  *slog.Logger
	now     func() time.Time
}

type Option func(*Client)

func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

// NewClient validates cfg. Encryption uses cfg alone; backend is only
// consulted for decryption.
func NewClient(cfg Config, backend Backend, opts ...Option) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	c := &Client{cfg: cfg, backend: backend, logger: slog.Default(), now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Client) Config() Config { return c.cfg }

// Encrypt seals plaintext so that only a requester approved for id by at
// least Threshold weight of servers can recover it. No network round-trip.
func (c *Client) Encrypt(ctx context.Context, id []byte, plaintext []byte) (*EncryptResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	pkg := c.cfg.PackageID
	if len(id) <= len(pkg) || !bytes.HasPrefix(id, pkg[:]) {
		return nil, fmt.Errorf("%w: identity is not under package %s", identity.ErrInvalidIdentity, pkg)
	}

	dataKey := make([]byte, dataKeySize)
	if _, err := rand.Read(dataKey); err != nil {
		return nil, fmt.Errorf("generate data key: %w", err)
	}
	shares, err := shamir.Split(dataKey, c.cfg.TotalWeight(), c.cfg.Threshold)
	if err != nil {
		return nil, err
	}

	header := Header{PackageID: pkg, Identity: append([]byte(nil), id...), Threshold: c.cfg.Threshold}
	next := 0
	for _, srv := range c.cfg.Servers {
		ss := ServerShares{ServerID: srv.ID}
		for range srv.Weight {
			share := shares[next]
			next++
			box, err := sealbox.Seal(srv.PublicKey, share.Value, ShareAAD(pkg, id, srv.ID, share.X))
			if err != nil {
				return nil, fmt.Errorf("seal share for %s: %w", srv.ID, err)
			}
			ss.Shares = append(ss.Shares, SealedShare{X: share.X, Box: box})
		}
		header.Servers = append(header.Servers, ss)
	}

	obj := encryptedObject{header: header, headerRaw: header.marshal(), nonce: make([]byte, nonceSize)}
	if _, err := rand.Read(obj.nonce); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}
	aead, err := chacha20poly1305.NewX(dataKey)
	if err != nil {
		return nil, err
	}
	obj.ciphertext = aead.Seal(nil, obj.nonce, plaintext, obj.headerRaw)
	return &EncryptResult{Ciphertext: obj.marshal(), BackupKey: dataKey}, nil
}

// Inspect parses the public header of an encrypted object.
func (c *Client) Inspect(ciphertext []byte) (Header, error) {
	obj, err := parseObject(ciphertext)
	if err != nil {
		return Header{}, err
	}
	return obj.header, nil
}

// Decrypt recovers the plaintext with a signed session key and the approval
// transaction each server simulates before releasing its shares.
func (c *Client) Decrypt(ctx context.Context, ciphertext []byte, key *session.Key, approvalTx []byte) ([]byte, error) {
	if !key.IsSigned() {
		return nil, ErrSignatureNotSet
	}
	if key.IsExpired(c.now()) {
		return nil, fmt.Errorf("%w: %w", ErrSignatureRejected, sentinel.ErrExpired)
	}
	obj, err := parseObject(ciphertext)
	if err != nil {
		return nil, err
	}
	h := obj.header
	if h.PackageID != key.PackageID {
		return nil, fmt.Errorf("%w: ciphertext package %s, session package %s", ErrPackageMismatch, h.PackageID, key.PackageID)
	}

	eph, err := sealbox.GenerateKeyPair()
	if err != nil {
		return nil, err
	}
	responses, err := c.backend.FetchShares(ctx, FetchRequest{
		Header:           h,
		ApprovalTx:       approvalTx,
		Certificate:      key.Certificate(),
		EncKey:           eph.Public,
		RequestSignature: key.SignRequest(approvalTx, eph.Public),
	})
	if err != nil {
		return nil, MapError(err)
	}

	shares, failures := c.openShares(ctx, h, eph, responses)
	if len(shares) < h.Threshold {
		return nil, MapError(&QuorumError{Threshold: h.Threshold, Weight: len(shares), Failures: failures})
	}
	dataKey, err := shamir.Combine(shares[:h.Threshold])
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrThresholdNotMet, err)
	}
	plaintext, err := openDEM(dataKey, obj)
	if err != nil {
		return nil, fmt.Errorf("%w: recovered key does not authenticate the ciphertext", ErrThresholdNotMet)
	}
	return plaintext, nil
}

// openShares unseals released shares, keeping only indices the header assigns
// to the responding server.
func (c *Client) openShares(ctx context.Context, h Header, eph sealbox.KeyPair, responses []KeyResponse) ([]shamir.Share, []*ServerError) {
	owned := make(map[byte]string)
	for _, s := range h.Servers {
		for _, sh := range s.Shares {
			owned[sh.X] = s.ServerID
		}
	}
	var (
		shares   []shamir.Share
		failures []*ServerError
		seen     = make(map[byte]bool)
	)
	for _, resp := range responses {
		for _, sh := range resp.Shares {
			if owned[sh.X] != resp.ServerID || seen[sh.X] {
				failures = append(failures, &ServerError{ServerID: resp.ServerID, Code: CodeInternal, Message: "share index not owned by server"})
				continue
			}
			value, err := sealbox.Open(eph, sh.Box, ShareAAD(h.PackageID, h.Identity, resp.ServerID, sh.X))
			if err != nil {
				c.logger.WarnContext(ctx, "discarding unreadable share", "server", resp.ServerID, "x", sh.X)
				failures = append(failures, &ServerError{ServerID: resp.ServerID, Code: CodeInternal, Message: "share does not open"})
				continue
			}
			seen[sh.X] = true
			shares = append(shares, shamir.Share{X: sh.X, Value: value})
		}
	}
	return shares, failures
}

// DecryptWithBackupKey recovers plaintext without any key server.
func (c *Client) DecryptWithBackupKey(ciphertext, backupKey []byte) ([]byte, error) {
	obj, err := parseObject(ciphertext)
	if err != nil {
		return nil, err
	}
	if len(backupKey) != dataKeySize {
		return nil, fmt.Errorf("%w: expected %d bytes", ErrInvalidBackupKey, dataKeySize)
	}
	plaintext, err := openDEM(backupKey, obj)
	if err != nil {
		return nil, ErrInvalidBackupKey
	}
	return plaintext, nil
}

func openDEM(key []byte, obj encryptedObject) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, err
	}
	return aead.Open(nil, obj.nonce, obj.ciphertext, obj.headerRaw)
}
