package session

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"time"

	"github.com/CommandOSSLabs/personal-data-wallet-sub010/internal/sui"
	"github.com/CommandOSSLabs/personal-data-wallet-sub010/pkg/domain"
)

var (
	ErrInvalidCertificate = errors.New("invalid session certificate")
	ErrCertificateExpired = errors.New("session certificate expired")
)

// Certificate is what a key server needs to check that a session key was
// authorized by the wallet at Address.
type Certificate struct {
	Address          domain.Address  `json:"user"`
	PackageID        domain.ObjectID `json:"package_id"`
	TTLMinutes       int             `json:"ttl_min"`
	CreatedAt        time.Time       `json:"creation_time"`
	SessionPublicKey []byte          `json:"session_vk"`
	// Signature is the base64 wallet signature over the challenge.
	Signature string `json:"signature"`
}

func (c Certificate) ExpiresAt() time.Time {
	return c.CreatedAt.Add(time.Duration(c.TTLMinutes) * time.Minute)
}

// Verify checks the wallet signature and expiry at now.
func (c Certificate) Verify(now time.Time) error {
	if len(c.SessionPublicKey) != ed25519.PublicKeySize {
		return fmt.Errorf("%w: session key has length %d", ErrInvalidCertificate, len(c.SessionPublicKey))
	}
	if c.TTLMinutes < 1 || c.TTLMinutes > MaxTTLMinutes {
		return fmt.Errorf("%w: ttl %d out of range", ErrInvalidCertificate, c.TTLMinutes)
	}
	if now.Before(c.CreatedAt) {
		return fmt.Errorf("%w: created in the future", ErrInvalidCertificate)
	}
	if !now.Before(c.ExpiresAt()) {
		return ErrCertificateExpired
	}
	sig, err := sui.ParseSignatureBase64(c.Signature)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidCertificate, err)
	}
	msg := ChallengeMessage(c.PackageID, c.TTLMinutes, c.CreatedAt, c.SessionPublicKey)
	signer, err := sui.VerifyPersonalMessage(msg, sig)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidCertificate, err)
	}
	if signer != c.Address {
		return fmt.Errorf("%w: signed by %s, not %s", ErrInvalidCertificate, signer, c.Address)
	}
	return nil
}

// VerifyRequest checks a fetch-key request signature made by the session key.
func (c Certificate) VerifyRequest(txKind, encKey, sig []byte) error {
	if len(c.SessionPublicKey) != ed25519.PublicKeySize {
		return ErrInvalidCertificate
	}
	if !ed25519.Verify(ed25519.PublicKey(c.SessionPublicKey), RequestMessage(txKind, encKey), sig) {
		return fmt.Errorf("%w: request signature", ErrInvalidCertificate)
	}
	return nil
}
