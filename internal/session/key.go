package session

import (
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"io"
	"time"

	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/hkdf"

	"github.com/CommandOSSLabs/personal-data-wallet-sub010/internal/sui"
	"github.com/CommandOSSLabs/personal-data-wallet-sub010/pkg/domain"
)

// Subject identifies the single live session key slot.
type Subject struct {
	Address   domain.Address
	PackageID domain.ObjectID
}

// Key is the canonical string form, also the tie-breaker for eviction order.
func (s Subject) Key() string {
	return s.Address.String() + ":" + s.PackageID.String()
}

// State is the session key lifecycle position.
type State int

const (
	StateUninitialized State = iota
	StateChallenged
	StateSigned
	StateExpired
)

func (s State) String() string {
	switch s {
	case StateChallenged:
		return "challenged"
	case StateSigned:
		return "signed"
	case StateExpired:
		return "expired"
	default:
		return "uninitialized"
	}
}

// Key is a short-lived credential bound to (address, package, ttl). It is
// usable for decryption once a wallet signature over Challenge is attached.
type Key struct {
	Address    domain.Address
	PackageID  domain.ObjectID
	TTLMinutes int
	CreatedAt  time.Time
	Challenge  []byte
	Signature  *sui.Signature

	priv ed25519.PrivateKey
}

func (k *Key) Subject() Subject { return Subject{Address: k.Address, PackageID: k.PackageID} }

func (k *Key) TTL() time.Duration { return time.Duration(k.TTLMinutes) * time.Minute }

func (k *Key) ExpiresAt() time.Time { return k.CreatedAt.Add(k.TTL()) }

func (k *Key) IsSigned() bool { return k != nil && k.Signature != nil }

// IsExpired reports now >= CreatedAt + TTL.
func (k *Key) IsExpired(now time.Time) bool { return !now.Before(k.ExpiresAt()) }

// IsValid reports whether the key may be used for decryption at now.
func (k *Key) IsValid(now time.Time) bool { return k.IsSigned() && !k.IsExpired(now) }

func (k *Key) State(now time.Time) State {
	switch {
	case k == nil:
		return StateUninitialized
	case k.IsExpired(now):
		return StateExpired
	case k.IsSigned():
		return StateSigned
	default:
		return StateChallenged
	}
}

// SessionPublicKey is the ephemeral key the wallet signature certifies.
func (k *Key) SessionPublicKey() ed25519.PublicKey {
	return k.priv.Public().(ed25519.PublicKey)
}

// SignRequest signs a key-server fetch request with the ephemeral key.
func (k *Key) SignRequest(txKind, encKey []byte) []byte {
	return ed25519.Sign(k.priv, RequestMessage(txKind, encKey))
}

// Certificate is the public part of a signed key presented to key servers.
func (k *Key) Certificate() Certificate {
	c := Certificate{
		Address:          k.Address,
		PackageID:        k.PackageID,
		TTLMinutes:       k.TTLMinutes,
		CreatedAt:        k.CreatedAt,
		SessionPublicKey: append([]byte(nil), k.SessionPublicKey()...),
	}
	if k.Signature != nil {
		c.Signature = k.Signature.Base64()
	}
	return c
}

func (k *Key) clone() *Key {
	cp := *k
	cp.Challenge = append([]byte(nil), k.Challenge...)
	if k.Signature != nil {
		sig := *k.Signature
		cp.Signature = &sig
	}
	return &cp
}

func (k *Key) record() Record {
	r := Record{Address: k.Address, PackageID: k.PackageID, TTLMinutes: k.TTLMinutes, CreatedAt: k.CreatedAt}
	if k.Signature != nil {
		r.Signature = k.Signature.Serialize()
	}
	return r
}

const derivationSalt = "pdw-session-key-v1"

// deriveKey builds the key for subject at createdAt. The ephemeral signing
// key is a function of (seed, subject, createdAt, ttl), so the challenge is
// re-derivable by any manager sharing the seed.
func deriveKey(seed []byte, subject Subject, createdAt time.Time, ttlMinutes int) (*Key, error) {
	info := make([]byte, 0, 32+32+8+4)
	info = append(info, subject.Address[:]...)
	info = append(info, subject.PackageID[:]...)
	info = binary.LittleEndian.AppendUint64(info, uint64(createdAt.UnixMilli()))
	info = binary.LittleEndian.AppendUint32(info, uint32(ttlMinutes))

	keySeed := make([]byte, ed25519.SeedSize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, seed, []byte(derivationSalt), info), keySeed); err != nil {
		return nil, fmt.Errorf("derive session key: %w", err)
	}
	priv := ed25519.NewKeyFromSeed(keySeed)

	k := &Key{
		Address:    subject.Address,
		PackageID:  subject.PackageID,
		TTLMinutes: ttlMinutes,
		CreatedAt:  createdAt,
		priv:       priv,
	}
	k.Challenge = ChallengeMessage(subject.PackageID, ttlMinutes, createdAt, k.SessionPublicKey())
	return k, nil
}

// ChallengeMessage is the personal message a wallet signs to certify a session key.
func ChallengeMessage(pkg domain.ObjectID, ttlMinutes int, createdAt time.Time, sessionPub []byte) []byte {
	return fmt.Appendf(nil, "Accessing keys of package %s for %d mins from %s, session key %s",
		pkg, ttlMinutes, createdAt.UTC().Format(time.RFC3339), base64.StdEncoding.EncodeToString(sessionPub))
}

const requestDomain = "pdw-fetch-key"

// RequestMessage is what a session key signs for one fetch-key request.
func RequestMessage(txKind, encKey []byte) []byte {
	h, _ := blake2b.New256(nil)
	h.Write([]byte(requestDomain))
	h.Write(txKind)
	h.Write(encKey)
	return h.Sum(nil)
}
