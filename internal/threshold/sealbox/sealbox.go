// Package sealbox seals short payloads to an X25519 public key: an ephemeral
// key agreement, HKDF-SHA256, then ChaCha20-Poly1305 with associated data.
package sealbox

import (
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/curve25519"
	"golang.org/x/crypto/hkdf"
)

const KeySize = curve25519.PointSize

var ErrOpen = errors.New("sealbox: cannot open")

// Box is a sealed payload. Ephemeral is the sender's one-time public key.
type Box struct {
	Ephemeral  []byte `json:"ephemeral"`
	Ciphertext []byte `json:"ciphertext"`
}

// KeyPair is an X25519 key pair.
type KeyPair struct {
	Private []byte
	Public  []byte
}

func GenerateKeyPair() (KeyPair, error) {
	return generate(rand.Reader)
}

func generate(r io.Reader) (KeyPair, error) {
	priv := make([]byte, curve25519.ScalarSize)
	if _, err := io.ReadFull(r, priv); err != nil {
		return KeyPair{}, fmt.Errorf("generate x25519 key: %w", err)
	}
	return KeyPairFromPrivate(priv)
}

// KeyPairFromPrivate rebuilds a key pair from a 32-byte scalar.
func KeyPairFromPrivate(priv []byte) (KeyPair, error) {
	pub, err := curve25519.X25519(priv, curve25519.Basepoint)
	if err != nil {
		return KeyPair{}, fmt.Errorf("derive x25519 public key: %w", err)
	}
	return KeyPair{Private: append([]byte(nil), priv...), Public: pub}, nil
}

// Seal encrypts plaintext to recipient, binding aad.
func Seal(recipient, plaintext, aad []byte) (Box, error) {
	eph, err := GenerateKeyPair()
	if err != nil {
		return Box{}, err
	}
	shared, err := curve25519.X25519(eph.Private, recipient)
	if err != nil {
		return Box{}, fmt.Errorf("sealbox: key agreement: %w", err)
	}
	aead, err := newAEAD(shared, eph.Public, recipient)
	if err != nil {
		return Box{}, err
	}
	// Each box uses a fresh ephemeral key, so a zero nonce never repeats under a key.
	nonce := make([]byte, chacha20poly1305.NonceSize)
	return Box{Ephemeral: eph.Public, Ciphertext: aead.Seal(nil, nonce, plaintext, aad)}, nil
}

// Open decrypts box with the recipient key pair.
func Open(recipient KeyPair, box Box, aad []byte) ([]byte, error) {
	if len(box.Ephemeral) != KeySize {
		return nil, ErrOpen
	}
	shared, err := curve25519.X25519(recipient.Private, box.Ephemeral)
	if err != nil {
		return nil, ErrOpen
	}
	aead, err := newAEAD(shared, box.Ephemeral, recipient.Public)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, chacha20poly1305.NonceSize)
	out, err := aead.Open(nil, nonce, box.Ciphertext, aad)
	if err != nil {
		return nil, ErrOpen
	}
	return out, nil
}

func newAEAD(shared, ephemeral, recipient []byte) (cipher.AEAD, error) {
	info := make([]byte, 0, 2*KeySize)
	info = append(info, ephemeral...)
	info = append(info, recipient...)
	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, shared, nil, info), key); err != nil {
		return nil, fmt.Errorf("sealbox: derive key: %w", err)
	}
	return chacha20poly1305.New(key)
}
