// Package wallet provides personal-message signers standing in for a user's
// wallet.
package wallet

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"

	"github.com/btcsuite/btcd/btcec/v2"

	"github.com/CommandOSSLabs/personal-data-wallet-sub010/internal/sui"
	"github.com/CommandOSSLabs/personal-data-wallet-sub010/pkg/domain"
)

var ErrUnknownAddress = errors.New("no signer for address")

// Signer signs personal messages for one address. Implementations are
// invoked once per session signing event.
type Signer interface {
	Address() domain.Address
	SignPersonalMessage(ctx context.Context, msg []byte) (sui.Signature, error)
}

// Ed25519 is an in-process ed25519 wallet.
type Ed25519 struct {
	priv ed25519.PrivateKey
	addr domain.Address
}

func NewEd25519(priv ed25519.PrivateKey) *Ed25519 {
	pub := priv.Public().(ed25519.PublicKey)
	return &Ed25519{priv: priv, addr: sui.AddressFromPublicKey(sui.SchemeEd25519, pub)}
}

// NewEd25519FromSeed derives a wallet from a 32-byte seed.
func NewEd25519FromSeed(seed []byte) (*Ed25519, error) {
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("ed25519 seed must be %d bytes", ed25519.SeedSize)
	}
	return NewEd25519(ed25519.NewKeyFromSeed(seed)), nil
}

func GenerateEd25519() (*Ed25519, error) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, err
	}
	return NewEd25519(priv), nil
}

func (w *Ed25519) Address() domain.Address { return w.addr }

// Seed exports the private seed as hex.
func (w *Ed25519) Seed() string { return hex.EncodeToString(w.priv.Seed()) }

func (w *Ed25519) SignPersonalMessage(ctx context.Context, msg []byte) (sui.Signature, error) {
	if err := ctx.Err(); err != nil {
		return sui.Signature{}, err
	}
	return sui.SignEd25519(w.priv, msg), nil
}

// Secp256k1 is an in-process secp256k1 wallet.
type Secp256k1 struct {
	priv *btcec.PrivateKey
	addr domain.Address
}

func NewSecp256k1(priv *btcec.PrivateKey) *Secp256k1 {
	return &Secp256k1{
		priv: priv,
		addr: sui.AddressFromPublicKey(sui.SchemeSecp256k1, priv.PubKey().SerializeCompressed()),
	}
}

// NewSecp256k1FromBytes loads a 32-byte private scalar.
func NewSecp256k1FromBytes(b []byte) (*Secp256k1, error) {
	if len(b) != btcec.PrivKeyBytesLen {
		return nil, fmt.Errorf("secp256k1 key must be %d bytes", btcec.PrivKeyBytesLen)
	}
	priv, _ := btcec.PrivKeyFromBytes(b)
	return NewSecp256k1(priv), nil
}

func GenerateSecp256k1() (*Secp256k1, error) {
	priv, err := btcec.NewPrivateKey()
	if err != nil {
		return nil, err
	}
	return NewSecp256k1(priv), nil
}

func (w *Secp256k1) Address() domain.Address { return w.addr }

// PrivateKey exports the private scalar as hex.
func (w *Secp256k1) PrivateKey() string { return hex.EncodeToString(w.priv.Serialize()) }

func (w *Secp256k1) SignPersonalMessage(ctx context.Context, msg []byte) (sui.Signature, error) {
	if err := ctx.Err(); err != nil {
		return sui.Signature{}, err
	}
	return sui.SignSecp256k1(w.priv, msg)
}

// Keyring holds signers by address.
type Keyring struct {
	mu      sync.RWMutex
	signers map[domain.Address]Signer
}

func NewKeyring(signers ...Signer) *Keyring {
	k := &Keyring{signers: make(map[domain.Address]Signer)}
	for _, s := range signers {
		k.Add(s)
	}
	return k
}

func (k *Keyring) Add(s Signer) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.signers[s.Address()] = s
}

func (k *Keyring) Get(addr domain.Address) (Signer, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	s, ok := k.signers[addr]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownAddress, addr)
	}
	return s, nil
}

// Addresses lists the keyring's addresses in no particular order.
func (k *Keyring) Addresses() []domain.Address {
	k.mu.RLock()
	defer k.mu.RUnlock()
	out := make([]domain.Address, 0, len(k.signers))
	for a := range k.signers {
		out = append(out, a)
	}
	return out
}
