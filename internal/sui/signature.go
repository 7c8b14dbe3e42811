package sui

import (
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/asn1"
	"encoding/base64"
	"errors"
	"fmt"
	"math/big"

	"github.com/btcsuite/btcd/btcec/v2"
	btcecdsa "github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"golang.org/x/crypto/blake2b"

	"github.com/CommandOSSLabs/personal-data-wallet-sub010/internal/sui/bcs"
	"github.com/CommandOSSLabs/personal-data-wallet-sub010/pkg/domain"
)

var (
	ErrMalformedSignature = errors.New("malformed signature")
	ErrInvalidSignature   = errors.New("signature verification failed")
	ErrUnsupportedScheme  = errors.New("unsupported signature scheme")
)

// Scheme is the one-byte signature flag prefixed to serialized signatures.
type Scheme byte

const (
	SchemeEd25519   Scheme = 0x00
	SchemeSecp256k1 Scheme = 0x01
)

func (s Scheme) String() string {
	switch s {
	case SchemeEd25519:
		return "ed25519"
	case SchemeSecp256k1:
		return "secp256k1"
	default:
		return fmt.Sprintf("scheme(%d)", byte(s))
	}
}

func (s Scheme) publicKeySize() int {
	switch s {
	case SchemeEd25519:
		return ed25519.PublicKeySize
	case SchemeSecp256k1:
		return btcec.PubKeyBytesLenCompressed
	default:
		return 0
	}
}

const rawSignatureSize = 64

// personalMessageIntent is [scope=PersonalMessage, version=0, app=Sui].
var personalMessageIntent = []byte{3, 0, 0}

// PersonalMessageDigest is the blake2b-256 digest a wallet signs for msg.
func PersonalMessageDigest(msg []byte) [32]byte {
	payload := append(append([]byte(nil), personalMessageIntent...), bcs.MustMarshal(msg)...)
	return blake2b.Sum256(payload)
}

// AddressFromPublicKey derives the Sui address for a scheme and public key.
func AddressFromPublicKey(scheme Scheme, pub []byte) domain.Address {
	buf := make([]byte, 0, 1+len(pub))
	buf = append(buf, byte(scheme))
	buf = append(buf, pub...)
	return domain.Address(blake2b.Sum256(buf))
}

// Signature is a parsed serialized signature: flag || sig || pubkey.
type Signature struct {
	Scheme    Scheme
	Raw       []byte
	PublicKey []byte
}

// Serialize returns flag || sig || pubkey.
func (s Signature) Serialize() []byte {
	out := make([]byte, 0, 1+len(s.Raw)+len(s.PublicKey))
	out = append(out, byte(s.Scheme))
	out = append(out, s.Raw...)
	return append(out, s.PublicKey...)
}

// Base64 is the wire form wallets return.
func (s Signature) Base64() string {
	return base64.StdEncoding.EncodeToString(s.Serialize())
}

// Signer returns the address that produced the signature.
func (s Signature) Signer() domain.Address {
	return AddressFromPublicKey(s.Scheme, s.PublicKey)
}

// ParseSignature decodes flag || sig || pubkey.
func ParseSignature(b []byte) (Signature, error) {
	if len(b) == 0 {
		return Signature{}, fmt.Errorf("%w: empty", ErrMalformedSignature)
	}
	scheme := Scheme(b[0])
	pkLen := scheme.publicKeySize()
	if pkLen == 0 {
		return Signature{}, fmt.Errorf("%w: flag 0x%02x", ErrUnsupportedScheme, b[0])
	}
	if len(b) != 1+rawSignatureSize+pkLen {
		return Signature{}, fmt.Errorf("%w: %s signature has length %d", ErrMalformedSignature, scheme, len(b))
	}
	return Signature{
		Scheme:    scheme,
		Raw:       append([]byte(nil), b[1:1+rawSignatureSize]...),
		PublicKey: append([]byte(nil), b[1+rawSignatureSize:]...),
	}, nil
}

// ParseSignatureBase64 decodes the base64 wire form.
func ParseSignatureBase64(s string) (Signature, error) {
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return Signature{}, fmt.Errorf("%w: %w", ErrMalformedSignature, err)
	}
	return ParseSignature(b)
}

// VerifyPersonalMessage checks sig over msg and returns the signer address.
func VerifyPersonalMessage(msg []byte, sig Signature) (domain.Address, error) {
	digest := PersonalMessageDigest(msg)
	if err := verifyDigest(digest[:], sig); err != nil {
		return domain.Address{}, err
	}
	return sig.Signer(), nil
}

func verifyDigest(digest []byte, sig Signature) error {
	switch sig.Scheme {
	case SchemeEd25519:
		if !ed25519.Verify(ed25519.PublicKey(sig.PublicKey), digest, sig.Raw) {
			return ErrInvalidSignature
		}
		return nil
	case SchemeSecp256k1:
		pub, err := btcec.ParsePubKey(sig.PublicKey)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrMalformedSignature, err)
		}
		parsed, err := btcecdsa.ParseDERSignature(compactToDER(sig.Raw))
		if err != nil {
			return fmt.Errorf("%w: %w", ErrMalformedSignature, err)
		}
		hash := sha256.Sum256(digest)
		if !parsed.Verify(hash[:], pub) {
			return ErrInvalidSignature
		}
		return nil
	default:
		return ErrUnsupportedScheme
	}
}

// SignEd25519 produces a serialized personal-message signature.
func SignEd25519(priv ed25519.PrivateKey, msg []byte) Signature {
	digest := PersonalMessageDigest(msg)
	return Signature{
		Scheme:    SchemeEd25519,
		Raw:       ed25519.Sign(priv, digest[:]),
		PublicKey: append([]byte(nil), priv.Public().(ed25519.PublicKey)...),
	}
}

// SignSecp256k1 produces a serialized personal-message signature with a
// low-S compact r||s body.
func SignSecp256k1(priv *btcec.PrivateKey, msg []byte) (Signature, error) {
	digest := PersonalMessageDigest(msg)
	hash := sha256.Sum256(digest[:])
	der := btcecdsa.Sign(priv, hash[:]).Serialize()
	raw, err := derToCompact(der)
	if err != nil {
		return Signature{}, err
	}
	return Signature{
		Scheme:    SchemeSecp256k1,
		Raw:       raw,
		PublicKey: priv.PubKey().SerializeCompressed(),
	}, nil
}

type ecdsaSig struct {
	R, S *big.Int
}

func compactToDER(raw []byte) []byte {
	der, err := asn1.Marshal(ecdsaSig{
		R: new(big.Int).SetBytes(raw[:32]),
		S: new(big.Int).SetBytes(raw[32:]),
	})
	if err != nil {
		return nil
	}
	return der
}

func derToCompact(der []byte) ([]byte, error) {
	var sig ecdsaSig
	if _, err := asn1.Unmarshal(der, &sig); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedSignature, err)
	}
	out := make([]byte, rawSignatureSize)
	sig.R.FillBytes(out[:32])
	sig.S.FillBytes(out[32:])
	return out, nil
}
