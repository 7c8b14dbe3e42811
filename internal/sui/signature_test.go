package sui

import (
	"crypto/ed25519"
	"crypto/rand"
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPersonalMessageDigestDependsOnMessage(t *testing.T) {
	a := PersonalMessageDigest([]byte("hello"))
	b := PersonalMessageDigest([]byte("hello"))
	c := PersonalMessageDigest([]byte("hellp"))
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}

func TestEd25519SignVerify(t *testing.T) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	msg := []byte("Accessing keys of package 0x01")

	sig := SignEd25519(priv, msg)
	parsed, err := ParseSignatureBase64(sig.Base64())
	require.NoError(t, err)

	signer, err := VerifyPersonalMessage(msg, parsed)
	require.NoError(t, err)
	assert.Equal(t, AddressFromPublicKey(SchemeEd25519, priv.Public().(ed25519.PublicKey)), signer)

	_, err = VerifyPersonalMessage([]byte("other message"), parsed)
	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func TestSecp256k1SignVerify(t *testing.T) {
	priv, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	msg := []byte("session challenge")

	sig, err := SignSecp256k1(priv, msg)
	require.NoError(t, err)
	require.Len(t, sig.Raw, 64)
	require.Len(t, sig.PublicKey, 33)

	parsed, err := ParseSignature(sig.Serialize())
	require.NoError(t, err)
	signer, err := VerifyPersonalMessage(msg, parsed)
	require.NoError(t, err)
	assert.Equal(t, AddressFromPublicKey(SchemeSecp256k1, priv.PubKey().SerializeCompressed()), signer)

	tampered := parsed
	tampered.Raw = append([]byte(nil), parsed.Raw...)
	tampered.Raw[10] ^= 0xff
	_, err = VerifyPersonalMessage(msg, tampered)
	assert.Error(t, err)
}

func TestParseSignatureRejects(t *testing.T) {
	_, err := ParseSignature(nil)
	assert.ErrorIs(t, err, ErrMalformedSignature)

	_, err = ParseSignature([]byte{0x05, 1, 2, 3})
	assert.ErrorIs(t, err, ErrUnsupportedScheme)

	_, err = ParseSignature(make([]byte, 1+64+10))
	assert.ErrorIs(t, err, ErrMalformedSignature)

	_, err = ParseSignatureBase64("not base64!!")
	assert.ErrorIs(t, err, ErrMalformedSignature)
}

func TestAddressDiffersByScheme(t *testing.T) {
	pub := make([]byte, 32)
	assert.NotEqual(t, AddressFromPublicKey(SchemeEd25519, pub), AddressFromPublicKey(SchemeSecp256k1, pub))
}
