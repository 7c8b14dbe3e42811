package domain

import (
	"encoding/hex"
	"strings"

	dErrors "github.com/CommandOSSLabs/personal-data-wallet-sub010/pkg/domain-errors"
)

// AddressLength is the byte length of Sui addresses and object ids.
const AddressLength = 32

// Address is a Sui account address.
type Address [AddressLength]byte

// ObjectID identifies an on-chain object or Move package.
type ObjectID [AddressLength]byte

// ClockObjectID is the well-known shared Clock object (0x6).
var ClockObjectID = ObjectID{31: 0x6}

// ParseAddress parses a 0x-prefixed hex address. Short forms are left-padded,
// so "0x6" parses to the clock address.
func ParseAddress(s string) (Address, error) {
	b, err := parseHex32(s, "address")
	if err != nil {
		return Address{}, err
	}
	return Address(b), nil
}

// ParseObjectID parses a 0x-prefixed hex object id.
func ParseObjectID(s string) (ObjectID, error) {
	b, err := parseHex32(s, "object id")
	if err != nil {
		return ObjectID{}, err
	}
	return ObjectID(b), nil
}

// MustParseAddress panics on invalid input. Intended for constants and tests.
func MustParseAddress(s string) Address {
	a, err := ParseAddress(s)
	if err != nil {
		panic(err)
	}
	return a
}

// MustParseObjectID panics on invalid input. Intended for constants and tests.
func MustParseObjectID(s string) ObjectID {
	id, err := ParseObjectID(s)
	if err != nil {
		panic(err)
	}
	return id
}

func parseHex32(s, what string) ([AddressLength]byte, error) {
	var out [AddressLength]byte
	if !strings.HasPrefix(s, "0x") && !strings.HasPrefix(s, "0X") {
		return out, dErrors.New(dErrors.CodeInvalidInput, what+" must be 0x-prefixed hex")
	}
	digits := s[2:]
	if len(digits) == 0 || len(digits) > 2*AddressLength {
		return out, dErrors.New(dErrors.CodeInvalidInput, what+" has invalid length")
	}
	if len(digits)%2 == 1 {
		digits = "0" + digits
	}
	raw, err := hex.DecodeString(digits)
	if err != nil {
		return out, dErrors.New(dErrors.CodeInvalidInput, what+" is not valid hex")
	}
	copy(out[AddressLength-len(raw):], raw)
	return out, nil
}

// String returns the canonical 0x-prefixed, zero-padded lowercase form.
func (a Address) String() string { return "0x" + hex.EncodeToString(a[:]) }

// IsZero reports whether the address is unset.
func (a Address) IsZero() bool { return a == Address{} }

// Bytes returns a copy of the raw address bytes.
func (a Address) Bytes() []byte { return append([]byte(nil), a[:]...) }

func (a Address) MarshalText() ([]byte, error) { return []byte(a.String()), nil }

func (a *Address) UnmarshalText(text []byte) error {
	parsed, err := ParseAddress(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

func (id ObjectID) String() string { return "0x" + hex.EncodeToString(id[:]) }

func (id ObjectID) IsZero() bool { return id == ObjectID{} }

func (id ObjectID) Bytes() []byte { return append([]byte(nil), id[:]...) }

func (id ObjectID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }

func (id *ObjectID) UnmarshalText(text []byte) error {
	parsed, err := ParseObjectID(string(text))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}
