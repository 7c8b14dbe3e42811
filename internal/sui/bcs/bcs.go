// Package bcs frames the fixed wire formats used here (transaction kinds,
// identities, encrypted objects) with go-bcs. Decoding is exact: input left
// over after the value fails.
package bcs

import (
	"errors"
	"fmt"

	gobcs "github.com/fardream/go-bcs/bcs"
)

var ErrTrailingBytes = errors.New("bcs: trailing bytes")

// Marshal encodes v. Enums are structs of pointer fields implementing
// IsBcsEnum, with exactly one field set.
func Marshal(v any) ([]byte, error) {
	return gobcs.Marshal(v)
}

// MustMarshal encodes a value whose shape is fixed at compile time.
func MustMarshal(v any) []byte {
	b, err := gobcs.Marshal(v)
	if err != nil {
		panic(fmt.Sprintf("bcs: marshal %T: %v", v, err))
	}
	return b
}

// Unmarshal decodes b into the value v points to.
func Unmarshal(b []byte, v any) error {
	n, err := gobcs.Unmarshal(b, v)
	if err != nil {
		return fmt.Errorf("bcs: %w", err)
	}
	if n != len(b) {
		return fmt.Errorf("%w: %d", ErrTrailingBytes, len(b)-n)
	}
	return nil
}
