// Package shamir splits secrets into shares over GF(2^8) so that any
// threshold of them reconstructs the secret and fewer reveal nothing.
package shamir

import (
	"crypto/rand"
	"errors"
	"fmt"
	"io"
)

// MaxShares is bounded by the non-zero elements of GF(2^8).
const MaxShares = 255

var (
	ErrInvalidParameters = errors.New("invalid shamir parameters")
	ErrInvalidShares     = errors.New("invalid shamir shares")
)

// Share is one evaluation of the sharing polynomials at X.
type Share struct {
	X     byte   `json:"x"`
	Value []byte `json:"value"`
}

// Split returns n shares of secret with x = 1..n, any t of which recover it.
func Split(secret []byte, n, t int) ([]Share, error) {
	return SplitWithRand(rand.Reader, secret, n, t)
}

func SplitWithRand(r io.Reader, secret []byte, n, t int) ([]Share, error) {
	if len(secret) == 0 {
		return nil, fmt.Errorf("%w: empty secret", ErrInvalidParameters)
	}
	if t < 1 || t > n || n > MaxShares {
		return nil, fmt.Errorf("%w: n=%d t=%d", ErrInvalidParameters, n, t)
	}

	shares := make([]Share, n)
	for i := range shares {
		shares[i] = Share{X: byte(i + 1), Value: make([]byte, len(secret))}
	}
	coeffs := make([]byte, t)
	for j, b := range secret {
		coeffs[0] = b
		if _, err := io.ReadFull(r, coeffs[1:]); err != nil {
			return nil, fmt.Errorf("sample coefficients: %w", err)
		}
		for i := range shares {
			shares[i].Value[j] = evaluate(coeffs, shares[i].X)
		}
	}
	return shares, nil
}

// evaluate computes the polynomial at x with Horner's rule.
func evaluate(coeffs []byte, x byte) byte {
	var y byte
	for i := len(coeffs) - 1; i >= 0; i-- {
		y = mul(y, x) ^ coeffs[i]
	}
	return y
}

// Combine interpolates the secret at x = 0. Callers must pass at least the
// threshold number of shares; with fewer the result is unrelated to the secret.
func Combine(shares []Share) ([]byte, error) {
	if len(shares) == 0 {
		return nil, fmt.Errorf("%w: no shares", ErrInvalidShares)
	}
	size := len(shares[0].Value)
	seen := make(map[byte]bool, len(shares))
	for _, s := range shares {
		if s.X == 0 || seen[s.X] {
			return nil, fmt.Errorf("%w: zero or duplicate x %d", ErrInvalidShares, s.X)
		}
		if len(s.Value) != size || size == 0 {
			return nil, fmt.Errorf("%w: length mismatch", ErrInvalidShares)
		}
		seen[s.X] = true
	}

	// Lagrange basis at zero: l_i = prod_{j!=i} x_j / (x_j - x_i); subtraction is xor.
	basis := make([]byte, len(shares))
	for i, si := range shares {
		num, den := byte(1), byte(1)
		for j, sj := range shares {
			if i == j {
				continue
			}
			num = mul(num, sj.X)
			den = mul(den, sj.X^si.X)
		}
		basis[i] = div(num, den)
	}

	secret := make([]byte, size)
	for j := range secret {
		var acc byte
		for i, s := range shares {
			acc ^= mul(s.Value[j], basis[i])
		}
		secret[j] = acc
	}
	return secret, nil
}
