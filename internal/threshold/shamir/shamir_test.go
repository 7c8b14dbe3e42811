package shamir

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestFieldArithmetic(t *testing.T) {
	assert.Equal(t, byte(0xc1), mul(0x57, 0x83), "FIPS-197 multiplication example")
	assert.Equal(t, byte(0xfe), mul(0x57, 0x13))
	for a := 1; a < 256; a++ {
		assert.Equal(t, byte(1), mul(byte(a), div(1, byte(a))), "inverse of %d", a)
	}
}

func TestSplitCombine(t *testing.T) {
	secret := []byte("thirty-two byte data key for dem")
	shares, err := Split(secret, 5, 3)
	require.NoError(t, err)
	require.Len(t, shares, 5)

	t.Run("any threshold subset recovers", func(t *testing.T) {
		for _, subset := range [][]int{{0, 1, 2}, {2, 3, 4}, {0, 2, 4}, {4, 1, 3}} {
			picked := make([]Share, 0, len(subset))
			for _, i := range subset {
				picked = append(picked, shares[i])
			}
			got, err := Combine(picked)
			require.NoError(t, err)
			assert.Equal(t, secret, got, "subset %v", subset)
		}
	})

	t.Run("below threshold does not recover", func(t *testing.T) {
		got, err := Combine(shares[:2])
		require.NoError(t, err)
		assert.NotEqual(t, secret, got)
	})

	t.Run("duplicate x rejected", func(t *testing.T) {
		_, err := Combine([]Share{shares[0], shares[0]})
		assert.ErrorIs(t, err, ErrInvalidShares)
	})
}

func TestSplitRejectsBadParameters(t *testing.T) {
	for _, tc := range []struct{ n, t int }{{3, 0}, {2, 3}, {256, 2}} {
		_, err := Split([]byte{1}, tc.n, tc.t)
		assert.ErrorIs(t, err, ErrInvalidParameters, "n=%d t=%d", tc.n, tc.t)
	}
	_, err := Split(nil, 3, 2)
	assert.ErrorIs(t, err, ErrInvalidParameters)
}

func TestSplitCombineProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		secret := rapid.SliceOfN(rapid.Byte(), 1, 64).Draw(t, "secret")
		n := rapid.IntRange(1, 20).Draw(t, "n")
		k := rapid.IntRange(1, n).Draw(t, "t")
		shares, err := Split(secret, n, k)
		if err != nil {
			t.Fatalf("split: %v", err)
		}
		perm := rapid.Permutation(shares).Draw(t, "perm")
		got, err := Combine(perm[:k])
		if err != nil {
			t.Fatalf("combine: %v", err)
		}
		if !bytes.Equal(secret, got) {
			t.Fatalf("recovered %x, want %x", got, secret)
		}
	})
}
