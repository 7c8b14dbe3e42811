//go:build go1.18

package domain

import (
	"testing"
)

// FuzzParseAddress tests that parsing never panics on arbitrary input
// and always returns either a valid address or an error.
func FuzzParseAddress(f *testing.F) {
	f.Add("")
	f.Add("0x6")
	f.Add("0x0000000000000000000000000000000000000000000000000000000000000000")
	f.Add("not-an-address")
	f.Add("'; DROP TABLE users;--")
	f.Add(string([]byte{0x00, 0x01, 0x02}))
	f.Add("0x1\x00suffix")

	f.Fuzz(func(t *testing.T, input string) {
		addr, err := ParseAddress(input)
		if err != nil {
			return
		}
		roundTrip, err := ParseAddress(addr.String())
		if err != nil {
			t.Errorf("valid address failed round-trip: %v", err)
		}
		if roundTrip != addr {
			t.Error("round-trip changed address value")
		}
	})
}

// FuzzParseAddressAndObjectID ensures both id kinds share validation.
func FuzzParseAddressAndObjectID(f *testing.F) {
	f.Add("0xabc")
	f.Add("")
	f.Add("0xzz")

	f.Fuzz(func(t *testing.T, input string) {
		a, errAddr := ParseAddress(input)
		o, errObj := ParseObjectID(input)
		if (errAddr == nil) != (errObj == nil) {
			t.Fatal("inconsistent parsing across id types")
		}
		if errAddr == nil && [32]byte(a) != [32]byte(o) {
			t.Fatal("inconsistent value across id types")
		}
	})
}
