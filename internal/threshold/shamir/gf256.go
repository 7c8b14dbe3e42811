package shamir

// Arithmetic in GF(2^8) modulo x^8 + x^4 + x^3 + x + 1 with generator 3.
var (
	expTable [510]byte
	logTable [256]byte
)

func init() {
	x := byte(1)
	for i := range 255 {
		expTable[i] = x
		expTable[i+255] = x
		logTable[x] = byte(i)
		x = xtime(x) ^ x
	}
}

// xtime multiplies by x (0x02).
func xtime(b byte) byte {
	if b&0x80 != 0 {
		return b<<1 ^ 0x1b
	}
	return b << 1
}

func mul(a, b byte) byte {
	if a == 0 || b == 0 {
		return 0
	}
	return expTable[int(logTable[a])+int(logTable[b])]
}

// div panics on b == 0; callers guarantee distinct non-zero x values.
func div(a, b byte) byte {
	if b == 0 {
		panic("shamir: division by zero")
	}
	if a == 0 {
		return 0
	}
	return expTable[int(logTable[a])+255-int(logTable[b])]
}
