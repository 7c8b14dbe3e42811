package sui

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CommandOSSLabs/personal-data-wallet-sub010/pkg/domain"
)

func sampleTx() ProgrammableTransaction {
	pkg := domain.MustParseObjectID("0xabc")
	return ProgrammableTransaction{
		Inputs: []CallArg{
			PureBytes([]byte{1, 2, 3}),
			PureAddress(domain.MustParseAddress("0x42")),
			PureString("memory:read"),
			PureU64(1_700_000_000_000),
			PureU8(2),
			ClockArg(),
		},
		Commands: []MoveCall{{
			Package:   pkg,
			Module:    "seal_access",
			Function:  "seal_approve",
			Arguments: []Argument{Input(0), Input(1), Input(2), Input(5)},
		}},
	}
}

func TestTransactionKindRoundTrip(t *testing.T) {
	tx := sampleTx()
	raw := tx.Marshal()

	parsed, err := ParseTransactionKind(raw)
	require.NoError(t, err)
	require.Len(t, parsed.Inputs, 6)
	require.Len(t, parsed.Commands, 1)
	assert.Equal(t, raw, parsed.Marshal())

	id, err := DecodePureBytes(parsed.Inputs[0])
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, id)

	addr, err := DecodePureAddress(parsed.Inputs[1])
	require.NoError(t, err)
	assert.Equal(t, domain.MustParseAddress("0x42"), addr)

	role, err := DecodePureString(parsed.Inputs[2])
	require.NoError(t, err)
	assert.Equal(t, "memory:read", role)

	ts, err := DecodePureU64(parsed.Inputs[3])
	require.NoError(t, err)
	assert.Equal(t, uint64(1_700_000_000_000), ts)

	lvl, err := DecodePureU8(parsed.Inputs[4])
	require.NoError(t, err)
	assert.Equal(t, uint8(2), lvl)

	require.NotNil(t, parsed.Inputs[5].Object)
	assert.Equal(t, domain.ClockObjectID, parsed.Inputs[5].Object.ID)
	assert.False(t, parsed.Inputs[5].Object.Mutable)

	call := parsed.Commands[0]
	assert.Equal(t, "seal_access", call.Module)
	assert.Equal(t, "seal_approve", call.Function)
	assert.Equal(t, []Argument{Input(0), Input(1), Input(2), Input(5)}, call.Arguments)
}

func TestParseTransactionKindRejectsGarbage(t *testing.T) {
	raw := sampleTx().Marshal()

	for name, b := range map[string][]byte{
		"empty":     nil,
		"truncated": raw[:len(raw)-3],
		"trailing":  append(append([]byte(nil), raw...), 0x00),
		"bad kind":  append([]byte{0x02}, raw[1:]...),
	} {
		t.Run(name, func(t *testing.T) {
			_, err := ParseTransactionKind(b)
			assert.ErrorIs(t, err, ErrMalformedTransaction)
		})
	}
}

func TestResolveArg(t *testing.T) {
	tx := sampleTx()
	arg, err := tx.ResolveArg(Input(5))
	require.NoError(t, err)
	assert.NotNil(t, arg.Object)

	_, err = tx.ResolveArg(Input(9))
	assert.ErrorIs(t, err, ErrMalformedTransaction)

	_, err = tx.ResolveArg(Argument{Kind: ArgGasCoin})
	assert.ErrorIs(t, err, ErrMalformedTransaction)
}
