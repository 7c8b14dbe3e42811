package memchain

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CommandOSSLabs/personal-data-wallet-sub010/internal/chain"
	"github.com/CommandOSSLabs/personal-data-wallet-sub010/internal/sui"
	"github.com/CommandOSSLabs/personal-data-wallet-sub010/pkg/domain"
)

var pkg = domain.MustParseObjectID("0x77")

func callTx(function string, inputs ...sui.CallArg) []byte {
	args := make([]sui.Argument, len(inputs))
	for i := range inputs {
		args[i] = sui.Input(uint16(i))
	}
	return sui.ProgrammableTransaction{
		Inputs:   inputs,
		Commands: []sui.MoveCall{{Package: pkg, Module: "m", Function: function, Arguments: args}},
	}.Marshal()
}

func TestClock(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c := New(WithTime(start))

	now, err := c.Now(context.Background())
	require.NoError(t, err)
	assert.Equal(t, start, now)

	c.Advance(time.Hour)
	now, _ = c.Now(context.Background())
	assert.Equal(t, start.Add(time.Hour), now)

	clock, err := c.GetObject(context.Background(), domain.ClockObjectID)
	require.NoError(t, err)
	assert.True(t, clock.Shared)
	assert.Equal(t, uint64(1), clock.InitialSharedVersion)
}

func TestGetObjectNotFound(t *testing.T) {
	_, err := New().GetObject(context.Background(), domain.MustParseObjectID("0x99"))
	assert.ErrorIs(t, err, chain.ErrObjectNotFound)
}

func TestSimulateAndExecute(t *testing.T) {
	ctx := context.Background()
	c := New()
	var executed, simulated int
	c.Bind(pkg, "m", "ok", func(_ context.Context, inv chain.Invocation) error {
		if inv.DryRun {
			simulated++
		} else {
			executed++
		}
		return nil
	})
	c.Bind(pkg, "m", "abort", func(context.Context, chain.Invocation) error {
		return &chain.AbortError{Module: "m", Function: "abort", Code: 3}
	})
	c.Bind(pkg, "m", "boom", func(context.Context, chain.Invocation) error {
		return errors.New("boom")
	})
	sender := domain.MustParseAddress("0x1")

	res, err := c.SimulateTransaction(ctx, sender, callTx("ok", sui.ClockArg()))
	require.NoError(t, err)
	assert.True(t, res.Success)
	require.NoError(t, c.Execute(ctx, sender, callTx("ok")))
	assert.Equal(t, 1, simulated)
	assert.Equal(t, 1, executed)

	res, err = c.SimulateTransaction(ctx, sender, callTx("abort"))
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "code 3")

	res, err = c.SimulateTransaction(ctx, sender, callTx("missing"))
	require.NoError(t, err)
	assert.False(t, res.Success)

	mutableClock := sui.ClockArg()
	mutableClock.Object.Mutable = true
	res, err = c.SimulateTransaction(ctx, sender, callTx("ok", mutableClock))
	require.NoError(t, err)
	assert.False(t, res.Success)

	_, err = c.SimulateTransaction(ctx, sender, callTx("boom"))
	assert.EqualError(t, err, "boom")

	_, err = c.SimulateTransaction(ctx, sender, []byte{0xff})
	assert.ErrorIs(t, err, sui.ErrMalformedTransaction)
}
