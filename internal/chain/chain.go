// Package chain is the port to the Sui chain: object reads, kind-only
// transaction simulation, and the shared clock.
package chain

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/CommandOSSLabs/personal-data-wallet-sub010/internal/sui"
	"github.com/CommandOSSLabs/personal-data-wallet-sub010/pkg/domain"
)

var (
	ErrObjectNotFound   = errors.New("object not found")
	ErrFunctionNotFound = errors.New("move function not found")
)

// Client is the subset of chain RPC the access-control core needs.
type Client interface {
	GetObject(ctx context.Context, id domain.ObjectID) (*Object, error)
	// SimulateTransaction dry-runs a kind-only transaction as sender. A policy
	// denial is reported in the result, not as an error.
	SimulateTransaction(ctx context.Context, sender domain.Address, txKind []byte) (*SimulationResult, error)
	Now(ctx context.Context) (time.Time, error)
}

// Object is an on-chain object reference.
type Object struct {
	ID                   domain.ObjectID
	Type                 string
	Version              uint64
	Shared               bool
	InitialSharedVersion uint64
}

// SharedArg returns the call argument referencing this shared object immutably.
func (o *Object) SharedArg() sui.CallArg {
	return sui.CallArg{Object: &sui.SharedObjectArg{ID: o.ID, InitialSharedVersion: o.InitialSharedVersion}}
}

// SimulationResult is the outcome of a dry run.
type SimulationResult struct {
	Success bool
	Error   string
}

// AbortError is a Move abort raised by an entry function.
type AbortError struct {
	Module   string
	Function string
	Code     uint64
}

func (e *AbortError) Error() string {
	return fmt.Sprintf("MoveAbort in %s::%s with code %d", e.Module, e.Function, e.Code)
}

// Invocation is the execution context handed to an entry function.
type Invocation struct {
	Sender domain.Address
	Now    time.Time
	Tx     *sui.ProgrammableTransaction
	Call   sui.MoveCall
	// DryRun is set during simulation; entry functions must not persist effects.
	DryRun bool
}

// Arg resolves the i-th argument of the call to its input.
func (inv Invocation) Arg(i int) (sui.CallArg, error) {
	if i >= len(inv.Call.Arguments) {
		return sui.CallArg{}, fmt.Errorf("%w: missing argument %d", sui.ErrMalformedTransaction, i)
	}
	return inv.Tx.ResolveArg(inv.Call.Arguments[i])
}

// EntryFunc executes one Move call.
type EntryFunc func(ctx context.Context, inv Invocation) error

// Binder installs entry functions for a package.
type Binder interface {
	Bind(pkg domain.ObjectID, module, function string, fn EntryFunc)
}
