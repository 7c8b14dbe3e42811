// Package memchain is an in-process chain: a shared clock, shared objects, and
// Go-implemented Move entry functions that can be simulated or executed.
package memchain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/CommandOSSLabs/personal-data-wallet-sub010/internal/chain"
	"github.com/CommandOSSLabs/personal-data-wallet-sub010/internal/sui"
	"github.com/CommandOSSLabs/personal-data-wallet-sub010/pkg/domain"
)

type Chain struct {
	mu      sync.RWMutex
	objects map[domain.ObjectID]*chain.Object
	entries map[string]chain.EntryFunc
	version uint64

	clockMu sync.RWMutex
	fixed   *time.Time

	logger *slog.Logger
}

type Option func(*Chain)

func WithLogger(logger *slog.Logger) Option {
	return func(c *Chain) { c.logger = logger }
}

// WithTime pins the chain clock.
func WithTime(t time.Time) Option {
	return func(c *Chain) { c.fixed = &t }
}

// New creates a chain holding only the clock object.
func New(opts ...Option) *Chain {
	c := &Chain{
		objects: make(map[domain.ObjectID]*chain.Object),
		entries: make(map[string]chain.EntryFunc),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.objects[domain.ClockObjectID] = &chain.Object{
		ID:                   domain.ClockObjectID,
		Type:                 "0x2::clock::Clock",
		Version:              1,
		Shared:               true,
		InitialSharedVersion: 1,
	}
	c.version = 1
	return c
}

// SetTime pins the chain clock to t.
func (c *Chain) SetTime(t time.Time) {
	c.clockMu.Lock()
	defer c.clockMu.Unlock()
	c.fixed = &t
}

// Advance moves a pinned clock forward, pinning it to now+d if unpinned.
func (c *Chain) Advance(d time.Duration) {
	c.clockMu.Lock()
	defer c.clockMu.Unlock()
	base := time.Now()
	if c.fixed != nil {
		base = *c.fixed
	}
	t := base.Add(d)
	c.fixed = &t
}

// Clock is Now without the context, usable as a clock function.
func (c *Chain) Clock() time.Time {
	c.clockMu.RLock()
	defer c.clockMu.RUnlock()
	if c.fixed != nil {
		return *c.fixed
	}
	return time.Now()
}

func (c *Chain) Now(_ context.Context) (time.Time, error) {
	return c.Clock(), nil
}

// CreateSharedObject publishes a shared object and returns its reference.
func (c *Chain) CreateSharedObject(id domain.ObjectID, typ string) *chain.Object {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.version++
	obj := &chain.Object{ID: id, Type: typ, Version: c.version, Shared: true, InitialSharedVersion: c.version}
	c.objects[id] = obj
	return obj
}

func (c *Chain) GetObject(_ context.Context, id domain.ObjectID) (*chain.Object, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	obj, ok := c.objects[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", chain.ErrObjectNotFound, id)
	}
	cp := *obj
	return &cp, nil
}

func entryKey(pkg domain.ObjectID, module, function string) string {
	return pkg.String() + "::" + module + "::" + function
}

// Bind implements chain.Binder.
func (c *Chain) Bind(pkg domain.ObjectID, module, function string, fn chain.EntryFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[entryKey(pkg, module, function)] = fn
}

// SimulateTransaction dry-runs txKind. Aborts and missing objects are
// reported as an unsuccessful result.
func (c *Chain) SimulateTransaction(ctx context.Context, sender domain.Address, txKind []byte) (*chain.SimulationResult, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.run(ctx, sender, txKind, true)
}

// Execute applies txKind as sender. A failed execution returns the abort.
func (c *Chain) Execute(ctx context.Context, sender domain.Address, txKind []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	res, err := c.run(ctx, sender, txKind, false)
	if err != nil {
		return err
	}
	if !res.Success {
		return &ExecutionError{Message: res.Error}
	}
	return nil
}

// ExecutionError is a failed Execute.
type ExecutionError struct {
	Message string
}

func (e *ExecutionError) Error() string { return "execution failed: " + e.Message }

func (c *Chain) run(ctx context.Context, sender domain.Address, txKind []byte, dryRun bool) (*chain.SimulationResult, error) {
	tx, err := sui.ParseTransactionKind(txKind)
	if err != nil {
		return nil, err
	}
	for i, in := range tx.Inputs {
		if in.Object == nil {
			continue
		}
		obj, ok := c.objects[in.Object.ID]
		if !ok {
			return failed(fmt.Sprintf("input %d: object %s not found", i, in.Object.ID)), nil
		}
		if !obj.Shared || obj.InitialSharedVersion != in.Object.InitialSharedVersion {
			return failed(fmt.Sprintf("input %d: object %s is not shared at version %d", i, in.Object.ID, in.Object.InitialSharedVersion)), nil
		}
		if in.Object.ID == domain.ClockObjectID && in.Object.Mutable {
			return failed("clock must be passed immutably"), nil
		}
	}

	now := c.Clock()
	for _, call := range tx.Commands {
		fn, ok := c.entries[entryKey(call.Package, call.Module, call.Function)]
		if !ok {
			return failed(fmt.Sprintf("%s: %s::%s::%s", chain.ErrFunctionNotFound, call.Package, call.Module, call.Function)), nil
		}
		inv := chain.Invocation{Sender: sender, Now: now, Tx: tx, Call: call, DryRun: dryRun}
		if err := fn(ctx, inv); err != nil {
			var abort *chain.AbortError
			if errors.As(err, &abort) {
				c.logger.DebugContext(ctx, "move abort",
					"module", abort.Module,
					"function", abort.Function,
					"code", abort.Code,
					"dry_run", dryRun,
				)
				return failed(abort.Error()), nil
			}
			return nil, err
		}
	}
	return &chain.SimulationResult{Success: true}, nil
}

func failed(msg string) *chain.SimulationResult {
	return &chain.SimulationResult{Success: false, Error: msg}
}
