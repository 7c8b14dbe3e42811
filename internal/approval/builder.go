// Package approval builds and parses the simulate-only transaction that key
// servers execute before releasing decryption shares.
package approval

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/CommandOSSLabs/personal-data-wallet-sub010/internal/sui"
	"github.com/CommandOSSLabs/personal-data-wallet-sub010/pkg/domain"
)

const (
	DefaultModule   = "access_registry"
	DefaultFunction = "seal_approve"
)

// Argument positions of the approval entry point.
const (
	argIdentity = iota
	argRequester
	argRegistry
	argClock
	argCount
)

var ErrInvalidApproval = errors.New("invalid approval transaction")

// Call is the decoded approval call.
type Call struct {
	Package   domain.ObjectID
	Module    string
	Function  string
	Identity  []byte
	Requester domain.Address
	Registry  sui.SharedObjectArg
	Clock     sui.SharedObjectArg
}

// UnsignedTransaction is a kind-only transaction: no gas, no sender signature.
type UnsignedTransaction struct {
	Kind  sui.ProgrammableTransaction
	bytes []byte
}

// Bytes is the BCS TransactionKind handed to key servers.
func (t *UnsignedTransaction) Bytes() []byte { return append([]byte(nil), t.bytes...) }

type Builder struct {
	pkg      domain.ObjectID
	module   string
	function string
}

type Option func(*Builder)

func WithModule(module string) Option {
	return func(b *Builder) { b.module = module }
}

func WithFunction(function string) Option {
	return func(b *Builder) { b.function = function }
}

// NewBuilder targets <pkg>::<module>::<function>.
func NewBuilder(pkg domain.ObjectID, opts ...Option) *Builder {
	b := &Builder{pkg: pkg, module: DefaultModule, function: DefaultFunction}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build constructs the approval call with arguments
// (identity: vector<u8>, requester: address, registry: &Registry, clock: &Clock).
func (b *Builder) Build(identity []byte, requester domain.Address, registryRef, clockRef sui.SharedObjectArg) (*UnsignedTransaction, error) {
	switch {
	case len(identity) == 0:
		return nil, fmt.Errorf("%w: empty identity", ErrInvalidApproval)
	case !bytes.HasPrefix(identity, b.pkg[:]):
		return nil, fmt.Errorf("%w: identity is not scoped to package %s", ErrInvalidApproval, b.pkg)
	case requester.IsZero():
		return nil, fmt.Errorf("%w: requester is required", ErrInvalidApproval)
	case registryRef.ID.IsZero():
		return nil, fmt.Errorf("%w: registry reference is required", ErrInvalidApproval)
	case clockRef.ID != domain.ClockObjectID:
		return nil, fmt.Errorf("%w: clock must be %s", ErrInvalidApproval, domain.ClockObjectID)
	}

	registryRef.Mutable = false
	clockRef.Mutable = false
	kind := sui.ProgrammableTransaction{
		Inputs: []sui.CallArg{
			sui.PureBytes(identity),
			sui.PureAddress(requester),
			{Object: &registryRef},
			{Object: &clockRef},
		},
		Commands: []sui.MoveCall{{
			Package:   b.pkg,
			Module:    b.module,
			Function:  b.function,
			Arguments: []sui.Argument{sui.Input(argIdentity), sui.Input(argRequester), sui.Input(argRegistry), sui.Input(argClock)},
		}},
	}
	return &UnsignedTransaction{Kind: kind, bytes: kind.Marshal()}, nil
}

// Parse decodes kind bytes and checks the call targets this builder's entry point.
func (b *Builder) Parse(kind []byte) (*Call, error) {
	call, err := Parse(kind)
	if err != nil {
		return nil, err
	}
	if call.Package != b.pkg || call.Module != b.module || call.Function != b.function {
		return nil, fmt.Errorf("%w: call targets %s::%s::%s", ErrInvalidApproval, call.Package, call.Module, call.Function)
	}
	if !bytes.HasPrefix(call.Identity, b.pkg[:]) {
		return nil, fmt.Errorf("%w: identity is not scoped to package %s", ErrInvalidApproval, b.pkg)
	}
	return call, nil
}

// Parse decodes a single-call approval transaction of any package.
func Parse(kind []byte) (*Call, error) {
	tx, err := sui.ParseTransactionKind(kind)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidApproval, err)
	}
	if len(tx.Commands) != 1 {
		return nil, fmt.Errorf("%w: expected exactly one command, got %d", ErrInvalidApproval, len(tx.Commands))
	}
	return FromCall(tx, tx.Commands[0])
}

// FromCall decodes the approval arguments of call within tx.
func FromCall(tx *sui.ProgrammableTransaction, mc sui.MoveCall) (*Call, error) {
	if len(mc.TypeArguments) != 0 {
		return nil, fmt.Errorf("%w: unexpected type arguments", ErrInvalidApproval)
	}
	if len(mc.Arguments) != argCount {
		return nil, fmt.Errorf("%w: expected %d arguments, got %d", ErrInvalidApproval, argCount, len(mc.Arguments))
	}
	inputs := make([]sui.CallArg, argCount)
	for i, a := range mc.Arguments {
		in, err := tx.ResolveArg(a)
		if err != nil {
			return nil, fmt.Errorf("%w: argument %d: %w", ErrInvalidApproval, i, err)
		}
		inputs[i] = in
	}

	call := &Call{Package: mc.Package, Module: mc.Module, Function: mc.Function}
	var err error
	if call.Identity, err = sui.DecodePureBytes(inputs[argIdentity]); err != nil {
		return nil, fmt.Errorf("%w: identity: %w", ErrInvalidApproval, err)
	}
	if call.Requester, err = sui.DecodePureAddress(inputs[argRequester]); err != nil {
		return nil, fmt.Errorf("%w: requester: %w", ErrInvalidApproval, err)
	}
	reg, clock := inputs[argRegistry].Object, inputs[argClock].Object
	if reg == nil || reg.Mutable {
		return nil, fmt.Errorf("%w: registry must be an immutable shared object", ErrInvalidApproval)
	}
	if clock == nil || clock.Mutable || clock.ID != domain.ClockObjectID {
		return nil, fmt.Errorf("%w: clock must be the immutable shared clock", ErrInvalidApproval)
	}
	call.Registry, call.Clock = *reg, *clock
	return call, nil
}
