// Package sui models the pieces of the Sui object model and transaction
// format used by the access-control pipeline: addresses, programmable
// transaction kinds, and personal-message signatures.
package sui

import (
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/CommandOSSLabs/personal-data-wallet-sub010/internal/sui/bcs"
	"github.com/CommandOSSLabs/personal-data-wallet-sub010/pkg/domain"
)

var ErrMalformedTransaction = errors.New("malformed transaction kind")

// CallArg is a programmable transaction input: either pure bytes or an object reference.
type CallArg struct {
	Pure   []byte
	Object *SharedObjectArg
}

// SharedObjectArg references a shared object such as the clock.
type SharedObjectArg struct {
	ID                   domain.ObjectID
	InitialSharedVersion uint64
	Mutable              bool
}

// ArgumentKind discriminates Argument variants.
type ArgumentKind uint8

const (
	ArgGasCoin ArgumentKind = iota
	ArgInput
	ArgResult
	ArgNestedResult
)

// Argument refers to a transaction input or an earlier command result.
type Argument struct {
	Kind   ArgumentKind
	Index  uint16
	Nested uint16
}

func Input(i uint16) Argument { return Argument{Kind: ArgInput, Index: i} }

// MoveCall invokes package::module::function.
type MoveCall struct {
	Package       domain.ObjectID
	Module        string
	Function      string
	TypeArguments []string
	Arguments     []Argument
}

// ProgrammableTransaction is the only transaction kind this module builds or accepts.
type ProgrammableTransaction struct {
	Inputs   []CallArg
	Commands []MoveCall
}

// Wire forms. Enum variants follow Sui's declaration order; only the
// variants this module builds are listed, so any other tag fails to decode.
type transactionKind struct {
	Programmable *programmableWire
}

func (transactionKind) IsBcsEnum() {}

type programmableWire struct {
	Inputs   []callArgWire
	Commands []commandWire
}

type callArgWire struct {
	Pure   *[]byte
	Object *objectArgWire
}

func (callArgWire) IsBcsEnum() {}

type objectArgWire struct {
	ImmOrOwned *objectRefWire
	Shared     *SharedObjectArg
}

func (objectArgWire) IsBcsEnum() {}

type objectRefWire struct {
	ID      domain.ObjectID
	Version uint64
	Digest  []byte
}

type commandWire struct {
	MoveCall *moveCallWire
}

func (commandWire) IsBcsEnum() {}

type moveCallWire struct {
	Package  domain.ObjectID
	Module   string
	Function string
	// Type tags are carried as canonical strings; the builders here never emit any.
	TypeArguments []string
	Arguments     []argumentWire
}

type argumentWire struct {
	GasCoin      *struct{}
	Input        *uint16
	Result       *uint16
	NestedResult *nestedResultWire
}

func (argumentWire) IsBcsEnum() {}

type nestedResultWire struct {
	Index  uint16
	Nested uint16
}

// Marshal encodes the transaction as a BCS TransactionKind.
func (p ProgrammableTransaction) Marshal() []byte {
	w := &programmableWire{
		Inputs:   make([]callArgWire, len(p.Inputs)),
		Commands: make([]commandWire, len(p.Commands)),
	}
	for i, in := range p.Inputs {
		if in.Object != nil {
			obj := *in.Object
			w.Inputs[i].Object = &objectArgWire{Shared: &obj}
			continue
		}
		pure := in.Pure
		if pure == nil {
			pure = []byte{}
		}
		w.Inputs[i].Pure = &pure
	}
	for i, c := range p.Commands {
		mc := &moveCallWire{
			Package:       c.Package,
			Module:        c.Module,
			Function:      c.Function,
			TypeArguments: append([]string{}, c.TypeArguments...),
			Arguments:     make([]argumentWire, len(c.Arguments)),
		}
		for j, a := range c.Arguments {
			mc.Arguments[j] = a.wire()
		}
		w.Commands[i].MoveCall = mc
	}
	return bcs.MustMarshal(transactionKind{Programmable: w})
}

func (a Argument) wire() argumentWire {
	index := a.Index
	switch a.Kind {
	case ArgInput:
		return argumentWire{Input: &index}
	case ArgResult:
		return argumentWire{Result: &index}
	case ArgNestedResult:
		return argumentWire{NestedResult: &nestedResultWire{Index: a.Index, Nested: a.Nested}}
	default:
		return argumentWire{GasCoin: &struct{}{}}
	}
}

func (w argumentWire) argument() Argument {
	switch {
	case w.Input != nil:
		return Argument{Kind: ArgInput, Index: *w.Input}
	case w.Result != nil:
		return Argument{Kind: ArgResult, Index: *w.Result}
	case w.NestedResult != nil:
		return Argument{Kind: ArgNestedResult, Index: w.NestedResult.Index, Nested: w.NestedResult.Nested}
	default:
		return Argument{Kind: ArgGasCoin}
	}
}

// ParseTransactionKind decodes bytes produced by Marshal.
func ParseTransactionKind(b []byte) (*ProgrammableTransaction, error) {
	fail := func(err error) (*ProgrammableTransaction, error) {
		return nil, fmt.Errorf("%w: %w", ErrMalformedTransaction, err)
	}

	var kind transactionKind
	if err := bcs.Unmarshal(b, &kind); err != nil {
		return fail(err)
	}
	if kind.Programmable == nil {
		return fail(errors.New("not a programmable transaction"))
	}

	tx := &ProgrammableTransaction{}
	for i, in := range kind.Programmable.Inputs {
		switch {
		case in.Pure != nil:
			tx.Inputs = append(tx.Inputs, CallArg{Pure: *in.Pure})
		case in.Object != nil && in.Object.Shared != nil:
			obj := *in.Object.Shared
			tx.Inputs = append(tx.Inputs, CallArg{Object: &obj})
		default:
			return fail(fmt.Errorf("input %d: only pure and shared object inputs are supported", i))
		}
	}
	for i, c := range kind.Programmable.Commands {
		if c.MoveCall == nil {
			return fail(fmt.Errorf("command %d: only move calls are supported", i))
		}
		mc := MoveCall{
			Package:       c.MoveCall.Package,
			Module:        c.MoveCall.Module,
			Function:      c.MoveCall.Function,
			TypeArguments: c.MoveCall.TypeArguments,
		}
		for _, a := range c.MoveCall.Arguments {
			mc.Arguments = append(mc.Arguments, a.argument())
		}
		tx.Commands = append(tx.Commands, mc)
	}
	return tx, nil
}

// ClockArg is the shared clock object passed to time-aware Move calls.
func ClockArg() CallArg {
	return CallArg{Object: &SharedObjectArg{ID: domain.ClockObjectID, InitialSharedVersion: 1}}
}

// PureBytes wraps a vector<u8> argument.
func PureBytes(b []byte) CallArg {
	return CallArg{Pure: bcs.MustMarshal(b)}
}

// PureAddress wraps an address argument.
func PureAddress(a domain.Address) CallArg {
	return CallArg{Pure: bcs.MustMarshal(a)}
}

// PureU64 wraps a u64 argument.
func PureU64(v uint64) CallArg {
	return CallArg{Pure: bcs.MustMarshal(v)}
}

// PureString wraps a Move String argument.
func PureString(s string) CallArg {
	return CallArg{Pure: bcs.MustMarshal(s)}
}

// PureU8 wraps a u8 argument.
func PureU8(v uint8) CallArg {
	return CallArg{Pure: bcs.MustMarshal(v)}
}

func decodePure[T any](arg CallArg, what string) (T, error) {
	var v T
	if arg.Object != nil {
		return v, fmt.Errorf("%w: expected pure %s", ErrMalformedTransaction, what)
	}
	if err := bcs.Unmarshal(arg.Pure, &v); err != nil {
		return v, fmt.Errorf("%w: %s: %w", ErrMalformedTransaction, what, err)
	}
	return v, nil
}

// DecodePureBytes reverses PureBytes.
func DecodePureBytes(arg CallArg) ([]byte, error) {
	return decodePure[[]byte](arg, "vector<u8>")
}

// DecodePureAddress reverses PureAddress.
func DecodePureAddress(arg CallArg) (domain.Address, error) {
	return decodePure[domain.Address](arg, "address")
}

// DecodePureU64 reverses PureU64.
func DecodePureU64(arg CallArg) (uint64, error) {
	return decodePure[uint64](arg, "u64")
}

// DecodePureString reverses PureString.
func DecodePureString(arg CallArg) (string, error) {
	s, err := decodePure[string](arg, "string")
	if err == nil && !utf8.ValidString(s) {
		return "", fmt.Errorf("%w: string is not valid utf-8", ErrMalformedTransaction)
	}
	return s, err
}

// DecodePureU8 reverses PureU8.
func DecodePureU8(arg CallArg) (uint8, error) {
	return decodePure[uint8](arg, "u8")
}

// ResolveArg returns the input referenced by a, which must be an Input argument.
func (p *ProgrammableTransaction) ResolveArg(a Argument) (CallArg, error) {
	if a.Kind != ArgInput || int(a.Index) >= len(p.Inputs) {
		return CallArg{}, fmt.Errorf("%w: argument does not reference an input", ErrMalformedTransaction)
	}
	return p.Inputs[a.Index], nil
}
