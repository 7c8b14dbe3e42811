package registry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/CommandOSSLabs/personal-data-wallet-sub010/internal/approval"
	"github.com/CommandOSSLabs/personal-data-wallet-sub010/internal/chain"
	"github.com/CommandOSSLabs/personal-data-wallet-sub010/internal/identity"
	"github.com/CommandOSSLabs/personal-data-wallet-sub010/internal/sui"
	"github.com/CommandOSSLabs/personal-data-wallet-sub010/pkg/domain"
)

// Entry point names of the registry module.
const (
	Module                    = approval.DefaultModule
	FuncSealApprove           = approval.DefaultFunction
	FuncRegisterContent       = "register_content"
	FuncGrantAllowlistAccess  = "grant_allowlist_access"
	FuncRevokeAllowlistAccess = "revoke_allowlist_access"

	// ObjectType is the Move type of the shared registry object.
	ObjectType = "access_registry::Registry"
)

// Move abort codes.
const (
	ENoAccess uint64 = iota + 1
	EInvalidIdentity
	ENotAuthorized
	EInvalidArguments
	EContentExists
	EGrantNotFound
	EWrongRegistry
)

// Contract exposes a Registry as Move entry functions on a chain.
type Contract struct {
	registry *Registry
	pkg      domain.ObjectID
	object   domain.ObjectID
	encoder  *identity.Encoder
}

func NewContract(r *Registry, pkg, object domain.ObjectID) *Contract {
	return &Contract{registry: r, pkg: pkg, object: object, encoder: identity.NewEncoder(pkg)}
}

func (c *Contract) Package() domain.ObjectID { return c.pkg }
func (c *Contract) Object() domain.ObjectID  { return c.object }

// Bind installs the registry entry functions.
func (c *Contract) Bind(b chain.Binder) {
	b.Bind(c.pkg, Module, FuncSealApprove, c.sealApprove)
	b.Bind(c.pkg, Module, FuncRegisterContent, c.registerContent)
	b.Bind(c.pkg, Module, FuncGrantAllowlistAccess, c.grantAllowlistAccess)
	b.Bind(c.pkg, Module, FuncRevokeAllowlistAccess, c.revokeAllowlistAccess)
}

func abort(fn string, code uint64) error {
	return &chain.AbortError{Module: Module, Function: fn, Code: code}
}

func (c *Contract) sealApprove(ctx context.Context, inv chain.Invocation) error {
	call, err := approval.FromCall(inv.Tx, inv.Call)
	if err != nil {
		return abort(FuncSealApprove, EInvalidArguments)
	}
	if call.Registry.ID != c.object {
		return abort(FuncSealApprove, EWrongRegistry)
	}
	id, err := c.encoder.Decode(call.Identity)
	if err != nil {
		return abort(FuncSealApprove, EInvalidIdentity)
	}
	if err := c.registry.Approve(ctx, id, call.Requester, inv.Now); err != nil {
		if errors.Is(err, ErrAccessDenied) {
			return abort(FuncSealApprove, ENoAccess)
		}
		return err
	}
	return nil
}

// mutableRegistryArg checks argument i is this registry passed mutably.
func (c *Contract) mutableRegistryArg(inv chain.Invocation, i int) error {
	arg, err := inv.Arg(i)
	if err != nil || arg.Object == nil || !arg.Object.Mutable {
		return abort(inv.Call.Function, EInvalidArguments)
	}
	if arg.Object.ID != c.object {
		return abort(inv.Call.Function, EWrongRegistry)
	}
	return nil
}

func (c *Contract) registerContent(ctx context.Context, inv chain.Invocation) error {
	if err := c.mutableRegistryArg(inv, 0); err != nil {
		return err
	}
	contentID, err1 := argString(inv, 1)
	wallet, err2 := argAddress(inv, 2)
	if err := errors.Join(err1, err2); err != nil {
		return abort(FuncRegisterContent, EInvalidArguments)
	}
	if inv.DryRun {
		return nil
	}
	err := c.registry.RegisterContent(ctx, inv.Sender, contentID, wallet, inv.Now)
	switch {
	case errors.Is(err, ErrContentExists):
		return abort(FuncRegisterContent, EContentExists)
	case errors.Is(err, ErrInvalidGrant):
		return abort(FuncRegisterContent, EInvalidArguments)
	}
	return err
}

func (c *Contract) grantAllowlistAccess(ctx context.Context, inv chain.Invocation) error {
	if err := c.mutableRegistryArg(inv, 0); err != nil {
		return err
	}
	requester, err1 := argAddress(inv, 1)
	target, err2 := argAddress(inv, 2)
	scope, err3 := argString(inv, 3)
	levelCode, err4 := argU8(inv, 4)
	expiresMs, err5 := argU64(inv, 5)
	if err := errors.Join(err1, err2, err3, err4, err5); err != nil {
		return abort(FuncGrantAllowlistAccess, EInvalidArguments)
	}
	level, err := domain.AccessLevelFromCode(levelCode)
	if err != nil {
		return abort(FuncGrantAllowlistAccess, EInvalidArguments)
	}
	if inv.DryRun {
		return nil
	}
	_, err = c.registry.GrantAllowlistAccess(ctx, inv.Sender, requester, target, scope, level, time.UnixMilli(int64(expiresMs)), inv.Now)
	return grantAbort(FuncGrantAllowlistAccess, err)
}

func (c *Contract) revokeAllowlistAccess(ctx context.Context, inv chain.Invocation) error {
	if err := c.mutableRegistryArg(inv, 0); err != nil {
		return err
	}
	requester, err1 := argAddress(inv, 1)
	target, err2 := argAddress(inv, 2)
	scope, err3 := argString(inv, 3)
	if err := errors.Join(err1, err2, err3); err != nil {
		return abort(FuncRevokeAllowlistAccess, EInvalidArguments)
	}
	if inv.DryRun {
		return nil
	}
	return grantAbort(FuncRevokeAllowlistAccess, c.registry.RevokeAllowlistAccess(ctx, inv.Sender, requester, target, scope))
}

func grantAbort(fn string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrAccessDenied):
		return abort(fn, ENotAuthorized)
	case errors.Is(err, ErrInvalidGrant):
		return abort(fn, EInvalidArguments)
	case errors.Is(err, ErrGrantNotFound):
		return abort(fn, EGrantNotFound)
	default:
		return err
	}
}

func argString(inv chain.Invocation, i int) (string, error) {
	arg, err := inv.Arg(i)
	if err != nil {
		return "", err
	}
	return sui.DecodePureString(arg)
}

func argAddress(inv chain.Invocation, i int) (domain.Address, error) {
	arg, err := inv.Arg(i)
	if err != nil {
		return domain.Address{}, err
	}
	return sui.DecodePureAddress(arg)
}

func argU64(inv chain.Invocation, i int) (uint64, error) {
	arg, err := inv.Arg(i)
	if err != nil {
		return 0, err
	}
	return sui.DecodePureU64(arg)
}

func argU8(inv chain.Invocation, i int) (uint8, error) {
	arg, err := inv.Arg(i)
	if err != nil {
		return 0, err
	}
	return sui.DecodePureU8(arg)
}

// Calls builds registry transactions for submission by a wallet.
type Calls struct {
	Package  domain.ObjectID
	Registry sui.SharedObjectArg
}

func (c Calls) call(function string, args ...sui.CallArg) []byte {
	reg := c.Registry
	reg.Mutable = true
	inputs := append([]sui.CallArg{{Object: &reg}}, args...)
	inputs = append(inputs, sui.ClockArg())

	arguments := make([]sui.Argument, len(inputs))
	for i := range inputs {
		arguments[i] = sui.Input(uint16(i))
	}
	tx := sui.ProgrammableTransaction{
		Inputs: inputs,
		Commands: []sui.MoveCall{{
			Package:   c.Package,
			Module:    Module,
			Function:  function,
			Arguments: arguments,
		}},
	}
	return tx.Marshal()
}

// RegisterContent builds register_content(registry, contentId, contextWallet, clock).
func (c Calls) RegisterContent(contentID string, contextWallet domain.Address) []byte {
	return c.call(FuncRegisterContent, sui.PureString(contentID), sui.PureAddress(contextWallet))
}

// GrantAllowlistAccess builds
// grant_allowlist_access(registry, requester, target, scope, level, expiresAtMs, clock).
func (c Calls) GrantAllowlistAccess(requester, target domain.Address, scope string, level domain.AccessLevel, expiresAt time.Time) ([]byte, error) {
	if !level.IsValid() {
		return nil, fmt.Errorf("%w: unknown access level %q", ErrInvalidGrant, level)
	}
	return c.call(FuncGrantAllowlistAccess,
		sui.PureAddress(requester),
		sui.PureAddress(target),
		sui.PureString(scope),
		sui.PureU8(level.Code()),
		sui.PureU64(uint64(expiresAt.UnixMilli())),
	), nil
}

// RevokeAllowlistAccess builds revoke_allowlist_access(registry, requester, target, scope, clock).
func (c Calls) RevokeAllowlistAccess(requester, target domain.Address, scope string) []byte {
	return c.call(FuncRevokeAllowlistAccess, sui.PureAddress(requester), sui.PureAddress(target), sui.PureString(scope))
}
