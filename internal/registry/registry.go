// Package registry is the on-chain access registry: content registration,
// allowlist grants with expiry, and the approval predicate key servers
// evaluate before releasing shares.
package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/CommandOSSLabs/personal-data-wallet-sub010/internal/identity"
	"github.com/CommandOSSLabs/personal-data-wallet-sub010/pkg/domain"
	"github.com/CommandOSSLabs/personal-data-wallet-sub010/pkg/platform/audit"
	"github.com/CommandOSSLabs/personal-data-wallet-sub010/pkg/platform/sentinel"
)

var (
	ErrAccessDenied  = errors.New("access denied")
	ErrInvalidGrant  = errors.New("invalid grant")
	ErrContentExists = errors.New("content already registered")
	ErrGrantNotFound = errors.New("grant not found")
)

// MinDecryptLevel is the level a grant needs for decryption.
const MinDecryptLevel = domain.AccessLevelRead

type Registry struct {
	store   Store
	auditor audit.Emitter
	logger  *slog.Logger
}

type Option func(*Registry)

func WithLogger(logger *slog.Logger) Option {
	return func(r *Registry) { r.logger = logger }
}

func WithAuditor(a audit.Emitter) Option {
	return func(r *Registry) { r.auditor = a }
}

func New(store Store, opts ...Option) *Registry {
	r := &Registry{store: store, auditor: audit.Nop{}, logger: slog.Default()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RegisterContent records contentID under contextWallet, owned by sender.
func (r *Registry) RegisterContent(ctx context.Context, sender domain.Address, contentID string, contextWallet domain.Address, now time.Time) error {
	if contentID == "" {
		return fmt.Errorf("%w: content id is required", ErrInvalidGrant)
	}
	err := r.store.PutContent(ctx, ContentRecord{
		ContentID:     contentID,
		ContextWallet: contextWallet,
		Owner:         sender,
		RegisteredAt:  now,
	})
	if errors.Is(err, sentinel.ErrConflict) {
		return ErrContentExists
	}
	if err != nil {
		return err
	}
	r.emit(ctx, audit.EventContentRegistered, sender, contentID, "")
	return nil
}

// GrantAllowlistAccess lets requester decrypt target's content within scope
// until expiresAt. Only target may grant.
func (r *Registry) GrantAllowlistAccess(ctx context.Context, sender, requester, target domain.Address, scope string, level domain.AccessLevel, expiresAt, now time.Time) (AccessGrant, error) {
	switch {
	case sender != target:
		return AccessGrant{}, fmt.Errorf("%w: only %s may grant access to its content", ErrAccessDenied, target)
	case requester.IsZero() || requester == target:
		return AccessGrant{}, fmt.Errorf("%w: requester must be another wallet", ErrInvalidGrant)
	case scope == "":
		return AccessGrant{}, fmt.Errorf("%w: scope is required", ErrInvalidGrant)
	case !level.IsValid():
		return AccessGrant{}, fmt.Errorf("%w: unknown access level %q", ErrInvalidGrant, level)
	case !expiresAt.After(now):
		return AccessGrant{}, fmt.Errorf("%w: expiry must be in the future", ErrInvalidGrant)
	}
	g := AccessGrant{
		Grantor:   target,
		Grantee:   requester,
		Scope:     scope,
		Level:     level,
		GrantedAt: now,
		ExpiresAt: expiresAt,
	}
	if err := r.store.PutGrant(ctx, g); err != nil {
		return AccessGrant{}, err
	}
	r.logger.InfoContext(ctx, "allowlist access granted",
		"grantor", target.String(),
		"grantee", requester.String(),
		"scope", scope,
		"level", level.String(),
		"expires_at", expiresAt,
	)
	r.emit(ctx, audit.EventGrantCreated, target, scope, requester.String())
	return g, nil
}

// RevokeAllowlistAccess removes requester's grant on target's scope.
func (r *Registry) RevokeAllowlistAccess(ctx context.Context, sender, requester, target domain.Address, scope string) error {
	if sender != target {
		return fmt.Errorf("%w: only %s may revoke access to its content", ErrAccessDenied, target)
	}
	err := r.store.DeleteGrant(ctx, target, requester, scope)
	if errors.Is(err, sentinel.ErrNotFound) {
		return ErrGrantNotFound
	}
	if err != nil {
		return err
	}
	r.emit(ctx, audit.EventGrantRevoked, target, scope, requester.String())
	return nil
}

// ActiveGrant returns the grant if it exists and is active at now. An
// expired grant is reported as absent.
func (r *Registry) ActiveGrant(ctx context.Context, grantor, grantee domain.Address, scope string, now time.Time) (AccessGrant, bool, error) {
	g, err := r.store.GetGrant(ctx, grantor, grantee, scope)
	if errors.Is(err, sentinel.ErrNotFound) {
		return AccessGrant{}, false, nil
	}
	if err != nil {
		return AccessGrant{}, false, err
	}
	if !g.IsActive(now) {
		return AccessGrant{}, false, nil
	}
	return g, true, nil
}

// Grants lists grantor's grants that are active at now.
func (r *Registry) Grants(ctx context.Context, grantor domain.Address, now time.Time) ([]AccessGrant, error) {
	all, err := r.store.ListGrants(ctx, grantor)
	if err != nil {
		return nil, err
	}
	out := all[:0]
	for _, g := range all {
		if g.IsActive(now) {
			out = append(out, g)
		}
	}
	return out, nil
}

// Content returns a registered content record.
func (r *Registry) Content(ctx context.Context, contentID string) (ContentRecord, error) {
	return r.store.GetContent(ctx, contentID)
}

// Approve evaluates whether requester may decrypt content encrypted under id
// at chain time now. A nil return approves.
func (r *Registry) Approve(ctx context.Context, id identity.Identity, requester domain.Address, now time.Time) error {
	if id.Kind == identity.KindTimeLocked && !now.Before(id.ExpiresAtTime()) {
		return fmt.Errorf("%w: time lock expired at %s", ErrAccessDenied, id.ExpiresAtTime().Format(time.RFC3339))
	}
	if requester == id.Owner {
		return nil
	}
	if id.Kind == identity.KindApp && id.App == requester {
		return nil
	}

	g, ok, err := r.ActiveGrant(ctx, id.Owner, requester, ScopeFor(id), now)
	if err != nil {
		return err
	}
	if ok && g.Level.Satisfies(MinDecryptLevel) {
		return nil
	}
	return fmt.Errorf("%w: %s has no active grant for %s", ErrAccessDenied, requester, id)
}

func (r *Registry) emit(ctx context.Context, action audit.AuditEvent, subject domain.Address, resource, actor string) {
	err := r.auditor.Emit(ctx, audit.Event{
		Subject:  subject.String(),
		Action:   string(action),
		Resource: resource,
		ActorID:  actor,
	})
	if err != nil {
		r.logger.WarnContext(ctx, "audit emit failed", "action", action, "error", err)
	}
}
