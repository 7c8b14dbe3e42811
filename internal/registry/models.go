package registry

import (
	"fmt"
	"time"

	"github.com/CommandOSSLabs/personal-data-wallet-sub010/internal/identity"
	"github.com/CommandOSSLabs/personal-data-wallet-sub010/pkg/domain"
)

// AccessGrant lets Grantee decrypt Grantor's content within Scope.
type AccessGrant struct {
	Grantor   domain.Address
	Grantee   domain.Address
	Scope     string
	Level     domain.AccessLevel
	GrantedAt time.Time
	ExpiresAt time.Time
}

// IsActive reports whether the grant is in force at chain time now. Expired
// grants are treated as absent.
func (g AccessGrant) IsActive(now time.Time) bool {
	return g.ExpiresAt.After(now)
}

// Allows reports whether the grant is active and at least level.
func (g AccessGrant) Allows(level domain.AccessLevel, now time.Time) bool {
	return g.IsActive(now) && g.Level.Satisfies(level)
}

// ContentRecord binds a content id to the wallet context it was written under.
type ContentRecord struct {
	ContentID     string
	ContextWallet domain.Address
	Owner         domain.Address
	RegisteredAt  time.Time
}

type grantKey struct {
	grantor domain.Address
	grantee domain.Address
	scope   string
}

// Scope names used for allowlist grants per identity kind. Role scopes are
// prefixed so no role name can collide with a reserved scope.
const (
	ScopeSelf       = "self"
	ScopeTimeLock   = "timelock"
	scopeAppPrefix  = "app:"
	scopeRolePrefix = "role:"
)

// RoleScope returns the grant scope for role.
func RoleScope(role string) string { return scopeRolePrefix + role }

// ScopeFor returns the grant scope that covers id.
func ScopeFor(id identity.Identity) string {
	switch id.Kind {
	case identity.KindSelf:
		return ScopeSelf
	case identity.KindApp:
		return scopeAppPrefix + id.App.String()
	case identity.KindTimeLocked:
		return ScopeTimeLock
	case identity.KindRole:
		return RoleScope(id.Role)
	default:
		return fmt.Sprintf("unknown:%d", uint8(id.Kind))
	}
}
