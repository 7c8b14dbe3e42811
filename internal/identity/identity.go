// Package identity builds the canonical byte-string identities that are used
// both as the threshold-encryption key and as the value the on-chain approval
// check inspects.
//
// Layout: policyPackageID(32) || kind(1) || fields. Fields per kind:
//
//	Self        owner(32)
//	App         owner(32) || app(32)
//	TimeLocked  owner(32) || expiresAt(u64 LE, unix seconds)
//	Role        owner(32) || uleb128(len) || role(utf-8)
package identity

import (
	"bytes"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/CommandOSSLabs/personal-data-wallet-sub010/internal/sui/bcs"
	"github.com/CommandOSSLabs/personal-data-wallet-sub010/pkg/domain"
)

var (
	// ErrInvalidIdentity reports structured input that cannot be encoded.
	ErrInvalidIdentity = errors.New("invalid identity")
	// ErrMalformedIdentity reports bytes that are not an identity of this policy package.
	ErrMalformedIdentity = errors.New("malformed identity")
)

// MaxRoleLength bounds role names in bytes.
const MaxRoleLength = 128

// Kind is the identity type tag.
type Kind uint8

const (
	KindSelf       Kind = 0x00
	KindApp        Kind = 0x01
	KindTimeLocked Kind = 0x02
	KindRole       Kind = 0x03
)

func (k Kind) String() string {
	switch k {
	case KindSelf:
		return "self"
	case KindApp:
		return "app"
	case KindTimeLocked:
		return "time_locked"
	case KindRole:
		return "role"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Identity is a decoded access policy. Only the fields relevant to Kind are set.
type Identity struct {
	Kind      Kind
	Owner     domain.Address
	App       domain.Address
	ExpiresAt uint64
	Role      string
}

func Self(owner domain.Address) Identity {
	return Identity{Kind: KindSelf, Owner: owner}
}

func App(owner, app domain.Address) Identity {
	return Identity{Kind: KindApp, Owner: owner, App: app}
}

// TimeLocked grants access until t, truncated to whole seconds.
func TimeLocked(owner domain.Address, t time.Time) Identity {
	var secs uint64
	if u := t.Unix(); u > 0 {
		secs = uint64(u)
	}
	return Identity{Kind: KindTimeLocked, Owner: owner, ExpiresAt: secs}
}

func Role(owner domain.Address, role string) Identity {
	return Identity{Kind: KindRole, Owner: owner, Role: role}
}

// ExpiresAtTime returns the time-lock bound.
func (id Identity) ExpiresAtTime() time.Time {
	return time.Unix(int64(id.ExpiresAt), 0).UTC()
}

func (id Identity) String() string {
	switch id.Kind {
	case KindSelf:
		return fmt.Sprintf("self(%s)", id.Owner)
	case KindApp:
		return fmt.Sprintf("app(%s, %s)", id.Owner, id.App)
	case KindTimeLocked:
		return fmt.Sprintf("time_locked(%s, %s)", id.Owner, id.ExpiresAtTime().Format(time.RFC3339))
	case KindRole:
		return fmt.Sprintf("role(%s, %q)", id.Owner, id.Role)
	default:
		return id.Kind.String()
	}
}

// Validate reports whether the identity can be encoded.
func (id Identity) Validate() error {
	if id.Owner.IsZero() {
		return fmt.Errorf("%w: owner is required", ErrInvalidIdentity)
	}
	switch id.Kind {
	case KindSelf:
	case KindApp:
		if id.App.IsZero() {
			return fmt.Errorf("%w: app is required for app identities", ErrInvalidIdentity)
		}
	case KindTimeLocked:
		if id.ExpiresAt == 0 {
			return fmt.Errorf("%w: expiry is required for time-locked identities", ErrInvalidIdentity)
		}
	case KindRole:
		if id.Role == "" {
			return fmt.Errorf("%w: role is required for role identities", ErrInvalidIdentity)
		}
		if len(id.Role) > MaxRoleLength {
			return fmt.Errorf("%w: role exceeds %d bytes", ErrInvalidIdentity, MaxRoleLength)
		}
		if !utf8.ValidString(id.Role) {
			return fmt.Errorf("%w: role is not valid utf-8", ErrInvalidIdentity)
		}
	default:
		return fmt.Errorf("%w: unknown kind %d", ErrInvalidIdentity, uint8(id.Kind))
	}
	return nil
}

// Encoder encodes identities under one policy package.
type Encoder struct {
	pkg domain.ObjectID
}

func NewEncoder(policyPackage domain.ObjectID) *Encoder {
	return &Encoder{pkg: policyPackage}
}

// PackageID is the policy package every identity is prefixed with.
func (e *Encoder) PackageID() domain.ObjectID { return e.pkg }

// Encode returns the canonical bytes for id.
func (e *Encoder) Encode(id Identity) ([]byte, error) {
	if err := id.Validate(); err != nil {
		return nil, err
	}
	return e.encodeBytes(id), nil
}

// MustEncode panics on invalid input. Intended for tests and fixtures.
func (e *Encoder) MustEncode(id Identity) []byte {
	b, err := e.Encode(id)
	if err != nil {
		panic(err)
	}
	return b
}

// identityWire is package || policy, where the policy is an enum whose
// variant index is the Kind tag.
type identityWire struct {
	Package domain.ObjectID
	Policy  policyWire
}

type policyWire struct {
	Self       *selfPolicy
	App        *appPolicy
	TimeLocked *timeLockedPolicy
	Role       *rolePolicy
}

func (policyWire) IsBcsEnum() {}

type selfPolicy struct{ Owner domain.Address }

type appPolicy struct{ Owner, App domain.Address }

type timeLockedPolicy struct {
	Owner     domain.Address
	ExpiresAt uint64
}

type rolePolicy struct {
	Owner domain.Address
	Role  string
}

func (e *Encoder) encodeBytes(id Identity) []byte {
	w := identityWire{Package: e.pkg}
	switch id.Kind {
	case KindSelf:
		w.Policy.Self = &selfPolicy{Owner: id.Owner}
	case KindApp:
		w.Policy.App = &appPolicy{Owner: id.Owner, App: id.App}
	case KindTimeLocked:
		w.Policy.TimeLocked = &timeLockedPolicy{Owner: id.Owner, ExpiresAt: id.ExpiresAt}
	case KindRole:
		w.Policy.Role = &rolePolicy{Owner: id.Owner, Role: id.Role}
	}
	return bcs.MustMarshal(w)
}

// Decode parses canonical identity bytes. Anything not produced by Encode
// under this encoder's package is rejected.
func (e *Encoder) Decode(b []byte) (Identity, error) {
	var w identityWire
	if err := bcs.Unmarshal(b, &w); err != nil {
		return Identity{}, fmt.Errorf("%w: %w", ErrMalformedIdentity, err)
	}
	if w.Package != e.pkg {
		return Identity{}, fmt.Errorf("%w: policy package prefix mismatch", ErrMalformedIdentity)
	}

	var id Identity
	switch p := w.Policy; {
	case p.Self != nil:
		id = Self(p.Self.Owner)
	case p.App != nil:
		id = App(p.App.Owner, p.App.App)
	case p.TimeLocked != nil:
		id = Identity{Kind: KindTimeLocked, Owner: p.TimeLocked.Owner, ExpiresAt: p.TimeLocked.ExpiresAt}
	case p.Role != nil:
		id = Role(p.Role.Owner, p.Role.Role)
	default:
		return Identity{}, fmt.Errorf("%w: missing policy", ErrMalformedIdentity)
	}
	if err := id.Validate(); err != nil {
		return Identity{}, fmt.Errorf("%w: %w", ErrMalformedIdentity, err)
	}
	if !bytes.Equal(e.encodeBytes(id), b) {
		return Identity{}, fmt.Errorf("%w: non-canonical encoding", ErrMalformedIdentity)
	}
	return id, nil
}
