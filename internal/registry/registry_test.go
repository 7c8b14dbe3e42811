package registry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/CommandOSSLabs/personal-data-wallet-sub010/internal/identity"
	"github.com/CommandOSSLabs/personal-data-wallet-sub010/pkg/domain"
	"github.com/CommandOSSLabs/personal-data-wallet-sub010/pkg/platform/audit"
	auditmemory "github.com/CommandOSSLabs/personal-data-wallet-sub010/pkg/platform/audit/store/memory"
)

type RegistrySuite struct {
	suite.Suite
	ctx     context.Context
	now     time.Time
	reg     *Registry
	audit   *auditmemory.InMemoryStore
	owner   domain.Address
	friend  domain.Address
	app     domain.Address
	visitor domain.Address
}

func TestRegistrySuite(t *testing.T) {
	suite.Run(t, new(RegistrySuite))
}

type storeEmitter struct{ store audit.Store }

func (e storeEmitter) Emit(ctx context.Context, ev audit.Event) error { return e.store.Append(ctx, ev) }

func (s *RegistrySuite) SetupTest() {
	s.ctx = context.Background()
	s.now = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	s.audit = auditmemory.NewInMemoryStore()
	s.reg = New(NewInMemoryStore(), WithAuditor(storeEmitter{s.audit}))
	s.owner = domain.MustParseAddress("0xa11ce")
	s.friend = domain.MustParseAddress("0xf00d")
	s.app = domain.MustParseAddress("0xa99")
	s.visitor = domain.MustParseAddress("0xbad")
}

func (s *RegistrySuite) grant(grantee domain.Address, scope string, level domain.AccessLevel, ttl time.Duration) {
	_, err := s.reg.GrantAllowlistAccess(s.ctx, s.owner, grantee, s.owner, scope, level, s.now.Add(ttl), s.now)
	s.Require().NoError(err)
}

func (s *RegistrySuite) TestApproveSelf() {
	id := identity.Self(s.owner)
	s.NoError(s.reg.Approve(s.ctx, id, s.owner, s.now))
	s.ErrorIs(s.reg.Approve(s.ctx, id, s.visitor, s.now), ErrAccessDenied)

	s.Run("allowlisted wallet", func() {
		s.grant(s.friend, ScopeSelf, domain.AccessLevelRead, time.Hour)
		s.NoError(s.reg.Approve(s.ctx, id, s.friend, s.now))
	})
}

func (s *RegistrySuite) TestApproveApp() {
	id := identity.App(s.owner, s.app)
	s.NoError(s.reg.Approve(s.ctx, id, s.app, s.now))
	s.ErrorIs(s.reg.Approve(s.ctx, id, s.visitor, s.now), ErrAccessDenied, "different app")
}

func (s *RegistrySuite) TestApproveTimeLocked() {
	deadline := s.now.Add(time.Hour)
	id := identity.TimeLocked(s.owner, deadline)

	s.NoError(s.reg.Approve(s.ctx, id, s.owner, deadline.Add(-time.Second)))
	s.ErrorIs(s.reg.Approve(s.ctx, id, s.owner, deadline), ErrAccessDenied)
	s.ErrorIs(s.reg.Approve(s.ctx, id, s.owner, deadline.Add(time.Minute)), ErrAccessDenied)
}

func (s *RegistrySuite) TestApproveRole() {
	id := identity.Role(s.owner, "physician")
	s.ErrorIs(s.reg.Approve(s.ctx, id, s.friend, s.now), ErrAccessDenied)

	s.grant(s.friend, RoleScope("physician"), domain.AccessLevelWrite, time.Hour)
	s.NoError(s.reg.Approve(s.ctx, id, s.friend, s.now))

	s.Run("other role does not satisfy", func() {
		s.ErrorIs(s.reg.Approve(s.ctx, identity.Role(s.owner, "auditor"), s.friend, s.now), ErrAccessDenied)
	})

	s.Run("expired grant is absent", func() {
		s.ErrorIs(s.reg.Approve(s.ctx, id, s.friend, s.now.Add(2*time.Hour)), ErrAccessDenied)
		_, ok, err := s.reg.ActiveGrant(s.ctx, s.owner, s.friend, RoleScope("physician"), s.now.Add(2*time.Hour))
		s.NoError(err)
		s.False(ok)
	})
}

func (s *RegistrySuite) TestRoleScopesCannotOpenReservedScopes() {
	for _, reserved := range []string{ScopeSelf, ScopeTimeLock, "app:" + s.friend.String()} {
		s.Run(reserved, func() {
			s.grant(s.friend, RoleScope(reserved), domain.AccessLevelRead, time.Hour)
		})
	}

	s.ErrorIs(s.reg.Approve(s.ctx, identity.Self(s.owner), s.friend, s.now), ErrAccessDenied)
	s.ErrorIs(s.reg.Approve(s.ctx, identity.TimeLocked(s.owner, s.now.Add(time.Hour)), s.friend, s.now), ErrAccessDenied)
	s.NoError(s.reg.Approve(s.ctx, identity.Role(s.owner, ScopeSelf), s.friend, s.now))

	s.Run("a self grant does not open a role named self", func() {
		other := domain.MustParseAddress("0x0e7")
		s.grant(other, ScopeSelf, domain.AccessLevelRead, time.Hour)
		s.ErrorIs(s.reg.Approve(s.ctx, identity.Role(s.owner, ScopeSelf), other, s.now), ErrAccessDenied)
		s.NoError(s.reg.Approve(s.ctx, identity.Self(s.owner), other, s.now))
	})
}

func (s *RegistrySuite) TestGrantValidation() {
	cases := []struct {
		name   string
		sender domain.Address
		grant  domain.Address
		scope  string
		level  domain.AccessLevel
		expiry time.Time
		err    error
	}{
		{"not the owner", s.visitor, s.friend, "x", domain.AccessLevelRead, s.now.Add(time.Hour), ErrAccessDenied},
		{"self grant", s.owner, s.owner, "x", domain.AccessLevelRead, s.now.Add(time.Hour), ErrInvalidGrant},
		{"empty scope", s.owner, s.friend, "", domain.AccessLevelRead, s.now.Add(time.Hour), ErrInvalidGrant},
		{"bad level", s.owner, s.friend, "x", domain.AccessLevel("owner"), s.now.Add(time.Hour), ErrInvalidGrant},
		{"past expiry", s.owner, s.friend, "x", domain.AccessLevelRead, s.now, ErrInvalidGrant},
	}
	for _, tc := range cases {
		s.Run(tc.name, func() {
			_, err := s.reg.GrantAllowlistAccess(s.ctx, tc.sender, tc.grant, s.owner, tc.scope, tc.level, tc.expiry, s.now)
			s.ErrorIs(err, tc.err)
		})
	}
}

func (s *RegistrySuite) TestRevoke() {
	s.grant(s.friend, ScopeSelf, domain.AccessLevelRead, time.Hour)
	s.ErrorIs(s.reg.RevokeAllowlistAccess(s.ctx, s.visitor, s.friend, s.owner, ScopeSelf), ErrAccessDenied)
	s.Require().NoError(s.reg.RevokeAllowlistAccess(s.ctx, s.owner, s.friend, s.owner, ScopeSelf))
	s.ErrorIs(s.reg.Approve(s.ctx, identity.Self(s.owner), s.friend, s.now), ErrAccessDenied)
	s.ErrorIs(s.reg.RevokeAllowlistAccess(s.ctx, s.owner, s.friend, s.owner, ScopeSelf), ErrGrantNotFound)

	events := s.audit.ListByAction(s.ctx, audit.EventGrantRevoked)
	s.Require().Len(events, 1)
	s.Equal(s.owner.String(), events[0].Subject)
	s.Equal(s.friend.String(), events[0].ActorID)
}

func (s *RegistrySuite) TestRegisterContent() {
	s.Require().NoError(s.reg.RegisterContent(s.ctx, s.owner, "blob-1", s.app, s.now))
	s.ErrorIs(s.reg.RegisterContent(s.ctx, s.owner, "blob-1", s.app, s.now), ErrContentExists)

	rec, err := s.reg.Content(s.ctx, "blob-1")
	s.Require().NoError(err)
	s.Equal(s.owner, rec.Owner)
	s.Equal(s.app, rec.ContextWallet)
}

func (s *RegistrySuite) TestGrantsListsOnlyActive() {
	s.grant(s.friend, ScopeSelf, domain.AccessLevelRead, time.Hour)
	s.grant(s.visitor, ScopeSelf, domain.AccessLevelRead, time.Minute)

	grants, err := s.reg.Grants(s.ctx, s.owner, s.now.Add(30*time.Minute))
	s.Require().NoError(err)
	s.Require().Len(grants, 1)
	s.Equal(s.friend, grants[0].Grantee)
}
