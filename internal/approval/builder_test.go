package approval

import (
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/CommandOSSLabs/personal-data-wallet-sub010/internal/identity"
	"github.com/CommandOSSLabs/personal-data-wallet-sub010/internal/sui"
	"github.com/CommandOSSLabs/personal-data-wallet-sub010/pkg/domain"
)

type BuilderSuite struct {
	suite.Suite
	pkg       domain.ObjectID
	builder   *Builder
	identity  []byte
	requester domain.Address
	registry  sui.SharedObjectArg
	clock     sui.SharedObjectArg
}

func TestBuilderSuite(t *testing.T) {
	suite.Run(t, new(BuilderSuite))
}

func (s *BuilderSuite) SetupTest() {
	s.pkg = domain.MustParseObjectID("0x5ea1")
	s.builder = NewBuilder(s.pkg)
	s.requester = domain.MustParseAddress("0xb0b")
	s.identity = identity.NewEncoder(s.pkg).MustEncode(identity.App(domain.MustParseAddress("0xa11ce"), s.requester))
	s.registry = sui.SharedObjectArg{ID: domain.MustParseObjectID("0x7e6"), InitialSharedVersion: 42, Mutable: true}
	s.clock = sui.SharedObjectArg{ID: domain.ClockObjectID, InitialSharedVersion: 1}
}

func (s *BuilderSuite) TestBuildProducesExactCall() {
	tx, err := s.builder.Build(s.identity, s.requester, s.registry, s.clock)
	s.Require().NoError(err)

	s.Require().Len(tx.Kind.Commands, 1)
	mc := tx.Kind.Commands[0]
	s.Equal(s.pkg, mc.Package)
	s.Equal(DefaultModule, mc.Module)
	s.Equal(DefaultFunction, mc.Function)
	s.Empty(mc.TypeArguments)
	s.Equal([]sui.Argument{sui.Input(0), sui.Input(1), sui.Input(2), sui.Input(3)}, mc.Arguments)

	s.Run("argument order and typing", func() {
		s.Require().Len(tx.Kind.Inputs, 4)
		id, err := sui.DecodePureBytes(tx.Kind.Inputs[0])
		s.Require().NoError(err)
		s.Equal(s.identity, id)

		addr, err := sui.DecodePureAddress(tx.Kind.Inputs[1])
		s.Require().NoError(err)
		s.Equal(s.requester, addr)

		s.Require().NotNil(tx.Kind.Inputs[2].Object)
		s.Equal(s.registry.ID, tx.Kind.Inputs[2].Object.ID)
		s.Equal(uint64(42), tx.Kind.Inputs[2].Object.InitialSharedVersion)
		s.False(tx.Kind.Inputs[2].Object.Mutable, "registry is passed by immutable reference")

		s.Require().NotNil(tx.Kind.Inputs[3].Object)
		s.Equal(domain.ClockObjectID, tx.Kind.Inputs[3].Object.ID)
		s.False(tx.Kind.Inputs[3].Object.Mutable)
	})

	s.Run("bytes are deterministic", func() {
		again, err := s.builder.Build(s.identity, s.requester, s.registry, s.clock)
		s.Require().NoError(err)
		s.Equal(tx.Bytes(), again.Bytes())
	})
}

func (s *BuilderSuite) TestParseRoundTrip() {
	tx, err := s.builder.Build(s.identity, s.requester, s.registry, s.clock)
	s.Require().NoError(err)

	call, err := s.builder.Parse(tx.Bytes())
	s.Require().NoError(err)
	s.Equal(s.identity, call.Identity)
	s.Equal(s.requester, call.Requester)
	s.Equal(s.registry.ID, call.Registry.ID)
	s.Equal(domain.ClockObjectID, call.Clock.ID)
}

func (s *BuilderSuite) TestBuildRejectsBadInput() {
	cases := []struct {
		name     string
		identity []byte
		req      domain.Address
		registry sui.SharedObjectArg
		clock    sui.SharedObjectArg
	}{
		{"empty identity", nil, s.requester, s.registry, s.clock},
		{"foreign identity", identity.NewEncoder(domain.MustParseObjectID("0x99")).MustEncode(identity.Self(s.requester)), s.requester, s.registry, s.clock},
		{"zero requester", s.identity, domain.Address{}, s.registry, s.clock},
		{"missing registry", s.identity, s.requester, sui.SharedObjectArg{}, s.clock},
		{"wrong clock", s.identity, s.requester, s.registry, sui.SharedObjectArg{ID: domain.MustParseObjectID("0x7")}},
	}
	for _, tc := range cases {
		s.Run(tc.name, func() {
			_, err := s.builder.Build(tc.identity, tc.req, tc.registry, tc.clock)
			s.ErrorIs(err, ErrInvalidApproval)
		})
	}
}

// Any deviation from the entry point signature must be rejected by servers.
func (s *BuilderSuite) TestParseRejectsDeviations() {
	good, err := s.builder.Build(s.identity, s.requester, s.registry, s.clock)
	s.Require().NoError(err)

	mutate := func(fn func(*sui.ProgrammableTransaction)) []byte {
		kind := good.Kind
		kind.Inputs = append([]sui.CallArg(nil), good.Kind.Inputs...)
		mc := good.Kind.Commands[0]
		mc.Arguments = append([]sui.Argument(nil), mc.Arguments...)
		kind.Commands = []sui.MoveCall{mc}
		fn(&kind)
		return kind.Marshal()
	}

	cases := map[string][]byte{
		"swapped identity and requester": mutate(func(k *sui.ProgrammableTransaction) {
			k.Commands[0].Arguments[0], k.Commands[0].Arguments[1] = k.Commands[0].Arguments[1], k.Commands[0].Arguments[0]
		}),
		"swapped registry and clock": mutate(func(k *sui.ProgrammableTransaction) {
			k.Commands[0].Arguments[2], k.Commands[0].Arguments[3] = k.Commands[0].Arguments[3], k.Commands[0].Arguments[2]
		}),
		"missing clock": mutate(func(k *sui.ProgrammableTransaction) {
			k.Commands[0].Arguments = k.Commands[0].Arguments[:3]
		}),
		"mutable clock": mutate(func(k *sui.ProgrammableTransaction) {
			clock := *k.Inputs[3].Object
			clock.Mutable = true
			k.Inputs[3] = sui.CallArg{Object: &clock}
		}),
		"requester as string": mutate(func(k *sui.ProgrammableTransaction) {
			k.Inputs[1] = sui.PureString(s.requester.String())
		}),
		"wrong function": mutate(func(k *sui.ProgrammableTransaction) {
			k.Commands[0].Function = "approve"
		}),
		"wrong package": mutate(func(k *sui.ProgrammableTransaction) {
			k.Commands[0].Package = domain.MustParseObjectID("0x1")
		}),
		"gas coin argument": mutate(func(k *sui.ProgrammableTransaction) {
			k.Commands[0].Arguments[1] = sui.Argument{Kind: sui.ArgGasCoin}
		}),
		"two commands": mutate(func(k *sui.ProgrammableTransaction) {
			k.Commands = append(k.Commands, k.Commands[0])
		}),
		"garbage": []byte{0xde, 0xad},
	}
	for name, kind := range cases {
		s.Run(name, func() {
			_, err := s.builder.Parse(kind)
			s.ErrorIs(err, ErrInvalidApproval)
		})
	}
}
