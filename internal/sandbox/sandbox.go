// Package sandbox assembles an in-process deployment: a simulated chain
// hosting the access registry, a set of key servers, and a threshold client
// wired to them. It backs the local server mode, the demo command and
// cross-package tests.
package sandbox

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/CommandOSSLabs/personal-data-wallet-sub010/internal/approval"
	"github.com/CommandOSSLabs/personal-data-wallet-sub010/internal/chain/memchain"
	"github.com/CommandOSSLabs/personal-data-wallet-sub010/internal/identity"
	"github.com/CommandOSSLabs/personal-data-wallet-sub010/internal/keyserver"
	ksmetrics "github.com/CommandOSSLabs/personal-data-wallet-sub010/internal/keyserver/metrics"
	"github.com/CommandOSSLabs/personal-data-wallet-sub010/internal/registry"
	"github.com/CommandOSSLabs/personal-data-wallet-sub010/internal/sui"
	"github.com/CommandOSSLabs/personal-data-wallet-sub010/internal/threshold"
	"github.com/CommandOSSLabs/personal-data-wallet-sub010/internal/threshold/network"
	"github.com/CommandOSSLabs/personal-data-wallet-sub010/internal/threshold/sealbox"
	"github.com/CommandOSSLabs/personal-data-wallet-sub010/pkg/domain"
	"github.com/CommandOSSLabs/personal-data-wallet-sub010/pkg/platform/audit"
)

var (
	DefaultPackageID  = domain.MustParseObjectID("0x5ea1")
	DefaultRegistryID = domain.MustParseObjectID("0x7e6")
)

// Config sizes the sandbox. Weights defaults to one per server.
type Config struct {
	PackageID  domain.ObjectID
	RegistryID domain.ObjectID
	Servers    int
	Weights    []int
	Threshold  int
	Start      time.Time
	Logger     *slog.Logger
	Auditor    audit.Emitter

	// KeyServerMetrics is shared by every key server; nil disables metrics.
	KeyServerMetrics *ksmetrics.Metrics
}

type Sandbox struct {
	Chain       *memchain.Chain
	Registry    *registry.Registry
	Calls       registry.Calls
	RegistryRef sui.SharedObjectArg
	Encoder     *identity.Encoder
	KeyServers  []*keyserver.Server
	Network     *network.Network
	Threshold   *threshold.Client
	PackageID   domain.ObjectID
}

func New(cfg Config) (*Sandbox, error) {
	if cfg.PackageID.IsZero() {
		cfg.PackageID = DefaultPackageID
	}
	if cfg.RegistryID.IsZero() {
		cfg.RegistryID = DefaultRegistryID
	}
	if cfg.Servers == 0 {
		cfg.Servers = 3
	}
	if cfg.Threshold == 0 {
		cfg.Threshold = 2
	}
	if cfg.Start.IsZero() {
		cfg.Start = time.Now().UTC()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Auditor == nil {
		cfg.Auditor = audit.Nop{}
	}
	if len(cfg.Weights) != 0 && len(cfg.Weights) != cfg.Servers {
		return nil, fmt.Errorf("sandbox: %d weights for %d servers", len(cfg.Weights), cfg.Servers)
	}

	chain := memchain.New(memchain.WithTime(cfg.Start), memchain.WithLogger(cfg.Logger))
	obj := chain.CreateSharedObject(cfg.RegistryID, registry.ObjectType)
	reg := registry.New(registry.NewInMemoryStore(), registry.WithLogger(cfg.Logger), registry.WithAuditor(cfg.Auditor))
	registry.NewContract(reg, cfg.PackageID, obj.ID).Bind(chain)

	sb := &Sandbox{
		Chain:       chain,
		Registry:    reg,
		RegistryRef: *obj.SharedArg().Object,
		Encoder:     identity.NewEncoder(cfg.PackageID),
		PackageID:   cfg.PackageID,
	}
	sb.Calls = registry.Calls{Package: cfg.PackageID, Registry: sb.RegistryRef}

	tcfg := threshold.Config{PackageID: cfg.PackageID, Threshold: cfg.Threshold}
	services := make(map[string]network.Service, cfg.Servers)
	for i := range cfg.Servers {
		keys, err := sealbox.GenerateKeyPair()
		if err != nil {
			return nil, err
		}
		id := fmt.Sprintf("ks-%d", i+1)
		srv := keyserver.New(id, keys, chain, keyserver.WithLogger(cfg.Logger), keyserver.WithAuditor(cfg.Auditor),
			keyserver.WithMetrics(cfg.KeyServerMetrics))
		weight := 1
		if len(cfg.Weights) > 0 {
			weight = cfg.Weights[i]
		}
		sb.KeyServers = append(sb.KeyServers, srv)
		services[id] = srv
		tcfg.Servers = append(tcfg.Servers, srv.ServerInfo(weight))
	}
	sb.Network = network.New(services, network.WithLogger(cfg.Logger))

	client, err := threshold.NewClient(tcfg, sb.Network, threshold.WithLogger(cfg.Logger), threshold.WithClock(chain.Clock))
	if err != nil {
		return nil, err
	}
	sb.Threshold = client
	return sb, nil
}

// Approvals returns a builder for approval transactions against this registry.
func (s *Sandbox) Approvals() *approval.Builder {
	return approval.NewBuilder(s.PackageID)
}

// Now is the simulated chain time.
func (s *Sandbox) Now() time.Time { return s.Chain.Clock() }

// Grant executes grant_allowlist_access signed by owner.
func (s *Sandbox) Grant(ctx context.Context, owner, grantee domain.Address, scope string, level domain.AccessLevel, expiresAt time.Time) error {
	tx, err := s.Calls.GrantAllowlistAccess(grantee, owner, scope, level, expiresAt)
	if err != nil {
		return err
	}
	return s.Chain.Execute(ctx, owner, tx)
}

// Revoke executes revoke_allowlist_access signed by owner.
func (s *Sandbox) Revoke(ctx context.Context, owner, grantee domain.Address, scope string) error {
	return s.Chain.Execute(ctx, owner, s.Calls.RevokeAllowlistAccess(grantee, owner, scope))
}

// RegisterContent executes register_content signed by owner.
func (s *Sandbox) RegisterContent(ctx context.Context, owner domain.Address, contentID string, contextWallet domain.Address) error {
	return s.Chain.Execute(ctx, owner, s.Calls.RegisterContent(contentID, contextWallet))
}
