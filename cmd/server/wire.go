package main

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/CommandOSSLabs/personal-data-wallet-sub010/internal/blob"
	blobremote "github.com/CommandOSSLabs/personal-data-wallet-sub010/internal/blob/remote"
	"github.com/CommandOSSLabs/personal-data-wallet-sub010/internal/chain/rpc"
	"github.com/CommandOSSLabs/personal-data-wallet-sub010/internal/decryption"
	cachememory "github.com/CommandOSSLabs/personal-data-wallet-sub010/internal/decryption/cache/memory"
	cacheredis "github.com/CommandOSSLabs/personal-data-wallet-sub010/internal/decryption/cache/redis"
	decmetrics "github.com/CommandOSSLabs/personal-data-wallet-sub010/internal/decryption/metrics"
	"github.com/CommandOSSLabs/personal-data-wallet-sub010/internal/identity"
	jwttoken "github.com/CommandOSSLabs/personal-data-wallet-sub010/internal/jwt_token"
	"github.com/CommandOSSLabs/personal-data-wallet-sub010/internal/keyserver"
	ksmetrics "github.com/CommandOSSLabs/personal-data-wallet-sub010/internal/keyserver/metrics"
	"github.com/CommandOSSLabs/personal-data-wallet-sub010/internal/platform/config"
	"github.com/CommandOSSLabs/personal-data-wallet-sub010/internal/platform/metrics"
	"github.com/CommandOSSLabs/personal-data-wallet-sub010/internal/platform/redis"
	"github.com/CommandOSSLabs/personal-data-wallet-sub010/internal/sandbox"
	"github.com/CommandOSSLabs/personal-data-wallet-sub010/internal/session"
	sessmetrics "github.com/CommandOSSLabs/personal-data-wallet-sub010/internal/session/metrics"
	sessmemory "github.com/CommandOSSLabs/personal-data-wallet-sub010/internal/session/store/memory"
	sessredis "github.com/CommandOSSLabs/personal-data-wallet-sub010/internal/session/store/redis"
	"github.com/CommandOSSLabs/personal-data-wallet-sub010/internal/sui"
	"github.com/CommandOSSLabs/personal-data-wallet-sub010/internal/threshold"
	"github.com/CommandOSSLabs/personal-data-wallet-sub010/internal/threshold/network"
	httptransport "github.com/CommandOSSLabs/personal-data-wallet-sub010/internal/transport/http"
	"github.com/CommandOSSLabs/personal-data-wallet-sub010/internal/wallet"
	"github.com/CommandOSSLabs/personal-data-wallet-sub010/pkg/domain"
	"github.com/CommandOSSLabs/personal-data-wallet-sub010/pkg/platform/audit"
	"github.com/CommandOSSLabs/personal-data-wallet-sub010/pkg/platform/audit/publisher"
	auditmemory "github.com/CommandOSSLabs/personal-data-wallet-sub010/pkg/platform/audit/store/memory"
	auditpostgres "github.com/CommandOSSLabs/personal-data-wallet-sub010/pkg/platform/audit/store/postgres"
)

// gateway is the assembled process.
type gateway struct {
	router    http.Handler
	sessions  *session.Manager
	packageID domain.ObjectID
	closers   []func()
}

func (g *gateway) Close() {
	for i := len(g.closers) - 1; i >= 0; i-- {
		g.closers[i]()
	}
}

// backend is the threshold side of the gateway: who holds the key shares and
// where the access registry lives.
type backend struct {
	client      *threshold.Client
	encoder     *identity.Encoder
	packageID   domain.ObjectID
	registryRef sui.SharedObjectArg
	now         func() time.Time
}

func build(ctx context.Context, cfg *config.Config, log *slog.Logger) (_ *gateway, err error) {
	gw := &gateway{}
	defer func() {
		if err != nil {
			gw.Close()
		}
	}()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	auditor, err := buildAuditor(ctx, cfg.Audit, log, gw)
	if err != nil {
		return nil, err
	}

	be, err := buildBackend(ctx, cfg, log, auditor, reg)
	if err != nil {
		return nil, err
	}
	gw.packageID = be.packageID

	rc, err := redis.New(ctx, cfg.Redis)
	if err != nil {
		return nil, err
	}
	var health func(ctx context.Context) error
	if rc != nil {
		gw.closers = append(gw.closers, func() { _ = rc.Close() })
		health = rc.Health
	}

	seed, err := sessionSeed(cfg.Session.Seed)
	if err != nil {
		return nil, err
	}
	var store session.Store = sessmemory.NewInMemoryStore()
	if cfg.Session.Store == config.BackendRedis {
		store = sessredis.New(rc.Client)
	}
	gw.sessions, err = session.New(store, seed,
		session.WithLogger(log),
		session.WithMetrics(sessmetrics.New(reg)),
		session.WithAuditor(auditor),
		session.WithClock(be.now),
	)
	if err != nil {
		return nil, err
	}

	dcfg := decryption.Config{
		PackageID:                be.packageID,
		RegistryRef:              be.registryRef,
		MaxConcurrentDecryptions: cfg.Decryption.MaxConcurrent,
		DecryptionTimeout:        cfg.Decryption.Timeout,
		MaxRetries:               cfg.Decryption.MaxRetries,
		RetryBaseDelay:           cfg.Decryption.RetryBaseDelay,
		CacheTTL:                 cfg.Decryption.CacheTTL,
		SessionTTLMinutes:        cfg.Session.TTLMinutes,
	}
	opts := []decryption.Option{
		decryption.WithLogger(log),
		decryption.WithMetrics(decmetrics.New(reg)),
		decryption.WithAuditor(auditor),
	}
	if cfg.Decryption.Cache == config.BackendRedis {
		opts = append(opts, decryption.WithCache(cacheredis.New(rc.Client)))
	} else {
		opts = append(opts, decryption.WithCache(cachememory.New(cfg.Decryption.CacheTTL)))
	}
	blobs := buildBlobStore(cfg.Blob)
	if blobs != nil {
		opts = append(opts, decryption.WithBlobStore(blobs))
	}
	keyring, err := buildKeyring(cfg.Wallet.Seeds)
	if err != nil {
		return nil, err
	}
	if keyring != nil {
		log.WarnContext(ctx, "gateway holds wallet keys and will sign session challenges",
			"wallets", len(keyring.Addresses()))
		opts = append(opts, decryption.WithSigners(keyring))
	}
	pipeline, err := decryption.New(dcfg, gw.sessions, be.client, opts...)
	if err != nil {
		return nil, err
	}

	h := httptransport.NewHandler(pipeline, gw.sessions, be.client, be.encoder, log)
	if blobs != nil {
		h.WithBlobStore(blobs)
	}
	rcfg := httptransport.RouterConfig{
		Logger:         log,
		Metrics:        metrics.New(reg),
		Gatherer:       reg,
		AdminToken:     cfg.Server.AdminToken,
		Health:         health,
		RequestTimeout: 2 * cfg.Decryption.Timeout,
	}
	if cfg.Server.RequireAuth {
		tokens := jwttoken.NewJWTService(cfg.Server.JWTSigningKey, cfg.Server.JWTIssuer, cfg.Server.JWTAudience).
			WithClock(be.now)
		h.WithTokens(tokens)
		rcfg.Validator = jwttoken.NewCallerValidator(tokens)
	}
	gw.router = httptransport.NewRouter(h, rcfg)
	return gw, nil
}

func buildAuditor(ctx context.Context, cfg config.Audit, log *slog.Logger, gw *gateway) (audit.Emitter, error) {
	var store audit.Store = auditmemory.NewInMemoryStore()
	if cfg.PostgresDSN != "" {
		db, err := auditpostgres.Open(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, err
		}
		gw.closers = append(gw.closers, func() { _ = db.Close() })
		pg := auditpostgres.New(db)
		if err := pg.Migrate(ctx); err != nil {
			return nil, fmt.Errorf("migrate audit store: %w", err)
		}
		store = pg
	}
	pub := publisher.NewPublisher(store, publisher.WithAsyncBuffer(cfg.Buffer), publisher.WithLogger(log))
	gw.closers = append(gw.closers, pub.Close)
	return pub, nil
}

func buildBackend(ctx context.Context, cfg *config.Config, log *slog.Logger, auditor audit.Emitter, reg prometheus.Registerer) (*backend, error) {
	if cfg.Chain.Mode == config.ChainModeSandbox {
		log.WarnContext(ctx, "running against the in-process sandbox chain; data does not survive restarts")
		sb, err := sandbox.New(sandbox.Config{
			Servers:          cfg.Threshold.SandboxServers,
			Threshold:        cfg.Threshold.Threshold,
			Logger:           log,
			Auditor:          auditor,
			KeyServerMetrics: ksmetrics.New(reg),
		})
		if err != nil {
			return nil, err
		}
		return &backend{
			client:      sb.Threshold,
			encoder:     sb.Encoder,
			packageID:   sb.PackageID,
			registryRef: sb.RegistryRef,
			now:         sb.Now,
		}, nil
	}

	pkg, err := domain.ParseObjectID(cfg.Chain.PackageID)
	if err != nil {
		return nil, err
	}
	registryID, err := domain.ParseObjectID(cfg.Chain.RegistryID)
	if err != nil {
		return nil, err
	}
	node := rpc.New(cfg.Chain.RPCURL)
	obj, err := node.GetObject(ctx, registryID)
	if err != nil {
		return nil, fmt.Errorf("resolve registry object: %w", err)
	}
	if !obj.Shared {
		return nil, fmt.Errorf("registry object %s is not shared", registryID)
	}

	tcfg := threshold.Config{PackageID: pkg, Threshold: cfg.Threshold.Threshold}
	services := make(map[string]network.Service, len(cfg.Threshold.Servers))
	for _, s := range cfg.Threshold.Servers {
		pub, err := hex.DecodeString(strings.TrimPrefix(s.PublicKey, "0x"))
		if err != nil {
			return nil, fmt.Errorf("key server %s public key: %w", s.ID, err)
		}
		services[s.ID] = keyserver.NewRemote(s.ID, s.URL)
		tcfg.Servers = append(tcfg.Servers, threshold.ServerInfo{ID: s.ID, Weight: s.Weight, PublicKey: pub, URL: s.URL})
	}
	client, err := threshold.NewClient(tcfg, network.New(services, network.WithLogger(log)), threshold.WithLogger(log))
	if err != nil {
		return nil, err
	}
	return &backend{
		client:      client,
		encoder:     identity.NewEncoder(pkg),
		packageID:   pkg,
		registryRef: *obj.SharedArg().Object,
		now:         time.Now,
	}, nil
}

func buildBlobStore(cfg config.Blob) blob.Store {
	if cfg.AggregatorURL == "" {
		return nil
	}
	return blobremote.New(cfg.AggregatorURL, cfg.PublisherURL, blobremote.WithEpochs(cfg.Epochs))
}

func buildKeyring(seeds []string) (*wallet.Keyring, error) {
	if len(seeds) == 0 {
		return nil, nil
	}
	ring := wallet.NewKeyring()
	for i, s := range seeds {
		b, err := hex.DecodeString(strings.TrimPrefix(s, "0x"))
		if err != nil {
			return nil, fmt.Errorf("wallet seed %d: %w", i, err)
		}
		w, err := wallet.NewEd25519FromSeed(b)
		if err != nil {
			return nil, fmt.Errorf("wallet seed %d: %w", i, err)
		}
		ring.Add(w)
	}
	return ring, nil
}

func sessionSeed(s string) ([]byte, error) {
	if s == "" {
		return session.NewSeed()
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, err
	}
	if len(b) != session.SeedSize {
		return nil, errors.New("session seed must be 32 bytes")
	}
	return b, nil
}
