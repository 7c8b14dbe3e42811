// Package decryption orchestrates decryption of stored memories: result
// caching, session reuse, retry with backoff, batching with per-item
// isolation and performance accounting.
package decryption

import (
	"bytes"
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/semaphore"

	"github.com/CommandOSSLabs/personal-data-wallet-sub010/internal/approval"
	"github.com/CommandOSSLabs/personal-data-wallet-sub010/internal/blob"
	cachememory "github.com/CommandOSSLabs/personal-data-wallet-sub010/internal/decryption/cache/memory"
	"github.com/CommandOSSLabs/personal-data-wallet-sub010/internal/decryption/metrics"
	"github.com/CommandOSSLabs/personal-data-wallet-sub010/internal/identity"
	"github.com/CommandOSSLabs/personal-data-wallet-sub010/internal/session"
	"github.com/CommandOSSLabs/personal-data-wallet-sub010/internal/sui"
	"github.com/CommandOSSLabs/personal-data-wallet-sub010/internal/wallet"
	"github.com/CommandOSSLabs/personal-data-wallet-sub010/pkg/domain"
	"github.com/CommandOSSLabs/personal-data-wallet-sub010/pkg/platform/audit"
	"github.com/CommandOSSLabs/personal-data-wallet-sub010/pkg/platform/sentinel"
	"github.com/CommandOSSLabs/personal-data-wallet-sub010/pkg/requestcontext"
)

const tracerName = "github.com/CommandOSSLabs/personal-data-wallet-sub010/internal/decryption"

// ErrNoBlobStore is returned for blob-id requests when no store is configured.
var ErrNoBlobStore = errors.New("no blob store configured")

type counters struct {
	total, successes, failures atomic.Int64
	cacheHits, cacheMisses     atomic.Int64
	retries                    atomic.Int64
	latencyNanos               atomic.Int64
}

type Service struct {
	cfg       Config
	sessions  Sessions
	decrypter Decrypter
	approvals *approval.Builder
	encoder   *identity.Encoder
	clockRef  sui.SharedObjectArg
	sem       *semaphore.Weighted

	cache   Cache
	blobs   blob.Store
	signers Signers
	logger  *slog.Logger
	metrics *metrics.Metrics
	auditor audit.Emitter
	tracer  trace.Tracer

	stats counters
}

type Option func(*Service)

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithAuditor(a audit.Emitter) Option {
	return func(s *Service) { s.auditor = a }
}

// WithCache replaces the default in-process result cache.
func WithCache(c Cache) Option {
	return func(s *Service) { s.cache = c }
}

func WithBlobStore(b blob.Store) Option {
	return func(s *Service) { s.blobs = b }
}

// WithSigners lets the service sign session challenges for addresses it
// holds wallets for.
func WithSigners(sg Signers) Option {
	return func(s *Service) { s.signers = sg }
}

func WithTracer(t trace.Tracer) Option {
	return func(s *Service) { s.tracer = t }
}

func New(cfg Config, sessions Sessions, decrypter Decrypter, opts ...Option) (*Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	s := &Service{
		cfg:       cfg,
		sessions:  sessions,
		decrypter: decrypter,
		approvals: approval.NewBuilder(cfg.PackageID),
		encoder:   identity.NewEncoder(cfg.PackageID),
		clockRef:  *sui.ClockArg().Object,
		sem:       semaphore.NewWeighted(int64(cfg.MaxConcurrentDecryptions)),
		cache:     cachememory.New(cfg.CacheTTL),
		logger:    slog.Default(),
		auditor:   audit.Nop{},
		tracer:    otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *Service) Config() Config { return s.cfg }

// DecryptOne returns the plaintext of one memory for req.UserAddress.
func (s *Service) DecryptOne(ctx context.Context, req Request) (*Result, error) {
	res, _, err := s.run(ctx, req, func() (*session.Key, error) {
		return s.SessionKey(ctx, req.UserAddress)
	})
	return res, err
}

// SessionKey returns the caller's session key for the configured package,
// signing the challenge when a local signer holds the address. Without one
// the key may come back unsigned.
func (s *Service) SessionKey(ctx context.Context, address domain.Address) (*session.Key, error) {
	if s.signers != nil {
		signer, err := s.signers.Get(address)
		switch {
		case err == nil:
			return s.sessions.EnsureSigned(ctx, address, s.cfg.PackageID, s.cfg.SessionTTLMinutes, signer)
		case !errors.Is(err, wallet.ErrUnknownAddress):
			return nil, err
		}
	}
	return s.Challenge(ctx, address)
}

// Challenge returns the address's session key without signing it, even when a
// local signer holds the wallet.
func (s *Service) Challenge(ctx context.Context, address domain.Address) (*session.Key, error) {
	return s.sessions.GetOrCreate(ctx, address, s.cfg.PackageID, s.cfg.SessionTTLMinutes)
}

// run decrypts req and records the outcome. sessionKey is only consulted on
// a cache miss.
func (s *Service) run(ctx context.Context, req Request, sessionKey func() (*session.Key, error)) (*Result, int, error) {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "decryption.Decrypt", trace.WithAttributes(
		attribute.String("pdw.memory_id", req.MemoryID),
		attribute.String("pdw.user", req.UserAddress.String()),
	))
	defer span.End()

	res, retries, err := s.decrypt(ctx, req, sessionKey)
	d := time.Since(start)
	s.observe(ctx, req, res, retries, err, d)

	span.SetAttributes(attribute.Int("pdw.retries", retries))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(Classify(err)))
		return nil, retries, err
	}
	span.SetAttributes(attribute.Bool("pdw.cache_hit", res.FromCache))
	res.Retries = retries
	res.Duration = d
	return res, retries, nil
}

func (s *Service) decrypt(ctx context.Context, req Request, sessionKey func() (*session.Key, error)) (*Result, int, error) {
	if err := req.Validate(); err != nil {
		return nil, 0, err
	}
	result := &Result{MemoryID: req.MemoryID, UserAddress: req.UserAddress}

	if plaintext, ok := s.cached(ctx, req); ok {
		result.Plaintext = plaintext
		result.FromCache = true
		return result, 0, nil
	}

	var plaintext []byte

	ciphertext := req.Ciphertext
	retries := 0
	if len(ciphertext) == 0 {
		n, err := s.withRetry(ctx, func(ctx context.Context) error {
			var ferr error
			ciphertext, ferr = s.fetch(ctx, req.BlobID)
			return ferr
		})
		retries += n
		if err != nil {
			return nil, retries, err
		}
	}

	header, err := s.decrypter.Inspect(ciphertext)
	if err != nil {
		return nil, retries, err
	}
	id, err := s.encoder.Decode(header.Identity)
	if err != nil {
		return nil, retries, err
	}
	key, err := sessionKey()
	if err != nil {
		return nil, retries, err
	}
	tx, err := s.approvals.Build(header.Identity, req.UserAddress, s.cfg.RegistryRef, s.clockRef)
	if err != nil {
		return nil, retries, err
	}

	n, err := s.withRetry(ctx, func(ctx context.Context) error {
		var derr error
		plaintext, derr = s.decrypter.Decrypt(ctx, ciphertext, key, tx.Bytes())
		return derr
	})
	retries += n
	if err != nil {
		return nil, retries, err
	}

	if !matchesHash(plaintext, req.ContentHash) {
		return nil, retries, fmt.Errorf("%w: memory %s", ErrIntegrityMismatch, req.MemoryID)
	}

	if s.cfg.CacheTTL > 0 && cacheable(id, req.UserAddress) {
		if err := s.cache.Set(ctx, req.MemoryID, req.UserAddress, plaintext, s.cfg.CacheTTL); err != nil {
			s.logger.WarnContext(ctx, "result cache write failed", "memory_id", req.MemoryID, "error", err)
		}
	}
	result.Plaintext = plaintext
	return result, retries, nil
}

// cached returns a cached plaintext for req. An entry that does not match
// req.ContentHash counts as a miss.
func (s *Service) cached(ctx context.Context, req Request) ([]byte, bool) {
	if s.cfg.CacheTTL == 0 {
		return nil, false
	}
	plaintext, err := s.cache.Get(ctx, req.MemoryID, req.UserAddress)
	switch {
	case err == nil && matchesHash(plaintext, req.ContentHash):
		s.stats.cacheHits.Add(1)
		s.metrics.IncrementCache(true)
		return plaintext, true
	case err == nil:
		s.logger.WarnContext(ctx, "cached plaintext does not match content hash", "memory_id", req.MemoryID)
	case !errors.Is(err, sentinel.ErrNotFound):
		s.logger.WarnContext(ctx, "result cache read failed", "memory_id", req.MemoryID, "error", err)
	}
	s.stats.cacheMisses.Add(1)
	s.metrics.IncrementCache(false)
	return nil, false
}

// cacheable reports whether user's access to content under id holds for as
// long as the content exists. Time locks lapse and grants can be revoked, so
// results reached through either are never cached.
func cacheable(id identity.Identity, user domain.Address) bool {
	if id.Kind == identity.KindTimeLocked {
		return false
	}
	return user == id.Owner || (id.Kind == identity.KindApp && user == id.App)
}

func matchesHash(plaintext, want []byte) bool {
	if len(want) == 0 {
		return true
	}
	sum := sha256.Sum256(plaintext)
	return bytes.Equal(sum[:], want)
}

func (s *Service) fetch(ctx context.Context, blobID string) ([]byte, error) {
	if s.blobs == nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, ErrNoBlobStore)
	}
	return s.blobs.Fetch(ctx, blobID)
}

// withRetry runs op under a per-attempt timeout, retrying retryable failures
// with exponential backoff. It returns the number of retries performed.
func (s *Service) withRetry(ctx context.Context, op func(ctx context.Context) error) (int, error) {
	for attempt := 0; ; attempt++ {
		attemptCtx, cancel := context.WithTimeout(ctx, s.cfg.DecryptionTimeout)
		err := op(attemptCtx)
		cancel()
		if err == nil {
			return attempt, nil
		}
		if ctx.Err() != nil {
			return attempt, fmt.Errorf("decryption abandoned: %w", ctx.Err())
		}
		kind := Classify(err)
		if !kind.Retryable() || attempt >= s.cfg.MaxRetries {
			return attempt, err
		}

		delay := s.cfg.RetryBaseDelay << attempt
		s.logger.DebugContext(ctx, "retrying decryption",
			"attempt", attempt+1, "kind", kind, "delay", delay, "error", err)
		s.stats.retries.Add(1)
		s.metrics.IncrementRetries()

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return attempt + 1, fmt.Errorf("decryption abandoned: %w", ctx.Err())
		case <-timer.C:
		}
	}
}

func (s *Service) observe(ctx context.Context, req Request, res *Result, retries int, err error, d time.Duration) {
	s.stats.total.Add(1)
	s.stats.latencyNanos.Add(int64(d))
	s.metrics.ObserveLatency(d)

	if err == nil {
		s.stats.successes.Add(1)
		s.metrics.IncrementOutcome("success")
		if !res.FromCache {
			s.emit(ctx, audit.EventDecryptSucceeded, req, "")
		}
		return
	}

	kind := Classify(err)
	s.stats.failures.Add(1)
	s.metrics.IncrementOutcome(string(kind))

	switch kind {
	case KindIntegrity:
		s.logger.ErrorContext(ctx, "decrypted content failed integrity check",
			"memory_id", req.MemoryID, "user", req.UserAddress, "retries", retries)
		s.emit(ctx, audit.EventIntegrityMismatch, req, err.Error())
	case KindThresholdNotMet, KindSignatureRejected:
		s.logger.InfoContext(ctx, "decryption denied",
			"memory_id", req.MemoryID, "user", req.UserAddress, "kind", kind)
		s.emit(ctx, audit.EventDecryptDenied, req, string(kind))
	default:
		s.logger.WarnContext(ctx, "decryption failed",
			"memory_id", req.MemoryID, "user", req.UserAddress, "kind", kind, "retries", retries, "error", err)
	}
}

func (s *Service) emit(ctx context.Context, action audit.AuditEvent, req Request, reason string) {
	err := s.auditor.Emit(ctx, audit.Event{
		Category:  action.Category(),
		Timestamp: time.Now(),
		Subject:   req.UserAddress.String(),
		Action:    string(action),
		Resource:  req.MemoryID,
		Reason:    reason,
		RequestID: requestcontext.RequestID(ctx),
	})
	if err != nil {
		s.logger.WarnContext(ctx, "audit emit failed", "action", action, "error", err)
	}
}

// Stats returns a snapshot of the counters since the service started.
func (s *Service) Stats() Stats {
	st := Stats{
		Total:       s.stats.total.Load(),
		Successes:   s.stats.successes.Load(),
		Failures:    s.stats.failures.Load(),
		CacheHits:   s.stats.cacheHits.Load(),
		CacheMisses: s.stats.cacheMisses.Load(),
		Retries:     s.stats.retries.Load(),
	}
	if st.Total > 0 {
		st.AverageLatency = time.Duration(s.stats.latencyNanos.Load() / st.Total)
	}
	return st
}
