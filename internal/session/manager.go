package session

import (
	"bytes"
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/CommandOSSLabs/personal-data-wallet-sub010/internal/session/metrics"
	"github.com/CommandOSSLabs/personal-data-wallet-sub010/internal/sui"
	"github.com/CommandOSSLabs/personal-data-wallet-sub010/internal/wallet"
	"github.com/CommandOSSLabs/personal-data-wallet-sub010/pkg/domain"
	"github.com/CommandOSSLabs/personal-data-wallet-sub010/pkg/platform/audit"
	"github.com/CommandOSSLabs/personal-data-wallet-sub010/pkg/platform/sentinel"
)

const (
	// MaxTTLMinutes bounds how long a wallet signature authorizes a session key.
	MaxTTLMinutes = 30
	// DefaultIssuanceEpoch is the window within which challenges repeat.
	DefaultIssuanceEpoch = time.Minute
	// SeedSize is the minimum manager seed length.
	SeedSize = 32
)

var (
	ErrSignatureRejected = errors.New("session signature rejected")
	ErrInvalidTTL        = errors.New("invalid session ttl")
	ErrWalletMismatch    = errors.New("wallet address does not match session address")
	ErrInvalidSeed       = errors.New("invalid session seed")
)

// Manager owns the session key slots. One instance per process; share the
// seed between instances that must issue identical challenges.
type Manager struct {
	store   Store
	seed    []byte
	epoch   time.Duration
	now     func() time.Time
	logger  *slog.Logger
	metrics *metrics.Metrics
	auditor audit.Emitter

	creating singleflight.Group
	signing  singleflight.Group
}

type Option func(*Manager)

func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) { m.logger = logger }
}

func WithMetrics(mt *metrics.Metrics) Option {
	return func(m *Manager) { m.metrics = mt }
}

func WithAuditor(a audit.Emitter) Option {
	return func(m *Manager) { m.auditor = a }
}

func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithIssuanceEpoch sets the challenge window. Values above one minute are
// clamped so that every key outlives the epoch it was issued in.
func WithIssuanceEpoch(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 && d <= DefaultIssuanceEpoch {
			m.epoch = d
		}
	}
}

// NewSeed returns a random manager seed.
func NewSeed() ([]byte, error) {
	seed := make([]byte, SeedSize)
	if _, err := rand.Read(seed); err != nil {
		return nil, fmt.Errorf("generate session seed: %w", err)
	}
	return seed, nil
}

func New(store Store, seed []byte, opts ...Option) (*Manager, error) {
	if len(seed) < SeedSize {
		return nil, fmt.Errorf("%w: need at least %d bytes, got %d", ErrInvalidSeed, SeedSize, len(seed))
	}
	m := &Manager{
		store:   store,
		seed:    append([]byte(nil), seed...),
		epoch:   DefaultIssuanceEpoch,
		now:     time.Now,
		logger:  slog.Default(),
		auditor: audit.Nop{},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// GetOrCreate returns the live signed key for the subject, or the pending
// challenged key, creating one if the slot is empty or expired. Concurrent
// callers for one subject share a single creation.
func (m *Manager) GetOrCreate(ctx context.Context, address domain.Address, packageID domain.ObjectID, ttlMinutes int) (*Key, error) {
	if ttlMinutes < 1 || ttlMinutes > MaxTTLMinutes {
		return nil, fmt.Errorf("%w: %d minutes (allowed 1..%d)", ErrInvalidTTL, ttlMinutes, MaxTTLMinutes)
	}
	subject := Subject{Address: address, PackageID: packageID}
	v, err, _ := m.creating.Do(subject.Key(), func() (any, error) {
		return m.getOrCreate(ctx, subject, ttlMinutes)
	})
	if err != nil {
		return nil, err
	}
	return v.(*Key).clone(), nil
}

func (m *Manager) getOrCreate(ctx context.Context, subject Subject, ttlMinutes int) (*Key, error) {
	now := m.now()
	key, err := m.load(ctx, subject)
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
	case err != nil:
		return nil, err
	case key.IsExpired(now):
		if err := m.store.Delete(ctx, subject); err != nil {
			return nil, fmt.Errorf("delete expired session: %w", err)
		}
		m.metrics.AddRemoved("expired", 1)
		m.logger.InfoContext(ctx, "session key expired, issuing new challenge",
			"address", subject.Address, "package_id", subject.PackageID)
	case key.IsSigned():
		return key, nil
	case key.TTLMinutes == ttlMinutes:
		return key, nil
	}

	key, err = deriveKey(m.seed, subject, m.issuedAt(now, ttlMinutes), ttlMinutes)
	if err != nil {
		return nil, err
	}
	if err := m.store.Put(ctx, key.record()); err != nil {
		return nil, fmt.Errorf("store session: %w", err)
	}
	m.metrics.IncrementTransition(StateChallenged.String())
	m.emit(ctx, audit.EventSessionChallenged, subject, "")
	m.logger.DebugContext(ctx, "session challenge issued",
		"address", subject.Address, "package_id", subject.PackageID, "ttl_min", ttlMinutes)
	return key, nil
}

// issuedAt returns the creation time for a key issued at now. Keys share a
// creation time within an issuance epoch, except late in an epoch when that
// would leave less than half the TTL; those are issued on the second.
func (m *Manager) issuedAt(now time.Time, ttlMinutes int) time.Time {
	ttl := time.Duration(ttlMinutes) * time.Minute
	createdAt := now.Truncate(m.epoch)
	if createdAt.Add(ttl).Sub(now) < ttl/2 {
		return now.Truncate(time.Second)
	}
	return createdAt
}

// load rebuilds a key from its stored record.
func (m *Manager) load(ctx context.Context, subject Subject) (*Key, error) {
	rec, err := m.store.Get(ctx, subject)
	if err != nil {
		return nil, err
	}
	key, err := deriveKey(m.seed, subject, rec.CreatedAt, rec.TTLMinutes)
	if err != nil {
		return nil, err
	}
	if len(rec.Signature) > 0 {
		sig, err := sui.ParseSignature(rec.Signature)
		if err != nil {
			m.logger.WarnContext(ctx, "discarding unreadable stored signature",
				"address", subject.Address, "error", err)
		} else {
			key.Signature = &sig
		}
	}
	return key, nil
}

// Get returns the subject's current key in whatever state it is, or
// sentinel.ErrNotFound.
func (m *Manager) Get(ctx context.Context, address domain.Address, packageID domain.ObjectID) (*Key, error) {
	return m.load(ctx, Subject{Address: address, PackageID: packageID})
}

// SetSignature attaches a wallet signature over key.Challenge. The signature
// must verify over exactly the challenge this manager derives for the key and
// come from key.Address; otherwise ErrSignatureRejected.
func (m *Manager) SetSignature(ctx context.Context, key *Key, sig sui.Signature) error {
	if key == nil {
		return fmt.Errorf("%w: no session key", ErrSignatureRejected)
	}
	subject := key.Subject()
	if key.IsExpired(m.now()) {
		m.reject(ctx, subject, "expired")
		return fmt.Errorf("%w: %w", ErrSignatureRejected, sentinel.ErrExpired)
	}
	canonical, err := deriveKey(m.seed, subject, key.CreatedAt, key.TTLMinutes)
	if err != nil {
		return err
	}
	if !bytes.Equal(canonical.Challenge, key.Challenge) {
		m.reject(ctx, subject, "unknown challenge")
		return fmt.Errorf("%w: challenge was not issued by this manager", ErrSignatureRejected)
	}
	signer, err := sui.VerifyPersonalMessage(canonical.Challenge, sig)
	if err != nil {
		m.reject(ctx, subject, "bad signature")
		return fmt.Errorf("%w: %w", ErrSignatureRejected, err)
	}
	if signer != subject.Address {
		m.reject(ctx, subject, "wrong signer")
		return fmt.Errorf("%w: signed by %s", ErrSignatureRejected, signer)
	}

	canonical.Signature = &sig
	if err := m.store.Put(ctx, canonical.record()); err != nil {
		return fmt.Errorf("store session: %w", err)
	}
	key.Signature = &sig
	key.priv = canonical.priv

	m.metrics.IncrementTransition(StateSigned.String())
	m.emit(ctx, audit.EventSessionSigned, subject, "")
	m.logger.InfoContext(ctx, "session key signed",
		"address", subject.Address, "package_id", subject.PackageID, "expires_at", key.ExpiresAt())
	return nil
}

// SetSignatureBase64 is SetSignature for a serialized Sui signature.
func (m *Manager) SetSignatureBase64(ctx context.Context, key *Key, signature string) error {
	sig, err := sui.ParseSignatureBase64(signature)
	if err != nil {
		if key != nil {
			m.reject(ctx, key.Subject(), "unparseable")
		}
		return fmt.Errorf("%w: %w", ErrSignatureRejected, err)
	}
	return m.SetSignature(ctx, key, sig)
}

// EnsureSigned returns a valid signed key, asking signer for at most one
// signature per challenge no matter how many callers are waiting.
func (m *Manager) EnsureSigned(ctx context.Context, address domain.Address, packageID domain.ObjectID, ttlMinutes int, signer wallet.Signer) (*Key, error) {
	if signer.Address() != address {
		return nil, fmt.Errorf("%w: wallet %s, session %s", ErrWalletMismatch, signer.Address(), address)
	}
	key, err := m.GetOrCreate(ctx, address, packageID, ttlMinutes)
	if err != nil {
		return nil, err
	}
	if key.IsValid(m.now()) {
		return key, nil
	}

	flight := key.Subject().Key() + "@" + strconv.FormatInt(key.CreatedAt.UnixMilli(), 10)
	v, err, _ := m.signing.Do(flight, func() (any, error) {
		// A flight that finished just before this one may already have signed.
		if current, err := m.load(ctx, key.Subject()); err == nil &&
			current.CreatedAt.Equal(key.CreatedAt) && current.IsValid(m.now()) {
			return current, nil
		}
		sig, err := signer.SignPersonalMessage(ctx, key.Challenge)
		if err != nil {
			return nil, fmt.Errorf("wallet signature: %w", err)
		}
		if err := m.SetSignature(ctx, key, sig); err != nil {
			return nil, err
		}
		return key, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Key).clone(), nil
}

// Invalidate drops the subject's key so the next call re-challenges.
func (m *Manager) Invalidate(ctx context.Context, address domain.Address, packageID domain.ObjectID) error {
	if err := m.store.Delete(ctx, Subject{Address: address, PackageID: packageID}); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	m.metrics.AddRemoved("invalidated", 1)
	return nil
}

// SweepExpired removes every key past CreatedAt + TTL.
func (m *Manager) SweepExpired(ctx context.Context) (int, error) {
	n, err := m.store.DeleteExpired(ctx, m.now())
	if err != nil {
		return 0, fmt.Errorf("sweep sessions: %w", err)
	}
	m.metrics.AddRemoved("expired", n)
	m.updateEntries(ctx)
	if n > 0 {
		m.logger.InfoContext(ctx, "expired session keys swept", "count", n)
		m.emitSystem(ctx, audit.EventSessionsSwept, n)
	}
	return n, nil
}

// EvictIfOverCapacity evicts the oldest quarter of keys (at least one) by
// CreatedAt when the store holds more than maxEntries.
func (m *Manager) EvictIfOverCapacity(ctx context.Context, maxEntries int) (int, error) {
	if maxEntries < 0 {
		return 0, fmt.Errorf("max entries must not be negative: %d", maxEntries)
	}
	size, err := m.store.Len(ctx)
	if err != nil {
		return 0, fmt.Errorf("count sessions: %w", err)
	}
	if size <= maxEntries {
		return 0, nil
	}
	count := max(size/4, 1)
	victims, err := m.store.Oldest(ctx, count)
	if err != nil {
		return 0, fmt.Errorf("select eviction victims: %w", err)
	}
	evicted := 0
	for _, subject := range victims {
		if err := m.store.Delete(ctx, subject); err != nil {
			return evicted, fmt.Errorf("evict session: %w", err)
		}
		evicted++
	}
	m.metrics.AddRemoved("evicted", evicted)
	m.metrics.SetEntries(size - evicted)
	m.logger.InfoContext(ctx, "session keys evicted", "count", evicted, "size", size, "max", maxEntries)
	m.emitSystem(ctx, audit.EventSessionsEvicted, evicted)
	return evicted, nil
}

// RunSweeper sweeps expired keys every interval and, when maxEntries > 0,
// enforces capacity. It returns when ctx is cancelled.
func (m *Manager) RunSweeper(ctx context.Context, interval time.Duration, maxEntries int) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if _, err := m.SweepExpired(ctx); err != nil {
				m.logger.WarnContext(ctx, "session sweep failed", "error", err)
				continue
			}
			if maxEntries > 0 {
				if _, err := m.EvictIfOverCapacity(ctx, maxEntries); err != nil {
					m.logger.WarnContext(ctx, "session eviction failed", "error", err)
				}
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (m *Manager) updateEntries(ctx context.Context) {
	if n, err := m.store.Len(ctx); err == nil {
		m.metrics.SetEntries(n)
	}
}

func (m *Manager) reject(ctx context.Context, subject Subject, reason string) {
	m.metrics.IncrementRejected()
	m.logger.WarnContext(ctx, "session signature rejected",
		"address", subject.Address, "package_id", subject.PackageID, "reason", reason)
	m.emit(ctx, audit.EventSessionSignatureRejected, subject, reason)
}

func (m *Manager) emit(ctx context.Context, action audit.AuditEvent, subject Subject, reason string) {
	err := m.auditor.Emit(ctx, audit.Event{
		Subject:  subject.Address.String(),
		Action:   string(action),
		Resource: subject.PackageID.String(),
		Reason:   reason,
	})
	if err != nil {
		m.logger.WarnContext(ctx, "audit emit failed", "action", action, "error", err)
	}
}

func (m *Manager) emitSystem(ctx context.Context, action audit.AuditEvent, count int) {
	err := m.auditor.Emit(ctx, audit.Event{
		Subject: "session-manager",
		Action:  string(action),
		Reason:  strconv.Itoa(count) + " keys",
	})
	if err != nil {
		m.logger.WarnContext(ctx, "audit emit failed", "action", action, "error", err)
	}
}
