package decryption_test

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	blobmemory "github.com/CommandOSSLabs/personal-data-wallet-sub010/internal/blob/memory"
	"github.com/CommandOSSLabs/personal-data-wallet-sub010/internal/decryption"
	"github.com/CommandOSSLabs/personal-data-wallet-sub010/internal/decryption/metrics"
	"github.com/CommandOSSLabs/personal-data-wallet-sub010/internal/decryption/mocks"
	"github.com/CommandOSSLabs/personal-data-wallet-sub010/internal/identity"
	"github.com/CommandOSSLabs/personal-data-wallet-sub010/internal/session"
	"github.com/CommandOSSLabs/personal-data-wallet-sub010/internal/sui"
	"github.com/CommandOSSLabs/personal-data-wallet-sub010/internal/threshold"
	"github.com/CommandOSSLabs/personal-data-wallet-sub010/internal/wallet"
	"github.com/CommandOSSLabs/personal-data-wallet-sub010/pkg/domain"
	"github.com/CommandOSSLabs/personal-data-wallet-sub010/pkg/platform/audit"
	auditmemory "github.com/CommandOSSLabs/personal-data-wallet-sub010/pkg/platform/audit/store/memory"
	"github.com/CommandOSSLabs/personal-data-wallet-sub010/pkg/platform/sentinel"
)

type storeEmitter struct{ store audit.Store }

func (e storeEmitter) Emit(ctx context.Context, ev audit.Event) error { return e.store.Append(ctx, ev) }

type ServiceSuite struct {
	suite.Suite
	ctx       context.Context
	ctrl      *gomock.Controller
	sessions  *mocks.MockSessions
	decrypter *mocks.MockDecrypter
	audit     *auditmemory.InMemoryStore
	metrics   *metrics.Metrics
	cfg       decryption.Config
	svc       *decryption.Service

	alice  domain.Address
	bob    domain.Address
	key    *session.Key
	header threshold.Header
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.ctx = context.Background()
	s.ctrl = gomock.NewController(s.T())
	s.sessions = mocks.NewMockSessions(s.ctrl)
	s.decrypter = mocks.NewMockDecrypter(s.ctrl)
	s.audit = auditmemory.NewInMemoryStore()
	s.metrics = metrics.New(prometheus.NewRegistry())

	pkg := domain.MustParseObjectID("0x5ea1")
	s.cfg = decryption.DefaultConfig()
	s.cfg.PackageID = pkg
	s.cfg.RegistryRef = sui.SharedObjectArg{ID: domain.MustParseObjectID("0x7e6"), InitialSharedVersion: 1}
	s.cfg.RetryBaseDelay = time.Millisecond
	s.cfg.DecryptionTimeout = 50 * time.Millisecond

	s.alice = domain.MustParseAddress("0xa11ce")
	s.bob = domain.MustParseAddress("0xb0b")
	s.key = &session.Key{Address: s.alice, PackageID: pkg, TTLMinutes: 10}
	s.header = threshold.Header{
		PackageID: pkg,
		Identity:  identity.NewEncoder(pkg).MustEncode(identity.Self(s.alice)),
		Threshold: 1,
	}
	s.svc = s.newService()
}

func (s *ServiceSuite) newService(opts ...decryption.Option) *decryption.Service {
	opts = append([]decryption.Option{
		decryption.WithAuditor(storeEmitter{s.audit}),
		decryption.WithMetrics(s.metrics),
	}, opts...)
	svc, err := decryption.New(s.cfg, s.sessions, s.decrypter, opts...)
	s.Require().NoError(err)
	return svc
}

func (s *ServiceSuite) request(memoryID string) decryption.Request {
	return decryption.Request{MemoryID: memoryID, UserAddress: s.alice, Ciphertext: []byte("ciphertext")}
}

// expectPrepared stubs everything before the threshold decrypt call.
func (s *ServiceSuite) expectPrepared() {
	s.decrypter.EXPECT().Inspect(gomock.Any()).Return(s.header, nil).AnyTimes()
	s.sessions.EXPECT().GetOrCreate(gomock.Any(), s.alice, s.cfg.PackageID, s.cfg.SessionTTLMinutes).Return(s.key, nil).AnyTimes()
}

func (s *ServiceSuite) TestRetriesTransientFailures() {
	s.expectPrepared()
	gomock.InOrder(
		s.decrypter.EXPECT().Decrypt(gomock.Any(), gomock.Any(), s.key, gomock.Any()).Return(nil, threshold.ErrTimeout),
		s.decrypter.EXPECT().Decrypt(gomock.Any(), gomock.Any(), s.key, gomock.Any()).Return(nil, threshold.ErrTransientNetwork),
		s.decrypter.EXPECT().Decrypt(gomock.Any(), gomock.Any(), s.key, gomock.Any()).Return([]byte("hi"), nil),
	)

	res, err := s.svc.DecryptOne(s.ctx, s.request("m1"))
	s.Require().NoError(err)
	s.Equal("hi", string(res.Plaintext))
	s.Equal(2, res.Retries)
	s.False(res.FromCache)

	st := s.svc.Stats()
	s.Equal(int64(2), st.Retries)
	s.Equal(int64(1), st.Successes)
	s.Equal(2.0, testutil.ToFloat64(s.metrics.Retries))
	s.Len(s.audit.ListByAction(s.ctx, audit.EventDecryptSucceeded), 1)
}

func (s *ServiceSuite) TestTerminalErrorsAreNotRetried() {
	tests := []struct {
		name    string
		err     error
		kind    decryption.ErrorKind
		audited bool
	}{
		{"threshold not met", threshold.ErrThresholdNotMet, decryption.KindThresholdNotMet, true},
		{"signature rejected", threshold.ErrSignatureRejected, decryption.KindSignatureRejected, true},
		{"signature not set", threshold.ErrSignatureNotSet, decryption.KindSignatureNotSet, false},
		{"unknown", errors.New("boom"), decryption.KindUnknown, false},
	}
	s.expectPrepared()
	for _, tt := range tests {
		s.Run(tt.name, func() {
			s.audit.Clear()
			s.decrypter.EXPECT().Decrypt(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, tt.err).Times(1)

			_, err := s.svc.DecryptOne(s.ctx, s.request("m-"+tt.name))
			s.ErrorIs(err, tt.err)
			s.Equal(tt.kind, decryption.Classify(err))
			s.Equal(tt.audited, len(s.audit.ListByAction(s.ctx, audit.EventDecryptDenied)) == 1)
		})
	}
	s.Zero(s.svc.Stats().Retries)
}

func (s *ServiceSuite) TestGivesUpAfterMaxRetries() {
	s.expectPrepared()
	s.decrypter.EXPECT().Decrypt(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return(nil, threshold.ErrTransientNetwork).Times(s.cfg.MaxRetries + 1)

	_, err := s.svc.DecryptOne(s.ctx, s.request("m1"))
	s.ErrorIs(err, threshold.ErrTransientNetwork)
	s.Equal(int64(s.cfg.MaxRetries), s.svc.Stats().Retries)
	s.Equal(int64(1), s.svc.Stats().Failures)
}

func (s *ServiceSuite) TestEachAttemptIsBoundedByTimeout() {
	s.cfg.MaxRetries = 1
	s.svc = s.newService()
	s.expectPrepared()

	var deadlines []bool
	s.decrypter.EXPECT().Decrypt(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, _ []byte, _ *session.Key, _ []byte) ([]byte, error) {
			_, ok := ctx.Deadline()
			deadlines = append(deadlines, ok)
			<-ctx.Done()
			return nil, threshold.MapError(ctx.Err())
		}).Times(2)

	start := time.Now()
	_, err := s.svc.DecryptOne(s.ctx, s.request("m1"))
	s.ErrorIs(err, threshold.ErrTimeout)
	s.Equal([]bool{true, true}, deadlines)
	s.Less(time.Since(start), 5*time.Second)
}

func (s *ServiceSuite) TestCallerCancellationStopsRetrying() {
	s.cfg.RetryBaseDelay = time.Hour
	s.svc = s.newService()
	s.expectPrepared()

	ctx, cancel := context.WithCancel(s.ctx)
	s.decrypter.EXPECT().Decrypt(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(context.Context, []byte, *session.Key, []byte) ([]byte, error) {
			cancel()
			return nil, threshold.ErrTransientNetwork
		}).Times(1)

	_, err := s.svc.DecryptOne(ctx, s.request("m1"))
	s.ErrorIs(err, context.Canceled)
	s.Equal(decryption.KindCanceled, decryption.Classify(err))
}

func (s *ServiceSuite) TestIntegrityMismatchIsSurfacedAndNotCached() {
	s.expectPrepared()
	s.decrypter.EXPECT().Decrypt(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return([]byte("tampered"), nil).Times(2)

	req := s.request("m1")
	sum := sha256.Sum256([]byte("original"))
	req.ContentHash = sum[:]

	for range 2 {
		_, err := s.svc.DecryptOne(s.ctx, req)
		s.ErrorIs(err, decryption.ErrIntegrityMismatch)
		s.Equal(decryption.KindIntegrity, decryption.Classify(err))
	}
	s.Len(s.audit.ListByAction(s.ctx, audit.EventIntegrityMismatch), 2)
	s.Zero(s.svc.Stats().CacheHits)
	s.Zero(s.svc.Stats().Retries)
}

func (s *ServiceSuite) TestMatchingContentHash() {
	s.expectPrepared()
	s.decrypter.EXPECT().Decrypt(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return([]byte("original"), nil)

	req := s.request("m1")
	sum := sha256.Sum256([]byte("original"))
	req.ContentHash = sum[:]
	res, err := s.svc.DecryptOne(s.ctx, req)
	s.Require().NoError(err)
	s.Equal("original", string(res.Plaintext))
}

func (s *ServiceSuite) TestCacheIsScopedToRequester() {
	s.expectPrepared()
	s.decrypter.EXPECT().Decrypt(gomock.Any(), gomock.Any(), s.key, gomock.Any()).Return([]byte("hi"), nil).Times(1)

	_, err := s.svc.DecryptOne(s.ctx, s.request("m1"))
	s.Require().NoError(err)

	res, err := s.svc.DecryptOne(s.ctx, s.request("m1"))
	s.Require().NoError(err)
	s.True(res.FromCache)
	s.Equal("hi", string(res.Plaintext))

	s.Run("another wallet goes through the policy check", func() {
		bobKey := &session.Key{Address: s.bob, PackageID: s.cfg.PackageID, TTLMinutes: 10}
		s.sessions.EXPECT().GetOrCreate(gomock.Any(), s.bob, s.cfg.PackageID, gomock.Any()).Return(bobKey, nil)
		s.decrypter.EXPECT().Decrypt(gomock.Any(), gomock.Any(), bobKey, gomock.Any()).Return(nil, threshold.ErrThresholdNotMet)

		req := s.request("m1")
		req.UserAddress = s.bob
		_, err := s.svc.DecryptOne(s.ctx, req)
		s.ErrorIs(err, threshold.ErrThresholdNotMet)
	})

	st := s.svc.Stats()
	s.Equal(int64(1), st.CacheHits)
	s.Equal(int64(2), st.CacheMisses)
	s.Equal(int64(3), st.Total)
	s.Equal(1.0, testutil.ToFloat64(s.metrics.CacheLookups.WithLabelValues("hit")))
}

func (s *ServiceSuite) TestGrantedAccessIsNotCached() {
	bobKey := &session.Key{Address: s.bob, PackageID: s.cfg.PackageID, TTLMinutes: 10}
	s.decrypter.EXPECT().Inspect(gomock.Any()).Return(s.header, nil).Times(2)
	s.sessions.EXPECT().GetOrCreate(gomock.Any(), s.bob, s.cfg.PackageID, gomock.Any()).Return(bobKey, nil).Times(2)
	s.decrypter.EXPECT().Decrypt(gomock.Any(), gomock.Any(), bobKey, gomock.Any()).Return([]byte("hi"), nil).Times(2)

	req := s.request("m1")
	req.UserAddress = s.bob
	for range 2 {
		res, err := s.svc.DecryptOne(s.ctx, req)
		s.Require().NoError(err)
		s.False(res.FromCache)
	}
	s.Zero(s.svc.Stats().CacheHits)
}

func (s *ServiceSuite) TestZeroCacheTTLDisablesCaching() {
	s.cfg.CacheTTL = 0
	s.svc = s.newService()
	s.expectPrepared()
	s.decrypter.EXPECT().Decrypt(gomock.Any(), gomock.Any(), s.key, gomock.Any()).Return([]byte("hi"), nil).Times(2)

	for range 2 {
		res, err := s.svc.DecryptOne(s.ctx, s.request("m1"))
		s.Require().NoError(err)
		s.False(res.FromCache)
	}
	s.Zero(s.svc.Stats().CacheHits)
}

func (s *ServiceSuite) TestCachedPlaintextMustMatchContentHash() {
	cache := mocks.NewMockCache(s.ctrl)
	s.svc = s.newService(decryption.WithCache(cache))
	s.expectPrepared()
	cache.EXPECT().Get(gomock.Any(), "m1", s.alice).Return([]byte("stale"), nil)
	s.decrypter.EXPECT().Decrypt(gomock.Any(), gomock.Any(), s.key, gomock.Any()).Return([]byte("fresh"), nil)
	cache.EXPECT().Set(gomock.Any(), "m1", s.alice, []byte("fresh"), s.cfg.CacheTTL).Return(nil)

	req := s.request("m1")
	sum := sha256.Sum256([]byte("fresh"))
	req.ContentHash = sum[:]
	res, err := s.svc.DecryptOne(s.ctx, req)
	s.Require().NoError(err)
	s.False(res.FromCache)
	s.Equal("fresh", string(res.Plaintext))
	s.Equal(int64(1), s.svc.Stats().CacheMisses)
}

func (s *ServiceSuite) TestBatchBoundsConcurrentDecryptions() {
	s.cfg.MaxConcurrentDecryptions = 3
	s.svc = s.newService()
	s.expectPrepared()

	var inFlight, peak atomic.Int32
	s.decrypter.EXPECT().Decrypt(gomock.Any(), gomock.Any(), s.key, gomock.Any()).
		DoAndReturn(func(context.Context, []byte, *session.Key, []byte) ([]byte, error) {
			n := inFlight.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			inFlight.Add(-1)
			return []byte("hi"), nil
		}).Times(12)

	var reqs []decryption.Request
	for i := range 12 {
		reqs = append(reqs, s.request(fmt.Sprintf("m%d", i)))
	}
	out := s.svc.DecryptBatch(s.ctx, reqs)
	s.Len(out.Successful, 12)
	s.Empty(out.Failed)
	s.LessOrEqual(peak.Load(), int32(3))
	s.Positive(peak.Load())
}

func (s *ServiceSuite) TestBatchCancelledMidway() {
	s.cfg.MaxConcurrentDecryptions = 1
	s.svc = s.newService()
	s.expectPrepared()

	started := make(chan struct{})
	unblock := make(chan struct{})
	s.decrypter.EXPECT().Decrypt(gomock.Any(), gomock.Any(), s.key, gomock.Any()).
		DoAndReturn(func(context.Context, []byte, *session.Key, []byte) ([]byte, error) {
			close(started)
			<-unblock
			return []byte("first"), nil
		}).Times(1)

	ctx, cancel := context.WithCancel(s.ctx)
	defer cancel()
	reqs := []decryption.Request{s.request("m0"), s.request("m1"), s.request("m2")}
	done := make(chan *decryption.BatchResult)
	go func() { done <- s.svc.DecryptBatch(ctx, reqs) }()

	<-started
	cancel()
	close(unblock)
	out := <-done

	s.Require().Len(out.Successful, 1, "the dispatched item runs to completion")
	s.Equal("m0", out.Successful[0].MemoryID)
	s.Require().Len(out.Failed, 2)
	for i, f := range out.Failed {
		s.Equal(fmt.Sprintf("m%d", i+1), f.Request.MemoryID)
		s.Equal(decryption.KindCanceled, f.Kind)
	}

	res, err := s.svc.DecryptOne(s.ctx, s.request("m0"))
	s.Require().NoError(err)
	s.True(res.FromCache, "the completed item was cached")
}

func (s *ServiceSuite) TestCacheHitNeedsNoSession() {
	cache := mocks.NewMockCache(s.ctrl)
	s.svc = s.newService(decryption.WithCache(cache))
	cache.EXPECT().Get(gomock.Any(), "m1", s.alice).Return([]byte("cached"), nil)

	res, err := s.svc.DecryptOne(s.ctx, s.request("m1"))
	s.Require().NoError(err)
	s.True(res.FromCache)
	s.Equal("cached", string(res.Plaintext))
}

func (s *ServiceSuite) TestCacheWriteFailureIsNotFatal() {
	cache := mocks.NewMockCache(s.ctrl)
	s.svc = s.newService(decryption.WithCache(cache))
	s.expectPrepared()
	cache.EXPECT().Get(gomock.Any(), "m1", s.alice).Return(nil, sentinel.ErrNotFound)
	cache.EXPECT().Set(gomock.Any(), "m1", s.alice, []byte("hi"), s.cfg.CacheTTL).Return(errors.New("redis down"))
	s.decrypter.EXPECT().Decrypt(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return([]byte("hi"), nil)

	res, err := s.svc.DecryptOne(s.ctx, s.request("m1"))
	s.Require().NoError(err)
	s.Equal("hi", string(res.Plaintext))
}

func (s *ServiceSuite) TestLocalSignerSignsSession() {
	signer, err := wallet.NewEd25519FromSeed(make([]byte, 32))
	s.Require().NoError(err)
	signers := mocks.NewMockSigners(s.ctrl)
	s.svc = s.newService(decryption.WithSigners(signers))

	signers.EXPECT().Get(s.alice).Return(signer, nil)
	s.sessions.EXPECT().EnsureSigned(gomock.Any(), s.alice, s.cfg.PackageID, s.cfg.SessionTTLMinutes, signer).Return(s.key, nil)
	s.decrypter.EXPECT().Inspect(gomock.Any()).Return(s.header, nil)
	s.decrypter.EXPECT().Decrypt(gomock.Any(), gomock.Any(), s.key, gomock.Any()).Return([]byte("hi"), nil)

	_, err = s.svc.DecryptOne(s.ctx, s.request("m1"))
	s.Require().NoError(err)

	s.Run("unknown address falls back to an unsigned session", func() {
		signers.EXPECT().Get(s.bob).Return(nil, wallet.ErrUnknownAddress)
		s.sessions.EXPECT().GetOrCreate(gomock.Any(), s.bob, s.cfg.PackageID, s.cfg.SessionTTLMinutes).Return(s.key, nil)
		_, err := s.svc.SessionKey(s.ctx, s.bob)
		s.NoError(err)
	})
}

func (s *ServiceSuite) TestBlobFetch() {
	blobs := blobmemory.NewInMemoryStore()
	id, err := blobs.Put(s.ctx, []byte("stored ciphertext"))
	s.Require().NoError(err)
	s.svc = s.newService(decryption.WithBlobStore(blobs))
	s.expectPrepared()
	s.decrypter.EXPECT().Decrypt(gomock.Any(), []byte("stored ciphertext"), gomock.Any(), gomock.Any()).Return([]byte("hi"), nil)

	res, err := s.svc.DecryptOne(s.ctx, decryption.Request{MemoryID: "m1", UserAddress: s.alice, BlobID: id})
	s.Require().NoError(err)
	s.Equal("hi", string(res.Plaintext))

	_, err = s.svc.DecryptOne(s.ctx, decryption.Request{MemoryID: "m2", UserAddress: s.alice, BlobID: "missing"})
	s.Equal(decryption.KindNotFound, decryption.Classify(err))
}

func (s *ServiceSuite) TestBlobRequestWithoutStore() {
	_, err := s.svc.DecryptOne(s.ctx, decryption.Request{MemoryID: "m1", UserAddress: s.alice, BlobID: "b"})
	s.ErrorIs(err, decryption.ErrNoBlobStore)
	s.Equal(decryption.KindInvalidRequest, decryption.Classify(err))
}

func (s *ServiceSuite) TestForeignIdentityIsRejected() {
	foreign := identity.NewEncoder(domain.MustParseObjectID("0xbeef")).MustEncode(identity.Self(s.alice))
	s.decrypter.EXPECT().Inspect(gomock.Any()).Return(threshold.Header{Identity: foreign}, nil)

	_, err := s.svc.DecryptOne(s.ctx, s.request("m1"))
	s.ErrorIs(err, identity.ErrMalformedIdentity)
	s.Equal(decryption.KindInvalidIdentity, decryption.Classify(err))
}

func (s *ServiceSuite) TestInvalidRequests() {
	hash := make([]byte, 31)
	tests := []struct {
		name string
		req  decryption.Request
	}{
		{"missing memory id", decryption.Request{UserAddress: s.alice, Ciphertext: []byte{1}}},
		{"missing user", decryption.Request{MemoryID: "m", Ciphertext: []byte{1}}},
		{"no source", decryption.Request{MemoryID: "m", UserAddress: s.alice}},
		{"short content hash", decryption.Request{MemoryID: "m", UserAddress: s.alice, Ciphertext: []byte{1}, ContentHash: hash}},
	}
	for _, tt := range tests {
		s.Run(tt.name, func() {
			_, err := s.svc.DecryptOne(s.ctx, tt.req)
			s.ErrorIs(err, decryption.ErrInvalidRequest)
		})
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		err       error
		want      decryption.ErrorKind
		retryable bool
	}{
		{threshold.ErrTimeout, decryption.KindTimeout, true},
		{context.DeadlineExceeded, decryption.KindTimeout, true},
		{threshold.ErrTransientNetwork, decryption.KindTransientNetwork, true},
		{sentinel.ErrUnavailable, decryption.KindTransientNetwork, true},
		{threshold.ErrThresholdNotMet, decryption.KindThresholdNotMet, false},
		{session.ErrSignatureRejected, decryption.KindSignatureRejected, false},
		{threshold.ErrSignatureNotSet, decryption.KindSignatureNotSet, false},
		{decryption.ErrIntegrityMismatch, decryption.KindIntegrity, false},
		{identity.ErrInvalidIdentity, decryption.KindInvalidIdentity, false},
		{threshold.ErrMalformedCiphertext, decryption.KindMalformed, false},
		{sentinel.ErrNotFound, decryption.KindNotFound, false},
		{context.Canceled, decryption.KindCanceled, false},
		{errors.New("other"), decryption.KindUnknown, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.want), func(t *testing.T) {
			got := decryption.Classify(tt.err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.retryable, got.Retryable())
		})
	}
	assert.Empty(t, decryption.Classify(nil))
}

func TestConfigValidate(t *testing.T) {
	valid := decryption.DefaultConfig()
	valid.PackageID = domain.MustParseObjectID("0x1")
	valid.RegistryRef = sui.SharedObjectArg{ID: domain.MustParseObjectID("0x2"), InitialSharedVersion: 1}
	assert.NoError(t, valid.Validate())

	tests := map[string]func(c *decryption.Config){
		"no package":       func(c *decryption.Config) { c.PackageID = domain.ObjectID{} },
		"no registry":      func(c *decryption.Config) { c.RegistryRef = sui.SharedObjectArg{} },
		"zero concurrency": func(c *decryption.Config) { c.MaxConcurrentDecryptions = 0 },
		"zero timeout":     func(c *decryption.Config) { c.DecryptionTimeout = 0 },
		"negative retries": func(c *decryption.Config) { c.MaxRetries = -1 },
		"long session ttl": func(c *decryption.Config) { c.SessionTTLMinutes = session.MaxTTLMinutes + 1 },
	}
	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			cfg := valid
			mutate(&cfg)
			assert.ErrorIs(t, cfg.Validate(), decryption.ErrInvalidConfig)
		})
	}
}
