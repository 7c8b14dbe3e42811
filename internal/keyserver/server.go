// Package keyserver is a key server holding shares of threshold-encrypted
// data keys. It releases a share only to a holder of a valid session
// certificate whose approval transaction succeeds on chain.
package keyserver

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/CommandOSSLabs/personal-data-wallet-sub010/internal/approval"
	"github.com/CommandOSSLabs/personal-data-wallet-sub010/internal/chain"
	"github.com/CommandOSSLabs/personal-data-wallet-sub010/internal/keyserver/metrics"
	"github.com/CommandOSSLabs/personal-data-wallet-sub010/internal/session"
	"github.com/CommandOSSLabs/personal-data-wallet-sub010/internal/threshold"
	"github.com/CommandOSSLabs/personal-data-wallet-sub010/internal/threshold/sealbox"
	"github.com/CommandOSSLabs/personal-data-wallet-sub010/pkg/platform/audit"
)

// ServiceInfo is the public description served at /v1/service.
type ServiceInfo struct {
	ID        string `json:"id"`
	PublicKey []byte `json:"public_key"`
}

type Server struct {
	id      string
	keys    sealbox.KeyPair
	chain   chain.Client
	module  string
	fn      string
	logger  *slog.Logger
	metrics *metrics.Metrics
	auditor audit.Emitter
}

type Option func(*Server)

func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

func WithAuditor(a audit.Emitter) Option {
	return func(s *Server) { s.auditor = a }
}

// WithApprovalTarget overrides the module and function approval calls must target.
func WithApprovalTarget(module, function string) Option {
	return func(s *Server) { s.module, s.fn = module, function }
}

func New(id string, keys sealbox.KeyPair, c chain.Client, opts ...Option) *Server {
	s := &Server{
		id:      id,
		keys:    keys,
		chain:   c,
		module:  approval.DefaultModule,
		fn:      approval.DefaultFunction,
		logger:  slog.Default(),
		auditor: audit.Nop{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Server) ID() string { return s.id }

func (s *Server) Info() ServiceInfo {
	return ServiceInfo{ID: s.id, PublicKey: append([]byte(nil), s.keys.Public...)}
}

// ServerInfo is the entry a threshold config needs for this server.
func (s *Server) ServerInfo(weight int) threshold.ServerInfo {
	return threshold.ServerInfo{ID: s.id, Weight: weight, PublicKey: append([]byte(nil), s.keys.Public...)}
}

// FetchKey verifies the session certificate and request signature, simulates
// the approval transaction, and reseals this server's shares to req.EncKey.
func (s *Server) FetchKey(ctx context.Context, req threshold.KeyRequest) (*threshold.KeyResponse, error) {
	start := time.Now()
	defer func() { s.metrics.ObserveLatency(s.id, time.Since(start)) }()

	resp, err := s.fetchKey(ctx, req)
	if err != nil {
		var se *threshold.ServerError
		if !errors.As(err, &se) {
			se = s.fail(threshold.CodeInternal, err.Error())
		}
		s.metrics.IncrementRequest(s.id, string(se.Code))
		s.logger.InfoContext(ctx, "key request refused",
			"server", s.id, "requester", req.Certificate.Address, "code", se.Code, "reason", se.Message)
		if se.Code == threshold.CodeNoAccess {
			s.emit(ctx, audit.EventShareDenied, req, se.Message)
		}
		return nil, se
	}
	s.metrics.IncrementRequest(s.id, "released")
	s.emit(ctx, audit.EventShareReleased, req, "")
	return resp, nil
}

func (s *Server) fetchKey(ctx context.Context, req threshold.KeyRequest) (*threshold.KeyResponse, error) {
	now, err := s.chain.Now(ctx)
	if err != nil {
		return nil, s.fail(threshold.CodeUnavailable, "read chain clock: "+err.Error())
	}

	cert := req.Certificate
	if err := cert.Verify(now); err != nil {
		if errors.Is(err, session.ErrCertificateExpired) {
			return nil, s.fail(threshold.CodeExpired, err.Error())
		}
		return nil, s.fail(threshold.CodeInvalidSignature, err.Error())
	}
	if cert.PackageID != req.PackageID {
		return nil, s.fail(threshold.CodeInvalidRequest, "certificate is for another package")
	}
	if len(req.EncKey) != sealbox.KeySize {
		return nil, s.fail(threshold.CodeInvalidRequest, "encryption key must be x25519")
	}
	if err := cert.VerifyRequest(req.ApprovalTx, req.EncKey, req.RequestSignature); err != nil {
		return nil, s.fail(threshold.CodeInvalidSignature, err.Error())
	}
	if len(req.Shares) == 0 {
		return nil, s.fail(threshold.CodeInvalidRequest, "no shares for this server")
	}

	call, err := approval.NewBuilder(req.PackageID, approval.WithModule(s.module), approval.WithFunction(s.fn)).Parse(req.ApprovalTx)
	if err != nil {
		return nil, s.fail(threshold.CodeInvalidTransaction, err.Error())
	}
	if !bytes.Equal(call.Identity, req.Identity) {
		return nil, s.fail(threshold.CodeInvalidTransaction, "approval identity differs from requested identity")
	}
	if call.Requester != cert.Address {
		return nil, s.fail(threshold.CodeInvalidTransaction, "approval requester differs from certificate address")
	}

	result, err := s.chain.SimulateTransaction(ctx, cert.Address, req.ApprovalTx)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, s.fail(threshold.CodeTimeout, err.Error())
		}
		return nil, s.fail(threshold.CodeUnavailable, "simulate approval: "+err.Error())
	}
	if !result.Success {
		return nil, s.fail(threshold.CodeNoAccess, result.Error)
	}

	out := &threshold.KeyResponse{ServerID: s.id}
	for _, sh := range req.Shares {
		aad := threshold.ShareAAD(req.PackageID, req.Identity, s.id, sh.X)
		value, err := sealbox.Open(s.keys, sh.Box, aad)
		if err != nil {
			return nil, s.fail(threshold.CodeInvalidRequest, fmt.Sprintf("share %d is not sealed to this server for this identity", sh.X))
		}
		box, err := sealbox.Seal(req.EncKey, value, aad)
		if err != nil {
			return nil, fmt.Errorf("reseal share: %w", err)
		}
		out.Shares = append(out.Shares, threshold.SealedShare{X: sh.X, Box: box})
	}
	return out, nil
}

func (s *Server) fail(code threshold.ServerErrorCode, msg string) *threshold.ServerError {
	return &threshold.ServerError{ServerID: s.id, Code: code, Message: msg}
}

func (s *Server) emit(ctx context.Context, action audit.AuditEvent, req threshold.KeyRequest, reason string) {
	err := s.auditor.Emit(ctx, audit.Event{
		Subject:  req.Certificate.Address.String(),
		Action:   string(action),
		Resource: fmt.Sprintf("%x", req.Identity),
		Reason:   reason,
		ActorID:  s.id,
	})
	if err != nil {
		s.logger.WarnContext(ctx, "audit emit failed", "action", action, "error", err)
	}
}
