// Package network fans threshold fetch requests out to a weighted set of key
// servers and returns as soon as enough weight has released its shares.
package network

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/CommandOSSLabs/personal-data-wallet-sub010/internal/threshold"
	"github.com/CommandOSSLabs/personal-data-wallet-sub010/pkg/platform/circuit"
)

// Service is one key server, reached in-process or over HTTP.
type Service interface {
	FetchKey(ctx context.Context, req threshold.KeyRequest) (*threshold.KeyResponse, error)
}

type Network struct {
	services      map[string]Service
	breakers      map[string]*circuit.Breaker
	serverTimeout time.Duration
	logger        *slog.Logger
}

type Option func(*Network)

func WithLogger(l *slog.Logger) Option {
	return func(n *Network) { n.logger = l }
}

// WithServerTimeout bounds each server call independently of the caller's deadline.
func WithServerTimeout(d time.Duration) Option {
	return func(n *Network) { n.serverTimeout = d }
}

// WithBreakerOptions configures the per-server circuit breakers.
func WithBreakerOptions(opts ...circuit.Option) Option {
	return func(n *Network) {
		for id := range n.services {
			n.breakers[id] = circuit.New(id, opts...)
		}
	}
}

func New(services map[string]Service, opts ...Option) *Network {
	n := &Network{
		services: services,
		breakers: make(map[string]*circuit.Breaker, len(services)),
		logger:   slog.Default(),
	}
	for id := range services {
		n.breakers[id] = circuit.New(id, circuit.WithFailureThreshold(3), circuit.WithCooldown(10*time.Second))
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Breaker exposes a server's breaker for health reporting.
func (n *Network) Breaker(serverID string) *circuit.Breaker { return n.breakers[serverID] }

// FetchShares contacts every server named in the header concurrently and
// cancels the stragglers once the collected weight reaches the threshold.
func (n *Network) FetchShares(ctx context.Context, req threshold.FetchRequest) ([]threshold.KeyResponse, error) {
	parent := ctx
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		mu        sync.Mutex
		weight    int
		responses []threshold.KeyResponse
		failures  []*threshold.ServerError
		g         errgroup.Group
	)
	need := req.Header.Threshold

	for _, srv := range req.Header.Servers {
		svc, ok := n.services[srv.ServerID]
		if !ok {
			failures = append(failures, &threshold.ServerError{ServerID: srv.ServerID, Code: threshold.CodeUnavailable, Message: "unknown key server"})
			continue
		}
		breaker := n.breakers[srv.ServerID]
		if !breaker.Allow() {
			failures = append(failures, &threshold.ServerError{ServerID: srv.ServerID, Code: threshold.CodeUnavailable, Message: "circuit open"})
			continue
		}
		kr := req.For(srv.ServerID)
		serverWeight := len(srv.Shares)

		g.Go(func() error {
			resp, err := n.call(ctx, svc, kr)

			mu.Lock()
			defer mu.Unlock()
			if weight >= need {
				return nil
			}
			if err != nil {
				se := toServerError(srv.ServerID, err)
				// The caller gave up; that says nothing about the server.
				if parent.Err() != nil {
					failures = append(failures, se)
					return nil
				}
				if se.Code.Transient() {
					if _, change := breaker.RecordFailure(); change.Opened {
						n.logger.WarnContext(ctx, "key server circuit opened", "server", srv.ServerID)
					}
				} else {
					breaker.RecordSuccess()
				}
				failures = append(failures, se)
				return nil
			}
			if _, change := breaker.RecordSuccess(); change.Closed {
				n.logger.InfoContext(ctx, "key server circuit closed", "server", srv.ServerID)
			}
			resp.ServerID = srv.ServerID
			responses = append(responses, *resp)
			weight += serverWeight
			if weight >= need {
				cancel()
			}
			return nil
		})
	}
	_ = g.Wait()

	if weight >= need {
		return responses, nil
	}
	return nil, &threshold.QuorumError{Threshold: need, Weight: weight, Failures: failures}
}

func (n *Network) call(ctx context.Context, svc Service, req threshold.KeyRequest) (*threshold.KeyResponse, error) {
	if n.serverTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, n.serverTimeout)
		defer cancel()
	}
	return svc.FetchKey(ctx, req)
}

func toServerError(serverID string, err error) *threshold.ServerError {
	var se *threshold.ServerError
	if errors.As(err, &se) {
		cp := *se
		cp.ServerID = serverID
		return &cp
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &threshold.ServerError{ServerID: serverID, Code: threshold.CodeTimeout, Message: err.Error()}
	}
	return &threshold.ServerError{ServerID: serverID, Code: threshold.CodeUnavailable, Message: fmt.Sprint(err)}
}
