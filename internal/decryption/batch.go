package decryption

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/CommandOSSLabs/personal-data-wallet-sub010/internal/session"
	"github.com/CommandOSSLabs/personal-data-wallet-sub010/pkg/domain"
)

// DecryptBatch decrypts every request, at most MaxConcurrentDecryptions at a
// time. Each wallet in the batch gets one session key and at most one
// signature. Failures are isolated per item and reported in Failed; the call
// itself never fails.
//
// Cancelling ctx stops dispatch. Requests already dispatched run to
// completion and still populate the cache; the rest are reported as failed
// with the cancellation error.
func (s *Service) DecryptBatch(ctx context.Context, reqs []Request) *BatchResult {
	batchID := uuid.NewString()
	ctx, span := s.tracer.Start(ctx, "decryption.DecryptBatch", trace.WithAttributes(
		attribute.String("pdw.batch_id", batchID),
		attribute.Int("pdw.batch_size", len(reqs)),
	))
	defer span.End()
	s.metrics.ObserveBatchSize(len(reqs))
	start := time.Now()

	results := make([]*Result, len(reqs))
	failures := make([]*Failure, len(reqs))
	detached := context.WithoutCancel(ctx)

	keys := make(map[domain.Address]func() (*session.Key, error))
	for i, req := range reqs {
		if err := req.Validate(); err != nil {
			s.observe(ctx, req, nil, 0, err, 0)
			failures[i] = newFailure(req, err, 0)
			continue
		}
		if _, ok := keys[req.UserAddress]; !ok {
			addr := req.UserAddress
			keys[addr] = sync.OnceValues(func() (*session.Key, error) {
				return s.SessionKey(detached, addr)
			})
		}
	}

	var wg sync.WaitGroup
	for i, req := range reqs {
		if failures[i] != nil {
			continue
		}
		if err := s.acquire(ctx); err != nil {
			s.abandon(ctx, reqs[i:], failures[i:], err)
			break
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer s.release()
			res, retries, err := s.run(detached, req, keys[req.UserAddress])
			if err != nil {
				failures[i] = newFailure(req, err, retries)
				return
			}
			results[i] = res
		}()
	}
	wg.Wait()

	out := &BatchResult{Successful: []Result{}, Failed: []Failure{}}
	for i := range reqs {
		switch {
		case results[i] != nil:
			out.Successful = append(out.Successful, *results[i])
		case failures[i] != nil:
			out.Failed = append(out.Failed, *failures[i])
		}
	}

	span.SetAttributes(
		attribute.Int("pdw.batch_succeeded", len(out.Successful)),
		attribute.Int("pdw.batch_failed", len(out.Failed)),
	)
	s.logger.InfoContext(ctx, "decryption batch finished",
		"batch_id", batchID,
		"requests", len(reqs),
		"succeeded", len(out.Successful),
		"failed", len(out.Failed),
		"duration", time.Since(start),
	)
	return out
}

func (s *Service) acquire(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	s.metrics.AddInFlight(1)
	return nil
}

func (s *Service) release() {
	s.metrics.AddInFlight(-1)
	s.sem.Release(1)
}

// abandon fails every request that was not dispatched before cancellation.
func (s *Service) abandon(ctx context.Context, reqs []Request, failures []*Failure, cause error) {
	err := fmt.Errorf("batch cancelled before dispatch: %w", cause)
	for i, req := range reqs {
		if failures[i] != nil {
			continue
		}
		s.observe(ctx, req, nil, 0, err, 0)
		failures[i] = newFailure(req, err, 0)
	}
}

func newFailure(req Request, err error, retries int) *Failure {
	return &Failure{
		Request: req,
		Kind:    Classify(err),
		Message: err.Error(),
		Retries: retries,
		Err:     err,
	}
}
