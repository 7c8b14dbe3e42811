// Package worker drains buffered audit events into a store.
package worker

import (
	"context"
	"log/slog"

	audit "github.com/CommandOSSLabs/personal-data-wallet-sub010/pkg/platform/audit"
)

// DefaultMaxBatch bounds how many queued events are flushed together.
const DefaultMaxBatch = 64

type Worker struct {
	store    audit.Store
	inbox    <-chan audit.Event
	logger   *slog.Logger
	maxBatch int
}

type Option func(*Worker)

func WithLogger(logger *slog.Logger) Option {
	return func(w *Worker) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// WithMaxBatch sets the flush size; values below 1 flush one event at a time.
func WithMaxBatch(n int) Option {
	return func(w *Worker) { w.maxBatch = max(n, 1) }
}

func New(store audit.Store, inbox <-chan audit.Event, opts ...Option) *Worker {
	w := &Worker{store: store, inbox: inbox, logger: slog.Default(), maxBatch: DefaultMaxBatch}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run blocks for the first queued event, then takes whatever else is already
// waiting (up to the batch size) and flushes it. It returns once the inbox is
// closed and drained, or when ctx ends.
func (w *Worker) Run(ctx context.Context) error {
	batch := make([]audit.Event, 0, w.maxBatch)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-w.inbox:
			if !ok {
				return nil
			}
			batch = append(batch[:0], event)
			open := w.fill(&batch)
			w.flush(ctx, batch)
			if !open {
				return nil
			}
		}
	}
}

// fill reports false once the inbox has been closed.
func (w *Worker) fill(batch *[]audit.Event) bool {
	for len(*batch) < w.maxBatch {
		select {
		case event, ok := <-w.inbox:
			if !ok {
				return false
			}
			*batch = append(*batch, event)
		default:
			return true
		}
	}
	return true
}

// flush never fails the caller: a lost audit row must not stall decryption.
func (w *Worker) flush(ctx context.Context, batch []audit.Event) {
	if bs, ok := w.store.(audit.BatchStore); ok && len(batch) > 1 {
		if err := bs.AppendBatch(ctx, batch); err != nil {
			w.logger.WarnContext(ctx, "audit batch append failed",
				"events", len(batch),
				"error", err,
			)
		}
		return
	}
	for _, event := range batch {
		if err := w.store.Append(ctx, event); err != nil {
			w.logger.WarnContext(ctx, "audit append failed",
				"action", event.Action,
				"subject", event.Subject,
				"error", err,
			)
		}
	}
}
