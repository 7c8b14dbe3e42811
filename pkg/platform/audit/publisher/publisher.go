package publisher

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	audit "github.com/CommandOSSLabs/personal-data-wallet-sub010/pkg/platform/audit"
	"github.com/CommandOSSLabs/personal-data-wallet-sub010/pkg/platform/audit/worker"
)

var ErrBufferFull = errors.New("audit buffer full")

// Publisher fills in event defaults and writes to a store, either inline or
// through a bounded buffer drained by a worker.
type Publisher struct {
	store  audit.Store
	logger *slog.Logger
	now    func() time.Time

	bufferSize int
	inbox      chan audit.Event
	done       chan struct{}
	closeOnce  sync.Once
}

type Option func(*Publisher)

// WithAsyncBuffer switches to async mode with a buffer of n events.
func WithAsyncBuffer(n int) Option {
	return func(p *Publisher) { p.bufferSize = n }
}

func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) { p.logger = logger }
}

func WithClock(now func() time.Time) Option {
	return func(p *Publisher) { p.now = now }
}

func NewPublisher(store audit.Store, opts ...Option) *Publisher {
	p := &Publisher{store: store, logger: slog.Default(), now: time.Now}
	for _, opt := range opts {
		opt(p)
	}
	if p.bufferSize > 0 {
		p.inbox = make(chan audit.Event, p.bufferSize)
		p.done = make(chan struct{})
		w := worker.New(store, p.inbox, worker.WithLogger(p.logger))
		go func() {
			defer close(p.done)
			_ = w.Run(context.Background())
		}()
	}
	return p
}

// Emit records event. In async mode a full buffer drops the event and
// returns ErrBufferFull unless ctx is already done.
func (p *Publisher) Emit(ctx context.Context, event audit.Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = p.now()
	}
	if event.Category == "" {
		event.Category = audit.AuditEvent(event.Action).Category()
	}
	if p.inbox == nil {
		return p.store.Append(ctx, event)
	}
	select {
	case p.inbox <- event:
		return nil
	default:
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	p.logger.WarnContext(ctx, "audit buffer full, dropping event", "action", event.Action)
	return ErrBufferFull
}

func (p *Publisher) List(ctx context.Context, subject string) ([]audit.Event, error) {
	return p.store.ListBySubject(ctx, subject)
}

// Close drains buffered events. Emit must not be called after Close.
func (p *Publisher) Close() {
	if p.inbox == nil {
		return
	}
	p.closeOnce.Do(func() {
		close(p.inbox)
		<-p.done
	})
}
