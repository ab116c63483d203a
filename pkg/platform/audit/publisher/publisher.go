package publisher

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	audit "provenance/pkg/platform/audit"
)

// Publisher emits audit events to a Store, synchronously by default or
// through a buffered channel when async mode is enabled. Close drains the
// buffer before returning so no event is lost on shutdown.
type Publisher struct {
	store  audit.Store
	logger *slog.Logger

	inbox  chan audit.Event
	wg     sync.WaitGroup
	closed sync.Once
}

type Option func(*Publisher)

// WithAsyncBuffer switches the publisher to async mode with the given
// channel capacity. Emit then never blocks on the store.
func WithAsyncBuffer(size int) Option {
	return func(p *Publisher) {
		p.inbox = make(chan audit.Event, size)
	}
}

// WithLogger sets the logger used to report append failures in async mode,
// where the caller is no longer around to receive the error.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		p.logger = logger
	}
}

func NewPublisher(store audit.Store, opts ...Option) *Publisher {
	p := &Publisher{store: store}
	for _, opt := range opts {
		opt(p)
	}
	if p.inbox != nil {
		p.wg.Add(1)
		go p.drain()
	}
	return p
}

// Emit records an event. Missing ID and timestamp are filled in here so
// call sites stay minimal.
func (p *Publisher) Emit(ctx context.Context, event audit.Event) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	if p.inbox != nil {
		p.inbox <- event
		return nil
	}
	return p.store.Append(ctx, event)
}

// ListBySubject exposes the underlying store's query for callers that hold
// only the publisher.
func (p *Publisher) ListBySubject(ctx context.Context, subject string) ([]audit.Event, error) {
	return p.store.ListBySubject(ctx, subject)
}

// Close stops async processing after draining pending events.
func (p *Publisher) Close() {
	p.closed.Do(func() {
		if p.inbox != nil {
			close(p.inbox)
			p.wg.Wait()
		}
	})
}

func (p *Publisher) drain() {
	defer p.wg.Done()
	for event := range p.inbox {
		if err := p.store.Append(context.Background(), event); err != nil && p.logger != nil {
			p.logger.Error("audit append failed",
				"action", event.Action,
				"subject", event.Subject,
				"error", err.Error(),
			)
		}
	}
}
