package audit

import (
	"context"
	"log/slog"
	"time"

	id "datex/pkg/domain"
)

// Publisher emits audit events with fail-closed semantics: Emit blocks until
// the durable store write succeeds, and the calling operation must fail if it
// returns an error. An optional forward channel feeds the Kafka worker for
// downstream consumers; forwarding is best-effort because the store write is
// the compliance guarantee.
type Publisher struct {
	store   Store
	forward chan<- Event
	logger  *slog.Logger
}

// Option configures the Publisher.
type Option func(*Publisher)

// WithForwardChannel attaches the Kafka forwarding inbox.
func WithForwardChannel(ch chan<- Event) Option {
	return func(p *Publisher) { p.forward = ch }
}

// WithLogger sets a logger for forwarding backpressure warnings.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) { p.logger = logger }
}

// NewPublisher creates a fail-closed publisher over the given store.
func NewPublisher(store Store, opts ...Option) *Publisher {
	p := &Publisher{store: store}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Emit synchronously appends the event. The write happens before the business
// operation acknowledges, so the audit trail is a superset of all granted
// accesses even under concurrent fetches.
func (p *Publisher) Emit(ctx context.Context, event Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	if event.ID.IsNil() {
		event.ID = id.NewAuditEntryID()
	}
	if event.Category == "" {
		event.Category = AuditEvent(event.Action).Category()
	}
	if err := p.store.Append(ctx, event); err != nil {
		return err
	}
	if p.forward != nil {
		select {
		case p.forward <- event:
		default:
			if p.logger != nil {
				p.logger.WarnContext(ctx, "audit forward channel full, event not forwarded",
					"action", event.Action,
				)
			}
		}
	}
	return nil
}

// List returns the audit trail for a subject fingerprint.
func (p *Publisher) List(ctx context.Context, subject string) ([]Event, error) {
	return p.store.ListBySubject(ctx, subject)
}
