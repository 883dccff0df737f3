package worker

import (
	"context"
	"encoding/json"
	"log/slog"

	audit "datex/pkg/platform/audit"
)

// Producer is the Kafka-facing side of the forwarder. Satisfied by
// internal/platform/kafka.Producer.
type Producer interface {
	Produce(ctx context.Context, topic string, key, value []byte) error
}

// Topic names per event category. Compliance events get their own topic so a
// downstream consumer can apply tamper-evident storage and long retention.
const (
	TopicCompliance = "datex.audit.compliance"
	TopicSecurity   = "datex.audit.security"
	TopicOperations = "datex.audit.operations"
)

// Topics lists all audit topics for startup topic creation.
var Topics = []string{TopicCompliance, TopicSecurity, TopicOperations}

// Forwarder consumes audit events from the publisher's forward channel and
// ships them to Kafka, routed by category. Keying by subject keeps one
// customer's trail in partition order.
type Forwarder struct {
	producer Producer
	inbox    <-chan audit.Event
	logger   *slog.Logger
}

func NewForwarder(producer Producer, inbox <-chan audit.Event, logger *slog.Logger) *Forwarder {
	return &Forwarder{producer: producer, inbox: inbox, logger: logger}
}

// Run forwards events until ctx is cancelled. Produce failures are logged and
// skipped: the durable store write already happened, so losing a forward is an
// operational concern, not a compliance gap.
func (f *Forwarder) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event := <-f.inbox:
			f.forward(ctx, event)
		}
	}
}

func (f *Forwarder) forward(ctx context.Context, event audit.Event) {
	value, err := json.Marshal(event)
	if err != nil {
		f.logger.ErrorContext(ctx, "marshal audit event for kafka", "error", err)
		return
	}
	if err := f.producer.Produce(ctx, topicFor(event.Category), []byte(event.Subject), value); err != nil {
		f.logger.WarnContext(ctx, "forward audit event to kafka failed",
			"action", event.Action,
			"error", err,
		)
	}
}

func topicFor(category audit.EventCategory) string {
	switch category {
	case audit.CategoryCompliance:
		return TopicCompliance
	case audit.CategorySecurity:
		return TopicSecurity
	default:
		return TopicOperations
	}
}
