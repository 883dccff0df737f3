//go:build integration

package kafka

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"

	audit "datex/pkg/platform/audit"
	auditworker "datex/pkg/platform/audit/worker"
	"datex/pkg/testutil/containers"
)

func TestAuditPipelineAgainstRedpanda(t *testing.T) {
	rp := containers.NewRedpandaContainer(t)
	t.Cleanup(func() { _ = rp.Container.Terminate(context.Background()) })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	producer, err := NewProducer(rp.Brokers, logger)
	require.NoError(t, err)
	t.Cleanup(producer.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	require.NoError(t, producer.EnsureTopics(ctx, auditworker.Topics...))
	// Idempotent on restart.
	require.NoError(t, producer.EnsureTopics(ctx, auditworker.Topics...))

	inbox := make(chan audit.Event, 8)
	forwarder := auditworker.NewForwarder(producer, inbox, logger)
	runCtx, stop := context.WithCancel(context.Background())
	defer stop()
	go func() { _ = forwarder.Run(runCtx) }()

	inbox <- audit.Event{
		Category: audit.CategoryCompliance,
		Subject:  "fp-integration",
		Action:   string(audit.EventDataReleased),
		Decision: "released",
	}

	consumer, err := kgo.NewClient(
		kgo.SeedBrokers(rp.Brokers...),
		kgo.ConsumeTopics(auditworker.TopicCompliance),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)
	require.NoError(t, err)
	t.Cleanup(consumer.Close)

	fetches := consumer.PollFetches(ctx)
	require.NoError(t, fetches.Err())
	records := fetches.Records()
	require.NotEmpty(t, records)

	var got audit.Event
	require.NoError(t, json.Unmarshal(records[0].Value, &got))
	require.Equal(t, "fp-integration", got.Subject)
	require.Equal(t, "fp-integration", string(records[0].Key), "partition key is the subject")
}
