package eventpublisher

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iho/txledger/internal/domain"
)

type fakeWriter struct {
	messages []kafka.Message
	err      error
	closed   bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.messages = append(w.messages, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func TestKafkaPublisherKeysByAggregate(t *testing.T) {
	w := &fakeWriter{}
	p := newKafkaPublisher(w)
	created := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	err := p.Publish(context.Background(), &domain.OutboxEvent{
		ID:            "evt-1",
		AggregateID:   "tx-1",
		AggregateType: domain.AggregateTypeTransaction,
		EventType:     domain.EventTypeTransactionStatusChanged,
		Payload:       map[string]any{"status": "success", "previous_status": "pending"},
		CreatedAt:     created,
	})
	require.NoError(t, err)
	require.Len(t, w.messages, 1)

	msg := w.messages[0]
	assert.Equal(t, "tx-1", string(msg.Key))
	assert.Equal(t, created, msg.Time)

	headers := map[string]string{}
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}
	assert.Equal(t, "evt-1", headers["event_id"])
	assert.Equal(t, domain.EventTypeTransactionStatusChanged, headers["event_type"])

	var payload map[string]any
	require.NoError(t, json.Unmarshal(msg.Value, &payload))
	assert.Equal(t, "pending", payload["previous_status"])

	require.NoError(t, p.Close())
	assert.True(t, w.closed)
}

func TestKafkaPublisherWrapsWriteError(t *testing.T) {
	brokerErr := errors.New("leader not available")
	p := newKafkaPublisher(&fakeWriter{err: brokerErr})

	err := p.Publish(context.Background(), &domain.OutboxEvent{ID: "evt-2", AggregateID: "tx-2"})
	require.ErrorIs(t, err, brokerErr)
	assert.Contains(t, err.Error(), "evt-2")
}
