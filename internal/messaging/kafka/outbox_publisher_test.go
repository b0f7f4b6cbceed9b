package kafka

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/foodstore/internal/domain"
)

// capturingProducer запоминает отправленные сообщения целиком, включая заголовки.
type capturingProducer struct {
	sarama.SyncProducer

	mu   sync.Mutex
	sent []*sarama.ProducerMessage
}

func (p *capturingProducer) SendMessage(msg *sarama.ProducerMessage) (int32, int64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sent = append(p.sent, msg)
	return 0, int64(len(p.sent) - 1), nil
}

func (p *capturingProducer) Close() error { return nil }

func headerMap(msg *sarama.ProducerMessage) map[string]string {
	out := make(map[string]string, len(msg.Headers))
	for _, h := range msg.Headers {
		out[string(h.Key)] = string(h.Value)
	}
	return out
}

func orderCreatedMessage(id, orderID string) domain.OutboxMessage {
	return domain.OutboxMessage{
		ID:            id,
		AggregateType: AggregateTypeOrder,
		AggregateID:   orderID,
		EventType:     string(EventTypeOrderCreated),
		Payload:       []byte(`{"status":"Ordered"}`),
	}
}

func TestOutboxPublisher_PublishEnvelope(t *testing.T) {
	t.Parallel()

	capture := &capturingProducer{}
	publisher := NewOutboxPublisher(newProducer(capture, log.WithField("test", "outbox")), "")

	require.NoError(t, publisher.Publish(context.Background(), orderCreatedMessage("outbox-1", "order-123")))
	require.Len(t, capture.sent, 1)

	msg := capture.sent[0]
	assert.Equal(t, TopicOrderEvents, msg.Topic)

	key, err := msg.Key.Encode()
	require.NoError(t, err)
	assert.Equal(t, "order-123", string(key), "events of one order share a partition")

	assert.Equal(t, map[string]string{
		HeaderEventType: "order.created",
		HeaderMessageID: "outbox-1",
	}, headerMap(msg))

	raw, err := msg.Value.Encode()
	require.NoError(t, err)
	var envelope outboxEnvelope
	require.NoError(t, json.Unmarshal(raw, &envelope))
	assert.Equal(t, "outbox-1", envelope.ID)
	assert.Equal(t, AggregateTypeOrder, envelope.AggregateType)
	assert.JSONEq(t, `{"status":"Ordered"}`, string(envelope.Payload))
	assert.False(t, envelope.PublishedAt.IsZero())
}

func TestOutboxPublisher_KeyFallsBackToMessageID(t *testing.T) {
	t.Parallel()

	capture := &capturingProducer{}
	publisher := NewDLQPublisher(newProducer(capture, log.WithField("test", "outbox")))

	require.NoError(t, publisher.Publish(context.Background(), orderCreatedMessage("outbox-7", "")))
	require.Len(t, capture.sent, 1)

	key, err := capture.sent[0].Key.Encode()
	require.NoError(t, err)
	assert.Equal(t, "outbox-7", string(key))
	assert.Equal(t, TopicDeadLetterQueue, capture.sent[0].Topic)
}

func TestOutboxPublisher_Errors(t *testing.T) {
	t.Parallel()

	t.Run("broker failure", func(t *testing.T) {
		t.Parallel()

		mockProducer := mocks.NewSyncProducer(t, nil)
		mockProducer.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)
		publisher := NewOutboxPublisher(newProducer(mockProducer, log.WithField("test", "outbox")), TopicOrderEvents)

		err := publisher.Publish(context.Background(), orderCreatedMessage("outbox-2", "order-234"))
		assert.ErrorIs(t, err, sarama.ErrOutOfBrokers)
		require.NoError(t, mockProducer.Close())
	})

	t.Run("nil producer", func(t *testing.T) {
		t.Parallel()

		err := NewOutboxPublisher(nil, TopicOrderEvents).Publish(context.Background(), orderCreatedMessage("outbox-3", "order-3"))
		assert.Error(t, err)
	})

	t.Run("canceled context skips send", func(t *testing.T) {
		t.Parallel()

		capture := &capturingProducer{}
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		err := NewOutboxPublisher(newProducer(capture, log.WithField("test", "outbox")), "").Publish(ctx, orderCreatedMessage("outbox-4", "order-4"))
		assert.ErrorIs(t, err, context.Canceled)
		assert.Empty(t, capture.sent)
	})
}
