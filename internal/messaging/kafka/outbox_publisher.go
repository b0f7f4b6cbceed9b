package kafka

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/vladislavdragonenkov/foodstore/internal/domain"
)

// Заголовки, по которым потребители фильтруют сообщения без разбора тела.
const (
	HeaderEventType = "event-type"
	HeaderMessageID = "message-id"
)

var errPublisherNotReady = errors.New("kafka outbox publisher is not initialized")

type outboxEnvelope struct {
	ID            string          `json:"id"`
	AggregateType string          `json:"aggregate_type"`
	AggregateID   string          `json:"aggregate_id"`
	EventType     string          `json:"event_type"`
	Payload       json.RawMessage `json:"payload"`
	PublishedAt   time.Time       `json:"published_at"`
}

// OutboxTopicPublisher пишет outbox-сообщения в один topic.
// Ключ партиции — ID заказа: события одного заказа идут по порядку.
type OutboxTopicPublisher struct {
	producer *Producer
	topic    string
	now      func() time.Time
}

// NewOutboxPublisher: пустой topic заменяется на TopicOrderEvents.
func NewOutboxPublisher(producer *Producer, topic string) domain.OutboxPublisher {
	return &OutboxTopicPublisher{
		producer: producer,
		topic:    cmp.Or(topic, TopicOrderEvents),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func NewDLQPublisher(producer *Producer) domain.OutboxPublisher {
	return NewOutboxPublisher(producer, TopicDeadLetterQueue)
}

func (p *OutboxTopicPublisher) Publish(ctx context.Context, event domain.OutboxMessage) error {
	if p == nil || p.producer == nil {
		return errPublisherNotReady
	}
	return p.producer.Send(ctx, p.toMessage(event))
}

func (p *OutboxTopicPublisher) toMessage(event domain.OutboxMessage) Message {
	return Message{
		Topic: p.topic,
		Key:   cmp.Or(event.AggregateID, event.ID),
		Value: outboxEnvelope{
			ID:            event.ID,
			AggregateType: event.AggregateType,
			AggregateID:   event.AggregateID,
			EventType:     event.EventType,
			Payload:       json.RawMessage(event.Payload),
			PublishedAt:   p.now(),
		},
		Headers: map[string]string{
			HeaderEventType: event.EventType,
			HeaderMessageID: event.ID,
		},
	}
}

var _ domain.OutboxPublisher = (*OutboxTopicPublisher)(nil)
