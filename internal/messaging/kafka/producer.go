package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	log "github.com/sirupsen/logrus"
)

const defaultClientID = "food-service"

// ProducerOption настраивает sarama-конфигурацию продюсера.
type ProducerOption func(cfg *sarama.Config)

// WithClientID задаёт client.id, под которым сервис виден брокеру.
func WithClientID(id string) ProducerOption {
	return func(cfg *sarama.Config) {
		if id != "" {
			cfg.ClientID = id
		}
	}
}

// WithSendTimeout ограничивает ожидание подтверждения от брокеров.
func WithSendTimeout(d time.Duration) ProducerOption {
	return func(cfg *sarama.Config) {
		if d > 0 {
			cfg.Producer.Timeout = d
		}
	}
}

// newSaramaConfig: idempotent producer с подтверждением от всех реплик,
// чтобы повторная отправка из outbox не давала дублей в партиции.
func newSaramaConfig(opts ...ProducerOption) *sarama.Config {
	cfg := sarama.NewConfig()
	cfg.ClientID = defaultClientID
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Idempotent = true
	cfg.Producer.Retry.Max = 5
	cfg.Producer.Return.Successes = true
	cfg.Producer.Compression = sarama.CompressionSnappy
	cfg.Net.MaxOpenRequests = 1
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// Message: одно сообщение для отправки: значение сериализуется в JSON.
type Message struct {
	Topic   string
	Key     string
	Value   any
	Headers map[string]string
}

// Producer отправляет события заказов в Kafka синхронно.
type Producer struct {
	sync   sarama.SyncProducer
	logger *log.Entry
}

// NewProducer подключается к брокерам и возвращает синхронный продюсер.
func NewProducer(brokers []string, opts ...ProducerOption) (*Producer, error) {
	if len(brokers) == 0 {
		return nil, errors.New("kafka brokers are not configured")
	}
	sp, err := sarama.NewSyncProducer(brokers, newSaramaConfig(opts...))
	if err != nil {
		return nil, fmt.Errorf("create kafka producer: %w", err)
	}
	return newProducer(sp, log.WithField("component", "kafka-producer")), nil
}

func newProducer(sp sarama.SyncProducer, logger *log.Entry) *Producer {
	return &Producer{sync: sp, logger: logger}
}

// Send сериализует msg.Value и ждёт подтверждения брокера.
// Отменённый контекст проверяется до отправки: sarama не принимает ctx.
func (p *Producer) Send(ctx context.Context, msg Message) error {
	if p == nil || p.sync == nil {
		return errors.New("kafka producer is not initialized")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	value, err := json.Marshal(msg.Value)
	if err != nil {
		return fmt.Errorf("marshal kafka message: %w", err)
	}

	pm := &sarama.ProducerMessage{
		Topic:     msg.Topic,
		Key:       sarama.StringEncoder(msg.Key),
		Value:     sarama.ByteEncoder(value),
		Timestamp: time.Now().UTC(),
	}
	for k, v := range msg.Headers {
		pm.Headers = append(pm.Headers, sarama.RecordHeader{Key: []byte(k), Value: []byte(v)})
	}

	entry := p.logger.WithFields(log.Fields{"topic": msg.Topic, "key": msg.Key})
	partition, offset, err := p.sync.SendMessage(pm)
	if err != nil {
		entry.WithError(err).Error("kafka send failed")
		return fmt.Errorf("send to %s: %w", msg.Topic, err)
	}
	entry.WithFields(log.Fields{"partition": partition, "offset": offset}).Debug("kafka message sent")
	return nil
}

// PublishEvent: короткая форма Send без заголовков.
func (p *Producer) PublishEvent(ctx context.Context, topic, key string, event any) error {
	return p.Send(ctx, Message{Topic: topic, Key: key, Value: event})
}

func (p *Producer) Close() error {
	if p == nil || p.sync == nil {
		return nil
	}
	if err := p.sync.Close(); err != nil {
		return fmt.Errorf("close kafka producer: %w", err)
	}
	return nil
}
