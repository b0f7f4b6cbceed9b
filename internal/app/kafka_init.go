package app

import (
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/foodstore/internal/messaging/kafka"
)

const kafkaSendTimeout = 10 * time.Second

// initKafkaProducer поднимает producer для событий заказов.
// Без брокеров outbox работает вхолостую: nil, nil.
func initKafkaProducer(brokers []string, logger *log.Entry) (*kafka.Producer, error) {
	if len(brokers) == 0 {
		logger.Info("FOOD_KAFKA_BROKERS is empty, order events stay in outbox")
		return nil, nil
	}

	producer, err := kafka.NewProducer(brokers,
		kafka.WithClientID("food-service"),
		kafka.WithSendTimeout(kafkaSendTimeout),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer %v: %w", brokers, err)
	}

	logger.WithFields(log.Fields{"brokers": brokers, "send_timeout": kafkaSendTimeout}).Info("kafka producer ready")
	return producer, nil
}

func closeKafka(producer *kafka.Producer, logger *log.Entry) {
	if producer == nil {
		return
	}
	if err := producer.Close(); err != nil {
		logger.WithError(err).Warn("kafka producer close")
		return
	}
	logger.Debug("kafka producer closed")
}
