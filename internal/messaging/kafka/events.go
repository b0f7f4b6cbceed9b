package kafka

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/foodstore/internal/domain"
)

// EventType определяет тип события
type EventType string

const (
	// EventTypeOrderCreated публикуется после оплаты и сохранения заказа.
	EventTypeOrderCreated EventType = "order.created"
)

// AggregateTypeOrder: тип агрегата в outbox-сообщениях о заказах.
const AggregateTypeOrder = "order"

// Topics для Kafka
const (
	TopicOrderEvents     = "foodstore.order.events"
	TopicDeadLetterQueue = "foodstore.dlq"
)

// OrderLine: позиция заказа в событии.
type OrderLine struct {
	FoodID string          `json:"food_id"`
	Name   string          `json:"name"`
	Price  decimal.Decimal `json:"price"`
}

// OrderCreatedEvent: payload события order.created.
type OrderCreatedEvent struct {
	EventType     EventType       `json:"event_type"`
	OrderID       string          `json:"order_id"`
	BuyerID       string          `json:"buyer_id"`
	Status        string          `json:"status"`
	Total         decimal.Decimal `json:"total"`
	Currency      string          `json:"currency,omitempty"`
	TransactionID string          `json:"transaction_id"`
	Items         []OrderLine     `json:"items"`
	Timestamp     time.Time       `json:"timestamp"`
}

// NewOrderCreatedEvent строит событие по сохранённому заказу.
func NewOrderCreatedEvent(order domain.Order) *OrderCreatedEvent {
	items := make([]OrderLine, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, OrderLine{FoodID: item.FoodID, Name: item.Name, Price: item.Price})
	}
	return &OrderCreatedEvent{
		EventType:     EventTypeOrderCreated,
		OrderID:       order.ID,
		BuyerID:       order.BuyerID,
		Status:        string(order.Status),
		Total:         order.Total,
		Currency:      order.Payment.CurrencyCode,
		TransactionID: order.Payment.TransactionID,
		Items:         items,
		Timestamp:     order.CreatedAt,
	}
}
