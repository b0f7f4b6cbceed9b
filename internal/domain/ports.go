package domain

import (
	"context"
	"time"
)

// PaymentGateway описывает взаимодействие с внешним платёжным провайдером.
type PaymentGateway interface {
	// ClientToken запрашивает одноразовый токен авторизации для клиентской формы.
	ClientToken(ctx context.Context) (string, error)
	// Sale проводит продажу по nonce способа оплаты.
	Sale(ctx context.Context, req SaleRequest) (PaymentResult, error)
	// Void отменяет (reverse) транзакцию; используется как компенсация.
	Void(ctx context.Context, transactionID string) error
}

// OutboxPublisher публикует события из transactional outbox.
type OutboxPublisher interface {
	// Publish передаёт событие наружу; должен быть идемпотентным.
	Publish(ctx context.Context, event OutboxMessage) error
}

// OutboxRepository позволяет сохранять события для последующей публикации.
type OutboxRepository interface {
	Enqueue(ctx context.Context, msg OutboxMessage) (OutboxMessage, error)
	PullPending(ctx context.Context, limit int) ([]OutboxMessage, error)
	Stats(ctx context.Context) (OutboxStats, error)
	MarkSent(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id string) error
}

// IdempotencyRepository хранит состояние обработки запросов по idempotency-key.
type IdempotencyRepository interface {
	CreateProcessing(ctx context.Context, key, requestHash string, ttlAt time.Time) (IdempotencyRecord, error)
	Get(ctx context.Context, key string) (IdempotencyRecord, error)
	MarkDone(ctx context.Context, key string, responseBody []byte, httpStatus int) error
	MarkFailed(ctx context.Context, key string, responseBody []byte, httpStatus int) error
	DeleteExpired(ctx context.Context, before time.Time, limit int) (int, error)
}

// FoodRepository описывает требования к хранилищу блюд.
// Все методы чтения, кроме GetPhoto, возвращают блюда без бинарных данных фото.
type FoodRepository interface {
	// Create сохраняет новое блюдо.
	Create(ctx context.Context, food Food) error
	// Update перезаписывает блюдо; фото заменяется, только если food.Photo задано.
	Update(ctx context.Context, food Food) error
	// Delete удаляет блюдо или возвращает ErrFoodNotFound.
	Delete(ctx context.Context, id string) error
	// Get возвращает блюдо по ID или ErrFoodNotFound.
	Get(ctx context.Context, id string) (Food, error)
	// GetBySlug возвращает самое новое блюдо с таким slug или ErrFoodNotFound.
	GetBySlug(ctx context.Context, slug string) (Food, error)
	// GetPhoto возвращает фото блюда; пустое фото не считается ошибкой.
	GetPhoto(ctx context.Context, id string) (Photo, error)
	// Find выполняет выборку по фильтрам, от новых к старым.
	Find(ctx context.Context, query FoodQuery) ([]Food, error)
	// Count возвращает приблизительное количество блюд.
	Count(ctx context.Context) (int64, error)
}

// CategoryRepository описывает справочник категорий.
type CategoryRepository interface {
	// Create сохраняет категорию; ErrCategoryExists при дубликате имени.
	Create(ctx context.Context, category Category) error
	Get(ctx context.Context, id string) (Category, error)
	GetBySlug(ctx context.Context, slug string) (Category, error)
	// List возвращает категории, отсортированные по имени.
	List(ctx context.Context) ([]Category, error)
}

// OrderRepository описывает требования к хранилищу заказов.
type OrderRepository interface {
	// Create сохраняет новый заказ. Возвращает ErrOrderExists, если ID уже занят.
	Create(ctx context.Context, order Order) error
	// Get возвращает заказ по идентификатору или ErrOrderNotFound, если его нет.
	Get(ctx context.Context, id string) (Order, error)
	// ListByBuyer возвращает заказы покупателя, новые первыми; limit <= 0 — без ограничения.
	ListByBuyer(ctx context.Context, buyerID string, limit int) ([]Order, error)
}

// OutboxMessage хранит данные для публикуемого события.
type OutboxMessage struct {
	ID            string
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}

// OutboxStatus: состояние сообщения в outbox.
type OutboxStatus string

const (
	OutboxStatusPending OutboxStatus = "pending"
	OutboxStatusSent    OutboxStatus = "sent"
	OutboxStatusFailed  OutboxStatus = "failed"
)

// DefaultOutboxBatch: размер пачки PullPending при limit <= 0.
const DefaultOutboxBatch = 100

// OutboxStats описывает текущее состояние backlog transactional outbox.
type OutboxStats struct {
	PendingCount    int
	OldestPendingAt time.Time
}
