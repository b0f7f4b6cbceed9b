package memory

import (
	"cmp"
	"context"
	"slices"
	"sync"

	"github.com/vladislavdragonenkov/foodstore/internal/domain"
)

// OrderRepository хранит заказы в памяти и индексирует их по покупателю.
type OrderRepository struct {
	mu      sync.RWMutex
	orders  map[string]domain.Order
	byBuyer map[string][]string
}

func NewOrderRepository() *OrderRepository {
	return &OrderRepository{
		orders:  make(map[string]domain.Order),
		byBuyer: make(map[string][]string),
	}
}

func (r *OrderRepository) Create(_ context.Context, order domain.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.orders[order.ID]; exists {
		return domain.ErrOrderExists
	}
	r.orders[order.ID] = snapshotOrder(order)
	r.byBuyer[order.BuyerID] = append(r.byBuyer[order.BuyerID], order.ID)
	return nil
}

func (r *OrderRepository) Get(_ context.Context, id string) (domain.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	order, ok := r.orders[id]
	if !ok {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	return snapshotOrder(order), nil
}

// ListByBuyer: новые первыми, при равном времени по убыванию ID, как в PostgreSQL.
func (r *OrderRepository) ListByBuyer(_ context.Context, buyerID string, limit int) ([]domain.Order, error) {
	r.mu.RLock()
	ids := r.byBuyer[buyerID]
	orders := make([]domain.Order, 0, len(ids))
	for _, id := range ids {
		orders = append(orders, snapshotOrder(r.orders[id]))
	}
	r.mu.RUnlock()

	slices.SortFunc(orders, func(a, b domain.Order) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(b.ID, a.ID)
	})
	if limit > 0 && len(orders) > limit {
		orders = orders[:limit]
	}
	return orders, nil
}

func snapshotOrder(o domain.Order) domain.Order {
	o.Items = slices.Clone(o.Items)
	o.Payment.Raw = slices.Clone(o.Payment.Raw)
	return o
}

var _ domain.OrderRepository = (*OrderRepository)(nil)
