package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/foodstore/internal/domain"
)

type orderRepository struct {
	db *sql.DB
}

// NewOrderRepository создаёт PostgreSQL-реализацию OrderRepository.
func NewOrderRepository(store *Store) domain.OrderRepository {
	return &orderRepository{db: store.DB()}
}

// orderItemRow: JSONB-представление снимка позиции.
type orderItemRow struct {
	FoodID string          `json:"food_id"`
	Name   string          `json:"name"`
	Slug   string          `json:"slug"`
	Price  decimal.Decimal `json:"price"`
}

// paymentRow: JSONB-представление результата платежа.
type paymentRow struct {
	Success       bool            `json:"success"`
	TransactionID string          `json:"transaction_id"`
	Status        string          `json:"status"`
	Amount        decimal.Decimal `json:"amount"`
	CurrencyCode  string          `json:"currency_code"`
	Raw           json.RawMessage `json:"raw,omitempty"`
}

func (r *orderRepository) Create(ctx context.Context, order domain.Order) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	items, payment, err := encodeOrder(order)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO orders (
			id, buyer_id, items, payment, total, status, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`,
		order.ID, order.BuyerID, items, payment, order.Total,
		string(order.Status), order.CreatedAt, order.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrOrderExists
		}
		return fmt.Errorf("insert order: %w", err)
	}
	return nil
}

func (r *orderRepository) Get(ctx context.Context, id string) (domain.Order, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	row := r.db.QueryRowContext(ctx, `
		SELECT id, buyer_id, items, payment, total, status, created_at, updated_at
		FROM orders
		WHERE id = $1
	`, id)
	order, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Order{}, domain.ErrOrderNotFound
		}
		return domain.Order{}, err
	}
	return order, nil
}

func (r *orderRepository) ListByBuyer(ctx context.Context, buyerID string, limit int) ([]domain.Order, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, buyer_id, items, payment, total, status, created_at, updated_at
		FROM orders
		WHERE buyer_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT NULLIF($2, 0)
	`, buyerID, max(limit, 0))
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	orders := make([]domain.Order, 0)
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate order rows: %w", err)
	}
	return orders, nil
}

func encodeOrder(order domain.Order) ([]byte, []byte, error) {
	rows := make([]orderItemRow, 0, len(order.Items))
	for _, item := range order.Items {
		rows = append(rows, orderItemRow(item))
	}
	items, err := json.Marshal(rows)
	if err != nil {
		return nil, nil, fmt.Errorf("encode order items: %w", err)
	}

	payment, err := json.Marshal(paymentRow(order.Payment))
	if err != nil {
		return nil, nil, fmt.Errorf("encode order payment: %w", err)
	}
	return items, payment, nil
}

func scanOrder(row rowScanner) (domain.Order, error) {
	var (
		order   domain.Order
		status  string
		items   []byte
		payment []byte
	)
	if err := row.Scan(
		&order.ID, &order.BuyerID, &items, &payment, &order.Total,
		&status, &order.CreatedAt, &order.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Order{}, err
		}
		return domain.Order{}, fmt.Errorf("scan order: %w", err)
	}
	order.Status = domain.OrderStatus(status)

	var itemRows []orderItemRow
	if err := json.Unmarshal(items, &itemRows); err != nil {
		return domain.Order{}, fmt.Errorf("decode order items: %w", err)
	}
	order.Items = make([]domain.OrderItem, 0, len(itemRows))
	for _, item := range itemRows {
		order.Items = append(order.Items, domain.OrderItem(item))
	}

	var p paymentRow
	if err := json.Unmarshal(payment, &p); err != nil {
		return domain.Order{}, fmt.Errorf("decode order payment: %w", err)
	}
	order.Payment = domain.PaymentResult(p)
	return order, nil
}

var _ domain.OrderRepository = (*orderRepository)(nil)
