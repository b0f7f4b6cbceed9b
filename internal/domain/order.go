package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus описывает жизненный цикл заказа на кухне.
type OrderStatus string

const (
	// OrderStatusOrdered: заказ оплачен и принят.
	OrderStatusOrdered OrderStatus = "Ordered"
	// OrderStatusConfirmed: кухня подтвердила заказ.
	OrderStatusConfirmed OrderStatus = "Confirmed"
	// OrderStatusPreparing: заказ готовится.
	OrderStatusPreparing OrderStatus = "Preparing"
	// OrderStatusPrepared: заказ готов к выдаче.
	OrderStatusPrepared OrderStatus = "Prepared"
	// OrderStatusCancelled: заказ отменён.
	OrderStatusCancelled OrderStatus = "Cancelled"
)

// Valid проверяет, что статус относится к поддерживаемым значениям.
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusOrdered, OrderStatusConfirmed, OrderStatusPreparing, OrderStatusPrepared, OrderStatusCancelled:
		return true
	default:
		return false
	}
}

// OrderItem: снимок блюда на момент покупки, а не живая ссылка.
type OrderItem struct {
	FoodID string
	Name   string
	Slug   string
	Price  decimal.Decimal
}

// Order агрегирует купленные позиции, результат платежа и покупателя.
type Order struct {
	ID        string
	BuyerID   string
	Items     []OrderItem
	Payment   PaymentResult
	Total     decimal.Decimal
	Status    OrderStatus
	CreatedAt time.Time
	UpdatedAt time.Time
}

// CartTotal суммирует цены позиций корзины без округления.
func CartTotal(items []OrderItem) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.Price)
	}
	return total
}

// MoneyScale: сколько знаков после запятой принимает шлюз в сумме транзакции.
const MoneyScale = 2

// ValidateCart проверяет корзину перед списанием.
// Сумма корзины должна быть представима в центах: шлюз списывает ровно Order.Total.
func ValidateCart(items []OrderItem) error {
	if len(items) == 0 {
		return NewValidationError("cart", "Cart must contain at least one item")
	}
	for _, item := range items {
		if item.Price.IsNegative() {
			return NewValidationError("cart", "Item price must be non-negative")
		}
	}
	if total := CartTotal(items); !total.Equal(total.Truncate(MoneyScale)) {
		return NewValidationError("cart", "Cart total must have at most 2 decimal places")
	}
	return nil
}
