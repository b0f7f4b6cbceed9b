package httpapi

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/foodstore/internal/domain"
)

// money сериализуется числом без кавычек, как ожидает клиент витрины.
type money decimal.Decimal

func (m money) MarshalJSON() ([]byte, error) {
	return []byte(decimal.Decimal(m).String()), nil
}

type categoryResponse struct {
	ID   string `json:"_id"`
	Name string `json:"name"`
	Slug string `json:"slug"`
}

type foodResponse struct {
	ID          string `json:"_id"`
	Name        string `json:"name"`
	Slug        string `json:"slug"`
	Description string `json:"description"`
	Price       money  `json:"price"`
	// Category: объект, если категория развёрнута, иначе её идентификатор.
	Category  any       `json:"category"`
	Quantity  int       `json:"quantity"`
	Shipping  bool      `json:"shipping"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type orderItemResponse struct {
	ID    string `json:"_id"`
	Name  string `json:"name"`
	Slug  string `json:"slug"`
	Price money  `json:"price"`
}

type paymentResponse struct {
	Success       bool            `json:"success"`
	TransactionID string          `json:"transactionId"`
	Status        string          `json:"status"`
	Amount        money           `json:"amount"`
	CurrencyCode  string          `json:"currencyCode,omitempty"`
	Raw           json.RawMessage `json:"transaction,omitempty"`
}

type orderResponse struct {
	ID        string              `json:"_id"`
	Foods     []orderItemResponse `json:"foods"`
	Payment   paymentResponse     `json:"payment"`
	Buyer     string              `json:"buyer"`
	Total     money               `json:"total"`
	Status    string              `json:"status"`
	CreatedAt time.Time           `json:"createdAt"`
	UpdatedAt time.Time           `json:"updatedAt"`
}

// cartItemRequest принимает позицию корзины; клиент присылает `_id`, но `id` тоже допустим.
type cartItemRequest struct {
	ID    string          `json:"_id"`
	AltID string          `json:"id,omitempty"`
	Name  string          `json:"name"`
	Slug  string          `json:"slug"`
	Price decimal.Decimal `json:"price"`
}

type paymentRequest struct {
	Nonce string            `json:"nonce"`
	Cart  []cartItemRequest `json:"cart"`
}

type filterRequest struct {
	Checked []string          `json:"checked"`
	Radio   []decimal.Decimal `json:"radio"`
}

type categoryRequest struct {
	Name string `json:"name"`
}

func toCategoryResponse(c domain.Category) categoryResponse {
	return categoryResponse{ID: c.ID, Name: c.Name, Slug: c.Slug}
}

func toCategoriesResponse(categories []domain.Category) []categoryResponse {
	out := make([]categoryResponse, 0, len(categories))
	for _, c := range categories {
		out = append(out, toCategoryResponse(c))
	}
	return out
}

func toFoodResponse(f domain.Food) foodResponse {
	var category any = f.CategoryID
	if f.Category != nil {
		category = toCategoryResponse(*f.Category)
	}
	return foodResponse{
		ID:          f.ID,
		Name:        f.Name,
		Slug:        f.Slug,
		Description: f.Description,
		Price:       money(f.Price),
		Category:    category,
		Quantity:    f.Quantity,
		Shipping:    f.Shipping,
		CreatedAt:   f.CreatedAt,
		UpdatedAt:   f.UpdatedAt,
	}
}

func toFoodsResponse(foods []domain.Food) []foodResponse {
	out := make([]foodResponse, 0, len(foods))
	for _, f := range foods {
		out = append(out, toFoodResponse(f))
	}
	return out
}

func toOrderResponse(o domain.Order) orderResponse {
	items := make([]orderItemResponse, 0, len(o.Items))
	for _, item := range o.Items {
		items = append(items, orderItemResponse{ID: item.FoodID, Name: item.Name, Slug: item.Slug, Price: money(item.Price)})
	}
	return orderResponse{
		ID:    o.ID,
		Foods: items,
		Payment: paymentResponse{
			Success:       o.Payment.Success,
			TransactionID: o.Payment.TransactionID,
			Status:        o.Payment.Status,
			Amount:        money(o.Payment.Amount),
			CurrencyCode:  o.Payment.CurrencyCode,
			Raw:           o.Payment.Raw,
		},
		Buyer:     o.BuyerID,
		Total:     money(o.Total),
		Status:    string(o.Status),
		CreatedAt: o.CreatedAt,
		UpdatedAt: o.UpdatedAt,
	}
}

func toOrdersResponse(orders []domain.Order) []orderResponse {
	out := make([]orderResponse, 0, len(orders))
	for _, o := range orders {
		out = append(out, toOrderResponse(o))
	}
	return out
}

func (r paymentRequest) toCart() []domain.OrderItem {
	items := make([]domain.OrderItem, 0, len(r.Cart))
	for _, item := range r.Cart {
		id := item.ID
		if id == "" {
			id = item.AltID
		}
		items = append(items, domain.OrderItem{FoodID: id, Name: item.Name, Slug: item.Slug, Price: item.Price})
	}
	return items
}
