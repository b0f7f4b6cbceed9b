package payment

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/google/uuid"

	"github.com/vladislavdragonenkov/foodstore/internal/domain"
)

// MockGateway: конфигурируемая заглушка платёжного шлюза для тестов и локального запуска.
type MockGateway struct {
	mu sync.Mutex

	Token    string
	TokenErr error
	// SaleResult, если задан, возвращается вместо сгенерированного успешного результата.
	SaleResult *domain.PaymentResult
	SaleErr    error
	VoidErr    error

	TokenCalls int
	SaleCalls  int
	VoidCalls  int
	LastSale   domain.SaleRequest
	VoidedIDs  []string
}

// NewMockGateway возвращает mock с успешным сценарием по умолчанию.
func NewMockGateway() *MockGateway {
	return &MockGateway{Token: "mock-client-token"}
}

// ClientToken возвращает заранее настроенный токен.
func (m *MockGateway) ClientToken(_ context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.TokenCalls++
	if m.TokenErr != nil {
		return "", m.TokenErr
	}
	return m.Token, nil
}

// Sale возвращает настроенный результат и запоминает запрос.
func (m *MockGateway) Sale(_ context.Context, req domain.SaleRequest) (domain.PaymentResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.SaleCalls++
	m.LastSale = req
	if m.SaleErr != nil {
		return domain.PaymentResult{}, m.SaleErr
	}
	if m.SaleResult != nil {
		return *m.SaleResult, nil
	}

	txID := uuid.NewString()
	status := statusAuthorized
	if req.SubmitForSettlement {
		status = statusSubmittedForSettlement
	}
	raw, _ := json.Marshal(map[string]any{
		"id":     txID,
		"status": status,
		"amount": map[string]string{"value": req.Amount.StringFixed(2), "currencyCode": defaultCurrency},
	})
	return domain.PaymentResult{
		Success:       true,
		TransactionID: txID,
		Status:        status,
		Amount:        req.Amount,
		CurrencyCode:  defaultCurrency,
		Raw:           raw,
	}, nil
}

// Void отменяет транзакцию и считает вызовы.
func (m *MockGateway) Void(_ context.Context, transactionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.VoidCalls++
	if m.VoidErr != nil {
		return m.VoidErr
	}
	m.VoidedIDs = append(m.VoidedIDs, transactionID)
	return nil
}

// Calls возвращает счётчики вызовов под блокировкой.
func (m *MockGateway) Calls() (token, sale, void int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.TokenCalls, m.SaleCalls, m.VoidCalls
}

var _ domain.PaymentGateway = (*MockGateway)(nil)
