package domain

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// SaleRequest: параметры продажи через платёжный шлюз.
type SaleRequest struct {
	// Nonce: одноразовый токен способа оплаты из клиентской формы.
	Nonce  string
	Amount decimal.Decimal
	// SubmitForSettlement требует немедленного списания.
	SubmitForSettlement bool
}

// PaymentResult: результат транзакции, возвращённый шлюзом.
type PaymentResult struct {
	Success       bool
	TransactionID string
	Status        string
	Amount        decimal.Decimal
	CurrencyCode  string
	// Raw: исходный ответ шлюза, хранится как есть.
	Raw json.RawMessage
}
