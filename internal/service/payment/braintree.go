package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/vladislavdragonenkov/foodstore/internal/domain"
)

const (
	// EnvironmentSandbox и EnvironmentProduction выбирают GraphQL endpoint Braintree.
	EnvironmentSandbox    = "sandbox"
	EnvironmentProduction = "production"

	sandboxEndpoint    = "https://payments.sandbox.braintree-api.com/graphql"
	productionEndpoint = "https://payments.braintree-api.com/graphql"
	apiVersion         = "2019-01-01"
	defaultTimeout     = 15 * time.Second
	maxResponseBytes   = 1 << 20

	defaultCurrency              = "USD"
	statusAuthorized             = "AUTHORIZED"
	statusSubmittedForSettlement = "SUBMITTED_FOR_SETTLEMENT"
)

// Статусы транзакции, означающие отказ.
var declinedStatuses = map[string]struct{}{
	"GATEWAY_REJECTED":    {},
	"PROCESSOR_DECLINED":  {},
	"FAILED":              {},
	"SETTLEMENT_DECLINED": {},
}

const (
	clientTokenMutation = `mutation ClientToken($input: CreateClientTokenInput) {
  createClientToken(input: $input) { clientToken }
}`
	chargeMutation = `mutation Charge($input: ChargePaymentMethodInput!) {
  chargePaymentMethod(input: $input) {
    transaction { id status amount { value currencyCode } }
  }
}`
	authorizeMutation = `mutation Authorize($input: AuthorizePaymentMethodInput!) {
  authorizePaymentMethod(input: $input) {
    transaction { id status amount { value currencyCode } }
  }
}`
	reverseMutation = `mutation Reverse($input: ReverseTransactionInput!) {
  reverseTransaction(input: $input) {
    reversal {
      ... on Transaction { id status }
      ... on Refund { id status }
    }
  }
}`
)

// BraintreeConfig содержит учётные данные merchant-аккаунта.
type BraintreeConfig struct {
	MerchantID        string
	PublicKey         string
	PrivateKey        string
	Environment       string
	MerchantAccountID string
	// Endpoint переопределяет URL GraphQL API (используется в тестах).
	Endpoint string
	Timeout  time.Duration
}

// Validate проверяет, что заданы все учётные данные.
func (c BraintreeConfig) Validate() error {
	var missing []string
	if strings.TrimSpace(c.MerchantID) == "" {
		missing = append(missing, "merchant id")
	}
	if strings.TrimSpace(c.PublicKey) == "" {
		missing = append(missing, "public key")
	}
	if strings.TrimSpace(c.PrivateKey) == "" {
		missing = append(missing, "private key")
	}
	if len(missing) > 0 {
		return fmt.Errorf("braintree config: missing %s", strings.Join(missing, ", "))
	}
	switch c.Environment {
	case "", EnvironmentSandbox, EnvironmentProduction:
		return nil
	default:
		return fmt.Errorf("braintree config: unsupported environment %q", c.Environment)
	}
}

func (c BraintreeConfig) endpoint() string {
	if c.Endpoint != "" {
		return c.Endpoint
	}
	if c.Environment == EnvironmentProduction {
		return productionEndpoint
	}
	return sandboxEndpoint
}

// BraintreeGateway реализует PaymentGateway поверх Braintree GraphQL API.
type BraintreeGateway struct {
	cfg    BraintreeConfig
	client *http.Client
	logger *log.Entry
}

// NewBraintreeGateway создаёт клиент шлюза. HTTP-транспорт инструментирован otelhttp.
func NewBraintreeGateway(cfg BraintreeConfig, logger *log.Entry) (*BraintreeGateway, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if logger == nil {
		logger = log.WithField("component", "braintree-gateway")
	}

	return &BraintreeGateway{
		cfg: cfg,
		client: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		logger: logger,
	}, nil
}

type graphQLRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

type graphQLError struct {
	Message    string `json:"message"`
	Extensions struct {
		ErrorClass string `json:"errorClass"`
		LegacyCode string `json:"legacyCode"`
	} `json:"extensions"`
}

type graphQLResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []graphQLError  `json:"errors"`
}

type transactionPayload struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Amount struct {
		Value        string `json:"value"`
		CurrencyCode string `json:"currencyCode"`
	} `json:"amount"`
}

// ClientToken запрашивает токен для Drop-in UI клиента.
func (g *BraintreeGateway) ClientToken(ctx context.Context) (string, error) {
	input := map[string]any{}
	if g.cfg.MerchantAccountID != "" {
		input["clientToken"] = map[string]any{"merchantAccountId": g.cfg.MerchantAccountID}
	}

	var data struct {
		CreateClientToken struct {
			ClientToken string `json:"clientToken"`
		} `json:"createClientToken"`
	}
	if err := g.do(ctx, clientTokenMutation, map[string]any{"input": input}, &data); err != nil {
		return "", err
	}
	if data.CreateClientToken.ClientToken == "" {
		return "", fmt.Errorf("%w: empty client token", domain.ErrPaymentUnavailable)
	}
	return data.CreateClientToken.ClientToken, nil
}

// Sale проводит списание (charge) или авторизацию по nonce.
func (g *BraintreeGateway) Sale(ctx context.Context, req domain.SaleRequest) (domain.PaymentResult, error) {
	if strings.TrimSpace(req.Nonce) == "" {
		return domain.PaymentResult{}, domain.NewValidationError("nonce", "Payment method nonce is Required")
	}

	transaction := map[string]any{"amount": req.Amount.StringFixed(domain.MoneyScale)}
	if g.cfg.MerchantAccountID != "" {
		transaction["merchantAccountId"] = g.cfg.MerchantAccountID
	}
	vars := map[string]any{"input": map[string]any{
		"paymentMethodId": req.Nonce,
		"transaction":     transaction,
	}}

	mutation, field := authorizeMutation, "authorizePaymentMethod"
	if req.SubmitForSettlement {
		mutation, field = chargeMutation, "chargePaymentMethod"
	}

	var data map[string]struct {
		Transaction json.RawMessage `json:"transaction"`
	}
	if err := g.do(ctx, mutation, vars, &data); err != nil {
		return domain.PaymentResult{}, err
	}

	raw := data[field].Transaction
	if len(raw) == 0 || string(raw) == "null" {
		return domain.PaymentResult{}, fmt.Errorf("%w: empty transaction in response", domain.ErrPaymentUnavailable)
	}
	var tx transactionPayload
	if err := json.Unmarshal(raw, &tx); err != nil {
		return domain.PaymentResult{}, fmt.Errorf("%w: decode transaction: %v", domain.ErrPaymentUnavailable, err)
	}

	amount, err := decimal.NewFromString(tx.Amount.Value)
	if err != nil {
		amount = req.Amount
	}
	result := domain.PaymentResult{
		Success:       true,
		TransactionID: tx.ID,
		Status:        tx.Status,
		Amount:        amount,
		CurrencyCode:  tx.Amount.CurrencyCode,
		Raw:           append(json.RawMessage(nil), raw...),
	}
	if _, declined := declinedStatuses[tx.Status]; declined {
		result.Success = false
		return result, fmt.Errorf("%w: transaction %s status %s", domain.ErrPaymentDeclined, tx.ID, tx.Status)
	}
	return result, nil
}

// Void отменяет транзакцию через reverseTransaction: до расчёта она аннулируется, после расчёта возвращается.
func (g *BraintreeGateway) Void(ctx context.Context, transactionID string) error {
	vars := map[string]any{"input": map[string]any{"transactionId": transactionID}}

	var data struct {
		ReverseTransaction struct {
			Reversal struct {
				ID     string `json:"id"`
				Status string `json:"status"`
			} `json:"reversal"`
		} `json:"reverseTransaction"`
	}
	if err := g.do(ctx, reverseMutation, vars, &data); err != nil {
		return err
	}
	g.logger.WithFields(log.Fields{
		"transaction_id": transactionID,
		"reversal_id":    data.ReverseTransaction.Reversal.ID,
		"status":         data.ReverseTransaction.Reversal.Status,
	}).Info("braintree transaction reversed")
	return nil
}

func (g *BraintreeGateway) do(ctx context.Context, query string, vars map[string]any, out any) error {
	body, err := json.Marshal(graphQLRequest{Query: query, Variables: vars})
	if err != nil {
		return fmt.Errorf("marshal graphql request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.cfg.endpoint(), bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build braintree request: %w", err)
	}
	req.SetBasicAuth(g.cfg.PublicKey, g.cfg.PrivateKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Braintree-Version", apiVersion)

	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrPaymentUnavailable, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("%w: read response: %v", domain.ErrPaymentUnavailable, err)
	}
	if resp.StatusCode >= http.StatusInternalServerError || resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return fmt.Errorf("%w: http status %d", domain.ErrPaymentUnavailable, resp.StatusCode)
	}

	var gqlResp graphQLResponse
	if err := json.Unmarshal(payload, &gqlResp); err != nil {
		return fmt.Errorf("%w: decode response: %v", domain.ErrPaymentUnavailable, err)
	}
	if len(gqlResp.Errors) > 0 {
		return classifyErrors(gqlResp.Errors)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(gqlResp.Data, out); err != nil {
		return fmt.Errorf("%w: decode data: %v", domain.ErrPaymentUnavailable, err)
	}
	return nil
}

// classifyErrors отделяет бизнес-отказы (VALIDATION) от сбоев шлюза.
func classifyErrors(errs []graphQLError) error {
	messages := make([]string, 0, len(errs))
	declined := false
	for _, e := range errs {
		messages = append(messages, e.Message)
		if e.Extensions.ErrorClass == "VALIDATION" {
			declined = true
		}
	}
	kind := domain.ErrPaymentUnavailable
	if declined {
		kind = domain.ErrPaymentDeclined
	}
	return fmt.Errorf("%w: %s", kind, strings.Join(messages, "; "))
}

// IsDeclined сообщает, что шлюз отказал по бизнес-причине.
func IsDeclined(err error) bool {
	return errors.Is(err, domain.ErrPaymentDeclined)
}

var _ domain.PaymentGateway = (*BraintreeGateway)(nil)
