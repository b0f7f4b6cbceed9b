package payment

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/foodstore/internal/domain"
)

type capturedRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
}

func newTestGateway(t *testing.T, handler func(w http.ResponseWriter, req capturedRequest)) *BraintreeGateway {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != "public" || pass != "private" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if r.Header.Get("Braintree-Version") == "" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		var req capturedRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		handler(w, req)
	}))
	t.Cleanup(srv.Close)

	gw, err := NewBraintreeGateway(BraintreeConfig{
		MerchantID:  "merchant",
		PublicKey:   "public",
		PrivateKey:  "private",
		Environment: EnvironmentSandbox,
		Endpoint:    srv.URL,
	}, nil)
	require.NoError(t, err)
	return gw
}

func TestBraintreeGateway_ClientToken(t *testing.T) {
	gw := newTestGateway(t, func(w http.ResponseWriter, req capturedRequest) {
		require.Contains(t, req.Query, "createClientToken")
		_, _ = w.Write([]byte(`{"data":{"createClientToken":{"clientToken":"tok-123"}}}`))
	})

	token, err := gw.ClientToken(context.Background())
	require.NoError(t, err)
	require.Equal(t, "tok-123", token)
}

func TestBraintreeGateway_SaleCharges(t *testing.T) {
	gw := newTestGateway(t, func(w http.ResponseWriter, req capturedRequest) {
		require.Contains(t, req.Query, "chargePaymentMethod")
		input := req.Variables["input"].(map[string]any)
		require.Equal(t, "fake-valid-nonce", input["paymentMethodId"])
		require.Equal(t, "15.00", input["transaction"].(map[string]any)["amount"])
		_, _ = w.Write([]byte(`{"data":{"chargePaymentMethod":{"transaction":{
			"id":"tx-1","status":"SUBMITTED_FOR_SETTLEMENT",
			"amount":{"value":"15.00","currencyCode":"USD"}}}}}`))
	})

	result, err := gw.Sale(context.Background(), domain.SaleRequest{
		Nonce:               "fake-valid-nonce",
		Amount:              decimal.NewFromInt(15),
		SubmitForSettlement: true,
	})
	require.NoError(t, err)
	require.True(t, result.Success)
	require.Equal(t, "tx-1", result.TransactionID)
	require.Equal(t, "USD", result.CurrencyCode)
	require.True(t, result.Amount.Equal(decimal.NewFromInt(15)))
	require.Contains(t, string(result.Raw), `"tx-1"`)
}

func TestBraintreeGateway_SaleAuthorizeOnly(t *testing.T) {
	gw := newTestGateway(t, func(w http.ResponseWriter, req capturedRequest) {
		require.Contains(t, req.Query, "authorizePaymentMethod")
		_, _ = w.Write([]byte(`{"data":{"authorizePaymentMethod":{"transaction":{
			"id":"tx-2","status":"AUTHORIZED","amount":{"value":"3.50","currencyCode":"USD"}}}}}`))
	})

	result, err := gw.Sale(context.Background(), domain.SaleRequest{Nonce: "n", Amount: decimal.RequireFromString("3.5")})
	require.NoError(t, err)
	require.Equal(t, "AUTHORIZED", result.Status)
}

func TestBraintreeGateway_SaleErrors(t *testing.T) {
	cases := []struct {
		name    string
		respond func(w http.ResponseWriter)
		want    error
	}{
		{
			name: "validation error is a decline",
			respond: func(w http.ResponseWriter) {
				_, _ = w.Write([]byte(`{"errors":[{"message":"Unknown or expired payment method ID.","extensions":{"errorClass":"VALIDATION"}}]}`))
			},
			want: domain.ErrPaymentDeclined,
		},
		{
			name: "processor declined status",
			respond: func(w http.ResponseWriter) {
				_, _ = w.Write([]byte(`{"data":{"chargePaymentMethod":{"transaction":{"id":"tx-3","status":"PROCESSOR_DECLINED","amount":{"value":"2000.00","currencyCode":"USD"}}}}}`))
			},
			want: domain.ErrPaymentDeclined,
		},
		{
			name: "internal error class",
			respond: func(w http.ResponseWriter) {
				_, _ = w.Write([]byte(`{"errors":[{"message":"boom","extensions":{"errorClass":"INTERNAL"}}]}`))
			},
			want: domain.ErrPaymentUnavailable,
		},
		{
			name: "server error",
			respond: func(w http.ResponseWriter) {
				w.WriteHeader(http.StatusServiceUnavailable)
			},
			want: domain.ErrPaymentUnavailable,
		},
		{
			name: "garbage body",
			respond: func(w http.ResponseWriter) {
				_, _ = w.Write([]byte(`<html>`))
			},
			want: domain.ErrPaymentUnavailable,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			gw := newTestGateway(t, func(w http.ResponseWriter, _ capturedRequest) {
				tc.respond(w)
			})

			_, err := gw.Sale(context.Background(), domain.SaleRequest{
				Nonce:               "nonce",
				Amount:              decimal.NewFromInt(2000),
				SubmitForSettlement: true,
			})
			require.Error(t, err)
			require.True(t, errors.Is(err, tc.want), "got %v", err)
			require.True(t, errors.Is(err, domain.ErrGateway))
		})
	}
}

func TestBraintreeGateway_SaleRequiresNonce(t *testing.T) {
	gw := newTestGateway(t, func(w http.ResponseWriter, _ capturedRequest) {
		t.Fatal("gateway must not be called without nonce")
	})

	_, err := gw.Sale(context.Background(), domain.SaleRequest{Amount: decimal.NewFromInt(1)})
	require.True(t, domain.IsValidation(err))
}

func TestBraintreeGateway_Void(t *testing.T) {
	gw := newTestGateway(t, func(w http.ResponseWriter, req capturedRequest) {
		require.True(t, strings.Contains(req.Query, "reverseTransaction"))
		require.Equal(t, "tx-9", req.Variables["input"].(map[string]any)["transactionId"])
		_, _ = w.Write([]byte(`{"data":{"reverseTransaction":{"reversal":{"id":"tx-9","status":"VOIDED"}}}}`))
	})

	require.NoError(t, gw.Void(context.Background(), "tx-9"))
}

func TestBraintreeConfig_Validate(t *testing.T) {
	require.Error(t, BraintreeConfig{}.Validate())
	require.Error(t, BraintreeConfig{MerchantID: "m", PublicKey: "p", PrivateKey: "k", Environment: "staging"}.Validate())
	require.NoError(t, BraintreeConfig{MerchantID: "m", PublicKey: "p", PrivateKey: "k", Environment: EnvironmentProduction}.Validate())

	require.Equal(t, productionEndpoint, BraintreeConfig{Environment: EnvironmentProduction}.endpoint())
	require.Equal(t, sandboxEndpoint, BraintreeConfig{}.endpoint())
}
