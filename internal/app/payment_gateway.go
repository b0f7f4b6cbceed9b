package app

import (
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/foodstore/internal/domain"
	"github.com/vladislavdragonenkov/foodstore/internal/service/payment"
)

const (
	breakerMaxFailures  = 5
	breakerResetTimeout = 30 * time.Second
)

// newPaymentGateway выбирает реализацию платёжного шлюза по конфигурации.
func newPaymentGateway(cfg Config, logger *log.Entry) (domain.PaymentGateway, error) {
	switch cfg.PaymentProvider {
	case "", PaymentProviderMock:
		logger.Warn("используется mock платёжного шлюза, реальные списания не выполняются")
		return payment.NewMockGateway(), nil
	case PaymentProviderBraintree:
		gwLogger := logger.WithField("component", "braintree")
		gw, err := payment.NewBraintreeGateway(cfg.braintree(), gwLogger)
		if err != nil {
			return nil, err
		}
		breaker := payment.NewCircuitBreaker(breakerMaxFailures, breakerResetTimeout, gwLogger)
		logger.WithField("environment", cfg.BraintreeEnvironment).Info("braintree gateway initialized")
		return payment.NewResilientGateway(gw, payment.DefaultRetryConfig(), breaker, gwLogger), nil
	default:
		return nil, fmt.Errorf("unsupported payment provider %q", cfg.PaymentProvider)
	}
}
