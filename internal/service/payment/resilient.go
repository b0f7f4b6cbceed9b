package payment

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/foodstore/internal/domain"
)

// RetryConfig задаёт повторы отмены транзакции.
type RetryConfig struct {
	MaxAttempts   int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
}

// DefaultRetryConfig возвращает конфигурацию по умолчанию.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:   3,
		InitialDelay:  100 * time.Millisecond,
		MaxDelay:      2 * time.Second,
		BackoffFactor: 2.0,
	}
}

// ErrCircuitOpen возвращается без обращения к шлюзу, пока breaker разомкнут.
var ErrCircuitOpen = fmt.Errorf("circuit breaker is open: %w", domain.ErrPaymentUnavailable)

// ResilientGateway оборачивает шлюз circuit breaker'ом.
// ClientToken и Sale выполняются ровно один раз; Sale нельзя повторять, повтор мог бы списать деньги дважды.
// Повторяется только Void: это компенсация после уже прошедшего списания.
type ResilientGateway struct {
	next    domain.PaymentGateway
	retry   RetryConfig
	breaker *CircuitBreaker
	logger  *log.Entry
}

// NewResilientGateway создаёт обёртку над next.
func NewResilientGateway(next domain.PaymentGateway, retry RetryConfig, breaker *CircuitBreaker, logger *log.Entry) *ResilientGateway {
	if logger == nil {
		logger = log.WithField("component", "payment-gateway")
	}
	if retry.MaxAttempts <= 0 {
		retry.MaxAttempts = 1
	}
	if retry.BackoffFactor < 1 {
		retry.BackoffFactor = 1
	}
	return &ResilientGateway{next: next, retry: retry, breaker: breaker, logger: logger}
}

// ClientToken запрашивает токен.
func (g *ResilientGateway) ClientToken(ctx context.Context) (string, error) {
	var token string
	err := g.breaker.Execute("client_token", func() error {
		var err error
		token, err = g.next.ClientToken(ctx)
		return err
	})
	return token, err
}

// Sale выполняет ровно одну попытку списания.
func (g *ResilientGateway) Sale(ctx context.Context, req domain.SaleRequest) (domain.PaymentResult, error) {
	var result domain.PaymentResult
	err := g.breaker.Execute("sale", func() error {
		var err error
		result, err = g.next.Sale(ctx, req)
		return err
	})
	return result, err
}

// Void отменяет транзакцию с повторами.
func (g *ResilientGateway) Void(ctx context.Context, transactionID string) error {
	return g.withRetry(ctx, "void", func() error {
		return g.next.Void(ctx, transactionID)
	})
}

func (g *ResilientGateway) withRetry(ctx context.Context, operation string, fn func() error) error {
	var lastErr error
	delay := g.retry.InitialDelay

	for attempt := 1; attempt <= g.retry.MaxAttempts; attempt++ {
		lastErr = g.breaker.Execute(operation, fn)
		if lastErr == nil {
			if attempt > 1 {
				g.logger.WithFields(log.Fields{
					"operation": operation,
					"attempt":   attempt,
				}).Info("gateway call succeeded after retry")
			}
			return nil
		}
		if !shouldRetry(lastErr) || attempt == g.retry.MaxAttempts {
			break
		}

		g.logger.WithFields(log.Fields{
			"operation": operation,
			"attempt":   attempt,
			"delay":     delay,
		}).WithError(lastErr).Warn("gateway call failed, retrying")

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		delay = time.Duration(float64(delay) * g.retry.BackoffFactor)
		if g.retry.MaxDelay > 0 && delay > g.retry.MaxDelay {
			delay = g.retry.MaxDelay
		}
	}
	return lastErr
}

// shouldRetry повторяет только транспортные сбои; отказ провайдера окончателен.
func shouldRetry(err error) bool {
	if errors.Is(err, ErrCircuitOpen) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return errors.Is(err, domain.ErrPaymentUnavailable)
}

// CircuitState: состояние circuit breaker.
type CircuitState int

const (
	CircuitClosed CircuitState = iota
	CircuitOpen
	CircuitHalfOpen
)

func (s CircuitState) String() string {
	switch s {
	case CircuitOpen:
		return "open"
	case CircuitHalfOpen:
		return "half-open"
	default:
		return "closed"
	}
}

// CircuitBreaker размыкается после maxFailures подряд сбоев доступности
// и пропускает пробный вызов через resetTimeout.
type CircuitBreaker struct {
	mu           sync.Mutex
	maxFailures  int
	resetTimeout time.Duration
	now          func() time.Time

	failures    int
	lastFailure time.Time
	state       CircuitState
	logger      *log.Entry
}

// NewCircuitBreaker создаёт breaker. nil-breaker пропускает все вызовы.
func NewCircuitBreaker(maxFailures int, resetTimeout time.Duration, logger *log.Entry) *CircuitBreaker {
	if logger == nil {
		logger = log.WithField("component", "circuit-breaker")
	}
	if maxFailures <= 0 {
		maxFailures = 1
	}
	return &CircuitBreaker{
		maxFailures:  maxFailures,
		resetTimeout: resetTimeout,
		now:          time.Now,
		state:        CircuitClosed,
		logger:       logger,
	}
}

// State возвращает текущее состояние.
func (cb *CircuitBreaker) State() CircuitState {
	if cb == nil {
		return CircuitClosed
	}
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Execute выполняет операцию через circuit breaker.
// Отказы провайдера (declined) не считаются сбоем: шлюз ответил.
func (cb *CircuitBreaker) Execute(operation string, fn func() error) error {
	if cb == nil {
		return fn()
	}

	cb.mu.Lock()
	if cb.state == CircuitOpen {
		if cb.now().Sub(cb.lastFailure) < cb.resetTimeout {
			cb.mu.Unlock()
			return ErrCircuitOpen
		}
		cb.state = CircuitHalfOpen
		cb.logger.WithField("operation", operation).Info("circuit breaker half-open")
	}
	cb.mu.Unlock()

	err := fn()

	cb.mu.Lock()
	defer cb.mu.Unlock()

	if err != nil && errors.Is(err, domain.ErrPaymentUnavailable) {
		cb.failures++
		cb.lastFailure = cb.now()
		if cb.state == CircuitHalfOpen || cb.failures >= cb.maxFailures {
			if cb.state != CircuitOpen {
				cb.logger.WithFields(log.Fields{
					"operation": operation,
					"failures":  cb.failures,
				}).Warn("circuit breaker opened")
			}
			cb.state = CircuitOpen
		}
		return err
	}

	if cb.state == CircuitHalfOpen {
		cb.logger.WithField("operation", operation).Info("circuit breaker closed")
	}
	cb.failures = 0
	cb.state = CircuitClosed
	return err
}

var _ domain.PaymentGateway = (*ResilientGateway)(nil)
