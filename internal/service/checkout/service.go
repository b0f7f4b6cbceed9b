package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/vladislavdragonenkov/foodstore/internal/domain"
	"github.com/vladislavdragonenkov/foodstore/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/foodstore/internal/metrics"
)

const (
	tracerName = "github.com/vladislavdragonenkov/foodstore/internal/service/checkout"

	// reversalTimeout ограничивает компенсирующий вызов шлюза после отмены запроса.
	reversalTimeout = 10 * time.Second
	// DefaultOrdersLimit: сколько заказов отдаёт ListByBuyer по умолчанию.
	DefaultOrdersLimit = 50
)

// Notifier будит outbox worker после записи события.
type Notifier interface {
	Notify()
}

// PaymentRequest: данные формы оплаты.
type PaymentRequest struct {
	Nonce   string
	BuyerID string
	Cart    []domain.OrderItem
}

// Options задаёт зависимости сервиса оформления заказа.
type Options struct {
	Logger   *log.Entry
	Outbox   domain.OutboxRepository
	Notifier Notifier
	Metrics  *metrics.CheckoutMetrics
	Tracer   trace.Tracer
	Now      func() time.Time
}

// Option настраивает Service.
type Option func(*Options)

// WithLogger задаёт logger.
func WithLogger(logger *log.Entry) Option {
	return func(opts *Options) {
		opts.Logger = logger
	}
}

// WithOutbox включает публикацию order.created через transactional outbox.
func WithOutbox(repo domain.OutboxRepository, notifier Notifier) Option {
	return func(opts *Options) {
		opts.Outbox = repo
		opts.Notifier = notifier
	}
}

// WithMetrics задаёт метрики оформления заказа.
func WithMetrics(m *metrics.CheckoutMetrics) Option {
	return func(opts *Options) {
		opts.Metrics = m
	}
}

// WithTracer задаёт tracer; по умолчанию берётся глобальный provider.
func WithTracer(tracer trace.Tracer) Option {
	return func(opts *Options) {
		opts.Tracer = tracer
	}
}

// WithClock подменяет источник времени (для тестов).
func WithClock(now func() time.Time) Option {
	return func(opts *Options) {
		if now != nil {
			opts.Now = now
		}
	}
}

// Service проводит оплату корзины и записывает заказ.
type Service struct {
	orders   domain.OrderRepository
	gateway  domain.PaymentGateway
	outbox   domain.OutboxRepository
	notifier Notifier
	metrics  *metrics.CheckoutMetrics
	tracer   trace.Tracer
	logger   *log.Entry
	now      func() time.Time
}

// NewService создаёт сервис оформления заказа. Шлюз передаётся явно, глобального клиента нет.
func NewService(orders domain.OrderRepository, gateway domain.PaymentGateway, options ...Option) *Service {
	opts := Options{Now: time.Now}
	for _, opt := range options {
		opt(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = log.New().WithField("component", "checkout")
	}
	if opts.Tracer == nil {
		opts.Tracer = otel.Tracer(tracerName)
	}

	return &Service{
		orders:   orders,
		gateway:  gateway,
		outbox:   opts.Outbox,
		notifier: opts.Notifier,
		metrics:  opts.Metrics,
		tracer:   opts.Tracer,
		logger:   opts.Logger.WithField("layer", "service"),
		now:      opts.Now,
	}
}

// ClientToken возвращает токен шлюза без изменений.
func (s *Service) ClientToken(ctx context.Context) (string, error) {
	ctx, span := s.tracer.Start(ctx, "checkout.ClientToken")
	defer span.End()

	token, err := s.gateway.ClientToken(ctx)
	if err != nil {
		err = gatewayErr("client token", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "client token failed")
		s.logger.WithError(err).Warn("failed to generate client token")
		return "", err
	}
	return token, nil
}

// SubmitPayment списывает сумму корзины и записывает заказ со статусом Ordered.
// Если заказ не удалось сохранить, транзакция отменяется на стороне шлюза.
func (s *Service) SubmitPayment(ctx context.Context, req PaymentRequest) (domain.Order, error) {
	ctx, span := s.tracer.Start(ctx, "checkout.SubmitPayment", trace.WithAttributes(
		attribute.String("buyer.id", req.BuyerID),
		attribute.Int("cart.items", len(req.Cart)),
	))
	defer span.End()

	if err := validateRequest(req); err != nil {
		span.SetStatus(codes.Error, "invalid request")
		return domain.Order{}, err
	}

	total := domain.CartTotal(req.Cart)
	span.SetAttributes(attribute.String("payment.amount", total.String()))

	s.paymentStarted()
	defer s.paymentFinished()

	started := time.Now()
	result, err := s.gateway.Sale(ctx, domain.SaleRequest{
		Nonce:               req.Nonce,
		Amount:              total,
		SubmitForSettlement: true,
	})
	s.observeDuration(time.Since(started))
	if err == nil && !result.Success {
		err = fmt.Errorf("%w: transaction %s status %s", domain.ErrPaymentDeclined, result.TransactionID, result.Status)
	}
	if err != nil {
		err = gatewayErr("sale", err)
		if errors.Is(err, domain.ErrPaymentDeclined) {
			s.recordPayment("declined")
		} else {
			s.recordPayment("gateway_error")
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "sale failed")
		s.logger.WithError(err).WithFields(log.Fields{
			"buyer_id": req.BuyerID,
			"amount":   total.String(),
		}).Warn("payment sale failed")
		return domain.Order{}, err
	}
	span.SetAttributes(attribute.String("payment.transaction_id", result.TransactionID))

	now := s.now().UTC()
	order := domain.Order{
		ID:        uuid.NewString(),
		BuyerID:   req.BuyerID,
		Items:     append([]domain.OrderItem(nil), req.Cart...),
		Payment:   result,
		Total:     total,
		Status:    domain.OrderStatusOrdered,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.orders.Create(ctx, order); err != nil {
		err = domain.StorageError("create order", err)
		s.recordPayment("storage_error")
		span.RecordError(err)
		span.SetStatus(codes.Error, "order persistence failed")
		s.logger.WithError(err).WithFields(log.Fields{
			"order_id":       order.ID,
			"transaction_id": result.TransactionID,
		}).Error("failed to record order after successful charge, reversing transaction")
		s.reverse(ctx, result.TransactionID)
		return domain.Order{}, err
	}

	s.recordPayment("ok")
	if s.metrics != nil {
		s.metrics.RecordOrderCreated()
	}
	s.enqueueOrderCreated(ctx, order)

	s.logger.WithFields(log.Fields{
		"order_id":       order.ID,
		"buyer_id":       order.BuyerID,
		"transaction_id": result.TransactionID,
		"total":          total.String(),
	}).Info("order recorded")
	return order, nil
}

// ListByBuyer возвращает заказы покупателя, новые первыми.
func (s *Service) ListByBuyer(ctx context.Context, buyerID string) ([]domain.Order, error) {
	if strings.TrimSpace(buyerID) == "" {
		return nil, domain.NewValidationError("buyer", "Buyer is Required")
	}
	orders, err := s.orders.ListByBuyer(ctx, buyerID, DefaultOrdersLimit)
	if err != nil {
		return nil, domain.StorageError("list orders", err)
	}
	return orders, nil
}

func (s *Service) reverse(ctx context.Context, transactionID string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), reversalTimeout)
	defer cancel()

	err := s.gateway.Void(ctx, transactionID)
	if s.metrics != nil {
		s.metrics.RecordReversal(err == nil)
	}
	if err != nil {
		s.logger.WithError(err).WithField("transaction_id", transactionID).Error("failed to reverse transaction")
		return
	}
	s.logger.WithField("transaction_id", transactionID).Warn("transaction reversed")
}

// enqueueOrderCreated записывает событие в outbox. Ошибка не отменяет уже сохранённый заказ.
func (s *Service) enqueueOrderCreated(ctx context.Context, order domain.Order) {
	if s.outbox == nil {
		return
	}

	payload, err := json.Marshal(kafka.NewOrderCreatedEvent(order))
	if err != nil {
		s.logger.WithError(err).WithField("order_id", order.ID).Warn("failed to encode order event")
		return
	}

	if _, err := s.outbox.Enqueue(ctx, domain.OutboxMessage{
		ID:            uuid.NewString(),
		AggregateType: kafka.AggregateTypeOrder,
		AggregateID:   order.ID,
		EventType:     string(kafka.EventTypeOrderCreated),
		Payload:       payload,
	}); err != nil {
		s.logger.WithError(err).WithField("order_id", order.ID).Warn("failed to enqueue order event")
		return
	}
	if s.notifier != nil {
		s.notifier.Notify()
	}
}

func validateRequest(req PaymentRequest) error {
	if strings.TrimSpace(req.BuyerID) == "" {
		return domain.NewValidationError("buyer", "Buyer is Required")
	}
	if strings.TrimSpace(req.Nonce) == "" {
		return domain.NewValidationError("nonce", "Payment method nonce is Required")
	}
	return domain.ValidateCart(req.Cart)
}

// gatewayErr гарантирует, что ошибка шлюза распознаётся как ErrGateway.
func gatewayErr(op string, err error) error {
	if errors.Is(err, domain.ErrGateway) || domain.IsValidation(err) {
		return err
	}
	return fmt.Errorf("%s: %w: %w", op, domain.ErrPaymentUnavailable, err)
}

func (s *Service) recordPayment(result string) {
	if s.metrics != nil {
		s.metrics.RecordPayment(result)
	}
}

func (s *Service) observeDuration(d time.Duration) {
	if s.metrics != nil {
		s.metrics.RecordPaymentDuration(d)
	}
}

func (s *Service) paymentStarted() {
	if s.metrics != nil {
		s.metrics.PaymentStarted()
	}
}

func (s *Service) paymentFinished() {
	if s.metrics != nil {
		s.metrics.PaymentFinished()
	}
}
