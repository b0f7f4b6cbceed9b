package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// CheckoutMetrics содержит метрики оформления заказа.
type CheckoutMetrics struct {
	payments        *prometheus.CounterVec
	paymentDuration prometheus.Histogram
	ordersCreated   prometheus.Counter
	reversals       *prometheus.CounterVec
	replays         prometheus.Counter
	inFlight        prometheus.Gauge
}

// NewCheckoutMetrics регистрирует метрики в глобальном registry.
func NewCheckoutMetrics() *CheckoutMetrics {
	return NewCheckoutMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

// NewCheckoutMetricsWithRegisterer регистрирует метрики в переданном registry.
func NewCheckoutMetricsWithRegisterer(registerer prometheus.Registerer) *CheckoutMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &CheckoutMetrics{
		payments: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "foodstore_payments_total",
			Help: "Total number of payment submissions grouped by result.",
		}, []string{"result"}),
		paymentDuration: registerHistogram(registerer, prometheus.HistogramOpts{
			Name:    "foodstore_payment_duration_seconds",
			Help:    "Duration of gateway sale calls in seconds.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 15},
		}),
		ordersCreated: registerCounter(registerer, prometheus.CounterOpts{
			Name: "foodstore_orders_created_total",
			Help: "Total number of orders recorded after successful payment.",
		}),
		reversals: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "foodstore_payment_reversals_total",
			Help: "Total number of compensating gateway reversals grouped by result.",
		}, []string{"result"}),
		replays: registerCounter(registerer, prometheus.CounterOpts{
			Name: "foodstore_payment_idempotent_replays_total",
			Help: "Total number of payment responses replayed by Idempotency-Key.",
		}),
		inFlight: registerGauge(registerer, prometheus.GaugeOpts{
			Name: "foodstore_payments_in_flight",
			Help: "Number of payment submissions currently in progress.",
		}),
	}
}

// RecordPayment учитывает результат платежа: ok, declined, gateway_error, storage_error.
func (m *CheckoutMetrics) RecordPayment(result string) {
	m.payments.WithLabelValues(result).Inc()
}

// RecordPaymentDuration записывает длительность вызова шлюза.
func (m *CheckoutMetrics) RecordPaymentDuration(d time.Duration) {
	m.paymentDuration.Observe(d.Seconds())
}

// RecordOrderCreated увеличивает счётчик заказов.
func (m *CheckoutMetrics) RecordOrderCreated() {
	m.ordersCreated.Inc()
}

// RecordReversal учитывает компенсирующую отмену транзакции.
func (m *CheckoutMetrics) RecordReversal(ok bool) {
	result := "ok"
	if !ok {
		result = "failed"
	}
	m.reversals.WithLabelValues(result).Inc()
}

// RecordReplay учитывает повтор ответа по Idempotency-Key.
func (m *CheckoutMetrics) RecordReplay() {
	m.replays.Inc()
}

// PaymentStarted и PaymentFinished ведут gauge платежей в процессе.
func (m *CheckoutMetrics) PaymentStarted() {
	m.inFlight.Inc()
}

func (m *CheckoutMetrics) PaymentFinished() {
	m.inFlight.Dec()
}
