package metrics

import "github.com/prometheus/client_golang/prometheus"

// CatalogMetrics содержит метрики каталога блюд.
type CatalogMetrics struct {
	operations *prometheus.CounterVec
	countCache *prometheus.CounterVec
}

// NewCatalogMetrics регистрирует метрики в глобальном registry.
func NewCatalogMetrics() *CatalogMetrics {
	return NewCatalogMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

// NewCatalogMetricsWithRegisterer регистрирует метрики в переданном registry.
func NewCatalogMetricsWithRegisterer(registerer prometheus.Registerer) *CatalogMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &CatalogMetrics{
		operations: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "foodstore_catalog_operations_total",
			Help: "Total number of catalog operations grouped by operation and result.",
		}, []string{"operation", "result"}),
		countCache: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "foodstore_food_count_cache_total",
			Help: "Food count cache lookups grouped by result (hit, miss, error).",
		}, []string{"result"}),
	}
}

// RecordOperation учитывает операцию каталога; err == nil означает успех.
func (m *CatalogMetrics) RecordOperation(operation string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.operations.WithLabelValues(operation, result).Inc()
}

// RecordCountCache учитывает обращение к кешу количества блюд.
func (m *CatalogMetrics) RecordCountCache(result string) {
	m.countCache.WithLabelValues(result).Inc()
}
