package orderedlist

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts and times list operations.
type Metrics struct {
	operationsTotal   *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
}

// NewMetrics registers the list operation metrics on reg.
func NewMetrics(reg prometheus.Registerer, namespace string) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		operationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "orderedlist_operations_total",
				Help:      "Total number of ordered list operations",
			},
			[]string{"list", "op", "result"},
		),
		operationDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "orderedlist_operation_duration_seconds",
				Help:      "Histogram of ordered list operation durations",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"list", "op"},
		),
	}
}

func (m *Metrics) observe(list, op string, seconds float64, err error) {
	if m == nil {
		return
	}

	m.operationDuration.WithLabelValues(list, op).Observe(seconds)

	result := "ok"
	if err != nil {
		result = "error"
	}
	m.operationsTotal.WithLabelValues(list, op, result).Inc()
}
