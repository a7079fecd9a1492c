package metrics

import (
	"time"

	"fastllm-hq/turbine/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// OperationMetrics tracks calls routed through accelerated host sites.
//
// Metrics:
//   - turbine_accel_operations_total: calls by component, operation, status
//   - turbine_accel_operation_duration_seconds: call duration histogram
type OperationMetrics struct {
	operationsTotal   *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
}

// NewOperationMetrics creates and registers operation metrics.
func NewOperationMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *OperationMetrics {
	om := &OperationMetrics{
		operationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "operations_total",
				Help:      "Total number of accelerated operations",
			},
			[]string{"component", "operation", "status"},
		),

		operationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "operation_duration_seconds",
				Help:      "Duration of accelerated operations in seconds",
				Buckets:   cfg.DurationBuckets,
			},
			[]string{"component", "operation"},
		),
	}

	registry.MustRegister(om.operationsTotal, om.operationDuration)

	return om
}

// Record records a single operation.
func (om *OperationMetrics) Record(component, operation string, duration time.Duration, success bool) {
	status := "success"
	if !success {
		status = "error"
	}

	om.operationsTotal.WithLabelValues(component, operation, status).Inc()
	om.operationDuration.WithLabelValues(component, operation).Observe(duration.Seconds())
}
