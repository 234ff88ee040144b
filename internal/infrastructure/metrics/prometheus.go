// Package metrics records traffic and dependency counters in Prometheus.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/0xcro3dile/coursebridge/internal/domain/resilience"
)

// PrometheusRecorder implements ports.Recorder and observes dependency retries.
type PrometheusRecorder struct {
	messagesTotal   *prometheus.CounterVec
	statusesTotal   *prometheus.CounterVec
	retriesTotal    *prometheus.CounterVec
	functionsTotal  *prometheus.CounterVec
	retryWaitSecond *prometheus.HistogramVec
}

// NewPrometheusRecorder registers the collectors with reg.
// Pass prometheus.DefaultRegisterer to expose them on the default /metrics handler.
func NewPrometheusRecorder(reg prometheus.Registerer) *PrometheusRecorder {
	factory := promauto.With(reg)
	return &PrometheusRecorder{
		messagesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "coursebridge_messages_total",
				Help: "Inbound channel messages by outcome",
			},
			[]string{"outcome"},
		),
		statusesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "coursebridge_status_events_total",
				Help: "Delivery and template status events by status and archive result",
			},
			[]string{"status", "result"},
		),
		retriesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "coursebridge_dependency_retries_total",
				Help: "Retries of throttled dependency calls",
			},
			[]string{"dependency"},
		),
		functionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "coursebridge_function_calls_total",
				Help: "Agent function invocations by function and response status",
			},
			[]string{"function", "status"},
		),
		retryWaitSecond: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "coursebridge_dependency_retry_wait_seconds",
				Help:    "Backoff waited before each retry",
				Buckets: []float64{0.5, 1, 2, 4, 8, 16, 32},
			},
			[]string{"dependency"},
		),
	}
}

// MessageHandled counts one inbound message.
func (p *PrometheusRecorder) MessageHandled(outcome string) {
	p.messagesTotal.WithLabelValues(outcome).Inc()
}

// StatusArchived counts one status event.
func (p *PrometheusRecorder) StatusArchived(status string, ok bool) {
	result := "archived"
	if !ok {
		result = "failed"
	}
	p.statusesTotal.WithLabelValues(status, result).Inc()
}

// FunctionDispatched counts one agent function call.
func (p *PrometheusRecorder) FunctionDispatched(function string, status int) {
	p.functionsTotal.WithLabelValues(function, statusClass(status)).Inc()
}

// ObserveRetry is a resilience.Policy observer.
func (p *PrometheusRecorder) ObserveRetry(ev resilience.RetryEvent) {
	p.retriesTotal.WithLabelValues(ev.Name).Inc()
	p.retryWaitSecond.WithLabelValues(ev.Name).Observe(ev.Wait.Seconds())
}

func statusClass(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	default:
		return "2xx"
	}
}
