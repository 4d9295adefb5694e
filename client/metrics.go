package client

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus metrics for node RPC calls
type Metrics struct {
	RequestsTotal      *prometheus.CounterVec
	RequestDuration    *prometheus.HistogramVec
	RateLimiterWait    prometheus.Histogram
	SubscriptionEvents prometheus.Counter
	Reconnects         prometheus.Counter
}

// NewMetrics creates the RPC metrics and registers them with reg.
// A nil registerer yields working but unregistered collectors.
func NewMetrics(reg prometheus.Registerer, namespace string) *Metrics {
	if namespace == "" {
		namespace = "walletidx"
	}
	const subsystem = "rpc"
	factory := promauto.With(reg)

	return &Metrics{
		RequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "requests_total",
			Help:      "Total node RPC requests by method and outcome",
		}, []string{"method", "outcome"}),
		RequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "request_duration_seconds",
			Help:      "Node RPC request latency",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
		RateLimiterWait: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "rate_limiter_wait_seconds",
			Help:      "Time spent waiting for the request rate limiter",
			Buckets:   []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}),
		SubscriptionEvents: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "subscription_blocks_total",
			Help:      "New block notifications received over websocket",
		}),
		Reconnects: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "subscription_reconnects_total",
			Help:      "Websocket reconnect attempts",
		}),
	}
}

// ObserveRequest records one completed call
func (m *Metrics) ObserveRequest(method string, d time.Duration, err error) {
	if m == nil {
		return
	}
	m.RequestDuration.WithLabelValues(method).Observe(d.Seconds())
	m.RequestsTotal.WithLabelValues(method, outcome(err)).Inc()
}

// ObserveWait records time spent in the rate limiter
func (m *Metrics) ObserveWait(d time.Duration) {
	if m == nil {
		return
	}
	m.RateLimiterWait.Observe(d.Seconds())
}

func outcome(err error) string {
	var (
		nf *NotFoundError
		ne *NetworkError
		pe *ProtocolError
	)
	switch {
	case err == nil:
		return "ok"
	case errors.As(err, &nf):
		return "not_found"
	case errors.As(err, &ne):
		return "network"
	case errors.As(err, &pe):
		return "protocol"
	default:
		return "error"
	}
}
