package fetch

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus metrics for scanning and detail fetching
type Metrics struct {
	ScansTotal      *prometheus.CounterVec
	HeightsTotal    *prometheus.CounterVec
	DiscoveredTotal prometheus.Counter
	ScanDuration    prometheus.Histogram
	LookupsTotal    *prometheus.CounterVec
	FetchDuration   prometheus.Histogram
}

// NewMetrics creates the scanner and fetcher metrics and registers them with
// reg. A nil registerer yields unregistered collectors.
func NewMetrics(reg prometheus.Registerer, namespace string) *Metrics {
	if namespace == "" {
		namespace = "walletidx"
	}
	factory := promauto.With(reg)

	return &Metrics{
		ScansTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scanner",
			Name:      "scans_total",
			Help:      "Scan requests by outcome",
		}, []string{"result"}),
		HeightsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scanner",
			Name:      "heights_total",
			Help:      "Heights visited by the scanner by outcome",
		}, []string{"result"}),
		DiscoveredTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scanner",
			Name:      "discovered_total",
			Help:      "Transaction hashes newly added to the index",
		}),
		ScanDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "scanner",
			Name:      "scan_duration_seconds",
			Help:      "Duration of scans that walked the block window",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),
		LookupsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "fetcher",
			Name:      "lookups_total",
			Help:      "Point lookups by outcome",
		}, []string{"result"}),
		FetchDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "fetcher",
			Name:      "fetch_duration_seconds",
			Help:      "Duration of FetchDetails calls",
			Buckets:   prometheus.DefBuckets,
		}),
	}
}

func (m *Metrics) recordScan(result string) {
	if m == nil {
		return
	}
	m.ScansTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) recordHeight(ok bool) {
	if m == nil {
		return
	}
	if ok {
		m.HeightsTotal.WithLabelValues("ok").Inc()
		return
	}
	m.HeightsTotal.WithLabelValues("failed").Inc()
}

func (m *Metrics) recordDiscovered(n int) {
	if m == nil || n == 0 {
		return
	}
	m.DiscoveredTotal.Add(float64(n))
}

func (m *Metrics) observeScan(d time.Duration) {
	if m == nil {
		return
	}
	m.ScanDuration.Observe(d.Seconds())
}

func (m *Metrics) recordLookup(ok bool) {
	if m == nil {
		return
	}
	if ok {
		m.LookupsTotal.WithLabelValues("ok").Inc()
		return
	}
	m.LookupsTotal.WithLabelValues("dropped").Inc()
}

func (m *Metrics) observeFetch(d time.Duration) {
	if m == nil {
		return
	}
	m.FetchDuration.Observe(d.Seconds())
}
