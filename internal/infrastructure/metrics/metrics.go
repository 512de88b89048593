package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics is safe to use through a nil pointer; every method becomes a no-op.
type Metrics struct {
	registry *prometheus.Registry

	MatchExecutions *prometheus.CounterVec
	MatchLatency    prometheus.Histogram
	Settlements     *prometheus.CounterVec
	CustodyOps      *prometheus.CounterVec
	IntegrityChecks *prometheus.CounterVec
	RequestCount    *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
}

func New(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		registry: registry,
		MatchExecutions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "edufund_match_executions_total",
				Help: "Match executions by outcome.",
			},
			[]string{"outcome"},
		),
		MatchLatency: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "edufund_match_execution_seconds",
				Help:    "Latency of the match unit of work in seconds.",
				Buckets: prometheus.DefBuckets,
			},
		),
		Settlements: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "edufund_settlements_total",
				Help: "Settlement transitions by outcome.",
			},
			[]string{"outcome"},
		),
		CustodyOps: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "edufund_custody_operations_total",
				Help: "Custody account operations by kind and status.",
			},
			[]string{"op", "status"},
		),
		IntegrityChecks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "edufund_integrity_checks_total",
				Help: "Ledger integrity checks by result.",
			},
			[]string{"result"},
		),
		RequestCount: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests.",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path", "status"},
		),
	}

	registry.MustRegister(
		m.MatchExecutions, m.MatchLatency, m.Settlements, m.CustodyOps, m.IntegrityChecks,
		m.RequestCount, m.RequestDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) ObserveMatch(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.MatchExecutions.WithLabelValues(outcome).Inc()
	m.MatchLatency.Observe(d.Seconds())
}

func (m *Metrics) IncSettlement(outcome string) {
	if m == nil {
		return
	}
	m.Settlements.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveCustody(op string, err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.CustodyOps.WithLabelValues(op, status).Inc()
}

func (m *Metrics) ObserveIntegrity(ok bool) {
	if m == nil {
		return
	}
	result := "balanced"
	if !ok {
		result = "violation"
	}
	m.IntegrityChecks.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveRequest(method, path string, status int, d time.Duration) {
	if m == nil {
		return
	}
	code := strconv.Itoa(status)
	m.RequestCount.WithLabelValues(method, path, code).Inc()
	m.RequestDuration.WithLabelValues(method, path, code).Observe(d.Seconds())
}

func (m *Metrics) Handler() http.Handler {
	if m == nil || m.registry == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
