// Package metrics defines Prometheus metrics for traceboard.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "traceboard_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "traceboard_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	ErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "traceboard_errors_total",
			Help: "Total errors by type",
		},
		[]string{"type"},
	)

	AuditWrites = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "traceboard_audit_writes_total",
			Help: "Audit ledger write attempts by severity and outcome",
		},
		[]string{"severity", "outcome"},
	)

	AuditQueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "traceboard_audit_queue_depth",
			Help: "Current informational audit queue depth",
		},
	)

	AuditChainBreaks = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "traceboard_audit_chain_breaks_total",
			Help: "Broken links reported by chain verification",
		},
	)

	AuditLedgerBytes = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "traceboard_audit_ledger_bytes",
			Help: "On-disk size of the audit ledger table",
		},
	)
)

func init() {
	prometheus.MustRegister(
		RequestDuration, RequestsTotal, ErrorsTotal,
		AuditWrites, AuditQueueDepth, AuditChainBreaks, AuditLedgerBytes,
	)
}
