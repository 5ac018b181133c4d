package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	globalMetrics *Metrics
	globalMu      sync.RWMutex
)

// Metrics holds all Prometheus metrics for mailseed
type Metrics struct {
	// Seed operations
	OperationsTotal          *prometheus.CounterVec
	OperationDurationSeconds *prometheus.HistogramVec
	ValidationErrorsTotal    prometheus.Counter

	// Loader
	RowsInsertedTotal     *prometheus.CounterVec
	RowsDeletedTotal      *prometheus.CounterVec
	ChunksTotal           *prometheus.CounterVec
	CompensationsTotal    *prometheus.CounterVec
	SessionsCleanedTotal  prometheus.Counter

	// Session gauges
	SessionsTotal  prometheus.Gauge
	SessionsSeeded prometheus.Gauge
	JournalPending prometheus.Gauge

	// API metrics
	APIRequestsTotal          *prometheus.CounterVec
	APIRequestDurationSeconds *prometheus.HistogramVec
	APIErrorsTotal            *prometheus.CounterVec

	// System metrics
	UptimeSeconds prometheus.Gauge
	Goroutines    prometheus.Gauge

	registry *prometheus.Registry
}

// New creates a new Metrics instance with all metrics registered
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		OperationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mailseed_operations_total",
				Help: "Total number of seed operations by kind and outcome",
			},
			[]string{"operation", "status"},
		),
		OperationDurationSeconds: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "mailseed_operation_duration_seconds",
				Help:    "Seed operation duration in seconds",
				Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"operation"},
		),
		ValidationErrorsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "mailseed_validation_errors_total",
				Help: "Total number of validation errors reported before a write",
			},
		),

		RowsInsertedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mailseed_rows_inserted_total",
				Help: "Total number of rows inserted by table",
			},
			[]string{"table"},
		),
		RowsDeletedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mailseed_rows_deleted_total",
				Help: "Total number of rows deleted by table",
			},
			[]string{"table"},
		),
		ChunksTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mailseed_chunks_total",
				Help: "Total number of insert chunks by table and outcome",
			},
			[]string{"table", "status"},
		),
		CompensationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mailseed_compensations_total",
				Help: "Total number of journal replays after a failed write",
			},
			[]string{"status"},
		),
		SessionsCleanedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "mailseed_sessions_cleaned_total",
				Help: "Total number of expired sessions removed",
			},
		),

		SessionsTotal: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "mailseed_sessions",
				Help: "Number of sessions in the store",
			},
		),
		SessionsSeeded: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "mailseed_sessions_seeded",
				Help: "Number of sessions carrying seed data",
			},
		),
		JournalPending: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "mailseed_journal_pending_sessions",
				Help: "Number of sessions with an unreplayed write journal",
			},
		),

		APIRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mailseed_api_requests_total",
				Help: "Total number of API requests",
			},
			[]string{"method", "path", "status"},
		),
		APIRequestDurationSeconds: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "mailseed_api_request_duration_seconds",
				Help:    "API request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		APIErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mailseed_api_errors_total",
				Help: "Total number of API errors",
			},
			[]string{"error_type"},
		),

		UptimeSeconds: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "mailseed_uptime_seconds",
				Help: "Process uptime in seconds",
			},
		),
		Goroutines: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "mailseed_goroutines",
				Help: "Number of goroutines",
			},
		),

		registry: reg,
	}

	// Register all metrics
	reg.MustRegister(
		m.OperationsTotal,
		m.OperationDurationSeconds,
		m.ValidationErrorsTotal,
		m.RowsInsertedTotal,
		m.RowsDeletedTotal,
		m.ChunksTotal,
		m.CompensationsTotal,
		m.SessionsCleanedTotal,
		m.SessionsTotal,
		m.SessionsSeeded,
		m.JournalPending,
		m.APIRequestsTotal,
		m.APIRequestDurationSeconds,
		m.APIErrorsTotal,
		m.UptimeSeconds,
		m.Goroutines,
	)

	return m
}

// Registry returns the Prometheus registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// SetGlobal sets the global metrics instance
func SetGlobal(m *Metrics) {
	globalMu.Lock()
	defer globalMu.Unlock()
	globalMetrics = m
}

// Global returns the global metrics instance
func Global() *Metrics {
	globalMu.RLock()
	defer globalMu.RUnlock()
	return globalMetrics
}

// ObserveOperation records the outcome and duration of a seed operation
func ObserveOperation(operation string, err error, seconds float64) {
	m := Global()
	if m == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	m.OperationsTotal.WithLabelValues(operation, status).Inc()
	m.OperationDurationSeconds.WithLabelValues(operation).Observe(seconds)
}

// AddValidationErrors adds n rejected-config errors
func AddValidationErrors(n int) {
	m := Global()
	if m != nil && n > 0 {
		m.ValidationErrorsTotal.Add(float64(n))
	}
}

// AddRowsInserted adds n inserted rows for table
func AddRowsInserted(table string, n int) {
	m := Global()
	if m != nil && n > 0 {
		m.RowsInsertedTotal.WithLabelValues(table).Add(float64(n))
	}
}

// AddRowsDeleted adds n deleted rows for table
func AddRowsDeleted(table string, n int64) {
	m := Global()
	if m != nil && n > 0 {
		m.RowsDeletedTotal.WithLabelValues(table).Add(float64(n))
	}
}

// IncChunk counts one insert chunk
func IncChunk(table string, err error) {
	m := Global()
	if m == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	m.ChunksTotal.WithLabelValues(table, status).Inc()
}

// IncCompensation counts one journal replay
func IncCompensation(err error) {
	m := Global()
	if m == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	m.CompensationsTotal.WithLabelValues(status).Inc()
}

// IncSessionsCleaned counts one removed session
func IncSessionsCleaned() {
	m := Global()
	if m != nil {
		m.SessionsCleanedTotal.Inc()
	}
}
