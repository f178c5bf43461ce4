// Package metrics exposes prometheus counters for the distribution engines.
package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	RecordsImported    prometheus.Counter
	ImportRowsRejected *prometheus.CounterVec
	RecordsAssigned    *prometheus.CounterVec
	RecordsDistributed *prometheus.CounterVec
	RecordsWithdrawn   *prometheus.CounterVec
	StatusUpdates      *prometheus.CounterVec
	OperationErrors    *prometheus.CounterVec
}

// New registers every collector with reg. Pass prometheus.DefaultRegisterer
// in production and prometheus.NewRegistry() in tests.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		HTTPRequestsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "path", "status"}),
		HTTPRequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path", "status"}),

		RecordsImported: f.NewCounter(prometheus.CounterOpts{
			Name: "leadflow_records_imported_total",
			Help: "Contact records inserted by imports",
		}),
		ImportRowsRejected: f.NewCounterVec(prometheus.CounterOpts{
			Name: "leadflow_import_rows_rejected_total",
			Help: "Import rows rejected, by reason",
		}, []string{"reason"}),
		RecordsAssigned: f.NewCounterVec(prometheus.CounterOpts{
			Name: "leadflow_records_assigned_total",
			Help: "Records claimed by admin assignment, by target type",
		}, []string{"target"}),
		RecordsDistributed: f.NewCounterVec(prometheus.CounterOpts{
			Name: "leadflow_records_distributed_total",
			Help: "Records distributed by TLs, by method",
		}, []string{"method"}),
		RecordsWithdrawn: f.NewCounterVec(prometheus.CounterOpts{
			Name: "leadflow_records_withdrawn_total",
			Help: "Records withdrawn, by actor",
		}, []string{"actor"}),
		StatusUpdates: f.NewCounterVec(prometheus.CounterOpts{
			Name: "leadflow_status_updates_total",
			Help: "Member status reports, by status",
		}, []string{"status"}),
		OperationErrors: f.NewCounterVec(prometheus.CounterOpts{
			Name: "leadflow_operation_errors_total",
			Help: "Per-record failures inside bulk operations",
		}, []string{"operation"}),
	}
}

func (m *Metrics) Imported(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.RecordsImported.Add(float64(n))
}

func (m *Metrics) Rejected(reason string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.ImportRowsRejected.WithLabelValues(reason).Add(float64(n))
}

func (m *Metrics) Assigned(target string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.RecordsAssigned.WithLabelValues(target).Add(float64(n))
}

func (m *Metrics) Distributed(method string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.RecordsDistributed.WithLabelValues(method).Add(float64(n))
}

func (m *Metrics) Withdrawn(actor string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.RecordsWithdrawn.WithLabelValues(actor).Add(float64(n))
}

func (m *Metrics) StatusUpdated(status string) {
	if m == nil {
		return
	}
	m.StatusUpdates.WithLabelValues(status).Inc()
}

func (m *Metrics) OpFailed(op string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.OperationErrors.WithLabelValues(op).Add(float64(n))
}

// Middleware records request counts and latency by route template.
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if m == nil {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		status := strconv.Itoa(c.Writer.Status())
		m.HTTPRequestsTotal.WithLabelValues(c.Request.Method, path, status).Inc()
		m.HTTPRequestDuration.WithLabelValues(c.Request.Method, path, status).
			Observe(time.Since(start).Seconds())
	}
}
