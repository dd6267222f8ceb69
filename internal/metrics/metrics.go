// Package metrics exposes Prometheus instrumentation for the tracker.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/JonMunkholm/qrtrack/internal/core"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds every collector. It implements core.Metrics.
type Metrics struct {
	WizardStepsSaved  *prometheus.CounterVec
	RecordsImported   prometheus.Counter
	RecordsSkipped    prometheus.Counter
	RecordMutations   *prometheus.CounterVec
	Scans             *prometheus.CounterVec
	RateLimitRejected *prometheus.CounterVec
	RequestDuration   *prometheus.HistogramVec

	gatherer prometheus.Gatherer
}

var _ core.Metrics = (*Metrics)(nil)

// New registers all collectors with reg. A nil reg uses a fresh registry
// that also carries the Go and process collectors.
func New(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	}
	f := promauto.With(reg)

	return &Metrics{
		WizardStepsSaved: f.NewCounterVec(prometheus.CounterOpts{
			Name: "qrtrack_wizard_steps_saved_total",
			Help: "Total number of wizard step saves, by step",
		}, []string{"step"}),
		RecordsImported: f.NewCounter(prometheus.CounterOpts{
			Name: "qrtrack_records_imported_total",
			Help: "Total number of participant records created by dataset builds",
		}),
		RecordsSkipped: f.NewCounter(prometheus.CounterOpts{
			Name: "qrtrack_records_skipped_total",
			Help: "Total number of upload rows skipped by dataset builds",
		}),
		RecordMutations: f.NewCounterVec(prometheus.CounterOpts{
			Name: "qrtrack_record_mutations_total",
			Help: "Total number of single-record mutations, by action",
		}, []string{"action"}),
		Scans: f.NewCounterVec(prometheus.CounterOpts{
			Name: "qrtrack_checkin_scans_total",
			Help: "Total number of check-in scans, by outcome",
		}, []string{"outcome"}),
		RateLimitRejected: f.NewCounterVec(prometheus.CounterOpts{
			Name: "qrtrack_ratelimit_rejected_total",
			Help: "Total number of requests rejected by the rate limiter, by scope",
		}, []string{"scope"}),
		RequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "qrtrack_http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
		gatherer: reg,
	}
}

func (m *Metrics) WizardStepSaved(step int) {
	m.WizardStepsSaved.WithLabelValues(strconv.Itoa(step)).Inc()
}

func (m *Metrics) DatasetBuilt(created, skipped int) {
	m.RecordsImported.Add(float64(created))
	m.RecordsSkipped.Add(float64(skipped))
}

func (m *Metrics) RecordMutated(action core.AuditAction) {
	m.RecordMutations.WithLabelValues(string(action)).Inc()
}

func (m *Metrics) ScanRecorded(outcome string) {
	m.Scans.WithLabelValues(outcome).Inc()
}

// RateLimited counts a rejected request.
func (m *Metrics) RateLimited(scope string) {
	m.RateLimitRejected.WithLabelValues(scope).Inc()
}

// ObserveRequest records one HTTP request.
func (m *Metrics) ObserveRequest(method, route string, status int, d time.Duration) {
	m.RequestDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(d.Seconds())
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
