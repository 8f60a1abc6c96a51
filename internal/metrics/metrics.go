// Package metrics exposes Prometheus instruments for the import pipeline.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/joseph-ayodele/yape-tracker/constants"
)

const namespace = "yape"

// Upload outcomes.
const (
	OutcomeOK         = "ok"
	OutcomeRejected   = "rejected"
	OutcomeFailed     = "failed"
	OutcomeDuplicated = "deduplicated"
)

// Recorder owns the import metrics. A nil *Recorder is valid and records nothing.
type Recorder struct {
	registry  *prometheus.Registry
	uploads   *prometheus.CounterVec
	rows      *prometheus.CounterVec
	saved     prometheus.Counter
	skipped   prometheus.Counter
	duration  *prometheus.HistogramVec
	inboxRuns *prometheus.CounterVec
}

// NewRecorder registers the import metrics, plus Go and process collectors,
// on a fresh registry.
func NewRecorder() *Recorder {
	reg := prometheus.NewRegistry()
	r := &Recorder{
		registry: reg,
		uploads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "uploads_total",
			Help:      "Upload calls by phase and outcome.",
		}, []string{"phase", "outcome"}),
		rows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_total",
			Help:      "Data rows seen by the pipeline, by phase and outcome.",
		}, []string{"phase", "outcome"}),
		saved: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transactions_saved_total",
			Help:      "Transactions inserted by confirmed uploads.",
		}),
		skipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transactions_already_stored_total",
			Help:      "Unique rows dropped on confirm because they were already stored.",
		}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "upload_duration_seconds",
			Help:      "Wall time of validate and confirm calls.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"phase"}),
		inboxRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "inbox_files_total",
			Help:      "Files handled by scheduled inbox ingestion, by result.",
		}, []string{"result"}),
	}
	reg.MustRegister(
		r.uploads, r.rows, r.saved, r.skipped, r.duration, r.inboxRuns,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

// Upload records one validate or confirm call.
func (r *Recorder) Upload(phase constants.UploadPhase, outcome string, elapsed time.Duration) {
	if r == nil {
		return
	}
	r.uploads.WithLabelValues(string(phase), outcome).Inc()
	r.duration.WithLabelValues(string(phase)).Observe(elapsed.Seconds())
}

// Rows adds n rows with the given outcome.
func (r *Recorder) Rows(phase constants.UploadPhase, outcome constants.RowOutcome, n int) {
	if r == nil || n <= 0 {
		return
	}
	r.rows.WithLabelValues(string(phase), string(outcome)).Add(float64(n))
}

// Saved adds inserted and already-stored transaction counts.
func (r *Recorder) Saved(inserted, alreadyStored int) {
	if r == nil {
		return
	}
	if inserted > 0 {
		r.saved.Add(float64(inserted))
	}
	if alreadyStored > 0 {
		r.skipped.Add(float64(alreadyStored))
	}
}

// InboxFile records the result of one scheduled file ingestion.
func (r *Recorder) InboxFile(result string) {
	if r == nil {
		return
	}
	r.inboxRuns.WithLabelValues(result).Inc()
}

// Registry exposes the underlying registry, mainly for tests.
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}
