// Package metrics records per-run Prometheus metrics and pushes them to a
// Pushgateway when one is configured. A one-shot job cannot be scraped, so the
// registry is private to the run and pushed once at the end.
//
// The process name is carried by the push grouping key, not by metric labels.
//
// Metrics:
//   - termsync_pages_fetched_total (Counter): list pages fetched
//   - termsync_rows_fetched_total (Counter): rows returned by the API
//   - termsync_rows_written_total{outcome} (Counter): rows written, outcome=ok|error
//   - termsync_run_duration_seconds (Gauge): wall time of the run
//   - termsync_last_success_timestamp_seconds (Gauge): set when the run succeeds
package metrics

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

const namespace = "termsync"

// Run collects the metrics of one process invocation. A nil *Run is valid and records nothing.
type Run struct {
	process  string
	started  time.Time
	registry *prometheus.Registry

	pages       prometheus.Counter
	rowsFetched prometheus.Counter
	rowsWritten *prometheus.CounterVec
	duration    prometheus.Gauge
	lastSuccess prometheus.Gauge
}

// NewRun creates a fresh registry for process.
func NewRun(process string) *Run {
	r := &Run{
		process:  process,
		started:  time.Now(),
		registry: prometheus.NewRegistry(),
		pages: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pages_fetched_total",
			Help:      "List pages fetched from GO",
		}),
		rowsFetched: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_fetched_total",
			Help:      "Rows returned by GO",
		}),
		rowsWritten: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_written_total",
			Help:      "Rows written to the database by outcome",
		}, []string{"outcome"}),
		duration: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time of the run",
		}),
		lastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last successful run",
		}),
	}
	r.registry.MustRegister(r.pages, r.rowsFetched, r.rowsWritten, r.duration, r.lastSuccess)
	return r
}

// Registry exposes the underlying registry.
func (r *Run) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

// ObservePage implements goapi.PageObserver.
func (r *Run) ObservePage(_ string, rows int) {
	if r == nil {
		return
	}
	r.pages.Inc()
	r.rowsFetched.Add(float64(rows))
}

// RowsFetched counts rows that did not come through a paged list, e.g. term nodes.
func (r *Run) RowsFetched(n int) {
	if r == nil || n <= 0 {
		return
	}
	r.rowsFetched.Add(float64(n))
}

// RowWritten counts one database write.
func (r *Run) RowWritten(err error) {
	if r == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	r.rowsWritten.WithLabelValues(outcome).Inc()
}

// RowsWritten counts a batch of successful writes.
func (r *Run) RowsWritten(n int) {
	if r == nil || n <= 0 {
		return
	}
	r.rowsWritten.WithLabelValues("ok").Add(float64(n))
}

// Finish records the run duration and, when err is nil, the success timestamp.
func (r *Run) Finish(err error) {
	if r == nil {
		return
	}
	r.duration.Set(time.Since(r.started).Seconds())
	if err == nil {
		r.lastSuccess.SetToCurrentTime()
	}
}

// Push sends the registry to a Pushgateway, replacing the job's previous group.
func (r *Run) Push(ctx context.Context, url, job string) error {
	if r == nil || url == "" {
		return nil
	}
	if job == "" {
		job = namespace
	}
	err := push.New(url, job).
		Gatherer(r.registry).
		Grouping("process", r.process).
		PushContext(ctx)
	if err != nil {
		return fmt.Errorf("metrics: push to %s: %w", url, err)
	}
	return nil
}
