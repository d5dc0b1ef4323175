// Package observability provides a Prometheus implementation of
// varanno.MetricsCollector.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hupe1980/varanno"
)

const namespace = "varanno"

// PrometheusCollector implements varanno.MetricsCollector with Prometheus
// counters and histograms.
type PrometheusCollector struct {
	opLatency   *prometheus.HistogramVec
	runs        *prometheus.CounterVec
	annotated   prometheus.Counter
	variants    prometheus.Counter
	skipped     prometheus.Counter
	checkpoints *prometheus.CounterVec
	snapshots   *prometheus.CounterVec
	entries     prometheus.Counter
	results     prometheus.Counter
}

var _ varanno.MetricsCollector = (*PrometheusCollector)(nil)

// NewPrometheusCollector creates a collector and registers its metrics with
// reg. If reg is nil, prometheus.DefaultRegisterer is used.
func NewPrometheusCollector(reg prometheus.Registerer) (*PrometheusCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	c := &PrometheusCollector{
		opLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_latency_seconds",
			Help:      "Latency of varanno operations",
			Buckets:   prometheus.DefBuckets,
		}, []string{"op", "status"}),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Finished annotation runs by final state",
		}, []string{"state"}),
		annotated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "annotations_committed_total",
			Help:      "Annotations stored by committed runs",
		}),
		variants: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batch_variants_total",
			Help:      "Variants passed to the annotator",
		}),
		skipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batch_skipped_total",
			Help:      "Variants the annotator returned no annotation for",
		}),
		checkpoints: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checkpoints_total",
			Help:      "Run segments written",
		}, []string{"status"}),
		snapshots: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "snapshot_operations_total",
			Help:      "Snapshot saves and deletes",
		}, []string{"op", "status"}),
		entries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "snapshot_entries_total",
			Help:      "Annotations copied into snapshots",
		}),
		results: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "query_results_total",
			Help:      "Annotations returned by reads",
		}),
	}

	for _, col := range []prometheus.Collector{
		c.opLatency, c.runs, c.annotated, c.variants, c.skipped,
		c.checkpoints, c.snapshots, c.entries, c.results,
	} {
		if err := reg.Register(col); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

// RecordRun implements varanno.MetricsCollector.
func (c *PrometheusCollector) RecordRun(state string, annotated int64, d time.Duration, err error) {
	c.opLatency.WithLabelValues("annotate", status(err)).Observe(d.Seconds())
	c.runs.WithLabelValues(state).Inc()
	if err == nil {
		c.annotated.Add(float64(annotated))
	}
}

// RecordBatch implements varanno.MetricsCollector.
func (c *PrometheusCollector) RecordBatch(variants, skipped int, d time.Duration, err error) {
	c.opLatency.WithLabelValues("batch", status(err)).Observe(d.Seconds())
	c.variants.Add(float64(variants))
	c.skipped.Add(float64(skipped))
}

// RecordCheckpoint implements varanno.MetricsCollector.
func (c *PrometheusCollector) RecordCheckpoint(d time.Duration, err error) {
	c.opLatency.WithLabelValues("checkpoint", status(err)).Observe(d.Seconds())
	c.checkpoints.WithLabelValues(status(err)).Inc()
}

// RecordSnapshot implements varanno.MetricsCollector.
func (c *PrometheusCollector) RecordSnapshot(entries int, d time.Duration, err error) {
	c.opLatency.WithLabelValues("snapshot_save", status(err)).Observe(d.Seconds())
	c.snapshots.WithLabelValues("save", status(err)).Inc()
	if err == nil {
		c.entries.Add(float64(entries))
	}
}

// RecordDeleteSnapshot implements varanno.MetricsCollector.
func (c *PrometheusCollector) RecordDeleteSnapshot(d time.Duration, err error) {
	c.opLatency.WithLabelValues("snapshot_delete", status(err)).Observe(d.Seconds())
	c.snapshots.WithLabelValues("delete", status(err)).Inc()
}

// RecordQuery implements varanno.MetricsCollector.
func (c *PrometheusCollector) RecordQuery(results int, d time.Duration, err error) {
	c.opLatency.WithLabelValues("query", status(err)).Observe(d.Seconds())
	c.results.Add(float64(results))
}
