package varanno

import (
	"sync/atomic"
	"time"
)

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems; see
// observability.PrometheusCollector for a Prometheus implementation.
type MetricsCollector interface {
	// RecordRun is called when an annotation run finishes.
	// state is "committed" or "aborted", annotated the number of stored
	// annotations.
	RecordRun(state string, annotated int64, duration time.Duration, err error)

	// RecordBatch is called after each annotator batch.
	RecordBatch(variants, skipped int, duration time.Duration, err error)

	// RecordCheckpoint is called when a run segment is written.
	RecordCheckpoint(duration time.Duration, err error)

	// RecordSnapshot is called after each snapshot save.
	RecordSnapshot(entries int, duration time.Duration, err error)

	// RecordDeleteSnapshot is called after each snapshot delete.
	RecordDeleteSnapshot(duration time.Duration, err error)

	// RecordQuery is called when a read completes.
	RecordQuery(results int, duration time.Duration, err error)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
// Use this when metrics collection is not needed.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordRun(string, int64, time.Duration, error) {}
func (NoopMetricsCollector) RecordBatch(int, int, time.Duration, error)    {}
func (NoopMetricsCollector) RecordCheckpoint(time.Duration, error)         {}
func (NoopMetricsCollector) RecordSnapshot(int, time.Duration, error)      {}
func (NoopMetricsCollector) RecordDeleteSnapshot(time.Duration, error)     {}
func (NoopMetricsCollector) RecordQuery(int, time.Duration, error)         {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external dependencies.
type BasicMetricsCollector struct {
	RunCount         atomic.Int64
	RunErrors        atomic.Int64
	RunTotalNanos    atomic.Int64
	AnnotatedCount   atomic.Int64
	BatchCount       atomic.Int64
	BatchErrors      atomic.Int64
	BatchVariants    atomic.Int64
	BatchSkipped     atomic.Int64
	CheckpointCount  atomic.Int64
	CheckpointErrors atomic.Int64
	SnapshotCount    atomic.Int64
	SnapshotErrors   atomic.Int64
	SnapshotEntries  atomic.Int64
	DeleteCount      atomic.Int64
	DeleteErrors     atomic.Int64
	QueryCount       atomic.Int64
	QueryErrors      atomic.Int64
	QueryResults     atomic.Int64
	QueryTotalNanos  atomic.Int64
}

// RecordRun implements MetricsCollector.
func (b *BasicMetricsCollector) RecordRun(state string, annotated int64, duration time.Duration, err error) {
	b.RunCount.Add(1)
	b.RunTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.RunErrors.Add(1)
		return
	}
	b.AnnotatedCount.Add(annotated)
}

// RecordBatch implements MetricsCollector.
func (b *BasicMetricsCollector) RecordBatch(variants, skipped int, duration time.Duration, err error) {
	b.BatchCount.Add(1)
	b.BatchVariants.Add(int64(variants))
	b.BatchSkipped.Add(int64(skipped))
	if err != nil {
		b.BatchErrors.Add(1)
	}
}

// RecordCheckpoint implements MetricsCollector.
func (b *BasicMetricsCollector) RecordCheckpoint(duration time.Duration, err error) {
	b.CheckpointCount.Add(1)
	if err != nil {
		b.CheckpointErrors.Add(1)
	}
}

// RecordSnapshot implements MetricsCollector.
func (b *BasicMetricsCollector) RecordSnapshot(entries int, duration time.Duration, err error) {
	b.SnapshotCount.Add(1)
	if err != nil {
		b.SnapshotErrors.Add(1)
		return
	}
	b.SnapshotEntries.Add(int64(entries))
}

// RecordDeleteSnapshot implements MetricsCollector.
func (b *BasicMetricsCollector) RecordDeleteSnapshot(duration time.Duration, err error) {
	b.DeleteCount.Add(1)
	if err != nil {
		b.DeleteErrors.Add(1)
	}
}

// RecordQuery implements MetricsCollector.
func (b *BasicMetricsCollector) RecordQuery(results int, duration time.Duration, err error) {
	b.QueryCount.Add(1)
	b.QueryTotalNanos.Add(duration.Nanoseconds())
	b.QueryResults.Add(int64(results))
	if err != nil {
		b.QueryErrors.Add(1)
	}
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	return BasicMetricsStats{
		RunCount:         b.RunCount.Load(),
		RunErrors:        b.RunErrors.Load(),
		RunAvgNanos:      avg(b.RunTotalNanos.Load(), b.RunCount.Load()),
		AnnotatedCount:   b.AnnotatedCount.Load(),
		BatchCount:       b.BatchCount.Load(),
		BatchErrors:      b.BatchErrors.Load(),
		BatchVariants:    b.BatchVariants.Load(),
		BatchSkipped:     b.BatchSkipped.Load(),
		CheckpointCount:  b.CheckpointCount.Load(),
		CheckpointErrors: b.CheckpointErrors.Load(),
		SnapshotCount:    b.SnapshotCount.Load(),
		SnapshotErrors:   b.SnapshotErrors.Load(),
		SnapshotEntries:  b.SnapshotEntries.Load(),
		DeleteCount:      b.DeleteCount.Load(),
		DeleteErrors:     b.DeleteErrors.Load(),
		QueryCount:       b.QueryCount.Load(),
		QueryErrors:      b.QueryErrors.Load(),
		QueryResults:     b.QueryResults.Load(),
		QueryAvgNanos:    avg(b.QueryTotalNanos.Load(), b.QueryCount.Load()),
	}
}

func avg(total, count int64) int64 {
	if count == 0 {
		return 0
	}
	return total / count
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	RunCount         int64
	RunErrors        int64
	RunAvgNanos      int64
	AnnotatedCount   int64
	BatchCount       int64
	BatchErrors      int64
	BatchVariants    int64
	BatchSkipped     int64
	CheckpointCount  int64
	CheckpointErrors int64
	SnapshotCount    int64
	SnapshotErrors   int64
	SnapshotEntries  int64
	DeleteCount      int64
	DeleteErrors     int64
	QueryCount       int64
	QueryErrors      int64
	QueryResults     int64
	QueryAvgNanos    int64
}

// metricsObserver forwards manager events to a MetricsCollector.
type metricsObserver struct {
	mc MetricsCollector
}

func (o metricsObserver) OnBatch(duration time.Duration, variants int, skipped int, err error) {
	o.mc.RecordBatch(variants, skipped, duration, err)
}

func (o metricsObserver) OnCheckpoint(duration time.Duration, err error) {
	o.mc.RecordCheckpoint(duration, err)
}

func (o metricsObserver) OnRun(duration time.Duration, state string, annotated int64, err error) {
	o.mc.RecordRun(state, annotated, duration, err)
}

func (o metricsObserver) OnSnapshot(duration time.Duration, entries int, err error) {
	o.mc.RecordSnapshot(entries, duration, err)
}
