package engine

import "time"

// MetricsObserver defines the interface for observing manager events.
type MetricsObserver interface {
	// OnBatch is called after every annotator batch.
	OnBatch(duration time.Duration, variants int, skipped int, err error)

	// OnCheckpoint is called when a run segment is written.
	OnCheckpoint(duration time.Duration, err error)

	// OnRun is called when a run finishes.
	OnRun(duration time.Duration, state string, annotated int64, err error)

	// OnSnapshot is called when a snapshot is created.
	OnSnapshot(duration time.Duration, entries int, err error)
}

// NoopMetricsObserver is a no-op implementation of MetricsObserver.
type NoopMetricsObserver struct{}

func (o *NoopMetricsObserver) OnBatch(duration time.Duration, variants int, skipped int, err error) {}
func (o *NoopMetricsObserver) OnCheckpoint(duration time.Duration, err error)                       {}
func (o *NoopMetricsObserver) OnRun(duration time.Duration, state string, annotated int64, err error) {
}
func (o *NoopMetricsObserver) OnSnapshot(duration time.Duration, entries int, err error) {}
