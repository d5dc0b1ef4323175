package engine

import (
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/hupe1980/varanno/annotator"
	"github.com/hupe1980/varanno/codec"
	"github.com/hupe1980/varanno/internal/compress"
	"github.com/hupe1980/varanno/metastore"
)

const (
	// DefaultBatchSize is the number of variants passed to one annotator call.
	DefaultBatchSize = 100

	// DefaultCheckpointSize is the number of annotations per run segment.
	DefaultCheckpointSize = 1000

	// DefaultLedgerRetention is the number of ledger versions kept.
	DefaultLedgerRetention = 10

	tracerName = "github.com/hupe1980/varanno"
)

// Option defines a configuration option for the Manager.
type Option func(*Manager)

// WithLogger sets the logger for the manager.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithMetricsObserver sets the metrics observer for the manager.
func WithMetricsObserver(observer MetricsObserver) Option {
	return func(m *Manager) {
		if observer != nil {
			m.metrics = observer
		}
	}
}

// WithTracerProvider sets the tracer provider. Defaults to the global
// provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(m *Manager) {
		m.tracerProvider = tp
	}
}

// WithBatchSize sets the number of variants per annotator call.
func WithBatchSize(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.batchSize = n
		}
	}
}

// WithCheckpointSize sets the number of annotations written per run segment.
func WithCheckpointSize(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.checkpointSize = n
		}
	}
}

// WithCodec sets the codec for run segments and snapshots.
func WithCodec(c codec.Codec) Option {
	return func(m *Manager) {
		if c != nil {
			m.codec = c
		}
	}
}

// WithCompression sets the compression of run segments. Defaults to LZ4.
func WithCompression(t compress.Type) Option {
	return func(m *Manager) {
		m.compression = t
	}
}

// WithRegistry sets the annotator registry. Defaults to
// annotator.DefaultRegistry.
func WithRegistry(r *annotator.Registry) Option {
	return func(m *Manager) {
		if r != nil {
			m.registry = r
		}
	}
}

// WithMetadataStore sets the project metadata store. Defaults to an
// in-memory store.
func WithMetadataStore(s metastore.Store) Option {
	return func(m *Manager) {
		if s != nil {
			m.meta = s
		}
	}
}

// WithSnapshotCacheSize bounds the number of cached snapshot annotations.
// A negative size disables caching.
func WithSnapshotCacheSize(n int64) Option {
	return func(m *Manager) {
		m.snapshotCacheSize = n
	}
}

// WithLedgerRetention sets the number of ledger versions kept. Zero keeps
// all versions.
func WithLedgerRetention(n int) Option {
	return func(m *Manager) {
		if n >= 0 {
			m.ledgerRetention = n
		}
	}
}

// WithIOLimit throttles segment writes to bytesPerSec. Zero is unlimited.
func WithIOLimit(bytesPerSec int64) Option {
	return func(m *Manager) {
		m.ioLimit = bytesPerSec
	}
}

// WithClock overrides the clock used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}
