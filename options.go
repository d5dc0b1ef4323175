package varanno

import (
	"log/slog"

	"go.opentelemetry.io/otel/trace"

	"github.com/hupe1980/varanno/annotator"
	"github.com/hupe1980/varanno/codec"
	"github.com/hupe1980/varanno/internal/compress"
	"github.com/hupe1980/varanno/internal/engine"
	"github.com/hupe1980/varanno/metastore"
)

// Compression selects the block compression of run segments.
type Compression = compress.Type

const (
	CompressionNone = compress.None
	CompressionLZ4  = compress.LZ4
	CompressionZSTD = compress.ZSTD
)

type options struct {
	metricsCollector MetricsCollector
	logger           *Logger
	engineOpts       []engine.Option
}

// Option configures Open.
type Option func(*options)

// WithMetricsCollector configures a metrics collector for monitoring operations.
// Pass nil to disable metrics collection.
//
// Example with BasicMetricsCollector:
//
//	metrics := &varanno.BasicMetricsCollector{}
//	db, _ := varanno.Open(ctx, "proj", store, src, varanno.WithMetricsCollector(metrics))
//	// ... annotate ...
//	stats := metrics.GetStats()
//	fmt.Printf("Runs: %d, annotated: %d\n", stats.RunCount, stats.AnnotatedCount)
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		if mc == nil {
			mc = NoopMetricsCollector{}
		}
		o.metricsCollector = mc
	}
}

// WithLogger configures structured logging for operations.
// Pass nil to disable logging.
//
// Example with JSON logging:
//
//	logger := varanno.NewJSONLogger(slog.LevelInfo)
//	db, _ := varanno.Open(ctx, "proj", store, src, varanno.WithLogger(logger))
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		if logger == nil {
			logger = NoopLogger()
		}
		o.logger = logger
	}
}

// WithLogLevel creates a text logger with the specified level and sets it.
// Convenience wrapper for WithLogger(NewTextLogger(level)).
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}

// WithBatchSize sets the number of variants passed to one annotator call.
// Defaults to 100.
func WithBatchSize(n int) Option {
	return withEngine(engine.WithBatchSize(n))
}

// WithCheckpointSize sets the number of annotations written per run segment.
// Defaults to 1000.
func WithCheckpointSize(n int) Option {
	return withEngine(engine.WithCheckpointSize(n))
}

// WithCodec configures the codec of run segments and snapshots.
//
// If nil is passed, codec.Default is used.
func WithCodec(c codec.Codec) Option {
	return withEngine(engine.WithCodec(c))
}

// WithCompression sets the compression of run segments. Defaults to LZ4.
func WithCompression(c Compression) Option {
	return withEngine(engine.WithCompression(c))
}

// WithMetadataStore sets the project metadata store. Defaults to an
// in-memory store, which does not survive the process.
func WithMetadataStore(s metastore.Store) Option {
	return withEngine(engine.WithMetadataStore(s))
}

// WithRegistry sets the annotator registry. Defaults to the built-in
// engines.
func WithRegistry(r *annotator.Registry) Option {
	return withEngine(engine.WithRegistry(r))
}

// WithTracerProvider sets the OpenTelemetry tracer provider. Defaults to the
// global provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return withEngine(engine.WithTracerProvider(tp))
}

// WithSnapshotCacheSize bounds the number of snapshot annotations kept in
// memory. A negative size disables the cache.
func WithSnapshotCacheSize(n int64) Option {
	return withEngine(engine.WithSnapshotCacheSize(n))
}

// WithLedgerRetention sets the number of run ledger versions kept.
// Zero keeps all versions.
func WithLedgerRetention(n int) Option {
	return withEngine(engine.WithLedgerRetention(n))
}

// WithIOLimit throttles segment writes to bytesPerSec.
func WithIOLimit(bytesPerSec int64) Option {
	return withEngine(engine.WithIOLimit(bytesPerSec))
}

func withEngine(opt engine.Option) Option {
	return func(o *options) {
		o.engineOpts = append(o.engineOpts, opt)
	}
}

func applyOptions(optFns []Option) options {
	o := options{
		metricsCollector: NoopMetricsCollector{},
		logger:           NoopLogger(),
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	return o
}
