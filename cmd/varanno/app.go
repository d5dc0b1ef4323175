package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/viper"

	"github.com/hupe1980/varanno"
	"github.com/hupe1980/varanno/blobstore"
	miniostore "github.com/hupe1980/varanno/blobstore/minio"
	s3store "github.com/hupe1980/varanno/blobstore/s3"
	"github.com/hupe1980/varanno/codec"
	"github.com/hupe1980/varanno/internal/config"
	"github.com/hupe1980/varanno/metastore"
	badgerstore "github.com/hupe1980/varanno/metastore/badger"
	dynamostore "github.com/hupe1980/varanno/metastore/dynamodb"
	"github.com/hupe1980/varanno/observability"
	"github.com/hupe1980/varanno/source"
)

// app holds the global flags and the resources opened for one command.
type app struct {
	cfgFile     string
	project     string
	metricsFile string

	registry *prometheus.Registry
	closers  []io.Closer
}

func (a *app) loadConfig() (*config.Config, error) {
	v := config.New(a.cfgFile)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}
	if a.project != "" {
		v.Set("project", a.project)
	}
	if a.metricsFile != "" {
		v.Set("metrics.file", a.metricsFile)
	}
	return config.Decode(v)
}

// open loads the configuration and opens the database. The returned function
// closes every resource and writes the metrics file.
func (a *app) open(ctx context.Context, stderr io.Writer) (*varanno.DB, func() error, error) {
	cfg, err := a.loadConfig()
	if err != nil {
		return nil, nil, err
	}

	logger := newLogger(cfg.Log, stderr)

	blobs, err := a.openBlobStore(ctx, cfg.Storage)
	if err != nil {
		return nil, nil, a.closeAll(err)
	}
	meta, err := a.openMetaStore(ctx, cfg.Metadata, logger.Logger)
	if err != nil {
		return nil, nil, a.closeAll(err)
	}
	src, err := openSource(cfg.Source)
	if err != nil {
		return nil, nil, a.closeAll(err)
	}

	a.registry = prometheus.NewRegistry()
	collector, err := observability.NewPrometheusCollector(a.registry)
	if err != nil {
		return nil, nil, a.closeAll(err)
	}

	opts, err := engineOptions(cfg.Engine)
	if err != nil {
		return nil, nil, a.closeAll(err)
	}
	opts = append(opts,
		varanno.WithLogger(logger),
		varanno.WithMetricsCollector(collector),
		varanno.WithMetadataStore(meta),
	)

	db, err := varanno.Open(ctx, cfg.Project, blobs, src, opts...)
	if err != nil {
		return nil, nil, a.closeAll(err)
	}

	metricsFile := cfg.Metrics.File
	return db, func() error {
		err := db.Close()
		if metricsFile != "" {
			if werr := prometheus.WriteToTextfile(metricsFile, a.registry); werr != nil {
				err = errors.Join(err, fmt.Errorf("write metrics: %w", werr))
			}
		}
		return a.closeAll(err)
	}, nil
}

func (a *app) closeAll(err error) error {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if cerr := a.closers[i].Close(); cerr != nil {
			err = errors.Join(err, cerr)
		}
	}
	a.closers = nil
	return err
}

func newLogger(cfg config.LogConfig, w io.Writer) *varanno.Logger {
	opts := &slog.HandlerOptions{Level: cfg.SlogLevel()}
	if cfg.Format == "json" {
		return varanno.NewLogger(slog.NewJSONHandler(w, opts))
	}
	return varanno.NewLogger(slog.NewTextHandler(w, opts))
}

func (a *app) openBlobStore(ctx context.Context, cfg config.StorageConfig) (blobstore.BlobStore, error) {
	switch cfg.Backend {
	case config.BackendMemory:
		return blobstore.NewMemoryStore(), nil
	case config.BackendLocal:
		if err := os.MkdirAll(cfg.Path, 0o750); err != nil {
			return nil, fmt.Errorf("create storage directory: %w", err)
		}
		return blobstore.NewLocalStore(cfg.Path), nil
	case config.BackendS3:
		var opts []s3store.Option
		if cfg.Prefix != "" {
			opts = append(opts, s3store.WithPrefix(cfg.Prefix))
		}
		if cfg.Region != "" {
			opts = append(opts, s3store.WithRegion(cfg.Region))
		}
		if cfg.Endpoint != "" {
			opts = append(opts, s3store.WithEndpoint(cfg.Endpoint))
		}
		return s3store.New(ctx, cfg.Bucket, opts...)
	case config.BackendMinIO:
		return miniostore.Dial(ctx, miniostore.Config{
			Endpoint:  cfg.Endpoint,
			AccessKey: cfg.AccessKey,
			SecretKey: cfg.SecretKey,
			Secure:    cfg.Secure,
			Region:    cfg.Region,
			Bucket:    cfg.Bucket,
			Prefix:    cfg.Prefix,
		})
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}

func (a *app) openMetaStore(ctx context.Context, cfg config.MetadataConfig, logger *slog.Logger) (metastore.Store, error) {
	switch cfg.Backend {
	case config.BackendMemory:
		return metastore.NewMemory(), nil
	case config.BackendBadger:
		s, err := badgerstore.Open(badgerstore.Config{
			Path:       cfg.Path,
			SyncWrites: true,
			Logger:     logger.With("component", "badger"),
		})
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, s)
		return s, nil
	case config.BackendDynamoDB:
		var opts []func(*awsconfig.LoadOptions) error
		if cfg.Region != "" {
			opts = append(opts, awsconfig.WithRegion(cfg.Region))
		}
		return dynamostore.New(ctx, cfg.Table, opts...)
	default:
		return nil, fmt.Errorf("unknown metadata backend %q", cfg.Backend)
	}
}

func openSource(cfg config.SourceConfig) (*source.Memory, error) {
	src := source.NewMemory()
	if cfg.File == "" {
		return src, nil
	}
	f, err := os.Open(cfg.File)
	if err != nil {
		return nil, fmt.Errorf("open variant source: %w", err)
	}
	defer f.Close()

	keys, err := source.ReadVariants(f)
	if err != nil {
		return nil, fmt.Errorf("read variant source %s: %w", cfg.File, err)
	}
	src.Add(keys...)
	return src, nil
}

func engineOptions(cfg config.EngineConfig) ([]varanno.Option, error) {
	c, err := codec.MustByName(cfg.Codec)
	if err != nil {
		return nil, err
	}

	var compression varanno.Compression
	switch cfg.Compression {
	case "none":
		compression = varanno.CompressionNone
	case "zstd":
		compression = varanno.CompressionZSTD
	default:
		compression = varanno.CompressionLZ4
	}

	opts := []varanno.Option{
		varanno.WithBatchSize(cfg.BatchSize),
		varanno.WithCheckpointSize(cfg.CheckpointSize),
		varanno.WithCodec(c),
		varanno.WithCompression(compression),
		varanno.WithSnapshotCacheSize(cfg.SnapshotCacheSize),
		varanno.WithLedgerRetention(cfg.LedgerRetention),
	}
	if cfg.IOLimit > 0 {
		opts = append(opts, varanno.WithIOLimit(cfg.IOLimit))
	}
	return opts, nil
}
