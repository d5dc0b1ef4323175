// Package config loads the varanno CLI configuration from a YAML file and
// VARANNO_* environment variables.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Storage backends.
const (
	BackendMemory   = "memory"
	BackendLocal    = "local"
	BackendS3       = "s3"
	BackendMinIO    = "minio"
	BackendBadger   = "badger"
	BackendDynamoDB = "dynamodb"
)

// Config is the top-level configuration of the varanno CLI.
// Field tags use mapstructure for viper unmarshalling.
type Config struct {
	Project  string         `mapstructure:"project" validate:"required"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Metadata MetadataConfig `mapstructure:"metadata"`
	Engine   EngineConfig   `mapstructure:"engine"`
	Source   SourceConfig   `mapstructure:"source"`
	Log      LogConfig      `mapstructure:"log"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
}

// StorageConfig selects the blob store holding run segments, the run ledger
// and snapshots.
type StorageConfig struct {
	Backend   string `mapstructure:"backend" validate:"oneof=memory local s3 minio"`
	Path      string `mapstructure:"path" validate:"required_if=Backend local"`
	Bucket    string `mapstructure:"bucket" validate:"required_if=Backend s3,required_if=Backend minio"`
	Prefix    string `mapstructure:"prefix"`
	Region    string `mapstructure:"region"`
	Endpoint  string `mapstructure:"endpoint" validate:"required_if=Backend minio"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Secure    bool   `mapstructure:"secure"`
}

// MetadataConfig selects the project metadata store.
type MetadataConfig struct {
	Backend string `mapstructure:"backend" validate:"oneof=memory badger dynamodb"`
	Path    string `mapstructure:"path" validate:"required_if=Backend badger"`
	Table   string `mapstructure:"table" validate:"required_if=Backend dynamodb"`
	Region  string `mapstructure:"region"`
}

// EngineConfig holds annotation engine knobs.
type EngineConfig struct {
	BatchSize         int    `mapstructure:"batch_size" validate:"gte=1"`
	CheckpointSize    int    `mapstructure:"checkpoint_size" validate:"gte=1"`
	Compression       string `mapstructure:"compression" validate:"oneof=none lz4 zstd"`
	Codec             string `mapstructure:"codec" validate:"oneof=json go-json"`
	SnapshotCacheSize int64  `mapstructure:"snapshot_cache_size"`
	LedgerRetention   int    `mapstructure:"ledger_retention" validate:"gte=0"`
	IOLimit           int64  `mapstructure:"io_limit" validate:"gte=0"`
}

// SourceConfig points at the variant list, one "chr:pos:ref:alt" per line.
type SourceConfig struct {
	File string `mapstructure:"file"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `mapstructure:"level" validate:"oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"oneof=text json"`
}

// MetricsConfig holds metrics settings.
type MetricsConfig struct {
	// File receives the Prometheus text exposition after each command.
	File string `mapstructure:"file"`
}

// ErrInvalidConfig is returned by Validate.
var ErrInvalidConfig = errors.New("invalid config")

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the configuration.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
	}
	return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(msgs, "; "))
}

// SlogLevel returns the configured log level.
func (c LogConfig) SlogLevel() slog.Level {
	switch c.Level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
