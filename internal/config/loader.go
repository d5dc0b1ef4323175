package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// configName is the config file name without extension.
const configName = ".varanno"

// configType is the config file format.
const configType = "yaml"

// envPrefix is the environment variable prefix for varanno settings.
const envPrefix = "VARANNO"

// envKeySeparator is the nested key separator in environment variable names.
const envKeySeparator = "_"

// Defaults.
const (
	DefaultProject           = "default"
	DefaultStorageBackend    = BackendLocal
	DefaultStoragePath       = "./varanno-data"
	DefaultMetadataBackend   = BackendBadger
	DefaultMetadataPath      = "./varanno-data/meta"
	DefaultBatchSize         = 100
	DefaultCheckpointSize    = 1000
	DefaultCompression       = "lz4"
	DefaultCodec             = "go-json"
	DefaultSnapshotCacheSize = 100_000
	DefaultLedgerRetention   = 10
	DefaultLogLevel          = "info"
	DefaultLogFormat         = "text"
)

// LoadConfig loads configuration from file, env vars, and defaults.
// If configPath is non-empty, it is used as the explicit config file path.
// Otherwise, the config file is searched in CWD and $HOME.
// Missing config file is not an error; defaults are used.
func LoadConfig(configPath string) (*Config, error) {
	v := New(configPath)

	readErr := v.ReadInConfig()
	if readErr != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(readErr, &notFound) {
			return nil, fmt.Errorf("read config: %w", readErr)
		}
	}

	return Decode(v)
}

// New returns a viper instance with defaults, env binding and the config
// file search path set up. Callers may bind flags before Decode.
func New(configPath string) *viper.Viper {
	v := viper.New()

	applyDefaults(v)

	v.SetConfigType(configType)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", envKeySeparator))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName(configName)
		v.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			v.AddConfigPath(home)
		}
	}
	return v
}

// Decode unmarshals and validates the configuration held by v.
func Decode(v *viper.Viper) (*Config, error) {
	var cfg Config

	unmarshalErr := v.Unmarshal(&cfg)
	if unmarshalErr != nil {
		return nil, fmt.Errorf("unmarshal config: %w", unmarshalErr)
	}

	validateErr := cfg.Validate()
	if validateErr != nil {
		return nil, fmt.Errorf("validate config: %w", validateErr)
	}

	return &cfg, nil
}

func applyDefaults(v *viper.Viper) {
	v.SetDefault("project", DefaultProject)

	v.SetDefault("storage.backend", DefaultStorageBackend)
	v.SetDefault("storage.path", DefaultStoragePath)
	v.SetDefault("storage.bucket", "")
	v.SetDefault("storage.prefix", "")
	v.SetDefault("storage.region", "")
	v.SetDefault("storage.endpoint", "")
	v.SetDefault("storage.access_key", "")
	v.SetDefault("storage.secret_key", "")
	v.SetDefault("storage.secure", true)

	v.SetDefault("metadata.backend", DefaultMetadataBackend)
	v.SetDefault("metadata.path", DefaultMetadataPath)
	v.SetDefault("metadata.table", "")
	v.SetDefault("metadata.region", "")

	v.SetDefault("engine.batch_size", DefaultBatchSize)
	v.SetDefault("engine.checkpoint_size", DefaultCheckpointSize)
	v.SetDefault("engine.compression", DefaultCompression)
	v.SetDefault("engine.codec", DefaultCodec)
	v.SetDefault("engine.snapshot_cache_size", DefaultSnapshotCacheSize)
	v.SetDefault("engine.ledger_retention", DefaultLedgerRetention)
	v.SetDefault("engine.io_limit", 0)

	v.SetDefault("source.file", "")

	v.SetDefault("log.level", DefaultLogLevel)
	v.SetDefault("log.format", DefaultLogFormat)

	v.SetDefault("metrics.file", "")
}
