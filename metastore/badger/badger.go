// Package badger provides a metastore.Store backed by BadgerDB.
//
// Each project record is one key, "<prefix>project/<name>", holding the
// codec encoded metadata. Updates run in read-write transactions and are
// retried on transaction conflicts.
package badger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/dgraph-io/badger/v4"

	"github.com/hupe1980/varanno/codec"
	"github.com/hupe1980/varanno/metastore"
	"github.com/hupe1980/varanno/model"
)

// Config holds configuration for a Badger metadata store.
type Config struct {
	// Path is the directory for BadgerDB files. Required unless InMemory.
	Path string

	// InMemory enables in-memory mode (no disk persistence).
	InMemory bool

	// SyncWrites enables synchronous writes for durability.
	SyncWrites bool

	// Logger receives BadgerDB's internal logs. If nil, they are dropped.
	Logger *slog.Logger

	// KeyPrefix namespaces the keys, so several stores can share a DB.
	KeyPrefix string
}

// DefaultConfig returns defaults for persistent use.
func DefaultConfig() Config {
	return Config{SyncWrites: true}
}

// InMemoryConfig returns a configuration for tests.
func InMemoryConfig() Config {
	return Config{InMemory: true}
}

// badgerLogger adapts slog.Logger to BadgerDB's Logger interface.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...any) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...any) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...any) {
	l.logger.Info(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...any) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

// Store is a metastore.Store over a BadgerDB instance.
type Store struct {
	db     *badger.DB
	prefix string
	codec  codec.Codec
	owned  bool
}

var _ metastore.Store = (*Store)(nil)

// Open opens a BadgerDB with cfg and returns a store owning it.
func Open(cfg Config) (*Store, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("badger: path is required for persistent database")
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0o750); err != nil {
			return nil, fmt.Errorf("create database directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.WithSyncWrites(cfg.SyncWrites).WithNumVersionsToKeep(1)

	if cfg.Logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: cfg.Logger})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger database: %w", err)
	}
	s := New(db, cfg.KeyPrefix)
	s.owned = true
	return s, nil
}

// New wraps an already open DB. The caller keeps ownership of db.
func New(db *badger.DB, prefix string) *Store {
	return &Store{db: db, prefix: prefix, codec: codec.Default}
}

func (s *Store) key(project string) []byte {
	return []byte(s.prefix + "project/" + project)
}

func (s *Store) read(txn *badger.Txn, project string) (model.ProjectMetadata, error) {
	item, err := txn.Get(s.key(project))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return metastore.Empty(project), nil
	}
	if err != nil {
		return model.ProjectMetadata{}, err
	}
	data, err := item.ValueCopy(nil)
	if err != nil {
		return model.ProjectMetadata{}, err
	}
	var md model.ProjectMetadata
	if err := s.codec.Unmarshal(data, &md); err != nil {
		return model.ProjectMetadata{}, fmt.Errorf("badger: decode %s: %w", project, err)
	}
	return md, nil
}

// Get implements metastore.Store.
func (s *Store) Get(ctx context.Context, project string) (model.ProjectMetadata, error) {
	if err := ctx.Err(); err != nil {
		return model.ProjectMetadata{}, err
	}
	var md model.ProjectMetadata
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		md, err = s.read(txn, project)
		return err
	})
	return md, err
}

// Update implements metastore.Store.
func (s *Store) Update(ctx context.Context, project string, fn metastore.UpdateFunc) (model.ProjectMetadata, error) {
	for attempt := 0; attempt < metastore.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return model.ProjectMetadata{}, err
		}

		var next model.ProjectMetadata
		err := s.db.Update(func(txn *badger.Txn) error {
			cur, err := s.read(txn, project)
			if err != nil {
				return err
			}
			next, err = metastore.Apply(cur, fn)
			if err != nil {
				return err
			}
			data, err := s.codec.Marshal(next)
			if err != nil {
				return err
			}
			return txn.Set(s.key(project), data)
		})
		if errors.Is(err, badger.ErrConflict) {
			continue
		}
		if err != nil {
			return model.ProjectMetadata{}, err
		}
		return next, nil
	}
	return model.ProjectMetadata{}, fmt.Errorf("%w: %s", metastore.ErrConflict, project)
}

// Close closes the database if the store opened it.
func (s *Store) Close() error {
	if !s.owned {
		return nil
	}
	return s.db.Close()
}
