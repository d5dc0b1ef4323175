package engine

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/hupe1980/varanno/annotator"
	"github.com/hupe1980/varanno/blobstore"
	"github.com/hupe1980/varanno/codec"
	"github.com/hupe1980/varanno/internal/compress"
	"github.com/hupe1980/varanno/internal/ledger"
	"github.com/hupe1980/varanno/internal/resource"
	"github.com/hupe1980/varanno/internal/snapshot"
	"github.com/hupe1980/varanno/internal/store"
	"github.com/hupe1980/varanno/metastore"
	"github.com/hupe1980/varanno/model"
	"github.com/hupe1980/varanno/source"
)

// Manager is the annotation manager of one project.
type Manager struct {
	project string
	blobs   blobstore.BlobStore
	src     source.Source

	meta              metastore.Store
	registry          *annotator.Registry
	codec             codec.Codec
	compression       compress.Type
	batchSize         int
	checkpointSize    int
	snapshotCacheSize int64
	ledgerRetention   int
	ioLimit           int64
	now               func() time.Time

	store     *store.Store
	ledger    *ledger.Ledger
	snapshots *snapshot.Directory
	resources *resource.Controller

	// commitMu orders run commits against snapshot copies.
	commitMu sync.RWMutex

	lifeMu sync.RWMutex
	closed bool
	wg     sync.WaitGroup

	metrics        MetricsObserver
	logger         *slog.Logger
	tracerProvider trace.TracerProvider
	tracer         trace.Tracer
}

// Open opens the manager of project over blobs. Runs interrupted by a crash
// are recorded as aborted and their segments deleted; committed runs are
// replayed into the store.
func Open(ctx context.Context, project string, blobs blobstore.BlobStore, src source.Source, opts ...Option) (*Manager, error) {
	if err := model.ValidateName(project); err != nil {
		return nil, fmt.Errorf("project: %w", err)
	}
	if blobs == nil || src == nil {
		return nil, fmt.Errorf("engine: blob store and variant source are required")
	}

	m := &Manager{
		project:         project,
		blobs:           blobs,
		src:             src,
		registry:        annotator.DefaultRegistry(),
		codec:           codec.Default,
		compression:     compress.LZ4,
		batchSize:       DefaultBatchSize,
		checkpointSize:  DefaultCheckpointSize,
		ledgerRetention: DefaultLedgerRetention,
		now:             time.Now,
		metrics:         &NoopMetricsObserver{},
		logger:          slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.meta == nil {
		m.meta = metastore.NewMemory()
	}
	if m.tracerProvider == nil {
		m.tracerProvider = otel.GetTracerProvider()
	}
	m.tracer = m.tracerProvider.Tracer(tracerName)
	m.logger = m.logger.With("project", project)

	m.resources = resource.NewController(resource.Config{
		MaxConcurrentRuns:  1,
		IOLimitBytesPerSec: m.ioLimit,
	})
	m.store = store.New(blobs, store.Options{
		Codec:       m.codec,
		Compression: m.compression,
		Resources:   m.resources,
	})
	m.snapshots = snapshot.New(blobs, snapshot.Options{
		Codec:     m.codec,
		CacheSize: m.snapshotCacheSize,
		Now:       m.now,
	})

	led, err := ledger.Open(ctx, blobs, ledger.Options{Retention: m.ledgerRetention, Now: m.now, Logger: m.logger})
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}
	m.ledger = led

	if err := m.recover(ctx); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Manager) recover(ctx context.Context) error {
	interrupted, err := m.ledger.RecoverInterrupted(ctx)
	if err != nil {
		return fmt.Errorf("recover runs: %w", err)
	}
	for _, id := range interrupted {
		if err := m.store.DeleteSegments(ctx, id); err != nil {
			return fmt.Errorf("recover run %s: %w", id, err)
		}
		m.logger.Warn("aborted interrupted run", "run", id)
	}

	committed := m.ledger.Committed()
	if err := m.store.Load(ctx, committed); err != nil {
		return fmt.Errorf("load committed runs: %w", err)
	}
	m.logger.Info("opened", "committed_runs", len(committed), "interrupted_runs", len(interrupted))
	return nil
}

// enter registers an in-flight operation. The returned func must be called
// when the operation completes.
func (m *Manager) enter() (func(), error) {
	m.lifeMu.RLock()
	defer m.lifeMu.RUnlock()
	if m.closed {
		return nil, ErrClosed
	}
	m.wg.Add(1)
	return m.wg.Done, nil
}

// Close waits for in-flight operations and closes the manager.
func (m *Manager) Close() error {
	m.lifeMu.Lock()
	if m.closed {
		m.lifeMu.Unlock()
		return ErrClosed
	}
	m.closed = true
	m.lifeMu.Unlock()

	m.wg.Wait()
	m.logger.Debug("closed")
	return nil
}

// Project returns the project name.
func (m *Manager) Project() string { return m.project }

// Runs returns copies of all run records in start order.
func (m *Manager) Runs() []*model.RunRecord {
	return m.ledger.Runs()
}

// Run returns a copy of the run record.
func (m *Manager) Run(id model.RunID) (*model.RunRecord, bool) {
	return m.ledger.Get(id)
}

// ProjectMetadata returns the project annotation metadata.
func (m *Manager) ProjectMetadata(ctx context.Context) (model.ProjectMetadata, error) {
	done, err := m.enter()
	if err != nil {
		return model.ProjectMetadata{}, err
	}
	defer done()
	return m.meta.Get(ctx, m.project)
}

// Snapshots returns the saved snapshots ordered by name.
func (m *Manager) Snapshots(ctx context.Context) ([]model.AnnotationMetadata, error) {
	md, err := m.ProjectMetadata(ctx)
	if err != nil {
		return nil, err
	}
	out := slices.Clone(md.Saved)
	slices.SortFunc(out, func(a, b model.AnnotationMetadata) int { return cmp.Compare(a.Name, b.Name) })
	return out, nil
}

// Stats holds manager statistics.
type Stats struct {
	Store          store.Stats
	Runs           int
	CommittedRuns  int
	LedgerVersion  uint64
	ActiveRuns     int64
	BytesWritten   int64
	SnapshotHits   int64
	SnapshotMisses int64
}

// Stats returns the current manager statistics.
func (m *Manager) Stats() Stats {
	hits, misses := m.snapshots.CacheStats()
	return Stats{
		Store:          m.store.Stats(),
		Runs:           len(m.ledger.Runs()),
		CommittedRuns:  len(m.ledger.Committed()),
		LedgerVersion:  m.ledger.Version(),
		ActiveRuns:     m.resources.ActiveRuns(),
		BytesWritten:   m.resources.IOBytes(),
		SnapshotHits:   hits,
		SnapshotMisses: misses,
	}
}
