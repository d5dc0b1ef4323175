package varanno

import (
	"context"
	"iter"
	"time"

	"github.com/hupe1980/varanno/blobstore"
	"github.com/hupe1980/varanno/internal/engine"
	"github.com/hupe1980/varanno/model"
	"github.com/hupe1980/varanno/query"
	"github.com/hupe1980/varanno/source"
)

type (
	// RunID identifies one annotation run.
	RunID = model.RunID
	// AnnotateRequest describes one annotation run.
	AnnotateRequest = engine.AnnotateRequest
	// RunSummary reports the outcome of a run.
	RunSummary = engine.RunSummary
	// SaveOptions configures SaveAnnotation.
	SaveOptions = engine.SaveOptions
	// ReadOptions configures GetAnnotation: projection, limit and skip.
	ReadOptions = engine.ReadOptions
	// Selector picks the current view or a saved snapshot.
	Selector = engine.Selector
	// Stats holds database statistics.
	Stats = engine.Stats
)

// Current selects the live annotation view.
func Current() Selector { return engine.Current() }

// Snapshot selects a saved snapshot by name.
func Snapshot(name string) Selector { return engine.Snapshot(name) }

// ParseSelector parses "CURRENT" or a snapshot name.
func ParseSelector(s string) (Selector, error) { return engine.ParseSelector(s) }

// DB is the versioned annotation database of one project.
type DB struct {
	mgr     *engine.Manager
	metrics MetricsCollector
	logger  *Logger
}

// Open opens the annotation database of project. Run segments, the run
// ledger and snapshots live in store; variants are read from src.
//
// Example:
//
//	src := source.NewMemory(keys...)
//	db, err := varanno.Open(ctx, "proj", blobstore.NewLocalStore("./data"), src)
func Open(ctx context.Context, project string, store blobstore.BlobStore, src source.Source, opts ...Option) (*DB, error) {
	o := applyOptions(opts)
	logger := o.logger.WithProject(project)

	engineOpts := append([]engine.Option{
		engine.WithLogger(logger.Logger),
		engine.WithMetricsObserver(metricsObserver{mc: o.metricsCollector}),
	}, o.engineOpts...)

	mgr, err := engine.Open(ctx, project, store, src, engineOpts...)
	if err != nil {
		err = translateError(err)
		logger.LogRecovery(ctx, 0, err)
		return nil, err
	}
	logger.LogRecovery(ctx, mgr.Stats().CommittedRuns, nil)

	return &DB{
		mgr:     mgr,
		metrics: o.metricsCollector,
		logger:  logger,
	}, nil
}

// Project returns the project name.
func (db *DB) Project() string { return db.mgr.Project() }

// Annotate runs an annotator over the selected variants and commits the
// result as a new run. On failure the run is rolled back and a *RunError is
// returned; the current view is unchanged.
func (db *DB) Annotate(ctx context.Context, req AnnotateRequest) (RunSummary, error) {
	s, err := db.mgr.Annotate(ctx, req)
	err = translateError(err)
	db.logger.LogAnnotate(ctx, s, err)
	return s, err
}

// SaveAnnotation copies the committed current view into the named snapshot.
func (db *DB) SaveAnnotation(ctx context.Context, name string, opts SaveOptions) (model.AnnotationMetadata, error) {
	meta, err := db.mgr.SaveAnnotation(ctx, name, opts)
	err = translateError(err)
	db.logger.LogSnapshot(ctx, "save", name, err)
	return meta, err
}

// DeleteAnnotation removes the named snapshot.
func (db *DB) DeleteAnnotation(ctx context.Context, name string) error {
	start := time.Now()
	err := translateError(db.mgr.DeleteAnnotation(ctx, name))
	db.metrics.RecordDeleteSnapshot(time.Since(start), err)
	db.logger.LogSnapshot(ctx, "delete", name, err)
	return err
}

// GetAnnotation streams the annotations of the variants matching q from the
// selected view. The sequence ends after the first error.
//
// Example:
//
//	for a, err := range db.GetAnnotation(ctx, varanno.Current(), q, varanno.ReadOptions{Limit: 10}) {
//	    if err != nil {
//	        return err
//	    }
//	    fmt.Println(a.Key, a.RunID)
//	}
func (db *DB) GetAnnotation(ctx context.Context, sel Selector, q query.Query, opts ReadOptions) iter.Seq2[model.Annotation, error] {
	return func(yield func(model.Annotation, error) bool) {
		start := time.Now()
		results := 0
		var err error
		defer func() {
			db.metrics.RecordQuery(results, time.Since(start), err)
			db.logger.LogQuery(ctx, sel.String(), results, err)
		}()

		for a, e := range db.mgr.GetAnnotation(ctx, sel, q, opts) {
			if e != nil {
				err = translateError(e)
				yield(model.Annotation{}, err)
				return
			}
			results++
			if !yield(a, nil) {
				return
			}
		}
	}
}

// RunAnnotations returns the payloads written by run id for the variants
// matching q, in natural variant order. Payloads later overwritten by other
// runs are still returned as this run wrote them.
func (db *DB) RunAnnotations(ctx context.Context, id RunID, q query.Query, opts ReadOptions) iter.Seq2[model.Annotation, error] {
	return func(yield func(model.Annotation, error) bool) {
		start := time.Now()
		results := 0
		var err error
		defer func() {
			db.metrics.RecordQuery(results, time.Since(start), err)
			db.logger.LogQuery(ctx, "run:"+string(id), results, err)
		}()

		for a, e := range db.mgr.RunAnnotations(ctx, id, q, opts) {
			if e != nil {
				err = translateError(e)
				yield(model.Annotation{}, err)
				return
			}
			results++
			if !yield(a, nil) {
				return
			}
		}
	}
}

// CountAnnotated returns the number of annotated variants matching q.
func (db *DB) CountAnnotated(ctx context.Context, sel Selector, q query.Query) (int64, error) {
	start := time.Now()
	n, err := db.mgr.CountAnnotated(ctx, sel, q)
	err = translateError(err)
	db.metrics.RecordQuery(1, time.Since(start), err)
	db.logger.LogQuery(ctx, sel.String(), int(n), err)
	return n, err
}

// Runs returns every recorded run in start order.
func (db *DB) Runs() []*model.RunRecord { return db.mgr.Runs() }

// Run returns the record of one run.
func (db *DB) Run(id RunID) (*model.RunRecord, bool) { return db.mgr.Run(id) }

// ProjectMetadata returns the current annotation and the saved snapshots of
// the project.
func (db *DB) ProjectMetadata(ctx context.Context) (model.ProjectMetadata, error) {
	return db.mgr.ProjectMetadata(ctx)
}

// Snapshots returns the saved snapshots ordered by name.
func (db *DB) Snapshots(ctx context.Context) ([]model.AnnotationMetadata, error) {
	return db.mgr.Snapshots(ctx)
}

// Stats returns database statistics.
func (db *DB) Stats() Stats { return db.mgr.Stats() }

// Close waits for in-flight operations and releases the database.
func (db *DB) Close() error {
	if db == nil {
		return nil
	}
	return db.mgr.Close()
}
