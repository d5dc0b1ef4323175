package engine

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/varanno/annotator"
	"github.com/hupe1980/varanno/internal/ledger"
	"github.com/hupe1980/varanno/model"
	"github.com/hupe1980/varanno/query"
)

type progress struct {
	batches   int
	annotated int64
	skipped   int64
}

// Annotate runs the configured annotator over the variants selected by
// req.Query and commits the result as a new run.
//
// Validation failures are returned before anything is written. A run that
// fails or is canceled after it started is rolled back completely and
// reported as a *RunError; the current view and the project metadata are
// left as they were.
func (m *Manager) Annotate(ctx context.Context, req AnnotateRequest) (RunSummary, error) {
	done, err := m.enter()
	if err != nil {
		return RunSummary{}, err
	}
	defer done()

	if req.RunID == "" {
		req.RunID = model.RunID(uuid.NewString())
	}
	if err := model.ValidateName(string(req.RunID)); err != nil {
		return RunSummary{}, fmt.Errorf("run id: %w", err)
	}
	if err := req.Query.Validate(); err != nil {
		return RunSummary{}, err
	}
	ann, err := m.registry.Build(req.Annotator)
	if err != nil {
		return RunSummary{}, err
	}

	scope := model.ScopeRegionSet
	if req.Query.IsAll() {
		scope = model.ScopeFull
	}

	ctx, span := m.tracer.Start(ctx, "varanno.annotate", trace.WithAttributes(
		attribute.String("varanno.project", m.project),
		attribute.String("varanno.run_id", string(req.RunID)),
		attribute.String("varanno.annotator", ann.Identity().String()),
		attribute.String("varanno.scope", scope.String()),
		attribute.Bool("varanno.overwrite", req.Overwrite),
	))
	defer span.End()

	summary, err := m.annotate(ctx, req, ann, scope)
	span.SetAttributes(
		attribute.Int("varanno.batches", summary.Batches),
		attribute.Int64("varanno.annotated", summary.Annotated),
		attribute.Int64("varanno.skipped", summary.Skipped),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return summary, err
}

func (m *Manager) annotate(ctx context.Context, req AnnotateRequest, ann annotator.Annotator, scope model.Scope) (RunSummary, error) {
	if err := m.resources.AcquireRun(ctx); err != nil {
		return RunSummary{}, err
	}
	defer m.resources.ReleaseRun()

	if _, ok := m.ledger.Get(req.RunID); ok {
		return RunSummary{}, fmt.Errorf("%w: %s", ledger.ErrDuplicateRunID, req.RunID)
	}
	identity := ann.Identity()
	if !req.Overwrite {
		if err := m.checkOverwrite(ctx, req.Query, identity); err != nil {
			return RunSummary{}, err
		}
	}

	started := time.Now()
	rec, err := m.ledger.Begin(ctx, model.RunRecord{
		ID:        req.RunID,
		Annotator: identity,
		Scope:     scope,
		Regions:   req.Query.Describe(),
		Overwrite: req.Overwrite,
		StartedAt: m.now().UTC(),
	})
	if err != nil {
		return RunSummary{}, err
	}
	if err := m.store.Begin(rec.ID); err != nil {
		return m.abort(ctx, rec, progress{}, started, err)
	}
	m.logger.Info("run started", "run", rec.ID, "annotator", identity.String(), "scope", scope.String(), "overwrite", req.Overwrite)

	p, err := m.execute(ctx, rec.ID, ann, req.Query)
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		return m.abort(ctx, rec, p, started, err)
	}
	return m.commit(ctx, rec, p, started)
}

// checkOverwrite rejects a run without overwrite that would change the
// project's annotator or replace annotations owned by a committed run.
func (m *Manager) checkOverwrite(ctx context.Context, q query.Query, identity model.Identity) error {
	md, err := m.meta.Get(ctx, m.project)
	if err != nil {
		return fmt.Errorf("project metadata: %w", err)
	}
	if cur := md.Current.Annotator; !cur.IsZero() && cur != identity {
		if cur.Base() == identity.Base() {
			return fmt.Errorf("%w: private sources have changed: existing annotation calculated with private sources %v, attempting to annotate with %v",
				ErrAnnotatorChanged, cur.ExtensionList(), identity.ExtensionList())
		}
		if cur.Name == identity.Name && cur.Version == identity.Version && cur.DataRelease != identity.DataRelease {
			return fmt.Errorf("%w: data release has changed: existing annotation calculated with data release %d, attempting to annotate with %d",
				ErrAnnotatorChanged, cur.DataRelease, identity.DataRelease)
		}
		return fmt.Errorf("%w: using a different annotator: existing annotation calculated with %s, attempting to annotate with %s",
			ErrAnnotatorChanged, cur, identity)
	}

	for key, err := range m.src.Variants(ctx, q) {
		if err != nil {
			return fmt.Errorf("variant source: %w", err)
		}
		if owner, ok := m.store.Owner(key); ok {
			return fmt.Errorf("%w: variant %s is annotated by run %s", ErrOverwriteRequired, key, owner)
		}
	}
	return nil
}

// execute streams the source in batches to the annotator. A producer
// goroutine reads the source while the consumer annotates; cancellation is
// observed between batches.
func (m *Manager) execute(ctx context.Context, id model.RunID, ann annotator.Annotator, q query.Query) (progress, error) {
	var p progress
	batches := make(chan []model.VariantKey, 1)
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer close(batches)

		batch := make([]model.VariantKey, 0, m.batchSize)
		send := func() error {
			select {
			case batches <- batch:
				batch = make([]model.VariantKey, 0, m.batchSize)
				return nil
			case <-gctx.Done():
				return gctx.Err()
			}
		}
		for key, err := range m.src.Variants(gctx, q) {
			if err != nil {
				return fmt.Errorf("variant source: %w", err)
			}
			batch = append(batch, key)
			if len(batch) == m.batchSize {
				if err := send(); err != nil {
					return err
				}
			}
		}
		if len(batch) > 0 {
			return send()
		}
		return nil
	})

	g.Go(func() error {
		unflushed := 0
		for batch := range batches {
			if err := gctx.Err(); err != nil {
				return err
			}
			annotated, skipped, err := m.processBatch(gctx, id, ann, p.batches, batch)
			if err != nil {
				return err
			}
			p.batches++
			p.annotated += annotated
			p.skipped += skipped

			unflushed += int(annotated)
			if unflushed >= m.checkpointSize {
				if err := m.checkpoint(gctx, id); err != nil {
					return err
				}
				unflushed = 0
			}
		}
		if err := gctx.Err(); err != nil {
			return err
		}
		return m.checkpoint(gctx, id)
	})

	err := g.Wait()
	return p, err
}

func (m *Manager) processBatch(ctx context.Context, id model.RunID, ann annotator.Annotator, index int, batch []model.VariantKey) (annotated, skipped int64, err error) {
	ctx, span := m.tracer.Start(ctx, "varanno.annotate.batch", trace.WithAttributes(
		attribute.Int("varanno.batch", index),
		attribute.Int("varanno.batch_size", len(batch)),
	))
	start := time.Now()
	defer func() {
		m.metrics.OnBatch(time.Since(start), len(batch), int(skipped), err)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	identity := ann.Identity()
	payloads, err := ann.Annotate(ctx, batch)
	if err == nil {
		err = annotator.Check(ann, batch, payloads)
	}
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
			return 0, 0, ctxErr
		}
		return 0, 0, annotator.Wrap(identity.Name, err)
	}

	for i, p := range payloads {
		if p == nil {
			skipped++
			continue
		}
		stamp(p, batch[i], id, identity)
		if err := m.store.Put(id, batch[i], p); err != nil {
			return annotated, skipped, err
		}
		annotated++
	}
	m.logger.Debug("batch annotated", "run", id, "batch", index, "variants", len(batch), "skipped", skipped)
	return annotated, skipped, nil
}

// stamp sets the variant key and the provenance attributes of a payload.
func stamp(p *model.Payload, key model.VariantKey, id model.RunID, identity model.Identity) {
	p.SetKey(key)
	p.SetAttribute(model.ProvenanceGroup, model.AttrAnnotationID, string(id))
	p.SetAttribute(model.ProvenanceGroup, model.AttrAnnotator, identity.Name)
	p.SetAttribute(model.ProvenanceGroup, model.AttrAnnotatorVersion, identity.Version)
	if identity.DataRelease > 0 {
		p.SetAttribute(model.ProvenanceGroup, model.AttrAnnotatorDataRel, strconv.Itoa(identity.DataRelease))
	}
	if identity.Extensions != "" {
		p.SetAttribute(model.ProvenanceGroup, model.AttrExtensions, identity.Extensions)
	}
}

func (m *Manager) checkpoint(ctx context.Context, id model.RunID) error {
	start := time.Now()
	name, err := m.store.Checkpoint(ctx, id)
	if err == nil && name == "" {
		return nil
	}
	m.metrics.OnCheckpoint(time.Since(start), err)
	if err != nil {
		return fmt.Errorf("checkpoint: %w", err)
	}
	m.logger.Debug("checkpoint written", "run", id, "segment", name)
	return nil
}

func (m *Manager) commit(ctx context.Context, rec *model.RunRecord, p progress, started time.Time) (RunSummary, error) {
	cctx := context.WithoutCancel(ctx)
	parts := m.store.Parts(rec.ID)

	m.commitMu.Lock()
	committed, err := m.ledger.Commit(cctx, rec.ID, ledger.Result{
		Batches:   p.batches,
		Annotated: p.annotated,
		Skipped:   p.skipped,
		Parts:     parts,
	})
	if err != nil {
		m.commitMu.Unlock()
		return m.abort(ctx, rec, p, started, fmt.Errorf("commit: %w", err))
	}
	err = m.store.Commit(rec.ID, committed.Seq)
	m.commitMu.Unlock()

	summary := m.summary(committed, p, started)
	summary.Parts = len(parts)
	if err != nil {
		m.metrics.OnRun(summary.Duration, summary.State.String(), summary.Annotated, err)
		return summary, fmt.Errorf("commit: %w", err)
	}

	if committed.Scope == model.ScopeFull {
		_, err = m.meta.Update(cctx, m.project, func(md *model.ProjectMetadata) error {
			md.Current = model.AnnotationMetadata{
				Name:      model.CurrentName,
				RunID:     committed.ID,
				Annotator: committed.Annotator,
				CreatedAt: committed.FinishedAt,
			}
			return nil
		})
		if err != nil {
			err = fmt.Errorf("run %s committed, project metadata not updated: %w", committed.ID, err)
		}
	}

	m.metrics.OnRun(summary.Duration, summary.State.String(), summary.Annotated, err)
	m.logger.Info("run committed",
		"run", committed.ID,
		"seq", committed.Seq,
		"batches", p.batches,
		"annotated", p.annotated,
		"skipped", p.skipped,
		"segments", len(parts),
		"duration", summary.Duration,
	)
	return summary, err
}

// abort rolls back every write of the run and records it as aborted.
// Cleanup runs even when ctx is canceled.
func (m *Manager) abort(ctx context.Context, rec *model.RunRecord, p progress, started time.Time, cause error) (RunSummary, error) {
	cctx := context.WithoutCancel(ctx)
	if err := m.store.Rollback(cctx, rec.ID); err != nil {
		m.logger.Error("rollback failed", "run", rec.ID, "error", err)
	}

	aborted, err := m.ledger.Abort(cctx, rec.ID, cause.Error(), ledger.Result{
		Batches:   p.batches,
		Annotated: p.annotated,
		Skipped:   p.skipped,
	})
	if err != nil {
		m.logger.Error("recording aborted run failed", "run", rec.ID, "error", err)
		aborted = rec.Clone()
		aborted.State = model.RunAborted
	}

	summary := m.summary(aborted, p, started)
	m.metrics.OnRun(summary.Duration, summary.State.String(), summary.Annotated, cause)
	m.logger.Warn("run aborted", "run", rec.ID, "batches", p.batches, "error", cause)
	return summary, &RunError{RunID: rec.ID, BatchesCompleted: p.batches, Err: cause}
}

func (m *Manager) summary(rec *model.RunRecord, p progress, started time.Time) RunSummary {
	return RunSummary{
		RunID:     rec.ID,
		Annotator: rec.Annotator,
		Scope:     rec.Scope,
		State:     rec.State,
		Seq:       rec.Seq,
		Batches:   p.batches,
		Annotated: p.annotated,
		Skipped:   p.skipped,
		Duration:  time.Since(started),
	}
}
