package engine

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/hupe1980/varanno/model"
	"github.com/hupe1980/varanno/query"
)

// SaveAnnotation copies the committed current view into a new snapshot and
// records it in the project metadata. Runs cannot commit while the copy is
// taken. A snapshot saved before any run is valid and empty.
func (m *Manager) SaveAnnotation(ctx context.Context, name string, opts SaveOptions) (model.AnnotationMetadata, error) {
	done, err := m.enter()
	if err != nil {
		return model.AnnotationMetadata{}, err
	}
	defer done()

	if err := model.ValidateName(name); err != nil {
		return model.AnnotationMetadata{}, fmt.Errorf("snapshot name: %w", err)
	}

	ctx, span := m.tracer.Start(ctx, "varanno.snapshot.save", trace.WithAttributes(
		attribute.String("varanno.project", m.project),
		attribute.String("varanno.snapshot", name),
		attribute.Bool("varanno.force", opts.Force),
	))
	defer span.End()

	meta, entries, err := m.saveAnnotation(ctx, name, opts)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return model.AnnotationMetadata{}, err
	}
	span.SetAttributes(attribute.Int("varanno.entries", entries))
	m.logger.Info("snapshot saved", "snapshot", name, "entries", entries, "run", meta.RunID)
	return meta, nil
}

func (m *Manager) saveAnnotation(ctx context.Context, name string, opts SaveOptions) (model.AnnotationMetadata, int, error) {
	md, err := m.meta.Get(ctx, m.project)
	if err != nil {
		return model.AnnotationMetadata{}, 0, fmt.Errorf("project metadata: %w", err)
	}
	meta := model.AnnotationMetadata{
		Name:      name,
		RunID:     md.Current.RunID,
		Annotator: md.Current.Annotator,
		CreatedAt: m.now().UTC(),
	}

	start := time.Now()
	m.commitMu.RLock()
	snap, err := m.snapshots.Create(ctx, meta, m.store.ScanCommitted(nil, query.Projection{}), opts.Force)
	m.commitMu.RUnlock()
	if err != nil {
		m.metrics.OnSnapshot(time.Since(start), 0, err)
		return model.AnnotationMetadata{}, 0, err
	}
	m.metrics.OnSnapshot(time.Since(start), snap.Len(), nil)

	meta = snap.Metadata()
	_, err = m.meta.Update(ctx, m.project, func(md *model.ProjectMetadata) error {
		md.PutSaved(meta)
		return nil
	})
	if err != nil {
		if !opts.Force {
			if derr := m.snapshots.Delete(context.WithoutCancel(ctx), name); derr != nil {
				m.logger.Error("removing unrecorded snapshot failed", "snapshot", name, "error", derr)
			}
		}
		return model.AnnotationMetadata{}, 0, fmt.Errorf("record snapshot %s: %w", name, err)
	}
	return meta, snap.Len(), nil
}

// DeleteAnnotation removes a saved snapshot. The current view, the run
// ledger and other snapshots are not touched.
func (m *Manager) DeleteAnnotation(ctx context.Context, name string) error {
	done, err := m.enter()
	if err != nil {
		return err
	}
	defer done()

	if err := model.ValidateName(name); err != nil {
		return fmt.Errorf("snapshot name: %w", err)
	}

	ctx, span := m.tracer.Start(ctx, "varanno.snapshot.delete", trace.WithAttributes(
		attribute.String("varanno.project", m.project),
		attribute.String("varanno.snapshot", name),
	))
	defer span.End()

	if err := m.snapshots.Delete(ctx, name); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	if _, err := m.meta.Update(ctx, m.project, func(md *model.ProjectMetadata) error {
		md.RemoveSaved(name)
		return nil
	}); err != nil {
		return fmt.Errorf("unrecord snapshot %s: %w", name, err)
	}
	m.logger.Info("snapshot deleted", "snapshot", name)
	return nil
}
