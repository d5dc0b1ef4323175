package engine

import (
	"fmt"
	"time"

	"github.com/hupe1980/varanno/annotator"
	"github.com/hupe1980/varanno/model"
	"github.com/hupe1980/varanno/query"
)

// AnnotateRequest describes one annotation run.
type AnnotateRequest struct {
	// RunID names the run. A random id is generated when empty.
	RunID model.RunID
	// Query selects the variants to annotate. The zero value selects all.
	Query query.Query
	// Annotator configures the annotator built for this run.
	Annotator annotator.Config
	// Overwrite allows replacing annotations owned by committed runs.
	Overwrite bool
}

// RunSummary reports the outcome of a run.
type RunSummary struct {
	RunID     model.RunID
	Annotator model.Identity
	Scope     model.Scope
	State     model.RunState
	Seq       uint64
	Batches   int
	Annotated int64
	Skipped   int64
	Parts     int
	Duration  time.Duration
}

// SaveOptions configures SaveAnnotation.
type SaveOptions struct {
	// Force replaces an existing snapshot with the same name.
	Force bool
}

// ReadOptions configures GetAnnotation.
type ReadOptions struct {
	Projection query.Projection
	// Limit caps the number of results. Zero means no limit.
	Limit int
	// Skip drops the first results.
	Skip int
}

// Validate checks the projection and the pagination bounds.
func (o ReadOptions) Validate() error {
	if o.Limit < 0 || o.Skip < 0 {
		return fmt.Errorf("%w: negative limit or skip", query.ErrInvalidQuery)
	}
	return o.Projection.Validate()
}

// Selector picks the annotation set a read is served from: the current view
// or a saved snapshot.
type Selector struct {
	name string
}

// Current selects the live annotation view.
func Current() Selector { return Selector{} }

// Snapshot selects a saved snapshot.
func Snapshot(name string) Selector { return Selector{name: name} }

// ParseSelector parses "CURRENT" (or "") and snapshot names.
func ParseSelector(s string) (Selector, error) {
	if s == "" || s == model.CurrentName {
		return Current(), nil
	}
	if err := model.ValidateName(s); err != nil {
		return Selector{}, fmt.Errorf("%w: selector: %w", query.ErrInvalidQuery, err)
	}
	return Snapshot(s), nil
}

// IsCurrent reports whether the selector picks the current view.
func (s Selector) IsCurrent() bool { return s.name == "" || s.name == model.CurrentName }

// Name returns the snapshot name, or "CURRENT".
func (s Selector) Name() string {
	if s.IsCurrent() {
		return model.CurrentName
	}
	return s.name
}

// String implements fmt.Stringer.
func (s Selector) String() string { return s.Name() }
