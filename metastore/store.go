package metastore

import (
	"context"
	"errors"

	"github.com/hupe1980/varanno/model"
)

// ErrConflict is returned when an update keeps losing against concurrent
// writers.
var ErrConflict = errors.New("metastore: concurrent modification")

// MaxRetries bounds the optimistic retries of persistent implementations.
const MaxRetries = 10

// UpdateFunc mutates a copy of the project metadata. Returning an error
// aborts the update without writing.
type UpdateFunc func(md *model.ProjectMetadata) error

// Store persists ProjectMetadata records keyed by project.
type Store interface {
	// Get returns the metadata of project. An unknown project yields an empty
	// record with Revision 0.
	Get(ctx context.Context, project string) (model.ProjectMetadata, error)
	// Update atomically applies fn to the stored record, increments its
	// revision and returns the written record.
	Update(ctx context.Context, project string, fn UpdateFunc) (model.ProjectMetadata, error)
}

// Empty returns the record of a project that was never written.
func Empty(project string) model.ProjectMetadata {
	return model.ProjectMetadata{Project: project}
}

// Apply runs fn on a copy of cur and returns the next revision.
func Apply(cur model.ProjectMetadata, fn UpdateFunc) (model.ProjectMetadata, error) {
	next := cur.Clone()
	if err := fn(&next); err != nil {
		return cur, err
	}
	next.Project = cur.Project
	next.Revision = cur.Revision + 1
	return next, nil
}
