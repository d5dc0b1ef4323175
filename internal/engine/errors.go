package engine

import (
	"errors"
	"fmt"

	"github.com/hupe1980/varanno/model"
)

var (
	// ErrClosed is returned when an operation is attempted on a closed manager.
	ErrClosed = errors.New("engine closed")

	// ErrOverwriteRequired is returned when a run without overwrite would
	// replace annotations owned by a committed run.
	ErrOverwriteRequired = errors.New("overwrite required")

	// ErrAnnotatorChanged is returned when a run without overwrite uses a
	// different annotator than the one recorded for the project.
	ErrAnnotatorChanged = fmt.Errorf("%w: annotator changed", ErrOverwriteRequired)
)

// RunError is returned when a run fails after it started. The run has been
// rolled back and recorded as aborted.
type RunError struct {
	RunID            model.RunID
	BatchesCompleted int
	Err              error
}

func (e *RunError) Error() string {
	return fmt.Sprintf("run %s aborted after %d batches: %v", e.RunID, e.BatchesCompleted, e.Err)
}

func (e *RunError) Unwrap() error { return e.Err }
