package varanno

import (
	"errors"
	"fmt"

	"github.com/hupe1980/varanno/annotator"
	"github.com/hupe1980/varanno/internal/binfmt"
	"github.com/hupe1980/varanno/internal/compress"
	"github.com/hupe1980/varanno/internal/engine"
	"github.com/hupe1980/varanno/internal/ledger"
	"github.com/hupe1980/varanno/internal/snapshot"
	"github.com/hupe1980/varanno/internal/store"
	"github.com/hupe1980/varanno/model"
	"github.com/hupe1980/varanno/query"
)

var (
	// ErrAnnotator is returned when the annotator fails. The run is aborted.
	ErrAnnotator = annotator.ErrAnnotator

	// ErrDuplicateRunID is returned when a run id was used before.
	ErrDuplicateRunID = ledger.ErrDuplicateRunID

	// ErrRunNotFound is returned when reading a run that was never recorded.
	ErrRunNotFound = ledger.ErrRunNotFound

	// ErrOverwriteRequired is returned when a run without overwrite would
	// replace committed annotations.
	ErrOverwriteRequired = engine.ErrOverwriteRequired

	// ErrAnnotatorChanged is returned when a run without overwrite uses a
	// different annotator than the project. It wraps ErrOverwriteRequired.
	ErrAnnotatorChanged = engine.ErrAnnotatorChanged

	// ErrSnapshotNotFound is returned for unknown or deleted snapshots.
	ErrSnapshotNotFound = snapshot.ErrSnapshotNotFound

	// ErrDuplicateSnapshotName is returned when saving over an existing
	// snapshot without SaveOptions.Force.
	ErrDuplicateSnapshotName = snapshot.ErrDuplicateSnapshotName

	// ErrInvalidQuery is returned for malformed regions, selectors or read
	// options.
	ErrInvalidQuery = query.ErrInvalidQuery

	// ErrInvalidName is returned for malformed run ids and snapshot names.
	ErrInvalidName = model.ErrInvalidName

	// ErrClosed is returned after Close.
	ErrClosed = engine.ErrClosed

	// ErrCorrupt is returned when a run segment, snapshot or ledger version
	// fails its checks.
	ErrCorrupt = errors.New("data corruption detected")
)

// RunError is returned when a run fails after it started. It carries the run
// id and the number of completed batches.
type RunError = engine.RunError

func translateError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, binfmt.ErrCorrupt) ||
		errors.Is(err, compress.ErrCorrupt) ||
		errors.Is(err, store.ErrCorrupt) ||
		errors.Is(err, snapshot.ErrCorrupt) ||
		errors.Is(err, ledger.ErrIncompatibleVersion) {
		return fmt.Errorf("%w: %w", ErrCorrupt, err)
	}
	return err
}
