package snapshot

import "errors"

var (
	// ErrSnapshotNotFound is returned for unknown or deleted snapshot names.
	ErrSnapshotNotFound = errors.New("snapshot not found")

	// ErrDuplicateSnapshotName is returned by Create for an existing name
	// unless the caller forces the overwrite.
	ErrDuplicateSnapshotName = errors.New("duplicate snapshot name")

	// ErrCorrupt is returned for snapshot blobs that fail to decode.
	ErrCorrupt = errors.New("corrupt snapshot")
)
