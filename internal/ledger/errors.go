package ledger

import "errors"

var (
	// ErrDuplicateRunID is returned by Begin for a run id already present in
	// the ledger, whatever its state.
	ErrDuplicateRunID = errors.New("duplicate run id")

	// ErrRunNotFound is returned for unknown run ids.
	ErrRunNotFound = errors.New("run not found")

	// ErrRunFinished is returned when finalizing a run twice.
	ErrRunFinished = errors.New("run already finished")

	// ErrNotFound is returned when a ledger version does not exist.
	ErrNotFound = errors.New("ledger not found")

	// ErrIncompatibleVersion is returned for ledger files of a newer format.
	ErrIncompatibleVersion = errors.New("incompatible ledger version")
)
