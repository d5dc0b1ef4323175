package store

import "errors"

var (
	// ErrRunNotActive is returned when writing to a run that is not running.
	ErrRunNotActive = errors.New("store: run is not active")

	// ErrRunExists is returned by Begin for a run id the store already knows.
	ErrRunExists = errors.New("store: run already exists")

	// ErrCorrupt is returned when a segment cannot be decoded.
	ErrCorrupt = errors.New("store: corrupt segment")
)
