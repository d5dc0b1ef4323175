// Package snapshot implements the snapshot directory: named, immutable,
// physically copied freezes of the current annotation view.
//
// A snapshot is written once as snapshots/<name>.snap and never modified.
// Loaded snapshots are shared through a bounded LRU cache; concurrent loads of
// the same name are collapsed with singleflight.
package snapshot
