// Package store implements the annotation store: a keyed, multi-version map
// from (variant, run) to annotation payload.
//
// Every variant owns a version chain, newest first. Writers are serialized
// and publish new chain heads atomically, so readers never take a lock on
// the chain itself. A variant is owned by the newest version whose run is
// running or committed; LatestCommitted ignores in-flight runs.
//
// Each run tracks the rows it wrote in a roaring bitmap. Rollback uses the
// bitmap to strip the run's versions from every chain it touched.
//
// Runs are persisted as checkpoint segments under runs/<run>/part-NNNNNN.seg.
// On open, the segments of committed runs are replayed in commit order.
package store
