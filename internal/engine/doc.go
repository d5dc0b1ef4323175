// Package engine implements the annotation manager: it drives annotation runs
// from the variant source through an annotator into the store, records every
// run in the ledger, maintains saved snapshots and serves reads over the
// current view and over snapshots.
//
// At most one run is in flight per manager. Reads never wait for a run.
package engine
