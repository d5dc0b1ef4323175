// Package model defines core types used throughout varanno.
//
// # Identity Types
//
//   - VariantKey: genomic position plus reference/alternate allele (primary key)
//   - RunID: identifier of one annotation run
//   - Identity: annotator name, version and data release
//
// # Data Types
//
//   - Payload: annotation produced by an annotator for one variant
//   - Annotation: a payload together with its key and owning run
//   - RunRecord: ledger entry describing one annotation run
//   - ProjectMetadata: project-level annotation metadata (current + saved)
package model
