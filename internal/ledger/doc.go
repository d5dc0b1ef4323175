// Package ledger persists the run ledger: one record per annotation run
// attempted against a project.
//
// Every change writes a new immutable version LEDGER-NNNNNN.bin and then
// repoints CURRENT at it, so a crash between the two writes leaves the
// previous version in effect. Older versions are pruned according to the
// retention setting.
//
// Records are append-only. A run enters as Running and is finalized exactly
// once, as Committed (receiving the next commit sequence) or Aborted.
package ledger
