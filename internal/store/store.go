package store

import (
	"context"
	"fmt"
	"iter"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/hupe1980/varanno/blobstore"
	"github.com/hupe1980/varanno/codec"
	"github.com/hupe1980/varanno/internal/compress"
	"github.com/hupe1980/varanno/internal/resource"
	"github.com/hupe1980/varanno/model"
	"github.com/hupe1980/varanno/query"
)

// Options configures a Store.
type Options struct {
	// Codec encodes segment records. Defaults to codec.Default.
	Codec codec.Codec
	// Compression is applied to segment bodies. The zero value stores them
	// uncompressed.
	Compression compress.Type
	// Resources throttles segment writes. Optional.
	Resources *resource.Controller
}

// Store is the annotation store. It is safe for concurrent use; writes are
// serialized internally.
type Store struct {
	blobs       blobstore.BlobStore
	codec       codec.Codec
	compression compress.Type
	resources   *resource.Controller

	mu     sync.RWMutex // protects rows, byRow
	rows   map[model.VariantKey]*entry
	byRow  []*entry
	sorted atomic.Pointer[[]*entry]

	runsMu sync.RWMutex
	runs   map[model.RunID]*runState

	writeMu sync.Mutex // serializes chain mutation
}

// New creates an empty store persisting segments to blobs.
func New(blobs blobstore.BlobStore, opts Options) *Store {
	if opts.Codec == nil {
		opts.Codec = codec.Default
	}
	return &Store{
		blobs:       blobs,
		codec:       opts.Codec,
		compression: opts.Compression,
		resources:   opts.Resources,
		rows:        make(map[model.VariantKey]*entry),
		runs:        make(map[model.RunID]*runState),
	}
}

func (s *Store) run(id model.RunID) (*runState, bool) {
	s.runsMu.RLock()
	defer s.runsMu.RUnlock()
	rs, ok := s.runs[id]
	return rs, ok
}

func (s *Store) lookup(key model.VariantKey) *entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rows[key]
}

func (s *Store) getOrCreate(key model.VariantKey) *entry {
	if e := s.lookup(key); e != nil {
		return e
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if e := s.rows[key]; e != nil {
		return e
	}
	e := &entry{key: key, row: uint32(len(s.byRow))}
	s.rows[key] = e
	s.byRow = append(s.byRow, e)
	s.sorted.Store(nil)
	return e
}

// Begin registers an in-flight run.
func (s *Store) Begin(id model.RunID) error {
	s.runsMu.Lock()
	defer s.runsMu.Unlock()

	if _, ok := s.runs[id]; ok {
		return fmt.Errorf("%w: %s", ErrRunExists, id)
	}
	s.runs[id] = newRunState(id, model.RunRunning)
	return nil
}

// Put upserts the payload written by run for key. Writing the same key twice
// within a run replaces the earlier payload.
func (s *Store) Put(id model.RunID, key model.VariantKey, payload *model.Payload) error {
	rs, ok := s.run(id)
	if !ok || rs.State() != model.RunRunning {
		return fmt.Errorf("%w: %s", ErrRunNotActive, id)
	}
	p := payload.Clone()
	e := s.getOrCreate(key)

	s.writeMu.Lock()
	e.upsert(rs, p)
	s.writeMu.Unlock()

	rs.mu.Lock()
	rs.rows.Add(e.row)
	rs.pending = append(rs.pending, record{Key: key, Payload: p})
	rs.mu.Unlock()
	return nil
}

// Commit marks the run committed with the given ledger sequence. Every
// pending record must have been checkpointed.
func (s *Store) Commit(id model.RunID, seq uint64) error {
	rs, ok := s.run(id)
	if !ok || rs.State() != model.RunRunning {
		return fmt.Errorf("%w: %s", ErrRunNotActive, id)
	}

	rs.mu.Lock()
	pending := len(rs.pending)
	rs.mu.Unlock()
	if pending > 0 {
		return fmt.Errorf("store: commit %s with %d unflushed records", id, pending)
	}

	rs.seq.Store(seq)
	rs.state.Store(uint32(model.RunCommitted))
	return nil
}

// Rollback removes every version written by the run and deletes its
// segments. Rolling back an unknown run only deletes leftover segments.
func (s *Store) Rollback(ctx context.Context, id model.RunID) error {
	if rs, ok := s.run(id); ok {
		rs.state.Store(uint32(model.RunAborted))

		rs.mu.Lock()
		rows := rs.rows.Clone()
		rs.pending = nil
		rs.mu.Unlock()

		s.mu.RLock()
		byRow := s.byRow
		s.mu.RUnlock()

		s.writeMu.Lock()
		it := rows.Iterator()
		for it.HasNext() {
			byRow[it.Next()].remove(rs)
		}
		s.writeMu.Unlock()

		s.runsMu.Lock()
		delete(s.runs, id)
		s.runsMu.Unlock()
	}
	return s.deleteSegments(ctx, id)
}

// Latest returns the annotation owned by the newest running or committed run.
// The payload is shared and must not be modified.
func (s *Store) Latest(key model.VariantKey) (model.Annotation, bool) {
	e := s.lookup(key)
	if e == nil {
		return model.Annotation{}, false
	}
	return annotationOf(e, e.latest())
}

// LatestCommitted is like Latest but ignores in-flight runs.
func (s *Store) LatestCommitted(key model.VariantKey) (model.Annotation, bool) {
	e := s.lookup(key)
	if e == nil {
		return model.Annotation{}, false
	}
	return annotationOf(e, e.latestCommitted())
}

// AtRun returns the payload exactly as written by run, ignoring ownership.
func (s *Store) AtRun(id model.RunID, key model.VariantKey) (*model.Payload, bool) {
	e := s.lookup(key)
	if e == nil {
		return nil, false
	}
	v := e.atRun(id)
	if v == nil || v.run.State() == model.RunAborted {
		return nil, false
	}
	return v.payload, true
}

// Owner returns the committed run owning key.
func (s *Store) Owner(key model.VariantKey) (model.RunID, bool) {
	a, ok := s.LatestCommitted(key)
	return a.RunID, ok
}

func annotationOf(e *entry, v *version) (model.Annotation, bool) {
	if v == nil {
		return model.Annotation{}, false
	}
	return model.Annotation{Key: e.key, RunID: v.run.id, Payload: v.payload}, true
}

// sortedEntries returns all entries in natural variant order.
func (s *Store) sortedEntries() []*entry {
	if p := s.sorted.Load(); p != nil {
		return *p
	}

	s.mu.RLock()
	entries := slices.Clone(s.byRow)
	s.mu.RUnlock()

	slices.SortFunc(entries, func(a, b *entry) int { return a.key.Compare(b.key) })
	s.sorted.CompareAndSwap(nil, &entries)
	return entries
}

// Scan lazily yields the latest annotation of every key matching pred, in
// natural variant order, with the projection applied. A nil pred matches
// everything.
func (s *Store) Scan(pred func(model.VariantKey) bool, proj query.Projection) iter.Seq[model.Annotation] {
	return s.scan((*entry).latest, pred, proj)
}

// ScanCommitted is like Scan but ignores in-flight runs.
func (s *Store) ScanCommitted(pred func(model.VariantKey) bool, proj query.Projection) iter.Seq[model.Annotation] {
	return s.scan((*entry).latestCommitted, pred, proj)
}

func (s *Store) scan(pick func(*entry) *version, pred func(model.VariantKey) bool, proj query.Projection) iter.Seq[model.Annotation] {
	return func(yield func(model.Annotation) bool) {
		for _, e := range s.sortedEntries() {
			if pred != nil && !pred(e.key) {
				continue
			}
			v := pick(e)
			if v == nil {
				continue
			}
			a := model.Annotation{Key: e.key, RunID: v.run.id, Payload: proj.Apply(v.payload)}
			if !yield(a) {
				return
			}
		}
	}
}

// RunRows returns a copy of the rows written by run.
func (s *Store) RunRows(id model.RunID) *roaring.Bitmap {
	rs, ok := s.run(id)
	if !ok {
		return roaring.New()
	}
	rs.mu.Lock()
	defer rs.mu.Unlock()
	return rs.rows.Clone()
}

// RunKeys returns the keys written by run in row order.
func (s *Store) RunKeys(id model.RunID) []model.VariantKey {
	rows := s.RunRows(id)

	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]model.VariantKey, 0, rows.GetCardinality())
	it := rows.Iterator()
	for it.HasNext() {
		keys = append(keys, s.byRow[it.Next()].key)
	}
	return keys
}

// Stats describes the store contents.
type Stats struct {
	Variants int `json:"variants"`
	Versions int `json:"versions"`
	Runs     int `json:"runs"`
}

// Stats returns a point-in-time summary.
func (s *Store) Stats() Stats {
	s.mu.RLock()
	entries := s.byRow
	s.mu.RUnlock()

	st := Stats{}
	for _, e := range entries {
		if n := e.versions(); n > 0 {
			st.Variants++
			st.Versions += n
		}
	}

	s.runsMu.RLock()
	st.Runs = len(s.runs)
	s.runsMu.RUnlock()
	return st
}
