package engine

import (
	"context"
	"fmt"
	"iter"
	"slices"

	"github.com/hupe1980/varanno/internal/ledger"
	"github.com/hupe1980/varanno/model"
	"github.com/hupe1980/varanno/query"
)

// GetAnnotation returns the annotations of the variants matching q, read
// from the current view or from a snapshot.
//
// The current view follows the variant source order and resolves every key
// to the newest run owning it, so payloads of different runs can be mixed.
// Snapshot reads follow the natural variant order. Reading a missing
// snapshot yields snapshot.ErrSnapshotNotFound. Errors end the sequence.
func (m *Manager) GetAnnotation(ctx context.Context, sel Selector, q query.Query, opts ReadOptions) iter.Seq2[model.Annotation, error] {
	return func(yield func(model.Annotation, error) bool) {
		done, err := m.enter()
		if err != nil {
			yield(model.Annotation{}, err)
			return
		}
		defer done()

		if err := q.Validate(); err != nil {
			yield(model.Annotation{}, err)
			return
		}
		if err := opts.Validate(); err != nil {
			yield(model.Annotation{}, err)
			return
		}

		page := pager{skip: opts.Skip, limit: opts.Limit}
		if sel.IsCurrent() {
			for key, err := range m.src.Variants(ctx, q) {
				if err != nil {
					yield(model.Annotation{}, err)
					return
				}
				a, ok := m.store.Latest(key)
				if !ok {
					continue
				}
				take, more := page.next()
				if !more {
					return
				}
				if !take {
					continue
				}
				a.Payload = opts.Projection.Apply(a.Payload)
				if !yield(a, nil) {
					return
				}
			}
			return
		}

		snap, err := m.snapshots.Get(ctx, sel.Name())
		if err != nil {
			yield(model.Annotation{}, err)
			return
		}
		for a := range snap.Scan(q.Match, opts.Projection) {
			if err := ctx.Err(); err != nil {
				yield(model.Annotation{}, err)
				return
			}
			take, more := page.next()
			if !more {
				return
			}
			if !take {
				continue
			}
			if !yield(a, nil) {
				return
			}
		}
	}
}

// RunAnnotations returns the payloads exactly as written by one run for the
// keys matching q, in natural variant order, whether or not a later run has
// since taken ownership of them. Unknown runs yield ledger.ErrRunNotFound;
// aborted runs yield nothing.
func (m *Manager) RunAnnotations(ctx context.Context, id model.RunID, q query.Query, opts ReadOptions) iter.Seq2[model.Annotation, error] {
	return func(yield func(model.Annotation, error) bool) {
		done, err := m.enter()
		if err != nil {
			yield(model.Annotation{}, err)
			return
		}
		defer done()

		if err := q.Validate(); err != nil {
			yield(model.Annotation{}, err)
			return
		}
		if err := opts.Validate(); err != nil {
			yield(model.Annotation{}, err)
			return
		}
		if _, ok := m.ledger.Get(id); !ok {
			yield(model.Annotation{}, fmt.Errorf("%w: %s", ledger.ErrRunNotFound, id))
			return
		}

		keys := slices.DeleteFunc(m.store.RunKeys(id), func(k model.VariantKey) bool { return !q.Match(k) })
		slices.SortFunc(keys, model.VariantKey.Compare)

		page := pager{skip: opts.Skip, limit: opts.Limit}
		for _, key := range keys {
			if err := ctx.Err(); err != nil {
				yield(model.Annotation{}, err)
				return
			}
			p, ok := m.store.AtRun(id, key)
			if !ok {
				continue
			}
			take, more := page.next()
			if !more {
				return
			}
			if !take {
				continue
			}
			a := model.Annotation{Key: key, RunID: id, Payload: opts.Projection.Apply(p)}
			if !yield(a, nil) {
				return
			}
		}
	}
}

// CountAnnotated returns the number of annotated variants matching q.
func (m *Manager) CountAnnotated(ctx context.Context, sel Selector, q query.Query) (int64, error) {
	done, err := m.enter()
	if err != nil {
		return 0, err
	}
	defer done()

	if err := q.Validate(); err != nil {
		return 0, err
	}

	if !sel.IsCurrent() {
		snap, err := m.snapshots.Get(ctx, sel.Name())
		if err != nil {
			return 0, err
		}
		return int64(snap.Count(q.Match)), nil
	}

	var n int64
	for key, err := range m.src.Variants(ctx, q) {
		if err != nil {
			return 0, err
		}
		if _, ok := m.store.Latest(key); ok {
			n++
		}
	}
	return n, nil
}

// pager applies skip and limit to a stream of matches.
type pager struct {
	skip, limit int
	seen, taken int
}

// next reports whether the current match is returned and whether more
// matches can be returned at all.
func (p *pager) next() (take, more bool) {
	if p.limit > 0 && p.taken >= p.limit {
		return false, false
	}
	p.seen++
	if p.seen <= p.skip {
		return false, true
	}
	p.taken++
	return true, true
}
