package store

import (
	"sync"
	"sync/atomic"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/hupe1980/varanno/model"
)

// runState is the store-side view of one run.
type runState struct {
	id    model.RunID
	state atomic.Uint32 // model.RunState
	seq   atomic.Uint64

	mu       sync.Mutex
	rows     *roaring.Bitmap
	pending  []record
	parts    []string
	lastPart int
}

func newRunState(id model.RunID, state model.RunState) *runState {
	rs := &runState{id: id, rows: roaring.New()}
	rs.state.Store(uint32(state))
	return rs
}

func (rs *runState) State() model.RunState {
	return model.RunState(rs.state.Load())
}

// version is one payload written by a run. Versions are immutable once
// published; chains are rewritten copy-on-write.
type version struct {
	run     *runState
	payload *model.Payload
	next    *version
}

// entry holds the version chain of one variant.
type entry struct {
	key  model.VariantKey
	row  uint32
	head atomic.Pointer[version]
}

func (e *entry) latest() *version {
	for v := e.head.Load(); v != nil; v = v.next {
		switch v.run.State() {
		case model.RunRunning, model.RunCommitted:
			return v
		}
	}
	return nil
}

func (e *entry) latestCommitted() *version {
	for v := e.head.Load(); v != nil; v = v.next {
		if v.run.State() == model.RunCommitted {
			return v
		}
	}
	return nil
}

func (e *entry) atRun(id model.RunID) *version {
	for v := e.head.Load(); v != nil; v = v.next {
		if v.run.id == id {
			return v
		}
	}
	return nil
}

// upsert publishes payload as the newest version of rs. A version already
// written by rs is replaced, keeping Put idempotent. Callers hold the store's
// write lock.
func (e *entry) upsert(rs *runState, payload *model.Payload) {
	head := e.head.Load()
	if head == nil {
		e.head.Store(&version{run: rs, payload: payload})
		return
	}
	if head.run == rs {
		e.head.Store(&version{run: rs, payload: payload, next: head.next})
		return
	}
	if head.run.seq.Load() <= rs.seq.Load() || rs.State() != model.RunCommitted {
		e.head.Store(&version{run: rs, payload: payload, next: head})
		return
	}
	// Replaying an older commit behind a newer one.
	e.head.Store(copyChainWithInsert(head, rs, payload))
}

// copyChainWithInsert places a version for rs behind every newer committed
// version, replacing an existing version of rs.
func copyChainWithInsert(head *version, rs *runState, payload *model.Payload) *version {
	var stack []*version
	curr := head
	for curr != nil && curr.run != rs && curr.run.seq.Load() > rs.seq.Load() {
		stack = append(stack, curr)
		curr = curr.next
	}

	tail := &version{run: rs, payload: payload, next: curr}
	if curr != nil && curr.run == rs {
		tail.next = curr.next
	}

	for i := len(stack) - 1; i >= 0; i-- {
		orig := stack[i]
		tail = &version{run: orig.run, payload: orig.payload, next: tail}
	}
	return tail
}

// remove unlinks the version written by rs. Callers hold the store's write
// lock. It reports whether a version was removed.
func (e *entry) remove(rs *runState) bool {
	head := e.head.Load()

	var stack []*version
	curr := head
	for curr != nil && curr.run != rs {
		stack = append(stack, curr)
		curr = curr.next
	}
	if curr == nil {
		return false
	}

	tail := curr.next
	for i := len(stack) - 1; i >= 0; i-- {
		orig := stack[i]
		tail = &version{run: orig.run, payload: orig.payload, next: tail}
	}
	e.head.Store(tail)
	return true
}

func (e *entry) versions() int {
	n := 0
	for v := e.head.Load(); v != nil; v = v.next {
		n++
	}
	return n
}
