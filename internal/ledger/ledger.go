package ledger

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/hupe1980/varanno/blobstore"
	"github.com/hupe1980/varanno/model"
)

const (
	// FilePrefix is the blob name prefix of ledger versions.
	FilePrefix = "LEDGER"
	// CurrentFileName points at the active ledger version.
	CurrentFileName = "CURRENT"

	// AbortInterrupted is the abort reason recorded for runs found running
	// when the ledger is opened.
	AbortInterrupted = "interrupted"
)

// State is one immutable version of the ledger.
type State struct {
	ID        uint64             `json:"id"`
	CreatedAt time.Time          `json:"createdAt"`
	NextSeq   uint64             `json:"nextSeq"`
	Runs      []*model.RunRecord `json:"runs"`
}

func (st *State) clone() *State {
	c := *st
	c.Runs = make([]*model.RunRecord, len(st.Runs))
	for i, r := range st.Runs {
		c.Runs[i] = r.Clone()
	}
	return &c
}

func (st *State) find(id model.RunID) (*model.RunRecord, bool) {
	for _, r := range st.Runs {
		if r.ID == id {
			return r, true
		}
	}
	return nil, false
}

// Options configures a Ledger.
type Options struct {
	// Retention is the number of ledger versions kept. Zero keeps all.
	Retention int
	// Now overrides the clock, for tests.
	Now func() time.Time
	// Logger receives retention failures. Defaults to a discarding logger.
	Logger *slog.Logger
}

// Ledger is the persistent run ledger of one project. It is safe for
// concurrent use.
type Ledger struct {
	store     blobstore.BlobStore
	retention int
	now       func() time.Time
	logger    *slog.Logger

	mu    sync.RWMutex
	state *State
}

func versionName(id uint64) string {
	return fmt.Sprintf("%s-%06d.bin", FilePrefix, id)
}

// Open loads the current ledger version, or starts an empty ledger.
func Open(ctx context.Context, store blobstore.BlobStore, opts Options) (*Ledger, error) {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	l := &Ledger{store: store, retention: opts.Retention, now: opts.Now, logger: opts.Logger}

	st, err := l.load(ctx)
	if errors.Is(err, ErrNotFound) {
		st = &State{NextSeq: 1}
	} else if err != nil {
		return nil, err
	}
	l.state = st
	return l, nil
}

func (l *Ledger) load(ctx context.Context) (*State, error) {
	content, err := blobstore.ReadAll(ctx, l.store, CurrentFileName)
	if err != nil {
		if errors.Is(err, blobstore.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return l.loadFile(ctx, strings.TrimSpace(string(content)))
}

func (l *Ledger) loadFile(ctx context.Context, name string) (*State, error) {
	data, err := blobstore.ReadAll(ctx, l.store, name)
	if err != nil {
		if errors.Is(err, blobstore.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return nil, fmt.Errorf("failed to open ledger %s: %w", name, err)
	}
	st, err := unmarshalBinary(data)
	if err != nil {
		return nil, fmt.Errorf("ledger %s: %w", name, err)
	}
	return st, nil
}

// LoadVersion reads a specific historical ledger version.
func (l *Ledger) LoadVersion(ctx context.Context, id uint64) (*State, error) {
	return l.loadFile(ctx, versionName(id))
}

// ListVersions returns the ids of the ledger versions still stored.
func (l *Ledger) ListVersions(ctx context.Context) ([]uint64, error) {
	names, err := l.store.List(ctx, FilePrefix+"-")
	if err != nil {
		return nil, err
	}
	var ids []uint64
	for _, name := range names {
		num := strings.TrimSuffix(strings.TrimPrefix(name, FilePrefix+"-"), ".bin")
		id, err := strconv.ParseUint(num, 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids, nil
}

// save persists next as a new version and installs it. Callers hold l.mu.
func (l *Ledger) save(ctx context.Context, next *State) error {
	next.ID = l.state.ID + 1
	next.CreatedAt = l.now().UTC()

	data, err := marshalBinary(next)
	if err != nil {
		return err
	}
	name := versionName(next.ID)
	if err := l.store.Put(ctx, name, data); err != nil {
		return err
	}
	if err := l.store.Put(ctx, CurrentFileName, []byte(name)); err != nil {
		return err
	}
	l.state = next

	if l.retention > 0 && next.ID > uint64(l.retention) {
		// Stale versions are never read again; a failed delete leaves garbage only.
		stale := versionName(next.ID - uint64(l.retention))
		if err := l.store.Delete(ctx, stale); err != nil {
			l.logger.Warn("deleting stale ledger version failed", "version", stale, "error", err)
		}
	}
	return nil
}

// update applies fn to a copy of the current state and persists the result.
// The in-memory state is unchanged if fn or the write fails.
func (l *Ledger) update(ctx context.Context, fn func(*State) error) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	next := l.state.clone()
	if err := fn(next); err != nil {
		return err
	}
	return l.save(ctx, next)
}

// Begin records a new run in the Running state. Run ids are never reused:
// an id present in the ledger in any state is a duplicate.
func (l *Ledger) Begin(ctx context.Context, rec model.RunRecord) (*model.RunRecord, error) {
	var out *model.RunRecord
	err := l.update(ctx, func(st *State) error {
		if _, ok := st.find(rec.ID); ok {
			return fmt.Errorf("%w: %s", ErrDuplicateRunID, rec.ID)
		}
		r := rec.Clone()
		r.State = model.RunRunning
		if r.StartedAt.IsZero() {
			r.StartedAt = l.now().UTC()
		}
		r.FinishedAt = time.Time{}
		r.Seq = 0
		st.Runs = append(st.Runs, r)
		out = r.Clone()
		return nil
	})
	return out, err
}

// Result carries the counters of a finished run.
type Result struct {
	Batches   int
	Annotated int64
	Skipped   int64
	Parts     []string
}

func running(st *State, id model.RunID) (*model.RunRecord, error) {
	r, ok := st.find(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if r.Finished() {
		return nil, fmt.Errorf("%w: %s is %s", ErrRunFinished, id, r.State)
	}
	return r, nil
}

// Commit finalizes a run as Committed and assigns the next commit sequence.
func (l *Ledger) Commit(ctx context.Context, id model.RunID, res Result) (*model.RunRecord, error) {
	var out *model.RunRecord
	err := l.update(ctx, func(st *State) error {
		r, err := running(st, id)
		if err != nil {
			return err
		}
		r.State = model.RunCommitted
		r.FinishedAt = l.now().UTC()
		r.Seq = st.NextSeq
		st.NextSeq++
		r.Batches = res.Batches
		r.Annotated = res.Annotated
		r.Skipped = res.Skipped
		r.Parts = slices.Clone(res.Parts)
		out = r.Clone()
		return nil
	})
	return out, err
}

// Abort finalizes a run as Aborted with the given reason.
func (l *Ledger) Abort(ctx context.Context, id model.RunID, reason string, res Result) (*model.RunRecord, error) {
	var out *model.RunRecord
	err := l.update(ctx, func(st *State) error {
		r, err := running(st, id)
		if err != nil {
			return err
		}
		r.State = model.RunAborted
		r.FinishedAt = l.now().UTC()
		r.Error = reason
		r.Batches = res.Batches
		r.Annotated = res.Annotated
		r.Skipped = res.Skipped
		r.Parts = nil
		out = r.Clone()
		return nil
	})
	return out, err
}

// RecoverInterrupted aborts every run still marked Running, which can only
// be left over from a crashed process. It returns the aborted run ids.
func (l *Ledger) RecoverInterrupted(ctx context.Context) ([]model.RunID, error) {
	var ids []model.RunID
	err := l.update(ctx, func(st *State) error {
		for _, r := range st.Runs {
			if r.State == model.RunRunning || r.State == model.RunPending {
				r.State = model.RunAborted
				r.FinishedAt = l.now().UTC()
				r.Error = AbortInterrupted
				r.Parts = nil
				ids = append(ids, r.ID)
			}
		}
		if len(ids) == 0 {
			return errNoChange
		}
		return nil
	})
	if errors.Is(err, errNoChange) {
		return nil, nil
	}
	return ids, err
}

var errNoChange = errors.New("no change")

// Get returns a copy of the run record.
func (l *Ledger) Get(id model.RunID) (*model.RunRecord, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	r, ok := l.state.find(id)
	if !ok {
		return nil, false
	}
	return r.Clone(), true
}

// Runs returns copies of all run records in start order.
func (l *Ledger) Runs() []*model.RunRecord {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]*model.RunRecord, len(l.state.Runs))
	for i, r := range l.state.Runs {
		out[i] = r.Clone()
	}
	return out
}

// Committed returns the committed runs ordered by commit sequence.
func (l *Ledger) Committed() []*model.RunRecord {
	runs := slices.DeleteFunc(l.Runs(), func(r *model.RunRecord) bool {
		return r.State != model.RunCommitted
	})
	slices.SortFunc(runs, func(a, b *model.RunRecord) int { return cmp.Compare(a.Seq, b.Seq) })
	return runs
}

// Version returns the id of the current ledger version.
func (l *Ledger) Version() uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state.ID
}
