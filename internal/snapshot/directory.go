package snapshot

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"slices"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/hupe1980/varanno/blobstore"
	"github.com/hupe1980/varanno/codec"
	"github.com/hupe1980/varanno/internal/cache"
	"github.com/hupe1980/varanno/model"
)

const (
	dirPrefix = "snapshots/"
	extension = ".snap"

	// DefaultCacheSize is the default number of annotations kept in the
	// snapshot cache.
	DefaultCacheSize = 1 << 20
)

// BlobName returns the blob holding the named snapshot.
func BlobName(name string) string {
	return dirPrefix + name + extension
}

// Options configures a Directory.
type Options struct {
	// Codec encodes snapshot bodies. Defaults to codec.Default.
	Codec codec.Codec
	// CacheSize bounds the number of cached annotations across all loaded
	// snapshots. Zero uses DefaultCacheSize; a negative value disables
	// caching.
	CacheSize int64
	// Now overrides the clock, for tests.
	Now func() time.Time
}

// Directory maps snapshot names to immutable snapshots. It is safe for
// concurrent use.
type Directory struct {
	blobs blobstore.BlobStore
	codec codec.Codec
	now   func() time.Time

	// mu orders Create/Delete against cache fills.
	mu    sync.RWMutex
	cache *cache.LRU[string, *Snapshot]
	group singleflight.Group
}

// New creates a directory over blobs.
func New(blobs blobstore.BlobStore, opts Options) *Directory {
	if opts.Codec == nil {
		opts.Codec = codec.Default
	}
	if opts.CacheSize == 0 {
		opts.CacheSize = DefaultCacheSize
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Directory{
		blobs: blobs,
		codec: opts.Codec,
		now:   opts.Now,
		cache: cache.NewLRU[string, *Snapshot](opts.CacheSize, func(s *Snapshot) int64 {
			return int64(s.Len()) + 1
		}),
	}
}

func (d *Directory) exists(ctx context.Context, name string) (bool, error) {
	b, err := d.blobs.Open(ctx, BlobName(name))
	if err != nil {
		if errors.Is(err, blobstore.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	_ = b.Close()
	return true, nil
}

// Create materializes entries into a new snapshot named meta.Name. The
// payloads are copied, so later changes to their source never show through.
// Creating an existing name fails with ErrDuplicateSnapshotName unless force
// is set.
func (d *Directory) Create(ctx context.Context, meta model.AnnotationMetadata, entries iter.Seq[model.Annotation], force bool) (*Snapshot, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !force {
		ok, err := d.exists(ctx, meta.Name)
		if err != nil {
			return nil, err
		}
		if ok {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateSnapshotName, meta.Name)
		}
	}

	if meta.CreatedAt.IsZero() {
		meta.CreatedAt = d.now().UTC()
	}
	s := build(meta, entries)

	data, err := encode(d.codec, s)
	if err != nil {
		return nil, err
	}
	if err := d.blobs.Put(ctx, BlobName(meta.Name), data); err != nil {
		return nil, fmt.Errorf("snapshot: write %s: %w", meta.Name, err)
	}

	d.cache.Set(meta.Name, s)
	return s, nil
}

// Get returns the named snapshot.
func (d *Directory) Get(ctx context.Context, name string) (*Snapshot, error) {
	if s, ok := d.cache.Get(name); ok {
		return s, nil
	}

	v, err, _ := d.group.Do(name, func() (any, error) {
		d.mu.RLock()
		defer d.mu.RUnlock()

		if s, ok := d.cache.Get(name); ok {
			return s, nil
		}
		data, err := blobstore.ReadAll(ctx, d.blobs, BlobName(name))
		if err != nil {
			if errors.Is(err, blobstore.ErrNotFound) {
				return nil, fmt.Errorf("%w: %s", ErrSnapshotNotFound, name)
			}
			return nil, err
		}
		s, err := decode(data)
		if err != nil {
			return nil, fmt.Errorf("snapshot %s: %w", name, err)
		}
		d.cache.Set(name, s)
		return s, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Snapshot), nil
}

// Delete removes the named snapshot. It fails with ErrSnapshotNotFound if
// the name does not exist.
func (d *Directory) Delete(ctx context.Context, name string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	ok, err := d.exists(ctx, name)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrSnapshotNotFound, name)
	}
	if err := d.blobs.Delete(ctx, BlobName(name)); err != nil {
		return fmt.Errorf("snapshot: delete %s: %w", name, err)
	}
	d.cache.Remove(name)
	d.group.Forget(name)
	return nil
}

// List returns the snapshot names in lexical order.
func (d *Directory) List(ctx context.Context) ([]string, error) {
	blobs, err := d.blobs.List(ctx, dirPrefix)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(blobs))
	for _, b := range blobs {
		if name, ok := strings.CutSuffix(strings.TrimPrefix(b, dirPrefix), extension); ok {
			names = append(names, name)
		}
	}
	slices.Sort(names)
	return names, nil
}

// CacheStats returns the hit and miss counters of the snapshot cache.
func (d *Directory) CacheStats() (hits, misses int64) {
	return d.cache.Stats()
}
