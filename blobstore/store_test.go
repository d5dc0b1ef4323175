package blobstore

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testStores(t *testing.T) map[string]BlobStore {
	t.Helper()
	return map[string]BlobStore{
		"memory": NewMemoryStore(),
		"local":  NewLocalStore(t.TempDir()),
	}
}

func TestBlobStore_Lifecycle(t *testing.T) {
	ctx := context.Background()

	for name, store := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			data := []byte("hello world, this is a test blob for varanno")
			require.NoError(t, store.Put(ctx, "runs/v1/part-000001.seg", data))

			blob, err := store.Open(ctx, "runs/v1/part-000001.seg")
			require.NoError(t, err)
			defer blob.Close()

			require.Equal(t, int64(len(data)), blob.Size())

			buf := make([]byte, 5)
			n, err := blob.ReadAt(buf, 6)
			require.NoError(t, err)
			require.Equal(t, 5, n)
			require.Equal(t, "world", string(buf))

			_, err = blob.ReadAt(buf, int64(len(data)))
			require.Equal(t, io.EOF, err)

			all, err := ReadAll(ctx, store, "runs/v1/part-000001.seg")
			require.NoError(t, err)
			require.Equal(t, data, all)
		})
	}
}

func TestBlobStore_PutReplaces(t *testing.T) {
	ctx := context.Background()

	for name, store := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, store.Put(ctx, "CURRENT", []byte("LEDGER-000001.bin")))
			require.NoError(t, store.Put(ctx, "CURRENT", []byte("LEDGER-000002.bin")))

			got, err := ReadAll(ctx, store, "CURRENT")
			require.NoError(t, err)
			assert.Equal(t, "LEDGER-000002.bin", string(got))
		})
	}
}

func TestBlobStore_ListDelete(t *testing.T) {
	ctx := context.Background()

	for name, store := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			for _, n := range []string{"snapshots/b.snap", "snapshots/a.snap", "runs/v1/part-000001.seg", "CURRENT"} {
				require.NoError(t, store.Put(ctx, n, []byte(n)))
			}

			names, err := store.List(ctx, "snapshots/")
			require.NoError(t, err)
			assert.Equal(t, []string{"snapshots/a.snap", "snapshots/b.snap"}, names)

			all, err := store.List(ctx, "")
			require.NoError(t, err)
			assert.Len(t, all, 4)

			require.NoError(t, store.Delete(ctx, "snapshots/a.snap"))
			require.NoError(t, store.Delete(ctx, "snapshots/a.snap"))

			_, err = store.Open(ctx, "snapshots/a.snap")
			assert.ErrorIs(t, err, ErrNotFound)

			names, err = store.List(ctx, "snapshots/")
			require.NoError(t, err)
			assert.Equal(t, []string{"snapshots/b.snap"}, names)
		})
	}
}

func TestBlobStore_EmptyBlob(t *testing.T) {
	ctx := context.Background()

	for name, store := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, store.Put(ctx, "empty", nil))
			got, err := ReadAll(ctx, store, "empty")
			require.NoError(t, err)
			assert.Empty(t, got)
		})
	}
}

func TestLocalStore_NoTempFilesLeft(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	store := NewLocalStore(dir)

	require.NoError(t, store.Put(ctx, "snapshots/s1.snap", []byte("x")))

	entries, err := os.ReadDir(filepath.Join(dir, "snapshots"))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "s1.snap", entries[0].Name())
}

func TestMemoryStore_CopiesInput(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	data := []byte("abc")
	require.NoError(t, store.Put(ctx, "k", data))
	data[0] = 'x'

	got, err := ReadAll(ctx, store, "k")
	require.NoError(t, err)
	assert.Equal(t, "abc", string(got))
	assert.Equal(t, 1, store.Len())
}
