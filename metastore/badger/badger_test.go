package badger

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/varanno/model"
)

func openInMemory(t *testing.T) *Store {
	t.Helper()
	s, err := Open(InMemoryConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStore_GetUnknown(t *testing.T) {
	s := openInMemory(t)
	md, err := s.Get(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, "p1", md.Project)
	assert.Zero(t, md.Revision)
}

func TestStore_Update(t *testing.T) {
	ctx := context.Background()
	s := openInMemory(t)

	md, err := s.Update(ctx, "p1", func(md *model.ProjectMetadata) error {
		md.Current = model.AnnotationMetadata{
			Name:      model.CurrentName,
			RunID:     "v1",
			Annotator: model.Identity{Name: "dummy", Version: "1"},
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(1), md.Revision)

	got, err := s.Get(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, md, got)

	boom := errors.New("boom")
	_, err = s.Update(ctx, "p1", func(md *model.ProjectMetadata) error {
		md.Current.RunID = "v2"
		return boom
	})
	assert.ErrorIs(t, err, boom)

	got, err = s.Get(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, model.RunID("v1"), got.Current.RunID)
}

func TestStore_ConcurrentUpdates(t *testing.T) {
	ctx := context.Background()
	s := openInMemory(t)

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Update(ctx, "p1", func(*model.ProjectMetadata) error { return nil })
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	got, err := s.Get(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, uint64(8), got.Revision)
}

func TestStore_Persistent(t *testing.T) {
	ctx := context.Background()
	cfg := DefaultConfig()
	cfg.Path = t.TempDir()
	cfg.SyncWrites = false

	s, err := Open(cfg)
	require.NoError(t, err)
	_, err = s.Update(ctx, "p1", func(md *model.ProjectMetadata) error {
		md.PutSaved(model.AnnotationMetadata{Name: "s1", RunID: "v1"})
		return nil
	})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = Open(cfg)
	require.NoError(t, err)
	defer s.Close()

	got, err := s.Get(ctx, "p1")
	require.NoError(t, err)
	saved, ok := got.SavedByName("s1")
	require.True(t, ok)
	assert.Equal(t, model.RunID("v1"), saved.RunID)
}

func TestOpen_RequiresPath(t *testing.T) {
	_, err := Open(DefaultConfig())
	assert.Error(t, err)
}
