package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/varanno/annotator"
	"github.com/hupe1980/varanno/internal/snapshot"
	"github.com/hupe1980/varanno/model"
	"github.com/hupe1980/varanno/query"
)

func TestSaveAnnotation_Immutable(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.annotate(t, "r1", query.All(), dummy("v1"), false)
	meta, err := f.m.SaveAnnotation(ctx, "s1", SaveOptions{})
	require.NoError(t, err)
	assert.Equal(t, "s1", meta.Name)
	assert.Equal(t, model.RunID("r1"), meta.RunID)
	assert.Equal(t, "v1", meta.Annotator.Version)
	assert.False(t, meta.CreatedAt.IsZero())

	before := collect(t, f.m.GetAnnotation(ctx, Snapshot("s1"), query.All(), ReadOptions{}))
	require.Len(t, before, len(testVariants))

	f.annotate(t, "r2", query.All(), dummy("v2"), true)
	f.annotate(t, "r3", region(t, "2"), dummy("v3"), true)
	_, err = f.m.SaveAnnotation(ctx, "s2", SaveOptions{})
	require.NoError(t, err)
	require.NoError(t, f.m.DeleteAnnotation(ctx, "s2"))
	_, err = f.m.Annotate(ctx, AnnotateRequest{RunID: "r4", Annotator: dummy("v4", "fail_after", "1"), Overwrite: true})
	require.Error(t, err)

	after := collect(t, f.m.GetAnnotation(ctx, Snapshot("s1"), query.All(), ReadOptions{}))
	assert.Equal(t, before, after)

	f.reopen(t)
	reloaded := collect(t, f.m.GetAnnotation(ctx, Snapshot("s1"), query.All(), ReadOptions{}))
	assert.Equal(t, before, reloaded)
}

func TestDeleteAnnotation_Isolation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.annotate(t, "r1", query.All(), dummy("v1"), false)
	_, err := f.m.SaveAnnotation(ctx, "s1", SaveOptions{})
	require.NoError(t, err)
	f.annotate(t, "r2", region(t, "1"), dummy("v1"), true)
	_, err = f.m.SaveAnnotation(ctx, "s2", SaveOptions{})
	require.NoError(t, err)

	current := collect(t, f.m.GetAnnotation(ctx, Current(), query.All(), ReadOptions{}))
	s2 := collect(t, f.m.GetAnnotation(ctx, Snapshot("s2"), query.All(), ReadOptions{}))

	require.NoError(t, f.m.DeleteAnnotation(ctx, "s1"))

	assert.Equal(t, current, collect(t, f.m.GetAnnotation(ctx, Current(), query.All(), ReadOptions{})))
	assert.Equal(t, s2, collect(t, f.m.GetAnnotation(ctx, Snapshot("s2"), query.All(), ReadOptions{})))

	for _, err := range f.m.GetAnnotation(ctx, Snapshot("s1"), query.All(), ReadOptions{}) {
		require.ErrorIs(t, err, snapshot.ErrSnapshotNotFound)
	}
	require.ErrorIs(t, f.m.DeleteAnnotation(ctx, "s1"), snapshot.ErrSnapshotNotFound)

	md, err := f.m.ProjectMetadata(ctx)
	require.NoError(t, err)
	_, ok := md.SavedByName("s1")
	assert.False(t, ok)
	_, ok = md.SavedByName("s2")
	assert.True(t, ok)
	assert.Len(t, f.m.Runs(), 2)
}

func TestSaveAnnotation_Duplicate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.annotate(t, "r1", region(t, "1"), dummy("v1"), false)
	_, err := f.m.SaveAnnotation(ctx, "s1", SaveOptions{})
	require.NoError(t, err)

	f.annotate(t, "r2", region(t, "2"), dummy("v1"), false)
	_, err = f.m.SaveAnnotation(ctx, "s1", SaveOptions{})
	require.ErrorIs(t, err, snapshot.ErrDuplicateSnapshotName)

	n, err := f.m.CountAnnotated(ctx, Snapshot("s1"), query.All())
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	_, err = f.m.SaveAnnotation(ctx, "s1", SaveOptions{Force: true})
	require.NoError(t, err)

	n, err = f.m.CountAnnotated(ctx, Snapshot("s1"), query.All())
	require.NoError(t, err)
	assert.Equal(t, int64(5), n)

	snaps, err := f.m.Snapshots(ctx)
	require.NoError(t, err)
	require.Len(t, snaps, 1)
}

func TestSaveAnnotation_BeforeAnyRun(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	meta, err := f.m.SaveAnnotation(ctx, "empty", SaveOptions{})
	require.NoError(t, err)
	assert.Empty(t, meta.RunID)

	n, err := f.m.CountAnnotated(ctx, Snapshot("empty"), query.All())
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, collect(t, f.m.GetAnnotation(ctx, Snapshot("empty"), query.All(), ReadOptions{})))
}

func TestSaveAnnotation_InvalidName(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for _, name := range []string{"", model.CurrentName, "a b", "../x"} {
		_, err := f.m.SaveAnnotation(ctx, name, SaveOptions{})
		require.ErrorIs(t, err, model.ErrInvalidName, name)
		require.ErrorIs(t, f.m.DeleteAnnotation(ctx, name), model.ErrInvalidName, name)
	}
}

func TestSaveAnnotation_IgnoresRunInFlight(t *testing.T) {
	d, err := annotator.NewDummy(annotator.DummyOptions{Name: "block", Version: "v1"})
	require.NoError(t, err)
	b := &blocking{Dummy: d, skip: 1, started: make(chan struct{}), release: make(chan struct{})}

	reg := annotator.DefaultRegistry()
	reg.Register("block", func(annotator.Config) (annotator.Annotator, error) { return b, nil })
	f := newFixture(t, WithRegistry(reg))
	ctx := context.Background()

	f.annotate(t, "r1", query.All(), dummy("v1"), false)

	errCh := make(chan error, 1)
	go func() {
		_, err := f.m.Annotate(ctx, AnnotateRequest{RunID: "r2", Annotator: annotator.Config{Engine: "block"}, Overwrite: true})
		errCh <- err
	}()
	<-b.started

	inFlight := collect(t, f.m.GetAnnotation(ctx, Current(), query.All(), ReadOptions{Limit: 1}))
	assert.Equal(t, model.RunID("r2"), inFlight[0].RunID)

	_, err = f.m.SaveAnnotation(ctx, "s1", SaveOptions{})
	require.NoError(t, err)

	close(b.release)
	require.NoError(t, <-errCh)

	for id, run := range owners(collect(t, f.m.GetAnnotation(ctx, Snapshot("s1"), query.All(), ReadOptions{}))) {
		assert.Equal(t, "r1", run, id)
	}
	for id, run := range owners(collect(t, f.m.GetAnnotation(ctx, Current(), query.All(), ReadOptions{}))) {
		assert.Equal(t, "r2", run, id)
	}
}

func TestSnapshots_Listing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for _, name := range []string{"b", "a", "c"} {
		_, err := f.m.SaveAnnotation(ctx, name, SaveOptions{})
		require.NoError(t, err)
	}

	snaps, err := f.m.Snapshots(ctx)
	require.NoError(t, err)
	names := make([]string, len(snaps))
	for i, s := range snaps {
		names[i] = s.Name
	}
	assert.Equal(t, []string{"a", "b", "c"}, names)
}
