package engine

import (
	"context"
	"iter"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/varanno/annotator"
	"github.com/hupe1980/varanno/blobstore"
	"github.com/hupe1980/varanno/metastore"
	"github.com/hupe1980/varanno/model"
	"github.com/hupe1980/varanno/query"
	"github.com/hupe1980/varanno/source"
)

const testProject = "proj"

var testVariants = []string{
	"1:100:A:C",
	"1:200:G:T",
	"1:300:C:G",
	"2:100:A:T",
	"2:250:T:C",
	"X:500:G:A",
}

func mustKeys(ids ...string) []model.VariantKey {
	out := make([]model.VariantKey, len(ids))
	for i, id := range ids {
		k, err := model.ParseVariantKey(id)
		if err != nil {
			panic(err)
		}
		out[i] = k
	}
	return out
}

type fixture struct {
	m     *Manager
	blobs *blobstore.MemoryStore
	meta  *metastore.Memory
	src   *source.Memory
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	f := &fixture{
		blobs: blobstore.NewMemoryStore(),
		meta:  metastore.NewMemory(),
		src:   source.NewMemory(mustKeys(testVariants...)...),
	}
	f.m = f.open(t, opts...)
	return f
}

func (f *fixture) open(t *testing.T, opts ...Option) *Manager {
	t.Helper()
	opts = append([]Option{WithMetadataStore(f.meta), WithBatchSize(2), WithCheckpointSize(3)}, opts...)
	m, err := Open(context.Background(), testProject, f.blobs, f.src, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close() })
	return m
}

// reopen closes the manager and opens a new one over the same stores.
func (f *fixture) reopen(t *testing.T, opts ...Option) {
	t.Helper()
	require.NoError(t, f.m.Close())
	f.m = f.open(t, opts...)
}

func dummy(version string, options ...string) annotator.Config {
	cfg := annotator.Config{Engine: annotator.EngineDummy, Name: "dummy", Version: version}
	if len(options) > 0 {
		cfg.Options = make(map[string]string, len(options)/2)
		for i := 0; i+1 < len(options); i += 2 {
			cfg.Options[options[i]] = options[i+1]
		}
	}
	return cfg
}

func (f *fixture) annotate(t *testing.T, id string, q query.Query, cfg annotator.Config, overwrite bool) RunSummary {
	t.Helper()
	s, err := f.m.Annotate(context.Background(), AnnotateRequest{
		RunID:     model.RunID(id),
		Query:     q,
		Annotator: cfg,
		Overwrite: overwrite,
	})
	require.NoError(t, err)
	return s
}

func collect(t *testing.T, seq iter.Seq2[model.Annotation, error]) []model.Annotation {
	t.Helper()
	var out []model.Annotation
	for a, err := range seq {
		require.NoError(t, err)
		out = append(out, a)
	}
	return out
}

func region(t *testing.T, s string) query.Query {
	t.Helper()
	q, err := query.Parse(s)
	require.NoError(t, err)
	return q
}

// owners maps variant ids to the run id stamped into their payload.
func owners(anns []model.Annotation) map[string]string {
	out := make(map[string]string, len(anns))
	for _, a := range anns {
		out[a.Key.String()] = a.Payload.Attribute(model.ProvenanceGroup, model.AttrAnnotationID)
	}
	return out
}

func TestOpen_Validation(t *testing.T) {
	ctx := context.Background()
	src := source.NewMemory()

	_, err := Open(ctx, "bad name", blobstore.NewMemoryStore(), src)
	require.ErrorIs(t, err, model.ErrInvalidName)

	_, err = Open(ctx, model.CurrentName, blobstore.NewMemoryStore(), src)
	require.ErrorIs(t, err, model.ErrInvalidName)

	_, err = Open(ctx, testProject, nil, src)
	require.Error(t, err)
}

func TestManager_Close(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.m.Close())
	require.ErrorIs(t, f.m.Close(), ErrClosed)

	_, err := f.m.Annotate(ctx, AnnotateRequest{RunID: "r1", Annotator: dummy("v1")})
	require.ErrorIs(t, err, ErrClosed)

	_, err = f.m.SaveAnnotation(ctx, "s1", SaveOptions{})
	require.ErrorIs(t, err, ErrClosed)

	_, err = f.m.CountAnnotated(ctx, Current(), query.All())
	require.ErrorIs(t, err, ErrClosed)

	for _, err := range f.m.GetAnnotation(ctx, Current(), query.All(), ReadOptions{}) {
		require.ErrorIs(t, err, ErrClosed)
	}
}

func TestManager_Stats(t *testing.T) {
	f := newFixture(t)
	f.annotate(t, "r1", query.All(), dummy("v1"), false)

	st := f.m.Stats()
	assert.Equal(t, len(testVariants), st.Store.Variants)
	assert.Equal(t, 1, st.Runs)
	assert.Equal(t, 1, st.CommittedRuns)
	assert.Equal(t, int64(0), st.ActiveRuns)
	assert.Positive(t, st.BytesWritten)
	assert.Positive(t, st.LedgerVersion)
}

func TestSelector(t *testing.T) {
	assert.True(t, Current().IsCurrent())
	assert.Equal(t, model.CurrentName, Current().Name())

	s, err := ParseSelector("")
	require.NoError(t, err)
	assert.True(t, s.IsCurrent())

	s, err = ParseSelector("CURRENT")
	require.NoError(t, err)
	assert.True(t, s.IsCurrent())

	s, err = ParseSelector("v1")
	require.NoError(t, err)
	assert.False(t, s.IsCurrent())
	assert.Equal(t, "v1", s.String())

	_, err = ParseSelector("no/slashes")
	require.ErrorIs(t, err, query.ErrInvalidQuery)
}
