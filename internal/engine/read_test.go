package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/varanno/internal/ledger"
	"github.com/hupe1980/varanno/internal/snapshot"
	"github.com/hupe1980/varanno/model"
	"github.com/hupe1980/varanno/query"
)

func TestGetAnnotation_VersionedHistory(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.annotate(t, "v1", query.All(), dummy("v1"), false)
	_, err := f.m.SaveAnnotation(ctx, "v1", SaveOptions{})
	require.NoError(t, err)

	f.annotate(t, "v2", query.All(), dummy("v2"), true)
	_, err = f.m.SaveAnnotation(ctx, "v2", SaveOptions{})
	require.NoError(t, err)

	f.annotate(t, "v3", region(t, "1"), dummy("v3"), true)

	check := func(sel Selector, q query.Query, want string) {
		t.Helper()
		anns := collect(t, f.m.GetAnnotation(ctx, sel, q, ReadOptions{}))
		require.NotEmpty(t, anns)
		for _, a := range anns {
			assert.Equal(t, model.RunID(want), a.RunID, "%s %s", sel, a.Key)
			assert.Equal(t, want, a.Payload.Attribute("dummy", "version"))
		}
	}

	check(Current(), region(t, "1"), "v3")
	check(Current(), region(t, "2"), "v2")
	check(Snapshot("v1"), region(t, "1"), "v1")
	check(Snapshot("v1"), region(t, "2"), "v1")
	check(Snapshot("v2"), region(t, "1"), "v2")

	md, err := f.m.ProjectMetadata(ctx)
	require.NoError(t, err)
	assert.Equal(t, model.RunID("v2"), md.Current.RunID)
}

func TestGetAnnotation_FullRunOwnsEveryVariant(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.annotate(t, "r1", region(t, "1,X"), dummy("v1"), false)
	f.annotate(t, "r2", query.All(), dummy("v1"), true)

	got := owners(collect(t, f.m.GetAnnotation(ctx, Current(), query.All(), ReadOptions{})))
	require.Len(t, got, len(testVariants))
	for _, id := range testVariants {
		assert.Equal(t, "r2", got[id], id)
	}
}

func TestGetAnnotation_PartialRunMixing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.annotate(t, "r1", query.All(), dummy("v1"), false)
	f.annotate(t, "r2", region(t, "2"), dummy("v1"), true)

	for id, run := range owners(collect(t, f.m.GetAnnotation(ctx, Current(), region(t, "2"), ReadOptions{}))) {
		assert.Equal(t, "r2", run, id)
	}
	for id, run := range owners(collect(t, f.m.GetAnnotation(ctx, Current(), region(t, "1,X"), ReadOptions{}))) {
		assert.Equal(t, "r1", run, id)
	}

	byID := owners(collect(t, f.m.GetAnnotation(ctx, Current(), query.All(), ReadOptions{})))
	assert.Equal(t, map[string]string{
		"1:100:A:C": "r1",
		"1:200:G:T": "r1",
		"1:300:C:G": "r1",
		"2:100:A:T": "r2",
		"2:250:T:C": "r2",
		"X:500:G:A": "r1",
	}, byID)
}

func TestGetAnnotation_IDQuery(t *testing.T) {
	f := newFixture(t)
	f.annotate(t, "r1", query.All(), dummy("v1"), false)

	q, err := query.ParseIDs("2:250:T:C,1:100:A:C,9:1:A:T")
	require.NoError(t, err)

	anns := collect(t, f.m.GetAnnotation(context.Background(), Current(), q, ReadOptions{}))
	require.Len(t, anns, 2)
	assert.Equal(t, "1:100:A:C", anns[0].Key.String())
	assert.Equal(t, "2:250:T:C", anns[1].Key.String())
}

func TestGetAnnotation_Pagination(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.annotate(t, "r1", query.All(), dummy("v1"), false)
	_, err := f.m.SaveAnnotation(ctx, "s1", SaveOptions{})
	require.NoError(t, err)

	for _, sel := range []Selector{Current(), Snapshot("s1")} {
		count, err := f.m.CountAnnotated(ctx, sel, query.All())
		require.NoError(t, err)
		require.Equal(t, int64(len(testVariants)), count)

		for limit := 1; limit <= len(testVariants)+1; limit++ {
			var got []string
			pages := (int(count) + limit - 1) / limit
			for i := 0; i <= pages; i++ {
				for _, a := range collect(t, f.m.GetAnnotation(ctx, sel, query.All(), ReadOptions{Limit: limit, Skip: i * limit})) {
					got = append(got, a.Key.String())
				}
			}
			assert.Equal(t, testVariants, got, "%s limit %d", sel, limit)
		}
	}
}

func payloadField(p *model.Payload, field string) any {
	switch field {
	case query.FieldID:
		return p.ID
	case query.FieldConsequenceTypes:
		return p.ConsequenceTypes
	case query.FieldFunctionalScore:
		return p.FunctionalScore
	case query.FieldXrefs:
		return p.Xrefs
	case query.FieldAdditionalAttributes:
		return p.AdditionalAttributes
	}
	panic("unknown field " + field)
}

func TestGetAnnotation_Projection(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.annotate(t, "r1", query.All(), dummy("v1"), false)

	first := func(p query.Projection) *model.Payload {
		anns := collect(t, f.m.GetAnnotation(ctx, Current(), query.All(), ReadOptions{Projection: p, Limit: 1}))
		require.Len(t, anns, 1)
		return anns[0].Payload
	}
	full := first(query.Projection{})

	for _, field := range query.Fields {
		t.Run(field, func(t *testing.T) {
			inc := first(query.Include(field))
			exc := first(query.Exclude(field))

			assert.Equal(t, full.Key(), inc.Key())
			assert.Equal(t, full.Key(), exc.Key())
			for _, other := range query.Fields {
				if other == field {
					assert.Equal(t, payloadField(full, other), payloadField(inc, other))
					assert.Empty(t, payloadField(exc, other))
					continue
				}
				assert.Empty(t, payloadField(inc, other), other)
				assert.Equal(t, payloadField(full, other), payloadField(exc, other), other)
			}
		})
	}
}

func TestGetAnnotation_ProjectionDoesNotLeak(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.annotate(t, "r1", query.All(), dummy("v1"), false)

	anns := collect(t, f.m.GetAnnotation(ctx, Current(), query.All(), ReadOptions{Limit: 1}))
	anns[0].Payload.Xrefs[0].ID = "changed"
	anns[0].Payload.SetAttribute(model.ProvenanceGroup, model.AttrAnnotationID, "changed")

	again := collect(t, f.m.GetAnnotation(ctx, Current(), query.All(), ReadOptions{Limit: 1}))
	assert.Equal(t, "rs100", again[0].Payload.Xrefs[0].ID)
	assert.Equal(t, "r1", again[0].Payload.Attribute(model.ProvenanceGroup, model.AttrAnnotationID))
}

func TestGetAnnotation_Errors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tests := []struct {
		name string
		sel  Selector
		q    query.Query
		opts ReadOptions
		want error
	}{
		{"missing snapshot", Snapshot("nope"), query.All(), ReadOptions{}, snapshot.ErrSnapshotNotFound},
		{"bad region", Current(), query.ForRegions(query.Region{Chromosome: "1", Start: 10, End: 5}), ReadOptions{}, query.ErrInvalidQuery},
		{"negative limit", Current(), query.All(), ReadOptions{Limit: -1}, query.ErrInvalidQuery},
		{"negative skip", Current(), query.All(), ReadOptions{Skip: -1}, query.ErrInvalidQuery},
		{"include and exclude", Current(), query.All(), ReadOptions{Projection: query.Projection{Include: []string{query.FieldID}, Exclude: []string{query.FieldXrefs}}}, query.ErrInvalidQuery},
		{"unknown field", Current(), query.All(), ReadOptions{Projection: query.Include("nope")}, query.ErrInvalidQuery},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var errs []error
			for _, err := range f.m.GetAnnotation(ctx, tt.sel, tt.q, tt.opts) {
				errs = append(errs, err)
			}
			require.Len(t, errs, 1)
			require.ErrorIs(t, errs[0], tt.want)
		})
	}

	_, err := f.m.CountAnnotated(ctx, Snapshot("nope"), query.All())
	require.ErrorIs(t, err, snapshot.ErrSnapshotNotFound)
}

func TestCountAnnotated(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	n, err := f.m.CountAnnotated(ctx, Current(), query.All())
	require.NoError(t, err)
	assert.Zero(t, n)

	f.annotate(t, "r1", region(t, "1"), dummy("v1"), false)

	n, err = f.m.CountAnnotated(ctx, Current(), query.All())
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	n, err = f.m.CountAnnotated(ctx, Current(), region(t, "1:150-300"))
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	n, err = f.m.CountAnnotated(ctx, Current(), region(t, "2"))
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestRunAnnotations(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.annotate(t, "r1", query.All(), dummy("v1"), false)
	f.annotate(t, "r2", region(t, "2"), dummy("v1"), true)
	_, err := f.m.Annotate(ctx, AnnotateRequest{RunID: "r3", Annotator: dummy("v1", "fail", "true"), Overwrite: true})
	require.Error(t, err)

	// r1 still reports what it wrote for chromosome 2, now owned by r2.
	anns := collect(t, f.m.RunAnnotations(ctx, "r1", query.All(), ReadOptions{}))
	require.Len(t, anns, len(testVariants))
	for i, a := range anns {
		assert.Equal(t, testVariants[i], a.Key.String())
		assert.Equal(t, model.RunID("r1"), a.RunID)
		assert.Equal(t, "r1", a.Payload.Attribute(model.ProvenanceGroup, model.AttrAnnotationID))
	}

	anns = collect(t, f.m.RunAnnotations(ctx, "r2", query.All(), ReadOptions{Limit: 1}))
	require.Len(t, anns, 1)
	assert.Equal(t, "2:100:A:T", anns[0].Key.String())

	anns = collect(t, f.m.RunAnnotations(ctx, "r1", region(t, "X"), ReadOptions{}))
	require.Len(t, anns, 1)
	assert.Equal(t, "X:500:G:A", anns[0].Key.String())

	assert.Empty(t, collect(t, f.m.RunAnnotations(ctx, "r3", query.All(), ReadOptions{})))

	// The history survives a restart.
	f.reopen(t)
	anns = collect(t, f.m.RunAnnotations(ctx, "r1", region(t, "2"), ReadOptions{}))
	require.Len(t, anns, 2)

	var errs []error
	for _, err := range f.m.RunAnnotations(ctx, "missing", query.All(), ReadOptions{}) {
		errs = append(errs, err)
	}
	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], ledger.ErrRunNotFound)
}
