package observability

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/varanno"
	"github.com/hupe1980/varanno/annotator"
	"github.com/hupe1980/varanno/blobstore"
	"github.com/hupe1980/varanno/model"
	"github.com/hupe1980/varanno/query"
	"github.com/hupe1980/varanno/source"
)

func TestPrometheusCollector_Record(t *testing.T) {
	reg := prometheus.NewRegistry()
	c, err := NewPrometheusCollector(reg)
	require.NoError(t, err)

	c.RecordRun("committed", 5, 0, nil)
	c.RecordRun("aborted", 3, 0, errors.New("boom"))
	c.RecordBatch(4, 1, 0, nil)
	c.RecordCheckpoint(0, nil)
	c.RecordSnapshot(7, 0, nil)
	c.RecordDeleteSnapshot(0, errors.New("missing"))
	c.RecordQuery(2, 0, nil)

	assert.Equal(t, 1.0, testutil.ToFloat64(c.runs.WithLabelValues("committed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.runs.WithLabelValues("aborted")))
	assert.Equal(t, 5.0, testutil.ToFloat64(c.annotated))
	assert.Equal(t, 4.0, testutil.ToFloat64(c.variants))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.skipped))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.checkpoints.WithLabelValues("success")))
	assert.Equal(t, 7.0, testutil.ToFloat64(c.entries))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.snapshots.WithLabelValues("delete", "error")))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.results))
	assert.Equal(t, 7, testutil.CollectAndCount(c.opLatency))
}

func TestPrometheusCollector_DuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := NewPrometheusCollector(reg)
	require.NoError(t, err)

	_, err = NewPrometheusCollector(reg)
	var are prometheus.AlreadyRegisteredError
	require.ErrorAs(t, err, &are)
}

func TestPrometheusCollector_WithDB(t *testing.T) {
	ctx := context.Background()
	c, err := NewPrometheusCollector(prometheus.NewRegistry())
	require.NoError(t, err)

	src := source.NewMemory()
	for _, id := range []string{"1:100:A:C", "1:200:G:T"} {
		k, err := model.ParseVariantKey(id)
		require.NoError(t, err)
		src.Add(k)
	}

	db, err := varanno.Open(ctx, "proj", blobstore.NewMemoryStore(), src, varanno.WithMetricsCollector(c))
	require.NoError(t, err)
	defer db.Close()

	_, err = db.Annotate(ctx, varanno.AnnotateRequest{
		Query:     query.All(),
		Annotator: annotator.Config{Engine: annotator.EngineDummy, Name: "k1", Version: "v1"},
	})
	require.NoError(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(c.runs.WithLabelValues("committed")))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.annotated))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.variants))
}
