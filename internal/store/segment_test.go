package store

import (
	"context"
	"testing"

	"github.com/hupe1980/varanno/blobstore"
	"github.com/hupe1980/varanno/codec"
	"github.com/hupe1980/varanno/internal/compress"
	"github.com/hupe1980/varanno/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSegment_EncodeDecode(t *testing.T) {
	for _, ct := range []compress.Type{compress.None, compress.LZ4, compress.ZSTD} {
		t.Run(ct.String(), func(t *testing.T) {
			seg := Segment{
				Run:  "v1",
				Part: 3,
				Records: []record{
					{Key: k1, Payload: payloadFor("v1", k1)},
					{Key: k2, Payload: payloadFor("v1", k2)},
				},
			}
			data, err := encodeSegment(codec.GoJSON{}, ct, seg)
			require.NoError(t, err)

			got, err := decodeSegment(data)
			require.NoError(t, err)
			assert.Equal(t, seg, got)
		})
	}
}

func TestSegment_DecodeCorrupt(t *testing.T) {
	data, err := encodeSegment(codec.JSON{}, compress.LZ4, Segment{Run: "v1", Part: 1})
	require.NoError(t, err)

	data[len(data)-1] ^= 0xff
	_, err = decodeSegment(data)
	assert.ErrorIs(t, err, ErrCorrupt)
}

func TestStore_CheckpointParts(t *testing.T) {
	ctx := context.Background()
	s := New(blobstore.NewMemoryStore(), Options{})
	require.NoError(t, s.Begin("v1"))

	name, err := s.Checkpoint(ctx, "v1")
	require.NoError(t, err)
	assert.Empty(t, name)

	require.NoError(t, s.Put("v1", k1, payloadFor("v1", k1)))
	name, err = s.Checkpoint(ctx, "v1")
	require.NoError(t, err)
	assert.Equal(t, PartName("v1", 1), name)

	require.NoError(t, s.Put("v1", k2, payloadFor("v1", k2)))
	name, err = s.Checkpoint(ctx, "v1")
	require.NoError(t, err)
	assert.Equal(t, PartName("v1", 2), name)

	assert.Equal(t, []string{PartName("v1", 1), PartName("v1", 2)}, s.Parts("v1"))
}

func TestStore_LoadReplaysCommittedRuns(t *testing.T) {
	ctx := context.Background()
	blobs := blobstore.NewMemoryStore()

	s := New(blobs, Options{Compression: compress.LZ4})
	writeRun(t, s, "v1", 1, k1, k2, k3)
	writeRun(t, s, "v2", 2, k1)

	// An aborted run whose segments were never cleaned up must not be loaded.
	require.NoError(t, s.Begin("v3"))
	require.NoError(t, s.Put("v3", k2, payloadFor("v3", k2)))
	_, err := s.Checkpoint(ctx, "v3")
	require.NoError(t, err)

	records := []*model.RunRecord{
		// Deliberately out of commit order.
		{ID: "v2", State: model.RunCommitted, Seq: 2, Parts: s.Parts("v2")},
		{ID: "v1", State: model.RunCommitted, Seq: 1, Parts: s.Parts("v1")},
		{ID: "v3", State: model.RunAborted, Parts: s.Parts("v3")},
	}

	reopened := New(blobs, Options{})
	require.NoError(t, reopened.Load(ctx, records))

	a, ok := reopened.Latest(k1)
	require.True(t, ok)
	assert.Equal(t, model.RunID("v2"), a.RunID)

	a, ok = reopened.Latest(k2)
	require.True(t, ok)
	assert.Equal(t, model.RunID("v1"), a.RunID)

	p, ok := reopened.AtRun("v1", k1)
	require.True(t, ok)
	assert.Equal(t, "an id -- v1", p.ID)

	assert.Equal(t, Stats{Variants: 3, Versions: 4, Runs: 2}, reopened.Stats())
}

func TestStore_LoadMissingPart(t *testing.T) {
	s := New(blobstore.NewMemoryStore(), Options{})
	err := s.Load(context.Background(), []*model.RunRecord{
		{ID: "v1", State: model.RunCommitted, Seq: 1, Parts: []string{PartName("v1", 1)}},
	})
	assert.ErrorIs(t, err, ErrCorrupt)
}
