package codec

import (
	"testing"

	"github.com/hupe1980/varanno/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestByName(t *testing.T) {
	for _, name := range []string{"json", "go-json"} {
		c, ok := ByName(name)
		require.True(t, ok)
		assert.Equal(t, name, c.Name())
	}

	_, ok := ByName("msgpack")
	assert.False(t, ok)

	_, err := MustByName("msgpack")
	assert.ErrorContains(t, err, "msgpack")
}

func TestCodecsShareWireFormat(t *testing.T) {
	p := &model.Payload{
		ID:              "rs123",
		FunctionalScore: []model.Score{{Source: "cadd_raw", Score: 1.5}},
	}
	p.SetKey(model.NewVariantKey("1", 100, "A", "G"))
	p.SetAttribute(model.ProvenanceGroup, model.AttrAnnotationID, "v1")

	data := MustMarshal(GoJSON{}, p)

	var got model.Payload
	require.NoError(t, JSON{}.Unmarshal(data, &got))
	assert.Equal(t, p, &got)
}
