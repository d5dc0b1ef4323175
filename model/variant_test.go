package model

import (
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseVariantKey(t *testing.T) {
	tests := []struct {
		in   string
		want VariantKey
	}{
		{"1:100:A:T", VariantKey{Chromosome: "1", Start: 100, End: 100, Reference: "A", Alternate: "T"}},
		{"6:79656570:G:A", VariantKey{Chromosome: "6", Start: 79656570, End: 79656570, Reference: "G", Alternate: "A"}},
		{"X:10:AC:-", VariantKey{Chromosome: "X", Start: 10, End: 11, Reference: "AC", Alternate: ""}},
		{"2:10-20:A:<DEL>", VariantKey{Chromosome: "2", Start: 10, End: 20, Reference: "A", Alternate: "<DEL>"}},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseVariantKey(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseVariantKey_Invalid(t *testing.T) {
	for _, in := range []string{"", "1:100:A", ":1:A:T", "1:abc:A:T", "1:0:A:T", "1:20-10:A:T"} {
		_, err := ParseVariantKey(in)
		assert.ErrorIs(t, err, ErrInvalidVariant, in)
	}
}

func TestVariantKey_StringRoundTrip(t *testing.T) {
	for _, in := range []string{"1:100:A:T", "X:10:AC:", "2:10-20:A:<DEL>"} {
		k, err := ParseVariantKey(in)
		require.NoError(t, err)
		back, err := ParseVariantKey(k.String())
		require.NoError(t, err)
		assert.Equal(t, k, back)
	}
}

func TestVariantKey_Compare(t *testing.T) {
	keys := []VariantKey{
		NewVariantKey("X", 5, "A", "T"),
		NewVariantKey("10", 5, "A", "T"),
		NewVariantKey("2", 7, "A", "T"),
		NewVariantKey("2", 5, "A", "G"),
		NewVariantKey("2", 5, "A", "C"),
		NewVariantKey("MT", 1, "A", "T"),
		NewVariantKey("1", 900, "A", "T"),
	}
	slices.SortFunc(keys, VariantKey.Compare)

	var got []string
	for _, k := range keys {
		got = append(got, k.String())
	}
	assert.Equal(t, []string{
		"1:900:A:T",
		"2:5:A:C",
		"2:5:A:G",
		"2:7:A:T",
		"10:5:A:T",
		"X:5:A:T",
		"MT:1:A:T",
	}, got)
}

func TestSameChromosome(t *testing.T) {
	assert.True(t, SameChromosome("chr1", "1"))
	assert.True(t, SameChromosome("M", "MT"))
	assert.False(t, SameChromosome("1", "11"))
}

func TestPayload_CloneIsDeep(t *testing.T) {
	p := &Payload{
		ID:               "x",
		ConsequenceTypes: []ConsequenceType{{GeneName: "BRCA2", SequenceOntologyTerms: []string{"SO:1"}}},
		Xrefs:            []Xref{{ID: "rs1", Source: "dbSNP"}},
	}
	p.SetAttribute(ProvenanceGroup, AttrAnnotationID, "r1")

	c := p.Clone()
	c.ConsequenceTypes[0].SequenceOntologyTerms[0] = "SO:2"
	c.Xrefs[0].ID = "rs2"
	c.SetAttribute(ProvenanceGroup, AttrAnnotationID, "r2")

	assert.Equal(t, "SO:1", p.ConsequenceTypes[0].SequenceOntologyTerms[0])
	assert.Equal(t, "rs1", p.Xrefs[0].ID)
	assert.Equal(t, RunID("r1"), p.AnnotationID())
	assert.Equal(t, RunID("r2"), c.AnnotationID())
}

func TestValidateName(t *testing.T) {
	require.NoError(t, ValidateName("v1"))
	require.NoError(t, ValidateName("2024-01-01_cellbase.v5"))
	assert.ErrorIs(t, ValidateName(CurrentName), ErrInvalidName)
	assert.ErrorIs(t, ValidateName(""), ErrInvalidName)
	assert.ErrorIs(t, ValidateName("../etc"), ErrInvalidName)
	assert.ErrorIs(t, ValidateName("a/b"), ErrInvalidName)
}

func TestProjectMetadata_Saved(t *testing.T) {
	var m ProjectMetadata
	m.PutSaved(AnnotationMetadata{Name: "v1", RunID: "r1"})
	m.PutSaved(AnnotationMetadata{Name: "v2", RunID: "r2"})
	m.PutSaved(AnnotationMetadata{Name: "v1", RunID: "r3"})

	require.Len(t, m.Saved, 2)
	s, ok := m.SavedByName("v1")
	require.True(t, ok)
	assert.Equal(t, RunID("r3"), s.RunID)

	c := m.Clone()
	assert.True(t, c.RemoveSaved("v1"))
	assert.False(t, c.RemoveSaved("v1"))
	assert.Len(t, m.Saved, 2)
}
