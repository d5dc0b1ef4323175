package query

import (
	"testing"

	"github.com/hupe1980/varanno/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fullPayload() *model.Payload {
	p := &model.Payload{
		ID:               "an id",
		ConsequenceTypes: []model.ConsequenceType{{GeneName: "TP53", SequenceOntologyTerms: []string{"missense_variant"}}},
		FunctionalScore:  []model.Score{{Source: "cadd_scaled", Score: 23.1}},
		Xrefs:            []model.Xref{{ID: "rs1", Source: "dbSNP"}},
	}
	p.SetKey(model.NewVariantKey("17", 7579472, "G", "C"))
	p.SetAttribute(model.ProvenanceGroup, model.AttrAnnotationID, "v1")
	return p
}

func TestProjection_Validate(t *testing.T) {
	assert.NoError(t, Projection{}.Validate())
	assert.NoError(t, Include(FieldXrefs).Validate())
	assert.ErrorIs(t, Include("nope").Validate(), ErrInvalidQuery)
	assert.ErrorIs(t, Projection{Include: []string{FieldID}, Exclude: []string{FieldXrefs}}.Validate(), ErrInvalidQuery)
}

func TestProjection_IncludeExcludePartition(t *testing.T) {
	in := fullPayload()

	for _, f := range Fields {
		t.Run(f, func(t *testing.T) {
			inc := Include(f).Apply(in)
			exc := Exclude(f).Apply(in)

			// Key fields are kept on both sides.
			assert.Equal(t, in.Key(), inc.Key())
			assert.Equal(t, in.Key(), exc.Key())

			// Merging both halves restores the full payload.
			merged := exc.Clone()
			switch f {
			case FieldID:
				assert.Empty(t, exc.ID)
				merged.ID = inc.ID
			case FieldConsequenceTypes:
				assert.Empty(t, exc.ConsequenceTypes)
				merged.ConsequenceTypes = inc.ConsequenceTypes
			case FieldFunctionalScore:
				assert.Empty(t, exc.FunctionalScore)
				merged.FunctionalScore = inc.FunctionalScore
			case FieldXrefs:
				assert.Empty(t, exc.Xrefs)
				merged.Xrefs = inc.Xrefs
			case FieldAdditionalAttributes:
				assert.Empty(t, exc.AdditionalAttributes)
				merged.AdditionalAttributes = inc.AdditionalAttributes
			}
			assert.Equal(t, in, merged)

			// Include keeps nothing but f.
			only := Include(f).Apply(in)
			rest := Exclude(Fields...).Apply(in)
			only2 := only.Clone()
			only2.ID, only2.ConsequenceTypes, only2.FunctionalScore, only2.Xrefs, only2.AdditionalAttributes = "", nil, nil, nil, nil
			assert.Equal(t, rest, only2)
		})
	}
}

func TestProjection_ApplyDoesNotShareMemory(t *testing.T) {
	in := fullPayload()
	out := Projection{}.Apply(in)
	out.ConsequenceTypes[0].GeneName = "changed"
	out.SetAttribute(model.ProvenanceGroup, model.AttrAnnotationID, "other")

	require.Equal(t, "TP53", in.ConsequenceTypes[0].GeneName)
	require.Equal(t, model.RunID("v1"), in.AnnotationID())
}
