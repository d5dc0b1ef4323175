package query

import (
	"fmt"
	"maps"
	"slices"

	"github.com/hupe1980/varanno/model"
)

// Projectable payload fields. Key fields (chromosome, start, end, reference,
// alternate) are always returned.
const (
	FieldID                   = "id"
	FieldConsequenceTypes     = "consequenceTypes"
	FieldFunctionalScore      = "functionalScore"
	FieldXrefs                = "xrefs"
	FieldAdditionalAttributes = "additionalAttributes"
)

// Fields lists every projectable field.
var Fields = []string{
	FieldID,
	FieldConsequenceTypes,
	FieldFunctionalScore,
	FieldXrefs,
	FieldAdditionalAttributes,
}

// Projection restricts the payload fields returned by a read.
// At most one of Include and Exclude may be set.
type Projection struct {
	Include []string `json:"include,omitempty"`
	Exclude []string `json:"exclude,omitempty"`
}

// Include returns a projection keeping only the given fields.
func Include(fields ...string) Projection { return Projection{Include: fields} }

// Exclude returns a projection dropping the given fields.
func Exclude(fields ...string) Projection { return Projection{Exclude: fields} }

// IsZero reports whether the projection returns full payloads.
func (p Projection) IsZero() bool {
	return len(p.Include) == 0 && len(p.Exclude) == 0
}

// Validate rejects unknown fields and include+exclude combinations.
func (p Projection) Validate() error {
	if len(p.Include) > 0 && len(p.Exclude) > 0 {
		return fmt.Errorf("%w: include and exclude are mutually exclusive", ErrInvalidQuery)
	}
	for _, f := range slices.Concat(p.Include, p.Exclude) {
		if !slices.Contains(Fields, f) {
			return fmt.Errorf("%w: unknown field %q", ErrInvalidQuery, f)
		}
	}
	return nil
}

func (p Projection) keeps(field string) bool {
	if len(p.Include) > 0 {
		return slices.Contains(p.Include, field)
	}
	return !slices.Contains(p.Exclude, field)
}

// Apply returns a new payload holding only the projected fields. The input is
// never modified and the result shares no memory with it.
func (p Projection) Apply(in *model.Payload) *model.Payload {
	if in == nil {
		return nil
	}
	if p.IsZero() {
		return in.Clone()
	}

	full := in.Clone()
	out := &model.Payload{}
	out.SetKey(in.Key())

	if p.keeps(FieldID) {
		out.ID = full.ID
	}
	if p.keeps(FieldConsequenceTypes) {
		out.ConsequenceTypes = full.ConsequenceTypes
	}
	if p.keeps(FieldFunctionalScore) {
		out.FunctionalScore = full.FunctionalScore
	}
	if p.keeps(FieldXrefs) {
		out.Xrefs = full.Xrefs
	}
	if p.keeps(FieldAdditionalAttributes) && full.AdditionalAttributes != nil {
		out.AdditionalAttributes = maps.Clone(full.AdditionalAttributes)
	}
	return out
}
