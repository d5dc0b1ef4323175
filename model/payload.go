package model

import "maps"

// Provenance attributes stamped into every stored payload.
const (
	ProvenanceGroup      = "varanno"
	AttrAnnotationID     = "annotationId"
	AttrAnnotator        = "annotator"
	AttrAnnotatorVersion = "annotatorVersion"
	AttrAnnotatorDataRel = "dataRelease"
	AttrExtensions       = "extensions"
)

// Attributes is a free-form string bag.
type Attributes map[string]string

// ConsequenceType describes the effect of a variant on one transcript.
type ConsequenceType struct {
	GeneName              string   `json:"geneName,omitempty"`
	EnsemblGeneID         string   `json:"ensemblGeneId,omitempty"`
	EnsemblTranscriptID   string   `json:"ensemblTranscriptId,omitempty"`
	Biotype               string   `json:"biotype,omitempty"`
	SequenceOntologyTerms []string `json:"sequenceOntologyTerms,omitempty"`
}

// Score is a functional or conservation score.
type Score struct {
	Source      string  `json:"source"`
	Score       float64 `json:"score"`
	Description string  `json:"description,omitempty"`
}

// Xref is a cross reference to an external database.
type Xref struct {
	ID     string `json:"id"`
	Source string `json:"source"`
}

// Payload is the annotation computed for one variant. The store treats it as
// opaque except for the key fields, which are used for region filtering.
type Payload struct {
	ID         string `json:"id,omitempty"`
	Chromosome string `json:"chromosome"`
	Start      int    `json:"start"`
	End        int    `json:"end"`
	Reference  string `json:"reference"`
	Alternate  string `json:"alternate"`

	ConsequenceTypes     []ConsequenceType     `json:"consequenceTypes,omitempty"`
	FunctionalScore      []Score               `json:"functionalScore,omitempty"`
	Xrefs                []Xref                `json:"xrefs,omitempty"`
	AdditionalAttributes map[string]Attributes `json:"additionalAttributes,omitempty"`
}

// Key returns the variant key encoded in the payload.
func (p *Payload) Key() VariantKey {
	return VariantKey{
		Chromosome: p.Chromosome,
		Start:      p.Start,
		End:        p.End,
		Reference:  p.Reference,
		Alternate:  p.Alternate,
	}
}

// SetKey overwrites the key fields.
func (p *Payload) SetKey(k VariantKey) {
	p.Chromosome = k.Chromosome
	p.Start = k.Start
	p.End = k.End
	p.Reference = k.Reference
	p.Alternate = k.Alternate
}

// Attribute returns the value stored under group/key.
func (p *Payload) Attribute(group, key string) string {
	if p.AdditionalAttributes == nil {
		return ""
	}
	return p.AdditionalAttributes[group][key]
}

// SetAttribute stores value under group/key.
func (p *Payload) SetAttribute(group, key, value string) {
	if p.AdditionalAttributes == nil {
		p.AdditionalAttributes = make(map[string]Attributes)
	}
	attrs := p.AdditionalAttributes[group]
	if attrs == nil {
		attrs = make(Attributes)
		p.AdditionalAttributes[group] = attrs
	}
	attrs[key] = value
}

// AnnotationID returns the run id recorded as provenance.
func (p *Payload) AnnotationID() RunID {
	return RunID(p.Attribute(ProvenanceGroup, AttrAnnotationID))
}

// Clone returns a deep copy.
func (p *Payload) Clone() *Payload {
	if p == nil {
		return nil
	}
	c := *p
	if p.ConsequenceTypes != nil {
		c.ConsequenceTypes = make([]ConsequenceType, len(p.ConsequenceTypes))
		for i, ct := range p.ConsequenceTypes {
			ct.SequenceOntologyTerms = append([]string(nil), ct.SequenceOntologyTerms...)
			c.ConsequenceTypes[i] = ct
		}
	}
	if p.FunctionalScore != nil {
		c.FunctionalScore = append([]Score(nil), p.FunctionalScore...)
	}
	if p.Xrefs != nil {
		c.Xrefs = append([]Xref(nil), p.Xrefs...)
	}
	if p.AdditionalAttributes != nil {
		c.AdditionalAttributes = make(map[string]Attributes, len(p.AdditionalAttributes))
		for g, attrs := range p.AdditionalAttributes {
			c.AdditionalAttributes[g] = maps.Clone(attrs)
		}
	}
	return &c
}

// Annotation is one row of a query result: the payload owned by RunID for Key.
type Annotation struct {
	Key     VariantKey `json:"key"`
	RunID   RunID      `json:"runId"`
	Payload *Payload   `json:"payload"`
}
