package model

import (
	"slices"
	"time"
)

// AnnotationMetadata describes one annotation set: the current view or a saved
// snapshot.
type AnnotationMetadata struct {
	Name      string    `json:"name"`
	RunID     RunID     `json:"runId,omitempty"`
	Annotator Identity  `json:"annotator"`
	CreatedAt time.Time `json:"createdAt"`
}

// ProjectMetadata is the project-level annotation record kept in the metadata
// store. It is passed explicitly in and out of the engine; there is no
// process-wide copy.
type ProjectMetadata struct {
	Project  string               `json:"project"`
	Revision uint64               `json:"revision"`
	Current  AnnotationMetadata   `json:"current"`
	Saved    []AnnotationMetadata `json:"saved,omitempty"`
}

// SavedByName returns the saved annotation entry with the given name.
func (m *ProjectMetadata) SavedByName(name string) (AnnotationMetadata, bool) {
	for _, s := range m.Saved {
		if s.Name == name {
			return s, true
		}
	}
	return AnnotationMetadata{}, false
}

// PutSaved adds or replaces a saved annotation entry.
func (m *ProjectMetadata) PutSaved(am AnnotationMetadata) {
	m.RemoveSaved(am.Name)
	m.Saved = append(m.Saved, am)
}

// RemoveSaved drops the saved annotation entry with the given name.
func (m *ProjectMetadata) RemoveSaved(name string) bool {
	n := len(m.Saved)
	m.Saved = slices.DeleteFunc(m.Saved, func(s AnnotationMetadata) bool { return s.Name == name })
	return len(m.Saved) != n
}

// Clone returns a deep copy.
func (m ProjectMetadata) Clone() ProjectMetadata {
	m.Saved = slices.Clone(m.Saved)
	return m
}
