package model

import (
	"errors"
	"fmt"
	"regexp"
	"slices"
	"strings"
	"time"
)

// CurrentName is the reserved selector for the live annotation view.
const CurrentName = "CURRENT"

// ErrInvalidName is returned for malformed run ids or snapshot names.
var ErrInvalidName = errors.New("invalid name")

var namePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]{0,127}$`)

// ValidateName checks a run id or snapshot name.
func ValidateName(name string) error {
	if name == CurrentName {
		return fmt.Errorf("%w: %q is reserved", ErrInvalidName, name)
	}
	if !namePattern.MatchString(name) {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}

// RunID identifies one annotation run.
type RunID string

// String implements fmt.Stringer.
func (id RunID) String() string { return string(id) }

// Identity identifies an annotator implementation.
type Identity struct {
	Name        string `json:"name"`
	Version     string `json:"version"`
	DataRelease int    `json:"dataRelease,omitempty"`
	// Extensions is the sorted, comma separated list of the private sources
	// applied on top of the annotator. Empty when none are used.
	Extensions string `json:"extensions,omitempty"`
}

// JoinExtensions returns the canonical Extensions value of names.
func JoinExtensions(names []string) string {
	names = slices.Clone(names)
	slices.Sort(names)
	return strings.Join(slices.Compact(names), ",")
}

// ExtensionList splits Extensions. It returns nil when no extension is used.
func (i Identity) ExtensionList() []string {
	if i.Extensions == "" {
		return nil
	}
	return strings.Split(i.Extensions, ",")
}

// Base returns the identity without its extensions.
func (i Identity) Base() Identity {
	i.Extensions = ""
	return i
}

// IsZero reports whether no annotator has been recorded.
func (i Identity) IsZero() bool {
	return i == Identity{}
}

// String implements fmt.Stringer.
func (i Identity) String() string {
	s := i.Name + "/" + i.Version
	if i.DataRelease > 0 {
		s = fmt.Sprintf("%s (release %d)", s, i.DataRelease)
	}
	if i.Extensions != "" {
		s += " [" + i.Extensions + "]"
	}
	return s
}

// Scope is the coverage of a run.
type Scope uint8

const (
	// ScopeFull covers every variant of the project.
	ScopeFull Scope = iota
	// ScopeRegionSet covers the variants matched by a region or id list.
	ScopeRegionSet
)

// String implements fmt.Stringer.
func (s Scope) String() string {
	switch s {
	case ScopeFull:
		return "full"
	case ScopeRegionSet:
		return "region-set"
	default:
		return fmt.Sprintf("scope(%d)", uint8(s))
	}
}

// RunState is the state of a run: Pending → Running → {Committed | Aborted}.
type RunState uint8

const (
	RunPending RunState = iota
	RunRunning
	RunCommitted
	RunAborted
)

// String implements fmt.Stringer.
func (s RunState) String() string {
	switch s {
	case RunPending:
		return "pending"
	case RunRunning:
		return "running"
	case RunCommitted:
		return "committed"
	case RunAborted:
		return "aborted"
	default:
		return fmt.Sprintf("state(%d)", uint8(s))
	}
}

// Outcome is the final result of a run.
type Outcome uint8

const (
	OutcomeUnknown Outcome = iota
	OutcomeSuccess
	OutcomeFailed
)

// String implements fmt.Stringer.
func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// RunRecord describes one annotation run. Records are append-only: once a run
// reaches Committed or Aborted it is never modified again.
type RunRecord struct {
	ID         RunID     `json:"id"`
	Annotator  Identity  `json:"annotator"`
	Scope      Scope     `json:"scope"`
	Regions    []string  `json:"regions,omitempty"`
	State      RunState  `json:"state"`
	Overwrite  bool      `json:"overwrite"`
	StartedAt  time.Time `json:"startedAt"`
	FinishedAt time.Time `json:"finishedAt,omitzero"`
	// Seq orders committed runs; 0 until the run commits.
	Seq       uint64   `json:"seq,omitempty"`
	Batches   int      `json:"batches"`
	Annotated int64    `json:"annotated"`
	Skipped   int64    `json:"skipped"`
	Parts     []string `json:"parts,omitempty"`
	Error     string   `json:"error,omitempty"`
}

// Outcome maps the state onto Success/Failed.
func (r *RunRecord) Outcome() Outcome {
	switch r.State {
	case RunCommitted:
		return OutcomeSuccess
	case RunAborted:
		return OutcomeFailed
	default:
		return OutcomeUnknown
	}
}

// Finished reports whether the run reached a terminal state.
func (r *RunRecord) Finished() bool {
	return r.State == RunCommitted || r.State == RunAborted
}

// Clone returns a deep copy.
func (r *RunRecord) Clone() *RunRecord {
	c := *r
	c.Regions = append([]string(nil), r.Regions...)
	c.Parts = append([]string(nil), r.Parts...)
	return &c
}
