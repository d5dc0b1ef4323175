package query

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/hupe1980/varanno/model"
)

// ErrInvalidQuery is returned for malformed regions, ids or projections.
var ErrInvalidQuery = errors.New("invalid query")

// Region is a chromosome range. End == 0 means "to the end of the chromosome".
type Region struct {
	Chromosome string `json:"chromosome"`
	Start      int    `json:"start,omitempty"`
	End        int    `json:"end,omitempty"`
}

// ParseRegion parses "1", "1:100" or "1:100-200".
func ParseRegion(s string) (Region, error) {
	s = strings.TrimSpace(s)
	chrom, rng, hasRange := strings.Cut(s, ":")
	if chrom == "" {
		return Region{}, fmt.Errorf("%w: empty chromosome in region %q", ErrInvalidQuery, s)
	}
	r := Region{Chromosome: chrom}
	if !hasRange {
		return r, nil
	}

	startStr, endStr, hasEnd := strings.Cut(rng, "-")
	start, err := strconv.Atoi(startStr)
	if err != nil || start < 1 {
		return Region{}, fmt.Errorf("%w: bad start in region %q", ErrInvalidQuery, s)
	}
	r.Start = start
	if !hasEnd {
		r.End = start
		return r, nil
	}
	end, err := strconv.Atoi(endStr)
	if err != nil || end < start {
		return Region{}, fmt.Errorf("%w: bad end in region %q", ErrInvalidQuery, s)
	}
	r.End = end
	return r, nil
}

// ParseRegions parses a comma separated region list.
func ParseRegions(s string) ([]Region, error) {
	var out []Region
	for _, part := range strings.Split(s, ",") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		r, err := ParseRegion(part)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

// String formats the region in the same syntax ParseRegion accepts.
func (r Region) String() string {
	switch {
	case r.Start == 0 && r.End == 0:
		return r.Chromosome
	case r.End == 0:
		return fmt.Sprintf("%s:%d-%d", r.Chromosome, r.Start, math.MaxInt32)
	case r.Start == r.End:
		return fmt.Sprintf("%s:%d", r.Chromosome, r.Start)
	default:
		return fmt.Sprintf("%s:%d-%d", r.Chromosome, r.Start, r.End)
	}
}

// Validate checks the region bounds.
func (r Region) Validate() error {
	if r.Chromosome == "" {
		return fmt.Errorf("%w: empty chromosome", ErrInvalidQuery)
	}
	if r.Start < 0 || r.End < 0 || (r.End != 0 && r.End < r.Start) {
		return fmt.Errorf("%w: bad range in region %s", ErrInvalidQuery, r)
	}
	return nil
}

// Overlaps reports whether the variant falls into the region.
func (r Region) Overlaps(k model.VariantKey) bool {
	if !model.SameChromosome(r.Chromosome, k.Chromosome) {
		return false
	}
	end := max(k.End, k.Start)
	if r.End != 0 && k.Start > r.End {
		return false
	}
	return end >= r.Start
}

// Query selects variants. A variant matches when it overlaps any region or
// equals any id. The zero Query selects all variants.
type Query struct {
	Regions []Region           `json:"regions,omitempty"`
	IDs     []model.VariantKey `json:"ids,omitempty"`
}

// All returns the select-all query.
func All() Query { return Query{} }

// ForRegions returns a query over the given regions.
func ForRegions(regions ...Region) Query { return Query{Regions: regions} }

// ForIDs returns a query over an explicit variant list.
func ForIDs(ids ...model.VariantKey) Query { return Query{IDs: ids} }

// Parse builds a query from a comma separated region list ("" selects all).
func Parse(regions string) (Query, error) {
	rs, err := ParseRegions(regions)
	if err != nil {
		return Query{}, err
	}
	return Query{Regions: rs}, nil
}

// ParseIDs builds a query from a comma separated variant id list.
func ParseIDs(ids string) (Query, error) {
	var q Query
	for _, part := range strings.Split(ids, ",") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		k, err := model.ParseVariantKey(part)
		if err != nil {
			return Query{}, fmt.Errorf("%w: %w", ErrInvalidQuery, err)
		}
		q.IDs = append(q.IDs, k)
	}
	return q, nil
}

// IsAll reports whether the query selects every variant.
func (q Query) IsAll() bool {
	return len(q.Regions) == 0 && len(q.IDs) == 0
}

// Validate checks every region and id.
func (q Query) Validate() error {
	for _, r := range q.Regions {
		if err := r.Validate(); err != nil {
			return err
		}
	}
	for _, k := range q.IDs {
		if k.Chromosome == "" || k.Start < 1 {
			return fmt.Errorf("%w: bad variant id %s", ErrInvalidQuery, k)
		}
	}
	return nil
}

// Match reports whether the variant is selected.
func (q Query) Match(k model.VariantKey) bool {
	if q.IsAll() {
		return true
	}
	for _, r := range q.Regions {
		if r.Overlaps(k) {
			return true
		}
	}
	for _, id := range q.IDs {
		if id == k {
			return true
		}
	}
	return false
}

// Describe returns the region/id list as strings, for run records.
func (q Query) Describe() []string {
	out := make([]string, 0, len(q.Regions)+len(q.IDs))
	for _, r := range q.Regions {
		out = append(out, r.String())
	}
	for _, k := range q.IDs {
		out = append(out, k.String())
	}
	return out
}
