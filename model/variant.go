package model

import (
	"cmp"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalidVariant is returned when a variant id cannot be parsed.
var ErrInvalidVariant = errors.New("invalid variant")

// VariantKey identifies a variant. It is immutable and used as the primary key
// of the annotation store. Two keys are equal iff all five fields match.
type VariantKey struct {
	Chromosome string `json:"chromosome"`
	Start      int    `json:"start"`
	End        int    `json:"end"`
	Reference  string `json:"reference"`
	Alternate  string `json:"alternate"`
}

// NewVariantKey creates a key and derives End from the reference allele.
func NewVariantKey(chromosome string, start int, reference, alternate string) VariantKey {
	return VariantKey{
		Chromosome: chromosome,
		Start:      start,
		End:        impliedEnd(start, reference),
		Reference:  reference,
		Alternate:  alternate,
	}
}

func impliedEnd(start int, reference string) int {
	if len(reference) == 0 {
		return start - 1 // insertion
	}
	return start + len(reference) - 1
}

// String returns "chr:start:ref:alt", or "chr:start-end:ref:alt" when End is
// not the one implied by the reference allele.
func (k VariantKey) String() string {
	if k.End == impliedEnd(k.Start, k.Reference) {
		return fmt.Sprintf("%s:%d:%s:%s", k.Chromosome, k.Start, k.Reference, k.Alternate)
	}
	return fmt.Sprintf("%s:%d-%d:%s:%s", k.Chromosome, k.Start, k.End, k.Reference, k.Alternate)
}

// ParseVariantKey parses "chr:start:ref:alt" or "chr:start-end:ref:alt".
// An empty allele may be written as "-".
func ParseVariantKey(s string) (VariantKey, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 4 || parts[0] == "" {
		return VariantKey{}, fmt.Errorf("%w: %q", ErrInvalidVariant, s)
	}

	ref := allele(parts[2])
	alt := allele(parts[3])

	pos := parts[1]
	if startStr, endStr, ok := strings.Cut(pos, "-"); ok {
		start, err := strconv.Atoi(startStr)
		if err != nil || start < 1 {
			return VariantKey{}, fmt.Errorf("%w: bad start in %q", ErrInvalidVariant, s)
		}
		end, err := strconv.Atoi(endStr)
		if err != nil || end < start-1 {
			return VariantKey{}, fmt.Errorf("%w: bad end in %q", ErrInvalidVariant, s)
		}
		return VariantKey{Chromosome: parts[0], Start: start, End: end, Reference: ref, Alternate: alt}, nil
	}

	start, err := strconv.Atoi(pos)
	if err != nil || start < 1 {
		return VariantKey{}, fmt.Errorf("%w: bad start in %q", ErrInvalidVariant, s)
	}
	return NewVariantKey(parts[0], start, ref, alt), nil
}

func allele(s string) string {
	if s == "-" {
		return ""
	}
	return s
}

// Compare orders keys by chromosome (natural order), start, end, reference
// and alternate.
func (k VariantKey) Compare(o VariantKey) int {
	if c := CompareChromosomes(k.Chromosome, o.Chromosome); c != 0 {
		return c
	}
	if c := cmp.Compare(k.Start, o.Start); c != 0 {
		return c
	}
	if c := cmp.Compare(k.End, o.End); c != 0 {
		return c
	}
	if c := cmp.Compare(k.Reference, o.Reference); c != 0 {
		return c
	}
	return cmp.Compare(k.Alternate, o.Alternate)
}

// CompareChromosomes orders autosomes numerically, followed by X, Y, MT and
// any other contig in lexical order. A "chr" prefix is ignored.
func CompareChromosomes(a, b string) int {
	ra, na := chromosomeRank(a)
	rb, nb := chromosomeRank(b)
	if c := cmp.Compare(ra, rb); c != 0 {
		return c
	}
	return cmp.Compare(na, nb)
}

func chromosomeRank(c string) (int, string) {
	name := strings.TrimPrefix(strings.TrimPrefix(c, "chr"), "Chr")
	if n, err := strconv.Atoi(name); err == nil && n > 0 {
		return n, ""
	}
	switch strings.ToUpper(name) {
	case "X":
		return 1000, ""
	case "Y":
		return 1001, ""
	case "M", "MT":
		return 1002, ""
	}
	return 2000, name
}

// SameChromosome reports whether both names denote the same chromosome,
// ignoring a "chr" prefix.
func SameChromosome(a, b string) bool {
	ra, na := chromosomeRank(a)
	rb, nb := chromosomeRank(b)
	return ra == rb && na == nb
}
