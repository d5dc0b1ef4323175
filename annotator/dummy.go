package annotator

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync/atomic"

	"github.com/hupe1980/varanno/model"
)

// EngineDummy is the registry tag of the test annotator.
const EngineDummy = "dummy"

// Option keys understood by NewDummyFromConfig.
const (
	DummyOptionFail      = "fail"
	DummyOptionFailAfter = "fail_after"
	DummyOptionSkip      = "skip"
)

// ErrDummyFailure is the error produced by a failing Dummy.
var ErrDummyFailure = errors.New("dummy annotator failure")

// DummyOptions configures a Dummy annotator.
type DummyOptions struct {
	Name        string
	Version     string
	DataRelease int
	// Fail makes every batch fail.
	Fail bool
	// FailAfter makes every batch after the first FailAfter batches fail.
	// Zero disables it.
	FailAfter int
	// Skip lists variant ids ("chr:pos:ref:alt") left unannotated.
	Skip []string
}

// Dummy is a deterministic annotator for tests and demos. It produces one
// consequence type and one xref per variant.
type Dummy struct {
	opts    DummyOptions
	skip    map[model.VariantKey]struct{}
	batches atomic.Int64
}

// NewDummy creates a Dummy annotator.
func NewDummy(opts DummyOptions) (*Dummy, error) {
	if opts.Name == "" {
		opts.Name = EngineDummy
	}
	if opts.Version == "" {
		opts.Version = "v1"
	}
	d := &Dummy{opts: opts, skip: make(map[model.VariantKey]struct{}, len(opts.Skip))}
	for _, id := range opts.Skip {
		k, err := model.ParseVariantKey(id)
		if err != nil {
			return nil, Errorf(opts.Name, "skip list: %v", err)
		}
		d.skip[k] = struct{}{}
	}
	return d, nil
}

// NewDummyFromConfig is the registry factory of the dummy engine.
func NewDummyFromConfig(cfg Config) (Annotator, error) {
	fail, err := cfg.Bool(DummyOptionFail, false)
	if err != nil {
		return nil, err
	}
	failAfter, err := cfg.Int(DummyOptionFailAfter, 0)
	if err != nil {
		return nil, err
	}
	return NewDummy(DummyOptions{
		Name:        cfg.Name,
		Version:     cfg.Version,
		DataRelease: cfg.DataRelease,
		Fail:        fail,
		FailAfter:   failAfter,
		Skip:        cfg.List(DummyOptionSkip),
	})
}

// Identity implements Annotator.
func (d *Dummy) Identity() model.Identity {
	return model.Identity{Name: d.opts.Name, Version: d.opts.Version, DataRelease: d.opts.DataRelease}
}

// Batches returns the number of Annotate calls so far.
func (d *Dummy) Batches() int {
	return int(d.batches.Load())
}

// Annotate implements Annotator.
func (d *Dummy) Annotate(ctx context.Context, variants []model.VariantKey) ([]*model.Payload, error) {
	n := d.batches.Add(1)
	if err := ctx.Err(); err != nil {
		return nil, Wrap(d.opts.Name, err)
	}
	if d.opts.Fail || (d.opts.FailAfter > 0 && n > int64(d.opts.FailAfter)) {
		return nil, &Error{Annotator: d.opts.Name, Err: fmt.Errorf("%w: batch %d", ErrDummyFailure, n)}
	}

	out := make([]*model.Payload, len(variants))
	for i, k := range variants {
		if _, ok := d.skip[k]; ok {
			continue
		}
		p := &model.Payload{
			ID: "an id -- " + d.opts.Name,
			ConsequenceTypes: []model.ConsequenceType{{
				GeneName:              "a gene",
				EnsemblGeneID:         "ENSG00000000001",
				EnsemblTranscriptID:   "ENST00000000001",
				Biotype:               "protein_coding",
				SequenceOntologyTerms: []string{"missense_variant"},
			}},
			FunctionalScore: []model.Score{{Source: "cadd_scaled", Score: float64(k.Start%100) / 10}},
			Xrefs:           []model.Xref{{ID: "rs" + strconv.Itoa(k.Start), Source: "dbSNP"}},
		}
		p.SetKey(k)
		p.SetAttribute("dummy", "version", d.opts.Version)
		out[i] = p
	}
	return out, nil
}
