package annotator

import (
	"bufio"
	"context"
	"io"
	"os"
	"strings"

	"github.com/hupe1980/varanno/codec"
	"github.com/hupe1980/varanno/model"
)

// EngineFile is the registry tag of the annotator importing precomputed
// annotations.
const EngineFile = "file"

// FileOptionPath is the option key naming the JSON lines file read by
// NewFileFromConfig.
const FileOptionPath = "path"

// FileOptions configures a File annotator.
type FileOptions struct {
	Name        string
	Version     string
	DataRelease int
}

// File serves annotations loaded from a file of JSON encoded payloads, one
// per line. Variants missing from the file are left unannotated.
type File struct {
	opts     FileOptions
	payloads map[model.VariantKey]*model.Payload
}

// NewFile loads the payloads read from r. A later line for the same variant
// replaces an earlier one.
func NewFile(opts FileOptions, r io.Reader) (*File, error) {
	if opts.Name == "" {
		opts.Name = EngineFile
	}
	if opts.Version == "" {
		return nil, Errorf(opts.Name, "missing version")
	}

	f := &File{opts: opts, payloads: make(map[model.VariantKey]*model.Payload)}
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 64*1024*1024)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" {
			continue
		}
		p := &model.Payload{}
		if err := codec.Default.Unmarshal([]byte(text), p); err != nil {
			return nil, Errorf(opts.Name, "line %d: %v", line, err)
		}
		if p.Chromosome == "" || p.Start < 1 {
			return nil, Errorf(opts.Name, "line %d: missing variant coordinates", line)
		}
		k := p.Key()
		if p.End == 0 {
			k = model.NewVariantKey(p.Chromosome, p.Start, p.Reference, p.Alternate)
		}
		f.payloads[k] = p
	}
	if err := sc.Err(); err != nil {
		return nil, Wrap(opts.Name, err)
	}
	return f, nil
}

// NewFileFromConfig is the registry factory of the file engine.
func NewFileFromConfig(cfg Config) (Annotator, error) {
	path := cfg.String(FileOptionPath, "")
	if path == "" {
		return nil, Errorf(EngineFile, "missing %s option", FileOptionPath)
	}
	r, err := os.Open(path)
	if err != nil {
		return nil, Wrap(EngineFile, err)
	}
	defer r.Close()

	f, err := NewFile(FileOptions{Name: cfg.Name, Version: cfg.Version, DataRelease: cfg.DataRelease}, r)
	if err != nil {
		return nil, err
	}
	return f, nil
}

// Len returns the number of loaded variants.
func (f *File) Len() int { return len(f.payloads) }

// Identity implements Annotator.
func (f *File) Identity() model.Identity {
	return model.Identity{Name: f.opts.Name, Version: f.opts.Version, DataRelease: f.opts.DataRelease}
}

// Annotate implements Annotator.
func (f *File) Annotate(ctx context.Context, variants []model.VariantKey) ([]*model.Payload, error) {
	if err := ctx.Err(); err != nil {
		return nil, Wrap(f.opts.Name, err)
	}
	out := make([]*model.Payload, len(variants))
	for i, k := range variants {
		if p, ok := f.payloads[k]; ok {
			out[i] = p.Clone()
		}
	}
	return out, nil
}
