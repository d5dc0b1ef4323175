package annotator

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"maps"
	"os"
	"strings"

	"github.com/hupe1980/varanno/codec"
	"github.com/hupe1980/varanno/model"
)

// Built-in private source extensions.
const (
	ExtensionHGMD   = "hgmd"
	ExtensionCOSMIC = "cosmic"
)

// Option key suffixes of evidence extensions. The full key is prefixed with
// the extension tag, e.g. "hgmd_file".
const (
	EvidenceOptionFile     = "file"
	EvidenceOptionVersion  = "version"
	EvidenceOptionAssembly = "assembly"
)

// EvidenceEntry is one line of an evidence file.
type EvidenceEntry struct {
	Variant    string            `json:"variant"`
	ID         string            `json:"id,omitempty"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

// EvidenceOptions configures an Evidence extension.
type EvidenceOptions struct {
	// Name is the extension tag and the attribute group written to payloads.
	Name     string
	Version  string
	Assembly string
}

// Evidence annotates variants from a private evidence file. Matching
// variants get one xref per entry and the entry attributes in the Name group.
type Evidence struct {
	opts  EvidenceOptions
	index map[model.VariantKey][]EvidenceEntry
}

// NewEvidence indexes the JSON lines read from r. Blank lines are ignored.
func NewEvidence(opts EvidenceOptions, r io.Reader) (*Evidence, error) {
	if opts.Name == "" {
		return nil, fmt.Errorf("missing extension name")
	}
	if opts.Version == "" {
		return nil, fmt.Errorf("missing %s version", opts.Name)
	}

	e := &Evidence{opts: opts, index: make(map[model.VariantKey][]EvidenceEntry)}
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 16*1024*1024)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" {
			continue
		}
		var entry EvidenceEntry
		if err := codec.Default.Unmarshal([]byte(text), &entry); err != nil {
			return nil, fmt.Errorf("%s line %d: %w", opts.Name, line, err)
		}
		k, err := model.ParseVariantKey(entry.Variant)
		if err != nil {
			return nil, fmt.Errorf("%s line %d: %w", opts.Name, line, err)
		}
		e.index[k] = append(e.index[k], entry)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", opts.Name, err)
	}
	return e, nil
}

// NewEvidenceFactory returns the registry factory of the evidence extension
// tagged name. It reads "<name>_file", "<name>_version" and "<name>_assembly"
// from the annotator options. A configured "assembly" option must match the
// evidence assembly.
func NewEvidenceFactory(name string) ExtensionFactory {
	return func(cfg Config) (Extension, error) {
		path := cfg.String(name+"_"+EvidenceOptionFile, "")
		if path == "" {
			return nil, fmt.Errorf("missing %s file", name)
		}
		opts := EvidenceOptions{
			Name:     name,
			Version:  cfg.String(name+"_"+EvidenceOptionVersion, ""),
			Assembly: cfg.String(name+"_"+EvidenceOptionAssembly, ""),
		}
		if want := cfg.String(CellBaseOptionAssembly, ""); want != "" && opts.Assembly != "" && !strings.EqualFold(want, opts.Assembly) {
			return nil, fmt.Errorf("%s assembly %q does not match the annotation assembly %q", name, opts.Assembly, want)
		}

		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()

		e, err := NewEvidence(opts, f)
		if err != nil {
			return nil, err
		}
		return e, nil
	}
}

// Name implements Extension.
func (e *Evidence) Name() string { return e.opts.Name }

// Len returns the number of indexed variants.
func (e *Evidence) Len() int { return len(e.index) }

// Apply implements Extension.
func (e *Evidence) Apply(ctx context.Context, variants []model.VariantKey, payloads []*model.Payload) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	for i, p := range payloads {
		if p == nil {
			continue
		}
		entries, ok := e.index[variants[i]]
		if !ok {
			continue
		}
		attrs := model.Attributes{EvidenceOptionVersion: e.opts.Version}
		if e.opts.Assembly != "" {
			attrs[EvidenceOptionAssembly] = e.opts.Assembly
		}
		for _, entry := range entries {
			if entry.ID != "" {
				p.Xrefs = append(p.Xrefs, model.Xref{ID: entry.ID, Source: e.opts.Name})
			}
			maps.Copy(attrs, entry.Attributes)
		}
		for k, v := range attrs {
			p.SetAttribute(e.opts.Name, k, v)
		}
	}
	return nil
}
