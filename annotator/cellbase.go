package annotator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/time/rate"

	"github.com/hupe1980/varanno/codec"
	"github.com/hupe1980/varanno/model"
)

// EngineCellBase is the registry tag of the CellBase REST annotator.
const EngineCellBase = "cellbase"

// Option keys understood by NewCellBaseFromConfig.
const (
	CellBaseOptionURL       = "url"
	CellBaseOptionAPI       = "api_version"
	CellBaseOptionSpecies   = "species"
	CellBaseOptionAssembly  = "assembly"
	CellBaseOptionTimeout   = "timeout"
	CellBaseOptionRate      = "requests_per_second"
	CellBaseOptionChunkSize = "chunk_size"
)

// CellBaseOptions configures a CellBase annotator.
type CellBaseOptions struct {
	// URL is the server root, e.g. https://ws.zettagenomics.com/cellbase.
	URL string
	// APIVersion is the REST API version, e.g. "v5.2".
	APIVersion string
	Species    string
	Assembly   string
	// DataRelease selects the CellBase data release. Zero uses the server
	// default.
	DataRelease int
	// Timeout bounds each request. Defaults to 30s.
	Timeout time.Duration
	// RequestsPerSecond rate limits requests. Zero means unlimited.
	RequestsPerSecond float64
	// ChunkSize bounds the number of variants per request. Defaults to 200.
	ChunkSize int
	// HTTPClient overrides the client, for tests.
	HTTPClient *http.Client
}

// CellBase annotates variants through the CellBase REST API.
type CellBase struct {
	opts    CellBaseOptions
	base    *url.URL
	client  *http.Client
	limiter *rate.Limiter
	codec   codec.Codec
}

// NewCellBase creates a CellBase annotator.
func NewCellBase(opts CellBaseOptions) (*CellBase, error) {
	if opts.URL == "" {
		return nil, Errorf(EngineCellBase, "missing url")
	}
	if opts.APIVersion == "" {
		return nil, Errorf(EngineCellBase, "missing api version")
	}
	if opts.Species == "" {
		opts.Species = "hsapiens"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = 200
	}
	base, err := url.Parse(strings.TrimSuffix(opts.URL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, Errorf(EngineCellBase, "invalid url %q", opts.URL)
	}

	c := &CellBase{
		opts:   opts,
		base:   base,
		client: opts.HTTPClient,
		codec:  codec.Default,
	}
	if c.client == nil {
		c.client = &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}
	}
	if opts.RequestsPerSecond > 0 {
		burst := max(1, int(opts.RequestsPerSecond))
		c.limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), burst)
	}
	return c, nil
}

// NewCellBaseFromConfig is the registry factory of the cellbase engine.
func NewCellBaseFromConfig(cfg Config) (Annotator, error) {
	opts := CellBaseOptions{
		URL:         cfg.String(CellBaseOptionURL, ""),
		APIVersion:  cfg.String(CellBaseOptionAPI, cfg.Version),
		Species:     cfg.String(CellBaseOptionSpecies, "hsapiens"),
		Assembly:    cfg.String(CellBaseOptionAssembly, ""),
		DataRelease: cfg.DataRelease,
	}
	if v := cfg.String(CellBaseOptionTimeout, ""); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("option %s: %w", CellBaseOptionTimeout, err)
		}
		opts.Timeout = d
	}
	if v := cfg.String(CellBaseOptionRate, ""); v != "" {
		r, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, fmt.Errorf("option %s: %w", CellBaseOptionRate, err)
		}
		opts.RequestsPerSecond = r
	}
	chunk, err := cfg.Int(CellBaseOptionChunkSize, 0)
	if err != nil {
		return nil, err
	}
	opts.ChunkSize = chunk
	return NewCellBase(opts)
}

// Identity implements Annotator.
func (c *CellBase) Identity() model.Identity {
	return model.Identity{Name: EngineCellBase, Version: c.opts.APIVersion, DataRelease: c.opts.DataRelease}
}

// Annotate implements Annotator.
func (c *CellBase) Annotate(ctx context.Context, variants []model.VariantKey) ([]*model.Payload, error) {
	out := make([]*model.Payload, 0, len(variants))
	for start := 0; start < len(variants); start += c.opts.ChunkSize {
		end := min(start+c.opts.ChunkSize, len(variants))
		chunk, err := c.fetch(ctx, variants[start:end])
		if err != nil {
			return nil, Wrap(EngineCellBase, err)
		}
		out = append(out, chunk...)
	}
	return out, nil
}

func (c *CellBase) endpoint(variants []model.VariantKey) string {
	ids := make([]string, len(variants))
	for i, k := range variants {
		ids[i] = cellBaseID(k)
	}

	u := *c.base
	u.Path = strings.Join([]string{
		u.Path, "webservices", "rest", c.opts.APIVersion, c.opts.Species,
		"genomic", "variant", strings.Join(ids, ","), "annotation",
	}, "/")

	q := url.Values{}
	if c.opts.Assembly != "" {
		q.Set("assembly", c.opts.Assembly)
	}
	if c.opts.DataRelease > 0 {
		q.Set("dataRelease", strconv.Itoa(c.opts.DataRelease))
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// cellBaseID formats k as chr:start:ref:alt with "-" for an empty allele.
func cellBaseID(k model.VariantKey) string {
	return k.Chromosome + ":" + strconv.Itoa(k.Start) + ":" + allele(k.Reference) + ":" + allele(k.Alternate)
}

func allele(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func (c *CellBase) fetch(ctx context.Context, variants []model.VariantKey) ([]*model.Payload, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	ctx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint(variants), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, truncate(string(body), 256))
	}

	var env cbEnvelope
	if err := c.codec.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if env.Error != "" {
		return nil, errors.New(env.Error)
	}
	if len(env.Responses) != len(variants) {
		return nil, fmt.Errorf("got %d responses for %d variants", len(env.Responses), len(variants))
	}

	out := make([]*model.Payload, len(variants))
	for i, r := range env.Responses {
		if r.Error != "" {
			return nil, fmt.Errorf("variant %s: %s", variants[i], r.Error)
		}
		if len(r.Results) == 0 {
			continue
		}
		out[i] = r.Results[0].payload(variants[i])
	}
	return out, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

type cbEnvelope struct {
	Error     string       `json:"error"`
	Responses []cbResponse `json:"responses"`
}

type cbResponse struct {
	Error   string                `json:"error"`
	Results []cbVariantAnnotation `json:"results"`
}

type cbSOTerm struct {
	Accession string `json:"accession"`
	Name      string `json:"name"`
}

type cbConsequenceType struct {
	GeneName              string     `json:"geneName"`
	EnsemblGeneID         string     `json:"ensemblGeneId"`
	EnsemblTranscriptID   string     `json:"ensemblTranscriptId"`
	Biotype               string     `json:"biotype"`
	SequenceOntologyTerms []cbSOTerm `json:"sequenceOntologyTerms"`
}

type cbVariantAnnotation struct {
	ID                   string                       `json:"id"`
	ConsequenceTypes     []cbConsequenceType          `json:"consequenceTypes"`
	FunctionalScore      []model.Score                `json:"functionalScore"`
	Xrefs                []model.Xref                 `json:"xrefs"`
	AdditionalAttributes map[string]cbAdditionalAttrs `json:"additionalAttributes"`
}

type cbAdditionalAttrs struct {
	Attribute map[string]string `json:"attribute"`
}

func (a *cbVariantAnnotation) payload(key model.VariantKey) *model.Payload {
	p := &model.Payload{
		ID:              a.ID,
		FunctionalScore: a.FunctionalScore,
		Xrefs:           a.Xrefs,
	}
	p.SetKey(key)
	for _, ct := range a.ConsequenceTypes {
		terms := make([]string, 0, len(ct.SequenceOntologyTerms))
		for _, t := range ct.SequenceOntologyTerms {
			terms = append(terms, t.Name)
		}
		p.ConsequenceTypes = append(p.ConsequenceTypes, model.ConsequenceType{
			GeneName:              ct.GeneName,
			EnsemblGeneID:         ct.EnsemblGeneID,
			EnsemblTranscriptID:   ct.EnsemblTranscriptID,
			Biotype:               ct.Biotype,
			SequenceOntologyTerms: terms,
		})
	}
	for group, attrs := range a.AdditionalAttributes {
		for k, v := range attrs.Attribute {
			p.SetAttribute(group, k, v)
		}
	}
	return p
}
