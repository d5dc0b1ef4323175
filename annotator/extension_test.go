package annotator

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/varanno/model"
)

const hgmdLines = `{"variant":"1:100:A:C","id":"CM000001","attributes":{"phenotype":"Breast cancer","class":"DM"}}
{"variant":"1:100:A:C","id":"CM000002"}
{"variant":"2:5:G:-","id":"CD000003","attributes":{"class":"DM?"}}
`

func writeEvidence(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "evidence.jsonl")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestEvidence_Apply(t *testing.T) {
	e, err := NewEvidence(EvidenceOptions{Name: ExtensionHGMD, Version: "2024.3", Assembly: "GRCh38"}, strings.NewReader(hgmdLines))
	require.NoError(t, err)
	assert.Equal(t, 2, e.Len())

	variants := keys("1:100:A:C", "1:200:G:T", "2:5:G:-")
	payloads := []*model.Payload{{ID: "a"}, {ID: "b"}, nil}
	require.NoError(t, e.Apply(context.Background(), variants, payloads))

	assert.Equal(t, []model.Xref{{ID: "CM000001", Source: "hgmd"}, {ID: "CM000002", Source: "hgmd"}}, payloads[0].Xrefs)
	assert.Equal(t, "Breast cancer", payloads[0].Attribute("hgmd", "phenotype"))
	assert.Equal(t, "2024.3", payloads[0].Attribute("hgmd", "version"))
	assert.Equal(t, "GRCh38", payloads[0].Attribute("hgmd", "assembly"))

	assert.Empty(t, payloads[1].Xrefs)
	assert.Empty(t, payloads[1].Attribute("hgmd", "version"))
	assert.Nil(t, payloads[2], "nil slots stay unannotated")
}

func TestEvidence_Errors(t *testing.T) {
	_, err := NewEvidence(EvidenceOptions{Name: ExtensionHGMD}, strings.NewReader(hgmdLines))
	assert.ErrorContains(t, err, "missing hgmd version")

	_, err = NewEvidence(EvidenceOptions{Name: ExtensionHGMD, Version: "1"}, strings.NewReader(`{"variant":"bad"}`))
	assert.ErrorIs(t, err, model.ErrInvalidVariant)

	factory := NewEvidenceFactory(ExtensionCOSMIC)
	_, err = factory(Config{})
	assert.ErrorContains(t, err, "missing cosmic file")

	_, err = factory(Config{Options: map[string]string{
		"cosmic_file":          writeEvidence(t, hgmdLines),
		"cosmic_version":       "v99",
		"cosmic_assembly":      "GRCh37",
		CellBaseOptionAssembly: "grch38",
	}})
	assert.ErrorContains(t, err, "does not match")
}

func TestRegistry_BuildWithExtensions(t *testing.T) {
	path := writeEvidence(t, hgmdLines)
	cfg := Config{
		Engine:     EngineDummy,
		Name:       "k1",
		Version:    "v1",
		Extensions: []string{ExtensionHGMD, ExtensionCOSMIC, ExtensionHGMD},
		Options: map[string]string{
			"hgmd_file":      path,
			"hgmd_version":   "2024.3",
			"cosmic_file":    path,
			"cosmic_version": "v99",
		},
	}

	a, err := DefaultRegistry().Build(cfg)
	require.NoError(t, err)
	assert.Equal(t, model.Identity{Name: "k1", Version: "v1", Extensions: "cosmic,hgmd"}, a.Identity())
	assert.Equal(t, "k1/v1 [cosmic,hgmd]", a.Identity().String())

	variants := keys("1:100:A:C", "3:1:A:G")
	out, err := a.Annotate(context.Background(), variants)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "2024.3", out[0].Attribute("hgmd", "version"))
	assert.Equal(t, "v99", out[0].Attribute("cosmic", "version"))
	assert.Empty(t, out[1].Attribute("hgmd", "version"))

	cfg.Extensions = []string{"clinvar"}
	_, err = DefaultRegistry().Build(cfg)
	assert.ErrorIs(t, err, ErrAnnotator)
	assert.ErrorIs(t, err, ErrUnknownExtension)
}

type failingExtension struct{}

func (failingExtension) Name() string { return "broken" }

func (failingExtension) Apply(context.Context, []model.VariantKey, []*model.Payload) error {
	return errors.New("index unavailable")
}

func TestExtend_Failure(t *testing.T) {
	d, err := NewDummy(DummyOptions{Name: "k1"})
	require.NoError(t, err)

	a := Extend(d, failingExtension{})
	assert.Same(t, Annotator(d), a.Base())
	assert.Equal(t, "broken", a.Identity().Extensions)

	_, err = a.Annotate(context.Background(), keys("1:100:A:C"))
	assert.ErrorIs(t, err, ErrAnnotator)
	assert.ErrorContains(t, err, "extension broken: index unavailable")
}
