package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/varanno"
)

type testEnv struct {
	cfg     string
	metrics string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()

	variants := filepath.Join(dir, "variants.txt")
	require.NoError(t, os.WriteFile(variants, []byte("# test variants\n1:100:A:C\n1:200:G:T\n2:100:A:T\n"), 0o600))

	cfg := filepath.Join(dir, "varanno.yaml")
	body := strings.Join([]string{
		"project: proj",
		"storage:",
		"  backend: local",
		"  path: " + filepath.Join(dir, "data"),
		"metadata:",
		"  backend: badger",
		"  path: " + filepath.Join(dir, "meta"),
		"source:",
		"  file: " + variants,
		"log:",
		"  level: error",
		"",
	}, "\n")
	require.NoError(t, os.WriteFile(cfg, []byte(body), 0o600))

	return &testEnv{cfg: cfg, metrics: filepath.Join(dir, "metrics.prom")}
}

func (e *testEnv) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(append([]string{"--config", e.cfg}, args...))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func (e *testEnv) mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, err := e.run(t, args...)
	require.NoError(t, err, "args %v", args)
	return out
}

func TestCLI_Help(t *testing.T) {
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--help"})
	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "varanno annotates genomic variants")

	cmd = newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs([]string{"unknown"})
	require.Error(t, cmd.Execute())
}

func TestCLI_Workflow(t *testing.T) {
	env := newTestEnv(t)
	dummy := []string{"--engine", "dummy", "--name", "k1", "--version", "v1"}

	out := env.mustRun(t, append([]string{"annotate", "--run-id", "r1"}, dummy...)...)
	assert.Contains(t, out, "run r1 committed: 3 annotated")

	out = env.mustRun(t, "count")
	assert.Equal(t, "3\n", out)

	out = env.mustRun(t, "count", "--region", "1")
	assert.Equal(t, "2\n", out)

	_, err := env.run(t, append([]string{"annotate", "--run-id", "r2"}, dummy...)...)
	require.ErrorIs(t, err, varanno.ErrOverwriteRequired)

	out = env.mustRun(t, "save", "release-1")
	assert.Contains(t, out, "saved release-1 (run r1)")

	env.mustRun(t, append([]string{"annotate", "--run-id", "r3", "--overwrite", "--ids", "1:100:A:C"}, dummy...)...)

	out = env.mustRun(t, "get", "--ids", "1:100:A:C", "--include", "id")
	assert.Contains(t, out, `"runId":"r3"`)

	out = env.mustRun(t, "get", "--selector", "release-1", "--ids", "1:100:A:C")
	assert.Contains(t, out, `"runId":"r1"`)

	out = env.mustRun(t, "get", "--run", "r1", "--ids", "1:100:A:C")
	assert.Contains(t, out, `"runId":"r1"`)

	out = env.mustRun(t, "get", "--limit", "1", "--skip", "1")
	assert.Equal(t, 1, strings.Count(out, "\n"))

	out = env.mustRun(t, "runs")
	assert.Contains(t, out, "r1")
	assert.Contains(t, out, "r3")
	assert.NotContains(t, out, "r2")
	assert.Contains(t, out, "committed")

	out = env.mustRun(t, "snapshots")
	assert.Contains(t, out, "release-1")

	out = env.mustRun(t, "metadata")
	assert.Contains(t, out, `"name": "release-1"`)

	env.mustRun(t, "delete", "release-1")
	_, err = env.run(t, "get", "--selector", "release-1")
	require.ErrorIs(t, err, varanno.ErrSnapshotNotFound)
}

func TestCLI_Extensions(t *testing.T) {
	env := newTestEnv(t)
	evidence := filepath.Join(filepath.Dir(env.cfg), "hgmd.jsonl")
	require.NoError(t, os.WriteFile(evidence, []byte(`{"variant":"1:100:A:C","id":"CM000001"}`+"\n"), 0o600))

	dummy := []string{"--engine", "dummy", "--name", "k1", "--version", "v1"}
	env.mustRun(t, append([]string{
		"annotate", "--run-id", "r1", "--extension", "hgmd",
		"--option", "hgmd_file=" + evidence, "--option", "hgmd_version=2024.3",
	}, dummy...)...)

	out := env.mustRun(t, "get", "--ids", "1:100:A:C")
	assert.Contains(t, out, `"CM000001"`)

	out = env.mustRun(t, "runs")
	assert.Contains(t, out, "[hgmd]")

	_, err := env.run(t, append([]string{"annotate", "--run-id", "r2", "--region", "2"}, dummy...)...)
	require.ErrorIs(t, err, varanno.ErrAnnotatorChanged)
	assert.Contains(t, err.Error(), "private sources [hgmd]")
}

func TestCLI_MetricsFile(t *testing.T) {
	env := newTestEnv(t)

	env.mustRun(t, "--metrics-file", env.metrics, "annotate", "--engine", "dummy", "--name", "k1", "--version", "v1")

	data, err := os.ReadFile(env.metrics)
	require.NoError(t, err)
	assert.Contains(t, string(data), `varanno_runs_total{state="committed"} 1`)
}

func TestCLI_InvalidInput(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.run(t, "get", "--region", "1:abc")
	require.ErrorIs(t, err, varanno.ErrInvalidQuery)

	_, err = env.run(t, "get", "--selector", "bad name")
	require.ErrorIs(t, err, varanno.ErrInvalidQuery)

	_, err = env.run(t, "save")
	require.Error(t, err)
}
