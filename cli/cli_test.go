package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"parquet-oracle/candidate"
	"parquet-oracle/manifest"
)

// TestMain lets verify --self re-exec the test binary as the candidate.
func TestMain(m *testing.M) {
	if len(os.Args) > 1 && os.Args[1] == "candidate" {
		os.Exit(Execute())
	}
	os.Exit(m.Run())
}

func execute(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), NewRootCommand(&stdout, &stderr), args)
	return code, stdout.String(), stderr.String()
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "oracle.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestVersion(t *testing.T) {
	code, out, _ := execute(t, "version")
	assert.Equal(t, 0, code)
	assert.Contains(t, out, "parquet-oracle dev")
	assert.Contains(t, out, "arrow")
}

func TestCandidateCommand(t *testing.T) {
	t.Setenv(candidate.EnvRows, "20")
	t.Setenv(candidate.EnvPattern, "comprehensive")
	t.Setenv(candidate.EnvCodec, "gzip")
	out := filepath.Join(t.TempDir(), "out.parquet")

	code, stdout, stderr := execute(t, "candidate", out)
	require.Equal(t, 0, code, stderr)
	assert.FileExists(t, out)

	m, err := manifest.Parse([]byte(stdout))
	require.NoError(t, err)
	assert.Equal(t, int64(20), m.NumRows)
	assert.Len(t, m.Columns, 7)
}

func TestInspect(t *testing.T) {
	t.Setenv(candidate.EnvRows, "10")
	out := filepath.Join(t.TempDir(), "out.parquet")
	code, _, stderr := execute(t, "candidate", out)
	require.Equal(t, 0, code, stderr)

	code, stdout, _ := execute(t, "inspect", "--readers", "parquet-go,arrow", out)
	assert.Equal(t, 0, code)
	assert.Contains(t, stdout, "parquet-go "+out)
	assert.Contains(t, stdout, "arrow "+out)
	assert.Contains(t, stdout, "nullable_int")

	code, stdout, _ = execute(t, "inspect", "--readers", "parquet-go", filepath.Join(t.TempDir(), "absent.parquet"))
	assert.Equal(t, 1, code)
	assert.Contains(t, stdout, "parquet-go:")
}

func TestFixturesAndSmoke(t *testing.T) {
	dir := t.TempDir()
	code, stdout, stderr := execute(t, "fixtures", "-o", dir, "-n", "50",
		"--patterns", "reference", "--codecs", "snappy,zstd", "--producers", "arrow,parquet-go")
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, stdout, "wrote 4 fixtures")

	cfg := writeConfig(t, "readers:\n  enabled: [parquet-go, arrow, goparquet]\n")
	code, stdout, stderr = execute(t, "smoke", "--config", cfg, filepath.Join(dir, "manifest.json"))
	assert.Equal(t, 0, code, stderr)
	assert.Contains(t, stdout, "PASS 4 fixtures")
}

func TestSmokeMissingIndex(t *testing.T) {
	code, _, stderr := execute(t, "smoke", filepath.Join(t.TempDir(), "manifest.json"))
	assert.Equal(t, 2, code)
	assert.Contains(t, stderr, "Error:")
}

func TestVerifySelf(t *testing.T) {
	cfg := writeConfig(t, `
matrix:
  patterns: [reference, types]
  codecs: [snappy, lz4_raw]
readers:
  enabled: [parquet-go, arrow, goparquet]
`)
	dir := t.TempDir()
	code, stdout, stderr := execute(t, "verify", "--config", cfg, "--self", "-n", "120", "-o", dir, "--format", "json")
	require.Equal(t, 0, code, stderr)

	var rep struct {
		ExitCode int `json:"exit_code"`
		Tally    struct {
			Cells       int `json:"cells"`
			PassedCells int `json:"passed_cells"`
		} `json:"tally"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &rep))
	assert.Equal(t, 0, rep.ExitCode)
	assert.Equal(t, 4, rep.Tally.Cells)
	assert.Equal(t, 4, rep.Tally.PassedCells)

	reports, err := filepath.Glob(filepath.Join(dir, "report-*.json"))
	require.NoError(t, err)
	assert.Len(t, reports, 1)
}

func TestVerifyMissingCandidate(t *testing.T) {
	code, _, stderr := execute(t, "verify", "--candidate", filepath.Join(t.TempDir(), "absent"), "-n", "10")
	assert.Equal(t, 2, code)
	assert.Contains(t, stderr, "building candidate")
}

func TestVerifyRejectsBadConfig(t *testing.T) {
	cfg := writeConfig(t, "matrix:\n  codecs: [lzo]\n")
	code, _, stderr := execute(t, "verify", "--config", cfg, "--self")
	assert.Equal(t, 2, code)
	assert.Contains(t, stderr, "unknown codec")
}
