package orchestrator

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"parquet-oracle/candidate"
	"parquet-oracle/config"
	"parquet-oracle/logging"
	"parquet-oracle/manifest"
	"parquet-oracle/oracle"
	"parquet-oracle/storage"
)

const candidateEnv = "ORACLE_TEST_CANDIDATE"

func TestMain(m *testing.M) {
	if mode := os.Getenv(candidateEnv); mode != "" {
		os.Exit(fakeCandidate(mode, os.Args[len(os.Args)-1]))
	}
	os.Exit(m.Run())
}

func fakeCandidate(mode, output string) int {
	switch mode {
	case "reference":
		if err := candidate.RunReference(context.Background(), output, os.Getenv, os.Stdout); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
	case "wrong":
		var buf bytes.Buffer
		if err := candidate.RunReference(context.Background(), output, os.Getenv, &buf); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		m, err := manifest.Parse(buf.Bytes())
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		m.NumRows++
		data, _ := json.Marshal(m)
		fmt.Println(string(data))
	case "dir":
		// writes carquet_<codec>.parquet into an existing directory and
		// lists it by relative path
		if info, err := os.Stat(output); err != nil || !info.IsDir() {
			fmt.Fprintf(os.Stderr, "cannot create %s/carquet_x.parquet: Directory nonexistent\n", output)
			return 2
		}
		codec := os.Getenv(candidate.EnvCodec)
		name := "carquet_" + codec + ".parquet"
		var buf bytes.Buffer
		if err := candidate.RunReference(context.Background(), filepath.Join(output, name), os.Getenv, &buf); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		m, err := manifest.Parse(buf.Bytes())
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		for i := range m.Files {
			m.Files[i].Path = name
		}
		data, _ := json.Marshal(m)
		fmt.Println(string(data))
	case "crash":
		fmt.Fprintln(os.Stderr, "writer.c:88: assertion failed")
		return 3
	case "sleep":
		time.Sleep(time.Minute)
	}
	return 0
}

func testConfig(t *testing.T, mode string) *config.Config {
	t.Helper()
	t.Setenv(candidateEnv, mode)

	cfg := config.Default()
	cfg.Candidate.Binary = os.Args[0]
	cfg.Candidate.Timeout = time.Minute
	cfg.Matrix.Patterns = []string{"reference", "comprehensive"}
	cfg.Matrix.Codecs = []string{"snappy", "zstd"}
	cfg.Matrix.Encodings = nil
	cfg.Matrix.Rows = 200
	cfg.Readers.Enabled = []string{"parquet-go", "arrow", "goparquet"}
	cfg.Output.Dir = t.TempDir()
	return cfg
}

func run(t *testing.T, cfg *config.Config) (*Summary, error) {
	t.Helper()
	r, err := NewRunner(context.Background(), cfg, logging.Discard())
	require.NoError(t, err)
	defer r.Close()
	return r.Run(context.Background())
}

func TestRunPasses(t *testing.T) {
	cfg := testConfig(t, "reference")
	cfg.Matrix.RowGroupSize = 64
	cfg.Metrics.Textfile = filepath.Join(t.TempDir(), "oracle.prom")

	sum, err := run(t, cfg)
	require.NoError(t, err)

	require.Len(t, sum.Cells, 4)
	for _, c := range sum.Cells {
		assert.True(t, c.Passed(), "%s: %v", c.Name, c.Failure)
		require.Len(t, c.Files, 1)
		assert.NotEmpty(t, c.InvocationID)
		assert.Empty(t, c.Retained)
	}
	assert.Equal(t, "reference_snappy", sum.Cells[0].Name)
	assert.Equal(t, 7, sum.Cells[2].Columns)
	assert.Equal(t, []string{"parquet-go", "arrow", "goparquet"}, sum.AvailableReaders())
	assert.Equal(t, ExitPassed, sum.ExitCode())

	tally := sum.Tally()
	assert.Equal(t, 4, tally.PassedCells)
	assert.Equal(t, 4, tally.PassedFiles)
	assert.Zero(t, tally.Discrepancies)

	entries, err := os.ReadDir(cfg.Output.Dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "run files are removed")

	data, err := os.ReadFile(cfg.Metrics.Textfile)
	require.NoError(t, err)
	assert.Contains(t, string(data), `parquet_oracle_cells_total{outcome="passed"} 4`)
}

func TestRunDetectsWrongManifest(t *testing.T) {
	cfg := testConfig(t, "wrong")
	cfg.Matrix.Patterns = []string{"reference"}
	cfg.Matrix.Codecs = []string{"gzip"}
	cfg.Artifacts.Dir = t.TempDir()

	sum, err := run(t, cfg)
	require.NoError(t, err)

	require.Len(t, sum.Cells, 1)
	c := sum.Cells[0]
	assert.False(t, c.Passed())
	assert.Equal(t, ExitDiscrepancy, sum.ExitCode())
	assert.Positive(t, sum.Tally().ByKind[oracle.KindRowCount])

	assert.Equal(t, sum.RunID+"/reference_gzip", c.Retained)
	st, err := storage.NewLocalStorage(cfg.Artifacts.Dir)
	require.NoError(t, err)
	keys, err := st.List(context.Background(), sum.RunID)
	require.NoError(t, err)
	assert.Contains(t, keys, sum.RunID+"/reference_gzip/output.parquet")
	assert.Contains(t, keys, sum.RunID+"/reference_gzip/manifest.json")
}

func TestRunCandidateCrash(t *testing.T) {
	cfg := testConfig(t, "crash")
	cfg.Matrix.Patterns = []string{"reference"}

	sum, err := run(t, cfg)
	require.NoError(t, err)

	require.Len(t, sum.Cells, 2, "an exit status failure aborts only its cell")
	f := sum.Cells[0].Failure
	require.NotNil(t, f)
	assert.Equal(t, "exit_status", f.Reason)
	assert.Equal(t, 3, f.ExitCode)
	assert.Contains(t, f.Stderr, "assertion failed")
	assert.Equal(t, ExitDiscrepancy, sum.ExitCode())
	assert.Equal(t, 2, sum.Tally().InvocationFailures)
}

func TestRunTimeout(t *testing.T) {
	for _, abort := range []bool{true, false} {
		t.Run(fmt.Sprint("abort=", abort), func(t *testing.T) {
			cfg := testConfig(t, "sleep")
			cfg.Matrix.Patterns = []string{"reference"}
			cfg.Candidate.Timeout = 200 * time.Millisecond
			cfg.Candidate.AbortOnTimeout = abort

			sum, err := run(t, cfg)
			require.NoError(t, err)

			if abort {
				assert.Len(t, sum.Cells, 1)
				assert.NotEmpty(t, sum.Aborted)
			} else {
				assert.Len(t, sum.Cells, 2)
				assert.Empty(t, sum.Aborted)
			}
			assert.Equal(t, "timeout", sum.Cells[0].Failure.Reason)
			assert.Equal(t, ExitDiscrepancy, sum.ExitCode())
		})
	}
}

func TestRunBuildFailure(t *testing.T) {
	cfg := testConfig(t, "reference")
	cfg.Candidate.Binary = filepath.Join(t.TempDir(), "roundtrip_writer")
	cfg.Candidate.Build = []string{"sh", "-c", "echo 'undefined reference to carquet_writer_close' >&2; exit 1"}

	sum, err := run(t, cfg)
	var buildErr *candidate.BuildError
	require.ErrorAs(t, err, &buildErr)
	assert.Contains(t, string(buildErr.Output), "undefined reference")

	assert.Empty(t, sum.Cells)
	assert.Contains(t, sum.Error, "undefined reference to carquet_writer_close")
	assert.Equal(t, "undefined reference to carquet_writer_close\n", sum.BuildOutput)
	assert.Equal(t, ExitTotalFailure, sum.ExitCode())

	entries, err := os.ReadDir(cfg.Output.Dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "run files are removed after a failed build")
}

func TestRunRemovesBuiltBinary(t *testing.T) {
	cfg := testConfig(t, "reference")
	cfg.Matrix.Patterns = []string{"reference"}
	cfg.Matrix.Codecs = []string{"snappy"}
	bin := filepath.Join(t.TempDir(), "roundtrip_writer")
	cfg.Candidate.Binary = bin
	cfg.Candidate.Build = []string{"cp", os.Args[0], bin}

	sum, err := run(t, cfg)
	require.NoError(t, err)
	assert.Equal(t, ExitPassed, sum.ExitCode())
	assert.NoFileExists(t, bin)
}

func TestRunKeep(t *testing.T) {
	cfg := testConfig(t, "reference")
	cfg.Matrix.Patterns = []string{"types"}
	cfg.Matrix.Codecs = []string{"lz4_raw"}
	cfg.Output.Keep = true

	sum, err := run(t, cfg)
	require.NoError(t, err)
	require.Len(t, sum.Cells, 1)

	dir := sum.Cells[0].Retained
	require.NotEmpty(t, dir)
	for _, name := range []string{"dataset.jsonl", "output.parquet", "manifest.json"} {
		assert.FileExists(t, filepath.Join(dir, name))
	}
}

func TestRunKeepStillRemovesBuiltBinary(t *testing.T) {
	cfg := testConfig(t, "reference")
	cfg.Matrix.Patterns = []string{"reference"}
	cfg.Matrix.Codecs = []string{"snappy"}
	cfg.Output.Keep = true
	bin := filepath.Join(t.TempDir(), "roundtrip_writer")
	cfg.Candidate.Binary = bin
	cfg.Candidate.Build = []string{"cp", os.Args[0], bin}

	sum, err := run(t, cfg)
	require.NoError(t, err)
	require.Len(t, sum.Cells, 1)
	assert.DirExists(t, sum.Cells[0].Retained)
	assert.NoFileExists(t, bin)
}

func TestRunDirectoryOutput(t *testing.T) {
	cfg := testConfig(t, "dir")
	cfg.Candidate.Output = candidate.OutputDir
	cfg.Output.Keep = true

	sum, err := run(t, cfg)
	require.NoError(t, err)
	require.Len(t, sum.Cells, 4)
	for _, c := range sum.Cells {
		assert.True(t, c.Passed(), "%s: %v", c.Name, c.Failure)
		require.Len(t, c.Files, 1)
		name := "carquet_" + c.Codec + ".parquet"
		assert.Equal(t, name, c.Files[0].Path)
		assert.FileExists(t, filepath.Join(c.Retained, "output", name))
	}
	assert.Equal(t, ExitPassed, sum.ExitCode())
}

func TestRunFileOutputRejectedByDirectoryCandidate(t *testing.T) {
	cfg := testConfig(t, "dir")
	cfg.Matrix.Patterns = []string{"reference"}
	cfg.Matrix.Codecs = []string{"snappy"}

	sum, err := run(t, cfg)
	require.NoError(t, err)
	require.Len(t, sum.Cells, 1)
	require.NotNil(t, sum.Cells[0].Failure)
	assert.Equal(t, "exit_status", sum.Cells[0].Failure.Reason)
	assert.Contains(t, sum.Cells[0].Failure.Stderr, "Directory nonexistent")
}

func TestRunCancelled(t *testing.T) {
	cfg := testConfig(t, "sleep")
	r, err := NewRunner(context.Background(), cfg, logging.Discard())
	require.NoError(t, err)
	defer r.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	sum, err := r.Run(ctx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.Equal(t, ExitTotalFailure, sum.ExitCode())

	entries, err := os.ReadDir(cfg.Output.Dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestNewRunnerRequiresBinary(t *testing.T) {
	cfg := config.Default()
	_, err := NewRunner(context.Background(), cfg, logging.Discard())
	assert.Error(t, err)
}
