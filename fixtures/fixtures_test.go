package fixtures

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"parquet-oracle/logging"
	"parquet-oracle/manifest"
	"parquet-oracle/oracle"
	"parquet-oracle/producer"
	"parquet-oracle/reader"
)

func allProducers(t *testing.T) []producer.Producer {
	t.Helper()
	var out []producer.Producer
	for _, name := range producer.Names() {
		p, err := producer.New(name)
		require.NoError(t, err)
		out = append(out, p)
	}
	return out
}

func TestGenerateAndSmoke(t *testing.T) {
	dir := t.TempDir()
	idx, err := Generate(context.Background(), Options{
		Dir:       dir,
		Rows:      300,
		Seed:      9,
		Patterns:  []string{"comprehensive", "types"},
		Codecs:    []string{"uncompressed", "snappy", "brotli"},
		Producers: allProducers(t),
	}, logging.Discard())
	require.NoError(t, err)

	assert.ElementsMatch(t, producer.Names(), idx.Libraries)
	assert.NotEmpty(t, idx.RunID)
	require.NotEmpty(t, idx.Files)
	for _, e := range idx.Files {
		assert.FileExists(t, filepath.Join(dir, e.Path))
		assert.Positive(t, e.FileSizeBytes)
		if e.Producer == "goparquet" {
			assert.NotEqual(t, "brotli", e.Compression, "goparquet cannot write brotli")
		}
	}

	loaded, err := LoadIndex(filepath.Join(dir, IndexFile))
	require.NoError(t, err)
	assert.Equal(t, idx.Files, loaded.Files)

	registry, err := reader.NewBuiltinRegistry(logging.Discard(), reader.Names(), 5)
	require.NoError(t, err)
	defer registry.Close()
	registry.Probe(context.Background())

	eval := oracle.NewEvaluator(registry, oracle.DefaultTolerances(), logging.Discard())
	report, err := Smoke(context.Background(), filepath.Join(dir, IndexFile), eval, 5, logging.Discard())
	require.NoError(t, err)

	require.Len(t, report.Files, len(idx.Files))
	for _, f := range report.Files {
		assert.True(t, f.Verdict.Passed(), "%s: %v", f.Entry.Name, f.Verdict.Discrepancies())
	}
	assert.True(t, report.Passed())

	written := map[string]bool{}
	for _, e := range idx.Files {
		written[e.Producer] = true
	}
	cells := report.Matrix()
	assert.Len(t, cells, len(written)*len(reader.Names()))
	for _, c := range cells {
		assert.Zero(t, c.Failed, "%s x %s", c.Producer, c.Reader)
	}
}

func TestMetrics(t *testing.T) {
	dir := t.TempDir()
	idx, err := Generate(context.Background(), Options{
		Dir:       dir,
		Rows:      10,
		Patterns:  []string{"reference"},
		Codecs:    []string{"snappy"},
		Producers: []producer.Producer{producer.NewArrow()},
	}, logging.Discard())
	require.NoError(t, err)
	require.Len(t, idx.Files, 1)

	m := idx.Files[0].Metrics
	assert.Equal(t, int64(2), m.NullValueCounts["nullable_int"])
	assert.Equal(t, int64(8), m.ValueCounts["nullable_int"])
	assert.Equal(t, int64(10), m.ValueCounts["int32_col"])
}

func TestSmokeDetectsCorruptFixture(t *testing.T) {
	dir := t.TempDir()
	idx, err := Generate(context.Background(), Options{
		Dir:       dir,
		Rows:      50,
		Patterns:  []string{"reference"},
		Codecs:    []string{"snappy"},
		Producers: []producer.Producer{producer.NewArrow()},
	}, logging.Discard())
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, idx.Files[0].Path), []byte("PAR1 not really"), 0o644))

	registry := reader.NewRegistry(logging.Discard(), reader.NewParquetGo(5))
	registry.Probe(context.Background())
	eval := oracle.NewEvaluator(registry, oracle.DefaultTolerances(), logging.Discard())

	report, err := Smoke(context.Background(), filepath.Join(dir, IndexFile), eval, 5, logging.Discard())
	require.NoError(t, err)
	assert.False(t, report.Passed())
	assert.Equal(t, oracle.OutcomeReadFailure, report.Files[0].Verdict.Verdicts[0].Outcome)
	assert.Equal(t, []Cell{{Producer: "arrow", Reader: "parquet-go", Failed: 1}}, report.Matrix())
}

func TestSmokeMissingIndex(t *testing.T) {
	registry := reader.NewRegistry(logging.Discard())
	eval := oracle.NewEvaluator(registry, oracle.DefaultTolerances(), logging.Discard())
	_, err := Smoke(context.Background(), filepath.Join(t.TempDir(), IndexFile), eval, 5, logging.Discard())
	assert.Error(t, err)
}

func TestReorder(t *testing.T) {
	cols := []manifest.Column{{Name: "b"}, {Name: "a"}, {Name: "c"}}
	got := reorder(cols, []string{"a", "b"})
	names := []string{got[0].Name, got[1].Name, got[2].Name}
	assert.Equal(t, []string{"a", "b", "c"}, names)
	assert.Equal(t, cols, reorder(cols, nil))
}
