package manifest

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"parquet-oracle/dataset"
)

const referenceManifest = `{
  "num_rows": 1000,
  "columns": {
    "int32_col": { "first": [0, 10, 20, 30, 40], "type": "int32" },
    "int64_col": { "first": [0, 1000000, 2000000, 3000000, 4000000], "type": "int64" },
    "float_col": { "first": [0.0, 0.5, 1.0, 1.5, 2.0], "type": "float" },
    "double_col": { "first": [0.0, 0.125, 0.25, 0.375, 0.5], "type": "double" },
    "nullable_int": { "first": [null, 100, 200, 300, 400], "null_indices": [0, 5, 10, 15, 20], "type": "int32" }
  }
}`

func TestParseReferenceManifest(t *testing.T) {
	m, err := Parse([]byte(referenceManifest))
	require.NoError(t, err)

	assert.Equal(t, int64(1000), m.NumRows)
	require.Len(t, m.Columns, 5)

	names := make([]string, len(m.Columns))
	for i, c := range m.Columns {
		names[i] = c.Name
	}
	assert.Equal(t, []string{"int32_col", "int64_col", "float_col", "double_col", "nullable_int"}, names)

	assert.Equal(t, dataset.Float32, m.Columns[2].Type)
	assert.Equal(t, "float", m.Columns[2].TypeTag)
	assert.Equal(t, json.Number("1000000"), m.Columns[1].First[1])

	nullable := m.Columns[4]
	assert.Nil(t, nullable.First[0])
	assert.Equal(t, []int64{0, 5, 10, 15, 20}, nullable.NullIndices)
	assert.False(t, nullable.NullsComplete())
}

func TestParseKeepsInt64Precision(t *testing.T) {
	m, err := Parse([]byte(`{"num_rows": 1, "columns": {"big": {"type": "int64", "first": [9007199254740993]}}}`))
	require.NoError(t, err)
	assert.Equal(t, json.Number("9007199254740993"), m.Columns[0].First[0])
}

func TestParseComprehensiveFiles(t *testing.T) {
	data := `{
  "num_rows": 5000,
  "files": [
    {
      "path": "/tmp/out/carquet_zstd.parquet",
      "compression": "zstd",
      "columns": {
        "bool_col": { "first": [true, false, true, false, true], "type": "bool" },
        "string_col": { "first": [null, "world", "carquet", "parquet", "test"], "null_pattern": "every_7th", "type": "string" }
      }
    },
    { "path": "/tmp/out/carquet_snappy.parquet", "compression": "snappy", "row_groups": 1 }
  ],
  "verification": { "row_counts": 5000, "int32_sum": 12475000, "bool_true_count": 2500 }
}`
	_, err := Parse([]byte(data))
	require.Error(t, err, "second file has no columns and there are no top-level ones")
	assert.True(t, errors.Is(err, ErrInvalid))

	data = `{
  "num_rows": 5000,
  "columns": { "bool_col": { "first": [true], "type": "bool" } },
  "files": [
    {
      "path": "a.parquet",
      "compression": "zstd",
      "columns": {
        "string_col": { "first": [null, "world"], "null_pattern": "every_7th", "type": "string" }
      }
    },
    { "path": "b.parquet", "compression": "snappy", "row_groups": 1 }
  ],
  "verification": { "row_counts": 5000, "int32_sum": 12475000, "bool_true_count": 2500 }
}`
	m, err := Parse([]byte(data))
	require.NoError(t, err)
	require.Len(t, m.Files, 2)
	assert.Equal(t, 7, m.Files[0].Columns[0].NullEvery)
	assert.Equal(t, 1, *m.Files[1].RowGroups)

	keys := []string{}
	for _, f := range m.Verification {
		keys = append(keys, f.Key)
	}
	assert.Equal(t, []string{"row_counts", "int32_sum", "bool_true_count"}, keys)

	exps := m.Expectations("ignored.parquet")
	require.Len(t, exps, 2)
	assert.Equal(t, "a.parquet", exps[0].Path)
	assert.Equal(t, "string_col", exps[0].Columns[0].Name)
	assert.Equal(t, "bool_col", exps[1].Columns[0].Name, "inherits top-level columns")
	assert.Equal(t, "snappy", exps[1].Compression)
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		invalid bool
	}{
		{"not json", `num_rows: 3`, false},
		{"truncated", `{"num_rows": 3, "columns": {`, false},
		{"trailing", `{"num_rows": 1, "columns": {"a": {"type": "int32", "first": [1]}}} {}`, false},
		{"array root", `[1, 2]`, true},
		{"missing num_rows", `{"columns": {"a": {"type": "int32", "first": [1]}}}`, true},
		{"negative num_rows", `{"num_rows": -1, "columns": {"a": {"type": "int32", "first": []}}}`, true},
		{"no columns", `{"num_rows": 3}`, true},
		{"empty columns", `{"num_rows": 3, "columns": {}}`, true},
		{"unknown type", `{"num_rows": 3, "columns": {"a": {"type": "int96", "first": [1]}}}`, true},
		{"missing first", `{"num_rows": 3, "columns": {"a": {"type": "int32"}}}`, true},
		{"index out of range", `{"num_rows": 3, "columns": {"a": {"type": "int32", "first": [1], "null_indices": [3]}}}`, true},
		{"unsorted indices", `{"num_rows": 9, "columns": {"a": {"type": "int32", "first": [1], "null_indices": [4, 2]}}}`, true},
		{"count disagrees", `{"num_rows": 9, "columns": {"a": {"type": "int32", "first": [null], "null_indices": [0, 2], "null_count": 3}}}`, true},
		{"bad pattern", `{"num_rows": 9, "columns": {"a": {"type": "int32", "first": [1], "null_pattern": "sometimes"}}}`, true},
		{"too many samples", `{"num_rows": 1, "columns": {"a": {"type": "int32", "first": [1, 2]}}}`, true},
		{"duplicate column", `{"num_rows": 1, "columns": {"a": {"type": "int32", "first": [1]}, "a": {"type": "int32", "first": [1]}}}`, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse([]byte(tc.data))
			require.Error(t, err)
			assert.Equal(t, tc.invalid, errors.Is(err, ErrInvalid), err.Error())
		})
	}
}

func TestNullIndicesMatchCount(t *testing.T) {
	tbl, err := dataset.Generate(1, 1000, dataset.PatternSpec{Name: "reference"})
	require.NoError(t, err)

	m := FromTable(tbl, 5)
	for _, c := range m.Columns {
		if c.NullCount == nil {
			continue
		}
		assert.Equal(t, *c.NullCount, int64(len(c.NullIndices)), c.Name)
	}
}

func TestFromTableRoundTrip(t *testing.T) {
	for _, name := range dataset.Patterns() {
		t.Run(name, func(t *testing.T) {
			tbl, err := dataset.Generate(11, 120, dataset.PatternSpec{Name: name, NullRate: 0.2})
			require.NoError(t, err)

			m := FromTable(tbl, 5)
			data, err := json.Marshal(m)
			require.NoError(t, err)

			got, err := Parse(data)
			require.NoError(t, err)
			assert.Equal(t, m, got)
		})
	}
}

func TestFromTableValues(t *testing.T) {
	tbl, err := dataset.Generate(0, 5000, dataset.PatternSpec{Name: "comprehensive"})
	require.NoError(t, err)
	m := FromTable(tbl, 5)

	facts := map[string]any{}
	for _, f := range m.Verification {
		facts[f.Key] = f.Value
	}
	assert.Equal(t, json.Number("5000"), facts["row_counts"])
	assert.Equal(t, json.Number("2500"), facts["true_count_bool_col"])
	assert.Equal(t, json.Number("715"), facts["null_count_string_col"])
	assert.Equal(t, json.Number("1000"), facts["null_count_nullable_int"])
	assert.Equal(t, json.Number("99975000"), facts["sum_int32_col"])
	assert.Equal(t, json.Number("44990"), facts["last_int32_col"])

	assert.Equal(t, []any{json.Number("-1250"), json.Number("-1249.5"), json.Number("-1249"), json.Number("-1248.5"), json.Number("-1248")}, m.Columns[3].First)
}

func TestFromTableEncodesTypes(t *testing.T) {
	tbl, err := dataset.Generate(0, 4, dataset.PatternSpec{Name: "types"})
	require.NoError(t, err)
	m := FromTable(tbl, 2)

	date := m.Columns[2]
	assert.Equal(t, []any{nil, "2024-01-02"}, date.First)

	dec := m.Columns[3]
	assert.Equal(t, []any{"-5000.00", "-4876.55"}, dec.First)
}

func TestFromTableZeroRows(t *testing.T) {
	tbl, err := dataset.Generate(0, 0, dataset.PatternSpec{Name: "reference"})
	require.NoError(t, err)
	m := FromTable(tbl, 5)

	data, err := json.Marshal(m)
	require.NoError(t, err)
	got, err := Parse(data)
	require.NoError(t, err)
	assert.Equal(t, int64(0), got.NumRows)
	assert.Empty(t, got.Columns[0].First)
}

func TestFactResolve(t *testing.T) {
	cols := map[string]bool{"int32_col": true, "bool_col": true, "string_col": true, "nullable_int": true}
	has := func(s string) bool { return cols[s] }

	tests := []struct {
		key    string
		kind   FactKind
		column string
	}{
		{"row_counts", FactRowCount, ""},
		{"int32_sum", FactSum, "int32_col"},
		{"last_int32", FactLast, "int32_col"},
		{"bool_true_count", FactTrueCount, "bool_col"},
		{"null_count_string_col", FactNullCount, "string_col"},
		{"null_count_nullable_int", FactNullCount, "nullable_int"},
		{"sum_int32_col", FactSum, "int32_col"},
		{"checksum", FactUnknown, ""},
		{"sum_missing", FactUnknown, ""},
	}
	for _, tc := range tests {
		t.Run(tc.key, func(t *testing.T) {
			kind, col := Fact{Key: tc.key}.Resolve(has)
			assert.Equal(t, tc.kind, kind)
			assert.Equal(t, tc.column, col)
		})
	}
}
