package dataset

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateDeterministic(t *testing.T) {
	for _, name := range Patterns() {
		t.Run(name, func(t *testing.T) {
			spec := PatternSpec{Name: name, NullRate: 0.1}
			a, err := Generate(7, 300, spec)
			require.NoError(t, err)
			b, err := Generate(7, 300, spec)
			require.NoError(t, err)
			assert.Equal(t, a, b)
		})
	}
}

func TestGenerateSeedChangesProfile(t *testing.T) {
	a, err := Generate(1, 50, PatternSpec{Name: "profile", NullRate: 0.1})
	require.NoError(t, err)
	b, err := Generate(2, 50, PatternSpec{Name: "profile", NullRate: 0.1})
	require.NoError(t, err)
	assert.NotEqual(t, a.Column("int32_col").Values, b.Column("int32_col").Values)
}

func TestNullRateDoesNotShiftValues(t *testing.T) {
	a, err := Generate(3, 200, PatternSpec{Name: "profile", NullRate: 0})
	require.NoError(t, err)
	b, err := Generate(3, 200, PatternSpec{Name: "profile", NullRate: 0.5})
	require.NoError(t, err)

	assert.Equal(t, a.Column("id").Values, b.Column("id").Values)
	assert.Zero(t, a.Column("nullable_val").NullCount())
	assert.Positive(t, b.Column("nullable_val").NullCount())
}

func TestReferencePattern(t *testing.T) {
	tbl, err := Generate(0, 1000, PatternSpec{Name: "reference"})
	require.NoError(t, err)

	assert.Equal(t, 1000, tbl.NumRows())
	assert.Equal(t, []any{int32(0), int32(10), int32(20), int32(30), int32(40)}, tbl.Column("int32_col").Values[:5])
	assert.Equal(t, int64(999_000_000), tbl.Column("int64_col").Values[999])
	assert.Equal(t, float32(1.5), tbl.Column("float_col").Values[3])
	assert.Equal(t, 0.375, tbl.Column("double_col").Values[3])

	nullable := tbl.Column("nullable_int")
	assert.Equal(t, []int64{0, 5, 10, 15, 20}, nullable.NullIndices()[:5])
	assert.Equal(t, 200, nullable.NullCount())
	assert.Equal(t, []any{nil, int32(100), int32(200), int32(300), int32(400)}, nullable.Values[:5])
}

func TestComprehensivePattern(t *testing.T) {
	tbl, err := Generate(0, 5000, PatternSpec{Name: "comprehensive"})
	require.NoError(t, err)

	assert.Equal(t, []any{true, false, true, false, true}, tbl.Column("bool_col").Values[:5])
	assert.Equal(t, int32(-5000), tbl.Column("int32_col").Values[0])
	assert.Equal(t, int32(4990*10-5000), tbl.Column("int32_col").Values[4990])
	assert.Equal(t, int64(-2_500_000_000), tbl.Column("int64_col").Values[0])
	assert.Equal(t, float32(-1249.5), tbl.Column("float_col").Values[1])
	assert.Equal(t, (5000+6)/7, tbl.Column("string_col").NullCount())
	assert.Equal(t, (5000+4)/5, tbl.Column("nullable_int").NullCount())
	assert.Equal(t, []any{nil, "world", "carquet", "parquet", "test"}, tbl.Column("string_col").Values[:5])
}

func TestGenerateBoundaries(t *testing.T) {
	t.Run("zero rows", func(t *testing.T) {
		tbl, err := Generate(1, 0, PatternSpec{Name: "comprehensive"})
		require.NoError(t, err)
		assert.Equal(t, 0, tbl.NumRows())
		assert.Len(t, tbl.Columns, 7)
	})

	t.Run("single row", func(t *testing.T) {
		tbl, err := Generate(1, 1, PatternSpec{Name: "reference"})
		require.NoError(t, err)
		assert.Equal(t, 1, tbl.NumRows())
		assert.Nil(t, tbl.Column("nullable_int").Values[0])
	})

	t.Run("all null", func(t *testing.T) {
		tbl, err := Generate(1, 10, PatternSpec{Name: "all_null"})
		require.NoError(t, err)
		assert.Equal(t, 10, tbl.Column("null_int").NullCount())
		assert.Equal(t, 10, tbl.Column("null_string").NullCount())
		assert.Zero(t, tbl.Column("present_int").NullCount())
	})

	t.Run("negative rows", func(t *testing.T) {
		_, err := Generate(1, -1, PatternSpec{Name: "reference"})
		assert.Error(t, err)
	})

	t.Run("unknown pattern", func(t *testing.T) {
		_, err := Generate(1, 1, PatternSpec{Name: "nope"})
		assert.Error(t, err)
	})
}

func TestProfileNullEvery(t *testing.T) {
	tbl, err := Generate(9, 100, PatternSpec{Name: "profile", NullEvery: 4})
	require.NoError(t, err)
	assert.Equal(t, 25, tbl.Column("nullable_val").NullCount())

	for _, v := range tbl.Column("category").Values {
		assert.Less(t, v.(int32), int32(100))
	}
}

func TestTableValidate(t *testing.T) {
	tbl := &Table{Columns: []*Column{
		{Name: "a", Type: Int32, Values: []any{int32(1), int32(2)}},
		{Name: "b", Type: Int32, Values: []any{int32(1)}},
	}}
	assert.Error(t, tbl.Validate())

	tbl = &Table{Columns: []*Column{
		{Name: "a", Type: Int32, Values: []any{nil}},
	}}
	assert.Error(t, tbl.Validate())

	tbl = &Table{Columns: []*Column{
		{Name: "a", Type: Int32, Values: []any{int32(1)}},
		{Name: "a", Type: Int64, Values: []any{int64(1)}},
	}}
	assert.Error(t, tbl.Validate())
}

func TestParseType(t *testing.T) {
	tests := map[string]PhysicalType{
		"bool":       Boolean,
		"float":      Float32,
		"double":     Float64,
		"INT64":      Int64,
		"utf8":       String,
		"byte_array": Binary,
		"fixed":      FixedLenByteArray,
	}
	for tag, want := range tests {
		got, err := ParseType(tag)
		require.NoError(t, err, tag)
		assert.Equal(t, want, got, tag)
	}

	_, err := ParseType("int96")
	assert.Error(t, err)
}

func TestJSONLinesRoundTrip(t *testing.T) {
	for _, name := range []string{"comprehensive", "types", "all_null"} {
		t.Run(name, func(t *testing.T) {
			tbl, err := Generate(5, 40, PatternSpec{Name: name})
			require.NoError(t, err)

			var buf bytes.Buffer
			require.NoError(t, WriteJSONLines(&buf, tbl))

			got, err := ReadJSONLines(&buf)
			require.NoError(t, err)
			assert.Equal(t, tbl, got)
		})
	}
}
