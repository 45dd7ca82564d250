package reader

import (
	"bytes"
	"context"
	"errors"
	"math/big"
	"path/filepath"
	"testing"

	goparquet "github.com/fraugster/parquet-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"parquet-oracle/dataset"
	"parquet-oracle/logging"
	"parquet-oracle/producer"
)

func writeFile(t *testing.T, pattern string, rows int, opts producer.Options) string {
	t.Helper()

	tbl, err := dataset.Generate(1, rows, dataset.PatternSpec{Name: pattern})
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), pattern+".parquet")
	require.NoError(t, producer.NewArrow().Write(context.Background(), path, tbl, opts))
	return path
}

func availableAdapters(t *testing.T) []Adapter {
	t.Helper()

	var out []Adapter
	for _, name := range Names() {
		a, err := New(name, 5)
		require.NoError(t, err)
		if err := a.Probe(context.Background()); err != nil {
			t.Logf("skipping %s: %v", name, err)
			continue
		}
		out = append(out, a)
	}
	return out
}

func TestAccumulator(t *testing.T) {
	acc := newAccumulator("n", dataset.Int32, "INT32", 3)
	for i := 0; i < 10; i++ {
		if i%4 == 0 {
			acc.add(nil)
			continue
		}
		acc.add(int32(i))
	}
	col := acc.result()

	assert.Equal(t, int64(10), col.Count)
	assert.Equal(t, int64(3), col.NullCount)
	assert.Equal(t, []int64{0, 4, 8}, col.NullIndices)
	assert.Equal(t, []any{nil, int32(1), int32(2)}, col.First)
	assert.Equal(t, []any{int32(7), nil, int32(9)}, col.Last)
	assert.Equal(t, big.NewInt(1+2+3+5+6+7+9), col.IntSum)
}

func TestAccumulatorShortColumn(t *testing.T) {
	acc := newAccumulator("b", dataset.Boolean, "BOOLEAN", 5)
	acc.add(true)
	acc.add(false)
	acc.add(true)
	col := acc.result()

	assert.Equal(t, []any{true, false, true}, col.First)
	assert.Equal(t, []any{true, false, true}, col.Last)
	assert.Equal(t, int64(2), col.TrueCount)
	assert.Nil(t, col.IntSum)
}

func TestAccumulatorEmpty(t *testing.T) {
	col := newAccumulator("f", dataset.Float64, "DOUBLE", 5).result()
	assert.Zero(t, col.Count)
	assert.Empty(t, col.First)
	assert.Empty(t, col.Last)
	assert.Empty(t, col.NullIndices)
}

func TestTwosComplement(t *testing.T) {
	assert.Equal(t, big.NewInt(-1), twosComplement([]byte{0xff}))
	assert.Equal(t, big.NewInt(255), twosComplement([]byte{0x00, 0xff}))
	assert.Equal(t, big.NewInt(-500000), twosComplement([]byte{0xf8, 0x5e, 0xe0}))
	assert.Equal(t, big.NewInt(0), twosComplement(nil))
}

func TestAdaptersReadComprehensive(t *testing.T) {
	path := writeFile(t, "comprehensive", 200, producer.Options{Codec: "snappy"})

	for _, a := range availableAdapters(t) {
		t.Run(a.Name(), func(t *testing.T) {
			res, err := a.Read(context.Background(), path)
			require.NoError(t, err)

			assert.Equal(t, a.Name(), res.Reader)
			assert.Equal(t, int64(200), res.NumRows)
			assert.Equal(t, 7, res.NumColumns)

			names := make([]string, len(res.Columns))
			for i, c := range res.Columns {
				names[i] = c.Name
			}
			assert.Equal(t, []string{"bool_col", "int32_col", "int64_col", "float_col", "double_col", "string_col", "nullable_int"}, names)

			i32 := res.Column("int32_col")
			require.NotNil(t, i32)
			assert.Equal(t, dataset.Int32, i32.Type)
			assert.Equal(t, []any{int32(-5000), int32(-4990), int32(-4980), int32(-4970), int32(-4960)}, i32.First)
			assert.Equal(t, int32(199*10-5000), i32.Last[4])
			assert.Equal(t, big.NewInt(-801000), i32.IntSum)

			assert.Equal(t, int64(100), res.Column("bool_col").TrueCount)
			assert.Equal(t, int64(29), res.Column("string_col").NullCount)
			assert.Equal(t, dataset.String, res.Column("string_col").Type)
			assert.Equal(t, "world", res.Column("string_col").First[1])
			assert.Equal(t, int64(40), res.Column("nullable_int").NullCount)
			assert.Equal(t, []int64{0, 5, 10}, res.Column("nullable_int").NullIndices[:3])
			assert.Equal(t, float32(-1249.5), res.Column("float_col").First[1])
		})
	}
}

func TestAdaptersReadAllNull(t *testing.T) {
	path := writeFile(t, "all_null", 12, producer.Options{Codec: "zstd"})

	for _, a := range availableAdapters(t) {
		t.Run(a.Name(), func(t *testing.T) {
			res, err := a.Read(context.Background(), path)
			require.NoError(t, err)

			assert.Equal(t, int64(12), res.Column("null_int").NullCount)
			assert.Equal(t, int64(12), res.Column("null_string").NullCount)
			assert.Equal(t, int64(0), res.Column("present_int").NullCount)
		})
	}
}

func TestParquetGoReportsFooter(t *testing.T) {
	path := writeFile(t, "reference", 100, producer.Options{Codec: "zstd", RowGroupSize: 30})

	res, err := NewParquetGo(5).Read(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, []string{"zstd"}, res.Codecs)
	assert.Equal(t, 4, res.RowGroups)
	assert.Equal(t, int64(100), res.Column("int32_col").Count)
}

func TestGoParquetExtraCodecs(t *testing.T) {
	for _, codec := range []string{"zstd", "brotli", "lz4_raw"} {
		t.Run(codec, func(t *testing.T) {
			path := writeFile(t, "reference", 60, producer.Options{Codec: codec})
			res, err := NewGoParquet(5).Read(context.Background(), path)
			require.NoError(t, err)
			assert.Equal(t, int64(60), res.NumRows)
			assert.Equal(t, int64(60), res.Column("int32_col").Count)
		})
	}
}

func TestGoParquetBlockCompressors(t *testing.T) {
	block := bytes.Repeat([]byte("int32_col=0,10,20,30;"), 20000)
	for name, bc := range map[string]goparquet.BlockCompressor{
		"zstd":    zstdBlock{},
		"brotli":  brotliBlock{},
		"lz4_raw": lz4RawBlock{},
	} {
		t.Run(name, func(t *testing.T) {
			packed, err := bc.CompressBlock(block)
			require.NoError(t, err)
			assert.Less(t, len(packed), len(block))

			out, err := bc.DecompressBlock(packed)
			require.NoError(t, err)
			assert.Equal(t, block, out)
		})
	}
}

func TestAdaptersReadEmptyFile(t *testing.T) {
	for _, pattern := range dataset.Patterns() {
		t.Run(pattern, func(t *testing.T) {
			path := writeFile(t, pattern, 0, producer.Options{Codec: "snappy"})
			for _, a := range availableAdapters(t) {
				res, err := a.Read(context.Background(), path)
				require.NoError(t, err, a.Name())
				assert.Equal(t, int64(0), res.NumRows, a.Name())
				for _, c := range res.Columns {
					assert.Empty(t, c.First, a.Name()+" "+c.Name)
				}
			}
		})
	}
}

func TestReadMissingFile(t *testing.T) {
	for _, a := range availableAdapters(t) {
		_, err := a.Read(context.Background(), filepath.Join(t.TempDir(), "absent.parquet"))
		assert.Error(t, err, a.Name())
	}
}

type fakeAdapter struct {
	name   string
	err    error
	probes int
}

func (f *fakeAdapter) Name() string { return f.name }

func (f *fakeAdapter) Probe(ctx context.Context) error {
	f.probes++
	return f.err
}

func (f *fakeAdapter) Read(ctx context.Context, path string) (*Result, error) {
	return &Result{Reader: f.name, Path: path}, nil
}

func TestRegistry(t *testing.T) {
	ok := &fakeAdapter{name: "ok"}
	gone := &fakeAdapter{name: "gone", err: ErrUnavailable}
	broken := &fakeAdapter{name: "broken", err: errors.New("library panicked")}

	r := NewRegistry(logging.Discard(), ok, gone, broken)
	r.Probe(context.Background())
	r.Probe(context.Background())

	assert.Equal(t, 1, ok.probes, "probes run once")
	require.Len(t, r.Available(), 1)
	assert.Equal(t, "ok", r.Available()[0].Name())

	unavailable := r.Unavailable()
	require.Len(t, unavailable, 2)
	assert.Equal(t, "gone", unavailable[0].Name)
	assert.True(t, errors.Is(unavailable[1].Err, ErrUnavailable))
	assert.Contains(t, unavailable[1].Err.Error(), "library panicked")
	assert.NoError(t, r.Close())
}

func TestUnknownAdapter(t *testing.T) {
	_, err := New("pyarrow", 5)
	assert.Error(t, err)

	_, err = NewBuiltinRegistry(logging.Discard(), []string{"arrow", "fastparquet"}, 5)
	assert.Error(t, err)
}
