package reader

import (
	"math/big"
	"slices"

	"parquet-oracle/dataset"
)

// Decimal is a decimal value as decoded by a reader: Unscaled * 10^-Scale.
type Decimal struct {
	Unscaled *big.Int
	Scale    int32
}

// ColumnResult is one column as observed by a reader. Sample values are raw
// library values narrowed to nil, bool, int32, int64, float32, float64,
// []byte, string, time.Time or Decimal.
type ColumnResult struct {
	Name       string
	Type       dataset.PhysicalType // empty when the native type has no mapping
	NativeType string

	Count       int64
	NullCount   int64
	NullIndices []int64
	First       []any
	Last        []any

	IntSum    *big.Int // integer columns only
	FloatSum  float64
	TrueCount int64
}

// Result is a fresh, uncached view of one file through one reader.
type Result struct {
	Reader     string
	Path       string
	NumRows    int64
	NumColumns int
	RowGroups  int

	// Codecs and Encodings list what the footer declares, lowercase and
	// deduplicated. Empty when the library does not expose them.
	Codecs    []string
	Encodings []string

	Columns []ColumnResult
}

// Column returns the column named name, or nil.
func (r *Result) Column(name string) *ColumnResult {
	for i := range r.Columns {
		if r.Columns[i].Name == name {
			return &r.Columns[i]
		}
	}
	return nil
}

func (r *Result) addCodec(codec string) {
	if codec != "" && !slices.Contains(r.Codecs, codec) {
		r.Codecs = append(r.Codecs, codec)
	}
}

func (r *Result) addEncoding(enc string) {
	if enc != "" && !slices.Contains(r.Encodings, enc) {
		r.Encodings = append(r.Encodings, enc)
	}
}
