// Package producer writes generated tables to Parquet with independent
// implementations. Producers feed the fixture pipeline and back the built-in
// reference candidate.
package producer

import (
	"context"
	"errors"
	"fmt"

	"parquet-oracle/dataset"
)

// ErrUnsupported is returned for a codec or encoding a producer cannot write.
var ErrUnsupported = errors.New("unsupported by producer")

type Options struct {
	// Codec is one of uncompressed, snappy, gzip, lz4_raw, zstd or brotli.
	Codec string
	// Encoding is plain, dictionary or delta. Empty leaves the library
	// default in place.
	Encoding string
	// RowGroupSize caps rows per row group. Zero writes one row group.
	RowGroupSize int64
}

type Producer interface {
	Name() string
	// Version reports the library and version for fixture manifests.
	Version() string
	Write(ctx context.Context, path string, t *dataset.Table, opts Options) error
}

// ColumnOrderer is implemented by producers that do not keep the table's
// column order. ColumnOrder returns the order the file will have.
type ColumnOrderer interface {
	ColumnOrder(t *dataset.Table) []string
}

// ColumnOrder returns the column order p writes t with.
func ColumnOrder(p Producer, t *dataset.Table) []string {
	if o, ok := p.(ColumnOrderer); ok {
		return o.ColumnOrder(t)
	}
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

// Names lists the built-in producers.
func Names() []string {
	return []string{"parquet-go", "arrow", "goparquet", "duckdb"}
}

func New(name string) (Producer, error) {
	switch name {
	case "parquet-go":
		return NewParquetGo(), nil
	case "arrow":
		return NewArrow(), nil
	case "goparquet":
		return NewGoParquet(), nil
	case "duckdb":
		return NewDuckDB(), nil
	}
	return nil, fmt.Errorf("unknown producer %q", name)
}

func unsupported(producer, what, value string) error {
	return fmt.Errorf("%w: %s %s %q", ErrUnsupported, producer, what, value)
}
