//go:build !cgo

package producer

import (
	"context"
	"fmt"

	"parquet-oracle/dataset"
)

// DuckDB needs cgo; this build reports every write as unsupported.
type DuckDB struct{}

func NewDuckDB() *DuckDB { return &DuckDB{} }

func (d *DuckDB) Name() string { return "duckdb" }

func (d *DuckDB) Version() string { return "github.com/marcboeker/go-duckdb (unavailable without cgo)" }

func (d *DuckDB) Write(ctx context.Context, path string, t *dataset.Table, opts Options) error {
	return fmt.Errorf("%w: duckdb requires a cgo build", ErrUnsupported)
}
