//go:build !cgo

package reader

import (
	"context"
	"fmt"
)

// DuckDB is unavailable in builds without cgo.
type DuckDB struct {
	k int
}

func NewDuckDB(sampleSize int) *DuckDB {
	return &DuckDB{k: sampleSize}
}

func (d *DuckDB) Name() string { return "duckdb" }

func (d *DuckDB) Probe(ctx context.Context) error {
	return fmt.Errorf("%w: duckdb requires a cgo build", ErrUnavailable)
}

func (d *DuckDB) Read(ctx context.Context, path string) (*Result, error) {
	return nil, d.Probe(ctx)
}

func (d *DuckDB) Close() error { return nil }
