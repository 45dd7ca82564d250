//go:build cgo

package reader

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDuckDBLoadsBundledParquet(t *testing.T) {
	db, err := sql.Open("duckdb", "")
	require.NoError(t, err)
	defer db.Close()

	ctx := context.Background()
	require.NoError(t, loadExtensions(ctx, db))

	var loaded bool
	require.NoError(t, db.QueryRowContext(ctx,
		"SELECT loaded FROM duckdb_extensions() WHERE extension_name = 'parquet'").Scan(&loaded))
	assert.True(t, loaded)
}

func TestDuckDBAvailable(t *testing.T) {
	d := NewDuckDB(5)
	defer d.Close()
	require.NoError(t, d.Probe(context.Background()))
}
