//go:build cgo

package producer

import (
	"context"
	"database/sql"
	"fmt"
	"math/big"
	"strings"
	"time"

	_ "github.com/marcboeker/go-duckdb"

	"parquet-oracle/dataset"
)

// DuckDB loads the table into an in-memory database and exports it with
// COPY ... TO (FORMAT PARQUET).
type DuckDB struct{}

func NewDuckDB() *DuckDB { return &DuckDB{} }

func (d *DuckDB) Name() string { return "duckdb" }

func (d *DuckDB) Version() string { return "github.com/marcboeker/go-duckdb v1.8.3" }

var duckdbCodecs = map[string]string{
	"uncompressed": "uncompressed",
	"snappy":       "snappy",
	"gzip":         "gzip",
	"zstd":         "zstd",
}

func duckdbColumnType(c *dataset.Column) (string, error) {
	switch c.Type {
	case dataset.Boolean:
		return "BOOLEAN", nil
	case dataset.Int32:
		return "INTEGER", nil
	case dataset.Int64:
		return "BIGINT", nil
	case dataset.Float32:
		return "FLOAT", nil
	case dataset.Float64:
		return "DOUBLE", nil
	case dataset.String:
		return "VARCHAR", nil
	case dataset.Binary, dataset.FixedLenByteArray:
		return "BLOB", nil
	case dataset.Date:
		return "DATE", nil
	case dataset.Decimal:
		return fmt.Sprintf("DECIMAL(%d, %d)", c.Precision, c.Scale), nil
	}
	return "", fmt.Errorf("unsupported type: %s", c.Type)
}

func quoteIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

func (d *DuckDB) Write(ctx context.Context, path string, t *dataset.Table, opts Options) error {
	codec, ok := duckdbCodecs[opts.Codec]
	if !ok {
		return unsupported(d.Name(), "codec", opts.Codec)
	}
	if opts.Encoding != "" {
		return unsupported(d.Name(), "encoding", opts.Encoding)
	}

	db, err := sql.Open("duckdb", "")
	if err != nil {
		return fmt.Errorf("opening duckdb: %w", err)
	}
	defer db.Close()

	defs := make([]string, len(t.Columns))
	marks := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		typ, err := duckdbColumnType(c)
		if err != nil {
			return err
		}
		defs[i] = quoteIdent(c.Name) + " " + typ
		if !c.Nullable {
			defs[i] += " NOT NULL"
		}
		marks[i] = "?"
	}
	if _, err := db.ExecContext(ctx, "CREATE TABLE oracle ("+strings.Join(defs, ", ")+")"); err != nil {
		return fmt.Errorf("creating table: %w", err)
	}

	if err := insertRows(ctx, db, t, marks); err != nil {
		return err
	}

	copyOpts := []string{"FORMAT PARQUET", "COMPRESSION '" + codec + "'"}
	if opts.RowGroupSize > 0 {
		copyOpts = append(copyOpts, fmt.Sprintf("ROW_GROUP_SIZE %d", opts.RowGroupSize))
	}
	query := fmt.Sprintf("COPY oracle TO '%s' (%s)", strings.ReplaceAll(path, "'", "''"), strings.Join(copyOpts, ", "))
	if _, err := db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("copying table to parquet: %w", err)
	}
	return nil
}

func insertRows(ctx context.Context, db *sql.DB, t *dataset.Table, marks []string) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, "INSERT INTO oracle VALUES ("+strings.Join(marks, ", ")+")")
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	args := make([]any, len(t.Columns))
	for r := 0; r < t.NumRows(); r++ {
		for i, c := range t.Columns {
			args[i] = duckdbArg(c, c.Values[r])
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return fmt.Errorf("inserting row %d: %w", r, err)
		}
	}
	return tx.Commit()
}

func duckdbArg(c *dataset.Column, v any) any {
	if v == nil {
		return nil
	}
	switch c.Type {
	case dataset.Date:
		return time.Unix(int64(v.(int32))*86400, 0).UTC()
	case dataset.Decimal:
		scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(c.Scale)), nil)
		return new(big.Rat).SetFrac(big.NewInt(v.(int64)), scale).FloatString(c.Scale)
	}
	return v
}
