//go:build cgo

package reader

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/marcboeker/go-duckdb"

	"parquet-oracle/dataset"
)

// DuckDB reads files with read_parquet through an in-process database and
// reports codecs from parquet_metadata.
type DuckDB struct {
	k  int
	db *sql.DB
	mu sync.Mutex
}

func NewDuckDB(sampleSize int) *DuckDB {
	return &DuckDB{k: sampleSize}
}

func (d *DuckDB) Name() string { return "duckdb" }

func (d *DuckDB) Probe(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.db != nil {
		return nil
	}

	db, err := sql.Open("duckdb", "")
	if err != nil {
		return fmt.Errorf("%w: opening duckdb: %v", ErrUnavailable, err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return fmt.Errorf("%w: connecting to duckdb: %v", ErrUnavailable, err)
	}
	if err := loadExtensions(ctx, db); err != nil {
		db.Close()
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	d.db = db
	return nil
}

// loadExtensions prefers the extensions bundled with go-duckdb and only
// downloads one when it is not built in.
func loadExtensions(ctx context.Context, db *sql.DB) error {
	extensions := []string{"parquet"}
	for _, ext := range extensions {
		if _, err := db.ExecContext(ctx, fmt.Sprintf("LOAD %s;", ext)); err == nil {
			continue
		}
		if _, err := db.ExecContext(ctx, fmt.Sprintf("INSTALL %s; LOAD %s;", ext, ext)); err != nil {
			return fmt.Errorf("loading extension %s: %w", ext, err)
		}
	}
	return nil
}

func (d *DuckDB) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.db == nil {
		return nil
	}
	err := d.db.Close()
	d.db = nil
	return err
}

func quoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

func (d *DuckDB) Read(ctx context.Context, path string) (*Result, error) {
	if err := d.Probe(ctx); err != nil {
		return nil, err
	}

	res := &Result{Reader: d.Name(), Path: path}
	lit := quoteLiteral(path)

	err := d.db.QueryRowContext(ctx,
		"SELECT num_rows, num_row_groups FROM parquet_file_metadata("+lit+")",
	).Scan(&res.NumRows, &res.RowGroups)
	if err != nil {
		return nil, fmt.Errorf("reading file metadata: %w", err)
	}

	if err := d.readCodecs(ctx, lit, res); err != nil {
		return nil, err
	}

	rows, err := d.db.QueryContext(ctx, "SELECT * FROM read_parquet("+lit+")")
	if err != nil {
		return nil, fmt.Errorf("querying file: %w", err)
	}
	defer rows.Close()

	columnTypes, err := rows.ColumnTypes()
	if err != nil {
		return nil, fmt.Errorf("getting column types: %w", err)
	}
	res.NumColumns = len(columnTypes)

	accs := make([]*accumulator, len(columnTypes))
	for i, ct := range columnTypes {
		accs[i] = newAccumulator(ct.Name(), duckdbType(ct.DatabaseTypeName()), ct.DatabaseTypeName(), d.k)
	}

	values := make([]any, len(columnTypes))
	scanArgs := make([]any, len(columnTypes))
	for i := range values {
		scanArgs[i] = &values[i]
	}

	for rows.Next() {
		if err := rows.Scan(scanArgs...); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		for i, v := range values {
			accs[i].add(duckdbValue(v))
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating rows: %w", err)
	}

	for _, a := range accs {
		res.Columns = append(res.Columns, a.result())
	}
	return res, nil
}

func (d *DuckDB) readCodecs(ctx context.Context, lit string, res *Result) error {
	rows, err := d.db.QueryContext(ctx,
		"SELECT DISTINCT compression, encodings FROM parquet_metadata("+lit+")")
	if err != nil {
		return fmt.Errorf("reading column chunk metadata: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var codec, encodings sql.NullString
		if err := rows.Scan(&codec, &encodings); err != nil {
			return fmt.Errorf("scanning column chunk metadata: %w", err)
		}
		res.addCodec(strings.ToLower(codec.String))
		for _, enc := range strings.Split(encodings.String, ",") {
			res.addEncoding(strings.ToLower(strings.TrimSpace(enc)))
		}
	}
	return rows.Err()
}

func duckdbType(databaseTypeName string) dataset.PhysicalType {
	switch {
	case databaseTypeName == "BOOLEAN":
		return dataset.Boolean
	case databaseTypeName == "INTEGER":
		return dataset.Int32
	case databaseTypeName == "BIGINT":
		return dataset.Int64
	case databaseTypeName == "FLOAT":
		return dataset.Float32
	case databaseTypeName == "DOUBLE":
		return dataset.Float64
	case databaseTypeName == "VARCHAR":
		return dataset.String
	case databaseTypeName == "BLOB":
		return dataset.Binary
	case databaseTypeName == "DATE":
		return dataset.Date
	case strings.HasPrefix(databaseTypeName, "DECIMAL"):
		return dataset.Decimal
	}
	return ""
}

func duckdbValue(v any) any {
	switch x := v.(type) {
	case duckdb.Decimal:
		return Decimal{Unscaled: x.Value, Scale: int32(x.Scale)}
	case time.Time:
		return x.UTC()
	case []byte:
		return bytes.Clone(x)
	}
	return v
}
