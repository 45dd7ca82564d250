package producer

import (
	"context"
	"fmt"
	"os"
	"sort"

	"github.com/parquet-go/parquet-go"
	"github.com/parquet-go/parquet-go/compress"

	"parquet-oracle/dataset"
)

// ParquetGo writes through parquet-go. parquet.Group orders columns by name,
// so files from this producer list columns lexicographically.
type ParquetGo struct{}

func NewParquetGo() *ParquetGo { return &ParquetGo{} }

func (p *ParquetGo) Name() string { return "parquet-go" }

func (p *ParquetGo) Version() string { return "github.com/parquet-go/parquet-go v0.24.0" }

var parquetGoCodecs = map[string]compress.Codec{
	"uncompressed": &parquet.Uncompressed,
	"snappy":       &parquet.Snappy,
	"gzip":         &parquet.Gzip,
	"lz4_raw":      &parquet.Lz4Raw,
	"zstd":         &parquet.Zstd,
	"brotli":       &parquet.Brotli,
}

func (p *ParquetGo) ColumnOrder(t *dataset.Table) []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	sort.Strings(names)
	return names
}

func (p *ParquetGo) Write(ctx context.Context, path string, t *dataset.Table, opts Options) error {
	codec, ok := parquetGoCodecs[opts.Codec]
	if !ok {
		return unsupported(p.Name(), "codec", opts.Codec)
	}

	schema, err := createParquetSchema(t, opts.Encoding)
	if err != nil {
		return fmt.Errorf("creating parquet schema: %w", err)
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating parquet file: %w", err)
	}
	defer file.Close()

	// fraugster/parquet-go misreads the levels of v2 data pages.
	writerOpts := []parquet.WriterOption{schema, parquet.Compression(codec), parquet.DataPageVersion(1)}
	if opts.RowGroupSize > 0 {
		writerOpts = append(writerOpts, parquet.MaxRowsPerRowGroup(opts.RowGroupSize))
	}
	pw := parquet.NewWriter(file, writerOpts...)

	// leaf index of each table column in the sorted schema
	leaf := make([]int, len(t.Columns))
	for i, c := range t.Columns {
		col, ok := schema.Lookup(c.Name)
		if !ok {
			return fmt.Errorf("column %s missing from schema", c.Name)
		}
		leaf[i] = col.ColumnIndex
	}

	rows := make([]parquet.Row, 0, 1024)
	flush := func() error {
		if _, err := pw.WriteRows(rows); err != nil {
			return fmt.Errorf("writing rows: %w", err)
		}
		rows = rows[:0]
		return nil
	}

	for r := 0; r < t.NumRows(); r++ {
		if r%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		row := make(parquet.Row, len(t.Columns))
		for i, c := range t.Columns {
			v, err := parquetValue(c, c.Values[r])
			if err != nil {
				return fmt.Errorf("column %s row %d: %w", c.Name, r, err)
			}
			row[leaf[i]] = v.Level(0, definitionLevel(c, c.Values[r]), leaf[i])
		}
		rows = append(rows, row)
		if len(rows) == cap(rows) {
			if err := flush(); err != nil {
				return err
			}
		}
	}
	if err := flush(); err != nil {
		return err
	}

	if err := pw.Close(); err != nil {
		return fmt.Errorf("closing parquet writer: %w", err)
	}
	return file.Close()
}

func definitionLevel(c *dataset.Column, v any) int {
	if c.Nullable && v != nil {
		return 1
	}
	return 0
}

func parquetValue(c *dataset.Column, v any) (parquet.Value, error) {
	switch x := v.(type) {
	case nil:
		return parquet.NullValue(), nil
	case bool:
		return parquet.BooleanValue(x), nil
	case int32:
		return parquet.Int32Value(x), nil
	case int64:
		return parquet.Int64Value(x), nil
	case float32:
		return parquet.FloatValue(x), nil
	case float64:
		return parquet.DoubleValue(x), nil
	case string:
		return parquet.ByteArrayValue([]byte(x)), nil
	case []byte:
		if c.Type == dataset.FixedLenByteArray {
			return parquet.FixedLenByteArrayValue(x), nil
		}
		return parquet.ByteArrayValue(x), nil
	}
	return parquet.Value{}, fmt.Errorf("unsupported value type %T", v)
}

func createParquetSchema(t *dataset.Table, encoding string) (*parquet.Schema, error) {
	root := make(parquet.Group)

	for _, c := range t.Columns {
		var node parquet.Node

		switch c.Type {
		case dataset.Boolean:
			node = parquet.Leaf(parquet.BooleanType)
		case dataset.Int32:
			node = parquet.Leaf(parquet.Int32Type)
		case dataset.Int64:
			node = parquet.Leaf(parquet.Int64Type)
		case dataset.Float32:
			node = parquet.Leaf(parquet.FloatType)
		case dataset.Float64:
			node = parquet.Leaf(parquet.DoubleType)
		case dataset.String:
			node = parquet.String()
		case dataset.Binary:
			node = parquet.Leaf(parquet.ByteArrayType)
		case dataset.FixedLenByteArray:
			node = parquet.Leaf(parquet.FixedLenByteArrayType(c.Width))
		case dataset.Date:
			node = parquet.Date()
		case dataset.Decimal:
			node = parquet.Decimal(c.Scale, c.Precision, parquet.Int64Type)
		default:
			return nil, fmt.Errorf("unsupported type: %s", c.Type)
		}

		switch encoding {
		case "", "plain":
		case "dictionary":
			if c.Type != dataset.Boolean {
				node = parquet.Encoded(node, &parquet.RLEDictionary)
			}
		case "delta":
			switch c.Type {
			case dataset.Int32, dataset.Int64, dataset.Date, dataset.Decimal:
				node = parquet.Encoded(node, &parquet.DeltaBinaryPacked)
			case dataset.String, dataset.Binary:
				node = parquet.Encoded(node, &parquet.DeltaLengthByteArray)
			}
		default:
			return nil, unsupported("parquet-go", "encoding", encoding)
		}

		if c.Nullable {
			node = parquet.Optional(node)
		}
		root[c.Name] = node
	}

	return parquet.NewSchema("schema", root), nil
}
