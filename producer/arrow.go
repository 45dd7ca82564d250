package producer

import (
	"context"
	"fmt"
	"os"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/decimal128"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/compress"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"

	"parquet-oracle/dataset"
)

// Arrow writes through pqarrow and keeps column order, which makes it the
// producer behind the built-in reference candidate.
type Arrow struct {
	mem memory.Allocator
}

func NewArrow() *Arrow {
	return &Arrow{mem: memory.DefaultAllocator}
}

func (a *Arrow) Name() string { return "arrow" }

func (a *Arrow) Version() string { return "github.com/apache/arrow-go/v18 v18.0.0" }

var arrowCodecs = map[string]compress.Compression{
	"uncompressed": compress.Codecs.Uncompressed,
	"snappy":       compress.Codecs.Snappy,
	"gzip":         compress.Codecs.Gzip,
	"lz4_raw":      compress.Codecs.Lz4Raw,
	"zstd":         compress.Codecs.Zstd,
	"brotli":       compress.Codecs.Brotli,
}

func arrowField(c *dataset.Column) (arrow.Field, error) {
	f := arrow.Field{Name: c.Name, Nullable: c.Nullable}
	switch c.Type {
	case dataset.Boolean:
		f.Type = arrow.FixedWidthTypes.Boolean
	case dataset.Int32:
		f.Type = arrow.PrimitiveTypes.Int32
	case dataset.Int64:
		f.Type = arrow.PrimitiveTypes.Int64
	case dataset.Float32:
		f.Type = arrow.PrimitiveTypes.Float32
	case dataset.Float64:
		f.Type = arrow.PrimitiveTypes.Float64
	case dataset.String:
		f.Type = arrow.BinaryTypes.String
	case dataset.Binary:
		f.Type = arrow.BinaryTypes.Binary
	case dataset.FixedLenByteArray:
		f.Type = &arrow.FixedSizeBinaryType{ByteWidth: c.Width}
	case dataset.Date:
		f.Type = arrow.FixedWidthTypes.Date32
	case dataset.Decimal:
		f.Type = &arrow.Decimal128Type{Precision: int32(c.Precision), Scale: int32(c.Scale)}
	default:
		return f, fmt.Errorf("unsupported type: %s", c.Type)
	}
	return f, nil
}

func (a *Arrow) Write(ctx context.Context, path string, t *dataset.Table, opts Options) error {
	codec, ok := arrowCodecs[opts.Codec]
	if !ok {
		return unsupported(a.Name(), "codec", opts.Codec)
	}

	fields := make([]arrow.Field, len(t.Columns))
	for i, c := range t.Columns {
		f, err := arrowField(c)
		if err != nil {
			return err
		}
		fields[i] = f
	}
	schema := arrow.NewSchema(fields, nil)

	// arrow-go marks the schema root REPEATED by default, which parquet-go
	// then applies to every column.
	props := []parquet.WriterProperty{
		parquet.WithCompression(codec),
		parquet.WithRootRepetition(parquet.Repetitions.Required),
	}
	switch opts.Encoding {
	case "":
	case "plain":
		props = append(props, parquet.WithDictionaryDefault(false))
	case "dictionary":
		props = append(props, parquet.WithDictionaryDefault(true))
	case "delta":
		props = append(props, parquet.WithDictionaryDefault(false))
		for _, c := range t.Columns {
			switch c.Type {
			case dataset.Int32, dataset.Int64, dataset.Date:
				props = append(props, parquet.WithEncodingFor(c.Name, parquet.Encodings.DeltaBinaryPacked))
			case dataset.String, dataset.Binary:
				props = append(props, parquet.WithEncodingFor(c.Name, parquet.Encodings.DeltaLengthByteArray))
			}
		}
	default:
		return unsupported(a.Name(), "encoding", opts.Encoding)
	}
	if opts.RowGroupSize > 0 {
		props = append(props, parquet.WithMaxRowGroupLength(opts.RowGroupSize))
	}

	rec, err := a.buildRecord(ctx, schema, t)
	if err != nil {
		return err
	}
	defer rec.Release()

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating parquet file: %w", err)
	}
	defer file.Close()

	writer, err := pqarrow.NewFileWriter(schema, file,
		parquet.NewWriterProperties(props...),
		pqarrow.NewArrowWriterProperties(pqarrow.WithStoreSchema()),
	)
	if err != nil {
		return fmt.Errorf("creating parquet writer: %w", err)
	}

	if err := writer.Write(rec); err != nil {
		writer.Close()
		return fmt.Errorf("writing record: %w", err)
	}
	// the writer closes the file
	if err := writer.Close(); err != nil {
		return fmt.Errorf("closing parquet writer: %w", err)
	}
	return nil
}

func (a *Arrow) buildRecord(ctx context.Context, schema *arrow.Schema, t *dataset.Table) (arrow.Record, error) {
	b := array.NewRecordBuilder(a.mem, schema)
	defer b.Release()

	for i, c := range t.Columns {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := appendColumn(b.Field(i), c); err != nil {
			return nil, fmt.Errorf("building column %s: %w", c.Name, err)
		}
	}
	return b.NewRecord(), nil
}

func appendColumn(fb array.Builder, c *dataset.Column) error {
	fb.Reserve(len(c.Values))
	for _, v := range c.Values {
		if v == nil {
			fb.AppendNull()
			continue
		}
		switch b := fb.(type) {
		case *array.BooleanBuilder:
			b.Append(v.(bool))
		case *array.Int32Builder:
			b.Append(v.(int32))
		case *array.Int64Builder:
			b.Append(v.(int64))
		case *array.Float32Builder:
			b.Append(v.(float32))
		case *array.Float64Builder:
			b.Append(v.(float64))
		case *array.StringBuilder:
			b.Append(v.(string))
		case *array.FixedSizeBinaryBuilder:
			b.Append(v.([]byte))
		case *array.BinaryBuilder:
			b.Append(v.([]byte))
		case *array.Date32Builder:
			b.Append(arrow.Date32(v.(int32)))
		case *array.Decimal128Builder:
			b.Append(decimal128.FromI64(v.(int64)))
		default:
			return fmt.Errorf("unsupported builder %T", fb)
		}
	}
	return nil
}
