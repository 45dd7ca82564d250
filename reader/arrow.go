package reader

import (
	"bytes"
	"context"
	"fmt"
	"os"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet/file"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"

	"parquet-oracle/dataset"
)

// Arrow reads whole files into an Arrow table through pqarrow.
type Arrow struct {
	k         int
	batchSize int64
}

func NewArrow(sampleSize int) *Arrow {
	return &Arrow{k: sampleSize, batchSize: 8192}
}

func (a *Arrow) Name() string { return "arrow" }

func (a *Arrow) Probe(ctx context.Context) error { return nil }

func (a *Arrow) Read(ctx context.Context, path string) (*Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening file: %w", err)
	}
	defer f.Close()

	pr, err := file.NewParquetReader(f)
	if err != nil {
		return nil, fmt.Errorf("opening parquet file: %w", err)
	}
	defer pr.Close()

	fr, err := pqarrow.NewFileReader(pr, pqarrow.ArrowReadProperties{BatchSize: a.batchSize}, memory.DefaultAllocator)
	if err != nil {
		return nil, fmt.Errorf("creating arrow reader: %w", err)
	}

	tbl, err := fr.ReadTable(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading table: %w", err)
	}
	defer tbl.Release()

	res := &Result{
		Reader:     a.Name(),
		Path:       path,
		NumRows:    tbl.NumRows(),
		NumColumns: int(tbl.NumCols()),
		RowGroups:  pr.NumRowGroups(),
	}

	for i := 0; i < int(tbl.NumCols()); i++ {
		col := tbl.Column(i)
		acc := newAccumulator(col.Name(), arrowType(col.DataType()), col.DataType().String(), a.k)
		for _, chunk := range col.Data().Chunks() {
			if err := addArrowChunk(acc, chunk); err != nil {
				return nil, fmt.Errorf("reading column %s: %w", col.Name(), err)
			}
		}
		res.Columns = append(res.Columns, acc.result())
	}
	return res, nil
}

func arrowType(dt arrow.DataType) dataset.PhysicalType {
	switch dt.ID() {
	case arrow.BOOL:
		return dataset.Boolean
	case arrow.INT32:
		return dataset.Int32
	case arrow.INT64:
		return dataset.Int64
	case arrow.FLOAT32:
		return dataset.Float32
	case arrow.FLOAT64:
		return dataset.Float64
	case arrow.STRING, arrow.LARGE_STRING:
		return dataset.String
	case arrow.BINARY, arrow.LARGE_BINARY:
		return dataset.Binary
	case arrow.FIXED_SIZE_BINARY:
		return dataset.FixedLenByteArray
	case arrow.DATE32:
		return dataset.Date
	case arrow.DECIMAL128, arrow.DECIMAL256:
		return dataset.Decimal
	}
	return ""
}

// addArrowChunk feeds one chunk into acc. Byte values are copied since the
// table's buffers are released when Read returns.
func addArrowChunk(acc *accumulator, chunk arrow.Array) error {
	for i := 0; i < chunk.Len(); i++ {
		if chunk.IsNull(i) {
			acc.add(nil)
			continue
		}
		switch arr := chunk.(type) {
		case *array.Boolean:
			acc.add(arr.Value(i))
		case *array.Int32:
			acc.add(arr.Value(i))
		case *array.Int64:
			acc.add(arr.Value(i))
		case *array.Float32:
			acc.add(arr.Value(i))
		case *array.Float64:
			acc.add(arr.Value(i))
		case *array.String:
			acc.add(arr.Value(i))
		case *array.LargeString:
			acc.add(arr.Value(i))
		case *array.Binary:
			acc.add(bytes.Clone(arr.Value(i)))
		case *array.LargeBinary:
			acc.add(bytes.Clone(arr.Value(i)))
		case *array.FixedSizeBinary:
			acc.add(bytes.Clone(arr.Value(i)))
		case *array.Date32:
			acc.add(int32(arr.Value(i)))
		case *array.Decimal128:
			scale := arr.DataType().(*arrow.Decimal128Type).Scale
			acc.add(Decimal{Unscaled: arr.Value(i).BigInt(), Scale: scale})
		case *array.Decimal256:
			scale := arr.DataType().(*arrow.Decimal256Type).Scale
			acc.add(Decimal{Unscaled: arr.Value(i).BigInt(), Scale: scale})
		default:
			return fmt.Errorf("unsupported arrow type %s", chunk.DataType())
		}
	}
	return nil
}
