package reader

import (
	"bytes"
	"context"
	"fmt"
	"math/big"
	"os"

	goparquet "github.com/fraugster/parquet-go"
	"github.com/fraugster/parquet-go/parquet"

	"parquet-oracle/dataset"
)

// GoParquet reads files row by row through fraugster/parquet-go. Nulls show
// up as keys missing from the row map.
type GoParquet struct {
	k int
}

func NewGoParquet(sampleSize int) *GoParquet {
	return &GoParquet{k: sampleSize}
}

func (g *GoParquet) Name() string { return "goparquet" }

func (g *GoParquet) Probe(ctx context.Context) error { return nil }

type goparquetColumn struct {
	name   string
	acc    *accumulator
	decode func(any) any
}

func (g *GoParquet) Read(ctx context.Context, path string) (*Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening file: %w", err)
	}
	defer f.Close()

	fr, err := goparquet.NewFileReader(f)
	if err != nil {
		return nil, fmt.Errorf("opening parquet file: %w", err)
	}

	sd := fr.GetSchemaDefinition()
	if sd == nil || sd.RootColumn == nil {
		return nil, fmt.Errorf("reading schema: file has no schema definition")
	}

	cols := make([]goparquetColumn, 0, len(sd.RootColumn.Children))
	for _, child := range sd.RootColumn.Children {
		el := child.SchemaElement
		if len(child.Children) > 0 {
			return nil, fmt.Errorf("column %s: nested columns are not supported", el.Name)
		}
		typ, decode := goparquetType(el)
		cols = append(cols, goparquetColumn{
			name:   el.Name,
			acc:    newAccumulator(el.Name, typ, el.GetType().String(), g.k),
			decode: decode,
		})
	}

	// NextRow on a file without row groups fails instead of returning io.EOF.
	for n := int64(0); n < fr.NumRows(); n++ {
		if n%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		row, err := fr.NextRow()
		if err != nil {
			return nil, fmt.Errorf("reading row %d: %w", n, err)
		}
		for _, c := range cols {
			v, ok := row[c.name]
			if !ok || v == nil {
				c.acc.add(nil)
				continue
			}
			c.acc.add(c.decode(v))
		}
	}

	res := &Result{
		Reader:     g.Name(),
		Path:       path,
		NumRows:    fr.NumRows(),
		NumColumns: len(cols),
		RowGroups:  fr.RowGroupCount(),
	}
	for _, c := range cols {
		res.Columns = append(res.Columns, c.acc.result())
	}
	return res, nil
}

func goparquetType(el *parquet.SchemaElement) (dataset.PhysicalType, func(any) any) {
	identity := func(v any) any { return v }
	cloneBytes := func(v any) any {
		if b, ok := v.([]byte); ok {
			return bytes.Clone(b)
		}
		return v
	}
	lt := el.GetLogicalType()
	converted := func(ct parquet.ConvertedType) bool {
		return el.ConvertedType != nil && *el.ConvertedType == ct
	}

	switch {
	case (lt != nil && lt.IsSetDECIMAL()) || converted(parquet.ConvertedType_DECIMAL):
		scale := el.GetScale()
		if lt != nil && lt.IsSetDECIMAL() {
			scale = lt.DECIMAL.Scale
		}
		return dataset.Decimal, func(v any) any {
			switch x := v.(type) {
			case int32:
				return Decimal{Unscaled: big.NewInt(int64(x)), Scale: scale}
			case int64:
				return Decimal{Unscaled: big.NewInt(x), Scale: scale}
			case []byte:
				return Decimal{Unscaled: twosComplement(x), Scale: scale}
			}
			return v
		}
	case (lt != nil && lt.IsSetDATE()) || converted(parquet.ConvertedType_DATE):
		return dataset.Date, identity
	case (lt != nil && lt.IsSetSTRING()) || converted(parquet.ConvertedType_UTF8):
		return dataset.String, func(v any) any {
			if b, ok := v.([]byte); ok {
				return string(b)
			}
			return v
		}
	}

	switch el.GetType() {
	case parquet.Type_BOOLEAN:
		return dataset.Boolean, identity
	case parquet.Type_INT32:
		return dataset.Int32, identity
	case parquet.Type_INT64:
		return dataset.Int64, identity
	case parquet.Type_FLOAT:
		return dataset.Float32, identity
	case parquet.Type_DOUBLE:
		return dataset.Float64, identity
	case parquet.Type_BYTE_ARRAY:
		return dataset.Binary, cloneBytes
	case parquet.Type_FIXED_LEN_BYTE_ARRAY:
		return dataset.FixedLenByteArray, cloneBytes
	}
	return "", identity
}
