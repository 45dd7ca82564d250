package reader

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"math/big"
	"os"
	"strings"

	"github.com/parquet-go/parquet-go"

	"parquet-oracle/dataset"
)

// ParquetGo reads files column by column through parquet-go pages and
// reports footer codecs and encodings.
type ParquetGo struct {
	k int
}

func NewParquetGo(sampleSize int) *ParquetGo {
	return &ParquetGo{k: sampleSize}
}

func (p *ParquetGo) Name() string { return "parquet-go" }

func (p *ParquetGo) Probe(ctx context.Context) error { return nil }

func (p *ParquetGo) Read(ctx context.Context, path string) (*Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening file: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("getting file info: %w", err)
	}

	pf, err := parquet.OpenFile(f, info.Size())
	if err != nil {
		return nil, fmt.Errorf("opening parquet file: %w", err)
	}

	fields := pf.Schema().Fields()
	res := &Result{
		Reader:     p.Name(),
		Path:       path,
		NumRows:    pf.NumRows(),
		NumColumns: len(fields),
		RowGroups:  len(pf.RowGroups()),
	}

	for _, rg := range pf.Metadata().RowGroups {
		for _, cc := range rg.Columns {
			res.addCodec(strings.ToLower(cc.MetaData.Codec.String()))
			for _, enc := range cc.MetaData.Encoding {
				res.addEncoding(strings.ToLower(enc.String()))
			}
		}
	}

	accs := make([]*accumulator, len(fields))
	decoders := make([]func(parquet.Value) any, len(fields))
	for i, field := range fields {
		if !field.Leaf() {
			return nil, fmt.Errorf("column %s: nested columns are not supported", field.Name())
		}
		typ, native, decode := parquetGoType(field.Type())
		accs[i] = newAccumulator(field.Name(), typ, native, p.k)
		decoders[i] = decode
	}

	values := make([]parquet.Value, 1024)
	for _, rg := range pf.RowGroups() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for i, chunk := range rg.ColumnChunks() {
			if err := readChunk(chunk, values, accs[i], decoders[i]); err != nil {
				return nil, fmt.Errorf("reading column %s: %w", fields[i].Name(), err)
			}
		}
	}

	for _, a := range accs {
		res.Columns = append(res.Columns, a.result())
	}
	return res, nil
}

func readChunk(chunk parquet.ColumnChunk, buf []parquet.Value, acc *accumulator, decode func(parquet.Value) any) error {
	pages := chunk.Pages()
	defer pages.Close()

	for {
		page, err := pages.ReadPage()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("reading page: %w", err)
		}

		vr := page.Values()
		for {
			n, err := vr.ReadValues(buf)
			for _, v := range buf[:n] {
				if v.IsNull() {
					acc.add(nil)
				} else {
					acc.add(decode(v))
				}
			}
			if err == io.EOF {
				break
			}
			if err != nil {
				return fmt.Errorf("reading values: %w", err)
			}
		}
	}
}

// parquetGoType maps a parquet-go leaf type onto the dataset vocabulary and
// returns a decoder narrowing values to the matching Go type.
func parquetGoType(t parquet.Type) (typ dataset.PhysicalType, native string, decode func(parquet.Value) any) {
	native = t.String()
	lt := t.LogicalType()

	switch {
	case lt != nil && lt.Decimal != nil:
		scale := lt.Decimal.Scale
		return dataset.Decimal, native, func(v parquet.Value) any {
			var unscaled *big.Int
			switch t.Kind() {
			case parquet.Int32:
				unscaled = big.NewInt(int64(v.Int32()))
			case parquet.Int64:
				unscaled = big.NewInt(v.Int64())
			default:
				unscaled = twosComplement(v.ByteArray())
			}
			return Decimal{Unscaled: unscaled, Scale: scale}
		}
	case lt != nil && lt.Date != nil:
		return dataset.Date, native, func(v parquet.Value) any { return v.Int32() }
	case lt != nil && lt.UTF8 != nil:
		return dataset.String, native, func(v parquet.Value) any { return string(v.ByteArray()) }
	}

	switch t.Kind() {
	case parquet.Boolean:
		return dataset.Boolean, native, func(v parquet.Value) any { return v.Boolean() }
	case parquet.Int32:
		return dataset.Int32, native, func(v parquet.Value) any { return v.Int32() }
	case parquet.Int64:
		return dataset.Int64, native, func(v parquet.Value) any { return v.Int64() }
	case parquet.Float:
		return dataset.Float32, native, func(v parquet.Value) any { return v.Float() }
	case parquet.Double:
		return dataset.Float64, native, func(v parquet.Value) any { return v.Double() }
	case parquet.ByteArray:
		return dataset.Binary, native, func(v parquet.Value) any { return bytes.Clone(v.ByteArray()) }
	case parquet.FixedLenByteArray:
		return dataset.FixedLenByteArray, native, func(v parquet.Value) any { return bytes.Clone(v.ByteArray()) }
	}
	return "", native, func(v parquet.Value) any { return v.String() }
}
