package dataset

import (
	"bufio"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
)

type columnHeader struct {
	Name      string       `json:"name"`
	Type      PhysicalType `json:"type"`
	Nullable  bool         `json:"nullable"`
	Width     int          `json:"width,omitempty"`
	Precision int          `json:"precision,omitempty"`
	Scale     int          `json:"scale,omitempty"`
}

type tableHeader struct {
	Pattern string         `json:"pattern"`
	Seed    int64          `json:"seed"`
	Rows    int            `json:"rows"`
	Columns []columnHeader `json:"columns"`
}

// WriteJSONLines writes t as one header line describing the columns followed
// by one JSON array per row. Byte values are base64, the rest use their
// natural JSON form. Candidate writers read this file to learn what to write.
func WriteJSONLines(w io.Writer, t *Table) error {
	bw := bufio.NewWriter(w)
	enc := json.NewEncoder(bw)

	hdr := tableHeader{Pattern: t.Pattern, Seed: t.Seed, Rows: t.NumRows()}
	for _, c := range t.Columns {
		hdr.Columns = append(hdr.Columns, columnHeader{
			Name: c.Name, Type: c.Type, Nullable: c.Nullable,
			Width: c.Width, Precision: c.Precision, Scale: c.Scale,
		})
	}
	if err := enc.Encode(hdr); err != nil {
		return fmt.Errorf("writing dataset header: %w", err)
	}

	row := make([]any, len(t.Columns))
	for i := 0; i < t.NumRows(); i++ {
		for j, c := range t.Columns {
			row[j] = c.Values[i]
		}
		if err := enc.Encode(row); err != nil {
			return fmt.Errorf("writing dataset row %d: %w", i, err)
		}
	}
	return bw.Flush()
}

// ReadJSONLines is the inverse of WriteJSONLines.
func ReadJSONLines(r io.Reader) (*Table, error) {
	dec := json.NewDecoder(bufio.NewReader(r))
	dec.UseNumber()

	var hdr tableHeader
	if err := dec.Decode(&hdr); err != nil {
		return nil, fmt.Errorf("reading dataset header: %w", err)
	}

	t := &Table{Pattern: hdr.Pattern, Seed: hdr.Seed}
	for _, h := range hdr.Columns {
		t.Columns = append(t.Columns, &Column{
			Name: h.Name, Type: h.Type, Nullable: h.Nullable,
			Width: h.Width, Precision: h.Precision, Scale: h.Scale,
			Values: make([]any, 0, hdr.Rows),
		})
	}

	for i := 0; ; i++ {
		var row []any
		if err := dec.Decode(&row); err == io.EOF {
			break
		} else if err != nil {
			return nil, fmt.Errorf("reading dataset row %d: %w", i, err)
		}
		if len(row) != len(t.Columns) {
			return nil, fmt.Errorf("reading dataset row %d: %d values for %d columns", i, len(row), len(t.Columns))
		}
		for j, c := range t.Columns {
			v, err := decodeValue(c.Type, row[j])
			if err != nil {
				return nil, fmt.Errorf("reading dataset row %d column %s: %w", i, c.Name, err)
			}
			c.Values = append(c.Values, v)
		}
	}

	if t.NumRows() != hdr.Rows {
		return nil, fmt.Errorf("reading dataset: header declares %d rows, found %d", hdr.Rows, t.NumRows())
	}
	if err := t.Validate(); err != nil {
		return nil, fmt.Errorf("reading dataset: %w", err)
	}
	return t, nil
}

func decodeValue(typ PhysicalType, raw any) (any, error) {
	if raw == nil {
		return nil, nil
	}
	switch typ {
	case Boolean:
		b, ok := raw.(bool)
		if !ok {
			return nil, fmt.Errorf("expected bool, got %T", raw)
		}
		return b, nil
	case Int32, Date:
		n, err := parseInt(raw, 32)
		return int32(n), err
	case Int64, Decimal:
		return parseInt(raw, 64)
	case Float32:
		f, err := parseFloat(raw, 32)
		return float32(f), err
	case Float64:
		return parseFloat(raw, 64)
	case String:
		s, ok := raw.(string)
		if !ok {
			return nil, fmt.Errorf("expected string, got %T", raw)
		}
		return s, nil
	case Binary, FixedLenByteArray:
		s, ok := raw.(string)
		if !ok {
			return nil, fmt.Errorf("expected base64 string, got %T", raw)
		}
		return base64.StdEncoding.DecodeString(s)
	}
	return nil, fmt.Errorf("unsupported type %s", typ)
}

func parseInt(raw any, bits int) (int64, error) {
	n, ok := raw.(json.Number)
	if !ok {
		return 0, fmt.Errorf("expected number, got %T", raw)
	}
	return strconv.ParseInt(n.String(), 10, bits)
}

func parseFloat(raw any, bits int) (float64, error) {
	n, ok := raw.(json.Number)
	if !ok {
		return 0, fmt.Errorf("expected number, got %T", raw)
	}
	return strconv.ParseFloat(n.String(), bits)
}
