// Package manifest implements the Expected-Values Manifest: the JSON object a
// candidate writer prints on stdout describing what it was fed.
package manifest

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"

	"parquet-oracle/dataset"
)

// ErrInvalid marks a manifest that parsed as JSON but breaks the contract.
var ErrInvalid = errors.New("invalid manifest")

// Column is the expectation for one column, in manifest order.
type Column struct {
	Name    string
	TypeTag string
	Type    dataset.PhysicalType

	// First and Last hold raw JSON values: nil, bool, string or json.Number.
	First []any
	Last  []any

	// NullIndices is nil when the manifest omits it. Without NullCount it is
	// a partial listing; with NullCount it must be the complete set.
	NullIndices []int64
	NullCount   *int64

	// NullEvery is set from a "null_pattern": "every_Nth" entry.
	NullEvery int
}

// NullsComplete reports whether NullIndices is the full set of null rows.
func (c *Column) NullsComplete() bool {
	return c.NullIndices != nil && c.NullCount != nil
}

// Fact is one entry of the verification block.
type Fact struct {
	Key   string
	Value any
}

// File is one entry of the optional files list.
type File struct {
	Path        string
	Compression string
	Encoding    string
	RowGroups   *int
	Columns     []Column
}

type Manifest struct {
	NumRows      int64
	NumColumns   *int
	Columns      []Column
	Verification []Fact
	Files        []File
}

// Parse decodes and validates a manifest. JSON syntax errors are returned
// as is; contract violations wrap ErrInvalid.
func Parse(data []byte) (*Manifest, error) {
	raw, err := decodeOrdered(data)
	if err != nil {
		return nil, fmt.Errorf("parsing manifest: %w", err)
	}
	root, ok := raw.(*object)
	if !ok {
		return nil, invalidf("top level value is %s, not an object", kindOf(raw))
	}

	m := &Manifest{}

	n, ok := root.get("num_rows")
	if !ok {
		return nil, invalidf("missing num_rows")
	}
	if m.NumRows, err = toInt64(n); err != nil || m.NumRows < 0 {
		return nil, invalidf("num_rows must be a non-negative integer")
	}

	if v, ok := root.get("num_columns"); ok {
		nc, err := toInt64(v)
		if err != nil || nc < 0 {
			return nil, invalidf("num_columns must be a non-negative integer")
		}
		c := int(nc)
		m.NumColumns = &c
	}

	if v, ok := root.get("columns"); ok {
		if m.Columns, err = parseColumns(v, m.NumRows); err != nil {
			return nil, err
		}
	}

	if v, ok := root.get("verification"); ok {
		obj, ok := v.(*object)
		if !ok {
			return nil, invalidf("verification must be an object")
		}
		for _, k := range obj.keys {
			m.Verification = append(m.Verification, Fact{Key: k, Value: obj.vals[k]})
		}
	}

	if v, ok := root.get("files"); ok {
		if m.Files, err = parseFiles(v, m.NumRows); err != nil {
			return nil, err
		}
	}

	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

// Validate checks that every target file has at least one column.
func (m *Manifest) Validate() error {
	if m.NumRows < 0 {
		return invalidf("num_rows must not be negative")
	}
	if len(m.Files) == 0 {
		if len(m.Columns) == 0 {
			return invalidf("no column entries")
		}
		return nil
	}
	for _, f := range m.Files {
		if f.Path == "" {
			return invalidf("file entry without path")
		}
		if len(f.Columns) == 0 && len(m.Columns) == 0 {
			return invalidf("file %s has no column entries", f.Path)
		}
	}
	return nil
}

func parseFiles(v any, numRows int64) ([]File, error) {
	arr, ok := v.([]any)
	if !ok {
		return nil, invalidf("files must be an array")
	}
	files := make([]File, 0, len(arr))
	for i, item := range arr {
		obj, ok := item.(*object)
		if !ok {
			return nil, invalidf("files[%d] must be an object", i)
		}
		var f File
		var err error
		if f.Path, err = optString(obj, "path"); err != nil {
			return nil, invalidf("files[%d]: %v", i, err)
		}
		if f.Compression, err = optString(obj, "compression"); err != nil {
			return nil, invalidf("files[%d]: %v", i, err)
		}
		if f.Encoding, err = optString(obj, "encoding"); err != nil {
			return nil, invalidf("files[%d]: %v", i, err)
		}
		if rg, ok := obj.get("row_groups"); ok {
			n, err := toInt64(rg)
			if err != nil || n < 0 {
				return nil, invalidf("files[%d]: row_groups must be a non-negative integer", i)
			}
			groups := int(n)
			f.RowGroups = &groups
		}
		if cols, ok := obj.get("columns"); ok {
			if f.Columns, err = parseColumns(cols, numRows); err != nil {
				return nil, err
			}
		}
		files = append(files, f)
	}
	return files, nil
}

var nullPatternRe = regexp.MustCompile(`^every_(\d+)(?:st|nd|rd|th)$`)

func parseColumns(v any, numRows int64) ([]Column, error) {
	obj, ok := v.(*object)
	if !ok {
		return nil, invalidf("columns must be an object")
	}

	cols := make([]Column, 0, len(obj.keys))
	for _, name := range obj.keys {
		spec, ok := obj.vals[name].(*object)
		if !ok {
			return nil, invalidf("column %s must be an object", name)
		}
		c := Column{Name: name}

		tag, err := optString(spec, "type")
		if err != nil || tag == "" {
			return nil, invalidf("column %s: missing type", name)
		}
		c.TypeTag = tag
		if c.Type, err = dataset.ParseType(tag); err != nil {
			return nil, invalidf("column %s: %v", name, err)
		}

		first, ok := spec.get("first")
		if !ok {
			return nil, invalidf("column %s: missing first", name)
		}
		if c.First, err = scalarList(first); err != nil {
			return nil, invalidf("column %s: first: %v", name, err)
		}
		if last, ok := spec.get("last"); ok {
			if c.Last, err = scalarList(last); err != nil {
				return nil, invalidf("column %s: last: %v", name, err)
			}
		}
		if int64(len(c.First)) > numRows || int64(len(c.Last)) > numRows {
			return nil, invalidf("column %s: more sample values than num_rows", name)
		}

		if idx, ok := spec.get("null_indices"); ok {
			if c.NullIndices, err = indexList(idx, numRows); err != nil {
				return nil, invalidf("column %s: null_indices: %v", name, err)
			}
		}
		if nc, ok := spec.get("null_count"); ok {
			n, err := toInt64(nc)
			if err != nil || n < 0 || n > numRows {
				return nil, invalidf("column %s: null_count must be within [0, num_rows]", name)
			}
			c.NullCount = &n
		}
		if c.NullsComplete() && int64(len(c.NullIndices)) != *c.NullCount {
			return nil, invalidf("column %s: %d null_indices but null_count %d", name, len(c.NullIndices), *c.NullCount)
		}

		if p, err := optString(spec, "null_pattern"); err != nil {
			return nil, invalidf("column %s: %v", name, err)
		} else if p != "" {
			m := nullPatternRe.FindStringSubmatch(p)
			if m == nil {
				return nil, invalidf("column %s: unknown null_pattern %q", name, p)
			}
			c.NullEvery, _ = strconv.Atoi(m[1])
			if c.NullEvery == 0 {
				return nil, invalidf("column %s: null_pattern period must be positive", name)
			}
		}

		cols = append(cols, c)
	}
	return cols, nil
}

func scalarList(v any) ([]any, error) {
	arr, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("must be an array")
	}
	for i, item := range arr {
		switch item.(type) {
		case nil, bool, string, json.Number:
		default:
			return nil, fmt.Errorf("element %d is %s, not a scalar", i, kindOf(item))
		}
	}
	return arr, nil
}

func indexList(v any, numRows int64) ([]int64, error) {
	arr, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("must be an array")
	}
	out := make([]int64, 0, len(arr))
	for i, item := range arr {
		n, err := toInt64(item)
		if err != nil {
			return nil, fmt.Errorf("element %d is not an integer", i)
		}
		if n < 0 || n >= numRows {
			return nil, fmt.Errorf("index %d outside [0, %d)", n, numRows)
		}
		if len(out) > 0 && n <= out[len(out)-1] {
			return nil, fmt.Errorf("indices must be strictly ascending")
		}
		out = append(out, n)
	}
	return out, nil
}

func optString(obj *object, key string) (string, error) {
	v, ok := obj.get(key)
	if !ok || v == nil {
		return "", nil
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("%s must be a string", key)
	}
	return s, nil
}

func toInt64(v any) (int64, error) {
	n, ok := v.(json.Number)
	if !ok {
		return 0, fmt.Errorf("not a number")
	}
	return strconv.ParseInt(n.String(), 10, 64)
}

func kindOf(v any) string {
	switch v.(type) {
	case *object:
		return "an object"
	case []any:
		return "an array"
	case string:
		return "a string"
	case json.Number:
		return "a number"
	case bool:
		return "a boolean"
	case nil:
		return "null"
	}
	return fmt.Sprintf("%T", v)
}

func invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalid, fmt.Sprintf(format, args...))
}

// Expectation is everything the oracle checks for one produced file.
type Expectation struct {
	Path         string
	Compression  string
	Encoding     string
	RowGroups    *int
	NumRows      int64
	NumColumns   *int
	Columns      []Column
	Verification []Fact
}

// Expectations flattens the manifest into one expectation per file. Without
// a files list the single file is defaultPath. File entries without their
// own columns inherit the top-level ones.
func (m *Manifest) Expectations(defaultPath string) []Expectation {
	base := Expectation{
		Path:         defaultPath,
		NumRows:      m.NumRows,
		NumColumns:   m.NumColumns,
		Columns:      m.Columns,
		Verification: m.Verification,
	}
	if len(m.Files) == 0 {
		return []Expectation{base}
	}

	out := make([]Expectation, 0, len(m.Files))
	for _, f := range m.Files {
		e := base
		e.Path = f.Path
		e.Compression = f.Compression
		e.Encoding = f.Encoding
		e.RowGroups = f.RowGroups
		if len(f.Columns) > 0 {
			e.Columns = f.Columns
		}
		out = append(out, e)
	}
	return out
}

// MarshalJSON writes the manifest in wire form with column order kept.
func (m *Manifest) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	w := newOrderedWriter(&buf)
	w.field("num_rows", m.NumRows)
	if m.NumColumns != nil {
		w.field("num_columns", *m.NumColumns)
	}
	if len(m.Columns) > 0 {
		w.field("columns", columnsJSON(m.Columns))
	}
	if len(m.Files) > 0 {
		files := make([]json.RawMessage, 0, len(m.Files))
		for _, f := range m.Files {
			var fb bytes.Buffer
			fw := newOrderedWriter(&fb)
			fw.field("path", f.Path)
			if f.Compression != "" {
				fw.field("compression", f.Compression)
			}
			if f.Encoding != "" {
				fw.field("encoding", f.Encoding)
			}
			if f.RowGroups != nil {
				fw.field("row_groups", *f.RowGroups)
			}
			if len(f.Columns) > 0 {
				fw.field("columns", columnsJSON(f.Columns))
			}
			if err := fw.close(); err != nil {
				return nil, err
			}
			files = append(files, fb.Bytes())
		}
		w.field("files", files)
	}
	if len(m.Verification) > 0 {
		var vb bytes.Buffer
		vw := newOrderedWriter(&vb)
		for _, f := range m.Verification {
			vw.field(f.Key, f.Value)
		}
		if err := vw.close(); err != nil {
			return nil, err
		}
		w.field("verification", json.RawMessage(vb.Bytes()))
	}
	if err := w.close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

type columnsJSON []Column

func (cs columnsJSON) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	w := newOrderedWriter(&buf)
	for _, c := range cs {
		var cb bytes.Buffer
		cw := newOrderedWriter(&cb)
		cw.field("type", c.TypeTag)
		cw.field("first", nonNil(c.First))
		if c.Last != nil {
			cw.field("last", c.Last)
		}
		if c.NullIndices != nil {
			cw.field("null_indices", c.NullIndices)
		}
		if c.NullCount != nil {
			cw.field("null_count", *c.NullCount)
		}
		if c.NullEvery > 0 {
			cw.field("null_pattern", fmt.Sprintf("every_%dth", c.NullEvery))
		}
		if err := cw.close(); err != nil {
			return nil, err
		}
		w.field(c.Name, json.RawMessage(cb.Bytes()))
	}
	if err := w.close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func nonNil(v []any) []any {
	if v == nil {
		return []any{}
	}
	return v
}
