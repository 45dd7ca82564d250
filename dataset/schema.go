package dataset

import (
	"fmt"
	"strings"
)

// PhysicalType is the type vocabulary shared by the generator, the manifest
// and every reader adapter.
type PhysicalType string

const (
	Boolean           PhysicalType = "boolean"
	Int32             PhysicalType = "int32"
	Int64             PhysicalType = "int64"
	Float32           PhysicalType = "float32"
	Float64           PhysicalType = "float64"
	Binary            PhysicalType = "binary"
	FixedLenByteArray PhysicalType = "fixed_len_byte_array"
	Date              PhysicalType = "date"
	Decimal           PhysicalType = "decimal"
	String            PhysicalType = "string"
)

var typeAliases = map[string]PhysicalType{
	"boolean":              Boolean,
	"bool":                 Boolean,
	"int32":                Int32,
	"int":                  Int32,
	"integer":              Int32,
	"int64":                Int64,
	"long":                 Int64,
	"bigint":               Int64,
	"float32":              Float32,
	"float":                Float32,
	"real":                 Float32,
	"float64":              Float64,
	"double":               Float64,
	"binary":               Binary,
	"bytes":                Binary,
	"byte_array":           Binary,
	"blob":                 Binary,
	"fixed_len_byte_array": FixedLenByteArray,
	"fixed_binary":         FixedLenByteArray,
	"fixed":                FixedLenByteArray,
	"date":                 Date,
	"date32":               Date,
	"decimal":              Decimal,
	"string":               String,
	"utf8":                 String,
	"varchar":              String,
	"text":                 String,
}

// ParseType maps a type tag, including the aliases used by writers and
// readers in the wild ("bool", "float", "double", ...), to a PhysicalType.
func ParseType(tag string) (PhysicalType, error) {
	t, ok := typeAliases[strings.ToLower(strings.TrimSpace(tag))]
	if !ok {
		return "", fmt.Errorf("unknown type tag %q", tag)
	}
	return t, nil
}

// IsInteger reports whether values of t compare as exact integers.
func (t PhysicalType) IsInteger() bool {
	return t == Int32 || t == Int64
}

// IsFloat reports whether values of t compare within a tolerance.
func (t PhysicalType) IsFloat() bool {
	return t == Float32 || t == Float64
}

// IsByteArray reports whether t is stored as a variable length byte array.
func (t PhysicalType) IsByteArray() bool {
	return t == Binary || t == String
}

// Column is one named, typed column of a Table. A null value is the untyped
// nil; non-null values use the Go type of the physical type:
// bool, int32, int64, float32, float64, []byte (binary and fixed length),
// string, int32 days since the Unix epoch (date) and int64 unscaled (decimal).
type Column struct {
	Name      string
	Type      PhysicalType
	Nullable  bool
	Width     int // fixed_len_byte_array only
	Precision int // decimal only
	Scale     int // decimal only
	Values    []any
}

// NullCount returns the number of null values.
func (c *Column) NullCount() int {
	n := 0
	for _, v := range c.Values {
		if v == nil {
			n++
		}
	}
	return n
}

// NullIndices returns the row indices holding a null, in ascending order.
func (c *Column) NullIndices() []int64 {
	idx := make([]int64, 0)
	for i, v := range c.Values {
		if v == nil {
			idx = append(idx, int64(i))
		}
	}
	return idx
}

// Table is an ordered set of columns sharing one row count.
type Table struct {
	Pattern string
	Seed    int64
	Columns []*Column
}

// NumRows returns the row count shared by all columns.
func (t *Table) NumRows() int {
	if len(t.Columns) == 0 {
		return 0
	}
	return len(t.Columns[0].Values)
}

// Column returns the column named name, or nil.
func (t *Table) Column(name string) *Column {
	for _, c := range t.Columns {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// Validate checks the table invariants: unique names, equal lengths and no
// nulls in required columns.
func (t *Table) Validate() error {
	seen := make(map[string]bool, len(t.Columns))
	rows := t.NumRows()
	for _, c := range t.Columns {
		if seen[c.Name] {
			return fmt.Errorf("duplicate column %q", c.Name)
		}
		seen[c.Name] = true

		if len(c.Values) != rows {
			return fmt.Errorf("column %q has %d rows, want %d", c.Name, len(c.Values), rows)
		}
		if !c.Nullable && c.NullCount() > 0 {
			return fmt.Errorf("required column %q holds nulls", c.Name)
		}
		if c.Type == FixedLenByteArray && c.Width <= 0 {
			return fmt.Errorf("fixed length column %q has no width", c.Name)
		}
	}
	return nil
}
