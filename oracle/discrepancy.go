// Package oracle compares what a candidate writer declared against what
// reference readers observe in the files it produced.
package oracle

import "fmt"

// Kind classifies a discrepancy.
type Kind string

const (
	KindReadFailure   Kind = "read_failure"
	KindRowCount      Kind = "row_count"
	KindColumnCount   Kind = "column_count"
	KindMissingColumn Kind = "missing_column"
	KindColumnOrder   Kind = "column_order"
	KindType          Kind = "type"
	KindValue         Kind = "value"
	KindNull          Kind = "null"
	KindNullCount     Kind = "null_count"
	KindAggregate     Kind = "aggregate"
	KindCodec         Kind = "codec"
	KindEncoding      Kind = "encoding"
	KindRowGroups     Kind = "row_groups"
	// KindUnknownFact is a verification key the oracle cannot check, such
	// as a misspelled aggregate.
	KindUnknownFact Kind = "unknown_fact"
)

type Severity int

const (
	SeverityAggregate Severity = iota + 1
	SeverityValue
	SeverityRead
)

func (s Severity) String() string {
	switch s {
	case SeverityAggregate:
		return "aggregate"
	case SeverityValue:
		return "value"
	case SeverityRead:
		return "read"
	}
	return "unknown"
}

// Severity ranks the kind: read failures are the worst outcome, aggregate
// mismatches are reported separately from value mismatches.
func (k Kind) Severity() Severity {
	switch k {
	case KindReadFailure:
		return SeverityRead
	case KindAggregate, KindNullCount, KindUnknownFact:
		return SeverityAggregate
	}
	return SeverityValue
}

// Discrepancy is one difference between the manifest and a reader's view.
type Discrepancy struct {
	Reader string `json:"reader"`
	File   string `json:"file"`
	// Column is the column name, or "row_count", "column_count" or "file"
	// for checks that are not about one column.
	Column   string `json:"column"`
	Kind     Kind   `json:"kind"`
	Row      int64  `json:"row"` // -1 when not row scoped
	Expected string `json:"expected"`
	Actual   string `json:"actual"`
}

func (d Discrepancy) String() string {
	if d.Row >= 0 {
		return fmt.Sprintf("%s: %s[%d] %s: expected %s, got %s", d.Reader, d.Column, d.Row, d.Kind, d.Expected, d.Actual)
	}
	return fmt.Sprintf("%s: %s %s: expected %s, got %s", d.Reader, d.Column, d.Kind, d.Expected, d.Actual)
}

// maxRowDiscrepancies bounds how many row scoped null mismatches a single
// check reports before summarizing the rest.
const maxRowDiscrepancies = 20
