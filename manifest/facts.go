package manifest

import "strings"

// FactKind classifies a verification key.
type FactKind int

const (
	FactUnknown FactKind = iota
	FactRowCount
	FactSum
	FactLast
	FactTrueCount
	FactNullCount
)

func (k FactKind) String() string {
	switch k {
	case FactRowCount:
		return "row_count"
	case FactSum:
		return "sum"
	case FactLast:
		return "last"
	case FactTrueCount:
		return "true_count"
	case FactNullCount:
		return "null_count"
	}
	return "unknown"
}

var factPrefixes = []struct {
	prefix string
	kind   FactKind
}{
	{"true_count_", FactTrueCount},
	{"null_count_", FactNullCount},
	{"sum_", FactSum},
	{"last_", FactLast},
}

var factSuffixes = []struct {
	suffix string
	kind   FactKind
}{
	{"_true_count", FactTrueCount},
	{"_null_count", FactNullCount},
	{"_sum", FactSum},
}

// Resolve maps a verification key onto a fact kind and the column it talks
// about. Both "sum_int32_col" and the older "int32_sum" forms are accepted;
// a base name that is not a column is retried with a "_col" suffix.
// hasColumn reports whether a column exists.
func (f Fact) Resolve(hasColumn func(string) bool) (FactKind, string) {
	switch f.Key {
	case "row_counts", "row_count", "num_rows":
		return FactRowCount, ""
	}

	column := func(base string) (string, bool) {
		if hasColumn(base) {
			return base, true
		}
		if hasColumn(base + "_col") {
			return base + "_col", true
		}
		return "", false
	}

	for _, p := range factPrefixes {
		if base, ok := strings.CutPrefix(f.Key, p.prefix); ok {
			if col, ok := column(base); ok {
				return p.kind, col
			}
		}
	}
	for _, s := range factSuffixes {
		if base, ok := strings.CutSuffix(f.Key, s.suffix); ok {
			if col, ok := column(base); ok {
				return s.kind, col
			}
		}
	}
	return FactUnknown, ""
}
