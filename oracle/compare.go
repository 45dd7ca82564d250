package oracle

import (
	"encoding/json"
	"fmt"
	"math"
	"math/big"
	"slices"
	"strconv"
	"strings"

	"parquet-oracle/dataset"
	"parquet-oracle/manifest"
	"parquet-oracle/reader"
)

// Tolerances bounds float comparisons. Element tolerances are absolute; sum
// tolerances are relative to the expected sum.
type Tolerances struct {
	Float32    float64
	Float64    float64
	Float32Sum float64
	Float64Sum float64
}

func DefaultTolerances() Tolerances {
	return Tolerances{Float32: 1e-4, Float64: 1e-10, Float32Sum: 1e-4, Float64Sum: 1e-9}
}

func (t Tolerances) element(typ dataset.PhysicalType) float64 {
	if typ == dataset.Float32 {
		return t.Float32
	}
	return t.Float64
}

func (t Tolerances) sum(typ dataset.PhysicalType) float64 {
	if typ == dataset.Float32 {
		return t.Float32Sum
	}
	return t.Float64Sum
}

type comparison struct {
	exp   manifest.Expectation
	res   *reader.Result
	tol   Tolerances
	found []Discrepancy
}

// Compare checks one reader's view of a file against the expectation and
// returns every discrepancy found. It never stops at the first one, except
// that a float column stops being compared after its first out of tolerance
// value.
func Compare(exp manifest.Expectation, res *reader.Result, tol Tolerances) []Discrepancy {
	c := &comparison{exp: exp, res: res, tol: tol}

	if res.NumRows != exp.NumRows {
		c.add("row_count", KindRowCount, -1, strconv.FormatInt(exp.NumRows, 10), strconv.FormatInt(res.NumRows, 10))
	}
	if exp.NumColumns != nil && *exp.NumColumns != res.NumColumns {
		c.add("column_count", KindColumnCount, -1, strconv.Itoa(*exp.NumColumns), strconv.Itoa(res.NumColumns))
	}

	c.checkFile()
	c.checkOrder()
	for i := range exp.Columns {
		col := &exp.Columns[i]
		rc := res.Column(col.Name)
		if rc == nil {
			c.add(col.Name, KindMissingColumn, -1, col.TypeTag, "absent")
			continue
		}
		c.checkColumn(col, rc)
	}
	c.checkFacts()

	return c.found
}

func (c *comparison) add(column string, kind Kind, row int64, expected, actual string) {
	// a sampled null mismatch is also caught by the null index check
	if kind == KindNull && row >= 0 {
		for _, d := range c.found {
			if d.Kind == kind && d.Row == row && d.Column == column {
				return
			}
		}
	}
	c.found = append(c.found, Discrepancy{
		Reader:   c.res.Reader,
		File:     c.exp.Path,
		Column:   column,
		Kind:     kind,
		Row:      row,
		Expected: expected,
		Actual:   actual,
	})
}

var codecAliases = map[string]string{
	"none":         "uncompressed",
	"uncompressed": "uncompressed",
	"snappy":       "snappy",
	"gzip":         "gzip",
	"lz4":          "lz4_raw",
	"lz4_raw":      "lz4_raw",
	"zstd":         "zstd",
	"brotli":       "brotli",
}

func normalizeCodec(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if n, ok := codecAliases[s]; ok {
		return n
	}
	return s
}

func (c *comparison) checkFile() {
	// an empty file has no column chunks and so no codecs
	if c.exp.Compression != "" && len(c.res.Codecs) > 0 {
		want := normalizeCodec(c.exp.Compression)
		for _, got := range c.res.Codecs {
			if normalizeCodec(got) != want {
				c.add("file", KindCodec, -1, want, strings.Join(c.res.Codecs, ","))
				break
			}
		}
	}

	if c.exp.Encoding != "" && len(c.res.Encodings) > 0 {
		if !encodingSatisfied(c.exp.Encoding, c.res.Encodings) {
			c.add("file", KindEncoding, -1, c.exp.Encoding, strings.Join(c.res.Encodings, ","))
		}
	}

	if c.exp.RowGroups != nil && *c.exp.RowGroups != c.res.RowGroups {
		c.add("file", KindRowGroups, -1, strconv.Itoa(*c.exp.RowGroups), strconv.Itoa(c.res.RowGroups))
	}
}

func isDictionary(enc string) bool {
	return enc == "rle_dictionary" || enc == "plain_dictionary"
}

// encodingSatisfied reports whether the footer encodings are consistent
// with the declared encoding. Levels are always RLE so only data page
// encodings are considered.
func encodingSatisfied(declared string, footer []string) bool {
	switch strings.ToLower(declared) {
	case "dictionary":
		return slices.ContainsFunc(footer, isDictionary)
	case "delta":
		return slices.ContainsFunc(footer, func(e string) bool { return strings.HasPrefix(e, "delta_") })
	case "plain":
		return slices.Contains(footer, "plain") && !slices.ContainsFunc(footer, isDictionary)
	}
	return slices.Contains(footer, strings.ToLower(declared))
}

func (c *comparison) checkOrder() {
	pos := make(map[string]int, len(c.res.Columns))
	for i, rc := range c.res.Columns {
		pos[rc.Name] = i
	}

	var want, got []string
	for _, col := range c.exp.Columns {
		if _, ok := pos[col.Name]; ok {
			want = append(want, col.Name)
		}
	}
	got = slices.Clone(want)
	slices.SortStableFunc(got, func(a, b string) int { return pos[a] - pos[b] })

	if !slices.Equal(want, got) {
		c.add("file", KindColumnOrder, -1, strings.Join(want, ","), strings.Join(got, ","))
	}
}

func (c *comparison) checkColumn(col *manifest.Column, rc *reader.ColumnResult) {
	if rc.Type == "" || family(rc.Type) != family(col.Type) {
		actual := string(rc.Type)
		if actual == "" {
			actual = rc.NativeType
		}
		c.add(col.Name, KindType, -1, col.TypeTag, actual)
	}

	floatDone := false
	c.checkSamples(col, col.First, 0, rc.First, 0, &floatDone)
	if len(col.Last) > 0 {
		c.checkSamples(col,
			col.Last, c.exp.NumRows-int64(len(col.Last)),
			rc.Last, rc.Count-int64(len(rc.Last)),
			&floatDone)
	}

	c.checkNulls(col, rc)
}

// checkSamples compares expected values starting at row expStart with
// observed values starting at row gotStart, for the rows both cover.
func (c *comparison) checkSamples(col *manifest.Column, exp []any, expStart int64, got []any, gotStart int64, floatDone *bool) {
	for i, raw := range exp {
		row := expStart + int64(i)
		j := row - gotStart
		if j < 0 || j >= int64(len(got)) {
			continue
		}
		if col.Type.IsFloat() && *floatDone {
			return
		}

		want, err := Canonicalize(col.Type, raw)
		if err != nil {
			c.add(col.Name, KindValue, row, fmt.Sprintf("%s (%v)", formatValue(raw), err), formatValue(got[j]))
			continue
		}
		have, err := Canonicalize(col.Type, got[j])
		if err != nil {
			c.add(col.Name, KindValue, row, formatValue(want), fmt.Sprintf("%s (%v)", formatValue(got[j]), err))
			continue
		}

		switch {
		case want == nil && have == nil:
		case want == nil || have == nil:
			c.add(col.Name, KindNull, row, formatValue(want), formatValue(have))
		case col.Type.IsFloat():
			if !floatsClose(want.(float64), have.(float64), c.tol.element(col.Type)) {
				c.add(col.Name, KindValue, row, formatValue(want), formatValue(have))
				*floatDone = true
			}
		case want != have:
			c.add(col.Name, KindValue, row, formatValue(want), formatValue(have))
		}
	}
}

func floatsClose(a, b, tol float64) bool {
	if math.IsNaN(a) || math.IsNaN(b) {
		return math.IsNaN(a) && math.IsNaN(b)
	}
	if math.IsInf(a, 0) || math.IsInf(b, 0) {
		return a == b
	}
	return math.Abs(a-b) <= tol
}

func (c *comparison) checkNulls(col *manifest.Column, rc *reader.ColumnResult) {
	observed := make(map[int64]struct{}, len(rc.NullIndices))
	for _, i := range rc.NullIndices {
		observed[i] = struct{}{}
	}

	reported := 0
	report := func(row int64, expected, actual string) {
		if reported < maxRowDiscrepancies {
			c.add(col.Name, KindNull, row, expected, actual)
		}
		reported++
	}

	declared := col.NullIndices
	if declared == nil && col.NullEvery > 0 {
		declared = make([]int64, 0, c.exp.NumRows/int64(col.NullEvery)+1)
		for i := int64(0); i < c.exp.NumRows; i += int64(col.NullEvery) {
			declared = append(declared, i)
		}
	}
	complete := col.NullsComplete() || (col.NullIndices == nil && col.NullEvery > 0)

	for _, i := range declared {
		if _, ok := observed[i]; !ok {
			report(i, "null", "value")
		}
	}
	if complete {
		want := make(map[int64]struct{}, len(declared))
		for _, i := range declared {
			want[i] = struct{}{}
		}
		for _, i := range rc.NullIndices {
			if _, ok := want[i]; !ok {
				report(i, "value", "null")
			}
		}
	}
	if reported > maxRowDiscrepancies {
		c.add(col.Name, KindNull, -1, "", fmt.Sprintf("%d more null mismatches", reported-maxRowDiscrepancies))
	}

	switch {
	case col.NullCount != nil:
		if *col.NullCount != rc.NullCount {
			c.add(col.Name, KindNullCount, -1, strconv.FormatInt(*col.NullCount, 10), strconv.FormatInt(rc.NullCount, 10))
		}
	case complete:
		if int64(len(declared)) != rc.NullCount {
			c.add(col.Name, KindNullCount, -1, strconv.Itoa(len(declared)), strconv.FormatInt(rc.NullCount, 10))
		}
	}
}

func (c *comparison) expectedColumn(name string) *manifest.Column {
	for i := range c.exp.Columns {
		if c.exp.Columns[i].Name == name {
			return &c.exp.Columns[i]
		}
	}
	return nil
}

func (c *comparison) checkFacts() {
	hasColumn := func(name string) bool { return c.expectedColumn(name) != nil }

	for _, f := range c.exp.Verification {
		kind, name := f.Resolve(hasColumn)
		if kind == manifest.FactUnknown {
			c.add(f.Key, KindUnknownFact, -1, numberText(f.Value), "no such check")
			continue
		}
		if kind == manifest.FactRowCount {
			c.checkCount(f, "row_count", c.res.NumRows)
			continue
		}

		col := c.expectedColumn(name)
		rc := c.res.Column(name)
		if rc == nil {
			continue
		}

		switch kind {
		case manifest.FactNullCount:
			c.checkCount(f, name, rc.NullCount)
		case manifest.FactTrueCount:
			c.checkCount(f, name, rc.TrueCount)
		case manifest.FactSum:
			c.checkSum(f, col, rc)
		case manifest.FactLast:
			c.checkLast(f, col, rc)
		}
	}
}

func (c *comparison) factMismatch(f manifest.Fact, column, expected, actual string) {
	c.add(column, KindAggregate, -1, f.Key+"="+expected, actual)
}

func (c *comparison) checkCount(f manifest.Fact, column string, got int64) {
	want, err := canonicalInt(f.Value)
	if err != nil {
		c.factMismatch(f, column, formatValue(f.Value)+" (not an integer)", strconv.FormatInt(got, 10))
		return
	}
	if want.(int64) != got {
		c.factMismatch(f, column, strconv.FormatInt(want.(int64), 10), strconv.FormatInt(got, 10))
	}
}

func (c *comparison) checkSum(f manifest.Fact, col *manifest.Column, rc *reader.ColumnResult) {
	if col.Type.IsInteger() && rc.IntSum != nil {
		want, ok := new(big.Int).SetString(numberText(f.Value), 10)
		if !ok {
			c.factMismatch(f, col.Name, formatValue(f.Value)+" (not an integer)", rc.IntSum.String())
			return
		}
		if want.Cmp(rc.IntSum) != 0 {
			c.factMismatch(f, col.Name, want.String(), rc.IntSum.String())
		}
		return
	}

	got := rc.FloatSum
	if rc.IntSum != nil {
		got, _ = new(big.Float).SetInt(rc.IntSum).Float64()
	}
	want, err := strconv.ParseFloat(numberText(f.Value), 64)
	if err != nil {
		c.factMismatch(f, col.Name, formatValue(f.Value)+" (not a number)", formatValue(got))
		return
	}
	if !floatsClose(want, got, c.tol.sum(col.Type)*math.Max(1, math.Abs(want))) {
		c.factMismatch(f, col.Name, formatValue(want), formatValue(got))
	}
}

func (c *comparison) checkLast(f manifest.Fact, col *manifest.Column, rc *reader.ColumnResult) {
	if rc.Count == 0 || len(rc.Last) == 0 {
		c.factMismatch(f, col.Name, formatValue(f.Value), "no rows")
		return
	}
	want, err := Canonicalize(col.Type, f.Value)
	if err != nil {
		c.factMismatch(f, col.Name, fmt.Sprintf("%s (%v)", formatValue(f.Value), err), formatValue(rc.Last[len(rc.Last)-1]))
		return
	}
	have, err := Canonicalize(col.Type, rc.Last[len(rc.Last)-1])
	if err != nil {
		c.factMismatch(f, col.Name, formatValue(want), err.Error())
		return
	}

	equal := want == have
	if col.Type.IsFloat() && want != nil && have != nil {
		equal = floatsClose(want.(float64), have.(float64), c.tol.element(col.Type))
	}
	if !equal {
		c.factMismatch(f, col.Name, formatValue(want), formatValue(have))
	}
}

func numberText(v any) string {
	switch x := v.(type) {
	case json.Number:
		return x.String()
	case string:
		return x
	}
	return fmt.Sprint(v)
}
