package dataset

import (
	"fmt"
	"math/rand/v2"
	"sort"
)

// PatternSpec selects a data pattern and its null distribution.
type PatternSpec struct {
	Name string `yaml:"name" json:"name"`

	// NullRate is the probability that a nullable profile value is null.
	// NullEvery, when positive, replaces the random mask with a fixed
	// period (row i is null when i%NullEvery == 0).
	NullRate  float64 `yaml:"null_rate" json:"null_rate"`
	NullEvery int     `yaml:"null_every" json:"null_every"`

	// Cardinality bounds the categorical profile columns. Zero means 100.
	Cardinality int `yaml:"cardinality" json:"cardinality"`
}

type patternFunc func(g *generator) []*Column

var patterns = map[string]patternFunc{
	"reference":     referencePattern,
	"comprehensive": comprehensivePattern,
	"profile":       profilePattern,
	"types":         typesPattern,
	"all_null":      allNullPattern,
}

// Patterns returns the names of every known pattern, sorted.
func Patterns() []string {
	names := make([]string, 0, len(patterns))
	for name := range patterns {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Generate builds a table of rows rows for the given pattern. The result
// depends only on its arguments.
func Generate(seed int64, rows int, spec PatternSpec) (*Table, error) {
	if rows < 0 {
		return nil, fmt.Errorf("generating %s: negative row count %d", spec.Name, rows)
	}
	fn, ok := patterns[spec.Name]
	if !ok {
		return nil, fmt.Errorf("generating %s: unknown pattern", spec.Name)
	}
	if spec.NullRate < 0 || spec.NullRate > 1 {
		return nil, fmt.Errorf("generating %s: null rate %g outside [0, 1]", spec.Name, spec.NullRate)
	}

	g := &generator{
		rows: rows,
		spec: spec,
		// values and the null mask come from separate streams so changing
		// the null rate never shifts the values
		values: rand.New(rand.NewPCG(uint64(seed), 0x9e3779b97f4a7c15)),
		nulls:  rand.New(rand.NewPCG(uint64(seed), 0xbf58476d1ce4e5b9)),
	}

	t := &Table{Pattern: spec.Name, Seed: seed, Columns: fn(g)}
	if err := t.Validate(); err != nil {
		return nil, fmt.Errorf("generating %s: %w", spec.Name, err)
	}
	return t, nil
}

type generator struct {
	rows   int
	spec   PatternSpec
	values *rand.Rand
	nulls  *rand.Rand
}

func (g *generator) column(name string, typ PhysicalType, nullable bool, fn func(i int) any) *Column {
	c := &Column{Name: name, Type: typ, Nullable: nullable, Values: make([]any, g.rows)}
	for i := range c.Values {
		c.Values[i] = fn(i)
	}
	return c
}

// nullMask draws the profile null mask from the dedicated stream.
func (g *generator) nullMask() []bool {
	mask := make([]bool, g.rows)
	for i := range mask {
		if g.spec.NullEvery > 0 {
			mask[i] = i%g.spec.NullEvery == 0
			continue
		}
		mask[i] = g.nulls.Float64() < g.spec.NullRate
	}
	return mask
}

func everyNth(n int) func(i int) bool {
	return func(i int) bool { return i%n == 0 }
}

func referencePattern(g *generator) []*Column {
	nullEvery5 := everyNth(5)
	return []*Column{
		g.column("int32_col", Int32, false, func(i int) any { return int32(i * 10) }),
		g.column("int64_col", Int64, false, func(i int) any { return int64(i) * 1_000_000 }),
		g.column("float_col", Float32, false, func(i int) any { return float32(i) * 0.5 }),
		g.column("double_col", Float64, false, func(i int) any { return float64(i) * 0.125 }),
		g.column("nullable_int", Int32, true, func(i int) any {
			if nullEvery5(i) {
				return nil
			}
			return int32(i * 100)
		}),
	}
}

var sampleStrings = []string{
	"hello", "world", "carquet", "parquet", "test",
	"alpha", "beta", "gamma", "delta", "epsilon",
}

func comprehensivePattern(g *generator) []*Column {
	nullEvery5, nullEvery7 := everyNth(5), everyNth(7)
	return []*Column{
		g.column("bool_col", Boolean, false, func(i int) any { return i%2 == 0 }),
		g.column("int32_col", Int32, false, func(i int) any { return int32(i*10 - 5000) }),
		g.column("int64_col", Int64, false, func(i int) any { return int64(i)*1_000_000 - 2_500_000_000 }),
		g.column("float_col", Float32, false, func(i int) any { return float32(i)*0.5 - 1250 }),
		g.column("double_col", Float64, false, func(i int) any { return float64(i)*0.125 - 312.5 }),
		g.column("string_col", String, true, func(i int) any {
			if nullEvery7(i) {
				return nil
			}
			return sampleStrings[i%len(sampleStrings)]
		}),
		g.column("nullable_int", Int32, true, func(i int) any {
			if nullEvery5(i) {
				return nil
			}
			return int32(i * 100)
		}),
	}
}

func profilePattern(g *generator) []*Column {
	card := g.spec.Cardinality
	if card <= 0 || card > 100 {
		card = 100
	}
	r := g.values

	// Columns are drawn in a fixed order so every stream position is stable.
	ids := make([]any, g.rows)
	i32 := make([]any, g.rows)
	f64 := make([]any, g.rows)
	f32 := make([]any, g.rows)
	cat := make([]any, g.rows)
	catStr := make([]any, g.rows)
	nullable := make([]any, g.rows)
	mask := g.nullMask()

	for i := 0; i < g.rows; i++ {
		ids[i] = int64(i)*1000 + r.Int64N(100)
		i32[i] = r.Int32N(1_000_000)
		f64[i] = float64(i)*0.001 + r.Float64()*0.01
		f32[i] = r.Float32() * 100
		c := r.IntN(card)
		cat[i] = int32(c)
		catStr[i] = fmt.Sprintf("cat_%02d", c)
		v := r.Float64() * 1000
		if !mask[i] {
			nullable[i] = v
		}
	}

	return []*Column{
		{Name: "id", Type: Int64, Values: ids},
		{Name: "int32_col", Type: Int32, Values: i32},
		{Name: "double_col", Type: Float64, Values: f64},
		{Name: "float_col", Type: Float32, Values: f32},
		{Name: "category", Type: Int32, Values: cat},
		{Name: "category_str", Type: String, Values: catStr},
		{Name: "nullable_val", Type: Float64, Nullable: true, Values: nullable},
	}
}

// DateBase is 2024-01-01 in days since the Unix epoch.
const DateBase = 19723

func typesPattern(g *generator) []*Column {
	r := g.values
	nullEvery3 := everyNth(3)

	bin := g.column("binary_col", Binary, false, func(i int) any {
		b := make([]byte, 1+i%8)
		for j := range b {
			b[j] = byte(r.UintN(256))
		}
		return b
	})
	fixed := g.column("fixed_col", FixedLenByteArray, false, func(i int) any {
		b := make([]byte, 16)
		for j := range b {
			b[j] = byte(r.UintN(256))
		}
		return b
	})
	fixed.Width = 16
	date := g.column("date_col", Date, true, func(i int) any {
		if nullEvery3(i) {
			return nil
		}
		return int32(DateBase + i)
	})
	dec := g.column("decimal_col", Decimal, false, func(i int) any {
		return int64(i)*12345 - 500_000
	})
	dec.Precision, dec.Scale = 10, 2
	str := g.column("string_col", String, false, func(i int) any {
		return fmt.Sprintf("row-%d-%s", i, sampleStrings[i%len(sampleStrings)])
	})
	return []*Column{bin, fixed, date, dec, str}
}

func allNullPattern(g *generator) []*Column {
	return []*Column{
		g.column("present_int", Int32, false, func(i int) any { return int32(i) }),
		g.column("null_int", Int32, true, func(int) any { return nil }),
		g.column("null_string", String, true, func(int) any { return nil }),
	}
}
