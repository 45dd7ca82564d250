package manifest

import (
	"encoding/hex"
	"encoding/json"
	"math"
	"math/big"
	"strconv"
	"time"

	"parquet-oracle/dataset"
)

// FromTable derives the manifest a correct writer reports after writing t,
// with k sample values at each end of every column. Null indices are always
// complete and accompanied by their count.
func FromTable(t *dataset.Table, k int) *Manifest {
	rows := t.NumRows()
	m := &Manifest{NumRows: int64(rows)}
	nc := len(t.Columns)
	m.NumColumns = &nc

	m.Verification = append(m.Verification, Fact{Key: "row_counts", Value: json.Number(strconv.Itoa(rows))})

	for _, c := range t.Columns {
		head := min(k, rows)
		col := Column{
			Name:    c.Name,
			TypeTag: string(c.Type),
			Type:    c.Type,
			First:   encodeValues(c, c.Values[:head]),
			Last:    encodeValues(c, c.Values[rows-head:]),
		}
		if c.Nullable {
			col.NullIndices = c.NullIndices()
			n := int64(len(col.NullIndices))
			col.NullCount = &n
			m.Verification = append(m.Verification, Fact{
				Key:   "null_count_" + c.Name,
				Value: json.Number(strconv.FormatInt(n, 10)),
			})
		}
		m.Columns = append(m.Columns, col)

		switch {
		case c.Type.IsInteger():
			sum := new(big.Int)
			for _, v := range c.Values {
				switch n := v.(type) {
				case int32:
					sum.Add(sum, big.NewInt(int64(n)))
				case int64:
					sum.Add(sum, big.NewInt(n))
				}
			}
			m.Verification = append(m.Verification, Fact{Key: "sum_" + c.Name, Value: json.Number(sum.String())})
		case c.Type.IsFloat():
			var sum float64
			for _, v := range c.Values {
				switch f := v.(type) {
				case float32:
					sum += float64(f)
				case float64:
					sum += f
				}
			}
			m.Verification = append(m.Verification, Fact{Key: "sum_" + c.Name, Value: EncodeValue(c, sum)})
		case c.Type == dataset.Boolean:
			var n int64
			for _, v := range c.Values {
				if b, ok := v.(bool); ok && b {
					n++
				}
			}
			m.Verification = append(m.Verification, Fact{Key: "true_count_" + c.Name, Value: json.Number(strconv.FormatInt(n, 10))})
		}
		if rows > 0 && !c.Type.IsFloat() {
			m.Verification = append(m.Verification, Fact{Key: "last_" + c.Name, Value: EncodeValue(c, c.Values[rows-1])})
		}
	}
	return m
}

func encodeValues(c *dataset.Column, vals []any) []any {
	out := make([]any, len(vals))
	for i, v := range vals {
		out[i] = EncodeValue(c, v)
	}
	return out
}

// EncodeValue renders one table value in manifest form: numbers as
// json.Number, binary as lowercase hex, dates as YYYY-MM-DD and decimals as
// their exact decimal text.
func EncodeValue(c *dataset.Column, v any) any {
	switch x := v.(type) {
	case nil:
		return nil
	case bool:
		return x
	case string:
		return x
	case []byte:
		return hex.EncodeToString(x)
	case int32:
		if c.Type == dataset.Date {
			return time.Unix(int64(x)*86400, 0).UTC().Format(time.DateOnly)
		}
		return json.Number(strconv.FormatInt(int64(x), 10))
	case int64:
		if c.Type == dataset.Decimal {
			return decimalString(x, c.Scale)
		}
		return json.Number(strconv.FormatInt(x, 10))
	case float32:
		return floatNumber(float64(x), 32)
	case float64:
		return floatNumber(x, 64)
	}
	return v
}

func floatNumber(f float64, bits int) any {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return strconv.FormatFloat(f, 'g', -1, bits)
	}
	return json.Number(strconv.FormatFloat(f, 'g', -1, bits))
}

func decimalString(unscaled int64, scale int) string {
	r := new(big.Rat).SetFrac(big.NewInt(unscaled), new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(scale)), nil))
	return r.FloatString(scale)
}
