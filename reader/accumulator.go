package reader

import (
	"math/big"

	"parquet-oracle/dataset"
)

// accumulator streams one column's values into a ColumnResult without
// holding the column in memory: the first k values, a ring of the last k,
// null positions and running aggregates.
type accumulator struct {
	k    int
	col  ColumnResult
	ring []any
	next int
}

func newAccumulator(name string, typ dataset.PhysicalType, native string, k int) *accumulator {
	a := &accumulator{
		k:    k,
		ring: make([]any, 0, k),
		col: ColumnResult{
			Name:        name,
			Type:        typ,
			NativeType:  native,
			NullIndices: make([]int64, 0),
			First:       make([]any, 0, k),
		},
	}
	if typ.IsInteger() {
		a.col.IntSum = new(big.Int)
	}
	return a
}

func (a *accumulator) add(v any) {
	row := a.col.Count
	a.col.Count++

	if len(a.col.First) < a.k {
		a.col.First = append(a.col.First, v)
	}
	if a.k > 0 {
		if len(a.ring) < a.k {
			a.ring = append(a.ring, v)
		} else {
			a.ring[a.next] = v
		}
		a.next = (a.next + 1) % a.k
	}

	switch x := v.(type) {
	case nil:
		a.col.NullCount++
		a.col.NullIndices = append(a.col.NullIndices, row)
	case bool:
		if x {
			a.col.TrueCount++
		}
	case int32:
		if a.col.IntSum != nil {
			a.col.IntSum.Add(a.col.IntSum, big.NewInt(int64(x)))
		}
	case int64:
		if a.col.IntSum != nil {
			a.col.IntSum.Add(a.col.IntSum, big.NewInt(x))
		}
	case float32:
		a.col.FloatSum += float64(x)
	case float64:
		a.col.FloatSum += x
	}
}

// result returns the column with Last in row order.
func (a *accumulator) result() ColumnResult {
	col := a.col
	col.Last = make([]any, 0, len(a.ring))
	if len(a.ring) < a.k {
		col.Last = append(col.Last, a.ring...)
	} else {
		col.Last = append(col.Last, a.ring[a.next:]...)
		col.Last = append(col.Last, a.ring[:a.next]...)
	}
	return col
}
