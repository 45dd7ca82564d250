package oracle

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"

	"parquet-oracle/dataset"
	"parquet-oracle/reader"
)

// Canonicalize decodes a value from either side, a manifest JSON value or a
// reader's raw value, into one comparable form keyed by the declared type:
//
//	nil                        null
//	bool                       boolean
//	int64                      int32, int64
//	float64                    float32, float64 (float32 rounded to float32)
//	string                     string (UTF-8 text)
//	string                     binary, fixed_len_byte_array (lowercase hex)
//	string                     date (YYYY-MM-DD)
//	string                     decimal (exact rational, big.Rat form)
func Canonicalize(t dataset.PhysicalType, raw any) (any, error) {
	if raw == nil {
		return nil, nil
	}
	switch t {
	case dataset.Boolean:
		if b, ok := raw.(bool); ok {
			return b, nil
		}
	case dataset.Int32, dataset.Int64:
		return canonicalInt(raw)
	case dataset.Float32, dataset.Float64:
		return canonicalFloat(t, raw)
	case dataset.String:
		switch v := raw.(type) {
		case string:
			return v, nil
		case []byte:
			return string(v), nil
		}
	case dataset.Binary, dataset.FixedLenByteArray:
		return canonicalBytes(raw)
	case dataset.Date:
		return canonicalDate(raw)
	case dataset.Decimal:
		return canonicalDecimal(raw)
	default:
		return nil, fmt.Errorf("unknown type %q", t)
	}
	return nil, fmt.Errorf("cannot read %T as %s", raw, t)
}

func canonicalInt(raw any) (any, error) {
	switch v := raw.(type) {
	case int32:
		return int64(v), nil
	case int64:
		return v, nil
	case json.Number:
		n, err := strconv.ParseInt(v.String(), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parsing integer %q: %w", v, err)
		}
		return n, nil
	}
	return nil, fmt.Errorf("cannot read %T as integer", raw)
}

func canonicalFloat(t dataset.PhysicalType, raw any) (any, error) {
	bits := 64
	if t == dataset.Float32 {
		bits = 32
	}
	var f float64
	switch v := raw.(type) {
	case float32:
		f = float64(v)
	case float64:
		f = v
	case json.Number:
		p, err := strconv.ParseFloat(v.String(), bits)
		if err != nil {
			return nil, fmt.Errorf("parsing float %q: %w", v, err)
		}
		f = p
	case string:
		// NaN and infinities have no JSON number form
		p, err := strconv.ParseFloat(v, bits)
		if err != nil {
			return nil, fmt.Errorf("parsing float %q: %w", v, err)
		}
		f = p
	default:
		return nil, fmt.Errorf("cannot read %T as float", raw)
	}
	if bits == 32 {
		f = float64(float32(f))
	}
	return f, nil
}

func canonicalBytes(raw any) (any, error) {
	switch v := raw.(type) {
	case []byte:
		return hex.EncodeToString(v), nil
	case string:
		// manifests carry binary as hex
		b, err := hex.DecodeString(v)
		if err != nil {
			return nil, fmt.Errorf("decoding hex %q: %w", v, err)
		}
		return hex.EncodeToString(b), nil
	}
	return nil, fmt.Errorf("cannot read %T as binary", raw)
}

func canonicalDate(raw any) (any, error) {
	switch v := raw.(type) {
	case int32:
		return time.Unix(int64(v)*86400, 0).UTC().Format(time.DateOnly), nil
	case time.Time:
		return v.UTC().Format(time.DateOnly), nil
	case json.Number:
		days, err := strconv.ParseInt(v.String(), 10, 32)
		if err != nil {
			return nil, fmt.Errorf("parsing day number %q: %w", v, err)
		}
		return time.Unix(days*86400, 0).UTC().Format(time.DateOnly), nil
	case string:
		ts, err := dateparse.ParseIn(v, time.UTC)
		if err != nil {
			return nil, fmt.Errorf("parsing date %q: %w", v, err)
		}
		return ts.UTC().Format(time.DateOnly), nil
	}
	return nil, fmt.Errorf("cannot read %T as date", raw)
}

func canonicalDecimal(raw any) (any, error) {
	r := new(big.Rat)
	switch v := raw.(type) {
	case reader.Decimal:
		scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(v.Scale)), nil)
		r.SetFrac(v.Unscaled, scale)
	case json.Number:
		if _, ok := r.SetString(v.String()); !ok {
			return nil, fmt.Errorf("parsing decimal %q", v)
		}
	case string:
		if _, ok := r.SetString(strings.TrimSpace(v)); !ok {
			return nil, fmt.Errorf("parsing decimal %q", v)
		}
	case int64:
		r.SetInt64(v)
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("decimal %v is not finite", v)
		}
		r.SetFloat64(v)
	default:
		return nil, fmt.Errorf("cannot read %T as decimal", raw)
	}
	return r.RatString(), nil
}

// family groups types whose values are stored the same way on disk.
func family(t dataset.PhysicalType) string {
	switch t {
	case dataset.String, dataset.Binary, dataset.FixedLenByteArray:
		return "byte_array"
	}
	return string(t)
}

func formatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return "null"
	case string:
		return strconv.Quote(x)
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	case json.Number:
		return x.String()
	case []byte:
		return "0x" + hex.EncodeToString(x)
	case reader.Decimal:
		return fmt.Sprintf("%sE-%d", x.Unscaled, x.Scale)
	}
	return fmt.Sprint(v)
}
