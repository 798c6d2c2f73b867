// Package records defines the raw record shape produced by feeds and the
// numeric coercions shared by the transform and aggregate packages.
package records

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Record is one raw row from a feed: field name -> raw value. Values are
// strings, int64, float64, bool or nil. Field order is irrelevant.
//
// A Record is treated as immutable once a feed has yielded it.
type Record map[string]any

// Lookup returns the value for name and whether the field is present.
// A present field may still hold nil.
func (r Record) Lookup(name string) (any, bool) {
	v, ok := r[name]
	return v, ok
}

// String returns the field as a string. Absent and nil fields yield "".
func (r Record) String(name string) string {
	switch v := r[name].(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		return strings.TrimSpace(toString(v))
	}
}

// Float converts v to float64. The second result reports whether v was
// numeric: Go integer and float kinds, json.Number, or a string holding a
// finite number. NaN and ±Inf are not numeric.
func Float(v any) (float64, bool) {
	var f float64
	switch n := v.(type) {
	case nil:
		return 0, false
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case json.Number:
		x, err := n.Float64()
		if err != nil {
			return 0, false
		}
		f = x
	case string:
		s := strings.TrimSpace(n)
		if s == "" {
			return 0, false
		}
		x, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		f = x
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// FloatOrZero is Float with non-numeric values mapped to 0.
func FloatOrZero(v any) float64 {
	f, _ := Float(v)
	return f
}

// Int converts v to int64. Strings must hold an integer literal; floats are
// accepted only when they have no fractional part.
func Int(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case string:
		i, err := strconv.ParseInt(strings.TrimSpace(n), 10, 64)
		if err != nil {
			return 0, false
		}
		return i, true
	}
	f, ok := Float(v)
	if !ok || f != math.Trunc(f) || math.Abs(f) > math.MaxInt64 {
		return 0, false
	}
	return int64(f), true
}

// IsNumeric reports whether Float would accept v.
func IsNumeric(v any) bool {
	_, ok := Float(v)
	return ok
}

func toString(v any) string {
	switch t := v.(type) {
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	case json.Number:
		return t.String()
	case []byte:
		return string(t)
	}
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(b)
}
