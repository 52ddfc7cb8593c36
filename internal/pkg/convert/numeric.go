// Package convert provides lenient numeric conversion for vendor payloads.
package convert

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// ToFloat64 converts various numeric types to float64.
// Returns 0 for unsupported types, parse failures and non-finite values.
func ToFloat64(v any) float64 {
	var f float64
	switch t := v.(type) {
	case nil:
		return 0
	case float64:
		f = t
	case float32:
		f = float64(t)
	case int:
		f = float64(t)
	case int64:
		f = float64(t)
	case int32:
		f = float64(t)
	case uint64:
		f = float64(t)
	case json.Number:
		f, _ = t.Float64()
	case string:
		return ParseFloat(t)
	default:
		return 0
	}
	return finite(f)
}

// ParseFloat parses a decimal string such as "0.0000231" or "-3.5".
func ParseFloat(s string) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0
	}
	return finite(f)
}

func finite(f float64) float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}
