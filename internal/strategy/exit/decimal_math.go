package exit

import (
	"math"

	"github.com/shopspring/decimal"
)

var decimalZero = decimal.Zero

func decFromFloat(val float64) decimal.Decimal {
	if math.IsNaN(val) || math.IsInf(val, 0) {
		return decimalZero
	}
	return decimal.NewFromFloat(val)
}

func decToFloat(val decimal.Decimal) float64 {
	f, _ := val.Float64()
	return f
}

func decimalCompare(a, b float64) int {
	return decFromFloat(a).Cmp(decFromFloat(b))
}

func decimalLTE(a, b float64) bool { return decimalCompare(a, b) <= 0 }
func decimalGTE(a, b float64) bool { return decimalCompare(a, b) >= 0 }
func decimalLT(a, b float64) bool  { return decimalCompare(a, b) < 0 }
func decimalGT(a, b float64) bool  { return decimalCompare(a, b) > 0 }

// ReturnPct is (price-entry)/entry; 0 for a non-positive entry.
func ReturnPct(entry, price float64) float64 {
	if entry <= 0 {
		return 0
	}
	e := decFromFloat(entry)
	return decToFloat(decFromFloat(price).Sub(e).Div(e))
}

// drawdownPct is (peak-price)/peak; 0 for a non-positive peak.
func drawdownPct(peak, price float64) float64 {
	if peak <= 0 {
		return 0
	}
	p := decFromFloat(peak)
	return decToFloat(p.Sub(decFromFloat(price)).Div(p))
}
