// Package units converts between whole-coin amounts used for in-memory pricing
// and the ledger's fixed-point minor unit (1 coin = 1e9 units).
package units

import (
	"math"

	"github.com/shopspring/decimal"
)

// PerCoin is the number of minor units in one whole coin.
const PerCoin int64 = 1_000_000_000

var decPerCoin = decimal.NewFromInt(PerCoin)

// FromCoins rounds a whole-coin amount to the nearest minor unit.
func FromCoins(coins float64) int64 {
	if math.IsNaN(coins) || math.IsInf(coins, 0) {
		return 0
	}
	return decimal.NewFromFloat(coins).Mul(decPerCoin).Round(0).IntPart()
}

// ToCoins expresses minor units as whole coins.
func ToCoins(amount int64) float64 {
	f, _ := decimal.NewFromInt(amount).Div(decPerCoin).Float64()
	return f
}

// Scale multiplies an amount of minor units by a fractional factor and rounds
// to the nearest unit. Used for position sizing and realized P&L.
func Scale(amount int64, factor float64) int64 {
	if math.IsNaN(factor) || math.IsInf(factor, 0) {
		return 0
	}
	return decimal.NewFromInt(amount).Mul(decimal.NewFromFloat(factor)).Round(0).IntPart()
}

// Format renders minor units as a coin string with nine decimals.
func Format(amount int64) string {
	return decimal.NewFromInt(amount).Div(decPerCoin).StringFixed(9)
}
