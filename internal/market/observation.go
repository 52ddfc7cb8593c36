package market

import (
	"sort"
	"strings"
)

// Observation is one token's 24h market record as seen by every agent in a
// round.
type Observation struct {
	Symbol         string  `json:"symbol"`
	PriceUSD       float64 `json:"priceUsd"`
	PriceChange24h float64 `json:"priceChange24h"`
	Volume24h      float64 `json:"volume24h"`
	Liquidity      float64 `json:"liquidity"`
	FDV            float64 `json:"fdv"`
}

// Valid reports whether the observation carries a usable price.
func (o Observation) Valid() bool {
	return strings.TrimSpace(o.Symbol) != "" && o.PriceUSD > 0
}

// Index maps valid observations by symbol. Later duplicates win.
func Index(obs []Observation) map[string]Observation {
	out := make(map[string]Observation, len(obs))
	for _, o := range obs {
		if !o.Valid() {
			continue
		}
		out[o.Symbol] = o
	}
	return out
}

// Dedupe keeps one observation per symbol, preferring the deepest liquidity,
// and returns them ordered by descending liquidity.
func Dedupe(obs []Observation) []Observation {
	best := make(map[string]Observation, len(obs))
	for _, o := range obs {
		if !o.Valid() {
			continue
		}
		if cur, ok := best[o.Symbol]; ok && cur.Liquidity >= o.Liquidity {
			continue
		}
		best[o.Symbol] = o
	}
	out := make([]Observation, 0, len(best))
	for _, o := range best {
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Liquidity == out[j].Liquidity {
			return out[i].Symbol < out[j].Symbol
		}
		return out[i].Liquidity > out[j].Liquidity
	})
	return out
}
