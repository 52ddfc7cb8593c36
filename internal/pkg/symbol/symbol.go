// Package symbol normalizes token and pair identifiers across market sources.
package symbol

import (
	"strings"
)

var quoteCurrencies = []string{"USDT", "BUSD", "USDC", "FDUSD", "TUSD", "SOL", "BTC", "ETH", "BNB"}

type Pair struct {
	Base  string
	Quote string
}

// Internal renders BASE/QUOTE, or "" when either side is missing.
func (p Pair) Internal() string {
	if p.Base == "" || p.Quote == "" {
		return ""
	}
	return p.Base + "/" + p.Quote
}

// Exchange renders the concatenated form used by Binance (BTCUSDT).
func (p Pair) Exchange() string {
	if p.Base == "" || p.Quote == "" {
		return ""
	}
	return p.Base + p.Quote
}

// Parse accepts "btc/usdt", "BTCUSDT" or "BTC/USDT:USDT".
func Parse(s string) Pair {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return Pair{}
	}
	if idx := strings.Index(s, ":"); idx >= 0 {
		s = s[:idx]
	}
	if parts := strings.SplitN(s, "/", 2); len(parts) == 2 {
		return Pair{
			Base:  strings.TrimSpace(parts[0]),
			Quote: strings.TrimSpace(parts[1]),
		}
	}
	for _, quote := range quoteCurrencies {
		if strings.HasSuffix(s, quote) && len(s) > len(quote) {
			return Pair{Base: s[:len(s)-len(quote)], Quote: quote}
		}
	}
	return Pair{}
}

// Token returns the canonical token symbol: the pair base when s is a pair,
// otherwise s upper-cased.
func Token(s string) string {
	if p := Parse(s); p.Base != "" {
		return p.Base
	}
	return strings.ToUpper(strings.TrimSpace(s))
}

// NormalizeList upper-cases, trims and de-duplicates pair symbols, keeping order.
func NormalizeList(symbols []string) []string {
	if len(symbols) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(symbols))
	out := make([]string, 0, len(symbols))
	for _, s := range symbols {
		norm := Parse(s).Internal()
		if norm == "" {
			norm = strings.ToUpper(strings.TrimSpace(s))
			if norm == "" {
				continue
			}
		}
		if _, ok := seen[norm]; ok {
			continue
		}
		seen[norm] = struct{}{}
		out = append(out, norm)
	}
	return out
}
