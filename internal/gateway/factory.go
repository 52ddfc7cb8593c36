package gateway

import (
	"fmt"
	"strings"

	brcfg "brood/internal/config"
	"brood/internal/gateway/binance"
	"brood/internal/gateway/dexscreener"
	"brood/internal/market"
)

// NewSourceFromConfig builds the market source selected by
// market.active_source.
func NewSourceFromConfig(cfg *brcfg.Config) (market.Source, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	active := cfg.Market.ResolveActiveSource()
	switch strings.ToLower(strings.TrimSpace(active.Name)) {
	case "", "dexscreener":
		return dexscreener.New(dexscreener.Config{
			BaseURL: active.RESTBaseURL,
			Queries: active.Query,
			Symbols: active.Symbols,
			Timeout: cfg.Market.Timeout(),
		})
	case "binance", "binance-futures":
		return binance.New(binance.Config{
			RESTBaseURL:  active.RESTBaseURL,
			HTTPTimeout:  cfg.Market.Timeout(),
			Symbols:      active.Symbols,
			ProxyEnabled: active.Proxy.Enabled,
			RESTProxyURL: active.Proxy.RESTURL,
		})
	case "static":
		return market.NewStaticSource(staticFrame(active.Observations)), nil
	default:
		return nil, fmt.Errorf("unsupported market source: %s", active.Name)
	}
}

func staticFrame(rows []brcfg.StaticObservation) []market.Observation {
	frame := make([]market.Observation, 0, len(rows))
	for _, o := range rows {
		frame = append(frame, market.Observation{
			Symbol:         o.Symbol,
			PriceUSD:       o.PriceUSD,
			PriceChange24h: o.PriceChange24h,
			Volume24h:      o.Volume24h,
			Liquidity:      o.Liquidity,
			FDV:            o.FDV,
		})
	}
	return frame
}
