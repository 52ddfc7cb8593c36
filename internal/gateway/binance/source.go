// Package binance implements market.Source over Binance USDT-M futures 24h
// ticker statistics.
package binance

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"brood/internal/market"
	"brood/internal/pkg/convert"
	"brood/internal/pkg/symbol"

	"github.com/adshao/go-binance/v2/futures"
)

// Source 基于 go-binance SDK 实现 market.Source。
type Source struct {
	cfg    Config
	client *futures.Client
	wanted map[string]struct{}
}

func New(cfg Config) (*Source, error) {
	final := cfg.withDefaults()
	client := futures.NewClient("", "")
	client.BaseURL = final.RESTBaseURL
	httpClient := &http.Client{Timeout: final.HTTPTimeout}
	if final.ProxyEnabled && final.RESTProxyURL != "" {
		proxyURL, err := url.Parse(final.RESTProxyURL)
		if err != nil {
			return nil, fmt.Errorf("invalid REST proxy url: %w", err)
		}
		baseTransport, ok := http.DefaultTransport.(*http.Transport)
		if !ok || baseTransport == nil {
			return nil, fmt.Errorf("http DefaultTransport is not *http.Transport")
		}
		transport := baseTransport.Clone()
		transport.Proxy = http.ProxyURL(proxyURL)
		httpClient.Transport = transport
	}
	client.HTTPClient = httpClient

	var wanted map[string]struct{}
	if pairs := symbol.NormalizeList(final.Symbols); len(pairs) > 0 {
		wanted = make(map[string]struct{}, len(pairs))
		for _, p := range pairs {
			// Binance requires symbols without slashes (e.g., SOLUSDT)
			ex := symbol.Parse(p).Exchange()
			if ex == "" {
				ex = p + "USDT"
			}
			wanted[ex] = struct{}{}
		}
	}
	return &Source{cfg: final, client: client, wanted: wanted}, nil
}

func (s *Source) Name() string { return "binance" }

// FetchSnapshot maps 24h ticker stats onto observations. Liquidity is proxied
// by one hour of quote turnover; futures carry no FDV.
func (s *Source) FetchSnapshot(ctx context.Context) ([]market.Observation, error) {
	stats, err := s.client.NewListPriceChangeStatsService().Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("binance 24h ticker: %w", err)
	}
	out := make([]market.Observation, 0, len(stats))
	for _, st := range stats {
		if st == nil {
			continue
		}
		raw := strings.ToUpper(strings.TrimSpace(st.Symbol))
		if s.wanted != nil {
			if _, ok := s.wanted[raw]; !ok {
				continue
			}
		} else if !strings.HasSuffix(raw, "USDT") {
			continue
		}
		quoteVolume := convert.ParseFloat(st.QuoteVolume)
		out = append(out, market.Observation{
			Symbol:         symbol.Token(raw),
			PriceUSD:       convert.ParseFloat(st.LastPrice),
			PriceChange24h: convert.ParseFloat(st.PriceChangePercent),
			Volume24h:      quoteVolume,
			Liquidity:      quoteVolume / 24,
		})
	}
	return market.Dedupe(out), nil
}
