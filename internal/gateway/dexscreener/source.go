// Package dexscreener implements market.Source over the DexScreener search API.
package dexscreener

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"brood/internal/market"
	"brood/internal/pkg/convert"
	"brood/internal/pkg/symbol"

	"github.com/tidwall/gjson"
)

const DefaultBaseURL = "https://api.dexscreener.com"

type Config struct {
	BaseURL string
	// Queries are sent one request each; results are merged.
	Queries []string
	// Symbols, when set, restricts the snapshot to these token symbols.
	Symbols []string
	Timeout time.Duration
}

type Source struct {
	baseURL string
	queries []string
	allow   map[string]struct{}
	client  *http.Client
}

func New(cfg Config) (*Source, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		base = DefaultBaseURL
	}
	if _, err := url.Parse(base); err != nil {
		return nil, fmt.Errorf("invalid dexscreener base url: %w", err)
	}
	queries := make([]string, 0, len(cfg.Queries))
	for _, q := range cfg.Queries {
		if q = strings.TrimSpace(q); q != "" {
			queries = append(queries, q)
		}
	}
	if len(queries) == 0 {
		queries = []string{"solana"}
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	var allow map[string]struct{}
	if len(cfg.Symbols) > 0 {
		allow = make(map[string]struct{}, len(cfg.Symbols))
		for _, s := range cfg.Symbols {
			allow[symbol.Token(s)] = struct{}{}
		}
	}
	return &Source{
		baseURL: base,
		queries: queries,
		allow:   allow,
		client:  &http.Client{Timeout: timeout},
	}, nil
}

func (s *Source) Name() string { return "dexscreener" }

func (s *Source) FetchSnapshot(ctx context.Context) ([]market.Observation, error) {
	var out []market.Observation
	var lastErr error
	for _, q := range s.queries {
		obs, err := s.search(ctx, q)
		if err != nil {
			lastErr = err
			continue
		}
		out = append(out, obs...)
	}
	if len(out) == 0 && lastErr != nil {
		return nil, lastErr
	}
	return market.Dedupe(out), nil
}

func (s *Source) search(ctx context.Context, query string) ([]market.Observation, error) {
	endpoint := s.baseURL + "/latest/dex/search?q=" + url.QueryEscape(query)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("dexscreener search %q: %w", query, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return nil, fmt.Errorf("dexscreener search %q: HTTP status %d", query, resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	return s.parse(body)
}

func (s *Source) parse(body []byte) ([]market.Observation, error) {
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("dexscreener: invalid json")
	}
	pairs := gjson.GetBytes(body, "pairs")
	if !pairs.IsArray() {
		// 无匹配时 pairs 为 null
		return nil, nil
	}
	out := make([]market.Observation, 0, len(pairs.Array()))
	pairs.ForEach(func(_, p gjson.Result) bool {
		sym := symbol.Token(p.Get("baseToken.symbol").String())
		if sym == "" {
			return true
		}
		if s.allow != nil {
			if _, ok := s.allow[sym]; !ok {
				return true
			}
		}
		// priceUsd 是字符串，其余字段是数字
		out = append(out, market.Observation{
			Symbol:         sym,
			PriceUSD:       convert.ParseFloat(p.Get("priceUsd").String()),
			PriceChange24h: p.Get("priceChange.h24").Float(),
			Volume24h:      p.Get("volume.h24").Float(),
			Liquidity:      p.Get("liquidity.usd").Float(),
			FDV:            p.Get("fdv").Float(),
		})
		return true
	})
	return out, nil
}
