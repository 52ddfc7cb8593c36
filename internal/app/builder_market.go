package app

import (
	"fmt"

	brcfg "brood/internal/config"
	"brood/internal/gateway"
	"brood/internal/logger"
	"brood/internal/market"
)

// MarketStack 持有行情源及其快照缓存。
type MarketStack struct {
	Source      market.Source
	Snapshotter *market.Snapshotter
	Summary     MarketSummary
}

func buildMarketStack(cfg *brcfg.Config, override market.Source) (*MarketStack, error) {
	active := cfg.Market.ResolveActiveSource()
	src := override
	if src == nil {
		var err error
		src, err = gateway.NewSourceFromConfig(cfg)
		if err != nil {
			return nil, fmt.Errorf("初始化行情源失败: %w", err)
		}
	}
	snap, err := market.NewSnapshotter(src, market.SnapshotterOptions{
		Timeout:          cfg.Market.Timeout(),
		BreakerThreshold: cfg.Market.BreakerThreshold,
		BreakerCooldown:  cfg.Market.BreakerCooldown(),
	})
	if err != nil {
		return nil, err
	}
	logger.Infof("✓ 行情源已就绪: %s", src.Name())
	return &MarketStack{
		Source:      src,
		Snapshotter: snap,
		Summary:     MarketSummary{Source: src.Name(), Query: active.Query, Symbols: active.Symbols},
	}, nil
}
