package config

import (
	"fmt"
	"strings"

	"brood/internal/scheduler"
)

// validate 对配置进行基础校验。
func validate(c *Config) error {
	if err := c.App.validate(); err != nil {
		return err
	}
	if err := c.Market.validate(); err != nil {
		return err
	}
	if err := c.Evolution.validate(); err != nil {
		return err
	}
	if err := c.Strategy.validate(); err != nil {
		return err
	}
	if err := c.Economics.validate(); err != nil {
		return err
	}
	if err := c.Ledger.validate(); err != nil {
		return err
	}
	if err := c.Storage.validate(); err != nil {
		return err
	}
	return nil
}

func (a *AppConfig) validate() error {
	switch strings.ToLower(strings.TrimSpace(a.LogLevel)) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("app.log_level must be one of debug/info/warn/error, got %s", a.LogLevel)
	}
	switch strings.ToLower(strings.TrimSpace(a.LogFormat)) {
	case "text", "json":
	default:
		return fmt.Errorf("app.log_format must be text or json, got %s", a.LogFormat)
	}
	return nil
}

func (m *MarketConfig) validate() error {
	if len(m.Sources) == 0 {
		return fmt.Errorf("market.sources requires at least one source")
	}
	activeName := strings.ToLower(strings.TrimSpace(m.ActiveSource))
	enabled := 0
	activeFound := false
	for _, src := range m.Sources {
		if !src.Enabled {
			continue
		}
		enabled++
		switch src.Name {
		case "dexscreener", "binance":
			if strings.TrimSpace(src.RESTBaseURL) == "" {
				return fmt.Errorf("market source %s missing rest_base_url", src.Name)
			}
		case "static":
			if len(src.Observations) == 0 {
				return fmt.Errorf("market source static requires observations")
			}
		default:
			return fmt.Errorf("market source %s is not supported (dexscreener|binance|static)", src.Name)
		}
		if src.Proxy.Enabled && src.Proxy.RESTURL == "" {
			return fmt.Errorf("market source %s has proxy enabled but no rest_url", src.Name)
		}
		if activeName == "" || src.Name == activeName {
			activeFound = true
		}
	}
	if enabled == 0 {
		return fmt.Errorf("market.sources requires at least one enabled source")
	}
	if !activeFound {
		return fmt.Errorf("enabled market.active_source=%s not found", m.ActiveSource)
	}
	if m.TimeoutSeconds < 0 {
		return fmt.Errorf("market.timeout_seconds must be >= 0")
	}
	if m.BreakerThreshold <= 0 {
		return fmt.Errorf("market.breaker_threshold must be > 0")
	}
	if m.BreakerCooldownSeconds < 0 {
		return fmt.Errorf("market.breaker_cooldown_seconds must be >= 0")
	}
	return nil
}

func (e *EvolutionConfig) validate() error {
	if e.Rounds < 0 {
		return fmt.Errorf("evolution.rounds must be >= 0")
	}
	if _, ok := scheduler.ParseIntervalDuration(e.RoundInterval); !ok {
		return fmt.Errorf("evolution.round_interval is invalid: %s", e.RoundInterval)
	}
	if _, ok := scheduler.ParseIntervalDuration(e.RoundOffset); !ok {
		return fmt.Errorf("evolution.round_offset is invalid: %s", e.RoundOffset)
	}
	if e.MutationRate < 0 || e.MutationRate > 1 {
		return fmt.Errorf("evolution.mutation_rate must be in [0, 1]")
	}
	if e.DeathThresholdUnits < 0 {
		return fmt.Errorf("evolution.death_threshold_units must be >= 0")
	}
	if e.SpawnSeedUnits <= 0 {
		return fmt.Errorf("evolution.spawn_seed_units must be > 0")
	}
	if e.SpawnThresholdUnits <= e.SpawnSeedUnits {
		return fmt.Errorf("evolution.spawn_threshold_units must exceed spawn_seed_units")
	}
	if e.SpawnSeedUnits < e.DeathThresholdUnits {
		return fmt.Errorf("evolution.spawn_seed_units must be >= death_threshold_units")
	}
	if e.GenesisTreasuryUnits <= 0 {
		return fmt.Errorf("evolution.genesis_treasury_units must be > 0")
	}
	if strings.TrimSpace(e.ChildPrefix) == "" {
		return fmt.Errorf("evolution.child_prefix cannot be empty")
	}
	if e.MaxPopulation > 0 && e.MaxPopulation < len(e.GenesisAgents) {
		return fmt.Errorf("evolution.max_population must be >= number of genesis agents")
	}
	return nil
}

func (s *StrategyConfig) validate() error {
	if s.BuyThreshold <= 0 || s.BuyThreshold > 1 {
		return fmt.Errorf("strategy.buy_threshold must be in (0, 1]")
	}
	if s.MaxPositions <= 0 {
		return fmt.Errorf("strategy.max_positions must be > 0")
	}
	if s.PositionFraction <= 0 || s.PositionFraction > 1 {
		return fmt.Errorf("strategy.position_fraction must be in (0, 1]")
	}
	if s.MinPositionUnits < 0 {
		return fmt.Errorf("strategy.min_position_units must be >= 0")
	}
	if s.StaleExitRounds < 0 {
		return fmt.Errorf("strategy.stale_exit_rounds must be >= 0")
	}
	return nil
}

func (e *EconomicsConfig) validate() error {
	if e.BaseCostPerRound < 0 {
		return fmt.Errorf("economics.base_cost_per_round must be >= 0")
	}
	return nil
}

func (l *LedgerConfig) validate() error {
	if !l.Enabled {
		return nil
	}
	switch l.Driver {
	case "memory":
	case "sqlite":
		if strings.TrimSpace(l.Path) == "" {
			return fmt.Errorf("ledger.path cannot be empty for sqlite driver")
		}
	default:
		return fmt.Errorf("ledger.driver must be memory or sqlite, got %s", l.Driver)
	}
	if strings.TrimSpace(l.Owner) == "" {
		return fmt.Errorf("ledger.owner cannot be empty")
	}
	return nil
}

func (s *StorageConfig) validate() error {
	// 最长 agent 名 32 字节 + ".json"，整体需落在账本 uri 上限内
	if len(s.GenomeURIPrefix)+32+len(".json") > 128 {
		return fmt.Errorf("storage.genome_uri_prefix is too long for ledger uris")
	}
	return nil
}
