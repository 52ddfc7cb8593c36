package config

import (
	"fmt"
	"strings"
)

// 默认值常量
const (
	defaultAppEnv              = "dev"
	defaultAppLogLevel         = "info"
	defaultAppLogFormat        = "text"
	defaultAppHTTPAddr         = ":9991"
	defaultAppLogPath          = "data/logs/brood.log"
	defaultAppJournalPath      = "data/logs/brood-journal.log"
	defaultMarketName          = "dexscreener"
	defaultDexScreenerREST     = "https://api.dexscreener.com"
	defaultBinanceREST         = "https://fapi.binance.com"
	defaultDexScreenerQuery    = "solana"
	defaultMarketTimeout       = 10
	defaultBreakerThreshold    = 3
	defaultBreakerCooldown     = 60
	defaultRounds              = 100
	defaultRoundInterval       = "30s"
	defaultMutationRate        = 0.3
	defaultDeathThreshold      = 1_000_000
	defaultSpawnThreshold      = 500_000_000
	defaultSpawnSeed           = 100_000_000
	defaultGenesisTreasury     = 1_000_000_000
	defaultGenesisAgent        = "Eve"
	defaultChildPrefix         = "Nova"
	defaultBuyThreshold        = 0.55
	defaultMaxPositions        = 3
	defaultPositionFraction    = 0.15
	defaultMinPositionUnits    = 10_000_000
	defaultStaleExitRounds     = 5
	defaultBaseCostPerRound    = 0.0001
	defaultLedgerDriver        = "memory"
	defaultLedgerPath          = "data/db/ledger.db"
	defaultLedgerOwner         = "brood"
	defaultStorageDBPath       = "data/db/brood.db"
	defaultStorageExportDir    = "data/export"
	defaultStorageGenomePrefix = "file://data/export/genomes/"
)

// applyDefaults 为所有子配置应用默认值。
func (c *Config) applyDefaults(keys keySet) {
	c.App.applyDefaults(keys)
	c.Market.applyDefaults(keys)
	c.Evolution.applyDefaults(keys)
	c.Strategy.applyDefaults(keys)
	c.Economics.applyDefaults(keys)
	c.Ledger.applyDefaults(keys)
	c.Storage.applyDefaults(keys)
}

func (a *AppConfig) applyDefaults(keys keySet) {
	if a == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("app.env", &a.Env, defaultAppEnv),
		stringFieldDefault("app.log_level", &a.LogLevel, defaultAppLogLevel),
		stringFieldDefault("app.log_format", &a.LogFormat, defaultAppLogFormat),
		stringFieldDefault("app.http_addr", &a.HTTPAddr, defaultAppHTTPAddr),
		stringFieldDefault("app.log_path", &a.LogPath, defaultAppLogPath),
		stringFieldDefault("app.journal_path", &a.JournalPath, defaultAppJournalPath),
	)
}

func (m *MarketConfig) applyDefaults(keys keySet) {
	if m == nil {
		return
	}
	if len(m.Sources) == 0 {
		m.Sources = []MarketSource{{
			Name:        defaultMarketName,
			Enabled:     true,
			RESTBaseURL: defaultDexScreenerREST,
		}}
	}
	for i := range m.Sources {
		src := &m.Sources[i]
		src.Proxy.normalize()
		src.Name = strings.ToLower(strings.TrimSpace(src.Name))
		if src.Name == "" {
			if i == 0 {
				src.Name = defaultMarketName
			} else {
				src.Name = fmt.Sprintf("market_%d", i)
			}
		}
		if strings.TrimSpace(src.RESTBaseURL) == "" {
			src.RESTBaseURL = defaultRESTFor(src.Name)
		}
		if src.Name == "dexscreener" && len(src.Query) == 0 {
			src.Query = []string{defaultDexScreenerQuery}
		}
	}
	if strings.TrimSpace(m.ActiveSource) == "" {
		m.ActiveSource = firstEnabledMarket(m.Sources)
	}
	applyFieldDefaults(keys,
		intFieldDefault("market.timeout_seconds", &m.TimeoutSeconds, defaultMarketTimeout),
		intFieldDefault("market.breaker_threshold", &m.BreakerThreshold, defaultBreakerThreshold),
		intFieldDefault("market.breaker_cooldown_seconds", &m.BreakerCooldownSeconds, defaultBreakerCooldown),
	)
}

func defaultRESTFor(name string) string {
	switch name {
	case "binance":
		return defaultBinanceREST
	case "dexscreener":
		return defaultDexScreenerREST
	default:
		return ""
	}
}

func (e *EvolutionConfig) applyDefaults(keys keySet) {
	if e == nil {
		return
	}
	applyFieldDefaults(keys,
		fieldDefault{
			key:   "evolution.rounds",
			need:  func() bool { return e.Rounds <= 0 },
			apply: func() { e.Rounds = defaultRounds },
		},
		stringFieldDefault("evolution.round_interval", &e.RoundInterval, defaultRoundInterval),
		fieldDefault{
			key:   "evolution.mutation_rate",
			need:  func() bool { return e.MutationRate <= 0 },
			apply: func() { e.MutationRate = defaultMutationRate },
		},
		int64FieldDefault("evolution.death_threshold_units", &e.DeathThresholdUnits, defaultDeathThreshold),
		int64FieldDefault("evolution.spawn_threshold_units", &e.SpawnThresholdUnits, defaultSpawnThreshold),
		int64FieldDefault("evolution.spawn_seed_units", &e.SpawnSeedUnits, defaultSpawnSeed),
		int64FieldDefault("evolution.genesis_treasury_units", &e.GenesisTreasuryUnits, defaultGenesisTreasury),
		stringFieldDefault("evolution.child_prefix", &e.ChildPrefix, defaultChildPrefix),
	)
	e.GenesisAgents = normalizeNameList(e.GenesisAgents)
	if len(e.GenesisAgents) == 0 {
		e.GenesisAgents = []string{defaultGenesisAgent}
	}
	if e.MaxPopulation < 0 {
		e.MaxPopulation = 0
	}
}

func (s *StrategyConfig) applyDefaults(keys keySet) {
	if s == nil {
		return
	}
	applyFieldDefaults(keys,
		fieldDefault{
			key:   "strategy.buy_threshold",
			need:  func() bool { return s.BuyThreshold <= 0 },
			apply: func() { s.BuyThreshold = defaultBuyThreshold },
		},
		intFieldDefault("strategy.max_positions", &s.MaxPositions, defaultMaxPositions),
		fieldDefault{
			key:   "strategy.position_fraction",
			need:  func() bool { return s.PositionFraction <= 0 },
			apply: func() { s.PositionFraction = defaultPositionFraction },
		},
		int64FieldDefault("strategy.min_position_units", &s.MinPositionUnits, defaultMinPositionUnits),
		fieldDefault{
			key:   "strategy.stale_exit_rounds",
			apply: func() { s.StaleExitRounds = defaultStaleExitRounds },
		},
	)
}

func (e *EconomicsConfig) applyDefaults(keys keySet) {
	if e == nil {
		return
	}
	applyFieldDefaults(keys,
		fieldDefault{
			key:   "economics.base_cost_per_round",
			apply: func() { e.BaseCostPerRound = defaultBaseCostPerRound },
		},
	)
}

func (l *LedgerConfig) applyDefaults(keys keySet) {
	if l == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("ledger.driver", &l.Driver, defaultLedgerDriver),
		stringFieldDefault("ledger.path", &l.Path, defaultLedgerPath),
		stringFieldDefault("ledger.owner", &l.Owner, defaultLedgerOwner),
	)
	l.Driver = strings.ToLower(strings.TrimSpace(l.Driver))
}

func (s *StorageConfig) applyDefaults(keys keySet) {
	if s == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("storage.db_path", &s.DBPath, defaultStorageDBPath),
		stringFieldDefault("storage.export_dir", &s.ExportDir, defaultStorageExportDir),
		stringFieldDefault("storage.genome_uri_prefix", &s.GenomeURIPrefix, defaultStorageGenomePrefix),
	)
}

// Helper functions

func applyFieldDefaults(keys keySet, defs ...fieldDefault) {
	for _, def := range defs {
		if def.apply == nil {
			continue
		}
		if def.key != "" && keys.isSet(def.key) {
			continue
		}
		if def.need != nil && !def.need() {
			continue
		}
		def.apply()
	}
}

func stringFieldDefault(key string, target *string, def string) fieldDefault {
	return fieldDefault{
		key: key,
		need: func() bool {
			return target != nil && strings.TrimSpace(*target) == ""
		},
		apply: func() {
			if target != nil {
				*target = def
			}
		},
	}
}

func intFieldDefault(key string, target *int, def int) fieldDefault {
	return fieldDefault{
		key:  key,
		need: func() bool { return target != nil && *target <= 0 },
		apply: func() {
			if target != nil {
				*target = def
			}
		},
	}
}

func int64FieldDefault(key string, target *int64, def int64) fieldDefault {
	return fieldDefault{
		key:  key,
		need: func() bool { return target != nil && *target <= 0 },
		apply: func() {
			if target != nil {
				*target = def
			}
		},
	}
}

func firstEnabledMarket(sources []MarketSource) string {
	for _, src := range sources {
		name := strings.TrimSpace(src.Name)
		if src.Enabled && name != "" {
			return name
		}
	}
	if len(sources) > 0 {
		if name := strings.TrimSpace(sources[0].Name); name != "" {
			return name
		}
	}
	return defaultMarketName
}

func normalizeNameList(names []string) []string {
	if len(names) == 0 {
		return nil
	}
	out := make([]string, 0, len(names))
	seen := make(map[string]bool, len(names))
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		out = append(out, name)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
