package config

import (
	"strings"
	"time"
)

// Config 是 brood 的主配置载体。
type Config struct {
	App       AppConfig       `toml:"app"`
	Market    MarketConfig    `toml:"market"`
	Evolution EvolutionConfig `toml:"evolution"`
	Strategy  StrategyConfig  `toml:"strategy"`
	Economics EconomicsConfig `toml:"economics"`
	Ledger    LedgerConfig    `toml:"ledger"`
	Storage   StorageConfig   `toml:"storage"`
	Catalog   CatalogConfig   `toml:"catalog"`
}

type AppConfig struct {
	Env         string `toml:"env"`
	LogLevel    string `toml:"log_level"`
	LogFormat   string `toml:"log_format"`
	LogPath     string `toml:"log_path"`
	JournalPath string `toml:"journal_path"`
	// HTTPAddr 为空时不启动 dashboard。
	HTTPAddr string `toml:"http_addr"`
}

type MarketConfig struct {
	ActiveSource           string         `toml:"active_source"`
	Sources                []MarketSource `toml:"sources"`
	TimeoutSeconds         int            `toml:"timeout_seconds"`
	BreakerThreshold       int            `toml:"breaker_threshold"`
	BreakerCooldownSeconds int            `toml:"breaker_cooldown_seconds"`
}

type MarketSource struct {
	Name        string      `toml:"name"`
	Enabled     bool        `toml:"enabled"`
	RESTBaseURL string      `toml:"rest_base_url"`
	Query       []string    `toml:"query"`
	Symbols     []string    `toml:"symbols"`
	Proxy       ProxyConfig `toml:"proxy"`
	// Observations 仅用于 static 数据源。
	Observations []StaticObservation `toml:"observations"`
}

// StaticObservation is one fixed market row for the static source.
type StaticObservation struct {
	Symbol         string  `toml:"symbol"`
	PriceUSD       float64 `toml:"price_usd"`
	PriceChange24h float64 `toml:"price_change_24h"`
	Volume24h      float64 `toml:"volume_24h"`
	Liquidity      float64 `toml:"liquidity"`
	FDV            float64 `toml:"fdv"`
}

type ProxyConfig struct {
	Enabled bool   `toml:"enabled"`
	RESTURL string `toml:"rest_url"`
}

func (p *ProxyConfig) normalize() {
	if p == nil {
		return
	}
	p.RESTURL = strings.TrimSpace(p.RESTURL)
}

// ResolveActiveSource returns the enabled source named by active_source, or
// the first source when nothing matches.
func (m MarketConfig) ResolveActiveSource() MarketSource {
	if len(m.Sources) == 0 {
		return MarketSource{Name: defaultMarketName, Enabled: true, RESTBaseURL: defaultDexScreenerREST}
	}
	active := strings.ToLower(strings.TrimSpace(m.ActiveSource))
	var fallback MarketSource
	for _, src := range m.Sources {
		if fallback.Name == "" {
			fallback = src
		}
		if !src.Enabled {
			continue
		}
		if active == "" || strings.ToLower(src.Name) == active {
			return src
		}
	}
	return fallback
}

func (m MarketConfig) Timeout() time.Duration {
	return time.Duration(m.TimeoutSeconds) * time.Second
}

func (m MarketConfig) BreakerCooldown() time.Duration {
	return time.Duration(m.BreakerCooldownSeconds) * time.Second
}

// EvolutionConfig 控制种群演化。单位字段均为最小记账单位 (1 coin = 1e9)。
type EvolutionConfig struct {
	Rounds               int      `toml:"rounds"` // 0 = 不限轮数
	RoundInterval        string   `toml:"round_interval"`
	RoundCron            string   `toml:"round_cron"`
	AlignRounds          bool     `toml:"align_rounds"`
	RoundOffset          string   `toml:"round_offset"`
	MutationRate         float64  `toml:"mutation_rate"`
	DeathThresholdUnits  int64    `toml:"death_threshold_units"`
	SpawnThresholdUnits  int64    `toml:"spawn_threshold_units"`
	SpawnSeedUnits       int64    `toml:"spawn_seed_units"`
	GenesisTreasuryUnits int64    `toml:"genesis_treasury_units"`
	GenesisAgents        []string `toml:"genesis_agents"`
	ChildPrefix          string   `toml:"child_prefix"`
	RandSeed             int64    `toml:"rand_seed"`      // 0 = 按时间取种
	MaxPopulation        int      `toml:"max_population"` // 0 = 不限
}

type StrategyConfig struct {
	BuyThreshold     float64 `toml:"buy_threshold"`
	MaxPositions     int     `toml:"max_positions"`
	PositionFraction float64 `toml:"position_fraction"`
	MinPositionUnits int64   `toml:"min_position_units"`
	StaleExitRounds  int     `toml:"stale_exit_rounds"` // 0 = 关闭
}

type EconomicsConfig struct {
	BaseCostPerRound float64 `toml:"base_cost_per_round"`
}

type LedgerConfig struct {
	Enabled bool   `toml:"enabled"`
	Driver  string `toml:"driver"` // memory | sqlite
	Path    string `toml:"path"`
	Owner   string `toml:"owner"`
}

type StorageConfig struct {
	DBPath          string `toml:"db_path"`
	ExportDir       string `toml:"export_dir"`
	GenomeURIPrefix string `toml:"genome_uri_prefix"`
}

type CatalogConfig struct {
	TemplatesPath string `toml:"templates_path"`
}

// keySet 用于追踪配置文件中显式设置的字段路径。
type keySet map[string]struct{}

func (k keySet) mark(path string) {
	path = strings.ToLower(strings.TrimSpace(path))
	if path == "" {
		return
	}
	k[path] = struct{}{}
}

func (k keySet) isSet(path string) bool {
	if len(k) == 0 {
		return false
	}
	path = strings.ToLower(strings.TrimSpace(path))
	if path == "" {
		return false
	}
	_, ok := k[path]
	return ok
}

// fieldDefault 描述单个字段的默认值设置规则。
type fieldDefault struct {
	key   string
	need  func() bool
	apply func()
}
