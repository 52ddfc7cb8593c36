package app

import (
	"context"
	"fmt"
	"io"
	"strings"

	"brood/internal/catalog"
	brcfg "brood/internal/config"
	"brood/internal/evo"
	"brood/internal/evolution"
	"brood/internal/export"
	"brood/internal/genome"
	"brood/internal/ledger"
	"brood/internal/logger"
	"brood/internal/market"
	"brood/internal/pkg/units"
	"brood/internal/scheduler"
	"brood/internal/store"
	"brood/internal/store/sqlite"
	"brood/internal/strategy"
	dashboardhttp "brood/internal/transport/http/dashboard"

	"github.com/google/uuid"
)

type AppBuilder struct {
	cfg *brcfg.Config

	marketStackFn func(*brcfg.Config, market.Source) (*MarketStack, error)
	ledgerFn      func(brcfg.LedgerConfig) (*ledger.Registry, error)
	storeFn       func(brcfg.StorageConfig) (store.Store, error)
	dashboardFn   func(dashboardhttp.RouterConfig, string) (*dashboardhttp.Server, error)

	sourceOverride market.Source
	pacerOverride  evolution.Pacer
	runID          string
}

type AppBuilderOption func(*AppBuilder)

// WithMarketSource 替换配置中的行情源（离线回放与测试用）。
func WithMarketSource(src market.Source) AppBuilderOption {
	return func(b *AppBuilder) { b.sourceOverride = src }
}

// WithPacer 替换轮次调度器。
func WithPacer(p evolution.Pacer) AppBuilderOption {
	return func(b *AppBuilder) { b.pacerOverride = p }
}

func WithRunID(id string) AppBuilderOption {
	return func(b *AppBuilder) { b.runID = id }
}

func NewAppBuilder(cfg *brcfg.Config, opts ...AppBuilderOption) *AppBuilder {
	b := &AppBuilder{
		cfg:           cfg,
		marketStackFn: buildMarketStack,
		ledgerFn:      buildLedger,
		storeFn:       buildStore,
		dashboardFn:   dashboardhttp.NewServer,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(b)
		}
	}
	return b
}

func (b *AppBuilder) Build(ctx context.Context) (app *App, err error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if b.cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	cfg := b.cfg
	logger.SetLevel(cfg.App.LogLevel)

	var closers []io.Closer
	defer func() {
		if err != nil {
			for i := len(closers) - 1; i >= 0; i-- {
				_ = closers[i].Close()
			}
		}
	}()

	runID := b.runID
	if runID == "" {
		runID = uuid.NewString()
	}

	marketStack, err := b.marketStackFn(cfg, b.sourceOverride)
	if err != nil {
		return nil, err
	}

	registry, catalogSummary, err := buildCatalog(cfg)
	if err != nil {
		return nil, err
	}

	deps := evolution.Deps{
		Market:  marketStack.Snapshotter,
		Catalog: registry,
		Rand:    evo.NewRand(cfg.Evolution.RandSeed),
	}
	summary := &StartupSummary{
		RunID:   runID,
		Market:  marketStack.Summary,
		Catalog: catalogSummary,
	}

	if cfg.Ledger.Enabled {
		reg, err := b.ledgerFn(cfg.Ledger)
		if err != nil {
			return nil, fmt.Errorf("初始化账本失败: %w", err)
		}
		closers = append(closers, reg)
		deps.Ledger = reg
		summary.Ledger = fmt.Sprintf("%s (owner=%s)", cfg.Ledger.Driver, reg.Owner())
	}

	var st store.Store
	if strings.TrimSpace(cfg.Storage.DBPath) != "" {
		st, err = b.storeFn(cfg.Storage)
		if err != nil {
			return nil, fmt.Errorf("初始化数据库失败: %w", err)
		}
		closers = append(closers, st)
		rec, err := evolution.NewStoreRecorder(st)
		if err != nil {
			return nil, err
		}
		deps.Recorder = rec
		summary.Store = cfg.Storage.DBPath
	}

	if dir := strings.TrimSpace(cfg.Storage.ExportDir); dir != "" {
		exp, err := export.New(dir, cfg.Storage.GenomeURIPrefix)
		if err != nil {
			return nil, fmt.Errorf("初始化导出目录失败: %w", err)
		}
		deps.Exporter = exp
		summary.ExportDir = exp.Dir()
	}

	pacer, pacing, err := b.buildPacer(cfg.Evolution)
	if err != nil {
		return nil, err
	}
	deps.Pacer = pacer

	opts := loopOptions(cfg, runID)
	loop, err := evolution.NewLoop(opts, deps)
	if err != nil {
		return nil, err
	}
	summary.Evolution = EvolutionSummary{
		Rounds:          opts.Rounds,
		Pacing:          pacing,
		GenesisAgents:   opts.GenesisAgents,
		GenesisTreasury: units.Format(opts.GenesisTreasury) + " coin",
		DeathThreshold:  units.Format(opts.DeathThreshold) + " coin",
		SpawnThreshold:  units.Format(opts.SpawnThreshold) + " coin",
		SpawnSeed:       units.Format(opts.SpawnSeed) + " coin",
		MutationRate:    opts.MutationRate,
		MaxPopulation:   opts.MaxPopulation,
	}

	var dashboard *dashboardhttp.Server
	if addr := strings.TrimSpace(cfg.App.HTTPAddr); addr != "" {
		dashboard, err = b.dashboardFn(dashboardhttp.RouterConfig{
			Population: loop,
			Catalog:    registry,
			Market:     marketStack.Snapshotter,
			Store:      st,
			RunID:      runID,
		}, addr)
		if err != nil {
			return nil, err
		}
		summary.HTTPAddr = dashboard.Addr()
	}

	logger.Infof("✓ 演化循环已构建 run=%s", runID)
	return &App{
		cfg:       cfg,
		loop:      loop,
		dashboard: dashboard,
		closers:   closers,
		Summary:   summary,
	}, nil
}

func loopOptions(cfg *brcfg.Config, runID string) evolution.Options {
	ev := cfg.Evolution
	return evolution.Options{
		RunID:           runID,
		Rounds:          ev.Rounds,
		MutationRate:    ev.MutationRate,
		DeathThreshold:  ev.DeathThresholdUnits,
		SpawnThreshold:  ev.SpawnThresholdUnits,
		SpawnSeed:       ev.SpawnSeedUnits,
		GenesisTreasury: ev.GenesisTreasuryUnits,
		GenesisAgents:   append([]string(nil), ev.GenesisAgents...),
		ChildPrefix:     ev.ChildPrefix,
		MaxPopulation:   ev.MaxPopulation,
		Strategy: strategy.Options{
			BuyThreshold:     cfg.Strategy.BuyThreshold,
			MaxPositions:     cfg.Strategy.MaxPositions,
			PositionFraction: cfg.Strategy.PositionFraction,
			MinPositionUnits: cfg.Strategy.MinPositionUnits,
			StaleExitRounds:  cfg.Strategy.StaleExitRounds,
		},
	}
}

func buildCatalog(cfg *brcfg.Config) (*catalog.Registry, CatalogSummary, error) {
	base := genome.DefaultCatalog()
	base.BaseCostPerRound = cfg.Economics.BaseCostPerRound

	path := strings.TrimSpace(cfg.Catalog.TemplatesPath)
	var registry *catalog.Registry
	if path == "" {
		registry = catalog.Static(base)
	} else {
		var err error
		registry, err = catalog.NewRegistry(path, base)
		if err != nil {
			return nil, CatalogSummary{}, fmt.Errorf("加载技能目录失败: %w", err)
		}
		registry.OnChange(func(s catalog.Snapshot) {
			logger.Infof("✓ 技能目录已热更新 version=%d base_cost=%g", s.Version, s.Catalog.BaseCostPerRound)
		})
	}
	snap := registry.Snapshot()
	skills := make([]string, 0)
	for _, t := range snap.Catalog.Templates() {
		skills = append(skills, fmt.Sprintf("%s(%g)", t.ID, t.CostPerRound))
	}
	return registry, CatalogSummary{
		Path:             path,
		Version:          snap.Version,
		BaseCostPerRound: snap.Catalog.BaseCostPerRound,
		Skills:           skills,
	}, nil
}

func (b *AppBuilder) buildPacer(ev brcfg.EvolutionConfig) (evolution.Pacer, string, error) {
	if b.pacerOverride != nil {
		return b.pacerOverride, "custom", nil
	}
	interval, ok := scheduler.ParseIntervalDuration(ev.RoundInterval)
	if !ok {
		return nil, "", fmt.Errorf("invalid round interval: %s", ev.RoundInterval)
	}
	offset, ok := scheduler.ParseIntervalDuration(ev.RoundOffset)
	if !ok {
		return nil, "", fmt.Errorf("invalid round offset: %s", ev.RoundOffset)
	}
	sched, err := scheduler.NewRoundScheduler(scheduler.Options{
		Interval: interval,
		Cron:     ev.RoundCron,
		Align:    ev.AlignRounds,
		Offset:   offset,
	})
	if err != nil {
		return nil, "", err
	}
	var pacing string
	switch {
	case strings.TrimSpace(ev.RoundCron) != "":
		pacing = "cron " + ev.RoundCron
	case interval <= 0:
		pacing = "连续运行"
	case ev.AlignRounds:
		pacing = fmt.Sprintf("每 %s (对齐, offset=%s)", interval, offset)
	default:
		pacing = fmt.Sprintf("每 %s", interval)
	}
	return sched, pacing, nil
}

func buildLedger(cfg brcfg.LedgerConfig) (*ledger.Registry, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case "sqlite":
		return ledger.NewSQLite(cfg.Path, cfg.Owner)
	case "", "memory":
		return ledger.NewMemory(cfg.Owner), nil
	default:
		return nil, fmt.Errorf("unsupported ledger driver: %s", cfg.Driver)
	}
}

func buildStore(cfg brcfg.StorageConfig) (store.Store, error) {
	return sqlite.NewSqliteStore(cfg.DBPath)
}
