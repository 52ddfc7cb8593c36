package app

import (
	"fmt"
	"strings"
)

// StartupSummary 汇总启动时的关键配置，打印到标准输出。
type StartupSummary struct {
	RunID     string
	Market    MarketSummary
	Evolution EvolutionSummary
	Catalog   CatalogSummary
	Ledger    string
	Store     string
	ExportDir string
	HTTPAddr  string
}

type MarketSummary struct {
	Source  string
	Query   []string
	Symbols []string
}

type EvolutionSummary struct {
	Rounds          int
	Pacing          string
	GenesisAgents   []string
	GenesisTreasury string
	DeathThreshold  string
	SpawnThreshold  string
	SpawnSeed       string
	MutationRate    float64
	MaxPopulation   int
}

type CatalogSummary struct {
	Path             string
	Version          int64
	BaseCostPerRound float64
	Skills           []string
}

func (s *StartupSummary) Print() {
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("%*s\n", 40+len("启动配置摘要 (STARTUP SUMMARY)")/2, "启动配置摘要 (STARTUP SUMMARY)")
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("  Run ID: %s\n", s.RunID)
	fmt.Println()

	fmt.Println("[行情源 (MARKET)]")
	fmt.Printf("  数据源: %s\n", s.Market.Source)
	fmt.Printf("  查询词: %s\n", formatList(s.Market.Query))
	fmt.Printf("  币种过滤: %s\n", formatList(s.Market.Symbols))
	fmt.Println()

	fmt.Println("[演化参数 (EVOLUTION)]")
	rounds := "不限"
	if s.Evolution.Rounds > 0 {
		rounds = fmt.Sprintf("%d", s.Evolution.Rounds)
	}
	fmt.Printf("  轮数上限: %s\n", rounds)
	fmt.Printf("  轮次节奏: %s\n", s.Evolution.Pacing)
	fmt.Printf("  创世个体: %s (每个 %s)\n", formatList(s.Evolution.GenesisAgents), s.Evolution.GenesisTreasury)
	fmt.Printf("  死亡阈值: %s\n", s.Evolution.DeathThreshold)
	fmt.Printf("  繁殖阈值: %s (种子 %s)\n", s.Evolution.SpawnThreshold, s.Evolution.SpawnSeed)
	fmt.Printf("  变异率: %.2f\n", s.Evolution.MutationRate)
	if s.Evolution.MaxPopulation > 0 {
		fmt.Printf("  种群上限: %d\n", s.Evolution.MaxPopulation)
	}
	fmt.Println()

	fmt.Println("[技能目录 (SKILL CATALOG)]")
	path := s.Catalog.Path
	if path == "" {
		path = "(内置)"
	}
	fmt.Printf("  覆盖文件: %s (版本 %d)\n", path, s.Catalog.Version)
	fmt.Printf("  基础成本/轮: %g\n", s.Catalog.BaseCostPerRound)
	fmt.Printf("  技能: %s\n", formatList(s.Catalog.Skills))
	fmt.Println()

	fmt.Println("[存储 (STORAGE)]")
	fmt.Printf("  账本: %s\n", orDash(s.Ledger))
	fmt.Printf("  数据库: %s\n", orDash(s.Store))
	fmt.Printf("  导出目录: %s\n", orDash(s.ExportDir))
	fmt.Printf("  Dashboard: %s\n", orDash(s.HTTPAddr))
	fmt.Println(strings.Repeat("=", 80))
}

func formatList(items []string) string {
	if len(items) == 0 {
		return "-"
	}
	return strings.Join(items, ", ")
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}
