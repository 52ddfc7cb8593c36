package dashboardhttp

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"brood/internal/evolution"
	"brood/internal/genome"
	"brood/internal/market"
	"brood/internal/store"
	"brood/internal/store/model"

	"github.com/gin-gonic/gin"
)

const (
	defaultRoundLimit = 50
	maxRoundLimit     = 500
)

// PopulationSource yields the latest published population snapshot.
type PopulationSource interface {
	Snapshot() *evolution.Snapshot
}

type CatalogSource interface {
	Catalog() genome.Catalog
}

type MarketStats interface {
	Stats() market.SnapshotterStats
}

// RouterConfig 描述 dashboard 路由依赖。Population 之外均可为空。
type RouterConfig struct {
	Population PopulationSource
	Catalog    CatalogSource
	Market     MarketStats
	Store      store.Store
	RunID      string
}

// Router 暴露种群、墓地、轮次与目录查询接口。
type Router struct {
	cfg RouterConfig
}

func NewRouter(cfg RouterConfig) *Router {
	return &Router{cfg: cfg}
}

// Register 将 dashboard 路由挂载到给定分组下。
func (r *Router) Register(group *gin.RouterGroup) {
	if group == nil {
		return
	}
	group.GET("/population", r.handlePopulation)
	group.GET("/agents/:name", r.handleAgent)
	group.GET("/agents/:name/genome", r.handleAgentGenome)
	group.GET("/graveyard", r.handleGraveyard)
	group.GET("/rounds", r.handleRounds)
	group.GET("/catalog", r.handleCatalog)
	group.GET("/market", r.handleMarket)
}

func (r *Router) handlePopulation(c *gin.Context) {
	snap := r.cfg.Population.Snapshot()
	c.JSON(http.StatusOK, gin.H{
		"run_id":     snap.RunID,
		"round":      snap.Round,
		"updated_at": snap.UpdatedAt,
		"alive":      len(snap.Agents),
		"dead":       len(snap.Graveyard),
		"agents":     snap.Leaderboard(),
		"last":       snap.Last,
	})
}

func (r *Router) handleAgent(c *gin.Context) {
	name := strings.TrimSpace(c.Param("name"))
	snap := r.cfg.Population.Snapshot()
	if a, ok := snap.Agent(name); ok {
		c.JSON(http.StatusOK, a)
		return
	}
	if g, ok := snap.Dead(name); ok {
		c.JSON(http.StatusOK, gin.H{"alive": false, "grave": g})
		return
	}
	c.JSON(http.StatusNotFound, gin.H{"error": "agent not found"})
}

func (r *Router) handleAgentGenome(c *gin.Context) {
	name := strings.TrimSpace(c.Param("name"))
	snap := r.cfg.Population.Snapshot()
	if a, ok := snap.Agent(name); ok {
		c.JSON(http.StatusOK, a.Genome)
		return
	}
	if g, ok := snap.Dead(name); ok {
		c.JSON(http.StatusOK, g.Genome)
		return
	}
	c.JSON(http.StatusNotFound, gin.H{"error": "agent not found"})
}

func (r *Router) handleGraveyard(c *gin.Context) {
	snap := r.cfg.Population.Snapshot()
	graves := append([]evolution.GraveRecord{}, snap.Graveyard...)
	// 最近死亡的排在前面
	for i, j := 0, len(graves)-1; i < j; i, j = i+1, j-1 {
		graves[i], graves[j] = graves[j], graves[i]
	}
	c.JSON(http.StatusOK, gin.H{"count": len(graves), "graveyard": graves})
}

func (r *Router) handleRounds(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultRoundLimit)))
	if limit <= 0 {
		limit = defaultRoundLimit
	}
	if limit > maxRoundLimit {
		limit = maxRoundLimit
	}
	if r.cfg.Store == nil {
		c.JSON(http.StatusOK, gin.H{"source": "memory", "rounds": recentHistory(r.cfg.Population.Snapshot(), limit)})
		return
	}
	uow, err := r.cfg.Store.Begin(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	defer uow.Rollback()
	rows, err := uow.Rounds().ListRecent(c.Request.Context(), r.cfg.RunID, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"source": "store", "rounds": roundsFromRows(rows)})
}

func recentHistory(snap *evolution.Snapshot, limit int) []evolution.RoundSummary {
	hist := snap.History
	if len(hist) > limit {
		hist = hist[len(hist)-limit:]
	}
	out := make([]evolution.RoundSummary, 0, len(hist))
	for i := len(hist) - 1; i >= 0; i-- {
		out = append(out, hist[i])
	}
	return out
}

func roundsFromRows(rows []model.RoundModel) []evolution.RoundSummary {
	out := make([]evolution.RoundSummary, 0, len(rows))
	for _, row := range rows {
		var sum evolution.RoundSummary
		if len(row.SummaryJSON) > 0 && json.Unmarshal(row.SummaryJSON, &sum) == nil {
			out = append(out, sum)
			continue
		}
		out = append(out, evolution.RoundSummary{
			Round:         row.Round,
			Alive:         row.Alive,
			Births:        row.Births,
			Deaths:        row.Deaths,
			TotalTreasury: row.TotalTreasury,
			AvgGeneration: row.AvgGeneration,
			MaxGeneration: row.MaxGeneration,
			Trades:        row.Trades,
			Wins:          row.Wins,
			Losses:        row.Losses,
			TopAgent:      row.TopAgent,
			CostPaid:      row.CostPaid,
			MarketTokens:  row.MarketTokens,
		})
	}
	return out
}

func (r *Router) handleCatalog(c *gin.Context) {
	catalog := genome.DefaultCatalog()
	if r.cfg.Catalog != nil {
		catalog = r.cfg.Catalog.Catalog()
	}
	c.JSON(http.StatusOK, gin.H{
		"base_cost_per_round": catalog.BaseCostPerRound,
		"templates":           catalog.Templates(),
	})
}

func (r *Router) handleMarket(c *gin.Context) {
	if r.cfg.Market == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "market stats unavailable"})
		return
	}
	c.JSON(http.StatusOK, r.cfg.Market.Stats())
}
