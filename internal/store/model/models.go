package model

import (
	"gorm.io/datatypes"
)

// RoundModel is one evolution round's population summary.
type RoundModel struct {
	ID            int64          `gorm:"column:id;primaryKey"`
	RunID         string         `gorm:"column:run_id;uniqueIndex:idx_round_run,priority:1"`
	Round         int            `gorm:"column:round;uniqueIndex:idx_round_run,priority:2"`
	Alive         int            `gorm:"column:alive"`
	Births        int            `gorm:"column:births"`
	Deaths        int            `gorm:"column:deaths"`
	TotalTreasury int64          `gorm:"column:total_treasury"`
	AvgGeneration float64        `gorm:"column:avg_generation"`
	MaxGeneration int            `gorm:"column:max_generation"`
	Trades        int            `gorm:"column:trades"`
	Wins          int            `gorm:"column:wins"`
	Losses        int            `gorm:"column:losses"`
	TopAgent      string         `gorm:"column:top_agent"`
	CostPaid      int64          `gorm:"column:cost_paid"`
	MarketTokens  int            `gorm:"column:market_tokens"`
	SummaryJSON   datatypes.JSON `gorm:"column:summary_json;type:TEXT"`
	CreatedAtUnix int64          `gorm:"column:created_at"`
}

func (RoundModel) TableName() string { return "evolution_rounds" }

// AgentModel is the latest known state of an agent; dead rows form the
// graveyard.
type AgentModel struct {
	ID            int64          `gorm:"column:id;primaryKey"`
	RunID         string         `gorm:"column:run_id;uniqueIndex:idx_agent_run,priority:1"`
	Name          string         `gorm:"column:name;uniqueIndex:idx_agent_run,priority:2"`
	Generation    int            `gorm:"column:generation"`
	Parent        string         `gorm:"column:parent"`
	Treasury      int64          `gorm:"column:treasury"`
	Alive         bool           `gorm:"column:alive;index"`
	BirthRound    int            `gorm:"column:birth_round"`
	DeathRound    int            `gorm:"column:death_round"`
	DeathReason   string         `gorm:"column:death_reason"`
	GenomeHash    string         `gorm:"column:genome_hash"`
	ChildrenJSON  datatypes.JSON `gorm:"column:children_json;type:TEXT"`
	UpdatedAtUnix int64          `gorm:"column:updated_at"`
}

func (AgentModel) TableName() string { return "agents" }

// GenomeModel is a full genome document captured at birth.
type GenomeModel struct {
	ID            int64          `gorm:"column:id;primaryKey"`
	RunID         string         `gorm:"column:run_id;index:idx_genome_agent,priority:1"`
	AgentName     string         `gorm:"column:agent_name;index:idx_genome_agent,priority:2"`
	GenomeHash    string         `gorm:"column:genome_hash"`
	Generation    int            `gorm:"column:generation"`
	Parent        string         `gorm:"column:parent"`
	Round         int            `gorm:"column:round"`
	DocumentJSON  datatypes.JSON `gorm:"column:document_json;type:TEXT"`
	CreatedAtUnix int64          `gorm:"column:created_at"`
}

func (GenomeModel) TableName() string { return "genomes" }

// TradeModel is one buy or sell event.
type TradeModel struct {
	ID            int64          `gorm:"column:id;primaryKey"`
	TradeID       string         `gorm:"column:trade_id;uniqueIndex:idx_trade_action,priority:1"`
	Action        string         `gorm:"column:action;uniqueIndex:idx_trade_action,priority:2"`
	RunID         string         `gorm:"column:run_id;index:idx_trade_agent,priority:1"`
	Agent         string         `gorm:"column:agent;index:idx_trade_agent,priority:2"`
	Round         int            `gorm:"column:round"`
	Token         string         `gorm:"column:token"`
	Price         float64        `gorm:"column:price"`
	EntryPrice    float64        `gorm:"column:entry_price"`
	Amount        int64          `gorm:"column:amount"`
	PnL           int64          `gorm:"column:pnl"`
	ReturnPct     float64        `gorm:"column:return_pct"`
	IsWin         bool           `gorm:"column:is_win"`
	Reason        string         `gorm:"column:reason"`
	SkillsJSON    datatypes.JSON `gorm:"column:skills_json;type:TEXT"`
	CreatedAtUnix int64          `gorm:"column:created_at"`
}

func (TradeModel) TableName() string { return "trades" }
