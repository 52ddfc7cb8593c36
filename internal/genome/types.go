package genome

import "time"

// Version tags the genome document layout.
const Version = "brood-genome/v1"

// SkillID enumerates the fixed catalog of trading heuristics.
type SkillID string

const (
	MomentumRider    SkillID = "momentum_rider"
	DipBuyer         SkillID = "dip_buyer"
	VolumeSurge      SkillID = "volume_surge"
	LiquidityGuard   SkillID = "liquidity_guard"
	RugDetector      SkillID = "rug_detector"
	TrendFollower    SkillID = "trend_follower"
	MeanReversion    SkillID = "mean_reversion"
	VolatilityHunter SkillID = "volatility_hunter"
	WhaleTracker     SkillID = "whale_tracker"
	TimeDecayExit    SkillID = "time_decay_exit"
)

// AllSkills lists every skill kind in catalog order.
var AllSkills = []SkillID{
	MomentumRider,
	DipBuyer,
	VolumeSurge,
	LiquidityGuard,
	RugDetector,
	TrendFollower,
	MeanReversion,
	VolatilityHunter,
	WhaleTracker,
	TimeDecayExit,
}

// Valid reports whether id is part of the catalog.
func (id SkillID) Valid() bool {
	for _, known := range AllSkills {
		if id == known {
			return true
		}
	}
	return false
}

// MutationType classifies a lineage mutation record.
type MutationType string

const (
	MutationTweak    MutationType = "tweak"
	MutationEnable   MutationType = "enable"
	MutationDisable  MutationType = "disable"
	MutationDiscover MutationType = "discover"
	MutationInherit  MutationType = "inherit"
)

// Skill is one trading heuristic instance owned by a genome.
type Skill struct {
	ID                  SkillID            `json:"id"`
	Enabled             bool               `json:"enabled"`
	Params              map[string]float64 `json:"params"`
	CostPerRound        float64            `json:"costPerRound"`
	TradesUsing         int                `json:"tradesUsing"`
	ProfitFromSkill     float64            `json:"profitFromSkill"`
	WinRate             float64            `json:"winRate"`
	LearnedAtGeneration int                `json:"learnedAtGeneration"`
	InheritedFrom       string             `json:"inheritedFrom,omitempty"`
}

// LearningGenes are the meta-parameters controlling in-lifetime adaptation.
type LearningGenes struct {
	LearningRate       float64 `json:"learningRate"`
	MemoryDepth        float64 `json:"memoryDepth"`
	ExplorationRate    float64 `json:"explorationRate"`
	SkillDiscoveryRate float64 `json:"skillDiscoveryRate"`
	AdaptationSpeed    float64 `json:"adaptationSpeed"`
}

// ExitStrategy holds the position exit rules. Percentages are fractions
// (0.25 = 25%).
type ExitStrategy struct {
	TakeProfitPct    float64 `json:"takeProfitPct"`
	StopLossPct      float64 `json:"stopLossPct"`
	TrailingStop     bool    `json:"trailingStop"`
	TrailingStopPct  float64 `json:"trailingStopPct"`
	MaxHoldingRounds float64 `json:"maxHoldingRounds"`
	TimeDecayPenalty float64 `json:"timeDecayPenalty"`
}

// EconomicState tracks per-round operating cost and survival pressure.
type EconomicState struct {
	BaseCostPerRound float64 `json:"baseCostPerRound"`
	TotalSkillCost   float64 `json:"totalSkillCost"`
	Runway           float64 `json:"runway"`
	CostPressure     float64 `json:"costPressure"`
}

// MutationRecord is one entry of a child's mutation ledger. OldValue is nil
// for discoveries.
type MutationRecord struct {
	Field        string       `json:"field"`
	OldValue     any          `json:"oldValue"`
	NewValue     any          `json:"newValue"`
	MutationType MutationType `json:"mutationType"`
}

// Lineage records provenance. ParentName and ParentGenomeHash are empty for
// generation-1 genomes.
type Lineage struct {
	ParentName       string           `json:"parentName,omitempty"`
	ParentGenomeHash string           `json:"parentGenomeHash,omitempty"`
	Generation       int              `json:"generation"`
	BirthTimestamp   time.Time        `json:"birthTimestamp"`
	Mutations        []MutationRecord `json:"mutations"`
}

// Genome is the aggregate root describing an agent's behavior.
type Genome struct {
	Version   string        `json:"version"`
	AgentName string        `json:"agentName"`
	Skills    []Skill       `json:"skills"`
	Learning  LearningGenes `json:"learning"`
	Exit      ExitStrategy  `json:"exit"`
	Economics EconomicState `json:"economics"`
	Lineage   Lineage       `json:"lineage"`
}

// Skill returns a pointer to the skill with the given id, or nil.
func (g *Genome) Skill(id SkillID) *Skill {
	if g == nil {
		return nil
	}
	for i := range g.Skills {
		if g.Skills[i].ID == id {
			return &g.Skills[i]
		}
	}
	return nil
}

// HasSkill reports whether the genome owns the skill (enabled or not).
func (g *Genome) HasSkill(id SkillID) bool {
	return g.Skill(id) != nil
}

// EnabledSkills returns the ids of enabled skills in genome order.
func (g *Genome) EnabledSkills() []SkillID {
	if g == nil {
		return nil
	}
	out := make([]SkillID, 0, len(g.Skills))
	for _, s := range g.Skills {
		if s.Enabled {
			out = append(out, s.ID)
		}
	}
	return out
}

// SkillEnabled reports whether the given skill exists and is enabled.
func (g *Genome) SkillEnabled(id SkillID) bool {
	s := g.Skill(id)
	return s != nil && s.Enabled
}
