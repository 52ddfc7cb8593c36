package genome

import (
	"fmt"
	"time"
)

// DefaultBaseCostPerRound is the fixed per-round cost every agent pays, in
// whole coins.
const DefaultBaseCostPerRound = 0.0001

// Template is the catalog definition of a skill kind.
type Template struct {
	ID           SkillID            `json:"id"`
	Description  string             `json:"description"`
	Params       map[string]float64 `json:"params"`
	CostPerRound float64            `json:"costPerRound"`
}

// Catalog holds one template per skill kind plus the genesis defaults.
// The set of kinds is closed: overrides may only retune known kinds.
type Catalog struct {
	templates        map[SkillID]Template
	BaseCostPerRound float64
}

// StarterSkills are enabled in every generation-1 genome.
var StarterSkills = []SkillID{MomentumRider, VolumeSurge, LiquidityGuard}

func builtinTemplates() map[SkillID]Template {
	return map[SkillID]Template{
		MomentumRider: {
			ID:          MomentumRider,
			Description: "buys tokens already moving up over 24h",
			Params: map[string]float64{
				"minMomentum":        5,
				"weight":             0.4,
				"volumeConfirmation": 1,
			},
			CostPerRound: 0.0001,
		},
		DipBuyer: {
			ID:          DipBuyer,
			Description: "buys sharp drawdowns backed by volume",
			Params: map[string]float64{
				"dipThreshold": -15,
				"volumeSpike":  1.5,
				"weight":       0.35,
			},
			CostPerRound: 0.0001,
		},
		VolumeSurge: {
			ID:          VolumeSurge,
			Description: "rewards volume well above a baseline",
			Params: map[string]float64{
				"minVolume":       50_000,
				"surgeMultiplier": 2,
				"weight":          0.3,
			},
			CostPerRound: 0.0001,
		},
		LiquidityGuard: {
			ID:          LiquidityGuard,
			Description: "penalizes thin liquidity",
			Params: map[string]float64{
				"minLiquidity":  10_000,
				"penaltyWeight": -0.5,
			},
			CostPerRound: 0.00005,
		},
		RugDetector: {
			ID:          RugDetector,
			Description: "penalizes violent moves on thin liquidity",
			Params: map[string]float64{
				"penaltyWeight": -0.9,
			},
			CostPerRound: 0.00008,
		},
		TrendFollower: {
			ID:          TrendFollower,
			Description: "follows strong positive trends",
			Params: map[string]float64{
				"minTrend": 0.25,
				"weight":   0.3,
			},
			CostPerRound: 0.0001,
		},
		MeanReversion: {
			ID:          MeanReversion,
			Description: "fades extreme moves",
			Params: map[string]float64{
				"deviationThreshold": 3,
				"weight":             0.25,
			},
			CostPerRound: 0.0001,
		},
		VolatilityHunter: {
			ID:          VolatilityHunter,
			Description: "likes a band of realized volatility",
			Params: map[string]float64{
				"minVolatility": 0.1,
				"maxVolatility": 0.5,
				"weight":        0.2,
			},
			CostPerRound: 0.00012,
		},
		WhaleTracker: {
			ID:          WhaleTracker,
			Description: "uses heavy volume as a large-holder proxy",
			Params: map[string]float64{
				"whaleThreshold": 5_000,
				"weight":         0.25,
			},
			CostPerRound: 0.00015,
		},
		TimeDecayExit: {
			ID:          TimeDecayExit,
			Description: "closes stale positions that have not earned their keep",
			Params: map[string]float64{
				"minRounds": 3,
			},
			CostPerRound: 0.00005,
		},
	}
}

// DefaultCatalog returns the builtin catalog.
func DefaultCatalog() Catalog {
	return Catalog{templates: builtinTemplates(), BaseCostPerRound: DefaultBaseCostPerRound}
}

// Override retunes a known template. Nil fields keep the builtin value.
type Override struct {
	CostPerRound *float64
	Params       map[string]float64
}

// WithOverrides returns a copy of c with the overrides merged in.
func (c Catalog) WithOverrides(overrides map[SkillID]Override) (Catalog, error) {
	out := c.clone()
	for id, ov := range overrides {
		tpl, ok := out.templates[id]
		if !ok {
			return Catalog{}, fmt.Errorf("unknown skill %q", id)
		}
		if ov.CostPerRound != nil {
			tpl.CostPerRound = *ov.CostPerRound
		}
		for k, v := range ov.Params {
			tpl.Params[k] = v
		}
		out.templates[id] = tpl
	}
	return out, nil
}

func (c Catalog) clone() Catalog {
	src := c.templates
	if src == nil {
		src = builtinTemplates()
	}
	out := Catalog{templates: make(map[SkillID]Template, len(src)), BaseCostPerRound: c.BaseCostPerRound}
	for id, tpl := range src {
		tpl.Params = cloneParams(tpl.Params)
		out.templates[id] = tpl
	}
	return out
}

// Template returns a copy of the template for id.
func (c Catalog) Template(id SkillID) (Template, bool) {
	tpl, ok := c.templates[id]
	if !ok {
		return Template{}, false
	}
	tpl.Params = cloneParams(tpl.Params)
	return tpl, true
}

// Templates lists all templates in catalog order.
func (c Catalog) Templates() []Template {
	out := make([]Template, 0, len(AllSkills))
	for _, id := range AllSkills {
		if tpl, ok := c.Template(id); ok {
			out = append(out, tpl)
		}
	}
	return out
}

// Instantiate builds a fresh enabled skill from the catalog.
func (c Catalog) Instantiate(id SkillID, generation int) (Skill, bool) {
	tpl, ok := c.Template(id)
	if !ok {
		return Skill{}, false
	}
	return Skill{
		ID:                  id,
		Enabled:             true,
		Params:              tpl.Params,
		CostPerRound:        tpl.CostPerRound,
		WinRate:             0.5,
		LearnedAtGeneration: generation,
	}, true
}

// Missing returns catalog skill ids absent from g, in catalog order.
func (c Catalog) Missing(g *Genome) []SkillID {
	var out []SkillID
	for _, id := range AllSkills {
		if _, ok := c.templates[id]; !ok {
			continue
		}
		if !g.HasSkill(id) {
			out = append(out, id)
		}
	}
	return out
}

// DefaultLearningGenes are the generation-1 learning parameters.
func DefaultLearningGenes() LearningGenes {
	return LearningGenes{
		LearningRate:       0.1,
		MemoryDepth:        0.5,
		ExplorationRate:    0.1,
		SkillDiscoveryRate: 0.15,
		AdaptationSpeed:    0.2,
	}
}

// DefaultExitStrategy is the generation-1 exit strategy.
func DefaultExitStrategy() ExitStrategy {
	return ExitStrategy{
		TakeProfitPct:    0.25,
		StopLossPct:      0.15,
		TrailingStop:     true,
		TrailingStopPct:  0.10,
		MaxHoldingRounds: 10,
		TimeDecayPenalty: 0.01,
	}
}

// Genesis builds a generation-1 genome for agentName.
func (c Catalog) Genesis(agentName string, born time.Time) Genome {
	skills := make([]Skill, 0, len(StarterSkills))
	for _, id := range StarterSkills {
		if s, ok := c.Instantiate(id, 1); ok {
			skills = append(skills, s)
		}
	}
	return Genome{
		Version:   Version,
		AgentName: agentName,
		Skills:    skills,
		Learning:  DefaultLearningGenes(),
		Exit:      DefaultExitStrategy(),
		Economics: EconomicState{BaseCostPerRound: c.BaseCostPerRound},
		Lineage: Lineage{
			Generation:     1,
			BirthTimestamp: born,
			Mutations:      []MutationRecord{},
		},
	}
}

// CreateGenesisGenome builds a generation-1 genome from the builtin catalog.
func CreateGenesisGenome(agentName string) Genome {
	return DefaultCatalog().Genesis(agentName, time.Now().UTC())
}
