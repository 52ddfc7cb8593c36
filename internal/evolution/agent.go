package evolution

import (
	"fmt"

	"brood/internal/genome"
	"brood/internal/pkg/units"
	"brood/internal/strategy"
)

// Agent is one member of the population. The loop owns every agent; nothing
// outside the loop mutates it.
type Agent struct {
	Name        string
	Genome      *genome.Genome
	Treasury    int64
	Alive       bool
	BirthRound  int
	DeathRound  int
	DeathReason string
	Children    []string

	engine     *strategy.Engine
	genomeHash string
}

func newAgent(g genome.Genome, treasury int64, round int, opts strategy.Options, learner strategy.Learner) (*Agent, error) {
	gp := &g
	engine, err := strategy.NewEngine(gp, opts, learner)
	if err != nil {
		return nil, fmt.Errorf("agent %s: %w", g.AgentName, err)
	}
	genome.UpdateRunway(gp, units.ToCoins(treasury))
	return &Agent{
		Name:       g.AgentName,
		Genome:     gp,
		Treasury:   treasury,
		Alive:      true,
		BirthRound: round,
		engine:     engine,
		genomeHash: genome.HashGenome(g),
	}, nil
}

func (a *Agent) Generation() int { return a.Genome.Lineage.Generation }

// AgentView is a read-only copy of an agent published to readers.
type AgentView struct {
	Name          string              `json:"name"`
	Generation    int                 `json:"generation"`
	Parent        string              `json:"parent,omitempty"`
	Treasury      int64               `json:"treasury"`
	Exposure      int64               `json:"exposure"`
	Alive         bool                `json:"alive"`
	BirthRound    int                 `json:"birthRound"`
	DeathRound    int                 `json:"deathRound,omitempty"`
	DeathReason   string              `json:"deathReason,omitempty"`
	Children      []string            `json:"children"`
	GenomeHash    string              `json:"genomeHash"`
	CostPerRound  float64             `json:"costPerRound"`
	Runway        float64             `json:"runway"`
	CostPressure  float64             `json:"costPressure"`
	EnabledSkills []genome.SkillID    `json:"enabledSkills"`
	Positions     []strategy.Position `json:"positions"`
	Genome        genome.Genome       `json:"-"`
}

func (a *Agent) view() AgentView {
	g := genome.Clone(*a.Genome)
	return AgentView{
		Name:          a.Name,
		Generation:    g.Lineage.Generation,
		Parent:        g.Lineage.ParentName,
		Treasury:      a.Treasury,
		Exposure:      a.engine.Exposure(),
		Alive:         a.Alive,
		BirthRound:    a.BirthRound,
		DeathRound:    a.DeathRound,
		DeathReason:   a.DeathReason,
		Children:      append([]string{}, a.Children...),
		GenomeHash:    a.genomeHash,
		CostPerRound:  g.Economics.BaseCostPerRound + g.Economics.TotalSkillCost,
		Runway:        g.Economics.Runway,
		CostPressure:  g.Economics.CostPressure,
		EnabledSkills: g.EnabledSkills(),
		Positions:     a.engine.Positions(),
		Genome:        g,
	}
}

// GraveRecord is the terminal record of a dead agent.
type GraveRecord struct {
	Name          string        `json:"name"`
	Generation    int           `json:"generation"`
	Parent        string        `json:"parent,omitempty"`
	BirthRound    int           `json:"birthRound"`
	DeathRound    int           `json:"deathRound"`
	Lifespan      int           `json:"lifespan"`
	FinalTreasury int64         `json:"finalTreasury"`
	Reason        string        `json:"reason"`
	Children      []string      `json:"children"`
	Genome        genome.Genome `json:"-"`
}

func (a *Agent) grave() GraveRecord {
	return GraveRecord{
		Name:          a.Name,
		Generation:    a.Generation(),
		Parent:        a.Genome.Lineage.ParentName,
		BirthRound:    a.BirthRound,
		DeathRound:    a.DeathRound,
		Lifespan:      a.DeathRound - a.BirthRound,
		FinalTreasury: a.Treasury,
		Reason:        a.DeathReason,
		Children:      append([]string{}, a.Children...),
		Genome:        genome.Clone(*a.Genome),
	}
}
