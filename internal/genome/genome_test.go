package genome

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenesisGenome(t *testing.T) {
	g := CreateGenesisGenome("Eve")

	assert.Equal(t, "Eve", g.AgentName)
	assert.Equal(t, Version, g.Version)
	assert.Equal(t, 1, g.Lineage.Generation)
	assert.Empty(t, g.Lineage.ParentName)
	assert.Empty(t, g.Lineage.ParentGenomeHash)
	assert.Empty(t, g.Lineage.Mutations)
	require.Len(t, g.Skills, 3)
	assert.Equal(t, StarterSkills, g.EnabledSkills())
	for _, s := range g.Skills {
		assert.Equal(t, 0, s.TradesUsing)
		assert.Equal(t, 0.5, s.WinRate)
		assert.Equal(t, 1, s.LearnedAtGeneration)
	}
	assert.Equal(t, DefaultLearningGenes(), g.Learning)
	assert.Equal(t, DefaultExitStrategy(), g.Exit)
	assert.Equal(t, EconomicState{BaseCostPerRound: DefaultBaseCostPerRound}, g.Economics)
}

func TestGenesisSkillsDoNotShareCatalogParams(t *testing.T) {
	cat := DefaultCatalog()
	a := cat.Genesis("a", time.Now())
	a.Skill(MomentumRider).Params["weight"] = 0.99

	b := cat.Genesis("b", time.Now())
	assert.Equal(t, 0.4, b.Skill(MomentumRider).Params["weight"])
}

func TestCatalogCoversEverySkill(t *testing.T) {
	cat := DefaultCatalog()
	for _, id := range AllSkills {
		tpl, ok := cat.Template(id)
		require.True(t, ok, id)
		assert.NotEmpty(t, tpl.Params, id)
		assert.Positive(t, tpl.CostPerRound, id)
	}
	assert.False(t, SkillID("moon_shot").Valid())
}

func TestCatalogOverrides(t *testing.T) {
	cost := 0.0002
	cat, err := DefaultCatalog().WithOverrides(map[SkillID]Override{
		MomentumRider: {CostPerRound: &cost, Params: map[string]float64{"minMomentum": 8}},
	})
	require.NoError(t, err)
	tpl, _ := cat.Template(MomentumRider)
	assert.Equal(t, 0.0002, tpl.CostPerRound)
	assert.Equal(t, 8.0, tpl.Params["minMomentum"])
	assert.Equal(t, 0.4, tpl.Params["weight"])

	base, _ := DefaultCatalog().Template(MomentumRider)
	assert.Equal(t, 5.0, base.Params["minMomentum"])

	_, err = DefaultCatalog().WithOverrides(map[SkillID]Override{"moon_shot": {}})
	assert.Error(t, err)
}

func TestMissingSkills(t *testing.T) {
	g := CreateGenesisGenome("Eve")
	missing := DefaultCatalog().Missing(&g)
	assert.Len(t, missing, len(AllSkills)-3)
	assert.NotContains(t, missing, MomentumRider)
	assert.Contains(t, missing, DipBuyer)
}

func TestCloneIsIndependent(t *testing.T) {
	g := CreateGenesisGenome("Eve")
	g.Lineage.Mutations = []MutationRecord{{Field: "x", MutationType: MutationTweak}}
	c := Clone(g)

	c.Skills[0].Params["weight"] = -1
	c.Skills[0].Enabled = false
	c.Lineage.Mutations[0].Field = "y"
	c.Learning.LearningRate = 0.9

	assert.Equal(t, 0.4, g.Skills[0].Params["weight"])
	assert.True(t, g.Skills[0].Enabled)
	assert.Equal(t, "x", g.Lineage.Mutations[0].Field)
	assert.Equal(t, 0.1, g.Learning.LearningRate)
}

func TestHashGenomeStability(t *testing.T) {
	g := CreateGenesisGenome("Eve")
	assert.Equal(t, HashGenome(g), HashGenome(g))
	assert.Len(t, HashGenome(g), 16)

	same := Clone(g)
	same.AgentName = "Other"
	same.Skills[0].TradesUsing = 12
	same.Skills[0].ProfitFromSkill = 3.5
	same.Skills[0].WinRate = 0.9
	same.Lineage.Generation = 7
	same.Lineage.ParentName = "Adam"
	same.Economics.CostPressure = 0.6
	assert.Equal(t, HashGenome(g), HashGenome(same), "performance and lineage must not affect the hash")

	mutators := map[string]func(*Genome){
		"skill id":      func(x *Genome) { x.Skills[0].ID = DipBuyer },
		"skill param":   func(x *Genome) { x.Skills[0].Params["weight"] = 0.41 },
		"enabled flag":  func(x *Genome) { x.Skills[1].Enabled = false },
		"learning gene": func(x *Genome) { x.Learning.ExplorationRate = 0.2 },
		"exit field":    func(x *Genome) { x.Exit.TrailingStop = false },
		"exit numeric":  func(x *Genome) { x.Exit.MaxHoldingRounds = 11 },
	}
	for name, mutate := range mutators {
		t.Run(name, func(t *testing.T) {
			other := Clone(g)
			mutate(&other)
			assert.NotEqual(t, HashGenome(g), HashGenome(other))
		})
	}
}

func TestHashGenomeNonFiniteParams(t *testing.T) {
	// sha256 of empty input, truncated
	const emptyDigest = "e3b0c44298fc1c14"

	a := CreateGenesisGenome("Eve")
	a.Skills[0].Params["weight"] = math.NaN()
	b := Clone(a)
	b.Skills[1].Params["weight"] = math.Inf(1)
	c := Clone(a)
	c.Learning.ExplorationRate = 0.2

	assert.NotEqual(t, emptyDigest, HashGenome(a))
	assert.NotEqual(t, HashGenome(a), HashGenome(b))
	assert.NotEqual(t, HashGenome(a), HashGenome(c))
	assert.Equal(t, HashGenome(a), HashGenome(Clone(a)))
}

func TestHashIgnoresSkillOrder(t *testing.T) {
	g := CreateGenesisGenome("Eve")
	r := Clone(g)
	r.Skills[0], r.Skills[2] = r.Skills[2], r.Skills[0]
	assert.Equal(t, HashGenome(g), HashGenome(r))
}

func TestCalculateCosts(t *testing.T) {
	g := CreateGenesisGenome("Eve")
	cost := CalculateCosts(&g)
	assert.InDelta(t, 0.00035, cost, 1e-12)
	assert.InDelta(t, 0.00025, g.Economics.TotalSkillCost, 1e-12)

	for i := range g.Skills {
		g.Skills[i].Enabled = false
	}
	assert.Equal(t, g.Economics.BaseCostPerRound, CalculateCosts(&g))
	assert.Zero(t, g.Economics.TotalSkillCost)
}

func TestUpdateRunway(t *testing.T) {
	g := CreateGenesisGenome("Eve")
	assert.Equal(t, 2.0, UpdateRunway(&g, 0.001))

	g.Economics.BaseCostPerRound = 0
	for i := range g.Skills {
		g.Skills[i].Enabled = false
	}
	assert.Equal(t, -1.0, UpdateRunway(&g, 1))
}
