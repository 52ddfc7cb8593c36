package evo

import (
	"math/rand"
	"strings"
	"testing"
	"time"

	"brood/internal/genome"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedRand replays fixed draws; once exhausted it repeats the last value.
type scriptedRand struct {
	floats []float64
	ints   []int
	fi, ii int
}

func (s *scriptedRand) Float64() float64 {
	if len(s.floats) == 0 {
		return 0.999
	}
	v := s.floats[min(s.fi, len(s.floats)-1)]
	s.fi++
	return v
}

func (s *scriptedRand) Intn(n int) int {
	if len(s.ints) == 0 {
		return 0
	}
	v := s.ints[min(s.ii, len(s.ints)-1)]
	s.ii++
	return v % n
}

func fixedNow() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }

func newTestMutator(r Rand) *Mutator {
	m := NewMutator(r, genome.DefaultCatalog())
	m.Now = fixedNow
	return m
}

func experiencedParent() genome.Genome {
	g := genome.CreateGenesisGenome("Eve")
	for i := range g.Skills {
		g.Skills[i].TradesUsing = 9
		g.Skills[i].ProfitFromSkill = 1.25
		g.Skills[i].WinRate = 0.8
	}
	g.Skills[0].Params["weight"] = 0.95
	g.Lineage.Mutations = []genome.MutationRecord{{Field: "ancient", MutationType: genome.MutationTweak}}
	return g
}

func TestMutateLeavesParentUntouched(t *testing.T) {
	parent := experiencedParent()
	before := genome.Clone(parent)

	for seed := int64(1); seed <= 20; seed++ {
		child := newTestMutator(rand.New(rand.NewSource(seed))).Mutate(parent, "Nova-A1", 1.0)
		child.Skills[0].Params["weight"] = -0.5
	}
	assert.Equal(t, before, parent)
}

func TestMutateIdentityAndLineage(t *testing.T) {
	parent := experiencedParent()
	parent.Lineage.Generation = 4
	child := newTestMutator(rand.New(rand.NewSource(7))).Mutate(parent, "Nova-A1", 0.5)

	assert.Equal(t, "Nova-A1", child.AgentName)
	assert.Equal(t, 5, child.Lineage.Generation)
	assert.Equal(t, "Eve", child.Lineage.ParentName)
	assert.Equal(t, genome.HashGenome(parent), child.Lineage.ParentGenomeHash)
	assert.Equal(t, fixedNow(), child.Lineage.BirthTimestamp)
	for _, rec := range child.Lineage.Mutations {
		assert.NotEqual(t, "ancient", rec.Field, "ancestor history must not be inherited")
	}
}

func TestMutateResetsInheritedSkillStats(t *testing.T) {
	parent := experiencedParent()
	for seed := int64(1); seed <= 10; seed++ {
		child := newTestMutator(rand.New(rand.NewSource(seed))).Mutate(parent, "kid", 1.0)
		for _, s := range child.Skills {
			assert.Zero(t, s.TradesUsing)
			assert.Zero(t, s.ProfitFromSkill)
			assert.Equal(t, 0.5, s.WinRate)
			if parent.HasSkill(s.ID) {
				assert.Equal(t, "Eve", s.InheritedFrom)
			}
		}
	}
}

func TestMutateBounds(t *testing.T) {
	parent := experiencedParent()
	parent.Learning.LearningRate = 0.99
	parent.Learning.AdaptationSpeed = 0.011
	parent.Exit.TimeDecayPenalty = 0.0011
	dip, _ := genome.DefaultCatalog().Instantiate(genome.DipBuyer, 1)
	parent.Skills = append(parent.Skills, dip)

	for seed := int64(1); seed <= 200; seed++ {
		child := newTestMutator(rand.New(rand.NewSource(seed))).Mutate(parent, "kid", 1.0)
		for _, s := range child.Skills {
			for name, v := range s.Params {
				switch {
				case strings.Contains(strings.ToLower(name), "weight"):
					assert.GreaterOrEqual(t, v, -1.0, name)
					assert.LessOrEqual(t, v, 1.0, name)
				case name == "dipThreshold":
					assert.LessOrEqual(t, v, 0.0, name)
				default:
					assert.GreaterOrEqual(t, v, 0.0, name)
				}
			}
		}
		for _, f := range learningFields(&child.Learning) {
			assert.GreaterOrEqual(t, *f.value, 0.01, f.name)
			assert.LessOrEqual(t, *f.value, 1.0, f.name)
		}
		for _, f := range exitFields(&child.Exit) {
			assert.GreaterOrEqual(t, *f.value, 0.001, f.name)
		}
		assert.Equal(t, child.Exit.MaxHoldingRounds, float64(int(child.Exit.MaxHoldingRounds)))
		assert.Equal(t, parent.Exit.TrailingStop, child.Exit.TrailingStop)
	}
}

func TestMutateEveIntoNova(t *testing.T) {
	eve := genome.CreateGenesisGenome("Eve")
	nova := MutateGenome(eve, "Nova-A1", 1.0, rand.New(rand.NewSource(42)))

	assert.Equal(t, 2, nova.Lineage.Generation)
	assert.NotEmpty(t, nova.Lineage.Mutations)

	again := MutateGenome(eve, "Nova-A1", 1.0, rand.New(rand.NewSource(42)))
	assert.Equal(t, genome.HashGenome(nova), genome.HashGenome(again), "same seed must reproduce the child")
}

func TestMutateEverythingFires(t *testing.T) {
	parent := genome.CreateGenesisGenome("Eve")
	child := newTestMutator(&scriptedRand{floats: []float64{0}, ints: []int{0}}).Mutate(parent, "kid", 1.0)

	// u=0 gives delta=-0.2*v for skill params.
	assert.InDelta(t, 4.0, child.Skill(genome.MomentumRider).Params["minMomentum"], 1e-9)
	assert.InDelta(t, 0.32, child.Skill(genome.MomentumRider).Params["weight"], 1e-9)
	for _, id := range genome.StarterSkills {
		assert.False(t, child.Skill(id).Enabled, id)
	}
	// u=0 gives delta=-0.15*v for learning genes.
	assert.InDelta(t, 0.085, child.Learning.LearningRate, 1e-9)

	require.True(t, child.HasSkill(genome.DipBuyer))
	discovered := child.Skill(genome.DipBuyer)
	assert.True(t, discovered.Enabled)
	assert.Equal(t, 2, discovered.LearnedAtGeneration)
	assert.Empty(t, discovered.InheritedFrom)

	last := child.Lineage.Mutations[len(child.Lineage.Mutations)-1]
	assert.Equal(t, genome.MutationDiscover, last.MutationType)
	assert.Nil(t, last.OldValue)
	assert.Equal(t, "dip_buyer", last.NewValue)

	counts := map[genome.MutationType]int{}
	for _, rec := range child.Lineage.Mutations {
		counts[rec.MutationType]++
	}
	assert.Equal(t, 3, counts[genome.MutationDisable])
	assert.Equal(t, 1, counts[genome.MutationDiscover])
	// 3+3+2 skill params, 5 learning genes, 5 exit fields.
	assert.Equal(t, 18, counts[genome.MutationTweak])
}

func TestMutateZeroRate(t *testing.T) {
	parent := genome.CreateGenesisGenome("Eve")
	child := newTestMutator(&scriptedRand{floats: []float64{0.99}}).Mutate(parent, "kid", 0)

	assert.NotNil(t, child.Lineage.Mutations)
	assert.Empty(t, child.Lineage.Mutations)
	assert.Equal(t, genome.HashGenome(parent), genome.HashGenome(child))
}

func TestMutateNoDiscoveryWhenCatalogExhausted(t *testing.T) {
	parent := genome.CreateGenesisGenome("Eve")
	cat := genome.DefaultCatalog()
	for _, id := range cat.Missing(&parent) {
		s, _ := cat.Instantiate(id, 1)
		parent.Skills = append(parent.Skills, s)
	}
	child := newTestMutator(&scriptedRand{floats: []float64{0}}).Mutate(parent, "kid", 0)
	assert.Len(t, child.Skills, len(genome.AllSkills))
	assert.Empty(t, child.Lineage.Mutations)
}

func TestMutateEnableRecord(t *testing.T) {
	parent := genome.CreateGenesisGenome("Eve")
	parent.Skills[0].Enabled = false
	// draws: 3 params of momentum_rider (skip), toggle (fire), then skip everything.
	r := &scriptedRand{floats: []float64{0.9, 0.9, 0.9, 0.1, 0.9}}
	child := newTestMutator(r).Mutate(parent, "kid", 0.5)

	require.Len(t, child.Lineage.Mutations, 1)
	rec := child.Lineage.Mutations[0]
	assert.Equal(t, genome.MutationEnable, rec.MutationType)
	assert.Equal(t, "skills.momentum_rider.enabled", rec.Field)
	assert.Equal(t, false, rec.OldValue)
	assert.Equal(t, true, rec.NewValue)
	assert.True(t, child.Skills[0].Enabled)
}
