package evo

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"brood/internal/genome"
)

const (
	skillParamScale = 0.4
	geneScale       = 0.3
	exitScale       = 0.3
	toggleFactor    = 0.3

	minGene  = 0.01
	maxGene  = 1.0
	minExit  = 0.001
	minHold  = 1.0
	minParam = 0.0
)

// signedParams hold thresholds that are negative by definition. Mutation keeps
// them at or below zero instead of flooring them at zero.
var signedParams = map[string]bool{
	"dipThreshold": true,
}

// Mutator derives child genomes from a parent.
type Mutator struct {
	Rand    Rand
	Catalog genome.Catalog
	Now     func() time.Time
}

// NewMutator builds a Mutator over the given catalog and random source.
func NewMutator(r Rand, catalog genome.Catalog) *Mutator {
	return &Mutator{Rand: r, Catalog: catalog, Now: func() time.Time { return time.Now().UTC() }}
}

// MutateGenome mutates parent with the builtin catalog.
func MutateGenome(parent genome.Genome, childName string, mutationRate float64, r Rand) genome.Genome {
	return NewMutator(r, genome.DefaultCatalog()).Mutate(parent, childName, mutationRate)
}

// Mutate returns a child genome. The parent is never modified; the child owns
// deep copies of every skill map and carries only its own mutation ledger.
func (m *Mutator) Mutate(parent genome.Genome, childName string, mutationRate float64) genome.Genome {
	child := genome.Clone(parent)
	now := time.Now().UTC()
	if m.Now != nil {
		now = m.Now()
	}

	child.AgentName = childName
	child.Lineage = genome.Lineage{
		ParentName:       parent.AgentName,
		ParentGenomeHash: genome.HashGenome(parent),
		Generation:       parent.Lineage.Generation + 1,
		BirthTimestamp:   now,
	}
	var log []genome.MutationRecord

	for i := range child.Skills {
		s := &child.Skills[i]
		s.InheritedFrom = parent.AgentName
		s.TradesUsing = 0
		s.ProfitFromSkill = 0
		s.WinRate = 0.5

		for _, name := range sortedKeys(s.Params) {
			if !chance(m.Rand, mutationRate) {
				continue
			}
			old := s.Params[name]
			next := clampParam(name, perturb(m.Rand, old, skillParamScale))
			s.Params[name] = next
			log = append(log, genome.MutationRecord{
				Field:        fmt.Sprintf("skills.%s.params.%s", s.ID, name),
				OldValue:     old,
				NewValue:     next,
				MutationType: genome.MutationTweak,
			})
		}

		if chance(m.Rand, mutationRate*toggleFactor) {
			s.Enabled = !s.Enabled
			kind := genome.MutationDisable
			if s.Enabled {
				kind = genome.MutationEnable
			}
			log = append(log, genome.MutationRecord{
				Field:        fmt.Sprintf("skills.%s.enabled", s.ID),
				OldValue:     !s.Enabled,
				NewValue:     s.Enabled,
				MutationType: kind,
			})
		}
	}

	for _, gene := range learningFields(&child.Learning) {
		if !chance(m.Rand, mutationRate) {
			continue
		}
		old := *gene.value
		*gene.value = clamp(perturb(m.Rand, old, geneScale), minGene, maxGene)
		log = append(log, genome.MutationRecord{
			Field:        "learning." + gene.name,
			OldValue:     old,
			NewValue:     *gene.value,
			MutationType: genome.MutationTweak,
		})
	}

	for _, field := range exitFields(&child.Exit) {
		if !chance(m.Rand, mutationRate) {
			continue
		}
		old := *field.value
		next := math.Max(minExit, perturb(m.Rand, old, exitScale))
		if field.integral {
			next = math.Max(minHold, math.Round(next))
		}
		*field.value = next
		log = append(log, genome.MutationRecord{
			Field:        "exit." + field.name,
			OldValue:     old,
			NewValue:     next,
			MutationType: genome.MutationTweak,
		})
	}

	if missing := m.Catalog.Missing(&child); len(missing) > 0 && chance(m.Rand, child.Learning.SkillDiscoveryRate) {
		id := missing[m.Rand.Intn(len(missing))]
		if s, ok := m.Catalog.Instantiate(id, child.Lineage.Generation); ok {
			child.Skills = append(child.Skills, s)
			log = append(log, genome.MutationRecord{
				Field:        "skills",
				OldValue:     nil,
				NewValue:     string(id),
				MutationType: genome.MutationDiscover,
			})
		}
	}

	if log == nil {
		log = []genome.MutationRecord{}
	}
	child.Lineage.Mutations = log
	return child
}

func clampParam(name string, v float64) float64 {
	switch {
	case strings.Contains(strings.ToLower(name), "weight"):
		return clamp(v, -1, 1)
	case signedParams[name]:
		return math.Min(0, v)
	default:
		return math.Max(minParam, v)
	}
}

type namedField struct {
	name     string
	value    *float64
	integral bool
}

func learningFields(l *genome.LearningGenes) []namedField {
	return []namedField{
		{name: "learningRate", value: &l.LearningRate},
		{name: "memoryDepth", value: &l.MemoryDepth},
		{name: "explorationRate", value: &l.ExplorationRate},
		{name: "skillDiscoveryRate", value: &l.SkillDiscoveryRate},
		{name: "adaptationSpeed", value: &l.AdaptationSpeed},
	}
}

// exitFields lists the numeric exit fields; the trailing-stop flag is not
// mutated.
func exitFields(e *genome.ExitStrategy) []namedField {
	return []namedField{
		{name: "takeProfitPct", value: &e.TakeProfitPct},
		{name: "stopLossPct", value: &e.StopLossPct},
		{name: "trailingStopPct", value: &e.TrailingStopPct},
		{name: "maxHoldingRounds", value: &e.MaxHoldingRounds, integral: true},
		{name: "timeDecayPenalty", value: &e.TimeDecayPenalty},
	}
}

// sortedKeys keeps param iteration stable so seeded runs reproduce.
func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
