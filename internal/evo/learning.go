package evo

import (
	"brood/internal/genome"
)

const (
	weightParam          = "weight"
	learningProfitScale  = 10.0
	pressureDisableLevel = 0.7
	disableWinRate       = 0.4
	bakeMinTrades        = 5
	bakeScale            = 0.2
)

// Learner feeds realized trade outcomes back into a genome.
type Learner struct {
	Rand Rand
}

// NewLearner returns a Learner drawing exploration trials from r.
func NewLearner(r Rand) *Learner {
	return &Learner{Rand: r}
}

// Learn implements the strategy engine's feedback hook.
func (l *Learner) Learn(g *genome.Genome, skillsUsed []genome.SkillID, profit float64, isWin bool) {
	ApplyLearning(g, skillsUsed, profit, isWin, l.Rand)
}

// ApplyLearning updates per-skill statistics and weights in place, then moves
// cost pressure. Sustained losses disable the weakest enabled skill; wins
// relieve pressure and may re-enable a dormant skill for a fresh trial.
func ApplyLearning(g *genome.Genome, skillsUsed []genome.SkillID, profit float64, isWin bool, r Rand) {
	if g == nil {
		return
	}
	win := 0.0
	if isWin {
		win = 1
	}
	for _, id := range skillsUsed {
		s := g.Skill(id)
		if s == nil {
			continue
		}
		s.TradesUsing++
		s.ProfitFromSkill += profit
		n := float64(s.TradesUsing)
		s.WinRate = (s.WinRate*(n-1) + win) / n
		if w, ok := s.Params[weightParam]; ok {
			s.Params[weightParam] = clamp(w+profit*g.Learning.LearningRate*learningProfitScale, -1, 1)
		}
	}

	econ := &g.Economics
	if profit < 0 {
		econ.CostPressure = min(1, econ.CostPressure+g.Learning.AdaptationSpeed)
		if len(g.EnabledSkills()) > 1 && econ.CostPressure > pressureDisableLevel {
			if weakest := weakestEnabled(g); weakest != nil && weakest.WinRate < disableWinRate {
				weakest.Enabled = false
				econ.CostPressure /= 2
			}
		}
		return
	}

	econ.CostPressure = max(0, econ.CostPressure-g.Learning.AdaptationSpeed*0.5)
	disabled := disabledSkills(g)
	if len(disabled) == 0 || r == nil || !chance(r, g.Learning.ExplorationRate) {
		return
	}
	s := disabled[r.Intn(len(disabled))]
	s.Enabled = true
	s.WinRate = 0.5
}

func weakestEnabled(g *genome.Genome) *genome.Skill {
	var weakest *genome.Skill
	for i := range g.Skills {
		s := &g.Skills[i]
		if !s.Enabled {
			continue
		}
		if weakest == nil || s.WinRate < weakest.WinRate {
			weakest = s
		}
	}
	return weakest
}

func disabledSkills(g *genome.Genome) []*genome.Skill {
	var out []*genome.Skill
	for i := range g.Skills {
		if !g.Skills[i].Enabled {
			out = append(out, &g.Skills[i])
		}
	}
	return out
}

// BakeLearning returns a copy of g whose battle-tested skills (five or more
// trades) have their weight nudged toward observed performance. The copy is
// the breeding parent handed to the Mutator.
func BakeLearning(g genome.Genome) genome.Genome {
	out := genome.Clone(g)
	for i := range out.Skills {
		s := &out.Skills[i]
		if s.TradesUsing < bakeMinTrades {
			continue
		}
		if w, ok := s.Params[weightParam]; ok {
			s.Params[weightParam] = clamp(w+(s.WinRate-0.5)*bakeScale, -1, 1)
		}
	}
	return out
}
