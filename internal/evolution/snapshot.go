package evolution

import (
	"sort"
	"time"
)

// RoundSummary aggregates one round across the population.
type RoundSummary struct {
	Round         int       `json:"round"`
	Alive         int       `json:"alive"`
	Births        int       `json:"births"`
	Deaths        int       `json:"deaths"`
	TotalTreasury int64     `json:"totalTreasury"`
	AvgGeneration float64   `json:"avgGeneration"`
	MaxGeneration int       `json:"maxGeneration"`
	Trades        int       `json:"trades"`
	Wins          int       `json:"wins"`
	Losses        int       `json:"losses"`
	TopAgent      string    `json:"topAgent,omitempty"`
	CostPaid      int64     `json:"costPaid"`
	MarketTokens  int       `json:"marketTokens"`
	At            time.Time `json:"at"`
}

// Snapshot is an immutable copy of the population published after each
// round. Readers never see a half-processed round.
type Snapshot struct {
	RunID     string         `json:"runId"`
	Round     int            `json:"round"`
	UpdatedAt time.Time      `json:"updatedAt"`
	Agents    []AgentView    `json:"agents"`
	Graveyard []GraveRecord  `json:"graveyard"`
	Last      *RoundSummary  `json:"last,omitempty"`
	History   []RoundSummary `json:"history"`
}

// Agent finds a living agent by name.
func (s *Snapshot) Agent(name string) (AgentView, bool) {
	if s == nil {
		return AgentView{}, false
	}
	for _, a := range s.Agents {
		if a.Name == name {
			return a, true
		}
	}
	return AgentView{}, false
}

// Dead finds a graveyard record by name.
func (s *Snapshot) Dead(name string) (GraveRecord, bool) {
	if s == nil {
		return GraveRecord{}, false
	}
	for _, g := range s.Graveyard {
		if g.Name == name {
			return g, true
		}
	}
	return GraveRecord{}, false
}

// Leaderboard returns living agents ordered by treasury, richest first.
func (s *Snapshot) Leaderboard() []AgentView {
	if s == nil {
		return nil
	}
	out := append([]AgentView(nil), s.Agents...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Treasury > out[j].Treasury })
	return out
}

func summarize(round int, alive []*Agent) RoundSummary {
	sum := RoundSummary{Round: round, Alive: len(alive)}
	var (
		genTotal int
		top      *Agent
	)
	for _, a := range alive {
		sum.TotalTreasury += a.Treasury
		gen := a.Generation()
		genTotal += gen
		if gen > sum.MaxGeneration {
			sum.MaxGeneration = gen
		}
		if top == nil || a.Treasury > top.Treasury {
			top = a
		}
	}
	if len(alive) > 0 {
		sum.AvgGeneration = float64(genTotal) / float64(len(alive))
	}
	if top != nil {
		sum.TopAgent = top.Name
	}
	return sum
}
