package genome

import "math"

// CalculateCosts returns the per-round operating cost in whole coins and
// stores the enabled-skill component in g.Economics.TotalSkillCost.
func CalculateCosts(g *Genome) float64 {
	if g == nil {
		return 0
	}
	total := 0.0
	for _, s := range g.Skills {
		if s.Enabled {
			total += s.CostPerRound
		}
	}
	g.Economics.TotalSkillCost = total
	return g.Economics.BaseCostPerRound + total
}

// UpdateRunway estimates how many rounds the treasury (whole coins) lasts at
// the current cost. The estimate is informational only; -1 means the agent
// pays nothing and never runs dry.
func UpdateRunway(g *Genome, treasuryCoins float64) float64 {
	if g == nil {
		return 0
	}
	cost := CalculateCosts(g)
	if cost <= 0 {
		g.Economics.Runway = -1
		return -1
	}
	g.Economics.Runway = math.Floor(treasuryCoins / cost)
	return g.Economics.Runway
}
