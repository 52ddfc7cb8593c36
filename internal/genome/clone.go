package genome

// Clone returns a deep copy of g that shares no mutable state with it.
func Clone(g Genome) Genome {
	out := g
	out.Skills = make([]Skill, len(g.Skills))
	for i, s := range g.Skills {
		s.Params = cloneParams(s.Params)
		out.Skills[i] = s
	}
	out.Lineage.Mutations = append([]MutationRecord(nil), g.Lineage.Mutations...)
	return out
}

func cloneParams(src map[string]float64) map[string]float64 {
	if src == nil {
		return nil
	}
	out := make(map[string]float64, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}
