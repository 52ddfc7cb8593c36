package genome

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
)

type hashedSkill struct {
	ID      SkillID            `json:"id"`
	Enabled bool               `json:"enabled"`
	Params  map[string]float64 `json:"params"`
}

type hashedGenome struct {
	Skills   []hashedSkill `json:"skills"`
	Learning LearningGenes `json:"learning"`
	Exit     ExitStrategy  `json:"exit"`
}

// HashGenome fingerprints the behavioral part of a genome: skill ids,
// params and enabled flags, learning genes and exit strategy. Performance
// counters, economics and lineage do not contribute.
func HashGenome(g Genome) string {
	proj := hashedGenome{
		Skills:   make([]hashedSkill, 0, len(g.Skills)),
		Learning: g.Learning,
		Exit:     g.Exit,
	}
	for _, s := range g.Skills {
		proj.Skills = append(proj.Skills, hashedSkill{ID: s.ID, Enabled: s.Enabled, Params: s.Params})
	}
	sort.Slice(proj.Skills, func(i, j int) bool { return proj.Skills[i].ID < proj.Skills[j].ID })
	// encoding/json sorts map keys, so params serialize canonically. It
	// rejects NaN and Inf; fmt also prints maps in key order.
	raw, err := json.Marshal(proj)
	if err != nil {
		raw = []byte(fmt.Sprintf("%+v", proj))
	}
	digest := sha256.Sum256(raw)
	return hex.EncodeToString(digest[:8])
}
