package exit

import (
	"testing"

	"brood/internal/genome"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func eve() genome.Genome {
	return genome.CreateGenesisGenome("Eve")
}

func TestRulesOrder(t *testing.T) {
	g := eve()
	ids := make([]Reason, 0)
	for _, r := range Rules(&g) {
		ids = append(ids, r.ID())
	}
	assert.Equal(t, []Reason{ReasonTakeProfit, ReasonStopLoss, ReasonTrailingStop, ReasonTimeDecay}, ids)

	g.Exit.TrailingStop = false
	assert.Len(t, Rules(&g), 3)
}

func TestFirstMatch(t *testing.T) {
	g := eve()
	rules := Rules(&g)

	tests := []struct {
		name string
		in   Input
		want Reason
		ok   bool
	}{
		{name: "take profit", in: Input{EntryPrice: 1, PeakPrice: 1.3, Price: 1.25, RoundsHeld: 1}, want: ReasonTakeProfit, ok: true},
		{name: "stop loss", in: Input{EntryPrice: 1, PeakPrice: 1, Price: 0.85, RoundsHeld: 1}, want: ReasonStopLoss, ok: true},
		{name: "trailing in profit", in: Input{EntryPrice: 1, PeakPrice: 1.2, Price: 1.08, RoundsHeld: 2}, want: ReasonTrailingStop, ok: true},
		{name: "trailing needs profit", in: Input{EntryPrice: 1, PeakPrice: 1.2, Price: 0.95, RoundsHeld: 2}, ok: false},
		{name: "time decay", in: Input{EntryPrice: 1, PeakPrice: 1, Price: 1, RoundsHeld: 10}, want: ReasonTimeDecay, ok: true},
		{name: "hold", in: Input{EntryPrice: 1, PeakPrice: 1.05, Price: 1.04, RoundsHeld: 3}, ok: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sig, ok := First(rules, tt.in)
			require.Equal(t, tt.ok, ok)
			if ok {
				assert.Equal(t, tt.want, sig.Reason)
			}
		})
	}
}

func TestTimeDecayConfidence(t *testing.T) {
	g := eve()
	sig, ok := First(Rules(&g), Input{EntryPrice: 1, PeakPrice: 1, Price: 1, RoundsHeld: 10})
	require.True(t, ok)
	assert.Equal(t, 0.8, sig.Confidence)
}

func TestDecaySkill(t *testing.T) {
	g := eve()
	skill, ok := genome.DefaultCatalog().Instantiate(genome.TimeDecayExit, 1)
	require.True(t, ok)
	g.Skills = append(g.Skills, skill)

	// 3 rounds at 1%/round requires 3%
	sig, ok := First(Rules(&g), Input{EntryPrice: 1, PeakPrice: 1.02, Price: 1.02, RoundsHeld: 3})
	require.True(t, ok)
	assert.Equal(t, ReasonDecaySkill, sig.Reason)

	_, ok = First(Rules(&g), Input{EntryPrice: 1, PeakPrice: 1.02, Price: 1.02, RoundsHeld: 2})
	assert.False(t, ok)
}

func TestStale(t *testing.T) {
	_, ok := Stale(1, 1.1, 4, 5)
	assert.False(t, ok)
	sig, ok := Stale(1, 1.1, 5, 5)
	require.True(t, ok)
	assert.InDelta(t, 0.1, sig.Return, 1e-9)
	_, ok = Stale(1, 1.1, 100, 0)
	assert.False(t, ok)
}
