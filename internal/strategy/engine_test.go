package strategy

import (
	"testing"

	"brood/internal/genome"
	"brood/internal/market"
	"brood/internal/pkg/units"
	"brood/internal/strategy/exit"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockLearner struct {
	mock.Mock
}

func (m *mockLearner) Learn(g *genome.Genome, skillsUsed []genome.SkillID, profit float64, isWin bool) {
	m.Called(g.AgentName, skillsUsed, profit, isWin)
}

func hot(symbol string, price float64) market.Observation {
	return market.Observation{Symbol: symbol, PriceUSD: price, PriceChange24h: 30, Volume24h: 1_500_000, Liquidity: 250_000}
}

func quiet(symbol string, price float64) market.Observation {
	return market.Observation{Symbol: symbol, PriceUSD: price, PriceChange24h: 0, Volume24h: 20_000, Liquidity: 50_000}
}

func newEngine(t *testing.T, learner Learner) (*Engine, *genome.Genome) {
	t.Helper()
	g := genome.CreateGenesisGenome("Eve")
	e, err := NewEngine(&g, DefaultOptions(), learner)
	require.NoError(t, err)
	return e, &g
}

func TestNewEngineRequiresGenome(t *testing.T) {
	_, err := NewEngine(nil, DefaultOptions(), nil)
	assert.Error(t, err)
}

func TestExecuteRoundChargesCostWithoutSignals(t *testing.T) {
	e, g := newEngine(t, nil)
	assert.InDelta(t, 0.00035, genome.CalculateCosts(g), 1e-12)

	res := e.ExecuteRound(nil, 100_000_000)
	assert.Equal(t, int64(350_000), res.Cost)
	assert.Equal(t, int64(100_000_000-350_000), res.Treasury)
	assert.Empty(t, res.Trades)
	assert.Empty(t, e.Positions())

	res = e.ExecuteRound([]market.Observation{quiet("PEPE", 1)}, res.Treasury)
	assert.Equal(t, int64(100_000_000-700_000), res.Treasury)
	assert.Empty(t, e.Positions())
}

func TestExecuteRoundCostNeverOverdraws(t *testing.T) {
	e, _ := newEngine(t, nil)
	res := e.ExecuteRound(nil, 100_000)
	assert.Equal(t, int64(100_000), res.Cost)
	assert.Zero(t, res.Treasury)
}

func TestAnalyzeToken(t *testing.T) {
	e, _ := newEngine(t, nil)

	a := e.AnalyzeToken(hot("BONK", 1))
	assert.Equal(t, DecisionBuy, a.Decision)
	assert.InDelta(t, 0.85, a.Confidence, 1e-9)
	assert.Equal(t, []genome.SkillID{genome.MomentumRider, genome.VolumeSurge}, a.Skills)

	thin := market.Observation{Symbol: "RUG", PriceUSD: 1, Liquidity: 5_000}
	a = e.AnalyzeToken(thin)
	assert.Equal(t, DecisionHold, a.Decision)
	assert.InDelta(t, 0.25, a.Confidence, 1e-9)
	assert.Equal(t, []genome.SkillID{genome.LiquidityGuard}, a.Skills)

	a = e.AnalyzeToken(quiet("PEPE", 1))
	assert.Equal(t, DecisionHold, a.Decision)
	assert.InDelta(t, 0.5, a.Confidence, 1e-9)
	assert.Empty(t, a.Skills)
}

func TestExecuteRoundOpensUpToMaxPositions(t *testing.T) {
	e, _ := newEngine(t, nil)
	start := int64(1_000_000_000)
	obs := []market.Observation{hot("A", 1), hot("B", 2), hot("C", 3), hot("D", 4)}

	res := e.ExecuteRound(obs, start)
	require.Len(t, res.Trades, 3)
	positions := e.Positions()
	require.Len(t, positions, 3)

	afterCost := start - res.Cost
	first := units.Scale(afterCost, 0.15)
	assert.Equal(t, first, positions[0].Amount)
	assert.Equal(t, units.Scale(afterCost-first, 0.15), positions[1].Amount)

	var committed int64
	for _, tr := range res.Trades {
		assert.Equal(t, ActionBuy, tr.Action)
		committed += tr.Amount
	}
	assert.Equal(t, start-res.Cost-committed, res.Treasury)
	assert.Equal(t, committed, e.Exposure())
}

func TestExecuteRoundSkipsBelowFloor(t *testing.T) {
	e, _ := newEngine(t, nil)
	res := e.ExecuteRound([]market.Observation{hot("A", 1)}, 50_000_000)
	assert.Empty(t, res.Trades)
	assert.Empty(t, e.Positions())
}

func TestTakeProfitFeedsLearner(t *testing.T) {
	learner := &mockLearner{}
	e, _ := newEngine(t, learner)

	res := e.ExecuteRound([]market.Observation{hot("BONK", 1)}, 1_000_000_000)
	require.Len(t, e.Positions(), 1)
	amount := e.Positions()[0].Amount

	learner.On("Learn", "Eve", []genome.SkillID{genome.MomentumRider, genome.VolumeSurge}, mock.AnythingOfType("float64"), true).Once()

	before := res.Treasury
	res = e.ExecuteRound([]market.Observation{hot("BONK", 1.3)}, before)
	learner.AssertExpectations(t)

	require.NotEmpty(t, res.Trades)
	sell := res.Trades[0]
	assert.Equal(t, ActionSell, sell.Action)
	assert.Equal(t, string(exit.ReasonTakeProfit), sell.Reason)
	assert.Equal(t, units.Scale(amount, 0.3), sell.PnL)
	assert.True(t, sell.IsWin)
	assert.Equal(t, 1, sell.RoundsHeld)
}

func TestCheckExitUpdatesCounters(t *testing.T) {
	e, _ := newEngine(t, nil)
	pos := &Position{Token: "A", EntryPrice: 1, PeakPrice: 1, Amount: 1}

	_, ok := e.CheckExit(pos, 1.1, 1)
	assert.False(t, ok)
	assert.Equal(t, 1.1, pos.PeakPrice)
	assert.Equal(t, 1, pos.RoundsHeld)

	_, ok = e.CheckExit(pos, 1.05, 2)
	assert.False(t, ok)
	assert.Equal(t, 1.1, pos.PeakPrice)
	assert.Equal(t, 2, pos.RoundsHeld)
}

func TestMissingTokenLeavesPositionThenStaleExit(t *testing.T) {
	e, _ := newEngine(t, nil)
	res := e.ExecuteRound([]market.Observation{hot("GONE", 2)}, 1_000_000_000)
	require.Len(t, e.Positions(), 1)
	treasury := res.Treasury

	for i := 0; i < 4; i++ {
		res = e.ExecuteRound([]market.Observation{quiet("PEPE", 1)}, treasury)
		treasury = res.Treasury
		require.Len(t, e.Positions(), 1)
		pos := e.Positions()[0]
		assert.Equal(t, 0, pos.RoundsHeld)
		assert.Equal(t, i+1, pos.MissingRounds)
	}

	amount := e.Positions()[0].Amount
	res = e.ExecuteRound([]market.Observation{quiet("PEPE", 1)}, treasury)
	require.Len(t, res.Trades, 1)
	assert.Equal(t, string(exit.ReasonStale), res.Trades[0].Reason)
	assert.Zero(t, res.Trades[0].PnL)
	assert.Empty(t, e.Positions())
	assert.Equal(t, treasury-res.Cost+amount, res.Treasury)
}

func TestStaleExitDisabled(t *testing.T) {
	g := genome.CreateGenesisGenome("Eve")
	opts := DefaultOptions()
	opts.StaleExitRounds = 0
	e, err := NewEngine(&g, opts, nil)
	require.NoError(t, err)

	res := e.ExecuteRound([]market.Observation{hot("GONE", 2)}, 1_000_000_000)
	for i := 0; i < 20; i++ {
		res = e.ExecuteRound(nil, res.Treasury)
	}
	assert.Len(t, e.Positions(), 1)
}
