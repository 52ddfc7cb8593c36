// Package strategy turns market observations into trades for one agent:
// per-skill signals, buy/hold analysis, position management and exits.
package strategy

import (
	"fmt"
	"math"
	"sort"
	"time"

	"brood/internal/genome"
	"brood/internal/market"
	"brood/internal/pkg/units"
	"brood/internal/strategy/exit"

	"github.com/google/uuid"
)

const (
	DecisionBuy  = "buy"
	DecisionHold = "hold"

	ActionBuy  = "buy"
	ActionSell = "sell"

	historyLimit = 500
)

// Learner receives realized trade outcomes for the skills that opened them.
type Learner interface {
	Learn(g *genome.Genome, skillsUsed []genome.SkillID, profit float64, isWin bool)
}

type Options struct {
	BuyThreshold     float64
	MaxPositions     int
	PositionFraction float64
	MinPositionUnits int64
	// StaleExitRounds force-closes a position whose token has been missing
	// for this many rounds. 0 keeps it open indefinitely.
	StaleExitRounds int
}

func DefaultOptions() Options {
	return Options{
		BuyThreshold:     0.55,
		MaxPositions:     3,
		PositionFraction: 0.15,
		MinPositionUnits: 10_000_000,
		StaleExitRounds:  5,
	}
}

func (o Options) withDefaults() Options {
	def := DefaultOptions()
	if o.BuyThreshold <= 0 {
		o.BuyThreshold = def.BuyThreshold
	}
	if o.MaxPositions <= 0 {
		o.MaxPositions = def.MaxPositions
	}
	if o.PositionFraction <= 0 {
		o.PositionFraction = def.PositionFraction
	}
	if o.MinPositionUnits < 0 {
		o.MinPositionUnits = 0
	}
	if o.StaleExitRounds < 0 {
		o.StaleExitRounds = 0
	}
	return o
}

type Position struct {
	ID            string           `json:"id"`
	Token         string           `json:"token"`
	EntryPrice    float64          `json:"entryPrice"`
	Amount        int64            `json:"amount"`
	EntryRound    int              `json:"entryRound"`
	EntryTime     time.Time        `json:"entryTime"`
	RoundsHeld    int              `json:"roundsHeld"`
	PeakPrice     float64          `json:"peakPrice"`
	LastPrice     float64          `json:"lastPrice"`
	MissingRounds int              `json:"missingRounds"`
	SkillsUsed    []genome.SkillID `json:"skillsUsed"`
	Confidence    float64          `json:"confidence"`
}

type SkillSignal struct {
	Skill  genome.SkillID `json:"skill"`
	Signal float64        `json:"signal"`
	Reason string         `json:"reason"`
}

type Analysis struct {
	Token       string           `json:"token"`
	Price       float64          `json:"price"`
	TotalSignal float64          `json:"totalSignal"`
	Confidence  float64          `json:"confidence"`
	Decision    string           `json:"decision"`
	Signals     []SkillSignal    `json:"signals"`
	Skills      []genome.SkillID `json:"skills"`
}

type TradeResult struct {
	ID         string           `json:"id"`
	Agent      string           `json:"agent"`
	Round      int              `json:"round"`
	Action     string           `json:"action"`
	Token      string           `json:"token"`
	Price      float64          `json:"price"`
	EntryPrice float64          `json:"entryPrice"`
	Amount     int64            `json:"amount"`
	PnL        int64            `json:"pnl"`
	Return     float64          `json:"return"`
	IsWin      bool             `json:"isWin"`
	RoundsHeld int              `json:"roundsHeld"`
	Reason     string           `json:"reason"`
	Confidence float64          `json:"confidence"`
	SkillsUsed []genome.SkillID `json:"skillsUsed"`
	At         time.Time        `json:"at"`
}

type RoundResult struct {
	Trades   []TradeResult `json:"trades"`
	Treasury int64         `json:"treasury"`
	Cost     int64         `json:"cost"`
}

// Engine is one agent's strategy state. It is not safe for concurrent use;
// the owning agent drives it.
type Engine struct {
	genome    *genome.Genome
	opts      Options
	learner   Learner
	positions []*Position
	history   []TradeResult
	round     int
	now       func() time.Time
}

func NewEngine(g *genome.Genome, opts Options, learner Learner) (*Engine, error) {
	if g == nil {
		return nil, fmt.Errorf("genome is required")
	}
	return &Engine{
		genome:  g,
		opts:    opts.withDefaults(),
		learner: learner,
		now:     time.Now,
	}, nil
}

// AnalyzeToken sums enabled skill signals into a confidence in [0,1].
func (e *Engine) AnalyzeToken(obs market.Observation) Analysis {
	a := Analysis{Token: obs.Symbol, Price: obs.PriceUSD, Decision: DecisionHold}
	for _, skill := range e.genome.Skills {
		if !skill.Enabled {
			continue
		}
		signal, reason := EvaluateSkill(skill, obs)
		if signal == 0 {
			continue
		}
		a.TotalSignal += signal
		a.Signals = append(a.Signals, SkillSignal{Skill: skill.ID, Signal: signal, Reason: reason})
		a.Skills = append(a.Skills, skill.ID)
	}
	a.Confidence = math.Max(0, math.Min(1, (a.TotalSignal+1)/2))
	if a.Confidence >= e.opts.BuyThreshold {
		a.Decision = DecisionBuy
	}
	return a
}

// CheckExit advances the position's peak and hold counters, then returns the
// first exit rule that matches.
func (e *Engine) CheckExit(pos *Position, price float64, round int) (exit.Signal, bool) {
	if price > pos.PeakPrice {
		pos.PeakPrice = price
	}
	pos.RoundsHeld++
	pos.LastPrice = price
	pos.MissingRounds = 0
	sig, ok := exit.First(exit.Rules(e.genome), exit.Input{
		EntryPrice: pos.EntryPrice,
		PeakPrice:  pos.PeakPrice,
		Price:      price,
		RoundsHeld: pos.RoundsHeld,
	})
	if ok {
		sig.Detail = fmt.Sprintf("round %d: %s", round, sig.Detail)
	}
	return sig, ok
}

// ExecuteRound charges the round cost, settles exits, then opens new
// positions. The cost is paid before trading, so a position opened this round
// already paid for it.
func (e *Engine) ExecuteRound(obs []market.Observation, treasury int64) RoundResult {
	e.round++
	cost := units.FromCoins(genome.CalculateCosts(e.genome))
	if cost > treasury {
		cost = max(treasury, 0)
	}
	treasury -= cost

	index := market.Index(obs)
	var trades []TradeResult

	open := e.positions[:0]
	for _, pos := range e.positions {
		var (
			sig   exit.Signal
			ok    bool
			price float64
		)
		if o, seen := index[pos.Token]; seen {
			price = o.PriceUSD
			sig, ok = e.CheckExit(pos, price, e.round)
		} else {
			pos.MissingRounds++
			price = pos.LastPrice
			sig, ok = exit.Stale(pos.EntryPrice, price, pos.MissingRounds, e.opts.StaleExitRounds)
		}
		if !ok {
			open = append(open, pos)
			continue
		}
		trade := e.close(pos, price, sig)
		treasury += pos.Amount + trade.PnL
		trades = append(trades, trade)
	}
	e.positions = open

	held := make(map[string]struct{}, len(e.positions))
	for _, pos := range e.positions {
		held[pos.Token] = struct{}{}
	}
	var candidates []Analysis
	for _, o := range obs {
		if !o.Valid() {
			continue
		}
		if _, ok := held[o.Symbol]; ok {
			continue
		}
		held[o.Symbol] = struct{}{}
		if a := e.AnalyzeToken(o); a.Decision == DecisionBuy {
			candidates = append(candidates, a)
		}
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Confidence > candidates[j].Confidence
	})
	for _, a := range candidates {
		if len(e.positions) >= e.opts.MaxPositions {
			break
		}
		size := units.Scale(treasury, e.opts.PositionFraction)
		if size < e.opts.MinPositionUnits || size <= 0 {
			continue
		}
		treasury -= size
		trades = append(trades, e.open(a, size))
	}

	e.history = append(e.history, trades...)
	if n := len(e.history); n > historyLimit {
		e.history = append([]TradeResult(nil), e.history[n-historyLimit:]...)
	}
	return RoundResult{Trades: trades, Treasury: treasury, Cost: cost}
}

func (e *Engine) open(a Analysis, size int64) TradeResult {
	now := e.now()
	skills := append([]genome.SkillID(nil), a.Skills...)
	pos := &Position{
		ID:         uuid.NewString(),
		Token:      a.Token,
		EntryPrice: a.Price,
		Amount:     size,
		EntryRound: e.round,
		EntryTime:  now,
		PeakPrice:  a.Price,
		LastPrice:  a.Price,
		SkillsUsed: skills,
		Confidence: a.Confidence,
	}
	e.positions = append(e.positions, pos)
	return TradeResult{
		ID:         pos.ID,
		Agent:      e.genome.AgentName,
		Round:      e.round,
		Action:     ActionBuy,
		Token:      a.Token,
		Price:      a.Price,
		EntryPrice: a.Price,
		Amount:     size,
		Reason:     fmt.Sprintf("confidence %.2f", a.Confidence),
		Confidence: a.Confidence,
		SkillsUsed: append([]genome.SkillID(nil), skills...),
		At:         now,
	}
}

func (e *Engine) close(pos *Position, price float64, sig exit.Signal) TradeResult {
	pnl := units.Scale(pos.Amount, exit.ReturnPct(pos.EntryPrice, price))
	isWin := pnl > 0
	if e.learner != nil && len(pos.SkillsUsed) > 0 {
		e.learner.Learn(e.genome, pos.SkillsUsed, units.ToCoins(pnl), isWin)
	}
	return TradeResult{
		ID:         pos.ID,
		Agent:      e.genome.AgentName,
		Round:      e.round,
		Action:     ActionSell,
		Token:      pos.Token,
		Price:      price,
		EntryPrice: pos.EntryPrice,
		Amount:     pos.Amount,
		PnL:        pnl,
		Return:     sig.Return,
		IsWin:      isWin,
		RoundsHeld: pos.RoundsHeld,
		Reason:     string(sig.Reason),
		Confidence: sig.Confidence,
		SkillsUsed: append([]genome.SkillID(nil), pos.SkillsUsed...),
		At:         e.now(),
	}
}

// Positions returns copies of the open positions.
func (e *Engine) Positions() []Position {
	out := make([]Position, 0, len(e.positions))
	for _, p := range e.positions {
		cp := *p
		cp.SkillsUsed = append([]genome.SkillID(nil), p.SkillsUsed...)
		out = append(out, cp)
	}
	return out
}

// Exposure is the total amount committed to open positions.
func (e *Engine) Exposure() int64 {
	var total int64
	for _, p := range e.positions {
		total += p.Amount
	}
	return total
}

func (e *Engine) History() []TradeResult {
	return append([]TradeResult(nil), e.history...)
}

func (e *Engine) Round() int { return e.round }

// SetClock replaces the time source; tests only.
func (e *Engine) SetClock(now func() time.Time) {
	if now != nil {
		e.now = now
	}
}
