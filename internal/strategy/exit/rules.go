// Package exit holds the ordered position exit rules.
package exit

import (
	"fmt"

	"brood/internal/genome"
)

type Reason string

const (
	ReasonTakeProfit   Reason = "take_profit"
	ReasonStopLoss     Reason = "stop_loss"
	ReasonTrailingStop Reason = "trailing_stop"
	ReasonTimeDecay    Reason = "time_decay"
	ReasonDecaySkill   Reason = "time_decay_exit"
	ReasonStale        Reason = "stale"
)

// Input is what a rule sees for one open position after the peak and hold
// counters were updated for the round.
type Input struct {
	EntryPrice float64
	PeakPrice  float64
	Price      float64
	RoundsHeld int
}

// Signal is a matched exit.
type Signal struct {
	Reason     Reason  `json:"reason"`
	Confidence float64 `json:"confidence"`
	Return     float64 `json:"return"`
	Detail     string  `json:"detail"`
}

// Rule matches at most one exit condition.
type Rule interface {
	ID() Reason
	Check(in Input) (Signal, bool)
}

type takeProfit struct{ pct float64 }

func (r takeProfit) ID() Reason { return ReasonTakeProfit }

func (r takeProfit) Check(in Input) (Signal, bool) {
	ret := ReturnPct(in.EntryPrice, in.Price)
	if !decimalGTE(ret, r.pct) {
		return Signal{}, false
	}
	return Signal{Reason: ReasonTakeProfit, Confidence: 1, Return: ret,
		Detail: fmt.Sprintf("return %.2f%% >= take profit %.2f%%", ret*100, r.pct*100)}, true
}

type stopLoss struct{ pct float64 }

func (r stopLoss) ID() Reason { return ReasonStopLoss }

func (r stopLoss) Check(in Input) (Signal, bool) {
	ret := ReturnPct(in.EntryPrice, in.Price)
	if !decimalLTE(ret, -r.pct) {
		return Signal{}, false
	}
	return Signal{Reason: ReasonStopLoss, Confidence: 1, Return: ret,
		Detail: fmt.Sprintf("return %.2f%% <= stop loss -%.2f%%", ret*100, r.pct*100)}, true
}

// trailingStop only fires while the position is still in profit.
type trailingStop struct{ pct float64 }

func (r trailingStop) ID() Reason { return ReasonTrailingStop }

func (r trailingStop) Check(in Input) (Signal, bool) {
	ret := ReturnPct(in.EntryPrice, in.Price)
	if !decimalGT(ret, 0) {
		return Signal{}, false
	}
	dd := drawdownPct(in.PeakPrice, in.Price)
	if !decimalGTE(dd, r.pct) {
		return Signal{}, false
	}
	return Signal{Reason: ReasonTrailingStop, Confidence: 1, Return: ret,
		Detail: fmt.Sprintf("drawdown %.2f%% from peak %.8g", dd*100, in.PeakPrice)}, true
}

type timeDecay struct{ maxRounds float64 }

func (r timeDecay) ID() Reason { return ReasonTimeDecay }

func (r timeDecay) Check(in Input) (Signal, bool) {
	if r.maxRounds <= 0 || decimalLT(float64(in.RoundsHeld), r.maxRounds) {
		return Signal{}, false
	}
	return Signal{Reason: ReasonTimeDecay, Confidence: 0.8, Return: ReturnPct(in.EntryPrice, in.Price),
		Detail: fmt.Sprintf("held %d rounds >= %.0f", in.RoundsHeld, r.maxRounds)}, true
}

// decaySkill is the time_decay_exit skill: after minRounds a position must
// have earned penalty per round held, or it is released early.
type decaySkill struct {
	minRounds float64
	penalty   float64
}

func (r decaySkill) ID() Reason { return ReasonDecaySkill }

func (r decaySkill) Check(in Input) (Signal, bool) {
	if decimalLT(float64(in.RoundsHeld), r.minRounds) {
		return Signal{}, false
	}
	ret := ReturnPct(in.EntryPrice, in.Price)
	required := float64(in.RoundsHeld) * r.penalty
	if !decimalLT(ret, required) {
		return Signal{}, false
	}
	return Signal{Reason: ReasonDecaySkill, Confidence: 0.7, Return: ret,
		Detail: fmt.Sprintf("return %.2f%% below decay hurdle %.2f%%", ret*100, required*100)}, true
}

// Rules builds the ordered rule set for a genome: take-profit, stop-loss,
// trailing stop (when enabled), max holding time, then the time_decay_exit
// skill when it is enabled.
func Rules(g *genome.Genome) []Rule {
	es := g.Exit
	rules := []Rule{
		takeProfit{pct: es.TakeProfitPct},
		stopLoss{pct: es.StopLossPct},
	}
	if es.TrailingStop {
		rules = append(rules, trailingStop{pct: es.TrailingStopPct})
	}
	rules = append(rules, timeDecay{maxRounds: es.MaxHoldingRounds})
	if s := g.Skill(genome.TimeDecayExit); s != nil && s.Enabled {
		rules = append(rules, decaySkill{minRounds: s.Params["minRounds"], penalty: es.TimeDecayPenalty})
	}
	return rules
}

// First returns the first matching rule's signal.
func First(rules []Rule, in Input) (Signal, bool) {
	for _, r := range rules {
		if sig, ok := r.Check(in); ok {
			return sig, true
		}
	}
	return Signal{}, false
}

// Stale reports a forced exit for a position whose token has been missing
// from the snapshot for at least limit rounds. limit <= 0 disables it.
func Stale(entry, lastPrice float64, missingRounds, limit int) (Signal, bool) {
	if limit <= 0 || missingRounds < limit {
		return Signal{}, false
	}
	return Signal{Reason: ReasonStale, Confidence: 0.5, Return: ReturnPct(entry, lastPrice),
		Detail: fmt.Sprintf("missing from market for %d rounds", missingRounds)}, true
}
