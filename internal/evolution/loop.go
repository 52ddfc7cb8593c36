// Package evolution runs the population: every round each living agent
// trades on the shared market snapshot, starving agents die and rich ones
// spawn mutated children.
package evolution

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"brood/internal/evo"
	"brood/internal/genome"
	"brood/internal/ledger"
	"brood/internal/logger"
	"brood/internal/market"
	"brood/internal/pkg/units"
	"brood/internal/scheduler"
	"brood/internal/strategy"
)

const historyLimit = 200

type Options struct {
	RunID string
	// Rounds is the round budget; 0 runs until extinction or cancellation.
	Rounds          int
	MutationRate    float64
	DeathThreshold  int64
	SpawnThreshold  int64
	SpawnSeed       int64
	GenesisTreasury int64
	GenesisAgents   []string
	ChildPrefix     string
	// MaxPopulation caps spawning; 0 means unlimited.
	MaxPopulation int
	Strategy      strategy.Options
}

func DefaultOptions() Options {
	return Options{
		Rounds:          100,
		MutationRate:    0.3,
		DeathThreshold:  1_000_000,
		SpawnThreshold:  500_000_000,
		SpawnSeed:       100_000_000,
		GenesisTreasury: 1_000_000_000,
		GenesisAgents:   []string{"Eve"},
		ChildPrefix:     "Nova",
		Strategy:        strategy.DefaultOptions(),
	}
}

// MarketFeed yields the round's observations. On failure it still returns
// the last good snapshot, which may be empty.
type MarketFeed interface {
	Refresh(ctx context.Context) ([]market.Observation, error)
}

// CatalogSource supplies the catalog used for genomes created from now on.
type CatalogSource interface {
	Catalog() genome.Catalog
}

// GenomeExporter publishes genome documents and population state.
type GenomeExporter interface {
	WriteGenome(g genome.Genome) (string, error)
	WriteState(v any) error
	URI(agent string) string
}

// Pacer drives rounds until the task declines or ctx ends.
type Pacer interface {
	Run(ctx context.Context, task func(ctx context.Context) bool) error
}

// Deps are the loop collaborators. Only Market is required.
type Deps struct {
	Market   MarketFeed
	Catalog  CatalogSource
	Rand     evo.Rand
	Ledger   ledger.Ledger
	Recorder Recorder
	Exporter GenomeExporter
	Pacer    Pacer
	Now      func() time.Time
}

type staticCatalog struct{ c genome.Catalog }

func (s staticCatalog) Catalog() genome.Catalog { return s.c }

// Loop is the evolution orchestrator. Step and Run must be called from one
// goroutine; Snapshot is safe from any goroutine.
type Loop struct {
	opts     Options
	market   MarketFeed
	catalog  CatalogSource
	ledger   ledger.Ledger
	recorder Recorder
	exporter GenomeExporter
	pacer    Pacer
	now      func() time.Time

	mutator *evo.Mutator
	learner *evo.Learner
	names   namer

	seeded    bool
	round     int
	agents    []*Agent
	graveyard []GraveRecord
	history   []RoundSummary

	mu       sync.RWMutex
	snapshot *Snapshot
}

func NewLoop(opts Options, deps Deps) (*Loop, error) {
	if deps.Market == nil {
		return nil, fmt.Errorf("market feed is required")
	}
	if opts.SpawnSeed <= 0 {
		return nil, fmt.Errorf("spawn seed must be > 0")
	}
	if opts.SpawnThreshold < opts.SpawnSeed {
		return nil, fmt.Errorf("spawn threshold %d below spawn seed %d", opts.SpawnThreshold, opts.SpawnSeed)
	}
	if opts.GenesisTreasury <= 0 {
		return nil, fmt.Errorf("genesis treasury must be > 0")
	}
	if strings.TrimSpace(opts.ChildPrefix) == "" {
		opts.ChildPrefix = DefaultOptions().ChildPrefix
	}
	if deps.Catalog == nil {
		deps.Catalog = staticCatalog{c: genome.DefaultCatalog()}
	}
	if deps.Rand == nil {
		deps.Rand = evo.NewRand(0)
	}
	if deps.Now == nil {
		deps.Now = func() time.Time { return time.Now().UTC() }
	}
	if deps.Pacer == nil {
		pacer, err := scheduler.NewRoundScheduler(scheduler.Options{})
		if err != nil {
			return nil, err
		}
		deps.Pacer = pacer
	}
	mutator := evo.NewMutator(deps.Rand, deps.Catalog.Catalog())
	mutator.Now = deps.Now
	l := &Loop{
		opts:     opts,
		market:   deps.Market,
		catalog:  deps.Catalog,
		ledger:   deps.Ledger,
		recorder: deps.Recorder,
		exporter: deps.Exporter,
		pacer:    deps.Pacer,
		now:      deps.Now,
		mutator:  mutator,
		learner:  evo.NewLearner(deps.Rand),
		names:    namer{prefix: opts.ChildPrefix},
	}
	l.snapshot = &Snapshot{RunID: opts.RunID, UpdatedAt: l.now(), Agents: []AgentView{}, Graveyard: []GraveRecord{}, History: []RoundSummary{}}
	return l, nil
}

// Snapshot returns the last published population state.
func (l *Loop) Snapshot() *Snapshot {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.snapshot
}

func (l *Loop) Round() int { return l.round }

func (l *Loop) RunID() string { return l.opts.RunID }

// Genesis creates the generation-1 population. It runs once.
func (l *Loop) Genesis(ctx context.Context) error {
	if l.seeded {
		return fmt.Errorf("population already seeded")
	}
	if len(l.opts.GenesisAgents) == 0 {
		return fmt.Errorf("no genesis agents configured")
	}
	catalog := l.catalog.Catalog()
	seen := make(map[string]bool, len(l.opts.GenesisAgents))
	for _, name := range l.opts.GenesisAgents {
		name = strings.TrimSpace(name)
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		l.names.reserve(name)
		a, err := newAgent(catalog.Genesis(name, l.now()), l.opts.GenesisTreasury, 0, l.opts.Strategy, l.learner)
		if err != nil {
			return err
		}
		l.agents = append(l.agents, a)
		l.register(ctx, a, nil)
		logger.Journal("genesis", a.Name,
			logger.JournalField{Key: "treasury", Value: units.Format(a.Treasury)},
			logger.JournalField{Key: "genome", Value: a.genomeHash},
			logger.JournalField{Key: "skills", Value: joinSkills(a.Genome.EnabledSkills())},
		)
	}
	l.seeded = true
	l.publish()
	logger.Infof("evolution genesis: %d agents, treasury %s each", len(l.agents), units.Format(l.opts.GenesisTreasury))
	return nil
}

// Run seeds the population if needed, then steps rounds until the budget is
// spent, the population dies out, or ctx is cancelled.
func (l *Loop) Run(ctx context.Context) error {
	if !l.seeded {
		if err := l.Genesis(ctx); err != nil {
			return err
		}
	}
	err := l.pacer.Run(ctx, func(ctx context.Context) bool {
		sum := l.Step(ctx)
		if sum.Alive == 0 {
			logger.Warnf("population extinct at round %d", sum.Round)
			return false
		}
		if l.opts.Rounds > 0 && l.round >= l.opts.Rounds {
			logger.Infof("round budget %d reached", l.opts.Rounds)
			return false
		}
		return true
	})
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		logger.Infof("evolution stopped at round %d: %v", l.round, err)
		return nil
	}
	return err
}

// Step runs one round for every agent alive at its start. Children born
// during the round start trading in the next one.
func (l *Loop) Step(ctx context.Context) RoundSummary {
	if !l.seeded {
		if err := l.Genesis(ctx); err != nil {
			logger.Errorf("evolution genesis failed: %v", err)
		}
	}
	l.round++
	obs, err := l.market.Refresh(ctx)
	if err != nil {
		logger.Warnf("round %d: market refresh failed, trading on %d cached tokens: %v", l.round, len(obs), err)
	}
	l.mutator.Catalog = l.catalog.Catalog()

	sum := RoundSummary{Round: l.round, MarketTokens: len(obs), At: l.now()}
	var (
		trades []strategy.TradeResult
		died   []*Agent
	)
	current := append([]*Agent(nil), l.agents...)
	for _, a := range current {
		res := a.engine.ExecuteRound(obs, a.Treasury)
		a.Treasury = res.Treasury
		sum.CostPaid += res.Cost
		for _, t := range res.Trades {
			sum.Trades++
			if t.Action != strategy.ActionSell {
				continue
			}
			if t.IsWin {
				sum.Wins++
			} else {
				sum.Losses++
			}
			journalTrade(t)
		}
		trades = append(trades, res.Trades...)
		l.syncLedger(ctx, a, res)
		genome.UpdateRunway(a.Genome, units.ToCoins(a.Treasury))

		if a.Treasury < l.opts.DeathThreshold {
			l.kill(ctx, a)
			died = append(died, a)
			sum.Deaths++
			continue
		}
		if l.canSpawn(a) && l.spawn(ctx, a) {
			sum.Births++
		}
	}
	alive := l.agents[:0]
	for _, a := range l.agents {
		if a.Alive {
			alive = append(alive, a)
		}
	}
	l.agents = alive
	l.refreshGenomes(ctx)

	stats := summarize(l.round, l.agents)
	sum.Alive = stats.Alive
	sum.TotalTreasury = stats.TotalTreasury
	sum.AvgGeneration = stats.AvgGeneration
	sum.MaxGeneration = stats.MaxGeneration
	sum.TopAgent = stats.TopAgent
	l.history = append(l.history, sum)
	if n := len(l.history); n > historyLimit {
		l.history = append([]RoundSummary(nil), l.history[n-historyLimit:]...)
	}

	snap := l.publish()
	l.record(ctx, sum, died, trades)
	if l.exporter != nil {
		if err := l.exporter.WriteState(snap); err != nil {
			logger.Warnf("round %d: export state failed: %v", l.round, err)
		}
	}
	logger.Infof("round %d: alive=%d births=%d deaths=%d trades=%d treasury=%s top=%s",
		sum.Round, sum.Alive, sum.Births, sum.Deaths, sum.Trades, units.Format(sum.TotalTreasury), sum.TopAgent)
	return sum
}

func (l *Loop) canSpawn(a *Agent) bool {
	if a.Treasury < l.opts.SpawnThreshold {
		return false
	}
	if l.opts.MaxPopulation > 0 && l.aliveCount() >= l.opts.MaxPopulation {
		return false
	}
	return true
}

func (l *Loop) aliveCount() int {
	n := 0
	for _, a := range l.agents {
		if a.Alive {
			n++
		}
	}
	return n
}

// spawn debits exactly the seed from the parent and appends the child.
func (l *Loop) spawn(ctx context.Context, parent *Agent) bool {
	name := l.names.next(parent.Generation() + 1)
	baked := evo.BakeLearning(*parent.Genome)
	childGenome := l.mutator.Mutate(baked, name, l.opts.MutationRate)
	child, err := newAgent(childGenome, l.opts.SpawnSeed, l.round, l.opts.Strategy, l.learner)
	if err != nil {
		logger.Errorf("spawn %s from %s failed: %v", name, parent.Name, err)
		return false
	}
	parent.Treasury -= l.opts.SpawnSeed
	genome.UpdateRunway(parent.Genome, units.ToCoins(parent.Treasury))
	parent.Children = append(parent.Children, child.Name)
	l.agents = append(l.agents, child)
	l.register(ctx, child, parent)

	logger.Journal("spawn", parent.Name,
		logger.JournalField{Key: "child", Value: child.Name},
		logger.JournalField{Key: "generation", Value: fmt.Sprintf("%d", child.Generation())},
		logger.JournalField{Key: "seed", Value: units.Format(l.opts.SpawnSeed)},
		logger.JournalField{Key: "parent_treasury", Value: units.Format(parent.Treasury)},
		logger.JournalField{Key: "mutations", Value: fmt.Sprintf("%d", len(child.Genome.Lineage.Mutations))},
		logger.JournalField{Key: "genome", Value: child.genomeHash},
	)
	return true
}

func (l *Loop) kill(ctx context.Context, a *Agent) {
	a.Alive = false
	a.DeathRound = l.round
	a.DeathReason = fmt.Sprintf("treasury %s below death threshold %s",
		units.Format(a.Treasury), units.Format(l.opts.DeathThreshold))
	l.graveyard = append(l.graveyard, a.grave())
	if l.ledger != nil {
		if err := l.ledger.KillAgent(ctx, a.Name); err != nil {
			logger.Warnf("ledger kill %s failed: %v", a.Name, err)
		}
	}
	logger.Journal("death", a.Name,
		logger.JournalField{Key: "round", Value: fmt.Sprintf("%d", a.DeathRound)},
		logger.JournalField{Key: "lifespan", Value: fmt.Sprintf("%d", a.DeathRound-a.BirthRound)},
		logger.JournalField{Key: "treasury", Value: units.Format(a.Treasury)},
		logger.JournalField{Key: "abandoned_exposure", Value: units.Format(a.engine.Exposure())},
		logger.JournalField{Key: "children", Value: strings.Join(a.Children, ",")},
	)
}

// register publishes a new agent's genome and mirrors it on the ledger.
// Every failure here is advisory.
func (l *Loop) register(ctx context.Context, a *Agent, parent *Agent) {
	uri := l.exportGenome(a)
	if l.ledger != nil {
		if parent == nil {
			if _, err := l.ledger.CreateAgent(ctx, a.Name, a.genomeHash, uri); err != nil {
				logger.Warnf("ledger create %s failed: %v", a.Name, err)
			} else if err := l.ledger.FundTreasury(ctx, a.Name, a.Treasury); err != nil {
				logger.Warnf("ledger fund %s failed: %v", a.Name, err)
			}
		} else if _, err := l.ledger.Spawn(ctx, parent.Name, a.Name, a.genomeHash, uri, a.Treasury); err != nil {
			logger.Warnf("ledger spawn %s -> %s failed: %v", parent.Name, a.Name, err)
		}
	}
	if l.recorder != nil {
		if err := l.recorder.RecordBirth(ctx, l.opts.RunID, a.view()); err != nil {
			logger.Warnf("record birth %s failed: %v", a.Name, err)
		}
	}
}

func (l *Loop) exportGenome(a *Agent) string {
	if l.exporter == nil {
		return ""
	}
	uri, err := l.exporter.WriteGenome(*a.Genome)
	if err != nil {
		logger.Warnf("export genome %s failed: %v", a.Name, err)
		return l.exporter.URI(a.Name)
	}
	return uri
}

// syncLedger mirrors the round's costs and realized P&L.
func (l *Loop) syncLedger(ctx context.Context, a *Agent, res strategy.RoundResult) {
	if l.ledger == nil {
		return
	}
	var gains, losses int64
	for _, t := range res.Trades {
		if t.Action != strategy.ActionSell {
			continue
		}
		if t.PnL > 0 {
			gains += t.PnL
		} else {
			losses -= t.PnL
		}
	}
	if gains > 0 {
		if err := l.ledger.RecordEarnings(ctx, a.Name, gains); err != nil {
			logger.Warnf("ledger earnings %s failed: %v", a.Name, err)
		}
	}
	if debit := res.Cost + losses; debit > 0 {
		if err := l.ledger.DeductCosts(ctx, a.Name, debit); err != nil {
			logger.Warnf("ledger costs %s failed: %v", a.Name, err)
		}
	}
}

// refreshGenomes re-publishes genomes whose behavior changed through
// in-lifetime learning.
func (l *Loop) refreshGenomes(ctx context.Context) {
	for _, a := range l.agents {
		hash := genome.HashGenome(*a.Genome)
		if hash == a.genomeHash {
			continue
		}
		a.genomeHash = hash
		uri := l.exportGenome(a)
		if l.ledger != nil {
			if err := l.ledger.UpdateGenome(ctx, a.Name, hash, uri); err != nil {
				logger.Warnf("ledger update genome %s failed: %v", a.Name, err)
			}
		}
	}
}

func (l *Loop) record(ctx context.Context, sum RoundSummary, died []*Agent, trades []strategy.TradeResult) {
	if l.recorder == nil {
		return
	}
	views := make([]AgentView, 0, len(l.agents)+len(died))
	for _, a := range l.agents {
		views = append(views, a.view())
	}
	for _, a := range died {
		views = append(views, a.view())
	}
	report := RoundReport{Summary: sum, Agents: views, Trades: trades}
	if err := l.recorder.RecordRound(ctx, l.opts.RunID, report); err != nil {
		logger.Warnf("record round %d failed: %v", sum.Round, err)
	}
}

func (l *Loop) publish() *Snapshot {
	snap := &Snapshot{
		RunID:     l.opts.RunID,
		Round:     l.round,
		UpdatedAt: l.now(),
		Agents:    make([]AgentView, 0, len(l.agents)),
		Graveyard: append([]GraveRecord{}, l.graveyard...),
		History:   append([]RoundSummary{}, l.history...),
	}
	for _, a := range l.agents {
		snap.Agents = append(snap.Agents, a.view())
	}
	if n := len(l.history); n > 0 {
		last := l.history[n-1]
		snap.Last = &last
	}
	l.mu.Lock()
	l.snapshot = snap
	l.mu.Unlock()
	return snap
}

func journalTrade(t strategy.TradeResult) {
	logger.Journal("trade", t.Agent,
		logger.JournalField{Key: "round", Value: fmt.Sprintf("%d", t.Round)},
		logger.JournalField{Key: "token", Value: t.Token},
		logger.JournalField{Key: "entry", Value: fmt.Sprintf("%g", t.EntryPrice)},
		logger.JournalField{Key: "exit", Value: fmt.Sprintf("%g", t.Price)},
		logger.JournalField{Key: "held", Value: fmt.Sprintf("%d rounds", t.RoundsHeld)},
		logger.JournalField{Key: "pnl", Value: units.Format(t.PnL)},
		logger.JournalField{Key: "return", Value: fmt.Sprintf("%.2f%%", t.Return*100)},
		logger.JournalField{Key: "reason", Value: t.Reason},
		logger.JournalField{Key: "skills", Value: joinSkills(t.SkillsUsed)},
	)
}

func joinSkills(ids []genome.SkillID) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = string(id)
	}
	return strings.Join(parts, ",")
}
