package evolution

import (
	"context"
	"encoding/json"
	"fmt"

	"brood/internal/store"
	"brood/internal/store/model"
	"brood/internal/strategy"

	"gorm.io/datatypes"
)

// RoundReport is everything a recorder needs to persist one round.
type RoundReport struct {
	Summary RoundSummary
	// Agents holds the living agents plus those that died this round.
	Agents []AgentView
	Trades []strategy.TradeResult
}

// Recorder persists population history. Failures are logged by the loop
// and never abort a round.
type Recorder interface {
	RecordBirth(ctx context.Context, runID string, agent AgentView) error
	RecordRound(ctx context.Context, runID string, report RoundReport) error
}

// StoreRecorder writes rounds, agents, genomes and trades through store.Store.
type StoreRecorder struct {
	store store.Store
}

func NewStoreRecorder(s store.Store) (*StoreRecorder, error) {
	if s == nil {
		return nil, fmt.Errorf("store is required")
	}
	return &StoreRecorder{store: s}, nil
}

func (r *StoreRecorder) RecordBirth(ctx context.Context, runID string, agent AgentView) error {
	doc, err := json.Marshal(agent.Genome)
	if err != nil {
		return err
	}
	row, err := agentRow(runID, agent)
	if err != nil {
		return err
	}
	return store.Transact(ctx, r.store, func(uow store.UnitOfWork) error {
		if err := uow.Genomes().Insert(ctx, &model.GenomeModel{
			RunID:         runID,
			AgentName:     agent.Name,
			GenomeHash:    agent.GenomeHash,
			Generation:    agent.Generation,
			Parent:        agent.Parent,
			Round:         agent.BirthRound,
			DocumentJSON:  datatypes.JSON(doc),
			CreatedAtUnix: agent.Genome.Lineage.BirthTimestamp.Unix(),
		}); err != nil {
			return err
		}
		return uow.Agents().Upsert(ctx, row)
	})
}

func (r *StoreRecorder) RecordRound(ctx context.Context, runID string, report RoundReport) error {
	summary, err := json.Marshal(report.Summary)
	if err != nil {
		return err
	}
	rows := make([]*model.AgentModel, 0, len(report.Agents))
	for _, a := range report.Agents {
		row, err := agentRow(runID, a)
		if err != nil {
			return err
		}
		row.UpdatedAtUnix = report.Summary.At.Unix()
		rows = append(rows, row)
	}
	trades := make([]model.TradeModel, 0, len(report.Trades))
	for _, t := range report.Trades {
		skills, err := json.Marshal(t.SkillsUsed)
		if err != nil {
			return err
		}
		trades = append(trades, model.TradeModel{
			TradeID:       t.ID,
			Action:        t.Action,
			RunID:         runID,
			Agent:         t.Agent,
			Round:         t.Round,
			Token:         t.Token,
			Price:         t.Price,
			EntryPrice:    t.EntryPrice,
			Amount:        t.Amount,
			PnL:           t.PnL,
			ReturnPct:     t.Return,
			IsWin:         t.IsWin,
			Reason:        t.Reason,
			SkillsJSON:    datatypes.JSON(skills),
			CreatedAtUnix: t.At.Unix(),
		})
	}
	s := report.Summary
	return store.Transact(ctx, r.store, func(uow store.UnitOfWork) error {
		if err := uow.Rounds().Save(ctx, &model.RoundModel{
			RunID:         runID,
			Round:         s.Round,
			Alive:         s.Alive,
			Births:        s.Births,
			Deaths:        s.Deaths,
			TotalTreasury: s.TotalTreasury,
			AvgGeneration: s.AvgGeneration,
			MaxGeneration: s.MaxGeneration,
			Trades:        s.Trades,
			Wins:          s.Wins,
			Losses:        s.Losses,
			TopAgent:      s.TopAgent,
			CostPaid:      s.CostPaid,
			MarketTokens:  s.MarketTokens,
			SummaryJSON:   datatypes.JSON(summary),
			CreatedAtUnix: s.At.Unix(),
		}); err != nil {
			return err
		}
		for _, row := range rows {
			if err := uow.Agents().Upsert(ctx, row); err != nil {
				return err
			}
		}
		return uow.Trades().InsertBatch(ctx, trades)
	})
}

func agentRow(runID string, a AgentView) (*model.AgentModel, error) {
	children, err := json.Marshal(a.Children)
	if err != nil {
		return nil, err
	}
	return &model.AgentModel{
		RunID:         runID,
		Name:          a.Name,
		Generation:    a.Generation,
		Parent:        a.Parent,
		Treasury:      a.Treasury,
		Alive:         a.Alive,
		BirthRound:    a.BirthRound,
		DeathRound:    a.DeathRound,
		DeathReason:   a.DeathReason,
		GenomeHash:    a.GenomeHash,
		ChildrenJSON:  datatypes.JSON(children),
		UpdatedAtUnix: a.Genome.Lineage.BirthTimestamp.Unix(),
	}, nil
}
