package sqlite

import (
	"context"
	"errors"

	"brood/internal/store/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const defaultListLimit = 100

func listLimit(limit int) int {
	if limit <= 0 {
		return defaultListLimit
	}
	return limit
}

type roundRepository struct {
	db *gorm.DB
}

func NewRoundRepo(db *gorm.DB) *roundRepository {
	return &roundRepository{db: db}
}

// Save inserts or replaces the summary for (run_id, round).
func (r *roundRepository) Save(ctx context.Context, round *model.RoundModel) error {
	if round == nil {
		return errors.New("round cannot be nil")
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "run_id"}, {Name: "round"}},
		UpdateAll: true,
	}).Create(round).Error
}

// ListRecent returns the latest rounds, newest first.
func (r *roundRepository) ListRecent(ctx context.Context, runID string, limit int) ([]model.RoundModel, error) {
	var rounds []model.RoundModel
	if err := r.db.WithContext(ctx).
		Where("run_id = ?", runID).
		Order("round DESC").
		Limit(listLimit(limit)).
		Find(&rounds).Error; err != nil {
		return nil, err
	}
	return rounds, nil
}

type agentRepository struct {
	db *gorm.DB
}

func NewAgentRepo(db *gorm.DB) *agentRepository {
	return &agentRepository{db: db}
}

func (r *agentRepository) Upsert(ctx context.Context, agent *model.AgentModel) error {
	if agent == nil {
		return errors.New("agent cannot be nil")
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "run_id"}, {Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"generation", "parent", "treasury", "alive", "birth_round",
			"death_round", "death_reason", "genome_hash", "children_json", "updated_at",
		}),
	}).Create(agent).Error
}

// FindByName returns nil, nil when the agent is unknown.
func (r *agentRepository) FindByName(ctx context.Context, runID, name string) (*model.AgentModel, error) {
	var agent model.AgentModel
	err := r.db.WithContext(ctx).Where("run_id = ? AND name = ?", runID, name).First(&agent).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &agent, nil
}

func (r *agentRepository) ListAlive(ctx context.Context, runID string) ([]model.AgentModel, error) {
	var agents []model.AgentModel
	if err := r.db.WithContext(ctx).
		Where("run_id = ? AND alive = ?", runID, true).
		Order("birth_round ASC, id ASC").
		Find(&agents).Error; err != nil {
		return nil, err
	}
	return agents, nil
}

func (r *agentRepository) ListDead(ctx context.Context, runID string, limit int) ([]model.AgentModel, error) {
	var agents []model.AgentModel
	if err := r.db.WithContext(ctx).
		Where("run_id = ? AND alive = ?", runID, false).
		Order("death_round DESC, id DESC").
		Limit(listLimit(limit)).
		Find(&agents).Error; err != nil {
		return nil, err
	}
	return agents, nil
}

type genomeRepository struct {
	db *gorm.DB
}

func NewGenomeRepo(db *gorm.DB) *genomeRepository {
	return &genomeRepository{db: db}
}

func (r *genomeRepository) Insert(ctx context.Context, genome *model.GenomeModel) error {
	if genome == nil {
		return errors.New("genome cannot be nil")
	}
	return r.db.WithContext(ctx).Create(genome).Error
}

func (r *genomeRepository) LatestForAgent(ctx context.Context, runID, name string) (*model.GenomeModel, error) {
	var genome model.GenomeModel
	err := r.db.WithContext(ctx).
		Where("run_id = ? AND agent_name = ?", runID, name).
		Order("round DESC, id DESC").
		First(&genome).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &genome, nil
}

type tradeRepository struct {
	db *gorm.DB
}

func NewTradeRepo(db *gorm.DB) *tradeRepository {
	return &tradeRepository{db: db}
}

// InsertBatch ignores trades already recorded for the same (trade_id, action).
func (r *tradeRepository) InsertBatch(ctx context.Context, trades []model.TradeModel) error {
	if len(trades) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&trades).Error
}

func (r *tradeRepository) ListByAgent(ctx context.Context, runID, agent string, limit int) ([]model.TradeModel, error) {
	var trades []model.TradeModel
	if err := r.db.WithContext(ctx).
		Where("run_id = ? AND agent = ?", runID, agent).
		Order("round DESC, id DESC").
		Limit(listLimit(limit)).
		Find(&trades).Error; err != nil {
		return nil, err
	}
	return trades, nil
}
