package store

import (
	"context"

	"brood/internal/store/model"
)

// UnitOfWork defines a transaction scope.
type UnitOfWork interface {
	// Commit commits the transaction.
	Commit() error
	// Rollback rolls back the transaction.
	Rollback() error

	// Rounds returns the round summary repository within this transaction.
	Rounds() RoundRepository
	// Agents returns the agent state repository within this transaction.
	Agents() AgentRepository
	// Genomes returns the genome snapshot repository within this transaction.
	Genomes() GenomeRepository
	// Trades returns the trade repository within this transaction.
	Trades() TradeRepository
}

// Store is the entry point for database access.
type Store interface {
	// Begin starts a new UnitOfWork (transaction).
	Begin(ctx context.Context) (UnitOfWork, error)
	// Close closes the store connection.
	Close() error
}

type RoundRepository interface {
	Save(ctx context.Context, round *model.RoundModel) error
	ListRecent(ctx context.Context, runID string, limit int) ([]model.RoundModel, error)
}

type AgentRepository interface {
	Upsert(ctx context.Context, agent *model.AgentModel) error
	FindByName(ctx context.Context, runID, name string) (*model.AgentModel, error)
	ListAlive(ctx context.Context, runID string) ([]model.AgentModel, error)
	// ListDead returns the graveyard, most recent deaths first.
	ListDead(ctx context.Context, runID string, limit int) ([]model.AgentModel, error)
}

type GenomeRepository interface {
	Insert(ctx context.Context, genome *model.GenomeModel) error
	LatestForAgent(ctx context.Context, runID, name string) (*model.GenomeModel, error)
}

type TradeRepository interface {
	InsertBatch(ctx context.Context, trades []model.TradeModel) error
	ListByAgent(ctx context.Context, runID, agent string, limit int) ([]model.TradeModel, error)
}

// Transact runs fn inside a unit of work, committing on success.
func Transact(ctx context.Context, s Store, fn func(uow UnitOfWork) error) error {
	uow, err := s.Begin(ctx)
	if err != nil {
		return err
	}
	if err := fn(uow); err != nil {
		_ = uow.Rollback()
		return err
	}
	return uow.Commit()
}
