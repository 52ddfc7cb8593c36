package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"brood/internal/store"
	"brood/internal/store/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

func openStore(t *testing.T) *SqliteStore {
	t.Helper()
	s, err := NewSqliteStore(filepath.Join(t.TempDir(), "data", "brood.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestNewSqliteStoreRequiresPath(t *testing.T) {
	_, err := NewSqliteStore("  ")
	assert.Error(t, err)
}

func TestRoundsUpsertAndList(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	err := store.Transact(ctx, s, func(uow store.UnitOfWork) error {
		for i := 1; i <= 3; i++ {
			if err := uow.Rounds().Save(ctx, &model.RoundModel{RunID: "run-1", Round: i, Alive: i}); err != nil {
				return err
			}
		}
		return uow.Rounds().Save(ctx, &model.RoundModel{RunID: "run-1", Round: 3, Alive: 9, TopAgent: "Eve"})
	})
	require.NoError(t, err)

	uow, err := s.Begin(ctx)
	require.NoError(t, err)
	defer uow.Rollback()

	rounds, err := uow.Rounds().ListRecent(ctx, "run-1", 2)
	require.NoError(t, err)
	require.Len(t, rounds, 2)
	assert.Equal(t, 3, rounds[0].Round)
	assert.Equal(t, 9, rounds[0].Alive)
	assert.Equal(t, "Eve", rounds[0].TopAgent)
	assert.Equal(t, 2, rounds[1].Round)

	other, err := uow.Rounds().ListRecent(ctx, "run-2", 0)
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestAgentsGraveyard(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	err := store.Transact(ctx, s, func(uow store.UnitOfWork) error {
		repo := uow.Agents()
		if err := repo.Upsert(ctx, &model.AgentModel{RunID: "r", Name: "Eve", Generation: 1, Alive: true, Treasury: 10}); err != nil {
			return err
		}
		if err := repo.Upsert(ctx, &model.AgentModel{RunID: "r", Name: "Nova-A1", Generation: 2, Parent: "Eve", Alive: true}); err != nil {
			return err
		}
		return repo.Upsert(ctx, &model.AgentModel{
			RunID: "r", Name: "Eve", Generation: 1, Alive: false, DeathRound: 7,
			DeathReason: "treasury depleted", ChildrenJSON: datatypes.JSON(`["Nova-A1"]`),
		})
	})
	require.NoError(t, err)

	uow, err := s.Begin(ctx)
	require.NoError(t, err)
	defer uow.Rollback()

	dead, err := uow.Agents().ListDead(ctx, "r", 10)
	require.NoError(t, err)
	require.Len(t, dead, 1)
	assert.Equal(t, "Eve", dead[0].Name)
	assert.Equal(t, 7, dead[0].DeathRound)
	assert.JSONEq(t, `["Nova-A1"]`, string(dead[0].ChildrenJSON))

	alive, err := uow.Agents().ListAlive(ctx, "r")
	require.NoError(t, err)
	require.Len(t, alive, 1)
	assert.Equal(t, "Nova-A1", alive[0].Name)

	missing, err := uow.Agents().FindByName(ctx, "r", "Ghost")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestGenomesAndTrades(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	err := store.Transact(ctx, s, func(uow store.UnitOfWork) error {
		if err := uow.Genomes().Insert(ctx, &model.GenomeModel{RunID: "r", AgentName: "Eve", GenomeHash: "aa", Round: 0,
			DocumentJSON: datatypes.JSON(`{"agentName":"Eve"}`)}); err != nil {
			return err
		}
		if err := uow.Genomes().Insert(ctx, &model.GenomeModel{RunID: "r", AgentName: "Eve", GenomeHash: "bb", Round: 4,
			DocumentJSON: datatypes.JSON(`{"agentName":"Eve"}`)}); err != nil {
			return err
		}
		trades := []model.TradeModel{
			{TradeID: "t1", Action: "buy", RunID: "r", Agent: "Eve", Round: 1, Token: "BONK", Amount: 100},
			{TradeID: "t1", Action: "sell", RunID: "r", Agent: "Eve", Round: 2, Token: "BONK", Amount: 100, PnL: 30, IsWin: true},
		}
		if err := uow.Trades().InsertBatch(ctx, trades); err != nil {
			return err
		}
		// duplicates are ignored
		return uow.Trades().InsertBatch(ctx, trades[:1])
	})
	require.NoError(t, err)

	uow, err := s.Begin(ctx)
	require.NoError(t, err)
	defer uow.Rollback()

	g, err := uow.Genomes().LatestForAgent(ctx, "r", "Eve")
	require.NoError(t, err)
	require.NotNil(t, g)
	assert.Equal(t, "bb", g.GenomeHash)

	trades, err := uow.Trades().ListByAgent(ctx, "r", "Eve", 0)
	require.NoError(t, err)
	require.Len(t, trades, 2)
	assert.Equal(t, "sell", trades[0].Action)
	assert.Equal(t, int64(30), trades[0].PnL)
}
