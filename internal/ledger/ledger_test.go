package ledger

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func backends(t *testing.T) map[string]func(t *testing.T) *Registry {
	t.Helper()
	return map[string]func(t *testing.T) *Registry{
		"memory": func(t *testing.T) *Registry { return NewMemory("owner-1") },
		"sqlite": func(t *testing.T) *Registry {
			r, err := NewSQLite(filepath.Join(t.TempDir(), "ledger", "brood.db"), "owner-1")
			require.NoError(t, err)
			t.Cleanup(func() { _ = r.Close() })
			return r
		},
	}
}

func forEachBackend(t *testing.T, fn func(t *testing.T, r *Registry)) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			r := open(t)
			r.SetClock(func() time.Time { return time.Unix(1_760_000_000, 0) })
			fn(t, r)
		})
	}
}

func TestCreateAndFund(t *testing.T) {
	forEachBackend(t, func(t *testing.T, r *Registry) {
		ctx := context.Background()
		acc, err := r.CreateAgent(ctx, "Eve", "abcd", "file://genomes/Eve.json")
		require.NoError(t, err)
		assert.Equal(t, 1, acc.Generation)
		assert.True(t, acc.IsAlive)
		assert.Zero(t, acc.Treasury)

		_, err = r.CreateAgent(ctx, "Eve", "abcd", "")
		assert.ErrorIs(t, err, ErrAgentExists)

		require.NoError(t, r.FundTreasury(ctx, "Eve", 1_000_000_000))
		got, err := r.GetAgent(ctx, "Eve")
		require.NoError(t, err)
		assert.Equal(t, int64(1_000_000_000), got.Treasury)
		assert.Equal(t, "owner-1", got.Owner)
		assert.Equal(t, time.Unix(1_760_000_000, 0).UTC(), got.CreatedAt)

		_, err = r.GetAgent(ctx, "Nobody")
		assert.ErrorIs(t, err, ErrAgentNotFound)
	})
}

func TestLengthLimits(t *testing.T) {
	forEachBackend(t, func(t *testing.T, r *Registry) {
		ctx := context.Background()
		_, err := r.CreateAgent(ctx, strings.Repeat("x", MaxNameLen+1), "h", "")
		assert.ErrorIs(t, err, ErrNameTooLong)
		_, err = r.CreateAgent(ctx, "Eve", "h", strings.Repeat("u", MaxURILen+1))
		assert.ErrorIs(t, err, ErrURITooLong)
		_, err = r.CreateAgent(ctx, strings.Repeat("x", MaxNameLen), "h", strings.Repeat("u", MaxURILen))
		assert.NoError(t, err)
	})
}

func TestSpawnRules(t *testing.T) {
	forEachBackend(t, func(t *testing.T, r *Registry) {
		ctx := context.Background()
		_, err := r.CreateAgent(ctx, "Eve", "h", "")
		require.NoError(t, err)
		require.NoError(t, r.FundTreasury(ctx, "Eve", MinSpawnSeed+MinOperatingReserve-1))

		_, err = r.Spawn(ctx, "Eve", "Nova-A1", "h2", "", MinSpawnSeed)
		assert.ErrorIs(t, err, ErrInsufficientTreasury)

		require.NoError(t, r.FundTreasury(ctx, "Eve", 1))
		_, err = r.Spawn(ctx, "Eve", "Nova-A1", "h2", "", MinSpawnSeed-1)
		assert.ErrorIs(t, err, ErrInsufficientSpawnSeed)

		child, err := r.Spawn(ctx, "Eve", "Nova-A1", "h2", "uri", MinSpawnSeed)
		require.NoError(t, err)
		assert.Equal(t, 2, child.Generation)
		assert.Equal(t, "Eve", child.Parent)
		assert.Equal(t, MinSpawnSeed, child.Treasury)

		parent, err := r.GetAgent(ctx, "Eve")
		require.NoError(t, err)
		assert.Equal(t, MinOperatingReserve, parent.Treasury)
		assert.Equal(t, 1, parent.SpawnCount)

		require.NoError(t, r.KillAgent(ctx, "Eve"))
		require.NoError(t, r.FundTreasury(ctx, "Eve", 10*MinSpawnSeed))
		_, err = r.Spawn(ctx, "Eve", "Nova-A2", "h3", "", MinSpawnSeed)
		assert.ErrorIs(t, err, ErrAgentDead)
	})
}

func TestFailedSpawnLeavesParentUntouched(t *testing.T) {
	forEachBackend(t, func(t *testing.T, r *Registry) {
		ctx := context.Background()
		_, err := r.CreateAgent(ctx, "Eve", "h", "")
		require.NoError(t, err)
		_, err = r.CreateAgent(ctx, "Nova-A1", "h", "")
		require.NoError(t, err)
		require.NoError(t, r.FundTreasury(ctx, "Eve", 1_000_000_000))

		_, err = r.Spawn(ctx, "Eve", "Nova-A1", "h2", "", MinSpawnSeed)
		assert.ErrorIs(t, err, ErrAgentExists)

		parent, err := r.GetAgent(ctx, "Eve")
		require.NoError(t, err)
		assert.Equal(t, int64(1_000_000_000), parent.Treasury)
		assert.Zero(t, parent.SpawnCount)
	})
}

func TestEarningsAndCosts(t *testing.T) {
	forEachBackend(t, func(t *testing.T, r *Registry) {
		ctx := context.Background()
		_, err := r.CreateAgent(ctx, "Eve", "h", "")
		require.NoError(t, err)
		require.NoError(t, r.FundTreasury(ctx, "Eve", 1_000))

		require.NoError(t, r.RecordEarnings(ctx, "Eve", 500))
		assert.ErrorIs(t, r.DeductCosts(ctx, "Eve", 2_000), ErrInsufficientTreasury)
		require.NoError(t, r.DeductCosts(ctx, "Eve", 1_000))

		acc, err := r.GetAgent(ctx, "Eve")
		require.NoError(t, err)
		assert.Equal(t, int64(500), acc.Treasury)
		assert.Equal(t, int64(500), acc.TotalEarnings)
		assert.Equal(t, int64(1_000), acc.TotalCosts)
		assert.Equal(t, 1, acc.ServiceCount)
		assert.True(t, acc.IsAlive)

		require.NoError(t, r.DeductCosts(ctx, "Eve", 500))
		acc, err = r.GetAgent(ctx, "Eve")
		require.NoError(t, err)
		assert.False(t, acc.IsAlive)

		assert.ErrorIs(t, r.RecordEarnings(ctx, "Eve", 1), ErrAgentDead)
		assert.ErrorIs(t, r.UpdateGenome(ctx, "Eve", "h2", ""), ErrAgentDead)
		assert.ErrorIs(t, r.DeductCosts(ctx, "Eve", 0), ErrInvalidAmount)
	})
}

func TestUpdateGenome(t *testing.T) {
	forEachBackend(t, func(t *testing.T, r *Registry) {
		ctx := context.Background()
		_, err := r.CreateAgent(ctx, "Eve", "h1", "u1")
		require.NoError(t, err)
		require.NoError(t, r.UpdateGenome(ctx, "Eve", "h2", "u2"))
		acc, err := r.GetAgent(ctx, "Eve")
		require.NoError(t, err)
		assert.Equal(t, "h2", acc.GenomeHash)
		assert.Equal(t, "u2", acc.GenomeURI)
	})
}

func TestSQLiteReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "brood.db")
	r, err := NewSQLite(path, "owner-1")
	require.NoError(t, err)
	_, err = r.CreateAgent(context.Background(), "Eve", "h", "")
	require.NoError(t, err)
	require.NoError(t, r.Close())

	r, err = NewSQLite(path, "owner-1")
	require.NoError(t, err)
	defer r.Close()
	acc, err := r.GetAgent(context.Background(), "Eve")
	require.NoError(t, err)
	assert.Equal(t, "Eve", acc.Name)

	other, err := NewSQLite(path, "owner-2")
	require.NoError(t, err)
	defer other.Close()
	_, err = other.GetAgent(context.Background(), "Eve")
	assert.ErrorIs(t, err, ErrAgentNotFound)
}
