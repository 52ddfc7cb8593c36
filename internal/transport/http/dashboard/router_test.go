package dashboardhttp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"brood/internal/evo"
	"brood/internal/evolution"
	"brood/internal/genome"
	"brood/internal/market"
	"brood/internal/store"
	"brood/internal/store/model"
	"brood/internal/store/sqlite"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type emptyFeed struct{}

func (emptyFeed) Refresh(context.Context) ([]market.Observation, error) { return nil, nil }

func newLoop(t *testing.T, mutate func(*evolution.Options)) *evolution.Loop {
	t.Helper()
	opts := evolution.DefaultOptions()
	opts.RunID = "run-dash"
	if mutate != nil {
		mutate(&opts)
	}
	l, err := evolution.NewLoop(opts, evolution.Deps{
		Market: emptyFeed{},
		Rand:   evo.NewRand(7),
		Now:    func() time.Time { return time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC) },
	})
	require.NoError(t, err)
	require.NoError(t, l.Genesis(context.Background()))
	return l
}

func newTestServer(t *testing.T, cfg RouterConfig) http.Handler {
	t.Helper()
	srv, err := NewServer(cfg, "")
	require.NoError(t, err)
	gin.SetMode(gin.TestMode)
	return srv.Handler()
}

func get(t *testing.T, h http.Handler, path string) (int, map[string]any) {
	t.Helper()
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	h.ServeHTTP(rec, req)
	var body map[string]any
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	}
	return rec.Code, body
}

func TestNewServerRequiresPopulation(t *testing.T) {
	_, err := NewServer(RouterConfig{}, ":0")
	assert.Error(t, err)
}

func TestHealthz(t *testing.T) {
	h := newTestServer(t, RouterConfig{Population: newLoop(t, nil)})
	code, body := get(t, h, "/healthz")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", body["status"])
}

func TestPopulationAndAgent(t *testing.T) {
	l := newLoop(t, nil)
	l.Step(context.Background())
	h := newTestServer(t, RouterConfig{Population: l})

	code, body := get(t, h, "/api/population")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "run-dash", body["run_id"])
	assert.EqualValues(t, 1, body["round"])
	// Eve starts above the spawn threshold and buds one child.
	assert.EqualValues(t, 2, body["alive"])
	agents := body["agents"].([]any)
	require.Len(t, agents, 2)
	assert.Equal(t, "Eve", agents[0].(map[string]any)["name"])
	assert.Equal(t, "Nova-A1", agents[1].(map[string]any)["name"])

	code, body = get(t, h, "/api/agents/Eve")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, body["alive"])
	assert.EqualValues(t, 1, body["generation"])

	code, body = get(t, h, "/api/agents/Eve/genome")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Eve", body["agentName"])

	code, _ = get(t, h, "/api/agents/Ghost")
	assert.Equal(t, http.StatusNotFound, code)
	code, _ = get(t, h, "/api/agents/Ghost/genome")
	assert.Equal(t, http.StatusNotFound, code)
}

func TestGraveyardServesDeadAgents(t *testing.T) {
	l := newLoop(t, func(o *evolution.Options) { o.DeathThreshold = o.GenesisTreasury })
	sum := l.Step(context.Background())
	require.Equal(t, 1, sum.Deaths)
	h := newTestServer(t, RouterConfig{Population: l})

	code, body := get(t, h, "/api/graveyard")
	require.Equal(t, http.StatusOK, code)
	assert.EqualValues(t, 1, body["count"])
	graves := body["graveyard"].([]any)
	assert.Equal(t, "Eve", graves[0].(map[string]any)["name"])

	code, body = get(t, h, "/api/agents/Eve")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, false, body["alive"])
	assert.Equal(t, "Eve", body["grave"].(map[string]any)["name"])

	code, body = get(t, h, "/api/agents/Eve/genome")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Eve", body["agentName"])
}

func TestRoundsFromMemoryNewestFirst(t *testing.T) {
	l := newLoop(t, nil)
	for i := 0; i < 3; i++ {
		l.Step(context.Background())
	}
	h := newTestServer(t, RouterConfig{Population: l})

	code, body := get(t, h, "/api/rounds?limit=2")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "memory", body["source"])
	rounds := body["rounds"].([]any)
	require.Len(t, rounds, 2)
	assert.EqualValues(t, 3, rounds[0].(map[string]any)["round"])
	assert.EqualValues(t, 2, rounds[1].(map[string]any)["round"])
}

func TestRoundsFromStore(t *testing.T) {
	s, err := sqlite.NewSqliteStore(filepath.Join(t.TempDir(), "brood.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	ctx := context.Background()
	require.NoError(t, store.Transact(ctx, s, func(uow store.UnitOfWork) error {
		if err := uow.Rounds().Save(ctx, &model.RoundModel{RunID: "run-dash", Round: 1, Alive: 1, TopAgent: "Eve"}); err != nil {
			return err
		}
		return uow.Rounds().Save(ctx, &model.RoundModel{RunID: "other", Round: 5, Alive: 4})
	}))

	h := newTestServer(t, RouterConfig{Population: newLoop(t, nil), Store: s, RunID: "run-dash"})
	code, body := get(t, h, "/api/rounds")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "store", body["source"])
	rounds := body["rounds"].([]any)
	require.Len(t, rounds, 1)
	assert.Equal(t, "Eve", rounds[0].(map[string]any)["topAgent"])
}

type fixedCatalog struct{ c genome.Catalog }

func (f fixedCatalog) Catalog() genome.Catalog { return f.c }

func TestCatalogAndMarket(t *testing.T) {
	snap, err := market.NewSnapshotter(market.NewStaticSource([]market.Observation{{Symbol: "BONK", PriceUSD: 0.01}}), market.SnapshotterOptions{})
	require.NoError(t, err)
	_, err = snap.Refresh(context.Background())
	require.NoError(t, err)

	c := genome.DefaultCatalog()
	c.BaseCostPerRound = 0.5
	h := newTestServer(t, RouterConfig{Population: newLoop(t, nil), Catalog: fixedCatalog{c: c}, Market: snap})

	code, body := get(t, h, "/api/catalog")
	require.Equal(t, http.StatusOK, code)
	assert.EqualValues(t, 0.5, body["base_cost_per_round"])
	assert.Len(t, body["templates"], len(genome.DefaultCatalog().Templates()))

	code, body = get(t, h, "/api/market")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "static", body["source"])
	assert.EqualValues(t, 1, body["tokens"])
	assert.EqualValues(t, 1, body["fetches"])
}

func TestMarketUnavailableWithoutStats(t *testing.T) {
	h := newTestServer(t, RouterConfig{Population: newLoop(t, nil)})
	code, _ := get(t, h, "/api/market")
	assert.Equal(t, http.StatusServiceUnavailable, code)
}
