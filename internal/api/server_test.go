package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mdale/monzo-lunchmoney-sync/internal/state"
)

func testServer(t *testing.T) (*Server, *state.Store) {
	t.Helper()
	store, err := state.Open(filepath.Join(t.TempDir(), "sync.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return NewServer(DefaultConfig(), store, nil), store
}

func get(t *testing.T, s *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	s, _ := testServer(t)
	w := get(t, s, "/health")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestListRuns(t *testing.T) {
	s, store := testServer(t)

	id, err := store.StartRun(false)
	require.NoError(t, err)
	require.NoError(t, store.CompleteRun(id, 10, 8, 0))

	w := get(t, s, "/api/runs")
	require.Equal(t, http.StatusOK, w.Code)

	var runs []state.Run
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &runs))
	require.Len(t, runs, 1)
	assert.Equal(t, id, runs[0].ID)
	assert.Equal(t, "success", runs[0].Status)
	assert.Equal(t, 8, runs[0].Posted)
}

func TestGetRun_NotFound(t *testing.T) {
	s, _ := testServer(t)
	w := get(t, s, "/api/runs/nope")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestListAccounts(t *testing.T) {
	s, store := testServer(t)
	require.NoError(t, store.SetLastSync("acc_main", "2025-06-12T18:30:00Z"))

	w := get(t, s, "/api/accounts")
	require.Equal(t, http.StatusOK, w.Code)

	var accounts []state.AccountState
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &accounts))
	require.Len(t, accounts, 1)
	assert.Equal(t, "acc_main", accounts[0].AccountID)
	assert.Equal(t, "2025-06-12T18:30:00Z", accounts[0].SyncedUntil)
}

func TestGetStats(t *testing.T) {
	s, store := testServer(t)

	id, err := store.StartRun(false)
	require.NoError(t, err)
	require.NoError(t, store.CompleteRun(id, 5, 5, 0))
	id2, err := store.StartRun(false)
	require.NoError(t, err)
	require.NoError(t, store.CompleteRun(id2, 3, 0, 1))

	w := get(t, s, "/api/stats")
	require.Equal(t, http.StatusOK, w.Code)

	var stats state.Stats
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stats))
	assert.Equal(t, 2, stats.TotalRuns)
	assert.Equal(t, 8, stats.TotalFetched)
	assert.Equal(t, 5, stats.TotalPosted)
	assert.Equal(t, 1, stats.FailedRuns)
}
