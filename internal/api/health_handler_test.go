package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docsmith/docex-api/internal/api"
	"github.com/docsmith/docex-api/internal/store"
)

type stubQueueStats struct {
	depth    int
	capacity int
}

func (s stubQueueStats) QueueDepth() int    { return s.depth }
func (s stubQueueStats) QueueCapacity() int { return s.capacity }

// failingPingStore wraps a working store but reports the backend as down.
type failingPingStore struct {
	store.TaskStore
}

func (failingPingStore) Ping(ctx context.Context) error {
	return errors.New("connection refused")
}

func TestHealth(t *testing.T) {
	memStore := store.NewMemoryStore(time.Hour, 0, discardLogger())
	t.Cleanup(func() { _ = memStore.Close() })

	handler := api.NewHealthHandler(memStore, stubQueueStats{}, discardLogger())

	rec := httptest.NewRecorder()
	handler.Health(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var resp api.HealthResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "ok", resp.Status)
}

func TestDetailedHealth_OK(t *testing.T) {
	memStore := store.NewMemoryStore(time.Hour, 0, discardLogger())
	t.Cleanup(func() { _ = memStore.Close() })

	handler := api.NewHealthHandler(
		memStore,
		stubQueueStats{depth: 3, capacity: 100},
		discardLogger(),
	)

	rec := httptest.NewRecorder()
	handler.DetailedHealth(rec, httptest.NewRequest(http.MethodGet, "/health/detailed", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var resp api.DetailedHealthResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "ok", resp.Store)
	assert.Equal(t, 3, resp.QueueDepth)
	assert.Equal(t, 100, resp.QueueCapacity)
}

func TestDetailedHealth_StoreDown(t *testing.T) {
	memStore := store.NewMemoryStore(time.Hour, 0, discardLogger())
	t.Cleanup(func() { _ = memStore.Close() })

	handler := api.NewHealthHandler(
		failingPingStore{TaskStore: memStore},
		stubQueueStats{capacity: 100},
		discardLogger(),
	)

	rec := httptest.NewRecorder()
	handler.DetailedHealth(rec, httptest.NewRequest(http.MethodGet, "/health/detailed", nil))

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var resp api.DetailedHealthResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "degraded", resp.Status)
	assert.Equal(t, "unreachable", resp.Store)
}
