package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"flowsync/internal/delivery/sse"
	"flowsync/internal/delivery/ws"
	"flowsync/internal/domain"
	"flowsync/internal/repository/memory"
	"flowsync/internal/usecase"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	logger := zap.NewNop()

	uc, err := usecase.NewDemoUseCase(context.Background(), memory.NewSnapshotRepository(), logger)
	require.NoError(t, err)
	t.Cleanup(uc.Close)

	sseRouter := sse.NewRouter(uc, logger)
	hub := ws.NewHub(uc, logger)
	t.Cleanup(sseRouter.Close)
	t.Cleanup(hub.Close)

	return NewRouter(NewHandler(uc, logger), sseRouter, hub, logger).Setup()
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeState(t *testing.T, rec *httptest.ResponseRecorder) domain.ViewState {
	t.Helper()
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var s domain.ViewState
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &s))
	return s
}

func nodeByID(t *testing.T, s domain.ViewState, id string) domain.Node {
	t.Helper()
	for _, n := range s.Nodes {
		if n.ID == id {
			return n
		}
	}
	t.Fatalf("node %s not found", id)
	return domain.Node{}
}

func TestGetState(t *testing.T) {
	router := newTestRouter(t)

	s := decodeState(t, do(t, router, http.MethodGet, "/api/replicas/a", ""))
	assert.Equal(t, domain.ReplicaA, s.Replica)
	assert.Len(t, s.Nodes, 4)
	assert.Len(t, s.Edges, 3)
	assert.Equal(t, 1, s.Version)
	assert.True(t, s.Connected)

	rec := do(t, router, http.MethodGet, "/api/replicas/c", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), `"error":"replica not found"`)
}

func TestMoveNodeSyncsPeer(t *testing.T) {
	router := newTestRouter(t)

	s := decodeState(t, do(t, router, http.MethodPost, "/api/replicas/a/nodes/2/move", `{"x":5,"y":6}`))
	assert.Equal(t, domain.Position{X: 5, Y: 6}, nodeByID(t, s, "2").Position)
	assert.Equal(t, 2, s.MaxVersion)

	b := decodeState(t, do(t, router, http.MethodGet, "/api/replicas/b", ""))
	assert.Equal(t, domain.Position{X: 5, Y: 6}, nodeByID(t, b, "2").Position)

	rec := do(t, router, http.MethodPost, "/api/replicas/a/nodes/9/move", `{"x":1,"y":1}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, router, http.MethodPost, "/api/replicas/a/nodes/2/move", `{"x":1}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPatchNode(t *testing.T) {
	router := newTestRouter(t)

	s := decodeState(t, do(t, router, http.MethodPatch, "/api/replicas/b/nodes/3", `{"position":{"x":42}}`))
	assert.Equal(t, domain.Position{X: 42, Y: 250}, nodeByID(t, s, "3").Position)

	rec := do(t, router, http.MethodPatch, "/api/replicas/b/nodes/3", `{"id":"other"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, router, http.MethodPatch, "/api/replicas/b/nodes/3", `not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestEdgesAndNodeRemoval(t *testing.T) {
	router := newTestRouter(t)

	s := decodeState(t, do(t, router, http.MethodPost, "/api/replicas/a/edges", `{"source":"3","target":"4"}`))
	assert.Len(t, s.Edges, 4)

	s = decodeState(t, do(t, router, http.MethodDelete, "/api/replicas/a/edges/"+domain.EdgeID("3", "4"), ""))
	assert.Len(t, s.Edges, 3)

	rec := do(t, router, http.MethodDelete, "/api/replicas/a/edges/missing", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	s = decodeState(t, do(t, router, http.MethodDelete, "/api/replicas/a/nodes/1", ""))
	assert.Len(t, s.Nodes, 3)
	for _, e := range s.Edges {
		assert.NotEqual(t, "1", e.Source)
	}

	b := decodeState(t, do(t, router, http.MethodGet, "/api/replicas/b", ""))
	assert.Len(t, b.Nodes, 3)
}

func TestScrub(t *testing.T) {
	router := newTestRouter(t)

	decodeState(t, do(t, router, http.MethodPost, "/api/replicas/a/nodes/1/move", `{"x":0,"y":0}`))

	s := decodeState(t, do(t, router, http.MethodPut, "/api/replicas/a/version", `{"version":1}`))
	assert.Equal(t, 1, s.Version)
	assert.Equal(t, 2, s.MaxVersion)
	assert.Equal(t, domain.Position{X: 250, Y: 25}, nodeByID(t, s, "1").Position)

	rec := do(t, router, http.MethodPut, "/api/replicas/a/version", `{"version":7}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, router, http.MethodPut, "/api/replicas/a/version", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestConnection(t *testing.T) {
	router := newTestRouter(t)

	rec := do(t, router, http.MethodGet, "/api/connection", "")
	assert.JSONEq(t, `{"connected":true}`, rec.Body.String())

	rec = do(t, router, http.MethodPut, "/api/connection", `{"connected":false}`)
	assert.JSONEq(t, `{"connected":false}`, rec.Body.String())

	decodeState(t, do(t, router, http.MethodPost, "/api/replicas/a/nodes/4/move", `{"x":1,"y":2}`))
	b := decodeState(t, do(t, router, http.MethodGet, "/api/replicas/b", ""))
	assert.Equal(t, domain.Position{X: 400, Y: 125}, nodeByID(t, b, "4").Position)
	assert.False(t, b.Connected)

	rec = do(t, router, http.MethodPut, "/api/connection", `{"connected":true}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	b = decodeState(t, do(t, router, http.MethodGet, "/api/replicas/b", ""))
	assert.Equal(t, domain.Position{X: 1, Y: 2}, nodeByID(t, b, "4").Position)

	rec = do(t, router, http.MethodPut, "/api/connection", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSaveSnapshot(t *testing.T) {
	router := newTestRouter(t)

	rec := do(t, router, http.MethodPost, "/api/replicas/a/snapshots", "")
	require.Equal(t, http.StatusCreated, rec.Code)

	var body struct {
		ID      string `json:"id"`
		Replica string `json:"replica"`
		Bytes   int    `json:"bytes"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.True(t, strings.HasPrefix(body.ID, "a-"))
	assert.Equal(t, "a", body.Replica)
	assert.Positive(t, body.Bytes)
}

func TestListAndDeleteSnapshots(t *testing.T) {
	router := newTestRouter(t)

	rec := do(t, router, http.MethodPost, "/api/replicas/b/snapshots", "")
	require.Equal(t, http.StatusCreated, rec.Code)
	var saved struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &saved))

	list := func() []map[string]any {
		rec := do(t, router, http.MethodGet, "/api/snapshots", "")
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var out []map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
		return out
	}

	all := list()
	require.Len(t, all, 2)
	ids := []any{all[0]["id"], all[1]["id"]}
	assert.ElementsMatch(t, []any{"origin", saved.ID}, ids)
	for _, s := range all {
		assert.NotContains(t, s, "data", "listing must not carry document bytes")
		assert.Contains(t, s, "createdAt")
	}

	rec = do(t, router, http.MethodDelete, "/api/snapshots/"+saved.ID, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Len(t, list(), 1)

	rec = do(t, router, http.MethodDelete, "/api/snapshots/"+saved.ID, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRequestIDHeader(t *testing.T) {
	router := newTestRouter(t)

	rec := do(t, router, http.MethodGet, "/api/connection", "")
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestMetricsEndpoint(t *testing.T) {
	router := newTestRouter(t)

	decodeState(t, do(t, router, http.MethodPost, "/api/replicas/a/nodes/1/move", `{"x":9,"y":9}`))
	rec := do(t, router, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "flowsync_")
}
