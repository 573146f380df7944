package sse

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"flowsync/internal/domain"
	"flowsync/internal/repository/memory"
	"flowsync/internal/usecase"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func readEvent(t *testing.T, r *bufio.Reader) Event {
	t.Helper()
	for {
		line, err := r.ReadString('\n')
		require.NoError(t, err)
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var ev Event
		require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &ev))
		return ev
	}
}

func TestHandleEventsStreamsViewStates(t *testing.T) {
	logger := zaptest.NewLogger(t)
	uc, err := usecase.NewDemoUseCase(context.Background(), memory.NewSnapshotRepository(), logger)
	require.NoError(t, err)
	defer uc.Close()

	router := NewRouter(uc, logger)
	server := httptest.NewServer(http.HandlerFunc(router.HandleEvents))
	defer server.Close()
	defer router.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, server.URL+"?replica=b", nil)
	require.NoError(t, err)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	reader := bufio.NewReader(resp.Body)
	first := readEvent(t, reader)
	assert.Equal(t, EventViewState, first.Type)
	assert.Equal(t, 1, router.ClientCount())

	// an edit on a reaches b, and b's stream
	_, err = uc.MoveNode(domain.ReplicaA, "1", domain.Position{X: 7, Y: 8})
	require.NoError(t, err)

	next := readEvent(t, reader)
	payload, err := json.Marshal(next.Payload)
	require.NoError(t, err)
	var state domain.ViewState
	require.NoError(t, json.Unmarshal(payload, &state))
	assert.Equal(t, domain.ReplicaB, state.Replica)
	assert.Equal(t, domain.Position{X: 7, Y: 8}, state.Nodes[0].Position)
}

func TestHandleEventsRejectsUnknownReplica(t *testing.T) {
	logger := zaptest.NewLogger(t)
	uc, err := usecase.NewDemoUseCase(context.Background(), memory.NewSnapshotRepository(), logger)
	require.NoError(t, err)
	defer uc.Close()

	router := NewRouter(uc, logger)
	defer router.Close()

	rec := httptest.NewRecorder()
	router.HandleEvents(rec, httptest.NewRequest(http.MethodGet, "/api/events?replica=z", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
