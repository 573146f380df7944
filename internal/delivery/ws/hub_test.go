package ws

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"flowsync/internal/domain"
	"flowsync/internal/repository/memory"
	"flowsync/internal/usecase"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newTestHub(t *testing.T) (*usecase.DemoUseCase, *Hub, string) {
	t.Helper()
	logger := zaptest.NewLogger(t)

	uc, err := usecase.NewDemoUseCase(context.Background(), memory.NewSnapshotRepository(), logger)
	require.NoError(t, err)

	hub := NewHub(uc, logger)
	server := httptest.NewServer(hub)
	t.Cleanup(func() {
		server.Close()
		hub.Close()
		uc.Close()
	})

	return uc, hub, "ws" + strings.TrimPrefix(server.URL, "http")
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func read(t *testing.T, conn *websocket.Conn) Message {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var msg Message
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func TestHubSendsInitialState(t *testing.T) {
	_, _, url := newTestHub(t)

	conn := dial(t, url+"?replica=a")
	msg := read(t, conn)

	assert.Equal(t, TypeState, msg.Type)
	require.NotNil(t, msg.State)
	assert.Equal(t, domain.ReplicaA, msg.State.Replica)
	assert.Len(t, msg.State.Nodes, 4)
}

func TestHubAppliesGesturesAndBroadcasts(t *testing.T) {
	_, _, url := newTestHub(t)

	a := dial(t, url+"?replica=a")
	b := dial(t, url+"?replica=b")
	read(t, a)
	read(t, b)

	require.NoError(t, a.WriteJSON(Message{Type: TypeMove, Node: "3", X: 11, Y: 12}))

	gotA := read(t, a)
	require.NotNil(t, gotA.State)
	assert.Equal(t, domain.Position{X: 11, Y: 12}, gotA.State.Nodes[2].Position)

	gotB := read(t, b)
	require.NotNil(t, gotB.State)
	assert.Equal(t, domain.ReplicaB, gotB.State.Replica)
	assert.Equal(t, domain.Position{X: 11, Y: 12}, gotB.State.Nodes[2].Position)
}

func TestHubReportsGestureErrors(t *testing.T) {
	_, _, url := newTestHub(t)

	conn := dial(t, url+"?replica=a")
	read(t, conn)

	require.NoError(t, conn.WriteJSON(Message{Type: TypeRemoveEdge, Edge: "missing"}))
	msg := read(t, conn)
	assert.Equal(t, TypeError, msg.Type)
	assert.Contains(t, msg.Error, "edge not found")

	require.NoError(t, conn.WriteJSON(Message{Type: "dance"}))
	msg = read(t, conn)
	assert.Equal(t, TypeError, msg.Type)
}

func TestHubRejectsUnknownReplica(t *testing.T) {
	_, _, url := newTestHub(t)

	_, resp, err := websocket.DefaultDialer.Dial(url+"?replica=c", nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, 404, resp.StatusCode)
}

func TestHubFollowsExternalChanges(t *testing.T) {
	uc, hub, url := newTestHub(t)

	conn := dial(t, url+"?replica=b")
	read(t, conn)
	assert.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 10*time.Millisecond)

	_, err := uc.Scrub(domain.ReplicaB, 0)
	require.NoError(t, err)

	msg := read(t, conn)
	require.NotNil(t, msg.State)
	assert.Equal(t, 0, msg.State.Version)
}

// racingUseCase publishes a newer state while the hub is still reading the initial one.
type racingUseCase struct {
	domain.DemoUseCase
	hub *Hub
}

func (u *racingUseCase) Subscribe(func(domain.ViewState)) func() { return func() {} }

func (u *racingUseCase) State(replica domain.ReplicaID) (domain.ViewState, error) {
	go u.hub.broadcast(domain.ViewState{Replica: replica, Version: 2, MaxVersion: 2})
	time.Sleep(50 * time.Millisecond)
	return domain.ViewState{Replica: replica, Version: 1, MaxVersion: 1}, nil
}

func TestHubDeliversStateChangedDuringConnect(t *testing.T) {
	uc := &racingUseCase{}
	hub := NewHub(uc, zaptest.NewLogger(t))
	uc.hub = hub
	server := httptest.NewServer(hub)
	t.Cleanup(func() {
		server.Close()
		hub.Close()
	})

	conn := dial(t, "ws"+strings.TrimPrefix(server.URL, "http")+"?replica=a")

	first := read(t, conn)
	require.NotNil(t, first.State)
	assert.Equal(t, 1, first.State.Version)

	second := read(t, conn)
	require.NotNil(t, second.State)
	assert.Equal(t, 2, second.State.Version)
}
