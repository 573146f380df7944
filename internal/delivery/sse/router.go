package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"flowsync/internal/domain"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Client represents a connected SSE client
type Client struct {
	ID      string
	Replica domain.ReplicaID
	events  chan Event
}

// Event represents an SSE event
type Event struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// EventViewState is sent whenever a replica's editor changes
const EventViewState = "view_state"

// clientBuffer is how many events may queue for a slow client before it is dropped
const clientBuffer = 32

// Router handles SSE connections and events
type Router struct {
	demoUC      domain.DemoUseCase
	logger      *zap.Logger
	clients     map[string]*Client
	mu          sync.RWMutex
	unsubscribe func()
}

// NewRouter creates a new SSE router that streams view states of the replicas
func NewRouter(demoUC domain.DemoUseCase, logger *zap.Logger) *Router {
	router := &Router{
		demoUC:  demoUC,
		logger:  logger,
		clients: make(map[string]*Client),
	}
	router.unsubscribe = demoUC.Subscribe(router.PublishViewState)
	return router
}

// HandleEvents handles SSE connections. The replica is chosen with ?replica=a|b.
func (r *Router) HandleEvents(w http.ResponseWriter, req *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	replica, err := domain.ParseReplicaID(req.URL.Query().Get("replica"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}

	state, err := r.demoUC.State(replica)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	// Set headers for SSE
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")

	client := &Client{
		ID:      uuid.NewString(),
		Replica: replica,
		events:  make(chan Event, clientBuffer),
	}
	r.register(client)
	defer r.unregister(client)

	r.logger.Debug("SSE client connected",
		zap.String("client", client.ID),
		zap.String("replica", string(replica)))

	if err := writeEvent(w, flusher, Event{Type: EventViewState, Payload: state}); err != nil {
		return
	}

	for {
		select {
		case <-req.Context().Done():
			return
		case ev, ok := <-client.events:
			if !ok {
				return
			}
			if err := writeEvent(w, flusher, ev); err != nil {
				r.logger.Debug("SSE write failed", zap.String("client", client.ID), zap.Error(err))
				return
			}
		}
	}
}

// PublishViewState queues state for every client watching its replica
func (r *Router) PublishViewState(state domain.ViewState) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ev := Event{Type: EventViewState, Payload: state}
	for _, client := range r.clients {
		if client.Replica != state.Replica {
			continue
		}
		select {
		case client.events <- ev:
		default:
			r.logger.Warn("SSE client too slow, event dropped",
				zap.String("client", client.ID),
				zap.String("replica", string(client.Replica)))
		}
	}
}

// ClientCount returns the number of connected clients
func (r *Router) ClientCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clients)
}

// Close stops receiving view states and ends every stream
func (r *Router) Close() {
	r.unsubscribe()

	r.mu.Lock()
	defer r.mu.Unlock()
	for id, client := range r.clients {
		close(client.events)
		delete(r.clients, id)
	}
}

func (r *Router) register(client *Client) {
	r.mu.Lock()
	r.clients[client.ID] = client
	r.mu.Unlock()
}

func (r *Router) unregister(client *Client) {
	r.mu.Lock()
	delete(r.clients, client.ID)
	r.mu.Unlock()
}

// writeEvent sends an event to a client
func writeEvent(w http.ResponseWriter, flusher http.Flusher, ev Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
		return err
	}
	flusher.Flush()
	return nil
}
