package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"flowsync/internal/domain"
	"flowsync/pkg/utils"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// maxBodyBytes limits request bodies
const maxBodyBytes = 1 << 20

// Handler handles HTTP requests
type Handler struct {
	demoUC domain.DemoUseCase
	logger *zap.Logger
}

// NewHandler creates a new HTTP handler
func NewHandler(demoUC domain.DemoUseCase, logger *zap.Logger) *Handler {
	return &Handler{
		demoUC: demoUC,
		logger: logger,
	}
}

type moveRequest struct {
	X *float64 `json:"x"`
	Y *float64 `json:"y"`
}

type connectRequest struct {
	Source string `json:"source"`
	Target string `json:"target"`
}

type versionRequest struct {
	Version *int `json:"version"`
}

type connectionBody struct {
	Connected *bool `json:"connected"`
}

// GetState returns a replica's view state
func (h *Handler) GetState(w http.ResponseWriter, r *http.Request) {
	replica, ok := h.replica(r)
	if !ok {
		return
	}
	state, err := h.demoUC.State(replica)
	h.respond(w, r, state, err)
}

// MoveNode drags a node to a new position
func (h *Handler) MoveNode(w http.ResponseWriter, r *http.Request) {
	replica, ok := h.replica(r)
	if !ok {
		return
	}

	var req moveRequest
	if !h.decode(r, &req) {
		return
	}
	if req.X == nil || req.Y == nil {
		h.fail(r, errors.New("x and y are required"), http.StatusBadRequest)
		return
	}

	pos := domain.Position{X: *req.X, Y: *req.Y}
	state, err := h.demoUC.MoveNode(replica, mux.Vars(r)["node"], pos)
	h.respond(w, r, state, err)
}

// PatchNode applies a JSON merge patch to a node
func (h *Handler) PatchNode(w http.ResponseWriter, r *http.Request) {
	replica, ok := h.replica(r)
	if !ok {
		return
	}

	patch, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		h.fail(r, fmt.Errorf("failed to read body: %w", err), http.StatusBadRequest)
		return
	}
	state, err := h.demoUC.PatchNode(replica, mux.Vars(r)["node"], domain.NodePatch(patch))
	h.respond(w, r, state, err)
}

// RemoveNode deletes a node and its edges
func (h *Handler) RemoveNode(w http.ResponseWriter, r *http.Request) {
	replica, ok := h.replica(r)
	if !ok {
		return
	}
	state, err := h.demoUC.RemoveNode(replica, mux.Vars(r)["node"])
	h.respond(w, r, state, err)
}

// Connect adds an edge
func (h *Handler) Connect(w http.ResponseWriter, r *http.Request) {
	replica, ok := h.replica(r)
	if !ok {
		return
	}

	var req connectRequest
	if !h.decode(r, &req) {
		return
	}
	if req.Source == "" || req.Target == "" {
		h.fail(r, errors.New("source and target are required"), http.StatusBadRequest)
		return
	}
	state, err := h.demoUC.Connect(replica, req.Source, req.Target)
	h.respond(w, r, state, err)
}

// RemoveEdge deletes an edge
func (h *Handler) RemoveEdge(w http.ResponseWriter, r *http.Request) {
	replica, ok := h.replica(r)
	if !ok {
		return
	}
	state, err := h.demoUC.RemoveEdge(replica, mux.Vars(r)["edge"])
	h.respond(w, r, state, err)
}

// Scrub moves the history slider
func (h *Handler) Scrub(w http.ResponseWriter, r *http.Request) {
	replica, ok := h.replica(r)
	if !ok {
		return
	}

	var req versionRequest
	if !h.decode(r, &req) {
		return
	}
	if req.Version == nil {
		h.fail(r, errors.New("version is required"), http.StatusBadRequest)
		return
	}
	state, err := h.demoUC.Scrub(replica, *req.Version)
	h.respond(w, r, state, err)
}

// GetConnection reports the partition switch
func (h *Handler) GetConnection(w http.ResponseWriter, r *http.Request) {
	connected := h.demoUC.Connected()
	utils.WriteJSON(w, http.StatusOK, connectionBody{Connected: &connected})
}

// SetConnection flips the partition switch
func (h *Handler) SetConnection(w http.ResponseWriter, r *http.Request) {
	var req connectionBody
	if !h.decode(r, &req) {
		return
	}
	if req.Connected == nil {
		h.fail(r, errors.New("connected is required"), http.StatusBadRequest)
		return
	}

	if err := h.demoUC.SetConnected(*req.Connected); err != nil {
		h.fail(r, err, statusFromError(err))
		return
	}

	connected := h.demoUC.Connected()
	utils.WriteJSON(w, http.StatusOK, connectionBody{Connected: &connected})
}

// SaveSnapshot persists a replica's document
func (h *Handler) SaveSnapshot(w http.ResponseWriter, r *http.Request) {
	replica, ok := h.replica(r)
	if !ok {
		return
	}

	snapshot, err := h.demoUC.SaveSnapshot(r.Context(), replica)
	if err != nil {
		h.fail(r, err, statusFromError(err))
		return
	}

	utils.WriteJSON(w, http.StatusCreated, newSnapshotInfo(snapshot))
}

// ListSnapshots returns stored snapshots without their data
func (h *Handler) ListSnapshots(w http.ResponseWriter, r *http.Request) {
	snapshots, err := h.demoUC.ListSnapshots(r.Context())
	if err != nil {
		h.fail(r, err, statusFromError(err))
		return
	}

	infos := make([]snapshotInfo, 0, len(snapshots))
	for _, s := range snapshots {
		infos = append(infos, newSnapshotInfo(s))
	}
	utils.WriteJSON(w, http.StatusOK, infos)
}

// DeleteSnapshot removes a stored snapshot
func (h *Handler) DeleteSnapshot(w http.ResponseWriter, r *http.Request) {
	if err := h.demoUC.DeleteSnapshot(r.Context(), mux.Vars(r)["id"]); err != nil {
		h.fail(r, err, statusFromError(err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type snapshotInfo struct {
	ID        string    `json:"id"`
	Replica   string    `json:"replica"`
	Frontiers string    `json:"frontiers"`
	Bytes     int       `json:"bytes"`
	CreatedAt time.Time `json:"createdAt"`
}

func newSnapshotInfo(s *domain.Snapshot) snapshotInfo {
	return snapshotInfo{
		ID:        s.ID,
		Replica:   s.Replica,
		Frontiers: s.Frontiers,
		Bytes:     len(s.Data),
		CreatedAt: s.CreatedAt,
	}
}

func (h *Handler) replica(r *http.Request) (domain.ReplicaID, bool) {
	id, err := domain.ParseReplicaID(mux.Vars(r)["replica"])
	if err != nil {
		h.fail(r, err, http.StatusNotFound)
		return "", false
	}
	return id, true
}

func (h *Handler) decode(r *http.Request, v any) bool {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		h.fail(r, fmt.Errorf("invalid request body: %w", err), http.StatusBadRequest)
		return false
	}
	return true
}

// respond writes the state, or records the error for the error middleware
func (h *Handler) respond(w http.ResponseWriter, r *http.Request, state domain.ViewState, err error) {
	if err != nil {
		h.fail(r, err, statusFromError(err))
		return
	}
	utils.WriteJSON(w, http.StatusOK, state)
}

func (h *Handler) fail(r *http.Request, err error, code int) {
	utils.SetError(r, err, code)
}

// statusFromError maps domain errors to HTTP status codes
func statusFromError(err error) int {
	var rangeErr domain.ErrVersionOutOfRange
	var patchErr domain.ErrInvalidPatch

	switch {
	case errors.Is(err, domain.ErrReplicaNotFound),
		errors.Is(err, domain.ErrNodeNotFound),
		errors.Is(err, domain.ErrEdgeNotFound),
		errors.Is(err, domain.ErrSnapshotNotFound):
		return http.StatusNotFound
	case errors.As(err, &rangeErr), errors.As(err, &patchErr):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
