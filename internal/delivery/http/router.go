package http

import (
	"net/http"

	"flowsync/internal/delivery/sse"
	"flowsync/internal/delivery/ws"
	"flowsync/pkg/utils"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Router handles HTTP routing
type Router struct {
	handler   *Handler
	sseRouter *sse.Router
	hub       *ws.Hub
	logger    *zap.Logger
}

// NewRouter creates a new HTTP router
func NewRouter(handler *Handler, sseRouter *sse.Router, hub *ws.Hub, logger *zap.Logger) *Router {
	return &Router{
		handler:   handler,
		sseRouter: sseRouter,
		hub:       hub,
		logger:    logger,
	}
}

// Setup sets up the HTTP routes
func (r *Router) Setup() http.Handler {
	root := mux.NewRouter()

	// Streaming routes - no body capturing or error middleware
	root.HandleFunc("/api/events", r.sseRouter.HandleEvents).Methods(http.MethodGet)
	root.Handle("/ws", r.hub).Methods(http.MethodGet)
	root.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	api := root.PathPrefix("/api").Subrouter()
	api.Use(
		utils.RequestIDMiddleware,
		LoggingMiddleware(r.logger),
		utils.ErrorHandlerMiddleware(r.logger),
	)

	api.HandleFunc("/connection", r.handler.GetConnection).Methods(http.MethodGet)
	api.HandleFunc("/connection", r.handler.SetConnection).Methods(http.MethodPut)
	api.HandleFunc("/snapshots", r.handler.ListSnapshots).Methods(http.MethodGet)
	api.HandleFunc("/snapshots/{id}", r.handler.DeleteSnapshot).Methods(http.MethodDelete)

	replica := api.PathPrefix("/replicas/{replica}").Subrouter()
	replica.HandleFunc("", r.handler.GetState).Methods(http.MethodGet)
	replica.HandleFunc("/nodes/{node}/move", r.handler.MoveNode).Methods(http.MethodPost)
	replica.HandleFunc("/nodes/{node}", r.handler.PatchNode).Methods(http.MethodPatch)
	replica.HandleFunc("/nodes/{node}", r.handler.RemoveNode).Methods(http.MethodDelete)
	replica.HandleFunc("/edges", r.handler.Connect).Methods(http.MethodPost)
	replica.HandleFunc("/edges/{edge}", r.handler.RemoveEdge).Methods(http.MethodDelete)
	replica.HandleFunc("/version", r.handler.Scrub).Methods(http.MethodPut)
	replica.HandleFunc("/snapshots", r.handler.SaveSnapshot).Methods(http.MethodPost)

	return root
}
