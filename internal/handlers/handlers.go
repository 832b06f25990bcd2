package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"pondside/internal/database"
	"pondside/internal/engine"
	"pondside/internal/gateway"
	"pondside/internal/utils"
	"pondside/internal/websocket"

	"github.com/asynkron/protoactor-go/actor"
)

// Server holds all server dependencies, including the actor system and engine
type Server struct {
	System         *actor.ActorSystem
	Context        *actor.RootContext
	Engine         *engine.Engine
	Hub            *websocket.Hub
	Gateway        *gateway.Gateway
	DB             database.DBAdapter
	Metrics        *utils.MetricsCollector
	RequestTimeout time.Duration
}

// NewServer creates a new Server instance with the given components
func NewServer(
	system *actor.ActorSystem,
	context *actor.RootContext,
	eng *engine.Engine,
	hub *websocket.Hub,
	gw *gateway.Gateway,
	db database.DBAdapter,
	metrics *utils.MetricsCollector,
) *Server {
	return &Server{
		System:         system,
		Context:        context,
		Engine:         eng,
		Hub:            hub,
		Gateway:        gw,
		DB:             db,
		Metrics:        metrics,
		RequestTimeout: 5 * time.Second, // Default timeout for actor requests
	}
}

// request sends a message to an actor and waits for the response.
func (s *Server) request(pid *actor.PID, msg interface{}) (interface{}, error) {
	future := s.Context.RequestFuture(pid, msg, s.RequestTimeout)
	return future.Result()
}

func respondJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

// writeAppError maps an actor's AppError response to an HTTP status.
func writeAppError(w http.ResponseWriter, appErr *utils.AppError) {
	http.Error(w, appErr.Error(), utils.AppErrorToHTTPStatus(appErr.Code))
}
