package handlers

import (
	"net/http"
	"time"
)

// HandleHealth handles health check requests
func (s *Server) HandleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		body := map[string]interface{}{
			"status":      "healthy",
			"server_time": time.Now(),
		}
		for key, value := range s.Metrics.Snapshot() {
			body[key] = value
		}
		respondJSON(w, http.StatusOK, body)
	}
}
