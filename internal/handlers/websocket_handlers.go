package handlers

import (
	"log"
	"net/http"

	"pondside/internal/middleware"
	"pondside/internal/websocket"

	"github.com/google/uuid"
	ws "github.com/gorilla/websocket"
)

var upgrader = ws.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// TODO: check Origin against config.AllowedOrigins
		return true
	},
}

// HandleWebSocket upgrades a connection and binds it to the user's room.
// Browsers cannot set headers on websocket handshakes, so the JWT arrives
// as a query parameter instead of an Authorization header.
func (s *Server) HandleWebSocket() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tokenString := r.URL.Query().Get("token")
		if tokenString == "" {
			http.Error(w, "Missing authentication token", http.StatusUnauthorized)
			return
		}

		claims, err := middleware.ValidateToken(tokenString)
		if err != nil {
			log.Printf("WebSocket connection failed: invalid token: %v", err)
			http.Error(w, "Invalid or expired token", http.StatusUnauthorized)
			return
		}

		userID := claims.UserID
		if userID == uuid.Nil {
			http.Error(w, "Invalid user ID in token", http.StatusUnauthorized)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			// Upgrade already wrote an HTTP error response.
			log.Printf("WebSocket upgrade failed for user %s: %v", userID, err)
			return
		}

		client := &websocket.Client{
			Hub:     s.Hub,
			UserID:  userID,
			Conn:    conn,
			Send:    make(chan []byte, 256),
			Handler: s.Gateway,
		}
		client.Hub.Register <- client
		log.Printf("WebSocket client registered for user %s", userID)

		go client.WritePump()
		go client.ReadPump()
	}
}
