package handlers

import (
	"net/http"

	"pondside/internal/engine/actors"
	"pondside/internal/middleware"
	"pondside/internal/models"
	"pondside/internal/utils"

	"github.com/google/uuid"
)

// HandleMessage returns a single message, including its reader IDs.
func (s *Server) HandleMessage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		userID, ok := middleware.UserIDFromContext(r.Context())
		if !ok {
			http.Error(w, "Missing authentication", http.StatusUnauthorized)
			return
		}

		messageID, err := uuid.Parse(r.URL.Query().Get("id"))
		if err != nil {
			http.Error(w, "Invalid message ID format", http.StatusBadRequest)
			return
		}

		result, err := s.request(s.Engine.GetMessageActor(), &actors.GetMessageMsg{MessageID: messageID})
		if err != nil {
			http.Error(w, "Failed to get message", http.StatusInternalServerError)
			return
		}
		if appErr, ok := result.(*utils.AppError); ok {
			writeAppError(w, appErr)
			return
		}

		message := result.(*models.Message)
		if appErr := s.requireMember(userID, message.ConversationID); appErr != nil {
			writeAppError(w, appErr)
			return
		}

		respondJSON(w, http.StatusOK, message)
	}
}
