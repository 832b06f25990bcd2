package handlers

import (
	"net/http"

	"pondside/internal/engine/actors"
	"pondside/internal/middleware"
	"pondside/internal/models"
	"pondside/internal/utils"

	"github.com/google/uuid"
)

// HandleConversations lists the authenticated user's conversations, most
// recently active first.
func (s *Server) HandleConversations() http.HandlerFunc {
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

		result, err := s.request(s.Engine.GetConversationActor(), &actors.ListConversationsMsg{UserID: userID})
		if err != nil {
			http.Error(w, "Failed to list conversations", http.StatusInternalServerError)
			return
		}
		if appErr, ok := result.(*utils.AppError); ok {
			writeAppError(w, appErr)
			return
		}

		respondJSON(w, http.StatusOK, result)
	}
}

// HandleConversation returns a single conversation with its member list.
func (s *Server) HandleConversation() http.HandlerFunc {
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

		conversationID, err := uuid.Parse(r.URL.Query().Get("id"))
		if err != nil {
			http.Error(w, "Invalid conversation ID format", http.StatusBadRequest)
			return
		}

		if appErr := s.requireMember(userID, conversationID); appErr != nil {
			writeAppError(w, appErr)
			return
		}

		result, err := s.request(s.Engine.GetConversationActor(), &actors.GetConversationMsg{ConversationID: conversationID})
		if err != nil {
			http.Error(w, "Failed to get conversation", http.StatusInternalServerError)
			return
		}
		if appErr, ok := result.(*utils.AppError); ok {
			writeAppError(w, appErr)
			return
		}

		respondJSON(w, http.StatusOK, result)
	}
}

// HandleConversationHistory returns the ordered messages of a conversation.
// With idsOnly=true, only the message IDs are returned.
func (s *Server) HandleConversationHistory() http.HandlerFunc {
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

		conversationID, err := uuid.Parse(r.URL.Query().Get("id"))
		if err != nil {
			http.Error(w, "Invalid conversation ID format", http.StatusBadRequest)
			return
		}

		if appErr := s.requireMember(userID, conversationID); appErr != nil {
			writeAppError(w, appErr)
			return
		}

		result, err := s.request(s.Engine.GetMessageActor(), &actors.GetHistoryMsg{ConversationID: conversationID})
		if err != nil {
			http.Error(w, "Failed to get conversation history", http.StatusInternalServerError)
			return
		}
		if appErr, ok := result.(*utils.AppError); ok {
			writeAppError(w, appErr)
			return
		}

		messages := result.([]*models.Message)
		if r.URL.Query().Get("idsOnly") == "true" {
			ids := make([]uuid.UUID, 0, len(messages))
			for _, message := range messages {
				ids = append(ids, message.ID)
			}
			respondJSON(w, http.StatusOK, ids)
			return
		}

		respondJSON(w, http.StatusOK, messages)
	}
}

func (s *Server) requireMember(userID, conversationID uuid.UUID) *utils.AppError {
	result, err := s.request(s.Engine.GetConversationActor(), &actors.IsMemberMsg{
		UserID:         userID,
		ConversationID: conversationID,
	})
	if err != nil {
		return utils.NewActorTimeoutError("conversation")
	}
	if appErr, ok := result.(*utils.AppError); ok {
		return appErr
	}
	if isMember, ok := result.(bool); !ok || !isMember {
		return utils.NewNotMemberError(conversationID.String())
	}
	return nil
}
