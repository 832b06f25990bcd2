package handlers

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"pondside/internal/middleware"
	"pondside/internal/models"
	"pondside/internal/sanitize"
	"pondside/internal/utils"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// RegisterUserRequest represents a request to register a new user
type RegisterUserRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginRequest represents a request to log in a user
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResponse represents a response to a login request
type LoginResponse struct {
	Success bool   `json:"success"`
	Token   string `json:"token,omitempty"`
	Error   string `json:"error,omitempty"`
	UserID  string `json:"userId"`
}

// HandleUserRegistration handles requests to register a new user
func (s *Server) HandleUserRegistration() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		var req RegisterUserRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request", http.StatusBadRequest)
			return
		}

		username := sanitize.Text(req.Username)
		if username == "" || req.Email == "" || req.Password == "" {
			http.Error(w, "Username, email and password are required", http.StatusBadRequest)
			return
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
		if err != nil {
			http.Error(w, "Failed to process password", http.StatusInternalServerError)
			return
		}

		user := &models.User{
			ID:             uuid.New(),
			Username:       username,
			Email:          req.Email,
			HashedPassword: string(hash),
			CreatedAt:      time.Now(),
		}

		if err := s.DB.SaveUser(r.Context(), user); err != nil {
			if appErr, ok := err.(*utils.AppError); ok {
				writeAppError(w, appErr)
				return
			}
			http.Error(w, "Failed to register user", http.StatusInternalServerError)
			return
		}

		respondJSON(w, http.StatusCreated, user)
	}
}

// HandleUserLogin handles requests to log in a user
func (s *Server) HandleUserLogin() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		var req LoginRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request", http.StatusBadRequest)
			return
		}

		user, err := s.DB.GetUserByEmail(r.Context(), req.Email)
		if err != nil {
			// A missing account and a bad password look the same to clients.
			respondJSON(w, http.StatusUnauthorized, &LoginResponse{
				Success: false,
				Error:   "Invalid email or password",
			})
			return
		}

		if bcrypt.CompareHashAndPassword([]byte(user.HashedPassword), []byte(req.Password)) != nil {
			respondJSON(w, http.StatusUnauthorized, &LoginResponse{
				Success: false,
				Error:   "Invalid email or password",
			})
			return
		}

		token, err := middleware.GenerateToken(user.ID)
		if err != nil {
			log.Printf("HTTP Handler: Failed to generate token for user %s: %v", user.ID, err)
			http.Error(w, "Failed to generate token", http.StatusInternalServerError)
			return
		}

		respondJSON(w, http.StatusOK, &LoginResponse{
			Success: true,
			Token:   token,
			UserID:  user.ID.String(),
		})
	}
}
