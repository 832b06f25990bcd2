package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"pondside/internal/database"
	"pondside/internal/engine"
	"pondside/internal/middleware"
	"pondside/internal/models"
	"pondside/internal/utils"
	"pondside/internal/websocket"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func newTestServer(t *testing.T) (*Server, *database.MemoryDB) {
	t.Helper()
	middleware.SetSecret("test-secret")
	db := database.NewMemoryDB()
	system := actor.NewActorSystem()
	metrics := utils.NewMetricsCollector()
	eng := engine.NewEngine(system, metrics, db)
	hub := websocket.NewHub()
	go hub.Run()
	return NewServer(system, system.Root, eng, hub, nil, db, metrics), db
}

func TestUserRegistrationAndLogin(t *testing.T) {
	server, _ := newTestServer(t)

	// Register
	body := `{"username":"alice","email":"alice@example.com","password":"hunter22"}`
	recorder := httptest.NewRecorder()
	server.HandleUserRegistration()(recorder, httptest.NewRequest(http.MethodPost, "/user/register", strings.NewReader(body)))
	assert.Equal(t, http.StatusCreated, recorder.Code)

	var user models.User
	assert.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &user))
	assert.Equal(t, "alice", user.Username)
	// The password hash never leaves the server
	assert.NotContains(t, recorder.Body.String(), "hunter22")
	assert.NotContains(t, recorder.Body.String(), "password_hash")

	// Duplicate email is a conflict
	recorder = httptest.NewRecorder()
	server.HandleUserRegistration()(recorder, httptest.NewRequest(http.MethodPost, "/user/register", strings.NewReader(body)))
	assert.Equal(t, http.StatusConflict, recorder.Code)

	// Login with the right password
	recorder = httptest.NewRecorder()
	server.HandleUserLogin()(recorder, httptest.NewRequest(http.MethodPost, "/user/login",
		strings.NewReader(`{"email":"alice@example.com","password":"hunter22"}`)))
	assert.Equal(t, http.StatusOK, recorder.Code)

	var login LoginResponse
	assert.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &login))
	assert.True(t, login.Success)
	assert.NotEmpty(t, login.Token)
	assert.Equal(t, user.ID.String(), login.UserID)

	claims, err := middleware.ValidateToken(login.Token)
	assert.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)

	// Wrong password
	recorder = httptest.NewRecorder()
	server.HandleUserLogin()(recorder, httptest.NewRequest(http.MethodPost, "/user/login",
		strings.NewReader(`{"email":"alice@example.com","password":"wrong"}`)))
	assert.Equal(t, http.StatusUnauthorized, recorder.Code)

	// Unknown account is indistinguishable from a wrong password
	recorder = httptest.NewRecorder()
	server.HandleUserLogin()(recorder, httptest.NewRequest(http.MethodPost, "/user/login",
		strings.NewReader(`{"email":"nobody@example.com","password":"hunter22"}`)))
	assert.Equal(t, http.StatusUnauthorized, recorder.Code)
}

func TestConversationQueries(t *testing.T) {
	server, db := newTestServer(t)
	ctx := context.Background()

	alice := &models.User{ID: uuid.New(), Username: "alice", Email: "alice@example.com"}
	bob := &models.User{ID: uuid.New(), Username: "bob", Email: "bob@example.com"}
	assert.NoError(t, db.SaveUser(ctx, alice))
	assert.NoError(t, db.SaveUser(ctx, bob))

	conv := &models.Conversation{ID: uuid.New()}
	assert.NoError(t, db.CreatePrivateConversation(ctx, conv, alice.ID, bob.ID))

	base := time.Now()
	for i, content := range []string{"one", "two"} {
		assert.NoError(t, db.SaveMessage(ctx, &models.Message{
			ID:             uuid.New(),
			ConversationID: conv.ID,
			SenderID:       alice.ID,
			Content:        content,
			CreatedAt:      base.Add(time.Duration(i) * time.Second),
		}))
	}

	asUser := func(r *http.Request, userID uuid.UUID) *http.Request {
		return r.WithContext(middleware.SetUserIDInContext(r.Context(), userID))
	}

	// List
	recorder := httptest.NewRecorder()
	server.HandleConversations()(recorder, asUser(httptest.NewRequest(http.MethodGet, "/conversations", nil), alice.ID))
	assert.Equal(t, http.StatusOK, recorder.Code)

	var conversations []*models.Conversation
	assert.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &conversations))
	assert.Len(t, conversations, 1)
	assert.Equal(t, conv.ID, conversations[0].ID)

	// Single conversation, members included
	recorder = httptest.NewRecorder()
	server.HandleConversation()(recorder, asUser(httptest.NewRequest(http.MethodGet, "/conversation?id="+conv.ID.String(), nil), alice.ID))
	assert.Equal(t, http.StatusOK, recorder.Code)

	var fetched models.Conversation
	assert.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &fetched))
	assert.ElementsMatch(t, []uuid.UUID{alice.ID, bob.ID}, fetched.MemberIDs)

	// Non-members are turned away
	mallory := &models.User{ID: uuid.New(), Username: "mallory", Email: "mallory@example.com"}
	assert.NoError(t, db.SaveUser(ctx, mallory))
	recorder = httptest.NewRecorder()
	server.HandleConversation()(recorder, asUser(httptest.NewRequest(http.MethodGet, "/conversation?id="+conv.ID.String(), nil), mallory.ID))
	assert.Equal(t, http.StatusUnauthorized, recorder.Code)

	// History, oldest first
	recorder = httptest.NewRecorder()
	server.HandleConversationHistory()(recorder, asUser(httptest.NewRequest(http.MethodGet, "/conversation/history?id="+conv.ID.String(), nil), alice.ID))
	assert.Equal(t, http.StatusOK, recorder.Code)

	var history []*models.Message
	assert.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &history))
	assert.Len(t, history, 2)
	assert.Equal(t, "one", history[0].Content)

	// idsOnly trims the response to message IDs
	recorder = httptest.NewRecorder()
	server.HandleConversationHistory()(recorder, asUser(httptest.NewRequest(http.MethodGet, "/conversation/history?id="+conv.ID.String()+"&idsOnly=true", nil), alice.ID))
	assert.Equal(t, http.StatusOK, recorder.Code)

	var ids []uuid.UUID
	assert.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &ids))
	assert.Len(t, ids, 2)
	assert.Equal(t, history[0].ID, ids[0])

	// Single message lookup carries reader IDs
	_, err := db.SaveReadMessage(ctx, &models.ReadMessage{MessageID: history[0].ID, UserID: bob.ID})
	assert.NoError(t, err)

	recorder = httptest.NewRecorder()
	server.HandleMessage()(recorder, asUser(httptest.NewRequest(http.MethodGet, "/message?id="+history[0].ID.String(), nil), alice.ID))
	assert.Equal(t, http.StatusOK, recorder.Code)

	var message models.Message
	assert.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &message))
	assert.Equal(t, []uuid.UUID{bob.ID}, message.ReadUserIDs)
}
