package gateway

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"pondside/internal/database"
	"pondside/internal/engine"
	"pondside/internal/models"
	"pondside/internal/utils"
	"pondside/internal/websocket"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

// testSession is a registered hub client without a network connection; the
// hub only ever writes to the Send channel.
type testSession struct {
	userID uuid.UUID
	client *websocket.Client
}

func newTestGateway(t *testing.T) (*Gateway, *database.MemoryDB, *websocket.Hub) {
	t.Helper()
	db := database.NewMemoryDB()
	system := actor.NewActorSystem()
	metrics := utils.NewMetricsCollector()
	eng := engine.NewEngine(system, metrics, db)
	hub := websocket.NewHub()
	go hub.Run()
	return NewGateway(system.Root, eng, hub, 5*time.Second), db, hub
}

func connect(hub *websocket.Hub, userID uuid.UUID) *testSession {
	client := &websocket.Client{
		Hub:    hub,
		UserID: userID,
		Send:   make(chan []byte, 16),
	}
	hub.Register <- client
	return &testSession{userID: userID, client: client}
}

func registerUser(t *testing.T, db database.DBAdapter, username string) uuid.UUID {
	t.Helper()
	user := &models.User{
		ID:       uuid.New(),
		Username: username,
		Email:    username + "@example.com",
	}
	assert.NoError(t, db.SaveUser(context.Background(), user))
	return user.ID
}

func event(t *testing.T, name string, payload interface{}) []byte {
	t.Helper()
	data, err := json.Marshal(payload)
	assert.NoError(t, err)
	frame, err := json.Marshal(&Envelope{Event: name, Data: data})
	assert.NoError(t, err)
	return frame
}

// recv waits for the next frame delivered to the session and decodes it.
func (s *testSession) recv(t *testing.T) (string, json.RawMessage) {
	t.Helper()
	select {
	case frame := <-s.client.Send:
		var envelope Envelope
		assert.NoError(t, json.Unmarshal(frame, &envelope))
		return envelope.Event, envelope.Data
	case <-time.After(2 * time.Second):
		t.Fatalf("no frame delivered to user %s", s.userID)
		return "", nil
	}
}

func (s *testSession) expectSilence(t *testing.T) {
	t.Helper()
	select {
	case frame := <-s.client.Send:
		t.Fatalf("unexpected frame for user %s: %s", s.userID, frame)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestGatewayPrivateConversationFlow(t *testing.T) {
	gw, db, hub := newTestGateway(t)

	aliceID := registerUser(t, db, "alice")
	bobID := registerUser(t, db, "bob")
	alice := connect(hub, aliceID)
	bob := connect(hub, bobID)

	// Alice opens a private conversation with bob; both rooms hear about it
	gw.HandleEvent(aliceID, event(t, EventCreatePrivateConv, &CreatePrivateConversationPayload{
		TargetID: bobID.String(),
	}))

	name, data := alice.recv(t)
	assert.Equal(t, EventNewConversation, name)
	var conv models.Conversation
	assert.NoError(t, json.Unmarshal(data, &conv))
	assert.False(t, conv.IsGroup)
	assert.ElementsMatch(t, []uuid.UUID{aliceID, bobID}, conv.MemberIDs)

	name, _ = bob.recv(t)
	assert.Equal(t, EventNewConversation, name)

	// Alice sends a message; both members receive it
	gw.HandleEvent(aliceID, event(t, EventMessage, &MessagePayload{
		ConversationID: conv.ID.String(),
		Content:        "hi bob",
	}))

	name, data = alice.recv(t)
	assert.Equal(t, EventNewMessage, name)
	var message models.Message
	assert.NoError(t, json.Unmarshal(data, &message))
	assert.Equal(t, "hi bob", message.Content)
	assert.Equal(t, aliceID, message.SenderID)

	name, _ = bob.recv(t)
	assert.Equal(t, EventNewMessage, name)

	// Bob reads it: no bluetick yet, alice has not read her own message
	gw.HandleEvent(bobID, event(t, EventReadMessage, &ReadMessagePayload{
		MessageID: message.ID.String(),
	}))
	alice.expectSilence(t)
	bob.expectSilence(t)

	// Alice reads it too: now everyone gets the bluetick
	gw.HandleEvent(aliceID, event(t, EventReadMessage, &ReadMessagePayload{
		MessageID: message.ID.String(),
	}))

	name, data = alice.recv(t)
	assert.Equal(t, EventBluetick, name)
	var readIDs []uuid.UUID
	assert.NoError(t, json.Unmarshal(data, &readIDs))
	assert.Equal(t, []uuid.UUID{message.ID}, readIDs)

	name, _ = bob.recv(t)
	assert.Equal(t, EventBluetick, name)

	// A repeat read must not re-broadcast the bluetick
	gw.HandleEvent(bobID, event(t, EventReadMessage, &ReadMessagePayload{
		MessageID: message.ID.String(),
	}))
	alice.expectSilence(t)
	bob.expectSilence(t)
}

func TestGatewayGroupConversationBluetick(t *testing.T) {
	gw, db, hub := newTestGateway(t)

	aliceID := registerUser(t, db, "alice")
	bobID := registerUser(t, db, "bob")
	carolID := registerUser(t, db, "carol")
	alice := connect(hub, aliceID)
	bob := connect(hub, bobID)
	carol := connect(hub, carolID)

	gw.HandleEvent(aliceID, event(t, EventCreateGroupConv, &CreateGroupConversationPayload{
		Name:  "Swamp Crew",
		Users: []string{bobID.String(), carolID.String()},
	}))

	name, data := alice.recv(t)
	assert.Equal(t, EventNewConversation, name)
	var conv models.Conversation
	assert.NoError(t, json.Unmarshal(data, &conv))
	assert.True(t, conv.IsGroup)
	bob.recv(t)
	carol.recv(t)

	// Bob posts two messages
	gw.HandleEvent(bobID, event(t, EventMessage, &MessagePayload{
		ConversationID: conv.ID.String(),
		Content:        "first",
	}))
	_, data = alice.recv(t)
	var first models.Message
	assert.NoError(t, json.Unmarshal(data, &first))
	bob.recv(t)
	carol.recv(t)

	gw.HandleEvent(bobID, event(t, EventMessage, &MessagePayload{
		ConversationID: conv.ID.String(),
		Content:        "second",
	}))
	_, data = alice.recv(t)
	var second models.Message
	assert.NoError(t, json.Unmarshal(data, &second))
	bob.recv(t)
	carol.recv(t)

	// Bob and alice read everything; carol is still missing
	gw.HandleEvent(bobID, event(t, EventReadConversation, &ReadConversationPayload{
		ConversationID: conv.ID.String(),
	}))
	gw.HandleEvent(aliceID, event(t, EventReadConversation, &ReadConversationPayload{
		ConversationID: conv.ID.String(),
	}))
	alice.expectSilence(t)
	bob.expectSilence(t)
	carol.expectSilence(t)

	// Carol's bulk read completes the set: one bluetick lists both messages
	gw.HandleEvent(carolID, event(t, EventReadConversation, &ReadConversationPayload{
		ConversationID: conv.ID.String(),
	}))

	name, data = carol.recv(t)
	assert.Equal(t, EventBluetick, name)
	var readIDs []uuid.UUID
	assert.NoError(t, json.Unmarshal(data, &readIDs))
	assert.ElementsMatch(t, []uuid.UUID{first.ID, second.ID}, readIDs)

	name, _ = alice.recv(t)
	assert.Equal(t, EventBluetick, name)
	name, _ = bob.recv(t)
	assert.Equal(t, EventBluetick, name)
}

func TestGatewayEditAndDeleteBroadcast(t *testing.T) {
	gw, db, hub := newTestGateway(t)

	aliceID := registerUser(t, db, "alice")
	bobID := registerUser(t, db, "bob")
	alice := connect(hub, aliceID)
	bob := connect(hub, bobID)

	gw.HandleEvent(aliceID, event(t, EventCreatePrivateConv, &CreatePrivateConversationPayload{
		TargetID: bobID.String(),
	}))
	_, data := alice.recv(t)
	var conv models.Conversation
	assert.NoError(t, json.Unmarshal(data, &conv))
	bob.recv(t)

	gw.HandleEvent(aliceID, event(t, EventMessage, &MessagePayload{
		ConversationID: conv.ID.String(),
		Content:        "tpyo",
	}))
	_, data = alice.recv(t)
	var message models.Message
	assert.NoError(t, json.Unmarshal(data, &message))
	bob.recv(t)

	// Bob cannot edit alice's message; only he hears about the rejection
	gw.HandleEvent(bobID, event(t, EventEditMessage, &EditMessagePayload{
		MessageID:  message.ID.String(),
		NewContent: "mine now",
	}))
	name, data := bob.recv(t)
	assert.Equal(t, EventError, name)
	var errEvent ErrorEvent
	assert.NoError(t, json.Unmarshal(data, &errEvent))
	assert.Equal(t, utils.ErrUnauthorized, errEvent.Kind)
	alice.expectSilence(t)

	// Alice edits her own message; everyone gets the new content
	gw.HandleEvent(aliceID, event(t, EventEditMessage, &EditMessagePayload{
		MessageID:  message.ID.String(),
		NewContent: "typo",
	}))
	name, data = alice.recv(t)
	assert.Equal(t, EventEdit, name)
	var edit EditEvent
	assert.NoError(t, json.Unmarshal(data, &edit))
	assert.Equal(t, message.ID, edit.ID)
	assert.Equal(t, "typo", edit.Content)

	name, _ = bob.recv(t)
	assert.Equal(t, EventEdit, name)

	// Delete broadcasts the removed message id
	gw.HandleEvent(aliceID, event(t, EventDeleteMessage, &DeleteMessagePayload{
		MessageID: message.ID.String(),
	}))
	name, data = alice.recv(t)
	assert.Equal(t, EventDelete, name)
	var deleted DeleteEvent
	assert.NoError(t, json.Unmarshal(data, &deleted))
	assert.Equal(t, message.ID, deleted.ID)

	name, _ = bob.recv(t)
	assert.Equal(t, EventDelete, name)

	// Reading a deleted message is an error back to the reader only
	gw.HandleEvent(bobID, event(t, EventReadMessage, &ReadMessagePayload{
		MessageID: message.ID.String(),
	}))
	name, data = bob.recv(t)
	assert.Equal(t, EventError, name)
	assert.NoError(t, json.Unmarshal(data, &errEvent))
	assert.Equal(t, utils.ErrMessageNotFound, errEvent.Kind)
	alice.expectSilence(t)
}

func TestGatewayNonMemberCannotMarkRead(t *testing.T) {
	gw, db, hub := newTestGateway(t)

	aliceID := registerUser(t, db, "alice")
	bobID := registerUser(t, db, "bob")
	malloryID := registerUser(t, db, "mallory")
	alice := connect(hub, aliceID)
	bob := connect(hub, bobID)
	mallory := connect(hub, malloryID)

	gw.HandleEvent(aliceID, event(t, EventCreatePrivateConv, &CreatePrivateConversationPayload{
		TargetID: bobID.String(),
	}))
	_, data := alice.recv(t)
	var conv models.Conversation
	assert.NoError(t, json.Unmarshal(data, &conv))
	bob.recv(t)

	gw.HandleEvent(aliceID, event(t, EventMessage, &MessagePayload{
		ConversationID: conv.ID.String(),
		Content:        "members only",
	}))
	_, data = alice.recv(t)
	var message models.Message
	assert.NoError(t, json.Unmarshal(data, &message))
	bob.recv(t)

	// An outsider's read is rejected and leaves no receipt behind
	gw.HandleEvent(malloryID, event(t, EventReadMessage, &ReadMessagePayload{
		MessageID: message.ID.String(),
	}))
	name, data := mallory.recv(t)
	assert.Equal(t, EventError, name)
	var errEvent ErrorEvent
	assert.NoError(t, json.Unmarshal(data, &errEvent))
	assert.Equal(t, utils.ErrNotConversationMember, errEvent.Kind)

	readerIDs, err := db.GetMessageReaderIDs(context.Background(), message.ID)
	assert.NoError(t, err)
	assert.NotContains(t, readerIDs, malloryID)
	alice.expectSilence(t)
	bob.expectSilence(t)

	// The same gate applies to bulk reads
	gw.HandleEvent(malloryID, event(t, EventReadConversation, &ReadConversationPayload{
		ConversationID: conv.ID.String(),
	}))
	name, data = mallory.recv(t)
	assert.Equal(t, EventError, name)
	assert.NoError(t, json.Unmarshal(data, &errEvent))
	assert.Equal(t, utils.ErrNotConversationMember, errEvent.Kind)

	// Both members read: one bluetick for the members
	gw.HandleEvent(bobID, event(t, EventReadMessage, &ReadMessagePayload{
		MessageID: message.ID.String(),
	}))
	gw.HandleEvent(aliceID, event(t, EventReadMessage, &ReadMessagePayload{
		MessageID: message.ID.String(),
	}))
	name, _ = alice.recv(t)
	assert.Equal(t, EventBluetick, name)
	name, _ = bob.recv(t)
	assert.Equal(t, EventBluetick, name)

	// An outsider poking the settled message cannot re-trigger it
	gw.HandleEvent(malloryID, event(t, EventReadMessage, &ReadMessagePayload{
		MessageID: message.ID.String(),
	}))
	name, _ = mallory.recv(t)
	assert.Equal(t, EventError, name)
	alice.expectSilence(t)
	bob.expectSilence(t)
}

func TestGatewayRejectsOutsidersAndBadFrames(t *testing.T) {
	gw, db, hub := newTestGateway(t)

	aliceID := registerUser(t, db, "alice")
	bobID := registerUser(t, db, "bob")
	malloryID := registerUser(t, db, "mallory")
	alice := connect(hub, aliceID)
	bob := connect(hub, bobID)
	mallory := connect(hub, malloryID)

	gw.HandleEvent(aliceID, event(t, EventCreatePrivateConv, &CreatePrivateConversationPayload{
		TargetID: bobID.String(),
	}))
	_, data := alice.recv(t)
	var conv models.Conversation
	assert.NoError(t, json.Unmarshal(data, &conv))
	bob.recv(t)

	// A non-member cannot post into the conversation
	gw.HandleEvent(malloryID, event(t, EventMessage, &MessagePayload{
		ConversationID: conv.ID.String(),
		Content:        "let me in",
	}))
	name, data := mallory.recv(t)
	assert.Equal(t, EventError, name)
	var errEvent ErrorEvent
	assert.NoError(t, json.Unmarshal(data, &errEvent))
	assert.Equal(t, utils.ErrNotConversationMember, errEvent.Kind)
	alice.expectSilence(t)
	bob.expectSilence(t)

	// A second private conversation for the same pair is rejected
	gw.HandleEvent(bobID, event(t, EventCreatePrivateConv, &CreatePrivateConversationPayload{
		TargetID: aliceID.String(),
	}))
	name, data = bob.recv(t)
	assert.Equal(t, EventError, name)
	assert.NoError(t, json.Unmarshal(data, &errEvent))
	assert.Equal(t, utils.ErrConversationExists, errEvent.Kind)
	alice.expectSilence(t)

	// Unknown events and malformed frames bounce back as errors
	gw.HandleEvent(aliceID, event(t, "subscribe", map[string]string{}))
	name, _ = alice.recv(t)
	assert.Equal(t, EventError, name)

	gw.HandleEvent(aliceID, []byte("not json"))
	name, data = alice.recv(t)
	assert.Equal(t, EventError, name)
	assert.NoError(t, json.Unmarshal(data, &errEvent))
	assert.Equal(t, utils.ErrInvalidInput, errEvent.Kind)

	// Whitespace-only content sanitizes to nothing and is rejected
	gw.HandleEvent(aliceID, event(t, EventMessage, &MessagePayload{
		ConversationID: conv.ID.String(),
		Content:        "   ",
	}))
	name, data = alice.recv(t)
	assert.Equal(t, EventError, name)
	assert.NoError(t, json.Unmarshal(data, &errEvent))
	assert.Equal(t, utils.ErrInvalidInput, errEvent.Kind)
}
