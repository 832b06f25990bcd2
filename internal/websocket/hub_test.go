package websocket

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func recvPayload(t *testing.T, client *Client) []byte {
	t.Helper()
	select {
	case payload := <-client.Send:
		return payload
	case <-time.After(2 * time.Second):
		t.Fatal("no payload delivered")
		return nil
	}
}

func TestHubRoomDelivery(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	userA := uuid.New()
	userB := uuid.New()

	// Two sessions for the same user share one room
	sessionA1 := &Client{Hub: hub, UserID: userA, Send: make(chan []byte, 4)}
	sessionA2 := &Client{Hub: hub, UserID: userA, Send: make(chan []byte, 4)}
	sessionB := &Client{Hub: hub, UserID: userB, Send: make(chan []byte, 4)}
	hub.Register <- sessionA1
	hub.Register <- sessionA2
	hub.Register <- sessionB

	hub.SendToUser(userA, []byte("hello"))
	assert.Equal(t, []byte("hello"), recvPayload(t, sessionA1))
	assert.Equal(t, []byte("hello"), recvPayload(t, sessionA2))

	// The other room heard nothing
	select {
	case payload := <-sessionB.Send:
		t.Fatalf("unexpected payload for user B: %s", payload)
	case <-time.After(100 * time.Millisecond):
	}

	// Multicast reaches every listed room
	hub.SendToUsers([]uuid.UUID{userA, userB}, []byte("all"))
	assert.Equal(t, []byte("all"), recvPayload(t, sessionA1))
	assert.Equal(t, []byte("all"), recvPayload(t, sessionA2))
	assert.Equal(t, []byte("all"), recvPayload(t, sessionB))
}

func TestHubUnregister(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	userID := uuid.New()
	session1 := &Client{Hub: hub, UserID: userID, Send: make(chan []byte, 4)}
	session2 := &Client{Hub: hub, UserID: userID, Send: make(chan []byte, 4)}
	hub.Register <- session1
	hub.Register <- session2

	hub.Unregister <- session1

	// Sending to a user with no sessions is a silent no-op
	hub.SendToUser(userID, []byte("still here"))
	assert.Equal(t, []byte("still here"), recvPayload(t, session2))
	select {
	case payload := <-session1.Send:
		t.Fatalf("payload delivered to unregistered session: %s", payload)
	case <-time.After(100 * time.Millisecond):
	}

	hub.Unregister <- session2
	hub.SendToUser(userID, []byte("dropped"))
	select {
	case payload := <-session2.Send:
		t.Fatalf("payload delivered to empty room: %s", payload)
	case <-time.After(100 * time.Millisecond):
	}
}
