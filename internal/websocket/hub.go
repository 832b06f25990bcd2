package websocket

import (
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
)

// RoomMessage is a payload addressed to one user's room.
type RoomMessage struct {
	TargetUserID uuid.UUID
	Payload      []byte
}

// Hub maintains the set of active clients grouped into rooms, one room per
// user ID. A user with several sessions (devices, tabs) has several clients
// in the same room, and every room delivery reaches all of them.
type Hub struct {
	// Rooms maps a user ID to that user's set of live client connections.
	Rooms map[uuid.UUID]map[*Client]bool

	// Channel for sending a payload to one user's room.
	Send chan *RoomMessage

	// Register requests from the clients.
	Register chan *Client

	// Unregister requests from clients.
	Unregister chan *Client

	// Mutex to protect concurrent access to the rooms map.
	mu sync.RWMutex
}

func NewHub() *Hub {
	return &Hub{
		Send:       make(chan *RoomMessage),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		Rooms:      make(map[uuid.UUID]map[*Client]bool),
	}
}

// Run starts the hub's processing loop.
func (h *Hub) Run() {
	log.Println("WebSocket Hub started.")
	for {
		select {
		case client := <-h.Register:
			h.mu.Lock()
			if _, ok := h.Rooms[client.UserID]; !ok {
				h.Rooms[client.UserID] = make(map[*Client]bool)
			}
			h.Rooms[client.UserID][client] = true
			log.Printf("WebSocket client joined room %s. Sessions in room: %d", client.UserID, len(h.Rooms[client.UserID]))
			h.mu.Unlock()

		case client := <-h.Unregister:
			h.mu.Lock()
			if room, ok := h.Rooms[client.UserID]; ok {
				if _, clientOk := room[client]; clientOk {
					delete(room, client)
					if len(room) == 0 {
						delete(h.Rooms, client.UserID)
						log.Printf("WebSocket client left. Room %s is now empty.", client.UserID)
					} else {
						log.Printf("WebSocket client left room %s. Remaining sessions: %d", client.UserID, len(room))
					}
				}
			}
			h.mu.Unlock()

		case roomMessage := <-h.Send:
			h.mu.RLock()
			if room, ok := h.Rooms[roomMessage.TargetUserID]; ok {
				for client := range room {
					select {
					case client.Send <- roomMessage.Payload:
					default:
						log.Printf("Send channel full for a session in room %s. Message dropped for this session.", client.UserID)
					}
				}
			}
			// A user with no live sessions simply misses the delivery;
			// clients catch up by re-fetching history on reconnect.
			h.mu.RUnlock()
		}
	}
}

// SendToUser queues a payload for every session in one user's room.
func (h *Hub) SendToUser(targetUserID uuid.UUID, payload []byte) {
	message := &RoomMessage{
		TargetUserID: targetUserID,
		Payload:      payload,
	}
	select {
	case h.Send <- message:
	case <-time.After(1 * time.Second):
		log.Printf("Timeout queuing message for room %s. Hub might be busy or blocked.", targetUserID)
	}
}

// SendToUsers multicasts a payload to the rooms of all given users.
func (h *Hub) SendToUsers(targetUserIDs []uuid.UUID, payload []byte) {
	for _, userID := range targetUserIDs {
		h.SendToUser(userID, payload)
	}
}
