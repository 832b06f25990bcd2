package gateway

import (
	"encoding/json"

	"github.com/google/uuid"
)

// Envelope frames every event in both directions.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// Inbound event names
const (
	EventMessage           = "message"
	EventReadMessage       = "read_message"
	EventReadConversation  = "read_conversation"
	EventEditMessage       = "edit_message"
	EventDeleteMessage     = "delete_message"
	EventCreatePrivateConv = "create_private_conversation"
	EventCreateGroupConv   = "create_group_conversation"
)

// Outbound event names
const (
	EventNewMessage      = "new_message"
	EventBluetick        = "bluetick"
	EventEdit            = "edit"
	EventDelete          = "delete"
	EventNewConversation = "new_conversation"
	EventError           = "error"
)

// Inbound payloads
type (
	MessagePayload struct {
		ConversationID string `json:"conversation_id"`
		Content        string `json:"content"`
	}

	ReadMessagePayload struct {
		MessageID string `json:"message_id"`
	}

	ReadConversationPayload struct {
		ConversationID string `json:"conversation_id"`
	}

	EditMessagePayload struct {
		MessageID  string `json:"message_id"`
		NewContent string `json:"new_content"`
	}

	DeleteMessagePayload struct {
		MessageID string `json:"message_id"`
	}

	CreatePrivateConversationPayload struct {
		TargetID string `json:"target_id"`
	}

	CreateGroupConversationPayload struct {
		Name  string   `json:"name"`
		Users []string `json:"users"`
	}
)

// Outbound payloads
type (
	EditEvent struct {
		ID      uuid.UUID `json:"id"`
		Content string    `json:"content"`
	}

	DeleteEvent struct {
		ID uuid.UUID `json:"id"`
	}

	ErrorEvent struct {
		Kind    string `json:"kind"`
		Message string `json:"message"`
	}
)
