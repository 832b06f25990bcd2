package models

import (
	"time"

	"github.com/google/uuid"
)

type User struct {
	ID             uuid.UUID `json:"id" db:"id"`
	Username       string    `json:"username" db:"username"`
	Email          string    `json:"email" db:"email"`
	HashedPassword string    `json:"-" db:"password_hash"`
	CreatedAt      time.Time `json:"createdAt" db:"created_at"`
}

// Conversation is a named or anonymous channel containing an ordered set of
// messages and a set of member users. Private conversations (IsGroup false)
// carry no name or description and hold exactly two members.
type Conversation struct {
	ID          uuid.UUID `json:"id" db:"id"`
	Name        string    `json:"name" db:"name"`
	Description string    `json:"description" db:"description"`
	IsGroup     bool      `json:"isGroup" db:"is_group"`
	CreatedAt   time.Time `json:"dateCreated" db:"created_at"`

	// MemberIDs is populated when the conversation is read back for
	// serialization; it is not a column of the conversations table.
	MemberIDs []uuid.UUID `json:"userIds" db:"-"`
}

// ConversationMember links a user to a conversation. The (conversation, user)
// pair is unique; IsAdmin is meaningful for groups only.
type ConversationMember struct {
	ConversationID uuid.UUID `json:"conversationId" db:"conversation_id"`
	UserID         uuid.UUID `json:"userId" db:"user_id"`
	IsAdmin        bool      `json:"isAdmin" db:"is_admin"`
	JoinedAt       time.Time `json:"joinedAt" db:"joined_at"`
}

type Message struct {
	ID             uuid.UUID `json:"id" db:"id"`
	ConversationID uuid.UUID `json:"conversationId" db:"conversation_id"`
	SenderID       uuid.UUID `json:"senderId" db:"sender_id"`
	Content        string    `json:"content" db:"content"`
	CreatedAt      time.Time `json:"timestamp" db:"created_at"`

	// ReadUserIDs mirrors the read_messages rows for this message and is
	// filled in when the message is serialized for clients.
	ReadUserIDs []uuid.UUID `json:"readUserIds" db:"-"`
}

// ReadMessage records that a user has read a message. The (message, user)
// pair is unique, which makes marking a message read idempotent.
type ReadMessage struct {
	MessageID uuid.UUID `json:"messageId" db:"message_id"`
	UserID    uuid.UUID `json:"userId" db:"user_id"`
	ReadAt    time.Time `json:"readAt" db:"read_at"`
}
