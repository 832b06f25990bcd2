package database

import (
	"context"

	"pondside/internal/models"

	"github.com/google/uuid"
)

// DBAdapter is the common interface for persistence operations. Two
// implementations exist: PostgresDB for production and MemoryDB for tests
// and local development (DB_TYPE=memory).
//
// Mutating operations are atomic with respect to each other. In particular
// CreatePrivateConversation enforces at most one private conversation per
// unordered user pair, so two concurrent creates for the same pair cannot
// both succeed even across processes.
type DBAdapter interface {
	// Connection
	Close(ctx context.Context) error

	// User methods
	GetUser(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	SaveUser(ctx context.Context, user *models.User) error

	// Conversation methods
	CreatePrivateConversation(ctx context.Context, conv *models.Conversation, userA, userB uuid.UUID) error
	CreateGroupConversation(ctx context.Context, conv *models.Conversation, members []*models.ConversationMember) error
	GetConversation(ctx context.Context, id uuid.UUID) (*models.Conversation, error)
	GetConversationMemberIDs(ctx context.Context, conversationID uuid.UUID) ([]uuid.UUID, error)
	IsConversationMember(ctx context.Context, userID, conversationID uuid.UUID) (bool, error)
	GetUserConversations(ctx context.Context, userID uuid.UUID) ([]*models.Conversation, error)

	// Message methods
	SaveMessage(ctx context.Context, msg *models.Message) error
	GetMessage(ctx context.Context, id uuid.UUID) (*models.Message, error)
	GetConversationMessages(ctx context.Context, conversationID uuid.UUID) ([]*models.Message, error)
	UpdateMessageContent(ctx context.Context, id uuid.UUID, content string) error
	DeleteMessage(ctx context.Context, id uuid.UUID) error

	// Read receipt methods
	SaveReadMessage(ctx context.Context, rm *models.ReadMessage) (bool, error)
	GetMessageReaderIDs(ctx context.Context, messageID uuid.UUID) ([]uuid.UUID, error)
	MarkConversationRead(ctx context.Context, userID, conversationID uuid.UUID) ([]*models.ReadMessage, error)
}

// NormalizePair orders two user IDs so a private pair has one canonical key
// regardless of which side initiated the conversation.
func NormalizePair(a, b uuid.UUID) (lo, hi uuid.UUID) {
	if a.String() < b.String() {
		return a, b
	}
	return b, a
}
