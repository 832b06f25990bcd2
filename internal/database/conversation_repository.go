// internal/database/conversation_repository.go
package database

import (
	"context"
	"database/sql"
	"time"

	"pondside/internal/models"
	"pondside/internal/utils"

	"github.com/google/uuid"
)

// CreatePrivateConversation atomically creates a two-member private
// conversation. The insert into private_pairs carries the uniqueness
// guarantee: if another transaction created a conversation for the same
// unordered pair first, the whole transaction rolls back and the caller
// gets CONVERSATION_EXISTS.
func (p *PostgresDB) CreatePrivateConversation(ctx context.Context, conv *models.Conversation, userA, userB uuid.UUID) error {
	if conv.CreatedAt.IsZero() {
		conv.CreatedAt = time.Now()
	}

	tx, err := p.DB.BeginTxx(ctx, nil)
	if err != nil {
		return utils.NewAppError(utils.ErrDatabase, "failed to begin transaction", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO conversations (id, name, description, is_group, created_at)
		VALUES ($1, NULL, NULL, FALSE, $2)
	`, conv.ID, conv.CreatedAt)
	if err != nil {
		return utils.NewAppError(utils.ErrDatabase, "failed to insert conversation", err)
	}

	lo, hi := NormalizePair(userA, userB)
	_, err = tx.ExecContext(ctx, `
		INSERT INTO private_pairs (user_lo, user_hi, conversation_id)
		VALUES ($1, $2, $3)
	`, lo, hi, conv.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return utils.NewAppError(utils.ErrConversationExists, "private conversation already exists for this pair", err)
		}
		if isForeignKeyViolation(err) {
			return utils.NewAppError(utils.ErrUserNotFound, "one of the users does not exist", err)
		}
		return utils.NewAppError(utils.ErrDatabase, "failed to insert private pair", err)
	}

	for _, userID := range []uuid.UUID{userA, userB} {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO conversation_members (conversation_id, user_id, is_admin, joined_at)
			VALUES ($1, $2, FALSE, $3)
		`, conv.ID, userID, conv.CreatedAt)
		if err != nil {
			return utils.NewAppError(utils.ErrDatabase, "failed to insert conversation member", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return utils.NewAppError(utils.ErrDatabase, "failed to commit private conversation", err)
	}

	conv.MemberIDs = []uuid.UUID{userA, userB}
	return nil
}

// CreateGroupConversation atomically creates a group conversation with its
// initial member set.
func (p *PostgresDB) CreateGroupConversation(ctx context.Context, conv *models.Conversation, members []*models.ConversationMember) error {
	if conv.CreatedAt.IsZero() {
		conv.CreatedAt = time.Now()
	}

	tx, err := p.DB.BeginTxx(ctx, nil)
	if err != nil {
		return utils.NewAppError(utils.ErrDatabase, "failed to begin transaction", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO conversations (id, name, description, is_group, created_at)
		VALUES ($1, $2, $3, TRUE, $4)
	`, conv.ID, conv.Name, conv.Description, conv.CreatedAt)
	if err != nil {
		return utils.NewAppError(utils.ErrDatabase, "failed to insert conversation", err)
	}

	conv.MemberIDs = conv.MemberIDs[:0]
	for _, member := range members {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO conversation_members (conversation_id, user_id, is_admin, joined_at)
			VALUES ($1, $2, $3, $4)
		`, conv.ID, member.UserID, member.IsAdmin, conv.CreatedAt)
		if err != nil {
			if isForeignKeyViolation(err) {
				return utils.NewUserNotFoundError(member.UserID.String())
			}
			return utils.NewAppError(utils.ErrDatabase, "failed to insert conversation member", err)
		}
		conv.MemberIDs = append(conv.MemberIDs, member.UserID)
	}

	if err := tx.Commit(); err != nil {
		return utils.NewAppError(utils.ErrDatabase, "failed to commit group conversation", err)
	}
	return nil
}

// GetConversation fetches a conversation by ID with its member IDs populated.
func (p *PostgresDB) GetConversation(ctx context.Context, id uuid.UUID) (*models.Conversation, error) {
	query := `
		SELECT id, COALESCE(name, '') AS name, COALESCE(description, '') AS description, is_group, created_at
		FROM conversations WHERE id = $1
	`
	var conv models.Conversation
	err := p.DB.GetContext(ctx, &conv, query, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, utils.NewConversationNotFoundError(id.String())
		}
		return nil, utils.NewAppError(utils.ErrDatabase, "failed to query conversation", err)
	}

	memberIDs, err := p.GetConversationMemberIDs(ctx, id)
	if err != nil {
		return nil, err
	}
	conv.MemberIDs = memberIDs
	return &conv, nil
}

// GetConversationMemberIDs returns the user IDs of all current members.
func (p *PostgresDB) GetConversationMemberIDs(ctx context.Context, conversationID uuid.UUID) ([]uuid.UUID, error) {
	query := `SELECT user_id FROM conversation_members WHERE conversation_id = $1 ORDER BY joined_at`
	memberIDs := []uuid.UUID{}
	err := p.DB.SelectContext(ctx, &memberIDs, query, conversationID)
	if err != nil {
		return nil, utils.NewAppError(utils.ErrDatabase, "failed to query conversation members", err)
	}
	return memberIDs, nil
}

// IsConversationMember reports whether the user belongs to the conversation.
// A missing user or conversation yields false, not an error.
func (p *PostgresDB) IsConversationMember(ctx context.Context, userID, conversationID uuid.UUID) (bool, error) {
	query := `SELECT COUNT(*) FROM conversation_members WHERE conversation_id = $1 AND user_id = $2`
	var count int
	err := p.DB.GetContext(ctx, &count, query, conversationID, userID)
	if err != nil {
		return false, utils.NewAppError(utils.ErrDatabase, "failed to query conversation membership", err)
	}
	return count > 0, nil
}

// GetUserConversations returns the user's conversations ordered by most
// recent activity, where activity is the later of the conversation's
// creation time and its newest message.
func (p *PostgresDB) GetUserConversations(ctx context.Context, userID uuid.UUID) ([]*models.Conversation, error) {
	query := `
		SELECT c.id, COALESCE(c.name, '') AS name, COALESCE(c.description, '') AS description, c.is_group, c.created_at
		FROM conversations c
		JOIN conversation_members cm ON cm.conversation_id = c.id
		LEFT JOIN messages m ON m.conversation_id = c.id
		WHERE cm.user_id = $1
		GROUP BY c.id, c.name, c.description, c.is_group, c.created_at
		ORDER BY GREATEST(c.created_at, COALESCE(MAX(m.created_at), c.created_at)) DESC
	`
	conversations := []*models.Conversation{}
	err := p.DB.SelectContext(ctx, &conversations, query, userID)
	if err != nil {
		return nil, utils.NewAppError(utils.ErrDatabase, "failed to query user conversations", err)
	}

	for _, conv := range conversations {
		memberIDs, err := p.GetConversationMemberIDs(ctx, conv.ID)
		if err != nil {
			return nil, err
		}
		conv.MemberIDs = memberIDs
	}
	return conversations, nil
}
