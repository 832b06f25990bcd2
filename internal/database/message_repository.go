// internal/database/message_repository.go
package database

import (
	"context"
	"database/sql"
	"time"

	"pondside/internal/models"
	"pondside/internal/utils"

	"github.com/google/uuid"
)

// SaveMessage inserts a new message record.
func (p *PostgresDB) SaveMessage(ctx context.Context, msg *models.Message) error {
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}

	query := `
		INSERT INTO messages (id, conversation_id, sender_id, content, created_at)
		VALUES (:id, :conversation_id, :sender_id, :content, :created_at)
	`
	_, err := p.DB.NamedExecContext(ctx, query, msg)
	if err != nil {
		if isForeignKeyViolation(err) {
			return utils.NewConversationNotFoundError(msg.ConversationID.String())
		}
		return utils.NewAppError(utils.ErrDatabase, "failed to save message", err)
	}
	return nil
}

// GetMessage fetches a message by ID with its reader IDs populated.
func (p *PostgresDB) GetMessage(ctx context.Context, id uuid.UUID) (*models.Message, error) {
	query := `SELECT id, conversation_id, sender_id, content, created_at FROM messages WHERE id = $1`
	var msg models.Message
	err := p.DB.GetContext(ctx, &msg, query, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, utils.NewMessageNotFoundError(id.String())
		}
		return nil, utils.NewAppError(utils.ErrDatabase, "failed to query message", err)
	}

	readerIDs, err := p.GetMessageReaderIDs(ctx, id)
	if err != nil {
		return nil, err
	}
	msg.ReadUserIDs = readerIDs
	return &msg, nil
}

// GetConversationMessages returns the conversation history ascending by
// server-assigned timestamp.
func (p *PostgresDB) GetConversationMessages(ctx context.Context, conversationID uuid.UUID) ([]*models.Message, error) {
	query := `
		SELECT id, conversation_id, sender_id, content, created_at
		FROM messages WHERE conversation_id = $1
		ORDER BY created_at ASC
	`
	messages := []*models.Message{}
	err := p.DB.SelectContext(ctx, &messages, query, conversationID)
	if err != nil {
		return nil, utils.NewAppError(utils.ErrDatabase, "failed to query conversation messages", err)
	}

	for _, msg := range messages {
		readerIDs, err := p.GetMessageReaderIDs(ctx, msg.ID)
		if err != nil {
			return nil, err
		}
		msg.ReadUserIDs = readerIDs
	}
	return messages, nil
}

// UpdateMessageContent overwrites the message content in place. Edit history
// is not retained.
func (p *PostgresDB) UpdateMessageContent(ctx context.Context, id uuid.UUID, content string) error {
	query := `UPDATE messages SET content = $1 WHERE id = $2`
	result, err := p.DB.ExecContext(ctx, query, content, id)
	if err != nil {
		return utils.NewAppError(utils.ErrDatabase, "failed to update message content", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return utils.NewAppError(utils.ErrDatabase, "failed to get rows affected after update", err)
	}
	if rowsAffected == 0 {
		return utils.NewMessageNotFoundError(id.String())
	}
	return nil
}

// DeleteMessage removes a message. Its read_messages rows go with it via
// ON DELETE CASCADE.
func (p *PostgresDB) DeleteMessage(ctx context.Context, id uuid.UUID) error {
	query := `DELETE FROM messages WHERE id = $1`
	result, err := p.DB.ExecContext(ctx, query, id)
	if err != nil {
		return utils.NewAppError(utils.ErrDatabase, "failed to delete message", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return utils.NewAppError(utils.ErrDatabase, "failed to get rows affected after delete", err)
	}
	if rowsAffected == 0 {
		return utils.NewMessageNotFoundError(id.String())
	}
	return nil
}
