// internal/database/read_receipt_repository.go
package database

import (
	"context"
	"time"

	"pondside/internal/models"
	"pondside/internal/utils"

	"github.com/google/uuid"
)

// SaveReadMessage records that a user has read a message. The operation is
// idempotent: a pre-existing (message, user) row is left untouched and the
// returned flag is false.
func (p *PostgresDB) SaveReadMessage(ctx context.Context, rm *models.ReadMessage) (bool, error) {
	if rm.ReadAt.IsZero() {
		rm.ReadAt = time.Now()
	}

	query := `
		INSERT INTO read_messages (message_id, user_id, read_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (message_id, user_id) DO NOTHING
	`
	result, err := p.DB.ExecContext(ctx, query, rm.MessageID, rm.UserID, rm.ReadAt)
	if err != nil {
		if isForeignKeyViolation(err) {
			return false, utils.NewMessageNotFoundError(rm.MessageID.String())
		}
		return false, utils.NewAppError(utils.ErrDatabase, "failed to save read receipt", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, utils.NewAppError(utils.ErrDatabase, "failed to get rows affected after insert", err)
	}
	return rowsAffected > 0, nil
}

// GetMessageReaderIDs returns the IDs of all users with a read record for
// the message.
func (p *PostgresDB) GetMessageReaderIDs(ctx context.Context, messageID uuid.UUID) ([]uuid.UUID, error) {
	query := `SELECT user_id FROM read_messages WHERE message_id = $1`
	readerIDs := []uuid.UUID{}
	err := p.DB.SelectContext(ctx, &readerIDs, query, messageID)
	if err != nil {
		return nil, utils.NewAppError(utils.ErrDatabase, "failed to query message readers", err)
	}
	return readerIDs, nil
}

// MarkConversationRead creates a read record for every message in the
// conversation the user has not read yet, in one statement, and returns only
// the newly created records so the caller can tell newly read from already
// read.
func (p *PostgresDB) MarkConversationRead(ctx context.Context, userID, conversationID uuid.UUID) ([]*models.ReadMessage, error) {
	query := `
		INSERT INTO read_messages (message_id, user_id, read_at)
		SELECT m.id, $1, NOW()
		FROM messages m
		WHERE m.conversation_id = $2
		ON CONFLICT (message_id, user_id) DO NOTHING
		RETURNING message_id, user_id, read_at
	`
	created := []*models.ReadMessage{}
	rows, err := p.DB.QueryxContext(ctx, query, userID, conversationID)
	if err != nil {
		return nil, utils.NewAppError(utils.ErrDatabase, "failed to mark conversation read", err)
	}
	defer rows.Close()

	for rows.Next() {
		var rm models.ReadMessage
		if err := rows.StructScan(&rm); err != nil {
			return nil, utils.NewAppError(utils.ErrDatabase, "failed to scan read receipt", err)
		}
		created = append(created, &rm)
	}
	if err := rows.Err(); err != nil {
		return nil, utils.NewAppError(utils.ErrDatabase, "failed to read created receipts", err)
	}
	return created, nil
}
