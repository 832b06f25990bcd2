// internal/database/user_repository.go
package database

import (
	"context"
	"database/sql"
	"time"

	"pondside/internal/models"
	"pondside/internal/utils"

	"github.com/google/uuid"
)

// GetUser fetches a user by ID.
func (p *PostgresDB) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	query := `SELECT id, username, email, password_hash, created_at FROM users WHERE id = $1`
	var user models.User
	err := p.DB.GetContext(ctx, &user, query, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, utils.NewUserNotFoundError(id.String())
		}
		return nil, utils.NewAppError(utils.ErrDatabase, "failed to query user by id", err)
	}
	return &user, nil
}

// GetUserByEmail fetches a user by email address.
func (p *PostgresDB) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT id, username, email, password_hash, created_at FROM users WHERE email = $1`
	var user models.User
	err := p.DB.GetContext(ctx, &user, query, email)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, utils.NewAppError(utils.ErrUserNotFound, "User not found: "+email, err)
		}
		return nil, utils.NewAppError(utils.ErrDatabase, "failed to query user by email", err)
	}
	return &user, nil
}

// SaveUser inserts a new user record.
func (p *PostgresDB) SaveUser(ctx context.Context, user *models.User) error {
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now()
	}

	query := `
		INSERT INTO users (id, username, email, password_hash, created_at)
		VALUES (:id, :username, :email, :password_hash, :created_at)
	`
	_, err := p.DB.NamedExecContext(ctx, query, user)
	if err != nil {
		if isUniqueViolation(err) {
			return utils.NewAppError(utils.ErrUserAlreadyExists, "username or email already taken", err)
		}
		return utils.NewAppError(utils.ErrDatabase, "failed to create user", err)
	}
	return nil
}
