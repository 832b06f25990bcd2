// internal/database/postgres.go
package database

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// PostgresDB represents a PostgreSQL database connection
type PostgresDB struct {
	DB *sqlx.DB
}

// NewPostgresDB creates a new PostgreSQL database connection
func NewPostgresDB(connectionString string) (*PostgresDB, error) {
	db, err := sqlx.Connect("postgres", connectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL: %v", err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping PostgreSQL: %v", err)
	}

	log.Println("Successfully connected to PostgreSQL!")

	return &PostgresDB{
		DB: db,
	}, nil
}

// Close closes the database connection
func (p *PostgresDB) Close(ctx context.Context) error {
	log.Println("Closing PostgreSQL connection...")
	return p.DB.Close()
}

// InitializeTables creates all necessary tables if they don't exist
func (p *PostgresDB) InitializeTables(ctx context.Context) error {
	// Users table
	_, err := p.DB.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS users (
			id UUID PRIMARY KEY,
			username VARCHAR(50) UNIQUE NOT NULL,
			email VARCHAR(100) UNIQUE NOT NULL,
			password_hash VARCHAR(100) NOT NULL,
			created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create users table: %v", err)
	}

	// Conversations table
	_, err = p.DB.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS conversations (
			id UUID PRIMARY KEY,
			name VARCHAR(64),
			description TEXT,
			is_group BOOLEAN NOT NULL,
			created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create conversations table: %v", err)
	}

	// Conversation members table
	_, err = p.DB.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS conversation_members (
			conversation_id UUID NOT NULL REFERENCES conversations(id),
			user_id UUID NOT NULL REFERENCES users(id),
			is_admin BOOLEAN NOT NULL DEFAULT FALSE,
			joined_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
			PRIMARY KEY (conversation_id, user_id)
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create conversation_members table: %v", err)
	}

	// Private pairs table. The primary key on the normalized pair is what
	// guarantees at most one private conversation per unordered user pair,
	// even under concurrent creation attempts from multiple processes.
	_, err = p.DB.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS private_pairs (
			user_lo UUID NOT NULL REFERENCES users(id),
			user_hi UUID NOT NULL REFERENCES users(id),
			conversation_id UUID NOT NULL REFERENCES conversations(id),
			PRIMARY KEY (user_lo, user_hi)
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create private_pairs table: %v", err)
	}

	// Messages table
	_, err = p.DB.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS messages (
			id UUID PRIMARY KEY,
			conversation_id UUID NOT NULL REFERENCES conversations(id),
			sender_id UUID NOT NULL REFERENCES users(id),
			content TEXT NOT NULL,
			created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create messages table: %v", err)
	}

	_, err = p.DB.ExecContext(ctx, `
		CREATE INDEX IF NOT EXISTS idx_messages_conversation_created
		ON messages (conversation_id, created_at)
	`)
	if err != nil {
		return fmt.Errorf("failed to create messages index: %v", err)
	}

	// Read receipts table. ON DELETE CASCADE gives the message-to-receipts
	// ownership: deleting a message removes its read rows with it.
	_, err = p.DB.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS read_messages (
			message_id UUID NOT NULL REFERENCES messages(id) ON DELETE CASCADE,
			user_id UUID NOT NULL REFERENCES users(id),
			read_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
			PRIMARY KEY (message_id, user_id)
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create read_messages table: %v", err)
	}

	return nil
}

// isUniqueViolation reports whether err is a Postgres unique constraint
// violation, which we treat as losing a race to an equivalent operation.
func isUniqueViolation(err error) bool {
	if pqErr, ok := err.(*pq.Error); ok {
		return pqErr.Code == "23505"
	}
	return false
}

// isForeignKeyViolation reports whether err is a Postgres foreign key
// violation (a referenced row does not exist).
func isForeignKeyViolation(err error) bool {
	if pqErr, ok := err.(*pq.Error); ok {
		return pqErr.Code == "23503"
	}
	return false
}
