package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/talkline/talkline-server/internal/store"
)

const schema = `
CREATE TABLE IF NOT EXISTS messages (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	from_user  TEXT NOT NULL,
	to_user    TEXT,
	body       TEXT NOT NULL,
	created_at DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_messages_from ON messages(from_user);
CREATE INDEX IF NOT EXISTS idx_messages_to ON messages(to_user);
`

// SQLiteStore implements store.Store for SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// New creates a new SQLite store and applies the schema.
// dbPath is the path to the SQLite database file.
func New(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// SQLite works best with a single connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// SaveMessage persists a message, assigning ID and CreatedAt.
func (s *SQLiteStore) SaveMessage(ctx context.Context, msg *store.Message) error {
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO messages (from_user, to_user, body, created_at)
		VALUES (?, ?, ?, ?)
	`
	var to any
	if msg.To != nil {
		to = *msg.To
	}
	result, err := s.db.ExecContext(ctx, query, msg.From, to, msg.Body, msg.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("get last insert id: %w", err)
	}
	msg.ID = id

	return nil
}

// ListBroadcast returns the most recent broadcast messages in ascending order.
func (s *SQLiteStore) ListBroadcast(ctx context.Context, limit int) ([]*store.Message, error) {
	query := `
		SELECT id, from_user, to_user, body, created_at
		FROM messages
		WHERE to_user IS NULL
		ORDER BY id DESC
		LIMIT ?
	`
	return s.listMessages(ctx, query, limit)
}

// ListForParticipant returns the most recent messages sent by or addressed to
// identity, in ascending order.
func (s *SQLiteStore) ListForParticipant(ctx context.Context, identity string, limit int) ([]*store.Message, error) {
	query := `
		SELECT id, from_user, to_user, body, created_at
		FROM messages
		WHERE from_user = ? OR to_user = ?
		ORDER BY id DESC
		LIMIT ?
	`
	return s.listMessages(ctx, query, identity, identity, limit)
}

func (s *SQLiteStore) listMessages(ctx context.Context, query string, args ...any) ([]*store.Message, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	var messages []*store.Message
	for rows.Next() {
		var msg store.Message
		var to sql.NullString
		if err := rows.Scan(&msg.ID, &msg.From, &to, &msg.Body, &msg.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		if to.Valid {
			msg.To = &to.String
		}
		messages = append(messages, &msg)
	}

	// Reverse to get chronological order.
	for i := 0; i < len(messages)/2; i++ {
		messages[i], messages[len(messages)-1-i] = messages[len(messages)-1-i], messages[i]
	}

	return messages, rows.Err()
}
