package store

import (
	"context"
	"time"
)

// Message represents a persisted chat message. To is nil for broadcast
// messages. Messages are append-only; there is no update or delete path.
type Message struct {
	ID        int64
	From      string
	To        *string
	Body      string
	CreatedAt time.Time
}

// MessageStore handles message persistence.
type MessageStore interface {
	// SaveMessage persists a message, assigning ID and, when unset,
	// CreatedAt. The stored order is monotonic in CreatedAt with ties
	// broken by insertion order.
	SaveMessage(ctx context.Context, msg *Message) error

	// ListBroadcast returns the most recent broadcast messages (To is
	// nil), at most limit, in ascending timestamp order.
	ListBroadcast(ctx context.Context, limit int) ([]*Message, error)

	// ListForParticipant returns the most recent messages sent by or
	// addressed to identity, at most limit, in ascending timestamp order.
	ListForParticipant(ctx context.Context, identity string, limit int) ([]*Message, error)
}

// Store aggregates all storage interfaces.
type Store interface {
	MessageStore

	// Close closes the underlying database connection.
	Close() error
}
