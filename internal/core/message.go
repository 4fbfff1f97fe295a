package core

import "time"

// Message is the domain model for a chat message. An empty To means the
// message is a broadcast visible to every connected client.
type Message struct {
	ID        int64
	From      string
	To        string
	Body      string
	CreatedAt time.Time
}

// Broadcast reports whether the message has no target identity.
func (m Message) Broadcast() bool {
	return m.To == ""
}
