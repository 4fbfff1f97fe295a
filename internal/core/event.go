package core

// EventKind is a notification the core emits to clients.
type EventKind int

const (
	// EventGroupMessage delivers a broadcast message, live or replayed.
	EventGroupMessage EventKind = iota
	// EventPrivateMessage delivers a directed message, live or replayed.
	EventPrivateMessage
	// EventUserNotFound tells the sender that the target identity is offline.
	EventUserNotFound
	// EventPresenceChanged announces an identity coming online or going offline.
	EventPresenceChanged
	// EventOnlineUsers carries a snapshot of all online identities.
	EventOnlineUsers
	// EventReadReceipt tells the original sender their messages were read.
	EventReadReceipt
	// EventError notifies a client about a domain error.
	EventError
)

// PresenceStatus is the value carried by presence change events.
type PresenceStatus string

const (
	PresenceOnline  PresenceStatus = "online"
	PresenceOffline PresenceStatus = "offline"
)

// Event is sent to clients to describe what happened in the system.
type Event struct {
	Kind    EventKind
	Message Message        // group/private message payloads
	User    string         // presence subject or unresolved target identity
	Status  PresenceStatus // for EventPresenceChanged
	Users   []string       // for EventOnlineUsers
	From    string         // for EventReadReceipt
	To      string         // for EventReadReceipt
	Error   *CoreError     // for EventError
}
