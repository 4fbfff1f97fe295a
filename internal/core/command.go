package core

// CommandKind describes what the client wants to do.
type CommandKind int

const (
	// CommandIdentify claims a username for the connection.
	CommandIdentify CommandKind = iota
	// CommandGroupMessage sends a message to every connected client.
	CommandGroupMessage
	// CommandPrivateMessage sends a message to a single identity.
	CommandPrivateMessage
	// CommandReadReceipt notifies the original sender that their messages
	// have been read.
	CommandReadReceipt
)

// Command represents an action requested by a client. From is taken from the
// command payload, not from the session identity; the protocol does not
// verify sender authenticity.
type Command struct {
	Kind     CommandKind
	Identity string
	From     string
	To       string
	Body     string
}
