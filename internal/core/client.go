package core

// SessionState is the lifecycle state of a connection.
type SessionState int

const (
	// StateAnonymous is the initial state before an identity is claimed.
	StateAnonymous SessionState = iota
	// StateIdentified means the connection has claimed an identity.
	StateIdentified
	// StateClosed is terminal; no transition leaves it.
	StateClosed
)

// Client is a single connection as seen by the core layer. The transport
// feeds Commands and drains Events; everything else is owned by the hub run
// loop and must not be touched from other goroutines.
type Client struct {
	ID       string
	Commands chan *Command
	Events   chan *Event

	state SessionState
	jobs  chan func()
	done  chan struct{}
}

const defaultEventBuffer = 64

// NewClient constructs an anonymous client with default channel buffers.
// Prefer Hub.NewClient, which sizes the event buffer for history replay.
func NewClient(id string) *Client {
	return newClient(id, defaultEventBuffer)
}

func newClient(id string, eventsBuffer int) *Client {
	if eventsBuffer < defaultEventBuffer {
		eventsBuffer = defaultEventBuffer
	}
	return &Client{
		ID:       id,
		Commands: make(chan *Command, 8),
		Events:   make(chan *Event, eventsBuffer),
		jobs:     make(chan func(), 32),
		done:     make(chan struct{}),
	}
}

// send delivers an event without blocking. Slow or gone consumers are
// dropped; delivery is at-most-once best-effort.
func (c *Client) send(ev *Event) bool {
	select {
	case c.Events <- ev:
		return true
	default:
		return false
	}
}

// runJobs executes queued persistence work one job at a time, preserving the
// arrival order of this connection's events. quit is the hub's shutdown
// signal. Jobs accepted before the connection closed still run; only hub
// shutdown abandons the queue.
func (c *Client) runJobs(quit <-chan struct{}) {
	for {
		select {
		case job := <-c.jobs:
			job()
		case <-c.done:
			c.drainJobs()
			return
		case <-quit:
			return
		}
	}
}

func (c *Client) drainJobs() {
	for {
		select {
		case job := <-c.jobs:
			job()
		default:
			return
		}
	}
}
