package core

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/talkline/talkline-server/internal/store"
)

const (
	// DefaultHistoryLimit caps how many messages are replayed to a client.
	DefaultHistoryLimit = 50

	storeTimeout = 5 * time.Second
)

// Hub owns the presence registry and all connected clients. A single Run
// goroutine serializes registry mutation and target resolution, so each
// event's observable side effects are atomic from other connections'
// viewpoint. Store I/O runs off-loop on per-client job queues: connections
// proceed in parallel while each connection's events stay in arrival order.
type Hub struct {
	store        store.MessageStore
	log          zerolog.Logger
	historyLimit int

	attach   chan *Client
	detach   chan *Client
	commands chan clientCommand
	stats    chan chan Stats
	quit     chan struct{}

	clients  map[*Client]struct{}
	registry *PresenceRegistry
}

type clientCommand struct {
	client *Client
	cmd    *Command
}

// Stats is a point-in-time view of the hub, served by the run loop.
type Stats struct {
	Connections int
	Identities  []string
}

// NewHub creates a hub. The store may be nil, in which case nothing is
// persisted or replayed (used by tests).
func NewHub(st store.MessageStore, historyLimit int, logger *zerolog.Logger) *Hub {
	if historyLimit <= 0 {
		historyLimit = DefaultHistoryLimit
	}
	lg := zerolog.Nop()
	if logger != nil {
		lg = *logger
	}
	return &Hub{
		store:        st,
		log:          lg,
		historyLimit: historyLimit,
		attach:       make(chan *Client),
		detach:       make(chan *Client),
		commands:     make(chan clientCommand),
		stats:        make(chan chan Stats),
		quit:         make(chan struct{}),
		clients:      make(map[*Client]struct{}),
		registry:     NewPresenceRegistry(),
	}
}

// Run processes hub traffic until ctx is cancelled. It must be running
// before any client is registered.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.quit)
	for {
		select {
		case c := <-h.attach:
			h.handleAttach(c)
		case c := <-h.detach:
			h.handleDetach(c)
		case cc := <-h.commands:
			h.handleCommand(cc.client, cc.cmd)
		case reply := <-h.stats:
			reply <- Stats{
				Connections: len(h.clients),
				Identities:  h.registry.Identities(),
			}
		case <-ctx.Done():
			return
		}
	}
}

// NewClient builds a client whose event buffer can absorb a full history
// replay before the transport write loop starts draining, on top of the
// default headroom for live traffic.
func (h *Hub) NewClient(id string) *Client {
	return newClient(id, h.historyLimit+defaultEventBuffer)
}

// RegisterClient replays broadcast history to the client and then attaches
// it to the live set. The client sees no live event before the replay, and
// its commands are not processed until it is attached.
func (h *Hub) RegisterClient(c *Client) {
	go func() {
		h.replayBroadcastHistory(c)
		select {
		case h.attach <- c:
		case <-h.quit:
		}
	}()
}

// UnregisterClient detaches the client. Safe to call more than once; the
// second call is a no-op.
func (h *Hub) UnregisterClient(c *Client) {
	select {
	case h.detach <- c:
	case <-h.quit:
	}
}

// Snapshot returns current hub stats. Safe for any goroutine; the request is
// answered by the run loop.
func (h *Hub) Snapshot(ctx context.Context) (Stats, error) {
	reply := make(chan Stats, 1)
	select {
	case h.stats <- reply:
	case <-ctx.Done():
		return Stats{}, ctx.Err()
	case <-h.quit:
		return Stats{}, ErrHubStopped
	}
	select {
	case s := <-reply:
		return s, nil
	case <-ctx.Done():
		return Stats{}, ctx.Err()
	}
}

func (h *Hub) handleAttach(c *Client) {
	if c.state == StateClosed {
		return
	}
	h.clients[c] = struct{}{}
	go c.runJobs(h.quit)
	go h.pumpCommands(c)
	h.log.Debug().Str("client_id", c.ID).Msg("client attached")
}

func (h *Hub) handleDetach(c *Client) {
	if c.state == StateClosed {
		return
	}
	c.state = StateClosed
	close(c.done)
	delete(h.clients, c)

	identity, had := h.registry.Remove(c)
	h.log.Debug().Str("client_id", c.ID).Str("identity", identity).Msg("client detached")
	if !had {
		return
	}
	h.broadcast(&Event{Kind: EventPresenceChanged, User: identity, Status: PresenceOffline})
	h.broadcast(&Event{Kind: EventOnlineUsers, Users: h.registry.Identities()})
}

func (h *Hub) handleCommand(c *Client, cmd *Command) {
	if c.state == StateClosed {
		return
	}
	switch cmd.Kind {
	case CommandIdentify:
		h.handleIdentify(c, cmd.Identity)
	case CommandGroupMessage:
		h.handleGroupMessage(c, cmd)
	case CommandPrivateMessage:
		h.handlePrivateMessage(c, cmd)
	case CommandReadReceipt:
		h.handleReadReceipt(c, cmd)
	}
}

func (h *Hub) handleIdentify(c *Client, identity string) {
	if identity == "" {
		c.send(&Event{Kind: EventError, Error: coreError(ErrCodeBadRequest, "identity is required")})
		return
	}
	h.registry.SetIdentity(identity, c)
	c.state = StateIdentified
	h.log.Info().Str("client_id", c.ID).Str("identity", identity).Msg("identity claimed")

	go h.replayParticipantHistory(c, identity)

	h.broadcast(&Event{Kind: EventPresenceChanged, User: identity, Status: PresenceOnline})
	h.broadcast(&Event{Kind: EventOnlineUsers, Users: h.registry.Identities()})
}

func (h *Hub) handleGroupMessage(c *Client, cmd *Command) {
	rec := &store.Message{From: cmd.From, Body: cmd.Body}
	targets := h.snapshotClients()
	h.enqueue(c, func() {
		if err := h.save(rec); err != nil {
			h.log.Error().Err(err).Str("from", cmd.From).Msg("persist group message")
			c.send(&Event{Kind: EventError, Error: coreError(ErrCodeStorageFailure, "message not delivered")})
			return
		}
		ev := &Event{Kind: EventGroupMessage, Message: fromRecord(rec)}
		for _, t := range targets {
			t.send(ev)
		}
	})
}

func (h *Hub) handlePrivateMessage(c *Client, cmd *Command) {
	target, ok := h.registry.Resolve(cmd.To)
	if !ok {
		c.send(&Event{Kind: EventUserNotFound, User: cmd.To})
		return
	}
	to := cmd.To
	rec := &store.Message{From: cmd.From, To: &to, Body: cmd.Body}
	h.enqueue(c, func() {
		if err := h.save(rec); err != nil {
			h.log.Error().Err(err).Str("from", cmd.From).Str("to", cmd.To).Msg("persist private message")
			c.send(&Event{Kind: EventError, Error: coreError(ErrCodeStorageFailure, "message not delivered")})
			return
		}
		ev := &Event{Kind: EventPrivateMessage, Message: fromRecord(rec)}
		target.send(ev)
		c.send(ev)
	})
}

func (h *Hub) handleReadReceipt(c *Client, cmd *Command) {
	target, ok := h.registry.Resolve(cmd.To)
	if !ok {
		// The original sender is offline; receipts are best-effort.
		return
	}
	// The reader is named in both fields, matching the wire format clients
	// already expect.
	target.send(&Event{Kind: EventReadReceipt, From: cmd.From, To: cmd.From})
}

// pumpCommands forwards one client's commands into the run loop, keeping
// per-connection arrival order.
func (h *Hub) pumpCommands(c *Client) {
	for {
		select {
		case cmd := <-c.Commands:
			select {
			case h.commands <- clientCommand{client: c, cmd: cmd}:
			case <-c.done:
				return
			case <-h.quit:
				return
			}
		case <-c.done:
			return
		case <-h.quit:
			return
		}
	}
}

// enqueue puts persistence work on the client's job queue. If the queue is
// saturated the event is refused rather than stalling the run loop.
func (h *Hub) enqueue(c *Client, job func()) {
	select {
	case c.jobs <- job:
	default:
		h.log.Warn().Str("client_id", c.ID).Msg("job queue full, event refused")
		c.send(&Event{Kind: EventError, Error: coreError(ErrCodeStorageFailure, "server busy")})
	}
}

func (h *Hub) broadcast(ev *Event) {
	for c := range h.clients {
		c.send(ev)
	}
}

func (h *Hub) snapshotClients() []*Client {
	out := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		out = append(out, c)
	}
	return out
}

func (h *Hub) save(rec *store.Message) error {
	if h.store == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()
	return h.store.SaveMessage(ctx, rec)
}

func (h *Hub) replayBroadcastHistory(c *Client) {
	if h.store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()
	msgs, err := h.store.ListBroadcast(ctx, h.historyLimit)
	if err != nil {
		h.log.Warn().Err(err).Str("client_id", c.ID).Msg("broadcast history replay failed")
		return
	}
	for _, m := range msgs {
		c.send(&Event{Kind: EventGroupMessage, Message: fromRecord(m)})
	}
}

func (h *Hub) replayParticipantHistory(c *Client, identity string) {
	if h.store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()
	msgs, err := h.store.ListForParticipant(ctx, identity, h.historyLimit)
	if err != nil {
		h.log.Warn().Err(err).Str("identity", identity).Msg("participant history replay failed")
		return
	}
	for _, m := range msgs {
		c.send(&Event{Kind: EventPrivateMessage, Message: fromRecord(m)})
	}
}

func fromRecord(rec *store.Message) Message {
	msg := Message{
		ID:        rec.ID,
		From:      rec.From,
		Body:      rec.Body,
		CreatedAt: rec.CreatedAt,
	}
	if rec.To != nil {
		msg.To = *rec.To
	}
	return msg
}
