package core

// PresenceRegistry is the bidirectional mapping between identities and live
// clients, the single source of truth for who is online. It is not safe for
// concurrent use: the hub run loop is its sole owner and mutator.
type PresenceRegistry struct {
	byIdentity map[string]*Client
	byClient   map[*Client]string
	order      []string
}

// NewPresenceRegistry returns an empty registry.
func NewPresenceRegistry() *PresenceRegistry {
	return &PresenceRegistry{
		byIdentity: make(map[string]*Client),
		byClient:   make(map[*Client]string),
	}
}

// SetIdentity maps identity to client, last writer wins. A client already
// holding a different identity releases it; a connection previously mapped to
// this identity stays open but becomes unaddressable.
func (r *PresenceRegistry) SetIdentity(identity string, c *Client) {
	if prev, ok := r.byClient[c]; ok {
		if prev == identity {
			return
		}
		delete(r.byIdentity, prev)
		r.dropFromOrder(prev)
	}
	if old, ok := r.byIdentity[identity]; ok {
		delete(r.byClient, old)
		r.dropFromOrder(identity)
	}
	r.byIdentity[identity] = c
	r.byClient[c] = identity
	r.order = append(r.order, identity)
}

// Resolve returns the live client for identity, if any.
func (r *PresenceRegistry) Resolve(identity string) (*Client, bool) {
	c, ok := r.byIdentity[identity]
	return c, ok
}

// Remove drops the mapping for the client in both directions and returns the
// identity it held. A no-op for unmapped clients.
func (r *PresenceRegistry) Remove(c *Client) (string, bool) {
	identity, ok := r.byClient[c]
	if !ok {
		return "", false
	}
	delete(r.byClient, c)
	delete(r.byIdentity, identity)
	r.dropFromOrder(identity)
	return identity, true
}

// Identities returns a snapshot of online identities in insertion order of
// the current mappings.
func (r *PresenceRegistry) Identities() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Len returns the number of online identities.
func (r *PresenceRegistry) Len() int {
	return len(r.byIdentity)
}

func (r *PresenceRegistry) dropFromOrder(identity string) {
	for i, id := range r.order {
		if id == identity {
			r.order = append(r.order[:i], r.order[i+1:]...)
			return
		}
	}
}
