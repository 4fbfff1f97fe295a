package core

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/talkline/talkline-server/internal/store"
)

func mustEvent(t *testing.T, ch <-chan *Event, kind EventKind) *Event {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		select {
		case ev := <-ch:
			if ev == nil {
				continue
			}
			if ev.Kind == kind {
				return ev
			}
		default:
			time.Sleep(10 * time.Millisecond)
		}
	}
	t.Fatalf("expected event kind %v not received", kind)
	return nil
}

func ensureNoEvent(t *testing.T, ch <-chan *Event, kind EventKind) {
	t.Helper()

	deadline := time.After(200 * time.Millisecond)
	for {
		select {
		case ev := <-ch:
			if ev != nil && ev.Kind == kind {
				t.Fatalf("unexpected event: %+v", ev)
			}
		case <-deadline:
			return
		}
	}
}

// waitConnections polls the hub until the expected number of clients is
// attached. Registration replays history asynchronously, so attachment is
// not immediate.
func waitConnections(t *testing.T, hub *Hub, want int) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	for {
		stats, err := hub.Snapshot(ctx)
		if err != nil {
			t.Fatalf("snapshot: %v", err)
		}
		if stats.Connections == want {
			return
		}
		select {
		case <-ctx.Done():
			t.Fatalf("timed out waiting for %d connections, have %d", want, stats.Connections)
		case <-time.After(10 * time.Millisecond):
		}
	}
}

// fakeStore is an in-memory store.MessageStore for hub tests.
type fakeStore struct {
	mu       sync.Mutex
	messages []*store.Message
	nextID   int64
	failSave bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{}
}

func (f *fakeStore) SaveMessage(_ context.Context, msg *store.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failSave {
		return errors.New("store unavailable")
	}
	f.nextID++
	msg.ID = f.nextID
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}
	saved := *msg
	f.messages = append(f.messages, &saved)
	return nil
}

func (f *fakeStore) ListBroadcast(_ context.Context, limit int) ([]*store.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*store.Message
	for _, m := range f.messages {
		if m.To == nil {
			out = append(out, m)
		}
	}
	return tail(out, limit), nil
}

func (f *fakeStore) ListForParticipant(_ context.Context, identity string, limit int) ([]*store.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*store.Message
	for _, m := range f.messages {
		if m.From == identity || (m.To != nil && *m.To == identity) {
			out = append(out, m)
		}
	}
	return tail(out, limit), nil
}

func (f *fakeStore) saved() []*store.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*store.Message, len(f.messages))
	copy(out, f.messages)
	return out
}

func (f *fakeStore) seed(from, to, body string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	msg := &store.Message{
		ID:        f.nextID,
		From:      from,
		Body:      body,
		CreatedAt: time.Unix(f.nextID, 0).UTC(),
	}
	if to != "" {
		msg.To = &to
	}
	f.messages = append(f.messages, msg)
}

func tail(msgs []*store.Message, limit int) []*store.Message {
	if len(msgs) > limit {
		return msgs[len(msgs)-limit:]
	}
	return msgs
}
