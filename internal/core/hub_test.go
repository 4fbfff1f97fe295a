package core

import (
	"context"
	"fmt"
	"testing"
	"time"
)

func startHub(t *testing.T, st *fakeStore) *Hub {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	var hub *Hub
	if st == nil {
		hub = NewHub(nil, 0, nil)
	} else {
		hub = NewHub(st, 0, nil)
	}
	go hub.Run(ctx)
	return hub
}

func register(t *testing.T, hub *Hub, id string, alreadyConnected int) *Client {
	t.Helper()

	c := NewClient(id)
	hub.RegisterClient(c)
	waitConnections(t, hub, alreadyConnected+1)
	return c
}

func TestHubIdentifyBroadcastsPresence(t *testing.T) {
	hub := startHub(t, nil)

	alice := register(t, hub, "a", 0)
	bob := register(t, hub, "b", 1)

	alice.Commands <- &Command{Kind: CommandIdentify, Identity: "alice"}

	// Everyone, identified or not, sees the presence change.
	for _, c := range []*Client{alice, bob} {
		ev := mustEvent(t, c.Events, EventPresenceChanged)
		if ev.User != "alice" || ev.Status != PresenceOnline {
			t.Fatalf("unexpected presence event: %+v", ev)
		}
		online := mustEvent(t, c.Events, EventOnlineUsers)
		if len(online.Users) != 1 || online.Users[0] != "alice" {
			t.Fatalf("unexpected online users: %v", online.Users)
		}
	}
}

func TestHubIdentifyEmptyIdentityRejected(t *testing.T) {
	hub := startHub(t, nil)

	alice := register(t, hub, "a", 0)
	alice.Commands <- &Command{Kind: CommandIdentify, Identity: ""}

	ev := mustEvent(t, alice.Events, EventError)
	if ev.Error == nil || ev.Error.Code != ErrCodeBadRequest {
		t.Fatalf("expected bad_request error, got %+v", ev)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	stats, err := hub.Snapshot(ctx)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if len(stats.Identities) != 0 {
		t.Fatalf("registry should be empty, got %v", stats.Identities)
	}
}

func TestHubSameIdentityLastWriterWins(t *testing.T) {
	hub := startHub(t, newFakeStore())

	first := register(t, hub, "a", 0)
	second := register(t, hub, "b", 1)
	bob := register(t, hub, "c", 2)

	first.Commands <- &Command{Kind: CommandIdentify, Identity: "alice"}
	mustEvent(t, first.Events, EventOnlineUsers)
	second.Commands <- &Command{Kind: CommandIdentify, Identity: "alice"}
	mustEvent(t, second.Events, EventOnlineUsers)
	bob.Commands <- &Command{Kind: CommandIdentify, Identity: "bob"}
	mustEvent(t, bob.Events, EventOnlineUsers)

	bob.Commands <- &Command{Kind: CommandPrivateMessage, From: "bob", To: "alice", Body: "hey"}

	ev := mustEvent(t, second.Events, EventPrivateMessage)
	if ev.Message.From != "bob" || ev.Message.To != "alice" || ev.Message.Body != "hey" {
		t.Fatalf("unexpected private message: %+v", ev)
	}
	// The ousted connection stays open but is no longer addressable.
	ensureNoEvent(t, first.Events, EventPrivateMessage)
}

func TestHubGroupMessageBroadcastIncludesSender(t *testing.T) {
	st := newFakeStore()
	hub := startHub(t, st)

	alice := register(t, hub, "a", 0)
	bob := register(t, hub, "b", 1)

	alice.Commands <- &Command{Kind: CommandGroupMessage, From: "alice", Body: "hi"}

	for _, c := range []*Client{alice, bob} {
		ev := mustEvent(t, c.Events, EventGroupMessage)
		if ev.Message.From != "alice" || ev.Message.Body != "hi" {
			t.Fatalf("unexpected group message: %+v", ev)
		}
	}

	saved := st.saved()
	if len(saved) != 1 {
		t.Fatalf("expected 1 persisted message, got %d", len(saved))
	}
	if saved[0].To != nil {
		t.Fatalf("broadcast message must have no target")
	}
}

func TestHubPrivateMessageDeliveredAndEchoed(t *testing.T) {
	st := newFakeStore()
	hub := startHub(t, st)

	alice := register(t, hub, "a", 0)
	bob := register(t, hub, "b", 1)

	bob.Commands <- &Command{Kind: CommandIdentify, Identity: "bob"}
	mustEvent(t, bob.Events, EventOnlineUsers)

	alice.Commands <- &Command{Kind: CommandPrivateMessage, From: "alice", To: "bob", Body: "hey"}

	for _, c := range []*Client{alice, bob} {
		ev := mustEvent(t, c.Events, EventPrivateMessage)
		if ev.Message.From != "alice" || ev.Message.To != "bob" || ev.Message.Body != "hey" {
			t.Fatalf("unexpected private message: %+v", ev)
		}
	}

	saved := st.saved()
	if len(saved) != 1 {
		t.Fatalf("expected 1 persisted message, got %d", len(saved))
	}
	if saved[0].To == nil || *saved[0].To != "bob" {
		t.Fatalf("persisted message should target bob")
	}
}

func TestHubPrivateMessageUnknownTarget(t *testing.T) {
	st := newFakeStore()
	hub := startHub(t, st)

	alice := register(t, hub, "a", 0)
	alice.Commands <- &Command{Kind: CommandPrivateMessage, From: "alice", To: "carol", Body: "hey"}

	ev := mustEvent(t, alice.Events, EventUserNotFound)
	if ev.User != "carol" {
		t.Fatalf("expected carol to be reported missing, got %q", ev.User)
	}
	if len(st.saved()) != 0 {
		t.Fatalf("nothing should be persisted for an unresolved target")
	}
}

func TestHubDisconnectBroadcastsOffline(t *testing.T) {
	hub := startHub(t, nil)

	alice := register(t, hub, "a", 0)
	bob := register(t, hub, "b", 1)

	alice.Commands <- &Command{Kind: CommandIdentify, Identity: "alice"}
	mustEvent(t, alice.Events, EventOnlineUsers)
	bob.Commands <- &Command{Kind: CommandIdentify, Identity: "bob"}
	mustEvent(t, bob.Events, EventOnlineUsers)

	hub.UnregisterClient(alice)

	ev := mustEvent(t, bob.Events, EventPresenceChanged)
	if ev.User != "alice" || ev.Status != PresenceOffline {
		t.Fatalf("unexpected presence event: %+v", ev)
	}
	online := mustEvent(t, bob.Events, EventOnlineUsers)
	if len(online.Users) != 1 || online.Users[0] != "bob" {
		t.Fatalf("unexpected online users after disconnect: %v", online.Users)
	}

	// Disconnecting the same client again is a no-op.
	hub.UnregisterClient(alice)
	ensureNoEvent(t, bob.Events, EventPresenceChanged)
	waitConnections(t, hub, 1)
}

func TestHubAnonymousDisconnectIsSilent(t *testing.T) {
	hub := startHub(t, nil)

	anon := register(t, hub, "a", 0)
	bob := register(t, hub, "b", 1)

	hub.UnregisterClient(anon)
	waitConnections(t, hub, 1)

	ensureNoEvent(t, bob.Events, EventPresenceChanged)
}

func TestHubHistoryReplayOnConnect(t *testing.T) {
	st := newFakeStore()
	st.seed("alice", "", "first")
	st.seed("bob", "alice", "not for everyone")
	st.seed("bob", "", "second")
	hub := startHub(t, st)

	c := register(t, hub, "a", 0)

	ev := mustEvent(t, c.Events, EventGroupMessage)
	if ev.Message.Body != "first" {
		t.Fatalf("expected oldest broadcast first, got %+v", ev.Message)
	}
	ev = mustEvent(t, c.Events, EventGroupMessage)
	if ev.Message.Body != "second" {
		t.Fatalf("expected second broadcast, got %+v", ev.Message)
	}
	ensureNoEvent(t, c.Events, EventPrivateMessage)
}

func TestHubEmptyStoreNoReplay(t *testing.T) {
	hub := startHub(t, newFakeStore())

	c := register(t, hub, "a", 0)
	ensureNoEvent(t, c.Events, EventGroupMessage)
}

func TestHubIdentifyReplaysParticipantHistory(t *testing.T) {
	st := newFakeStore()
	st.seed("alice", "bob", "one")
	st.seed("carol", "alice", "two")
	st.seed("carol", "dave", "unrelated")
	hub := startHub(t, st)

	c := register(t, hub, "a", 0)
	c.Commands <- &Command{Kind: CommandIdentify, Identity: "alice"}

	ev := mustEvent(t, c.Events, EventPrivateMessage)
	if ev.Message.Body != "one" {
		t.Fatalf("expected oldest private message first, got %+v", ev.Message)
	}
	ev = mustEvent(t, c.Events, EventPrivateMessage)
	if ev.Message.Body != "two" {
		t.Fatalf("expected second private message, got %+v", ev.Message)
	}
	ensureNoEvent(t, c.Events, EventPrivateMessage)
}

func TestHubNewClientBufferCoversHistoryLimit(t *testing.T) {
	st := newFakeStore()
	for i := 0; i < 200; i++ {
		st.seed("alice", "", fmt.Sprintf("m%d", i))
	}

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	hub := NewHub(st, 200, nil)
	go hub.Run(ctx)

	c := hub.NewClient("a")
	if cap(c.Events) < 200 {
		t.Fatalf("event buffer %d cannot absorb a 200-message replay", cap(c.Events))
	}

	// Register without draining; the replay must fit the buffer whole.
	hub.RegisterClient(c)
	waitConnections(t, hub, 1)

	for i := 0; i < 200; i++ {
		ev := mustEvent(t, c.Events, EventGroupMessage)
		if want := fmt.Sprintf("m%d", i); ev.Message.Body != want {
			t.Fatalf("replay %d: got %q, want %q", i, ev.Message.Body, want)
		}
	}
}

func TestHubStorageFailureBlocksDelivery(t *testing.T) {
	st := newFakeStore()
	st.failSave = true
	hub := startHub(t, st)

	alice := register(t, hub, "a", 0)
	bob := register(t, hub, "b", 1)

	alice.Commands <- &Command{Kind: CommandGroupMessage, From: "alice", Body: "hi"}

	ev := mustEvent(t, alice.Events, EventError)
	if ev.Error == nil || ev.Error.Code != ErrCodeStorageFailure {
		t.Fatalf("expected storage_failure, got %+v", ev)
	}
	// Nothing is delivered without a durable write.
	ensureNoEvent(t, bob.Events, EventGroupMessage)
	ensureNoEvent(t, alice.Events, EventGroupMessage)
}

func TestHubReadReceiptNotifiesOriginalSender(t *testing.T) {
	hub := startHub(t, nil)

	alice := register(t, hub, "a", 0)
	bob := register(t, hub, "b", 1)

	bob.Commands <- &Command{Kind: CommandIdentify, Identity: "bob"}
	mustEvent(t, bob.Events, EventOnlineUsers)

	// alice read bob's messages; bob, the original sender, is notified.
	alice.Commands <- &Command{Kind: CommandReadReceipt, From: "alice", To: "bob"}

	ev := mustEvent(t, bob.Events, EventReadReceipt)
	if ev.From != "alice" {
		t.Fatalf("expected receipt from alice, got %+v", ev)
	}
}

func TestHubReadReceiptUnknownTargetSilent(t *testing.T) {
	hub := startHub(t, nil)

	alice := register(t, hub, "a", 0)
	alice.Commands <- &Command{Kind: CommandReadReceipt, From: "alice", To: "ghost"}

	ensureNoEvent(t, alice.Events, EventError)
	ensureNoEvent(t, alice.Events, EventUserNotFound)
}
