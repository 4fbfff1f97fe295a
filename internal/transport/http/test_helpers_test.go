package http

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"

	"github.com/talkline/talkline-server/internal/config"
	"github.com/talkline/talkline-server/internal/core"
	"github.com/talkline/talkline-server/internal/proto"
	"github.com/talkline/talkline-server/internal/store/sqlite"
)

// startTestServer boots the full stack behind httptest: sqlite :memory:
// store, hub run loop, gin router with the websocket endpoint.
func startTestServer(t *testing.T) (*httptest.Server, *sqlite.SQLiteStore) {
	t.Helper()

	st, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("create store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	hub := core.NewHub(st, 0, nil)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)

	server := NewServer(hub, st, config.Config{
		Addr:              ":0",
		ReadHeaderTimeout: time.Second,
		ShutdownTimeout:   time.Second,
		HistoryLimit:      50,
	}, nopLogger())

	ts := httptest.NewServer(server.Handler)
	t.Cleanup(ts.Close)

	return ts, st
}

func dialWS(ctx context.Context, t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()

	wsURL := strings.Replace(ts.URL, "http", "ws", 1) + "/ws"
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		t.Fatalf("dial ws: %v", err)
	}
	t.Cleanup(func() { conn.Close(websocket.StatusNormalClosure, "done") })
	return conn
}

func sendInbound(ctx context.Context, t *testing.T, conn *websocket.Conn, inboundType string, data any) {
	t.Helper()

	payload, err := json.Marshal(data)
	if err != nil {
		t.Fatalf("marshal %s payload: %v", inboundType, err)
	}
	if err := wsjson.Write(ctx, conn, proto.Inbound{Type: inboundType, Data: payload}); err != nil {
		t.Fatalf("write %s: %v", inboundType, err)
	}
}

// readUntilEvent discards outbound frames until one carries the wanted event
// name, then returns its data re-marshalled for decoding into a typed struct.
func readUntilEvent(ctx context.Context, t *testing.T, conn *websocket.Conn, event string) json.RawMessage {
	t.Helper()

	for {
		var outbound proto.Outbound
		if err := wsjson.Read(ctx, conn, &outbound); err != nil {
			t.Fatalf("read waiting for %s: %v", event, err)
		}
		if outbound.Type == proto.OutboundTypeEvent && outbound.Event == event {
			raw, err := json.Marshal(outbound.Data)
			if err != nil {
				t.Fatalf("remarshal %s data: %v", event, err)
			}
			return raw
		}
	}
}

func readError(ctx context.Context, t *testing.T, conn *websocket.Conn) *proto.Error {
	t.Helper()

	for {
		var outbound proto.Outbound
		if err := wsjson.Read(ctx, conn, &outbound); err != nil {
			t.Fatalf("read waiting for error: %v", err)
		}
		if outbound.Type == proto.OutboundTypeError {
			return outbound.Error
		}
	}
}

func nopLogger() *zerolog.Logger {
	l := zerolog.Nop()
	return &l
}
