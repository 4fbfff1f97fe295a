package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/talkline/talkline-server/internal/proto"
)

func main() {
	if err := run(); err != nil {
		log.Printf("ws_smoke: %v", err)
		os.Exit(1)
	}
}

func run() error {
	addr := flag.String("addr", "ws://localhost:8080/ws", "WebSocket address")
	user := flag.String("user", "tester", "identity to claim")
	text := flag.String("text", "hello from smoke test", "message text to send")
	timeout := flag.Duration("timeout", 5*time.Second, "total timeout for the run")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, *addr, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "bye")

	send := func(inboundType string, data any) error {
		payload, marshalErr := json.Marshal(data)
		if marshalErr != nil {
			return fmt.Errorf("marshal %s: %w", inboundType, marshalErr)
		}
		if writeErr := wsjson.Write(ctx, conn, proto.Inbound{Type: inboundType, Data: payload}); writeErr != nil {
			return fmt.Errorf("send %s: %w", inboundType, writeErr)
		}
		return nil
	}

	if err := send(proto.InboundTypeIdentify, proto.IdentifyData{Identity: *user}); err != nil {
		return err
	}
	if err := send(proto.InboundTypeGroupMessage, proto.GroupMessageData{From: *user, Body: *text}); err != nil {
		return err
	}

	// Wait for our own broadcast to come back; that proves the full
	// persist-then-deliver path works.
	for {
		var outbound proto.Outbound
		if err := wsjson.Read(ctx, conn, &outbound); err != nil {
			return fmt.Errorf("read: %w", err)
		}
		if outbound.Type == proto.OutboundTypeError && outbound.Error != nil {
			return fmt.Errorf("server error: %s (%s)", outbound.Error.Msg, outbound.Error.Code)
		}
		if outbound.Event != proto.EventGroupMessage {
			continue
		}
		raw, err := json.Marshal(outbound.Data)
		if err != nil {
			continue
		}
		var msg proto.EventGroupMessageData
		if err := json.Unmarshal(raw, &msg); err != nil {
			continue
		}
		if msg.From == *user && msg.Body == *text {
			fmt.Println("smoke test ok: message echoed back")
			return nil
		}
	}
}
