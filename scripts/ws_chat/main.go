package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/talkline/talkline-server/internal/proto"
)

func main() {
	if err := run(); err != nil {
		log.Printf("ws_chat: %v", err)
		os.Exit(1)
	}
}

func run() error {
	addr := flag.String("addr", "ws://localhost:8080/ws", "WebSocket address")
	user := flag.String("user", "cli-user", "identity to claim")
	flag.Parse()

	baseCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(baseCtx)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, *addr, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "bye")

	send := func(inboundType string, data any) {
		payload, marshalErr := json.Marshal(data)
		if marshalErr != nil {
			log.Printf("marshal: %v", marshalErr)
			return
		}
		if writeErr := wsjson.Write(ctx, conn, proto.Inbound{Type: inboundType, Data: payload}); writeErr != nil {
			cancel()
			log.Printf("send: %v", writeErr)
		}
	}

	send(proto.InboundTypeIdentify, proto.IdentifyData{Identity: *user})

	fmt.Printf("Connected to %s as %s\n", *addr, *user)
	fmt.Println("Plain text broadcasts; /pm <user> <text> sends privately; /read <user> sends a read receipt. Ctrl+C to exit.")

	go func() {
		defer cancel()
		readLoop(ctx, conn)
	}()

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		switch {
		case strings.HasPrefix(line, "/pm "):
			rest := strings.SplitN(strings.TrimPrefix(line, "/pm "), " ", 2)
			if len(rest) != 2 {
				fmt.Println("usage: /pm <user> <text>")
				continue
			}
			send(proto.InboundTypePrivateMessage, proto.PrivateMessageData{From: *user, To: rest[0], Body: rest[1]})
		case strings.HasPrefix(line, "/read "):
			target := strings.TrimSpace(strings.TrimPrefix(line, "/read "))
			send(proto.InboundTypeReadReceipt, proto.ReadReceiptData{From: *user, To: target})
		default:
			send(proto.InboundTypeGroupMessage, proto.GroupMessageData{From: *user, Body: line})
		}
		select {
		case <-ctx.Done():
			return nil
		default:
		}
	}

	stop()
	cancel()
	_ = conn.Close(websocket.StatusNormalClosure, "bye")
	return nil
}

func readLoop(ctx context.Context, conn *websocket.Conn) {
	for {
		var outbound map[string]any
		if err := wsjson.Read(ctx, conn, &outbound); err != nil {
			// Treat expected shutdowns quietly.
			if errors.Is(err, context.Canceled) {
				return
			}
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				return
			default:
				log.Printf("read: %v", err)
				return
			}
		}
		pretty, err := json.Marshal(outbound)
		if err != nil {
			continue
		}
		fmt.Printf("<- %s\n", pretty)
	}
}
