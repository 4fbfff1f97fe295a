package proto

import "encoding/json"

// Inbound is the envelope for messages coming from the client.
type Inbound struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

const (
	InboundTypeIdentify       = "identify"
	InboundTypeGroupMessage   = "groupMessage"
	InboundTypePrivateMessage = "privateMessage"
	InboundTypeReadReceipt    = "readReceipt"

	OutboundTypeEvent = "event"
	OutboundTypeError = "error"

	EventGroupMessage    = "groupMessage"
	EventPrivateMessage  = "privateMessage"
	EventUserNotFound    = "userNotFound"
	EventPresenceChanged = "presenceChanged"
	EventOnlineUsers     = "onlineUsers"
	EventReadReceipt     = "readReceipt"
)

// IdentifyData claims a username for the connection.
type IdentifyData struct {
	Identity string `json:"identity"`
}

// GroupMessageData is a broadcast message from the client.
type GroupMessageData struct {
	From string `json:"from"`
	Body string `json:"body"`
}

// PrivateMessageData is a directed message from the client.
type PrivateMessageData struct {
	From string `json:"from"`
	To   string `json:"to"`
	Body string `json:"body"`
}

// ReadReceiptData tells the identity named in To that From has read their
// messages.
type ReadReceiptData struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// Outbound is the envelope for messages sent to the client.
type Outbound struct {
	Type  string `json:"type"`
	Event string `json:"event,omitempty"`
	Data  any    `json:"data,omitempty"`
	Error *Error `json:"error,omitempty"`
}

// EventGroupMessageData is delivered to every connection, live or as history
// replay.
type EventGroupMessageData struct {
	From string `json:"from"`
	Body string `json:"body"`
}

// EventPrivateMessageData is delivered to the sender and the resolved
// recipient, live or as history replay.
type EventPrivateMessageData struct {
	From string `json:"from"`
	To   string `json:"to"`
	Body string `json:"body"`
}

// EventPresenceChangedData announces an identity going online or offline.
type EventPresenceChangedData struct {
	User   string `json:"user"`
	Status string `json:"status"`
}

// EventReadReceiptData is delivered to the original sender.
type EventReadReceiptData struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// Error describes a protocol-level error response.
type Error struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
}
