package http

import (
	"encoding/json"

	"github.com/talkline/talkline-server/internal/core"
	"github.com/talkline/talkline-server/internal/proto"
)

// inboundToCommand maps a decoded envelope to a hub command. Malformed
// payloads never escape as hard errors; they come back as a protocol
// error for the sender so the connection stays up.
func inboundToCommand(inbound proto.Inbound) (*core.Command, *proto.Error) {
	switch inbound.Type {
	case proto.InboundTypeIdentify:
		var data proto.IdentifyData
		if err := json.Unmarshal(inbound.Data, &data); err != nil {
			return nil, malformedPayload(inbound.Type)
		}
		if data.Identity == "" {
			return nil, &proto.Error{Code: core.ErrCodeBadRequest, Msg: "identity is required"}
		}
		return &core.Command{
			Kind:     core.CommandIdentify,
			Identity: data.Identity,
		}, nil
	case proto.InboundTypeGroupMessage:
		var data proto.GroupMessageData
		if err := json.Unmarshal(inbound.Data, &data); err != nil {
			return nil, malformedPayload(inbound.Type)
		}
		return &core.Command{
			Kind: core.CommandGroupMessage,
			From: data.From,
			Body: data.Body,
		}, nil
	case proto.InboundTypePrivateMessage:
		var data proto.PrivateMessageData
		if err := json.Unmarshal(inbound.Data, &data); err != nil {
			return nil, malformedPayload(inbound.Type)
		}
		return &core.Command{
			Kind: core.CommandPrivateMessage,
			From: data.From,
			To:   data.To,
			Body: data.Body,
		}, nil
	case proto.InboundTypeReadReceipt:
		var data proto.ReadReceiptData
		if err := json.Unmarshal(inbound.Data, &data); err != nil {
			return nil, malformedPayload(inbound.Type)
		}
		return &core.Command{
			Kind: core.CommandReadReceipt,
			From: data.From,
			To:   data.To,
		}, nil
	default:
		return nil, &proto.Error{Code: core.ErrCodeInvalidMessage, Msg: "unknown message type"}
	}
}

func malformedPayload(inboundType string) *proto.Error {
	return &proto.Error{Code: core.ErrCodeBadRequest, Msg: "malformed " + inboundType + " payload"}
}

func outboundFromEvent(event *core.Event) proto.Outbound {
	switch event.Kind {
	case core.EventGroupMessage:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventGroupMessage,
			Data: proto.EventGroupMessageData{
				From: event.Message.From,
				Body: event.Message.Body,
			},
		}
	case core.EventPrivateMessage:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventPrivateMessage,
			Data: proto.EventPrivateMessageData{
				From: event.Message.From,
				To:   event.Message.To,
				Body: event.Message.Body,
			},
		}
	case core.EventUserNotFound:
		// Data is the bare target identity.
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventUserNotFound,
			Data:  event.User,
		}
	case core.EventPresenceChanged:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventPresenceChanged,
			Data: proto.EventPresenceChangedData{
				User:   event.User,
				Status: string(event.Status),
			},
		}
	case core.EventOnlineUsers:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventOnlineUsers,
			Data:  event.Users,
		}
	case core.EventReadReceipt:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventReadReceipt,
			Data: proto.EventReadReceiptData{
				From: event.From,
				To:   event.To,
			},
		}
	case core.EventError:
		if event.Error == nil {
			return proto.Outbound{Type: proto.OutboundTypeError, Error: &proto.Error{Code: "unknown", Msg: "unknown error"}}
		}
		return proto.Outbound{
			Type:  proto.OutboundTypeError,
			Error: &proto.Error{Code: event.Error.Code, Msg: event.Error.Message},
		}
	default:
		return proto.Outbound{Type: proto.OutboundTypeEvent}
	}
}
