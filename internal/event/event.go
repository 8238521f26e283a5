// Package event defines the wire protocol spoken over a client connection:
// a closed set of inbound event kinds and the outbound envelopes the server
// emits. Adding an inbound kind means extending Decode and every switch over
// Inbound; there is no silent fallthrough for unknown events.
package event

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/roostchat/roost/internal/models"
)

// Inbound event names.
const (
	NameStatusChange = "status-change"
	NameMessageSend  = "message:send"
	NameMessageRead  = "message:read"
	NameTyping       = "typing"
	NameHeartbeat    = "heartbeat"
)

// Outbound event names.
const (
	NameConnectionEstablished = "connection-established"
	NameBuddyOnline           = "buddy:online"
	NameBuddyOffline          = "buddy:offline"
	NameBuddyStatusChange     = "buddy:status-change"
	NameMessageReceive        = "message:receive"
	NameMessageSent           = "message:sent"
	NameDeliveryStatus        = "message:delivery-status"
	NameMessageReadReceipt    = "message:read"
	NameBacklogDelivered      = "offline-backlog-delivered"
	NameError                 = "error"
)

// ErrUnknownEvent is returned by Decode for event names outside the closed set.
var ErrUnknownEvent = errors.New("event: unknown event name")

// Inbound is the closed union of client-originated events. Only types in this
// package implement it.
type Inbound interface {
	inbound()
}

// StatusChange requests a presence transition for the sending user.
type StatusChange struct {
	Status   string `json:"status"`
	AwayText string `json:"awayText,omitempty"`
}

// SendMessage requests delivery of a direct message.
type SendMessage struct {
	ToUserID string `json:"toUserId"`
	Content  string `json:"content"`
}

// MarkRead marks every message from FromUserID to the sender as read.
type MarkRead struct {
	FromUserID string `json:"fromUserId"`
}

// Typing relays a transient typing indicator.
type Typing struct {
	ToUserID string `json:"toUserId"`
	IsTyping bool   `json:"isTyping"`
}

// Heartbeat keeps the session's activity clock fresh.
type Heartbeat struct{}

func (StatusChange) inbound() {}
func (SendMessage) inbound()  {}
func (MarkRead) inbound()     {}
func (Typing) inbound()       {}
func (Heartbeat) inbound()    {}

type envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// Decode parses a raw client frame into exactly one inbound event kind.
func Decode(raw []byte) (Inbound, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("event: malformed frame: %w", err)
	}

	var (
		ev  Inbound
		err error
	)
	switch env.Event {
	case NameStatusChange:
		var sc StatusChange
		err = unmarshalData(env.Data, &sc)
		ev = sc
	case NameMessageSend:
		var sm SendMessage
		err = unmarshalData(env.Data, &sm)
		ev = sm
	case NameMessageRead:
		var mr MarkRead
		err = unmarshalData(env.Data, &mr)
		ev = mr
	case NameTyping:
		var ty Typing
		err = unmarshalData(env.Data, &ty)
		ev = ty
	case NameHeartbeat:
		ev = Heartbeat{}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, env.Event)
	}
	if err != nil {
		return nil, fmt.Errorf("event: bad %q payload: %w", env.Event, err)
	}
	return ev, nil
}

func unmarshalData(data json.RawMessage, dst any) error {
	if len(data) == 0 {
		return errors.New("missing data")
	}
	return json.Unmarshal(data, dst)
}

// Envelope is an outbound event as written to a client connection.
type Envelope struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

// Marshal encodes the envelope for the wire.
func (e Envelope) Marshal() ([]byte, error) {
	return json.Marshal(e)
}

// ConnectionEstablished greets a freshly authenticated connection with the
// set of the user's buddies that are currently reachable and the unread
// message counts per sender.
func ConnectionEstablished(userID string, online []string, unread map[string]int) Envelope {
	if online == nil {
		online = []string{}
	}
	if unread == nil {
		unread = map[string]int{}
	}
	return Envelope{Event: NameConnectionEstablished, Data: map[string]any{
		"userId": userID,
		"online": online,
		"unread": unread,
	}}
}

// BuddyOnline announces that userID became reachable.
func BuddyOnline(userID string, at time.Time) Envelope {
	return Envelope{Event: NameBuddyOnline, Data: map[string]any{
		"userId": userID,
		"at":     at.UTC().Format(time.RFC3339),
	}}
}

// BuddyOffline announces that userID is no longer reachable.
func BuddyOffline(userID string, at time.Time) Envelope {
	return Envelope{Event: NameBuddyOffline, Data: map[string]any{
		"userId": userID,
		"at":     at.UTC().Format(time.RFC3339),
	}}
}

// BuddyStatusChange announces a presence value change for userID.
func BuddyStatusChange(userID string, status models.Status, awayText string) Envelope {
	data := map[string]any{
		"userId": userID,
		"status": string(status),
	}
	if awayText != "" {
		data["awayText"] = awayText
	}
	return Envelope{Event: NameBuddyStatusChange, Data: data}
}

// MessageReceive carries a message to its recipient. Backlog marks messages
// replayed from the offline queue so clients can render them distinctly.
func MessageReceive(msg models.Message, backlog bool) Envelope {
	return Envelope{Event: NameMessageReceive, Data: map[string]any{
		"message": msg,
		"backlog": backlog,
	}}
}

// MessageSent acknowledges a send to its author.
func MessageSent(msg models.Message, delivered, online bool) Envelope {
	return Envelope{Event: NameMessageSent, Data: map[string]any{
		"message":   msg,
		"delivered": delivered,
		"online":    online,
	}}
}

// DeliveryStatus informs a sender that the recipient is offline, carrying any
// standing away-text.
func DeliveryStatus(messageID, recipientID, awayText string) Envelope {
	data := map[string]any{
		"messageId":   messageID,
		"recipientId": recipientID,
		"online":      false,
	}
	if awayText != "" {
		data["awayText"] = awayText
	}
	return Envelope{Event: NameDeliveryStatus, Data: data}
}

// ReadReceipt tells a sender their messages were read by readerID.
func ReadReceipt(readerID string) Envelope {
	return Envelope{Event: NameMessageReadReceipt, Data: map[string]any{
		"byUserId": readerID,
	}}
}

// TypingIndicator relays a typing state change.
func TypingIndicator(fromUserID string, isTyping bool) Envelope {
	return Envelope{Event: NameTyping, Data: map[string]any{
		"fromUserId": fromUserID,
		"isTyping":   isTyping,
	}}
}

// HeartbeatAck echoes a heartbeat back to the session that sent it.
func HeartbeatAck() Envelope {
	return Envelope{Event: NameHeartbeat}
}

// BacklogDelivered summarizes a completed backlog flush.
func BacklogDelivered(msgs []models.Message) Envelope {
	if msgs == nil {
		msgs = []models.Message{}
	}
	return Envelope{Event: NameBacklogDelivered, Data: map[string]any{
		"count":    len(msgs),
		"messages": msgs,
	}}
}

// Error codes reported to the originating connection.
const (
	CodeBadRequest    = "bad_request"
	CodeInvalidStatus = "invalid_status"
	CodeEmptyMessage  = "empty_message"
	CodeUnknownEvent  = "unknown_event"
	CodeInternal      = "internal"
)

// ErrorEvent reports an operation failure to the connection that caused it.
func ErrorEvent(code, message string) Envelope {
	return Envelope{Event: NameError, Data: map[string]any{
		"code":    code,
		"message": message,
	}}
}
