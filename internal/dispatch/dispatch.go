// Package dispatch routes direct messages: durable persistence first, then
// live delivery or deferral, sender acknowledgements, read receipts, typing
// relays, and backlog redelivery on reconnect.
package dispatch

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/roostchat/roost/internal/event"
	"github.com/roostchat/roost/internal/metrics"
	"github.com/roostchat/roost/internal/models"
	"github.com/roostchat/roost/internal/registry"
	"github.com/roostchat/roost/internal/store"
)

var (
	// ErrEmptyContent rejects blank messages before anything is persisted.
	ErrEmptyContent = errors.New("dispatch: empty message content")
	// ErrMissingRecipient rejects sends without a recipient id.
	ErrMissingRecipient = errors.New("dispatch: missing recipient")
)

// Dispatcher implements the message delivery paths over the registry and the
// persistence collaborators.
type Dispatcher struct {
	reg      *registry.Registry
	messages store.MessageStore
	users    store.UserStore
	metrics  *metrics.Metrics
}

// New wires a dispatcher.
func New(reg *registry.Registry, messages store.MessageStore, users store.UserStore, m *metrics.Metrics) *Dispatcher {
	return &Dispatcher{reg: reg, messages: messages, users: users, metrics: m}
}

// SendMessage persists and routes one direct message. The returned message
// reflects the delivered flag as of this call. The sender is acknowledged
// through their sessions regardless of recipient reachability; validation
// and persistence errors are returned instead (reported to the sender only).
func (d *Dispatcher) SendMessage(senderID, recipientID, content string) (*models.Message, error) {
	if recipientID == "" {
		return nil, ErrMissingRecipient
	}
	if strings.TrimSpace(content) == "" {
		return nil, ErrEmptyContent
	}

	// Durable write precedes any emission; a store failure leaves no
	// half-committed state.
	msg, err := d.messages.Create(senderID, recipientID, content, false)
	if err != nil {
		return nil, fmt.Errorf("dispatch: persist message: %w", err)
	}
	d.metrics.MessagesSent.Inc()

	online := d.reg.IsReachable(recipientID)
	delivered := false
	if online {
		if d.reg.EmitToUser(recipientID, event.MessageReceive(*msg, false)) {
			if err := d.messages.MarkDelivered([]string{msg.ID}); err != nil {
				// Already emitted; the flag stays false and the message may
				// be redelivered on the next reconnect (at-least-once).
				slog.Error("delivered flag write failed", "message_id", msg.ID, "error", err)
			} else {
				now := time.Now().UTC()
				msg.Delivered = true
				msg.DeliveredAt = &now
				delivered = true
				d.metrics.DeliveredLive.Inc()
			}
		}
	}

	d.reg.EmitToUser(senderID, event.MessageSent(*msg, delivered, online))

	awayText := d.standingAwayText(recipientID, online)
	if !online {
		d.reg.EmitToUser(senderID, event.DeliveryStatus(msg.ID, recipientID, awayText))
	}
	if awayText != "" {
		d.autoRespond(recipientID, senderID, awayText)
	}
	return msg, nil
}

// standingAwayText returns the recipient's away message: the live registry
// snapshot for reachable users, the durable row for everyone else.
func (d *Dispatcher) standingAwayText(recipientID string, online bool) string {
	if online {
		if status, text, _, ok := d.reg.PresenceOf(recipientID); ok && status == models.StatusAway {
			return text
		}
		return ""
	}
	// An away message written before the user dropped offline stays standing.
	_, text, err := d.users.GetStatus(recipientID)
	if err != nil {
		slog.Warn("away text lookup failed", "user_id", recipientID, "error", err)
		return ""
	}
	return text
}

// autoRespond persists and delivers the synthetic away reply, tagged so
// clients can tell it apart from a typed message.
func (d *Dispatcher) autoRespond(fromID, toID, awayText string) {
	reply, err := d.messages.Create(fromID, toID, awayText, true)
	if err != nil {
		slog.Error("auto-response persist failed", "from", fromID, "to", toID, "error", err)
		return
	}
	d.metrics.AutoResponses.Inc()
	if d.reg.EmitToUser(toID, event.MessageReceive(*reply, false)) {
		if err := d.messages.MarkDelivered([]string{reply.ID}); err != nil {
			slog.Error("auto-response delivered flag write failed", "message_id", reply.ID, "error", err)
		}
	}
}

// MarkRead flips the read flag on every message from counterpartID to
// readerID and, only if the counterpart is reachable, emits a read receipt.
// Receipts are never queued for offline counterparts.
func (d *Dispatcher) MarkRead(readerID, counterpartID string) (int64, error) {
	n, err := d.messages.MarkRead(readerID, counterpartID)
	if err != nil {
		return 0, fmt.Errorf("dispatch: mark read: %w", err)
	}
	if d.reg.IsReachable(counterpartID) {
		d.reg.EmitToUser(counterpartID, event.ReadReceipt(readerID))
	}
	return n, nil
}

// UnreadCounts returns the reader's unread message counts grouped by sender,
// for the connection greeting.
func (d *Dispatcher) UnreadCounts(userID string) (map[string]int, error) {
	counts, err := d.messages.CountUnread(userID)
	if err != nil {
		return nil, fmt.Errorf("dispatch: unread counts for %s: %w", userID, err)
	}
	return counts, nil
}

// Typing relays a typing indicator. Not persisted, dropped silently when the
// recipient is unreachable.
func (d *Dispatcher) Typing(fromID, toID string, isTyping bool) {
	if !d.reg.IsReachable(toID) {
		return
	}
	d.reg.EmitToUser(toID, event.TypingIndicator(fromID, isTyping))
}
