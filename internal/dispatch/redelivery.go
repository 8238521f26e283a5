package dispatch

import (
	"fmt"
	"time"

	"github.com/roostchat/roost/internal/event"
)

// FlushBacklog replays the user's undelivered messages, in original send
// order, to their freshly connected session(s), then commits the whole batch
// as delivered and emits one summary event. Runs on the user's 0→1 session
// edge, before the online fan-out completes.
//
// The durable mark follows the emission, so a crash in between redelivers
// the batch on the next reconnect: at-least-once, never lost.
func (d *Dispatcher) FlushBacklog(userID string) (int, error) {
	msgs, err := d.messages.FindUndelivered(userID)
	if err != nil {
		return 0, fmt.Errorf("dispatch: backlog query for %s: %w", userID, err)
	}
	if len(msgs) == 0 {
		return 0, nil
	}

	for i := range msgs {
		d.reg.EmitToUser(userID, event.MessageReceive(msgs[i], true))
	}

	ids := make([]string, len(msgs))
	for i := range msgs {
		ids[i] = msgs[i].ID
	}
	if err := d.messages.MarkDelivered(ids); err != nil {
		return 0, fmt.Errorf("dispatch: backlog commit for %s: %w", userID, err)
	}

	now := time.Now().UTC()
	for i := range msgs {
		msgs[i].Delivered = true
		msgs[i].DeliveredAt = &now
	}
	d.reg.EmitToUser(userID, event.BacklogDelivered(msgs))
	d.metrics.BacklogFlushed.Add(float64(len(msgs)))
	return len(msgs), nil
}
