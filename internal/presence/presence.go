// Package presence implements status changes and buddy fan-out: deciding who
// gets told about a user's presence transitions and pushing those events
// through the session registry.
package presence

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/roostchat/roost/internal/event"
	"github.com/roostchat/roost/internal/metrics"
	"github.com/roostchat/roost/internal/models"
	"github.com/roostchat/roost/internal/registry"
	"github.com/roostchat/roost/internal/store"
)

// ErrInvalidStatus rejects presence values outside the requestable set.
// Offline is not requestable; it is the absence of sessions (Invisible covers
// the "look offline while connected" case).
var ErrInvalidStatus = errors.New("presence: invalid status")

// Service orchestrates presence writes and fan-out. It holds no state of its
// own; the registry and the stores are the state.
type Service struct {
	reg     *registry.Registry
	users   store.UserStore
	buddies store.BuddyStore
	metrics *metrics.Metrics
}

// NewService wires a presence service over the given registry and stores.
func NewService(reg *registry.Registry, users store.UserStore, buddies store.BuddyStore, m *metrics.Metrics) *Service {
	return &Service{reg: reg, users: users, buddies: buddies, metrics: m}
}

// NotifyBuddies emits ev to every currently-reachable user who holds userID
// as a buddy. A failed buddy lookup aborts the whole notification.
func (s *Service) NotifyBuddies(userID string, ev event.Envelope) error {
	holders, err := s.buddies.FindUsersWhoHaveBuddy(userID)
	if err != nil {
		return fmt.Errorf("presence: buddy lookup for %s: %w", userID, err)
	}
	for _, holder := range holders {
		if s.reg.IsReachable(holder) {
			s.reg.EmitToUser(holder, ev)
			s.metrics.PresenceFanouts.Inc()
		}
	}
	return nil
}

// SetStatus runs the status-change protocol: validate, persist, update the
// registry snapshot, fan out. Manual marks a user-initiated change; the idle
// monitor calls with manual=false and never displaces an existing away state.
func (s *Service) SetStatus(userID string, status models.Status, awayText string, manual bool) error {
	if !status.Valid() || status == models.StatusOffline {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}
	if status != models.StatusAway {
		awayText = ""
	}

	if !manual {
		// The idle monitor must not clobber an away state the user (or an
		// earlier sweep) already established.
		if cur, _, _, ok := s.reg.PresenceOf(userID); ok && cur == models.StatusAway {
			return nil
		}
	}

	if err := s.users.UpdateStatus(userID, status, awayText); err != nil {
		return fmt.Errorf("presence: status write for %s: %w", userID, err)
	}
	s.reg.SetPresence(userID, status, awayText, manual)

	// Invisible keeps the sessions but tells buddies "offline".
	announced := status
	announcedText := awayText
	if status == models.StatusInvisible {
		announced = models.StatusOffline
		announcedText = ""
	}
	return s.NotifyBuddies(userID, event.BuddyStatusChange(userID, announced, announcedText))
}

// HandleConnect runs on a user's 0→1 session edge: durable presence write,
// then "came online" fan-out.
func (s *Service) HandleConnect(userID string) error {
	if err := s.users.UpdateStatus(userID, models.StatusOnline, ""); err != nil {
		return fmt.Errorf("presence: online write for %s: %w", userID, err)
	}
	return s.NotifyBuddies(userID, event.BuddyOnline(userID, time.Now().UTC()))
}

// HandleDisconnect runs on the 1→0 edge. lastStatus and lastAwayText are the
// presence cached at removal time: an away message stays standing while the
// user is offline (senders still get it back as an auto-response), and a user
// who went invisible already looks offline to their buddies, so no second
// offline fan-out is sent.
func (s *Service) HandleDisconnect(userID string, lastStatus models.Status, lastAwayText string) error {
	standing := ""
	if lastStatus == models.StatusAway {
		standing = lastAwayText
	}
	if err := s.users.UpdateStatus(userID, models.StatusOffline, standing); err != nil {
		return fmt.Errorf("presence: offline write for %s: %w", userID, err)
	}
	if lastStatus == models.StatusInvisible {
		slog.Debug("suppressing offline fan-out for invisible user", "user_id", userID)
		return nil
	}
	return s.NotifyBuddies(userID, event.BuddyOffline(userID, time.Now().UTC()))
}

// ReachableBuddies returns the ids on userID's buddy list that currently
// look online to them (reachable and not invisible).
func (s *Service) ReachableBuddies(userID string) ([]string, error) {
	ids, err := s.buddies.BuddiesOf(userID)
	if err != nil {
		return nil, fmt.Errorf("presence: buddy list for %s: %w", userID, err)
	}
	online := make([]string, 0, len(ids))
	for _, id := range ids {
		if !s.reg.IsReachable(id) {
			continue
		}
		if status, _, _, ok := s.reg.PresenceOf(id); ok && status == models.StatusInvisible {
			continue
		}
		online = append(online, id)
	}
	return online, nil
}
