// Package registry tracks live socket sessions per user. It is the sole
// source of truth for reachability and the only mutable state shared across
// connections; every method is a short critical section that never calls
// into persistence or the network while holding the lock.
package registry

import (
	"sync"
	"time"

	"github.com/roostchat/roost/internal/event"
	"github.com/roostchat/roost/internal/models"
)

// Sink is the outbound side of one session. The websocket client implements
// it; a false return means the session's send buffer was unavailable.
type Sink interface {
	Send(ev event.Envelope) bool
}

// Session is a read-only snapshot of one live connection.
type Session struct {
	ID           string
	UserID       string
	DisplayName  string
	ConnectedAt  time.Time
	LastActivity time.Time
	Status       models.Status
	AwayText     string
}

type session struct {
	id           string
	userID       string
	displayName  string
	connectedAt  time.Time
	lastActivity time.Time
	sink         Sink
}

type presenceState struct {
	status   models.Status
	awayText string
	manual   bool
}

// Registry is an explicitly constructed instance owned by the server's
// startup sequence; there is no package-level singleton.
type Registry struct {
	mu       sync.RWMutex
	byConn   map[string]*session
	byUser   map[string]map[string]*session
	presence map[string]presenceState
	now      func() time.Time
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{
		byConn:   make(map[string]*session),
		byUser:   make(map[string]map[string]*session),
		presence: make(map[string]presenceState),
		now:      time.Now,
	}
}

// SetClock overrides the registry's clock. Tests only.
func (r *Registry) SetClock(now func() time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.now = now
}

// AddSession registers a new session and reports whether it is the user's
// first (the 0→1 reachability edge). A fresh first session resets the cached
// presence to Online with no away-text.
func (r *Registry) AddSession(userID, connID, displayName string, sink Sink) (first bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now().UTC()
	s := &session{
		id:           connID,
		userID:       userID,
		displayName:  displayName,
		connectedAt:  now,
		lastActivity: now,
		sink:         sink,
	}
	r.byConn[connID] = s

	conns, ok := r.byUser[userID]
	if !ok {
		conns = make(map[string]*session)
		r.byUser[userID] = conns
	}
	first = len(conns) == 0
	conns[connID] = s

	if first {
		r.presence[userID] = presenceState{status: models.StatusOnline}
	}
	return first
}

// RemoveSession drops one session. It reports the owning user and whether
// this was the user's last session (the 1→0 edge). Removing an unknown
// connection id is a no-op, not an error.
func (r *Registry) RemoveSession(connID string) (userID string, last, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, found := r.byConn[connID]
	if !found {
		return "", false, false
	}
	delete(r.byConn, connID)

	conns := r.byUser[s.userID]
	delete(conns, connID)
	if len(conns) == 0 {
		delete(r.byUser, s.userID)
		delete(r.presence, s.userID)
		return s.userID, true, true
	}
	return s.userID, false, true
}

// Touch refreshes the session's last-activity timestamp. Unknown ids are
// ignored (the session may already be cleaned up).
func (r *Registry) Touch(connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.byConn[connID]; ok {
		s.lastActivity = r.now().UTC()
	}
}

// IsReachable reports whether the user has at least one live session.
func (r *Registry) IsReachable(userID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byUser[userID]) > 0
}

// SessionsFor returns the connection ids of the user's live sessions.
func (r *Registry) SessionsFor(userID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	conns := r.byUser[userID]
	ids := make([]string, 0, len(conns))
	for id := range conns {
		ids = append(ids, id)
	}
	return ids
}

// EmitToUser fans an event out to every session of the user. It returns true
// iff at least one session existed; whether the transport flushed bytes is
// outside this contract.
func (r *Registry) EmitToUser(userID string, ev event.Envelope) bool {
	r.mu.RLock()
	sinks := make([]Sink, 0, len(r.byUser[userID]))
	for _, s := range r.byUser[userID] {
		sinks = append(sinks, s.sink)
	}
	r.mu.RUnlock()

	for _, sink := range sinks {
		sink.Send(ev)
	}
	return len(sinks) > 0
}

// AllSessions returns snapshots of every live session, for the idle monitor.
func (r *Registry) AllSessions() []Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Session, 0, len(r.byConn))
	for _, s := range r.byConn {
		ps := r.presence[s.userID]
		out = append(out, Session{
			ID:           s.id,
			UserID:       s.userID,
			DisplayName:  s.displayName,
			ConnectedAt:  s.connectedAt,
			LastActivity: s.lastActivity,
			Status:       ps.status,
			AwayText:     ps.awayText,
		})
	}
	return out
}

// SetPresence updates the cached presence snapshot for all of the user's
// sessions. Manual marks user-initiated away-text so the idle monitor never
// overwrites it. No-op for users with no sessions.
func (r *Registry) SetPresence(userID string, status models.Status, awayText string, manual bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.byUser[userID]) == 0 {
		return
	}
	r.presence[userID] = presenceState{status: status, awayText: awayText, manual: manual}
}

// PresenceOf returns the cached presence of a reachable user. ok is false
// when the user has no sessions; such users are Offline by definition.
func (r *Registry) PresenceOf(userID string) (status models.Status, awayText string, manual, ok bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ps, found := r.presence[userID]
	if !found {
		return models.StatusOffline, "", false, false
	}
	return ps.status, ps.awayText, ps.manual, true
}

// SessionCount returns the number of live sessions across all users.
func (r *Registry) SessionCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byConn)
}

// UserCount returns the number of distinct reachable users.
func (r *Registry) UserCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byUser)
}
