// Package server is the websocket transport: it authenticates connections,
// pumps frames in and out, and orchestrates the registry, presence, and
// dispatch cores around each connection's lifecycle.
package server

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/roostchat/roost/internal/auth"
	"github.com/roostchat/roost/internal/config"
	"github.com/roostchat/roost/internal/dispatch"
	"github.com/roostchat/roost/internal/event"
	"github.com/roostchat/roost/internal/metrics"
	"github.com/roostchat/roost/internal/models"
	"github.com/roostchat/roost/internal/presence"
	"github.com/roostchat/roost/internal/registry"
	"github.com/roostchat/roost/internal/store"
)

// Params collects the collaborators a Server needs.
type Params struct {
	Config     *config.Config
	Registry   *registry.Registry
	Presence   *presence.Service
	Dispatcher *dispatch.Dispatcher
	Auth       *auth.Service
	Users      store.UserStore
	Metrics    *metrics.Metrics
	Gatherer   prometheus.Gatherer
}

// Server owns the live client set and the shared cores. It is explicitly
// constructed in main; there are no package-level instances.
type Server struct {
	cfg        *config.Config
	reg        *registry.Registry
	presence   *presence.Service
	dispatcher *dispatch.Dispatcher
	auth       *auth.Service
	users      store.UserStore
	metrics    *metrics.Metrics
	gatherer   prometheus.Gatherer

	originAllowed func(origin string) bool

	mu      sync.Mutex
	clients map[*Client]struct{}
	wg      sync.WaitGroup
}

// New wires a Server from its collaborators.
func New(p Params) *Server {
	return &Server{
		cfg:           p.Config,
		reg:           p.Registry,
		presence:      p.Presence,
		dispatcher:    p.Dispatcher,
		auth:          p.Auth,
		users:         p.Users,
		metrics:       p.Metrics,
		gatherer:      p.Gatherer,
		originAllowed: newOriginChecker(p.Config.AllowedOrigins),
		clients:       make(map[*Client]struct{}),
	}
}

// connect registers an authenticated client: session bookkeeping, greeting,
// backlog flush, and the came-online fan-out on the user's first session.
func (s *Server) connect(c *Client) {
	s.mu.Lock()
	s.clients[c] = struct{}{}
	s.mu.Unlock()

	first := s.reg.AddSession(c.userID, c.connID, c.displayName, c)
	s.metrics.ActiveSessions.Set(float64(s.reg.SessionCount()))
	s.metrics.OnlineUsers.Set(float64(s.reg.UserCount()))
	slog.Info("session opened", "user_id", c.userID, "conn_id", c.connID, "first", first, "addr", c.addr)

	s.wg.Add(2)
	go func() {
		defer s.wg.Done()
		c.writePump()
	}()
	go func() {
		defer s.wg.Done()
		c.readPump()
	}()

	online, err := s.presence.ReachableBuddies(c.userID)
	if err != nil {
		slog.Error("buddy list lookup failed on connect", "user_id", c.userID, "error", err)
	}
	unread, err := s.dispatcher.UnreadCounts(c.userID)
	if err != nil {
		slog.Error("unread count lookup failed on connect", "user_id", c.userID, "error", err)
	}
	c.Send(event.ConnectionEstablished(c.userID, online, unread))

	if first {
		// Backlog replays before the online fan-out completes, so buddies
		// never see the user online while queued messages are still pending.
		if n, err := s.dispatcher.FlushBacklog(c.userID); err != nil {
			slog.Error("backlog flush failed", "user_id", c.userID, "error", err)
		} else if n > 0 {
			slog.Info("backlog flushed", "user_id", c.userID, "count", n)
		}
		if err := s.presence.HandleConnect(c.userID); err != nil {
			slog.Error("online fan-out failed", "user_id", c.userID, "error", err)
		}
	}
}

// disconnect tears one session down. Safe to call more than once per client;
// the registry treats unknown connection ids as already cleaned up.
func (s *Server) disconnect(c *Client) {
	s.mu.Lock()
	delete(s.clients, c)
	s.mu.Unlock()

	lastStatus, lastAwayText, _, _ := s.reg.PresenceOf(c.userID)
	userID, last, ok := s.reg.RemoveSession(c.connID)
	if !ok {
		return
	}
	s.metrics.ActiveSessions.Set(float64(s.reg.SessionCount()))
	s.metrics.OnlineUsers.Set(float64(s.reg.UserCount()))
	slog.Info("session closed", "user_id", userID, "conn_id", c.connID, "last", last)

	if last {
		if err := s.presence.HandleDisconnect(userID, lastStatus, lastAwayText); err != nil {
			slog.Error("offline fan-out failed", "user_id", userID, "error", err)
		}
	}
}

// handleEvent runs one decoded inbound event for the owning connection.
// Failures are translated into error events to this connection only; nothing
// here may take down the shared state.
func (s *Server) handleEvent(c *Client, ev event.Inbound) {
	switch ev := ev.(type) {
	case event.StatusChange:
		err := s.presence.SetStatus(c.userID, models.Status(ev.Status), ev.AwayText, true)
		switch {
		case err == nil:
		case errors.Is(err, presence.ErrInvalidStatus):
			s.reject(c, event.CodeInvalidStatus, "unrecognized status value")
		default:
			slog.Error("status change failed", "user_id", c.userID, "error", err)
			s.reject(c, event.CodeInternal, "status change failed")
		}

	case event.SendMessage:
		_, err := s.dispatcher.SendMessage(c.userID, ev.ToUserID, ev.Content)
		switch {
		case err == nil:
		case errors.Is(err, dispatch.ErrEmptyContent):
			s.reject(c, event.CodeEmptyMessage, "message content must not be empty")
		case errors.Is(err, dispatch.ErrMissingRecipient):
			s.reject(c, event.CodeBadRequest, "recipient required")
		default:
			slog.Error("message send failed", "user_id", c.userID, "error", err)
			s.reject(c, event.CodeInternal, "message could not be sent")
		}

	case event.MarkRead:
		if _, err := s.dispatcher.MarkRead(c.userID, ev.FromUserID); err != nil {
			slog.Error("mark read failed", "user_id", c.userID, "error", err)
			s.reject(c, event.CodeInternal, "messages could not be marked read")
		}

	case event.Typing:
		s.dispatcher.Typing(c.userID, ev.ToUserID, ev.IsTyping)

	case event.Heartbeat:
		c.Send(event.HeartbeatAck())
	}
}

func (s *Server) reject(c *Client, code, message string) {
	s.metrics.EventsRejected.WithLabelValues(code).Inc()
	c.Send(event.ErrorEvent(code, message))
}

// Shutdown closes every client connection and waits for the pump goroutines
// to drain, up to the timeout.
func (s *Server) Shutdown(timeout time.Duration) error {
	s.mu.Lock()
	clients := make([]*Client, 0, len(s.clients))
	for c := range s.clients {
		clients = append(clients, c)
	}
	s.mu.Unlock()

	slog.Info("closing client connections", "count", len(clients))
	for _, c := range clients {
		c.close()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		slog.Info("all client pumps drained")
		return nil
	case <-time.After(timeout):
		slog.Warn("shutdown timeout reached with pumps still running")
		return context.DeadlineExceeded
	}
}
