package server

import (
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/xid"

	"github.com/roostchat/roost/internal/event"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	sendBuffer = 256
)

// Client is one authenticated websocket connection. It implements
// registry.Sink; the registry fans events out through Send without knowing
// anything about websockets.
type Client struct {
	conn        *websocket.Conn
	srv         *Server
	send        chan []byte
	connID      string
	userID      string
	displayName string
	addr        string
	limiter     *tokenBucket

	mu     sync.Mutex
	closed bool
}

func newClient(srv *Server, conn *websocket.Conn, userID, displayName, addr string) *Client {
	conn.SetReadLimit(srv.cfg.MaxMessageSize)
	return &Client{
		conn:        conn,
		srv:         srv,
		send:        make(chan []byte, sendBuffer),
		connID:      xid.New().String(),
		userID:      userID,
		displayName: displayName,
		addr:        addr,
		limiter:     newTokenBucket(srv.cfg.RateLimit.Burst, srv.cfg.RateLimit.RefillInterval),
	}
}

// Send queues an outbound event. It returns false when the client is closed
// or its buffer is full; a full buffer is a slow consumer, not a fatal
// condition, and the frame is dropped.
func (c *Client) Send(ev event.Envelope) bool {
	data, err := ev.Marshal()
	if err != nil {
		slog.Error("outbound event marshal failed", "event", ev.Event, "error", err)
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- data:
		return true
	default:
		slog.Warn("send buffer full, dropping frame", "user_id", c.userID, "conn_id", c.connID, "event", ev.Event)
		return false
	}
}

// shutdownSend marks the client closed and closes the send channel exactly
// once, unblocking the write pump.
func (c *Client) shutdownSend() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// close tears the connection down from the server side (shutdown path). The
// read pump unwinds and runs the usual disconnect orchestration.
func (c *Client) close() {
	deadline := time.Now().Add(writeWait)
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"), deadline)
	_ = c.conn.Close()
}

func (c *Client) readPump() {
	defer func() {
		c.srv.disconnect(c)
		c.shutdownSend()
		if err := c.conn.Close(); err != nil && !isExpectedCloseError(err) {
			slog.Debug("connection close in read pump", "conn_id", c.connID, "error", err)
		}
	}()

	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.srv.reg.Touch(c.connID)
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			c.logReadError(err)
			return
		}

		// Every inbound frame counts as user activity.
		c.srv.reg.Touch(c.connID)

		if !c.limiter.allow() {
			slog.Warn("rate limit exceeded, discarding frame", "user_id", c.userID, "conn_id", c.connID)
			continue
		}

		ev, err := event.Decode(raw)
		if err != nil {
			if errors.Is(err, event.ErrUnknownEvent) {
				c.srv.reject(c, event.CodeUnknownEvent, "unknown event name")
			} else {
				c.srv.reject(c, event.CodeBadRequest, "malformed event")
			}
			continue
		}

		c.srv.handleEvent(c, ev)
	}
}

func (c *Client) logReadError(err error) {
	switch {
	case errors.Is(err, websocket.ErrReadLimit):
		slog.Warn("frame exceeded maximum size", "conn_id", c.connID, "limit", c.srv.cfg.MaxMessageSize)
	case websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseAbnormalClosure):
		slog.Debug("client disconnected", "conn_id", c.connID, "error", err)
	case errors.Is(err, io.EOF), isExpectedCloseError(err):
		slog.Debug("connection closed", "conn_id", c.connID)
	default:
		slog.Warn("websocket read error", "conn_id", c.connID, "error", err)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		if err := c.conn.Close(); err != nil && !isExpectedCloseError(err) {
			slog.Debug("connection close in write pump", "conn_id", c.connID, "error", err)
		}
	}()

	for {
		select {
		case data, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				if !isExpectedCloseError(err) {
					slog.Debug("websocket write error", "conn_id", c.connID, "error", err)
				}
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// isExpectedCloseError checks for the error strings that routinely show up
// when either side closes a connection mid-write.
func isExpectedCloseError(err error) bool {
	if err == nil {
		return true
	}
	errStr := err.Error()
	return strings.Contains(errStr, "use of closed network connection") ||
		strings.Contains(errStr, "websocket: close sent") ||
		strings.Contains(errStr, "broken pipe")
}
