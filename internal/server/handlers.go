package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/roostchat/roost/internal/auth"
)

// WebSocketHandler authenticates the connection token, upgrades to
// websocket, and hands the connection to the session lifecycle. Everything
// after the upgrade speaks the event protocol.
func (s *Server) WebSocketHandler(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		token = r.Header.Get("Authorization")
	}
	userID, err := s.auth.Verify(token)
	if err != nil {
		http.Error(w, "invalid or expired token", http.StatusUnauthorized)
		return
	}

	user, err := s.users.GetByID(userID)
	if err != nil || user == nil {
		slog.Error("user lookup failed during upgrade", "user_id", userID, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if s.originAllowed(r.Header.Get("Origin")) {
				return true
			}
			slog.Warn("blocked websocket connection from disallowed origin", "origin", r.Header.Get("Origin"))
			return false
		},
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("websocket upgrade failed", "addr", r.RemoteAddr, "error", err)
		return
	}

	client := newClient(s, conn, user.ID, user.DisplayName, r.RemoteAddr)
	s.connect(client)
}

type credentialsRequest struct {
	Username    string `json:"username"`
	Password    string `json:"password"`
	DisplayName string `json:"displayName,omitempty"`
}

// LoginHandler verifies credentials and returns a session token for the
// websocket handshake.
func (s *Server) LoginHandler(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "malformed request body", http.StatusBadRequest)
		return
	}
	token, userID, err := s.auth.Login(req.Username, req.Password)
	if errors.Is(err, auth.ErrInvalidCredentials) {
		http.Error(w, "invalid credentials", http.StatusUnauthorized)
		return
	}
	if err != nil {
		slog.Error("login failed", "username", req.Username, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": token, "userId": userID})
}

// RegisterHandler creates an account.
func (s *Server) RegisterHandler(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "malformed request body", http.StatusBadRequest)
		return
	}
	userID, err := s.auth.Register(req.Username, req.DisplayName, req.Password)
	switch {
	case errors.Is(err, auth.ErrUserExists):
		http.Error(w, "user already exists", http.StatusConflict)
		return
	case errors.Is(err, auth.ErrInvalidCredentials):
		http.Error(w, "username and password required", http.StatusBadRequest)
		return
	case err != nil:
		slog.Error("registration failed", "username", req.Username, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"userId": userID})
}

// HealthHandler reports liveness plus a couple of registry counts.
func (s *Server) HealthHandler(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"sessions": s.reg.SessionCount(),
		"users":    s.reg.UserCount(),
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Debug("response encode failed", "error", err)
	}
}

// TestPageHandler serves a minimal browser client for poking at the event
// protocol by hand.
func (s *Server) TestPageHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html")
	html := `<!DOCTYPE html>
<html>
<head>
    <title>Roost Test Client</title>
    <style>
        body { font-family: monospace; margin: 20px; }
        #log { border: 1px solid #ccc; height: 320px; padding: 8px; overflow-y: scroll; margin: 8px 0; background: #f9f9f9; }
        input { padding: 4px; margin-right: 4px; }
        button { padding: 4px 12px; }
    </style>
</head>
<body>
    <h1>Roost</h1>
    <div>
        <input id="username" placeholder="username">
        <input id="password" type="password" placeholder="password">
        <button onclick="login()">Login + Connect</button>
    </div>
    <div>
        <input id="to" placeholder="recipient user id">
        <input id="content" placeholder="message">
        <button onclick="send()">Send</button>
        <button onclick="away()">Away</button>
        <button onclick="online()">Online</button>
    </div>
    <div id="log"></div>
    <script>
        let ws = null;
        const log = (line) => {
            const el = document.createElement('div');
            el.textContent = line;
            const box = document.getElementById('log');
            box.appendChild(el);
            box.scrollTop = box.scrollHeight;
        };
        async function login() {
            const username = document.getElementById('username').value;
            const password = document.getElementById('password').value;
            const resp = await fetch('/login', {
                method: 'POST',
                body: JSON.stringify({username, password}),
            });
            if (!resp.ok) { log('login failed: ' + resp.status); return; }
            const {token, userId} = await resp.json();
            log('logged in as ' + userId);
            ws = new WebSocket('ws://' + location.host + '/ws?token=' + token);
            ws.onmessage = (e) => log('<< ' + e.data);
            ws.onclose = () => log('connection closed');
        }
        const emit = (event, data) => {
            if (!ws) { log('not connected'); return; }
            ws.send(JSON.stringify({event, data}));
            log('>> ' + event);
        };
        const send = () => emit('message:send', {
            toUserId: document.getElementById('to').value,
            content: document.getElementById('content').value,
        });
        const away = () => emit('status-change', {status: 'away', awayText: 'brb'});
        const online = () => emit('status-change', {status: 'online'});
    </script>
</body>
</html>`
	if _, err := fmt.Fprint(w, html); err != nil {
		slog.Debug("test page write failed", "error", err)
	}
}
