package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

// CreateServer builds the HTTP server around the router with production
// timeout defaults. Read/write deadlines for websocket traffic are managed
// per-connection by the pumps, not here.
func CreateServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:        addr,
		Handler:     handler,
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}
}

// StartServer blocks serving until the listener fails or is shut down.
func StartServer(server *http.Server) error {
	slog.Info("server listening", "addr", server.Addr)
	return server.ListenAndServe()
}

// ShutdownServer stops accepting new connections and waits for in-flight
// HTTP requests up to the timeout. Hijacked websocket connections are closed
// separately via Server.Shutdown.
func ShutdownServer(server *http.Server, timeout time.Duration) error {
	slog.Info("shutting down http server")

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		slog.Error("http server shutdown error", "error", err)
		return err
	}
	slog.Info("http server shutdown completed")
	return nil
}
