package server

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Routes builds the HTTP router: websocket endpoint, the thin auth
// collaborator endpoints, health, metrics, and the test page.
func (s *Server) Routes() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/ws", s.WebSocketHandler).Methods(http.MethodGet)
	r.HandleFunc("/login", s.LoginHandler).Methods(http.MethodPost)
	r.HandleFunc("/register", s.RegisterHandler).Methods(http.MethodPost)
	r.HandleFunc("/healthz", s.HealthHandler).Methods(http.MethodGet)
	if s.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	}
	r.HandleFunc("/", s.TestPageHandler).Methods(http.MethodGet)
	return r
}
