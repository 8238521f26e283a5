// Package server implements the websocket transport and HTTP surface of the
// Roost presence server.
//
// The implementation is organized into specialized files for client pumps,
// handlers, routing, origin checks, and rate limiting; the shared presence
// and delivery logic lives in the registry, presence, and dispatch packages
// and is only orchestrated from here.
package server
