// Package httpserver builds the HTTP server for this project.
package httpserver

import (
	"net/http"
	"time"
)

// New builds an HTTP server with sane defaults. Detection runs can be slow
// under large pools, so the write timeout leaves headroom over the engine's
// own budget.
func New(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}
