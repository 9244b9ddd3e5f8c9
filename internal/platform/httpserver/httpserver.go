// Package httpserver builds the process's http.Server. Per-route deadlines
// live in the router middleware; only the connection-level timeouts are set
// here.
package httpserver

import (
	"net/http"
	"time"
)

// New wraps the handler in a server with the project's connection timeouts.
// Slowloris-style header dribbling is cut off early; idle keep-alives are
// recycled after a minute.
func New(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       time.Minute,
	}
}
