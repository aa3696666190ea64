package httpserver

import (
	"net/http"
	"time"
)

// New builds the standard *http.Server for this service. Read and write
// timeouts track the per-request timeout in the middleware chain, and the
// header timeout bounds slow-loris connections.
func New(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}
