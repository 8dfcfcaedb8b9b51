// Package httpapi exposes the message store over HTTP and provides the client
// the sync engine uses to reach it.
package httpapi

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/example/team-channel/internal/metrics"
)

// RouterConfig lists the handlers and middleware the router mounts.
type RouterConfig struct {
	Messages     *MessageHandler
	Negotiations *NegotiationHandler
	Metrics      *metrics.Server
	// Middleware wraps the whole router, outermost first.
	Middleware []func(http.Handler) http.Handler
}

// NewRouter mounts the store API.
func NewRouter(cfg RouterConfig) http.Handler {
	router := mux.NewRouter()
	// Route-scoped so mux.CurrentRoute resolves the operation name.
	router.Use(mux.MiddlewareFunc(InstrumentRequests(cfg.Metrics)))

	if cfg.Messages != nil {
		router.HandleFunc("/teams/{teamID}/channels/{date}/messages", cfg.Messages.List).
			Methods(http.MethodGet).Name("messages.list")
		router.HandleFunc("/teams/{teamID}/channels/{date}/messages", cfg.Messages.Create).
			Methods(http.MethodPost).Name("messages.create")
	}

	if cfg.Negotiations != nil {
		router.HandleFunc("/messages/{messageID}/approve", cfg.Negotiations.Approve).
			Methods(http.MethodPost).Name("negotiations.approve")
		router.HandleFunc("/messages/{messageID}/reject", cfg.Negotiations.Reject).
			Methods(http.MethodPost).Name("negotiations.reject")
		router.HandleFunc("/messages/{messageID}/ack", cfg.Negotiations.Acknowledge).
			Methods(http.MethodPost).Name("negotiations.ack")
		router.HandleFunc("/conflicts/check", cfg.Negotiations.CheckConflict).
			Methods(http.MethodGet).Name("conflicts.check")
	}

	var handler http.Handler = router
	for i := len(cfg.Middleware) - 1; i >= 0; i-- {
		if cfg.Middleware[i] != nil {
			handler = cfg.Middleware[i](handler)
		}
	}
	return handler
}
