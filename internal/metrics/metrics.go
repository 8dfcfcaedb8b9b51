// Package metrics defines the Prometheus instrumentation shared by the
// channel engine and the store server.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Engine counts channel sync engine activity. All fields are optional for the
// engine; a nil *Engine disables instrumentation.
type Engine struct {
	PollsTotal        prometheus.Counter
	MessagesMerged    prometheus.Counter
	ReconnectsTotal   prometheus.Counter
	SendFailures      prometheus.Counter
	ConnectionsFailed prometheus.Counter
}

// NewEngine builds and registers the engine collectors.
func NewEngine(reg prometheus.Registerer) *Engine {
	m := &Engine{
		PollsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "channel",
			Subsystem: "sync",
			Name:      "polls_total",
			Help:      "Poll rounds issued against the message store.",
		}),
		MessagesMerged: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "channel",
			Subsystem: "sync",
			Name:      "messages_merged_total",
			Help:      "Messages merged into the ordered local view.",
		}),
		ReconnectsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "channel",
			Subsystem: "sync",
			Name:      "reconnect_attempts_total",
			Help:      "Automatic reconnection attempts after failures.",
		}),
		SendFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "channel",
			Subsystem: "sync",
			Name:      "send_failures_total",
			Help:      "Message submissions that returned an error.",
		}),
		ConnectionsFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "channel",
			Subsystem: "sync",
			Name:      "sessions_failed_total",
			Help:      "Sessions that exhausted their retry budget.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.PollsTotal, m.MessagesMerged, m.ReconnectsTotal, m.SendFailures, m.ConnectionsFailed)
	}
	return m
}

// Server counts store server activity by operation and outcome.
type Server struct {
	Requests     *prometheus.CounterVec
	Negotiations *prometheus.CounterVec
}

// NewServer builds and registers the server collectors.
func NewServer(reg prometheus.Registerer) *Server {
	m := &Server{
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "channel",
			Subsystem: "store",
			Name:      "requests_total",
			Help:      "Store API requests by operation and status class.",
		}, []string{"operation", "status"}),
		Negotiations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "channel",
			Subsystem: "store",
			Name:      "negotiations_total",
			Help:      "Negotiation resolutions by outcome.",
		}, []string{"outcome"}),
	}
	if reg != nil {
		reg.MustRegister(m.Requests, m.Negotiations)
	}
	return m
}
