package channelsync

import "time"

// Status is the connection state of a channel session.
type Status string

const (
	// StatusDisconnected is the initial state and the result of Disconnect.
	StatusDisconnected Status = "disconnected"
	// StatusConnecting means the initial fetch is in flight.
	StatusConnecting Status = "connecting"
	// StatusConnected means the session polls on its cadence.
	StatusConnected Status = "connected"
	// StatusError is entered on a fetch failure, before retry eligibility is
	// decided.
	StatusError Status = "error"
	// StatusReconnecting means a backoff timer is armed for the next attempt.
	StatusReconnecting Status = "reconnecting"
	// StatusFailed is terminal until a manual Retry or a fresh Connect.
	StatusFailed Status = "failed"
)

// event drives session status transitions.
type event string

const (
	eventConnect    event = "connect"     // user-initiated connect
	eventConnectOK  event = "connect_ok"  // fetch succeeded
	eventFailure    event = "failure"     // fetch or poll failed
	eventRetry      event = "retry"       // backoff scheduled
	eventExhausted  event = "exhausted"   // retry budget spent
	eventRetryTimer event = "retry_timer" // backoff timer fired
	eventDisconnect event = "disconnect"  // user-initiated disconnect
)

// transition is the pure session state machine: (status, event) -> status.
// The second return reports whether the event is legal in the given status;
// illegal events leave the status unchanged.
func transition(status Status, ev event) (Status, bool) {
	switch ev {
	case eventConnect:
		switch status {
		case StatusDisconnected, StatusFailed, StatusError:
			return StatusConnecting, true
		}
	case eventConnectOK:
		if status == StatusConnecting {
			return StatusConnected, true
		}
	case eventFailure:
		switch status {
		case StatusConnecting, StatusConnected:
			return StatusError, true
		}
	case eventRetry:
		if status == StatusError {
			return StatusReconnecting, true
		}
	case eventExhausted:
		if status == StatusError {
			return StatusFailed, true
		}
	case eventRetryTimer:
		if status == StatusReconnecting {
			return StatusConnecting, true
		}
	case eventDisconnect:
		return StatusDisconnected, true
	}
	return status, false
}

// BackoffPolicy controls reconnection pacing after connection failures.
type BackoffPolicy struct {
	// Base is the delay before the first automatic retry.
	Base time.Duration
	// Max caps the exponential growth.
	Max time.Duration
	// MaxRetries bounds consecutive automatic retries; once spent the session
	// fails and waits for a manual Retry.
	MaxRetries int
}

// DefaultBackoff matches the channel transport contract: 1s doubling up to
// 30s, three automatic retries.
func DefaultBackoff() BackoffPolicy {
	return BackoffPolicy{
		Base:       time.Second,
		Max:        30 * time.Second,
		MaxRetries: 3,
	}
}

// Delay returns the wait before retry attempt n (n >= 1):
// min(Base * 2^(n-1), Max).
func (p BackoffPolicy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := p.Base
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= p.Max {
			return p.Max
		}
	}
	if delay > p.Max {
		return p.Max
	}
	return delay
}
