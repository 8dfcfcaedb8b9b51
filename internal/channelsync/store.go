package channelsync

import (
	"context"
	"time"

	"github.com/example/team-channel/internal/channel"
)

// SendInput carries the caller-provided fields of an outgoing message.
type SendInput struct {
	Content           string
	Type              channel.MessageType
	RelatedScheduleID *int64
	RequestedStart    *time.Time
	RequestedEnd      *time.Time
}

// ApproveResult is the pair of records an approval returns.
type ApproveResult struct {
	Schedule        channel.Schedule
	ResponseMessage channel.Message
}

// Store is the narrow interface the engine consumes. The message store is an
// external collaborator; implementations talk to it over whatever transport
// the deployment uses (see httpapi.Client for the HTTP one).
type Store interface {
	// FetchMessages returns channel messages with id > afterID. afterID 0
	// fetches the full log.
	FetchMessages(ctx context.Context, key channel.Key, afterID int64) ([]channel.Message, error)
	// PostMessage submits a message and returns the authoritative server copy.
	PostMessage(ctx context.Context, key channel.Key, input SendInput) (channel.Message, error)
	// ApproveRequest resolves a pending schedule request.
	ApproveRequest(ctx context.Context, messageID int64) (ApproveResult, error)
	// RejectRequest declines a pending schedule request.
	RejectRequest(ctx context.Context, messageID int64) (channel.Message, error)
	// AcknowledgeResponse marks a negotiation response as read.
	AcknowledgeResponse(ctx context.Context, messageID int64) (channel.Message, error)
	// CheckConflict asks whether the candidate interval overlaps the user's
	// confirmed schedules.
	CheckConflict(ctx context.Context, userID string, start, end time.Time, excludeScheduleID int64) (bool, error)
}

// Timer is a cancellable pending callback.
type Timer interface {
	Stop() bool
}

// TimerScheduler abstracts timer creation so tests drive the engine without
// real time passing.
type TimerScheduler interface {
	AfterFunc(d time.Duration, fn func()) Timer
}

type realScheduler struct{}

func (realScheduler) AfterFunc(d time.Duration, fn func()) Timer {
	return time.AfterFunc(d, fn)
}
