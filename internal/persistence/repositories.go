package persistence

import (
	"context"
	"time"

	"github.com/example/team-channel/internal/channel"
	"github.com/example/team-channel/internal/scheduler"
)

// MessageRepository stores the append-only channel message log.
type MessageRepository interface {
	// InsertMessage appends a message and returns the authoritative copy with
	// the server-assigned id. SentAt must be set by the caller.
	InsertMessage(ctx context.Context, msg channel.Message) (channel.Message, error)
	// ListMessages returns the channel's messages with id > afterID, ordered by
	// ascending (sent_at, id). afterID 0 returns the full log.
	ListMessages(ctx context.Context, key channel.Key, afterID int64) ([]channel.Message, error)
	GetMessage(ctx context.Context, id int64) (channel.Message, error)
	// AcknowledgeMessage marks a negotiation response message as read.
	// Acknowledging twice is a no-op, not an error.
	AcknowledgeMessage(ctx context.Context, id int64) (channel.Message, error)
}

// ScheduleRepository exposes the schedule reads the negotiation path needs.
type ScheduleRepository interface {
	GetSchedule(ctx context.Context, id int64) (channel.Schedule, error)
	// ListConfirmedIntervals returns every interval the user holds with
	// confirmed participation status.
	ListConfirmedIntervals(ctx context.Context, userID string) ([]scheduler.Interval, error)
}

// ApproveResult carries the two records an approval commits together.
type ApproveResult struct {
	Schedule        channel.Schedule
	ResponseMessage channel.Message
}

// NegotiationRepository applies negotiation resolutions. Implementations must
// execute each call as a single atomic transaction: the pending check, the
// conflict check, the schedule update and the response message either all
// commit or none do.
type NegotiationRepository interface {
	ApproveRequest(ctx context.Context, requestID int64, responderID string, now time.Time) (ApproveResult, error)
	RejectRequest(ctx context.Context, requestID int64, responderID string, now time.Time) (channel.Message, error)
}

// TeamDirectory answers the membership questions the services gate on.
type TeamDirectory interface {
	IsTeamMember(ctx context.Context, teamID, userID string) (bool, error)
	// TeamRole returns ErrNotFound when the user is not a member.
	TeamRole(ctx context.Context, teamID, userID string) (channel.TeamRole, error)
}
