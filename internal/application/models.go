package application

import (
	"time"

	"github.com/example/team-channel/internal/channel"
)

// Principal represents the authenticated user invoking a service method.
// Identity is established by the external session layer; services only gate
// on membership and role.
type Principal struct {
	UserID string
}

// MessageInput captures caller provided message fields.
type MessageInput struct {
	Content           string
	Type              channel.MessageType
	RelatedScheduleID *int64
	RequestedStart    *time.Time
	RequestedEnd      *time.Time
}

// PostMessageParams wraps the data required to post a channel message.
type PostMessageParams struct {
	Principal Principal
	Key       channel.Key
	Input     MessageInput
}

// FetchMessagesParams wraps the data required to read a channel.
type FetchMessagesParams struct {
	Principal Principal
	Key       channel.Key
	AfterID   int64
}

// ApproveResult carries the schedule and response message an approval commits.
type ApproveResult struct {
	Schedule        channel.Schedule
	ResponseMessage channel.Message
}

// ConflictCheck is the advisory answer of the conflict endpoint.
type ConflictCheck struct {
	HasConflict bool
}
