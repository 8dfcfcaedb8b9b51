package channel

import (
	"fmt"
	"time"
)

// Key addresses a channel. Channels are not persisted as rows; the key is the
// scope for messages and typing state, created implicitly on first subscribe.
type Key struct {
	TeamID string
	Date   string
}

// NewKey builds a channel key from a team id and a calendar date.
func NewKey(teamID string, date string) Key {
	return Key{TeamID: teamID, Date: date}
}

// String renders the key in "teamID/date" form, suitable for log fields and
// map keys.
func (k Key) String() string {
	return fmt.Sprintf("%s/%s", k.TeamID, k.Date)
}

// IsZero reports whether the key has been set.
func (k Key) IsZero() bool {
	return k.TeamID == "" && k.Date == ""
}

// DateLayout is the calendar-date format used by channel keys.
const DateLayout = "2006-01-02"

// MessageType classifies a channel message.
type MessageType string

const (
	// MessageTypeNormal is free-form chat.
	MessageTypeNormal MessageType = "normal"
	// MessageTypeScheduleRequest proposes a new interval for an existing schedule.
	MessageTypeScheduleRequest MessageType = "schedule_request"
	// MessageTypeScheduleApproved is the response appended when a request is approved.
	MessageTypeScheduleApproved MessageType = "schedule_approved"
	// MessageTypeScheduleRejected is the response appended when a request is rejected.
	MessageTypeScheduleRejected MessageType = "schedule_rejected"
)

// Valid reports whether t is one of the known message types.
func (t MessageType) Valid() bool {
	switch t {
	case MessageTypeNormal, MessageTypeScheduleRequest, MessageTypeScheduleApproved, MessageTypeScheduleRejected:
		return true
	}
	return false
}

// IsNegotiation reports whether messages of this type participate in schedule
// negotiation and therefore require a related schedule id.
func (t MessageType) IsNegotiation() bool {
	return t.Valid() && t != MessageTypeNormal
}

// IsResponse reports whether messages of this type answer a schedule request.
func (t MessageType) IsResponse() bool {
	return t == MessageTypeScheduleApproved || t == MessageTypeScheduleRejected
}

// AckState is the read-receipt marker carried by negotiation response
// messages. It is orthogonal to schedule state.
type AckState string

const (
	// AckStateNone applies to normal chat messages, which carry no ack state.
	AckStateNone AckState = ""
	// AckStatePending marks a negotiation message not yet acknowledged.
	AckStatePending AckState = "pending"
	// AckStateResolved marks a negotiation message the recipient acknowledged.
	AckStateResolved AckState = "resolved"
)

// MaxContentLength bounds message content. Longer content is rejected at the
// store boundary before anything is written.
const MaxContentLength = 500

// Message is a channel entry. Immutable once created except for the terminal
// AckState on negotiation messages and the negotiation status on requests.
type Message struct {
	ID                int64
	Key               Key
	SenderID          string
	Content           string
	Type              MessageType
	RelatedScheduleID *int64
	RelatedRequestID  *int64
	RequestedStart    *time.Time
	RequestedEnd      *time.Time
	SentAt            time.Time
	AckState          AckState
	NegotiationStatus NegotiationStatus
}

// Less orders messages by ascending (SentAt, ID). The id tie-break makes the
// order total; every client observes the same sequence.
func Less(a, b Message) bool {
	if a.SentAt.Equal(b.SentAt) {
		return a.ID < b.ID
	}
	return a.SentAt.Before(b.SentAt)
}

// NegotiationStatus tracks a schedule request through resolution.
type NegotiationStatus string

const (
	// NegotiationNone applies to messages that are not schedule requests.
	NegotiationNone NegotiationStatus = ""
	// NegotiationPending marks a request awaiting a leader decision.
	NegotiationPending NegotiationStatus = "pending"
	// NegotiationApproved marks a request whose interval was applied.
	NegotiationApproved NegotiationStatus = "approved"
	// NegotiationRejected marks a request a leader declined.
	NegotiationRejected NegotiationStatus = "rejected"
)

// Resolved reports whether the request reached a terminal state.
func (s NegotiationStatus) Resolved() bool {
	return s == NegotiationApproved || s == NegotiationRejected
}

// NegotiationRequest is the derived view over a schedule_request message.
type NegotiationRequest struct {
	MessageID      int64
	ScheduleID     int64
	RequestedStart time.Time
	RequestedEnd   time.Time
	RequesterID    string
	Status         NegotiationStatus
}

// RequestFromMessage derives the negotiation view from a schedule_request
// message. Returns false when the message is not a request or is missing the
// proposed interval.
func RequestFromMessage(m Message) (NegotiationRequest, bool) {
	if m.Type != MessageTypeScheduleRequest {
		return NegotiationRequest{}, false
	}
	if m.RelatedScheduleID == nil || m.RequestedStart == nil || m.RequestedEnd == nil {
		return NegotiationRequest{}, false
	}
	status := m.NegotiationStatus
	if status == NegotiationNone {
		status = NegotiationPending
	}
	return NegotiationRequest{
		MessageID:      m.ID,
		ScheduleID:     *m.RelatedScheduleID,
		RequestedStart: *m.RequestedStart,
		RequestedEnd:   *m.RequestedEnd,
		RequesterID:    m.SenderID,
		Status:         status,
	}, true
}

// ScheduleType distinguishes personal entries from team entries.
type ScheduleType string

const (
	// SchedulePersonal belongs to a single user.
	SchedulePersonal ScheduleType = "personal"
	// ScheduleTeam belongs to a team.
	ScheduleTeam ScheduleType = "team"
)

// ParticipationStatus is a participant's standing on a schedule. Only
// confirmed participations count toward conflict detection.
type ParticipationStatus string

const (
	// ParticipationConfirmed counts toward the conflict invariant.
	ParticipationConfirmed ParticipationStatus = "confirmed"
	// ParticipationPending does not block overlapping intervals.
	ParticipationPending ParticipationStatus = "pending"
	// ParticipationDeclined does not block overlapping intervals.
	ParticipationDeclined ParticipationStatus = "declined"
)

// Schedule is a persisted schedule entry with its participant list.
type Schedule struct {
	ID           int64
	Title        string
	Content      string
	Start        time.Time
	End          time.Time
	Type         ScheduleType
	CreatorID    string
	TeamID       *string
	Participants []Participant
}

// Participant pairs a user with their participation status on a schedule.
type Participant struct {
	UserID string
	Status ParticipationStatus
}

// TeamRole is a member's standing within a team.
type TeamRole string

const (
	// RoleLeader may approve and reject schedule requests for the team.
	RoleLeader TeamRole = "leader"
	// RoleMember may post messages and submit requests.
	RoleMember TeamRole = "member"
)
