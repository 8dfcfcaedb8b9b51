package httpapi

import (
	"time"

	"github.com/example/team-channel/internal/channel"
)

// messagePayload is the wire form of a channel message, shared by the server
// handlers and the HTTP store client.
type messagePayload struct {
	ID                int64      `json:"id"`
	TeamID            string     `json:"team_id"`
	TargetDate        string     `json:"target_date"`
	SenderID          string     `json:"sender_id"`
	Content           string     `json:"content"`
	MessageType       string     `json:"message_type"`
	RelatedScheduleID *int64     `json:"related_schedule_id,omitempty"`
	RelatedRequestID  *int64     `json:"related_request_id,omitempty"`
	RequestedStart    *time.Time `json:"requested_start,omitempty"`
	RequestedEnd      *time.Time `json:"requested_end,omitempty"`
	AckState          string     `json:"ack_state,omitempty"`
	NegotiationStatus string     `json:"negotiation_status,omitempty"`
	SentAt            time.Time  `json:"sent_at"`
}

func toMessagePayload(msg channel.Message) messagePayload {
	return messagePayload{
		ID:                msg.ID,
		TeamID:            msg.Key.TeamID,
		TargetDate:        msg.Key.Date,
		SenderID:          msg.SenderID,
		Content:           msg.Content,
		MessageType:       string(msg.Type),
		RelatedScheduleID: msg.RelatedScheduleID,
		RelatedRequestID:  msg.RelatedRequestID,
		RequestedStart:    msg.RequestedStart,
		RequestedEnd:      msg.RequestedEnd,
		AckState:          string(msg.AckState),
		NegotiationStatus: string(msg.NegotiationStatus),
		SentAt:            msg.SentAt,
	}
}

func (p messagePayload) toMessage() channel.Message {
	return channel.Message{
		ID:                p.ID,
		Key:               channel.NewKey(p.TeamID, p.TargetDate),
		SenderID:          p.SenderID,
		Content:           p.Content,
		Type:              channel.MessageType(p.MessageType),
		RelatedScheduleID: p.RelatedScheduleID,
		RelatedRequestID:  p.RelatedRequestID,
		RequestedStart:    p.RequestedStart,
		RequestedEnd:      p.RequestedEnd,
		AckState:          channel.AckState(p.AckState),
		NegotiationStatus: channel.NegotiationStatus(p.NegotiationStatus),
		SentAt:            p.SentAt,
	}
}

func toMessagePayloads(msgs []channel.Message) []messagePayload {
	payloads := make([]messagePayload, len(msgs))
	for i, msg := range msgs {
		payloads[i] = toMessagePayload(msg)
	}
	return payloads
}

type participantPayload struct {
	UserID string `json:"user_id"`
	Status string `json:"status"`
}

type schedulePayload struct {
	ID           int64                `json:"id"`
	Title        string               `json:"title"`
	Content      string               `json:"content,omitempty"`
	Start        time.Time            `json:"start"`
	End          time.Time            `json:"end"`
	ScheduleType string               `json:"schedule_type"`
	CreatorID    string               `json:"creator_id"`
	TeamID       *string              `json:"team_id,omitempty"`
	Participants []participantPayload `json:"participants,omitempty"`
}

func toSchedulePayload(schedule channel.Schedule) schedulePayload {
	p := schedulePayload{
		ID:           schedule.ID,
		Title:        schedule.Title,
		Content:      schedule.Content,
		Start:        schedule.Start,
		End:          schedule.End,
		ScheduleType: string(schedule.Type),
		CreatorID:    schedule.CreatorID,
		TeamID:       schedule.TeamID,
	}
	for _, participant := range schedule.Participants {
		p.Participants = append(p.Participants, participantPayload{
			UserID: participant.UserID,
			Status: string(participant.Status),
		})
	}
	return p
}

func (p schedulePayload) toSchedule() channel.Schedule {
	schedule := channel.Schedule{
		ID:        p.ID,
		Title:     p.Title,
		Content:   p.Content,
		Start:     p.Start,
		End:       p.End,
		Type:      channel.ScheduleType(p.ScheduleType),
		CreatorID: p.CreatorID,
		TeamID:    p.TeamID,
	}
	for _, participant := range p.Participants {
		schedule.Participants = append(schedule.Participants, channel.Participant{
			UserID: participant.UserID,
			Status: channel.ParticipationStatus(participant.Status),
		})
	}
	return schedule
}

type messageListResponse struct {
	Messages []messagePayload `json:"messages"`
}

type approveResponse struct {
	Schedule schedulePayload `json:"schedule"`
	Message  messagePayload  `json:"message"`
}

type conflictResponse struct {
	HasConflict bool `json:"has_conflict"`
}

type postMessageRequest struct {
	Content           string     `json:"content"`
	MessageType       string     `json:"message_type"`
	RelatedScheduleID *int64     `json:"related_schedule_id"`
	RequestedStart    *time.Time `json:"requested_start"`
	RequestedEnd      *time.Time `json:"requested_end"`
}
