package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/example/team-channel/internal/channel"
	"github.com/example/team-channel/internal/persistence"
	"github.com/example/team-channel/internal/scheduler"
)

// NegotiationService drives schedule-change requests through approval,
// rejection and acknowledgement. Permission gating happens here; the atomic
// check-then-commit lives in the negotiation repository so the conflict check
// and the writes share one transaction.
type NegotiationService struct {
	messages     persistence.MessageRepository
	schedules    persistence.ScheduleRepository
	negotiations persistence.NegotiationRepository
	teams        persistence.TeamDirectory
	now          func() time.Time
	logger       *slog.Logger
}

// NewNegotiationService wires dependencies for negotiation operations.
func NewNegotiationService(messages persistence.MessageRepository, schedules persistence.ScheduleRepository, negotiations persistence.NegotiationRepository, teams persistence.TeamDirectory, now func() time.Time) *NegotiationService {
	return NewNegotiationServiceWithLogger(messages, schedules, negotiations, teams, now, nil)
}

// NewNegotiationServiceWithLogger wires dependencies and a base logger.
func NewNegotiationServiceWithLogger(messages persistence.MessageRepository, schedules persistence.ScheduleRepository, negotiations persistence.NegotiationRepository, teams persistence.TeamDirectory, now func() time.Time, logger *slog.Logger) *NegotiationService {
	if now == nil {
		now = time.Now
	}
	return &NegotiationService{
		messages:     messages,
		schedules:    schedules,
		negotiations: negotiations,
		teams:        teams,
		now:          now,
		logger:       logger,
	}
}

// Approve applies a pending request's interval to its schedule and appends
// the schedule_approved response. Only a team leader, or the schedule's
// creator for personal schedules, may approve. A conflicting interval fails
// with ErrScheduleConflict and leaves the request pending.
func (s *NegotiationService) Approve(ctx context.Context, principal Principal, messageID int64) (ApproveResult, error) {
	if s == nil {
		return ApproveResult{}, fmt.Errorf("NegotiationService is nil")
	}

	request, err := s.loadRequest(ctx, messageID)
	if err != nil {
		return ApproveResult{}, err
	}
	if err := s.ensureMayResolve(ctx, request, principal); err != nil {
		return ApproveResult{}, err
	}

	result, err := s.negotiations.ApproveRequest(ctx, messageID, principal.UserID, s.now())
	if err != nil {
		serviceLogger(ctx, s.logger, "negotiation", "approve", "request_id", messageID).
			WarnContext(ctx, "approval failed", "error", err, "kind", ErrorKind(mapStoreError(err)))
		return ApproveResult{}, mapStoreError(err)
	}

	serviceLogger(ctx, s.logger, "negotiation", "approve", "request_id", messageID).
		InfoContext(ctx, "request approved", "schedule_id", result.Schedule.ID)
	return ApproveResult{Schedule: result.Schedule, ResponseMessage: result.ResponseMessage}, nil
}

// Reject resolves a pending request without touching the schedule and appends
// the schedule_rejected response. Only a team leader may reject.
func (s *NegotiationService) Reject(ctx context.Context, principal Principal, messageID int64) (channel.Message, error) {
	if s == nil {
		return channel.Message{}, fmt.Errorf("NegotiationService is nil")
	}

	request, err := s.loadRequest(ctx, messageID)
	if err != nil {
		return channel.Message{}, err
	}
	if err := s.ensureLeader(ctx, request.msg.Key.TeamID, principal); err != nil {
		return channel.Message{}, err
	}

	response, err := s.negotiations.RejectRequest(ctx, messageID, principal.UserID, s.now())
	if err != nil {
		return channel.Message{}, mapStoreError(err)
	}

	serviceLogger(ctx, s.logger, "negotiation", "reject", "request_id", messageID).
		InfoContext(ctx, "request rejected")
	return response, nil
}

// Acknowledge marks a negotiation response message as read. Any member of the
// channel's team may acknowledge; doing so twice is a no-op. Schedule state is
// never touched.
func (s *NegotiationService) Acknowledge(ctx context.Context, principal Principal, messageID int64) (channel.Message, error) {
	if s == nil {
		return channel.Message{}, fmt.Errorf("NegotiationService is nil")
	}

	msg, err := s.messages.GetMessage(ctx, messageID)
	if err != nil {
		return channel.Message{}, mapStoreError(err)
	}
	if !msg.Type.IsResponse() {
		vErr := &ValidationError{}
		vErr.add("message_id", "message is not a negotiation response")
		return channel.Message{}, vErr
	}
	if err := s.ensureMember(ctx, msg.Key.TeamID, principal); err != nil {
		return channel.Message{}, err
	}

	acked, err := s.messages.AcknowledgeMessage(ctx, messageID)
	if err != nil {
		return channel.Message{}, mapStoreError(err)
	}
	return acked, nil
}

// CheckConflict answers the advisory overlap question for a candidate
// interval. The authoritative check still runs inside the approval
// transaction; this exists so clients can warn before submitting.
func (s *NegotiationService) CheckConflict(ctx context.Context, userID string, start, end time.Time, excludeScheduleID int64) (ConflictCheck, error) {
	if s == nil {
		return ConflictCheck{}, fmt.Errorf("NegotiationService is nil")
	}

	vErr := &ValidationError{}
	if userID == "" {
		vErr.add("user_id", "user id is required")
	}
	if start.IsZero() || end.IsZero() {
		vErr.add("interval", "start and end are required")
	} else if !start.Before(end) {
		vErr.add("interval", "start must be before end")
	}
	if vErr.HasErrors() {
		return ConflictCheck{}, vErr
	}

	intervals, err := s.schedules.ListConfirmedIntervals(ctx, userID)
	if err != nil {
		return ConflictCheck{}, mapStoreError(err)
	}
	return ConflictCheck{
		HasConflict: scheduler.HasConflict(intervals, start, end, excludeScheduleID),
	}, nil
}

type loadedRequest struct {
	msg      channel.Message
	request  channel.NegotiationRequest
	schedule channel.Schedule
}

func (s *NegotiationService) loadRequest(ctx context.Context, messageID int64) (loadedRequest, error) {
	msg, err := s.messages.GetMessage(ctx, messageID)
	if err != nil {
		return loadedRequest{}, mapStoreError(err)
	}
	request, ok := channel.RequestFromMessage(msg)
	if !ok {
		return loadedRequest{}, ErrNotFound
	}

	schedule, err := s.schedules.GetSchedule(ctx, request.ScheduleID)
	if err != nil {
		return loadedRequest{}, mapStoreError(err)
	}
	return loadedRequest{msg: msg, request: request, schedule: schedule}, nil
}

// ensureMayResolve grants approval rights to team leaders, and to the
// schedule's creator when the schedule is personal.
func (s *NegotiationService) ensureMayResolve(ctx context.Context, req loadedRequest, principal Principal) error {
	if req.schedule.Type == channel.SchedulePersonal && req.schedule.CreatorID == principal.UserID {
		return nil
	}
	return s.ensureLeader(ctx, req.msg.Key.TeamID, principal)
}

func (s *NegotiationService) ensureLeader(ctx context.Context, teamID string, principal Principal) error {
	if s.teams == nil {
		return nil
	}
	role, err := s.teams.TeamRole(ctx, teamID, principal.UserID)
	if err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return ErrForbidden
		}
		return err
	}
	if role != channel.RoleLeader {
		return ErrForbidden
	}
	return nil
}

func (s *NegotiationService) ensureMember(ctx context.Context, teamID string, principal Principal) error {
	if s.teams == nil {
		return nil
	}
	member, err := s.teams.IsTeamMember(ctx, teamID, principal.UserID)
	if err != nil {
		return err
	}
	if !member {
		return ErrForbidden
	}
	return nil
}
