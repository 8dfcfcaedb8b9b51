package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/example/team-channel/internal/channel"
	"github.com/example/team-channel/internal/persistence"
)

// MessageService validates and persists channel messages.
type MessageService struct {
	messages  persistence.MessageRepository
	schedules persistence.ScheduleRepository
	teams     persistence.TeamDirectory
	now       func() time.Time
	logger    *slog.Logger
}

// NewMessageService wires dependencies for channel message operations.
func NewMessageService(messages persistence.MessageRepository, schedules persistence.ScheduleRepository, teams persistence.TeamDirectory, now func() time.Time) *MessageService {
	return NewMessageServiceWithLogger(messages, schedules, teams, now, nil)
}

// NewMessageServiceWithLogger wires dependencies and a base logger.
func NewMessageServiceWithLogger(messages persistence.MessageRepository, schedules persistence.ScheduleRepository, teams persistence.TeamDirectory, now func() time.Time, logger *slog.Logger) *MessageService {
	if now == nil {
		now = time.Now
	}
	return &MessageService{
		messages:  messages,
		schedules: schedules,
		teams:     teams,
		now:       now,
		logger:    logger,
	}
}

// FetchMessages returns the channel's messages with id > afterID in ascending
// (sentAt, id) order. Membership in the channel's team is required.
func (s *MessageService) FetchMessages(ctx context.Context, params FetchMessagesParams) ([]channel.Message, error) {
	if s == nil {
		return nil, fmt.Errorf("MessageService is nil")
	}

	if err := validateKey(params.Key); err != nil {
		return nil, err
	}
	if err := s.ensureMember(ctx, params.Key.TeamID, params.Principal.UserID); err != nil {
		return nil, err
	}

	messages, err := s.messages.ListMessages(ctx, params.Key, params.AfterID)
	if err != nil {
		return nil, mapStoreError(err)
	}
	return messages, nil
}

// PostMessage validates the input, persists the message and returns the
// authoritative server copy.
func (s *MessageService) PostMessage(ctx context.Context, params PostMessageParams) (channel.Message, error) {
	if s == nil {
		return channel.Message{}, fmt.Errorf("MessageService is nil")
	}

	if err := validateKey(params.Key); err != nil {
		return channel.Message{}, err
	}
	if err := s.ensureMember(ctx, params.Key.TeamID, params.Principal.UserID); err != nil {
		return channel.Message{}, err
	}

	input := params.Input
	vErr := &ValidationError{}

	content := strings.TrimSpace(input.Content)
	if content == "" {
		vErr.add("content", "content is required")
	} else if utf8.RuneCountInString(content) > channel.MaxContentLength {
		vErr.add("content", fmt.Sprintf("content must be at most %d characters", channel.MaxContentLength))
	}

	msgType := input.Type
	if msgType == "" {
		msgType = channel.MessageTypeNormal
	}
	switch {
	case !msgType.Valid():
		vErr.add("message_type", "unknown message type")
	case msgType.IsResponse():
		// Approval and rejection responses are appended by the negotiation
		// path, never posted directly.
		vErr.add("message_type", "response messages cannot be posted directly")
	}

	if msgType == channel.MessageTypeScheduleRequest {
		if input.RelatedScheduleID == nil {
			vErr.add("related_schedule_id", "related schedule is required")
		}
		switch {
		case input.RequestedStart == nil || input.RequestedEnd == nil:
			vErr.add("requested_interval", "requested start and end are required")
		case !input.RequestedStart.Before(*input.RequestedEnd):
			vErr.add("requested_interval", "requested start must be before requested end")
		}
	}

	if vErr.HasErrors() {
		return channel.Message{}, vErr
	}

	if msgType == channel.MessageTypeScheduleRequest {
		if err := s.ensureScheduleInTeam(ctx, *input.RelatedScheduleID, params.Key.TeamID); err != nil {
			return channel.Message{}, err
		}
	}

	msg := channel.Message{
		Key:               params.Key,
		SenderID:          params.Principal.UserID,
		Content:           content,
		Type:              msgType,
		RelatedScheduleID: input.RelatedScheduleID,
		SentAt:            s.now(),
	}
	if msgType == channel.MessageTypeScheduleRequest {
		msg.RequestedStart = input.RequestedStart
		msg.RequestedEnd = input.RequestedEnd
		msg.NegotiationStatus = channel.NegotiationPending
	}

	persisted, err := s.messages.InsertMessage(ctx, msg)
	if err != nil {
		serviceLogger(ctx, s.logger, "message", "post", "channel", params.Key.String()).
			ErrorContext(ctx, "failed to persist message", "error", err, "kind", ErrorKind(err))
		return channel.Message{}, mapStoreError(err)
	}
	return persisted, nil
}

func (s *MessageService) ensureMember(ctx context.Context, teamID, userID string) error {
	if s.teams == nil {
		return nil
	}
	member, err := s.teams.IsTeamMember(ctx, teamID, userID)
	if err != nil {
		return err
	}
	if !member {
		return ErrForbidden
	}
	return nil
}

func (s *MessageService) ensureScheduleInTeam(ctx context.Context, scheduleID int64, teamID string) error {
	if s.schedules == nil {
		return nil
	}
	schedule, err := s.schedules.GetSchedule(ctx, scheduleID)
	if err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			vErr := &ValidationError{}
			vErr.add("related_schedule_id", "schedule does not exist")
			return vErr
		}
		return err
	}

	// Team schedules must belong to the channel's team; personal schedules
	// qualify when their creator is a member of it.
	if schedule.TeamID != nil {
		if *schedule.TeamID != teamID {
			vErr := &ValidationError{}
			vErr.add("related_schedule_id", "schedule belongs to another team")
			return vErr
		}
		return nil
	}
	return s.ensureMember(ctx, teamID, schedule.CreatorID)
}

func validateKey(key channel.Key) error {
	vErr := &ValidationError{}
	if key.TeamID == "" {
		vErr.add("team_id", "team id is required")
	}
	if key.Date == "" {
		vErr.add("target_date", "target date is required")
	} else if _, err := time.Parse(channel.DateLayout, key.Date); err != nil {
		vErr.add("target_date", "target date must be formatted YYYY-MM-DD")
	}
	if vErr.HasErrors() {
		return vErr
	}
	return nil
}

func mapStoreError(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, persistence.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, persistence.ErrAlreadyResolved):
		return ErrAlreadyResolved
	case errors.Is(err, persistence.ErrScheduleConflict):
		return ErrScheduleConflict
	case errors.Is(err, persistence.ErrConstraintViolation):
		vErr := &ValidationError{}
		vErr.add("content", "content must be between 1 and 500 characters")
		return vErr
	case errors.Is(err, persistence.ErrForeignKeyViolation):
		vErr := &ValidationError{}
		vErr.add("related_schedule_id", "related records are missing")
		return vErr
	}
	return err
}
