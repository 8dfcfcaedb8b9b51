package application

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/example/team-channel/internal/channel"
	"github.com/example/team-channel/internal/persistence"
	"github.com/example/team-channel/internal/scheduler"
	"github.com/example/team-channel/internal/testfixtures"
)

type stubMessages struct {
	insertFn func(msg channel.Message) (channel.Message, error)
	listFn   func(key channel.Key, afterID int64) ([]channel.Message, error)
	getFn    func(id int64) (channel.Message, error)
	ackFn    func(id int64) (channel.Message, error)
}

func (s *stubMessages) InsertMessage(ctx context.Context, msg channel.Message) (channel.Message, error) {
	if s.insertFn == nil {
		msg.ID = 1
		return msg, nil
	}
	return s.insertFn(msg)
}

func (s *stubMessages) ListMessages(ctx context.Context, key channel.Key, afterID int64) ([]channel.Message, error) {
	if s.listFn == nil {
		return nil, nil
	}
	return s.listFn(key, afterID)
}

func (s *stubMessages) GetMessage(ctx context.Context, id int64) (channel.Message, error) {
	if s.getFn == nil {
		return channel.Message{}, persistence.ErrNotFound
	}
	return s.getFn(id)
}

func (s *stubMessages) AcknowledgeMessage(ctx context.Context, id int64) (channel.Message, error) {
	if s.ackFn == nil {
		return channel.Message{}, persistence.ErrNotFound
	}
	return s.ackFn(id)
}

type stubSchedules struct {
	getFn       func(id int64) (channel.Schedule, error)
	intervalsFn func(userID string) ([]scheduler.Interval, error)
}

func (s *stubSchedules) GetSchedule(ctx context.Context, id int64) (channel.Schedule, error) {
	if s.getFn == nil {
		return channel.Schedule{}, persistence.ErrNotFound
	}
	return s.getFn(id)
}

func (s *stubSchedules) ListConfirmedIntervals(ctx context.Context, userID string) ([]scheduler.Interval, error) {
	if s.intervalsFn == nil {
		return nil, nil
	}
	return s.intervalsFn(userID)
}

type stubTeams struct {
	members map[string]channel.TeamRole
}

func (s *stubTeams) IsTeamMember(ctx context.Context, teamID, userID string) (bool, error) {
	_, ok := s.members[userID]
	return ok, nil
}

func (s *stubTeams) TeamRole(ctx context.Context, teamID, userID string) (channel.TeamRole, error) {
	role, ok := s.members[userID]
	if !ok {
		return "", persistence.ErrNotFound
	}
	return role, nil
}

func referenceTeams() *stubTeams {
	return &stubTeams{members: map[string]channel.TeamRole{
		"leader-1": channel.RoleLeader,
		"member-1": channel.RoleMember,
		"member-2": channel.RoleMember,
	}}
}

func int64Ptr(v int64) *int64 { return &v }

func timePtr(t time.Time) *time.Time { return &t }

func TestMessageService_PostMessage(t *testing.T) {
	t.Parallel()

	clock := testfixtures.NewClock(time.Time{})
	start := testfixtures.ReferenceTime().Add(5 * time.Hour)
	end := start.Add(time.Hour)
	teamID := testfixtures.ReferenceKey().TeamID

	teamSchedule := channel.Schedule{
		ID:        5,
		Type:      channel.ScheduleTeam,
		CreatorID: "leader-1",
		TeamID:    &teamID,
	}

	cases := []struct {
		name       string
		principal  Principal
		key        channel.Key
		input      MessageInput
		schedule   channel.Schedule
		wantErr    error
		wantField  string
		wantType   channel.MessageType
		wantStatus channel.NegotiationStatus
	}{
		{
			name:      "normal message defaults the type",
			principal: Principal{UserID: "member-1"},
			key:       testfixtures.ReferenceKey(),
			input:     MessageInput{Content: "  hello  "},
			wantType:  channel.MessageTypeNormal,
		},
		{
			name:      "blank content is rejected",
			principal: Principal{UserID: "member-1"},
			key:       testfixtures.ReferenceKey(),
			input:     MessageInput{Content: "   "},
			wantField: "content",
		},
		{
			name:      "content over the limit is rejected",
			principal: Principal{UserID: "member-1"},
			key:       testfixtures.ReferenceKey(),
			input:     MessageInput{Content: strings.Repeat("あ", channel.MaxContentLength+1)},
			wantField: "content",
		},
		{
			name:      "content at the limit is accepted",
			principal: Principal{UserID: "member-1"},
			key:       testfixtures.ReferenceKey(),
			input:     MessageInput{Content: strings.Repeat("あ", channel.MaxContentLength)},
			wantType:  channel.MessageTypeNormal,
		},
		{
			name:      "unknown type is rejected",
			principal: Principal{UserID: "member-1"},
			key:       testfixtures.ReferenceKey(),
			input:     MessageInput{Content: "hello", Type: channel.MessageType("broadcast")},
			wantField: "message_type",
		},
		{
			name:      "response types cannot be posted directly",
			principal: Principal{UserID: "leader-1"},
			key:       testfixtures.ReferenceKey(),
			input:     MessageInput{Content: "approved", Type: channel.MessageTypeScheduleApproved},
			wantField: "message_type",
		},
		{
			name:      "missing date fails key validation",
			principal: Principal{UserID: "member-1"},
			key:       channel.NewKey(teamID, ""),
			input:     MessageInput{Content: "hello"},
			wantField: "target_date",
		},
		{
			name:      "malformed date fails key validation",
			principal: Principal{UserID: "member-1"},
			key:       channel.NewKey(teamID, "25-12-2024"),
			input:     MessageInput{Content: "hello"},
			wantField: "target_date",
		},
		{
			name:      "non member is forbidden",
			principal: Principal{UserID: "outsider"},
			key:       testfixtures.ReferenceKey(),
			input:     MessageInput{Content: "hello"},
			wantErr:   ErrForbidden,
		},
		{
			name:      "schedule request needs a related schedule",
			principal: Principal{UserID: "member-1"},
			key:       testfixtures.ReferenceKey(),
			input: MessageInput{
				Content:        "時間変更をお願いします",
				Type:           channel.MessageTypeScheduleRequest,
				RequestedStart: timePtr(start),
				RequestedEnd:   timePtr(end),
			},
			wantField: "related_schedule_id",
		},
		{
			name:      "schedule request needs the proposed interval",
			principal: Principal{UserID: "member-1"},
			key:       testfixtures.ReferenceKey(),
			input: MessageInput{
				Content:           "時間変更をお願いします",
				Type:              channel.MessageTypeScheduleRequest,
				RelatedScheduleID: int64Ptr(5),
			},
			wantField: "requested_interval",
		},
		{
			name:      "inverted interval is rejected",
			principal: Principal{UserID: "member-1"},
			key:       testfixtures.ReferenceKey(),
			input: MessageInput{
				Content:           "時間変更をお願いします",
				Type:              channel.MessageTypeScheduleRequest,
				RelatedScheduleID: int64Ptr(5),
				RequestedStart:    timePtr(end),
				RequestedEnd:      timePtr(start),
			},
			wantField: "requested_interval",
		},
		{
			name:      "valid schedule request marks negotiation pending",
			principal: Principal{UserID: "member-1"},
			key:       testfixtures.ReferenceKey(),
			input: MessageInput{
				Content:           "時間変更をお願いします",
				Type:              channel.MessageTypeScheduleRequest,
				RelatedScheduleID: int64Ptr(5),
				RequestedStart:    timePtr(start),
				RequestedEnd:      timePtr(end),
			},
			schedule:   teamSchedule,
			wantType:   channel.MessageTypeScheduleRequest,
			wantStatus: channel.NegotiationPending,
		},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			var inserted channel.Message
			messages := &stubMessages{insertFn: func(msg channel.Message) (channel.Message, error) {
				inserted = msg
				msg.ID = 42
				return msg, nil
			}}
			schedules := &stubSchedules{getFn: func(id int64) (channel.Schedule, error) {
				if tc.schedule.ID == 0 || id != tc.schedule.ID {
					return channel.Schedule{}, persistence.ErrNotFound
				}
				return tc.schedule, nil
			}}
			svc := NewMessageService(messages, schedules, referenceTeams(), clock.NowFunc())

			got, err := svc.PostMessage(context.Background(), PostMessageParams{
				Principal: tc.principal,
				Key:       tc.key,
				Input:     tc.input,
			})

			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("expected %v, got %v", tc.wantErr, err)
				}
				return
			}
			if tc.wantField != "" {
				var vErr *ValidationError
				if !errors.As(err, &vErr) {
					t.Fatalf("expected validation error, got %v", err)
				}
				if _, ok := vErr.FieldErrors[tc.wantField]; !ok {
					t.Fatalf("expected field %q flagged, got %v", tc.wantField, vErr.FieldErrors)
				}
				return
			}
			if err != nil {
				t.Fatalf("PostMessage: %v", err)
			}
			if got.ID != 42 {
				t.Fatalf("expected the stored copy back, got id %d", got.ID)
			}
			if inserted.Content != strings.TrimSpace(tc.input.Content) {
				t.Fatalf("content not trimmed before insert: %q", inserted.Content)
			}
			if inserted.Type != tc.wantType {
				t.Fatalf("type = %s, want %s", inserted.Type, tc.wantType)
			}
			if inserted.NegotiationStatus != tc.wantStatus {
				t.Fatalf("negotiation status = %s, want %s", inserted.NegotiationStatus, tc.wantStatus)
			}
			if !inserted.SentAt.Equal(clock.Now()) {
				t.Fatalf("sentAt = %s, want the injected clock's %s", inserted.SentAt, clock.Now())
			}
		})
	}
}

func TestMessageService_PostMessage_ScheduleScope(t *testing.T) {
	t.Parallel()

	clock := testfixtures.NewClock(time.Time{})
	start := testfixtures.ReferenceTime().Add(5 * time.Hour)
	otherTeam := "team-other"

	request := MessageInput{
		Content:           "時間変更をお願いします",
		Type:              channel.MessageTypeScheduleRequest,
		RelatedScheduleID: int64Ptr(5),
		RequestedStart:    timePtr(start),
		RequestedEnd:      timePtr(start.Add(time.Hour)),
	}

	cases := []struct {
		name     string
		schedule channel.Schedule
		getErr   error
		wantVErr bool
		wantErr  error
	}{
		{
			name:     "missing schedule is a field error",
			getErr:   persistence.ErrNotFound,
			wantVErr: true,
		},
		{
			name: "team schedule from another team is rejected",
			schedule: channel.Schedule{
				ID: 5, Type: channel.ScheduleTeam, CreatorID: "leader-1", TeamID: &otherTeam,
			},
			wantVErr: true,
		},
		{
			name: "personal schedule of a non member is forbidden",
			schedule: channel.Schedule{
				ID: 5, Type: channel.SchedulePersonal, CreatorID: "outsider",
			},
			wantErr: ErrForbidden,
		},
		{
			name: "personal schedule of a member is allowed",
			schedule: channel.Schedule{
				ID: 5, Type: channel.SchedulePersonal, CreatorID: "member-2",
			},
		},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			schedules := &stubSchedules{getFn: func(id int64) (channel.Schedule, error) {
				if tc.getErr != nil {
					return channel.Schedule{}, tc.getErr
				}
				return tc.schedule, nil
			}}
			svc := NewMessageService(&stubMessages{}, schedules, referenceTeams(), clock.NowFunc())

			_, err := svc.PostMessage(context.Background(), PostMessageParams{
				Principal: Principal{UserID: "member-1"},
				Key:       testfixtures.ReferenceKey(),
				Input:     request,
			})

			switch {
			case tc.wantVErr:
				var vErr *ValidationError
				if !errors.As(err, &vErr) {
					t.Fatalf("expected validation error, got %v", err)
				}
			case tc.wantErr != nil:
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("expected %v, got %v", tc.wantErr, err)
				}
			default:
				if err != nil {
					t.Fatalf("PostMessage: %v", err)
				}
			}
		})
	}
}

func TestMessageService_FetchMessages(t *testing.T) {
	t.Parallel()

	var gotAfterID int64
	messages := &stubMessages{listFn: func(key channel.Key, afterID int64) ([]channel.Message, error) {
		gotAfterID = afterID
		return []channel.Message{testfixtures.Message(3, "member-1", "hi")}, nil
	}}
	svc := NewMessageService(messages, &stubSchedules{}, referenceTeams(), nil)

	out, err := svc.FetchMessages(context.Background(), FetchMessagesParams{
		Principal: Principal{UserID: "member-1"},
		Key:       testfixtures.ReferenceKey(),
		AfterID:   2,
	})
	if err != nil {
		t.Fatalf("FetchMessages: %v", err)
	}
	if gotAfterID != 2 {
		t.Fatalf("afterID = %d, want 2", gotAfterID)
	}
	if len(out) != 1 || out[0].ID != 3 {
		t.Fatalf("unexpected result %v", out)
	}
}

func TestMessageService_FetchMessages_NonMemberForbidden(t *testing.T) {
	t.Parallel()

	svc := NewMessageService(&stubMessages{}, &stubSchedules{}, referenceTeams(), nil)

	_, err := svc.FetchMessages(context.Background(), FetchMessagesParams{
		Principal: Principal{UserID: "outsider"},
		Key:       testfixtures.ReferenceKey(),
	})
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}

func TestMessageService_PostMessage_MapsStoreErrors(t *testing.T) {
	t.Parallel()

	messages := &stubMessages{insertFn: func(msg channel.Message) (channel.Message, error) {
		return channel.Message{}, persistence.ErrForeignKeyViolation
	}}
	svc := NewMessageService(messages, &stubSchedules{}, referenceTeams(), nil)

	_, err := svc.PostMessage(context.Background(), PostMessageParams{
		Principal: Principal{UserID: "member-1"},
		Key:       testfixtures.ReferenceKey(),
		Input:     MessageInput{Content: "hello"},
	})

	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected validation error for missing related records, got %v", err)
	}
}
