package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/example/team-channel/internal/channel"
	"github.com/example/team-channel/internal/persistence"
	"github.com/example/team-channel/internal/scheduler"
	"github.com/example/team-channel/internal/testfixtures"
)

type stubNegotiations struct {
	approveFn func(requestID int64, responderID string, now time.Time) (persistence.ApproveResult, error)
	rejectFn  func(requestID int64, responderID string, now time.Time) (channel.Message, error)
}

func (s *stubNegotiations) ApproveRequest(ctx context.Context, requestID int64, responderID string, now time.Time) (persistence.ApproveResult, error) {
	if s.approveFn == nil {
		return persistence.ApproveResult{}, errors.New("approve not configured")
	}
	return s.approveFn(requestID, responderID, now)
}

func (s *stubNegotiations) RejectRequest(ctx context.Context, requestID int64, responderID string, now time.Time) (channel.Message, error) {
	if s.rejectFn == nil {
		return channel.Message{}, errors.New("reject not configured")
	}
	return s.rejectFn(requestID, responderID, now)
}

// negotiationFixture wires a pending request for schedule 5 plus repositories
// whose behavior each test overrides.
type negotiationFixture struct {
	request   channel.Message
	schedule  channel.Schedule
	messages  *stubMessages
	schedules *stubSchedules
}

func newNegotiationFixture(scheduleType channel.ScheduleType, creatorID string) *negotiationFixture {
	start := testfixtures.ReferenceTime().Add(5 * time.Hour)
	f := &negotiationFixture{
		request: testfixtures.ScheduleRequest(2, "member-1", 5, start, start.Add(time.Hour)),
		schedule: channel.Schedule{
			ID:        5,
			Type:      scheduleType,
			CreatorID: creatorID,
		},
	}
	if scheduleType == channel.ScheduleTeam {
		teamID := testfixtures.ReferenceKey().TeamID
		f.schedule.TeamID = &teamID
	}
	f.messages = &stubMessages{getFn: func(id int64) (channel.Message, error) {
		if id != f.request.ID {
			return channel.Message{}, persistence.ErrNotFound
		}
		return f.request, nil
	}}
	f.schedules = &stubSchedules{getFn: func(id int64) (channel.Schedule, error) {
		if id != f.schedule.ID {
			return channel.Schedule{}, persistence.ErrNotFound
		}
		return f.schedule, nil
	}}
	return f
}

func (f *negotiationFixture) service(negotiations persistence.NegotiationRepository, clock *testfixtures.Clock) *NegotiationService {
	return NewNegotiationService(f.messages, f.schedules, negotiations, referenceTeams(), clock.NowFunc())
}

func TestNegotiationService_Approve_Permissions(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name         string
		scheduleType channel.ScheduleType
		creatorID    string
		responder    string
		wantErr      error
	}{
		{name: "leader approves team schedule", scheduleType: channel.ScheduleTeam, creatorID: "leader-1", responder: "leader-1"},
		{name: "member cannot approve team schedule", scheduleType: channel.ScheduleTeam, creatorID: "leader-1", responder: "member-2", wantErr: ErrForbidden},
		{name: "creator approves own personal schedule", scheduleType: channel.SchedulePersonal, creatorID: "member-2", responder: "member-2"},
		{name: "leader approves personal schedule", scheduleType: channel.SchedulePersonal, creatorID: "member-2", responder: "leader-1"},
		{name: "other member cannot approve personal schedule", scheduleType: channel.SchedulePersonal, creatorID: "member-2", responder: "member-1", wantErr: ErrForbidden},
		{name: "outsider is forbidden", scheduleType: channel.ScheduleTeam, creatorID: "leader-1", responder: "outsider", wantErr: ErrForbidden},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			clock := testfixtures.NewClock(time.Time{})
			f := newNegotiationFixture(tc.scheduleType, tc.creatorID)

			var gotResponder string
			negotiations := &stubNegotiations{approveFn: func(requestID int64, responderID string, now time.Time) (persistence.ApproveResult, error) {
				gotResponder = responderID
				response := testfixtures.Message(3, responderID, "approved")
				response.Type = channel.MessageTypeScheduleApproved
				response.AckState = channel.AckStatePending
				return persistence.ApproveResult{Schedule: f.schedule, ResponseMessage: response}, nil
			}}
			svc := f.service(negotiations, clock)

			result, err := svc.Approve(context.Background(), Principal{UserID: tc.responder}, f.request.ID)

			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("expected %v, got %v", tc.wantErr, err)
				}
				if gotResponder != "" {
					t.Fatal("repository must not be reached when permission is denied")
				}
				return
			}
			if err != nil {
				t.Fatalf("Approve: %v", err)
			}
			if gotResponder != tc.responder {
				t.Fatalf("responder passed to repository = %q, want %q", gotResponder, tc.responder)
			}
			if result.ResponseMessage.Type != channel.MessageTypeScheduleApproved {
				t.Fatalf("response type = %s", result.ResponseMessage.Type)
			}
		})
	}
}

func TestNegotiationService_Approve_MapsRepositoryErrors(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		repoErr error
		wantErr error
	}{
		{name: "already resolved", repoErr: persistence.ErrAlreadyResolved, wantErr: ErrAlreadyResolved},
		{name: "schedule conflict", repoErr: persistence.ErrScheduleConflict, wantErr: ErrScheduleConflict},
		{name: "request vanished", repoErr: persistence.ErrNotFound, wantErr: ErrNotFound},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			clock := testfixtures.NewClock(time.Time{})
			f := newNegotiationFixture(channel.ScheduleTeam, "leader-1")
			negotiations := &stubNegotiations{approveFn: func(requestID int64, responderID string, now time.Time) (persistence.ApproveResult, error) {
				return persistence.ApproveResult{}, tc.repoErr
			}}
			svc := f.service(negotiations, clock)

			_, err := svc.Approve(context.Background(), Principal{UserID: "leader-1"}, f.request.ID)
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("expected %v, got %v", tc.wantErr, err)
			}
		})
	}
}

func TestNegotiationService_Approve_UnknownMessage(t *testing.T) {
	t.Parallel()

	clock := testfixtures.NewClock(time.Time{})
	f := newNegotiationFixture(channel.ScheduleTeam, "leader-1")
	svc := f.service(&stubNegotiations{}, clock)

	_, err := svc.Approve(context.Background(), Principal{UserID: "leader-1"}, 99)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestNegotiationService_Approve_NormalMessageIsNotFound(t *testing.T) {
	t.Parallel()

	clock := testfixtures.NewClock(time.Time{})
	f := newNegotiationFixture(channel.ScheduleTeam, "leader-1")
	f.request = testfixtures.Message(2, "member-1", "just chatting")
	svc := f.service(&stubNegotiations{}, clock)

	_, err := svc.Approve(context.Background(), Principal{UserID: "leader-1"}, 2)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for a non-request message, got %v", err)
	}
}

func TestNegotiationService_Reject_LeaderOnly(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name      string
		responder string
		wantErr   error
	}{
		{name: "leader rejects", responder: "leader-1"},
		{name: "member cannot reject", responder: "member-2", wantErr: ErrForbidden},
		{name: "creator of personal schedule cannot reject", responder: "member-2", wantErr: ErrForbidden},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			clock := testfixtures.NewClock(time.Time{})
			f := newNegotiationFixture(channel.SchedulePersonal, "member-2")
			negotiations := &stubNegotiations{rejectFn: func(requestID int64, responderID string, now time.Time) (channel.Message, error) {
				response := testfixtures.Message(3, responderID, "rejected")
				response.Type = channel.MessageTypeScheduleRejected
				response.AckState = channel.AckStatePending
				return response, nil
			}}
			svc := f.service(negotiations, clock)

			response, err := svc.Reject(context.Background(), Principal{UserID: tc.responder}, f.request.ID)

			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("expected %v, got %v", tc.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Reject: %v", err)
			}
			if response.Type != channel.MessageTypeScheduleRejected {
				t.Fatalf("response type = %s", response.Type)
			}
		})
	}
}

func TestNegotiationService_Acknowledge(t *testing.T) {
	t.Parallel()

	response := testfixtures.Message(3, "leader-1", "approved")
	response.Type = channel.MessageTypeScheduleApproved
	response.AckState = channel.AckStatePending

	normal := testfixtures.Message(4, "member-1", "hello")

	cases := []struct {
		name      string
		stored    channel.Message
		principal string
		wantVErr  bool
		wantErr   error
	}{
		{name: "member acknowledges response", stored: response, principal: "member-1"},
		{name: "normal message cannot be acknowledged", stored: normal, principal: "member-1", wantVErr: true},
		{name: "outsider is forbidden", stored: response, principal: "outsider", wantErr: ErrForbidden},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			messages := &stubMessages{
				getFn: func(id int64) (channel.Message, error) {
					if id != tc.stored.ID {
						return channel.Message{}, persistence.ErrNotFound
					}
					return tc.stored, nil
				},
				ackFn: func(id int64) (channel.Message, error) {
					acked := tc.stored
					acked.AckState = channel.AckStateResolved
					return acked, nil
				},
			}
			svc := NewNegotiationService(messages, &stubSchedules{}, &stubNegotiations{}, referenceTeams(), nil)

			acked, err := svc.Acknowledge(context.Background(), Principal{UserID: tc.principal}, tc.stored.ID)

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
					t.Fatalf("Acknowledge: %v", err)
				}
				if acked.AckState != channel.AckStateResolved {
					t.Fatalf("ack state = %s, want resolved", acked.AckState)
				}
			}
		})
	}
}

func TestNegotiationService_CheckConflict(t *testing.T) {
	t.Parallel()

	base := testfixtures.ReferenceTime()
	intervals := []scheduler.Interval{
		{ScheduleID: 5, Start: base.Add(1 * time.Hour), End: base.Add(2 * time.Hour)},
		{ScheduleID: 9, Start: base.Add(4 * time.Hour), End: base.Add(5 * time.Hour)},
	}
	schedules := &stubSchedules{intervalsFn: func(userID string) ([]scheduler.Interval, error) {
		return intervals, nil
	}}
	svc := NewNegotiationService(&stubMessages{}, schedules, &stubNegotiations{}, referenceTeams(), nil)

	cases := []struct {
		name      string
		start     time.Time
		end       time.Time
		excludeID int64
		want      bool
	}{
		{name: "overlap detected", start: base.Add(90 * time.Minute), end: base.Add(3 * time.Hour), want: true},
		{name: "touching intervals do not conflict", start: base.Add(2 * time.Hour), end: base.Add(3 * time.Hour), want: false},
		{name: "excluded schedule is ignored", start: base.Add(1 * time.Hour), end: base.Add(2 * time.Hour), excludeID: 5, want: false},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			check, err := svc.CheckConflict(context.Background(), "member-1", tc.start, tc.end, tc.excludeID)
			if err != nil {
				t.Fatalf("CheckConflict: %v", err)
			}
			if check.HasConflict != tc.want {
				t.Fatalf("HasConflict = %v, want %v", check.HasConflict, tc.want)
			}
		})
	}
}

func TestNegotiationService_CheckConflict_Validation(t *testing.T) {
	t.Parallel()

	svc := NewNegotiationService(&stubMessages{}, &stubSchedules{}, &stubNegotiations{}, referenceTeams(), nil)
	base := testfixtures.ReferenceTime()

	cases := []struct {
		name   string
		userID string
		start  time.Time
		end    time.Time
	}{
		{name: "missing user", userID: "", start: base, end: base.Add(time.Hour)},
		{name: "zero interval", userID: "member-1"},
		{name: "inverted interval", userID: "member-1", start: base.Add(time.Hour), end: base},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			_, err := svc.CheckConflict(context.Background(), tc.userID, tc.start, tc.end, 0)
			var vErr *ValidationError
			if !errors.As(err, &vErr) {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
}
