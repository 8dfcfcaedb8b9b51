package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/example/team-channel/internal/channel"
	"github.com/example/team-channel/internal/persistence"
	"github.com/example/team-channel/internal/scheduler"
)

// Response message content is generated server side, mirroring the localized
// strings the clients display.
const (
	approvedContent = "スケジュール変更リクエストを承認しました。"
	rejectedContent = "スケジュール変更リクエストを却下しました。"
)

// ApproveRequest resolves a pending schedule request. The pending check, the
// conflict check against the requester's confirmed schedules, the schedule
// interval update, the request status update and the response message insert
// all run inside one transaction; either every effect commits or none does.
func (s *Store) ApproveRequest(ctx context.Context, requestID int64, responderID string, now time.Time) (persistence.ApproveResult, error) {
	var result persistence.ApproveResult
	err := s.WithTransaction(ctx, func(tx *sql.Tx) error {
		request, err := pendingRequestTx(tx, requestID)
		if err != nil {
			return err
		}

		intervals, err := listConfirmedIntervalsTx(tx, request.RequesterID)
		if err != nil {
			return err
		}
		if scheduler.HasConflict(intervals, request.RequestedStart, request.RequestedEnd, request.ScheduleID) {
			return persistence.ErrScheduleConflict
		}

		if _, err := tx.Exec(`
			UPDATE schedules SET start_datetime = ?, end_datetime = ? WHERE id = ?`,
			formatTime(request.RequestedStart),
			formatTime(request.RequestedEnd),
			request.ScheduleID,
		); err != nil {
			return mapError(err)
		}

		if _, err := tx.Exec(`
			UPDATE messages SET negotiation_status = ? WHERE id = ?`,
			string(channel.NegotiationApproved), requestID,
		); err != nil {
			return mapError(err)
		}

		requestMsg, err := getMessageTx(tx, requestID)
		if err != nil {
			return err
		}

		response, err := insertResponseTx(tx, requestMsg, responderID, channel.MessageTypeScheduleApproved, approvedContent, now)
		if err != nil {
			return err
		}

		schedule, err := getScheduleTx(tx, request.ScheduleID)
		if err != nil {
			return err
		}

		result = persistence.ApproveResult{Schedule: schedule, ResponseMessage: response}
		return nil
	})
	if err != nil {
		return persistence.ApproveResult{}, err
	}
	return result, nil
}

// RejectRequest resolves a pending schedule request without touching the
// schedule. The status update and the response message commit together.
func (s *Store) RejectRequest(ctx context.Context, requestID int64, responderID string, now time.Time) (channel.Message, error) {
	var response channel.Message
	err := s.WithTransaction(ctx, func(tx *sql.Tx) error {
		if _, err := pendingRequestTx(tx, requestID); err != nil {
			return err
		}

		if _, err := tx.Exec(`
			UPDATE messages SET negotiation_status = ? WHERE id = ?`,
			string(channel.NegotiationRejected), requestID,
		); err != nil {
			return mapError(err)
		}

		requestMsg, err := getMessageTx(tx, requestID)
		if err != nil {
			return err
		}

		response, err = insertResponseTx(tx, requestMsg, responderID, channel.MessageTypeScheduleRejected, rejectedContent, now)
		return err
	})
	if err != nil {
		return channel.Message{}, err
	}
	return response, nil
}

// pendingRequestTx loads the request message and verifies it is still open.
func pendingRequestTx(tx *sql.Tx, requestID int64) (channel.NegotiationRequest, error) {
	msg, err := getMessageTx(tx, requestID)
	if err != nil {
		return channel.NegotiationRequest{}, err
	}

	request, ok := channel.RequestFromMessage(msg)
	if !ok {
		return channel.NegotiationRequest{}, fmt.Errorf("%w: message %d is not a schedule request", persistence.ErrNotFound, requestID)
	}
	if request.Status.Resolved() {
		return channel.NegotiationRequest{}, persistence.ErrAlreadyResolved
	}
	return request, nil
}

func insertResponseTx(tx *sql.Tx, request channel.Message, responderID string, msgType channel.MessageType, content string, now time.Time) (channel.Message, error) {
	return insertMessageTx(tx, channel.Message{
		Key:               request.Key,
		SenderID:          responderID,
		Content:           content,
		Type:              msgType,
		RelatedScheduleID: request.RelatedScheduleID,
		RelatedRequestID:  &request.ID,
		SentAt:            now,
		AckState:          channel.AckStatePending,
	})
}
