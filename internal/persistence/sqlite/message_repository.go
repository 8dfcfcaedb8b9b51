package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/example/team-channel/internal/channel"
	"github.com/example/team-channel/internal/persistence"
)

const messageColumns = `id, team_id, sender_id, content, target_date, message_type,
	related_schedule_id, related_request_id, requested_start, requested_end,
	ack_state, negotiation_status, sent_at`

// InsertMessage appends a message to the channel log and returns the stored
// row with its server-assigned id.
func (s *Store) InsertMessage(ctx context.Context, msg channel.Message) (channel.Message, error) {
	var inserted channel.Message
	err := s.WithTransaction(ctx, func(tx *sql.Tx) error {
		var err error
		inserted, err = insertMessageTx(tx, msg)
		return err
	})
	if err != nil {
		return channel.Message{}, err
	}
	return inserted, nil
}

func insertMessageTx(tx *sql.Tx, msg channel.Message) (channel.Message, error) {
	ackState := sql.NullString{}
	if msg.AckState != channel.AckStateNone {
		ackState = sql.NullString{String: string(msg.AckState), Valid: true}
	}
	negotiationStatus := sql.NullString{}
	if msg.NegotiationStatus != channel.NegotiationNone {
		negotiationStatus = sql.NullString{String: string(msg.NegotiationStatus), Valid: true}
	}

	result, err := tx.Exec(`
		INSERT INTO messages (team_id, sender_id, content, target_date, message_type,
			related_schedule_id, related_request_id, requested_start, requested_end,
			ack_state, negotiation_status, sent_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		msg.Key.TeamID,
		msg.SenderID,
		msg.Content,
		msg.Key.Date,
		string(msg.Type),
		nullInt64(msg.RelatedScheduleID),
		nullInt64(msg.RelatedRequestID),
		nullTime(msg.RequestedStart),
		nullTime(msg.RequestedEnd),
		ackState,
		negotiationStatus,
		formatTime(msg.SentAt),
	)
	if err != nil {
		return channel.Message{}, mapError(err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return channel.Message{}, fmt.Errorf("failed to read inserted message id: %w", err)
	}

	return getMessageTx(tx, id)
}

// ListMessages returns channel messages with id > afterID in ascending
// (sent_at, id) order. afterID 0 returns the full log.
func (s *Store) ListMessages(ctx context.Context, key channel.Key, afterID int64) ([]channel.Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+messageColumns+`
		FROM messages
		WHERE team_id = ? AND target_date = ? AND id > ?
		ORDER BY sent_at ASC, id ASC`,
		key.TeamID, key.Date, afterID,
	)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var messages []channel.Message
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err)
	}
	return messages, nil
}

// GetMessage retrieves a single message by id.
func (s *Store) GetMessage(ctx context.Context, id int64) (channel.Message, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+messageColumns+`
		FROM messages
		WHERE id = ?`, id)
	return scanMessage(row)
}

func getMessageTx(tx *sql.Tx, id int64) (channel.Message, error) {
	row := tx.QueryRow(`
		SELECT `+messageColumns+`
		FROM messages
		WHERE id = ?`, id)
	return scanMessage(row)
}

// AcknowledgeMessage marks a negotiation response message as read. A second
// acknowledge finds ack_state already resolved and changes nothing.
func (s *Store) AcknowledgeMessage(ctx context.Context, id int64) (channel.Message, error) {
	var acked channel.Message
	err := s.WithTransaction(ctx, func(tx *sql.Tx) error {
		msg, err := getMessageTx(tx, id)
		if err != nil {
			return err
		}
		if !msg.Type.IsResponse() {
			return fmt.Errorf("%w: message %d is not a negotiation response", persistence.ErrConstraintViolation, id)
		}
		if msg.AckState == channel.AckStateResolved {
			acked = msg
			return nil
		}
		if _, err := tx.Exec(`UPDATE messages SET ack_state = ? WHERE id = ?`,
			string(channel.AckStateResolved), id); err != nil {
			return mapError(err)
		}
		msg.AckState = channel.AckStateResolved
		acked = msg
		return nil
	})
	if err != nil {
		return channel.Message{}, err
	}
	return acked, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMessage(row rowScanner) (channel.Message, error) {
	var (
		msg               channel.Message
		messageType       string
		relatedScheduleID sql.NullInt64
		relatedRequestID  sql.NullInt64
		requestedStart    sql.NullString
		requestedEnd      sql.NullString
		ackState          sql.NullString
		negotiationStatus sql.NullString
		sentAt            string
	)

	err := row.Scan(
		&msg.ID,
		&msg.Key.TeamID,
		&msg.SenderID,
		&msg.Content,
		&msg.Key.Date,
		&messageType,
		&relatedScheduleID,
		&relatedRequestID,
		&requestedStart,
		&requestedEnd,
		&ackState,
		&negotiationStatus,
		&sentAt,
	)
	if err != nil {
		return channel.Message{}, mapError(err)
	}

	msg.Type = channel.MessageType(messageType)
	if relatedScheduleID.Valid {
		msg.RelatedScheduleID = &relatedScheduleID.Int64
	}
	if relatedRequestID.Valid {
		msg.RelatedRequestID = &relatedRequestID.Int64
	}
	if requestedStart.Valid {
		start, err := parseTime(requestedStart.String)
		if err != nil {
			return channel.Message{}, err
		}
		msg.RequestedStart = &start
	}
	if requestedEnd.Valid {
		end, err := parseTime(requestedEnd.String)
		if err != nil {
			return channel.Message{}, err
		}
		msg.RequestedEnd = &end
	}
	if ackState.Valid {
		msg.AckState = channel.AckState(ackState.String)
	}
	if negotiationStatus.Valid {
		msg.NegotiationStatus = channel.NegotiationStatus(negotiationStatus.String)
	}

	msg.SentAt, err = parseTime(sentAt)
	if err != nil {
		return channel.Message{}, err
	}
	return msg, nil
}

func nullInt64(value *int64) sql.NullInt64 {
	if value == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *value, Valid: true}
}

func nullTime(value *time.Time) sql.NullString {
	if value == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*value), Valid: true}
}
