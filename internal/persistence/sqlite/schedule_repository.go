package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/example/team-channel/internal/channel"
	"github.com/example/team-channel/internal/persistence"
	"github.com/example/team-channel/internal/scheduler"
)

// GetSchedule retrieves a schedule and its participant list.
func (s *Store) GetSchedule(ctx context.Context, id int64) (channel.Schedule, error) {
	var schedule channel.Schedule
	err := s.WithTransaction(ctx, func(tx *sql.Tx) error {
		var err error
		schedule, err = getScheduleTx(tx, id)
		return err
	})
	if err != nil {
		return channel.Schedule{}, err
	}
	return schedule, nil
}

func getScheduleTx(tx *sql.Tx, id int64) (channel.Schedule, error) {
	var (
		schedule     channel.Schedule
		scheduleType string
		start, end   string
		teamID       sql.NullString
	)
	err := tx.QueryRow(`
		SELECT id, title, content, start_datetime, end_datetime, schedule_type, creator_id, team_id
		FROM schedules
		WHERE id = ?`, id,
	).Scan(&schedule.ID, &schedule.Title, &schedule.Content, &start, &end, &scheduleType, &schedule.CreatorID, &teamID)
	if err != nil {
		return channel.Schedule{}, mapError(err)
	}

	schedule.Type = channel.ScheduleType(scheduleType)
	if teamID.Valid {
		schedule.TeamID = &teamID.String
	}
	if schedule.Start, err = parseTime(start); err != nil {
		return channel.Schedule{}, err
	}
	if schedule.End, err = parseTime(end); err != nil {
		return channel.Schedule{}, err
	}

	rows, err := tx.Query(`
		SELECT user_id, participation_status
		FROM schedule_participants
		WHERE schedule_id = ?
		ORDER BY user_id ASC`, id)
	if err != nil {
		return channel.Schedule{}, mapError(err)
	}
	defer rows.Close()

	for rows.Next() {
		var participant channel.Participant
		var status string
		if err := rows.Scan(&participant.UserID, &status); err != nil {
			return channel.Schedule{}, mapError(err)
		}
		participant.Status = channel.ParticipationStatus(status)
		schedule.Participants = append(schedule.Participants, participant)
	}
	if err := rows.Err(); err != nil {
		return channel.Schedule{}, mapError(err)
	}
	return schedule, nil
}

// ListConfirmedIntervals returns the intervals of every schedule the user
// participates in with confirmed status. This is the detector's input set.
func (s *Store) ListConfirmedIntervals(ctx context.Context, userID string) ([]scheduler.Interval, error) {
	rows, err := s.db.QueryContext(ctx, confirmedIntervalsQuery, userID)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()
	return scanIntervals(rows)
}

const confirmedIntervalsQuery = `
	SELECT s.id, s.start_datetime, s.end_datetime
	FROM schedules s
	JOIN schedule_participants p ON p.schedule_id = s.id
	WHERE p.user_id = ? AND p.participation_status = 'confirmed'
	ORDER BY s.start_datetime ASC, s.id ASC`

func listConfirmedIntervalsTx(tx *sql.Tx, userID string) ([]scheduler.Interval, error) {
	rows, err := tx.Query(confirmedIntervalsQuery, userID)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()
	return scanIntervals(rows)
}

func scanIntervals(rows *sql.Rows) ([]scheduler.Interval, error) {
	var intervals []scheduler.Interval
	for rows.Next() {
		var iv scheduler.Interval
		var start, end string
		if err := rows.Scan(&iv.ScheduleID, &start, &end); err != nil {
			return nil, mapError(err)
		}
		var err error
		if iv.Start, err = parseTime(start); err != nil {
			return nil, err
		}
		if iv.End, err = parseTime(end); err != nil {
			return nil, err
		}
		intervals = append(intervals, iv)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err)
	}
	return intervals, nil
}

// InsertSchedule stores a schedule with its participants and returns the
// assigned id. Used by seeding and by the surrounding CRUD surface.
func (s *Store) InsertSchedule(ctx context.Context, schedule channel.Schedule) (channel.Schedule, error) {
	err := s.WithTransaction(ctx, func(tx *sql.Tx) error {
		result, err := tx.Exec(`
			INSERT INTO schedules (title, content, start_datetime, end_datetime, schedule_type, creator_id, team_id)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			schedule.Title,
			schedule.Content,
			formatTime(schedule.Start),
			formatTime(schedule.End),
			string(schedule.Type),
			schedule.CreatorID,
			nullString(schedule.TeamID),
		)
		if err != nil {
			return mapError(err)
		}
		id, err := result.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to read inserted schedule id: %w", err)
		}
		schedule.ID = id

		for _, participant := range schedule.Participants {
			if _, err := tx.Exec(`
				INSERT INTO schedule_participants (schedule_id, user_id, participation_status)
				VALUES (?, ?, ?)`,
				id, participant.UserID, string(participant.Status)); err != nil {
				return mapError(err)
			}
		}
		return nil
	})
	if err != nil {
		return channel.Schedule{}, err
	}
	return schedule, nil
}

// SetParticipantStatus updates one participant's standing on a schedule.
func (s *Store) SetParticipantStatus(ctx context.Context, scheduleID int64, userID string, status channel.ParticipationStatus) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE schedule_participants
		SET participation_status = ?
		WHERE schedule_id = ? AND user_id = ?`,
		string(status), scheduleID, userID)
	if err != nil {
		return mapError(err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return persistence.ErrNotFound
	}
	return nil
}

func nullString(value *string) sql.NullString {
	if value == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *value, Valid: true}
}
