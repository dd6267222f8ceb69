package database

import (
	"context"
	"errors"

	"github.com/JonMunkholm/qrtrack/internal/core"
	"github.com/jackc/pgx/v5"
)

const (
	sessionColumns    = `id, dataset_id, name, scheduled_at, created_by, created_at`
	attendanceColumns = `participant_id, session_id, attended, recorded_at, recorded_by`
)

func (s *Store) CreateCheckInSession(ctx context.Context, cs *core.CheckInSession) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO checkin_sessions (`+sessionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		cs.ID, cs.DatasetID, cs.Name, cs.ScheduledAt, cs.CreatedBy, cs.CreatedAt,
	)
	return translate(err, "check-in session", cs.ID)
}

func (s *Store) GetCheckInSession(ctx context.Context, id string) (*core.CheckInSession, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+sessionColumns+` FROM checkin_sessions WHERE id = $1`, id)
	cs, err := scanSession(row)
	if err != nil {
		return nil, translate(err, "check-in session", id)
	}
	return cs, nil
}

func (s *Store) ListCheckInSessions(ctx context.Context, datasetID string) ([]core.CheckInSession, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+sessionColumns+` FROM checkin_sessions WHERE dataset_id = $1 ORDER BY id`, datasetID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []core.CheckInSession{}
	for rows.Next() {
		cs, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *cs)
	}
	return out, rows.Err()
}

func scanSession(row pgx.Row) (*core.CheckInSession, error) {
	var cs core.CheckInSession
	if err := row.Scan(&cs.ID, &cs.DatasetID, &cs.Name, &cs.ScheduledAt, &cs.CreatedBy, &cs.CreatedAt); err != nil {
		return nil, err
	}
	cs.CreatedAt = cs.CreatedAt.UTC()
	if cs.ScheduledAt != nil {
		t := cs.ScheduledAt.UTC()
		cs.ScheduledAt = &t
	}
	return &cs, nil
}

// MarkAttended relies on the (participant_id, session_id) primary key:
// concurrent first scans race on the insert and exactly one wins. The
// losers read back the winner's row.
func (s *Store) MarkAttended(ctx context.Context, a core.Attendance) (core.Attendance, bool, error) {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO attendance (`+attendanceColumns+`)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (participant_id, session_id) DO NOTHING
		RETURNING `+attendanceColumns,
		a.ParticipantID, a.SessionID, a.Attended, a.RecordedAt, a.RecordedBy,
	)
	stored, err := scanAttendance(row)
	if err == nil {
		return *stored, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return core.Attendance{}, false, translate(err, "attendance", a.ParticipantID)
	}

	existing, err := s.GetAttendance(ctx, a.ParticipantID, a.SessionID)
	if err != nil {
		return core.Attendance{}, false, err
	}
	return *existing, false, nil
}

func (s *Store) GetAttendance(ctx context.Context, participantID, sessionID string) (*core.Attendance, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+attendanceColumns+` FROM attendance
		WHERE participant_id = $1 AND session_id = $2`, participantID, sessionID)
	a, err := scanAttendance(row)
	if err != nil {
		return nil, translate(err, "attendance", participantID)
	}
	return a, nil
}

func (s *Store) ListAttendance(ctx context.Context, sessionID string) ([]core.Attendance, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+attendanceColumns+` FROM attendance
		WHERE session_id = $1 ORDER BY recorded_at, participant_id`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []core.Attendance{}
	for rows.Next() {
		a, err := scanAttendance(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

func scanAttendance(row pgx.Row) (*core.Attendance, error) {
	var a core.Attendance
	if err := row.Scan(&a.ParticipantID, &a.SessionID, &a.Attended, &a.RecordedAt, &a.RecordedBy); err != nil {
		return nil, err
	}
	a.RecordedAt = a.RecordedAt.UTC()
	return &a, nil
}
