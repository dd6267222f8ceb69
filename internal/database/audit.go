package database

import (
	"context"
	"fmt"

	"github.com/JonMunkholm/qrtrack/internal/core"
	"github.com/jackc/pgx/v5"
)

const auditColumns = `id, action, severity, actor_id, ip_address, user_agent,
	dataset_id, record_id, session_id, details, created_at`

func (s *Store) InsertAudit(ctx context.Context, e core.AuditEntry) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO audit_log (`+auditColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		e.ID, string(e.Action), string(e.Severity), e.ActorID, e.IPAddress, e.UserAgent,
		e.DatasetID, e.RecordID, e.SessionID, e.Details, e.CreatedAt,
	)
	return translate(err, "audit entry", e.ID)
}

// ListAudit returns matching entries newest first.
func (s *Store) ListAudit(ctx context.Context, f core.AuditFilter) ([]core.AuditEntry, error) {
	wb := &whereBuilder{}
	wb.add("dataset_id", f.DatasetID)
	wb.add("action", string(f.Action))
	where, args := wb.build()

	limit := f.Limit
	if limit <= 0 {
		limit = core.DefaultAuditLimit
	}
	query := `SELECT ` + auditColumns + ` FROM audit_log` + where +
		fmt.Sprintf(` ORDER BY created_at DESC, id LIMIT $%d OFFSET $%d`, wb.nextArg(), wb.nextArg()+1)
	args = append(args, limit, max(f.Offset, 0))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]core.AuditEntry, 0)
	for rows.Next() {
		e, err := scanAuditRow(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *e)
	}
	return entries, rows.Err()
}

func scanAuditRow(rows pgx.Rows) (*core.AuditEntry, error) {
	var (
		e        core.AuditEntry
		action   string
		severity string
	)
	err := rows.Scan(
		&e.ID, &action, &severity, &e.ActorID, &e.IPAddress, &e.UserAgent,
		&e.DatasetID, &e.RecordID, &e.SessionID, &e.Details, &e.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	e.Action = core.AuditAction(action)
	e.Severity = core.AuditSeverity(severity)
	e.CreatedAt = e.CreatedAt.UTC()
	return &e, nil
}
