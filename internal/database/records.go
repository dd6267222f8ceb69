package database

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/JonMunkholm/qrtrack/internal/core"
	"github.com/jackc/pgx/v5"
)

const recordColumns = `id, dataset_id, seq, fields, created_by, created_at, updated_at`

// InsertRecords writes records and bumps the dataset's record_count in one
// transaction.
func (s *Store) InsertRecords(ctx context.Context, datasetID string, records []core.ParticipantRecord) error {
	if len(records) == 0 {
		return nil
	}
	return s.inTx(ctx, func(tx pgx.Tx) error {
		var exists bool
		err := tx.QueryRow(ctx, `SELECT true FROM datasets WHERE id = $1 FOR UPDATE`, datasetID).Scan(&exists)
		if err != nil {
			return translate(err, "dataset", datasetID)
		}

		batch := &pgx.Batch{}
		for i := range records {
			fields, err := json.Marshal(nonNilFields(records[i].Fields))
			if err != nil {
				return fmt.Errorf("encode record %s: %w", records[i].ID, err)
			}
			batch.Queue(`
				INSERT INTO participant_records (id, dataset_id, fields, created_by, created_at, updated_at)
				VALUES ($1, $2, $3::jsonb, $4, $5, $6)
				RETURNING seq`,
				records[i].ID, datasetID, string(fields), records[i].CreatedBy, records[i].CreatedAt, records[i].UpdatedAt,
			)
		}

		br := tx.SendBatch(ctx, batch)
		for i := range records {
			if err := br.QueryRow().Scan(&records[i].Seq); err != nil {
				_ = br.Close()
				return translate(err, "record", records[i].ID)
			}
			records[i].DatasetID = datasetID
		}
		if err := br.Close(); err != nil {
			return err
		}

		_, err = tx.Exec(ctx,
			`UPDATE datasets SET record_count = record_count + $2 WHERE id = $1`,
			datasetID, len(records))
		return err
	})
}

func (s *Store) GetRecord(ctx context.Context, id string) (*core.ParticipantRecord, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+recordColumns+` FROM participant_records WHERE id = $1 AND deleted_at IS NULL`, id)
	r, err := scanRecord(row)
	if err != nil {
		return nil, translate(err, "record", id)
	}
	return r, nil
}

// MergeRecordFields overlays partial onto the stored fields. Empty values
// remove their key.
func (s *Store) MergeRecordFields(ctx context.Context, id string, partial map[string]string, at time.Time) (*core.ParticipantRecord, error) {
	set := make(map[string]string, len(partial))
	var drop []string
	for k, v := range partial {
		if v == "" {
			drop = append(drop, k)
			continue
		}
		set[k] = v
	}
	setJSON, err := json.Marshal(set)
	if err != nil {
		return nil, fmt.Errorf("encode fields: %w", err)
	}
	if drop == nil {
		drop = []string{}
	}

	row := s.pool.QueryRow(ctx, `
		UPDATE participant_records
		SET fields = (fields || $2::jsonb) - $3::text[], updated_at = $4
		WHERE id = $1 AND deleted_at IS NULL
		RETURNING `+recordColumns,
		id, string(setJSON), drop, at,
	)
	r, err := scanRecord(row)
	if err != nil {
		return nil, translate(err, "record", id)
	}
	return r, nil
}

// DeleteRecord soft-deletes a record and decrements the dataset count.
func (s *Store) DeleteRecord(ctx context.Context, id string, at time.Time) error {
	return s.inTx(ctx, func(tx pgx.Tx) error {
		var datasetID string
		err := tx.QueryRow(ctx, `
			UPDATE participant_records SET deleted_at = $2, updated_at = $2
			WHERE id = $1 AND deleted_at IS NULL
			RETURNING dataset_id`, id, at,
		).Scan(&datasetID)
		if err != nil {
			return translate(err, "record", id)
		}
		_, err = tx.Exec(ctx,
			`UPDATE datasets SET record_count = record_count - 1 WHERE id = $1`, datasetID)
		return err
	})
}

// ListRecords pages through live records in creation order. limit <= 0
// returns everything after offset.
func (s *Store) ListRecords(ctx context.Context, datasetID string, offset, limit int) ([]core.ParticipantRecord, error) {
	return s.queryRecords(ctx, `
		SELECT `+recordColumns+` FROM participant_records
		WHERE dataset_id = $1 AND deleted_at IS NULL
		ORDER BY seq OFFSET $2 LIMIT NULLIF($3, 0)`,
		datasetID, max(offset, 0), max(limit, 0))
}

// SearchRecords does a case-insensitive substring match over the named fields.
func (s *Store) SearchRecords(ctx context.Context, datasetID string, fields []string, query string, limit int) ([]core.ParticipantRecord, error) {
	if len(fields) == 0 {
		return []core.ParticipantRecord{}, nil
	}
	return s.queryRecords(ctx, `
		SELECT `+recordColumns+` FROM participant_records r
		WHERE r.dataset_id = $1 AND r.deleted_at IS NULL
		  AND EXISTS (
			SELECT 1 FROM jsonb_each_text(r.fields) kv
			WHERE kv.key = ANY($2) AND kv.value ILIKE $3 ESCAPE '\'
		  )
		ORDER BY r.seq LIMIT NULLIF($4, 0)`,
		datasetID, fields, "%"+escapeLike(query)+"%", max(limit, 0))
}

// FindRecords returns live records whose field equals value exactly.
func (s *Store) FindRecords(ctx context.Context, datasetID, field, value string, limit int) ([]core.ParticipantRecord, error) {
	return s.queryRecords(ctx, `
		SELECT `+recordColumns+` FROM participant_records
		WHERE dataset_id = $1 AND deleted_at IS NULL AND fields->>$2 = $3
		ORDER BY seq LIMIT NULLIF($4, 0)`,
		datasetID, field, value, max(limit, 0))
}

func (s *Store) queryRecords(ctx context.Context, sql string, args ...any) ([]core.ParticipantRecord, error) {
	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []core.ParticipantRecord{}
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

func scanRecord(row pgx.Row) (*core.ParticipantRecord, error) {
	var r core.ParticipantRecord
	if err := row.Scan(&r.ID, &r.DatasetID, &r.Seq, &r.Fields, &r.CreatedBy, &r.CreatedAt, &r.UpdatedAt); err != nil {
		return nil, err
	}
	r.Fields = nonNilFields(r.Fields)
	r.CreatedAt = r.CreatedAt.UTC()
	r.UpdatedAt = r.UpdatedAt.UTC()
	return &r, nil
}

func nonNilFields(m map[string]string) map[string]string {
	if m == nil {
		return map[string]string{}
	}
	return m
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// escapeLike quotes LIKE wildcards so the query matches literally.
func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
