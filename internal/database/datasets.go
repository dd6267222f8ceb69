package database

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/JonMunkholm/qrtrack/internal/core"
	"github.com/jackc/pgx/v5"
)

const datasetColumns = `id, organization_id, name, description, source_application,
	schema, record_count, status, created_by, created_at, updated_at`

func (s *Store) CreateDataset(ctx context.Context, d *core.Dataset) error {
	schemaJSON, err := json.Marshal(d.Schema)
	if err != nil {
		return fmt.Errorf("encode schema: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO datasets (`+datasetColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6::jsonb, 0, $7, $8, $9, $10)`,
		d.ID, d.OrganizationID, d.Name, d.Description, d.SourceApplication,
		string(schemaJSON), string(d.Status), d.CreatedBy, d.CreatedAt, d.UpdatedAt,
	)
	return translate(err, "dataset", d.ID)
}

func (s *Store) GetDataset(ctx context.Context, id string) (*core.Dataset, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+datasetColumns+` FROM datasets WHERE id = $1`, id)
	d, err := scanDataset(row)
	if err != nil {
		return nil, translate(err, "dataset", id)
	}
	return d, nil
}

// ListDatasets returns live datasets newest first. An empty orgID lists all.
func (s *Store) ListDatasets(ctx context.Context, orgID string) ([]core.Dataset, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+datasetColumns+` FROM datasets
		WHERE status <> $1 AND ($2 = '' OR organization_id = $2)
		ORDER BY created_at DESC, id`,
		string(core.DatasetDeleted), orgID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []core.Dataset{}
	for rows.Next() {
		d, err := scanDataset(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *d)
	}
	return out, rows.Err()
}

func scanDataset(row pgx.Row) (*core.Dataset, error) {
	var (
		d      core.Dataset
		schema []byte
		status string
	)
	err := row.Scan(
		&d.ID, &d.OrganizationID, &d.Name, &d.Description, &d.SourceApplication,
		&schema, &d.Metadata.RecordCount, &status, &d.CreatedBy, &d.CreatedAt, &d.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(schema, &d.Schema); err != nil {
		return nil, fmt.Errorf("decode schema for dataset %s: %w", d.ID, err)
	}
	d.Status = core.DatasetStatus(status)
	d.CreatedAt = d.CreatedAt.UTC()
	d.UpdatedAt = d.UpdatedAt.UTC()
	return &d, nil
}

// RecountDataset sets record_count to the number of live records.
func (s *Store) RecountDataset(ctx context.Context, datasetID string) (core.RecountResult, error) {
	res := core.RecountResult{DatasetID: datasetID}
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx,
			`SELECT record_count FROM datasets WHERE id = $1 FOR UPDATE`, datasetID,
		).Scan(&res.Stored)
		if err != nil {
			return translate(err, "dataset", datasetID)
		}
		err = tx.QueryRow(ctx,
			`SELECT COUNT(*) FROM participant_records WHERE dataset_id = $1 AND deleted_at IS NULL`, datasetID,
		).Scan(&res.Actual)
		if err != nil {
			return err
		}
		if res.Actual == res.Stored {
			return nil
		}
		_, err = tx.Exec(ctx, `UPDATE datasets SET record_count = $2 WHERE id = $1`, datasetID, res.Actual)
		return err
	})
	return res, err
}
