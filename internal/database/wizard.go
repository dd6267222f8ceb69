package database

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/JonMunkholm/qrtrack/internal/core"
	"github.com/jackc/pgx/v5/pgtype"
)

// Step payloads are kept in one JSONB object keyed by step number.

func (s *Store) GetWizard(ctx context.Context, id string) (*core.WizardSession, error) {
	var (
		w         core.WizardSession
		completed []int32
		steps     map[string]json.RawMessage
		status    string
		datasetID pgtype.Text
	)
	err := s.pool.QueryRow(ctx, `
		SELECT id, current_step, completed_steps, status, steps, dataset_id, created_at, updated_at
		FROM wizard_sessions WHERE id = $1`, id,
	).Scan(&w.ID, &w.CurrentStep, &completed, &status, &steps, &datasetID, &w.CreatedAt, &w.UpdatedAt)
	if err != nil {
		return nil, translate(err, "wizard", id)
	}

	ints := make([]int, len(completed))
	for i, n := range completed {
		ints[i] = int(n)
	}
	w.CompletedSteps = core.NormalizeCompleted(ints)
	w.CurrentStep = core.ClampStep(w.CurrentStep)
	w.Status = core.WizardStatus(status)
	w.DatasetID = datasetID.String
	w.CreatedAt = w.CreatedAt.UTC()
	w.UpdatedAt = w.UpdatedAt.UTC()
	for key, payload := range steps {
		n, err := strconv.Atoi(key)
		if err != nil {
			continue
		}
		w.SetPayload(n, payload)
	}
	return &w, nil
}

func (s *Store) CreateWizard(ctx context.Context, w *core.WizardSession) error {
	steps := make(map[string]json.RawMessage)
	for n := core.FirstStep; n <= core.LastStep; n++ {
		if p := w.Payload(n); p != nil {
			steps[strconv.Itoa(n)] = p
		}
	}
	stepsJSON, err := json.Marshal(steps)
	if err != nil {
		return fmt.Errorf("encode wizard steps: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO wizard_sessions (id, current_step, completed_steps, status, steps, dataset_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5::jsonb, NULLIF($6, ''), $7, $8)`,
		w.ID, w.CurrentStep, w.CompletedSteps, string(w.Status), string(stepsJSON), w.DatasetID, w.CreatedAt, w.UpdatedAt,
	)
	return translate(err, "wizard", w.ID)
}

func (s *Store) SaveStep(ctx context.Context, id string, step int, payload json.RawMessage, at time.Time) error {
	return s.execWizard(ctx, id, `
		UPDATE wizard_sessions SET
			steps = jsonb_set(steps, ARRAY[$3::text], $4::jsonb),
			completed_steps = CASE WHEN $2::int = ANY(completed_steps)
				THEN completed_steps ELSE array_append(completed_steps, $2::int) END,
			updated_at = $5
		WHERE id = $1`,
		step, strconv.Itoa(step), string(payload), at)
}

func (s *Store) SaveNavigation(ctx context.Context, id string, step int, at time.Time) error {
	return s.execWizard(ctx, id,
		`UPDATE wizard_sessions SET current_step = $2, updated_at = $3 WHERE id = $1`,
		core.ClampStep(step), at)
}

func (s *Store) SaveStatus(ctx context.Context, id string, status core.WizardStatus, at time.Time) error {
	return s.execWizard(ctx, id,
		`UPDATE wizard_sessions SET status = $2, updated_at = $3 WHERE id = $1`,
		string(status), at)
}

func (s *Store) LinkDataset(ctx context.Context, id, datasetID string, at time.Time) error {
	return s.execWizard(ctx, id,
		`UPDATE wizard_sessions SET dataset_id = NULLIF($2, ''), updated_at = $3 WHERE id = $1`,
		datasetID, at)
}

func (s *Store) ResetWizard(ctx context.Context, id string, at time.Time) error {
	return s.execWizard(ctx, id, `
		UPDATE wizard_sessions SET
			current_step = 1, completed_steps = '{}', status = 'draft',
			steps = '{}'::jsonb, dataset_id = NULL, updated_at = $2
		WHERE id = $1`,
		at)
}

// execWizard runs an update whose first argument is the session id.
func (s *Store) execWizard(ctx context.Context, id, sql string, args ...any) error {
	tag, err := s.pool.Exec(ctx, sql, append([]any{id}, args...)...)
	if err != nil {
		return translate(err, "wizard", id)
	}
	if tag.RowsAffected() == 0 {
		return core.NewNotFound("wizard", id)
	}
	return nil
}
