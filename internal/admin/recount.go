// Package admin provides maintenance operations over stored datasets.
package admin

import (
	"context"
	"fmt"
	"time"

	"github.com/JonMunkholm/qrtrack/internal/core"
	"github.com/JonMunkholm/qrtrack/internal/logging"
)

// RecountTimeout bounds a single dataset recount.
const RecountTimeout = 30 * time.Second

// Maintenance repairs derived dataset state.
type Maintenance struct {
	datasets  core.DatasetStore
	recounter core.Recounter
	audit     *core.Auditor
}

// New returns a Maintenance over store. audit may be nil.
func New(store core.Store, audit *core.Auditor) *Maintenance {
	return &Maintenance{datasets: store, recounter: store, audit: audit}
}

// Recount sets a dataset's record count to its number of live records. A
// changed count is audited.
func (m *Maintenance) Recount(ctx context.Context, datasetID string) (core.RecountResult, error) {
	ctx, cancel := context.WithTimeout(ctx, RecountTimeout)
	defer cancel()

	res, err := m.recounter.RecountDataset(ctx, datasetID)
	if err != nil {
		return res, fmt.Errorf("recount %s: %w", datasetID, err)
	}
	if res.Stored != res.Actual {
		logging.FromContext(ctx).Warn("record count repaired",
			"dataset_id", datasetID,
			"stored", res.Stored,
			"actual", res.Actual,
		)
		m.audit.Log(ctx, core.AuditEntry{
			Action:    core.ActionRecordsRecount,
			DatasetID: datasetID,
			Details:   map[string]any{"stored": res.Stored, "actual": res.Actual},
		})
	}
	return res, nil
}

// RecountAll recounts every dataset, stopping at the first failure.
func (m *Maintenance) RecountAll(ctx context.Context) ([]core.RecountResult, error) {
	datasets, err := m.datasets.ListDatasets(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("list datasets: %w", err)
	}

	results := make([]core.RecountResult, 0, len(datasets))
	for _, ds := range datasets {
		res, err := m.Recount(ctx, ds.ID)
		if err != nil {
			return results, err
		}
		results = append(results, res)
	}
	return results, nil
}
