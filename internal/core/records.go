package core

import (
	"context"
	"strings"
	"time"

	"github.com/JonMunkholm/qrtrack/internal/logging"
	"github.com/google/uuid"
)

const (
	DefaultPageSize = 50
	MaxPageSize     = 500

	// MaxSearchResults caps a single search response.
	MaxSearchResults = 500
)

// RecordService manages participant records within datasets.
//
// Keys outside a dataset's schema are rejected rather than dropped, for both
// Add and Update.
type RecordService struct {
	datasets DatasetStore
	records  RecordStore
	auditor  *Auditor
	metrics  Metrics
	now      func() time.Time
}

// Dataset returns a live dataset.
func (s *RecordService) Dataset(ctx context.Context, id string) (*Dataset, error) {
	ds, err := s.datasets.GetDataset(ctx, id)
	if err != nil {
		return nil, storeErr("get dataset", err)
	}
	if ds.Status == DatasetDeleted {
		return nil, NewNotFound("dataset", id)
	}
	return ds, nil
}

// Datasets lists the datasets of an organization.
func (s *RecordService) Datasets(ctx context.Context, orgID string) ([]Dataset, error) {
	list, err := s.datasets.ListDatasets(ctx, orgID)
	if err != nil {
		return nil, storeErr("list datasets", err)
	}
	return list, nil
}

// Add creates a record and returns its id.
func (s *RecordService) Add(ctx context.Context, datasetID string, fields map[string]string) (string, error) {
	ds, err := s.Dataset(ctx, datasetID)
	if err != nil {
		return "", err
	}
	if err := validateFields(ds.Schema, fields, false); err != nil {
		return "", err
	}
	values := dropEmpty(normalizeFields(ds.Schema, fields))
	if len(values) == 0 {
		return "", ValidationError{Message: "record has no values"}
	}

	actor := ActorFromContext(ctx)
	now := s.now().UTC()
	rec := ParticipantRecord{
		ID:        uuid.NewString(),
		DatasetID: datasetID,
		Fields:    values,
		CreatedBy: actor.UserID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.records.InsertRecords(ctx, datasetID, []ParticipantRecord{rec}); err != nil {
		return "", storeErr("insert record", err)
	}

	s.metrics.RecordMutated(ActionRecordAdd)
	s.auditor.Log(ctx, AuditEntry{Action: ActionRecordAdd, DatasetID: datasetID, RecordID: rec.ID})
	logging.FromContext(ctx).Info("record added", "dataset_id", datasetID, "record_id", rec.ID)
	return rec.ID, nil
}

// Update merges partial into a record's fields.
func (s *RecordService) Update(ctx context.Context, recordID string, partial map[string]string) (*ParticipantRecord, error) {
	existing, err := s.records.GetRecord(ctx, recordID)
	if err != nil {
		return nil, storeErr("get record", err)
	}
	ds, err := s.Dataset(ctx, existing.DatasetID)
	if err != nil {
		return nil, err
	}
	if err := validateFields(ds.Schema, partial, true); err != nil {
		return nil, err
	}

	rec, err := s.records.MergeRecordFields(ctx, recordID, normalizeFields(ds.Schema, partial), s.now().UTC())
	if err != nil {
		return nil, storeErr("update record", err)
	}

	changed := make([]string, 0, len(partial))
	for k := range partial {
		changed = append(changed, k)
	}
	s.metrics.RecordMutated(ActionRecordUpdate)
	s.auditor.Log(ctx, AuditEntry{
		Action:    ActionRecordUpdate,
		DatasetID: rec.DatasetID,
		RecordID:  rec.ID,
		Details:   map[string]any{"fields": changed},
	})
	return rec, nil
}

// Get returns a live record.
func (s *RecordService) Get(ctx context.Context, recordID string) (*ParticipantRecord, error) {
	rec, err := s.records.GetRecord(ctx, recordID)
	if err != nil {
		return nil, storeErr("get record", err)
	}
	return rec, nil
}

// Delete soft-deletes a record.
func (s *RecordService) Delete(ctx context.Context, recordID string) error {
	rec, err := s.records.GetRecord(ctx, recordID)
	if err != nil {
		return storeErr("get record", err)
	}
	if err := s.records.DeleteRecord(ctx, recordID, s.now().UTC()); err != nil {
		return storeErr("delete record", err)
	}
	s.metrics.RecordMutated(ActionRecordDelete)
	s.auditor.Log(ctx, AuditEntry{Action: ActionRecordDelete, DatasetID: rec.DatasetID, RecordID: recordID})
	return nil
}

// List returns one page of records in creation order. Pages are 1-based.
func (s *RecordService) List(ctx context.Context, datasetID string, page, pageSize int) (*RecordPage, error) {
	if _, err := s.Dataset(ctx, datasetID); err != nil {
		return nil, err
	}
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}

	// One extra row tells us whether another page exists.
	recs, err := s.records.ListRecords(ctx, datasetID, (page-1)*pageSize, pageSize+1)
	if err != nil {
		return nil, storeErr("list records", err)
	}

	out := &RecordPage{Page: page, PageSize: pageSize}
	if len(recs) > pageSize {
		out.HasMore = true
		recs = recs[:pageSize]
	}
	out.Records = recs
	if out.Records == nil {
		out.Records = []ParticipantRecord{}
	}
	return out, nil
}

// Search matches query as a case-insensitive substring of any text-typed
// field. No match, or an empty query, yields an empty slice.
func (s *RecordService) Search(ctx context.Context, datasetID, query string) ([]ParticipantRecord, error) {
	ds, err := s.Dataset(ctx, datasetID)
	if err != nil {
		return nil, err
	}
	query = strings.TrimSpace(query)
	fields := ds.Schema.SearchableNames()
	if query == "" || len(fields) == 0 {
		return []ParticipantRecord{}, nil
	}

	recs, err := s.records.SearchRecords(ctx, datasetID, fields, query, MaxSearchResults)
	if err != nil {
		return nil, storeErr("search records", err)
	}
	if recs == nil {
		recs = []ParticipantRecord{}
	}
	return recs, nil
}

func dropEmpty(fields map[string]string) map[string]string {
	for k, v := range fields {
		if v == "" {
			delete(fields, k)
		}
	}
	return fields
}
