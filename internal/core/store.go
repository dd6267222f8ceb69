package core

import (
	"context"
	"encoding/json"
	"time"
)

// WizardStore persists wizard sessions keyed by the coordinator's user id.
type WizardStore interface {
	// GetWizard returns a *NotFoundError when no session exists.
	GetWizard(ctx context.Context, id string) (*WizardSession, error)
	// CreateWizard returns ErrAlreadyExists when a session with the same id exists.
	CreateWizard(ctx context.Context, s *WizardSession) error
	// SaveStep replaces the payload slot for step and marks it completed in one write.
	SaveStep(ctx context.Context, id string, step int, payload json.RawMessage, at time.Time) error
	SaveNavigation(ctx context.Context, id string, step int, at time.Time) error
	SaveStatus(ctx context.Context, id string, status WizardStatus, at time.Time) error
	LinkDataset(ctx context.Context, id, datasetID string, at time.Time) error
	ResetWizard(ctx context.Context, id string, at time.Time) error
}

// DatasetStore persists datasets.
type DatasetStore interface {
	CreateDataset(ctx context.Context, d *Dataset) error
	GetDataset(ctx context.Context, id string) (*Dataset, error)
	ListDatasets(ctx context.Context, orgID string) ([]Dataset, error)
}

// RecordStore persists participant records. Every method that changes the
// number of live records adjusts Dataset.Metadata.RecordCount in the same
// transaction.
type RecordStore interface {
	// InsertRecords assigns Seq to each record.
	InsertRecords(ctx context.Context, datasetID string, records []ParticipantRecord) error
	GetRecord(ctx context.Context, id string) (*ParticipantRecord, error)
	// MergeRecordFields merges partial into the record's fields and returns the result.
	MergeRecordFields(ctx context.Context, id string, partial map[string]string, at time.Time) (*ParticipantRecord, error)
	// DeleteRecord soft-deletes a record.
	DeleteRecord(ctx context.Context, id string, at time.Time) error
	// ListRecords returns live records in creation order.
	ListRecords(ctx context.Context, datasetID string, offset, limit int) ([]ParticipantRecord, error)
	// SearchRecords matches query case-insensitively as a substring of any of fields.
	SearchRecords(ctx context.Context, datasetID string, fields []string, query string, limit int) ([]ParticipantRecord, error)
	// FindRecords returns live records whose field equals value, in creation order.
	FindRecords(ctx context.Context, datasetID, field, value string, limit int) ([]ParticipantRecord, error)
}

// CheckInStore persists check-in sessions and attendance.
type CheckInStore interface {
	CreateCheckInSession(ctx context.Context, s *CheckInSession) error
	GetCheckInSession(ctx context.Context, id string) (*CheckInSession, error)
	ListCheckInSessions(ctx context.Context, datasetID string) ([]CheckInSession, error)
	// MarkAttended inserts a only if no attendance exists for the pair. It
	// returns the stored row and whether this call created it.
	MarkAttended(ctx context.Context, a Attendance) (Attendance, bool, error)
	// GetAttendance returns a *NotFoundError when the participant has not attended.
	GetAttendance(ctx context.Context, participantID, sessionID string) (*Attendance, error)
	ListAttendance(ctx context.Context, sessionID string) ([]Attendance, error)
}

// RecountResult reports a record count repair.
type RecountResult struct {
	DatasetID string `json:"datasetId"`
	Stored    int    `json:"stored"`
	Actual    int    `json:"actual"`
}

// Recounter recomputes Dataset.Metadata.RecordCount from live records.
type Recounter interface {
	RecountDataset(ctx context.Context, datasetID string) (RecountResult, error)
}

// Store is the full persistence surface used by the service layer.
type Store interface {
	WizardStore
	DatasetStore
	RecordStore
	CheckInStore
	AuditSink
	Recounter
}
