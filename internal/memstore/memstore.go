// Package memstore is an in-process implementation of core.Store.
//
// It backs the server when no database is configured and serves as the store
// in tests. A single RWMutex guards all state, so every method is atomic with
// respect to every other, which gives MarkAttended its insert-if-absent
// guarantee and keeps record counts in step with record writes.
package memstore

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/JonMunkholm/qrtrack/internal/core"
)

type attendanceKey struct {
	participantID string
	sessionID     string
}

type storedRecord struct {
	rec       core.ParticipantRecord
	deletedAt *time.Time
}

// Store holds all data in memory.
type Store struct {
	mu sync.RWMutex

	seq        int64
	wizards    map[string]*core.WizardSession
	datasets   map[string]*core.Dataset
	records    map[string]*storedRecord
	byDataset  map[string][]string // record ids in insertion order
	sessions   map[string]*core.CheckInSession
	attendance map[attendanceKey]core.Attendance
	audit      []core.AuditEntry
}

var _ core.Store = (*Store)(nil)

// New returns an empty Store.
func New() *Store {
	return &Store{
		wizards:    make(map[string]*core.WizardSession),
		datasets:   make(map[string]*core.Dataset),
		records:    make(map[string]*storedRecord),
		byDataset:  make(map[string][]string),
		sessions:   make(map[string]*core.CheckInSession),
		attendance: make(map[attendanceKey]core.Attendance),
	}
}

// ---------------------------------------------------------------------------
// Wizard sessions

func (s *Store) GetWizard(ctx context.Context, id string) (*core.WizardSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	w, ok := s.wizards[id]
	if !ok {
		return nil, core.NewNotFound("wizard", id)
	}
	return w.Clone(), nil
}

func (s *Store) CreateWizard(ctx context.Context, w *core.WizardSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.wizards[w.ID]; ok {
		return core.ErrAlreadyExists
	}
	s.wizards[w.ID] = w.Clone()
	return nil
}

func (s *Store) SaveStep(ctx context.Context, id string, step int, payload json.RawMessage, at time.Time) error {
	return s.updateWizard(id, at, func(w *core.WizardSession) {
		w.SetPayload(step, append(json.RawMessage{}, payload...))
		w.MarkCompleted(step)
	})
}

func (s *Store) SaveNavigation(ctx context.Context, id string, step int, at time.Time) error {
	return s.updateWizard(id, at, func(w *core.WizardSession) { w.GoToStep(step) })
}

func (s *Store) SaveStatus(ctx context.Context, id string, status core.WizardStatus, at time.Time) error {
	return s.updateWizard(id, at, func(w *core.WizardSession) { w.Status = status })
}

func (s *Store) LinkDataset(ctx context.Context, id, datasetID string, at time.Time) error {
	return s.updateWizard(id, at, func(w *core.WizardSession) { w.DatasetID = datasetID })
}

func (s *Store) ResetWizard(ctx context.Context, id string, at time.Time) error {
	return s.updateWizard(id, at, (*core.WizardSession).Reset)
}

func (s *Store) updateWizard(id string, at time.Time, fn func(*core.WizardSession)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.wizards[id]
	if !ok {
		return core.NewNotFound("wizard", id)
	}
	fn(w)
	w.UpdatedAt = at
	return nil
}

// ---------------------------------------------------------------------------
// Datasets

func (s *Store) CreateDataset(ctx context.Context, d *core.Dataset) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.datasets[d.ID]; ok {
		return core.ErrAlreadyExists
	}
	cp := copyDataset(d)
	cp.Metadata.RecordCount = 0
	s.datasets[d.ID] = cp
	return nil
}

func (s *Store) GetDataset(ctx context.Context, id string) (*core.Dataset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.datasets[id]
	if !ok {
		return nil, core.NewNotFound("dataset", id)
	}
	return copyDataset(d), nil
}

// ListDatasets returns the organization's datasets, newest first. An empty
// orgID lists every dataset.
func (s *Store) ListDatasets(ctx context.Context, orgID string) ([]core.Dataset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []core.Dataset{}
	for _, d := range s.datasets {
		if d.Status == core.DatasetDeleted {
			continue
		}
		if orgID != "" && d.OrganizationID != orgID {
			continue
		}
		out = append(out, *copyDataset(d))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func copyDataset(d *core.Dataset) *core.Dataset {
	cp := *d
	cp.Schema.Fields = append([]core.SchemaField(nil), d.Schema.Fields...)
	return &cp
}

// ---------------------------------------------------------------------------
// Records

func (s *Store) InsertRecords(ctx context.Context, datasetID string, records []core.ParticipantRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ds, ok := s.datasets[datasetID]
	if !ok {
		return core.NewNotFound("dataset", datasetID)
	}
	for i := range records {
		if _, dup := s.records[records[i].ID]; dup {
			return core.ErrAlreadyExists
		}
	}
	for i := range records {
		s.seq++
		records[i].Seq = s.seq
		records[i].DatasetID = datasetID
		rec := copyRecord(records[i])
		s.records[rec.ID] = &storedRecord{rec: rec}
		s.byDataset[datasetID] = append(s.byDataset[datasetID], rec.ID)
	}
	ds.Metadata.RecordCount += len(records)
	return nil
}

func (s *Store) GetRecord(ctx context.Context, id string) (*core.ParticipantRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sr, ok := s.records[id]
	if !ok || sr.deletedAt != nil {
		return nil, core.NewNotFound("record", id)
	}
	rec := copyRecord(sr.rec)
	return &rec, nil
}

func (s *Store) MergeRecordFields(ctx context.Context, id string, partial map[string]string, at time.Time) (*core.ParticipantRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sr, ok := s.records[id]
	if !ok || sr.deletedAt != nil {
		return nil, core.NewNotFound("record", id)
	}
	if sr.rec.Fields == nil {
		sr.rec.Fields = make(map[string]string, len(partial))
	}
	for k, v := range partial {
		if v == "" {
			delete(sr.rec.Fields, k)
			continue
		}
		sr.rec.Fields[k] = v
	}
	sr.rec.UpdatedAt = at
	rec := copyRecord(sr.rec)
	return &rec, nil
}

func (s *Store) DeleteRecord(ctx context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sr, ok := s.records[id]
	if !ok || sr.deletedAt != nil {
		return core.NewNotFound("record", id)
	}
	sr.deletedAt = &at
	sr.rec.UpdatedAt = at
	if ds, ok := s.datasets[sr.rec.DatasetID]; ok {
		ds.Metadata.RecordCount--
	}
	return nil
}

func (s *Store) ListRecords(ctx context.Context, datasetID string, offset, limit int) ([]core.ParticipantRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []core.ParticipantRecord{}
	skipped := 0
	s.eachLive(datasetID, func(r *core.ParticipantRecord) bool {
		if skipped < offset {
			skipped++
			return true
		}
		out = append(out, copyRecord(*r))
		return limit <= 0 || len(out) < limit
	})
	return out, nil
}

func (s *Store) SearchRecords(ctx context.Context, datasetID string, fields []string, query string, limit int) ([]core.ParticipantRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	q := strings.ToLower(query)
	out := []core.ParticipantRecord{}
	s.eachLive(datasetID, func(r *core.ParticipantRecord) bool {
		for _, f := range fields {
			if strings.Contains(strings.ToLower(r.Fields[f]), q) {
				out = append(out, copyRecord(*r))
				break
			}
		}
		return limit <= 0 || len(out) < limit
	})
	return out, nil
}

func (s *Store) FindRecords(ctx context.Context, datasetID, field, value string, limit int) ([]core.ParticipantRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []core.ParticipantRecord{}
	s.eachLive(datasetID, func(r *core.ParticipantRecord) bool {
		if v, ok := r.Fields[field]; ok && v == value {
			out = append(out, copyRecord(*r))
		}
		return limit <= 0 || len(out) < limit
	})
	return out, nil
}

// eachLive calls fn for every non-deleted record of a dataset in insertion
// order until fn returns false. Callers hold the lock.
func (s *Store) eachLive(datasetID string, fn func(*core.ParticipantRecord) bool) {
	for _, id := range s.byDataset[datasetID] {
		sr := s.records[id]
		if sr.deletedAt != nil {
			continue
		}
		if !fn(&sr.rec) {
			return
		}
	}
}

func copyRecord(r core.ParticipantRecord) core.ParticipantRecord {
	fields := make(map[string]string, len(r.Fields))
	for k, v := range r.Fields {
		fields[k] = v
	}
	r.Fields = fields
	return r
}

// RecountDataset sets the dataset's record count to the number of live records.
func (s *Store) RecountDataset(ctx context.Context, datasetID string) (core.RecountResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ds, ok := s.datasets[datasetID]
	if !ok {
		return core.RecountResult{}, core.NewNotFound("dataset", datasetID)
	}
	actual := 0
	s.eachLive(datasetID, func(*core.ParticipantRecord) bool {
		actual++
		return true
	})
	res := core.RecountResult{DatasetID: datasetID, Stored: ds.Metadata.RecordCount, Actual: actual}
	ds.Metadata.RecordCount = actual
	return res, nil
}

// ---------------------------------------------------------------------------
// Check-in sessions and attendance

func (s *Store) CreateCheckInSession(ctx context.Context, cs *core.CheckInSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[cs.ID]; ok {
		return core.ErrAlreadyExists
	}
	cp := *cs
	s.sessions[cs.ID] = &cp
	return nil
}

func (s *Store) GetCheckInSession(ctx context.Context, id string) (*core.CheckInSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cs, ok := s.sessions[id]
	if !ok {
		return nil, core.NewNotFound("check-in session", id)
	}
	cp := *cs
	return &cp, nil
}

func (s *Store) ListCheckInSessions(ctx context.Context, datasetID string) ([]core.CheckInSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []core.CheckInSession{}
	for _, cs := range s.sessions {
		if cs.DatasetID == datasetID {
			out = append(out, *cs)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) MarkAttended(ctx context.Context, a core.Attendance) (core.Attendance, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := attendanceKey{participantID: a.ParticipantID, sessionID: a.SessionID}
	if existing, ok := s.attendance[key]; ok {
		return existing, false, nil
	}
	s.attendance[key] = a
	return a, true, nil
}

func (s *Store) GetAttendance(ctx context.Context, participantID, sessionID string) (*core.Attendance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.attendance[attendanceKey{participantID: participantID, sessionID: sessionID}]
	if !ok {
		return nil, core.NewNotFound("attendance", participantID)
	}
	return &a, nil
}

func (s *Store) ListAttendance(ctx context.Context, sessionID string) ([]core.Attendance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []core.Attendance{}
	for k, a := range s.attendance {
		if k.sessionID == sessionID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].RecordedAt.Equal(out[j].RecordedAt) {
			return out[i].ParticipantID < out[j].ParticipantID
		}
		return out[i].RecordedAt.Before(out[j].RecordedAt)
	})
	return out, nil
}

// ---------------------------------------------------------------------------
// Audit

func (s *Store) InsertAudit(ctx context.Context, e core.AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.audit = append(s.audit, e)
	return nil
}

func (s *Store) ListAudit(ctx context.Context, f core.AuditFilter) ([]core.AuditEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []core.AuditEntry{}
	skipped := 0
	for i := len(s.audit) - 1; i >= 0; i-- {
		e := s.audit[i]
		if f.DatasetID != "" && e.DatasetID != f.DatasetID {
			continue
		}
		if f.Action != "" && e.Action != f.Action {
			continue
		}
		if skipped < f.Offset {
			skipped++
			continue
		}
		out = append(out, e)
		if f.Limit > 0 && len(out) == f.Limit {
			break
		}
	}
	return out, nil
}
