// Package storetest holds the behavioural contract every core.Store
// implementation must satisfy. Implementations run it from their own tests:
//
//	suite.Run(t, &storetest.Suite{NewStore: func(t *testing.T) core.Store { return memstore.New() }})
package storetest

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/JonMunkholm/qrtrack/internal/core"
	"github.com/stretchr/testify/suite"
)

// Suite runs the store contract. NewStore must return an empty store.
type Suite struct {
	suite.Suite
	NewStore func(t *testing.T) core.Store

	store core.Store
	ctx   context.Context
}

var base = time.Date(2025, 1, 1, 8, 0, 0, 0, time.UTC)

func (s *Suite) SetupTest() {
	s.store = s.NewStore(s.T())
	s.ctx = context.Background()
}

func (s *Suite) dataset(id, org string, at time.Time) {
	s.Require().NoError(s.store.CreateDataset(s.ctx, &core.Dataset{
		ID:             id,
		OrganizationID: org,
		Name:           "Dataset " + id,
		Schema: core.Schema{Fields: []core.SchemaField{
			{Name: "firstname", Type: core.FieldString, Required: true},
			{Name: "email", Type: core.FieldEmail},
		}},
		Status:    core.DatasetActive,
		CreatedAt: at,
		UpdatedAt: at,
	}))
}

func (s *Suite) records(datasetID string, firstNames ...string) []core.ParticipantRecord {
	recs := make([]core.ParticipantRecord, len(firstNames))
	for i, name := range firstNames {
		recs[i] = core.ParticipantRecord{
			ID:        fmt.Sprintf("%s-r%d", datasetID, i+1),
			Fields:    map[string]string{"firstname": name, "email": core.NormalizeEmail(name + "@example.com")},
			CreatedAt: base,
			UpdatedAt: base,
		}
	}
	s.Require().NoError(s.store.InsertRecords(s.ctx, datasetID, recs))
	return recs
}

func (s *Suite) count(datasetID string) int {
	d, err := s.store.GetDataset(s.ctx, datasetID)
	s.Require().NoError(err)
	return d.Metadata.RecordCount
}

func (s *Suite) TestDatasets() {
	s.dataset("d1", "org-1", base)
	s.dataset("d2", "org-2", base.Add(time.Hour))
	s.dataset("d3", "org-1", base.Add(2*time.Hour))

	d, err := s.store.GetDataset(s.ctx, "d1")
	s.Require().NoError(err)
	s.Equal("Dataset d1", d.Name)
	s.Equal([]string{"firstname", "email"}, d.Schema.Names())
	s.True(d.CreatedAt.Equal(base))

	s.ErrorIs(s.store.CreateDataset(s.ctx, &core.Dataset{ID: "d1", Status: core.DatasetActive}), core.ErrAlreadyExists)

	_, err = s.store.GetDataset(s.ctx, "missing")
	s.True(core.IsNotFound(err))

	list, err := s.store.ListDatasets(s.ctx, "org-1")
	s.Require().NoError(err)
	s.Require().Len(list, 2)
	s.Equal("d3", list[0].ID, "newest first")

	all, err := s.store.ListDatasets(s.ctx, "")
	s.Require().NoError(err)
	s.Len(all, 3)
}

func (s *Suite) TestInsertRecordsTracksCount() {
	s.dataset("d1", "org-1", base)
	recs := s.records("d1", "Ann", "Bob", "Cy")

	s.Equal(3, s.count("d1"))
	s.Less(recs[0].Seq, recs[1].Seq)
	s.Less(recs[1].Seq, recs[2].Seq)

	err := s.store.InsertRecords(s.ctx, "missing", []core.ParticipantRecord{{ID: "x", CreatedAt: base, UpdatedAt: base}})
	s.True(core.IsNotFound(err), "unknown dataset: %v", err)

	err = s.store.InsertRecords(s.ctx, "d1", []core.ParticipantRecord{{ID: "d1-r1", CreatedAt: base, UpdatedAt: base}})
	s.ErrorIs(err, core.ErrAlreadyExists)
	s.Equal(3, s.count("d1"), "a failed insert leaves the count alone")
}

func (s *Suite) TestMergeAndDelete() {
	s.dataset("d1", "org-1", base)
	s.records("d1", "Ann", "Bob")
	later := base.Add(time.Minute)

	rec, err := s.store.MergeRecordFields(s.ctx, "d1-r1", map[string]string{"firstname": "Anne", "email": ""}, later)
	s.Require().NoError(err)
	s.Equal(map[string]string{"firstname": "Anne"}, rec.Fields)
	s.True(rec.UpdatedAt.Equal(later))

	got, err := s.store.GetRecord(s.ctx, "d1-r1")
	s.Require().NoError(err)
	s.Equal("Anne", got.Value("firstname"))
	s.Equal("", got.Value("email"))

	s.Require().NoError(s.store.DeleteRecord(s.ctx, "d1-r1", later))
	s.Equal(1, s.count("d1"))
	s.True(core.IsNotFound(s.store.DeleteRecord(s.ctx, "d1-r1", later)))
	s.Equal(1, s.count("d1"))

	_, err = s.store.GetRecord(s.ctx, "d1-r1")
	s.True(core.IsNotFound(err))
	_, err = s.store.MergeRecordFields(s.ctx, "d1-r1", map[string]string{"firstname": "x"}, later)
	s.True(core.IsNotFound(err))
}

func (s *Suite) TestListRecordsPaging() {
	s.dataset("d1", "org-1", base)
	s.records("d1", "A", "B", "C", "D")
	s.Require().NoError(s.store.DeleteRecord(s.ctx, "d1-r2", base))

	page, err := s.store.ListRecords(s.ctx, "d1", 1, 2)
	s.Require().NoError(err)
	s.Equal([]string{"C", "D"}, firstNames(page))

	all, err := s.store.ListRecords(s.ctx, "d1", 0, 0)
	s.Require().NoError(err)
	s.Equal([]string{"A", "C", "D"}, firstNames(all))

	empty, err := s.store.ListRecords(s.ctx, "d1", 10, 2)
	s.Require().NoError(err)
	s.NotNil(empty)
	s.Empty(empty)
}

func (s *Suite) TestSearchAndFind() {
	s.dataset("d1", "org-1", base)
	s.records("d1", "Jane", "janet", "Bob", "50%_off")

	hits, err := s.store.SearchRecords(s.ctx, "d1", []string{"firstname"}, "JAN", 0)
	s.Require().NoError(err)
	s.Equal([]string{"Jane", "janet"}, firstNames(hits))

	hits, err = s.store.SearchRecords(s.ctx, "d1", []string{"firstname"}, "%_", 0)
	s.Require().NoError(err)
	s.Equal([]string{"50%_off"}, firstNames(hits), "wildcards match literally")

	hits, err = s.store.SearchRecords(s.ctx, "d1", []string{"email"}, "example", 2)
	s.Require().NoError(err)
	s.Len(hits, 2)

	found, err := s.store.FindRecords(s.ctx, "d1", "email", "bob@example.com", 0)
	s.Require().NoError(err)
	s.Equal([]string{"Bob"}, firstNames(found))

	found, err = s.store.FindRecords(s.ctx, "d1", "email", "BOB@example.com", 0)
	s.Require().NoError(err)
	s.Empty(found, "find is exact")
}

func (s *Suite) TestRecount() {
	s.dataset("d1", "org-1", base)
	s.records("d1", "A", "B")

	res, err := s.store.RecountDataset(s.ctx, "d1")
	s.Require().NoError(err)
	s.Equal(core.RecountResult{DatasetID: "d1", Stored: 2, Actual: 2}, res)

	_, err = s.store.RecountDataset(s.ctx, "missing")
	s.True(core.IsNotFound(err))
}

func (s *Suite) TestCheckInSessions() {
	s.dataset("d1", "org-1", base)
	sched := base.Add(24 * time.Hour)
	for _, id := range []string{"yoga-wed", "yoga-mon"} {
		s.Require().NoError(s.store.CreateCheckInSession(s.ctx, &core.CheckInSession{
			ID: id, DatasetID: "d1", Name: id, ScheduledAt: &sched, CreatedAt: base,
		}))
	}
	s.ErrorIs(s.store.CreateCheckInSession(s.ctx, &core.CheckInSession{ID: "yoga-mon", DatasetID: "d1", CreatedAt: base}), core.ErrAlreadyExists)

	cs, err := s.store.GetCheckInSession(s.ctx, "yoga-mon")
	s.Require().NoError(err)
	s.Require().NotNil(cs.ScheduledAt)
	s.True(cs.ScheduledAt.Equal(sched))

	_, err = s.store.GetCheckInSession(s.ctx, "nope")
	s.True(core.IsNotFound(err))

	list, err := s.store.ListCheckInSessions(s.ctx, "d1")
	s.Require().NoError(err)
	s.Require().Len(list, 2)
	s.Equal("yoga-mon", list[0].ID)
}

func (s *Suite) TestMarkAttendedKeepsFirst() {
	s.dataset("d1", "org-1", base)
	s.records("d1", "Jane")
	s.Require().NoError(s.store.CreateCheckInSession(s.ctx, &core.CheckInSession{ID: "class1", DatasetID: "d1", Name: "Class", CreatedAt: base}))

	_, err := s.store.GetAttendance(s.ctx, "d1-r1", "class1")
	s.True(core.IsNotFound(err))

	t1 := base.Add(time.Hour)
	a, created, err := s.store.MarkAttended(s.ctx, core.Attendance{ParticipantID: "d1-r1", SessionID: "class1", Attended: true, RecordedAt: t1})
	s.Require().NoError(err)
	s.True(created)
	s.True(a.RecordedAt.Equal(t1))

	a, created, err = s.store.MarkAttended(s.ctx, core.Attendance{ParticipantID: "d1-r1", SessionID: "class1", Attended: true, RecordedAt: t1.Add(time.Hour)})
	s.Require().NoError(err)
	s.False(created)
	s.True(a.RecordedAt.Equal(t1), "the original time is kept")

	list, err := s.store.ListAttendance(s.ctx, "class1")
	s.Require().NoError(err)
	s.Len(list, 1)
}

func (s *Suite) TestMarkAttendedConcurrent() {
	s.dataset("d1", "org-1", base)
	s.records("d1", "Jane")
	s.Require().NoError(s.store.CreateCheckInSession(s.ctx, &core.CheckInSession{ID: "class1", DatasetID: "d1", Name: "Class", CreatedAt: base}))

	const n = 10
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		created int
		errs    []error
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, ok, err := s.store.MarkAttended(s.ctx, core.Attendance{
				ParticipantID: "d1-r1",
				SessionID:     "class1",
				Attended:      true,
				RecordedAt:    base.Add(time.Duration(i) * time.Second),
			})
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, err)
			}
			if ok {
				created++
			}
		}(i)
	}
	wg.Wait()

	s.Empty(errs)
	s.Equal(1, created)
}

func (s *Suite) TestWizardSessions() {
	w := core.NewWizardSession("coord-1", base)
	s.Require().NoError(s.store.CreateWizard(s.ctx, w))
	s.ErrorIs(s.store.CreateWizard(s.ctx, w), core.ErrAlreadyExists)

	later := base.Add(time.Minute)
	payload := json.RawMessage(`{"platformName":"Sheets"}`)
	s.Require().NoError(s.store.SaveStep(s.ctx, "coord-1", 3, payload, later))
	s.Require().NoError(s.store.SaveStep(s.ctx, "coord-1", 1, payload, later))
	s.Require().NoError(s.store.SaveStep(s.ctx, "coord-1", 3, payload, later))
	s.Require().NoError(s.store.SaveNavigation(s.ctx, "coord-1", 5, later))
	s.Require().NoError(s.store.LinkDataset(s.ctx, "coord-1", "d9", later))

	got, err := s.store.GetWizard(s.ctx, "coord-1")
	s.Require().NoError(err)
	s.Equal([]int{1, 3}, got.CompletedSteps)
	s.Equal(5, got.CurrentStep)
	s.Equal("d9", got.DatasetID)
	s.JSONEq(string(payload), string(got.Payload(3)))
	s.Nil(got.Payload(2))
	s.True(got.UpdatedAt.Equal(later))

	s.Require().NoError(s.store.SaveStatus(s.ctx, "coord-1", core.WizardComplete, later))
	s.Require().NoError(s.store.ResetWizard(s.ctx, "coord-1", later))
	got, err = s.store.GetWizard(s.ctx, "coord-1")
	s.Require().NoError(err)
	s.Equal(core.FirstStep, got.CurrentStep)
	s.Empty(got.CompletedSteps)
	s.Equal(core.WizardDraft, got.Status)
	s.Empty(got.DatasetID)
	s.Nil(got.Payload(3))

	_, err = s.store.GetWizard(s.ctx, "nobody")
	s.True(core.IsNotFound(err))
	s.True(core.IsNotFound(s.store.SaveStep(s.ctx, "nobody", 1, payload, later)))
}

func (s *Suite) TestAuditLog() {
	for i, action := range []core.AuditAction{core.ActionRecordAdd, core.ActionCheckIn, core.ActionRecordAdd} {
		s.Require().NoError(s.store.InsertAudit(s.ctx, core.AuditEntry{
			ID:        fmt.Sprintf("a%d", i),
			Action:    action,
			Severity:  core.SeverityMedium,
			DatasetID: "d1",
			Details:   map[string]any{"n": float64(i)},
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}

	entries, err := s.store.ListAudit(s.ctx, core.AuditFilter{Action: core.ActionRecordAdd})
	s.Require().NoError(err)
	s.Require().Len(entries, 2)
	s.Equal("a2", entries[0].ID, "newest first")
	s.Equal(float64(2), entries[0].Details["n"])

	entries, err = s.store.ListAudit(s.ctx, core.AuditFilter{DatasetID: "d1", Limit: 1, Offset: 1})
	s.Require().NoError(err)
	s.Require().Len(entries, 1)
	s.Equal("a1", entries[0].ID)
}

func firstNames(recs []core.ParticipantRecord) []string {
	out := make([]string, len(recs))
	for i, r := range recs {
		out[i] = r.Value("firstname")
	}
	return out
}
