package core_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/JonMunkholm/qrtrack/internal/core"
	"github.com/JonMunkholm/qrtrack/internal/memstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errDiskFull = errors.New("disk full")

// failingStore is a memstore whose selected writes fail with errDiskFull.
type failingStore struct {
	*memstore.Store
	failSaveStep      bool
	failCreateDataset bool
	failMarkAttended  bool
}

func (s *failingStore) SaveStep(ctx context.Context, id string, step int, payload json.RawMessage, at time.Time) error {
	if s.failSaveStep {
		return errDiskFull
	}
	return s.Store.SaveStep(ctx, id, step, payload, at)
}

func (s *failingStore) CreateDataset(ctx context.Context, d *core.Dataset) error {
	if s.failCreateDataset {
		return errDiskFull
	}
	return s.Store.CreateDataset(ctx, d)
}

func (s *failingStore) MarkAttended(ctx context.Context, a core.Attendance) (core.Attendance, bool, error) {
	if s.failMarkAttended {
		return core.Attendance{}, false, errDiskFull
	}
	return s.Store.MarkAttended(ctx, a)
}

func newFailingFixture(t *testing.T) (*fixture, *failingStore) {
	t.Helper()
	fs := &failingStore{Store: memstore.New()}
	return newFixtureOn(t, fs, fs.Store), fs
}

func requireStoreError(t *testing.T, err error, op string) {
	t.Helper()
	var se *core.StoreError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, op, se.Op)
	assert.ErrorIs(t, err, errDiskFull)
}

func TestWizardSaveFailureKeepsSession(t *testing.T) {
	f, fs := newFailingFixture(t)
	w := f.svc.Wizard
	steps := validSteps()

	_, err := w.UpdateStep(f.ctx, coordinator, steps[0])
	require.NoError(t, err)

	fs.failSaveStep = true
	sess, err := w.UpdateStep(f.ctx, coordinator, steps[1])
	assert.Nil(t, sess)
	requireStoreError(t, err, "save wizard step")
	assert.Equal(t, "ERR000", core.MapError(err).Code)

	stored, err := w.Session(f.ctx, coordinator)
	require.NoError(t, err)
	assert.Equal(t, []int{1}, stored.CompletedSteps)
	assert.Nil(t, stored.Steps[1])
	assert.Equal(t, []int{1}, f.metrics.steps)

	fs.failSaveStep = false
	sess, err = w.UpdateStep(f.ctx, coordinator, steps[1])
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, sess.CompletedSteps)
}

func TestBuildFailsWhenDatasetCannotBeCreated(t *testing.T) {
	f, fs := newFailingFixture(t)
	fs.failCreateDataset = true

	res, err := f.svc.Builder.Build(f.ctx, core.BuildRequest{
		ProgramName:    "Yoga",
		OrganizationID: "org-1",
		CreatedBy:      "coord-1",
		Upload: core.Upload{
			Headers: []string{"First Name"},
			Rows:    [][]string{{"Jane"}},
		},
		FieldMapping:   map[string]string{"First Name": "firstname"},
		StandardFields: []string{"firstName"},
	})
	assert.Nil(t, res)
	requireStoreError(t, err, "create dataset")

	list, err := f.svc.Records.Datasets(f.ctx, "org-1")
	require.NoError(t, err)
	assert.Empty(t, list)
	assert.Zero(t, f.metrics.created)
}

func TestScanStoreFailure(t *testing.T) {
	f, fs := newFailingFixture(t)
	id := f.seedDataset(t, []string{"Jane", "Doe", "jane@example.com", ""})
	_, err := f.svc.Scans.CreateSession(f.ctx, core.CheckInSession{ID: "class1", DatasetID: id, Name: "Week 1"})
	require.NoError(t, err)

	fs.failMarkAttended = true
	res, err := f.svc.Scans.Record(f.ctx, core.ScanRequest{SessionID: "class1", Identifier: "jane@example.com"})
	assert.Nil(t, res)
	requireStoreError(t, err, "mark attended")
	assert.False(t, core.IsNotFound(err))
	assert.Equal(t, []string{core.ScanError}, f.metrics.scans)

	fs.failMarkAttended = false
	res, err = f.svc.Scans.Record(f.ctx, core.ScanRequest{SessionID: "class1", Identifier: "jane@example.com"})
	require.NoError(t, err)
	assert.False(t, res.AlreadyCheckedIn)
}
