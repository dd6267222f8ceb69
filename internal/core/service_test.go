package core_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/JonMunkholm/qrtrack/internal/core"
	"github.com/JonMunkholm/qrtrack/internal/memstore"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2025, 1, 1, 8, 0, 0, 0, time.UTC)

type mapCatalog map[string]core.SchemaField

func (c mapCatalog) Lookup(id string) (core.SchemaField, bool) {
	f, ok := c[id]
	return f, ok
}

var testCatalog = mapCatalog{
	"firstName": {Name: "firstname", Type: core.FieldString, Required: true, Label: "First Name"},
	"lastName":  {Name: "lastname", Type: core.FieldString, Label: "Last Name"},
	"email":     {Name: "email", Type: core.FieldEmail, Label: "Email"},
	"phone":     {Name: "phone", Type: core.FieldPhone, Label: "Phone"},
}

// countingMetrics records the events a test cares about.
type countingMetrics struct {
	mu      sync.Mutex
	steps   []int
	scans   []string
	created int
}

func (m *countingMetrics) WizardStepSaved(step int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.steps = append(m.steps, step)
}

func (m *countingMetrics) DatasetBuilt(created, skipped int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.created += created
}

func (m *countingMetrics) RecordMutated(core.AuditAction) {}

func (m *countingMetrics) ScanRecorded(outcome string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scans = append(m.scans, outcome)
}

type fixture struct {
	store   *memstore.Store
	svc     *core.Service
	metrics *countingMetrics
	ctx     context.Context
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memstore.New()
	return newFixtureOn(t, store, store)
}

// newFixtureOn runs the services against backend, which may wrap mem.
func newFixtureOn(t *testing.T, backend core.Store, mem *memstore.Store) *fixture {
	t.Helper()
	m := &countingMetrics{}
	svc := core.NewService(backend, testCatalog, core.Options{
		ImportBatchSize: 2,
		Metrics:         m,
		Now:             func() time.Time { return testNow },
	})
	ctx := core.ContextWithActor(context.Background(), core.Actor{UserID: "coord-1", OrgID: "org-1"})
	return &fixture{store: mem, svc: svc, metrics: m, ctx: ctx}
}

// seedDataset builds a dataset of firstname, lastname, email, phone.
func (f *fixture) seedDataset(t *testing.T, rows ...[]string) string {
	t.Helper()
	res, err := f.svc.Builder.Build(f.ctx, core.BuildRequest{
		ProgramName:    "Yoga",
		OrganizationID: "org-1",
		CreatedBy:      "coord-1",
		Upload: core.Upload{
			Headers: []string{"First Name", "Last Name", "Email", "Phone"},
			Rows:    rows,
		},
		FieldMapping:   map[string]string{"First Name": "firstname", "Last Name": "lastname"},
		StandardFields: []string{"firstName", "lastName", "email", "phone"},
	})
	require.NoError(t, err)
	return res.DatasetID
}
