package admin

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/JonMunkholm/qrtrack/internal/core"
	"github.com/JonMunkholm/qrtrack/internal/memstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// driftStore reports a stale stored count for one dataset.
type driftStore struct {
	*memstore.Store
	drifted string
	fail    bool
}

func (s *driftStore) RecountDataset(ctx context.Context, id string) (core.RecountResult, error) {
	if s.fail {
		return core.RecountResult{}, errors.New("connection reset")
	}
	res, err := s.Store.RecountDataset(ctx, id)
	if id == s.drifted {
		res.Stored = res.Actual + 3
	}
	return res, err
}

func seed(t *testing.T, s *memstore.Store, ids ...string) {
	t.Helper()
	for i, id := range ids {
		require.NoError(t, s.CreateDataset(context.Background(), &core.Dataset{
			ID:        id,
			Status:    core.DatasetActive,
			CreatedAt: time.Date(2025, 1, 1, i, 0, 0, 0, time.UTC),
		}))
	}
	require.NoError(t, s.InsertRecords(context.Background(), ids[0], []core.ParticipantRecord{{ID: "r1"}, {ID: "r2"}}))
}

func TestRecountAllAuditsRepairs(t *testing.T) {
	mem := memstore.New()
	seed(t, mem, "d1", "d2")
	store := &driftStore{Store: mem, drifted: "d2"}
	m := New(store, core.NewAuditor(mem))

	results, err := m.RecountAll(context.Background())
	require.NoError(t, err)
	require.Len(t, results, 2)

	byID := map[string]core.RecountResult{}
	for _, r := range results {
		byID[r.DatasetID] = r
	}
	assert.Equal(t, core.RecountResult{DatasetID: "d1", Stored: 2, Actual: 2}, byID["d1"])
	assert.Equal(t, core.RecountResult{DatasetID: "d2", Stored: 3, Actual: 0}, byID["d2"])

	entries, err := mem.ListAudit(context.Background(), core.AuditFilter{Action: core.ActionRecordsRecount})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "d2", entries[0].DatasetID)
	assert.Equal(t, core.SeverityCritical, entries[0].Severity)
}

func TestRecountErrors(t *testing.T) {
	mem := memstore.New()
	seed(t, mem, "d1")
	m := New(&driftStore{Store: mem, fail: true}, nil)

	_, err := m.RecountAll(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "recount d1")

	_, err = New(mem, nil).Recount(context.Background(), "missing")
	assert.True(t, core.IsNotFound(err))
}

func TestRecountSchedulerStops(t *testing.T) {
	mem := memstore.New()
	seed(t, mem, "d1")
	m := New(mem, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		m.StartRecountScheduler(ctx, 10*time.Millisecond)
		close(done)
	}()

	time.Sleep(30 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop after cancel")
	}
}
