package admin

// scheduler.go runs periodic record count repair.
//
// The scheduler is long-running and stops when its context is cancelled. A
// failed pass is logged and the next tick tries again.

import (
	"context"
	"log/slog"
	"time"
)

// StartRecountScheduler recounts every dataset immediately and then every
// interval until ctx is cancelled. It blocks; run it in a goroutine.
func (m *Maintenance) StartRecountScheduler(ctx context.Context, interval time.Duration) {
	slog.Info("recount scheduler started", "interval", interval.String())

	m.runRecountJob(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("recount scheduler stopped")
			return
		case <-ticker.C:
			m.runRecountJob(ctx)
		}
	}
}

// runRecountJob performs one pass over all datasets.
func (m *Maintenance) runRecountJob(ctx context.Context) {
	start := time.Now()

	results, err := m.RecountAll(ctx)
	if err != nil {
		slog.Error("recount job failed", "error", err, "completed", len(results))
		return
	}

	repaired := 0
	for _, r := range results {
		if r.Stored != r.Actual {
			repaired++
		}
	}
	slog.Info("recount job completed",
		"datasets", len(results),
		"repaired", repaired,
		"duration_ms", time.Since(start).Milliseconds(),
	)
}
