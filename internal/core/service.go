package core

import (
	"context"
	"time"
)

// Options configures a Service. Zero values select defaults.
type Options struct {
	ImportBatchSize      int
	MaxConcurrentImports int
	ImportWaitTime       time.Duration
	Metrics              Metrics
	Now                  func() time.Time
}

// Service bundles the domain components over one store.
type Service struct {
	Wizard   *WizardService
	Builder  *DatasetBuilder
	Records  *RecordService
	Scans    *ScanRecorder
	Exporter *Exporter
	Audit    *Auditor

	limiter *ImportLimiter
}

// NewService wires every component to store. catalog resolves standard
// field ids and may be nil.
func NewService(store Store, catalog FieldCatalog, opts Options) *Service {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	metrics := opts.Metrics
	if metrics == nil {
		metrics = NopMetrics
	}
	batch := opts.ImportBatchSize
	if batch <= 0 {
		batch = DefaultImportBatchSize
	}

	auditor := &Auditor{sink: store, now: now}
	limiter := NewImportLimiter(opts.MaxConcurrentImports, opts.ImportWaitTime)

	builder := &DatasetBuilder{
		datasets:  store,
		records:   store,
		catalog:   catalog,
		limiter:   limiter,
		auditor:   auditor,
		metrics:   metrics,
		batchSize: batch,
		now:       now,
	}
	scans := &ScanRecorder{
		checkins: store,
		datasets: store,
		records:  store,
		auditor:  auditor,
		metrics:  metrics,
		now:      now,
	}

	return &Service{
		Wizard: &WizardService{
			store:   store,
			builder: builder,
			scans:   scans,
			auditor: auditor,
			metrics: metrics,
			now:     now,
		},
		Builder: builder,
		Records: &RecordService{
			datasets: store,
			records:  store,
			auditor:  auditor,
			metrics:  metrics,
			now:      now,
		},
		Scans:    scans,
		Exporter: &Exporter{datasets: store, records: store, now: now},
		Audit:    auditor,
		limiter:  limiter,
	}
}

// ImportLimiterStatus reports concurrent import usage.
func (s *Service) ImportLimiterStatus() ImportLimiterStatus {
	return s.limiter.Status()
}

// WaitForImports blocks until running imports finish or ctx ends.
func (s *Service) WaitForImports(ctx context.Context) error {
	return s.limiter.WaitForDrain(ctx)
}
