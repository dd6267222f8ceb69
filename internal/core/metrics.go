package core

// Scan outcomes reported to Metrics.ScanRecorded.
const (
	ScanCheckedIn        = "checked_in"
	ScanAlreadyCheckedIn = "already_checked_in"
	ScanNotFound         = "not_found"
	ScanInvalidClass     = "invalid_class"
	ScanError            = "error"
)

// Metrics receives domain events for instrumentation.
type Metrics interface {
	WizardStepSaved(step int)
	DatasetBuilt(created, skipped int)
	RecordMutated(action AuditAction)
	ScanRecorded(outcome string)
}

type nopMetrics struct{}

func (nopMetrics) WizardStepSaved(int) {}
func (nopMetrics) DatasetBuilt(int, int) {}
func (nopMetrics) RecordMutated(AuditAction) {}
func (nopMetrics) ScanRecorded(string) {}

// NopMetrics discards every event.
var NopMetrics Metrics = nopMetrics{}
