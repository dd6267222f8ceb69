package core

import (
	"context"
	"time"

	"github.com/JonMunkholm/qrtrack/internal/logging"
	"github.com/google/uuid"
)

// AuditAction represents the type of action being audited.
type AuditAction string

const (
	ActionDatasetCreate  AuditAction = "dataset_create"
	ActionRecordAdd      AuditAction = "record_add"
	ActionRecordUpdate   AuditAction = "record_update"
	ActionRecordDelete   AuditAction = "record_delete"
	ActionSessionCreate  AuditAction = "session_create"
	ActionCheckIn        AuditAction = "check_in"
	ActionWizardReset    AuditAction = "wizard_reset"
	ActionWizardComplete AuditAction = "wizard_complete"
	ActionWizardFinalize AuditAction = "wizard_finalize"
	ActionRecordsRecount AuditAction = "records_recount"
)

// AuditSeverity represents the severity level of an audit entry.
type AuditSeverity string

const (
	SeverityLow      AuditSeverity = "low"
	SeverityMedium   AuditSeverity = "medium"
	SeverityHigh     AuditSeverity = "high"
	SeverityCritical AuditSeverity = "critical"
)

// AuditEntry represents a single audit log entry.
type AuditEntry struct {
	ID        string         `json:"id"`
	Action    AuditAction    `json:"action"`
	Severity  AuditSeverity  `json:"severity"`
	ActorID   string         `json:"actorId,omitempty"`
	IPAddress string         `json:"ipAddress,omitempty"`
	UserAgent string         `json:"userAgent,omitempty"`
	DatasetID string         `json:"datasetId,omitempty"`
	RecordID  string         `json:"recordId,omitempty"`
	SessionID string         `json:"sessionId,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
	CreatedAt time.Time      `json:"createdAt"`
}

// AuditFilter narrows an audit log query.
type AuditFilter struct {
	DatasetID string
	Action    AuditAction
	Limit     int
	Offset    int
}

// DefaultAuditLimit caps audit queries without an explicit limit.
const DefaultAuditLimit = 100

// AuditSink stores audit entries.
type AuditSink interface {
	InsertAudit(ctx context.Context, e AuditEntry) error
	// ListAudit returns entries newest first.
	ListAudit(ctx context.Context, f AuditFilter) ([]AuditEntry, error)
}

// determineSeverity returns the appropriate severity for an action.
func determineSeverity(action AuditAction) AuditSeverity {
	switch action {
	case ActionRecordDelete, ActionWizardReset:
		return SeverityHigh
	case ActionDatasetCreate, ActionWizardFinalize, ActionRecordsRecount:
		return SeverityCritical
	case ActionCheckIn, ActionSessionCreate:
		return SeverityLow
	default:
		return SeverityMedium
	}
}

// Auditor records mutations. Failures are logged and never returned, so an
// audit outage cannot fail the operation being audited.
type Auditor struct {
	sink AuditSink
	now  func() time.Time
}

// NewAuditor creates an Auditor. A nil sink disables persistence.
func NewAuditor(sink AuditSink) *Auditor {
	return &Auditor{sink: sink, now: time.Now}
}

// Log writes an audit entry enriched with actor and request metadata from ctx.
func (a *Auditor) Log(ctx context.Context, e AuditEntry) {
	if a == nil {
		return
	}
	e.ID = uuid.NewString()
	e.Severity = determineSeverity(e.Action)
	e.CreatedAt = a.now().UTC()
	if e.ActorID == "" {
		e.ActorID = ActorFromContext(ctx).UserID
	}
	e.IPAddress = GetIPAddressFromContext(ctx)
	e.UserAgent = GetUserAgentFromContext(ctx)

	logger := logging.FromContext(ctx)
	logger.Debug("audit",
		"action", e.Action,
		"severity", e.Severity,
		"actor", e.ActorID,
		"dataset_id", e.DatasetID,
		"record_id", e.RecordID,
	)

	if a.sink == nil {
		return
	}
	// Detached from request cancellation so that a finished request still
	// leaves its trail.
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := a.sink.InsertAudit(writeCtx, e); err != nil {
		logger.Error("audit write failed", "action", e.Action, "error", err)
	}
}

// List returns audit entries matching f.
func (a *Auditor) List(ctx context.Context, f AuditFilter) ([]AuditEntry, error) {
	if a == nil || a.sink == nil {
		return []AuditEntry{}, nil
	}
	if f.Limit <= 0 || f.Limit > 1000 {
		f.Limit = DefaultAuditLimit
	}
	entries, err := a.sink.ListAudit(ctx, f)
	if err != nil {
		return nil, storeErr("list audit", err)
	}
	return entries, nil
}
