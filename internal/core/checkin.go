package core

// checkin.go resolves scanned identifiers to participants and records
// attendance.
//
// Each (participant, session) pair moves from unattended to attended exactly
// once. The store's MarkAttended is a conditional insert, so two concurrent
// scans of the same participant cannot both record a time; the loser observes
// the winner's row and reports alreadyCheckedIn.

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/JonMunkholm/qrtrack/internal/logging"
)

const (
	emailField = "email"
	phoneField = "phone"
)

// ScanRequest is one check-in attempt.
type ScanRequest struct {
	SessionID  string
	Identifier string
	Timestamp  *time.Time // defaults to now
	RecordedBy string
}

// ScanResult is the outcome of a successful check-in, first or repeated.
type ScanResult struct {
	Success          bool      `json:"success"`
	AlreadyCheckedIn bool      `json:"alreadyCheckedIn,omitempty"`
	ParticipantID    string    `json:"-"`
	StudentName      string    `json:"studentName"`
	CheckInTime      time.Time `json:"checkInTime"`
}

// ScanStatus answers whether a participant has checked in to a session.
type ScanStatus struct {
	ParticipantID string `json:"-"`
	StudentName   string `json:"studentName"`
	IsCheckedIn   bool   `json:"isCheckedIn"`
}

// ScanRecorder records attendance from QR scans.
type ScanRecorder struct {
	checkins CheckInStore
	datasets DatasetStore
	records  RecordStore
	auditor  *Auditor
	metrics  Metrics
	now      func() time.Time
}

// NormalizeEmail lowercases and trims an email address.
func NormalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// NormalizePhone keeps only the digits of a phone number.
func NormalizePhone(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// IsEmailIdentifier reports whether an identifier is treated as an email.
func IsEmailIdentifier(s string) bool {
	return strings.Contains(s, "@")
}

// PhoneVariants lists the stored phone formats tried, in order: digits only,
// the raw input, the number without a leading US country code, then
// "(xxx) xxx-xxxx" and "xxx-xxx-xxxx" for 10-digit numbers.
func PhoneVariants(raw string) []string {
	raw = strings.TrimSpace(raw)
	digits := NormalizePhone(raw)

	var out []string
	seen := make(map[string]bool, 5)
	add := func(v string) {
		if v != "" && !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}

	add(digits)
	add(raw)
	local := digits
	if len(local) == 11 && local[0] == '1' {
		local = local[1:]
		add(local)
	}
	if len(local) == 10 {
		add(fmt.Sprintf("(%s) %s-%s", local[:3], local[3:6], local[6:]))
		add(fmt.Sprintf("%s-%s-%s", local[:3], local[3:6], local[6:]))
	}
	return out
}

// session loads a check-in session, mapping a miss to ErrUnknownSession.
func (s *ScanRecorder) session(ctx context.Context, id string) (*CheckInSession, error) {
	sess, err := s.checkins.GetCheckInSession(ctx, id)
	if IsNotFound(err) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSession, id)
	}
	if err != nil {
		return nil, storeErr("get check-in session", err)
	}
	return sess, nil
}

// resolve finds the participant an identifier refers to. When several records
// match, the earliest created wins.
func (s *ScanRecorder) resolve(ctx context.Context, datasetID, identifier string) (*ParticipantRecord, error) {
	var field string
	var candidates []string

	if IsEmailIdentifier(identifier) {
		field = emailField
		candidates = []string{NormalizeEmail(identifier)}
	} else {
		field = phoneField
		candidates = PhoneVariants(identifier)
	}

	// A phone identifier without digits cannot match anyone.
	if len(candidates) == 0 || (field == phoneField && NormalizePhone(identifier) == "") {
		return nil, NewNotFound("participant", identifier)
	}

	for _, c := range candidates {
		recs, err := s.records.FindRecords(ctx, datasetID, field, c, 1)
		if err != nil {
			return nil, storeErr("find participant", err)
		}
		if len(recs) > 0 {
			return &recs[0], nil
		}
	}
	return nil, NewNotFound("participant", identifier)
}

// Record checks a participant in. A repeated scan returns the original time
// with AlreadyCheckedIn set and does not change stored state.
func (s *ScanRecorder) Record(ctx context.Context, req ScanRequest) (*ScanResult, error) {
	res, err := s.record(ctx, req)
	s.metrics.ScanRecorded(scanOutcome(res, err))
	return res, err
}

func (s *ScanRecorder) record(ctx context.Context, req ScanRequest) (*ScanResult, error) {
	if strings.TrimSpace(req.SessionID) == "" || strings.TrimSpace(req.Identifier) == "" {
		return nil, ValidationError{Message: "missing required fields: classId and identifier"}
	}

	sess, err := s.session(ctx, req.SessionID)
	if err != nil {
		return nil, err
	}
	participant, err := s.resolve(ctx, sess.DatasetID, req.Identifier)
	if err != nil {
		return nil, err
	}

	at := s.now()
	if req.Timestamp != nil {
		at = *req.Timestamp
	}

	stored, created, err := s.checkins.MarkAttended(ctx, Attendance{
		ParticipantID: participant.ID,
		SessionID:     sess.ID,
		Attended:      true,
		RecordedAt:    at.UTC(),
		RecordedBy:    req.RecordedBy,
	})
	if err != nil {
		return nil, storeErr("mark attended", err)
	}

	result := &ScanResult{
		Success:          true,
		AlreadyCheckedIn: !created,
		ParticipantID:    participant.ID,
		StudentName:      ParticipantName(participant, req.Identifier),
		CheckInTime:      stored.RecordedAt.UTC(),
	}

	logger := logging.WithFields(ctx, "session_id", sess.ID, "participant_id", participant.ID)
	if created {
		s.auditor.Log(ctx, AuditEntry{
			Action:    ActionCheckIn,
			ActorID:   req.RecordedBy,
			DatasetID: sess.DatasetID,
			RecordID:  participant.ID,
			SessionID: sess.ID,
		})
		logger.Info("participant checked in")
	} else {
		logger.Info("repeat scan ignored", "original_time", result.CheckInTime)
	}
	return result, nil
}

// Status reports whether the identified participant has checked in.
func (s *ScanRecorder) Status(ctx context.Context, sessionID, identifier string) (*ScanStatus, error) {
	if strings.TrimSpace(sessionID) == "" || strings.TrimSpace(identifier) == "" {
		return nil, ValidationError{Message: "missing required fields: classId and identifier"}
	}
	sess, err := s.session(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	participant, err := s.resolve(ctx, sess.DatasetID, identifier)
	if err != nil {
		return nil, err
	}

	status := &ScanStatus{
		ParticipantID: participant.ID,
		StudentName:   ParticipantName(participant, identifier),
	}
	_, err = s.checkins.GetAttendance(ctx, participant.ID, sess.ID)
	switch {
	case err == nil:
		status.IsCheckedIn = true
	case IsNotFound(err):
	default:
		return nil, storeErr("get attendance", err)
	}
	return status, nil
}

// CreateSession registers a check-in session for a dataset.
func (s *ScanRecorder) CreateSession(ctx context.Context, sess CheckInSession) (*CheckInSession, error) {
	if strings.TrimSpace(sess.ID) == "" || strings.TrimSpace(sess.Name) == "" {
		return nil, ValidationError{Message: "session id and name are required"}
	}
	if _, err := s.datasets.GetDataset(ctx, sess.DatasetID); err != nil {
		return nil, storeErr("get dataset", err)
	}
	sess.CreatedAt = s.now().UTC()
	if sess.CreatedBy == "" {
		sess.CreatedBy = ActorFromContext(ctx).UserID
	}
	if err := s.checkins.CreateCheckInSession(ctx, &sess); err != nil {
		if errors.Is(err, ErrAlreadyExists) {
			return nil, ValidationError{Field: "sessionId", Value: sess.ID, Message: "session id already in use"}
		}
		return nil, storeErr("create check-in session", err)
	}
	s.auditor.Log(ctx, AuditEntry{Action: ActionSessionCreate, DatasetID: sess.DatasetID, SessionID: sess.ID})
	return &sess, nil
}

// Sessions lists the check-in sessions of a dataset.
func (s *ScanRecorder) Sessions(ctx context.Context, datasetID string) ([]CheckInSession, error) {
	list, err := s.checkins.ListCheckInSessions(ctx, datasetID)
	if err != nil {
		return nil, storeErr("list check-in sessions", err)
	}
	return list, nil
}

// Attendance lists who checked in to a session, earliest first.
func (s *ScanRecorder) Attendance(ctx context.Context, sessionID string) ([]Attendance, error) {
	if _, err := s.session(ctx, sessionID); err != nil {
		return nil, err
	}
	list, err := s.checkins.ListAttendance(ctx, sessionID)
	if err != nil {
		return nil, storeErr("list attendance", err)
	}
	return list, nil
}

// ParticipantName builds a display name from first and last name, then a
// single name field, then the fallback.
func ParticipantName(r *ParticipantRecord, fallback string) string {
	full := strings.TrimSpace(r.Value("firstname") + " " + r.Value("lastname"))
	if full != "" {
		return full
	}
	if n := r.Value("name"); n != "" {
		return n
	}
	return fallback
}

func scanOutcome(res *ScanResult, err error) string {
	switch {
	case err == nil && res.AlreadyCheckedIn:
		return ScanAlreadyCheckedIn
	case err == nil:
		return ScanCheckedIn
	case errors.Is(err, ErrUnknownSession):
		return ScanInvalidClass
	case IsNotFound(err):
		return ScanNotFound
	default:
		return ScanError
	}
}
