package web

// handlers_checkin.go serves the public QR check-in endpoint and the
// coordinator's session and attendance views.
//
// The check-in endpoint answers with its own envelope, {success, error},
// rather than ErrorResponse, because scanner pages branch on the error code.

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/JonMunkholm/qrtrack/internal/core"
	"github.com/JonMunkholm/qrtrack/internal/logging"
	"github.com/go-chi/chi/v5"
)

// Check-in error codes.
const (
	checkInMissingFields    = "missing_fields"
	checkInInvalidClass     = "invalid_class"
	checkInNotFound         = "not_found"
	checkInServerError      = "server_error"
	checkInInvalidTimestamp = "invalid_timestamp"
	checkInRateLimited      = "rate_limited"
)

type checkInRequest struct {
	ClassID    string `json:"classId"`
	Identifier string `json:"identifier"`
	Timestamp  string `json:"timestamp,omitempty"`
}

type checkInResponse struct {
	*core.ScanResult
	ClassID string `json:"classId"`
	Message string `json:"message"`
}

type checkInStatusResponse struct {
	Success bool `json:"success"`
	*core.ScanStatus
}

type checkInFailure struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

func writeCheckInFailure(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, checkInFailure{Error: code, Message: msg})
}

// respondCheckInError maps a scan error to the check-in envelope.
func respondCheckInError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case core.IsValidation(err):
		writeCheckInFailure(w, http.StatusBadRequest, checkInMissingFields, "Class ID and identifier are required")
	case errors.Is(err, core.ErrUnknownSession):
		writeCheckInFailure(w, http.StatusBadRequest, checkInInvalidClass, "Invalid class ID")
	case core.IsNotFound(err):
		writeCheckInFailure(w, http.StatusNotFound, checkInNotFound, "Student not found")
	default:
		logging.FromContext(r.Context()).Error("check-in failed", "error", err)
		writeCheckInFailure(w, http.StatusInternalServerError, checkInServerError, core.MapError(err).Message)
	}
}

func rejectCheckIn(w http.ResponseWriter, _ *http.Request) {
	writeCheckInFailure(w, http.StatusTooManyRequests, checkInRateLimited, "Too many check-ins, wait a moment")
}

func (s *Server) handleCheckIn(w http.ResponseWriter, r *http.Request) {
	// Scanner pages may send extra keys, so unknown fields are ignored here.
	var req checkInRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, MaxJSONBody)).Decode(&req); err != nil {
		writeCheckInFailure(w, http.StatusBadRequest, checkInMissingFields, "Class ID and identifier are required")
		return
	}
	if strings.TrimSpace(req.ClassID) == "" || strings.TrimSpace(req.Identifier) == "" {
		writeCheckInFailure(w, http.StatusBadRequest, checkInMissingFields, "Class ID and identifier are required")
		return
	}

	scan := core.ScanRequest{
		SessionID:  req.ClassID,
		Identifier: req.Identifier,
		RecordedBy: actor(r).UserID,
	}
	if req.Timestamp != "" {
		ts, err := time.Parse(time.RFC3339, req.Timestamp)
		if err != nil {
			writeCheckInFailure(w, http.StatusBadRequest, checkInInvalidTimestamp, "timestamp must be RFC 3339")
			return
		}
		scan.Timestamp = &ts
	}

	ctx := WithRequestMetadata(r.Context(), r)
	res, err := s.service.Scans.Record(ctx, scan)
	if err != nil {
		respondCheckInError(w, r, err)
		return
	}

	msg := "Check-in successful"
	if res.AlreadyCheckedIn {
		msg = "Already checked in for this class"
	}
	writeJSON(w, http.StatusOK, checkInResponse{ScanResult: res, ClassID: req.ClassID, Message: msg})
}

func (s *Server) handleCheckInStatus(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	st, err := s.service.Scans.Status(r.Context(), q.Get("classId"), q.Get("identifier"))
	if err != nil {
		respondCheckInError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, checkInStatusResponse{Success: true, ScanStatus: st})
}

type createSessionRequest struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	ScheduledAt *time.Time `json:"scheduledAt,omitempty"`
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		badRequest(w, r, "body", "invalid session: "+err.Error())
		return
	}

	ctx := WithRequestMetadata(r.Context(), r)
	sess, err := s.service.Scans.CreateSession(ctx, core.CheckInSession{
		ID:          req.ID,
		DatasetID:   chi.URLParam(r, "id"),
		Name:        req.Name,
		ScheduledAt: req.ScheduledAt,
	})
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, sess)
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	list, err := s.service.Scans.Sessions(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	if list == nil {
		list = []core.CheckInSession{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleAttendance(w http.ResponseWriter, r *http.Request) {
	list, err := s.service.Scans.Attendance(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	if list == nil {
		list = []core.Attendance{}
	}
	writeJSON(w, http.StatusOK, list)
}
