package web

// errors.go provides unified error response handling for the web layer.
//
// The error flow:
//  1. Handler encounters an error
//  2. Calls respondError(w, r, err)
//  3. Status comes from core.HTTPStatus, the user message from core.MapError
//  4. Technical error + context is logged with request ID for correlation
//  5. The user message is written as JSON

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/JonMunkholm/qrtrack/internal/core"
	"github.com/JonMunkholm/qrtrack/internal/logging"
)

// ErrorResponse represents the JSON structure for API error responses.
// Includes both machine-readable (Code) and human-readable (Message, Action) fields.
type ErrorResponse struct {
	Error   string         `json:"error"`
	Message string         `json:"message"`
	Action  string         `json:"action,omitempty"`
	Code    string         `json:"code"`
	Fields  []FieldProblem `json:"fields,omitempty"`
}

// FieldProblem names one invalid input field.
type FieldProblem struct {
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

// respondError logs err and writes its user-facing JSON form.
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	status := core.HTTPStatus(err)
	userMsg := core.MapError(err)

	level := slog.LevelWarn
	if status >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	logging.FromContext(r.Context()).Log(r.Context(), level, "request error",
		"path", r.URL.Path,
		"method", r.Method,
		"status", status,
		"error", err.Error(),
		"code", userMsg.Code,
	)

	resp := ErrorResponse{
		Error:   userMsg.Message,
		Message: userMsg.Message,
		Action:  userMsg.Action,
		Code:    userMsg.Code,
	}
	resp.Fields = fieldProblems(err)
	writeJSON(w, status, resp)
}

func fieldProblems(err error) []FieldProblem {
	var ves core.ValidationErrors
	if !errors.As(err, &ves) {
		var ve core.ValidationError
		if !errors.As(err, &ve) {
			return nil
		}
		ves = core.ValidationErrors{ve}
	}
	out := make([]FieldProblem, len(ves))
	for i, ve := range ves {
		out[i] = FieldProblem{Field: ve.Field, Message: ve.Message}
	}
	return out
}

// badRequest reports a malformed request that never reached the domain layer.
func badRequest(w http.ResponseWriter, r *http.Request, field, msg string) {
	respondError(w, r, core.ValidationError{Field: field, Message: msg})
}
