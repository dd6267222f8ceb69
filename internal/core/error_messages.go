package core

// error_messages.go maps technical errors to user-facing messages with a
// support code.
//
// Codes are grouped by category:
//
//	DB001-DB007    Database errors (duplicates, connections, timeouts)
//	VAL001-VAL009  Validation errors (formats, required and unknown fields)
//	WIZ001-WIZ005  Wizard errors (steps, payloads, finalize preconditions)
//	CHK001-CHK003  Check-in errors (unknown class, unknown participant)
//	NF001-NF003    Missing datasets, records, and wizard sessions
//	FILE001-FILE005 Upload file errors
//	IMP001-IMP003  Import capacity and cancellation
//	RATE001        Request throttling
//	ERR000         Fallback; check the server log for the technical error
//
// Patterns are matched case-insensitively with strings.Contains and the first
// match wins, so specific patterns come before general ones.

import (
	"errors"
	"fmt"
	"strings"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string // What happened (user-friendly)
	Action  string // What to do about it
	Code    string // Error code for support reference
}

type errorPattern struct {
	pattern string
	msg     UserMessage
}

var errorPatterns = []errorPattern{
	// Database
	{"duplicate key", UserMessage{"A record with this ID already exists", "Refresh and try again", "DB001"}},
	{"unique constraint", UserMessage{"This value must be unique but already exists", "Choose a different value", "DB002"}},
	{"connection refused", UserMessage{"Unable to connect to database", "Please try again in a few moments", "DB004"}},
	{"connection reset", UserMessage{"Database connection was interrupted", "Please try again", "DB005"}},
	{"deadlock", UserMessage{"Database was busy with conflicting operations", "Please try again", "DB007"}},

	// Wizard
	{"invalid wizard step", UserMessage{"That wizard step does not exist", "Choose a step between 1 and 8", "WIZ001"}},
	{"steps not completed", UserMessage{"Some wizard steps are not finished", "Complete the listed steps first", "WIZ002"}},
	{"already provisioned", UserMessage{"This wizard already created its dataset", "Reset the wizard to start a new program", "WIZ003"}},
	{"invalid step payload", UserMessage{"The step data could not be read", "Check the form fields and try again", "WIZ004"}},
	{"missing acting user", UserMessage{"You are not signed in", "Sign in and try again", "WIZ005"}},

	// Check-in
	{"unknown check-in session", UserMessage{"This class does not exist", "Check the class code on the QR poster", "CHK001"}},
	{"participant not found", UserMessage{"No participant matches that email or phone", "Check the spelling or ask staff to register you", "CHK002"}},
	{"session id already in use", UserMessage{"A class with this id already exists", "Use a different session id", "CHK003"}},

	// Missing entities
	{"dataset not found", UserMessage{"Dataset not found", "Verify the dataset link is correct", "NF001"}},
	{"record not found", UserMessage{"Participant record not found", "The record may have been deleted", "NF002"}},
	{"wizard not found", UserMessage{"Wizard session not found", "Open the wizard to start a new session", "NF003"}},

	// Validation
	{"invalid date", UserMessage{"Invalid date format detected", "Use YYYY-MM-DD, MM/DD/YYYY, or Jan 15, 2024", "VAL001"}},
	{"invalid number", UserMessage{"Invalid number format detected", "Remove letters and use a standard decimal format", "VAL002"}},
	{"required field", UserMessage{"Required field is empty", "Fill in every required field", "VAL003"}},
	{"missing required", UserMessage{"Required information is missing", "Check that all required values are present", "VAL004"}},
	{"unknown field", UserMessage{"A field is not part of the dataset", "Only use fields defined in the dataset schema", "VAL005"}},
	{"invalid enum", UserMessage{"Value is not in the allowed list", "Check the allowed values for this field", "VAL006"}},
	{"invalid email", UserMessage{"Invalid email address", "Use the form name@example.org", "VAL007"}},
	{"yes/no", UserMessage{"Invalid yes/no value", "Use yes/no, true/false, or 1/0", "VAL008"}},
	{"record has no values", UserMessage{"The record is empty", "Fill in at least one field", "VAL009"}},

	// Files
	{"file too large", UserMessage{"File exceeds the maximum size", "Split the file into smaller parts", "FILE001"}},
	{"invalid csv", UserMessage{"File is not a valid CSV", "Ensure the file is comma-separated with a header row", "FILE002"}},
	{"no file provided", UserMessage{"No file was selected", "Please select a CSV file to upload", "FILE004"}},
	{"empty file", UserMessage{"The uploaded file is empty", "Please upload a CSV file with a header and data rows", "FILE005"}},

	// Imports and request lifecycle
	{"too many concurrent imports", UserMessage{"The system is busy with other imports", "Please wait a moment and try again", "IMP001"}},
	{"context canceled", UserMessage{"Request was cancelled", "Please try again", "IMP002"}},
	{"context deadline exceeded", UserMessage{"Request timed out", "Try a smaller file or try again later", "IMP003"}},
	{"timeout", UserMessage{"Operation timed out", "Please try again later", "DB006"}},

	{"rate limit", UserMessage{"Too many requests", "Please wait a moment before trying again", "RATE001"}},
}

var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message. If no
// pattern matches, the ERR000 fallback is returned.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	errStr := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}
	return defaultMessage
}

// FormatUserError formats an error as "Message (Code: XXX). Action".
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err matches a known pattern.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}

// UserError pairs a technical error with its user message.
type UserError struct {
	Technical error
	User      UserMessage
}

func (e *UserError) Error() string {
	return e.User.Message
}

func (e *UserError) Unwrap() error {
	return e.Technical
}

// NewUserError maps err. Returns nil if err is nil.
func NewUserError(err error) *UserError {
	if err == nil {
		return nil
	}
	return &UserError{Technical: err, User: MapError(err)}
}

// HTTPStatus picks the response status for a domain error.
func HTTPStatus(err error) int {
	var se *StoreError
	switch {
	case err == nil:
		return 200
	case IsValidation(err):
		return 400
	case errors.Is(err, ErrUnknownSession):
		return 400
	case IsNotFound(err):
		return 404
	case errors.Is(err, ErrTooManyImports):
		return 503
	case errors.As(err, &se):
		return 500
	default:
		return 500
	}
}
