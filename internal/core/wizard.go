package core

// wizard.go holds the navigation and completion rules of the 8-step setup
// wizard. Everything here is pure; WizardService persists the results.
//
// Invariants kept by every method:
//   - CurrentStep is always within [FirstStep, LastStep]
//   - CompletedSteps is sorted, has no duplicates, and only holds valid steps

import (
	"encoding/json"
	"sort"
	"time"
)

const (
	FirstStep       = 1
	LastStep        = 8
	WizardStepCount = LastStep - FirstStep + 1
)

// stepNames are indexed by step number minus one.
var stepNames = [WizardStepCount]string{
	"Platform Discovery",
	"Program Details",
	"Data Requirements",
	"Participant Upload",
	"Form Customization",
	"QR Strategy",
	"Training & Workflows",
	"Implementation Plan",
}

// StepName returns the display name of a step, or "" when out of range.
func StepName(n int) string {
	if !ValidStep(n) {
		return ""
	}
	return stepNames[n-FirstStep]
}

// ValidStep reports whether n names a wizard step.
func ValidStep(n int) bool {
	return n >= FirstStep && n <= LastStep
}

// ClampStep forces n into [FirstStep, LastStep].
func ClampStep(n int) int {
	if n < FirstStep {
		return FirstStep
	}
	if n > LastStep {
		return LastStep
	}
	return n
}

// WizardStatus is the overall state of a wizard session.
type WizardStatus string

const (
	WizardDraft    WizardStatus = "draft"
	WizardComplete WizardStatus = "complete"
)

// WizardSession is one coordinator's wizard state.
type WizardSession struct {
	ID             string                           `json:"id"`
	CurrentStep    int                              `json:"currentStep"`
	CompletedSteps []int                            `json:"completedSteps"`
	Status         WizardStatus                     `json:"status"`
	Steps          [WizardStepCount]json.RawMessage `json:"steps"`
	DatasetID      string                           `json:"datasetId,omitempty"`
	CreatedAt      time.Time                        `json:"createdAt"`
	UpdatedAt      time.Time                        `json:"updatedAt"`
}

// NewWizardSession returns a session in its initial state.
func NewWizardSession(id string, now time.Time) *WizardSession {
	return &WizardSession{
		ID:             id,
		CurrentStep:    FirstStep,
		CompletedSteps: []int{},
		Status:         WizardDraft,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// NextStep advances one step, staying at LastStep once there.
func (s *WizardSession) NextStep() {
	s.CurrentStep = ClampStep(s.CurrentStep + 1)
}

// PreviousStep goes back one step, staying at FirstStep once there.
func (s *WizardSession) PreviousStep() {
	s.CurrentStep = ClampStep(s.CurrentStep - 1)
}

// GoToStep moves to n clamped into range.
func (s *WizardSession) GoToStep(n int) {
	s.CurrentStep = ClampStep(n)
}

// IsStepCompleted reports whether n is in CompletedSteps.
func (s *WizardSession) IsStepCompleted(n int) bool {
	i := sort.SearchInts(s.CompletedSteps, n)
	return i < len(s.CompletedSteps) && s.CompletedSteps[i] == n
}

// AllStepsCompleted reports whether every step has been saved.
func (s *WizardSession) AllStepsCompleted() bool {
	return len(s.CompletedSteps) == WizardStepCount
}

// MarkCompleted adds n to CompletedSteps. Out-of-range steps are ignored.
func (s *WizardSession) MarkCompleted(n int) {
	if !ValidStep(n) || s.IsStepCompleted(n) {
		return
	}
	i := sort.SearchInts(s.CompletedSteps, n)
	s.CompletedSteps = append(s.CompletedSteps, 0)
	copy(s.CompletedSteps[i+1:], s.CompletedSteps[i:])
	s.CompletedSteps[i] = n
}

// SetPayload replaces the slot for step n. It does not mark completion.
func (s *WizardSession) SetPayload(n int, payload json.RawMessage) {
	if !ValidStep(n) {
		return
	}
	s.Steps[n-FirstStep] = payload
}

// Payload returns the raw slot for step n, or nil if empty or out of range.
func (s *WizardSession) Payload(n int) json.RawMessage {
	if !ValidStep(n) {
		return nil
	}
	return s.Steps[n-FirstStep]
}

// Reset returns the session to its initial state, keeping ID and CreatedAt.
func (s *WizardSession) Reset() {
	s.CurrentStep = FirstStep
	s.CompletedSteps = []int{}
	s.Status = WizardDraft
	s.Steps = [WizardStepCount]json.RawMessage{}
	s.DatasetID = ""
}

// Clone returns a deep copy.
func (s *WizardSession) Clone() *WizardSession {
	c := *s
	c.CompletedSteps = append([]int{}, s.CompletedSteps...)
	for i, p := range s.Steps {
		if p != nil {
			c.Steps[i] = append(json.RawMessage{}, p...)
		}
	}
	return &c
}

// NormalizeCompleted sorts and deduplicates steps, dropping invalid ones.
// Stores use it when loading persisted sessions.
func NormalizeCompleted(steps []int) []int {
	set := make(map[int]struct{}, len(steps))
	for _, n := range steps {
		if ValidStep(n) {
			set[n] = struct{}{}
		}
	}
	return sortedInts(set)
}
