package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/JonMunkholm/qrtrack/internal/logging"
)

// WizardService persists wizard sessions, one per coordinator.
//
// Each step owns a separate payload slot and UpdateStep replaces the whole
// slot in one store write, so concurrent saves of different steps never
// conflict. Concurrent saves of the same step are last-write-wins.
type WizardService struct {
	store   WizardStore
	builder *DatasetBuilder
	scans   *ScanRecorder
	auditor *Auditor
	metrics Metrics
	now     func() time.Time
}

// Session returns the coordinator's session, creating it on first access.
func (s *WizardService) Session(ctx context.Context, userID string) (*WizardSession, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, ValidationError{Field: "user", Message: "missing acting user"}
	}

	sess, err := s.store.GetWizard(ctx, userID)
	if err == nil {
		return sess, nil
	}
	if !IsNotFound(err) {
		return nil, storeErr("get wizard", err)
	}

	sess = NewWizardSession(userID, s.now().UTC())
	if err := s.store.CreateWizard(ctx, sess); err != nil {
		// Another request created it first.
		if errors.Is(err, ErrAlreadyExists) {
			existing, getErr := s.store.GetWizard(ctx, userID)
			return existing, storeErr("get wizard", getErr)
		}
		return nil, storeErr("create wizard", err)
	}
	logging.FromContext(ctx).Info("wizard session created", "user_id", userID)
	return sess, nil
}

// UpdateStep validates payload, replaces its step's slot, and marks the step
// completed. Completion is recorded only after the store acknowledges the
// write; on failure the error is returned and the session is unchanged.
func (s *WizardService) UpdateStep(ctx context.Context, userID string, payload StepPayload) (*WizardSession, error) {
	n := payload.Step()
	if !ValidStep(n) {
		return nil, ValidationError{Field: "step", Value: fmt.Sprint(n), Message: "invalid wizard step"}
	}
	if err := payload.Validate(); err != nil {
		return nil, err
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode step %d: %w", n, err)
	}

	sess, err := s.Session(ctx, userID)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	if err := s.store.SaveStep(ctx, sess.ID, n, raw, now); err != nil {
		logging.FromContext(ctx).Error("wizard step save failed", "user_id", userID, "step", n, "error", err)
		return nil, storeErr("save wizard step", err)
	}

	sess.SetPayload(n, raw)
	sess.MarkCompleted(n)
	sess.UpdatedAt = now
	s.metrics.WizardStepSaved(n)
	return sess, nil
}

// Next advances the coordinator's wizard by one step.
func (s *WizardService) Next(ctx context.Context, userID string) (*WizardSession, error) {
	return s.navigate(ctx, userID, (*WizardSession).NextStep)
}

// Previous moves the coordinator's wizard back one step.
func (s *WizardService) Previous(ctx context.Context, userID string) (*WizardSession, error) {
	return s.navigate(ctx, userID, (*WizardSession).PreviousStep)
}

// GoTo jumps to step n, clamped into range.
func (s *WizardService) GoTo(ctx context.Context, userID string, n int) (*WizardSession, error) {
	return s.navigate(ctx, userID, func(ws *WizardSession) { ws.GoToStep(n) })
}

// navigate applies move and persists the resulting current step. Navigation
// never marks a step completed.
func (s *WizardService) navigate(ctx context.Context, userID string, move func(*WizardSession)) (*WizardSession, error) {
	sess, err := s.Session(ctx, userID)
	if err != nil {
		return nil, err
	}

	before := sess.CurrentStep
	move(sess)
	if sess.CurrentStep == before {
		return sess, nil
	}

	now := s.now().UTC()
	if err := s.store.SaveNavigation(ctx, sess.ID, sess.CurrentStep, now); err != nil {
		return nil, storeErr("save wizard navigation", err)
	}
	sess.UpdatedAt = now
	return sess, nil
}

// Reset returns the coordinator's wizard to its initial state.
func (s *WizardService) Reset(ctx context.Context, userID string) (*WizardSession, error) {
	sess, err := s.Session(ctx, userID)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	if err := s.store.ResetWizard(ctx, sess.ID, now); err != nil {
		return nil, storeErr("reset wizard", err)
	}
	sess.Reset()
	sess.UpdatedAt = now
	s.auditor.Log(ctx, AuditEntry{Action: ActionWizardReset, ActorID: userID})
	return sess, nil
}

// Complete marks the wizard complete once every step has been saved. The
// session stays editable afterwards.
func (s *WizardService) Complete(ctx context.Context, userID string) (*WizardSession, error) {
	sess, err := s.Session(ctx, userID)
	if err != nil {
		return nil, err
	}
	if missing := missingSteps(sess, FirstStep, 2, 3, 4, 5, 6, 7, LastStep); len(missing) > 0 {
		return nil, ValidationError{Field: "completedSteps", Message: "steps not completed: " + missing}
	}
	if sess.Status == WizardComplete {
		return sess, nil
	}

	now := s.now().UTC()
	if err := s.store.SaveStatus(ctx, sess.ID, WizardComplete, now); err != nil {
		return nil, storeErr("save wizard status", err)
	}
	sess.Status = WizardComplete
	sess.UpdatedAt = now
	s.auditor.Log(ctx, AuditEntry{Action: ActionWizardComplete, ActorID: userID})
	return sess, nil
}

// Finalize provisions the participant dataset from steps 2 to 4 and creates a
// check-in session for every scheduled session of step 2.
func (s *WizardService) Finalize(ctx context.Context, userID, orgID string) (*BuildResult, error) {
	sess, err := s.Session(ctx, userID)
	if err != nil {
		return nil, err
	}
	if missing := missingSteps(sess, 2, 3, 4); len(missing) > 0 {
		return nil, ValidationError{Field: "completedSteps", Message: "steps not completed: " + missing}
	}
	if sess.DatasetID != "" {
		return nil, ValidationError{
			Field:   "datasetId",
			Value:   sess.DatasetID,
			Message: "wizard already provisioned a dataset, reset it to start over",
		}
	}

	var program Step2Program
	var data Step3DataRequirements
	var upload Step4ParticipantUpload
	for n, dst := range map[int]any{2: &program, 3: &data, 4: &upload} {
		if err := json.Unmarshal(sess.Payload(n), dst); err != nil {
			return nil, fmt.Errorf("decode step %d: %w", n, err)
		}
	}

	for _, sched := range program.SessionSchedule.Sessions {
		_, err := s.scans.checkins.GetCheckInSession(ctx, sched.SessionID)
		if err == nil {
			return nil, ValidationError{Field: "sessionId", Value: sched.SessionID, Message: "session id already in use"}
		}
		if !IsNotFound(err) {
			return nil, storeErr("get check-in session", err)
		}
	}

	result, err := s.builder.Build(ctx, BuildRequest{
		ProgramName:    program.BasicInfo.ProgramName,
		OrganizationID: orgID,
		CreatedBy:      userID,
		Description:    program.BasicInfo.Description,
		Upload:         upload.Upload(),
		FieldMapping:   upload.FieldMapping,
		StandardFields: data.StandardFields,
		CustomFields:   data.CustomFields,
	})
	if err != nil {
		return result, err
	}

	for _, sched := range program.SessionSchedule.Sessions {
		_, err := s.scans.CreateSession(ctx, CheckInSession{
			ID:        sched.SessionID,
			DatasetID: result.DatasetID,
			Name:      sched.SessionName,
			CreatedBy: userID,
		})
		if err != nil {
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("check-in session %q was not created: %v", sched.SessionID, err))
		}
	}

	if err := s.store.LinkDataset(ctx, sess.ID, result.DatasetID, s.now().UTC()); err != nil {
		return result, storeErr("link wizard dataset", err)
	}
	s.auditor.Log(ctx, AuditEntry{Action: ActionWizardFinalize, ActorID: userID, DatasetID: result.DatasetID})
	return result, nil
}

// missingSteps returns the steps in want that are not completed, comma separated.
func missingSteps(sess *WizardSession, want ...int) string {
	var missing []string
	for _, n := range want {
		if !sess.IsStepCompleted(n) {
			missing = append(missing, fmt.Sprint(n))
		}
	}
	return strings.Join(missing, ", ")
}
