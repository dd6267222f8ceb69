package web

import (
	"encoding/json"
	"net/http"

	"github.com/JonMunkholm/qrtrack/internal/core"
)

// wizardView is the JSON form of a wizard session. Steps are keyed by
// step number and hold the last saved payload of each step.
type wizardView struct {
	CurrentStep    int                     `json:"currentStep"`
	StepName       string                  `json:"stepName"`
	CompletedSteps []int                   `json:"completedSteps"`
	Status         core.WizardStatus       `json:"status"`
	DatasetID      string                  `json:"datasetId,omitempty"`
	Steps          map[int]json.RawMessage `json:"steps"`
}

func newWizardView(sess *core.WizardSession) wizardView {
	v := wizardView{
		CurrentStep:    sess.CurrentStep,
		StepName:       core.StepName(sess.CurrentStep),
		CompletedSteps: sess.CompletedSteps,
		Status:         sess.Status,
		DatasetID:      sess.DatasetID,
		Steps:          make(map[int]json.RawMessage),
	}
	if v.CompletedSteps == nil {
		v.CompletedSteps = []int{}
	}
	for n := core.FirstStep; n <= core.LastStep; n++ {
		if raw := sess.Payload(n); raw != nil {
			v.Steps[n] = raw
		}
	}
	return v
}

func respondWizard(w http.ResponseWriter, r *http.Request, sess *core.WizardSession, err error) {
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newWizardView(sess))
}

func (s *Server) handleWizard(w http.ResponseWriter, r *http.Request) {
	sess, err := s.service.Wizard.Session(r.Context(), actor(r).UserID)
	respondWizard(w, r, sess, err)
}

// handleWizardStep validates and saves one step's payload. An invalid payload
// leaves the stored session untouched.
func (s *Server) handleWizardStep(w http.ResponseWriter, r *http.Request) {
	step, ok := stepParam(r)
	if !ok {
		badRequest(w, r, "step", "invalid wizard step")
		return
	}

	limit := int64(MaxJSONBody)
	if step == 4 {
		limit = s.cfg.Import.MaxFileSize
	}
	body, err := readBody(w, r, limit)
	if err != nil {
		badRequest(w, r, "body", err.Error())
		return
	}

	payload, err := core.DecodeStepPayload(step, body)
	if err != nil {
		respondError(w, r, err)
		return
	}

	ctx := WithRequestMetadata(r.Context(), r)
	sess, err := s.service.Wizard.UpdateStep(ctx, actor(r).UserID, payload)
	respondWizard(w, r, sess, err)
}

func (s *Server) handleWizardNext(w http.ResponseWriter, r *http.Request) {
	sess, err := s.service.Wizard.Next(r.Context(), actor(r).UserID)
	respondWizard(w, r, sess, err)
}

func (s *Server) handleWizardPrevious(w http.ResponseWriter, r *http.Request) {
	sess, err := s.service.Wizard.Previous(r.Context(), actor(r).UserID)
	respondWizard(w, r, sess, err)
}

func (s *Server) handleWizardGoTo(w http.ResponseWriter, r *http.Request) {
	step, ok := stepParam(r)
	if !ok {
		badRequest(w, r, "step", "invalid wizard step")
		return
	}
	sess, err := s.service.Wizard.GoTo(r.Context(), actor(r).UserID, step)
	respondWizard(w, r, sess, err)
}

func (s *Server) handleWizardReset(w http.ResponseWriter, r *http.Request) {
	ctx := WithRequestMetadata(r.Context(), r)
	sess, err := s.service.Wizard.Reset(ctx, actor(r).UserID)
	respondWizard(w, r, sess, err)
}

func (s *Server) handleWizardComplete(w http.ResponseWriter, r *http.Request) {
	ctx := WithRequestMetadata(r.Context(), r)
	sess, err := s.service.Wizard.Complete(ctx, actor(r).UserID)
	respondWizard(w, r, sess, err)
}

// handleWizardFinalize provisions the dataset described by steps 2 to 4.
func (s *Server) handleWizardFinalize(w http.ResponseWriter, r *http.Request) {
	a := actor(r)
	ctx := WithRequestMetadata(r.Context(), r)
	res, err := s.service.Wizard.Finalize(ctx, a.UserID, a.OrgID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}
