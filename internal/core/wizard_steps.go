package core

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// StepPayload is the domain object owned by a single wizard step.
type StepPayload interface {
	Step() int
	Validate() error
}

// DecodeStepPayload decodes raw JSON into the typed payload for step n.
// Unknown keys are rejected so that a step cannot write another step's data.
func DecodeStepPayload(n int, raw []byte) (StepPayload, error) {
	var p StepPayload
	switch n {
	case 1:
		p = &Step1Platform{}
	case 2:
		p = &Step2Program{}
	case 3:
		p = &Step3DataRequirements{}
	case 4:
		p = &Step4ParticipantUpload{}
	case 5:
		p = &Step5FormCustomization{}
	case 6:
		p = &Step6QRStrategy{}
	case 7:
		p = &Step7Training{}
	case 8:
		p = &Step8Implementation{}
	default:
		return nil, ValidationError{Field: "step", Value: fmt.Sprint(n), Message: "invalid wizard step"}
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(p); err != nil {
		return nil, ValidationError{Field: "payload", Message: "invalid step payload: " + err.Error()}
	}
	return p, nil
}

// oneOf validates an enumerated value. Empty values pass unless required.
func oneOf(errs *ValidationErrors, field, value string, required bool, allowed ...string) {
	if value == "" {
		if required {
			*errs = append(*errs, ValidationError{Field: field, Message: "required field is empty"})
		}
		return
	}
	for _, a := range allowed {
		if value == a {
			return
		}
	}
	*errs = append(*errs, ValidationError{
		Field:   field,
		Value:   value,
		Message: "invalid enum, must be one of: " + strings.Join(allowed, ", "),
	})
}

func requireText(errs *ValidationErrors, field, value string) {
	if strings.TrimSpace(value) == "" {
		*errs = append(*errs, ValidationError{Field: field, Message: "required field is empty"})
	}
}

func optionalDate(errs *ValidationErrors, field, value string) {
	if value != "" && !ToPgDate(value).Valid {
		*errs = append(*errs, ValidationError{Field: field, Value: value, Message: "invalid date format"})
	}
}

// ---------------------------------------------------------------------------
// Step 1: Platform Discovery

// PlatformCapabilities lists what the coordinator's tooling can already do.
type PlatformCapabilities struct {
	FormBuilder      bool `json:"formBuilder"`
	QRCodeGeneration bool `json:"qrCodeGeneration"`
	Datasets         bool `json:"datasets"`
	Automation       bool `json:"automation"`
}

type Step1Platform struct {
	PlatformName string               `json:"platformName"`
	PlatformType string               `json:"platformType"`
	Capabilities PlatformCapabilities `json:"capabilities"`
	Limitations  string               `json:"limitations,omitempty"`
	Concerns     string               `json:"concerns,omitempty"`
}

func (*Step1Platform) Step() int { return 1 }

func (p *Step1Platform) Validate() error {
	var errs ValidationErrors
	requireText(&errs, "platformName", p.PlatformName)
	oneOf(&errs, "platformType", p.PlatformType, true,
		"salesforce", "airtable", "microsoft365", "google_workspace", "custom", "other")
	return errs.orNil()
}

// ---------------------------------------------------------------------------
// Step 2: Program Details

type ProgramInfo struct {
	ProgramName   string   `json:"programName"`
	ProgramType   string   `json:"programType,omitempty"`
	Description   string   `json:"description,omitempty"`
	StartDate     string   `json:"startDate,omitempty"`
	EndDate       string   `json:"endDate,omitempty"`
	FundingSource string   `json:"fundingSource,omitempty"`
	ProgramGoals  []string `json:"programGoals,omitempty"`
}

type Cohort struct {
	CohortID        string `json:"cohortId"`
	CohortName      string `json:"cohortName"`
	StartDate       string `json:"startDate,omitempty"`
	EndDate         string `json:"endDate,omitempty"`
	MaxParticipants int    `json:"maxParticipants,omitempty"`
}

// ScheduledSession is a recurring class. Finalize turns each one into a
// CheckInSession whose id is SessionID.
type ScheduledSession struct {
	SessionID       string `json:"sessionId"`
	SessionName     string `json:"sessionName"`
	DayOfWeek       string `json:"dayOfWeek,omitempty"`
	Time            string `json:"time,omitempty"`
	DurationMinutes int    `json:"duration,omitempty"`
	Location        string `json:"location,omitempty"`
	MaxCapacity     int    `json:"maxCapacity,omitempty"`
}

type SessionSchedule struct {
	HasRegularSessions bool               `json:"hasRegularSessions"`
	Frequency          string             `json:"frequency,omitempty"`
	Sessions           []ScheduledSession `json:"sessions"`
}

type Step2Program struct {
	BasicInfo       ProgramInfo     `json:"basicInfo"`
	Cohorts         []Cohort        `json:"cohorts,omitempty"`
	SessionSchedule SessionSchedule `json:"sessionSchedule"`
}

func (*Step2Program) Step() int { return 2 }

func (p *Step2Program) Validate() error {
	var errs ValidationErrors
	requireText(&errs, "basicInfo.programName", p.BasicInfo.ProgramName)
	oneOf(&errs, "basicInfo.programType", p.BasicInfo.ProgramType, false,
		"ongoing", "fixed_duration", "seasonal", "event_based")
	optionalDate(&errs, "basicInfo.startDate", p.BasicInfo.StartDate)
	optionalDate(&errs, "basicInfo.endDate", p.BasicInfo.EndDate)

	start, end := ToPgDate(p.BasicInfo.StartDate), ToPgDate(p.BasicInfo.EndDate)
	if start.Valid && end.Valid && end.Time.Before(start.Time) {
		errs = append(errs, ValidationError{Field: "basicInfo.endDate", Message: "end date is before start date"})
	}

	cohorts := make(map[string]bool, len(p.Cohorts))
	for i, c := range p.Cohorts {
		field := fmt.Sprintf("cohorts[%d]", i)
		requireText(&errs, field+".cohortId", c.CohortID)
		requireText(&errs, field+".cohortName", c.CohortName)
		if cohorts[c.CohortID] {
			errs = append(errs, ValidationError{Field: field + ".cohortId", Value: c.CohortID, Message: "duplicate cohort id"})
		}
		cohorts[c.CohortID] = true
	}

	oneOf(&errs, "sessionSchedule.frequency", p.SessionSchedule.Frequency, false,
		"daily", "weekly", "biweekly", "monthly", "quarterly", "adhoc")
	sessions := make(map[string]bool, len(p.SessionSchedule.Sessions))
	for i, s := range p.SessionSchedule.Sessions {
		field := fmt.Sprintf("sessionSchedule.sessions[%d]", i)
		requireText(&errs, field+".sessionId", s.SessionID)
		requireText(&errs, field+".sessionName", s.SessionName)
		if sessions[s.SessionID] {
			errs = append(errs, ValidationError{Field: field + ".sessionId", Value: s.SessionID, Message: "duplicate session id"})
		}
		sessions[s.SessionID] = true
		if s.DurationMinutes < 0 || s.MaxCapacity < 0 {
			errs = append(errs, ValidationError{Field: field, Message: "duration and capacity must be non-negative"})
		}
	}
	return errs.orNil()
}

// ---------------------------------------------------------------------------
// Step 3: Data Requirements

// CustomField is a coordinator-defined participant attribute. An empty
// FieldType is inferred from the upload.
type CustomField struct {
	FieldName   string    `json:"fieldName"`
	FieldType   FieldType `json:"fieldType,omitempty"`
	Required    bool      `json:"required"`
	Description string    `json:"description,omitempty"`
}

type Step3DataRequirements struct {
	StandardFields  []string      `json:"standardFields"`
	CustomFields    []CustomField `json:"customFields"`
	ConsentTracking bool          `json:"consentTracking,omitempty"`
	CollectsMedical bool          `json:"collectsMedical,omitempty"`
}

func (*Step3DataRequirements) Step() int { return 3 }

func (p *Step3DataRequirements) Validate() error {
	var errs ValidationErrors
	if len(p.StandardFields) == 0 && len(p.CustomFields) == 0 {
		errs = append(errs, ValidationError{Field: "standardFields", Message: "select at least one field"})
	}
	for i, id := range p.StandardFields {
		requireText(&errs, fmt.Sprintf("standardFields[%d]", i), id)
	}
	seen := make(map[string]bool, len(p.CustomFields))
	for i, f := range p.CustomFields {
		field := fmt.Sprintf("customFields[%d]", i)
		requireText(&errs, field+".fieldName", f.FieldName)
		if f.FieldType != "" && !f.FieldType.Valid() {
			errs = append(errs, ValidationError{Field: field + ".fieldType", Value: string(f.FieldType), Message: "unsupported field type"})
		}
		name := NormalizeFieldName(f.FieldName)
		if name != "" && seen[name] {
			errs = append(errs, ValidationError{Field: field + ".fieldName", Value: f.FieldName, Message: "duplicate custom field"})
		}
		seen[name] = true
	}
	return errs.orNil()
}

// ---------------------------------------------------------------------------
// Step 4: Participant Upload

type Step4ParticipantUpload struct {
	UploadMethod string            `json:"uploadMethod"`
	FileName     string            `json:"fileName,omitempty"`
	Headers      []string          `json:"headers"`
	Rows         [][]string        `json:"rows"`
	FieldMapping map[string]string `json:"fieldMapping,omitempty"` // csv header -> field name
}

func (*Step4ParticipantUpload) Step() int { return 4 }

func (p *Step4ParticipantUpload) Validate() error {
	var errs ValidationErrors
	oneOf(&errs, "uploadMethod", p.UploadMethod, true, "file", "existing_list", "need_to_collect")
	if p.UploadMethod != "need_to_collect" && len(p.Headers) == 0 {
		errs = append(errs, ValidationError{Field: "headers", Message: "missing required column headers"})
	}
	for i, row := range p.Rows {
		if len(row) > len(p.Headers) {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("rows[%d]", i),
				Message: fmt.Sprintf("row has %d cells but only %d headers", len(row), len(p.Headers)),
			})
		}
	}
	for header, target := range p.FieldMapping {
		if strings.TrimSpace(target) == "" {
			errs = append(errs, ValidationError{Field: "fieldMapping", Value: header, Message: "mapping target is empty"})
		}
	}
	return errs.orNil()
}

// Upload returns the step's rows as an Upload.
func (p *Step4ParticipantUpload) Upload() Upload {
	return Upload{FileName: p.FileName, Headers: p.Headers, Rows: p.Rows}
}

// ---------------------------------------------------------------------------
// Step 5: Form Customization

type FormField struct {
	FieldID   string    `json:"fieldId"`
	FieldName string    `json:"fieldName"`
	FieldType FieldType `json:"fieldType"`
	Required  bool      `json:"required"`
}

type CustomForm struct {
	FormID   string      `json:"formId"`
	FormName string      `json:"formName"`
	FormType string      `json:"formType"`
	Fields   []FormField `json:"fields"`
}

type Step5FormCustomization struct {
	Forms          []CustomForm `json:"forms"`
	SuccessMessage string       `json:"successMessage,omitempty"`
	Languages      []string     `json:"languages,omitempty"`
}

func (*Step5FormCustomization) Step() int { return 5 }

func (p *Step5FormCustomization) Validate() error {
	var errs ValidationErrors
	for i, f := range p.Forms {
		field := fmt.Sprintf("forms[%d]", i)
		requireText(&errs, field+".formName", f.FormName)
		oneOf(&errs, field+".formType", f.FormType, true,
			"check_in", "registration", "feedback", "assessment", "attendance", "custom")
		for j, ff := range f.Fields {
			requireText(&errs, fmt.Sprintf("%s.fields[%d].fieldName", field, j), ff.FieldName)
			if ff.FieldType != "" && !ff.FieldType.Valid() {
				errs = append(errs, ValidationError{
					Field:   fmt.Sprintf("%s.fields[%d].fieldType", field, j),
					Value:   string(ff.FieldType),
					Message: "unsupported field type",
				})
			}
		}
	}
	return errs.orNil()
}

// ---------------------------------------------------------------------------
// Step 6: QR Strategy

type Step6QRStrategy struct {
	Approach            string   `json:"approach"`
	PrintFormat         string   `json:"printFormat,omitempty"`
	IncludeName         bool     `json:"includeName"`
	IncludeID           bool     `json:"includeId"`
	IncludePhoto        bool     `json:"includePhoto"`
	DistributionMethods []string `json:"distributionMethod,omitempty"`
	BackupPlan          string   `json:"backupPlan,omitempty"`
}

func (*Step6QRStrategy) Step() int { return 6 }

func (p *Step6QRStrategy) Validate() error {
	var errs ValidationErrors
	oneOf(&errs, "approach", p.Approach, true, "individual", "single", "hybrid")
	oneOf(&errs, "printFormat", p.PrintFormat, false, "badge", "card", "sticker", "sheet")
	return errs.orNil()
}

// ---------------------------------------------------------------------------
// Step 7: Training & Workflows

type Step7Training struct {
	TrainingTopics       []string          `json:"trainingTopics,omitempty"`
	StaffRoles           []string          `json:"staffRoles"`
	TrainingFormat       string            `json:"trainingFormat,omitempty"`
	TrainingDuration     string            `json:"trainingDuration,omitempty"`
	SupportDocumentation bool              `json:"supportDocumentation"`
	VideoTutorials       bool              `json:"videoTutorials"`
	LiveTraining         bool              `json:"liveTraining"`
	Workflows            map[string]string `json:"workflows,omitempty"` // role -> workflow notes
}

func (*Step7Training) Step() int { return 7 }

func (p *Step7Training) Validate() error {
	var errs ValidationErrors
	if len(p.StaffRoles) == 0 {
		errs = append(errs, ValidationError{Field: "staffRoles", Message: "name at least one staff role"})
	}
	for i, r := range p.StaffRoles {
		requireText(&errs, fmt.Sprintf("staffRoles[%d]", i), r)
	}
	return errs.orNil()
}

// ---------------------------------------------------------------------------
// Step 8: Implementation Plan

type Step8Implementation struct {
	StartDate      string   `json:"startDate"`
	Timeline       string   `json:"timeline"`
	Milestones     []string `json:"milestones,omitempty"`
	SuccessMetrics []string `json:"successMetrics,omitempty"`
	Budget         string   `json:"budget,omitempty"`
	Resources      string   `json:"resources,omitempty"`
	Risks          string   `json:"risks,omitempty"`
	Notes          string   `json:"notes,omitempty"`
}

func (*Step8Implementation) Step() int { return 8 }

func (p *Step8Implementation) Validate() error {
	var errs ValidationErrors
	requireText(&errs, "startDate", p.StartDate)
	optionalDate(&errs, "startDate", p.StartDate)
	oneOf(&errs, "timeline", p.Timeline, true, "aggressive", "standard", "relaxed")
	return errs.orNil()
}
