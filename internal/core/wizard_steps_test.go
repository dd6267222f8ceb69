package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeStepPayload(t *testing.T) {
	tests := []struct {
		name    string
		step    int
		raw     string
		wantErr string
	}{
		{
			name: "valid platform",
			step: 1,
			raw:  `{"platformName":"Airtable","platformType":"airtable","capabilities":{"formBuilder":true}}`,
		},
		{
			name:    "unknown key from another step",
			step:    1,
			raw:     `{"platformName":"Airtable","platformType":"airtable","standardFields":["email"]}`,
			wantErr: "invalid step payload",
		},
		{
			name:    "step out of range",
			step:    9,
			raw:     `{}`,
			wantErr: "invalid wizard step",
		},
		{
			name:    "malformed json",
			step:    6,
			raw:     `{"approach":`,
			wantErr: "invalid step payload",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := DecodeStepPayload(tt.step, []byte(tt.raw))
			if tt.wantErr == "" {
				require.NoError(t, err)
				assert.Equal(t, tt.step, p.Step())
				return
			}
			require.ErrorContains(t, err, tt.wantErr)
			assert.True(t, IsValidation(err), "decode errors are validation errors")
		})
	}
}

func TestStepValidation(t *testing.T) {
	tests := []struct {
		name      string
		payload   StepPayload
		wantField string // empty means valid
	}{
		{"platform missing name", &Step1Platform{PlatformType: "custom"}, "platformName"},
		{"platform bad type", &Step1Platform{PlatformName: "x", PlatformType: "notion"}, "platformType"},
		{
			"program end before start",
			&Step2Program{BasicInfo: ProgramInfo{ProgramName: "Yoga", StartDate: "2025-03-01", EndDate: "2025-01-01"}},
			"basicInfo.endDate",
		},
		{
			"program duplicate session",
			&Step2Program{
				BasicInfo: ProgramInfo{ProgramName: "Yoga"},
				SessionSchedule: SessionSchedule{Sessions: []ScheduledSession{
					{SessionID: "yoga-1", SessionName: "Mon"},
					{SessionID: "yoga-1", SessionName: "Wed"},
				}},
			},
			"sessionSchedule.sessions[1].sessionId",
		},
		{"data requirements empty", &Step3DataRequirements{}, "standardFields"},
		{
			"data requirements bad custom type",
			&Step3DataRequirements{CustomFields: []CustomField{{FieldName: "Size", FieldType: "shoe"}}},
			"customFields[0].fieldType",
		},
		{"upload without headers", &Step4ParticipantUpload{UploadMethod: "file"}, "headers"},
		{"upload need to collect", &Step4ParticipantUpload{UploadMethod: "need_to_collect"}, ""},
		{
			"upload ragged row",
			&Step4ParticipantUpload{UploadMethod: "file", Headers: []string{"Email"}, Rows: [][]string{{"a@b.org", "extra"}}},
			"rows[0]",
		},
		{"forms empty is fine", &Step5FormCustomization{}, ""},
		{"qr missing approach", &Step6QRStrategy{}, "approach"},
		{"training no roles", &Step7Training{}, "staffRoles"},
		{"implementation bad date", &Step8Implementation{StartDate: "soon", Timeline: "standard"}, "startDate"},
		{"implementation ok", &Step8Implementation{StartDate: "2025-02-01", Timeline: "relaxed"}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.payload.Validate()
			if tt.wantField == "" {
				require.NoError(t, err)
				return
			}
			var errs ValidationErrors
			require.ErrorAs(t, err, &errs)
			fields := make([]string, 0, len(errs))
			for _, e := range errs {
				fields = append(fields, e.Field)
			}
			assert.Contains(t, fields, tt.wantField)
		})
	}
}
