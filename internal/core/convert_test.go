package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToPgNumeric(t *testing.T) {
	tests := []struct {
		input     string
		wantValid bool
	}{
		{"123", true},
		{"-4.5", true},
		{".99", true},
		{"$1,234.56", true},
		{"(12.50)", true},
		{"", false},
		{"12abc", false},
		{"555-123-4567", false},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.wantValid, ToPgNumeric(tt.input).Valid)
		})
	}
}

func TestToPgDate(t *testing.T) {
	tests := []struct {
		input string
		want  time.Time
		valid bool
	}{
		{"2025-01-15", time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC), true},
		{"1/15/2025", time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC), true},
		{"January 15, 2025", time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC), true},
		{"2025-01-01T09:00:00Z", time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC), true},
		{"not a date", time.Time{}, false},
		{"", time.Time{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := ToPgDate(tt.input)
			require.Equal(t, tt.valid, got.Valid)
			if tt.valid {
				assert.True(t, got.Time.Equal(tt.want), "got %v, want %v", got.Time, tt.want)
			}
		})
	}
}

func TestToPgDate_TwoDigitYearPivot(t *testing.T) {
	far := (time.Now().Year() + TwoDigitYearPivot + 5) % 100
	got := ToPgDate(time.Date(2000+far, 3, 4, 0, 0, 0, 0, time.UTC).Format("1/2/06"))
	require.True(t, got.Valid, "two-digit year should parse")
	assert.LessOrEqual(t, got.Time.Year(), time.Now().Year()+TwoDigitYearPivot, "year should move to the previous century")
}

func TestToPgBool(t *testing.T) {
	tests := []struct {
		input string
		valid bool
		want  bool
	}{
		{"yes", true, true},
		{"Y", true, true},
		{"true", true, true},
		{"1", true, true},
		{"T", true, true},
		{"no", true, false},
		{"N", true, false},
		{"false", true, false},
		{"0", true, false},
		{"maybe", false, false},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			b := ToPgBool(tt.input)
			assert.Equal(t, tt.valid, b.Valid)
			assert.Equal(t, tt.want, b.Bool)
		})
	}
}

func TestNormalizeFieldName(t *testing.T) {
	tests := map[string]string{
		"First Name":   "first_name",
		"  Email ":     "email",
		"T-Shirt Size": "t-shirt_size",
		"":             "",
	}
	for in, want := range tests {
		assert.Equal(t, want, NormalizeFieldName(in), "NormalizeFieldName(%q)", in)
	}
}

func TestCleanCell(t *testing.T) {
	tests := map[string]string{
		`="00123"`: "00123",
		"=SUM":     "SUM",
		` "Jane" `: "Jane",
		"plain":    "plain",
	}
	for in, want := range tests {
		assert.Equal(t, want, CleanCell(in), "CleanCell(%q)", in)
	}
}
