package core

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWizardNavigationClamps(t *testing.T) {
	s := NewWizardSession("u1", time.Now())
	require.Equal(t, FirstStep, s.CurrentStep)

	s.PreviousStep()
	assert.Equal(t, FirstStep, s.CurrentStep, "PreviousStep at the first step")

	for i := 0; i < 20; i++ {
		s.NextStep()
	}
	assert.Equal(t, LastStep, s.CurrentStep, "NextStep past the end")

	tests := []struct{ in, want int }{{0, 1}, {-3, 1}, {5, 5}, {9, 8}, {100, 8}}
	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.in), func(t *testing.T) {
			s.GoToStep(tt.in)
			assert.Equal(t, tt.want, s.CurrentStep)
		})
	}

	assert.Empty(t, s.CompletedSteps, "navigation never completes a step")
}

func TestMarkCompletedKeepsSortedSet(t *testing.T) {
	s := NewWizardSession("u1", time.Now())
	for _, n := range []int{5, 2, 8, 2, 0, 9, 1, 5} {
		s.MarkCompleted(n)
	}
	assert.Equal(t, []int{1, 2, 5, 8}, s.CompletedSteps)
	assert.True(t, s.IsStepCompleted(5))
	assert.False(t, s.IsStepCompleted(3))
	assert.False(t, s.AllStepsCompleted())

	for n := FirstStep; n <= LastStep; n++ {
		s.MarkCompleted(n)
	}
	assert.True(t, s.AllStepsCompleted())
}

func TestWizardResetAndClone(t *testing.T) {
	created := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	s := NewWizardSession("u1", created)
	s.SetPayload(2, json.RawMessage(`{"a":1}`))
	s.MarkCompleted(2)
	s.GoToStep(6)
	s.DatasetID = "d1"

	c := s.Clone()
	c.Steps[1][2] = 'X'
	c.CompletedSteps[0] = 7
	require.JSONEq(t, `{"a":1}`, string(s.Payload(2)), "Clone shares payload memory")
	require.Equal(t, []int{2}, s.CompletedSteps, "Clone shares completed steps")

	s.Reset()
	assert.Equal(t, FirstStep, s.CurrentStep)
	assert.Empty(t, s.CompletedSteps)
	assert.Nil(t, s.Payload(2))
	assert.Empty(t, s.DatasetID)
	assert.Equal(t, "u1", s.ID)
	assert.True(t, s.CreatedAt.Equal(created))
}

func TestPayloadOutOfRange(t *testing.T) {
	s := NewWizardSession("u1", time.Now())
	s.SetPayload(0, json.RawMessage(`{}`))
	s.SetPayload(9, json.RawMessage(`{}`))
	assert.Nil(t, s.Payload(0))
	assert.Nil(t, s.Payload(9))
}

func TestNormalizeCompleted(t *testing.T) {
	assert.Equal(t, []int{1, 3, 8}, NormalizeCompleted([]int{3, 3, 12, 1, -1, 8}))
}

func TestStepName(t *testing.T) {
	tests := []struct {
		step int
		want string
	}{
		{1, "Platform Discovery"},
		{4, "Participant Upload"},
		{0, ""},
		{9, ""},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.step), func(t *testing.T) {
			assert.Equal(t, tt.want, StepName(tt.step))
		})
	}
}
