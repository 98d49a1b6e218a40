package entity

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateTransition(t *testing.T) {
	tests := []struct {
		name    string
		from    JobStatus
		to      JobStatus
		wantErr bool
	}{
		{"pending to processing", StatusPending, StatusProcessing, false},
		{"failed to processing", StatusFailed, StatusProcessing, false},
		{"processing to duplicate", StatusProcessing, StatusDuplicate, false},
		{"processing to pending_review", StatusProcessing, StatusPendingReview, false},
		{"processing to failed", StatusProcessing, StatusFailed, false},
		{"failed to pending", StatusFailed, StatusPending, false},
		{"duplicate to pending", StatusDuplicate, StatusPending, false},
		{"pending_review to pending", StatusPendingReview, StatusPending, false},

		{"processing to processing", StatusProcessing, StatusProcessing, true},
		{"pending_review to processing", StatusPendingReview, StatusProcessing, true},
		{"duplicate to processing", StatusDuplicate, StatusProcessing, true},
		{"pending to failed", StatusPending, StatusFailed, true},
		{"processing to pending", StatusProcessing, StatusPending, true},
		{"unknown source", JobStatus("success"), StatusProcessing, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateTransition(tt.from, tt.to)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestConflictFor(t *testing.T) {
	assert.Nil(t, ConflictFor("j1", StatusPending))
	assert.Nil(t, ConflictFor("j1", StatusFailed))

	c := ConflictFor("j1", StatusProcessing)
	if assert.NotNil(t, c) {
		assert.Equal(t, ConflictInFlight, c.Reason)
	}

	for _, s := range []JobStatus{StatusDuplicate, StatusPendingReview} {
		c := ConflictFor("j1", s)
		if assert.NotNil(t, c) {
			assert.Equal(t, ConflictAlreadyDone, c.Reason)
		}
	}
}

func TestParseJobStatus(t *testing.T) {
	st, err := ParseJobStatus("pending_review")
	assert.NoError(t, err)
	assert.Equal(t, StatusPendingReview, st)

	_, err = ParseJobStatus("success")
	assert.Error(t, err)
}
