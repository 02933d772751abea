package types

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTaskStatusActive(t *testing.T) {
	tests := []struct {
		status TaskStatus
		want   bool
	}{
		{TaskStatusTodo, true},
		{TaskStatusInProgress, true},
		{TaskStatusReview, true},
		{TaskStatus(""), true},
		{TaskStatusDone, false},
		{TaskStatusClosed, false},
		{TaskStatusCancelled, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.status.Active())
		})
	}
}

func TestTaskHasWindow(t *testing.T) {
	now := time.Now()

	assert.True(t, (&Task{StartDate: &now, Deadline: &now}).HasWindow())
	assert.False(t, (&Task{StartDate: &now}).HasWindow())
	assert.False(t, (&Task{Deadline: &now}).HasWindow())
	assert.False(t, (&Task{}).HasWindow())
}

func TestSeverityCritical(t *testing.T) {
	assert.True(t, SeverityHigh.Critical())
	assert.True(t, SeverityCritical.Critical())
	assert.False(t, SeverityMedium.Critical())
	assert.False(t, SeverityLow.Critical())
}
