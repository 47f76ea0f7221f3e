package domain

import (
	"time"

	"github.com/google/uuid"
)

// RunStatus tracks a validation run's lifecycle.
type RunStatus string

const (
	RunRunning     RunStatus = "running"
	RunCompleted   RunStatus = "completed"
	RunInterrupted RunStatus = "interrupted"
)

// ValidationRun identifies one orchestrated pass over the lab.
type ValidationRun struct {
	ID         string    `json:"id"`
	Status     RunStatus `json:"status"`
	HostCount  int       `json:"host_count"`
	Completed  int       `json:"completed"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at,omitempty"`
}

// NewValidationRun creates a running run with a fresh ID.
func NewValidationRun(hostCount int) *ValidationRun {
	return &ValidationRun{
		ID:        uuid.NewString(),
		Status:    RunRunning,
		HostCount: hostCount,
		StartedAt: time.Now().UTC(),
	}
}
