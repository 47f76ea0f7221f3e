package domain

import "time"

// StepStatus is the outcome of one validation step.
type StepStatus string

const (
	StepPassed   StepStatus = "passed"
	StepFailed   StepStatus = "failed"
	StepDegraded StepStatus = "degraded" // fallback sentinel substituted, caller decides
	StepSkipped  StepStatus = "skipped"
)

// StepResult records one pipeline step against one host, including the
// resilience diagnostics callers rely on for alerting.
type StepResult struct {
	Step         string     `json:"step"`
	Status       StepStatus `json:"status"`
	Attempts     int        `json:"attempts"`
	CircuitState string     `json:"circuit_state"`
	Detail       string     `json:"detail,omitempty"`
	Error        string     `json:"error,omitempty"`
}

// HostResult aggregates a host's full pipeline run. One writer per
// host; the orchestrator merges results by hostname key.
type HostResult struct {
	Host       string       `json:"host"`
	Status     StepStatus   `json:"status"`
	Steps      []StepResult `json:"steps"`
	StartedAt  time.Time    `json:"started_at"`
	FinishedAt time.Time    `json:"finished_at"`
}

// Aggregate derives the host status from its steps: any failed step
// fails the host, any degraded step degrades it, otherwise passed.
func (r *HostResult) Aggregate() StepStatus {
	status := StepPassed
	for _, s := range r.Steps {
		switch s.Status {
		case StepFailed:
			return StepFailed
		case StepDegraded:
			status = StepDegraded
		}
	}
	return status
}
