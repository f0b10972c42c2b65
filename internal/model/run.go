package model

import "time"

// RunStatus tracks a scoring run's lifecycle.
type RunStatus string

const (
	RunStatusRunning  RunStatus = "running"
	RunStatusComplete RunStatus = "complete"
	RunStatusFailed   RunStatus = "failed"
)

// Run is one batch scoring run over a set of regions.
type Run struct {
	ID         string          `json:"id"`
	Regions    []string        `json:"regions"`
	Status     RunStatus       `json:"status"`
	Error      string          `json:"error,omitempty"`
	Results    []ScoringResult `json:"results,omitempty"`
	Skipped    []SkippedRegion `json:"skipped,omitempty"`
	StartedAt  time.Time       `json:"started_at"`
	FinishedAt *time.Time      `json:"finished_at,omitempty"`
}
