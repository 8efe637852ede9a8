package models

import "time"

// Run statuses.
const (
	RunQueued    = "queued"
	RunRunning   = "running"
	RunCompleted = "completed"
	RunFailed    = "failed"
)

// RunRequest is the payload for POST /api/v1/runs.
type RunRequest struct {
	// TargetWebsite overrides the configured target for this run.
	TargetWebsite string `json:"target_website,omitempty" binding:"omitempty,url"`

	// WebhookURL overrides the configured webhook for this run.
	WebhookURL string `json:"webhook_url,omitempty" binding:"omitempty,url"`
}

// RunResponse is the immediate response for POST /api/v1/runs.
type RunResponse struct {
	ID     string       `json:"id"`
	Status string       `json:"status"`
	Error  *ErrorDetail `json:"error,omitempty"`
}

// RunStatusResponse is the response for GET /api/v1/runs/:id.
type RunStatusResponse struct {
	ID         string       `json:"id"`
	Status     string       `json:"status"`
	Target     string       `json:"target_website"`
	ExitCode   *int         `json:"exit_code,omitempty"`
	StartedAt  time.Time    `json:"started_at"`
	FinishedAt *time.Time   `json:"finished_at,omitempty"`
	Report     *Report      `json:"report,omitempty"`
	Files      []string     `json:"files,omitempty"`
	Error      *ErrorDetail `json:"error,omitempty"`
}

// Run tracks one harness execution started through the API.
type Run struct {
	ID         string
	Status     string
	Target     string
	WebhookURL string
	StartedAt  time.Time
	FinishedAt time.Time
	Report     *Report
	Files      []string
	Err        error
}

// HealthResponse is the response for GET /api/v1/health.
type HealthResponse struct {
	Status     string `json:"status"` // "healthy" or "busy"
	Uptime     string `json:"uptime"`
	ActiveRuns int    `json:"active_runs"`
	MaxRuns    int    `json:"max_runs"`
	StoredRuns int    `json:"stored_runs"`
	Version    string `json:"version"`
}
