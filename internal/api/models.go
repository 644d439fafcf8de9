package api

import (
	"encoding/json"
	"time"

	"etl-records/internal/dispatch"
)

// JobRequest submits one batch. Exactly one of Input (file path or URL
// readable by the server) and Records (inline JSON array) must be set.
type JobRequest struct {
	Input   string          `json:"input,omitempty"`
	Records json.RawMessage `json:"records,omitempty"`
}

// JobResponse is returned after a successful job creation.
type JobResponse struct {
	JobID string `json:"job_id"`
}

// JobStatus represents the runtime state of a launched job.
type JobStatus struct {
	JobID      string            `json:"job_id"`
	Status     string            `json:"status"` // queued | running | finished | error
	Error      string            `json:"error,omitempty"`
	Summary    *dispatch.Summary `json:"summary,omitempty"`
	StartedAt  time.Time         `json:"started_at,omitempty"`
	FinishedAt *time.Time        `json:"finished_at,omitempty"`
}
