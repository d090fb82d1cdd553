package domain

import "time"

type JobStatus string

const (
	JobPending   JobStatus = "pending"
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
)

// Terminal reports whether no further transition is possible.
func (s JobStatus) Terminal() bool { return s == JobCompleted || s == JobFailed }

// IndexStats is the outcome of one area index run.
type IndexStats struct {
	Total   int `json:"total"`
	Created int `json:"created"`
	Merged  int `json:"merged"`
}

// Job is a snapshot of one asynchronous area index run.
type Job struct {
	ID         string      `json:"id"`
	Status     JobStatus   `json:"status"`
	Location   string      `json:"location"`
	Category   string      `json:"category,omitempty"`
	CreatedAt  time.Time   `json:"created_at"`
	StartedAt  *time.Time  `json:"started_at,omitempty"`
	FinishedAt *time.Time  `json:"finished_at,omitempty"`
	Result     *IndexStats `json:"result,omitempty"`
	Error      string      `json:"error,omitempty"`
}
