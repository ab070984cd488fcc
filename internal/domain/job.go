package domain

import (
	"strings"
	"time"
)

const (
	JobStatusQueued     = "queued"
	JobStatusProcessing = "processing"
	JobStatusSucceeded  = "succeeded"
	JobStatusFailed     = "failed"
)

// Job tracks an asynchronous icon-set generation requested through the API.
type Job struct {
	ID         string    `json:"id"`
	Status     string    `json:"status"`
	SourceKey  string    `json:"source_key"`
	WebhookURL string    `json:"webhook_url,omitempty"`
	ArchiveKey string    `json:"archive_key,omitempty"`
	Error      string    `json:"error,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// JobUpdate carries the mutable part of a Job. Empty fields are left as is.
type JobUpdate struct {
	Status     string
	ArchiveKey string
	Error      string
}

func (j Job) Finished() bool {
	switch strings.ToLower(j.Status) {
	case JobStatusSucceeded, JobStatusFailed:
		return true
	default:
		return false
	}
}
