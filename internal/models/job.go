package models

import (
	"encoding/json"
	"time"
)

type JobStatus string

const (
	JobPending JobStatus = "pending"
	JobRunning JobStatus = "running"
	JobDone    JobStatus = "done"
	JobDead    JobStatus = "dead"
)

type Job struct {
	ID          string          `json:"id"`
	Queue       string          `json:"queue"`
	Key         string          `json:"key"`
	Payload     json.RawMessage `json:"payload"`
	Status      JobStatus       `json:"status"`
	Attempts    int             `json:"attempts"`
	MaxAttempts int             `json:"max_attempts"`
	Backoff     time.Duration   `json:"backoff"`
	RunAt       time.Time       `json:"run_at"`
	LastError   string          `json:"last_error,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// LastAttempt reports whether the current (already counted) attempt is the final one.
func (j Job) LastAttempt() bool { return j.Attempts >= j.MaxAttempts }

type WebhookFailure struct {
	ID          string    `json:"id"`
	PartnerName string    `json:"partner_name"`
	EventID     string    `json:"event_id"`
	JobKey      string    `json:"job_key"`
	Attempts    int       `json:"attempts"`
	LastError   string    `json:"last_error"`
	CreatedAt   time.Time `json:"created_at"`
}
