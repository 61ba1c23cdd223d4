package chat

import "time"

type JobStatus string

const (
	JobQueued    JobStatus = "queued"
	JobRunning   JobStatus = "running"
	JobSucceeded JobStatus = "succeeded"
	JobFailed    JobStatus = "failed"
)

// Job is one chat turn completed asynchronously by a worker.
type Job struct {
	ID string `gorm:"primaryKey;size:26" json:"job_id"` // ULID length

	SessionID string `gorm:"size:26;index;index:uniq_job_idempo,unique,priority:1;not null" json:"session_id"`

	Prompt string `gorm:"type:text;not null" json:"prompt"`

	// unique per session, like the message it answers
	IdempotencyKey *string `gorm:"type:varchar(128);index:uniq_job_idempo,unique,priority:2" json:"idempotency_key,omitempty"`

	Status JobStatus `gorm:"type:varchar(16);index;not null" json:"status"`

	// Filled when succeeded
	ResultMessageID *string `gorm:"size:26" json:"result_message_id,omitempty"`

	// Filled when failed
	Error *string `gorm:"type:text" json:"error,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
