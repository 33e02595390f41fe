package jobqueue

import (
	"encoding/json"
	"time"
)

type JobType string

const (
	JobTypeSendMail         JobType = "send_mail"
	JobTypeListingThumbnail JobType = "listing_thumbnail"
)

type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
	JobStatusRetrying   JobStatus = "retrying"
)

// Job is the stored form of one unit of background work.
type Job struct {
	ID          string                 `json:"id"`
	Type        JobType                `json:"type"`
	Status      JobStatus              `json:"status"`
	Payload     map[string]interface{} `json:"payload"`
	CreatedAt   time.Time              `json:"created_at"`
	UpdatedAt   time.Time              `json:"updated_at"`
	ProcessedAt *time.Time             `json:"processed_at,omitempty"`
	CompletedAt *time.Time             `json:"completed_at,omitempty"`
	ErrorMsg    string                 `json:"error_msg,omitempty"`
	RetryCount  int                    `json:"retry_count"`
	MaxRetries  int                    `json:"max_retries"`
}

// SendMailJobPayload is an HTML mail to deliver via SMTP.
type SendMailJobPayload struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

func (p SendMailJobPayload) ToMap() map[string]interface{} {
	return encodePayload(p)
}

// ListingThumbnailJobPayload points at an uploaded listing image.
type ListingThumbnailJobPayload struct {
	ImageID   uint   `json:"image_id"`
	ListingID uint   `json:"listing_id"`
	ObjectKey string `json:"object_key"`
	MaxWidth  int    `json:"max_width,omitempty"`
}

func (p ListingThumbnailJobPayload) ToMap() map[string]interface{} {
	return encodePayload(p)
}

// encodePayload stores v the way it comes back out of Redis, so numbers
// are float64 from the start.
func encodePayload(v interface{}) map[string]interface{} {
	data, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	var m map[string]interface{}
	if err := json.Unmarshal(data, &m); err != nil {
		return nil
	}
	return m
}

func decodePayload[T any](data map[string]interface{}) (*T, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	var payload T
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}

// IsRetryable reports whether a failed job has attempts left.
func (j *Job) IsRetryable() bool {
	return j.Status == JobStatusFailed && j.RetryCount < j.MaxRetries
}

func (j *Job) start(now time.Time) {
	j.Status = JobStatusProcessing
	j.UpdatedAt = now
	j.ProcessedAt = &now
}

func (j *Job) complete(now time.Time) {
	j.Status = JobStatusCompleted
	j.UpdatedAt = now
	j.CompletedAt = &now
	j.ErrorMsg = ""
}

// fail records the error and counts the attempt.
func (j *Job) fail(now time.Time, msg string) {
	j.Status = JobStatusFailed
	j.UpdatedAt = now
	j.ErrorMsg = msg
	j.RetryCount++
}

func (j *Job) retry(now time.Time) {
	j.Status = JobStatusRetrying
	j.UpdatedAt = now
}
