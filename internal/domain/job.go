package domain

import "time"

// JobStatus represents the status of a parse job.
// A job starts in JobStatusUploaded, moves to JobStatusProcessing, and ends in
// JobStatusParsed or JobStatusFailed.
type JobStatus string

const (
	JobStatusUploaded   JobStatus = "uploaded"
	JobStatusProcessing JobStatus = "processing"
	JobStatusParsed     JobStatus = "parsed"
	JobStatusFailed     JobStatus = "failed"
)

// IsTerminal reports whether no further transitions are allowed.
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusParsed || s == JobStatusFailed
}

// CanTransition reports whether the job may move from s to next.
func (s JobStatus) CanTransition(next JobStatus) bool {
	switch s {
	case JobStatusUploaded:
		return next == JobStatusProcessing || next == JobStatusFailed
	case JobStatusProcessing:
		return next == JobStatusParsed || next == JobStatusFailed
	default:
		return false
	}
}

// Error codes recorded on failed jobs.
const (
	ErrorCodeTimeout              = "timeout"
	ErrorCodeInvalidRequest       = "invalid_request"
	ErrorCodeStorageUnavailable   = "storage_unavailable"
	ErrorCodeInferenceUnavailable = "inference_unavailable"
	ErrorCodeJobStorage           = "job_storage_unavailable"
	ErrorCodeInternal             = "internal"
)

// ParseJob is one parse invocation over the files of an upload.
type ParseJob struct {
	ID          string      `gorm:"type:text;primaryKey" json:"id"`
	ProjectID   string      `gorm:"type:text;not null;index:idx_parse_jobs_project" json:"project_id"`
	EstimateID  string      `gorm:"type:text" json:"estimate_id,omitempty"`
	UploadID    string      `gorm:"type:text;index:idx_parse_jobs_upload" json:"upload_id,omitempty"`
	FileRefs    StringArray `gorm:"type:text" json:"file_refs"`
	Status      JobStatus   `gorm:"type:text;index:idx_parse_jobs_status;default:uploaded" json:"status"`
	StartedAt   *time.Time  `json:"started_at,omitempty"`
	CompletedAt *time.Time  `json:"completed_at,omitempty"`
	// ProcessingMs is the wall-clock time between StartedAt and CompletedAt.
	ProcessingMs int64        `gorm:"default:0" json:"processing_ms"`
	Result       *ParseResult `gorm:"type:text" json:"result,omitempty"`
	ErrorCode    string       `gorm:"type:text" json:"error_code,omitempty"`
	ErrorMessage string       `gorm:"type:text" json:"error_message,omitempty"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

// TableName returns the database table name for ParseJob.
func (ParseJob) TableName() string {
	return "parse_jobs"
}
