package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/timmy/planscan/internal/domain"
)

var (
	// ErrJobNotFound is returned when no parse job matches a lookup.
	ErrJobNotFound = fmt.Errorf("parse job not found: %w", gorm.ErrRecordNotFound)
	// ErrInvalidTransition is returned when a job is not in a status that allows the update.
	ErrInvalidTransition = errors.New("invalid parse job status transition")
)

// ParseJobRepository persists parse jobs.
type ParseJobRepository struct {
	db *gorm.DB
}

// NewParseJobRepository creates a new ParseJobRepository.
// Parameters:
//   - db: GORM database handle used for queries.
//
// Returns:
//   - *ParseJobRepository: repository instance bound to db.
func NewParseJobRepository(db *gorm.DB) *ParseJobRepository {
	return &ParseJobRepository{db: db}
}

// Create inserts a new job in the uploaded state. An ID is assigned when missing.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - job: job to persist; updated in place.
//
// Returns:
//   - error: non-nil if the insert fails.
func (r *ParseJobRepository) Create(ctx context.Context, job *domain.ParseJob) error {
	if job.ID == "" {
		job.ID = uuid.New().String()
	}
	if job.Status == "" {
		job.Status = domain.JobStatusUploaded
	}
	return r.db.WithContext(ctx).Create(job).Error
}

// GetByID retrieves a job by its ID.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - id: job ID.
//
// Returns:
//   - *domain.ParseJob: job record if found.
//   - error: ErrJobNotFound when missing, otherwise non-nil if lookup fails.
func (r *ParseJobRepository) GetByID(ctx context.Context, id string) (*domain.ParseJob, error) {
	var job domain.ParseJob
	if err := r.db.WithContext(ctx).First(&job, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrJobNotFound
		}
		return nil, err
	}
	return &job, nil
}

// FindUploaded returns the most recent job of an upload that has not started yet.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - projectID: owning project.
//   - uploadID: upload the job was created for.
//
// Returns:
//   - *domain.ParseJob: the uploaded job.
//   - error: ErrJobNotFound when the upload has no job awaiting a parse.
func (r *ParseJobRepository) FindUploaded(ctx context.Context, projectID, uploadID string) (*domain.ParseJob, error) {
	var job domain.ParseJob
	err := r.db.WithContext(ctx).
		Where("project_id = ? AND upload_id = ? AND status = ?", projectID, uploadID, domain.JobStatusUploaded).
		Order("created_at DESC").
		First(&job).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrJobNotFound
		}
		return nil, err
	}
	return &job, nil
}

// MarkProcessing moves an uploaded job to processing and stamps StartedAt.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - job: job to transition; updated in place on success.
//
// Returns:
//   - error: ErrInvalidTransition when the stored job is no longer uploaded.
func (r *ParseJobRepository) MarkProcessing(ctx context.Context, job *domain.ParseJob) error {
	now := time.Now()
	if err := r.transition(ctx, job, domain.JobStatusProcessing, map[string]interface{}{
		"started_at": now,
	}); err != nil {
		return err
	}
	job.StartedAt = &now
	return nil
}

// MarkParsed stores the result and moves a processing job to parsed.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - job: job to transition; updated in place on success.
//   - result: final payload.
//
// Returns:
//   - error: non-nil if the job cannot move to parsed.
func (r *ParseJobRepository) MarkParsed(ctx context.Context, job *domain.ParseJob, result *domain.ParseResult) error {
	return r.finish(ctx, job, domain.JobStatusParsed, result, "", "")
}

// MarkFailed stores the fallback payload and error details and moves the job to failed.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - job: job to transition; updated in place on success.
//   - result: safe fallback payload.
//   - code: one of the domain.ErrorCode values.
//   - message: human readable failure reason.
//
// Returns:
//   - error: non-nil if the job cannot move to failed.
func (r *ParseJobRepository) MarkFailed(ctx context.Context, job *domain.ParseJob, result *domain.ParseResult, code, message string) error {
	return r.finish(ctx, job, domain.JobStatusFailed, result, code, message)
}

func (r *ParseJobRepository) finish(ctx context.Context, job *domain.ParseJob, status domain.JobStatus, result *domain.ParseResult, code, message string) error {
	now := time.Now()
	var elapsed int64
	if job.StartedAt != nil {
		elapsed = now.Sub(*job.StartedAt).Milliseconds()
	}
	if err := r.transition(ctx, job, status, map[string]interface{}{
		"completed_at":  now,
		"processing_ms": elapsed,
		"result":        result,
		"error_code":    code,
		"error_message": message,
	}); err != nil {
		return err
	}
	job.CompletedAt = &now
	job.ProcessingMs = elapsed
	job.Result = result
	job.ErrorCode = code
	job.ErrorMessage = message
	return nil
}

// transition applies updates only while the stored status still equals job.Status.
func (r *ParseJobRepository) transition(ctx context.Context, job *domain.ParseJob, next domain.JobStatus, updates map[string]interface{}) error {
	if !job.Status.CanTransition(next) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, job.Status, next)
	}
	updates["status"] = next
	res := r.db.WithContext(ctx).
		Model(&domain.ParseJob{}).
		Where("id = ? AND status = ?", job.ID, job.Status).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: job %s is no longer %s", ErrInvalidTransition, job.ID, job.Status)
	}
	job.Status = next
	return nil
}
