package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/timmy/planscan/internal/document"
	"github.com/timmy/planscan/internal/domain"
	"github.com/timmy/planscan/internal/logger"
	"github.com/timmy/planscan/internal/pipeline"
	"github.com/timmy/planscan/internal/repository"
)

var (
	// ErrInvalidRequest marks requests rejected before the pipeline starts.
	ErrInvalidRequest = errors.New("invalid parse request")
	// ErrStorageUnavailable marks runs where no file could be fetched because storage was unreachable.
	ErrStorageUnavailable = errors.New("file storage unavailable")
	// ErrJobStorageUnavailable marks runs whose job record could not be read or written.
	ErrJobStorageUnavailable = errors.New("job storage unavailable")
	// ErrParseTimeout marks runs that exceeded the job budget.
	ErrParseTimeout = errors.New("parse timed out")
	// ErrParseInternal marks runs aborted by an unexpected failure.
	ErrParseInternal = errors.New("parse failed")
)

// JobStore is the persistence the parse service needs.
type JobStore interface {
	Create(ctx context.Context, job *domain.ParseJob) error
	GetByID(ctx context.Context, id string) (*domain.ParseJob, error)
	FindUploaded(ctx context.Context, projectID, uploadID string) (*domain.ParseJob, error)
	MarkProcessing(ctx context.Context, job *domain.ParseJob) error
	MarkParsed(ctx context.Context, job *domain.ParseJob, result *domain.ParseResult) error
	MarkFailed(ctx context.Context, job *domain.ParseJob, result *domain.ParseResult, code, message string) error
}

// Runner executes the extraction pipeline over file references.
type Runner interface {
	Run(ctx context.Context, refs []string) (*pipeline.Outcome, error)
}

// ParseRequest identifies the files to parse and the estimate they belong to.
type ParseRequest struct {
	ProjectID  string   `json:"project_id"`
	EstimateID string   `json:"estimate_id,omitempty"`
	UploadID   string   `json:"upload_id,omitempty"`
	FileRefs   []string `json:"file_refs"`
}

// ParseService tracks parse jobs and assembles their results.
type ParseService struct {
	jobs    JobStore
	runner  Runner
	timeout time.Duration
}

// NewParseService creates a new parse service.
// Parameters:
//   - jobs: job store used to track status and results.
//   - runner: pipeline that extracts rooms and line items.
//   - timeout: wall-clock budget of one parse; zero disables it.
//
// Returns:
//   - *ParseService: initialized service.
func NewParseService(jobs JobStore, runner Runner, timeout time.Duration) *ParseService {
	return &ParseService{jobs: jobs, runner: runner, timeout: timeout}
}

// Parse runs one parse to completion. The returned job is never nil and always
// carries a well-formed result; when the job failed the error wraps one of the
// package's sentinel errors and job.ErrorCode names the failure.
// Parameters:
//   - ctx: request context.
//   - req: project, optional estimate and upload, and file references.
//
// Returns:
//   - *domain.ParseJob: the job in its terminal state.
//   - error: non-nil when the job failed or could not be recorded.
func (s *ParseService) Parse(ctx context.Context, req ParseRequest) (*domain.ParseJob, error) {
	ctx = logger.SetComponent(ctx, "parse")
	req.ProjectID = strings.TrimSpace(req.ProjectID)
	req.FileRefs = cleanRefs(req.FileRefs)

	job, err := s.openJob(ctx, req)
	if err != nil {
		return s.unrecorded(ctx, jobFromRequest(req), err)
	}
	ctx = logger.SetJobID(ctx, job.ID)

	if msg := validate(job); msg != "" {
		return s.fail(ctx, job, domain.EmptyResult(), domain.ErrorCodeInvalidRequest, fmt.Errorf("%w: %s", ErrInvalidRequest, msg))
	}

	if err := s.jobs.MarkProcessing(ctx, job); err != nil {
		return s.unrecorded(ctx, job, err)
	}
	logger.FromContext(ctx).WithField("files", len(job.FileRefs)).Info("Parse started")

	return s.run(ctx, job)
}

// GetJob returns a stored job.
// Parameters:
//   - ctx: request context.
//   - id: job ID.
//
// Returns:
//   - *domain.ParseJob: the stored job.
//   - error: repository.ErrJobNotFound when missing.
func (s *ParseService) GetJob(ctx context.Context, id string) (*domain.ParseJob, error) {
	return s.jobs.GetByID(ctx, id)
}

// openJob reuses the upload's waiting job when there is one, otherwise creates a job.
func (s *ParseService) openJob(ctx context.Context, req ParseRequest) (*domain.ParseJob, error) {
	if req.UploadID != "" && req.ProjectID != "" {
		job, err := s.jobs.FindUploaded(ctx, req.ProjectID, req.UploadID)
		switch {
		case err == nil:
			if len(req.FileRefs) > 0 {
				job.FileRefs = domain.StringArray(req.FileRefs)
			}
			if req.EstimateID != "" {
				job.EstimateID = req.EstimateID
			}
			logger.FromContext(ctx).WithField(logger.FieldJobID, job.ID).Debug("Reusing uploaded job")
			return job, nil
		case !errors.Is(err, repository.ErrJobNotFound):
			return nil, err
		}
	}

	job := jobFromRequest(req)
	if err := s.jobs.Create(ctx, job); err != nil {
		return nil, err
	}
	return job, nil
}

// run executes the pipeline under the job budget and records the terminal state.
func (s *ParseService) run(ctx context.Context, job *domain.ParseJob) (out *domain.ParseJob, outErr error) {
	defer func() {
		if r := recover(); r != nil {
			logger.FromContext(ctx).Errorf("Parse panicked: %v", r)
			out, outErr = s.fail(ctx, job, domain.EmptyResult(), domain.ErrorCodeInternal, fmt.Errorf("%w: %v", ErrParseInternal, r))
		}
	}()

	runCtx, cancel := ctx, context.CancelFunc(func() {})
	if s.timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, s.timeout)
	}
	defer cancel()

	outcome, err := s.runner.Run(runCtx, []string(job.FileRefs))
	if err != nil {
		switch {
		case errors.Is(err, context.DeadlineExceeded):
			return s.fail(ctx, job, domain.EmptyResult(), domain.ErrorCodeTimeout, fmt.Errorf("%w after %s", ErrParseTimeout, s.timeout))
		default:
			return s.fail(ctx, job, domain.EmptyResult(), domain.ErrorCodeInternal, fmt.Errorf("%w: %v", ErrParseInternal, err))
		}
	}

	if code, cause := fatalCondition(outcome.Stats, len(job.FileRefs)); code != "" {
		fallback := domain.EmptyResult()
		fallback.Warnings = append(fallback.Warnings, outcome.Result.Warnings...)
		return s.fail(ctx, job, fallback, code, cause)
	}

	if err := s.jobs.MarkParsed(context.WithoutCancel(ctx), job, outcome.Result); err != nil {
		job.Result = outcome.Result
		return s.unrecorded(ctx, job, err)
	}
	logger.With(logger.Fields{
		logger.FieldCount: outcome.Result.Summary.TotalRooms,
		"line_items":      len(outcome.Result.LineItems),
		"warnings":        len(outcome.Result.Warnings),
		"vision_calls":    outcome.Stats.VisionInvocations,
		"backend_calls":   outcome.Stats.BackendCalls,
		"files_skipped":   outcome.Stats.FilesSkipped,
		"files_processed": outcome.Stats.FilesProcessed,
	}).WithDuration(job.ProcessingMs).WithStatus(string(job.Status)).Info(ctx, "Parse finished")
	return job, nil
}

// fatalCondition decides whether a finished run must be reported as failed.
// Partial degradation never fails a job; only a run that could read nothing does.
func fatalCondition(stats pipeline.Stats, refs int) (string, error) {
	switch {
	case stats.FilesProcessed == 0 && stats.FilesUnavailable > 0:
		return domain.ErrorCodeStorageUnavailable, fmt.Errorf("%w: %d of %d files could not be fetched", ErrStorageUnavailable, stats.FilesUnavailable, refs)
	case stats.FilesProcessed == 0 && refs > 0:
		if stats.FilesRejected == refs {
			return domain.ErrorCodeInvalidRequest, fmt.Errorf("%w: no supported files (expected PDF or image)", ErrInvalidRequest)
		}
		return domain.ErrorCodeInvalidRequest, fmt.Errorf("%w: none of the file references could be read", ErrInvalidRequest)
	case stats.BackendCalls > 0 && stats.BackendUnavailable == stats.BackendCalls:
		return domain.ErrorCodeInferenceUnavailable, fmt.Errorf("%w: all %d calls failed", ErrBackendUnavailable, stats.BackendCalls)
	}
	return "", nil
}

// fail records a failed terminal state. The caller still receives the fallback payload.
func (s *ParseService) fail(ctx context.Context, job *domain.ParseJob, result *domain.ParseResult, code string, cause error) (*domain.ParseJob, error) {
	logger.FromContext(ctx).WithError(cause).WithField("error_code", code).Error("Parse failed")
	if err := s.jobs.MarkFailed(context.WithoutCancel(ctx), job, result, code, cause.Error()); err != nil {
		logger.FromContext(ctx).WithError(err).Error("Failed to record failed parse job")
		job.Status = domain.JobStatusFailed
		job.Result = result
		job.ErrorCode = code
		job.ErrorMessage = cause.Error()
		return job, errors.Join(cause, fmt.Errorf("%w: %v", ErrJobStorageUnavailable, err))
	}
	return job, cause
}

// unrecorded marks job failed in memory when its record could not be written.
func (s *ParseService) unrecorded(ctx context.Context, job *domain.ParseJob, cause error) (*domain.ParseJob, error) {
	logger.FromContext(ctx).WithError(cause).Error("Job storage unavailable")
	if job.Result == nil {
		job.Result = domain.EmptyResult()
	}
	job.Status = domain.JobStatusFailed
	job.ErrorCode = domain.ErrorCodeJobStorage
	job.ErrorMessage = cause.Error()
	return job, fmt.Errorf("%w: %v", ErrJobStorageUnavailable, cause)
}

func jobFromRequest(req ParseRequest) *domain.ParseJob {
	return &domain.ParseJob{
		ProjectID:  req.ProjectID,
		EstimateID: req.EstimateID,
		UploadID:   req.UploadID,
		FileRefs:   domain.StringArray(req.FileRefs),
		Status:     domain.JobStatusUploaded,
	}
}

// validate returns a reason when the job cannot be parsed at all.
func validate(job *domain.ParseJob) string {
	if job.ProjectID == "" {
		return "project_id is required"
	}
	if len(job.FileRefs) == 0 {
		return "at least one file reference is required"
	}
	for _, ref := range job.FileRefs {
		if kind, decided := document.ExtensionKind(ref); !decided || kind != "" {
			return ""
		}
	}
	return "no supported files (expected PDF, JPG, PNG, GIF or WEBP)"
}

func cleanRefs(refs []string) []string {
	out := make([]string, 0, len(refs))
	seen := make(map[string]bool, len(refs))
	for _, ref := range refs {
		ref = strings.TrimSpace(ref)
		if ref == "" || seen[ref] {
			continue
		}
		seen[ref] = true
		out = append(out, ref)
	}
	return out
}
