package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/timmy/planscan/internal/domain"
	"github.com/timmy/planscan/internal/pipeline"
	"github.com/timmy/planscan/internal/repository"
)

// memoryJobs is an in-memory JobStore that enforces the status machine.
type memoryJobs struct {
	mu      sync.Mutex
	jobs    map[string]domain.ParseJob
	next    int
	failAll error
}

func newMemoryJobs() *memoryJobs {
	return &memoryJobs{jobs: map[string]domain.ParseJob{}}
}

func (m *memoryJobs) Create(_ context.Context, job *domain.ParseJob) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAll != nil {
		return m.failAll
	}
	m.next++
	job.ID = fmt.Sprintf("job-%d", m.next)
	m.jobs[job.ID] = *job
	return nil
}

func (m *memoryJobs) GetByID(_ context.Context, id string) (*domain.ParseJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok {
		return nil, repository.ErrJobNotFound
	}
	return &job, nil
}

func (m *memoryJobs) FindUploaded(_ context.Context, projectID, uploadID string) (*domain.ParseJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAll != nil {
		return nil, m.failAll
	}
	for _, job := range m.jobs {
		if job.ProjectID == projectID && job.UploadID == uploadID && job.Status == domain.JobStatusUploaded {
			return &job, nil
		}
	}
	return nil, repository.ErrJobNotFound
}

func (m *memoryJobs) MarkProcessing(_ context.Context, job *domain.ParseJob) error {
	now := time.Now()
	job.StartedAt = &now
	return m.move(job, domain.JobStatusProcessing)
}

func (m *memoryJobs) MarkParsed(_ context.Context, job *domain.ParseJob, result *domain.ParseResult) error {
	job.Result = result
	return m.move(job, domain.JobStatusParsed)
}

func (m *memoryJobs) MarkFailed(_ context.Context, job *domain.ParseJob, result *domain.ParseResult, code, message string) error {
	job.Result, job.ErrorCode, job.ErrorMessage = result, code, message
	return m.move(job, domain.JobStatusFailed)
}

func (m *memoryJobs) move(job *domain.ParseJob, next domain.JobStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.jobs[job.ID]
	if !ok {
		return repository.ErrJobNotFound
	}
	if !stored.Status.CanTransition(next) {
		return fmt.Errorf("%w: %s -> %s", repository.ErrInvalidTransition, stored.Status, next)
	}
	job.Status = next
	m.jobs[job.ID] = *job
	return nil
}

func (m *memoryJobs) status(id string) domain.JobStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.jobs[id].Status
}

type runnerFunc func(ctx context.Context, refs []string) (*pipeline.Outcome, error)

func (f runnerFunc) Run(ctx context.Context, refs []string) (*pipeline.Outcome, error) {
	return f(ctx, refs)
}

func outcomeWith(stats pipeline.Stats, rooms ...string) *pipeline.Outcome {
	res := domain.EmptyResult()
	if len(rooms) > 0 {
		res.Rooms = nil
		for _, name := range rooms {
			res.Rooms = append(res.Rooms, domain.ExtractedRoom{Name: name, Level: domain.DefaultLevel})
		}
		res.Summary.TotalRooms = len(rooms)
	}
	return &pipeline.Outcome{Result: res, Stats: stats}
}

func TestParseSucceeds(t *testing.T) {
	jobs := newMemoryJobs()
	var gotRefs []string
	svc := NewParseService(jobs, runnerFunc(func(_ context.Context, refs []string) (*pipeline.Outcome, error) {
		gotRefs = refs
		return outcomeWith(pipeline.Stats{FilesProcessed: 1, BackendCalls: 3}, "Kitchen", "Den"), nil
	}), time.Minute)

	job, err := svc.Parse(context.Background(), ParseRequest{
		ProjectID: " p1 ",
		FileRefs:  []string{"plans.pdf", " plans.pdf ", ""},
	})
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusParsed, job.Status)
	assert.Equal(t, []string{"plans.pdf"}, gotRefs)
	require.Len(t, job.Result.Rooms, 2)
	assert.Equal(t, domain.JobStatusParsed, jobs.status(job.ID))

	stored, err := svc.GetJob(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, "p1", stored.ProjectID)
}

func TestParseReusesUploadedJob(t *testing.T) {
	jobs := newMemoryJobs()
	existing := &domain.ParseJob{ProjectID: "p1", UploadID: "u1", Status: domain.JobStatusUploaded, FileRefs: domain.StringArray{"uploads/u1/plan.pdf"}}
	require.NoError(t, jobs.Create(context.Background(), existing))

	var gotRefs []string
	svc := NewParseService(jobs, runnerFunc(func(_ context.Context, refs []string) (*pipeline.Outcome, error) {
		gotRefs = refs
		return outcomeWith(pipeline.Stats{FilesProcessed: 1}, "Bath"), nil
	}), time.Minute)

	job, err := svc.Parse(context.Background(), ParseRequest{ProjectID: "p1", UploadID: "u1"})
	require.NoError(t, err)
	assert.Equal(t, existing.ID, job.ID)
	assert.Equal(t, []string{"uploads/u1/plan.pdf"}, gotRefs)
	assert.Len(t, jobs.jobs, 1)
}

func TestParseRejectsInvalidRequests(t *testing.T) {
	cases := []struct {
		name string
		req  ParseRequest
	}{
		{name: "no project", req: ParseRequest{FileRefs: []string{"a.pdf"}}},
		{name: "no files", req: ParseRequest{ProjectID: "p1"}},
		{name: "only unsupported files", req: ParseRequest{ProjectID: "p1", FileRefs: []string{"a.docx", "b.dwg"}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			jobs := newMemoryJobs()
			called := false
			svc := NewParseService(jobs, runnerFunc(func(context.Context, []string) (*pipeline.Outcome, error) {
				called = true
				return nil, nil
			}), time.Minute)

			job, err := svc.Parse(context.Background(), tc.req)
			assert.ErrorIs(t, err, ErrInvalidRequest)
			assert.False(t, called)
			assert.Equal(t, domain.JobStatusFailed, job.Status)
			assert.Equal(t, domain.ErrorCodeInvalidRequest, job.ErrorCode)
			require.NotNil(t, job.Result)
			assert.Equal(t, domain.SentinelRoomName, job.Result.Rooms[0].Name)
		})
	}
}

func TestParseFatalConditions(t *testing.T) {
	cases := []struct {
		name    string
		stats   pipeline.Stats
		code    string
		sentErr error
	}{
		{
			name:    "storage unreachable",
			stats:   pipeline.Stats{FilesSkipped: 2, FilesUnavailable: 2},
			code:    domain.ErrorCodeStorageUnavailable,
			sentErr: ErrStorageUnavailable,
		},
		{
			name:    "inference unreachable",
			stats:   pipeline.Stats{FilesProcessed: 2, BackendCalls: 4, BackendUnavailable: 4},
			code:    domain.ErrorCodeInferenceUnavailable,
			sentErr: ErrBackendUnavailable,
		},
		{
			name:    "nothing readable",
			stats:   pipeline.Stats{FilesSkipped: 2},
			code:    domain.ErrorCodeInvalidRequest,
			sentErr: ErrInvalidRequest,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			jobs := newMemoryJobs()
			svc := NewParseService(jobs, runnerFunc(func(context.Context, []string) (*pipeline.Outcome, error) {
				out := outcomeWith(tc.stats)
				out.Result.Warnings = []string{"Skipped a.pdf: file storage could not be reached."}
				return out, nil
			}), time.Minute)

			job, err := svc.Parse(context.Background(), ParseRequest{ProjectID: "p1", FileRefs: []string{"a.pdf", "b.pdf"}})
			assert.ErrorIs(t, err, tc.sentErr)
			assert.Equal(t, tc.code, job.ErrorCode)
			assert.Equal(t, domain.JobStatusFailed, jobs.status(job.ID))
			require.Len(t, job.Result.Rooms, 1)
			assert.Contains(t, job.Result.Warnings, "Skipped a.pdf: file storage could not be reached.")
		})
	}
}

func TestPartialBackendFailureStillParses(t *testing.T) {
	jobs := newMemoryJobs()
	svc := NewParseService(jobs, runnerFunc(func(context.Context, []string) (*pipeline.Outcome, error) {
		return outcomeWith(pipeline.Stats{FilesProcessed: 1, FilesSkipped: 1, FilesUnavailable: 1, BackendCalls: 4, BackendUnavailable: 3}, "Office"), nil
	}), time.Minute)

	job, err := svc.Parse(context.Background(), ParseRequest{ProjectID: "p1", FileRefs: []string{"a.pdf", "b.pdf"}})
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusParsed, job.Status)
}

func TestParseTimeout(t *testing.T) {
	jobs := newMemoryJobs()
	svc := NewParseService(jobs, runnerFunc(func(ctx context.Context, _ []string) (*pipeline.Outcome, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}), 20*time.Millisecond)

	job, err := svc.Parse(context.Background(), ParseRequest{ProjectID: "p1", FileRefs: []string{"a.pdf"}})
	assert.ErrorIs(t, err, ErrParseTimeout)
	assert.Equal(t, domain.ErrorCodeTimeout, job.ErrorCode)
	assert.Equal(t, domain.JobStatusFailed, jobs.status(job.ID))
	assert.Equal(t, domain.SentinelRoomName, job.Result.Rooms[0].Name)
}

func TestParseRecoversFromPanic(t *testing.T) {
	jobs := newMemoryJobs()
	svc := NewParseService(jobs, runnerFunc(func(context.Context, []string) (*pipeline.Outcome, error) {
		panic("nil map write")
	}), time.Minute)

	job, err := svc.Parse(context.Background(), ParseRequest{ProjectID: "p1", FileRefs: []string{"a.pdf"}})
	assert.ErrorIs(t, err, ErrParseInternal)
	assert.Equal(t, domain.ErrorCodeInternal, job.ErrorCode)
	assert.Equal(t, domain.JobStatusFailed, jobs.status(job.ID))
}

func TestParseWithUnreachableJobStore(t *testing.T) {
	jobs := newMemoryJobs()
	jobs.failAll = errors.New("dial tcp: connection refused")
	svc := NewParseService(jobs, runnerFunc(func(context.Context, []string) (*pipeline.Outcome, error) {
		t.Fatal("pipeline must not run without a job record")
		return nil, nil
	}), time.Minute)

	job, err := svc.Parse(context.Background(), ParseRequest{ProjectID: "p1", UploadID: "u1", FileRefs: []string{"a.pdf"}})
	assert.ErrorIs(t, err, ErrJobStorageUnavailable)
	assert.Equal(t, domain.ErrorCodeJobStorage, job.ErrorCode)
	assert.Equal(t, domain.JobStatusFailed, job.Status)
	require.NotNil(t, job.Result)
}

func TestGetJobNotFound(t *testing.T) {
	svc := NewParseService(newMemoryJobs(), nil, time.Minute)
	_, err := svc.GetJob(context.Background(), "missing")
	assert.ErrorIs(t, err, repository.ErrJobNotFound)
}
