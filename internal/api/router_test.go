package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/timmy/planscan/internal/api/handler"
	"github.com/timmy/planscan/internal/config"
	"github.com/timmy/planscan/internal/domain"
	"github.com/timmy/planscan/internal/repository"
	"github.com/timmy/planscan/internal/service"
)

type fakeParseService struct {
	parse func(req service.ParseRequest) (*domain.ParseJob, error)
	jobs  map[string]*domain.ParseJob
}

func (f *fakeParseService) Parse(_ context.Context, req service.ParseRequest) (*domain.ParseJob, error) {
	return f.parse(req)
}

func (f *fakeParseService) GetJob(_ context.Context, id string) (*domain.ParseJob, error) {
	if job, ok := f.jobs[id]; ok {
		return job, nil
	}
	if id == "broken" {
		return nil, errors.New("connection reset")
	}
	return nil, repository.ErrJobNotFound
}

type fakePinger struct{ err error }

func (p fakePinger) PingContext(context.Context) error { return p.err }

func newTestRouter(svc handler.ParseService, pinger handler.Pinger) http.Handler {
	return SetupRouter(svc, pinger, config.ServerConfig{
		Mode: "test",
		CORS: config.CORSConfig{AllowedOrigins: []string{"https://app.example.com"}},
	})
}

func do(t *testing.T, h http.Handler, method, path, body string, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decodeParse(t *testing.T, w *httptest.ResponseRecorder) handler.ParseResponse {
	t.Helper()
	var resp handler.ParseResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestHealth(t *testing.T) {
	w := do(t, newTestRouter(&fakeParseService{}, fakePinger{}), http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

	w = do(t, newTestRouter(&fakeParseService{}, fakePinger{err: errors.New("down")}), http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestParseSuccess(t *testing.T) {
	var got service.ParseRequest
	svc := &fakeParseService{parse: func(req service.ParseRequest) (*domain.ParseJob, error) {
		got = req
		result := domain.EmptyResult()
		result.Rooms[0].Name = "Kitchen"
		return &domain.ParseJob{ID: "job-1", Status: domain.JobStatusParsed, ProcessingMs: 42, Result: result}, nil
	}}

	w := do(t, newTestRouter(svc, nil), http.MethodPost, "/api/v1/parse",
		`{"project_id":"p1","estimate_id":"e1","file_refs":["uploads/a.pdf"]}`,
		"X-Request-ID", "req-123")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "req-123", w.Header().Get("X-Request-ID"))
	assert.Equal(t, service.ParseRequest{ProjectID: "p1", EstimateID: "e1", FileRefs: []string{"uploads/a.pdf"}}, got)

	resp := decodeParse(t, w)
	assert.Equal(t, "job-1", resp.JobID)
	assert.Equal(t, domain.JobStatusParsed, resp.Status)
	assert.Equal(t, int64(42), resp.ProcessingMs)
	require.NotNil(t, resp.Result)
	assert.Equal(t, "Kitchen", resp.Result.Rooms[0].Name)
	assert.Empty(t, resp.Error)
}

func TestParseFailureStatusCodes(t *testing.T) {
	cases := []struct {
		code   string
		status int
	}{
		{domain.ErrorCodeInvalidRequest, http.StatusBadRequest},
		{domain.ErrorCodeStorageUnavailable, http.StatusBadGateway},
		{domain.ErrorCodeInferenceUnavailable, http.StatusBadGateway},
		{domain.ErrorCodeTimeout, http.StatusGatewayTimeout},
		{domain.ErrorCodeJobStorage, http.StatusServiceUnavailable},
		{domain.ErrorCodeInternal, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.code, func(t *testing.T) {
			svc := &fakeParseService{parse: func(service.ParseRequest) (*domain.ParseJob, error) {
				return &domain.ParseJob{
					ID:           "job-2",
					Status:       domain.JobStatusFailed,
					Result:       domain.EmptyResult(),
					ErrorCode:    tc.code,
					ErrorMessage: "it broke",
				}, fmt.Errorf("failed: %s", tc.code)
			}}

			w := do(t, newTestRouter(svc, nil), http.MethodPost, "/api/v1/parse", `{"project_id":"p1","file_refs":["a.pdf"]}`)
			assert.Equal(t, tc.status, w.Code)
			resp := decodeParse(t, w)
			assert.Equal(t, domain.JobStatusFailed, resp.Status)
			assert.Equal(t, tc.code, resp.ErrorCode)
			assert.Equal(t, "it broke", resp.Error)
			require.NotNil(t, resp.Result)
			assert.Equal(t, domain.SentinelRoomName, resp.Result.Rooms[0].Name)
		})
	}
}

func TestParseMalformedBody(t *testing.T) {
	svc := &fakeParseService{parse: func(service.ParseRequest) (*domain.ParseJob, error) {
		t.Fatal("service must not be called")
		return nil, nil
	}}

	w := do(t, newTestRouter(svc, nil), http.MethodPost, "/api/v1/parse", `{"project_id":`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	resp := decodeParse(t, w)
	assert.Equal(t, domain.ErrorCodeInvalidRequest, resp.ErrorCode)
	require.NotNil(t, resp.Result)
	assert.Len(t, resp.Result.Rooms, 1)
}

func TestGetJob(t *testing.T) {
	svc := &fakeParseService{jobs: map[string]*domain.ParseJob{
		"job-1": {ID: "job-1", ProjectID: "p1", Status: domain.JobStatusParsed, Result: domain.EmptyResult()},
	}}
	router := newTestRouter(svc, nil)

	w := do(t, router, http.MethodGet, "/api/v1/parse-jobs/job-1", "")
	require.Equal(t, http.StatusOK, w.Code)
	var job domain.ParseJob
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &job))
	assert.Equal(t, "p1", job.ProjectID)
	assert.Equal(t, domain.JobStatusParsed, job.Status)

	assert.Equal(t, http.StatusNotFound, do(t, router, http.MethodGet, "/api/v1/parse-jobs/nope", "").Code)
	assert.Equal(t, http.StatusServiceUnavailable, do(t, router, http.MethodGet, "/api/v1/parse-jobs/broken", "").Code)
}

func TestCORS(t *testing.T) {
	router := newTestRouter(&fakeParseService{}, nil)

	w := do(t, router, http.MethodOptions, "/api/v1/parse", "", "Origin", "https://app.example.com")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "https://app.example.com", w.Header().Get("Access-Control-Allow-Origin"))

	w = do(t, router, http.MethodGet, "/health", "", "Origin", "https://evil.example.com")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}
