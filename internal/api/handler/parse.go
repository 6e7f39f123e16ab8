package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/timmy/planscan/internal/api/middleware"
	"github.com/timmy/planscan/internal/domain"
	"github.com/timmy/planscan/internal/repository"
	"github.com/timmy/planscan/internal/service"
)

// ParseService is the job-tracking parse boundary the handler calls.
type ParseService interface {
	Parse(ctx context.Context, req service.ParseRequest) (*domain.ParseJob, error)
	GetJob(ctx context.Context, id string) (*domain.ParseJob, error)
}

// ParseHandler handles parse requests and job lookups.
type ParseHandler struct {
	parseService ParseService
}

// NewParseHandler creates a new parse handler.
// Parameters:
//   - parseService: service that runs and tracks parse jobs.
//
// Returns:
//   - *ParseHandler: initialized handler.
func NewParseHandler(parseService ParseService) *ParseHandler {
	return &ParseHandler{parseService: parseService}
}

// ParseResponse is the payload of a parse request. Result is always present.
type ParseResponse struct {
	JobID        string              `json:"job_id,omitempty"`
	Status       domain.JobStatus    `json:"status"`
	ProcessingMs int64               `json:"processing_ms"`
	Result       *domain.ParseResult `json:"result"`
	ErrorCode    string              `json:"error_code,omitempty"`
	Error        string              `json:"error,omitempty"`
}

// Parse handles POST /api/v1/parse.
// Parameters:
//   - c: Gin request context.
//
// Returns: none (writes JSON response).
func (h *ParseHandler) Parse(c *gin.Context) {
	var req service.ParseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ParseResponse{
			Status:    domain.JobStatusFailed,
			Result:    domain.EmptyResult(),
			ErrorCode: domain.ErrorCodeInvalidRequest,
			Error:     "Invalid request body: " + err.Error(),
		})
		return
	}

	job, err := h.parseService.Parse(c.Request.Context(), req)
	resp := ParseResponse{
		JobID:        job.ID,
		Status:       job.Status,
		ProcessingMs: job.ProcessingMs,
		Result:       job.Result,
		ErrorCode:    job.ErrorCode,
	}
	if err != nil {
		middleware.GetLogger(c).WithError(err).WithField("error_code", job.ErrorCode).Warn("Parse request failed")
		resp.Error = job.ErrorMessage
		c.JSON(statusForCode(job.ErrorCode), resp)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// GetJob handles GET /api/v1/parse-jobs/:id.
// Parameters:
//   - c: Gin request context.
//
// Returns: none (writes JSON response).
func (h *ParseHandler) GetJob(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Job ID is required",
		})
		return
	}

	job, err := h.parseService.GetJob(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrJobNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error": "Parse job not found",
			})
			return
		}
		middleware.GetLogger(c).WithError(err).Error("Failed to load parse job")
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error": "Failed to load parse job",
		})
		return
	}

	c.JSON(http.StatusOK, job)
}

// statusForCode maps a job error code to an HTTP status.
func statusForCode(code string) int {
	switch code {
	case domain.ErrorCodeInvalidRequest:
		return http.StatusBadRequest
	case domain.ErrorCodeStorageUnavailable, domain.ErrorCodeInferenceUnavailable:
		return http.StatusBadGateway
	case domain.ErrorCodeTimeout:
		return http.StatusGatewayTimeout
	case domain.ErrorCodeJobStorage:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
