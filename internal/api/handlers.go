package api

import (
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/ollama-bench/ollama-bench/internal/storage"
)

// Request/Response types

// ErrorResponse is the standard error response
type ErrorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

// HealthResponse is the health check response
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// ReadyResponse is the readiness check response
type ReadyResponse struct {
	Ready     bool      `json:"ready"`
	Timestamp time.Time `json:"timestamp"`
}

// ListRunsQuery defines query parameters for listing runs
type ListRunsQuery struct {
	Limit int `form:"limit" binding:"omitempty,min=1,max=100"`
}

// ListResultsQuery defines query parameters for a model's history
type ListResultsQuery struct {
	Model string `form:"model" binding:"required"`
	Limit int    `form:"limit" binding:"omitempty,min=1,max=100"`
}

// ListRunsResponse is the response for listing runs
type ListRunsResponse struct {
	Runs  []*storage.Run `json:"runs"`
	Count int            `json:"count"`
}

// ListModelResultsResponse is the response for a model's history
type ListModelResultsResponse struct {
	Model   string                 `json:"model"`
	Results []*storage.ModelResult `json:"results"`
	Count   int                    `json:"count"`
}

// Handlers

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status:    "ok",
		Timestamp: time.Now(),
	})
}

func (s *Server) handleReady(c *gin.Context) {
	// The server is read-only over the store; ready once the store
	// answers queries.
	if _, err := s.store.ListRuns(c.Request.Context(), 1); err != nil {
		c.JSON(http.StatusServiceUnavailable, ReadyResponse{
			Ready:     false,
			Timestamp: time.Now(),
		})
		return
	}

	c.JSON(http.StatusOK, ReadyResponse{
		Ready:     true,
		Timestamp: time.Now(),
	})
}

func (s *Server) handleListRuns(c *gin.Context) {
	var query ListRunsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:     sanitizeValidationError(err),
			RequestID: c.GetString("request_id"),
		})
		return
	}

	runs, err := s.store.ListRuns(c.Request.Context(), query.Limit)
	if err != nil {
		s.logger.Error("failed to list runs", "error", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:     "failed to list runs",
			RequestID: c.GetString("request_id"),
		})
		return
	}

	if runs == nil {
		runs = []*storage.Run{}
	}
	c.JSON(http.StatusOK, ListRunsResponse{Runs: runs, Count: len(runs)})
}

func (s *Server) handleGetRun(c *gin.Context) {
	id := c.Param("id")

	run, err := s.store.GetRun(c.Request.Context(), id)
	if errors.Is(err, storage.ErrNotFound) {
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error:     "run not found",
			RequestID: c.GetString("request_id"),
		})
		return
	}
	if err != nil {
		s.logger.Error("failed to get run", "run_id", id, "error", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:     "failed to get run",
			RequestID: c.GetString("request_id"),
		})
		return
	}

	c.JSON(http.StatusOK, run)
}

func (s *Server) handleListModelResults(c *gin.Context) {
	var query ListResultsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:     sanitizeValidationError(err),
			RequestID: c.GetString("request_id"),
		})
		return
	}

	results, err := s.store.ListModelResults(c.Request.Context(), query.Model, query.Limit)
	if err != nil {
		s.logger.Error("failed to list model results", "model", query.Model, "error", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:     "failed to list model results",
			RequestID: c.GetString("request_id"),
		})
		return
	}

	if results == nil {
		results = []*storage.ModelResult{}
	}
	c.JSON(http.StatusOK, ListModelResultsResponse{
		Model:   query.Model,
		Results: results,
		Count:   len(results),
	})
}

// sanitizeValidationError converts internal field names to JSON field names
// in validation error messages to avoid leaking internal implementation details.
func sanitizeValidationError(err error) string {
	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return err.Error()
	}

	var messages []string
	for _, fe := range validationErrs {
		jsonFieldName := toSnakeCase(fe.Field())
		switch fe.Tag() {
		case "required":
			messages = append(messages, fmt.Sprintf("%s is required", jsonFieldName))
		case "min":
			messages = append(messages, fmt.Sprintf("%s must be at least %s", jsonFieldName, fe.Param()))
		case "max":
			messages = append(messages, fmt.Sprintf("%s must be at most %s", jsonFieldName, fe.Param()))
		default:
			messages = append(messages, fmt.Sprintf("%s failed validation (%s)", jsonFieldName, fe.Tag()))
		}
	}
	return strings.Join(messages, "; ")
}

// toSnakeCase converts a PascalCase or camelCase string to snake_case
func toSnakeCase(s string) string {
	re := regexp.MustCompile("([a-z0-9])([A-Z])")
	return strings.ToLower(re.ReplaceAllString(s, "${1}_${2}"))
}
