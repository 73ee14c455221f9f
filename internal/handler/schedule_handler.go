package handler

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/timetable-solver-api/internal/dto"
	internalmiddleware "github.com/noah-isme/timetable-solver-api/internal/middleware"
	"github.com/noah-isme/timetable-solver-api/internal/models"
	"github.com/noah-isme/timetable-solver-api/internal/service"
	appErrors "github.com/noah-isme/timetable-solver-api/pkg/errors"
	"github.com/noah-isme/timetable-solver-api/pkg/response"
)

// ScheduleSolver is the solving surface the handler depends on.
type ScheduleSolver interface {
	Solve(ctx context.Context, req dto.SolveScheduleRequest) (*dto.SolveScheduleResponse, error)
	SolveAsync(ctx context.Context, req dto.SolveScheduleRequest) (*dto.AsyncSolveResponse, error)
	GetRun(ctx context.Context, id string) (*dto.ScheduleRunDetail, error)
	ListRuns(ctx context.Context, query dto.ScheduleRunQuery) ([]dto.ScheduleRunSummary, *models.Pagination, error)
}

// ScheduleExporter renders and serves timetable exports.
type ScheduleExporter interface {
	Export(ctx context.Context, runID string, req dto.ExportScheduleRequest) (*dto.ExportScheduleResponse, error)
	ResolveDownload(token string) (*service.Download, error)
}

// ScheduleHandler exposes timetable solving endpoints.
type ScheduleHandler struct {
	solver    ScheduleSolver
	exporter  ScheduleExporter
	apiPrefix string
}

// NewScheduleHandler constructs the handler. exporter may be nil when exports are disabled.
func NewScheduleHandler(solver ScheduleSolver, exporter ScheduleExporter, apiPrefix string) *ScheduleHandler {
	return &ScheduleHandler{solver: solver, exporter: exporter, apiPrefix: strings.TrimRight(apiPrefix, "/")}
}

// Solve godoc
// @Summary Solve a timetable
// @Description Places every course in a room with an instructor and a contiguous slot range. The body may also be wrapped as {"schedule": {...}}.
// @Tags Schedule
// @Accept json
// @Produce json
// @Param payload body dto.SolveScheduleRequest true "Scheduling problem"
// @Success 200 {object} response.Envelope{data=dto.SolveScheduleResponse}
// @Failure 400 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /schedule/solve [post]
func (h *ScheduleHandler) Solve(c *gin.Context) {
	req, ok := bindSolveRequest(c)
	if !ok {
		return
	}
	result, err := h.solver.Solve(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	internalmiddleware.SetCacheHit(c, result.Stats != nil && result.Stats.Cached)
	response.JSON(c, http.StatusOK, result, nil, internalmiddleware.ResponseMeta(c))
}

// SolveAsync godoc
// @Summary Queue a timetable solve
// @Tags Schedule
// @Accept json
// @Produce json
// @Param payload body dto.SolveScheduleRequest true "Scheduling problem"
// @Success 202 {object} response.Envelope{data=dto.AsyncSolveResponse}
// @Failure 503 {object} response.Envelope
// @Router /schedule/solve/async [post]
func (h *ScheduleHandler) SolveAsync(c *gin.Context) {
	req, ok := bindSolveRequest(c)
	if !ok {
		return
	}
	result, err := h.solver.SolveAsync(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Accepted(c, fmt.Sprintf("%s/schedule/runs/%s", h.apiPrefix, result.RunID), result)
}

// ListRuns godoc
// @Summary List solve runs
// @Tags Schedule
// @Produce json
// @Param status query string false "Run status"
// @Param mode query string false "sync or async"
// @Param page query int false "Page"
// @Param pageSize query int false "Page size"
// @Success 200 {object} response.Envelope{data=[]dto.ScheduleRunSummary}
// @Router /schedule/runs [get]
func (h *ScheduleHandler) ListRuns(c *gin.Context) {
	var query dto.ScheduleRunQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid query parameters"))
		return
	}
	runs, pagination, err := h.solver.ListRuns(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, runs, pagination)
}

// GetRun godoc
// @Summary Get a solve run
// @Tags Schedule
// @Produce json
// @Param id path string true "Run ID"
// @Success 200 {object} response.Envelope{data=dto.ScheduleRunDetail}
// @Failure 404 {object} response.Envelope
// @Router /schedule/runs/{id} [get]
func (h *ScheduleHandler) GetRun(c *gin.Context) {
	run, err := h.solver.GetRun(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, run, nil)
}

// Export godoc
// @Summary Export a solved timetable
// @Tags Schedule
// @Produce json
// @Param id path string true "Run ID"
// @Param format query string false "csv or pdf"
// @Success 200 {object} response.Envelope{data=dto.ExportScheduleResponse}
// @Failure 412 {object} response.Envelope
// @Router /schedule/runs/{id}/export [post]
func (h *ScheduleHandler) Export(c *gin.Context) {
	if h.exporter == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrUnavailable, "exports are disabled"))
		return
	}
	var req dto.ExportScheduleRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid export format"))
		return
	}
	result, err := h.exporter.Export(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Download godoc
// @Summary Download an exported timetable
// @Tags Schedule
// @Produce octet-stream
// @Param token path string true "Signed token"
// @Success 200 {file} file
// @Failure 403 {object} response.Envelope
// @Router /schedule/export/{token} [get]
func (h *ScheduleHandler) Download(c *gin.Context) {
	if h.exporter == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrUnavailable, "exports are disabled"))
		return
	}
	download, err := h.exporter.ResolveDownload(c.Param("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	defer download.File.Close()

	response.Attachment(c, download.Filename, download.ContentType, download.File)
}

// bindSolveRequest accepts the problem at the top level or wrapped under "schedule".
func bindSolveRequest(c *gin.Context) (dto.SolveScheduleRequest, bool) {
	var envelope dto.SolveScheduleEnvelope
	if err := c.ShouldBindJSON(&envelope); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid schedule payload"))
		return dto.SolveScheduleRequest{}, false
	}
	return envelope.Unwrap(), true
}
