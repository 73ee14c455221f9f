package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/noah-isme/timetable-solver-api/internal/dto"
	"github.com/noah-isme/timetable-solver-api/internal/models"
	"github.com/noah-isme/timetable-solver-api/internal/scheduler"
	appErrors "github.com/noah-isme/timetable-solver-api/pkg/errors"
	"github.com/noah-isme/timetable-solver-api/pkg/export"
	"github.com/noah-isme/timetable-solver-api/pkg/storage"
)

type fileStorage interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
	Delete(filename string) error
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

type runLoader interface {
	FindByID(ctx context.Context, id string) (*models.ScheduleRun, error)
}

// ExportConfig tunes export behaviour.
type ExportConfig struct {
	APIPrefix string
	ResultTTL time.Duration
}

// Download is a resolved export ready to stream.
type Download struct {
	File        *os.File
	Filename    string
	ContentType string
}

// ExportService renders solved runs as CSV or PDF timetables behind signed links.
type ExportService struct {
	runs      runLoader
	storage   fileStorage
	renderers map[string]export.Renderer
	signer    *storage.SignedURLSigner
	validator *validator.Validate
	logger    *zap.Logger
	cfg       ExportConfig
}

// NewExportService constructs an ExportService. Without renderers it uses the CSV and PDF
// exporters.
func NewExportService(runs runLoader, files fileStorage, signer *storage.SignedURLSigner, cfg ExportConfig, logger *zap.Logger, renderers ...export.Renderer) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	if len(renderers) == 0 {
		renderers = []export.Renderer{export.NewCSVExporter(), export.NewPDFExporter()}
	}
	return &ExportService{
		runs:    runs,
		storage: files,
		renderers: lo.SliceToMap(renderers, func(r export.Renderer) (string, export.Renderer) {
			return r.Extension(), r
		}),
		signer:    signer,
		validator: validator.New(),
		logger:    logger,
		cfg:       cfg,
	}
}

// Export renders the schedule of a solved run and returns a signed download link.
func (s *ExportService) Export(ctx context.Context, runID string, req dto.ExportScheduleRequest) (*dto.ExportScheduleResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid export format")
	}
	format := lo.Ternary(req.Format == "", "csv", req.Format)
	renderer, ok := s.renderers[format]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported export format %s", format))
	}

	run, err := s.runs.FindByID(ctx, runID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "schedule run not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load schedule run")
	}
	outcome, ok := decodeOutcome(run)
	if !ok || outcome.Outcome != scheduler.OutcomeSolved {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "only solved runs can be exported")
	}

	payload, err := renderer.Render(scheduleTable(run, outcome))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render schedule")
	}
	relPath, err := s.storage.Save(path.Join("runs", run.ID, "schedule."+renderer.Extension()), payload)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store export")
	}
	token, expiresAt, err := s.signer.Generate(run.ID, relPath)
	if err != nil {
		if delErr := s.storage.Delete(relPath); delErr != nil {
			s.logger.Sugar().Warnw("failed to remove unsigned export", "path", relPath, "error", delErr)
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign export")
	}

	prefix := strings.TrimRight(s.cfg.APIPrefix, "/")
	if prefix == "" {
		prefix = "/api/v1"
	}
	s.logger.Sugar().Infow("schedule exported", "run_id", run.ID, "format", format, "path", relPath)
	return &dto.ExportScheduleResponse{
		RunID:       run.ID,
		Format:      format,
		DownloadURL: fmt.Sprintf("%s/schedule/export/%s", prefix, token),
		ExpiresAt:   expiresAt,
	}, nil
}

// ResolveDownload validates a signed token and opens the referenced file.
func (s *ExportService) ResolveDownload(token string) (*Download, error) {
	runID, relPath, _, err := s.signer.Parse(token, false)
	if err != nil {
		if errors.Is(err, storage.ErrTokenExpired) {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "download link expired")
		}
		return nil, appErrors.Clone(appErrors.ErrForbidden, "invalid download link")
	}
	file, err := s.storage.Open(relPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "export file no longer exists")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open export")
	}
	ext := strings.TrimPrefix(path.Ext(relPath), ".")
	contentType := "application/octet-stream"
	if r, ok := s.renderers[ext]; ok {
		contentType = r.ContentType()
	}
	return &Download{
		File:        file,
		Filename:    fmt.Sprintf("schedule-%s.%s", runID, ext),
		ContentType: contentType,
	}, nil
}

// Cleanup removes files older than ttl (defaults to configured ResultTTL when ttl <= 0).
func (s *ExportService) Cleanup(ttl time.Duration) ([]string, error) {
	if ttl <= 0 {
		ttl = s.cfg.ResultTTL
	}
	removed, err := s.storage.CleanupOlderThan(ttl)
	if err != nil {
		return nil, err
	}
	if len(removed) > 0 {
		s.logger.Sugar().Infow("expired exports removed", "count", len(removed))
	}
	return removed, nil
}

func scheduleTable(run *models.ScheduleRun, outcome solveOutcome) export.Table {
	summary := []string{
		fmt.Sprintf("Total slots: %d", run.TotalSlots),
		fmt.Sprintf("Score: %d", outcome.Report.Score),
	}
	if len(outcome.Report.UnmetSoftConstraints) > 0 {
		summary = append(summary, "Unmet: "+strings.Join(outcome.Report.UnmetSoftConstraints, "; "))
	}
	return export.Table{
		Title:   "Schedule run " + run.ID,
		Summary: summary,
		Headers: []string{"Course", "Room", "Instructor", "Start", "End", "Duration"},
		Rows: lo.Map(outcome.Assignments, func(a models.Assignment, _ int) []string {
			return []string{
				a.CourseID,
				a.RoomID,
				a.InstructorID,
				strconv.Itoa(a.StartSlot),
				strconv.Itoa(a.EndSlot),
				strconv.Itoa(a.Duration()),
			}
		}),
	}
}
