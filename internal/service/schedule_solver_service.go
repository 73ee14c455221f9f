package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx/types"
	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/noah-isme/timetable-solver-api/internal/dto"
	"github.com/noah-isme/timetable-solver-api/internal/models"
	"github.com/noah-isme/timetable-solver-api/internal/repository"
	"github.com/noah-isme/timetable-solver-api/internal/scheduler"
	appErrors "github.com/noah-isme/timetable-solver-api/pkg/errors"
	"github.com/noah-isme/timetable-solver-api/pkg/jobs"
)

// ScheduleRunStore persists solve runs.
type ScheduleRunStore interface {
	Create(ctx context.Context, run *models.ScheduleRun) error
	FindByID(ctx context.Context, id string) (*models.ScheduleRun, error)
	List(ctx context.Context, filter models.ScheduleRunFilter) ([]models.ScheduleRun, int, error)
	Update(ctx context.Context, id string, params repository.UpdateScheduleRunParams) error
	ListByStatus(ctx context.Context, status models.RunStatus, limit int) ([]models.ScheduleRun, error)
}

// SolveResultCache stores solve outcomes by problem fingerprint. Get reports a hit.
type SolveResultCache interface {
	Get(ctx context.Context, key string, dest interface{}) bool
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration)
}

type solveDispatcher interface {
	TryEnqueue(job jobs.Job[string]) error
}

// ScheduleSolverConfig governs solver behaviour.
type ScheduleSolverConfig struct {
	DefaultTotalSlots int
	TooBusyRatio      float64
	MorningCutoff     int
	MaxNodes          int64
	Timeout           time.Duration
	MaxTotalSlots     int
	MaxCourses        int
	CacheTTL          time.Duration
}

// DefaultMaxTotalSlots caps the horizon when no limit is configured (one week of 5 minute slots).
const DefaultMaxTotalSlots = 2016

// solveOutcome is the cacheable, persistable result of one search.
type solveOutcome struct {
	Outcome     scheduler.Outcome    `json:"outcome"`
	Assignments []models.Assignment  `json:"assignments"`
	Report      scheduler.Report     `json:"report"`
	Stats       scheduler.Stats      `json:"stats"`
	Diagnostics []dto.CourseBlockers `json:"diagnostics,omitempty"`
	DurationMs  int64                `json:"durationMs"`

	cached   bool
	duration time.Duration
}

// ScheduleSolverService validates scheduling problems, runs the search engine and keeps
// an optional history of runs.
type ScheduleSolverService struct {
	runs       ScheduleRunStore
	cache      SolveResultCache
	dispatcher solveDispatcher
	metrics    *MetricsService
	validator  *validator.Validate
	logger     *zap.Logger
	cfg        ScheduleSolverConfig
	now        func() time.Time
}

// NewScheduleSolverService wires solver dependencies. runs and cache may be nil, which
// disables run history and result caching respectively.
func NewScheduleSolverService(runs ScheduleRunStore, cache SolveResultCache, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger, cfg ScheduleSolverConfig) *ScheduleSolverService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.DefaultTotalSlots <= 0 {
		cfg.DefaultTotalSlots = 48
	}
	if cfg.MaxTotalSlots <= 0 {
		cfg.MaxTotalSlots = DefaultMaxTotalSlots
	}
	if cfg.TooBusyRatio <= 0 {
		cfg.TooBusyRatio = scheduler.DefaultTooBusyRatio
	}
	if cfg.MorningCutoff <= 0 {
		cfg.MorningCutoff = scheduler.DefaultMorningCutoff
	}
	return &ScheduleSolverService{
		runs:      runs,
		cache:     cache,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		cfg:       cfg,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// EnableAsync attaches the queue used by SolveAsync. Requires run history.
func (s *ScheduleSolverService) EnableAsync(dispatcher solveDispatcher) {
	s.dispatcher = dispatcher
}

// AsyncEnabled reports whether SolveAsync can accept work.
func (s *ScheduleSolverService) AsyncEnabled() bool {
	return s.dispatcher != nil && s.runs != nil
}

// HistoryEnabled reports whether runs are persisted.
func (s *ScheduleSolverService) HistoryEnabled() bool {
	return s.runs != nil
}

func (s *ScheduleSolverService) limits() problemLimits {
	return problemLimits{DefaultTotalSlots: s.cfg.DefaultTotalSlots, MaxTotalSlots: s.cfg.MaxTotalSlots, MaxCourses: s.cfg.MaxCourses}
}

func (s *ScheduleSolverService) engineOptions() scheduler.Options {
	return scheduler.Options{TooBusyRatio: s.cfg.TooBusyRatio, MaxNodes: s.cfg.MaxNodes}
}

func (s *ScheduleSolverService) scoreOptions() scheduler.ScoreOptions {
	return scheduler.ScoreOptions{MorningCutoff: s.cfg.MorningCutoff}
}

// Solve runs the search synchronously. Infeasible and over-budget outcomes are returned as
// NO_VALID_SCHEDULE and SEARCH_BUDGET_EXCEEDED errors carrying diagnostics.
func (s *ScheduleSolverService) Solve(ctx context.Context, req dto.SolveScheduleRequest) (*dto.SolveScheduleResponse, error) {
	problem, err := buildProblem(s.validator, req, s.limits())
	if err != nil {
		return nil, err
	}

	outcome, err := s.execute(ctx, problem)
	if err != nil {
		return nil, err
	}

	runID := s.recordSyncRun(ctx, problem, outcome)
	s.observe(runID, models.RunModeSync, outcome)
	return present(runID, outcome)
}

// SolveAsync validates the problem, records a queued run and hands it to the worker pool.
func (s *ScheduleSolverService) SolveAsync(ctx context.Context, req dto.SolveScheduleRequest) (*dto.AsyncSolveResponse, error) {
	if !s.AsyncEnabled() {
		return nil, appErrors.Clone(appErrors.ErrUnavailable, "asynchronous solving is disabled")
	}
	problem, err := buildProblem(s.validator, req, s.limits())
	if err != nil {
		return nil, err
	}
	requestJSON, err := json.Marshal(toRequest(problem))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to encode schedule request")
	}

	run := &models.ScheduleRun{
		ID:          uuid.NewString(),
		Mode:        models.RunModeAsync,
		Status:      models.RunStatusQueued,
		Fingerprint: fingerprint(problem, s.engineOptions(), s.scoreOptions()),
		TotalSlots:  problem.TotalSlots,
		CourseCount: len(problem.Courses),
		Request:     types.JSONText(requestJSON),
		CreatedAt:   s.now(),
	}
	start := time.Now()
	err = s.runs.Create(ctx, run)
	s.metrics.ObserveDBQuery("schedule_runs.create", time.Since(start))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record schedule run")
	}

	if err := s.dispatcher.TryEnqueue(jobs.Job[string]{ID: run.ID, Payload: run.ID}); err != nil {
		s.failRun(ctx, run.ID, fmt.Errorf("enqueue: %w", err))
		if errors.Is(err, jobs.ErrQueueFull) {
			return nil, appErrors.Clone(appErrors.ErrUnavailable, "solve queue is full, retry later")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrUnavailable.Code, appErrors.ErrUnavailable.Status, "solve queue unavailable")
	}

	s.logger.Sugar().Infow("schedule solve queued", "run_id", run.ID, "courses", run.CourseCount)
	return &dto.AsyncSolveResponse{RunID: run.ID, Status: string(run.Status)}, nil
}

// GetRun returns a run with its request and, once finished, its outcome.
func (s *ScheduleSolverService) GetRun(ctx context.Context, id string) (*dto.ScheduleRunDetail, error) {
	run, err := s.loadRun(ctx, id)
	if err != nil {
		return nil, err
	}

	detail := &dto.ScheduleRunDetail{
		ScheduleRunSummary: toRunSummary(*run),
		Backtracks:         run.Backtracks,
		ErrorMessage:       run.ErrorMessage,
	}
	if err := json.Unmarshal(run.Request, &detail.Request); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to decode stored request")
	}
	if outcome, ok := decodeOutcome(run); ok {
		detail.Diagnostics = outcome.Diagnostics
		if outcome.Outcome == scheduler.OutcomeSolved {
			detail.Result = solvedResponse(run.ID, outcome)
		}
	}
	return detail, nil
}

// ListRuns returns a page of run summaries, newest first.
func (s *ScheduleSolverService) ListRuns(ctx context.Context, query dto.ScheduleRunQuery) ([]dto.ScheduleRunSummary, *models.Pagination, error) {
	if s.runs == nil {
		return nil, nil, appErrors.Clone(appErrors.ErrUnavailable, "run history is disabled")
	}
	if err := s.validator.Struct(query); err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid run query")
	}
	filter := models.ScheduleRunFilter{
		Status:   models.RunStatus(query.Status),
		Mode:     models.RunMode(query.Mode),
		Page:     lo.Ternary(query.Page > 0, query.Page, 1),
		PageSize: lo.Ternary(query.PageSize > 0, query.PageSize, 20),
	}

	start := time.Now()
	runs, total, err := s.runs.List(ctx, filter)
	s.metrics.ObserveDBQuery("schedule_runs.list", time.Since(start))
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list schedule runs")
	}

	summaries := lo.Map(runs, func(run models.ScheduleRun, _ int) dto.ScheduleRunSummary {
		return toRunSummary(run)
	})
	return summaries, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}, nil
}

// RecoverPendingJobs requeues runs left queued or running by a previous process.
func (s *ScheduleSolverService) RecoverPendingJobs(ctx context.Context) int {
	if !s.AsyncEnabled() {
		return 0
	}
	recovered := 0
	for _, status := range []models.RunStatus{models.RunStatusRunning, models.RunStatusQueued} {
		pending, err := s.runs.ListByStatus(ctx, status, 100)
		if err != nil {
			s.logger.Sugar().Warnw("failed to recover schedule runs", "status", status, "error", err)
			continue
		}
		for _, run := range pending {
			if err := s.dispatcher.TryEnqueue(jobs.Job[string]{ID: run.ID, Payload: run.ID}); err != nil {
				s.logger.Sugar().Warnw("failed to requeue schedule run", "run_id", run.ID, "error", err)
				continue
			}
			recovered++
		}
	}
	if recovered > 0 {
		s.logger.Sugar().Infow("recovered pending schedule runs", "count", recovered)
	}
	return recovered
}

// processRun executes a queued run. Errors wrapped with jobs.Permanent are not retried.
func (s *ScheduleSolverService) processRun(ctx context.Context, runID string) error {
	run, err := s.runs.FindByID(ctx, runID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return jobs.Permanent(fmt.Errorf("schedule run %s not found", runID))
		}
		return err
	}
	if run.Status.Terminal() {
		return nil
	}

	var req dto.SolveScheduleRequest
	if err := json.Unmarshal(run.Request, &req); err != nil {
		return jobs.Permanent(fmt.Errorf("decode stored request: %w", err))
	}
	problem, err := buildProblem(s.validator, req, problemLimits{DefaultTotalSlots: s.cfg.DefaultTotalSlots, MaxTotalSlots: s.cfg.MaxTotalSlots})
	if err != nil {
		return jobs.Permanent(err)
	}

	running := models.RunStatusRunning
	startedAt := s.now()
	if err := s.runs.Update(ctx, runID, repository.UpdateScheduleRunParams{Status: &running, StartedAt: &startedAt}); err != nil {
		return err
	}

	outcome, err := s.execute(ctx, problem)
	if err != nil {
		return jobs.Permanent(err)
	}
	if ctx.Err() != nil && outcome.Outcome == scheduler.OutcomeBudgetExceeded {
		// Shutdown interrupted the search; leave the run for recovery.
		queued := models.RunStatusQueued
		if err := s.runs.Update(context.WithoutCancel(ctx), runID, repository.UpdateScheduleRunParams{Status: &queued}); err != nil {
			s.logger.Sugar().Warnw("failed to requeue interrupted run", "run_id", runID, "error", err)
		}
		return ctx.Err()
	}

	if err := s.completeRun(ctx, runID, outcome); err != nil {
		return err
	}
	s.observe(runID, models.RunModeAsync, outcome)
	return nil
}

// execute runs (or recalls from cache) the search and scores a successful result.
func (s *ScheduleSolverService) execute(ctx context.Context, problem solveProblem) (solveOutcome, error) {
	key := "solve:" + fingerprint(problem, s.engineOptions(), s.scoreOptions())
	if s.cache != nil {
		var cached solveOutcome
		lookupStart := time.Now()
		if s.cache.Get(ctx, key, &cached) {
			cached.cached = true
			cached.duration = time.Since(lookupStart)
			return cached, nil
		}
	}

	searchCtx := ctx
	if s.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		searchCtx, cancel = context.WithTimeout(ctx, s.cfg.Timeout)
		defer cancel()
	}

	start := time.Now()
	engine := scheduler.NewEngine(problem.Rooms, problem.Courses, problem.Instructors, problem.TotalSlots, s.engineOptions())
	result := engine.Solve(searchCtx)
	elapsed := time.Since(start)

	outcome := solveOutcome{
		Outcome:     result.Outcome,
		Assignments: result.Assignments,
		Report:      scheduler.Report{UnmetSoftConstraints: []string{}},
		Stats:       result.Stats,
		DurationMs:  elapsed.Milliseconds(),
		duration:    elapsed,
	}
	if outcome.Assignments == nil {
		outcome.Assignments = []models.Assignment{}
	}

	if result.Outcome == scheduler.OutcomeSolved {
		if err := scheduler.Verify(result.Assignments, problem.Rooms, problem.Courses, problem.Instructors, problem.TotalSlots); err != nil {
			s.logger.Error("solver produced an invalid schedule", zap.Error(err))
			return solveOutcome{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "solver produced an invalid schedule")
		}
		outcome.Report = scheduler.Score(result.Assignments, s.scoreOptions())
	} else {
		outcome.Diagnostics = toCourseBlockers(result.Diagnostics)
	}

	// Budget outcomes depend on timing and are not reproducible.
	if s.cache != nil && outcome.Outcome != scheduler.OutcomeBudgetExceeded {
		s.cache.Set(ctx, key, outcome, s.cfg.CacheTTL)
	}
	return outcome, nil
}

func (s *ScheduleSolverService) recordSyncRun(ctx context.Context, problem solveProblem, outcome solveOutcome) string {
	if s.runs == nil {
		return ""
	}
	requestJSON, err := json.Marshal(toRequest(problem))
	if err != nil {
		s.logger.Sugar().Warnw("failed to encode run request", "error", err)
		return ""
	}
	resultJSON, err := json.Marshal(outcome)
	if err != nil {
		s.logger.Sugar().Warnw("failed to encode run result", "error", err)
		return ""
	}

	finished := s.now()
	started := finished.Add(-outcome.duration)
	run := &models.ScheduleRun{
		ID:            uuid.NewString(),
		Mode:          models.RunModeSync,
		Status:        runStatusFor(outcome.Outcome),
		Fingerprint:   fingerprint(problem, s.engineOptions(), s.scoreOptions()),
		TotalSlots:    problem.TotalSlots,
		CourseCount:   len(problem.Courses),
		Request:       types.JSONText(requestJSON),
		Result:        types.JSONText(resultJSON),
		NodesExplored: outcome.Stats.Nodes,
		Backtracks:    outcome.Stats.Backtracks,
		DurationMs:    outcome.DurationMs,
		CreatedAt:     started,
		StartedAt:     &started,
		FinishedAt:    &finished,
	}
	if outcome.Outcome == scheduler.OutcomeSolved {
		run.Score = lo.ToPtr(outcome.Report.Score)
	} else {
		run.ErrorMessage = lo.ToPtr(outcomeError(outcome.Outcome).Message)
	}

	start := time.Now()
	err = s.runs.Create(ctx, run)
	s.metrics.ObserveDBQuery("schedule_runs.create", time.Since(start))
	if err != nil {
		// History is best effort; the caller still gets the result.
		s.logger.Sugar().Warnw("failed to record schedule run", "error", err)
		return ""
	}
	return run.ID
}

func (s *ScheduleSolverService) completeRun(ctx context.Context, runID string, outcome solveOutcome) error {
	resultJSON, err := json.Marshal(outcome)
	if err != nil {
		return jobs.Permanent(fmt.Errorf("encode run result: %w", err))
	}
	result := types.JSONText(resultJSON)
	status := runStatusFor(outcome.Outcome)
	finished := s.now()
	params := repository.UpdateScheduleRunParams{
		Status:        &status,
		Result:        &result,
		NodesExplored: &outcome.Stats.Nodes,
		Backtracks:    &outcome.Stats.Backtracks,
		DurationMs:    &outcome.DurationMs,
		FinishedAt:    &finished,
	}
	if outcome.Outcome == scheduler.OutcomeSolved {
		params.Score = lo.ToPtr(outcome.Report.Score)
	} else {
		params.ErrorMessage = lo.ToPtr(outcomeError(outcome.Outcome).Message)
	}

	start := time.Now()
	err = s.runs.Update(ctx, runID, params)
	s.metrics.ObserveDBQuery("schedule_runs.update", time.Since(start))
	return err
}

func (s *ScheduleSolverService) failRun(ctx context.Context, runID string, cause error) {
	if s.runs == nil {
		return
	}
	failed := models.RunStatusFailed
	msg := cause.Error()
	finished := s.now()
	if err := s.runs.Update(context.WithoutCancel(ctx), runID, repository.UpdateScheduleRunParams{
		Status:       &failed,
		ErrorMessage: &msg,
		FinishedAt:   &finished,
	}); err != nil {
		s.logger.Sugar().Warnw("failed to mark schedule run failed", "run_id", runID, "error", err)
	}
}

func (s *ScheduleSolverService) loadRun(ctx context.Context, id string) (*models.ScheduleRun, error) {
	if s.runs == nil {
		return nil, appErrors.Clone(appErrors.ErrUnavailable, "run history is disabled")
	}
	start := time.Now()
	run, err := s.runs.FindByID(ctx, id)
	s.metrics.ObserveDBQuery("schedule_runs.get", time.Since(start))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "schedule run not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load schedule run")
	}
	return run, nil
}

// observe logs every solve. Only searches that actually ran feed the solve metrics; cache
// hits are counted by the cache service.
func (s *ScheduleSolverService) observe(runID string, mode models.RunMode, outcome solveOutcome) {
	if !outcome.cached {
		s.metrics.ObserveSolve(string(outcome.Outcome), mode, outcome.Stats.Nodes, outcome.duration)
	}
	s.logger.Sugar().Infow("schedule solve finished",
		"run_id", runID,
		"mode", mode,
		"outcome", outcome.Outcome,
		"nodes", outcome.Stats.Nodes,
		"backtracks", outcome.Stats.Backtracks,
		"duration", outcome.duration,
		"cached", outcome.cached,
	)
}

func present(runID string, outcome solveOutcome) (*dto.SolveScheduleResponse, error) {
	if outcome.Outcome == scheduler.OutcomeSolved {
		return solvedResponse(runID, outcome), nil
	}
	return nil, appErrors.WithDetails(outcomeError(outcome.Outcome), dto.InfeasibleDetails{
		RunID:       runID,
		Nodes:       outcome.Stats.Nodes,
		Backtracks:  outcome.Stats.Backtracks,
		Diagnostics: outcome.Diagnostics,
	})
}

func solvedResponse(runID string, outcome solveOutcome) *dto.SolveScheduleResponse {
	return &dto.SolveScheduleResponse{
		RunID:                runID,
		Assignments:          toAssignmentResponses(outcome.Assignments),
		Score:                outcome.Report.Score,
		UnmetSoftConstraints: outcome.Report.UnmetSoftConstraints,
		Stats: &dto.SolveStats{
			Nodes:      outcome.Stats.Nodes,
			Backtracks: outcome.Stats.Backtracks,
			DurationMs: outcome.DurationMs,
			Cached:     outcome.cached,
		},
	}
}

func outcomeError(outcome scheduler.Outcome) *appErrors.Error {
	if outcome == scheduler.OutcomeBudgetExceeded {
		return appErrors.ErrSearchBudgetExceeded
	}
	return appErrors.ErrNoValidSchedule
}

func runStatusFor(outcome scheduler.Outcome) models.RunStatus {
	switch outcome {
	case scheduler.OutcomeSolved:
		return models.RunStatusSolved
	case scheduler.OutcomeInfeasible:
		return models.RunStatusInfeasible
	default:
		return models.RunStatusBudgetExceeded
	}
}

func decodeOutcome(run *models.ScheduleRun) (solveOutcome, bool) {
	if !run.Status.Terminal() || len(run.Result) == 0 {
		return solveOutcome{}, false
	}
	var outcome solveOutcome
	if err := json.Unmarshal(run.Result, &outcome); err != nil || outcome.Outcome == "" {
		return solveOutcome{}, false
	}
	return outcome, true
}

func toRunSummary(run models.ScheduleRun) dto.ScheduleRunSummary {
	return dto.ScheduleRunSummary{
		ID:          run.ID,
		Mode:        string(run.Mode),
		Status:      string(run.Status),
		TotalSlots:  run.TotalSlots,
		CourseCount: run.CourseCount,
		Score:       run.Score,
		Nodes:       run.NodesExplored,
		DurationMs:  run.DurationMs,
		CreatedAt:   run.CreatedAt,
		FinishedAt:  run.FinishedAt,
	}
}
