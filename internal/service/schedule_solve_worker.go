package service

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/noah-isme/timetable-solver-api/pkg/jobs"
)

// SolveWorker bridges queue jobs to ScheduleSolverService.
type SolveWorker struct {
	solver *ScheduleSolverService
	logger *zap.Logger
}

// NewSolveWorker constructs a worker.
func NewSolveWorker(solver *ScheduleSolverService, logger *zap.Logger) *SolveWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SolveWorker{solver: solver, logger: logger}
}

// Handle processes a queued run. The payload is the run id.
func (w *SolveWorker) Handle(ctx context.Context, job jobs.Job[string]) error {
	err := w.solver.processRun(ctx, job.Payload)
	if err != nil && !errors.Is(err, context.Canceled) {
		w.logger.Sugar().Warnw("schedule run attempt failed", "run_id", job.Payload, "attempt", job.Attempt, "error", err)
	}
	return err
}

// MarkFailed records a run whose retries were exhausted.
func (w *SolveWorker) MarkFailed(job jobs.Job[string], err error) {
	if errors.Is(err, context.Canceled) {
		return
	}
	w.solver.failRun(context.Background(), job.Payload, err)
}
