package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"

	"github.com/noah-isme/timetable-solver-api/internal/models"
)

const scheduleRunColumns = `id, mode, status, fingerprint, total_slots, course_count, request, result, score, nodes_explored, backtracks, duration_ms, error_message, created_at, started_at, finished_at`

const scheduleRunSummaryColumns = `id, mode, status, fingerprint, total_slots, course_count, score, nodes_explored, backtracks, duration_ms, error_message, created_at, started_at, finished_at`

// ScheduleRunRepository persists solve runs.
type ScheduleRunRepository struct {
	db *sqlx.DB
}

// NewScheduleRunRepository constructs the repository.
func NewScheduleRunRepository(db *sqlx.DB) *ScheduleRunRepository {
	return &ScheduleRunRepository{db: db}
}

// Create inserts a run, filling in the id, status and timestamps when unset.
func (r *ScheduleRunRepository) Create(ctx context.Context, run *models.ScheduleRun) error {
	if run == nil {
		return fmt.Errorf("schedule run payload is nil")
	}
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.Status == "" {
		run.Status = models.RunStatusQueued
	}
	if run.Mode == "" {
		run.Mode = models.RunModeSync
	}
	if len(run.Request) == 0 {
		run.Request = types.JSONText(`{}`)
	}
	if len(run.Result) == 0 {
		run.Result = types.JSONText(`{}`)
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO schedule_runs (` + scheduleRunColumns + `)
VALUES (:id, :mode, :status, :fingerprint, :total_slots, :course_count, :request, :result, :score, :nodes_explored, :backtracks, :duration_ms, :error_message, :created_at, :started_at, :finished_at)`
	if _, err := r.db.NamedExecContext(ctx, query, run); err != nil {
		return fmt.Errorf("create schedule run: %w", err)
	}
	return nil
}

// FindByID returns a run including its request and result payloads.
func (r *ScheduleRunRepository) FindByID(ctx context.Context, id string) (*models.ScheduleRun, error) {
	const query = `SELECT ` + scheduleRunColumns + ` FROM schedule_runs WHERE id = $1`
	var run models.ScheduleRun
	if err := r.db.GetContext(ctx, &run, query, id); err != nil {
		return nil, fmt.Errorf("get schedule run: %w", err)
	}
	return &run, nil
}

// List returns a page of runs, newest first, without the heavy payload columns.
func (r *ScheduleRunRepository) List(ctx context.Context, filter models.ScheduleRunFilter) ([]models.ScheduleRun, int, error) {
	conditions := make([]string, 0, 2)
	args := make([]interface{}, 0, 4)
	if filter.Status != "" {
		args = append(args, filter.Status)
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.Mode != "" {
		args = append(args, filter.Mode)
		conditions = append(conditions, fmt.Sprintf("mode = $%d", len(args)))
	}
	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM schedule_runs"+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count schedule runs: %w", err)
	}

	page, size := filter.Page, filter.PageSize
	if page <= 0 {
		page = 1
	}
	if size <= 0 {
		size = 20
	}
	args = append(args, size, (page-1)*size)
	query := fmt.Sprintf("SELECT %s FROM schedule_runs%s ORDER BY created_at DESC LIMIT $%d OFFSET $%d",
		scheduleRunSummaryColumns, where, len(args)-1, len(args))

	var runs []models.ScheduleRun
	if err := r.db.SelectContext(ctx, &runs, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list schedule runs: %w", err)
	}
	return runs, total, nil
}

// UpdateScheduleRunParams defines the mutable fields of a run.
type UpdateScheduleRunParams struct {
	Status        *models.RunStatus
	Result        *types.JSONText
	Score         *int
	NodesExplored *int64
	Backtracks    *int64
	DurationMs    *int64
	ErrorMessage  *string
	StartedAt     *time.Time
	FinishedAt    *time.Time
}

// Update persists the provided changes. sql.ErrNoRows is returned when the run does not exist.
func (r *ScheduleRunRepository) Update(ctx context.Context, id string, params UpdateScheduleRunParams) error {
	set := make([]string, 0, 9)
	args := make([]interface{}, 0, 10)
	add := func(column string, value interface{}) {
		args = append(args, value)
		set = append(set, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if params.Status != nil {
		add("status", *params.Status)
	}
	if params.Result != nil {
		add("result", *params.Result)
	}
	if params.Score != nil {
		add("score", *params.Score)
	}
	if params.NodesExplored != nil {
		add("nodes_explored", *params.NodesExplored)
	}
	if params.Backtracks != nil {
		add("backtracks", *params.Backtracks)
	}
	if params.DurationMs != nil {
		add("duration_ms", *params.DurationMs)
	}
	if params.ErrorMessage != nil {
		add("error_message", *params.ErrorMessage)
	}
	if params.StartedAt != nil {
		add("started_at", *params.StartedAt)
	}
	if params.FinishedAt != nil {
		add("finished_at", *params.FinishedAt)
	}

	if len(set) == 0 {
		return nil
	}

	args = append(args, id)
	query := fmt.Sprintf("UPDATE schedule_runs SET %s WHERE id = $%d", strings.Join(set, ", "), len(args))

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update schedule run: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update schedule run rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ListByStatus fetches the oldest runs in the given status, payloads included (used for cold start recovery).
func (r *ScheduleRunRepository) ListByStatus(ctx context.Context, status models.RunStatus, limit int) ([]models.ScheduleRun, error) {
	if limit <= 0 {
		limit = 20
	}
	const query = `SELECT ` + scheduleRunColumns + ` FROM schedule_runs WHERE status = $1 ORDER BY created_at ASC LIMIT $2`
	var runs []models.ScheduleRun
	if err := r.db.SelectContext(ctx, &runs, query, status, limit); err != nil {
		return nil, fmt.Errorf("list schedule runs by status: %w", err)
	}
	return runs, nil
}
