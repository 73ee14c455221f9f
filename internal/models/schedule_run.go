package models

import (
	"time"

	"github.com/jmoiron/sqlx/types"
)

// RunStatus tracks a solve run through its lifecycle.
type RunStatus string

const (
	RunStatusQueued         RunStatus = "QUEUED"
	RunStatusRunning        RunStatus = "RUNNING"
	RunStatusSolved         RunStatus = "SOLVED"
	RunStatusInfeasible     RunStatus = "INFEASIBLE"
	RunStatusBudgetExceeded RunStatus = "BUDGET_EXCEEDED"
	RunStatusFailed         RunStatus = "FAILED"
)

// Terminal reports whether the run has finished, successfully or not.
func (s RunStatus) Terminal() bool {
	switch s {
	case RunStatusSolved, RunStatusInfeasible, RunStatusBudgetExceeded, RunStatusFailed:
		return true
	default:
		return false
	}
}

// RunMode records how a run was requested.
type RunMode string

const (
	RunModeSync  RunMode = "sync"
	RunModeAsync RunMode = "async"
)

// ScheduleRun is a persisted solve request and its outcome.
type ScheduleRun struct {
	ID            string         `db:"id" json:"id"`
	Mode          RunMode        `db:"mode" json:"mode"`
	Status        RunStatus      `db:"status" json:"status"`
	Fingerprint   string         `db:"fingerprint" json:"fingerprint"`
	TotalSlots    int            `db:"total_slots" json:"total_slots"`
	CourseCount   int            `db:"course_count" json:"course_count"`
	Request       types.JSONText `db:"request" json:"request"`
	Result        types.JSONText `db:"result" json:"result,omitempty"`
	Score         *int           `db:"score" json:"score,omitempty"`
	NodesExplored int64          `db:"nodes_explored" json:"nodes_explored"`
	Backtracks    int64          `db:"backtracks" json:"backtracks"`
	DurationMs    int64          `db:"duration_ms" json:"duration_ms"`
	ErrorMessage  *string        `db:"error_message" json:"error_message,omitempty"`
	CreatedAt     time.Time      `db:"created_at" json:"created_at"`
	StartedAt     *time.Time     `db:"started_at" json:"started_at,omitempty"`
	FinishedAt    *time.Time     `db:"finished_at" json:"finished_at,omitempty"`
}

// ScheduleRunFilter narrows run history listings.
type ScheduleRunFilter struct {
	Status   RunStatus
	Mode     RunMode
	Page     int
	PageSize int
}
