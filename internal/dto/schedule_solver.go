package dto

import "time"

// RoomInput is a room as supplied by the client. Pointer fields distinguish absent from zero.
type RoomInput struct {
	ID       string `json:"id" validate:"required"`
	Capacity *int   `json:"capacity" validate:"required,min=0"`
}

// CourseInput is a course to be placed.
type CourseInput struct {
	ID               string `json:"id" validate:"required"`
	DurationSlots    *int   `json:"duration_slots" validate:"required,min=1"`
	RequiredCapacity *int   `json:"required_capacity" validate:"required,min=0"`
}

// InstructorInput lists the slots an instructor cannot teach in.
type InstructorInput struct {
	ID               string `json:"id" validate:"required"`
	UnavailableSlots []int  `json:"unavailable_slots" validate:"omitempty,dive,min=0"`
}

// SolveScheduleRequest is one scheduling problem. TotalSlots defaults to the configured horizon.
type SolveScheduleRequest struct {
	TotalSlots  *int              `json:"total_slots" validate:"omitempty,min=1"`
	Rooms       []RoomInput       `json:"rooms" validate:"omitempty,unique=ID,dive"`
	Courses     []CourseInput     `json:"courses" validate:"omitempty,unique=ID,dive"`
	Instructors []InstructorInput `json:"instructors" validate:"omitempty,unique=ID,dive"`
}

// SolveScheduleEnvelope accepts the problem either at the top level or under "schedule".
type SolveScheduleEnvelope struct {
	SolveScheduleRequest
	Schedule *SolveScheduleRequest `json:"schedule"`
}

// Unwrap returns the wrapped problem when present.
func (e SolveScheduleEnvelope) Unwrap() SolveScheduleRequest {
	if e.Schedule != nil {
		return *e.Schedule
	}
	return e.SolveScheduleRequest
}

// AssignmentResponse is one placed course.
type AssignmentResponse struct {
	CourseID     string `json:"course_id"`
	RoomID       string `json:"room_id"`
	InstructorID string `json:"instructor_id"`
	StartSlot    int    `json:"start_slot"`
	EndSlot      int    `json:"end_slot"`
	Duration     int    `json:"duration"`
}

// SolveScheduleResponse is the outcome of a successful solve.
type SolveScheduleResponse struct {
	RunID                string               `json:"runId,omitempty"`
	Assignments          []AssignmentResponse `json:"assignments"`
	Score                int                  `json:"score"`
	UnmetSoftConstraints []string             `json:"unmetSoftConstraints"`
	Stats                *SolveStats          `json:"stats,omitempty"`
}

// SolveStats reports search effort.
type SolveStats struct {
	Nodes      int64 `json:"nodes"`
	Backtracks int64 `json:"backtracks"`
	DurationMs int64 `json:"durationMs"`
	Cached     bool  `json:"cached"`
}

// CourseBlockers explains why a course could not be placed, counting rejected candidates by reason.
type CourseBlockers struct {
	CourseID string         `json:"course_id"`
	Reasons  map[string]int `json:"reasons"`
}

// InfeasibleDetails is attached to NO_VALID_SCHEDULE and SEARCH_BUDGET_EXCEEDED errors.
type InfeasibleDetails struct {
	RunID       string           `json:"runId,omitempty"`
	Nodes       int64            `json:"nodes"`
	Backtracks  int64            `json:"backtracks"`
	Diagnostics []CourseBlockers `json:"diagnostics,omitempty"`
}

// AsyncSolveResponse acknowledges a queued solve.
type AsyncSolveResponse struct {
	RunID  string `json:"runId"`
	Status string `json:"status"`
}

// ScheduleRunQuery filters run history listings.
type ScheduleRunQuery struct {
	Status   string `form:"status" json:"status" validate:"omitempty,oneof=QUEUED RUNNING SOLVED INFEASIBLE BUDGET_EXCEEDED FAILED"`
	Mode     string `form:"mode" json:"mode" validate:"omitempty,oneof=sync async"`
	Page     int    `form:"page" json:"page" validate:"omitempty,min=1"`
	PageSize int    `form:"pageSize" json:"pageSize" validate:"omitempty,min=1,max=100"`
}

// ScheduleRunSummary is a listing row.
type ScheduleRunSummary struct {
	ID          string     `json:"id"`
	Mode        string     `json:"mode"`
	Status      string     `json:"status"`
	TotalSlots  int        `json:"totalSlots"`
	CourseCount int        `json:"courseCount"`
	Score       *int       `json:"score,omitempty"`
	Nodes       int64      `json:"nodes"`
	DurationMs  int64      `json:"durationMs"`
	CreatedAt   time.Time  `json:"createdAt"`
	FinishedAt  *time.Time `json:"finishedAt,omitempty"`
}

// ScheduleRunDetail is a full run including its input and, once finished, its outcome.
type ScheduleRunDetail struct {
	ScheduleRunSummary
	Backtracks   int64                  `json:"backtracks"`
	ErrorMessage *string                `json:"errorMessage,omitempty"`
	Request      SolveScheduleRequest   `json:"request"`
	Result       *SolveScheduleResponse `json:"result,omitempty"`
	Diagnostics  []CourseBlockers       `json:"diagnostics,omitempty"`
}

// ExportScheduleRequest selects the export format.
type ExportScheduleRequest struct {
	Format string `form:"format" json:"format" validate:"omitempty,oneof=csv pdf"`
}

// ExportScheduleResponse carries a signed download link.
type ExportScheduleResponse struct {
	RunID       string    `json:"runId"`
	Format      string    `json:"format"`
	DownloadURL string    `json:"downloadUrl"`
	ExpiresAt   time.Time `json:"expiresAt"`
}
