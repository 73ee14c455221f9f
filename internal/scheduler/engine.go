package scheduler

import (
	"context"
	"sort"

	"github.com/noah-isme/timetable-solver-api/internal/models"
)

// DefaultTooBusyRatio is the share of the horizon an instructor may have blocked before the
// engine stops considering them.
const DefaultTooBusyRatio = 0.80

// ctxPollInterval is the number of candidates tried between context checks.
const ctxPollInterval = 1024

// Outcome classifies how a search ended.
type Outcome string

const (
	// OutcomeSolved means every course was placed.
	OutcomeSolved Outcome = "SOLVED"
	// OutcomeInfeasible means the whole search space was exhausted without a solution.
	OutcomeInfeasible Outcome = "INFEASIBLE"
	// OutcomeBudgetExceeded means the search was cut short by the node budget or the
	// context deadline. No claim is made about feasibility.
	OutcomeBudgetExceeded Outcome = "BUDGET_EXCEEDED"
)

// BlockReason names why a candidate placement was rejected.
type BlockReason string

const (
	ReasonRoomCapacity          BlockReason = "room_capacity"
	ReasonInstructorTooBusy     BlockReason = "instructor_too_busy"
	ReasonHorizonTooShort       BlockReason = "horizon_too_short"
	ReasonRoomBusy              BlockReason = "room_busy"
	ReasonInstructorBusy        BlockReason = "instructor_busy"
	ReasonInstructorUnavailable BlockReason = "instructor_unavailable"
)

// Options tunes the engine.
type Options struct {
	// TooBusyRatio skips instructors whose unavailable slot count exceeds this share of the
	// horizon. Values <= 0 fall back to DefaultTooBusyRatio.
	TooBusyRatio float64
	// MaxNodes caps the number of candidate placements examined. Zero means unlimited.
	// The budget is a safeguard added on top of the plain search; it never changes which
	// solution is found when the search completes within it.
	MaxNodes int64
}

// Stats summarises the work done by one search.
type Stats struct {
	Nodes         int64 `json:"nodes"`
	Backtracks    int64 `json:"backtracks"`
	DeepestCourse int   `json:"deepest_course"`
}

// CourseDiagnostic counts rejected candidates for one course, by reason.
type CourseDiagnostic struct {
	CourseID string              `json:"course_id"`
	Reasons  map[BlockReason]int `json:"reasons"`
}

// Result is the output of Solve.
type Result struct {
	Outcome     Outcome
	Assignments []models.Assignment
	Stats       Stats
	Diagnostics []CourseDiagnostic
}

// Engine is a deterministic depth-first backtracking solver.
//
// Courses are tried hardest first (largest required capacity, then longest duration, then
// input order). For each course the engine walks rooms, then instructors, then start slots,
// all in input/ascending order, and returns the first complete placement it finds. There is
// no constraint propagation or memoization beyond skipping undersized rooms and overbooked
// instructors, so the worst case is exponential in courses x rooms x instructors x horizon.
//
// An Engine owns its occupancy state and must not be shared between goroutines.
type Engine struct {
	rooms       []models.Room
	courses     []models.Course
	instructors []models.Instructor
	horizon     int
	opts        Options

	unavailable map[string]map[int]struct{}

	roomBusy       *Occupancy
	instructorBusy *Occupancy
	assignments    []models.Assignment
	stats          Stats
	blocked        map[string]map[BlockReason]int

	ctx     context.Context
	aborted bool
}

// NewEngine prepares a solver for one problem instance.
func NewEngine(rooms []models.Room, courses []models.Course, instructors []models.Instructor, horizon int, opts Options) *Engine {
	if opts.TooBusyRatio <= 0 {
		opts.TooBusyRatio = DefaultTooBusyRatio
	}
	unavailable := make(map[string]map[int]struct{}, len(instructors))
	for _, instructor := range instructors {
		set := make(map[int]struct{}, len(instructor.UnavailableSlots))
		for _, slot := range instructor.UnavailableSlots {
			set[slot] = struct{}{}
		}
		unavailable[instructor.ID] = set
	}
	return &Engine{
		rooms:          rooms,
		courses:        courses,
		instructors:    instructors,
		horizon:        horizon,
		opts:           opts,
		unavailable:    unavailable,
		roomBusy:       NewOccupancy(horizon),
		instructorBusy: NewOccupancy(horizon),
	}
}

// Solve runs the search. Cancelling ctx (or passing its deadline) stops the search with
// OutcomeBudgetExceeded. Infeasibility is reported through Result.Outcome, never as an error.
func (e *Engine) Solve(ctx context.Context) Result {
	if ctx == nil {
		ctx = context.Background()
	}
	e.ctx = ctx
	e.aborted = false
	e.roomBusy = NewOccupancy(e.horizon)
	e.instructorBusy = NewOccupancy(e.horizon)
	e.assignments = make([]models.Assignment, 0, len(e.courses))
	e.stats = Stats{}
	e.blocked = make(map[string]map[BlockReason]int)

	order := orderCourses(e.courses)
	solved := e.place(order, 0)

	result := Result{Stats: e.stats}
	switch {
	case solved:
		result.Outcome = OutcomeSolved
		result.Assignments = append([]models.Assignment(nil), e.assignments...)
	case e.aborted:
		result.Outcome = OutcomeBudgetExceeded
		result.Diagnostics = e.diagnostics(order)
	default:
		result.Outcome = OutcomeInfeasible
		result.Diagnostics = e.diagnostics(order)
	}
	return result
}

// RoomOccupancy exposes the room tracker of the last search.
func (e *Engine) RoomOccupancy() *Occupancy {
	return e.roomBusy
}

// InstructorOccupancy exposes the instructor tracker of the last search.
func (e *Engine) InstructorOccupancy() *Occupancy {
	return e.instructorBusy
}

func orderCourses(courses []models.Course) []models.Course {
	order := make([]models.Course, len(courses))
	copy(order, courses)
	sort.SliceStable(order, func(i, j int) bool {
		if order[i].RequiredCapacity != order[j].RequiredCapacity {
			return order[i].RequiredCapacity > order[j].RequiredCapacity
		}
		return order[i].DurationSlots > order[j].DurationSlots
	})
	return order
}

func (e *Engine) place(order []models.Course, idx int) bool {
	if idx >= len(order) {
		return true
	}
	if idx > e.stats.DeepestCourse {
		e.stats.DeepestCourse = idx
	}

	course := order[idx]
	lastStart := e.horizon - course.DurationSlots

	for _, room := range e.rooms {
		if room.Capacity < course.RequiredCapacity {
			e.block(course.ID, ReasonRoomCapacity)
			continue
		}
		for _, instructor := range e.instructors {
			if e.tooBusy(instructor.ID) {
				e.block(course.ID, ReasonInstructorTooBusy)
				continue
			}
			if lastStart < 0 {
				e.block(course.ID, ReasonHorizonTooShort)
				continue
			}
			for start := 0; start <= lastStart; start++ {
				if !e.spend() {
					return false
				}
				end := start + course.DurationSlots - 1
				if reason := e.check(room.ID, instructor.ID, start, end); reason != "" {
					e.block(course.ID, reason)
					continue
				}

				assignment := models.Assignment{
					CourseID:     course.ID,
					RoomID:       room.ID,
					InstructorID: instructor.ID,
					StartSlot:    start,
					EndSlot:      end,
				}
				e.commit(assignment)
				if e.place(order, idx+1) {
					return true
				}
				e.rollback(assignment)
				if e.aborted {
					return false
				}
			}
		}
	}
	return false
}

func (e *Engine) commit(a models.Assignment) {
	e.assignments = append(e.assignments, a)
	e.roomBusy.MarkRange(a.RoomID, a.StartSlot, a.EndSlot, true)
	e.instructorBusy.MarkRange(a.InstructorID, a.StartSlot, a.EndSlot, true)
}

func (e *Engine) rollback(a models.Assignment) {
	e.assignments = e.assignments[:len(e.assignments)-1]
	e.roomBusy.MarkRange(a.RoomID, a.StartSlot, a.EndSlot, false)
	e.instructorBusy.MarkRange(a.InstructorID, a.StartSlot, a.EndSlot, false)
	e.stats.Backtracks++
}

func (e *Engine) check(roomID, instructorID string, start, end int) BlockReason {
	if !e.roomBusy.IsRangeFree(roomID, start, end) {
		return ReasonRoomBusy
	}
	if !e.instructorBusy.IsRangeFree(instructorID, start, end) {
		return ReasonInstructorBusy
	}
	blocked := e.unavailable[instructorID]
	for slot := start; slot <= end; slot++ {
		if _, ok := blocked[slot]; ok {
			return ReasonInstructorUnavailable
		}
	}
	return ""
}

func (e *Engine) tooBusy(instructorID string) bool {
	return float64(len(e.unavailable[instructorID])) > float64(e.horizon)*e.opts.TooBusyRatio
}

// spend accounts for one candidate and reports whether the search may continue.
func (e *Engine) spend() bool {
	if e.aborted {
		return false
	}
	e.stats.Nodes++
	if e.opts.MaxNodes > 0 && e.stats.Nodes > e.opts.MaxNodes {
		e.aborted = true
		return false
	}
	if (e.stats.Nodes-1)%ctxPollInterval == 0 && e.ctx.Err() != nil {
		e.aborted = true
		return false
	}
	return true
}

func (e *Engine) block(courseID string, reason BlockReason) {
	counts := e.blocked[courseID]
	if counts == nil {
		counts = make(map[BlockReason]int)
		e.blocked[courseID] = counts
	}
	counts[reason]++
}

func (e *Engine) diagnostics(order []models.Course) []CourseDiagnostic {
	result := make([]CourseDiagnostic, 0, len(e.blocked))
	for _, course := range order {
		counts, ok := e.blocked[course.ID]
		if !ok {
			continue
		}
		result = append(result, CourseDiagnostic{CourseID: course.ID, Reasons: counts})
	}
	return result
}
