package service

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/samber/lo"

	"github.com/noah-isme/timetable-solver-api/internal/dto"
	"github.com/noah-isme/timetable-solver-api/internal/models"
	"github.com/noah-isme/timetable-solver-api/internal/scheduler"
	appErrors "github.com/noah-isme/timetable-solver-api/pkg/errors"
)

// solveProblem is a validated, immutable scheduling instance.
type solveProblem struct {
	Rooms       []models.Room       `json:"rooms"`
	Courses     []models.Course     `json:"courses"`
	Instructors []models.Instructor `json:"instructors"`
	TotalSlots  int                 `json:"total_slots"`
}

// FieldError describes one rejected request field.
type FieldError struct {
	Field string `json:"field"`
	Rule  string `json:"rule"`
	Param string `json:"param,omitempty"`
}

// problemLimits bounds request size. Zero MaxCourses means unlimited; MaxTotalSlots is always enforced
// because every room and instructor holds one slot per horizon step.
type problemLimits struct {
	DefaultTotalSlots int
	MaxTotalSlots     int
	MaxCourses        int
}

func buildProblem(validate *validator.Validate, req dto.SolveScheduleRequest, limits problemLimits) (solveProblem, error) {
	if err := validate.Struct(req); err != nil {
		appErr := appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid schedule payload")
		if fieldErrs, ok := err.(validator.ValidationErrors); ok {
			appErr.Details = lo.Map(fieldErrs, func(fe validator.FieldError, _ int) FieldError {
				return FieldError{Field: trimNamespace(fe.Namespace()), Rule: fe.Tag(), Param: fe.Param()}
			})
		}
		return solveProblem{}, appErr
	}
	if limits.MaxCourses > 0 && len(req.Courses) > limits.MaxCourses {
		return solveProblem{}, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("at most %d courses may be scheduled per request", limits.MaxCourses))
	}

	problem := solveProblem{TotalSlots: limits.DefaultTotalSlots}
	if req.TotalSlots != nil {
		problem.TotalSlots = *req.TotalSlots
	}
	if problem.TotalSlots <= 0 {
		return solveProblem{}, appErrors.Clone(appErrors.ErrValidation, "total_slots must be > 0")
	}
	if problem.TotalSlots > limits.MaxTotalSlots {
		return solveProblem{}, appErrors.WithDetails(
			appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("total_slots must be at most %d", limits.MaxTotalSlots)),
			[]FieldError{{Field: "TotalSlots", Rule: "max", Param: strconv.Itoa(limits.MaxTotalSlots)}},
		)
	}

	problem.Rooms = make([]models.Room, 0, len(req.Rooms))
	for _, in := range req.Rooms {
		room, err := models.NewRoom(in.ID, in.Capacity)
		if err != nil {
			return solveProblem{}, err
		}
		problem.Rooms = append(problem.Rooms, room)
	}
	problem.Courses = make([]models.Course, 0, len(req.Courses))
	for _, in := range req.Courses {
		course, err := models.NewCourse(in.ID, in.DurationSlots, in.RequiredCapacity)
		if err != nil {
			return solveProblem{}, err
		}
		problem.Courses = append(problem.Courses, course)
	}
	problem.Instructors = make([]models.Instructor, 0, len(req.Instructors))
	for _, in := range req.Instructors {
		instructor, err := models.NewInstructor(in.ID, in.UnavailableSlots)
		if err != nil {
			return solveProblem{}, err
		}
		problem.Instructors = append(problem.Instructors, instructor)
	}
	return problem, nil
}

// trimNamespace drops the root struct name: "SolveScheduleRequest.Rooms[0].Capacity" -> "Rooms[0].Capacity".
func trimNamespace(ns string) string {
	if idx := strings.Index(ns, "."); idx >= 0 {
		return ns[idx+1:]
	}
	return ns
}

// fingerprint identifies a problem together with every option that can change the outcome.
// Input order is kept because it drives the search order.
func fingerprint(problem solveProblem, opts scheduler.Options, score scheduler.ScoreOptions) string {
	payload, _ := json.Marshal(struct {
		Problem       solveProblem `json:"problem"`
		TooBusyRatio  float64      `json:"too_busy_ratio"`
		MaxNodes      int64        `json:"max_nodes"`
		MorningCutoff int          `json:"morning_cutoff"`
	}{problem, opts.TooBusyRatio, opts.MaxNodes, score.MorningCutoff})
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}

func toRequest(problem solveProblem) dto.SolveScheduleRequest {
	slots := problem.TotalSlots
	return dto.SolveScheduleRequest{
		TotalSlots: &slots,
		Rooms: lo.Map(problem.Rooms, func(r models.Room, _ int) dto.RoomInput {
			return dto.RoomInput{ID: r.ID, Capacity: lo.ToPtr(r.Capacity)}
		}),
		Courses: lo.Map(problem.Courses, func(c models.Course, _ int) dto.CourseInput {
			return dto.CourseInput{ID: c.ID, DurationSlots: lo.ToPtr(c.DurationSlots), RequiredCapacity: lo.ToPtr(c.RequiredCapacity)}
		}),
		Instructors: lo.Map(problem.Instructors, func(i models.Instructor, _ int) dto.InstructorInput {
			return dto.InstructorInput{ID: i.ID, UnavailableSlots: i.UnavailableSlots}
		}),
	}
}

func toAssignmentResponses(assignments []models.Assignment) []dto.AssignmentResponse {
	return lo.Map(assignments, func(a models.Assignment, _ int) dto.AssignmentResponse {
		return dto.AssignmentResponse{
			CourseID:     a.CourseID,
			RoomID:       a.RoomID,
			InstructorID: a.InstructorID,
			StartSlot:    a.StartSlot,
			EndSlot:      a.EndSlot,
			Duration:     a.Duration(),
		}
	})
}

func toCourseBlockers(diagnostics []scheduler.CourseDiagnostic) []dto.CourseBlockers {
	return lo.Map(diagnostics, func(d scheduler.CourseDiagnostic, _ int) dto.CourseBlockers {
		return dto.CourseBlockers{
			CourseID: d.CourseID,
			Reasons: lo.MapKeys(d.Reasons, func(_ int, reason scheduler.BlockReason) string {
				return string(reason)
			}),
		}
	})
}
