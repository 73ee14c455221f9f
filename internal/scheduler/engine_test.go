package scheduler

import (
	"context"
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/timetable-solver-api/internal/models"
)

type problem struct {
	rooms       []models.Room
	courses     []models.Course
	instructors []models.Instructor
	horizon     int
}

func scenarioA() problem {
	return problem{
		rooms: []models.Room{
			{ID: "R1", Capacity: 30},
			{ID: "R2", Capacity: 50},
			{ID: "R3", Capacity: 20},
		},
		courses: []models.Course{
			{ID: "C1", DurationSlots: 2, RequiredCapacity: 25},
			{ID: "C2", DurationSlots: 3, RequiredCapacity: 15},
			{ID: "C3", DurationSlots: 1, RequiredCapacity: 40},
		},
		instructors: []models.Instructor{
			{ID: "I1", UnavailableSlots: []int{10, 11, 12}},
			{ID: "I2", UnavailableSlots: []int{15, 16}},
			{ID: "I3"},
		},
		horizon: 48,
	}
}

// backtrackProblem forces the engine to undo placements of course A before failing.
func backtrackProblem(horizon int) problem {
	return problem{
		rooms: []models.Room{{ID: "R1", Capacity: 20}},
		courses: []models.Course{
			{ID: "B", DurationSlots: 2, RequiredCapacity: 10},
			{ID: "A", DurationSlots: 1, RequiredCapacity: 20},
		},
		instructors: []models.Instructor{{ID: "I1", UnavailableSlots: []int{2}}},
		horizon:     horizon,
	}
}

func (p problem) engine(opts Options) *Engine {
	return NewEngine(p.rooms, p.courses, p.instructors, p.horizon, opts)
}

func TestEngineScenarioAFeasible(t *testing.T) {
	p := scenarioA()
	engine := p.engine(Options{})

	result := engine.Solve(context.Background())

	require.Equal(t, OutcomeSolved, result.Outcome)
	require.Len(t, result.Assignments, 3)
	require.NoError(t, Verify(result.Assignments, p.rooms, p.courses, p.instructors, p.horizon))
	assert.Equal(t, []models.Assignment{
		{CourseID: "C3", RoomID: "R2", InstructorID: "I1", StartSlot: 0, EndSlot: 0},
		{CourseID: "C1", RoomID: "R1", InstructorID: "I1", StartSlot: 1, EndSlot: 2},
		{CourseID: "C2", RoomID: "R1", InstructorID: "I1", StartSlot: 3, EndSlot: 5},
	}, result.Assignments)
	assert.Equal(t, int64(7), result.Stats.Nodes)
	assert.Zero(t, result.Stats.Backtracks)
	assert.Empty(t, result.Diagnostics)
}

func TestEngineScenarioBInfeasibleByCapacity(t *testing.T) {
	p := problem{
		rooms: []models.Room{{ID: "R1", Capacity: 10}, {ID: "R2", Capacity: 15}},
		courses: []models.Course{
			{ID: "C1", DurationSlots: 2, RequiredCapacity: 30},
			{ID: "C2", DurationSlots: 2, RequiredCapacity: 12},
		},
		instructors: []models.Instructor{{ID: "I1"}},
		horizon:     48,
	}

	result := p.engine(Options{}).Solve(context.Background())

	assert.Equal(t, OutcomeInfeasible, result.Outcome)
	assert.Empty(t, result.Assignments)
	require.Len(t, result.Diagnostics, 1)
	assert.Equal(t, "C1", result.Diagnostics[0].CourseID)
	assert.Equal(t, 2, result.Diagnostics[0].Reasons[ReasonRoomCapacity])
}

func TestEngineScenarioCInfeasibleByHorizon(t *testing.T) {
	p := problem{
		rooms:       []models.Room{{ID: "R1", Capacity: 10}},
		courses:     []models.Course{{ID: "C1", DurationSlots: 5, RequiredCapacity: 1}},
		instructors: []models.Instructor{{ID: "I1"}},
		horizon:     4,
	}

	result := p.engine(Options{}).Solve(context.Background())

	assert.Equal(t, OutcomeInfeasible, result.Outcome)
	require.Len(t, result.Diagnostics, 1)
	assert.Equal(t, 1, result.Diagnostics[0].Reasons[ReasonHorizonTooShort])
}

func TestEngineNoCoursesSucceeds(t *testing.T) {
	result := NewEngine(nil, nil, nil, 48, Options{}).Solve(context.Background())
	assert.Equal(t, OutcomeSolved, result.Outcome)
	assert.Empty(t, result.Assignments)
}

func TestEngineBacktracksToLaterSlot(t *testing.T) {
	p := backtrackProblem(4)
	engine := p.engine(Options{})

	result := engine.Solve(context.Background())

	require.Equal(t, OutcomeSolved, result.Outcome)
	assert.Equal(t, []models.Assignment{
		{CourseID: "A", RoomID: "R1", InstructorID: "I1", StartSlot: 3, EndSlot: 3},
		{CourseID: "B", RoomID: "R1", InstructorID: "I1", StartSlot: 0, EndSlot: 1},
	}, result.Assignments)
	assert.Equal(t, int64(2), result.Stats.Backtracks)
	assert.Equal(t, 1, result.Stats.DeepestCourse)
}

func TestEngineRollbackLeavesStateFreeOnFailure(t *testing.T) {
	p := backtrackProblem(3)
	engine := p.engine(Options{})

	result := engine.Solve(context.Background())

	require.Equal(t, OutcomeInfeasible, result.Outcome)
	assert.Equal(t, int64(2), result.Stats.Backtracks)
	assert.True(t, engine.RoomOccupancy().IsAllFree("R1"))
	assert.True(t, engine.InstructorOccupancy().IsAllFree("I1"))

	require.Len(t, result.Diagnostics, 2)
	assert.Equal(t, "A", result.Diagnostics[0].CourseID)
	assert.Equal(t, 1, result.Diagnostics[0].Reasons[ReasonInstructorUnavailable])
	assert.Equal(t, "B", result.Diagnostics[1].CourseID)
	assert.Equal(t, 3, result.Diagnostics[1].Reasons[ReasonRoomBusy])
}

func TestEngineNodeBudget(t *testing.T) {
	p := backtrackProblem(3)
	engine := p.engine(Options{MaxNodes: 3})

	result := engine.Solve(context.Background())

	assert.Equal(t, OutcomeBudgetExceeded, result.Outcome)
	assert.Empty(t, result.Assignments)
	assert.True(t, engine.RoomOccupancy().IsAllFree("R1"))
	assert.True(t, engine.InstructorOccupancy().IsAllFree("I1"))
}

func TestEngineBudgetLargeEnoughKeepsSolution(t *testing.T) {
	p := scenarioA()
	unbounded := p.engine(Options{}).Solve(context.Background())
	bounded := p.engine(Options{MaxNodes: 7}).Solve(context.Background())

	require.Equal(t, OutcomeSolved, bounded.Outcome)
	assert.Equal(t, unbounded.Assignments, bounded.Assignments)
}

func TestEngineCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result := scenarioA().engine(Options{}).Solve(ctx)

	assert.Equal(t, OutcomeBudgetExceeded, result.Outcome)
}

func TestEngineSkipsTooBusyInstructor(t *testing.T) {
	blocked := make([]int, 40)
	for i := range blocked {
		blocked[i] = i
	}
	p := problem{
		rooms:   []models.Room{{ID: "R1", Capacity: 10}},
		courses: []models.Course{{ID: "C1", DurationSlots: 1, RequiredCapacity: 5}},
		instructors: []models.Instructor{
			{ID: "busy", UnavailableSlots: blocked},
			{ID: "free"},
		},
		horizon: 48,
	}

	result := p.engine(Options{}).Solve(context.Background())
	require.Equal(t, OutcomeSolved, result.Outcome)
	assert.Equal(t, "free", result.Assignments[0].InstructorID)
	assert.Equal(t, 0, result.Assignments[0].StartSlot)

	relaxed := p.engine(Options{TooBusyRatio: 0.9}).Solve(context.Background())
	require.Equal(t, OutcomeSolved, relaxed.Outcome)
	assert.Equal(t, "busy", relaxed.Assignments[0].InstructorID)
	assert.Equal(t, 40, relaxed.Assignments[0].StartSlot)
}

func TestEngineTooBusyBoundaryKeepsInstructorAtRatio(t *testing.T) {
	blockedFirst := func(n int) []int {
		slots := make([]int, n)
		for i := range slots {
			slots[i] = i
		}
		return slots
	}
	build := func(unavailable int) problem {
		return problem{
			rooms:       []models.Room{{ID: "R1", Capacity: 10}},
			courses:     []models.Course{{ID: "C1", DurationSlots: 1, RequiredCapacity: 5}},
			instructors: []models.Instructor{{ID: "I1", UnavailableSlots: blockedFirst(unavailable)}},
			horizon:     10,
		}
	}

	atRatio := build(8).engine(Options{}).Solve(context.Background())
	require.Equal(t, OutcomeSolved, atRatio.Outcome)
	assert.Equal(t, "I1", atRatio.Assignments[0].InstructorID)
	assert.Equal(t, 8, atRatio.Assignments[0].StartSlot)

	overRatio := build(9).engine(Options{}).Solve(context.Background())
	assert.Equal(t, OutcomeInfeasible, overRatio.Outcome)
	assert.Empty(t, overRatio.Assignments)
}

func TestEngineCourseOrderIsStable(t *testing.T) {
	courses := []models.Course{
		{ID: "small", DurationSlots: 1, RequiredCapacity: 5},
		{ID: "tie-1", DurationSlots: 2, RequiredCapacity: 10},
		{ID: "long", DurationSlots: 3, RequiredCapacity: 10},
		{ID: "tie-2", DurationSlots: 2, RequiredCapacity: 10},
	}
	order := orderCourses(courses)

	ids := make([]string, len(order))
	for i, c := range order {
		ids[i] = c.ID
	}
	assert.Equal(t, []string{"long", "tie-1", "tie-2", "small"}, ids)
	assert.Equal(t, "small", courses[0].ID, "input must not be reordered")
}

func TestEngineRandomInstancesSatisfyHardConstraints(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 50; i++ {
		p := randomProblem(rng)
		t.Run(fmt.Sprintf("instance-%d", i), func(t *testing.T) {
			engine := p.engine(Options{MaxNodes: 200000})
			result := engine.Solve(context.Background())

			used := map[string]bool{}
			if result.Outcome == OutcomeSolved {
				require.NoError(t, Verify(result.Assignments, p.rooms, p.courses, p.instructors, p.horizon))
				for _, a := range result.Assignments {
					used["room:"+a.RoomID] = true
					used["instructor:"+a.InstructorID] = true
				}
			} else {
				assert.Empty(t, result.Assignments)
			}
			for _, room := range p.rooms {
				if !used["room:"+room.ID] {
					assert.True(t, engine.RoomOccupancy().IsAllFree(room.ID), "room %s", room.ID)
				}
			}
			for _, instructor := range p.instructors {
				if !used["instructor:"+instructor.ID] {
					assert.True(t, engine.InstructorOccupancy().IsAllFree(instructor.ID), "instructor %s", instructor.ID)
				}
			}
		})
	}
}

func randomProblem(rng *rand.Rand) problem {
	horizon := 6 + rng.Intn(10)
	p := problem{horizon: horizon}
	for i := 0; i < 1+rng.Intn(3); i++ {
		p.rooms = append(p.rooms, models.Room{ID: fmt.Sprintf("R%d", i), Capacity: 10 + rng.Intn(40)})
	}
	for i := 0; i < 1+rng.Intn(3); i++ {
		var blocked []int
		for slot := 0; slot < horizon; slot++ {
			if rng.Intn(4) == 0 {
				blocked = append(blocked, slot)
			}
		}
		p.instructors = append(p.instructors, models.Instructor{ID: fmt.Sprintf("I%d", i), UnavailableSlots: blocked})
	}
	for i := 0; i < 1+rng.Intn(5); i++ {
		p.courses = append(p.courses, models.Course{
			ID:               fmt.Sprintf("C%d", i),
			DurationSlots:    1 + rng.Intn(3),
			RequiredCapacity: rng.Intn(45),
		})
	}
	return p
}
