package scheduler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/timetable-solver-api/internal/models"
)

func TestVerifyReportsEveryViolation(t *testing.T) {
	p := scenarioA()
	assignments := []models.Assignment{
		{CourseID: "C3", RoomID: "R3", InstructorID: "I1", StartSlot: 10, EndSlot: 10},
		{CourseID: "C1", RoomID: "R1", InstructorID: "I2", StartSlot: 0, EndSlot: 2},
		{CourseID: "C2", RoomID: "R1", InstructorID: "I2", StartSlot: 2, EndSlot: 4},
	}

	err := Verify(assignments, p.rooms, p.courses, p.instructors, p.horizon)
	require.Error(t, err)
	msg := err.Error()
	assert.Contains(t, msg, "room R3 capacity 20 below 40")
	assert.Contains(t, msg, "instructor I1 unavailable at slot 10")
	assert.Contains(t, msg, "course C1: duration 3, want 2")
	assert.Contains(t, msg, "room R1 double booked by C1 and C2")
	assert.Contains(t, msg, "instructor I2 double booked by C1 and C2")
}

func TestVerifyMissingCourseAndHorizon(t *testing.T) {
	p := scenarioA()
	assignments := []models.Assignment{
		{CourseID: "C3", RoomID: "R2", InstructorID: "I3", StartSlot: 48, EndSlot: 48},
	}

	err := Verify(assignments, p.rooms, p.courses, p.instructors, p.horizon)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "outside horizon 48")
	assert.Contains(t, err.Error(), "course C1 placed 0 times")
}
