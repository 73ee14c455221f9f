package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/noah-isme/timetable-solver-api/pkg/errors"
)

func intPtr(v int) *int { return &v }

func TestNewRoom(t *testing.T) {
	room, err := NewRoom("R1", intPtr(30))
	require.NoError(t, err)
	assert.Equal(t, Room{ID: "R1", Capacity: 30}, room)

	_, err = NewRoom("R1", nil)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	_, err = NewRoom("", intPtr(1))
	require.Error(t, err)
}

func TestNewCourseRejectsNonPositiveDuration(t *testing.T) {
	_, err := NewCourse("C1", intPtr(0), intPtr(10))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	course, err := NewCourse("C1", intPtr(2), intPtr(0))
	require.NoError(t, err)
	assert.Equal(t, 2, course.DurationSlots)
}

func TestNewInstructorNormalisesSlots(t *testing.T) {
	instructor, err := NewInstructor("I1", []int{12, 10, 12, 11})
	require.NoError(t, err)
	assert.Equal(t, []int{10, 11, 12}, instructor.UnavailableSlots)

	instructor, err = NewInstructor("I2", nil)
	require.NoError(t, err)
	assert.NotNil(t, instructor.UnavailableSlots)
	assert.Empty(t, instructor.UnavailableSlots)

	_, err = NewInstructor("I3", []int{-1})
	require.Error(t, err)
}

func TestAssignmentDurationAndOverlap(t *testing.T) {
	a := Assignment{StartSlot: 3, EndSlot: 5}
	assert.Equal(t, 3, a.Duration())
	assert.True(t, a.Overlaps(Assignment{StartSlot: 5, EndSlot: 6}))
	assert.False(t, a.Overlaps(Assignment{StartSlot: 6, EndSlot: 7}))
}
