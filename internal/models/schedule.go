package models

import (
	"fmt"
	"sort"

	appErrors "github.com/noah-isme/timetable-solver-api/pkg/errors"
)

// Room is a physical location able to host a course of up to Capacity attendees.
type Room struct {
	ID       string `json:"id"`
	Capacity int    `json:"capacity"`
}

// Course is a class that must be placed on a contiguous block of DurationSlots slots.
type Course struct {
	ID               string `json:"id"`
	DurationSlots    int    `json:"duration_slots"`
	RequiredCapacity int    `json:"required_capacity"`
}

// Instructor teaches courses and may be unavailable for some slots.
type Instructor struct {
	ID               string `json:"id"`
	UnavailableSlots []int  `json:"unavailable_slots"`
}

// Assignment places one course in a room with an instructor over [StartSlot, EndSlot].
type Assignment struct {
	CourseID     string `json:"course_id"`
	RoomID       string `json:"room_id"`
	InstructorID string `json:"instructor_id"`
	StartSlot    int    `json:"start_slot"`
	EndSlot      int    `json:"end_slot"`
}

// Duration is the number of slots covered, both ends inclusive.
func (a Assignment) Duration() int {
	return a.EndSlot - a.StartSlot + 1
}

// Overlaps reports whether the two slot ranges share at least one slot.
func (a Assignment) Overlaps(other Assignment) bool {
	return a.StartSlot <= other.EndSlot && other.StartSlot <= a.EndSlot
}

// NewRoom builds a room from raw input, rejecting absent or negative fields.
func NewRoom(id string, capacity *int) (Room, error) {
	if id == "" {
		return Room{}, appErrors.Clone(appErrors.ErrValidation, "room id is required")
	}
	if capacity == nil {
		return Room{}, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("room %s: capacity is required", id))
	}
	if *capacity < 0 {
		return Room{}, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("room %s: capacity must be >= 0", id))
	}
	return Room{ID: id, Capacity: *capacity}, nil
}

// NewCourse builds a course from raw input.
func NewCourse(id string, durationSlots, requiredCapacity *int) (Course, error) {
	if id == "" {
		return Course{}, appErrors.Clone(appErrors.ErrValidation, "course id is required")
	}
	if durationSlots == nil || requiredCapacity == nil {
		return Course{}, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("course %s: duration_slots and required_capacity are required", id))
	}
	if *durationSlots <= 0 {
		return Course{}, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("course %s: duration_slots must be > 0", id))
	}
	if *requiredCapacity < 0 {
		return Course{}, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("course %s: required_capacity must be >= 0", id))
	}
	return Course{ID: id, DurationSlots: *durationSlots, RequiredCapacity: *requiredCapacity}, nil
}

// NewInstructor builds an instructor. Unavailable slots are copied, sorted and deduplicated;
// a nil list means the instructor is always available.
func NewInstructor(id string, unavailable []int) (Instructor, error) {
	if id == "" {
		return Instructor{}, appErrors.Clone(appErrors.ErrValidation, "instructor id is required")
	}
	slots := make([]int, 0, len(unavailable))
	seen := make(map[int]struct{}, len(unavailable))
	for _, slot := range unavailable {
		if slot < 0 {
			return Instructor{}, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("instructor %s: unavailable slot %d must be >= 0", id, slot))
		}
		if _, dup := seen[slot]; dup {
			continue
		}
		seen[slot] = struct{}{}
		slots = append(slots, slot)
	}
	sort.Ints(slots)
	return Instructor{ID: id, UnavailableSlots: slots}, nil
}
