package scheduler

import (
	"errors"
	"fmt"

	"github.com/noah-isme/timetable-solver-api/internal/models"
)

// Verify checks a schedule against every hard constraint and returns all violations joined.
// A nil error means the schedule is acceptable.
func Verify(assignments []models.Assignment, rooms []models.Room, courses []models.Course, instructors []models.Instructor, horizon int) error {
	roomByID := make(map[string]models.Room, len(rooms))
	for _, room := range rooms {
		roomByID[room.ID] = room
	}
	courseByID := make(map[string]models.Course, len(courses))
	for _, course := range courses {
		courseByID[course.ID] = course
	}
	unavailable := make(map[string]map[int]struct{}, len(instructors))
	for _, instructor := range instructors {
		set := make(map[int]struct{}, len(instructor.UnavailableSlots))
		for _, slot := range instructor.UnavailableSlots {
			set[slot] = struct{}{}
		}
		unavailable[instructor.ID] = set
	}

	var errs []error
	placed := make(map[string]int, len(assignments))
	for i, a := range assignments {
		course, ok := courseByID[a.CourseID]
		if !ok {
			errs = append(errs, fmt.Errorf("assignment %d: unknown course %s", i, a.CourseID))
			continue
		}
		placed[a.CourseID]++
		room, ok := roomByID[a.RoomID]
		if !ok {
			errs = append(errs, fmt.Errorf("course %s: unknown room %s", a.CourseID, a.RoomID))
		} else if room.Capacity < course.RequiredCapacity {
			errs = append(errs, fmt.Errorf("course %s: room %s capacity %d below %d", a.CourseID, room.ID, room.Capacity, course.RequiredCapacity))
		}
		blocked, ok := unavailable[a.InstructorID]
		if !ok {
			errs = append(errs, fmt.Errorf("course %s: unknown instructor %s", a.CourseID, a.InstructorID))
		}
		if a.StartSlot < 0 || a.EndSlot >= horizon {
			errs = append(errs, fmt.Errorf("course %s: slots [%d,%d] outside horizon %d", a.CourseID, a.StartSlot, a.EndSlot, horizon))
		}
		if a.Duration() != course.DurationSlots {
			errs = append(errs, fmt.Errorf("course %s: duration %d, want %d", a.CourseID, a.Duration(), course.DurationSlots))
		}
		for slot := a.StartSlot; slot <= a.EndSlot; slot++ {
			if _, hit := blocked[slot]; hit {
				errs = append(errs, fmt.Errorf("course %s: instructor %s unavailable at slot %d", a.CourseID, a.InstructorID, slot))
				break
			}
		}
		for _, b := range assignments[:i] {
			if !a.Overlaps(b) {
				continue
			}
			if a.RoomID == b.RoomID {
				errs = append(errs, fmt.Errorf("room %s double booked by %s and %s", a.RoomID, b.CourseID, a.CourseID))
			}
			if a.InstructorID == b.InstructorID {
				errs = append(errs, fmt.Errorf("instructor %s double booked by %s and %s", a.InstructorID, b.CourseID, a.CourseID))
			}
		}
	}
	for _, course := range courses {
		if placed[course.ID] != 1 {
			errs = append(errs, fmt.Errorf("course %s placed %d times", course.ID, placed[course.ID]))
		}
	}
	return errors.Join(errs...)
}
