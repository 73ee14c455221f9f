package scheduler

import (
	"fmt"
	"sort"

	"github.com/samber/lo"

	"github.com/noah-isme/timetable-solver-api/internal/models"
)

// DefaultMorningCutoff is the first slot that no longer counts as morning.
const DefaultMorningCutoff = 24

const msgFewMorningClasses = "Less than half of classes are in the morning"

// ScoreOptions tunes the soft-constraint pass.
type ScoreOptions struct {
	MorningCutoff int
}

// Report is the soft-constraint evaluation of a complete schedule.
type Report struct {
	Score                int      `json:"score"`
	UnmetSoftConstraints []string `json:"unmetSoftConstraints"`
}

// Score rewards classes starting before the morning cutoff and penalises every pair of
// consecutive classes of one instructor separated by at most one slot. The input is not
// modified.
func Score(assignments []models.Assignment, opts ScoreOptions) Report {
	cutoff := opts.MorningCutoff
	if cutoff <= 0 {
		cutoff = DefaultMorningCutoff
	}
	report := Report{UnmetSoftConstraints: []string{}}

	morning := lo.CountBy(assignments, func(a models.Assignment) bool {
		return a.StartSlot < cutoff
	})
	report.Score += morning
	if len(assignments) > 0 && 2*morning < len(assignments) {
		report.UnmetSoftConstraints = append(report.UnmetSoftConstraints, msgFewMorningClasses)
	}

	groups := lo.GroupBy(assignments, func(a models.Assignment) string {
		return a.InstructorID
	})
	instructorOrder := lo.Uniq(lo.Map(assignments, func(a models.Assignment, _ int) string {
		return a.InstructorID
	}))
	for _, instructorID := range instructorOrder {
		blocks := groups[instructorID]
		sort.SliceStable(blocks, func(i, j int) bool {
			return blocks[i].StartSlot < blocks[j].StartSlot
		})
		for i := 1; i < len(blocks); i++ {
			if blocks[i].StartSlot-blocks[i-1].EndSlot > 1 {
				continue
			}
			report.Score--
			report.UnmetSoftConstraints = append(report.UnmetSoftConstraints,
				fmt.Sprintf("Instructor %s has classes too close together", instructorID))
		}
	}
	return report
}
