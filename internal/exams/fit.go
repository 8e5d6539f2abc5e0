package exams

import (
	"sort"
	"time"

	"github.com/arazimproject/dibit/internal/domain"
	"github.com/arazimproject/dibit/internal/timeutil"
)

// Fit scores used when ranking candidate courses. Other scores are the
// negated distance in milliseconds between a candidate's first exam and the
// closest exam already in the schedule, so any gap of a second or more
// ranks before ScoreNoExams.
const (
	ScoreTaken     = 1000
	ScoreSelected  = 999
	ScoreNoExams   = -1000
	ScoreNoContext = 0
)

// MillisPerDay converts a distance score to days.
const MillisPerDay = int64(timeutil.Day / time.Millisecond)

// Candidate is a course ranked by how far its exams fall from the
// schedule's exams.
type Candidate struct {
	CourseID string `json:"courseId"`
	Score    int64  `json:"score"`
}

// RankByExamFit orders candidate courses for a study plan view, lowest
// score first: courses whose first exam is farthest from every exam of the
// selected courses lead, courses without exams follow, and courses already
// selected or taken sink to the bottom. When no selected course has an exam
// every course with exams scores ScoreNoContext. Ties keep the input order.
func RankByExamFit(candidates []string, taken, selected map[string]bool, catalog domain.SemesterCourses) []Candidate {
	reference := selectedExamTimes(selected, catalog)

	ranked := make([]Candidate, 0, len(candidates))
	for _, id := range candidates {
		ranked = append(ranked, Candidate{CourseID: id, Score: fitScore(id, reference, taken, selected, catalog)})
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score < ranked[j].Score
	})
	return ranked
}

// selectedExamTimes collects every exam date of the selected courses as
// sorted Unix milliseconds.
func selectedExamTimes(selected map[string]bool, catalog domain.SemesterCourses) []int64 {
	var times []int64
	for id, ok := range selected {
		if !ok {
			continue
		}
		course, found := catalog.Lookup(id)
		if !found {
			continue
		}
		for _, exam := range course.Exams {
			if d, ok := timeutil.ParseDateString(exam.Date); ok {
				times = append(times, d.UnixMilli())
			}
		}
	}
	sort.Slice(times, func(i, j int) bool { return times[i] < times[j] })
	return times
}

func fitScore(id string, reference []int64, taken, selected map[string]bool, catalog domain.SemesterCourses) int64 {
	if taken[id] {
		return ScoreTaken
	}
	if selected[id] {
		return ScoreSelected
	}

	first, ok := firstExam(id, catalog)
	if !ok {
		return ScoreNoExams
	}
	closest, ok := timeutil.ClosestValue(first, reference)
	if !ok {
		return ScoreNoContext
	}
	if closest > first {
		return first - closest
	}
	return closest - first
}

// firstExam returns the first dated sitting of a course in catalog order.
func firstExam(id string, catalog domain.SemesterCourses) (int64, bool) {
	course, ok := catalog.Lookup(id)
	if !ok {
		return 0, false
	}
	for _, exam := range course.Exams {
		if d, ok := timeutil.ParseDateString(exam.Date); ok {
			return d.UnixMilli(), true
		}
	}
	return 0, false
}
