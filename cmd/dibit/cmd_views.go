package main

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/arazimproject/dibit/internal/app"
	"github.com/arazimproject/dibit/internal/exams"
	"github.com/arazimproject/dibit/internal/planner"
)

// cmdSchedule prints the weekly schedule
func cmdSchedule(args []string) error {
	semFlag, fs := semesterFlags("schedule", args)
	if _, err := parseArgs(fs, args); err != nil {
		return err
	}

	return withApp(func(ctx context.Context, a *app.App) error {
		sem, err := resolveSemester(ctx, a, *semFlag)
		if err != nil {
			return err
		}
		fmt.Print(renderSchedule(a.Planner.Schedule(ctx, sem)))
		return nil
	})
}

// renderSchedule lists the events of each day with the weekly totals.
func renderSchedule(view planner.ScheduleView) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Schedule %s\n", view.Semester)

	if view.Week.Len() == 0 {
		b.WriteString("\nNo lessons selected. Use 'dibit group <course> <group>'.\n")
		return b.String()
	}

	for _, day := range view.Week {
		if len(day) == 0 {
			continue
		}
		fmt.Fprintf(&b, "\n%s\n", day[0].Day.HebrewName())
		for _, e := range day {
			fmt.Fprintf(&b, "  %02d:00-%02d:00  %-9s %s", e.StartHour, e.EndHour, e.CourseID, e.Title)
			if e.Subtitle != "" {
				fmt.Fprintf(&b, " (%s)", e.Subtitle)
			}
			b.WriteString("\n")
		}
	}

	fmt.Fprintf(&b, "\nWeekly hours: %d\n", view.Hours)
	for _, o := range view.Overlaps {
		fmt.Fprintf(&b, "⚠ %s: %s overlaps %s\n", o.Day.HebrewName(), o.First.Title, o.Second.Title)
	}
	return b.String()
}

// cmdExams prints the exam timeline
func cmdExams(args []string) error {
	semFlag, fs := semesterFlags("exams", args)
	first := fs.Bool("first", false, "only the first exam of each course")
	if _, err := parseArgs(fs, args); err != nil {
		return err
	}

	return withApp(func(ctx context.Context, a *app.App) error {
		sem, err := resolveSemester(ctx, a, *semFlag)
		if err != nil {
			return err
		}
		timeline := a.Planner.Exams(ctx, sem)
		if *first {
			timeline = timeline.FirstPerCourse()
		}
		fmt.Print(renderExams(sem, timeline))
		return nil
	})
}

// renderExams prints one line per exam with the gap since the previous one.
func renderExams(sem string, timeline exams.Timeline) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Exams %s\n\n", sem)

	if timeline.Len() == 0 {
		b.WriteString("No exams for the selected courses.\n")
		return b.String()
	}

	for _, g := range timeline.Gaps() {
		e := g.Entry
		gap := "+" + g.Label
		if g.First {
			gap = g.Label
		}
		mark := " "
		if g.Collision {
			mark = "!"
		}
		fmt.Fprintf(&b, "%s %-6s %s  מועד %s  %-9s %s", mark, gap, e.Date.Format("02/01/2006"), e.Moed, e.CourseID, e.CourseName)
		if e.Hour != "" {
			fmt.Fprintf(&b, " %s", e.Hour)
		}
		b.WriteString("\n")
	}

	if n := len(timeline.Collisions()); n > 0 {
		fmt.Fprintf(&b, "\n%d day(s) with more than one exam (!)\n", n)
	}
	return b.String()
}

// cmdPrereq checks prerequisites of the selected courses
func cmdPrereq(args []string) error {
	semFlag, fs := semesterFlags("prereq", args)
	if _, err := parseArgs(fs, args); err != nil {
		return err
	}

	return withApp(func(ctx context.Context, a *app.App) error {
		sem, err := resolveSemester(ctx, a, *semFlag)
		if err != nil {
			return err
		}

		verdicts := a.Planner.Prerequisites(ctx, sem)
		if len(verdicts) == 0 {
			fmt.Printf("No courses selected in %s\n", sem)
			return nil
		}
		ids := make([]string, 0, len(verdicts))
		for id := range verdicts {
			ids = append(ids, id)
		}
		sort.Strings(ids)

		for _, id := range ids {
			v := verdicts[id]
			if v.Satisfied {
				fmt.Printf("✓ %s\n", id)
				continue
			}
			fmt.Printf("✗ %s  missing: %s\n", id, v.Missing)
		}
		return nil
	})
}

// cmdRank orders candidate courses so the ones whose exams fall farthest
// from the selected courses' exams come first
func cmdRank(args []string) error {
	semFlag, fs := semesterFlags("rank", args)
	candidates, err := parseArgs(fs, args)
	if err != nil {
		return err
	}
	if len(candidates) == 0 {
		return fmt.Errorf("usage: dibit rank [-s semester] <course...>")
	}

	return withApp(func(ctx context.Context, a *app.App) error {
		sem, err := resolveSemester(ctx, a, *semFlag)
		if err != nil {
			return err
		}
		for i, c := range a.Planner.RankCandidates(ctx, sem, candidates) {
			fmt.Printf("%2d. %-9s %s\n", i+1, c.CourseID, scoreLabel(c.Score))
		}
		return nil
	})
}

// scoreLabel describes an exam fit score.
func scoreLabel(score int64) string {
	switch score {
	case exams.ScoreTaken:
		return "already taken"
	case exams.ScoreSelected:
		return "already selected"
	case exams.ScoreNoExams:
		return "no exams"
	case exams.ScoreNoContext:
		return "same day as a selected exam, or nothing to compare"
	}
	return fmt.Sprintf("%d days from the nearest selected exam", -score/exams.MillisPerDay)
}
