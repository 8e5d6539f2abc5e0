package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/arazimproject/dibit/internal/app"
	"github.com/arazimproject/dibit/internal/domain"
	"github.com/arazimproject/dibit/internal/selection"
)

// cmdSemesters lists the semesters known to the catalog or the selection
func cmdSemesters() error {
	return withApp(func(ctx context.Context, a *app.App) error {
		active := a.Planner.Semester(ctx, "")
		for _, s := range a.Planner.Semesters(ctx) {
			marker := " "
			if s.Semester == active {
				marker = "*"
			}
			current := ""
			if s.Current {
				current = " (current)"
			}
			fmt.Printf("%s %s  %-12s %2d courses%s\n", marker, s.Semester, s.Name, s.Courses, current)
		}
		return nil
	})
}

// cmdSearch searches the semester catalog
func cmdSearch(args []string) error {
	semFlag, fs := semesterFlags("search", args)
	limit := fs.Int("n", 20, "maximum results")
	rest, err := parseArgs(fs, args)
	if err != nil {
		return err
	}
	query := strings.Join(rest, " ")

	return withApp(func(ctx context.Context, a *app.App) error {
		sem, err := resolveSemester(ctx, a, *semFlag)
		if err != nil {
			return err
		}
		courses := a.Planner.SearchCourses(ctx, sem, query)
		if len(courses) == 0 {
			fmt.Printf("No courses match %q in %s\n", query, sem)
			return nil
		}

		selected := a.Planner.Selection()
		for i, c := range courses {
			if i == *limit {
				fmt.Printf("... and %d more\n", len(courses)-i)
				break
			}
			mark := " "
			if selected.IndexOf(sem, c.ID) >= 0 {
				mark = "✓"
			}
			fmt.Printf("%s %s  %s\n", mark, c.ID, c.Name)
		}
		return nil
	})
}

// cmdAdd selects a course
func cmdAdd(args []string) error {
	semFlag, fs := semesterFlags("add", args)
	rest, err := parseArgs(fs, args)
	if err != nil {
		return err
	}
	if len(rest) != 1 {
		return fmt.Errorf("usage: dibit add [-s semester] <course>")
	}

	return withApp(func(ctx context.Context, a *app.App) error {
		sem, err := resolveSemester(ctx, a, *semFlag)
		if err != nil {
			return err
		}
		if _, err := a.Planner.AddCourse(ctx, sem, rest[0]); err != nil {
			return err
		}
		fmt.Printf("✓ Added %s to %s\n", rest[0], sem)
		return nil
	})
}

// cmdRemove deselects a course
func cmdRemove(args []string) error {
	return updateCourse("remove", args, 0, func(sem, course string, _ []string) selection.Mutation {
		return selection.RemoveCourse(sem, course)
	}, "✓ Removed %s")
}

// cmdGroup toggles a group of a selected course
func cmdGroup(args []string) error {
	semFlag, fs := semesterFlags("group", args)
	rest, err := parseArgs(fs, args)
	if err != nil {
		return err
	}
	if len(rest) != 2 {
		return fmt.Errorf("usage: dibit group [-s semester] <course> <group>")
	}
	course, group := rest[0], rest[1]

	return withApp(func(ctx context.Context, a *app.App) error {
		sem, err := resolveSemester(ctx, a, *semFlag)
		if err != nil {
			return err
		}
		d, err := a.Planner.Update(ctx, selection.ToggleGroup(sem, course, group))
		if err != nil {
			return err
		}
		state := "deselected"
		if i := d.IndexOf(sem, course); i >= 0 && d.Courses[sem][i].HasGroup(group) {
			state = "selected"
		}
		fmt.Printf("✓ Group %s of %s %s\n", group, course, state)
		return nil
	})
}

// cmdMove reorders a selected course
func cmdMove(args []string) error {
	return updateCourse("move", args, 1, func(sem, course string, extra []string) selection.Mutation {
		switch extra[0] {
		case "up":
			return selection.MoveUp(sem, course)
		case "down":
			return selection.MoveDown(sem, course)
		}
		return func(domain.DibIt) (domain.DibIt, error) {
			return domain.DibIt{}, fmt.Errorf("%w: direction must be up or down", domain.ErrInvalidInput)
		}
	}, "✓ Moved %s")
}

// cmdColor sets or clears a course color
func cmdColor(args []string) error {
	semFlag, fs := semesterFlags("color", args)
	rest, err := parseArgs(fs, args)
	if err != nil {
		return err
	}
	if len(rest) < 1 || len(rest) > 2 {
		return fmt.Errorf("usage: dibit color [-s semester] <course> [#rrggbb]")
	}
	color := ""
	if len(rest) == 2 {
		color = rest[1]
	}

	return withApp(func(ctx context.Context, a *app.App) error {
		sem, err := resolveSemester(ctx, a, *semFlag)
		if err != nil {
			return err
		}
		if _, err := a.Planner.Update(ctx, selection.SetColor(sem, rest[0], color)); err != nil {
			return err
		}
		if color == "" {
			fmt.Printf("✓ Color of %s reset to %s\n", rest[0], domain.ColorHash(rest[0]))
		} else {
			fmt.Printf("✓ Color of %s set to %s\n", rest[0], color)
		}
		return nil
	})
}

// cmdCategory sets the study plan category of a selected course
func cmdCategory(args []string) error {
	return updateCourse("category", args, -1, func(sem, course string, extra []string) selection.Mutation {
		return selection.SetStudyPlanCategory(sem, course, strings.Join(extra, " "))
	}, "✓ Category of %s updated")
}

// cmdSetSemester switches the viewed semester
func cmdSetSemester(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: dibit semester <semester>")
	}
	return withApp(func(ctx context.Context, a *app.App) error {
		if _, err := a.Planner.Update(ctx, selection.SetSemester(args[0])); err != nil {
			return err
		}
		sem, _ := domain.ParseSemester(args[0])
		fmt.Printf("✓ Viewing %s (%s)\n", sem, sem.HebrewName())
		return nil
	})
}

// cmdProfile sets the school, study plan and degree start year
func cmdProfile(args []string) error {
	if len(args) != 3 {
		return fmt.Errorf("usage: dibit profile <school> <study-plan> <start-year>")
	}
	year, err := strconv.Atoi(args[2])
	if err != nil {
		return fmt.Errorf("start year must be a number: %w", err)
	}
	return withApp(func(ctx context.Context, a *app.App) error {
		if _, err := a.Planner.Update(ctx, selection.SetProfile(args[0], args[1], year)); err != nil {
			return err
		}
		fmt.Println("✓ Profile updated")
		return nil
	})
}

// cmdPracticed toggles a practiced past exam of a course
func cmdPracticed(args []string) error {
	if len(args) != 3 {
		return fmt.Errorf("usage: dibit practiced <course> <semester> <moed>")
	}
	course, sem, moed := args[0], args[1], args[2]

	return withApp(func(ctx context.Context, a *app.App) error {
		d, err := a.Planner.Update(ctx, selection.TogglePracticedExam(course, sem, moed))
		if err != nil {
			return err
		}
		marker, _ := selection.PracticeMarker(sem, moed)
		state := "unmarked"
		for _, m := range d.PracticedExams[course] {
			if m == marker {
				state = "marked as practiced"
			}
		}
		fmt.Printf("✓ %s %s of %s %s\n", moed, sem, course, state)
		return nil
	})
}

// cmdCustom manages custom course catalogs
func cmdCustom(args []string) error {
	if len(args) < 2 {
		return fmt.Errorf(`usage:
  dibit custom add <name> <file.json>
  dibit custom remove <name>`)
	}

	switch args[0] {
	case "add":
		if len(args) != 3 {
			return fmt.Errorf("usage: dibit custom add <name> <file.json>")
		}
		courses, err := readCustomCourses(args[2])
		if err != nil {
			return err
		}
		return withApp(func(ctx context.Context, a *app.App) error {
			if _, err := a.Planner.Update(ctx, selection.SetCustomCourses(args[1], courses)); err != nil {
				return err
			}
			fmt.Printf("✓ Added %d custom courses as %q\n", len(courses), args[1])
			return nil
		})
	case "remove", "rm":
		return withApp(func(ctx context.Context, a *app.App) error {
			if _, err := a.Planner.Update(ctx, selection.SetCustomCourses(args[1], nil)); err != nil {
				return err
			}
			fmt.Printf("✓ Removed %q\n", args[1])
			return nil
		})
	default:
		return fmt.Errorf("unknown custom command: %s", args[0])
	}
}

// readCustomCourses reads a catalog-shaped JSON file.
func readCustomCourses(path string) (domain.SemesterCourses, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	var courses domain.SemesterCourses
	if err := json.Unmarshal(data, &courses); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrInvalidDocument, path, err)
	}
	if len(courses) == 0 {
		return nil, fmt.Errorf("%w: %s holds no courses", domain.ErrInvalidInput, path)
	}
	return courses, nil
}

// updateCourse runs a mutation on one selected course. extra is the
// number of arguments after the course; -1 accepts any number.
func updateCourse(name string, args []string, extra int, build func(sem, course string, extra []string) selection.Mutation, done string) error {
	semFlag, fs := semesterFlags(name, args)
	rest, err := parseArgs(fs, args)
	if err != nil {
		return err
	}
	if len(rest) < 1 || (extra >= 0 && len(rest) != 1+extra) {
		return fmt.Errorf("usage: dibit %s [-s semester] <course>%s", name, strings.Repeat(" <arg>", max(extra, 0)))
	}

	return withApp(func(ctx context.Context, a *app.App) error {
		sem, err := resolveSemester(ctx, a, *semFlag)
		if err != nil {
			return err
		}
		if _, err := a.Planner.Update(ctx, build(sem, rest[0], rest[1:])); err != nil {
			return err
		}
		fmt.Printf(done+"\n", rest[0])
		return nil
	})
}
