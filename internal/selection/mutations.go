package selection

import (
	"fmt"

	"github.com/arazimproject/dibit/internal/domain"
)

// Mutation produces the next document from the current one. The argument
// is a private copy and may be modified in place.
type Mutation func(d domain.DibIt) (domain.DibIt, error)

func parseSemester(s string) (string, error) {
	sem, err := domain.ParseSemester(s)
	if err != nil {
		return "", err
	}
	return sem.String(), nil
}

func locate(d domain.DibIt, semester, courseID string) (int, error) {
	i := d.IndexOf(semester, courseID)
	if i < 0 {
		return -1, fmt.Errorf("%w: %s in %s", domain.ErrCourseNotSelected, courseID, semester)
	}
	return i, nil
}

// AddCourse appends a course to a semester. Adding a course that is
// already selected leaves the document unchanged.
func AddCourse(semester, courseID string) Mutation {
	return func(d domain.DibIt) (domain.DibIt, error) {
		sem, err := parseSemester(semester)
		if err != nil {
			return d, err
		}
		if courseID == "" {
			return d, fmt.Errorf("%w: empty course ID", domain.ErrInvalidInput)
		}
		if d.IndexOf(sem, courseID) >= 0 {
			return d, nil
		}
		if d.Courses == nil {
			d.Courses = make(map[string][]domain.DibItCourse)
		}
		d.Courses[sem] = append(d.Courses[sem], domain.DibItCourse{ID: courseID})
		return d, nil
	}
}

// RemoveCourse deletes a course from a semester.
func RemoveCourse(semester, courseID string) Mutation {
	return func(d domain.DibIt) (domain.DibIt, error) {
		i, err := locate(d, semester, courseID)
		if err != nil {
			return d, err
		}
		courses := d.Courses[semester]
		d.Courses[semester] = append(courses[:i:i], courses[i+1:]...)
		if len(d.Courses[semester]) == 0 {
			delete(d.Courses, semester)
		}
		return d, nil
	}
}

// Swap exchanges the courses at positions i and i+1. Applying it twice
// restores the original order.
func Swap(semester string, i int) Mutation {
	return func(d domain.DibIt) (domain.DibIt, error) {
		courses := d.Courses[semester]
		if i < 0 || i+1 >= len(courses) {
			return d, fmt.Errorf("%w: %d in %s", domain.ErrInvalidPosition, i, semester)
		}
		courses[i], courses[i+1] = courses[i+1], courses[i]
		return d, nil
	}
}

// MoveUp moves a course one position towards the start of the list.
func MoveUp(semester, courseID string) Mutation {
	return func(d domain.DibIt) (domain.DibIt, error) {
		i, err := locate(d, semester, courseID)
		if err != nil {
			return d, err
		}
		return Swap(semester, i-1)(d)
	}
}

// MoveDown moves a course one position towards the end of the list.
func MoveDown(semester, courseID string) Mutation {
	return func(d domain.DibIt) (domain.DibIt, error) {
		i, err := locate(d, semester, courseID)
		if err != nil {
			return d, err
		}
		return Swap(semester, i)(d)
	}
}

// ToggleGroup selects a group, or deselects it when already selected.
// The group is not checked against the catalog.
func ToggleGroup(semester, courseID, group string) Mutation {
	return func(d domain.DibIt) (domain.DibIt, error) {
		i, err := locate(d, semester, courseID)
		if err != nil {
			return d, err
		}
		c := &d.Courses[semester][i]
		if c.HasGroup(group) {
			kept := c.Groups[:0]
			for _, g := range c.Groups {
				if g != group {
					kept = append(kept, g)
				}
			}
			c.Groups = kept
		} else {
			c.Groups = append(c.Groups, group)
		}
		return d, nil
	}
}

// SetColor overrides a course's color. An empty color restores the
// default hash color.
func SetColor(semester, courseID, color string) Mutation {
	return func(d domain.DibIt) (domain.DibIt, error) {
		i, err := locate(d, semester, courseID)
		if err != nil {
			return d, err
		}
		d.Courses[semester][i].Color = color
		return d, nil
	}
}

// SetStudyPlanCategory overrides the study plan category of a course.
func SetStudyPlanCategory(semester, courseID, category string) Mutation {
	return func(d domain.DibIt) (domain.DibIt, error) {
		i, err := locate(d, semester, courseID)
		if err != nil {
			return d, err
		}
		d.Courses[semester][i].StudyPlanCategory = category
		return d, nil
	}
}

// SetSemester changes the viewed semester.
func SetSemester(semester string) Mutation {
	return func(d domain.DibIt) (domain.DibIt, error) {
		sem, err := parseSemester(semester)
		if err != nil {
			return d, err
		}
		d.Semester = sem
		return d, nil
	}
}

// SetProfile records the user's school, study plan and start year.
func SetProfile(school, studyPlan string, degreeStartYear int) Mutation {
	return func(d domain.DibIt) (domain.DibIt, error) {
		d.School = school
		d.StudyPlan = studyPlan
		d.DegreeStartYear = degreeStartYear
		return d, nil
	}
}

// PracticeMarker builds the practicedExams marker of an exam sitting,
// e.g. "2024a" and "ב" give "2024ab".
func PracticeMarker(semester, moed string) (string, error) {
	sem, err := parseSemester(semester)
	if err != nil {
		return "", err
	}
	letters := map[string]string{"א": "a", "ב": "b", "ג": "c", "ד": "d"}
	suffix, ok := letters[moed]
	if !ok {
		return "", fmt.Errorf("%w: moed %q", domain.ErrInvalidInput, moed)
	}
	return sem + suffix, nil
}

// TogglePracticedExam marks an exam sitting as practiced, or unmarks it.
func TogglePracticedExam(courseID, semester, moed string) Mutation {
	return func(d domain.DibIt) (domain.DibIt, error) {
		marker, err := PracticeMarker(semester, moed)
		if err != nil {
			return d, err
		}
		if d.PracticedExams == nil {
			d.PracticedExams = make(map[string][]string)
		}

		marks := d.PracticedExams[courseID]
		for i, m := range marks {
			if m == marker {
				marks = append(marks[:i:i], marks[i+1:]...)
				if len(marks) == 0 {
					delete(d.PracticedExams, courseID)
				} else {
					d.PracticedExams[courseID] = marks
				}
				return d, nil
			}
		}
		d.PracticedExams[courseID] = append(marks, marker)
		return d, nil
	}
}

// SetCustomCourses stores a user-supplied catalog document under name.
// A nil catalog removes the document.
func SetCustomCourses(name string, courses domain.SemesterCourses) Mutation {
	return func(d domain.DibIt) (domain.DibIt, error) {
		if name == "" {
			return d, fmt.Errorf("%w: empty custom course name", domain.ErrInvalidInput)
		}
		if courses == nil {
			delete(d.CustomCourses, name)
			return d, nil
		}
		if d.CustomCourses == nil {
			d.CustomCourses = make(map[string]domain.SemesterCourses)
		}
		d.CustomCourses[name] = courses
		return d, nil
	}
}

// Import replaces the document with an uploaded one, dropping duplicate
// course entries.
func Import(doc domain.DibIt) Mutation {
	return func(domain.DibIt) (domain.DibIt, error) {
		return doc.Normalize(), nil
	}
}

// Reset clears the whole document.
func Reset() Mutation {
	return func(domain.DibIt) (domain.DibIt, error) {
		return domain.DibIt{}, nil
	}
}
