package domain

import (
	"encoding/json"
	"fmt"
	"sort"
)

// DibItStorageKey is the key the selection document is stored under.
const DibItStorageKey = "Dib It"

// DibItCourse is one selected course within a semester.
type DibItCourse struct {
	ID                string   `json:"id"`
	Groups            []string `json:"groups,omitempty"`
	Color             string   `json:"color,omitempty"`
	StudyPlanCategory string   `json:"studyPlanCategory,omitempty"`
}

// HasGroup reports whether the group is selected.
func (c DibItCourse) HasGroup(group string) bool {
	for _, g := range c.Groups {
		if g == group {
			return true
		}
	}
	return false
}

// DibIt is the persisted user document. Courses maps a semester key to the
// user-ordered list of selected courses.
type DibIt struct {
	Courses               map[string][]DibItCourse   `json:"courses,omitempty"`
	Semester              string                     `json:"semester,omitempty"`
	School                string                     `json:"school,omitempty"`
	StudyPlan             string                     `json:"studyPlan,omitempty"`
	DegreeStartYear       int                        `json:"degreeStartYear,omitempty"`
	Theme                 string                     `json:"theme,omitempty"`
	Tab                   string                     `json:"tab,omitempty"`
	PracticedExams        map[string][]string        `json:"practicedExams,omitempty"`
	OpenedPracticeCourses []string                   `json:"openedPracticeCourses,omitempty"`
	CustomCourses         map[string]SemesterCourses `json:"customCourses,omitempty"`
}

// SemesterCourses returns the selection of a semester. The slice is shared
// with d and must not be modified.
func (d DibIt) SemesterCourses(semester string) []DibItCourse {
	return d.Courses[semester]
}

// ActiveSemester returns the viewed semester, or fallback when unset.
func (d DibIt) ActiveSemester(fallback string) string {
	if d.Semester != "" {
		return d.Semester
	}
	return fallback
}

// Semesters returns the semesters with a selection, in chronological order.
func (d DibIt) Semesters() []string {
	keys := make([]string, 0, len(d.Courses))
	for k := range d.Courses {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// IndexOf returns the position of a course in a semester, or -1.
func (d DibIt) IndexOf(semester, courseID string) int {
	for i, c := range d.Courses[semester] {
		if c.ID == courseID {
			return i
		}
	}
	return -1
}

// CustomCatalog merges every custom course document in file-name order.
func (d DibIt) CustomCatalog() SemesterCourses {
	names := make([]string, 0, len(d.CustomCourses))
	for name := range d.CustomCourses {
		names = append(names, name)
	}
	sort.Strings(names)

	overlays := make([]SemesterCourses, 0, len(names))
	for _, name := range names {
		overlays = append(overlays, d.CustomCourses[name])
	}
	return SemesterCourses{}.Merge(overlays...)
}

// Clone returns a deep copy, so a mutation never touches a published value.
func (d DibIt) Clone() DibIt {
	out := d

	if d.Courses != nil {
		out.Courses = make(map[string][]DibItCourse, len(d.Courses))
		for sem, courses := range d.Courses {
			cp := make([]DibItCourse, len(courses))
			for i, c := range courses {
				c.Groups = append([]string(nil), c.Groups...)
				cp[i] = c
			}
			out.Courses[sem] = cp
		}
	}

	if d.PracticedExams != nil {
		out.PracticedExams = make(map[string][]string, len(d.PracticedExams))
		for id, marks := range d.PracticedExams {
			out.PracticedExams[id] = append([]string(nil), marks...)
		}
	}

	out.OpenedPracticeCourses = append([]string(nil), d.OpenedPracticeCourses...)

	if d.CustomCourses != nil {
		out.CustomCourses = make(map[string]SemesterCourses, len(d.CustomCourses))
		for name, sc := range d.CustomCourses {
			out.CustomCourses[name] = SemesterCourses{}.Merge(sc)
		}
	}

	return out
}

// Normalize drops duplicate course IDs within each semester, keeping the
// first occurrence, and removes empty semesters.
func (d DibIt) Normalize() DibIt {
	out := d.Clone()
	for sem, courses := range out.Courses {
		seen := make(map[string]struct{}, len(courses))
		kept := courses[:0]
		for _, c := range courses {
			if c.ID == "" {
				continue
			}
			if _, dup := seen[c.ID]; dup {
				continue
			}
			seen[c.ID] = struct{}{}
			kept = append(kept, c)
		}
		if len(kept) == 0 {
			delete(out.Courses, sem)
			continue
		}
		out.Courses[sem] = kept
	}
	return out
}

// DecodeDibIt parses a selection document. An empty or null payload yields
// an empty document.
func DecodeDibIt(data []byte) (DibIt, error) {
	var d DibIt
	if len(data) == 0 || string(data) == "null" {
		return d, nil
	}
	if err := json.Unmarshal(data, &d); err != nil {
		return DibIt{}, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	return d.Normalize(), nil
}
