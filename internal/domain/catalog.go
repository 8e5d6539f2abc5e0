package domain

import (
	"encoding/json"
	"sort"
	"strings"
)

// LessonTypeLecture marks the lecture lessons of a group.
const LessonTypeLecture = "שיעור"

// Course is a catalog entry for a single semester. Catalog entries are
// read-only once fetched.
type Course struct {
	ID            string       `json:"id,omitempty"`
	Name          string       `json:"name"`
	Faculty       string       `json:"faculty,omitempty"`
	Exams         []Exam       `json:"exams,omitempty"`
	Groups        []Group      `json:"groups,omitempty"`
	Prerequisites *Requirement `json:"prerequisites,omitempty"`
}

// Exam is one exam sitting. An empty Date means no exam is scheduled.
type Exam struct {
	Date string `json:"date"`
	Hour string `json:"hour,omitempty"`
	Moed string `json:"moed"`
	Type string `json:"type,omitempty"`
}

// Group is a section of a course with its own lecturer and lessons.
type Group struct {
	Group    string   `json:"group"`
	Lecturer *string  `json:"lecturer"`
	Lessons  []Lesson `json:"lessons"`
}

// LecturerName returns the lecturer string or "" when none is listed.
func (g Group) LecturerName() string {
	if g.Lecturer == nil {
		return ""
	}
	return strings.TrimSpace(*g.Lecturer)
}

// HasLecture reports whether any lesson of the group is a lecture.
func (g Group) HasLecture() bool {
	for _, l := range g.Lessons {
		if l.Type == LessonTypeLecture {
			return true
		}
	}
	return false
}

// Lesson is one weekly meeting of a group.
type Lesson struct {
	Day      string `json:"day"`
	Time     string `json:"time"`
	Building string `json:"building"`
	Room     string `json:"room"`
	Type     string `json:"type"`
}

// Location joins building and room for display.
func (l Lesson) Location() string {
	return strings.TrimSpace(strings.TrimSpace(l.Building) + " " + strings.TrimSpace(l.Room))
}

// Group looks up a group by ID. Selections may reference groups that were
// removed from the catalog, so a miss is a normal outcome.
func (c Course) Group(id string) (Group, bool) {
	for _, g := range c.Groups {
		if g.Group == id {
			return g, true
		}
	}
	return Group{}, false
}

// Lecturers returns the distinct lecturer names of the course, sorted.
// Names come from groups that hold a lecture; when no group does, every
// group is considered. Comma-joined names are split.
func (c Course) Lecturers() []string {
	collect := func(onlyLectures bool) []string {
		seen := make(map[string]struct{})
		for _, g := range c.Groups {
			if onlyLectures && !g.HasLecture() {
				continue
			}
			for _, name := range strings.Split(g.LecturerName(), ",") {
				name = strings.TrimSpace(name)
				if name != "" {
					seen[name] = struct{}{}
				}
			}
		}
		names := make([]string, 0, len(seen))
		for name := range seen {
			names = append(names, name)
		}
		sort.Strings(names)
		return names
	}

	if names := collect(true); len(names) > 0 {
		return names
	}
	return collect(false)
}

// SemesterCourses is the catalog of one semester keyed by course ID.
type SemesterCourses map[string]Course

// UnmarshalJSON decodes the catalog and copies each key into Course.ID.
func (sc *SemesterCourses) UnmarshalJSON(data []byte) error {
	var raw map[string]Course
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	for id, course := range raw {
		course.ID = id
		raw[id] = course
	}
	*sc = raw
	return nil
}

// Lookup returns the course with the given ID.
func (sc SemesterCourses) Lookup(id string) (Course, bool) {
	c, ok := sc[id]
	if ok && c.ID == "" {
		c.ID = id
	}
	return c, ok
}

// Merge returns a new catalog with each overlay applied in order. Overlay
// entries replace catalog entries with the same ID and add new ones.
func (sc SemesterCourses) Merge(overlays ...SemesterCourses) SemesterCourses {
	merged := make(SemesterCourses, len(sc))
	for id, c := range sc {
		merged[id] = c
	}
	for _, overlay := range overlays {
		for id, c := range overlay {
			c.ID = id
			merged[id] = c
		}
	}
	return merged
}

// IDs returns the course IDs in ascending order.
func (sc SemesterCourses) IDs() []string {
	ids := make([]string, 0, len(sc))
	for id := range sc {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// AllTimeCourse describes a course across every semester it was offered.
type AllTimeCourse struct {
	Name      string   `json:"name"`
	Faculty   string   `json:"faculty,omitempty"`
	Semesters []string `json:"semesters,omitempty"`
}

// AllTimeCourses is the all-semester catalog keyed by course ID.
type AllTimeCourses map[string]AllTimeCourse

// SemesterWindow is the teaching period of a semester. StartDate is always
// a Sunday.
type SemesterWindow struct {
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate"`
}

// GeneralInfo is the catalog metadata document.
type GeneralInfo struct {
	Semesters       map[string]SemesterWindow `json:"semesters"`
	CurrentSemester string                    `json:"currentSemester"`
}

// Window returns the window of a semester.
func (g GeneralInfo) Window(semester string) (SemesterWindow, bool) {
	w, ok := g.Semesters[semester]
	return w, ok
}

// SemesterKeys returns the known semesters in chronological order.
func (g GeneralInfo) SemesterKeys() []string {
	keys := make([]string, 0, len(g.Semesters))
	for k := range g.Semesters {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
