// Package prereq evaluates prerequisite expressions against the courses a
// user took in earlier semesters.
package prereq

import (
	"strings"

	"github.com/arazimproject/dibit/internal/domain"
)

// ConcurrentPrefix marks requirements that may be met in the same semester.
const ConcurrentPrefix = "concurrently: "

// Formatter renders a course ID for the missing-requirements message.
type Formatter func(courseID string) string

// IDFormatter renders course IDs unchanged.
func IDFormatter(courseID string) string {
	return courseID
}

// NameFormatter renders "<name> (<id>)" using the all-time catalog and
// falls back to the bare ID for unknown courses.
func NameFormatter(courses domain.AllTimeCourses) Formatter {
	return func(courseID string) string {
		if c, ok := courses[courseID]; ok && c.Name != "" {
			return c.Name + " (" + courseID + ")"
		}
		return courseID
	}
}

// History is the course history relative to a target semester.
type History struct {
	// Past holds courses selected strictly before the target semester.
	Past map[string]bool
	// PastAndPresent also holds the target semester's own selection.
	PastAndPresent map[string]bool
}

// NewHistory folds the selection's semesters in chronological order up to
// the target semester.
func NewHistory(d domain.DibIt, target string) History {
	h := History{
		Past:           make(map[string]bool),
		PastAndPresent: make(map[string]bool),
	}
	for _, sem := range d.Semesters() {
		if sem > target {
			break
		}
		for _, c := range d.Courses[sem] {
			if sem < target {
				h.Past[c.ID] = true
			}
			h.PastAndPresent[c.ID] = true
		}
	}
	return h
}

// Verdict is the outcome of a prerequisite check. Missing is empty when
// the requirement is satisfied.
type Verdict struct {
	Satisfied         bool   `json:"satisfied"`
	MainSatisfied     bool   `json:"mainSatisfied"`
	ParallelSatisfied bool   `json:"parallelSatisfied"`
	Missing           string `json:"missing,omitempty"`
}

// Check evaluates req against h. A nil requirement is always satisfied.
// The parallel part of the top-level expression is reported separately in
// ParallelSatisfied; Satisfied requires both parts.
func Check(req *domain.Requirement, h History, format Formatter) Verdict {
	if req == nil {
		return Verdict{Satisfied: true, MainSatisfied: true, ParallelSatisfied: true}
	}
	if format == nil {
		format = IDFormatter
	}
	e := evaluator{history: h, format: format}

	main := e.node(*req, h.Past)
	parallel := result{ok: true}
	if req.Parallel != nil {
		parallel = e.eval(*req.Parallel, h.PastAndPresent)
	}

	return Verdict{
		Satisfied:         main.ok && parallel.ok,
		MainSatisfied:     main.ok,
		ParallelSatisfied: parallel.ok,
		Missing:           joinMissing(main, parallel),
	}
}

type result struct {
	ok      bool
	missing string
}

type evaluator struct {
	history History
	format  Formatter
}

// eval evaluates a node together with its parallel part.
func (e evaluator) eval(n domain.Requirement, set map[string]bool) result {
	main := e.node(n, set)
	if n.Parallel == nil {
		return main
	}
	parallel := e.eval(*n.Parallel, e.history.PastAndPresent)
	return result{ok: main.ok && parallel.ok, missing: joinMissing(main, parallel)}
}

// node evaluates n without its parallel part.
func (e evaluator) node(n domain.Requirement, set map[string]bool) result {
	switch n.Kind {
	case domain.RequirementCourse:
		if set[n.Course] {
			return result{ok: true}
		}
		return result{missing: e.format(n.Course)}

	case domain.RequirementAll:
		var missing []string
		for _, child := range n.Children {
			if r := e.eval(child, set); !r.ok {
				missing = append(missing, embed(child, r))
			}
		}
		if len(missing) == 0 {
			return result{ok: true}
		}
		return result{missing: strings.Join(missing, ", ")}

	case domain.RequirementAny:
		if len(n.Children) == 0 {
			return result{ok: true}
		}
		options := make([]string, 0, len(n.Children))
		for _, child := range n.Children {
			r := e.eval(child, set)
			if r.ok {
				return result{ok: true}
			}
			options = append(options, embed(child, r))
		}
		return result{missing: "one of: " + strings.Join(options, ", ")}

	default:
		return result{ok: true}
	}
}

// embed parenthesizes the message of a nested node.
func embed(child domain.Requirement, r result) string {
	if child.IsLeaf() && child.Parallel == nil {
		return r.missing
	}
	return "(" + r.missing + ")"
}

func joinMissing(main, parallel result) string {
	var parts []string
	if !main.ok {
		parts = append(parts, main.missing)
	}
	if !parallel.ok {
		parts = append(parts, ConcurrentPrefix+parallel.missing)
	}
	return strings.Join(parts, "; ")
}

// CheckSemester checks every selected course of a semester against the
// history up to that semester, keyed by course ID. Courses without catalog
// data are trivially satisfied.
func CheckSemester(d domain.DibIt, semester string, catalog domain.SemesterCourses, format Formatter) map[string]Verdict {
	h := NewHistory(d, semester)
	out := make(map[string]Verdict)
	for _, sel := range d.Courses[semester] {
		course, ok := catalog.Lookup(sel.ID)
		if !ok {
			out[sel.ID] = Check(nil, h, format)
			continue
		}
		out[sel.ID] = Check(course.Prerequisites, h, format)
	}
	return out
}
