package domain

import (
	"bytes"
	"encoding/json"
	"log/slog"
)

// RequirementKind discriminates the variants of Requirement.
type RequirementKind string

const (
	// RequirementCourse is a leaf naming a single course.
	RequirementCourse RequirementKind = "course"
	// RequirementAll is satisfied when every child is.
	RequirementAll RequirementKind = "all"
	// RequirementAny is satisfied when at least one child is.
	RequirementAny RequirementKind = "any"
)

// Requirement is a prerequisite expression. A leaf carries Course; all and
// any nodes carry Children. Any node may carry a Parallel expression that
// can also be met by courses taken in the same semester.
//
// In JSON a leaf is a bare course ID string and a node is
// {"kind": "all"|"any", "courses": [...], "parallel": {...}}.
type Requirement struct {
	Kind     RequirementKind
	Course   string
	Children []Requirement
	Parallel *Requirement
}

// Leaf returns a requirement on a single course.
func Leaf(courseID string) Requirement {
	return Requirement{Kind: RequirementCourse, Course: courseID}
}

// All returns a conjunction of requirements.
func All(children ...Requirement) Requirement {
	return Requirement{Kind: RequirementAll, Children: children}
}

// Any returns a disjunction of requirements.
func Any(children ...Requirement) Requirement {
	return Requirement{Kind: RequirementAny, Children: children}
}

// WithParallel returns a copy of r with p attached as its parallel part.
func (r Requirement) WithParallel(p Requirement) Requirement {
	r.Parallel = &p
	return r
}

// IsLeaf reports whether r names a single course.
func (r Requirement) IsLeaf() bool {
	return r.Kind == RequirementCourse
}

// CourseIDs returns every course ID mentioned in r, parallel parts included,
// in first-seen order.
func (r Requirement) CourseIDs() []string {
	seen := make(map[string]struct{})
	var ids []string
	var walk func(Requirement)
	walk = func(n Requirement) {
		if n.IsLeaf() {
			if _, ok := seen[n.Course]; !ok {
				seen[n.Course] = struct{}{}
				ids = append(ids, n.Course)
			}
			return
		}
		for _, c := range n.Children {
			walk(c)
		}
		if n.Parallel != nil {
			walk(*n.Parallel)
		}
	}
	walk(r)
	return ids
}

type requirementNode struct {
	Kind     RequirementKind `json:"kind"`
	Courses  []Requirement   `json:"courses"`
	Parallel *Requirement    `json:"parallel,omitempty"`
}

// MarshalJSON encodes leaves as strings and nodes as objects.
func (r Requirement) MarshalJSON() ([]byte, error) {
	if r.IsLeaf() {
		return json.Marshal(r.Course)
	}
	courses := r.Children
	if courses == nil {
		courses = []Requirement{}
	}
	return json.Marshal(requirementNode{Kind: r.Kind, Courses: courses, Parallel: r.Parallel})
}

// UnmarshalJSON accepts either a course ID string or a node object. A node
// with a missing or unknown kind is read as "all", and anything else that is
// not a requirement becomes an empty "all", so one bad entry never rejects
// the catalog around it.
func (r *Requirement) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var id string
		if err := json.Unmarshal(data, &id); err != nil {
			return err
		}
		*r = Leaf(id)
		return nil
	}

	var node requirementNode
	if err := json.Unmarshal(data, &node); err != nil {
		slog.Warn("ignoring malformed prerequisite", "value", truncate(data, 80), "error", err)
		*r = All()
		return nil
	}
	switch node.Kind {
	case RequirementAll, RequirementAny:
	default:
		slog.Warn("prerequisite has unknown kind; reading as all", "kind", node.Kind, "courses", len(node.Courses))
		node.Kind = RequirementAll
	}

	*r = Requirement{Kind: node.Kind, Children: node.Courses, Parallel: node.Parallel}
	return nil
}

func truncate(data []byte, n int) string {
	if len(data) <= n {
		return string(data)
	}
	return string(data[:n]) + "..."
}
