package domain

import (
	"errors"
	"reflect"
	"testing"
)

func TestDibItCloneIsIndependent(t *testing.T) {
	d := DibIt{
		Courses: map[string][]DibItCourse{
			"2024a": {{ID: "A", Groups: []string{"01"}}},
		},
		PracticedExams: map[string][]string{"A": {"2024aa"}},
	}

	c := d.Clone()
	c.Courses["2024a"][0].Groups[0] = "02"
	c.Courses["2024a"] = append(c.Courses["2024a"], DibItCourse{ID: "B"})
	c.PracticedExams["A"][0] = "changed"

	if d.Courses["2024a"][0].Groups[0] != "01" {
		t.Error("Clone() shares group slices")
	}
	if len(d.Courses["2024a"]) != 1 {
		t.Error("Clone() shares course slices")
	}
	if d.PracticedExams["A"][0] != "2024aa" {
		t.Error("Clone() shares practiced exams")
	}
}

func TestDibItNormalize(t *testing.T) {
	d := DibItCourse{ID: "A"}
	doc := DibIt{Courses: map[string][]DibItCourse{
		"2024a": {d, {ID: "B"}, {ID: "A", Color: "#fff"}, {ID: ""}},
		"2024b": {},
	}}

	got := doc.Normalize()

	want := []DibItCourse{{ID: "A"}, {ID: "B"}}
	if !reflect.DeepEqual(got.Courses["2024a"], want) {
		t.Errorf("Normalize() = %+v; want %+v", got.Courses["2024a"], want)
	}
	if _, ok := got.Courses["2024b"]; ok {
		t.Error("Normalize() kept an empty semester")
	}
	if len(doc.Courses["2024a"]) != 4 {
		t.Error("Normalize() modified the receiver")
	}
}

func TestDecodeDibIt(t *testing.T) {
	d, err := DecodeDibIt([]byte(`{"courses": {"2024a": [{"id": "A", "groups": ["01"]}]}, "semester": "2024a", "degreeStartYear": 2023}`))
	if err != nil {
		t.Fatalf("DecodeDibIt() error = %v", err)
	}
	if d.Semester != "2024a" || d.DegreeStartYear != 2023 {
		t.Errorf("DecodeDibIt() = %+v", d)
	}
	if d.IndexOf("2024a", "A") != 0 || d.IndexOf("2024a", "Z") != -1 {
		t.Error("IndexOf() mismatch")
	}

	empty, err := DecodeDibIt(nil)
	if err != nil || empty.Courses != nil {
		t.Errorf("DecodeDibIt(nil) = %+v, %v", empty, err)
	}

	if _, err := DecodeDibIt([]byte(`{"courses": 5}`)); !errors.Is(err, ErrInvalidDocument) {
		t.Errorf("DecodeDibIt() error = %v; want ErrInvalidDocument", err)
	}
}

func TestDibItSemesters(t *testing.T) {
	d := DibIt{Courses: map[string][]DibItCourse{"2024b": nil, "2023a": nil, "2024a": nil}}
	want := []string{"2023a", "2024a", "2024b"}
	if got := d.Semesters(); !reflect.DeepEqual(got, want) {
		t.Errorf("Semesters() = %v; want %v", got, want)
	}
	if d.ActiveSemester("2025a") != "2025a" {
		t.Error("ActiveSemester() should fall back")
	}
}

func TestDibItCustomCatalog(t *testing.T) {
	d := DibIt{CustomCourses: map[string]SemesterCourses{
		"b.json": {"X": {Name: "second"}},
		"a.json": {"X": {Name: "first"}, "Y": {Name: "only"}},
	}}

	cat := d.CustomCatalog()
	if cat["X"].Name != "second" {
		t.Errorf("CustomCatalog()[X] = %q; want later file to win", cat["X"].Name)
	}
	if cat["Y"].ID != "Y" {
		t.Errorf("CustomCatalog()[Y].ID = %q", cat["Y"].ID)
	}
}
