package selection

import (
	"errors"
	"reflect"
	"testing"

	"github.com/arazimproject/dibit/internal/domain"
)

func apply(t *testing.T, d domain.DibIt, ms ...Mutation) domain.DibIt {
	t.Helper()
	for _, m := range ms {
		var err error
		d, err = m(d.Clone())
		if err != nil {
			t.Fatalf("mutation error = %v", err)
		}
	}
	return d
}

func ids(d domain.DibIt, sem string) []string {
	var out []string
	for _, c := range d.Courses[sem] {
		out = append(out, c.ID)
	}
	return out
}

func TestAddCourseSkipsDuplicates(t *testing.T) {
	d := apply(t, domain.DibIt{}, AddCourse("2024a", "A"), AddCourse("2024a", "B"), AddCourse("2024a", "A"))

	if got := ids(d, "2024a"); !reflect.DeepEqual(got, []string{"A", "B"}) {
		t.Errorf("courses = %v; want [A B]", got)
	}
}

func TestAddCourseRejectsBadSemester(t *testing.T) {
	_, err := AddCourse("spring", "A")(domain.DibIt{})
	if !errors.Is(err, domain.ErrInvalidSemester) {
		t.Errorf("AddCourse() error = %v; want ErrInvalidSemester", err)
	}
}

func TestRemoveCourse(t *testing.T) {
	d := apply(t, domain.DibIt{}, AddCourse("2024a", "A"), AddCourse("2024a", "B"), RemoveCourse("2024a", "A"))
	if got := ids(d, "2024a"); !reflect.DeepEqual(got, []string{"B"}) {
		t.Errorf("courses = %v; want [B]", got)
	}

	d = apply(t, d, RemoveCourse("2024a", "B"))
	if _, ok := d.Courses["2024a"]; ok {
		t.Error("empty semester should be removed")
	}
}

func TestSwapIsSelfInverse(t *testing.T) {
	base := apply(t, domain.DibIt{}, AddCourse("2024a", "A"), AddCourse("2024a", "B"), AddCourse("2024a", "C"))

	once := apply(t, base, Swap("2024a", 1))
	if got := ids(once, "2024a"); !reflect.DeepEqual(got, []string{"A", "C", "B"}) {
		t.Errorf("after one swap = %v", got)
	}

	twice := apply(t, once, Swap("2024a", 1))
	if got := ids(twice, "2024a"); !reflect.DeepEqual(got, ids(base, "2024a")) {
		t.Errorf("after two swaps = %v; want original order", got)
	}
}

func TestMoveUpDown(t *testing.T) {
	base := apply(t, domain.DibIt{}, AddCourse("2024a", "A"), AddCourse("2024a", "B"))

	up := apply(t, base, MoveUp("2024a", "B"))
	if got := ids(up, "2024a"); !reflect.DeepEqual(got, []string{"B", "A"}) {
		t.Errorf("MoveUp = %v", got)
	}
	down := apply(t, up, MoveDown("2024a", "B"))
	if got := ids(down, "2024a"); !reflect.DeepEqual(got, []string{"A", "B"}) {
		t.Errorf("MoveDown = %v", got)
	}

	if _, err := MoveUp("2024a", "A")(base.Clone()); !errors.Is(err, domain.ErrInvalidPosition) {
		t.Errorf("MoveUp(first) error = %v; want ErrInvalidPosition", err)
	}
	if _, err := MoveDown("2024a", "B")(base.Clone()); !errors.Is(err, domain.ErrInvalidPosition) {
		t.Errorf("MoveDown(last) error = %v; want ErrInvalidPosition", err)
	}
}

func TestToggleGroup(t *testing.T) {
	d := apply(t, domain.DibIt{}, AddCourse("2024a", "A"), ToggleGroup("2024a", "A", "01"), ToggleGroup("2024a", "A", "02"))
	if got := d.Courses["2024a"][0].Groups; !reflect.DeepEqual(got, []string{"01", "02"}) {
		t.Errorf("groups = %v", got)
	}

	d = apply(t, d, ToggleGroup("2024a", "A", "01"))
	if got := d.Courses["2024a"][0].Groups; !reflect.DeepEqual(got, []string{"02"}) {
		t.Errorf("groups after toggle off = %v", got)
	}
}

func TestSetColor(t *testing.T) {
	d := apply(t, domain.DibIt{}, AddCourse("2024a", "A"), SetColor("2024a", "A", "#ff0000"))
	if got := domain.ResolveColor(d.Courses["2024a"][0]); got != "#ff0000" {
		t.Errorf("color = %q", got)
	}

	d = apply(t, d, SetColor("2024a", "A", ""))
	if got := domain.ResolveColor(d.Courses["2024a"][0]); got != domain.ColorHash("A") {
		t.Errorf("color after clearing = %q; want hash color", got)
	}
}

func TestSetSemesterAndProfile(t *testing.T) {
	d := apply(t, domain.DibIt{},
		SetSemester("2025a"),
		SetProfile("Exact Sciences", "CS", 2023),
		AddCourse("2025a", "A"),
		SetStudyPlanCategory("2025a", "A", "core"),
	)
	if d.Semester != "2025a" || d.School != "Exact Sciences" || d.DegreeStartYear != 2023 {
		t.Errorf("document = %+v", d)
	}
	if d.Courses["2025a"][0].StudyPlanCategory != "core" {
		t.Errorf("category = %q", d.Courses["2025a"][0].StudyPlanCategory)
	}
}

func TestTogglePracticedExam(t *testing.T) {
	d := apply(t, domain.DibIt{}, TogglePracticedExam("A", "2024a", "א"), TogglePracticedExam("A", "2024a", "ב"))
	if got := d.PracticedExams["A"]; !reflect.DeepEqual(got, []string{"2024aa", "2024ab"}) {
		t.Errorf("practiced = %v", got)
	}

	d = apply(t, d, TogglePracticedExam("A", "2024a", "א"), TogglePracticedExam("A", "2024a", "ב"))
	if _, ok := d.PracticedExams["A"]; ok {
		t.Errorf("practiced = %v; want cleared", d.PracticedExams)
	}

	if _, err := TogglePracticedExam("A", "2024a", "x")(domain.DibIt{}); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("error = %v; want ErrInvalidInput", err)
	}
}

func TestSetCustomCourses(t *testing.T) {
	custom := domain.SemesterCourses{"X": {Name: "Seminar"}}
	d := apply(t, domain.DibIt{}, SetCustomCourses("seminar.json", custom))
	if d.CustomCatalog()["X"].Name != "Seminar" {
		t.Errorf("custom catalog = %+v", d.CustomCatalog())
	}

	d = apply(t, d, SetCustomCourses("seminar.json", nil))
	if len(d.CustomCourses) != 0 {
		t.Error("nil catalog should remove the document")
	}
}

func TestImportAndReset(t *testing.T) {
	doc := domain.DibIt{Courses: map[string][]domain.DibItCourse{"2024a": {{ID: "A"}, {ID: "A"}}}}
	d := apply(t, domain.DibIt{Semester: "2023a"}, Import(doc))
	if got := ids(d, "2024a"); !reflect.DeepEqual(got, []string{"A"}) {
		t.Errorf("imported courses = %v", got)
	}
	if d.Semester != "" {
		t.Error("Import() should replace the whole document")
	}

	d = apply(t, d, Reset())
	if d.Courses != nil {
		t.Error("Reset() left courses behind")
	}
}
