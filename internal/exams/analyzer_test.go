package exams

import (
	"testing"

	"github.com/arazimproject/dibit/internal/domain"
)

func testCatalog() domain.SemesterCourses {
	return domain.SemesterCourses{
		"A": {ID: "A", Name: "Algebra", Exams: []domain.Exam{
			{Date: "20/02/2024", Moed: "ב"},
			{Date: "01/02/2024", Moed: "א"},
		}},
		"B": {ID: "B", Name: "Biology", Exams: []domain.Exam{
			{Date: "01/02/2024", Moed: "א"},
			{Date: "", Moed: "ב"},
		}},
		"C": {ID: "C", Name: "Chemistry", Exams: []domain.Exam{
			{Date: "08/02/2024", Moed: "א"},
			{Date: "not a date", Moed: "ב"},
		}},
		"D": {ID: "D", Name: "Drawing"},
	}
}

func selection(ids ...string) []domain.DibItCourse {
	out := make([]domain.DibItCourse, len(ids))
	for i, id := range ids {
		out[i] = domain.DibItCourse{ID: id}
	}
	return out
}

func TestAnalyzeSortsByDate(t *testing.T) {
	tl := Analyze(selection("A", "B", "C", "D"), testCatalog())

	if tl.Len() != 4 {
		t.Fatalf("Len() = %d; want 4", tl.Len())
	}
	want := []string{"A", "B", "C", "A"}
	for i, e := range tl.Entries {
		if e.CourseID != want[i] {
			t.Errorf("Entries[%d] = %s; want %s", i, e.CourseID, want[i])
		}
	}
	for i := 1; i < tl.Len(); i++ {
		if tl.Entries[i].Date.Before(tl.Entries[i-1].Date) {
			t.Errorf("entries not sorted at %d", i)
		}
	}
}

func TestAnalyzeCollisions(t *testing.T) {
	tl := Analyze(selection("A", "B", "C"), testCatalog())

	if got := len(tl.ByDay["2024-02-01"]); got < 2 {
		t.Errorf("collision set for 2024-02-01 has %d entries; want >= 2", got)
	}
	if got := len(tl.ByDay["2024-02-08"]); got != 1 {
		t.Errorf("set for 2024-02-08 has %d entries; want 1", got)
	}

	collisions := tl.Collisions()
	if len(collisions) != 1 || collisions[0].Day != "2024-02-01" {
		t.Fatalf("Collisions() = %+v", collisions)
	}
	if !tl.IsCollision(tl.Entries[0]) || tl.IsCollision(tl.Entries[2]) {
		t.Error("IsCollision() mismatch")
	}
}

func TestAnalyzeGaps(t *testing.T) {
	tl := Analyze(selection("A", "B", "C"), testCatalog())
	gaps := tl.Gaps()

	if len(gaps) != 4 {
		t.Fatalf("Gaps() = %d; want 4", len(gaps))
	}
	if !gaps[0].First || gaps[0].Label != "1/2" {
		t.Errorf("first gap = %+v; want date label 1/2", gaps[0])
	}
	wantDays := []int{0, 0, 7, 12}
	for i := 1; i < len(gaps); i++ {
		if gaps[i].Days != wantDays[i] {
			t.Errorf("gap %d = %d; want %d", i, gaps[i].Days, wantDays[i])
		}
	}
	if gaps[3].Label != "12" {
		t.Errorf("gap label = %q; want 12", gaps[3].Label)
	}
}

func TestAnalyzeDeterministic(t *testing.T) {
	a := Analyze(selection("A", "B", "C"), testCatalog())
	b := Analyze(selection("A", "B", "C"), testCatalog())
	for i := range a.Entries {
		if a.Entries[i] != b.Entries[i] {
			t.Errorf("entry %d differs between runs", i)
		}
	}
}

func TestAnalyzeEmpty(t *testing.T) {
	tl := Analyze(nil, testCatalog())
	if tl.Len() != 0 || len(tl.Collisions()) != 0 || len(tl.Gaps()) != 0 {
		t.Errorf("empty analysis = %+v", tl)
	}
	if tl.Entries == nil {
		t.Error("Entries should be an empty slice, not nil")
	}
}

func TestAnalyzeSkipsUnknownCourses(t *testing.T) {
	tl := Analyze(selection("ghost"), testCatalog())
	if tl.Len() != 0 {
		t.Errorf("Len() = %d; want 0", tl.Len())
	}
}

func TestFirstPerCourse(t *testing.T) {
	tl := Analyze(selection("A", "B", "C"), testCatalog()).FirstPerCourse()

	if tl.Len() != 3 {
		t.Fatalf("Len() = %d; want 3", tl.Len())
	}
	for _, e := range tl.Entries {
		if e.CourseID == "A" && e.Moed != "א" {
			t.Errorf("kept %s moed %s; want the first sitting", e.CourseID, e.Moed)
		}
	}
}

func TestRankByExamFit(t *testing.T) {
	taken := map[string]bool{"D": true}
	selected := map[string]bool{"B": true}

	ranked := RankByExamFit([]string{"D", "B", "ghost", "C", "A"}, taken, selected, testCatalog())

	// B's only dated exam is 01/02; A's first listed exam is 20/02.
	want := []Candidate{
		{"A", -19 * MillisPerDay},
		{"C", -7 * MillisPerDay},
		{"ghost", ScoreNoExams},
		{"B", ScoreSelected},
		{"D", ScoreTaken},
	}
	if len(ranked) != len(want) {
		t.Fatalf("RankByExamFit() = %v", ranked)
	}
	for i := range want {
		if ranked[i] != want[i] {
			t.Errorf("ranked[%d] = %+v; want %+v", i, ranked[i], want[i])
		}
	}
}

func TestRankByExamFitWithoutSelectedExams(t *testing.T) {
	selected := map[string]bool{"D": true}

	ranked := RankByExamFit([]string{"C", "D", "A", "ghost"}, nil, selected, testCatalog())

	want := []Candidate{
		{"ghost", ScoreNoExams},
		{"C", ScoreNoContext},
		{"A", ScoreNoContext},
		{"D", ScoreSelected},
	}
	for i := range want {
		if ranked[i] != want[i] {
			t.Errorf("ranked[%d] = %+v; want %+v", i, ranked[i], want[i])
		}
	}
}
