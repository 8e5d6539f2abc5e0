package main

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/arazimproject/dibit/internal/domain"
	"github.com/arazimproject/dibit/internal/exams"
	"github.com/arazimproject/dibit/internal/planner"
	"github.com/arazimproject/dibit/internal/schedule"
)

func TestParseArgs(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		wantSem string
		wantPos []string
	}{
		{"positional only", []string{"0368-2157"}, "", []string{"0368-2157"}},
		{"flag first", []string{"-s", "2024b", "0368-2157"}, "2024b", []string{"0368-2157"}},
		{"flag last", []string{"0368-2157", "01", "-s", "2024b"}, "2024b", []string{"0368-2157", "01"}},
		{"flag between", []string{"0368-2157", "-s=2023a", "up"}, "2023a", []string{"0368-2157", "up"}},
		{"none", nil, "", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sem, fs := semesterFlags("test", tt.args)
			got, err := parseArgs(fs, tt.args)
			if err != nil {
				t.Fatalf("parseArgs() error = %v", err)
			}
			if *sem != tt.wantSem {
				t.Errorf("semester = %q, want %q", *sem, tt.wantSem)
			}
			if strings.Join(got, ",") != strings.Join(tt.wantPos, ",") {
				t.Errorf("positional = %v, want %v", got, tt.wantPos)
			}
		})
	}
}

func TestParseArgsUnknownFlag(t *testing.T) {
	_, fs := semesterFlags("add", nil)
	if _, err := parseArgs(fs, []string{"--bogus", "x"}); err == nil {
		t.Error("parseArgs() with unknown flag should fail")
	}
}

func TestRenderSchedule(t *testing.T) {
	var week schedule.Week
	week[domain.Monday] = []schedule.Event{
		{CourseID: "0368-2157", Group: "01", Day: domain.Monday, StartHour: 10, EndHour: 12, Title: "אלגוריתמים", Subtitle: "שרייבר 006"},
		{CourseID: "0366-1101", Group: "02", Day: domain.Monday, StartHour: 11, EndHour: 13, Title: "מבוא"},
	}
	view := planner.ScheduleView{
		Semester: "2024a",
		Week:     week,
		Hours:    schedule.WeeklyHours(week),
		Overlaps: schedule.Overlaps(week),
	}

	out := renderSchedule(view)
	for _, want := range []string{"Schedule 2024a", "שני", "10:00-12:00", "(שרייבר 006)", "Weekly hours: 4", "overlaps"} {
		if !strings.Contains(out, want) {
			t.Errorf("renderSchedule() missing %q in:\n%s", want, out)
		}
	}
	if strings.Contains(out, "ראשון") {
		t.Error("empty days should be skipped")
	}

	empty := renderSchedule(planner.ScheduleView{Semester: "2024a"})
	if !strings.Contains(empty, "No lessons selected") {
		t.Errorf("empty schedule = %q", empty)
	}
}

func TestRenderExams(t *testing.T) {
	catalog := domain.SemesterCourses{
		"0368-2157": {Name: "אלגוריתמים", Exams: []domain.Exam{{Date: "01/02/2024", Moed: "א"}, {Date: "20/02/2024", Moed: "ב"}}},
		"0366-1101": {Name: "מבוא", Exams: []domain.Exam{{Date: "01/02/2024", Moed: "א"}}},
	}
	selected := []domain.DibItCourse{{ID: "0368-2157"}, {ID: "0366-1101"}}

	out := renderExams("2024a", exams.Analyze(selected, catalog))
	for _, want := range []string{"1/2", "+0", "+19", "20/02/2024", "1 day(s) with more than one exam"} {
		if !strings.Contains(out, want) {
			t.Errorf("renderExams() missing %q in:\n%s", want, out)
		}
	}

	if got := renderExams("2024a", exams.Analyze(nil, catalog)); !strings.Contains(got, "No exams") {
		t.Errorf("empty timeline = %q", got)
	}
}

func TestScoreLabel(t *testing.T) {
	tests := map[int64]string{
		exams.ScoreTaken:         "already taken",
		exams.ScoreSelected:      "already selected",
		exams.ScoreNoExams:       "no exams",
		-3 * exams.MillisPerDay:  "3 days from the nearest selected exam",
		-30 * exams.MillisPerDay: "30 days from the nearest selected exam",
		exams.ScoreNoContext:     "same day as a selected exam, or nothing to compare",
	}
	for score, want := range tests {
		if got := scoreLabel(score); got != want {
			t.Errorf("scoreLabel(%d) = %q, want %q", score, got, want)
		}
	}
}

func TestWriteOutput(t *testing.T) {
	var stdout bytes.Buffer
	if err := writeOutput("", []byte("BEGIN:VCALENDAR"), &stdout); err != nil {
		t.Fatalf("writeOutput(stdout) error = %v", err)
	}
	if stdout.String() != "BEGIN:VCALENDAR" {
		t.Errorf("stdout = %q", stdout.String())
	}

	path := filepath.Join(t.TempDir(), "out.ics")
	if err := writeOutput(path, []byte("data"), &stdout); err != nil {
		t.Fatalf("writeOutput(file) error = %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil || string(data) != "data" {
		t.Errorf("file = %q, err = %v", data, err)
	}
}

func TestReadCustomCourses(t *testing.T) {
	dir := t.TempDir()

	valid := filepath.Join(dir, "valid.json")
	os.WriteFile(valid, []byte(`{"9999-0001": {"name": "סמינר"}}`), 0644)
	courses, err := readCustomCourses(valid)
	if err != nil {
		t.Fatalf("readCustomCourses() error = %v", err)
	}
	if c, ok := courses.Lookup("9999-0001"); !ok || c.Name != "סמינר" {
		t.Errorf("courses = %+v", courses)
	}

	broken := filepath.Join(dir, "broken.json")
	os.WriteFile(broken, []byte(`[1, 2`), 0644)
	if _, err := readCustomCourses(broken); !errors.Is(err, domain.ErrInvalidDocument) {
		t.Errorf("readCustomCourses(broken) error = %v", err)
	}

	empty := filepath.Join(dir, "empty.json")
	os.WriteFile(empty, []byte(`{}`), 0644)
	if _, err := readCustomCourses(empty); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("readCustomCourses(empty) error = %v", err)
	}

	if _, err := readCustomCourses(filepath.Join(dir, "missing.json")); err == nil {
		t.Error("readCustomCourses(missing) should fail")
	}
}

func TestOnOffAndConfigured(t *testing.T) {
	if onOff(true) != "enabled" || onOff(false) != "disabled" {
		t.Error("onOff() mismatch")
	}
	if configured("") != "✗" || configured("postgres://x") != "✓" {
		t.Error("configured() mismatch")
	}
}

func TestRenderLogLine(t *testing.T) {
	line := `{"time":"2024-10-27T08:00:00Z","level":"WARN","msg":"prefetch semester failed","semester":"2024b","job_id":"j1"}`
	got, lvl := renderLogLine(line)
	if lvl != slog.LevelWarn {
		t.Errorf("level = %v, want WARN", lvl)
	}
	if !strings.Contains(got, "WARN  prefetch semester failed job_id=j1 semester=2024b") {
		t.Errorf("renderLogLine() = %q", got)
	}

	plain, lvl := renderLogLine("panic: something odd")
	if plain != "panic: something odd" || lvl != slog.LevelInfo {
		t.Errorf("renderLogLine(plain) = %q, %v", plain, lvl)
	}
}

func TestTailLines(t *testing.T) {
	var buf bytes.Buffer
	for i := 1; i <= 10; i++ {
		level := "INFO"
		if i%2 == 0 {
			level = "ERROR"
		}
		fmt.Fprintf(&buf, `{"time":"2024-10-27T08:00:00Z","level":%q,"msg":"line %d"}`+"\n", level, i)
	}

	got, err := tailLines(bytes.NewReader(buf.Bytes()), 3, slog.LevelDebug)
	if err != nil {
		t.Fatalf("tailLines() error = %v", err)
	}
	if len(got) != 3 || !strings.HasSuffix(got[0], "line 8") || !strings.HasSuffix(got[2], "line 10") {
		t.Errorf("tailLines(3) = %q", got)
	}

	errs, err := tailLines(bytes.NewReader(buf.Bytes()), 0, slog.LevelError)
	if err != nil {
		t.Fatalf("tailLines() error = %v", err)
	}
	if len(errs) != 5 {
		t.Errorf("tailLines(error) = %d lines, want 5", len(errs))
	}
}

func TestMinLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"":      slog.LevelDebug,
		"warn":  slog.LevelWarn,
		"ERROR": slog.LevelError,
		"loud":  slog.LevelDebug,
	}
	for name, want := range tests {
		if got := minLevel(name); got != want {
			t.Errorf("minLevel(%q) = %v, want %v", name, got, want)
		}
	}
}

func TestReadPID(t *testing.T) {
	dir := t.TempDir()

	good := filepath.Join(dir, "good.pid")
	os.WriteFile(good, []byte("4242\n"), 0644)
	if pid, err := readPID(good); err != nil || pid != 4242 {
		t.Errorf("readPID() = %d, %v; want 4242", pid, err)
	}

	bad := filepath.Join(dir, "bad.pid")
	os.WriteFile(bad, []byte("not-a-pid"), 0644)
	if _, err := readPID(bad); err == nil {
		t.Error("readPID(corrupt) should fail")
	}

	if _, err := readPID(filepath.Join(dir, "missing.pid")); err == nil {
		t.Error("readPID(missing) should fail")
	}
}

func TestPrintDocument(t *testing.T) {
	var out bytes.Buffer
	if err := printDocument([]byte(`{"semester":"2024a"}`), &out); err != nil {
		t.Fatalf("printDocument() error = %v", err)
	}
	if out.String() != "{\n  \"semester\": \"2024a\"\n}\n" {
		t.Errorf("printDocument() = %q", out.String())
	}

	out.Reset()
	printDocument([]byte(`{"courses":{`), &out)
	if out.String() != "{\"courses\":{\n" {
		t.Errorf("printDocument(broken) = %q", out.String())
	}
}
