package mcp

import (
	"context"
	"fmt"
	"sort"
	"strings"

	mcp "github.com/felixgeelhaar/mcp-go"
	"github.com/felixgeelhaar/mcp-go/server"

	"github.com/arazimproject/dibit/internal/domain"
	"github.com/arazimproject/dibit/internal/planner"
	"github.com/arazimproject/dibit/internal/selection"
)

// Server wraps the MCP server with Dib It planning tools
type Server struct {
	mcpServer *server.Server
	planner   *planner.Planner
}

// Config contains configuration for the MCP server
type Config struct {
	Planner *planner.Planner
	Version string
}

// NewServer creates a new MCP server for Dib It
func NewServer(cfg Config) *Server {
	s := &Server{
		planner: cfg.Planner,
	}

	version := cfg.Version
	if version == "" {
		version = "dev"
	}

	s.mcpServer = server.New(server.Info{
		Name:    "dibit",
		Version: version,
	}, server.WithInstructions(`
Dib It plans a Tel Aviv University semester: it keeps the courses and groups
a student picked and derives the weekly timetable, the exam timeline and
prerequisite checks from the course catalog.

Semesters are keys like "2024a" (winter) and "2024b" (spring). An empty
semester means the one currently viewed.

Available tools:
- dibit_semesters: List semesters with their selections
- dibit_search_courses: Search the catalog by course ID prefix or name
- dibit_add_course / dibit_remove_course: Change the selection
- dibit_toggle_group: Select or deselect a course group
- dibit_schedule: Weekly timetable with overlaps and total hours
- dibit_exams: Exam timeline with gaps and same-day collisions
- dibit_prerequisites: Check prerequisites of the selected courses
- dibit_export_calendar: iCalendar export of the weekly lessons
`))

	s.registerTools()

	return s
}

// registerTools registers all Dib It MCP tools
func (s *Server) registerTools() {
	s.mcpServer.Tool("dibit_semesters").
		Description("List known semesters and how many courses are selected in each.").
		Handler(s.handleSemesters)

	s.mcpServer.Tool("dibit_search_courses").
		Description("Search the semester catalog by course ID prefix or name.").
		Handler(s.handleSearch)

	s.mcpServer.Tool("dibit_add_course").
		Description("Add a catalog course to the semester selection.").
		Handler(s.handleAddCourse)

	s.mcpServer.Tool("dibit_remove_course").
		Description("Remove a course from the semester selection.").
		Handler(s.handleRemoveCourse)

	s.mcpServer.Tool("dibit_toggle_group").
		Description("Select a course group, or deselect it when already selected.").
		Handler(s.handleToggleGroup)

	s.mcpServer.Tool("dibit_schedule").
		Description("Get the weekly timetable of the selected groups.").
		Handler(s.handleSchedule)

	s.mcpServer.Tool("dibit_exams").
		Description("Get the exam timeline of the selected courses.").
		Handler(s.handleExams)

	s.mcpServer.Tool("dibit_prerequisites").
		Description("Check the prerequisites of every selected course.").
		Handler(s.handlePrerequisites)

	s.mcpServer.Tool("dibit_export_calendar").
		Description("Export the weekly lessons as an iCalendar document.").
		Handler(s.handleExportCalendar)
}

// Input/Output types for tools

type SemesterInput struct {
	Semester string `json:"semester,omitempty" jsonschema:"description=Semester key such as 2024a; empty for the viewed semester"`
}

type SemesterSummary struct {
	Semester string `json:"semester"`
	Name     string `json:"name"`
	Courses  int    `json:"courses"`
	Current  bool   `json:"current"`
}

type SemestersOutput struct {
	Current   string            `json:"current"`
	Semesters []SemesterSummary `json:"semesters"`
}

type SearchInput struct {
	Semester string `json:"semester,omitempty" jsonschema:"description=Semester key such as 2024a; empty for the viewed semester"`
	Query    string `json:"query" jsonschema:"description=Course ID prefix or part of the course name"`
	Limit    int    `json:"limit,omitempty" jsonschema:"description=Maximum number of results (default: 20)"`
}

type CourseSummary struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	Faculty   string   `json:"faculty,omitempty"`
	Lecturers []string `json:"lecturers,omitempty"`
	Groups    []string `json:"groups"`
	Selected  bool     `json:"selected"`
}

type SearchOutput struct {
	Semester string          `json:"semester"`
	Courses  []CourseSummary `json:"courses"`
	Total    int             `json:"total"`
}

type CourseInput struct {
	Semester string `json:"semester,omitempty" jsonschema:"description=Semester key such as 2024a; empty for the viewed semester"`
	CourseID string `json:"course_id" jsonschema:"description=Course ID such as 0368-2157"`
}

type GroupInput struct {
	Semester string `json:"semester,omitempty" jsonschema:"description=Semester key such as 2024a; empty for the viewed semester"`
	CourseID string `json:"course_id" jsonschema:"description=Course ID such as 0368-2157"`
	Group    string `json:"group" jsonschema:"description=Group ID such as 01"`
}

type SelectionOutput struct {
	Semester string   `json:"semester"`
	Courses  []string `json:"courses"`
	Message  string   `json:"message"`
}

type ScheduleEvent struct {
	Day      string `json:"day"`
	Start    string `json:"start"`
	End      string `json:"end"`
	CourseID string `json:"course_id"`
	Group    string `json:"group"`
	Title    string `json:"title"`
	Location string `json:"location,omitempty"`
}

type ScheduleOutput struct {
	Semester string          `json:"semester"`
	Events   []ScheduleEvent `json:"events"`
	Hours    int             `json:"hours"`
	Overlaps []string        `json:"overlaps"`
}

type ExamItem struct {
	Date      string `json:"date"`
	Hour      string `json:"hour,omitempty"`
	CourseID  string `json:"course_id"`
	Course    string `json:"course"`
	Moed      string `json:"moed"`
	DaysAfter string `json:"days_after"`
	Collision bool   `json:"collision"`
}

type ExamsOutput struct {
	Semester   string     `json:"semester"`
	Exams      []ExamItem `json:"exams"`
	Collisions int        `json:"collisions"`
}

type PrerequisiteItem struct {
	CourseID  string `json:"course_id"`
	Satisfied bool   `json:"satisfied"`
	Missing   string `json:"missing,omitempty"`
}

type PrerequisitesOutput struct {
	Semester string             `json:"semester"`
	Courses  []PrerequisiteItem `json:"courses"`
	AllMet   bool               `json:"all_met"`
}

type CalendarOutput struct {
	Semester string `json:"semester"`
	Calendar string `json:"calendar"`
}

// Tool handlers

func (s *Server) semester(ctx context.Context, raw string) (string, error) {
	sem, err := domain.ParseSemester(s.planner.Semester(ctx, raw))
	if err != nil {
		return "", err
	}
	return sem.String(), nil
}

func (s *Server) handleSemesters(ctx context.Context, _ SemesterInput) (SemestersOutput, error) {
	summaries := s.planner.Semesters(ctx)
	out := SemestersOutput{
		Current:   s.planner.Semester(ctx, ""),
		Semesters: make([]SemesterSummary, 0, len(summaries)),
	}
	for _, sum := range summaries {
		out.Semesters = append(out.Semesters, SemesterSummary(sum))
	}
	return out, nil
}

func (s *Server) handleSearch(ctx context.Context, input SearchInput) (SearchOutput, error) {
	sem, err := s.semester(ctx, input.Semester)
	if err != nil {
		return SearchOutput{}, err
	}
	limit := input.Limit
	if limit <= 0 {
		limit = 20
	}

	selected := make(map[string]bool)
	for _, c := range s.planner.Selection().SemesterCourses(sem) {
		selected[c.ID] = true
	}

	courses := s.planner.SearchCourses(ctx, sem, input.Query)
	out := SearchOutput{Semester: sem, Courses: []CourseSummary{}, Total: len(courses)}
	for i, c := range courses {
		if i == limit {
			break
		}
		groups := make([]string, 0, len(c.Groups))
		for _, g := range c.Groups {
			groups = append(groups, g.Group)
		}
		out.Courses = append(out.Courses, CourseSummary{
			ID:        c.ID,
			Name:      c.Name,
			Faculty:   c.Faculty,
			Lecturers: c.Lecturers(),
			Groups:    groups,
			Selected:  selected[c.ID],
		})
	}
	return out, nil
}

func selectionOutput(d domain.DibIt, sem, message string) SelectionOutput {
	ids := []string{}
	for _, c := range d.SemesterCourses(sem) {
		ids = append(ids, c.ID)
	}
	return SelectionOutput{Semester: sem, Courses: ids, Message: message}
}

func (s *Server) handleAddCourse(ctx context.Context, input CourseInput) (SelectionOutput, error) {
	sem, err := s.semester(ctx, input.Semester)
	if err != nil {
		return SelectionOutput{}, err
	}
	d, err := s.planner.AddCourse(ctx, sem, strings.TrimSpace(input.CourseID))
	if err != nil {
		return SelectionOutput{}, fmt.Errorf("failed to add course: %w", err)
	}
	return selectionOutput(d, sem, fmt.Sprintf("Added %s. Pick a group with dibit_toggle_group.", input.CourseID)), nil
}

func (s *Server) handleRemoveCourse(ctx context.Context, input CourseInput) (SelectionOutput, error) {
	sem, err := s.semester(ctx, input.Semester)
	if err != nil {
		return SelectionOutput{}, err
	}
	d, err := s.planner.Update(ctx, selection.RemoveCourse(sem, input.CourseID))
	if err != nil {
		return SelectionOutput{}, fmt.Errorf("failed to remove course: %w", err)
	}
	return selectionOutput(d, sem, fmt.Sprintf("Removed %s.", input.CourseID)), nil
}

func (s *Server) handleToggleGroup(ctx context.Context, input GroupInput) (SelectionOutput, error) {
	sem, err := s.semester(ctx, input.Semester)
	if err != nil {
		return SelectionOutput{}, err
	}
	d, err := s.planner.Update(ctx, selection.ToggleGroup(sem, input.CourseID, input.Group))
	if err != nil {
		return SelectionOutput{}, fmt.Errorf("failed to toggle group: %w", err)
	}

	state := "deselected"
	if i := d.IndexOf(sem, input.CourseID); i >= 0 && d.Courses[sem][i].HasGroup(input.Group) {
		state = "selected"
	}
	return selectionOutput(d, sem, fmt.Sprintf("Group %s of %s %s.", input.Group, input.CourseID, state)), nil
}

func (s *Server) handleSchedule(ctx context.Context, input SemesterInput) (ScheduleOutput, error) {
	sem, err := s.semester(ctx, input.Semester)
	if err != nil {
		return ScheduleOutput{}, err
	}

	view := s.planner.Schedule(ctx, sem)
	out := ScheduleOutput{Semester: sem, Hours: view.Hours, Events: []ScheduleEvent{}, Overlaps: []string{}}
	for _, e := range view.Week.Events() {
		out.Events = append(out.Events, ScheduleEvent{
			Day:      e.Day.HebrewName(),
			Start:    fmt.Sprintf("%02d:00", e.StartHour),
			End:      fmt.Sprintf("%02d:00", e.EndHour),
			CourseID: e.CourseID,
			Group:    e.Group,
			Title:    e.Title,
			Location: e.Subtitle,
		})
	}
	for _, o := range view.Overlaps {
		out.Overlaps = append(out.Overlaps, fmt.Sprintf("%s: %s overlaps %s", o.Day.HebrewName(), o.First.Title, o.Second.Title))
	}
	return out, nil
}

func (s *Server) handleExams(ctx context.Context, input SemesterInput) (ExamsOutput, error) {
	sem, err := s.semester(ctx, input.Semester)
	if err != nil {
		return ExamsOutput{}, err
	}

	timeline := s.planner.Exams(ctx, sem)
	out := ExamsOutput{Semester: sem, Exams: []ExamItem{}, Collisions: len(timeline.Collisions())}
	for _, g := range timeline.Gaps() {
		out.Exams = append(out.Exams, ExamItem{
			Date:      g.Entry.DayKey(),
			Hour:      g.Entry.Hour,
			CourseID:  g.Entry.CourseID,
			Course:    g.Entry.CourseName,
			Moed:      g.Entry.Moed,
			DaysAfter: g.Label,
			Collision: g.Collision,
		})
	}
	return out, nil
}

func (s *Server) handlePrerequisites(ctx context.Context, input SemesterInput) (PrerequisitesOutput, error) {
	sem, err := s.semester(ctx, input.Semester)
	if err != nil {
		return PrerequisitesOutput{}, err
	}

	verdicts := s.planner.Prerequisites(ctx, sem)
	ids := make([]string, 0, len(verdicts))
	for id := range verdicts {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	out := PrerequisitesOutput{Semester: sem, Courses: []PrerequisiteItem{}, AllMet: true}
	for _, id := range ids {
		v := verdicts[id]
		out.Courses = append(out.Courses, PrerequisiteItem{CourseID: id, Satisfied: v.Satisfied, Missing: v.Missing})
		if !v.Satisfied {
			out.AllMet = false
		}
	}
	return out, nil
}

func (s *Server) handleExportCalendar(ctx context.Context, input SemesterInput) (CalendarOutput, error) {
	sem, err := s.semester(ctx, input.Semester)
	if err != nil {
		return CalendarOutput{}, err
	}
	payload, err := s.planner.ExportCalendar(ctx, sem)
	if err != nil {
		return CalendarOutput{}, fmt.Errorf("failed to export calendar: %w", err)
	}
	return CalendarOutput{Semester: sem, Calendar: string(payload)}, nil
}

// ServeStdio starts the MCP server on stdio
func (s *Server) ServeStdio(ctx context.Context) error {
	return mcp.ServeStdio(ctx, s.mcpServer)
}

// ServeHTTP starts the MCP server on HTTP (alternative transport)
func (s *Server) ServeHTTP(ctx context.Context, addr string) error {
	return mcp.ServeHTTP(ctx, s.mcpServer, addr)
}

// GetMCPServer returns the underlying MCP server (for testing)
func (s *Server) GetMCPServer() *server.Server {
	return s.mcpServer
}
