// Package planner ties the selection container, the course catalog and the
// derived views together. Catalog failures degrade to empty data; only
// exports surface them.
package planner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/arazimproject/dibit/internal/calendar"
	"github.com/arazimproject/dibit/internal/cloudsync"
	"github.com/arazimproject/dibit/internal/domain"
	"github.com/arazimproject/dibit/internal/exams"
	"github.com/arazimproject/dibit/internal/prereq"
	"github.com/arazimproject/dibit/internal/schedule"
	"github.com/arazimproject/dibit/internal/selection"
)

// ErrSyncDisabled is returned by cloud operations when no store is configured.
var ErrSyncDisabled = errors.New("cloud sync is not configured")

// CatalogSource provides catalog documents.
type CatalogSource interface {
	SemesterCourses(ctx context.Context, semester string) (domain.SemesterCourses, error)
	AllTimeCourses(ctx context.Context) (domain.AllTimeCourses, error)
	GeneralInfo(ctx context.Context) (domain.GeneralInfo, error)
	SemesterWindow(ctx context.Context, semester string) (domain.SemesterWindow, error)
}

// Planner is the application facade used by the CLI, the daemon and the
// MCP server.
type Planner struct {
	container *selection.Container
	catalog   CatalogSource
	exporter  *calendar.Exporter
	sync      *cloudsync.Service
	logger    *slog.Logger
}

// Option configures a Planner.
type Option func(*config)

type config struct {
	calendarOpts []calendar.Option
	sync         *cloudsync.Service
	logger       *slog.Logger
}

// WithTimezone sets the timezone of calendar exports.
func WithTimezone(loc *time.Location) Option {
	return func(c *config) {
		c.calendarOpts = append(c.calendarOpts, calendar.WithLocation(loc))
	}
}

// WithClock sets the clock used for calendar timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *config) {
		c.calendarOpts = append(c.calendarOpts, calendar.WithClock(now))
	}
}

// WithCloudSync enables cloud save and restore.
func WithCloudSync(svc *cloudsync.Service) Option {
	return func(c *config) {
		c.sync = svc
	}
}

// WithLogger sets the planner logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		c.logger = logger
	}
}

// New creates a planner over container and source.
func New(container *selection.Container, source CatalogSource, opts ...Option) (*Planner, error) {
	cfg := &config{logger: slog.Default()}
	for _, opt := range opts {
		opt(cfg)
	}

	exporter, err := calendar.NewExporter(source, cfg.calendarOpts...)
	if err != nil {
		return nil, fmt.Errorf("create exporter: %w", err)
	}

	return &Planner{
		container: container,
		catalog:   source,
		exporter:  exporter,
		sync:      cfg.sync,
		logger:    cfg.logger,
	}, nil
}

// Selection returns a copy of the current selection document.
func (p *Planner) Selection() domain.DibIt {
	return p.container.Get()
}

// Update applies a mutation to the selection document.
func (p *Planner) Update(ctx context.Context, m selection.Mutation) (domain.DibIt, error) {
	return p.container.Update(ctx, m)
}

// Subscribe registers an observer of selection changes.
func (p *Planner) Subscribe(o selection.Observer) (unsubscribe func()) {
	return p.container.Subscribe(o)
}

// Semester resolves the semester to operate on: the explicit argument,
// else the viewed semester, else the catalog's current semester.
func (p *Planner) Semester(ctx context.Context, explicit string) string {
	if explicit != "" {
		return explicit
	}
	if sem := p.Selection().Semester; sem != "" {
		return sem
	}
	info, err := p.catalog.GeneralInfo(ctx)
	if err != nil {
		p.logger.Warn("catalog metadata unavailable", "error", err)
		return ""
	}
	return info.CurrentSemester
}

// Info returns the catalog metadata, or empty metadata when unavailable.
func (p *Planner) Info(ctx context.Context) domain.GeneralInfo {
	info, err := p.catalog.GeneralInfo(ctx)
	if err != nil {
		p.logger.Warn("catalog metadata unavailable", "error", err)
		return domain.GeneralInfo{Semesters: map[string]domain.SemesterWindow{}}
	}
	return info
}

// Catalog returns the semester catalog with the user's custom courses
// merged over it. A fetch failure yields only the custom courses.
func (p *Planner) Catalog(ctx context.Context, semester string) domain.SemesterCourses {
	fetched, err := p.catalog.SemesterCourses(ctx, semester)
	if err != nil {
		p.logger.Warn("semester catalog unavailable", "semester", semester, "error", err)
		fetched = domain.SemesterCourses{}
	}
	custom := p.Selection().CustomCatalog()
	if len(custom) == 0 {
		return fetched
	}
	return fetched.Merge(custom)
}

// AllTime returns the all-semester catalog, or an empty one when unavailable.
func (p *Planner) AllTime(ctx context.Context) domain.AllTimeCourses {
	all, err := p.catalog.AllTimeCourses(ctx)
	if err != nil {
		p.logger.Warn("all-time catalog unavailable", "error", err)
		return domain.AllTimeCourses{}
	}
	return all
}

// SearchCourses returns catalog courses whose ID starts with query or
// whose name contains it, ordered by ID. An empty query matches all.
func (p *Planner) SearchCourses(ctx context.Context, semester, query string) []domain.Course {
	catalog := p.Catalog(ctx, semester)
	query = strings.ToLower(strings.TrimSpace(query))

	var out []domain.Course
	for _, id := range catalog.IDs() {
		c, _ := catalog.Lookup(id)
		if query == "" ||
			strings.HasPrefix(strings.ToLower(id), query) ||
			strings.Contains(strings.ToLower(c.Name), query) {
			out = append(out, c)
		}
	}
	return out
}

// AddCourse selects a course. When the catalog is available the course
// must exist in it.
func (p *Planner) AddCourse(ctx context.Context, semester, courseID string) (domain.DibIt, error) {
	catalog := p.Catalog(ctx, semester)
	if len(catalog) > 0 {
		if _, ok := catalog.Lookup(courseID); !ok {
			return domain.DibIt{}, fmt.Errorf("%w: %s in %s", domain.ErrCourseNotFound, courseID, semester)
		}
	}
	return p.Update(ctx, selection.AddCourse(semester, courseID))
}

// ScheduleView is the weekly grid of a semester with its annotations.
type ScheduleView struct {
	Semester string             `json:"semester"`
	Week     schedule.Week      `json:"week"`
	Hours    int                `json:"hours"`
	Overlaps []schedule.Overlap `json:"overlaps"`
}

// Schedule builds the weekly grid of a semester.
func (p *Planner) Schedule(ctx context.Context, semester string) ScheduleView {
	week := schedule.Build(p.Selection().SemesterCourses(semester), p.Catalog(ctx, semester))
	overlaps := schedule.Overlaps(week)
	if overlaps == nil {
		overlaps = []schedule.Overlap{}
	}
	return ScheduleView{
		Semester: semester,
		Week:     week,
		Hours:    schedule.WeeklyHours(week),
		Overlaps: overlaps,
	}
}

// Exams analyzes the exam timeline of a semester.
func (p *Planner) Exams(ctx context.Context, semester string) exams.Timeline {
	return exams.Analyze(p.Selection().SemesterCourses(semester), p.Catalog(ctx, semester))
}

// Prerequisites checks every selected course of a semester.
func (p *Planner) Prerequisites(ctx context.Context, semester string) map[string]prereq.Verdict {
	format := prereq.NameFormatter(p.AllTime(ctx))
	return prereq.CheckSemester(p.Selection(), semester, p.Catalog(ctx, semester), format)
}

// RankCandidates orders candidate courses of a semester by how far their
// exams fall from the exams of the courses already selected.
func (p *Planner) RankCandidates(ctx context.Context, semester string, candidates []string) []exams.Candidate {
	d := p.Selection()
	h := prereq.NewHistory(d, semester)

	selected := make(map[string]bool)
	for _, c := range d.SemesterCourses(semester) {
		selected[c.ID] = true
	}
	return exams.RankByExamFit(candidates, h.Past, selected, p.Catalog(ctx, semester))
}

// ExportCalendar renders the semester as an iCalendar payload. Unlike the
// views, a catalog failure fails the export.
func (p *Planner) ExportCalendar(ctx context.Context, semester string) ([]byte, error) {
	catalog, err := p.catalog.SemesterCourses(ctx, semester)
	if err != nil {
		return nil, fmt.Errorf("export calendar: %w", err)
	}
	catalog = catalog.Merge(p.Selection().CustomCatalog())
	return p.exporter.Export(ctx, semester, p.Selection().SemesterCourses(semester), catalog)
}

// ExportXLSX writes the weekly grid of a semester as a spreadsheet.
func (p *Planner) ExportXLSX(ctx context.Context, semester string, w io.Writer) error {
	view := p.Schedule(ctx, semester)
	title := "מערכת שעות"
	if s, err := domain.ParseSemester(semester); err == nil {
		title += " " + s.HebrewName()
	}
	return calendar.WriteWeekXLSX(w, title, view.Week)
}

// ExportDocument returns the selection document as indented JSON.
func (p *Planner) ExportDocument() ([]byte, error) {
	return json.MarshalIndent(p.Selection(), "", "  ")
}

// ImportDocument replaces the selection with a previously exported document.
func (p *Planner) ImportDocument(ctx context.Context, data []byte) (domain.DibIt, error) {
	d, err := domain.DecodeDibIt(data)
	if err != nil {
		return domain.DibIt{}, err
	}
	return p.Update(ctx, selection.Import(d))
}

// SaveToCloud uploads the selection for uid.
func (p *Planner) SaveToCloud(ctx context.Context, uid string) error {
	if p.sync == nil {
		return ErrSyncDisabled
	}
	return p.sync.Save(ctx, uid, p.Selection())
}

// RestoreFromCloud replaces the selection with the cloud copy of uid.
func (p *Planner) RestoreFromCloud(ctx context.Context, uid string) (domain.DibIt, error) {
	if p.sync == nil {
		return domain.DibIt{}, ErrSyncDisabled
	}
	d, err := p.sync.Restore(ctx, uid)
	if err != nil {
		return domain.DibIt{}, err
	}
	return p.Update(ctx, selection.Import(d))
}

// SemesterSummary describes one semester with a selection.
type SemesterSummary struct {
	Semester string `json:"semester"`
	Name     string `json:"name"`
	Courses  int    `json:"courses"`
	Current  bool   `json:"current"`
}

// Semesters lists every semester known to the catalog or the selection.
func (p *Planner) Semesters(ctx context.Context) []SemesterSummary {
	d := p.Selection()
	info := p.Info(ctx)

	keys := make(map[string]struct{})
	for _, sem := range info.SemesterKeys() {
		keys[sem] = struct{}{}
	}
	for _, sem := range d.Semesters() {
		keys[sem] = struct{}{}
	}

	out := make([]SemesterSummary, 0, len(keys))
	for sem := range keys {
		name := sem
		if s, err := domain.ParseSemester(sem); err == nil {
			name = s.HebrewName()
		}
		out = append(out, SemesterSummary{
			Semester: sem,
			Name:     name,
			Courses:  len(d.Courses[sem]),
			Current:  sem == info.CurrentSemester,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Semester < out[j].Semester })
	return out
}
