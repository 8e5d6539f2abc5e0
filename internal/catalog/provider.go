package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/arazimproject/dibit/internal/domain"
)

// DefaultBaseURL is the public catalog location.
const DefaultBaseURL = "https://arazim-project.com/data"

// Provider reads catalog documents through a Cache.
type Provider struct {
	baseURL string
	cache   *Cache
	now     func() time.Time
}

// NewProvider creates a provider for the catalog at baseURL.
func NewProvider(baseURL string, cache *Cache) *Provider {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Provider{
		baseURL: strings.TrimRight(baseURL, "/"),
		cache:   cache,
		now:     time.Now,
	}
}

// SemesterURL returns the catalog URL of a semester. The date parameter
// busts intermediate caches once a day.
func (p *Provider) SemesterURL(semester string) string {
	return fmt.Sprintf("%s/courses-%s.json?date=%s",
		p.baseURL, url.PathEscape(semester), p.now().Format("2006-01-02"))
}

// SemesterCourses returns the catalog of a semester.
func (p *Provider) SemesterCourses(ctx context.Context, semester string) (domain.SemesterCourses, error) {
	if _, err := domain.ParseSemester(semester); err != nil {
		return nil, err
	}
	var courses domain.SemesterCourses
	if err := p.getJSON(ctx, p.SemesterURL(semester), &courses); err != nil {
		return nil, err
	}
	if courses == nil {
		courses = domain.SemesterCourses{}
	}
	return courses, nil
}

// AllTimeCourses returns the all-semester catalog.
func (p *Provider) AllTimeCourses(ctx context.Context) (domain.AllTimeCourses, error) {
	var courses domain.AllTimeCourses
	if err := p.getJSON(ctx, p.baseURL+"/courses.json", &courses); err != nil {
		return nil, err
	}
	if courses == nil {
		courses = domain.AllTimeCourses{}
	}
	return courses, nil
}

// GeneralInfo returns the catalog metadata.
func (p *Provider) GeneralInfo(ctx context.Context) (domain.GeneralInfo, error) {
	var info domain.GeneralInfo
	if err := p.getJSON(ctx, p.baseURL+"/info.json", &info); err != nil {
		return domain.GeneralInfo{}, err
	}
	return info, nil
}

// SemesterWindow returns the teaching window of a semester.
func (p *Provider) SemesterWindow(ctx context.Context, semester string) (domain.SemesterWindow, error) {
	info, err := p.GeneralInfo(ctx)
	if err != nil {
		return domain.SemesterWindow{}, err
	}
	w, ok := info.Window(semester)
	if !ok {
		return domain.SemesterWindow{}, fmt.Errorf("%w: %s", domain.ErrSemesterUnknown, semester)
	}
	return w, nil
}

// Prefetch warms the cache for the given semesters. Failures are logged
// and do not abort the remaining fetches.
func (p *Provider) Prefetch(ctx context.Context, semesters ...string) int {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(2)

	loaded := make([]bool, len(semesters))
	for i, sem := range semesters {
		g.Go(func() error {
			if _, err := p.SemesterCourses(ctx, sem); err != nil {
				slog.Warn("prefetch failed", "semester", sem, "error", err)
				return nil
			}
			loaded[i] = true
			return nil
		})
	}
	_ = g.Wait()

	n := 0
	for _, ok := range loaded {
		if ok {
			n++
		}
	}
	return n
}

// UpcomingSemesters returns the semesters after the current one.
func UpcomingSemesters(info domain.GeneralInfo) []string {
	var upcoming []string
	for _, sem := range info.SemesterKeys() {
		if sem > info.CurrentSemester {
			upcoming = append(upcoming, sem)
		}
	}
	return upcoming
}

func (p *Provider) getJSON(ctx context.Context, rawURL string, v any) error {
	data, err := p.cache.Get(ctx, rawURL)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: decode %s: %v", ErrUnavailable, cacheKey(rawURL), err)
	}
	return nil
}
