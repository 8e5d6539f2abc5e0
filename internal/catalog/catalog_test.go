package catalog

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/arazimproject/dibit/internal/domain"
)

const semesterJSON = `{
	"0368-2157": {
		"name": "אלגוריתמים",
		"faculty": "מדעי המחשב",
		"exams": [{"date": "01/02/2024", "moed": "א"}],
		"groups": [{"group": "01", "lecturer": "כהן", "lessons": [
			{"day": "ב", "time": "10:00-12:00", "building": "שרייבר", "room": "006", "type": "שיעור"}
		]}]
	}
}`

const infoJSON = `{
	"currentSemester": "2024a",
	"semesters": {
		"2023b": {"startDate": "2024-03-03", "endDate": "2024-06-30"},
		"2024a": {"startDate": "2024-10-27", "endDate": "2025-01-24"},
		"2024b": {"startDate": "2025-03-02", "endDate": "2025-06-27"}
	}
}`

type countingServer struct {
	*httptest.Server
	hits atomic.Int32
}

func newCatalogServer(t *testing.T) *countingServer {
	t.Helper()
	cs := &countingServer{}
	mux := http.NewServeMux()
	mux.HandleFunc("/data/courses-2024a.json", func(w http.ResponseWriter, r *http.Request) {
		cs.hits.Add(1)
		if r.URL.Query().Get("date") == "" {
			http.Error(w, "missing date", http.StatusBadRequest)
			return
		}
		w.Write([]byte(semesterJSON))
	})
	mux.HandleFunc("/data/courses-2024b.json", func(w http.ResponseWriter, r *http.Request) {
		cs.hits.Add(1)
		w.Write([]byte(`{}`))
	})
	mux.HandleFunc("/data/info.json", func(w http.ResponseWriter, r *http.Request) {
		cs.hits.Add(1)
		w.Write([]byte(infoJSON))
	})
	mux.HandleFunc("/data/courses.json", func(w http.ResponseWriter, r *http.Request) {
		cs.hits.Add(1)
		w.Write([]byte(`{"0368-2157": {"name": "אלגוריתמים", "semesters": ["2023a", "2024a"]}}`))
	})
	cs.Server = httptest.NewServer(mux)
	t.Cleanup(cs.Close)
	return cs
}

func newTestProvider(srv *countingServer, opts ...CacheOption) *Provider {
	return NewProvider(srv.URL+"/data/", NewCache(NewHTTPFetcher(5*time.Second), opts...))
}

func TestProviderSemesterCourses(t *testing.T) {
	srv := newCatalogServer(t)
	p := newTestProvider(srv)

	courses, err := p.SemesterCourses(context.Background(), "2024a")
	if err != nil {
		t.Fatalf("SemesterCourses() error = %v", err)
	}

	c, ok := courses.Lookup("0368-2157")
	if !ok {
		t.Fatal("course 0368-2157 not found")
	}
	if c.ID != "0368-2157" {
		t.Errorf("ID = %q, want 0368-2157", c.ID)
	}
	if len(c.Groups) != 1 || c.Groups[0].LecturerName() != "כהן" {
		t.Errorf("Groups = %+v", c.Groups)
	}
}

func TestProviderFetchesOnce(t *testing.T) {
	srv := newCatalogServer(t)
	p := newTestProvider(srv)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := p.SemesterCourses(ctx, "2024a"); err != nil {
				t.Errorf("SemesterCourses() error = %v", err)
			}
		}()
	}
	wg.Wait()

	if _, err := p.SemesterCourses(ctx, "2024a"); err != nil {
		t.Fatalf("SemesterCourses() error = %v", err)
	}
	if got := srv.hits.Load(); got != 1 {
		t.Errorf("server hits = %d, want 1", got)
	}
}

func TestProviderRejectsInvalidSemester(t *testing.T) {
	srv := newCatalogServer(t)
	p := newTestProvider(srv)

	_, err := p.SemesterCourses(context.Background(), "../info")
	if !errors.Is(err, domain.ErrInvalidSemester) {
		t.Errorf("error = %v, want ErrInvalidSemester", err)
	}
	if srv.hits.Load() != 0 {
		t.Error("invalid semester reached the server")
	}
}

func TestProviderUnavailable(t *testing.T) {
	srv := newCatalogServer(t)
	p := newTestProvider(srv)

	_, err := p.SemesterCourses(context.Background(), "2019a")
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("error = %v, want ErrUnavailable", err)
	}
	var statusErr *StatusError
	if !strings.Contains(err.Error(), "404") && !errors.As(err, &statusErr) {
		t.Errorf("error = %v, want status 404 detail", err)
	}
}

func TestProviderSemesterWindow(t *testing.T) {
	srv := newCatalogServer(t)
	p := newTestProvider(srv)
	ctx := context.Background()

	w, err := p.SemesterWindow(ctx, "2024a")
	if err != nil {
		t.Fatalf("SemesterWindow() error = %v", err)
	}
	if w.StartDate != "2024-10-27" || w.EndDate != "2025-01-24" {
		t.Errorf("window = %+v", w)
	}

	_, err = p.SemesterWindow(ctx, "2030a")
	if !errors.Is(err, domain.ErrSemesterUnknown) {
		t.Errorf("error = %v, want ErrSemesterUnknown", err)
	}
}

func TestProviderAllTimeCourses(t *testing.T) {
	srv := newCatalogServer(t)
	p := newTestProvider(srv)

	all, err := p.AllTimeCourses(context.Background())
	if err != nil {
		t.Fatalf("AllTimeCourses() error = %v", err)
	}
	if got := all["0368-2157"].Semesters; len(got) != 2 {
		t.Errorf("Semesters = %v, want 2 entries", got)
	}
}

func TestProviderPrefetch(t *testing.T) {
	srv := newCatalogServer(t)
	p := newTestProvider(srv)
	ctx := context.Background()

	info, err := p.GeneralInfo(ctx)
	if err != nil {
		t.Fatalf("GeneralInfo() error = %v", err)
	}
	upcoming := UpcomingSemesters(info)
	if len(upcoming) != 1 || upcoming[0] != "2024b" {
		t.Fatalf("UpcomingSemesters() = %v, want [2024b]", upcoming)
	}

	if n := p.Prefetch(ctx, append(upcoming, "2019a")...); n != 1 {
		t.Errorf("Prefetch() = %d, want 1", n)
	}
	if p.cache.Len() != 2 {
		t.Errorf("cache Len() = %d, want 2", p.cache.Len())
	}
}

func TestSemesterURL(t *testing.T) {
	p := NewProvider("https://example.com/data/", NewCache(nil))
	p.now = func() time.Time { return time.Date(2024, 3, 5, 12, 0, 0, 0, time.UTC) }

	want := "https://example.com/data/courses-2024a.json?date=2024-03-05"
	if got := p.SemesterURL("2024a"); got != want {
		t.Errorf("SemesterURL() = %q, want %q", got, want)
	}
}

type memoryStore struct {
	mu   sync.Mutex
	data map[string][]byte
	at   map[string]time.Time
}

func newMemoryStore() *memoryStore {
	return &memoryStore{data: map[string][]byte{}, at: map[string]time.Time{}}
}

func (s *memoryStore) GetDocument(_ context.Context, key string) ([]byte, time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.data[key]
	if !ok {
		return nil, time.Time{}, ErrCacheMiss
	}
	return d, s.at[key], nil
}

func (s *memoryStore) PutDocument(_ context.Context, key string, data []byte, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = data
	s.at[key] = at
	return nil
}

type fetchFunc func(ctx context.Context, url string) ([]byte, error)

func (f fetchFunc) Fetch(ctx context.Context, url string) ([]byte, error) { return f(ctx, url) }

func TestCacheStoreFreshAndStale(t *testing.T) {
	now := time.Date(2024, 3, 5, 12, 0, 0, 0, time.UTC)
	store := newMemoryStore()
	store.PutDocument(context.Background(), "https://x/info.json", []byte(`"stored"`), now.Add(-time.Hour))

	var calls int
	failing := fetchFunc(func(context.Context, string) ([]byte, error) {
		calls++
		return nil, &StatusError{URL: "https://x/info.json", Code: 503}
	})

	fresh := NewCache(failing, WithStore(store, 2*time.Hour), WithCacheClock(func() time.Time { return now }))
	data, err := fresh.Get(context.Background(), "https://x/info.json?date=2024-03-05")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if string(data) != `"stored"` || calls != 0 {
		t.Errorf("fresh Get() = %s after %d fetches", data, calls)
	}

	stale := NewCache(failing, WithStore(store, time.Minute), WithCacheClock(func() time.Time { return now }))
	data, err = stale.Get(context.Background(), "https://x/info.json")
	if err != nil {
		t.Fatalf("stale Get() error = %v", err)
	}
	if string(data) != `"stored"` || calls != 1 {
		t.Errorf("stale Get() = %s after %d fetches", data, calls)
	}
}

func TestCacheWritesThrough(t *testing.T) {
	store := newMemoryStore()
	ok := fetchFunc(func(context.Context, string) ([]byte, error) { return []byte(`{}`), nil })

	c := NewCache(ok, WithStore(store, time.Hour))
	if _, err := c.Get(context.Background(), "https://x/courses.json?date=1"); err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if _, _, err := store.GetDocument(context.Background(), "https://x/courses.json"); err != nil {
		t.Errorf("store GetDocument() error = %v", err)
	}

	if c.Len() != 1 {
		t.Errorf("Len() = %d, want 1", c.Len())
	}
}

func TestCacheMemoryEntriesExpire(t *testing.T) {
	now := time.Date(2024, 3, 5, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	var calls int
	var fail bool
	fetcher := fetchFunc(func(context.Context, string) ([]byte, error) {
		calls++
		if fail {
			return nil, &StatusError{URL: "https://x/courses-2024a.json", Code: 503}
		}
		return []byte(fmt.Sprintf(`{"v":%d}`, calls)), nil
	})
	c := NewCache(fetcher, WithStore(newMemoryStore(), time.Hour), WithCacheClock(clock))
	ctx := context.Background()
	url := "https://x/courses-2024a.json"

	get := func() string {
		t.Helper()
		data, err := c.Get(ctx, url)
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		return string(data)
	}

	if got := get(); got != `{"v":1}` {
		t.Fatalf("first Get() = %s", got)
	}
	now = now.Add(30 * time.Minute)
	if got := get(); got != `{"v":1}` || calls != 1 {
		t.Errorf("Get() within TTL = %s after %d fetches", got, calls)
	}

	now = now.Add(time.Hour)
	if got := get(); got != `{"v":2}` || calls != 2 {
		t.Errorf("Get() after TTL = %s after %d fetches", got, calls)
	}

	now = now.Add(2 * time.Hour)
	fail = true
	if got := get(); got != `{"v":2}` || calls != 3 {
		t.Errorf("Get() with network down = %s after %d fetches", got, calls)
	}
	if got := get(); got != `{"v":2}` || calls != 3 {
		t.Errorf("stale copy refetched immediately: %s after %d fetches", got, calls)
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"503", &StatusError{Code: 503}, true},
		{"429", &StatusError{Code: 429}, true},
		{"404", &StatusError{Code: 404}, false},
		{"plain", errors.New("boom"), false},
		{"context deadline", context.DeadlineExceeded, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isRetryable(tt.err); got != tt.want {
				t.Errorf("isRetryable(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestResilientFetcherRetries(t *testing.T) {
	var calls atomic.Int32
	flaky := fetchFunc(func(context.Context, string) ([]byte, error) {
		if calls.Add(1) < 2 {
			return nil, &StatusError{Code: 502}
		}
		return []byte("ok"), nil
	})

	cfg := DefaultResilientConfig()
	cfg.EnableRateLimit = false
	rf := NewResilientFetcher(flaky, cfg)
	defer rf.Close()

	data, err := rf.Fetch(context.Background(), "https://x/info.json")
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if string(data) != "ok" || calls.Load() != 2 {
		t.Errorf("Fetch() = %q after %d calls", data, calls.Load())
	}
}
