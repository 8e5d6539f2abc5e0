package local

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/arazimproject/dibit/internal/domain"
	"github.com/arazimproject/dibit/internal/selection"
)

func TestSelectionRepository_SaveLoad(t *testing.T) {
	store, _ := NewStore(t.TempDir())
	repo := NewSelectionRepository(store)
	ctx := context.Background()

	d := domain.DibIt{
		Semester: "2024a",
		Courses: map[string][]domain.DibItCourse{
			"2024a": {{ID: "0368-2157", Groups: []string{"01"}}},
		},
	}
	if err := repo.Save(ctx, d); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	got, err := repo.Load(ctx)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got.Semester != "2024a" || len(got.Courses["2024a"]) != 1 {
		t.Errorf("Load() = %+v", got)
	}
}

func TestSelectionRepository_EmptyStore(t *testing.T) {
	store, _ := NewStore(t.TempDir())
	repo := NewSelectionRepository(store)

	got, err := repo.Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(got.Courses) != 0 {
		t.Errorf("Load() = %+v, want empty", got)
	}
}

func TestSelectionRepository_MalformedKeepsRaw(t *testing.T) {
	store, _ := NewStore(t.TempDir())
	store.Set(domain.DibItStorageKey, []byte(`{"courses": 7}`))
	repo := NewSelectionRepository(store)

	got, err := repo.Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(got.Courses) != 0 {
		t.Errorf("Load() = %+v, want empty", got)
	}

	raw, err := repo.Raw()
	if err != nil {
		t.Fatalf("Raw() error = %v", err)
	}
	if string(raw) != `{"courses": 7}` {
		t.Errorf("Raw() = %s", raw)
	}

	if err := repo.Clear(); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}
	if _, err := repo.Raw(); !errors.Is(err, ErrNotFound) {
		t.Errorf("Raw() after Clear error = %v, want ErrNotFound", err)
	}
}

func TestSelectionRepository_MigratesLegacy(t *testing.T) {
	store, _ := NewStore(t.TempDir())
	store.Set("Semester", []byte(`"2023b"`))
	store.Set("Courses", []byte(`["0368-2157"]`))
	store.Set("Groups", []byte(`{"0368-2157": ["02"]}`))
	store.Set("Courses 2024a", []byte(`["0366-1101"]`))
	store.Set("Cached Courses for 2024a", []byte(`{}`))
	store.Set("unrelated", []byte(`1`))
	repo := NewSelectionRepository(store)

	got, err := repo.Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got.Semester != "2023b" {
		t.Errorf("Semester = %q, want 2023b", got.Semester)
	}
	if c := got.Courses["2023b"]; len(c) != 1 || !c[0].HasGroup("02") {
		t.Errorf("Courses[2023b] = %+v", c)
	}
	if c := got.Courses["2024a"]; len(c) != 1 || c[0].ID != "0366-1101" {
		t.Errorf("Courses[2024a] = %+v", c)
	}

	keys, _ := store.Keys()
	want := map[string]bool{domain.DibItStorageKey: true, "unrelated": true}
	if len(keys) != len(want) {
		t.Fatalf("Keys() after migration = %v", keys)
	}
	for _, k := range keys {
		if !want[k] {
			t.Errorf("unexpected key %q after migration", k)
		}
	}
}

func TestSelectionRepository_MalformedSurvivesNextSave(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"wrong shape", `{"courses":{"2023b":[{"id":"A"}]},"customCourses":{"mine.json":{"9999":{"exams":"soon"}}}}`},
		{"truncated", `{"courses":{"2023b":[{"id":"A"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, _ := NewStore(t.TempDir())
			// Set refuses invalid JSON
			if err := writeAtomic(store.path(domain.DibItStorageKey), []byte(tt.doc)); err != nil {
				t.Fatalf("writeAtomic() error = %v", err)
			}

			repo := NewSelectionRepository(store)
			repo.now = func() time.Time { return time.Unix(1730000000, 0) }
			ctx := context.Background()

			c, err := selection.Open(ctx, repo)
			if err != nil {
				t.Fatalf("selection.Open() error = %v", err)
			}
			if len(c.Get().Courses) != 0 {
				t.Errorf("loaded %+v, want empty", c.Get())
			}
			if _, err := c.Update(ctx, selection.AddCourse("2024b", "C")); err != nil {
				t.Fatalf("Update() error = %v", err)
			}

			backups, err := repo.Backups()
			if err != nil {
				t.Fatalf("Backups() error = %v", err)
			}
			if len(backups) != 1 || backups[0] != "Dib It.corrupt-1730000000" {
				t.Fatalf("Backups() = %v", backups)
			}
			raw, err := repo.RawBackup(backups[0])
			if err != nil {
				t.Fatalf("RawBackup() error = %v", err)
			}
			if string(raw) != tt.doc {
				t.Errorf("backup = %s, want original bytes", raw)
			}

			current, _ := repo.Raw()
			if !strings.Contains(string(current), `"2024b"`) {
				t.Errorf("document after save = %s", current)
			}
		})
	}
}

func TestSelectionRepository_BackupOncePerDocument(t *testing.T) {
	store, _ := NewStore(t.TempDir())
	store.Set(domain.DibItStorageKey, []byte(`{"courses": 7}`))
	repo := NewSelectionRepository(store)

	for i := 0; i < 3; i++ {
		if _, err := repo.Load(context.Background()); err != nil {
			t.Fatalf("Load() #%d error = %v", i+1, err)
		}
	}
	if backups, _ := repo.Backups(); len(backups) != 1 {
		t.Errorf("Backups() = %v, want one", backups)
	}
	if err := store.Copy("missing", "x"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Copy(missing) error = %v, want ErrNotFound", err)
	}
	if _, err := repo.RawBackup("unrelated"); !errors.Is(err, ErrInvalidKey) {
		t.Errorf("RawBackup(unrelated) error = %v, want ErrInvalidKey", err)
	}
}
