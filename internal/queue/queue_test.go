package queue_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/arazimproject/dibit/internal/queue"
)

func TestNewPrefetchJob(t *testing.T) {
	before := time.Now()
	job := queue.NewPrefetchJob("startup", "2024b", "2025a")
	after := time.Now()

	if job.ID == uuid.Nil {
		t.Error("Job ID should be generated")
	}
	if len(job.Semesters) != 2 || job.Semesters[0] != "2024b" {
		t.Errorf("Semesters = %v; want [2024b 2025a]", job.Semesters)
	}
	if job.Reason != "startup" {
		t.Errorf("Reason = %q; want startup", job.Reason)
	}
	if job.CreatedAt.Before(before) || job.CreatedAt.After(after) {
		t.Errorf("CreatedAt = %v; should be between %v and %v", job.CreatedAt, before, after)
	}
}

func TestNewPrefetchJob_GeneratesUniqueIDs(t *testing.T) {
	ids := make(map[uuid.UUID]bool)
	for i := 0; i < 10; i++ {
		job := queue.NewPrefetchJob("test", "2024a")
		if ids[job.ID] {
			t.Errorf("Duplicate job ID generated: %v", job.ID)
		}
		ids[job.ID] = true
	}
}

func TestPrefetchJob_JSONFieldNames(t *testing.T) {
	job := queue.PrefetchJob{ID: uuid.New(), Semesters: []string{"2024a"}, Timeout: 30}
	data, err := json.Marshal(job)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}

	var fields map[string]any
	json.Unmarshal(data, &fields)
	for _, key := range []string{"id", "semesters", "timeout", "created_at"} {
		if _, ok := fields[key]; !ok {
			t.Errorf("missing JSON field %q in %s", key, data)
		}
	}
}

func TestDefaultConsumerConfig(t *testing.T) {
	cfg := queue.DefaultConsumerConfig()

	if cfg.Workers != 2 {
		t.Errorf("Default Workers = %d; want 2", cfg.Workers)
	}
	if cfg.Prefetch != 1 {
		t.Errorf("Default Prefetch = %d; want 1", cfg.Prefetch)
	}
}

func TestCatalogHandler(t *testing.T) {
	warm := func(_ context.Context, sem string) error {
		if sem == "2030a" {
			return errors.New("status 404")
		}
		return nil
	}
	handler := queue.CatalogHandler(warm)

	tests := []struct {
		name       string
		semesters  []string
		wantStatus string
		wantErr    bool
	}{
		{"all loaded", []string{"2024a", "2024b"}, queue.StatusCompleted, false},
		{"some failed", []string{"2024a", "2030a"}, queue.StatusPartial, false},
		{"all failed", []string{"2030a"}, "", true},
		{"empty job", nil, queue.StatusCompleted, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			result, err := handler(context.Background(), &queue.PrefetchJob{ID: uuid.New(), Semesters: tc.semesters})
			if (err != nil) != tc.wantErr {
				t.Fatalf("handler() error = %v; wantErr %v", err, tc.wantErr)
			}
			if tc.wantErr {
				return
			}
			if result.Status != tc.wantStatus {
				t.Errorf("Status = %q; want %q", result.Status, tc.wantStatus)
			}
		})
	}
}
