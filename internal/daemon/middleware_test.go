package daemon

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
)

func okHandler(w http.ResponseWriter, r *http.Request) {
	w.Write([]byte("ok"))
}

func TestWithRequestID(t *testing.T) {
	tests := []struct {
		name     string
		incoming string
		keep     bool
	}{
		{"generated", "", false},
		{"propagated", "abc-123", true},
		{"oversized replaced", strings.Repeat("x", 200), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var seen string
			h := withRequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				seen = RequestID(r.Context())
			}))

			req := httptest.NewRequest(http.MethodGet, "/v1/health", nil)
			if tt.incoming != "" {
				req.Header.Set(RequestIDHeader, tt.incoming)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			if tt.keep {
				if seen != tt.incoming {
					t.Errorf("RequestID() = %q, want %q", seen, tt.incoming)
				}
			} else if _, err := uuid.Parse(seen); err != nil {
				t.Errorf("RequestID() = %q is not a UUID: %v", seen, err)
			}
			if got := rec.Header().Get(RequestIDHeader); got != seen {
				t.Errorf("header = %q, context = %q", got, seen)
			}
		})
	}
}

func TestRequestIDMissing(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if got := RequestID(req.Context()); got != "" {
		t.Errorf("RequestID() = %q, want empty", got)
	}
}

func TestIsLocalOrigin(t *testing.T) {
	tests := map[string]bool{
		"http://localhost:5173":      true,
		"http://127.0.0.1:7433":      true,
		"http://[::1]:3000":          true,
		"https://dibit.example.com":  false,
		"http://localhost.evil.test": false,
		"http://10.0.0.5":            false,
		"null":                       false,
		"":                           false,
	}
	for origin, want := range tests {
		if got := isLocalOrigin(origin); got != want {
			t.Errorf("isLocalOrigin(%q) = %v, want %v", origin, got, want)
		}
	}
}

func TestLocalOnly(t *testing.T) {
	h := localOnly(http.HandlerFunc(okHandler))

	t.Run("no origin", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/v1/selection", nil))
		if rec.Code != http.StatusOK {
			t.Errorf("status = %d, want 200", rec.Code)
		}
		if rec.Header().Get("Access-Control-Allow-Origin") != "" {
			t.Error("CORS headers set without an Origin")
		}
	})

	t.Run("local origin", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/v1/semesters", nil)
		req.Header.Set("Origin", "http://localhost:5173")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Errorf("status = %d, want 200", rec.Code)
		}
		if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:5173" {
			t.Errorf("Allow-Origin = %q", got)
		}
	})

	t.Run("preflight", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodOptions, "/v1/semesters/2024a/courses", nil)
		req.Header.Set("Origin", "http://127.0.0.1:3000")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != http.StatusNoContent {
			t.Errorf("status = %d, want 204", rec.Code)
		}
		if rec.Body.Len() != 0 {
			t.Errorf("preflight reached the handler: %q", rec.Body.String())
		}
	})

	t.Run("foreign origin", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodDelete, "/v1/selection", nil)
		req.Header.Set("Origin", "https://evil.test")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != http.StatusForbidden {
			t.Errorf("status = %d, want 403", rec.Code)
		}
	})
}

func TestSemesterOf(t *testing.T) {
	tests := map[string]string{
		"/v1/semesters/2024a/schedule":      "2024a",
		"/v1/semesters/current/courses/x":   "current",
		"/v1/semesters/2023b":               "2023b",
		"/v1/semesters":                     "",
		"/v1/selection/semesters/2024a/add": "",
	}
	for path, want := range tests {
		if got := semesterOf(path); got != want {
			t.Errorf("semesterOf(%q) = %q, want %q", path, got, want)
		}
	}
}

func TestRequestLevel(t *testing.T) {
	tests := []struct {
		status int
		want   slog.Level
	}{
		{http.StatusOK, slog.LevelDebug},
		{http.StatusAccepted, slog.LevelDebug},
		{http.StatusNotFound, slog.LevelWarn},
		{http.StatusServiceUnavailable, slog.LevelError},
	}
	for _, tt := range tests {
		if got := requestLevel(tt.status); got != tt.want {
			t.Errorf("requestLevel(%d) = %v, want %v", tt.status, got, tt.want)
		}
	}
}

func TestStatusRecorder(t *testing.T) {
	rec := httptest.NewRecorder()
	sr := &statusRecorder{ResponseWriter: rec, status: http.StatusOK}

	sr.WriteHeader(http.StatusCreated)
	sr.Write([]byte("event: "))
	sr.Write([]byte("selection\n"))
	sr.Flush()

	if sr.status != http.StatusCreated || rec.Code != http.StatusCreated {
		t.Errorf("status = %d / %d, want 201", sr.status, rec.Code)
	}
	if sr.bytes != 17 {
		t.Errorf("bytes = %d, want 17", sr.bytes)
	}
	if !rec.Flushed {
		t.Error("Flush() did not reach the underlying writer")
	}
}

func TestLogRequestsPassesThrough(t *testing.T) {
	h := logRequests(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		w.Write([]byte("body"))
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/semesters/2024a/exams", nil))

	if rec.Code != http.StatusTeapot || rec.Body.String() != "body" {
		t.Errorf("response = %d %q", rec.Code, rec.Body.String())
	}
}

func TestChainRecoversPanic(t *testing.T) {
	var seen string
	h := chain(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestID(r.Context())
		panic("catalog exploded")
	}))

	req := httptest.NewRequest(http.MethodGet, "/v1/semesters/2024a/schedule", nil)
	req.Header.Set(RequestIDHeader, "req-7")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if seen != "req-7" {
		t.Errorf("request ID inside handler = %q", seen)
	}
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	var body map[string]interface{}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body["request_id"] != "req-7" {
		t.Errorf("request_id = %v, want req-7", body["request_id"])
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}
}
