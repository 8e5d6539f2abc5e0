package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/arazimproject/dibit/internal/catalog"
	"github.com/arazimproject/dibit/internal/cloudsync"
	"github.com/arazimproject/dibit/internal/config"
	"github.com/arazimproject/dibit/internal/domain"
	"github.com/arazimproject/dibit/internal/planner"
	"github.com/arazimproject/dibit/internal/queue"
)

// maxBodySize caps request bodies; imported documents are the largest.
const maxBodySize = 8 << 20

// PrefetchPublisher hands catalog warm-up jobs to the queue.
type PrefetchPublisher interface {
	PublishPrefetchJob(ctx context.Context, job *queue.PrefetchJob) error
}

// PrefetchFunc warms the catalog cache in-process and returns how many
// semesters loaded.
type PrefetchFunc func(ctx context.Context, semesters ...string) int

// Server represents the Dib It daemon HTTP server
type Server struct {
	cfg     *config.LocalConfig
	server  *http.Server
	router  *http.ServeMux
	version string
	started time.Time

	planner   *planner.Planner
	publisher PrefetchPublisher
	prefetch  PrefetchFunc
}

// ServerConfig holds configuration for creating a new server
type ServerConfig struct {
	Config    *config.LocalConfig
	Planner   *planner.Planner
	Version   string
	Publisher PrefetchPublisher // Optional, queues prefetch requests
	Prefetch  PrefetchFunc      // Optional, used when no publisher is set
}

// NewServer creates a new daemon server
func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Config == nil {
		return nil, errors.New("config is required")
	}
	if cfg.Planner == nil {
		return nil, errors.New("planner is required")
	}

	s := &Server{
		cfg:       cfg.Config,
		router:    http.NewServeMux(),
		version:   cfg.Version,
		started:   time.Now(),
		planner:   cfg.Planner,
		publisher: cfg.Publisher,
		prefetch:  cfg.Prefetch,
	}
	if s.version == "" {
		s.version = "dev"
	}

	s.setupRoutes()

	// Create HTTP server with middleware chain
	addr := fmt.Sprintf("%s:%d", cfg.Config.Daemon.Bind, cfg.Config.Daemon.Port)
	s.server = &http.Server{
		Addr:         addr,
		Handler:      chain(s.router),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second, // Long for SSE
		IdleTimeout:  120 * time.Second,
	}

	return s, nil
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	// Health & status
	s.router.HandleFunc("GET /v1/health", s.handleHealth)
	s.router.HandleFunc("GET /v1/status", s.handleStatus)
	s.router.HandleFunc("GET /v1/config", s.handleGetConfig)

	// Catalog
	s.router.HandleFunc("GET /v1/semesters", s.handleListSemesters)
	s.router.HandleFunc("GET /v1/semesters/{semester}/courses", s.handleSearchCourses)
	s.router.HandleFunc("GET /v1/semesters/{semester}/courses/{course}", s.handleGetCourse)
	s.router.HandleFunc("POST /v1/prefetch", s.handlePrefetch)

	// Derived views
	s.router.HandleFunc("GET /v1/semesters/{semester}/schedule", s.handleSchedule)
	s.router.HandleFunc("GET /v1/semesters/{semester}/exams", s.handleExams)
	s.router.HandleFunc("GET /v1/semesters/{semester}/prerequisites", s.handlePrerequisites)
	s.router.HandleFunc("POST /v1/semesters/{semester}/rank", s.handleRank)

	// Exports
	s.router.HandleFunc("GET /v1/semesters/{semester}/export/calendar.ics", s.handleExportCalendar)
	s.router.HandleFunc("GET /v1/semesters/{semester}/export/schedule.xlsx", s.handleExportXLSX)
	s.router.HandleFunc("GET /v1/export/dibit.json", s.handleExportDocument)

	// Selection document
	s.router.HandleFunc("GET /v1/selection", s.handleGetSelection)
	s.router.HandleFunc("PUT /v1/selection", s.handleImportSelection)
	s.router.HandleFunc("DELETE /v1/selection", s.handleResetSelection)
	s.router.HandleFunc("GET /v1/selection/events", s.handleSelectionEvents)
	s.router.HandleFunc("PUT /v1/selection/semester", s.handleSetSemester)
	s.router.HandleFunc("PUT /v1/selection/profile", s.handleSetProfile)
	s.router.HandleFunc("PUT /v1/selection/custom/{name}", s.handleSetCustomCourses)
	s.router.HandleFunc("DELETE /v1/selection/custom/{name}", s.handleDeleteCustomCourses)

	// Selected courses
	s.router.HandleFunc("POST /v1/selection/{semester}/courses", s.handleAddCourse)
	s.router.HandleFunc("DELETE /v1/selection/{semester}/courses/{course}", s.handleRemoveCourse)
	s.router.HandleFunc("POST /v1/selection/{semester}/courses/{course}/groups/{group}", s.handleToggleGroup)
	s.router.HandleFunc("POST /v1/selection/{semester}/courses/{course}/move", s.handleMoveCourse)
	s.router.HandleFunc("PUT /v1/selection/{semester}/courses/{course}/color", s.handleSetColor)
	s.router.HandleFunc("PUT /v1/selection/{semester}/courses/{course}/category", s.handleSetCategory)
	s.router.HandleFunc("POST /v1/selection/{semester}/courses/{course}/practiced/{moed}", s.handleTogglePracticed)

	// Cloud sync
	s.router.HandleFunc("POST /v1/sync/save", s.handleSyncSave)
	s.router.HandleFunc("POST /v1/sync/restore", s.handleSyncRestore)
}

// Handler returns the root handler with middleware applied
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Start starts the HTTP server
func (s *Server) Start() error {
	slog.Info("starting dibit daemon",
		"addr", s.server.Addr,
		"storage", s.cfg.Storage.Backend,
		"queue", s.publisher != nil,
	)
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	slog.Info("shutting down daemon...")
	return s.server.Shutdown(ctx)
}

// Helper methods

func (s *Server) jsonResponse(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func (s *Server) jsonError(w http.ResponseWriter, status int, message string, err error) {
	response := map[string]interface{}{
		"error":  message,
		"status": status,
	}
	if err != nil {
		response["details"] = err.Error()
	}
	s.jsonResponse(w, status, response)
}

// writeJSONError answers outside a handler, where the Server helpers are
// not reachable.
func writeJSONError(w http.ResponseWriter, status int, message, requestID string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"error":      message,
		"status":     status,
		"request_id": requestID,
	})
}

// decodeBody decodes a JSON request body into v.
func (s *Server) decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		s.jsonError(w, http.StatusBadRequest, "invalid request body", err)
		return false
	}
	return true
}

// semester resolves the {semester} path value. "current" selects the
// viewed semester, falling back to the catalog's current one.
func (s *Server) semester(w http.ResponseWriter, r *http.Request) (string, bool) {
	raw := r.PathValue("semester")
	if raw == "current" {
		raw = s.planner.Semester(r.Context(), "")
	}
	sem, err := domain.ParseSemester(raw)
	if err != nil {
		s.jsonError(w, http.StatusBadRequest, "invalid semester", err)
		return "", false
	}
	return sem.String(), true
}

// statusFor maps service errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidSemester),
		errors.Is(err, domain.ErrInvalidInput),
		errors.Is(err, domain.ErrInvalidDocument),
		errors.Is(err, domain.ErrInvalidPosition),
		errors.Is(err, cloudsync.ErrInvalidUser):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrCourseNotFound),
		errors.Is(err, domain.ErrCourseNotSelected),
		errors.Is(err, domain.ErrSemesterUnknown),
		errors.Is(err, cloudsync.ErrNoDocument):
		return http.StatusNotFound
	case errors.Is(err, catalog.ErrUnavailable):
		return http.StatusBadGateway
	case errors.Is(err, planner.ErrSyncDisabled):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) serviceError(w http.ResponseWriter, message string, err error) {
	s.jsonError(w, statusFor(err), message, err)
}
