package daemon

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/arazimproject/dibit/internal/domain"
	"github.com/arazimproject/dibit/internal/exams"
	"github.com/arazimproject/dibit/internal/queue"
	"github.com/arazimproject/dibit/internal/selection"
)

// Status handlers

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.jsonResponse(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	d := s.planner.Selection()
	s.jsonResponse(w, http.StatusOK, map[string]interface{}{
		"status":    "running",
		"version":   s.version,
		"uptime":    time.Since(s.started).Round(time.Second).String(),
		"storage":   s.cfg.Storage.Backend,
		"semester":  s.planner.Semester(r.Context(), ""),
		"semesters": len(d.Courses),
		"queue":     s.publisher != nil,
		"sync":      s.cfg.Sync.PostgresURL != "",
	})
}

func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	// Return config without secrets
	s.jsonResponse(w, http.StatusOK, map[string]interface{}{
		"daemon":    s.cfg.Daemon,
		"catalog":   s.cfg.Catalog,
		"storage":   s.cfg.Storage,
		"calendar":  s.cfg.Calendar,
		"sync_user": s.cfg.Sync.UserID,
	})
}

// Catalog handlers

func (s *Server) handleListSemesters(w http.ResponseWriter, r *http.Request) {
	s.jsonResponse(w, http.StatusOK, map[string]interface{}{
		"current":   s.planner.Semester(r.Context(), ""),
		"semesters": s.planner.Semesters(r.Context()),
	})
}

func (s *Server) handleSearchCourses(w http.ResponseWriter, r *http.Request) {
	sem, ok := s.semester(w, r)
	if !ok {
		return
	}

	courses := s.planner.SearchCourses(r.Context(), sem, r.URL.Query().Get("q"))
	result := make([]map[string]interface{}, 0, len(courses))
	for _, c := range courses {
		result = append(result, map[string]interface{}{
			"id":        c.ID,
			"name":      c.Name,
			"faculty":   c.Faculty,
			"lecturers": c.Lecturers(),
			"groups":    len(c.Groups),
		})
	}

	s.jsonResponse(w, http.StatusOK, map[string]interface{}{
		"semester": sem,
		"courses":  result,
	})
}

func (s *Server) handleGetCourse(w http.ResponseWriter, r *http.Request) {
	sem, ok := s.semester(w, r)
	if !ok {
		return
	}

	course, found := s.planner.Catalog(r.Context(), sem).Lookup(r.PathValue("course"))
	if !found {
		s.jsonError(w, http.StatusNotFound, "course not found", nil)
		return
	}
	s.jsonResponse(w, http.StatusOK, course)
}

func (s *Server) handlePrefetch(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Semesters []string `json:"semesters"`
	}
	if !s.decodeBody(w, r, &req) {
		return
	}
	for _, sem := range req.Semesters {
		if _, err := domain.ParseSemester(sem); err != nil {
			s.jsonError(w, http.StatusBadRequest, "invalid semester", err)
			return
		}
	}
	if len(req.Semesters) == 0 {
		req.Semesters = []string{s.planner.Semester(r.Context(), "")}
	}

	switch {
	case s.publisher != nil:
		job := queue.NewPrefetchJob("api", req.Semesters...)
		if err := s.publisher.PublishPrefetchJob(r.Context(), job); err != nil {
			s.jsonError(w, http.StatusServiceUnavailable, "failed to queue prefetch", err)
			return
		}
		s.jsonResponse(w, http.StatusAccepted, map[string]interface{}{
			"job_id":    job.ID,
			"semesters": job.Semesters,
		})
	case s.prefetch != nil:
		loaded := s.prefetch(r.Context(), req.Semesters...)
		s.jsonResponse(w, http.StatusOK, map[string]interface{}{
			"loaded":    loaded,
			"semesters": req.Semesters,
		})
	default:
		s.jsonError(w, http.StatusServiceUnavailable, "prefetch is not available", nil)
	}
}

// View handlers

func (s *Server) handleSchedule(w http.ResponseWriter, r *http.Request) {
	sem, ok := s.semester(w, r)
	if !ok {
		return
	}
	s.jsonResponse(w, http.StatusOK, s.planner.Schedule(r.Context(), sem))
}

func (s *Server) handleExams(w http.ResponseWriter, r *http.Request) {
	sem, ok := s.semester(w, r)
	if !ok {
		return
	}

	timeline := s.planner.Exams(r.Context(), sem)
	if r.URL.Query().Get("first") == "true" {
		timeline = timeline.FirstPerCourse()
	}
	collisions := timeline.Collisions()
	if collisions == nil {
		collisions = []exams.Collision{}
	}

	s.jsonResponse(w, http.StatusOK, map[string]interface{}{
		"semester":   sem,
		"exams":      timeline.Entries,
		"gaps":       timeline.Gaps(),
		"collisions": collisions,
	})
}

func (s *Server) handlePrerequisites(w http.ResponseWriter, r *http.Request) {
	sem, ok := s.semester(w, r)
	if !ok {
		return
	}
	s.jsonResponse(w, http.StatusOK, map[string]interface{}{
		"semester": sem,
		"courses":  s.planner.Prerequisites(r.Context(), sem),
	})
}

func (s *Server) handleRank(w http.ResponseWriter, r *http.Request) {
	sem, ok := s.semester(w, r)
	if !ok {
		return
	}

	var req struct {
		Candidates []string `json:"candidates"`
	}
	if !s.decodeBody(w, r, &req) {
		return
	}

	s.jsonResponse(w, http.StatusOK, map[string]interface{}{
		"semester":   sem,
		"candidates": s.planner.RankCandidates(r.Context(), sem, req.Candidates),
	})
}

// Export handlers

func (s *Server) handleExportCalendar(w http.ResponseWriter, r *http.Request) {
	sem, ok := s.semester(w, r)
	if !ok {
		return
	}

	payload, err := s.planner.ExportCalendar(r.Context(), sem)
	if err != nil {
		s.serviceError(w, "failed to export calendar", err)
		return
	}

	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", sem+".ics"))
	w.WriteHeader(http.StatusOK)
	w.Write(payload)
}

func (s *Server) handleExportXLSX(w http.ResponseWriter, r *http.Request) {
	sem, ok := s.semester(w, r)
	if !ok {
		return
	}

	var buf bytes.Buffer
	if err := s.planner.ExportXLSX(r.Context(), sem, &buf); err != nil {
		s.serviceError(w, "failed to export schedule", err)
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", sem+".xlsx"))
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

func (s *Server) handleExportDocument(w http.ResponseWriter, r *http.Request) {
	data, err := s.planner.ExportDocument()
	if err != nil {
		s.serviceError(w, "failed to export document", err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", `attachment; filename="dibit.json"`)
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

// Selection handlers

func (s *Server) handleGetSelection(w http.ResponseWriter, r *http.Request) {
	s.jsonResponse(w, http.StatusOK, s.planner.Selection())
}

func (s *Server) handleImportSelection(w http.ResponseWriter, r *http.Request) {
	var raw json.RawMessage
	if !s.decodeBody(w, r, &raw) {
		return
	}
	s.respondUpdate(w, "failed to import document")(s.planner.ImportDocument(r.Context(), raw))
}

func (s *Server) handleResetSelection(w http.ResponseWriter, r *http.Request) {
	s.respondUpdate(w, "failed to reset selection")(s.planner.Update(r.Context(), selection.Reset()))
}

// handleSelectionEvents streams the selection document on every change.
func (s *Server) handleSelectionEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		s.jsonError(w, http.StatusInternalServerError, "streaming not supported", nil)
		return
	}

	// Set SSE headers
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	// Only the latest document matters; older pending ones are dropped.
	updates := make(chan domain.DibIt, 1)
	unsubscribe := s.planner.Subscribe(func(d domain.DibIt) {
		for {
			select {
			case updates <- d:
				return
			default:
			}
			select {
			case <-updates:
			default:
			}
		}
	})
	defer unsubscribe()

	send := func(d domain.DibIt) {
		data, err := json.Marshal(d)
		if err != nil {
			fmt.Fprintf(w, "event: error\ndata: %s\n\n", err.Error())
		} else {
			fmt.Fprintf(w, "event: selection\ndata: %s\n\n", data)
		}
		flusher.Flush()
	}

	send(s.planner.Selection())
	for {
		select {
		case <-r.Context().Done():
			return
		case d := <-updates:
			send(d)
		}
	}
}

func (s *Server) handleSetSemester(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Semester string `json:"semester"`
	}
	if !s.decodeBody(w, r, &req) {
		return
	}
	s.respondUpdate(w, "failed to set semester")(s.planner.Update(r.Context(), selection.SetSemester(req.Semester)))
}

func (s *Server) handleSetProfile(w http.ResponseWriter, r *http.Request) {
	var req struct {
		School          string `json:"school"`
		StudyPlan       string `json:"study_plan"`
		DegreeStartYear int    `json:"degree_start_year"`
	}
	if !s.decodeBody(w, r, &req) {
		return
	}
	m := selection.SetProfile(req.School, req.StudyPlan, req.DegreeStartYear)
	s.respondUpdate(w, "failed to set profile")(s.planner.Update(r.Context(), m))
}

func (s *Server) handleSetCustomCourses(w http.ResponseWriter, r *http.Request) {
	var courses domain.SemesterCourses
	if !s.decodeBody(w, r, &courses) {
		return
	}
	if courses == nil {
		courses = domain.SemesterCourses{}
	}
	m := selection.SetCustomCourses(r.PathValue("name"), courses)
	s.respondUpdate(w, "failed to store custom courses")(s.planner.Update(r.Context(), m))
}

func (s *Server) handleDeleteCustomCourses(w http.ResponseWriter, r *http.Request) {
	m := selection.SetCustomCourses(r.PathValue("name"), nil)
	s.respondUpdate(w, "failed to remove custom courses")(s.planner.Update(r.Context(), m))
}

// Selected course handlers

func (s *Server) handleAddCourse(w http.ResponseWriter, r *http.Request) {
	sem, ok := s.semester(w, r)
	if !ok {
		return
	}
	var req struct {
		CourseID string `json:"course_id"`
	}
	if !s.decodeBody(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.CourseID) == "" {
		s.jsonError(w, http.StatusBadRequest, "course_id is required", nil)
		return
	}

	d, err := s.planner.AddCourse(r.Context(), sem, strings.TrimSpace(req.CourseID))
	if err != nil {
		s.serviceError(w, "failed to add course", err)
		return
	}
	s.jsonResponse(w, http.StatusCreated, d)
}

func (s *Server) handleRemoveCourse(w http.ResponseWriter, r *http.Request) {
	sem, ok := s.semester(w, r)
	if !ok {
		return
	}
	m := selection.RemoveCourse(sem, r.PathValue("course"))
	s.respondUpdate(w, "failed to remove course")(s.planner.Update(r.Context(), m))
}

func (s *Server) handleToggleGroup(w http.ResponseWriter, r *http.Request) {
	sem, ok := s.semester(w, r)
	if !ok {
		return
	}
	m := selection.ToggleGroup(sem, r.PathValue("course"), r.PathValue("group"))
	s.respondUpdate(w, "failed to toggle group")(s.planner.Update(r.Context(), m))
}

func (s *Server) handleMoveCourse(w http.ResponseWriter, r *http.Request) {
	sem, ok := s.semester(w, r)
	if !ok {
		return
	}
	var req struct {
		Direction string `json:"direction"`
	}
	if !s.decodeBody(w, r, &req) {
		return
	}

	var m selection.Mutation
	switch req.Direction {
	case "up":
		m = selection.MoveUp(sem, r.PathValue("course"))
	case "down":
		m = selection.MoveDown(sem, r.PathValue("course"))
	default:
		s.jsonError(w, http.StatusBadRequest, "direction must be up or down", nil)
		return
	}
	s.respondUpdate(w, "failed to move course")(s.planner.Update(r.Context(), m))
}

func (s *Server) handleSetColor(w http.ResponseWriter, r *http.Request) {
	sem, ok := s.semester(w, r)
	if !ok {
		return
	}
	var req struct {
		Color string `json:"color"`
	}
	if !s.decodeBody(w, r, &req) {
		return
	}
	m := selection.SetColor(sem, r.PathValue("course"), req.Color)
	s.respondUpdate(w, "failed to set color")(s.planner.Update(r.Context(), m))
}

func (s *Server) handleSetCategory(w http.ResponseWriter, r *http.Request) {
	sem, ok := s.semester(w, r)
	if !ok {
		return
	}
	var req struct {
		Category string `json:"category"`
	}
	if !s.decodeBody(w, r, &req) {
		return
	}
	m := selection.SetStudyPlanCategory(sem, r.PathValue("course"), req.Category)
	s.respondUpdate(w, "failed to set category")(s.planner.Update(r.Context(), m))
}

func (s *Server) handleTogglePracticed(w http.ResponseWriter, r *http.Request) {
	sem, ok := s.semester(w, r)
	if !ok {
		return
	}
	m := selection.TogglePracticedExam(r.PathValue("course"), sem, r.PathValue("moed"))
	s.respondUpdate(w, "failed to mark exam")(s.planner.Update(r.Context(), m))
}

// Sync handlers

type syncRequest struct {
	UserID string `json:"user_id"`
}

func (s *Server) syncUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	var req syncRequest
	if r.ContentLength != 0 {
		if !s.decodeBody(w, r, &req) {
			return "", false
		}
	}
	if req.UserID == "" {
		req.UserID = s.cfg.Sync.UserID
	}
	return req.UserID, true
}

func (s *Server) handleSyncSave(w http.ResponseWriter, r *http.Request) {
	uid, ok := s.syncUser(w, r)
	if !ok {
		return
	}
	if err := s.planner.SaveToCloud(r.Context(), uid); err != nil {
		s.serviceError(w, "failed to save to cloud", err)
		return
	}
	slog.Info("selection saved to cloud", "user_id", uid)
	s.jsonResponse(w, http.StatusOK, map[string]interface{}{
		"status":  "saved",
		"user_id": uid,
	})
}

func (s *Server) handleSyncRestore(w http.ResponseWriter, r *http.Request) {
	uid, ok := s.syncUser(w, r)
	if !ok {
		return
	}
	d, err := s.planner.RestoreFromCloud(r.Context(), uid)
	if err != nil {
		s.serviceError(w, "failed to restore from cloud", err)
		return
	}
	slog.Info("selection restored from cloud", "user_id", uid)
	s.jsonResponse(w, http.StatusOK, d)
}

// respondUpdate writes the outcome of a selection update.
func (s *Server) respondUpdate(w http.ResponseWriter, message string) func(domain.DibIt, error) {
	return func(d domain.DibIt, err error) {
		if err != nil {
			s.serviceError(w, message, err)
			return
		}
		s.jsonResponse(w, http.StatusOK, d)
	}
}
