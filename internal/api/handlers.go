package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"

	"github.com/google/uuid"

	"github.com/accelbench/vllmbench/internal/database"
	"github.com/accelbench/vllmbench/internal/results"
)

// maxRecordBytes caps the size of a posted record.
const maxRecordBytes = 1 << 20

// Server holds dependencies for API handlers.
type Server struct {
	repo database.Repo
}

// NewServer creates a new API server.
func NewServer(repo database.Repo) *Server {
	return &Server{repo: repo}
}

// RegisterRoutes registers all API routes on the given mux.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/runs", s.handleCreateRun)
	mux.HandleFunc("GET /api/v1/runs", s.handleListRuns)
	mux.HandleFunc("GET /api/v1/runs/{id}", s.handleGetRun)
	mux.HandleFunc("DELETE /api/v1/runs/{id}", s.handleDeleteRun)
}

// CreateRunResponse is returned by POST /api/v1/runs.
type CreateRunResponse struct {
	ID      string `json:"id"`
	Status  string `json:"status"`
	Created bool   `json:"created"`
}

func (s *Server) handleCreateRun(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxRecordBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "record too large")
			return
		}
		writeError(w, http.StatusBadRequest, "read request body failed")
		return
	}

	rec, err := results.Parse("request body", body)
	if err != nil {
		var verr *results.ValidationError
		if errors.As(err, &verr) {
			writeError(w, http.StatusBadRequest, verr.Error())
			return
		}
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if rec.RunID != "" {
		if _, err := uuid.Parse(rec.RunID); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("run_id %q is not a UUID", rec.RunID))
			return
		}
	}

	run := database.RunFromRecord(rec)
	created, err := s.repo.SaveRun(r.Context(), run)
	if err != nil {
		log.Printf("save run %s: %v", run.ID, err)
		writeError(w, http.StatusInternalServerError, "save run failed")
		return
	}

	code := http.StatusOK
	if created {
		code = http.StatusCreated
		log.Printf("[%s] stored %s run for model %s", shortID(run.ID), run.Status, run.Model)
	}
	writeJSON(w, code, CreateRunResponse{ID: run.ID, Status: run.Status, Created: created})
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := database.RunFilter{
		Model:  q.Get("model"),
		Status: q.Get("status"),
	}
	if v := q.Get("limit"); v != "" {
		fmt.Sscanf(v, "%d", &f.Limit)
	}
	if v := q.Get("offset"); v != "" {
		fmt.Sscanf(v, "%d", &f.Offset)
	}

	items, err := s.repo.ListRuns(r.Context(), f)
	if err != nil {
		log.Printf("list runs: %v", err)
		writeError(w, http.StatusInternalServerError, "list runs failed")
		return
	}
	if items == nil {
		items = []database.RunListItem{}
	}
	writeJSON(w, http.StatusOK, items)
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	runID := r.PathValue("id")
	if _, err := uuid.Parse(runID); err != nil {
		writeError(w, http.StatusNotFound, "run not found")
		return
	}
	run, err := s.repo.GetRun(r.Context(), runID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "query failed")
		return
	}
	if run == nil {
		writeError(w, http.StatusNotFound, "run not found")
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func (s *Server) handleDeleteRun(w http.ResponseWriter, r *http.Request) {
	runID := r.PathValue("id")
	if _, err := uuid.Parse(runID); err != nil {
		writeError(w, http.StatusNotFound, "run not found")
		return
	}
	run, err := s.repo.GetRun(r.Context(), runID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "query failed")
		return
	}
	if run == nil {
		writeError(w, http.StatusNotFound, "run not found")
		return
	}
	if err := s.repo.DeleteRun(r.Context(), runID); err != nil {
		log.Printf("delete run %s: %v", runID, err)
		writeError(w, http.StatusInternalServerError, "delete run failed")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
