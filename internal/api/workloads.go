package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/icclab/loadshift/internal/dtw"
	"github.com/icclab/loadshift/internal/repository"
	"github.com/icclab/loadshift/internal/services"
)

// writeServiceError maps service-layer error kinds onto HTTP statuses.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, dtw.ErrInvalidModel):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, repository.ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, repository.ErrDuplicate):
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// createWorkload registers a new delay-tolerant workload.
// POST /v2/delay_tolerant_workload
func (s *Server) createWorkload(w http.ResponseWriter, r *http.Request) {
	var req services.CreateWorkloadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	workload, err := s.dtwSvc.Create(r.Context(), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, workload)
}

// listWorkloads returns the workloads visible to the caller.
// GET /v2/delay_tolerant_workload?name=&workflow_name=&scope=&executed=&limit=&offset=
func (s *Server) listWorkloads(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := dtw.WorkloadFilter{
		Name:         q.Get("name"),
		WorkflowName: q.Get("workflow_name"),
		Scope:        dtw.Scope(q.Get("scope")),
	}
	if v := q.Get("executed"); v != "" {
		executed, err := strconv.ParseBool(v)
		if err != nil {
			http.Error(w, "executed must be a boolean", http.StatusBadRequest)
			return
		}
		filter.Executed = &executed
	}
	if v := q.Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 0 {
			http.Error(w, "limit must be a non-negative integer", http.StatusBadRequest)
			return
		}
		filter.Limit = limit
	}
	if v := q.Get("offset"); v != "" {
		offset, err := strconv.Atoi(v)
		if err != nil || offset < 0 {
			http.Error(w, "offset must be a non-negative integer", http.StatusBadRequest)
			return
		}
		filter.Offset = offset
	}

	workloads, err := s.dtwSvc.List(r.Context(), filter)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if workloads == nil {
		workloads = []*dtw.Workload{}
	}
	writeJSON(w, http.StatusOK, workloads)
}

// getWorkload returns a single workload.
// GET /v2/delay_tolerant_workload/{name}
func (s *Server) getWorkload(w http.ResponseWriter, r *http.Request) {
	workload, err := s.dtwSvc.Get(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, workload)
}

// deleteWorkload removes a workload owned by the caller's project.
// DELETE /v2/delay_tolerant_workload/{name}
func (s *Server) deleteWorkload(w http.ResponseWriter, r *http.Request) {
	if err := s.dtwSvc.Delete(r.Context(), chi.URLParam(r, "name")); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
