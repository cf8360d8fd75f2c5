package api

import (
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// createWorkflow stores a workflow definition from its YAML source.
// POST /v2/workflows
func (s *Server) createWorkflow(w http.ResponseWriter, r *http.Request) {
	source, err := io.ReadAll(r.Body)
	if err != nil || len(source) == 0 {
		http.Error(w, "request body must hold a workflow definition", http.StatusBadRequest)
		return
	}

	def, err := s.workflowSvc.Create(r.Context(), string(source))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, def)
}

// listWorkflows returns all stored workflow definitions.
// GET /v2/workflows
func (s *Server) listWorkflows(w http.ResponseWriter, r *http.Request) {
	defs, err := s.workflowSvc.List(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, defs)
}

// getWorkflow returns a single workflow definition.
// GET /v2/workflows/{name}
func (s *Server) getWorkflow(w http.ResponseWriter, r *http.Request) {
	def, err := s.workflowSvc.Get(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, def)
}
