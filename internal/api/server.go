// Package api exposes the REST surface for delay-tolerant workloads and
// workflow definitions.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/icclab/loadshift/internal/dtw"
	"github.com/icclab/loadshift/internal/services"
)

type Server struct {
	dtwSvc      *services.DTWService
	workflowSvc *services.WorkflowService
}

func NewServer(dtwSvc *services.DTWService, workflowSvc *services.WorkflowService) *Server {
	return &Server{
		dtwSvc:      dtwSvc,
		workflowSvc: workflowSvc,
	}
}

func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE"},
		AllowedHeaders:   []string{"Content-Type", "X-Project-ID"},
		AllowCredentials: true,
	}))
	r.Use(identityMiddleware)

	r.Route("/v2", func(r chi.Router) {
		r.Route("/delay_tolerant_workload", func(r chi.Router) {
			r.Post("/", s.createWorkload)
			r.Get("/", s.listWorkloads)
			r.Get("/{name}", s.getWorkload)
			r.Delete("/{name}", s.deleteWorkload)
		})
		r.Route("/workflows", func(r chi.Router) {
			r.Post("/", s.createWorkflow)
			r.Get("/", s.listWorkflows)
			r.Get("/{name}", s.getWorkflow)
		})
	})

	return r
}

// identityMiddleware installs the caller's project identity from the
// X-Project-ID header. Requests without the header run unscoped, for
// deployments without an authenticating proxy in front.
func identityMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if project := r.Header.Get("X-Project-ID"); project != "" {
			ctx := dtw.WithIdentity(r.Context(), dtw.Identity{ProjectID: project})
			r = r.WithContext(ctx)
		}
		next.ServeHTTP(w, r)
	})
}
