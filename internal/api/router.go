package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/lmoreira/gateway-migration-workbench/internal/metrics"
	"github.com/lmoreira/gateway-migration-workbench/internal/migration"
	"github.com/lmoreira/gateway-migration-workbench/internal/models"
)

// Runner executes one full migration run.
type Runner interface {
	Run(ctx context.Context) (*models.RunReport, error)
}

// Server holds shared state for all API handlers.
type Server struct {
	Logger  zerolog.Logger
	Jobs    *models.JobStore
	Reports *ReportStore
	Repo    migration.Repository
	Metrics *metrics.Metrics

	// NewRun builds a Runner whose progress lines go to the given sink
	// (the job's captured output).
	NewRun func(sink func(string)) Runner

	// RunTimeout bounds a whole run; zero means no limit.
	RunTimeout time.Duration
}

// NewRouter builds the chi router with all API routes.
func NewRouter(s *Server) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(corsMiddleware)

	r.Route("/api", func(r chi.Router) {
		// Migration runs
		r.Post("/migrations", s.StartMigration)
		r.Get("/migrations/order", s.MigrationOrder)
		r.Get("/reports/{id}", s.GetReport)

		// Repository browsing
		r.Get("/resources", s.ListCategories)
		r.Get("/resources/{category}", s.ListResourcesOfCategory)

		// Jobs
		r.Get("/jobs", s.ListJobs)
		r.Get("/jobs/{id}", s.GetJob)
		r.Get("/jobs/{id}/logs", s.GetJobLogs)
	})

	r.Method(http.MethodGet, "/metrics", s.Metrics.Handler())

	return r
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
