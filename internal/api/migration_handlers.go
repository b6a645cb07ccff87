package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// StartMigration kicks off a full migration run as an async job. The job's
// output captures the orchestrator's per-resource log lines; the completed
// run report is stored and linked from the job.
func (s *Server) StartMigration(w http.ResponseWriter, r *http.Request) {
	job := s.Jobs.Create()
	runner := s.NewRun(job.AppendLog)

	go func() {
		ctx := context.Background()
		if s.RunTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, s.RunTimeout)
			defer cancel()
		}

		report, err := runner.Run(ctx)
		if err != nil {
			s.Logger.Error().Err(err).Str("job", job.ID).Msg("migration run failed")
			job.AppendLog("ERROR: " + err.Error())
			job.Fail(err.Error())
			return
		}
		s.Reports.Put(report)
		job.Complete(report.ID)
	}()

	writeJSON(w, http.StatusAccepted, map[string]string{"job_id": job.ID})
}

// GetReport returns a completed run report by ID.
func (s *Server) GetReport(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	report := s.Reports.Get(id)
	if report == nil {
		writeError(w, http.StatusNotFound, "report not found")
		return
	}
	writeJSON(w, http.StatusOK, report)
}
