package migration

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/lmoreira/gateway-migration-workbench/internal/metrics"
	"github.com/lmoreira/gateway-migration-workbench/internal/models"
)

const defaultWorkers = 10

// Orchestrator drives a full migration run: it walks categories in
// dependency order, dispatches one retried migration task per resource to a
// bounded worker pool, and aggregates exactly one result per identity.
type Orchestrator struct {
	logger   zerolog.Logger
	repo     Repository
	migrator *Migrator
	retry    Policy
	workers  int
	metrics  *metrics.Metrics
	logSink  func(string)
}

// Option customizes orchestrator behavior.
type Option func(*Orchestrator)

// WithWorkers sets the worker pool size (default 10).
func WithWorkers(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.workers = n
		}
	}
}

// WithMetrics enables Prometheus recording of results and run duration.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *Orchestrator) {
		o.metrics = m
	}
}

// WithLogSink directs the per-resource operator log lines (and run progress
// lines) to an additional sink, e.g. a job's captured output.
func WithLogSink(sink func(string)) Option {
	return func(o *Orchestrator) {
		o.logSink = sink
	}
}

// NewOrchestrator constructs an Orchestrator. The category order is fixed at
// construction time and identical across runs.
func NewOrchestrator(logger zerolog.Logger, repo Repository, migrator *Migrator, retry Policy, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		logger:   logger.With().Str("component", "orchestrator").Logger(),
		repo:     repo,
		migrator: migrator,
		retry:    retry,
		workers:  defaultWorkers,
		logSink:  func(string) {},
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Run migrates every enumerated resource and returns the aggregate report.
// Individual resource failures never abort the run; only an unreadable
// repository does. Results stream from the workers through a channel to a
// single aggregating consumer, so no result is lost or duplicated.
func (o *Orchestrator) Run(ctx context.Context) (*models.RunReport, error) {
	start := time.Now()
	order := Order()

	results := make(chan models.MigrationResult)
	var collected []models.MigrationResult
	done := make(chan struct{})
	go func() {
		defer close(done)
		for res := range results {
			collected = append(collected, res)
			o.logSink(res.LogLine())
			o.logger.Info().
				Str("resource", res.Identity.String()).
				Str("outcome", string(res.Outcome)).
				Int("status", res.StatusCode).
				Int("attempts", res.Attempts).
				Msg("resource migrated")
			o.metrics.ObserveResult(string(res.Identity.Category), string(res.Outcome), res.Attempts)
		}
	}()

	sem := make(chan struct{}, o.workers)
	var runErr error
	for _, category := range order {
		ids, err := o.repo.List(category)
		if err != nil {
			runErr = fmt.Errorf("enumerating %s resources: %w", category, err)
			break
		}
		o.metrics.SetResourcesTotal(string(category), len(ids))
		o.logSink(fmt.Sprintf("=== Migrating %s (%d resources) ===", category.Label(), len(ids)))

		var wg sync.WaitGroup
		for _, id := range ids {
			wg.Add(1)
			sem <- struct{}{}
			go func(id models.ResourceIdentity) {
				defer wg.Done()
				defer func() { <-sem }()
				results <- o.retry.Execute(ctx, func(ctx context.Context) models.MigrationResult {
					return o.migrator.Migrate(ctx, id)
				})
			}(id)
		}
		// All of a category's tasks finish before the next category starts:
		// later categories reference resources created by earlier ones.
		wg.Wait()
	}
	close(results)
	<-done

	if runErr != nil {
		return nil, runErr
	}

	report := &models.RunReport{
		ID:      uuid.New().String(),
		Summary: models.Summarize(collected),
		Details: collected,
		Order:   order,
	}
	o.metrics.ObserveRunDuration(time.Since(start))
	o.logSink(fmt.Sprintf("Migration complete: %d total, %d succeeded, %d failed, %d skipped",
		report.Summary.Total, report.Summary.Succeeded, report.Summary.Failed, report.Summary.Skipped))
	return report, nil
}
