package models

import "fmt"

// Outcome classifies the terminal state of a single resource migration.
type Outcome string

const (
	OutcomeSuccess       Outcome = "success"
	OutcomeFailed        Outcome = "failed"
	OutcomeSkipped       Outcome = "skipped"
	OutcomeAlreadyExists Outcome = "already_exists"
)

// DeploymentOutcome records the result of an optional post-migration deploy.
type DeploymentOutcome string

const (
	DeploymentNotRequested DeploymentOutcome = "not_requested"
	DeploymentDeployed     DeploymentOutcome = "deployed"
	DeploymentFailed       DeploymentOutcome = "deploy_failed"
)

// MigrationResult is the immutable record produced for each resource.
// Exactly one is created per ResourceIdentity per run.
type MigrationResult struct {
	Identity   ResourceIdentity  `json:"identity"`
	Outcome    Outcome           `json:"outcome"`
	StatusCode int               `json:"status_code"`
	Message    string            `json:"message"`
	Attempts   int               `json:"attempts"`
	Deployment DeploymentOutcome `json:"deployment_outcome,omitempty"`

	// KVM entry sub-counts. Per-entry failures are non-fatal to the KVM's
	// own outcome but are surfaced here.
	EntriesMigrated int `json:"entries_migrated,omitempty"`
	EntriesFailed   int `json:"entries_failed,omitempty"`

	// Permanent marks a failure that retrying cannot fix (missing
	// prerequisite, unreadable source definition). Not serialized.
	Permanent bool `json:"-"`
}

// Terminal reports whether the outcome means "do not retry": a success or a
// duplicate at the destination.
func (r MigrationResult) Terminal() bool {
	switch r.Outcome {
	case OutcomeSuccess, OutcomeSkipped, OutcomeAlreadyExists:
		return true
	}
	return false
}

// LogLine renders the operator log line for a completed resource.
func (r MigrationResult) LogLine() string {
	return fmt.Sprintf("|| %s %s || %d || %s ||", r.Identity.Category, r.Identity.Name, r.StatusCode, r.Message)
}

// MigrationSummary aggregates a run's results. It is computed once from the
// final result set, never mutated incrementally.
type MigrationSummary struct {
	Total       int     `json:"total"`
	Succeeded   int     `json:"success"`
	Failed      int     `json:"failed"`
	Skipped     int     `json:"skipped"`
	SuccessRate float64 `json:"success_rate"`
}

// Summarize derives the summary from a final result set. Skipped counts both
// explicit skips and resources that already existed at the destination.
func Summarize(results []MigrationResult) MigrationSummary {
	s := MigrationSummary{Total: len(results)}
	for _, r := range results {
		switch r.Outcome {
		case OutcomeSuccess:
			s.Succeeded++
		case OutcomeSkipped, OutcomeAlreadyExists:
			s.Skipped++
		default:
			s.Failed++
		}
	}
	if s.Total > 0 {
		s.SuccessRate = float64(s.Succeeded) / float64(s.Total)
	}
	return s
}

// RunReport is the orchestrator's output artifact: an aggregate summary plus
// one detail record per submitted resource. Serializable to plain JSON.
type RunReport struct {
	ID      string            `json:"id"`
	Summary MigrationSummary  `json:"summary"`
	Details []MigrationResult `json:"details"`
	Order   []Category        `json:"order"`
}
