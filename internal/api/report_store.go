package api

import (
	"sync"

	"github.com/lmoreira/gateway-migration-workbench/internal/models"
)

// ReportStore provides thread-safe storage for completed run reports.
type ReportStore struct {
	mu      sync.RWMutex
	reports map[string]*models.RunReport
}

// NewReportStore creates an empty report store.
func NewReportStore() *ReportStore {
	return &ReportStore{reports: make(map[string]*models.RunReport)}
}

// Put stores a completed report under its ID.
func (s *ReportStore) Put(report *models.RunReport) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reports[report.ID] = report
}

// Get returns a report by ID, or nil if not found.
func (s *ReportStore) Get(id string) *models.RunReport {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.reports[id]
}
