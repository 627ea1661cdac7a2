package service

import (
	"context"
	"fmt"
	"time"

	"astroline/internal/model"
	"astroline/pkg/logger"
	"astroline/pkg/routing"
	"astroline/pkg/store/mysql"
	mysqlModel "astroline/pkg/store/mysql/model"
	"astroline/pkg/workload"
)

// WorkloadService exposes the workload pool for dashboards and operator
// control, and owns the rebalance pass with its persistence side effects.
type WorkloadService struct {
	store      *workload.Store
	rebalancer *routing.Rebalancer
	repo       *mysql.Repository
}

// NewWorkloadService creates a new workload service.
func NewWorkloadService(store *workload.Store, rebalancer *routing.Rebalancer, repo *mysql.Repository) *WorkloadService {
	return &WorkloadService{
		store:      store,
		rebalancer: rebalancer,
		repo:       repo,
	}
}

// ListWorkloads returns the current workload record of every astrologer.
func (s *WorkloadService) ListWorkloads(ctx context.Context) []model.AstrologerWorkload {
	return s.store.Snapshot()
}

// GetWorkload returns one astrologer's workload record.
func (s *WorkloadService) GetWorkload(ctx context.Context, astrologerID string) (*model.AstrologerWorkload, error) {
	entry, ok := s.store.Get(astrologerID)
	if !ok {
		return nil, fmt.Errorf("no workload record for astrologer %s", astrologerID)
	}
	w := entry.Workload
	return &w, nil
}

// SetBreak puts an astrologer on break until the given time, or clears
// the break when until is nil. A break only blocks new assignments; open
// consultations run to completion. The availability filter checks the
// break window at resolution time, so the accepting-new throttle is left
// alone here and stays under rebalance and operator control.
func (s *WorkloadService) SetBreak(ctx context.Context, astrologerID string, until *time.Time) error {
	if until != nil && until.Before(time.Now()) {
		return fmt.Errorf("break end %s is in the past", until.Format(time.RFC3339))
	}
	if !s.store.SetBreak(astrologerID, until) {
		return fmt.Errorf("no workload record for astrologer %s", astrologerID)
	}
	if until != nil {
		logger.InfoCtx(ctx, "astrologer %s on break until %s", astrologerID, until.Format(time.RFC3339))
	} else {
		logger.InfoCtx(ctx, "astrologer %s break cleared", astrologerID)
	}
	return nil
}

// Rebalance runs one rebalance pass and persists its summary. Snapshot
// or event write failures do not fail the pass; the in-memory state is
// already updated and the next pass records again.
func (s *WorkloadService) Rebalance(ctx context.Context) (*model.RebalanceReport, error) {
	report, err := s.rebalancer.Run(ctx)
	if err != nil {
		return nil, err
	}

	if s.repo != nil {
		if err := s.repo.Snapshot.RecordRebalance(ctx, &mysqlModel.RebalanceEvent{
			RanAt:              report.RanAt,
			Overloaded:         mysqlModel.JSONStringArray(report.Overloaded),
			ThrottledCount:     len(report.ThrottledChanged),
			PerformanceUpdates: len(report.PerformanceUpdated),
		}); err != nil {
			logger.ErrorCtx(ctx, "failed to persist rebalance event: %v", err)
		}
	}

	return report, nil
}

// PersistSnapshots writes one workload snapshot row per astrologer.
func (s *WorkloadService) PersistSnapshots(ctx context.Context) error {
	if s.repo == nil {
		return nil
	}

	now := time.Now()
	entries := s.store.Entries()
	rows := make([]*mysqlModel.WorkloadSnapshot, 0, len(entries))
	for i := range entries {
		w := &entries[i].Workload
		rows = append(rows, &mysqlModel.WorkloadSnapshot{
			AstrologerID:           w.AstrologerID,
			MaxConcurrent:          w.MaxConcurrent,
			CurrentConsultations:   w.CurrentConsultations,
			PerformanceScore:       w.PerformanceScore,
			AverageResponseSeconds: w.AverageResponseSeconds,
			IsAcceptingNew:         w.IsAcceptingNew,
			RecordedAt:             now,
		})
	}

	if err := s.repo.Snapshot.CreateBatch(ctx, rows); err != nil {
		return fmt.Errorf("failed to persist workload snapshots: %w", err)
	}
	return nil
}

// WorkloadHistory returns persisted snapshots for one astrologer.
func (s *WorkloadService) WorkloadHistory(ctx context.Context, astrologerID string, since time.Time) ([]*mysqlModel.WorkloadSnapshot, error) {
	if s.repo == nil {
		return nil, nil
	}
	return s.repo.Snapshot.ListByAstrologer(ctx, astrologerID, since)
}

// RecentRebalances returns the latest persisted rebalance summaries.
func (s *WorkloadService) RecentRebalances(ctx context.Context, limit int) ([]*mysqlModel.RebalanceEvent, error) {
	if s.repo == nil {
		return nil, nil
	}
	return s.repo.Snapshot.ListRecentRebalances(ctx, limit)
}
