package mysql

import (
	"context"
	"time"

	"astroline/pkg/store/mysql/model"
)

// SnapshotRepository handles workload snapshots and rebalance events
type SnapshotRepository struct {
	ds *Datastore
}

// NewSnapshotRepository creates a new snapshot repository
func NewSnapshotRepository(ds *Datastore) *SnapshotRepository {
	return &SnapshotRepository{ds: ds}
}

// CreateBatch persists one snapshot row per astrologer in a single insert
func (r *SnapshotRepository) CreateBatch(ctx context.Context, snapshots []*model.WorkloadSnapshot) error {
	if len(snapshots) == 0 {
		return nil
	}
	return r.ds.DB(ctx).CreateInBatches(snapshots, 100).Error
}

// ListByAstrologer returns snapshots for one astrologer since a given time
func (r *SnapshotRepository) ListByAstrologer(ctx context.Context, astrologerID string, since time.Time) ([]*model.WorkloadSnapshot, error) {
	var snapshots []*model.WorkloadSnapshot
	err := r.ds.DB(ctx).
		Where("astrologer_id = ? AND recorded_at >= ?", astrologerID, since).
		Order("recorded_at ASC").
		Find(&snapshots).Error
	return snapshots, err
}

// RecordRebalance appends one rebalance pass summary
func (r *SnapshotRepository) RecordRebalance(ctx context.Context, event *model.RebalanceEvent) error {
	return r.ds.DB(ctx).Create(event).Error
}

// ListRecentRebalances returns the newest rebalance summaries, capped at limit
func (r *SnapshotRepository) ListRecentRebalances(ctx context.Context, limit int) ([]*model.RebalanceEvent, error) {
	if limit <= 0 {
		limit = 50
	}
	var events []*model.RebalanceEvent
	err := r.ds.DB(ctx).Order("ran_at DESC").Limit(limit).Find(&events).Error
	return events, err
}

// DeleteOlderThan prunes snapshots past the retention window
func (r *SnapshotRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result := r.ds.DB(ctx).
		Where("recorded_at < ?", cutoff).
		Delete(&model.WorkloadSnapshot{})
	return result.RowsAffected, result.Error
}
