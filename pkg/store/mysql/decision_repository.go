package mysql

import (
	"context"
	"time"

	"astroline/pkg/store/mysql/model"
)

// DecisionRepository handles routing decision audit records
type DecisionRepository struct {
	ds *Datastore
}

// NewDecisionRepository creates a new decision repository
func NewDecisionRepository(ds *Datastore) *DecisionRepository {
	return &DecisionRepository{ds: ds}
}

// Create appends one decision to the audit log
func (r *DecisionRepository) Create(ctx context.Context, decision *model.RoutingDecision) error {
	return r.ds.DB(ctx).Create(decision).Error
}

// GetByRequestID returns the decision recorded for a request
func (r *DecisionRepository) GetByRequestID(ctx context.Context, requestID string) (*model.RoutingDecision, error) {
	var decision model.RoutingDecision
	if err := r.ds.DB(ctx).Where("request_id = ?", requestID).First(&decision).Error; err != nil {
		return nil, err
	}
	return &decision, nil
}

// ListRecent returns the newest decisions, capped at limit
func (r *DecisionRepository) ListRecent(ctx context.Context, limit int) ([]*model.RoutingDecision, error) {
	if limit <= 0 {
		limit = 100
	}
	var decisions []*model.RoutingDecision
	err := r.ds.DB(ctx).Order("decided_at DESC").Limit(limit).Find(&decisions).Error
	return decisions, err
}

// ListByAstrologer returns decisions handled by one astrologer in a time window
func (r *DecisionRepository) ListByAstrologer(ctx context.Context, astrologerID string, since time.Time, limit int) ([]*model.RoutingDecision, error) {
	if limit <= 0 {
		limit = 100
	}
	var decisions []*model.RoutingDecision
	err := r.ds.DB(ctx).
		Where("handling_astrologer_id = ? AND decided_at >= ?", astrologerID, since).
		Order("decided_at DESC").
		Limit(limit).
		Find(&decisions).Error
	return decisions, err
}

// CountSince counts decisions recorded after the given time
func (r *DecisionRepository) CountSince(ctx context.Context, since time.Time) (int64, error) {
	var count int64
	err := r.ds.DB(ctx).Model(&model.RoutingDecision{}).
		Where("decided_at >= ?", since).
		Count(&count).Error
	return count, err
}

// DeleteOlderThan prunes audit records past the retention window
func (r *DecisionRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result := r.ds.DB(ctx).
		Where("decided_at < ?", cutoff).
		Delete(&model.RoutingDecision{})
	return result.RowsAffected, result.Error
}
