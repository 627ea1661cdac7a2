package mysql

import (
	"context"
	"time"

	"astroline/pkg/store/mysql/model"
)

// OverrideRuleRepository handles override rule database operations
type OverrideRuleRepository struct {
	ds *Datastore
}

// NewOverrideRuleRepository creates a new override rule repository
func NewOverrideRuleRepository(ds *Datastore) *OverrideRuleRepository {
	return &OverrideRuleRepository{ds: ds}
}

// Create inserts a new override rule
func (r *OverrideRuleRepository) Create(ctx context.Context, rule *model.OverrideRule) error {
	now := time.Now()
	if rule.CreatedAt.IsZero() {
		rule.CreatedAt = now
	}
	rule.UpdatedAt = now
	return r.ds.DB(ctx).Create(rule).Error
}

// GetByID returns a single override rule by id
func (r *OverrideRuleRepository) GetByID(ctx context.Context, id int64) (*model.OverrideRule, error) {
	var rule model.OverrideRule
	if err := r.ds.DB(ctx).Where("id = ?", id).First(&rule).Error; err != nil {
		return nil, err
	}
	return &rule, nil
}

// List returns all override rules ordered by priority
func (r *OverrideRuleRepository) List(ctx context.Context) ([]*model.OverrideRule, error) {
	var rules []*model.OverrideRule
	err := r.ds.DB(ctx).Order("priority DESC, id ASC").Find(&rules).Error
	return rules, err
}

// ListActive returns active override rules ordered by priority
func (r *OverrideRuleRepository) ListActive(ctx context.Context) ([]*model.OverrideRule, error) {
	var rules []*model.OverrideRule
	err := r.ds.DB(ctx).
		Where("is_active = ?", true).
		Order("priority DESC, updated_at DESC").
		Find(&rules).Error
	return rules, err
}

// Update saves changed fields of an existing rule
func (r *OverrideRuleRepository) Update(ctx context.Context, rule *model.OverrideRule) error {
	rule.UpdatedAt = time.Now()
	return r.ds.DB(ctx).Model(&model.OverrideRule{}).
		Where("id = ?", rule.ID).
		Updates(map[string]interface{}{
			"original_astrologer_id": rule.OriginalAstrologerID,
			"assigned_astrologer_id": rule.AssignedAstrologerID,
			"priority":               rule.Priority,
			"is_active":              rule.IsActive,
			"reason":                 rule.Reason,
			"updated_at":             rule.UpdatedAt,
		}).Error
}

// SetActive toggles a rule without touching its routing fields
func (r *OverrideRuleRepository) SetActive(ctx context.Context, id int64, active bool) error {
	return r.ds.DB(ctx).Model(&model.OverrideRule{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"is_active":  active,
			"updated_at": time.Now(),
		}).Error
}

// Delete removes a rule by id
func (r *OverrideRuleRepository) Delete(ctx context.Context, id int64) error {
	return r.ds.DB(ctx).Where("id = ?", id).Delete(&model.OverrideRule{}).Error
}
