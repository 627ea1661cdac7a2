package mysql

import (
	"context"
	"time"

	"astroline/pkg/store/mysql/model"

	"gorm.io/gorm"
)

// SmartRuleRepository handles smart rule database operations
type SmartRuleRepository struct {
	ds *Datastore
}

// NewSmartRuleRepository creates a new smart rule repository
func NewSmartRuleRepository(ds *Datastore) *SmartRuleRepository {
	return &SmartRuleRepository{ds: ds}
}

// Create inserts a new smart rule
func (r *SmartRuleRepository) Create(ctx context.Context, rule *model.SmartRule) error {
	now := time.Now()
	if rule.CreatedAt.IsZero() {
		rule.CreatedAt = now
	}
	rule.UpdatedAt = now
	return r.ds.DB(ctx).Create(rule).Error
}

// GetByID returns a single smart rule by id
func (r *SmartRuleRepository) GetByID(ctx context.Context, id int64) (*model.SmartRule, error) {
	var rule model.SmartRule
	if err := r.ds.DB(ctx).Where("id = ?", id).First(&rule).Error; err != nil {
		return nil, err
	}
	return &rule, nil
}

// List returns all smart rules
func (r *SmartRuleRepository) List(ctx context.Context) ([]*model.SmartRule, error) {
	var rules []*model.SmartRule
	err := r.ds.DB(ctx).Order("id ASC").Find(&rules).Error
	return rules, err
}

// ListActive returns active smart rules
func (r *SmartRuleRepository) ListActive(ctx context.Context) ([]*model.SmartRule, error) {
	var rules []*model.SmartRule
	err := r.ds.DB(ctx).Where("is_active = ?", true).Order("id ASC").Find(&rules).Error
	return rules, err
}

// Update saves changed fields of an existing rule. Outcome counters are
// never written here, only via RecordOutcome.
func (r *SmartRuleRepository) Update(ctx context.Context, rule *model.SmartRule) error {
	rule.UpdatedAt = time.Now()
	return r.ds.DB(ctx).Model(&model.SmartRule{}).
		Where("id = ?", rule.ID).
		Updates(map[string]interface{}{
			"name":       rule.Name,
			"conditions": rule.Conditions,
			"weight":     rule.Weight,
			"is_active":  rule.IsActive,
			"updated_at": rule.UpdatedAt,
		}).Error
}

// SetActive toggles a rule
func (r *SmartRuleRepository) SetActive(ctx context.Context, id int64, active bool) error {
	return r.ds.DB(ctx).Model(&model.SmartRule{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"is_active":  active,
			"updated_at": time.Now(),
		}).Error
}

// RecordOutcome folds one consultation outcome into the rule's running
// success rate atomically. success_rate is the percentage of successful
// applications over total_applications.
func (r *SmartRuleRepository) RecordOutcome(ctx context.Context, id int64, success bool) error {
	successValue := 0.0
	if success {
		successValue = 100.0
	}
	return r.ds.DB(ctx).Model(&model.SmartRule{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"success_rate": gorm.Expr(
				"(success_rate * total_applications + ?) / (total_applications + 1)",
				successValue,
			),
			"total_applications": gorm.Expr("total_applications + 1"),
			"updated_at":         time.Now(),
		}).Error
}

// Delete removes a rule by id
func (r *SmartRuleRepository) Delete(ctx context.Context, id int64) error {
	return r.ds.DB(ctx).Where("id = ?", id).Delete(&model.SmartRule{}).Error
}
