package service

import (
	"context"
	"sync"
	"time"

	"astroline/internal/model"
	"astroline/pkg/logger"
	"astroline/pkg/store/mysql"
	mysqlModel "astroline/pkg/store/mysql/model"
)

// RuleCache mirrors the active rule tables in memory so the assignment
// path never waits on MySQL. Writes go through RuleService, which
// refreshes the cache; a periodic job re-reads the tables to pick up
// changes made by other instances.
type RuleCache struct {
	repo *mysql.Repository

	mu        sync.RWMutex
	overrides []model.OverrideRule
	smart     []model.SmartRule
	loadedAt  time.Time
}

// NewRuleCache creates an empty cache bound to the rule repositories.
func NewRuleCache(repo *mysql.Repository) *RuleCache {
	return &RuleCache{repo: repo}
}

// Refresh replaces the cached tables with the current active rules.
func (c *RuleCache) Refresh(ctx context.Context) error {
	overrideRows, err := c.repo.OverrideRule.ListActive(ctx)
	if err != nil {
		return err
	}
	smartRows, err := c.repo.SmartRule.ListActive(ctx)
	if err != nil {
		return err
	}

	overrides := make([]model.OverrideRule, 0, len(overrideRows))
	for _, row := range overrideRows {
		overrides = append(overrides, toDomainOverrideRule(row))
	}
	smart := make([]model.SmartRule, 0, len(smartRows))
	for _, row := range smartRows {
		smart = append(smart, toDomainSmartRule(row))
	}

	c.mu.Lock()
	c.overrides = overrides
	c.smart = smart
	c.loadedAt = time.Now()
	c.mu.Unlock()

	logger.DebugCtx(ctx, "rule cache refreshed: %d override rules, %d smart rules", len(overrides), len(smart))
	return nil
}

// ActiveOverrideRules returns the cached active override rules.
func (c *RuleCache) ActiveOverrideRules() []model.OverrideRule {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.overrides
}

// ActiveSmartRules returns the cached active smart rules.
func (c *RuleCache) ActiveSmartRules() []model.SmartRule {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.smart
}

// LoadedAt reports when the cache was last refreshed.
func (c *RuleCache) LoadedAt() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.loadedAt
}

func toDomainOverrideRule(row *mysqlModel.OverrideRule) model.OverrideRule {
	return model.OverrideRule{
		ID:                   row.ID,
		OriginalAstrologerID: row.OriginalAstrologerID,
		AssignedAstrologerID: row.AssignedAstrologerID,
		Priority:             row.Priority,
		IsActive:             row.IsActive,
		Reason:               row.Reason,
		CreatedAt:            row.CreatedAt,
		UpdatedAt:            row.UpdatedAt,
	}
}

func toDomainSmartRule(row *mysqlModel.SmartRule) model.SmartRule {
	conditions := make([]model.RuleCondition, 0, len(row.Conditions))
	for _, c := range row.Conditions {
		conditions = append(conditions, model.RuleCondition{
			Attribute: model.ConditionAttribute(c.Attribute),
			Operator:  model.ConditionOperator(c.Operator),
			Values:    append([]string(nil), c.Values...),
		})
	}
	return model.SmartRule{
		ID:                row.ID,
		Name:              row.Name,
		Conditions:        conditions,
		Weight:            row.Weight,
		IsActive:          row.IsActive,
		SuccessRate:       row.SuccessRate,
		TotalApplications: row.TotalApplications,
		CreatedAt:         row.CreatedAt,
		UpdatedAt:         row.UpdatedAt,
	}
}

func toStorageConditions(conds []model.RuleCondition) mysqlModel.JSONConditions {
	out := make(mysqlModel.JSONConditions, 0, len(conds))
	for _, c := range conds {
		out = append(out, mysqlModel.Condition{
			Attribute: string(c.Attribute),
			Operator:  string(c.Operator),
			Values:    append([]string(nil), c.Values...),
		})
	}
	return out
}
