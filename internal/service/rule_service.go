package service

import (
	"context"
	"errors"
	"fmt"

	"astroline/internal/model"
	"astroline/pkg/logger"
	"astroline/pkg/routing"
	"astroline/pkg/store/mysql"
	mysqlModel "astroline/pkg/store/mysql/model"
)

// ErrInvalidRule is returned when a rule fails write-time validation.
// Handlers map it to a 400 response.
var ErrInvalidRule = errors.New("invalid rule configuration")

// RuleService owns the operator console boundary for override and smart
// rules: validation, persistence, cache refresh, and outcome statistics.
type RuleService struct {
	repo  *mysql.Repository
	cache *RuleCache
}

// NewRuleService creates a new rule service.
func NewRuleService(repo *mysql.Repository, cache *RuleCache) *RuleService {
	return &RuleService{repo: repo, cache: cache}
}

// CreateOverrideRule validates and persists a new override rule.
func (s *RuleService) CreateOverrideRule(ctx context.Context, rule *model.OverrideRule) (*model.OverrideRule, error) {
	if err := validateOverrideRule(rule); err != nil {
		return nil, err
	}

	row := &mysqlModel.OverrideRule{
		OriginalAstrologerID: rule.OriginalAstrologerID,
		AssignedAstrologerID: rule.AssignedAstrologerID,
		Priority:             rule.Priority,
		IsActive:             rule.IsActive,
		Reason:               rule.Reason,
	}
	if err := s.repo.OverrideRule.Create(ctx, row); err != nil {
		return nil, fmt.Errorf("failed to create override rule: %w", err)
	}
	s.refreshCache(ctx)

	created := toDomainOverrideRule(row)
	logger.InfoCtx(ctx, "override rule %d created: %s -> %s (priority %d)",
		created.ID, created.OriginalAstrologerID, created.AssignedAstrologerID, created.Priority)
	return &created, nil
}

// UpdateOverrideRule validates and saves changes to an existing rule.
func (s *RuleService) UpdateOverrideRule(ctx context.Context, rule *model.OverrideRule) (*model.OverrideRule, error) {
	if err := validateOverrideRule(rule); err != nil {
		return nil, err
	}
	if _, err := s.repo.OverrideRule.GetByID(ctx, rule.ID); err != nil {
		return nil, fmt.Errorf("override rule %d not found: %w", rule.ID, err)
	}

	row := &mysqlModel.OverrideRule{
		ID:                   rule.ID,
		OriginalAstrologerID: rule.OriginalAstrologerID,
		AssignedAstrologerID: rule.AssignedAstrologerID,
		Priority:             rule.Priority,
		IsActive:             rule.IsActive,
		Reason:               rule.Reason,
	}
	if err := s.repo.OverrideRule.Update(ctx, row); err != nil {
		return nil, fmt.Errorf("failed to update override rule: %w", err)
	}
	s.refreshCache(ctx)

	updated, err := s.GetOverrideRule(ctx, rule.ID)
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// GetOverrideRule returns one override rule.
func (s *RuleService) GetOverrideRule(ctx context.Context, id int64) (*model.OverrideRule, error) {
	row, err := s.repo.OverrideRule.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("override rule %d not found: %w", id, err)
	}
	rule := toDomainOverrideRule(row)
	return &rule, nil
}

// ListOverrideRules returns all override rules including inactive ones.
func (s *RuleService) ListOverrideRules(ctx context.Context) ([]model.OverrideRule, error) {
	rows, err := s.repo.OverrideRule.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list override rules: %w", err)
	}
	rules := make([]model.OverrideRule, 0, len(rows))
	for _, row := range rows {
		rules = append(rules, toDomainOverrideRule(row))
	}
	return rules, nil
}

// SetOverrideRuleActive toggles a rule and refreshes the cache.
func (s *RuleService) SetOverrideRuleActive(ctx context.Context, id int64, active bool) error {
	if err := s.repo.OverrideRule.SetActive(ctx, id, active); err != nil {
		return fmt.Errorf("failed to toggle override rule %d: %w", id, err)
	}
	s.refreshCache(ctx)
	return nil
}

// DeleteOverrideRule removes a rule and refreshes the cache.
func (s *RuleService) DeleteOverrideRule(ctx context.Context, id int64) error {
	if err := s.repo.OverrideRule.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete override rule %d: %w", id, err)
	}
	s.refreshCache(ctx)
	return nil
}

// CreateSmartRule validates and persists a new smart rule.
func (s *RuleService) CreateSmartRule(ctx context.Context, rule *model.SmartRule) (*model.SmartRule, error) {
	if err := validateSmartRule(rule); err != nil {
		return nil, err
	}

	row := &mysqlModel.SmartRule{
		Name:       rule.Name,
		Conditions: toStorageConditions(rule.Conditions),
		Weight:     rule.Weight,
		IsActive:   rule.IsActive,
	}
	if err := s.repo.SmartRule.Create(ctx, row); err != nil {
		return nil, fmt.Errorf("failed to create smart rule: %w", err)
	}
	s.refreshCache(ctx)

	created := toDomainSmartRule(row)
	logger.InfoCtx(ctx, "smart rule %d created: %s (weight %.2f, %d conditions)",
		created.ID, created.Name, created.Weight, len(created.Conditions))
	return &created, nil
}

// UpdateSmartRule validates and saves changes to an existing rule. The
// success statistics are untouched; only RecordRuleOutcomes writes them.
func (s *RuleService) UpdateSmartRule(ctx context.Context, rule *model.SmartRule) (*model.SmartRule, error) {
	if err := validateSmartRule(rule); err != nil {
		return nil, err
	}
	if _, err := s.repo.SmartRule.GetByID(ctx, rule.ID); err != nil {
		return nil, fmt.Errorf("smart rule %d not found: %w", rule.ID, err)
	}

	row := &mysqlModel.SmartRule{
		ID:         rule.ID,
		Name:       rule.Name,
		Conditions: toStorageConditions(rule.Conditions),
		Weight:     rule.Weight,
		IsActive:   rule.IsActive,
	}
	if err := s.repo.SmartRule.Update(ctx, row); err != nil {
		return nil, fmt.Errorf("failed to update smart rule: %w", err)
	}
	s.refreshCache(ctx)

	return s.GetSmartRule(ctx, rule.ID)
}

// GetSmartRule returns one smart rule.
func (s *RuleService) GetSmartRule(ctx context.Context, id int64) (*model.SmartRule, error) {
	row, err := s.repo.SmartRule.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("smart rule %d not found: %w", id, err)
	}
	rule := toDomainSmartRule(row)
	return &rule, nil
}

// ListSmartRules returns all smart rules including inactive ones.
func (s *RuleService) ListSmartRules(ctx context.Context) ([]model.SmartRule, error) {
	rows, err := s.repo.SmartRule.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list smart rules: %w", err)
	}
	rules := make([]model.SmartRule, 0, len(rows))
	for _, row := range rows {
		rules = append(rules, toDomainSmartRule(row))
	}
	return rules, nil
}

// SetSmartRuleActive toggles a rule and refreshes the cache.
func (s *RuleService) SetSmartRuleActive(ctx context.Context, id int64, active bool) error {
	if err := s.repo.SmartRule.SetActive(ctx, id, active); err != nil {
		return fmt.Errorf("failed to toggle smart rule %d: %w", id, err)
	}
	s.refreshCache(ctx)
	return nil
}

// DeleteSmartRule removes a rule and refreshes the cache.
func (s *RuleService) DeleteSmartRule(ctx context.Context, id int64) error {
	if err := s.repo.SmartRule.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete smart rule %d: %w", id, err)
	}
	s.refreshCache(ctx)
	return nil
}

// RecordRuleOutcomes folds one consultation outcome into the success
// statistics of every smart rule that routed it. Statistics writes never
// fail the release path; errors are logged and the periodic cache refresh
// reconciles.
func (s *RuleService) RecordRuleOutcomes(ctx context.Context, ruleIDs []int64, success bool) {
	for _, id := range ruleIDs {
		if err := s.repo.SmartRule.RecordOutcome(ctx, id, success); err != nil {
			logger.ErrorCtx(ctx, "failed to record outcome for smart rule %d: %v", id, err)
		}
	}
}

func (s *RuleService) refreshCache(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Refresh(ctx); err != nil {
		logger.ErrorCtx(ctx, "rule cache refresh after write failed: %v", err)
	}
}

func validateOverrideRule(rule *model.OverrideRule) error {
	if rule.OriginalAstrologerID == "" || rule.AssignedAstrologerID == "" {
		return fmt.Errorf("%w: both astrologer ids are required", ErrInvalidRule)
	}
	if rule.OriginalAstrologerID == rule.AssignedAstrologerID {
		return fmt.Errorf("%w: rule redirects %s to itself", ErrInvalidRule, rule.OriginalAstrologerID)
	}
	if rule.Priority < 0 {
		return fmt.Errorf("%w: priority must not be negative", ErrInvalidRule)
	}
	return nil
}

func validateSmartRule(rule *model.SmartRule) error {
	if rule.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidRule)
	}
	if rule.Weight <= 0 {
		return fmt.Errorf("%w: weight must be positive", ErrInvalidRule)
	}
	if err := routing.ValidateConditions(rule.Conditions); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRule, err)
	}
	return nil
}
