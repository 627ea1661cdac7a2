package service

import (
	"context"
	"fmt"

	"astroline/internal/model"
	"astroline/pkg/directory"
	"astroline/pkg/logger"
	queue "astroline/pkg/queue/asynq"
	"astroline/pkg/routing"
	"astroline/pkg/store/mysql"
	mysqlModel "astroline/pkg/store/mysql/model"
	"astroline/pkg/workload"

	"github.com/hibiken/asynq"
)

// RoutingService fronts the routing engine for the API and the
// completion-event consumer, and keeps the workload store in step with
// the astrologer directory.
type RoutingService struct {
	engine   *routing.Engine
	store    *workload.Store
	presence *directory.PresenceStore
	cache    *RuleCache
}

// NewRoutingService creates a new routing service.
func NewRoutingService(engine *routing.Engine, store *workload.Store, presence *directory.PresenceStore, cache *RuleCache) *RoutingService {
	return &RoutingService{
		engine:   engine,
		store:    store,
		presence: presence,
		cache:    cache,
	}
}

// Assign routes one consultation request to a handling astrologer.
func (s *RoutingService) Assign(ctx context.Context, req *model.ConsultationRequest) (*model.RoutingDecision, error) {
	return s.engine.Assign(ctx, req)
}

// Release returns a capacity slot and records the consultation outcome.
func (s *RoutingService) Release(ctx context.Context, astrologerID string, outcome model.ConsultationOutcome, responseSeconds float64) error {
	return s.engine.Release(ctx, astrologerID, outcome, responseSeconds)
}

// HandleCompletionTask consumes one consultation-ended event from the
// queue. Parse failures are permanent; release failures are retried by
// the queue.
func (s *RoutingService) HandleCompletionTask(ctx context.Context, task *asynq.Task) error {
	event, err := queue.ParseCompletionEvent(task)
	if err != nil {
		logger.ErrorCtx(ctx, "dropping malformed completion event: %v", err)
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}
	return s.Release(ctx, event.AstrologerID, event.Outcome, event.ResponseTimeSeconds)
}

// SyncDirectory reconciles the workload store against the directory:
// live profiles are upserted, astrologers that dropped out of the
// directory are deactivated. Counters and statistics survive the sync.
func (s *RoutingService) SyncDirectory(ctx context.Context) error {
	profiles, err := s.presence.GetAll(ctx)
	if err != nil {
		return fmt.Errorf("failed to read directory: %w", err)
	}

	live := make(map[string]struct{}, len(profiles))
	for _, p := range profiles {
		live[p.ID] = struct{}{}
		s.store.Upsert(*p)
	}

	deactivated := 0
	for _, entry := range s.store.Entries() {
		if _, ok := live[entry.Profile.ID]; ok {
			continue
		}
		if entry.Profile.IsActive && s.store.Deactivate(entry.Profile.ID) {
			deactivated++
		}
	}

	logger.DebugCtx(ctx, "directory sync: %d live profiles, %d deactivated", len(profiles), deactivated)
	return nil
}

// Metrics computes the current system metrics view.
func (s *RoutingService) Metrics(ctx context.Context) model.SystemMetrics {
	return s.engine.Metrics(s.cache)
}

// DecisionAuditor persists routing decisions to MySQL. The assignment
// path calls it inline but a write failure only logs; the decision
// already happened and audit must not undo it.
type DecisionAuditor struct {
	repo *mysql.DecisionRepository
}

// NewDecisionAuditor creates a decision auditor.
func NewDecisionAuditor(repo *mysql.DecisionRepository) *DecisionAuditor {
	return &DecisionAuditor{repo: repo}
}

// RecordDecision appends one decision to the audit log.
func (a *DecisionAuditor) RecordDecision(ctx context.Context, decision *model.RoutingDecision) {
	row := &mysqlModel.RoutingDecision{
		RequestID:             decision.RequestID,
		DisplayAstrologerID:   decision.DisplayAstrologerID,
		HandlingAstrologerID:  decision.HandlingAstrologerID,
		AppliedOverrideRuleID: decision.AppliedOverrideRuleID,
		MatchedSmartRuleIDs:   mysqlModel.JSONInt64Array(decision.MatchedSmartRuleIDs),
		Score:                 decision.Score,
		DecidedAt:             decision.DecidedAt,
	}
	if err := a.repo.Create(ctx, row); err != nil {
		logger.ErrorCtx(ctx, "failed to audit routing decision %s: %v", decision.RequestID, err)
	}
}
