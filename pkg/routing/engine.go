package routing

import (
	"context"
	"sync"
	"time"

	"astroline/internal/model"
	"astroline/pkg/logger"
	"astroline/pkg/workload"

	"github.com/google/uuid"
)

// Engine orchestrates candidate resolution, scoring and capacity
// reservation into a single routing decision, and feeds consultation
// outcomes back into the workload and rule statistics.
type Engine struct {
	cfg      *Config
	store    *workload.Store
	resolver *Resolver
	scorer   *Scorer

	ruleStats RuleStatsRecorder // optional
	decisions DecisionRecorder  // optional

	// inflight tracks open assignments per handling astrologer so a
	// release can be attributed to the smart rules that routed it.
	mu       sync.Mutex
	inflight map[string][]*model.RoutingDecision
}

// NewEngine creates the routing decision maker.
func NewEngine(cfg *Config, store *workload.Store, rules RuleSource) *Engine {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &Engine{
		cfg:      cfg,
		store:    store,
		resolver: NewResolver(cfg, store, rules),
		scorer:   NewScorer(rules),
		inflight: make(map[string][]*model.RoutingDecision),
	}
}

// WithRuleStats attaches a recorder for smart-rule outcome statistics.
func (e *Engine) WithRuleStats(rec RuleStatsRecorder) *Engine {
	e.ruleStats = rec
	return e
}

// WithDecisionRecorder attaches an audit sink for routing decisions.
func (e *Engine) WithDecisionRecorder(rec DecisionRecorder) *Engine {
	e.decisions = rec
	return e
}

// Assign routes one consultation request. Either a full decision with a
// reserved capacity slot is returned, or ErrNoAvailableAstrologer; the
// engine never partially applies a decision.
//
// Reservation races are recovered locally: if another assignment takes
// the top candidate's last slot first, the next-ranked candidate is
// tried, bounded by the candidate list length.
func (e *Engine) Assign(ctx context.Context, req *model.ConsultationRequest) (*model.RoutingDecision, error) {
	candidates := e.resolver.ListCandidates(ctx, req)
	if len(candidates) == 0 {
		return nil, ErrNoAvailableAstrologer
	}

	ranked := e.scorer.Rank(candidates, req)

	for i := range ranked {
		if err := ctx.Err(); err != nil {
			// Caller abandoned before reservation: nothing was consumed,
			// nothing to clean up.
			return nil, err
		}

		c := &ranked[i]
		if err := e.store.Reserve(c.AstrologerID); err != nil {
			// Reservation conflict or capacity filled since resolution;
			// fall through to the next-ranked candidate.
			logger.DebugCtx(ctx, "reservation on %s failed (%v), trying next candidate", c.AstrologerID, err)
			continue
		}

		decision := e.buildDecision(req, c)
		e.trackInflight(decision)
		if e.decisions != nil {
			e.decisions.RecordDecision(ctx, decision)
		}

		logger.InfoCtx(ctx, "assigned request %s: display=%s handling=%s score=%.4f",
			decision.RequestID, decision.DisplayAstrologerID, decision.HandlingAstrologerID, decision.Score)
		return decision, nil
	}

	return nil, ErrNoAvailableAstrologer
}

// Release returns the capacity slot held by the astrologer's oldest open
// assignment and feeds the outcome into the performance statistics and
// the smart rules that routed it. A release with no matching reservation
// is a logged no-op, never an error and never a negative counter.
func (e *Engine) Release(ctx context.Context, astrologerID string, outcome model.ConsultationOutcome, responseSeconds float64) error {
	if !outcome.Valid() {
		return ErrInvalidOutcome
	}

	if !e.store.Release(astrologerID) {
		logger.WarnCtx(ctx, "stale release for astrologer %s: no matching reservation", astrologerID)
		return nil
	}

	e.store.RecordCompletion(astrologerID, outcome, responseSeconds)

	decision := e.popInflight(astrologerID)
	if decision != nil && len(decision.MatchedSmartRuleIDs) > 0 && e.ruleStats != nil {
		e.ruleStats.RecordRuleOutcomes(ctx, decision.MatchedSmartRuleIDs, outcome == model.OutcomeCompleted)
	}

	logger.InfoCtx(ctx, "released slot on %s (outcome=%s, response=%.1fs)", astrologerID, outcome, responseSeconds)
	return nil
}

func (e *Engine) buildDecision(req *model.ConsultationRequest, c *ScoredCandidate) *model.RoutingDecision {
	requestID := req.RequestID
	if requestID == "" {
		requestID = uuid.NewString()
	}

	// The end user keeps seeing the astrologer they asked for even when
	// an override redirects the handling.
	display := req.RequestedAstrologerID
	if display == "" {
		display = c.DisplayID
	}

	return &model.RoutingDecision{
		RequestID:             requestID,
		DisplayAstrologerID:   display,
		HandlingAstrologerID:  c.AstrologerID,
		AppliedOverrideRuleID: c.AppliedOverrideRuleID,
		MatchedSmartRuleIDs:   c.MatchedRuleIDs,
		Score:                 c.Score,
		DecidedAt:             time.Now(),
	}
}

func (e *Engine) trackInflight(d *model.RoutingDecision) {
	e.mu.Lock()
	e.inflight[d.HandlingAstrologerID] = append(e.inflight[d.HandlingAstrologerID], d)
	e.mu.Unlock()
}

// popInflight removes and returns the oldest open assignment for the
// astrologer, or nil when none is tracked.
func (e *Engine) popInflight(astrologerID string) *model.RoutingDecision {
	e.mu.Lock()
	defer e.mu.Unlock()
	open := e.inflight[astrologerID]
	if len(open) == 0 {
		return nil
	}
	d := open[0]
	if len(open) == 1 {
		delete(e.inflight, astrologerID)
	} else {
		e.inflight[astrologerID] = open[1:]
	}
	return d
}

// Metrics computes the dashboard view on demand from the workload store
// and the active rule tables, avoiding a second source of truth.
func (e *Engine) Metrics(rules RuleSource) model.SystemMetrics {
	now := time.Now()
	entries := e.store.Entries()

	m := model.SystemMetrics{TotalAstrologers: len(entries)}
	var fractionSum float64
	for i := range entries {
		en := &entries[i]
		fraction := en.Workload.WorkloadFraction()
		fractionSum += fraction
		if available(en, now) {
			m.AvailableAstrologers++
		}
		if fraction >= e.cfg.OverloadThreshold {
			m.OverloadedAstrologers++
		}
	}
	if len(entries) > 0 {
		m.AverageWorkload = fractionSum / float64(len(entries))
	}
	if rules != nil {
		m.ActiveRuleCount = len(rules.ActiveOverrideRules()) + len(rules.ActiveSmartRules())
	}
	return m
}
