package routing

import (
	"context"

	"astroline/internal/model"
)

// Fixed score weights. The formula is part of the routing contract and is
// exercised directly by tests, so these are constants rather than config.
const (
	headroomWeight    = 0.5
	performanceWeight = 0.3
	responseWeight    = 0.2
)

// Config carries the tunable routing parameters.
type Config struct {
	MaxRedirectHops   int     // override chain hop limit
	OverloadThreshold float64 // workload fraction that throttles an astrologer
	ReleaseThreshold  float64 // workload fraction that lifts the throttle
}

// DefaultConfig returns the routing defaults used when no configuration
// is supplied.
func DefaultConfig() *Config {
	return &Config{
		MaxRedirectHops:   5,
		OverloadThreshold: 0.9,
		ReleaseThreshold:  0.6,
	}
}

// RuleSource supplies the active rule tables to the routing path. The
// implementation is expected to serve from memory; resolution never
// blocks on storage.
type RuleSource interface {
	ActiveOverrideRules() []model.OverrideRule
	ActiveSmartRules() []model.SmartRule
}

// RuleStatsRecorder receives the outcome of a consultation for every
// smart rule that contributed to its routing decision.
type RuleStatsRecorder interface {
	RecordRuleOutcomes(ctx context.Context, ruleIDs []int64, success bool)
}

// DecisionRecorder persists routing decisions for audit. Implementations
// must not block the assignment path on failure.
type DecisionRecorder interface {
	RecordDecision(ctx context.Context, decision *model.RoutingDecision)
}

// Candidate is one admissible handling astrologer for a request, after
// override redirection and availability filtering.
type Candidate struct {
	// AstrologerID is the handling astrologer (post-redirect).
	AstrologerID string
	// DisplayID is the pool member the candidate was derived from
	// (pre-redirect).
	DisplayID string
	// AppliedOverrideRuleID is set when a redirect produced this candidate.
	AppliedOverrideRuleID *int64
	// Workload is the handling astrologer's workload at resolution time.
	Workload model.AstrologerWorkload
}

// ScoredCandidate is a candidate with its computed score and the smart
// rules that contributed non-zero terms.
type ScoredCandidate struct {
	Candidate
	Score          float64
	MatchedRuleIDs []int64
}

// Resolution is the outcome of an override-chain walk.
type Resolution struct {
	FinalID               string
	AppliedOverrideRuleID *int64
	Hops                  int
	CycleDetected         bool
	// CyclePath holds the walk up to the point the cycle was detected,
	// for operator alerting.
	CyclePath []string
}
