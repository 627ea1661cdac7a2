package model

import "time"

// ConsultationOutcome classifies how a consultation ended.
type ConsultationOutcome string

const (
	OutcomeCompleted ConsultationOutcome = "COMPLETED"
	OutcomeAbandoned ConsultationOutcome = "ABANDONED"
)

// Valid reports whether the outcome is one the engine understands.
func (o ConsultationOutcome) Valid() bool {
	return o == OutcomeCompleted || o == OutcomeAbandoned
}

// ConsultationRequest is an incoming chat-consultation request.
type ConsultationRequest struct {
	RequestID             string `json:"request_id,omitempty"`
	RequestedAstrologerID string `json:"requested_astrologer_id"`
	Specialization        string `json:"specialization,omitempty"`
	Language              string `json:"language,omitempty"`
	PriceTier             string `json:"price_tier,omitempty"`
}

// RoutingDecision is the write-once record returned by assign. The display
// astrologer is what the end user sees; the handling astrologer actually
// serves the chat after any transparent redirect.
type RoutingDecision struct {
	RequestID             string    `json:"request_id"`
	DisplayAstrologerID   string    `json:"display_astrologer_id"`
	HandlingAstrologerID  string    `json:"handling_astrologer_id"`
	AppliedOverrideRuleID *int64    `json:"applied_override_rule_id,omitempty"`
	MatchedSmartRuleIDs   []int64   `json:"matched_smart_rule_ids,omitempty"`
	Score                 float64   `json:"score"`
	DecidedAt             time.Time `json:"decided_at"`
}

// CompletionEvent is emitted by the consultation lifecycle service when a
// consultation ends, and consumed by release.
type CompletionEvent struct {
	AstrologerID        string              `json:"astrologer_id"`
	Outcome             ConsultationOutcome `json:"outcome"`
	ResponseTimeSeconds float64             `json:"response_time_seconds"`
}

// ThrottleChange records an accepting-new flip applied by a rebalance pass.
type ThrottleChange struct {
	AstrologerID   string `json:"astrologer_id"`
	IsAcceptingNew bool   `json:"is_accepting_new"`
}

// PerformanceChange records a performance score recomputation.
type PerformanceChange struct {
	AstrologerID string  `json:"astrologer_id"`
	Previous     float64 `json:"previous"`
	Current      float64 `json:"current"`
}

// RebalanceReport summarizes one rebalance pass.
type RebalanceReport struct {
	RanAt              time.Time           `json:"ran_at"`
	Overloaded         []string            `json:"overloaded"`
	ThrottledChanged   []ThrottleChange    `json:"throttled_changed"`
	PerformanceUpdated []PerformanceChange `json:"performance_updated"`
}

// SystemMetrics is the on-demand dashboard view computed from the
// workload store and rule tables.
type SystemMetrics struct {
	TotalAstrologers      int     `json:"total_astrologers"`
	AvailableAstrologers  int     `json:"available_astrologers"`
	OverloadedAstrologers int     `json:"overloaded_astrologers"`
	AverageWorkload       float64 `json:"average_workload"`
	ActiveRuleCount       int     `json:"active_rule_count"`
}
