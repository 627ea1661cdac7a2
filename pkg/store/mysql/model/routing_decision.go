package model

import "time"

// RoutingDecision MySQL model for routing_decisions table (write-once
// audit log of assignments)
type RoutingDecision struct {
	ID                    int64          `gorm:"primaryKey;autoIncrement" json:"id"`
	RequestID             string         `gorm:"column:request_id;type:varchar(64);not null;uniqueIndex:idx_request_id" json:"request_id"`
	DisplayAstrologerID   string         `gorm:"column:display_astrologer_id;type:varchar(64);not null" json:"display_astrologer_id"`
	HandlingAstrologerID  string         `gorm:"column:handling_astrologer_id;type:varchar(64);not null;index:idx_handling" json:"handling_astrologer_id"`
	AppliedOverrideRuleID *int64         `gorm:"column:applied_override_rule_id" json:"applied_override_rule_id,omitempty"`
	MatchedSmartRuleIDs   JSONInt64Array `gorm:"column:matched_smart_rule_ids;type:json" json:"matched_smart_rule_ids"`
	Score                 float64        `gorm:"column:score;type:double;not null" json:"score"`
	DecidedAt             time.Time      `gorm:"column:decided_at;type:datetime(3);not null;index:idx_decided_at" json:"decided_at"`
}

// TableName specifies the table name for RoutingDecision
func (RoutingDecision) TableName() string {
	return "routing_decisions"
}
