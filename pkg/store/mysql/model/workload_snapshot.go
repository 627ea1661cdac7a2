package model

import "time"

// WorkloadSnapshot MySQL model for workload_snapshots table. One row per
// astrologer per rebalance pass, for dashboards and capacity planning.
type WorkloadSnapshot struct {
	ID                     int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	AstrologerID           string    `gorm:"column:astrologer_id;type:varchar(64);not null;index:idx_astrologer_time,priority:1" json:"astrologer_id"`
	MaxConcurrent          int       `gorm:"column:max_concurrent;type:int;not null" json:"max_concurrent"`
	CurrentConsultations   int       `gorm:"column:current_consultations;type:int;not null" json:"current_consultations"`
	PerformanceScore       float64   `gorm:"column:performance_score;type:double;not null" json:"performance_score"`
	AverageResponseSeconds float64   `gorm:"column:average_response_seconds;type:double;not null" json:"average_response_seconds"`
	IsAcceptingNew         bool      `gorm:"column:is_accepting_new;not null" json:"is_accepting_new"`
	RecordedAt             time.Time `gorm:"column:recorded_at;type:datetime(3);not null;index:idx_astrologer_time,priority:2" json:"recorded_at"`
}

// TableName specifies the table name for WorkloadSnapshot
func (WorkloadSnapshot) TableName() string {
	return "workload_snapshots"
}

// RebalanceEvent MySQL model for rebalance_events table. One row per
// rebalance pass summarizing what changed.
type RebalanceEvent struct {
	ID                 int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	RanAt              time.Time       `gorm:"column:ran_at;type:datetime(3);not null;index:idx_ran_at" json:"ran_at"`
	Overloaded         JSONStringArray `gorm:"column:overloaded;type:json" json:"overloaded"`
	ThrottledCount     int             `gorm:"column:throttled_count;type:int;not null;default:0" json:"throttled_count"`
	PerformanceUpdates int             `gorm:"column:performance_updates;type:int;not null;default:0" json:"performance_updates"`
}

// TableName specifies the table name for RebalanceEvent
func (RebalanceEvent) TableName() string {
	return "rebalance_events"
}
