package model

import "time"

// OverrideRule MySQL model for override_rules table
type OverrideRule struct {
	ID                   int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	OriginalAstrologerID string    `gorm:"column:original_astrologer_id;type:varchar(64);not null;index:idx_original" json:"original_astrologer_id"`
	AssignedAstrologerID string    `gorm:"column:assigned_astrologer_id;type:varchar(64);not null" json:"assigned_astrologer_id"`
	Priority             int       `gorm:"column:priority;type:int;not null;default:0" json:"priority"`
	IsActive             bool      `gorm:"column:is_active;not null;default:true;index:idx_active" json:"is_active"`
	Reason               string    `gorm:"column:reason;type:text" json:"reason"`
	CreatedAt            time.Time `gorm:"column:created_at;not null" json:"created_at"`
	UpdatedAt            time.Time `gorm:"column:updated_at;not null" json:"updated_at"`
}

// TableName specifies the table name for OverrideRule
func (OverrideRule) TableName() string {
	return "override_rules"
}
