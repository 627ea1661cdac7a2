package model

import "time"

// SmartRule MySQL model for smart_rules table
type SmartRule struct {
	ID                int64          `gorm:"primaryKey;autoIncrement" json:"id"`
	Name              string         `gorm:"column:name;type:varchar(255);not null" json:"name"`
	Conditions        JSONConditions `gorm:"column:conditions;type:json" json:"conditions"`
	Weight            float64        `gorm:"column:weight;type:double;not null" json:"weight"`
	IsActive          bool           `gorm:"column:is_active;not null;default:true;index:idx_active" json:"is_active"`
	SuccessRate       float64        `gorm:"column:success_rate;type:double;not null;default:0" json:"success_rate"`
	TotalApplications int64          `gorm:"column:total_applications;type:bigint;not null;default:0" json:"total_applications"`
	CreatedAt         time.Time      `gorm:"column:created_at;not null" json:"created_at"`
	UpdatedAt         time.Time      `gorm:"column:updated_at;not null" json:"updated_at"`
}

// TableName specifies the table name for SmartRule
func (SmartRule) TableName() string {
	return "smart_rules"
}
