package model

import "time"

// OverrideRule is an operator-authored transparent redirect: requests for
// the original astrologer are silently handled by the assigned one.
type OverrideRule struct {
	ID                   int64     `json:"id"`
	OriginalAstrologerID string    `json:"original_astrologer_id"`
	AssignedAstrologerID string    `json:"assigned_astrologer_id"`
	Priority             int       `json:"priority"` // higher wins
	IsActive             bool      `json:"is_active"`
	Reason               string    `json:"reason,omitempty"` // informational only
	CreatedAt            time.Time `json:"created_at"`
	UpdatedAt            time.Time `json:"updated_at"`
}

// ConditionOperator is the comparison applied by a smart-rule condition.
type ConditionOperator string

const (
	OpEquals    ConditionOperator = "eq"
	OpNotEquals ConditionOperator = "ne"
	OpIn        ConditionOperator = "in"
)

// ConditionAttribute names a request/candidate attribute a condition can match.
type ConditionAttribute string

const (
	AttrSpecialization ConditionAttribute = "specialization"
	AttrLanguage       ConditionAttribute = "language"
	AttrPriceTier      ConditionAttribute = "price_tier"
	AttrAstrologerID   ConditionAttribute = "astrologer_id"
)

// RuleCondition is one clause of a smart rule's predicate. Conditions are
// data, not code: a pure matcher evaluates them against the request.
type RuleCondition struct {
	Attribute ConditionAttribute `json:"attribute"`
	Operator  ConditionOperator  `json:"operator"`
	Values    []string           `json:"values"`
}

// SmartRule is a weighted scoring contributor with tracked success history.
// All conditions must match for the rule to contribute.
type SmartRule struct {
	ID                int64           `json:"id"`
	Name              string          `json:"name"`
	Conditions        []RuleCondition `json:"conditions"`
	Weight            float64         `json:"weight"` // > 0
	IsActive          bool            `json:"is_active"`
	SuccessRate       float64         `json:"success_rate"` // [0,100]
	TotalApplications int64           `json:"total_applications"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}
