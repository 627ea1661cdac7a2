package routing

import (
	"fmt"

	"astroline/internal/model"
)

// MatchesRequest evaluates a smart rule's conditions against a request and
// a candidate handling astrologer. All conditions must hold. A rule with
// no conditions matches everything.
func MatchesRequest(rule *model.SmartRule, req *model.ConsultationRequest, astrologerID string) bool {
	for i := range rule.Conditions {
		if !matchCondition(&rule.Conditions[i], req, astrologerID) {
			return false
		}
	}
	return true
}

func matchCondition(cond *model.RuleCondition, req *model.ConsultationRequest, astrologerID string) bool {
	var actual string
	switch cond.Attribute {
	case model.AttrSpecialization:
		actual = req.Specialization
	case model.AttrLanguage:
		actual = req.Language
	case model.AttrPriceTier:
		actual = req.PriceTier
	case model.AttrAstrologerID:
		actual = astrologerID
	default:
		// Unknown attributes never match; they are rejected at write
		// time, so hitting one here means a stale cache entry.
		return false
	}

	switch cond.Operator {
	case model.OpEquals:
		return len(cond.Values) == 1 && actual == cond.Values[0]
	case model.OpNotEquals:
		return len(cond.Values) == 1 && actual != cond.Values[0]
	case model.OpIn:
		for _, v := range cond.Values {
			if actual == v {
				return true
			}
		}
		return false
	default:
		return false
	}
}

// ValidateConditions performs the write-time checks the operator console
// boundary applies before a smart rule is persisted, so the routing path
// never evaluates malformed predicates.
func ValidateConditions(conds []model.RuleCondition) error {
	for i, cond := range conds {
		switch cond.Attribute {
		case model.AttrSpecialization, model.AttrLanguage, model.AttrPriceTier, model.AttrAstrologerID:
		default:
			return fmt.Errorf("condition %d: unknown attribute %q", i, cond.Attribute)
		}
		switch cond.Operator {
		case model.OpEquals, model.OpNotEquals:
			if len(cond.Values) != 1 {
				return fmt.Errorf("condition %d: operator %q requires exactly one value", i, cond.Operator)
			}
		case model.OpIn:
			if len(cond.Values) == 0 {
				return fmt.Errorf("condition %d: operator %q requires at least one value", i, cond.Operator)
			}
		default:
			return fmt.Errorf("condition %d: unknown operator %q", i, cond.Operator)
		}
	}
	return nil
}
