package routing

import (
	"sort"

	"astroline/internal/model"
)

// Scorer ranks candidates by workload headroom, historical performance,
// responsiveness and matching smart rules.
type Scorer struct {
	rules RuleSource
}

// NewScorer creates a scorer.
func NewScorer(rules RuleSource) *Scorer {
	return &Scorer{rules: rules}
}

// Rank scores every candidate and orders them by descending score.
// Ties break deterministically: fewer current consultations, then higher
// performance, then lowest astrologer id, so identical inputs always
// produce identical rankings.
func (s *Scorer) Rank(candidates []Candidate, req *model.ConsultationRequest) []ScoredCandidate {
	smartRules := s.rules.ActiveSmartRules()

	scored := make([]ScoredCandidate, 0, len(candidates))
	for _, c := range candidates {
		score, matched := s.score(&c, req, smartRules)
		scored = append(scored, ScoredCandidate{
			Candidate:      c,
			Score:          score,
			MatchedRuleIDs: matched,
		})
	}

	sort.Slice(scored, func(i, j int) bool {
		a, b := &scored[i], &scored[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.Workload.CurrentConsultations != b.Workload.CurrentConsultations {
			return a.Workload.CurrentConsultations < b.Workload.CurrentConsultations
		}
		if a.Workload.PerformanceScore != b.Workload.PerformanceScore {
			return a.Workload.PerformanceScore > b.Workload.PerformanceScore
		}
		return a.AstrologerID < b.AstrologerID
	})

	return scored
}

// score computes the fixed formula:
//
//	0.5*(1-workloadFraction) + 0.3*performance + 0.2*(1/(1+avgResponse/60))
//	+ sum of weight*(successRate/100) over matching active smart rules
//
// and returns the ids of the rules that contributed, for audit and for
// later success-rate updates.
func (s *Scorer) score(c *Candidate, req *model.ConsultationRequest, smartRules []model.SmartRule) (float64, []int64) {
	w := &c.Workload

	score := headroomWeight * (1 - w.WorkloadFraction())
	score += performanceWeight * w.PerformanceScore
	score += responseWeight * (1 / (1 + w.AverageResponseSeconds/60))

	var matched []int64
	for i := range smartRules {
		rule := &smartRules[i]
		if !rule.IsActive || rule.Weight <= 0 {
			continue
		}
		if !MatchesRequest(rule, req, c.AstrologerID) {
			continue
		}
		contribution := rule.Weight * (rule.SuccessRate / 100)
		if contribution == 0 {
			continue
		}
		score += contribution
		matched = append(matched, rule.ID)
	}

	return score, matched
}
