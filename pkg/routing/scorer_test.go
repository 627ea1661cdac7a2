package routing

import (
	"testing"

	"astroline/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func candidateWith(id string, current, max int, performance, avgResponse float64) Candidate {
	return Candidate{
		AstrologerID: id,
		DisplayID:    id,
		Workload: model.AstrologerWorkload{
			AstrologerID:           id,
			MaxConcurrent:          max,
			CurrentConsultations:   current,
			PerformanceScore:       performance,
			AverageResponseSeconds: avgResponse,
		},
	}
}

func TestScorer_BaseFormula(t *testing.T) {
	s := NewScorer(&fakeRules{})

	// 2/10 load, 0.8 performance, 60s average response.
	ranked := s.Rank([]Candidate{candidateWith("ast-1", 2, 10, 0.8, 60)}, &model.ConsultationRequest{})
	require.Len(t, ranked, 1)

	expected := 0.5*(1-0.2) + 0.3*0.8 + 0.2*(1/(1+60.0/60))
	assert.InDelta(t, expected, ranked[0].Score, 1e-9)
	assert.Empty(t, ranked[0].MatchedRuleIDs)
}

func TestScorer_ZeroResponseGetsFullResponsivenessTerm(t *testing.T) {
	s := NewScorer(&fakeRules{})

	ranked := s.Rank([]Candidate{candidateWith("ast-1", 0, 10, 0, 0)}, &model.ConsultationRequest{})
	require.Len(t, ranked, 1)
	assert.InDelta(t, 0.5+0.2, ranked[0].Score, 1e-9)
}

func TestScorer_HeadroomDominates(t *testing.T) {
	s := NewScorer(&fakeRules{})

	// Same performance and responsiveness; the lightly loaded astrologer
	// must rank first even with a smaller pool.
	ranked := s.Rank([]Candidate{
		candidateWith("ast-busy", 5, 6, 0.7, 30),
		candidateWith("ast-idle", 1, 10, 0.7, 30),
	}, &model.ConsultationRequest{})

	require.Len(t, ranked, 2)
	assert.Equal(t, "ast-idle", ranked[0].AstrologerID)
	assert.Greater(t, ranked[0].Score, ranked[1].Score)
}

func TestScorer_SmartRuleBoostsAndRecordsMatch(t *testing.T) {
	rules := &fakeRules{smart: []model.SmartRule{
		{
			ID:       42,
			Name:     "vedic specialists",
			IsActive: true,
			Weight:   0.4,
			// 75% historical success.
			SuccessRate: 75,
			Conditions: []model.RuleCondition{
				{Attribute: model.AttrSpecialization, Operator: model.OpEquals, Values: []string{"vedic"}},
			},
		},
	}}
	s := NewScorer(rules)

	req := &model.ConsultationRequest{Specialization: "vedic"}
	ranked := s.Rank([]Candidate{candidateWith("ast-1", 0, 10, 0.5, 0)}, req)
	require.Len(t, ranked, 1)

	base := 0.5 + 0.3*0.5 + 0.2
	assert.InDelta(t, base+0.4*0.75, ranked[0].Score, 1e-9)
	assert.Equal(t, []int64{42}, ranked[0].MatchedRuleIDs)
}

func TestScorer_ZeroContributionRuleNotRecorded(t *testing.T) {
	rules := &fakeRules{smart: []model.SmartRule{
		{ID: 1, Name: "new rule", IsActive: true, Weight: 0.5, SuccessRate: 0},
	}}
	s := NewScorer(rules)

	ranked := s.Rank([]Candidate{candidateWith("ast-1", 0, 10, 0.5, 0)}, &model.ConsultationRequest{})
	require.Len(t, ranked, 1)

	// A rule with zero success rate contributes nothing and must not be
	// credited on release.
	assert.Empty(t, ranked[0].MatchedRuleIDs)
	assert.InDelta(t, 0.5+0.3*0.5+0.2, ranked[0].Score, 1e-9)
}

func TestScorer_InactiveRuleIgnored(t *testing.T) {
	rules := &fakeRules{smart: []model.SmartRule{
		{ID: 1, Name: "disabled", IsActive: false, Weight: 1, SuccessRate: 100},
	}}
	s := NewScorer(rules)

	ranked := s.Rank([]Candidate{candidateWith("ast-1", 0, 10, 0.5, 0)}, &model.ConsultationRequest{})
	require.Len(t, ranked, 1)
	assert.Empty(t, ranked[0].MatchedRuleIDs)
}

func TestScorer_NonMatchingRuleIgnored(t *testing.T) {
	rules := &fakeRules{smart: []model.SmartRule{
		{
			ID: 1, Name: "hindi only", IsActive: true, Weight: 1, SuccessRate: 100,
			Conditions: []model.RuleCondition{
				{Attribute: model.AttrLanguage, Operator: model.OpEquals, Values: []string{"hi"}},
			},
		},
	}}
	s := NewScorer(rules)

	ranked := s.Rank([]Candidate{candidateWith("ast-1", 0, 10, 0.5, 0)}, &model.ConsultationRequest{Language: "en"})
	require.Len(t, ranked, 1)
	assert.Empty(t, ranked[0].MatchedRuleIDs)
}

func TestScorer_AstrologerScopedRuleOnlyBoostsItsTarget(t *testing.T) {
	rules := &fakeRules{smart: []model.SmartRule{
		{
			ID: 9, Name: "promote ast-b", IsActive: true, Weight: 0.5, SuccessRate: 100,
			Conditions: []model.RuleCondition{
				{Attribute: model.AttrAstrologerID, Operator: model.OpEquals, Values: []string{"ast-b"}},
			},
		},
	}}
	s := NewScorer(rules)

	ranked := s.Rank([]Candidate{
		candidateWith("ast-a", 0, 10, 0.5, 0),
		candidateWith("ast-b", 0, 10, 0.5, 0),
	}, &model.ConsultationRequest{})

	require.Len(t, ranked, 2)
	assert.Equal(t, "ast-b", ranked[0].AstrologerID)
	assert.Equal(t, []int64{9}, ranked[0].MatchedRuleIDs)
	assert.Empty(t, ranked[1].MatchedRuleIDs)
}

func TestScorer_TieBreaks(t *testing.T) {
	s := NewScorer(&fakeRules{})

	t.Run("fewer consultations first", func(t *testing.T) {
		// Equal scores built from different components.
		a := candidateWith("ast-a", 4, 8, 0.5, 0)
		b := candidateWith("ast-b", 2, 4, 0.5, 0)
		ranked := s.Rank([]Candidate{a, b}, &model.ConsultationRequest{})
		require.Len(t, ranked, 2)
		assert.InDelta(t, ranked[0].Score, ranked[1].Score, 1e-9)
		assert.Equal(t, "ast-b", ranked[0].AstrologerID)
	})

	t.Run("lowest id last resort", func(t *testing.T) {
		a := candidateWith("ast-b", 1, 10, 0.5, 30)
		b := candidateWith("ast-a", 1, 10, 0.5, 30)
		ranked := s.Rank([]Candidate{a, b}, &model.ConsultationRequest{})
		require.Len(t, ranked, 2)
		assert.Equal(t, "ast-a", ranked[0].AstrologerID)
	})
}

func TestScorer_DeterministicOrdering(t *testing.T) {
	s := NewScorer(&fakeRules{})
	candidates := []Candidate{
		candidateWith("ast-c", 3, 10, 0.6, 45),
		candidateWith("ast-a", 1, 10, 0.4, 20),
		candidateWith("ast-b", 2, 10, 0.9, 90),
	}

	first := s.Rank(candidates, &model.ConsultationRequest{})
	for i := 0; i < 5; i++ {
		again := s.Rank(candidates, &model.ConsultationRequest{})
		require.Equal(t, len(first), len(again))
		for j := range first {
			assert.Equal(t, first[j].AstrologerID, again[j].AstrologerID)
		}
	}
}
