package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"astroline/internal/model"
	mysqlModel "astroline/pkg/store/mysql/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateOverrideRule(t *testing.T) {
	tests := []struct {
		name    string
		rule    model.OverrideRule
		wantErr bool
	}{
		{
			name: "valid",
			rule: model.OverrideRule{OriginalAstrologerID: "ast-a", AssignedAstrologerID: "ast-b", Priority: 10},
		},
		{
			name:    "missing original",
			rule:    model.OverrideRule{AssignedAstrologerID: "ast-b"},
			wantErr: true,
		},
		{
			name:    "missing assigned",
			rule:    model.OverrideRule{OriginalAstrologerID: "ast-a"},
			wantErr: true,
		},
		{
			name:    "self redirect",
			rule:    model.OverrideRule{OriginalAstrologerID: "ast-a", AssignedAstrologerID: "ast-a"},
			wantErr: true,
		},
		{
			name:    "negative priority",
			rule:    model.OverrideRule{OriginalAstrologerID: "ast-a", AssignedAstrologerID: "ast-b", Priority: -1},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateOverrideRule(&tt.rule)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidRule)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateSmartRule(t *testing.T) {
	valid := model.SmartRule{
		Name:   "vedic boost",
		Weight: 0.4,
		Conditions: []model.RuleCondition{
			{Attribute: model.AttrSpecialization, Operator: model.OpEquals, Values: []string{"vedic"}},
		},
	}

	t.Run("valid", func(t *testing.T) {
		rule := valid
		assert.NoError(t, validateSmartRule(&rule))
	})

	t.Run("missing name", func(t *testing.T) {
		rule := valid
		rule.Name = ""
		assert.ErrorIs(t, validateSmartRule(&rule), ErrInvalidRule)
	})

	t.Run("zero weight", func(t *testing.T) {
		rule := valid
		rule.Weight = 0
		assert.ErrorIs(t, validateSmartRule(&rule), ErrInvalidRule)
	})

	t.Run("negative weight", func(t *testing.T) {
		rule := valid
		rule.Weight = -0.2
		assert.ErrorIs(t, validateSmartRule(&rule), ErrInvalidRule)
	})

	t.Run("invalid condition", func(t *testing.T) {
		rule := valid
		rule.Conditions = []model.RuleCondition{
			{Attribute: "mood", Operator: model.OpEquals, Values: []string{"good"}},
		}
		assert.ErrorIs(t, validateSmartRule(&rule), ErrInvalidRule)
	})
}

func TestCreateRejectsInvalidBeforeStorage(t *testing.T) {
	// A nil repository would panic on any storage access; validation must
	// reject bad input before that point.
	svc := NewRuleService(nil, nil)
	ctx := context.Background()

	_, err := svc.CreateOverrideRule(ctx, &model.OverrideRule{
		OriginalAstrologerID: "ast-a",
		AssignedAstrologerID: "ast-a",
	})
	assert.True(t, errors.Is(err, ErrInvalidRule))

	_, err = svc.CreateSmartRule(ctx, &model.SmartRule{Name: "", Weight: 1})
	assert.True(t, errors.Is(err, ErrInvalidRule))
}

func TestRuleConversionRoundTrip(t *testing.T) {
	now := time.Now()
	row := &mysqlModel.SmartRule{
		ID:   5,
		Name: "hindi premium",
		Conditions: mysqlModel.JSONConditions{
			{Attribute: "language", Operator: "eq", Values: []string{"hi"}},
			{Attribute: "price_tier", Operator: "in", Values: []string{"premium", "elite"}},
		},
		Weight:            0.25,
		IsActive:          true,
		SuccessRate:       62.5,
		TotalApplications: 48,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	domain := toDomainSmartRule(row)
	assert.Equal(t, int64(5), domain.ID)
	require.Len(t, domain.Conditions, 2)
	assert.Equal(t, model.AttrLanguage, domain.Conditions[0].Attribute)
	assert.Equal(t, model.OpIn, domain.Conditions[1].Operator)
	assert.Equal(t, 62.5, domain.SuccessRate)

	back := toStorageConditions(domain.Conditions)
	require.Len(t, back, 2)
	assert.Equal(t, "language", back[0].Attribute)
	assert.Equal(t, []string{"premium", "elite"}, back[1].Values)

	// Converted slices are copies; mutating one side must not leak.
	back[1].Values[0] = "mutated"
	assert.Equal(t, "premium", domain.Conditions[1].Values[0])
}

func TestOverrideRuleConversion(t *testing.T) {
	now := time.Now()
	row := &mysqlModel.OverrideRule{
		ID:                   9,
		OriginalAstrologerID: "ast-a",
		AssignedAstrologerID: "ast-b",
		Priority:             20,
		IsActive:             true,
		Reason:               "extended leave",
		CreatedAt:            now,
		UpdatedAt:            now,
	}

	domain := toDomainOverrideRule(row)
	assert.Equal(t, int64(9), domain.ID)
	assert.Equal(t, "ast-a", domain.OriginalAstrologerID)
	assert.Equal(t, "ast-b", domain.AssignedAstrologerID)
	assert.Equal(t, 20, domain.Priority)
	assert.Equal(t, "extended leave", domain.Reason)
}
