package routing

import (
	"context"
	"testing"
	"time"

	"astroline/internal/model"
	"astroline/pkg/workload"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRules is a static RuleSource for tests.
type fakeRules struct {
	overrides []model.OverrideRule
	smart     []model.SmartRule
}

func (f *fakeRules) ActiveOverrideRules() []model.OverrideRule { return f.overrides }
func (f *fakeRules) ActiveSmartRules() []model.SmartRule       { return f.smart }

func poolProfile(id string, maxConcurrent int) model.AstrologerProfile {
	return model.AstrologerProfile{
		ID:            id,
		IsOnline:      true,
		IsActive:      true,
		MaxConcurrent: maxConcurrent,
	}
}

func overrideRule(id int64, from, to string, priority int, updatedAt time.Time) model.OverrideRule {
	return model.OverrideRule{
		ID:                   id,
		OriginalAstrologerID: from,
		AssignedAstrologerID: to,
		Priority:             priority,
		IsActive:             true,
		UpdatedAt:            updatedAt,
	}
}

func TestResolveTarget_NoRule(t *testing.T) {
	store := workload.NewStore()
	r := NewResolver(nil, store, &fakeRules{})

	res := r.ResolveTarget(context.Background(), "ast-a")
	assert.Equal(t, "ast-a", res.FinalID)
	assert.Nil(t, res.AppliedOverrideRuleID)
	assert.Equal(t, 0, res.Hops)
	assert.False(t, res.CycleDetected)
}

func TestResolveTarget_SingleRedirect(t *testing.T) {
	store := workload.NewStore()
	rules := &fakeRules{overrides: []model.OverrideRule{
		overrideRule(1, "ast-a", "ast-b", 10, time.Now()),
	}}
	r := NewResolver(nil, store, rules)

	res := r.ResolveTarget(context.Background(), "ast-a")
	assert.Equal(t, "ast-b", res.FinalID)
	require.NotNil(t, res.AppliedOverrideRuleID)
	assert.Equal(t, int64(1), *res.AppliedOverrideRuleID)
	assert.Equal(t, 1, res.Hops)
}

func TestResolveTarget_ChainFollowsToEnd(t *testing.T) {
	store := workload.NewStore()
	rules := &fakeRules{overrides: []model.OverrideRule{
		overrideRule(1, "ast-a", "ast-b", 10, time.Now()),
		overrideRule(2, "ast-b", "ast-c", 10, time.Now()),
	}}
	r := NewResolver(nil, store, rules)

	res := r.ResolveTarget(context.Background(), "ast-a")
	assert.Equal(t, "ast-c", res.FinalID)
	require.NotNil(t, res.AppliedOverrideRuleID)
	assert.Equal(t, int64(2), *res.AppliedOverrideRuleID, "applied rule is the last hop taken")
	assert.Equal(t, 2, res.Hops)
}

func TestResolveTarget_CycleFromOriginResolvesToOrigin(t *testing.T) {
	store := workload.NewStore()
	rules := &fakeRules{overrides: []model.OverrideRule{
		overrideRule(1, "ast-a", "ast-b", 10, time.Now()),
		overrideRule(2, "ast-b", "ast-a", 10, time.Now()),
	}}
	r := NewResolver(nil, store, rules)

	res := r.ResolveTarget(context.Background(), "ast-a")
	assert.True(t, res.CycleDetected)
	assert.Equal(t, "ast-a", res.FinalID, "a walk starting inside the cycle resolves to its origin")
	assert.Nil(t, res.AppliedOverrideRuleID)
	assert.Equal(t, 0, res.Hops)
	assert.Equal(t, []string{"ast-a", "ast-b", "ast-a"}, res.CyclePath)
}

func TestResolveTarget_CycleEntryFromOutsideRewindsToPreCycleNode(t *testing.T) {
	store := workload.NewStore()
	rules := &fakeRules{overrides: []model.OverrideRule{
		overrideRule(1, "ast-c", "ast-a", 10, time.Now()),
		overrideRule(2, "ast-a", "ast-b", 10, time.Now()),
		overrideRule(3, "ast-b", "ast-a", 10, time.Now()),
	}}
	r := NewResolver(nil, store, rules)

	// The walk enters the a<->b cycle from ast-c; ast-b sits inside the
	// cycle region, so the fallback is ast-c itself.
	res := r.ResolveTarget(context.Background(), "ast-c")
	assert.True(t, res.CycleDetected)
	assert.Equal(t, "ast-c", res.FinalID)
	assert.Nil(t, res.AppliedOverrideRuleID)
	assert.Equal(t, 0, res.Hops)
	assert.Equal(t, []string{"ast-c", "ast-a", "ast-b", "ast-a"}, res.CyclePath)
}

func TestResolveTarget_CycleDeepEntryKeepsPreCycleRule(t *testing.T) {
	store := workload.NewStore()
	rules := &fakeRules{overrides: []model.OverrideRule{
		overrideRule(1, "ast-d", "ast-c", 10, time.Now()),
		overrideRule(2, "ast-c", "ast-a", 10, time.Now()),
		overrideRule(3, "ast-a", "ast-b", 10, time.Now()),
		overrideRule(4, "ast-b", "ast-a", 10, time.Now()),
	}}
	r := NewResolver(nil, store, rules)

	// d -> c is a clean hop; the cycle starts at ast-a. The rewind keeps
	// the pre-cycle portion of the walk intact.
	res := r.ResolveTarget(context.Background(), "ast-d")
	assert.True(t, res.CycleDetected)
	assert.Equal(t, "ast-c", res.FinalID)
	require.NotNil(t, res.AppliedOverrideRuleID)
	assert.Equal(t, int64(1), *res.AppliedOverrideRuleID)
	assert.Equal(t, 1, res.Hops)
}

func TestResolveTarget_SelfCycle(t *testing.T) {
	store := workload.NewStore()
	rules := &fakeRules{overrides: []model.OverrideRule{
		overrideRule(1, "ast-a", "ast-a", 10, time.Now()),
	}}
	r := NewResolver(nil, store, rules)

	res := r.ResolveTarget(context.Background(), "ast-a")
	assert.True(t, res.CycleDetected)
	assert.Equal(t, "ast-a", res.FinalID)
}

func TestResolveTarget_HopLimitStopsWalk(t *testing.T) {
	store := workload.NewStore()
	// Chain of 8 redirects; the default limit is 5.
	overrides := []model.OverrideRule{
		overrideRule(1, "ast-0", "ast-1", 10, time.Now()),
		overrideRule(2, "ast-1", "ast-2", 10, time.Now()),
		overrideRule(3, "ast-2", "ast-3", 10, time.Now()),
		overrideRule(4, "ast-3", "ast-4", 10, time.Now()),
		overrideRule(5, "ast-4", "ast-5", 10, time.Now()),
		overrideRule(6, "ast-5", "ast-6", 10, time.Now()),
		overrideRule(7, "ast-6", "ast-7", 10, time.Now()),
		overrideRule(8, "ast-7", "ast-8", 10, time.Now()),
	}
	r := NewResolver(nil, store, &fakeRules{overrides: overrides})

	res := r.ResolveTarget(context.Background(), "ast-0")
	assert.Equal(t, 5, res.Hops)
	assert.Equal(t, "ast-5", res.FinalID)
	assert.False(t, res.CycleDetected)
}

func TestResolveTarget_HighestPriorityWins(t *testing.T) {
	store := workload.NewStore()
	now := time.Now()
	rules := &fakeRules{overrides: []model.OverrideRule{
		overrideRule(1, "ast-a", "ast-b", 5, now),
		overrideRule(2, "ast-a", "ast-c", 20, now.Add(-time.Hour)),
	}}
	r := NewResolver(nil, store, rules)

	res := r.ResolveTarget(context.Background(), "ast-a")
	assert.Equal(t, "ast-c", res.FinalID)
}

func TestResolveTarget_PriorityTieBrokenByRecency(t *testing.T) {
	store := workload.NewStore()
	now := time.Now()
	rules := &fakeRules{overrides: []model.OverrideRule{
		overrideRule(1, "ast-a", "ast-b", 10, now.Add(-time.Hour)),
		overrideRule(2, "ast-a", "ast-c", 10, now),
	}}
	r := NewResolver(nil, store, rules)

	res := r.ResolveTarget(context.Background(), "ast-a")
	assert.Equal(t, "ast-c", res.FinalID)
}

func TestListCandidates_FiltersUnavailable(t *testing.T) {
	store := workload.NewStore()
	store.Upsert(poolProfile("ast-ok", 5))

	offline := poolProfile("ast-offline", 5)
	offline.IsOnline = false
	store.Upsert(offline)

	store.Upsert(poolProfile("ast-throttled", 5))
	store.SetAcceptingNew("ast-throttled", false)

	store.Upsert(poolProfile("ast-break", 5))
	until := time.Now().Add(time.Hour)
	store.SetBreak("ast-break", &until)

	store.Upsert(poolProfile("ast-full", 1))
	require.NoError(t, store.Reserve("ast-full"))

	r := NewResolver(nil, store, &fakeRules{})
	candidates := r.ListCandidates(context.Background(), &model.ConsultationRequest{})

	require.Len(t, candidates, 1)
	assert.Equal(t, "ast-ok", candidates[0].AstrologerID)
}

func TestListCandidates_ElapsedBreakIsAvailable(t *testing.T) {
	store := workload.NewStore()
	store.Upsert(poolProfile("ast-a", 5))
	past := time.Now().Add(-time.Minute)
	store.SetBreak("ast-a", &past)

	r := NewResolver(nil, store, &fakeRules{})
	candidates := r.ListCandidates(context.Background(), &model.ConsultationRequest{})
	require.Len(t, candidates, 1)
}

func TestListCandidates_SpecializationAndLanguageFilter(t *testing.T) {
	store := workload.NewStore()

	vedic := poolProfile("ast-vedic", 5)
	vedic.Specializations = []string{"vedic"}
	vedic.Languages = []string{"hi", "en"}
	store.Upsert(vedic)

	tarot := poolProfile("ast-tarot", 5)
	tarot.Specializations = []string{"tarot"}
	tarot.Languages = []string{"en"}
	store.Upsert(tarot)

	r := NewResolver(nil, store, &fakeRules{})
	candidates := r.ListCandidates(context.Background(), &model.ConsultationRequest{
		Specialization: "vedic",
		Language:       "hi",
	})

	require.Len(t, candidates, 1)
	assert.Equal(t, "ast-vedic", candidates[0].AstrologerID)
}

func TestListCandidates_RedirectSubstitution(t *testing.T) {
	store := workload.NewStore()
	store.Upsert(poolProfile("ast-a", 5))
	store.Upsert(poolProfile("ast-b", 5))
	rules := &fakeRules{overrides: []model.OverrideRule{
		overrideRule(7, "ast-a", "ast-b", 10, time.Now()),
	}}
	r := NewResolver(nil, store, rules)

	candidates := r.ListCandidates(context.Background(), &model.ConsultationRequest{})

	// ast-a resolves to ast-b, and ast-b is already in the pool: one
	// candidate, deduplicated by handler.
	require.Len(t, candidates, 1)
	assert.Equal(t, "ast-b", candidates[0].AstrologerID)
}

func TestListCandidates_DedupPrefersRuleCarrier(t *testing.T) {
	store := workload.NewStore()
	store.Upsert(poolProfile("ast-a", 5))
	store.Upsert(poolProfile("ast-z", 5))
	rules := &fakeRules{overrides: []model.OverrideRule{
		overrideRule(7, "ast-z", "ast-a", 10, time.Now()),
	}}
	r := NewResolver(nil, store, rules)

	// ast-a resolves to itself first, then ast-z redirects onto it. The
	// surviving candidate must carry the override rule for the audit row.
	candidates := r.ListCandidates(context.Background(), &model.ConsultationRequest{})
	require.Len(t, candidates, 1)
	assert.Equal(t, "ast-a", candidates[0].AstrologerID)
	assert.Equal(t, "ast-z", candidates[0].DisplayID)
	require.NotNil(t, candidates[0].AppliedOverrideRuleID)
	assert.Equal(t, int64(7), *candidates[0].AppliedOverrideRuleID)
}

func TestListCandidates_RedirectTargetUnknownSkipped(t *testing.T) {
	store := workload.NewStore()
	store.Upsert(poolProfile("ast-a", 5))
	rules := &fakeRules{overrides: []model.OverrideRule{
		overrideRule(7, "ast-a", "ast-ghost", 10, time.Now()),
	}}
	r := NewResolver(nil, store, rules)

	candidates := r.ListCandidates(context.Background(), &model.ConsultationRequest{})
	assert.Empty(t, candidates)
}

func TestListCandidates_OverrideIntoOfflineTargetExcluded(t *testing.T) {
	store := workload.NewStore()
	store.Upsert(poolProfile("ast-a", 5))
	offline := poolProfile("ast-b", 5)
	offline.IsOnline = false
	store.Upsert(offline)

	rules := &fakeRules{overrides: []model.OverrideRule{
		overrideRule(7, "ast-a", "ast-b", 10, time.Now()),
	}}
	r := NewResolver(nil, store, rules)

	// The redirect target is offline, and ast-a itself is shadowed by
	// the rule, so nothing is admissible.
	candidates := r.ListCandidates(context.Background(), &model.ConsultationRequest{})
	assert.Empty(t, candidates)
}
