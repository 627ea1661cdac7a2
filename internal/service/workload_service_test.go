package service

import (
	"context"
	"testing"
	"time"

	"astroline/internal/model"
	"astroline/pkg/routing"
	"astroline/pkg/workload"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type emptyRules struct{}

func (emptyRules) ActiveOverrideRules() []model.OverrideRule { return nil }
func (emptyRules) ActiveSmartRules() []model.SmartRule       { return nil }

func onlineProfile(id string) model.AstrologerProfile {
	return model.AstrologerProfile{
		ID:            id,
		IsOnline:      true,
		IsActive:      true,
		MaxConcurrent: 5,
	}
}

func TestSetBreak_RejectsPastUntil(t *testing.T) {
	store := workload.NewStore()
	store.Upsert(onlineProfile("ast-1"))
	svc := NewWorkloadService(store, nil, nil)

	past := time.Now().Add(-time.Minute)
	err := svc.SetBreak(context.Background(), "ast-1", &past)
	assert.Error(t, err)
}

func TestSetBreak_UnknownAstrologer(t *testing.T) {
	svc := NewWorkloadService(workload.NewStore(), nil, nil)

	until := time.Now().Add(time.Hour)
	err := svc.SetBreak(context.Background(), "ghost", &until)
	assert.Error(t, err)
}

func TestSetBreak_LeavesThrottleAlone(t *testing.T) {
	store := workload.NewStore()
	store.Upsert(onlineProfile("ast-1"))
	svc := NewWorkloadService(store, nil, nil)

	until := time.Now().Add(time.Hour)
	require.NoError(t, svc.SetBreak(context.Background(), "ast-1", &until))

	// The break window alone blocks assignment; the accepting-new flag
	// belongs to rebalance and operator throttling.
	entry, ok := store.Get("ast-1")
	require.True(t, ok)
	assert.True(t, entry.Workload.IsAcceptingNew)
	assert.True(t, entry.Workload.OnBreak(time.Now()))
}

func TestSetBreak_ClearRestoresAssignability(t *testing.T) {
	store := workload.NewStore()
	store.Upsert(onlineProfile("ast-1"))
	svc := NewWorkloadService(store, nil, nil)
	engine := routing.NewEngine(nil, store, emptyRules{})
	ctx := context.Background()

	until := time.Now().Add(time.Hour)
	require.NoError(t, svc.SetBreak(ctx, "ast-1", &until))
	_, err := engine.Assign(ctx, &model.ConsultationRequest{})
	assert.ErrorIs(t, err, routing.ErrNoAvailableAstrologer)

	require.NoError(t, svc.SetBreak(ctx, "ast-1", nil))
	decision, err := engine.Assign(ctx, &model.ConsultationRequest{})
	require.NoError(t, err)
	assert.Equal(t, "ast-1", decision.HandlingAstrologerID)
}

func TestSetBreak_ElapsedBreakRestoresAssignability(t *testing.T) {
	store := workload.NewStore()
	store.Upsert(onlineProfile("ast-1"))
	svc := NewWorkloadService(store, nil, nil)
	engine := routing.NewEngine(nil, store, emptyRules{})
	ctx := context.Background()

	until := time.Now().Add(20 * time.Millisecond)
	require.NoError(t, svc.SetBreak(ctx, "ast-1", &until))

	// Nothing clears the window; admissibility returns on its own once
	// the break end passes.
	time.Sleep(50 * time.Millisecond)

	decision, err := engine.Assign(ctx, &model.ConsultationRequest{})
	require.NoError(t, err)
	assert.Equal(t, "ast-1", decision.HandlingAstrologerID)
}
