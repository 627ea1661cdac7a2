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

func reserveN(t *testing.T, store *workload.Store, id string, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		require.NoError(t, store.Reserve(id))
	}
}

func TestRebalancer_ThrottlesOverloaded(t *testing.T) {
	store := workload.NewStore()
	store.Upsert(poolProfile("ast-1", 20))
	reserveN(t, store, "ast-1", 19) // 95% >= 90%

	r := NewRebalancer(nil, store)
	report, err := r.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"ast-1"}, report.Overloaded)
	require.Len(t, report.ThrottledChanged, 1)
	assert.False(t, report.ThrottledChanged[0].IsAcceptingNew)

	entry, _ := store.Get("ast-1")
	assert.False(t, entry.Workload.IsAcceptingNew)
}

func TestRebalancer_ThrottleAtExactThreshold(t *testing.T) {
	store := workload.NewStore()
	store.Upsert(poolProfile("ast-1", 10))
	reserveN(t, store, "ast-1", 9) // exactly 90%

	r := NewRebalancer(nil, store)
	report, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"ast-1"}, report.Overloaded)
}

func TestRebalancer_HysteresisBand(t *testing.T) {
	store := workload.NewStore()
	store.Upsert(poolProfile("ast-1", 10))
	reserveN(t, store, "ast-1", 7) // 70%, between release (60%) and overload (90%)
	store.SetAcceptingNew("ast-1", false)

	r := NewRebalancer(nil, store)
	report, err := r.Run(context.Background())
	require.NoError(t, err)

	// Inside the band nothing flips: a throttled astrologer stays
	// throttled until workload drops below the release threshold.
	assert.Empty(t, report.Overloaded)
	assert.Empty(t, report.ThrottledChanged)
	entry, _ := store.Get("ast-1")
	assert.False(t, entry.Workload.IsAcceptingNew)
}

func TestRebalancer_ReleasesThrottleBelowThreshold(t *testing.T) {
	store := workload.NewStore()
	store.Upsert(poolProfile("ast-1", 10))
	reserveN(t, store, "ast-1", 5) // 50% < 60%
	store.SetAcceptingNew("ast-1", false)

	r := NewRebalancer(nil, store)
	report, err := r.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, report.ThrottledChanged, 1)
	assert.True(t, report.ThrottledChanged[0].IsAcceptingNew)
	entry, _ := store.Get("ast-1")
	assert.True(t, entry.Workload.IsAcceptingNew)
}

func TestRebalancer_OnBreakStaysThrottled(t *testing.T) {
	store := workload.NewStore()
	store.Upsert(poolProfile("ast-1", 10))
	store.SetAcceptingNew("ast-1", false)
	until := time.Now().Add(time.Hour)
	store.SetBreak("ast-1", &until)

	r := NewRebalancer(nil, store)
	report, err := r.Run(context.Background())
	require.NoError(t, err)

	// Zero workload, but the break was requested explicitly; the
	// rebalancer must not undo it.
	assert.Empty(t, report.ThrottledChanged)
	entry, _ := store.Get("ast-1")
	assert.False(t, entry.Workload.IsAcceptingNew)
}

func TestRebalancer_RecomputesPerformance(t *testing.T) {
	store := workload.NewStore()
	store.Upsert(poolProfile("ast-1", 10))
	store.RecordCompletion("ast-1", model.OutcomeCompleted, 30)

	r := NewRebalancer(nil, store)
	report, err := r.Run(context.Background())
	require.NoError(t, err)

	// One completed sample at 30s: completion EMA 1.0, responsiveness
	// 1/(1+30/60) = 2/3.
	expected := 0.6*1.0 + 0.4*(2.0/3.0)
	require.Len(t, report.PerformanceUpdated, 1)
	change := report.PerformanceUpdated[0]
	assert.Equal(t, "ast-1", change.AstrologerID)
	assert.Equal(t, 0.5, change.Previous)
	assert.InDelta(t, expected, change.Current, 1e-9)

	entry, _ := store.Get("ast-1")
	assert.InDelta(t, expected, entry.Workload.PerformanceScore, 1e-9)
}

func TestRebalancer_NoSamplesLeavesPerformanceAlone(t *testing.T) {
	store := workload.NewStore()
	store.Upsert(poolProfile("ast-1", 10))

	r := NewRebalancer(nil, store)
	report, err := r.Run(context.Background())
	require.NoError(t, err)

	assert.Empty(t, report.PerformanceUpdated)
	entry, _ := store.Get("ast-1")
	assert.Equal(t, 0.5, entry.Workload.PerformanceScore)
}

func TestRebalancer_AbandonmentsDragScoreDown(t *testing.T) {
	store := workload.NewStore()
	store.Upsert(poolProfile("ast-good", 10))
	store.Upsert(poolProfile("ast-bad", 10))
	for i := 0; i < 5; i++ {
		store.RecordCompletion("ast-good", model.OutcomeCompleted, 20)
		store.RecordCompletion("ast-bad", model.OutcomeAbandoned, 20)
	}

	r := NewRebalancer(nil, store)
	_, err := r.Run(context.Background())
	require.NoError(t, err)

	good, _ := store.Get("ast-good")
	bad, _ := store.Get("ast-bad")
	assert.Greater(t, good.Workload.PerformanceScore, bad.Workload.PerformanceScore)
}

func TestRebalancer_RunIsFixedPoint(t *testing.T) {
	store := workload.NewStore()
	store.Upsert(poolProfile("ast-1", 10))
	store.Upsert(poolProfile("ast-2", 10))
	reserveN(t, store, "ast-1", 9)
	store.RecordCompletion("ast-2", model.OutcomeCompleted, 40)
	store.RecordCompletion("ast-2", model.OutcomeAbandoned, 90)

	r := NewRebalancer(nil, store)
	first, err := r.Run(context.Background())
	require.NoError(t, err)

	// With no assignment or completion activity in between, a second
	// pass changes nothing.
	second, err := r.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, first.Overloaded, second.Overloaded)
	assert.Empty(t, second.ThrottledChanged)
	assert.Empty(t, second.PerformanceUpdated)
}
