package routing

import (
	"context"
	"time"

	"astroline/internal/model"
	"astroline/pkg/logger"
	"astroline/pkg/workload"
)

// Rebalancer periodically recomputes performance scores and toggles the
// accepting-new throttle across the pool. It never changes consultation
// counters, only scoring inputs and throttle state, so the assignment
// path observes its effects without coordination.
type Rebalancer struct {
	cfg   *Config
	store *workload.Store
}

// NewRebalancer creates a rebalancer.
func NewRebalancer(cfg *Config, store *workload.Store) *Rebalancer {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &Rebalancer{cfg: cfg, store: store}
}

// Run executes one rebalance pass. The pass is a fixed point: all
// mutations derive deterministically from current state, so a second run
// with no intervening assignment or release activity reports the same
// overloaded set and empty change lists.
func (r *Rebalancer) Run(ctx context.Context) (*model.RebalanceReport, error) {
	now := time.Now()
	report := &model.RebalanceReport{
		RanAt:              now,
		Overloaded:         []string{},
		ThrottledChanged:   []model.ThrottleChange{},
		PerformanceUpdated: []model.PerformanceChange{},
	}

	for _, entry := range r.store.Entries() {
		id := entry.Workload.AstrologerID

		// Performance recompute from accumulated completion statistics.
		if entry.Stats.SampleCount > 0 {
			prev := entry.Workload.PerformanceScore
			score := performanceFrom(entry.Stats)
			if r.store.SetPerformance(id, score) {
				report.PerformanceUpdated = append(report.PerformanceUpdated, model.PerformanceChange{
					AstrologerID: id,
					Previous:     prev,
					Current:      score,
				})
			}
		}

		fraction := entry.Workload.WorkloadFraction()
		if fraction >= r.cfg.OverloadThreshold {
			report.Overloaded = append(report.Overloaded, id)
			if r.store.SetAcceptingNew(id, false) {
				report.ThrottledChanged = append(report.ThrottledChanged, model.ThrottleChange{
					AstrologerID:   id,
					IsAcceptingNew: false,
				})
				logger.InfoCtx(ctx, "astrologer %s throttled: workload %.0f%% >= %.0f%%",
					id, fraction*100, r.cfg.OverloadThreshold*100)
			}
		} else if fraction < r.cfg.ReleaseThreshold && !entry.Workload.OnBreak(now) {
			if r.store.SetAcceptingNew(id, true) {
				report.ThrottledChanged = append(report.ThrottledChanged, model.ThrottleChange{
					AstrologerID:   id,
					IsAcceptingNew: true,
				})
				logger.InfoCtx(ctx, "astrologer %s accepting again: workload %.0f%% < %.0f%%",
					id, fraction*100, r.cfg.ReleaseThreshold*100)
			}
		}
	}

	return report, nil
}

// performanceFrom maps accumulated completion statistics to the [0,1]
// performance score. Completion quality dominates, responsiveness damps:
// both terms are EMAs, so the score decays toward recent behavior. The
// exact blend is a policy choice; it is monotonic in both inputs and
// bounded by construction.
func performanceFrom(stats workload.PerformanceStats) float64 {
	responsiveness := 1 / (1 + stats.ResponseEMA/60)
	score := 0.6*stats.CompletionEMA + 0.4*responsiveness
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}
