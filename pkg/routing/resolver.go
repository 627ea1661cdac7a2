package routing

import (
	"context"
	"strings"
	"time"

	"astroline/internal/model"
	"astroline/pkg/logger"
	"astroline/pkg/workload"
)

// Resolver applies override redirection and availability filtering to
// produce the admissible candidate list for a request. It works purely
// over already-loaded state: the workload store and the rule cache.
type Resolver struct {
	cfg   *Config
	store *workload.Store
	rules RuleSource
}

// NewResolver creates a resolver.
func NewResolver(cfg *Config, store *workload.Store, rules RuleSource) *Resolver {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &Resolver{cfg: cfg, store: store, rules: rules}
}

// ResolveTarget walks the active override chain from the original
// astrologer. The walk is a bounded iteration with a visited set, never
// recursion: redirect graphs are operator-edited and may contain cycles.
// On a cycle the walk rewinds to the last node before the cycle begins
// and flags the event, so requests are never routed into the cycle
// region; a walk that starts inside the cycle resolves to its origin.
func (r *Resolver) ResolveTarget(ctx context.Context, originalID string) Resolution {
	byOriginal := indexOverrides(r.rules.ActiveOverrideRules())

	res := Resolution{FinalID: originalID}
	visited := map[string]bool{originalID: true}
	path := []string{originalID}
	// appliedAt[i] is the rule that produced path[i]; nil for the origin.
	appliedAt := []*int64{nil}
	current := originalID

	for hop := 0; hop < r.cfg.MaxRedirectHops; hop++ {
		rule, ok := byOriginal[current]
		if !ok {
			// No active rule at this node: it is final.
			return res
		}
		next := rule.AssignedAstrologerID
		if visited[next] {
			res.CycleDetected = true
			res.CyclePath = append(path, next)

			cycleStart := 0
			for i, id := range path {
				if id == next {
					cycleStart = i
					break
				}
			}
			last := 0
			if cycleStart > 0 {
				last = cycleStart - 1
			}
			res.FinalID = path[last]
			res.AppliedOverrideRuleID = appliedAt[last]
			res.Hops = last

			logger.WarnCtx(ctx, "override cycle detected, falling back to %s (path: %s)",
				res.FinalID, strings.Join(res.CyclePath, " -> "))
			return res
		}
		visited[next] = true
		path = append(path, next)
		ruleID := rule.ID
		appliedAt = append(appliedAt, &ruleID)
		res.FinalID = next
		res.AppliedOverrideRuleID = &ruleID
		res.Hops++
		current = next
	}

	return res
}

// ListCandidates builds the ordered pool of admissible handling
// astrologers: every directory entry matching the request's
// specialization and language, with redirect targets substituted for
// their handling astrologer, filtered down to those actually able to
// take a new consultation right now.
func (r *Resolver) ListCandidates(ctx context.Context, req *model.ConsultationRequest) []Candidate {
	now := time.Now()
	entries := r.store.Entries()

	byID := make(map[string]workload.Entry, len(entries))
	for _, e := range entries {
		byID[e.Profile.ID] = e
	}

	candidates := make([]Candidate, 0, len(entries))
	seen := make(map[string]int, len(entries))

	for _, e := range entries {
		if !e.Profile.HasSpecialization(req.Specialization) || !e.Profile.SpeaksLanguage(req.Language) {
			continue
		}

		res := r.ResolveTarget(ctx, e.Profile.ID)
		handler, ok := byID[res.FinalID]
		if !ok {
			// Redirect points at an astrologer the directory does not
			// track; skip rather than route into the void.
			logger.WarnCtx(ctx, "override target %s has no workload record, skipping candidate %s",
				res.FinalID, e.Profile.ID)
			continue
		}
		if idx, dup := seen[handler.Profile.ID]; dup {
			// Several origins can resolve to the same handler. Keep the
			// resolution that carries the override rule so the audit row
			// records which rule produced the assignment.
			if candidates[idx].AppliedOverrideRuleID == nil && res.AppliedOverrideRuleID != nil {
				candidates[idx].DisplayID = e.Profile.ID
				candidates[idx].AppliedOverrideRuleID = res.AppliedOverrideRuleID
			}
			continue
		}
		if !available(&handler, now) {
			continue
		}

		seen[handler.Profile.ID] = len(candidates)
		candidates = append(candidates, Candidate{
			AstrologerID:          handler.Profile.ID,
			DisplayID:             e.Profile.ID,
			AppliedOverrideRuleID: res.AppliedOverrideRuleID,
			Workload:              handler.Workload,
		})
	}

	return candidates
}

// available applies the admission filters: online, active, accepting new
// consultations, not on break, and with capacity headroom. Elapsed break
// windows are treated as cleared here; nothing resets the field.
func available(e *workload.Entry, now time.Time) bool {
	if !e.Profile.IsOnline || !e.Profile.IsActive {
		return false
	}
	if !e.Workload.IsAcceptingNew {
		return false
	}
	if e.Workload.OnBreak(now) {
		return false
	}
	return e.Workload.CurrentConsultations < e.Workload.MaxConcurrent
}

// indexOverrides picks the winning rule per original astrologer:
// highest priority, ties broken by most recent update.
func indexOverrides(rules []model.OverrideRule) map[string]*model.OverrideRule {
	byOriginal := make(map[string]*model.OverrideRule)
	for i := range rules {
		rule := &rules[i]
		if !rule.IsActive {
			continue
		}
		best, ok := byOriginal[rule.OriginalAstrologerID]
		if !ok || rule.Priority > best.Priority ||
			(rule.Priority == best.Priority && rule.UpdatedAt.After(best.UpdatedAt)) {
			byOriginal[rule.OriginalAstrologerID] = rule
		}
	}
	return byOriginal
}
