package workload

import (
	"errors"
	"sort"
	"sync"
	"time"

	"astroline/internal/model"
)

var (
	// ErrUnknownAstrologer is returned when no workload record exists for the id.
	ErrUnknownAstrologer = errors.New("unknown astrologer")
	// ErrCapacityExhausted is returned when a reservation would exceed max concurrency.
	ErrCapacityExhausted = errors.New("astrologer at capacity")
)

const (
	// emaAlpha is the smoothing factor for the completion-quality and
	// response-time moving averages fed into performance recomputation.
	emaAlpha = 0.3

	// initialPerformanceScore is assigned to newly activated astrologers
	// until completion samples arrive.
	initialPerformanceScore = 0.5
)

// PerformanceStats accumulates per-astrologer completion statistics.
// The rebalance pass recomputes the performance score from these values,
// so a pass with no new completions is a fixed point.
type PerformanceStats struct {
	CompletionEMA float64 // EMA of completion quality samples (1 completed, 0 abandoned)
	ResponseEMA   float64 // EMA of response-time samples (seconds)
	SampleCount   int64
}

// Entry is a consistent read of one astrologer's directory profile,
// workload record and accumulated statistics.
type Entry struct {
	Profile  model.AstrologerProfile
	Workload model.AstrologerWorkload
	Stats    PerformanceStats
}

type record struct {
	mu      sync.Mutex
	profile model.AstrologerProfile
	w       model.AstrologerWorkload
	stats   PerformanceStats
}

// Store holds one mutable workload record per astrologer and owns the
// reservation protocol. Counter mutations happen under the per-record
// lock, never read-then-write across it.
type Store struct {
	mu      sync.RWMutex
	records map[string]*record
}

// NewStore creates an empty workload store.
func NewStore() *Store {
	return &Store{records: make(map[string]*record)}
}

// Upsert creates the workload record for a newly activated astrologer or
// refreshes the directory-owned fields of an existing one. Counters and
// throttle state are preserved on update.
func (s *Store) Upsert(profile model.AstrologerProfile) {
	s.mu.Lock()
	rec, ok := s.records[profile.ID]
	if !ok {
		rec = &record{
			profile: profile,
			w: model.AstrologerWorkload{
				AstrologerID:     profile.ID,
				MaxConcurrent:    profile.MaxConcurrent,
				PerformanceScore: initialPerformanceScore,
				IsAcceptingNew:   true,
				UpdatedAt:        time.Now(),
			},
		}
		s.records[profile.ID] = rec
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	rec.mu.Lock()
	rec.profile = profile
	if profile.MaxConcurrent > 0 {
		rec.w.MaxConcurrent = profile.MaxConcurrent
	}
	rec.w.UpdatedAt = time.Now()
	rec.mu.Unlock()
}

// Deactivate marks the astrologer's profile inactive. The workload record
// is kept; it only goes away with the profile itself.
func (s *Store) Deactivate(id string) bool {
	rec, ok := s.get(id)
	if !ok {
		return false
	}
	rec.mu.Lock()
	rec.profile.IsActive = false
	rec.profile.IsOnline = false
	rec.w.UpdatedAt = time.Now()
	rec.mu.Unlock()
	return true
}

// Reserve atomically claims one capacity slot. It fails with
// ErrCapacityExhausted when the last slot is already taken, which callers
// treat as a reservation conflict and retry on the next candidate.
func (s *Store) Reserve(id string) error {
	rec, ok := s.get(id)
	if !ok {
		return ErrUnknownAstrologer
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	if rec.w.CurrentConsultations >= rec.w.MaxConcurrent {
		return ErrCapacityExhausted
	}
	rec.w.CurrentConsultations++
	rec.w.UpdatedAt = time.Now()
	return nil
}

// Release atomically returns one capacity slot. A release with no matching
// reservation is a no-op and reports false; the counter never goes below
// zero.
func (s *Store) Release(id string) bool {
	rec, ok := s.get(id)
	if !ok {
		return false
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	if rec.w.CurrentConsultations <= 0 {
		return false
	}
	rec.w.CurrentConsultations--
	rec.w.UpdatedAt = time.Now()
	return true
}

// RecordCompletion folds a consultation outcome into the astrologer's
// rolling statistics. The performance score itself is only recomputed by
// the rebalance pass.
func (s *Store) RecordCompletion(id string, outcome model.ConsultationOutcome, responseSeconds float64) bool {
	rec, ok := s.get(id)
	if !ok {
		return false
	}
	quality := 0.0
	if outcome == model.OutcomeCompleted {
		quality = 1.0
	}
	if responseSeconds < 0 {
		responseSeconds = 0
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if rec.stats.SampleCount == 0 {
		rec.stats.CompletionEMA = quality
		rec.stats.ResponseEMA = responseSeconds
	} else {
		rec.stats.CompletionEMA = emaAlpha*quality + (1-emaAlpha)*rec.stats.CompletionEMA
		rec.stats.ResponseEMA = emaAlpha*responseSeconds + (1-emaAlpha)*rec.stats.ResponseEMA
	}
	rec.stats.SampleCount++
	rec.w.AverageResponseSeconds = rec.stats.ResponseEMA
	rec.w.UpdatedAt = time.Now()
	return true
}

// SetPerformance writes a recomputed performance score, clamped to [0,1].
// Reports whether the stored value changed.
func (s *Store) SetPerformance(id string, score float64) bool {
	rec, ok := s.get(id)
	if !ok {
		return false
	}
	if score < 0 {
		score = 0
	} else if score > 1 {
		score = 1
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	if rec.w.PerformanceScore == score {
		return false
	}
	rec.w.PerformanceScore = score
	rec.w.UpdatedAt = time.Now()
	return true
}

// SetAcceptingNew flips the throttle flag. Reports whether it changed.
func (s *Store) SetAcceptingNew(id string, accepting bool) bool {
	rec, ok := s.get(id)
	if !ok {
		return false
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	if rec.w.IsAcceptingNew == accepting {
		return false
	}
	rec.w.IsAcceptingNew = accepting
	rec.w.UpdatedAt = time.Now()
	return true
}

// SetBreak sets or clears the astrologer's break window.
func (s *Store) SetBreak(id string, until *time.Time) bool {
	rec, ok := s.get(id)
	if !ok {
		return false
	}
	rec.mu.Lock()
	rec.w.BreakUntil = until
	rec.w.UpdatedAt = time.Now()
	rec.mu.Unlock()
	return true
}

// Get returns a consistent copy of one entry.
func (s *Store) Get(id string) (Entry, bool) {
	rec, ok := s.get(id)
	if !ok {
		return Entry{}, false
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return rec.entry(), true
}

// Entries returns a copy of every entry, ordered by astrologer id for
// deterministic iteration.
func (s *Store) Entries() []Entry {
	s.mu.RLock()
	recs := make([]*record, 0, len(s.records))
	for _, rec := range s.records {
		recs = append(recs, rec)
	}
	s.mu.RUnlock()

	entries := make([]Entry, 0, len(recs))
	for _, rec := range recs {
		rec.mu.Lock()
		entries = append(entries, rec.entry())
		rec.mu.Unlock()
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Workload.AstrologerID < entries[j].Workload.AstrologerID
	})
	return entries
}

// Snapshot returns the workload records alone, for dashboards.
func (s *Store) Snapshot() []model.AstrologerWorkload {
	entries := s.Entries()
	out := make([]model.AstrologerWorkload, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Workload)
	}
	return out
}

func (s *Store) get(id string) (*record, bool) {
	s.mu.RLock()
	rec, ok := s.records[id]
	s.mu.RUnlock()
	return rec, ok
}

func (r *record) entry() Entry {
	e := Entry{Profile: r.profile, Workload: r.w, Stats: r.stats}
	if r.w.BreakUntil != nil {
		until := *r.w.BreakUntil
		e.Workload.BreakUntil = &until
	}
	e.Profile.Specializations = append([]string(nil), r.profile.Specializations...)
	e.Profile.Languages = append([]string(nil), r.profile.Languages...)
	return e
}
