package model

import "time"

// AstrologerProfile is the read-only directory view of an astrologer.
// The routing core treats it as ground truth for identity and capacity
// and never mutates it.
type AstrologerProfile struct {
	ID              string   `json:"id"`
	IsOnline        bool     `json:"is_online"`
	IsActive        bool     `json:"is_active"`
	Specializations []string `json:"specializations"`
	Languages       []string `json:"languages"`
	MaxConcurrent   int      `json:"max_concurrent"`
}

// HasSpecialization reports whether the profile covers the given specialization.
// An empty requested value matches any profile.
func (p *AstrologerProfile) HasSpecialization(spec string) bool {
	if spec == "" {
		return true
	}
	for _, s := range p.Specializations {
		if s == spec {
			return true
		}
	}
	return false
}

// SpeaksLanguage reports whether the profile covers the given language.
func (p *AstrologerProfile) SpeaksLanguage(lang string) bool {
	if lang == "" {
		return true
	}
	for _, l := range p.Languages {
		if l == lang {
			return true
		}
	}
	return false
}

// AstrologerWorkload is the mutable workload record kept per astrologer.
// CurrentConsultations is only ever changed through the store's
// reserve/release protocol.
type AstrologerWorkload struct {
	AstrologerID           string     `json:"astrologer_id"`
	MaxConcurrent          int        `json:"max_concurrent"`
	CurrentConsultations   int        `json:"current_consultations"`
	PerformanceScore       float64    `json:"performance_score"`         // [0,1]
	AverageResponseSeconds float64    `json:"average_response_seconds"`
	IsAcceptingNew         bool       `json:"is_accepting_new"`
	BreakUntil             *time.Time `json:"break_until,omitempty"`
	UpdatedAt              time.Time  `json:"updated_at"`
}

// WorkloadFraction is derived from the two counters, never stored.
func (w *AstrologerWorkload) WorkloadFraction() float64 {
	if w.MaxConcurrent <= 0 {
		return 0
	}
	return float64(w.CurrentConsultations) / float64(w.MaxConcurrent)
}

// OnBreak reports whether the astrologer is on break at the given time.
func (w *AstrologerWorkload) OnBreak(now time.Time) bool {
	return w.BreakUntil != nil && w.BreakUntil.After(now)
}
