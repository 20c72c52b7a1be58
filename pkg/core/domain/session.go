package domain

import (
	"math"
	"time"
)

// Session is the observation window of one page view, from arrival to departure.
// It is owned by a single tracker and discarded when the page identity changes.
type Session struct {
	ID                   string // page identity the session is bound to
	PageURL              string
	StartTime            time.Time
	UTM                  UTM
	HasReportedView      bool
	MaxScrollDepth       int
	ScrollListenerActive bool
}

func NewSession(id, pageURL string, start time.Time, utm UTM) *Session {
	return &Session{
		ID:        id,
		PageURL:   pageURL,
		StartTime: start,
		UTM:       utm,
	}
}

// Elapsed returns whole seconds since the session started.
func (s *Session) Elapsed(now time.Time) int {
	secs := int(now.Sub(s.StartTime) / time.Second)
	if secs < 0 {
		return 0
	}
	return secs
}

// RaiseScroll records depth if it exceeds the current maximum and reports
// whether the maximum changed.
func (s *Session) RaiseScroll(depth int) bool {
	if depth <= s.MaxScrollDepth {
		return false
	}
	s.MaxScrollDepth = depth
	return true
}

// Engaged reports whether the session has anything worth an exit record.
func (s *Session) Engaged(now time.Time) bool {
	return s.Elapsed(now) > 0 || s.MaxScrollDepth > 0
}

// ScrollMetrics is the scroll geometry of a document.
type ScrollMetrics struct {
	Top            float64
	DocumentHeight float64
	ViewportHeight float64
}

// Percent returns the scrolled share of the document, rounded and clamped to 0-100.
func (m ScrollMetrics) Percent() int {
	scrollable := m.DocumentHeight - m.ViewportHeight
	if scrollable <= 0 {
		return 0
	}
	p := int(math.Round(m.Top / scrollable * 100))
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}
