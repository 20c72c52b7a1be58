package services

import (
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/wadjakorntonsri/visitor-telemetry/pkg/core/domain"
	"github.com/wadjakorntonsri/visitor-telemetry/pkg/ports"
)

const DefaultHeartbeatInterval = 10 * time.Second

type TrackerOption func(*Tracker)

// WithHeartbeatInterval sets both the heartbeat period and the minimum session
// age before a heartbeat is reported.
func WithHeartbeatInterval(d time.Duration) TrackerOption {
	return func(t *Tracker) {
		if d > 0 {
			t.heartbeat = d
		}
	}
}

func WithLogger(logger *slog.Logger) TrackerOption {
	return func(t *Tracker) {
		if logger != nil {
			t.logger = logger
		}
	}
}

// Tracker owns the visit session of the page currently shown in a Window and
// reports its arrival, engagement and departure through an Emitter.
type Tracker struct {
	mu        sync.Mutex
	win       ports.Window
	emitter   ports.Emitter
	heartbeat time.Duration
	logger    *slog.Logger
	active    *activeSession
}

// activeSession binds a Session to the listeners registered on its behalf.
type activeSession struct {
	*domain.Session
	cleanup []func()
	ended   bool
}

func (s *activeSession) onEnd(fn func()) {
	if fn != nil {
		s.cleanup = append(s.cleanup, fn)
	}
}

// NewTracker returns a tracker for win. A nil win yields a tracker whose
// operations do nothing, which is the case when rendering outside a browser.
func NewTracker(win ports.Window, emitter ports.Emitter, opts ...TrackerOption) *Tracker {
	if emitter == nil {
		emitter = discardEmitter{}
	}
	t := &Tracker{
		win:       win,
		emitter:   emitter,
		heartbeat: DefaultHeartbeatInterval,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Navigate synchronizes the tracker with the window location. When the page
// identity differs from the tracked one the current session is ended and a new
// one starts; otherwise it does nothing.
func (t *Tracker) Navigate() {
	loc := t.location()
	if loc == nil {
		return
	}
	id := pageIdentity(loc)

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.active != nil {
		if t.active.ID == id {
			return
		}
		t.endOnNavigation(t.active)
	}
	t.start(loc, id)
}

// Close ends the current session the same way a navigation does.
func (t *Tracker) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.active != nil {
		t.endOnNavigation(t.active)
		t.active = nil
	}
}

// Session returns the live session, or nil when none is tracked.
func (t *Tracker) Session() *domain.Session {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.active == nil {
		return nil
	}
	return t.active.Session
}

func (t *Tracker) location() *url.URL {
	if t.win == nil {
		return nil
	}
	return t.win.Location()
}

func (t *Tracker) start(loc *url.URL, id string) {
	s := &activeSession{
		Session: domain.NewSession(id, loc.String(), t.win.Now(), domain.UTMFromURL(loc)),
	}
	t.active = s
	t.logger.Debug("telemetry session started", "page", s.PageURL)

	t.reportView(s)
	t.observeScroll(s)
	t.observeClicks(s)

	s.onEnd(t.win.AddEventListener(domain.DOMBeforeUnload, func(domain.DOMEvent) {
		t.onUnload(s)
	}, ports.ListenerOptions{}))
	s.onEnd(t.win.AddEventListener(domain.DOMVisibilityChange, func(domain.DOMEvent) {
		t.onVisibilityChange(s)
	}, ports.ListenerOptions{}))
	s.onEnd(t.win.SetInterval(t.heartbeat, func() {
		t.onHeartbeat(s)
	}))
}

// reportView emits the page_view of s once. The guard is raised before the
// event is handed to the emitter.
func (t *Tracker) reportView(s *activeSession) {
	if s.HasReportedView {
		return
	}
	s.HasReportedView = true
	t.emitter.Send(t.event(s, domain.EventPageView, 0).WithScrollDepth(0))
}

func (t *Tracker) observeScroll(s *activeSession) {
	if s.ScrollListenerActive {
		return
	}
	s.ScrollListenerActive = true

	remove := t.win.AddEventListener(domain.DOMScroll, func(domain.DOMEvent) {
		t.onScroll(s)
	}, ports.ListenerOptions{Passive: true})
	s.onEnd(func() {
		remove()
		s.ScrollListenerActive = false
	})
}

func (t *Tracker) observeClicks(s *activeSession) {
	s.onEnd(t.win.AddEventListener(domain.DOMClick, func(ev domain.DOMEvent) {
		t.onClick(s, ev)
	}, ports.ListenerOptions{Capture: true}))
}

func (t *Tracker) onScroll(s *activeSession) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if s.ended {
		return
	}
	s.RaiseScroll(t.win.Scroll().Percent())
}

func (t *Tracker) onClick(s *activeSession, ev domain.DOMEvent) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if s.ended || ev.Target == nil {
		return
	}
	// Click timing is not session-relative.
	t.emitter.Send(t.event(s, domain.EventClick, 0).WithClickTarget(ev.Target.Fingerprint()))
}

func (t *Tracker) onHeartbeat(s *activeSession) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if s.ended {
		return
	}
	elapsed := s.Elapsed(t.win.Now())
	if elapsed > int(t.heartbeat/time.Second) && s.MaxScrollDepth > 0 {
		t.emitter.Send(t.event(s, domain.EventScroll, elapsed).WithScrollDepth(s.MaxScrollDepth))
	}
}

func (t *Tracker) onUnload(s *activeSession) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if s.ended {
		return
	}
	if ev, ok := t.exitEvent(s); ok {
		t.emitter.SendOnUnload(ev)
	}
}

func (t *Tracker) onVisibilityChange(s *activeSession) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if s.ended || t.win.VisibilityState() != domain.VisibilityHidden {
		return
	}
	if ev, ok := t.exitEvent(s); ok {
		t.emitter.Send(ev)
	}
}

// endOnNavigation tears down every observer of s and reports its exit when the
// session saw any engagement. The view guard does not suppress this exit; the
// collector aggregates duplicates.
func (t *Tracker) endOnNavigation(s *activeSession) {
	s.ended = true
	for _, fn := range s.cleanup {
		fn()
	}
	s.cleanup = nil

	if ev, ok := t.exitEvent(s); ok {
		t.emitter.Send(ev)
	}
	t.logger.Debug("telemetry session ended", "page", s.PageURL, "scroll_depth", s.MaxScrollDepth)
}

func (t *Tracker) exitEvent(s *activeSession) (domain.Event, bool) {
	now := t.win.Now()
	if !s.Engaged(now) {
		return domain.Event{}, false
	}
	return t.event(s, domain.EventPageExit, s.Elapsed(now)).WithScrollDepth(s.MaxScrollDepth), true
}

func (t *Tracker) event(s *activeSession, eventType domain.EventType, timeSpent int) domain.Event {
	return domain.NewEvent(s.PageURL, eventType, timeSpent, s.UTM)
}

// pageIdentity is the path and query of u; fragment changes keep the session.
func pageIdentity(u *url.URL) string {
	if u.RawQuery == "" {
		return u.EscapedPath()
	}
	return u.EscapedPath() + "?" + u.RawQuery
}

type discardEmitter struct{}

func (discardEmitter) Send(domain.Event)         {}
func (discardEmitter) SendOnUnload(domain.Event) {}
