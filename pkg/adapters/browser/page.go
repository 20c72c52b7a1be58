// Package browser provides Window implementations for the telemetry tracker.
package browser

import (
	"errors"
	"net/url"
	"sort"
	"sync"
	"time"

	"github.com/wadjakorntonsri/visitor-telemetry/pkg/core/domain"
	"github.com/wadjakorntonsri/visitor-telemetry/pkg/ports"
)

// Page is a headless Window driven by its caller. Time is virtual and only moves
// through Advance, so interval callbacks fire deterministically.
type Page struct {
	mu         sync.Mutex
	now        time.Time
	location   *url.URL
	screenW    int
	screenH    int
	scroll     domain.ScrollMetrics
	visibility string
	listeners  map[string][]*listener
	intervals  []*interval
	seq        int
	unloaded   bool
}

var ErrUnloaded = errors.New("page has been unloaded")

type listener struct {
	fn      ports.Listener
	capture bool
	removed bool
}

type interval struct {
	id      int
	period  time.Duration
	next    time.Time
	fn      func()
	cleared bool
}

type PageOption func(*Page)

func WithScreen(width, height int) PageOption {
	return func(p *Page) {
		p.screenW, p.screenH = width, height
	}
}

// WithDocument sets the document and viewport heights used for scroll depth.
func WithDocument(documentHeight, viewportHeight float64) PageOption {
	return func(p *Page) {
		p.scroll.DocumentHeight = documentHeight
		p.scroll.ViewportHeight = viewportHeight
	}
}

func WithClock(start time.Time) PageOption {
	return func(p *Page) {
		p.now = start
	}
}

func NewPage(rawURL string, opts ...PageOption) (*Page, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, err
	}
	p := &Page{
		now:        time.Now(),
		location:   u,
		visibility: domain.VisibilityVisible,
		listeners:  make(map[string][]*listener),
		scroll:     domain.ScrollMetrics{DocumentHeight: 2000, ViewportHeight: 1000},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

func (p *Page) Location() *url.URL {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.unloaded {
		return nil
	}
	u := *p.location
	return &u
}

func (p *Page) Screen() (int, int, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.screenW, p.screenH, p.screenW > 0 && p.screenH > 0
}

func (p *Page) Scroll() domain.ScrollMetrics {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.scroll
}

func (p *Page) VisibilityState() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.visibility
}

func (p *Page) Now() time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.now
}

func (p *Page) AddEventListener(event string, fn ports.Listener, opts ports.ListenerOptions) func() {
	l := &listener{fn: fn, capture: opts.Capture}

	p.mu.Lock()
	p.listeners[event] = append(p.listeners[event], l)
	p.mu.Unlock()

	return func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		l.removed = true
		kept := p.listeners[event][:0]
		for _, other := range p.listeners[event] {
			if other != l {
				kept = append(kept, other)
			}
		}
		p.listeners[event] = kept
	}
}

func (p *Page) SetInterval(d time.Duration, fn func()) func() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.seq++
	iv := &interval{id: p.seq, period: d, next: p.now.Add(d), fn: fn}
	p.intervals = append(p.intervals, iv)
	return func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		iv.cleared = true
	}
}

// ListenerCount returns how many listeners are registered for event.
func (p *Page) ListenerCount(event string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.listeners[event])
}

// ActiveIntervals returns how many intervals have not been cleared.
func (p *Page) ActiveIntervals() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, iv := range p.intervals {
		if !iv.cleared {
			n++
		}
	}
	return n
}

// ScrollTo moves the viewport and dispatches a scroll event.
func (p *Page) ScrollTo(top float64) {
	p.mu.Lock()
	p.scroll.Top = top
	p.mu.Unlock()
	p.dispatch(domain.DOMEvent{Type: domain.DOMScroll}, false)
}

// ScrollToPercent scrolls so that the page reports the given depth.
func (p *Page) ScrollToPercent(percent int) {
	m := p.Scroll()
	p.ScrollTo((m.DocumentHeight - m.ViewportHeight) * float64(percent) / 100)
}

// Click dispatches a click on el. When an inner handler stops propagation only
// capture-phase listeners observe it.
func (p *Page) Click(el domain.Element, stopPropagation bool) {
	target := el
	p.dispatch(domain.DOMEvent{Type: domain.DOMClick, Target: &target}, stopPropagation)
}

func (p *Page) Hide() { p.setVisibility(domain.VisibilityHidden) }

func (p *Page) Show() { p.setVisibility(domain.VisibilityVisible) }

func (p *Page) setVisibility(state string) {
	p.mu.Lock()
	changed := p.visibility != state
	p.visibility = state
	p.mu.Unlock()
	if changed {
		p.dispatch(domain.DOMEvent{Type: domain.DOMVisibilityChange}, false)
	}
}

// Navigate changes the location without a reload, like history.pushState.
func (p *Page) Navigate(rawURL string) error {
	current := p.Location()
	if current == nil {
		return ErrUnloaded
	}
	next, err := current.Parse(rawURL)
	if err != nil {
		return err
	}
	p.mu.Lock()
	p.location = next
	p.scroll.Top = 0
	p.mu.Unlock()
	return nil
}

// Advance moves the clock forward by d, firing due intervals in time order.
func (p *Page) Advance(d time.Duration) {
	p.mu.Lock()
	target := p.now.Add(d)
	p.mu.Unlock()

	for {
		p.mu.Lock()
		iv := p.nextDue(target)
		if iv == nil {
			p.now = target
			p.mu.Unlock()
			return
		}
		p.now = iv.next
		iv.next = iv.next.Add(iv.period)
		p.mu.Unlock()

		iv.fn()
	}
}

func (p *Page) nextDue(target time.Time) *interval {
	var due []*interval
	live := p.intervals[:0]
	for _, iv := range p.intervals {
		if iv.cleared {
			continue
		}
		live = append(live, iv)
		if !iv.next.After(target) {
			due = append(due, iv)
		}
	}
	p.intervals = live
	if len(due) == 0 {
		return nil
	}
	sort.Slice(due, func(i, j int) bool {
		if due[i].next.Equal(due[j].next) {
			return due[i].id < due[j].id
		}
		return due[i].next.Before(due[j].next)
	})
	return due[0]
}

// Unload dispatches beforeunload and then discards the document: listeners and
// intervals are dropped and Location reports nil.
func (p *Page) Unload() {
	p.dispatch(domain.DOMEvent{Type: domain.DOMBeforeUnload}, false)

	p.mu.Lock()
	defer p.mu.Unlock()
	p.unloaded = true
	p.listeners = make(map[string][]*listener)
	for _, iv := range p.intervals {
		iv.cleared = true
	}
	p.intervals = nil
}

func (p *Page) dispatch(ev domain.DOMEvent, stopped bool) {
	p.mu.Lock()
	if p.unloaded {
		p.mu.Unlock()
		return
	}
	snapshot := append([]*listener(nil), p.listeners[ev.Type]...)
	p.mu.Unlock()

	// Capture listeners run first and are unaffected by stopPropagation.
	for _, phase := range []bool{true, false} {
		for _, l := range snapshot {
			if l.capture != phase || (stopped && !l.capture) || p.isRemoved(l) {
				continue
			}
			l.fn(ev)
		}
	}
}

func (p *Page) isRemoved(l *listener) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return l.removed
}

var _ ports.Window = (*Page)(nil)
