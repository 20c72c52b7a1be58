package ports

import (
	"context"
	"net/url"
	"time"

	"github.com/wadjakorntonsri/visitor-telemetry/pkg/core/domain"
)

// Listener receives DOM events from a Window.
type Listener func(domain.DOMEvent)

type ListenerOptions struct {
	Capture bool
	Passive bool
}

// Window is the browser surface observed by the tracker. Implementations deliver
// every callback on a single event loop.
type Window interface {
	// Location returns the current page URL, or nil when there is no document.
	Location() *url.URL
	Screen() (width, height int, ok bool)
	Scroll() domain.ScrollMetrics
	VisibilityState() string
	AddEventListener(event string, fn Listener, opts ListenerOptions) (remove func())
	SetInterval(d time.Duration, fn func()) (clear func())
	Now() time.Time
}

// Emitter delivers events to the collection endpoint. Neither method reports
// failure: delivery is best-effort and at-most-once.
type Emitter interface {
	Send(event domain.Event)
	SendOnUnload(event domain.Event)
}

// Beacon is a delivery primitive that attempts transmission even while the
// page is being torn down.
type Beacon interface {
	SendBeacon(url string, body []byte) bool
}

// EventRepository defines storage operations for collected events
type EventRepository interface {
	RecordEvent(ctx context.Context, visitor *domain.Visitor, event *domain.StoredEvent) error
	GetVisitorByIPHash(ctx context.Context, ipHash string) (*domain.Visitor, error)
	ListVisitors(ctx context.Context, query domain.VisitorQuery) ([]domain.Visitor, error)
	FilterOptions(ctx context.Context) (*domain.FilterOptions, error)
	ListEvents(ctx context.Context, visitorID string) ([]domain.StoredEvent, error)
	Dump(ctx context.Context) ([]domain.StoredEvent, error)
}

// CollectorService ingests events posted to the collection endpoint
type CollectorService interface {
	Track(ctx context.Context, event domain.Event, meta domain.RequestMeta) (*domain.TrackResult, error)
}

// InsightService answers the admin dashboard queries
type InsightService interface {
	ListVisitors(ctx context.Context, query domain.VisitorQuery) ([]domain.Visitor, error)
	FilterOptions(ctx context.Context) (*domain.FilterOptions, error)
}
