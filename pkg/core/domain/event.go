package domain

import (
	"errors"
	"fmt"
	"net/url"
	"time"
	"unicode/utf8"
)

// EventType is the kind of interaction an Event reports.
type EventType string

const (
	EventPageView EventType = "page_view"
	EventScroll   EventType = "scroll"
	EventClick    EventType = "click"
	EventPageExit EventType = "page_exit"
)

// MaxClickTargetLength bounds click fingerprints accepted by the collector.
const MaxClickTargetLength = 255

var ErrInvalidEvent = errors.New("invalid event")

func (t EventType) Valid() bool {
	switch t {
	case EventPageView, EventScroll, EventClick, EventPageExit:
		return true
	}
	return false
}

// UTM holds the campaign attribution parameters of a session.
type UTM struct {
	Source   string
	Medium   string
	Campaign string
}

// UTMFromURL reads utm_source, utm_medium and utm_campaign from the query string.
func UTMFromURL(u *url.URL) UTM {
	if u == nil {
		return UTM{}
	}
	q := u.Query()
	return UTM{
		Source:   q.Get("utm_source"),
		Medium:   q.Get("utm_medium"),
		Campaign: q.Get("utm_campaign"),
	}
}

// Event is the record posted to the collection endpoint.
type Event struct {
	PageURL     string    `json:"page_url"`
	EventType   EventType `json:"event_type"`
	TimeSpent   int       `json:"time_spent"`
	ScrollDepth *int      `json:"scroll_depth,omitempty"`
	ClickTarget string    `json:"click_target,omitempty"`
	UTMSource   string    `json:"utm_source,omitempty"`
	UTMMedium   string    `json:"utm_medium,omitempty"`
	UTMCampaign string    `json:"utm_campaign,omitempty"`
}

func NewEvent(pageURL string, eventType EventType, timeSpent int, utm UTM) Event {
	if timeSpent < 0 {
		timeSpent = 0
	}
	return Event{
		PageURL:     pageURL,
		EventType:   eventType,
		TimeSpent:   timeSpent,
		UTMSource:   utm.Source,
		UTMMedium:   utm.Medium,
		UTMCampaign: utm.Campaign,
	}
}

// WithScrollDepth returns a copy of e carrying depth.
func (e Event) WithScrollDepth(depth int) Event {
	e.ScrollDepth = &depth
	return e
}

// WithClickTarget returns a copy of e carrying target.
func (e Event) WithClickTarget(target string) Event {
	e.ClickTarget = target
	return e
}

// Depth returns the reported scroll depth, zero when absent.
func (e Event) Depth() int {
	if e.ScrollDepth == nil {
		return 0
	}
	return *e.ScrollDepth
}

func (e Event) Validate() error {
	if e.PageURL == "" {
		return fmt.Errorf("%w: page_url is required", ErrInvalidEvent)
	}
	if !e.EventType.Valid() {
		return fmt.Errorf("%w: unknown event_type %q", ErrInvalidEvent, e.EventType)
	}
	if e.TimeSpent < 0 {
		return fmt.Errorf("%w: time_spent must be >= 0", ErrInvalidEvent)
	}
	if d := e.Depth(); d < 0 || d > 100 {
		return fmt.Errorf("%w: scroll_depth must be within 0-100", ErrInvalidEvent)
	}
	if utf8.RuneCountInString(e.ClickTarget) > MaxClickTargetLength {
		return fmt.Errorf("%w: click_target too long", ErrInvalidEvent)
	}
	return nil
}

// StoredEvent is an Event as persisted by the collector.
type StoredEvent struct {
	ID          string    `json:"id"`
	VisitorID   string    `json:"visitor_id"`
	PageURL     string    `json:"page_url"`
	EventType   EventType `json:"event_type"`
	TimeSpent   int       `json:"time_spent"`
	ScrollDepth int       `json:"scroll_depth"`
	ClickTarget string    `json:"click_target,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// RequestMeta is what the collector learns about a sender from the HTTP request.
type RequestMeta struct {
	IP               string
	UserAgent        string
	Referrer         string
	Country          string
	ScreenResolution string
}

// TrackStatus is the outcome reported by the collection endpoint.
type TrackStatus string

const (
	TrackSuccess TrackStatus = "success"
	TrackIgnored TrackStatus = "ignored"
	TrackError   TrackStatus = "error"
)

type TrackResult struct {
	Status    TrackStatus `json:"status"`
	Message   string      `json:"message,omitempty"`
	VisitorID string      `json:"visitor_id,omitempty"`
	EventID   string      `json:"event_id,omitempty"`
}
