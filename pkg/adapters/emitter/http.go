// Package emitter delivers telemetry events to the collection endpoint.
package emitter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/wadjakorntonsri/visitor-telemetry/pkg/core/domain"
	"github.com/wadjakorntonsri/visitor-telemetry/pkg/ports"
)

const (
	TrackPath              = "/api/track"
	ScreenResolutionHeader = "X-Screen-Resolution"
	defaultRequestTimeout  = 10 * time.Second
	defaultUserAgent       = "Mozilla/5.0 (compatible; visitor-telemetry/1.0)"
)

// ScreenFunc reports the visitor's screen size when it is known.
type ScreenFunc func() (width, height int, ok bool)

type Option func(*HTTPEmitter)

func WithHTTPClient(client *http.Client) Option {
	return func(e *HTTPEmitter) {
		if client != nil {
			e.client = client
		}
	}
}

func WithBeacon(beacon ports.Beacon) Option {
	return func(e *HTTPEmitter) {
		if beacon != nil {
			e.beacon = beacon
		}
	}
}

func WithScreen(fn ScreenFunc) Option {
	return func(e *HTTPEmitter) {
		e.screen = fn
	}
}

func WithUserAgent(ua string) Option {
	return func(e *HTTPEmitter) {
		e.userAgent = ua
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(e *HTTPEmitter) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// HTTPEmitter posts events to <baseURL>/api/track. Send returns immediately and
// delivers on a detached goroutine; SendOnUnload hands the payload to a Beacon
// before returning. Failures are logged at debug level and otherwise dropped.
type HTTPEmitter struct {
	endpoint  string
	client    *http.Client
	beacon    ports.Beacon
	screen    ScreenFunc
	userAgent string
	logger    *slog.Logger
	inflight  sync.WaitGroup
}

func NewHTTPEmitter(baseURL string, opts ...Option) *HTTPEmitter {
	e := &HTTPEmitter{
		endpoint:  strings.TrimRight(baseURL, "/") + TrackPath,
		client:    &http.Client{Timeout: defaultRequestTimeout},
		userAgent: defaultUserAgent,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.beacon == nil {
		e.beacon = NewHTTPBeacon(e.client, e.userAgent)
	}
	return e
}

func (e *HTTPEmitter) Endpoint() string {
	return e.endpoint
}

func (e *HTTPEmitter) Send(event domain.Event) {
	body, err := json.Marshal(event)
	if err != nil {
		e.logger.Debug("telemetry encode failed", "event_type", event.EventType, "error", err)
		return
	}

	e.inflight.Add(1)
	go func() {
		defer e.inflight.Done()
		if err := e.post(context.Background(), body); err != nil {
			e.logger.Debug("telemetry delivery failed", "event_type", event.EventType, "error", err)
		}
	}()
}

func (e *HTTPEmitter) SendOnUnload(event domain.Event) {
	body, err := json.Marshal(event)
	if err != nil {
		e.logger.Debug("telemetry encode failed", "event_type", event.EventType, "error", err)
		return
	}
	if !e.beacon.SendBeacon(e.endpoint, body) {
		e.logger.Debug("telemetry beacon not queued", "event_type", event.EventType)
	}
}

// Wait blocks until every Send issued so far has finished or failed.
func (e *HTTPEmitter) Wait() {
	e.inflight.Wait()
}

func (e *HTTPEmitter) post(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if e.userAgent != "" {
		req.Header.Set("User-Agent", e.userAgent)
	}
	if e.screen != nil {
		if w, h, ok := e.screen(); ok {
			req.Header.Set(ScreenResolutionHeader, fmt.Sprintf("%dx%d", w, h))
		}
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("collector responded %s", resp.Status)
	}
	return nil
}

var _ ports.Emitter = (*HTTPEmitter)(nil)
