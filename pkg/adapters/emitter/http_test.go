package emitter

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/wadjakorntonsri/visitor-telemetry/pkg/core/domain"
)

type capturedRequest struct {
	path        string
	contentType string
	screen      string
	body        []byte
}

func newCollector(t *testing.T, status int) (*httptest.Server, func() []capturedRequest) {
	t.Helper()
	var mu sync.Mutex
	var got []capturedRequest

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		got = append(got, capturedRequest{
			path:        r.URL.Path,
			contentType: r.Header.Get("Content-Type"),
			screen:      r.Header.Get(ScreenResolutionHeader),
			body:        body,
		})
		mu.Unlock()
		w.WriteHeader(status)
	}))
	t.Cleanup(server.Close)

	return server, func() []capturedRequest {
		mu.Lock()
		defer mu.Unlock()
		return append([]capturedRequest(nil), got...)
	}
}

func TestSendPostsJSON(t *testing.T) {
	server, requests := newCollector(t, http.StatusOK)
	e := NewHTTPEmitter(server.URL+"/", WithScreen(func() (int, int, bool) { return 1920, 1080, true }))

	ev := domain.NewEvent("https://example.com/pricing", domain.EventScroll, 12, domain.UTM{Source: "ads"}).WithScrollDepth(40)
	e.Send(ev)
	e.Wait()

	got := requests()
	if len(got) != 1 {
		t.Fatalf("Expected 1 request, got %d", len(got))
	}
	if got[0].path != TrackPath {
		t.Errorf("Expected path %s, got %s", TrackPath, got[0].path)
	}
	if got[0].contentType != "application/json" {
		t.Errorf("Unexpected content type %q", got[0].contentType)
	}
	if got[0].screen != "1920x1080" {
		t.Errorf("Expected screen header 1920x1080, got %q", got[0].screen)
	}

	var payload map[string]interface{}
	if err := json.Unmarshal(got[0].body, &payload); err != nil {
		t.Fatalf("Body is not JSON: %v", err)
	}
	if payload["event_type"] != "scroll" || payload["scroll_depth"] != float64(40) || payload["utm_source"] != "ads" {
		t.Errorf("Unexpected payload %v", payload)
	}
	if _, ok := payload["click_target"]; ok {
		t.Error("Absent click_target should be omitted")
	}
	if _, ok := payload["utm_campaign"]; ok {
		t.Error("Absent utm_campaign should be omitted")
	}
}

func TestSendOmitsUnknownScreen(t *testing.T) {
	server, requests := newCollector(t, http.StatusOK)
	e := NewHTTPEmitter(server.URL, WithScreen(func() (int, int, bool) { return 0, 0, false }))

	e.Send(domain.NewEvent("https://example.com/", domain.EventClick, 0, domain.UTM{}).WithClickTarget("a#buy-now"))
	e.Wait()

	got := requests()
	if len(got) != 1 || got[0].screen != "" {
		t.Errorf("Expected one request without screen header, got %+v", got)
	}
}

func TestSendSwallowsFailures(t *testing.T) {
	server, requests := newCollector(t, http.StatusInternalServerError)
	e := NewHTTPEmitter(server.URL)

	e.Send(domain.NewEvent("https://example.com/", domain.EventPageView, 0, domain.UTM{}))
	e.Wait()
	if len(requests()) != 1 {
		t.Error("Expected exactly one attempt, no retry")
	}

	unreachable := NewHTTPEmitter("http://127.0.0.1:1")
	unreachable.Send(domain.NewEvent("https://example.com/", domain.EventPageView, 0, domain.UTM{}))
	unreachable.Wait()
}

type recordingBeacon struct {
	url  string
	body []byte
}

func (b *recordingBeacon) SendBeacon(url string, body []byte) bool {
	b.url, b.body = url, body
	return true
}

func TestSendOnUnloadUsesBeacon(t *testing.T) {
	beacon := &recordingBeacon{}
	e := NewHTTPEmitter("https://collector.example", WithBeacon(beacon))

	e.SendOnUnload(domain.NewEvent("https://example.com/", domain.EventPageExit, 3, domain.UTM{}).WithScrollDepth(0))

	if beacon.url != "https://collector.example/api/track" {
		t.Errorf("Unexpected beacon url %q", beacon.url)
	}
	var ev domain.Event
	if err := json.Unmarshal(beacon.body, &ev); err != nil {
		t.Fatalf("Beacon body is not JSON: %v", err)
	}
	if ev.EventType != domain.EventPageExit || ev.TimeSpent != 3 || ev.ScrollDepth == nil || *ev.ScrollDepth != 0 {
		t.Errorf("Unexpected beacon event %+v", ev)
	}
}

func TestHTTPBeaconIsSynchronous(t *testing.T) {
	server, requests := newCollector(t, http.StatusNoContent)
	b := NewHTTPBeacon(server.Client(), "")

	if !b.SendBeacon(server.URL+TrackPath, []byte(`{"event_type":"page_exit"}`)) {
		t.Fatal("Expected beacon to be attempted")
	}
	got := requests()
	if len(got) != 1 {
		t.Fatalf("Expected request to complete before return, got %d", len(got))
	}
	if got[0].contentType != "text/plain;charset=UTF-8" {
		t.Errorf("Unexpected beacon content type %q", got[0].contentType)
	}
}
