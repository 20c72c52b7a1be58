package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/wadjakorntonsri/visitor-telemetry/pkg/config"
	"github.com/wadjakorntonsri/visitor-telemetry/pkg/core/domain"
	"github.com/wadjakorntonsri/visitor-telemetry/pkg/core/services"
)

type fakeCollector struct {
	event domain.Event
	meta  domain.RequestMeta
	err   error
}

func (f *fakeCollector) Track(_ context.Context, e domain.Event, m domain.RequestMeta) (*domain.TrackResult, error) {
	f.event, f.meta = e, m
	if f.err != nil {
		return nil, f.err
	}
	return &domain.TrackResult{Status: domain.TrackSuccess, VisitorID: "v1", EventID: "e1"}, nil
}

type fakeInsights struct {
	query domain.VisitorQuery
	err   error
}

func (f *fakeInsights) ListVisitors(_ context.Context, q domain.VisitorQuery) ([]domain.Visitor, error) {
	f.query = q
	if f.err != nil {
		return nil, f.err
	}
	country := "NL"
	return []domain.Visitor{{ID: "v1", Country: &country, VisitCount: 3, HeatLevel: domain.HeatCold}}, nil
}

func (f *fakeInsights) FilterOptions(context.Context) (*domain.FilterOptions, error) {
	return &domain.FilterOptions{Countries: []string{"NL"}, HeatLevels: domain.HeatLevels}, nil
}

func TestTrackHandler(t *testing.T) {
	collector := &fakeCollector{}
	router := NewRouter(&config.Config{JWTSecret: "s"}, collector, &fakeInsights{})

	body := `{"page_url":"https://example.com/pricing","event_type":"page_exit","time_spent":12,"scroll_depth":40}`
	req := httptest.NewRequest("POST", "/api/track", strings.NewReader(body))
	req.Header.Set("Content-Type", "text/plain;charset=UTF-8")
	req.Header.Set("User-Agent", "Mozilla/5.0 test")
	req.Header.Set("X-Forwarded-For", "198.51.100.4, 10.0.0.1")
	req.Header.Set("X-Screen-Resolution", "1440x900")
	req.Header.Set("CF-IPCountry", "de")
	req.Header.Set("Referer", "https://news.example/")
	rr := httptest.NewRecorder()

	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var res domain.TrackResult
	if err := json.NewDecoder(rr.Body).Decode(&res); err != nil {
		t.Fatal(err)
	}
	if res.Status != domain.TrackSuccess || res.EventID != "e1" {
		t.Errorf("Unexpected response %+v", res)
	}
	if collector.event.Depth() != 40 || collector.event.TimeSpent != 12 {
		t.Errorf("Unexpected event %+v", collector.event)
	}
	want := domain.RequestMeta{
		IP:               "198.51.100.4",
		UserAgent:        "Mozilla/5.0 test",
		Referrer:         "https://news.example/",
		Country:          "DE",
		ScreenResolution: "1440x900",
	}
	if collector.meta != want {
		t.Errorf("Expected meta %+v, got %+v", want, collector.meta)
	}
}

func TestTrackHandlerErrors(t *testing.T) {
	tests := []struct {
		name           string
		body           string
		err            error
		expectedStatus int
	}{
		{"Malformed JSON", `{"page_url":`, nil, http.StatusBadRequest},
		{"Invalid Event", `{"page_url":"https://example.com","event_type":"hover"}`, fmt.Errorf("%w: bad type", domain.ErrInvalidEvent), http.StatusUnprocessableEntity},
		{"Storage Failure", `{"page_url":"https://example.com","event_type":"click"}`, errors.New("db down"), http.StatusInternalServerError},
		{"Oversized Body", `{"page_url":"` + strings.Repeat("a", maxTrackBody) + `"}`, nil, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := NewRouter(&config.Config{}, &fakeCollector{err: tt.err}, &fakeInsights{})
			req := httptest.NewRequest("POST", "/api/track", strings.NewReader(tt.body))
			rr := httptest.NewRecorder()
			router.ServeHTTP(rr, req)
			if rr.Code != tt.expectedStatus {
				t.Errorf("Expected %d, got %d", tt.expectedStatus, rr.Code)
			}
		})
	}
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		remote  string
		want    string
	}{
		{"Forwarded", map[string]string{"X-Forwarded-For": " 203.0.113.9 ,10.0.0.2"}, "10.0.0.2:5000", "203.0.113.9"},
		{"Real IP", map[string]string{"X-Real-IP": "203.0.113.10"}, "10.0.0.2:5000", "203.0.113.10"},
		{"Remote Addr", nil, "192.0.2.1:1234", "192.0.2.1"},
		{"IPv6 Remote Addr", nil, "[2001:db8::1]:443", "2001:db8::1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("POST", "/api/track", nil)
			req.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			if got := clientIP(req); got != tt.want {
				t.Errorf("Expected %s, got %s", tt.want, got)
			}
		})
	}
}

func TestAdminVisitors(t *testing.T) {
	insights := &fakeInsights{}
	router := NewRouter(&config.Config{AdminAPIToken: "tok"}, &fakeCollector{}, insights)

	req := httptest.NewRequest("GET", "/api/admin/visitors?sort_by=visit_count&limit=5&country=NL&heat_level=Hot&date_from=2026-03-01&date_to=2026-03-02", nil)
	req.Header.Set("Authorization", "Bearer tok")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	q := insights.query
	if q.SortBy != domain.SortVisitCount || q.Limit != 5 || q.Country != "NL" || q.HeatLevel != "Hot" {
		t.Errorf("Unexpected query %+v", q)
	}
	if q.DateFrom == nil || !q.DateFrom.Equal(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("Unexpected date_from %v", q.DateFrom)
	}
	if q.DateTo == nil || !q.DateTo.Equal(time.Date(2026, 3, 3, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("date_to should cover the whole day, got %v", q.DateTo)
	}

	var visitors []map[string]interface{}
	if err := json.NewDecoder(rr.Body).Decode(&visitors); err != nil {
		t.Fatal(err)
	}
	if len(visitors) != 1 || visitors[0]["country"] != "NL" {
		t.Errorf("Unexpected body %v", visitors)
	}
	if _, leaked := visitors[0]["ip_hash"]; leaked {
		t.Error("ip_hash must not be exposed")
	}
}

func TestAdminVisitorsErrors(t *testing.T) {
	tests := []struct {
		name           string
		query          string
		err            error
		expectedStatus int
	}{
		{"Non Numeric Limit", "limit=abc", nil, http.StatusBadRequest},
		{"Zero Limit", "limit=0", nil, http.StatusBadRequest},
		{"Service Rejects Query", "limit=5000", fmt.Errorf("%w: too big", services.ErrInvalidQuery), http.StatusBadRequest},
		{"Service Failure", "", errors.New("db down"), http.StatusInternalServerError},
		{"Unparsable Date Is Ignored", "date_from=yesterday", nil, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			insights := &fakeInsights{err: tt.err}
			router := NewRouter(&config.Config{AdminAPIToken: "tok"}, &fakeCollector{}, insights)
			req := httptest.NewRequest("GET", "/api/admin/visitors?"+tt.query, nil)
			req.Header.Set("Authorization", "Bearer tok")
			rr := httptest.NewRecorder()
			router.ServeHTTP(rr, req)
			if rr.Code != tt.expectedStatus {
				t.Errorf("Expected %d, got %d", tt.expectedStatus, rr.Code)
			}
		})
	}
}

func TestAdminRoutesRequireAuth(t *testing.T) {
	router := NewRouter(&config.Config{AdminAPIToken: "tok", JWTSecret: "s"}, &fakeCollector{}, &fakeInsights{})
	for _, path := range []string{"/api/admin/visitors", "/api/admin/filters"} {
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, httptest.NewRequest("GET", path, nil))
		if rr.Code != http.StatusUnauthorized {
			t.Errorf("%s: expected 401, got %d", path, rr.Code)
		}
		var body map[string]string
		if err := json.NewDecoder(rr.Body).Decode(&body); err != nil || body["detail"] == "" {
			t.Errorf("%s: expected detail message, got %v", path, body)
		}
	}
}

func TestAdminFilters(t *testing.T) {
	router := NewRouter(&config.Config{AdminAPIToken: "tok"}, &fakeCollector{}, &fakeInsights{})
	req := httptest.NewRequest("GET", "/api/admin/filters", nil)
	req.Header.Set("Authorization", "Bearer tok")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	var options domain.FilterOptions
	if err := json.NewDecoder(rr.Body).Decode(&options); err != nil {
		t.Fatal(err)
	}
	if len(options.Countries) != 1 || len(options.HeatLevels) != len(domain.HeatLevels) {
		t.Errorf("Unexpected options %+v", options)
	}
}

func TestHealthz(t *testing.T) {
	router := NewRouter(&config.Config{}, &fakeCollector{}, &fakeInsights{})
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest("GET", "/healthz", nil))
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), "ok") {
		t.Errorf("Unexpected healthz response %d %s", rr.Code, rr.Body.String())
	}
}
