package sqlite

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/wadjakorntonsri/visitor-telemetry/pkg/core/domain"
)

func setupRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	dbURL := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	repo, err := NewSQLiteRepository(dbURL)
	if err != nil {
		t.Fatalf("Failed to init db: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func strPtr(s string) *string { return &s }

func record(t *testing.T, repo *SQLiteRepository, v domain.Visitor, eventType domain.EventType, timeSpent int, at time.Time) *domain.StoredEvent {
	t.Helper()
	ev := &domain.StoredEvent{
		PageURL:   "https://example.com/pricing",
		EventType: eventType,
		TimeSpent: timeSpent,
		CreatedAt: at,
	}
	if err := repo.RecordEvent(context.Background(), &v, ev); err != nil {
		t.Fatalf("RecordEvent failed: %v", err)
	}
	return ev
}

func TestRecordEventRollup(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()
	start := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)

	first := domain.Visitor{IPHash: "hash-a", Country: strPtr("DE"), Referrer: "https://google.com", UTMSource: "ads"}
	view := record(t, repo, first, domain.EventPageView, 0, start)
	if view.ID == "" || view.VisitorID == "" {
		t.Fatal("Expected ids to be assigned")
	}

	again := domain.Visitor{IPHash: "hash-a", Referrer: "https://bing.com", UTMMedium: "cpc"}
	record(t, repo, again, domain.EventPageView, 0, start.Add(time.Minute))
	record(t, repo, again, domain.EventScroll, 20, start.Add(2*time.Minute))
	record(t, repo, again, domain.EventPageExit, 42, start.Add(3*time.Minute))
	record(t, repo, again, domain.EventPageExit, 8, start.Add(4*time.Minute))

	v, err := repo.GetVisitorByIPHash(ctx, "hash-a")
	if err != nil || v == nil {
		t.Fatalf("Visitor not found: %v", err)
	}
	if v.VisitCount != 2 {
		t.Errorf("Expected 2 visits, got %d", v.VisitCount)
	}
	if v.TotalTimeSpent != 50 {
		t.Errorf("Expected 50s total, got %d", v.TotalTimeSpent)
	}
	if v.Country == nil || *v.Country != "DE" {
		t.Errorf("Country lost: %v", v.Country)
	}
	if v.Referrer != "https://google.com" {
		t.Errorf("Expected first-touch referrer, got %q", v.Referrer)
	}
	if v.UTMSource != "ads" || v.UTMMedium != "cpc" {
		t.Errorf("Unexpected utm %q/%q", v.UTMSource, v.UTMMedium)
	}
	if v.HeatLevel != domain.HeatCold || v.IntentScore != 0 {
		t.Errorf("Scores should stay at defaults, got %s/%d", v.HeatLevel, v.IntentScore)
	}
	if !v.LastVisitDate.Equal(start.Add(4 * time.Minute)) {
		t.Errorf("Unexpected last visit %v", v.LastVisitDate)
	}

	events, err := repo.ListEvents(ctx, v.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 5 || events[0].EventType != domain.EventPageView || events[4].TimeSpent != 8 {
		t.Errorf("Unexpected events %+v", events)
	}

	missing, err := repo.GetVisitorByIPHash(ctx, "nope")
	if err != nil || missing != nil {
		t.Errorf("Expected nil visitor, got %v, %v", missing, err)
	}
}

func TestListVisitorsFiltersAndSorts(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()
	day := time.Date(2026, 2, 10, 12, 0, 0, 0, time.UTC)

	record(t, repo, domain.Visitor{IPHash: "a", Country: strPtr("DE")}, domain.EventPageView, 0, day)
	for i := 0; i < 3; i++ {
		record(t, repo, domain.Visitor{IPHash: "b", Country: strPtr("FR")}, domain.EventPageView, 0, day.Add(-48*time.Hour))
	}
	record(t, repo, domain.Visitor{IPHash: "c", Country: strPtr("DE")}, domain.EventPageView, 0, day.Add(-24*time.Hour))
	record(t, repo, domain.Visitor{IPHash: "c"}, domain.EventPageView, 0, day.Add(-24*time.Hour))

	byVisits, err := repo.ListVisitors(ctx, domain.VisitorQuery{SortBy: domain.SortVisitCount, Limit: 10})
	if err != nil {
		t.Fatal(err)
	}
	if len(byVisits) != 3 || byVisits[0].VisitCount != 3 || byVisits[2].VisitCount != 1 {
		t.Errorf("Unexpected visit ordering %+v", byVisits)
	}

	recent, err := repo.ListVisitors(ctx, domain.VisitorQuery{SortBy: domain.SortLastVisitDate, Limit: 1})
	if err != nil {
		t.Fatal(err)
	}
	if len(recent) != 1 || recent[0].IPHash != "a" {
		t.Errorf("Expected most recent visitor first, got %+v", recent)
	}

	german, err := repo.ListVisitors(ctx, domain.VisitorQuery{Country: "DE", Limit: 10})
	if err != nil {
		t.Fatal(err)
	}
	if len(german) != 2 {
		t.Errorf("Expected 2 DE visitors, got %d", len(german))
	}

	from := day.Add(-36 * time.Hour)
	to := day.Add(-12 * time.Hour)
	window, err := repo.ListVisitors(ctx, domain.VisitorQuery{DateFrom: &from, DateTo: &to, Limit: 10})
	if err != nil {
		t.Fatal(err)
	}
	if len(window) != 1 || window[0].IPHash != "c" {
		t.Errorf("Expected only visitor c in date window, got %+v", window)
	}
}

func TestFilterOptions(t *testing.T) {
	repo := setupRepo(t)
	now := time.Now()

	record(t, repo, domain.Visitor{IPHash: "a", Country: strPtr("FR")}, domain.EventPageView, 0, now)
	record(t, repo, domain.Visitor{IPHash: "b", Country: strPtr("DE")}, domain.EventPageView, 0, now)
	record(t, repo, domain.Visitor{IPHash: "c", Country: strPtr("DE")}, domain.EventPageView, 0, now)
	record(t, repo, domain.Visitor{IPHash: "d"}, domain.EventPageView, 0, now)

	opts, err := repo.FilterOptions(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(opts.Countries) != 2 || opts.Countries[0] != "DE" || opts.Countries[1] != "FR" {
		t.Errorf("Unexpected countries %v", opts.Countries)
	}
	if len(opts.Industries) != 0 {
		t.Errorf("Expected no industries, got %v", opts.Industries)
	}
	if len(opts.HeatLevels) != 4 || opts.HeatLevels[3] != domain.HeatEnterpriseReady {
		t.Errorf("Unexpected heat levels %v", opts.HeatLevels)
	}
}

func TestDump(t *testing.T) {
	repo := setupRepo(t)
	now := time.Now()
	record(t, repo, domain.Visitor{IPHash: "a"}, domain.EventPageView, 0, now)
	record(t, repo, domain.Visitor{IPHash: "b"}, domain.EventClick, 0, now)

	events, err := repo.Dump(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 2 {
		t.Errorf("Expected 2 events in dump, got %d", len(events))
	}
}
