package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/wadjakorntonsri/visitor-telemetry/pkg/adapters/adminclient"
	"github.com/wadjakorntonsri/visitor-telemetry/pkg/adapters/browser"
	"github.com/wadjakorntonsri/visitor-telemetry/pkg/adapters/emitter"
	"github.com/wadjakorntonsri/visitor-telemetry/pkg/adapters/repository/sqlite"
	"github.com/wadjakorntonsri/visitor-telemetry/pkg/config"
	"github.com/wadjakorntonsri/visitor-telemetry/pkg/core/domain"
	"github.com/wadjakorntonsri/visitor-telemetry/pkg/core/services"
)

const usage = "expected 'visitors', 'filters', 'export' or 'simulate' subcommands"

func main() {
	visitorsCmd := flag.NewFlagSet("visitors", flag.ExitOnError)
	sortBy := visitorsCmd.String("sort", domain.SortIntentScore, "intent_score, visit_count or last_visit_date")
	limit := visitorsCmd.Int("limit", 20, "maximum rows")
	country := visitorsCmd.String("country", "", "filter by country code")
	heat := visitorsCmd.String("heat", "", "filter by heat level")
	industry := visitorsCmd.String("industry", "", "filter by industry")
	since := visitorsCmd.String("since", "", "only visitors seen on or after YYYY-MM-DD")

	filtersCmd := flag.NewFlagSet("filters", flag.ExitOnError)

	exportCmd := flag.NewFlagSet("export", flag.ExitOnError)
	exportVisitor := exportCmd.String("visitor", "", "only events of this visitor id")

	simulateCmd := flag.NewFlagSet("simulate", flag.ExitOnError)
	pageURL := simulateCmd.String("url", "https://example.com/pricing?utm_source=cli", "page to visit")
	scroll := simulateCmd.Int("scroll", 60, "scroll depth to reach in percent")
	dwell := simulateCmd.Duration("wait", 25*time.Second, "virtual time spent on the page")
	clickID := simulateCmd.String("click", "", "id of an element to click before leaving")
	verbose := simulateCmd.Bool("v", false, "log delivery failures")

	if len(os.Args) < 2 {
		fmt.Println(usage)
		os.Exit(1)
	}

	cfg := config.Load()
	ctx := context.Background()

	switch os.Args[1] {
	case "visitors":
		_ = visitorsCmd.Parse(os.Args[2:])
		query := domain.VisitorQuery{
			SortBy:    *sortBy,
			Limit:     *limit,
			Country:   *country,
			HeatLevel: *heat,
			Industry:  *industry,
		}
		if *since != "" {
			from, err := time.Parse("2006-01-02", *since)
			if err != nil {
				log.Fatalf("Invalid -since: %v", err)
			}
			query.DateFrom = &from
		}
		doVisitors(ctx, adminClient(cfg), query)
	case "filters":
		_ = filtersCmd.Parse(os.Args[2:])
		doFilters(ctx, adminClient(cfg))
	case "export":
		_ = exportCmd.Parse(os.Args[2:])
		repo, err := sqlite.NewSQLiteRepository(cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("Failed to connect to db: %v", err)
		}
		defer repo.Close()
		doExport(ctx, repo, *exportVisitor)
	case "simulate":
		_ = simulateCmd.Parse(os.Args[2:])
		level := slog.LevelInfo
		if *verbose {
			level = slog.LevelDebug
		}
		logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
		doSimulate(cfg, logger, *pageURL, *scroll, *dwell, *clickID)
	default:
		fmt.Println(usage)
		os.Exit(1)
	}
}

func adminClient(cfg *config.Config) *adminclient.Client {
	return adminclient.New(cfg.CollectorURL, cfg.AdminAPIToken)
}

func doVisitors(ctx context.Context, client *adminclient.Client, query domain.VisitorQuery) {
	visitors, err := client.ListVisitors(ctx, query)
	if err != nil {
		log.Fatalf("Listing failed: %v", err)
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCOUNTRY\tDEVICE\tVISITS\tTIME\tINTENT\tHEAT\tLAST SEEN")
	for _, v := range visitors {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%d\t%s\t%s\n",
			v.ID, orDash(v.Country), orDash(v.DeviceType), v.VisitCount,
			time.Duration(v.TotalTimeSpent)*time.Second, v.IntentScore, v.HeatLevel,
			v.LastVisitDate.Format(time.DateTime))
	}
	_ = tw.Flush()
}

func doFilters(ctx context.Context, client *adminclient.Client) {
	options, err := client.FilterOptions(ctx)
	if err != nil {
		log.Fatalf("Fetching filters failed: %v", err)
	}
	fmt.Printf("countries:   %s\n", strings.Join(options.Countries, ", "))
	fmt.Printf("industries:  %s\n", strings.Join(options.Industries, ", "))
	fmt.Printf("heat levels: %s\n", strings.Join(options.HeatLevels, ", "))
}

func doExport(ctx context.Context, repo *sqlite.SQLiteRepository, visitorID string) {
	var (
		events []domain.StoredEvent
		err    error
	)
	if visitorID != "" {
		events, err = repo.ListEvents(ctx, visitorID)
	} else {
		events, err = repo.Dump(ctx)
	}
	if err != nil {
		log.Fatalf("Export failed: %v", err)
	}

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(events); err != nil {
		log.Fatalf("Encode failed: %v", err)
	}
}

// doSimulate plays one visit against the collector: load, scroll, dwell,
// optional click, then close the tab.
func doSimulate(cfg *config.Config, logger *slog.Logger, pageURL string, scroll int, dwell time.Duration, clickID string) {
	page, err := browser.NewPage(pageURL, browser.WithScreen(1920, 1080))
	if err != nil {
		log.Fatalf("Invalid -url: %v", err)
	}
	em := emitter.NewHTTPEmitter(cfg.CollectorURL,
		emitter.WithScreen(page.Screen),
		emitter.WithLogger(logger))
	tracker := services.NewTracker(page, em,
		services.WithHeartbeatInterval(cfg.HeartbeatInterval),
		services.WithLogger(logger))

	tracker.Navigate()
	page.ScrollToPercent(scroll)
	page.Advance(dwell)
	if clickID != "" {
		page.Click(domain.Element{TagName: "BUTTON", ID: clickID}, false)
	}
	page.Unload()
	em.Wait()

	logger.Info("visit simulated", "endpoint", em.Endpoint(), "url", pageURL, "scroll", scroll, "dwell", dwell)
}

func orDash(s *string) string {
	if s == nil || *s == "" {
		return "-"
	}
	return *s
}
