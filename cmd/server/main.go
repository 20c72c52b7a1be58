package main

import (
	"log"
	"net/http"
	"time"

	"github.com/wadjakorntonsri/visitor-telemetry/pkg/adapters/handler"
	"github.com/wadjakorntonsri/visitor-telemetry/pkg/adapters/repository/sqlite"
	"github.com/wadjakorntonsri/visitor-telemetry/pkg/config"
	"github.com/wadjakorntonsri/visitor-telemetry/pkg/core/services"
)

func main() {
	cfg := config.Load()

	// Initialize Repository
	repo, err := sqlite.NewSQLiteRepository(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer repo.Close()

	// Initialize Services
	collector := services.NewCollectorService(repo, cfg.IPHashSalt, cfg.GDPRAnonymization)
	insights := services.NewInsightService(repo)

	// Initialize Router
	mux := handler.NewRouter(cfg, collector, insights)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	log.Printf("Collector starting on port %s", cfg.Port)
	if cfg.AdminAPIToken == "" {
		log.Printf("ADMIN_API_TOKEN not set; admin endpoints accept Google login sessions only")
	}
	if err := server.ListenAndServe(); err != nil {
		log.Fatal(err)
	}
}
