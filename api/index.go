package handler

import (
	"net/http"

	"github.com/wadjakorntonsri/visitor-telemetry/pkg/adapters/handler"
	"github.com/wadjakorntonsri/visitor-telemetry/pkg/adapters/repository/sqlite"
	"github.com/wadjakorntonsri/visitor-telemetry/pkg/config"
	"github.com/wadjakorntonsri/visitor-telemetry/pkg/core/services"
)

var mux http.Handler

func init() {
	cfg := config.Load()

	// On Vercel a file database is ephemeral; point DATABASE_URL at libsql:// for persistence.
	repo, err := sqlite.NewSQLiteRepository(cfg.DatabaseURL)
	if err != nil {
		panic(err)
	}

	collector := services.NewCollectorService(repo, cfg.IPHashSalt, cfg.GDPRAnonymization)
	mux = handler.NewRouter(cfg, collector, services.NewInsightService(repo))
}

// Handler is the entrypoint for Vercel
func Handler(w http.ResponseWriter, r *http.Request) {
	mux.ServeHTTP(w, r)
}
