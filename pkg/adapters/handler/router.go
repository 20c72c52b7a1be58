package handler

import (
	"net/http"

	"github.com/wadjakorntonsri/visitor-telemetry/pkg/config"
	"github.com/wadjakorntonsri/visitor-telemetry/pkg/ports"
)

// NewRouter creates and configures the main application router
func NewRouter(cfg *config.Config, collector ports.CollectorService, insights ports.InsightService) http.Handler {
	th := NewTrackHandler(collector)
	ah := NewAdminHandler(insights)
	mw := NewMiddleware(cfg)
	authHandler := NewAuthHandler(cfg)

	mux := http.NewServeMux()

	// Public Routes
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"message": "ok"})
	})
	mux.HandleFunc("POST /api/track", th.Track)
	mux.HandleFunc("GET /auth/google/login", authHandler.Login)
	mux.HandleFunc("GET /auth/google/callback", authHandler.Callback)
	mux.HandleFunc("GET /auth/logout", authHandler.Logout)

	// Protected Routes
	protectedMux := http.NewServeMux()
	protectedMux.HandleFunc("GET /api/admin/visitors", ah.Visitors)
	protectedMux.HandleFunc("GET /api/admin/filters", ah.Filters)
	mux.Handle("/api/admin/", mw.AdminAuth(protectedMux))

	return mw.CORS(mux)
}
