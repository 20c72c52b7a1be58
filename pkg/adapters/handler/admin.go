package handler

import (
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/wadjakorntonsri/visitor-telemetry/pkg/core/domain"
	"github.com/wadjakorntonsri/visitor-telemetry/pkg/core/services"
	"github.com/wadjakorntonsri/visitor-telemetry/pkg/ports"
)

type AdminHandler struct {
	service ports.InsightService
}

func NewAdminHandler(service ports.InsightService) *AdminHandler {
	return &AdminHandler{service: service}
}

func (h *AdminHandler) Visitors(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	query := domain.VisitorQuery{
		SortBy:    q.Get("sort_by"),
		Country:   q.Get("country"),
		HeatLevel: q.Get("heat_level"),
		Industry:  q.Get("industry"),
		DateFrom:  parseDateBound(q.Get("date_from"), false),
		DateTo:    parseDateBound(q.Get("date_to"), true),
	}
	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 {
			writeDetail(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		query.Limit = limit
	}

	visitors, err := h.service.ListVisitors(r.Context(), query)
	if err != nil {
		if errors.Is(err, services.ErrInvalidQuery) {
			writeDetail(w, http.StatusBadRequest, err.Error())
			return
		}
		log.Printf("Error in get_visitors: %v", err)
		writeDetail(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	writeJSON(w, http.StatusOK, visitors)
}

func (h *AdminHandler) Filters(w http.ResponseWriter, r *http.Request) {
	options, err := h.service.FilterOptions(r.Context())
	if err != nil {
		log.Printf("Error in get_filter_options: %v", err)
		writeDetail(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	writeJSON(w, http.StatusOK, options)
}

// parseDateBound accepts YYYY-MM-DD or RFC 3339. Upper bounds are returned
// exclusive: a plain date covers the whole day. Unparsable input is ignored.
func parseDateBound(raw string, upper bool) *time.Time {
	if raw == "" {
		return nil
	}
	if t, err := time.Parse("2006-01-02", raw); err == nil {
		if upper {
			t = t.AddDate(0, 0, 1)
		}
		return &t
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		if upper {
			t = t.Add(time.Millisecond)
		}
		return &t
	}
	return nil
}
