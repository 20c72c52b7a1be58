package handler

import (
	"encoding/json"
	"errors"
	"log"
	"net"
	"net/http"
	"strings"

	"github.com/wadjakorntonsri/visitor-telemetry/pkg/core/domain"
	"github.com/wadjakorntonsri/visitor-telemetry/pkg/ports"
)

const maxTrackBody = 64 << 10

type TrackHandler struct {
	service ports.CollectorService
}

func NewTrackHandler(service ports.CollectorService) *TrackHandler {
	return &TrackHandler{service: service}
}

// Track ingests one event. The body is decoded as JSON whatever the content
// type, since beacons arrive as text/plain.
func (h *TrackHandler) Track(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxTrackBody)

	var event domain.Event
	if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
		writeDetail(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	result, err := h.service.Track(r.Context(), event, requestMeta(r))
	if err != nil {
		if errors.Is(err, domain.ErrInvalidEvent) {
			writeDetail(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		log.Printf("Unexpected error in track endpoint: %v", err)
		writeDetail(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	if result.Status == domain.TrackError {
		log.Printf("Tracking error: %s", result.Message)
	}
	writeJSON(w, http.StatusOK, result)
}

func requestMeta(r *http.Request) domain.RequestMeta {
	referrer := r.Header.Get("Referer")
	if referrer == "" {
		referrer = r.Header.Get("Referrer")
	}
	country := r.Header.Get("X-Vercel-IP-Country")
	if country == "" {
		country = r.Header.Get("CF-IPCountry")
	}
	return domain.RequestMeta{
		IP:               clientIP(r),
		UserAgent:        r.UserAgent(),
		Referrer:         referrer,
		Country:          strings.ToUpper(country),
		ScreenResolution: r.Header.Get("X-Screen-Resolution"),
	}
}

// clientIP prefers the first X-Forwarded-For hop, then X-Real-IP, then the
// connection's remote address.
func clientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if realIP := strings.TrimSpace(r.Header.Get("X-Real-IP")); realIP != "" {
		return realIP
	}
	if r.RemoteAddr == "" {
		return "unknown"
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}
