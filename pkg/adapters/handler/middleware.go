package handler

import (
	"context"
	"crypto/subtle"
	"net/http"
	"slices"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/wadjakorntonsri/visitor-telemetry/pkg/config"
)

type contextKey string

// UserKey holds the authenticated principal: an email for JWT sessions or
// "api-token" for the static admin token.
const UserKey contextKey = "user"

const apiTokenPrincipal = "api-token"

type Middleware struct {
	jwtSecret      []byte
	adminToken     string
	allowedOrigins []string
}

func NewMiddleware(cfg *config.Config) *Middleware {
	return &Middleware{
		jwtSecret:      []byte(cfg.JWTSecret),
		adminToken:     cfg.AdminAPIToken,
		allowedOrigins: cfg.AllowedOrigins,
	}
}

// AdminAuth accepts a bearer token (the static admin token or a signed JWT)
// or the auth_token cookie set by the Google login flow.
func (m *Middleware) AdminAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenString, detail := credentials(r)
		if detail != "" {
			unauthorized(w, detail)
			return
		}

		if m.adminToken != "" && subtle.ConstantTimeCompare([]byte(tokenString), []byte(m.adminToken)) == 1 {
			ctx := context.WithValue(r.Context(), UserKey, apiTokenPrincipal)
			next.ServeHTTP(w, r.WithContext(ctx))
			return
		}

		claims := &jwt.RegisteredClaims{}
		token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
			return m.jwtSecret, nil
		}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
		if err != nil || !token.Valid {
			unauthorized(w, "Invalid API token")
			return
		}

		ctx := context.WithValue(r.Context(), UserKey, claims.Subject)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func credentials(r *http.Request) (token, detail string) {
	header := r.Header.Get("Authorization")
	if header == "" {
		if cookie, err := r.Cookie("auth_token"); err == nil && cookie.Value != "" {
			return cookie.Value, ""
		}
		return "", "Missing Authorization header"
	}

	scheme, value, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(value) == "" {
		return "", "Invalid Authorization header format. Expected: Bearer <token>"
	}
	return strings.TrimSpace(value), ""
}

func unauthorized(w http.ResponseWriter, detail string) {
	w.Header().Set("WWW-Authenticate", "Bearer")
	writeDetail(w, http.StatusUnauthorized, detail)
}

// CORS lets tracked sites post events from the browser. With no configured
// origins every origin is allowed.
func (m *Middleware) CORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" {
			h := w.Header()
			h.Add("Vary", "Origin")
			switch {
			case len(m.allowedOrigins) == 0:
				h.Set("Access-Control-Allow-Origin", "*")
			case slices.Contains(m.allowedOrigins, origin):
				h.Set("Access-Control-Allow-Origin", origin)
				h.Set("Access-Control-Allow-Credentials", "true")
			}
			h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			h.Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Screen-Resolution")
		}

		if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
			w.Header().Set("Access-Control-Max-Age", "600")
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}
