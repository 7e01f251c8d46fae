package middleware

import (
	"crypto/subtle"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/JonMunkholm/csvimport/internal/config"
	"github.com/JonMunkholm/csvimport/internal/core"
)

// APIKeyHeader carries the caller's API key.
const APIKeyHeader = "X-API-Key"

// APIKeyAuth returns middleware that validates the X-API-Key header against
// configured keys. If RequireAPIKey is false, all requests pass through.
// Paths listed in public skip the check (health probes).
func APIKeyAuth(cfg *config.SecurityConfig, public ...string) func(http.Handler) http.Handler {
	open := make(map[string]bool, len(public))
	for _, p := range public {
		open[p] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !cfg.RequireAPIKey || open[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}

			apiKey := r.Header.Get(APIKeyHeader)
			if apiKey == "" {
				rejectAuth(w, r, http.StatusUnauthorized, "missing API key", "AUTH001")
				return
			}
			if !isValidAPIKey(apiKey, cfg.APIKeys) {
				rejectAuth(w, r, http.StatusForbidden, "invalid API key", "AUTH002")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func rejectAuth(w http.ResponseWriter, r *http.Request, status int, message, code string) {
	slog.Warn("auth: "+message,
		"path", r.URL.Path,
		"method", r.Method,
		"ip", core.ClientIPFromContext(r.Context()),
	)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error":   message,
		"message": message,
		"action":  "Provide a valid API key in the " + APIKeyHeader + " header",
		"code":    code,
	})
}

// isValidAPIKey checks if the provided key matches any configured key.
// Every key is compared in constant time so timing does not reveal which
// one (if any) matched.
func isValidAPIKey(key string, validKeys []string) bool {
	valid := 0
	for _, validKey := range validKeys {
		valid |= subtle.ConstantTimeCompare([]byte(key), []byte(validKey))
	}
	return valid == 1
}
