package handlers

import (
	"net/http"
	"streamline/database"
	"streamline/logger"

	"github.com/go-chi/chi/v5"
)

func RegisterHealthRoutes(r chi.Router) {
	r.Get("/health", healthCheckHandler)
}

// healthCheckHandler reports whether the API and its database are usable.
// @Summary Health check
// @Tags Health
// @Produce json
// @Success 200 {object} map[string]bool
// @Failure 503 {object} map[string]bool
// @Router /health [get]
func healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	if database.DB == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]bool{"ok": false})
		return
	}
	if err := database.DB.PingContext(r.Context()); err != nil {
		logger.Error("Health check: database ping failed: %v", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]bool{"ok": false})
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}
