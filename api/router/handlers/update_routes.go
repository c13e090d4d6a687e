package handlers

import (
	"net/http"
	"streamline/logger"
	"streamline/update"
	"streamline/version"

	"github.com/go-chi/chi/v5"
)

func RegisterUpdateRoutes(r chi.Router, checkURL string, client *http.Client) {
	r.Get("/update", func(w http.ResponseWriter, r *http.Request) {
		CheckUpdateHandler(w, r, checkURL, client)
	})
}

// CheckUpdateHandler compares the running version with the published one.
// @Summary Check for updates
// @Tags Version
// @Produce json
// @Success 200 {object} update.Result
// @Failure 502 {object} models.ErrorResponse
// @Router /update [get]
func CheckUpdateHandler(w http.ResponseWriter, r *http.Request, checkURL string, client *http.Client) {
	res, err := update.Check(r.Context(), client, checkURL, version.AppVersion)
	if err != nil {
		logger.Warn("Update check failed: %v", err)
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	logger.Info("The latest version: %s", res.Latest)
	writeJSON(w, http.StatusOK, res)
}
