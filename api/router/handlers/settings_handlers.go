package handlers

import (
	"net/http"
	"streamline/config"
	"streamline/database"
	"streamline/logger"
	"streamline/models"
	"strconv"
	"strings"
)

// GetSettingsHandler returns the user-editable settings.
// @Summary Get settings
// @Tags Settings
// @Produce json
// @Success 200 {object} models.AppSettings
// @Router /settings [get]
func GetSettingsHandler(w http.ResponseWriter, r *http.Request) {
	s, err := database.GetAppSettings()
	if err != nil {
		logger.Error("GetSettingsHandler: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to retrieve settings")
		return
	}
	writeJSON(w, http.StatusOK, s)
}

// SaveSettingsHandler stores the settings. An empty proxy_port clears the stored
// value so the configured port applies again. The port takes effect on the next start.
// @Summary Save settings
// @Tags Settings
// @Accept json
// @Produce json
// @Param settings body models.AppSettings true "Settings"
// @Success 200 {object} models.AppSettings
// @Failure 400 {object} models.ErrorResponse
// @Router /settings [put]
func SaveSettingsHandler(w http.ResponseWriter, r *http.Request) {
	var in models.AppSettings
	if err := decodeJSON(r, &in, false); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	value := strings.TrimSpace(in.ProxyPort)
	if value != "" {
		port, err := config.ParsePort(value)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		value = strconv.Itoa(port)
	}
	if err := database.SetSetting(models.ProxyPortKey, value); err != nil {
		logger.Error("SaveSettingsHandler: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to save settings")
		return
	}
	logger.Info("Proxy port setting saved: %q", value)
	writeJSON(w, http.StatusOK, models.AppSettings{ProxyPort: value})
}
