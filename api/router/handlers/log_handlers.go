package handlers

import (
	"errors"
	"io/fs"
	"net/http"
	"strconv"
	"streamline/logger"
	"streamline/logview"
)

// LogPaths names the two log files the API can read.
type LogPaths struct {
	App   string
	Proxy string
}

type LogHandlers struct {
	paths LogPaths
}

// LogsResponse is the body of GET /logs.
type LogsResponse struct {
	File  string   `json:"file"`
	Level string   `json:"level"`
	Lines []string `json:"lines"`
}

func (h *LogHandlers) pathFor(w http.ResponseWriter, r *http.Request) (string, string, bool) {
	switch name := r.URL.Query().Get("file"); name {
	case "", "proxy":
		return "proxy", h.paths.Proxy, true
	case "app":
		return "app", h.paths.App, true
	default:
		writeError(w, http.StatusBadRequest, "file must be 'proxy' or 'app'")
		return "", "", false
	}
}

// Show returns the tail of a log file filtered by level.
// @Summary Read logs
// @Tags Logs
// @Produce json
// @Param file query string false "proxy (default) or app"
// @Param level query string false "DEBUG, INFO, WARNING, ERROR, CRITICAL or --ALL--"
// @Param lines query int false "Trailing lines to read (default 1000)"
// @Success 200 {object} LogsResponse
// @Failure 400 {object} models.ErrorResponse
// @Router /logs [get]
func (h *LogHandlers) Show(w http.ResponseWriter, r *http.Request) {
	name, path, ok := h.pathFor(w, r)
	if !ok {
		return
	}
	level := r.URL.Query().Get("level")
	if !logview.ValidLevel(level) {
		writeError(w, http.StatusBadRequest, "unknown level "+strconv.Quote(level))
		return
	}
	n := logview.DefaultLines
	if s := r.URL.Query().Get("lines"); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil || v < 1 {
			writeError(w, http.StatusBadRequest, "lines must be a positive integer")
			return
		}
		n = v
	}
	lines, err := logview.Tail(path, n)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		logger.Error("Reading log file %s: %v", path, err)
		writeError(w, http.StatusInternalServerError, "Failed to read log file")
		return
	}
	lines = logview.FilterByLevel(lines, level)
	if lines == nil {
		lines = []string{}
	}
	if level == "" {
		level = logview.AllLevels
	}
	writeJSON(w, http.StatusOK, LogsResponse{File: name, Level: level, Lines: lines})
}

// Clear truncates a log file.
// @Summary Clear logs
// @Tags Logs
// @Produce json
// @Param file query string false "proxy (default) or app"
// @Success 200 {object} models.MessageResponse
// @Router /logs [delete]
func (h *LogHandlers) Clear(w http.ResponseWriter, r *http.Request) {
	name, path, ok := h.pathFor(w, r)
	if !ok {
		return
	}
	if err := logview.Clear(path); err != nil {
		logger.Error("Clearing log file %s: %v", path, err)
		writeError(w, http.StatusInternalServerError, "Failed to clear log file")
		return
	}
	logger.Info("All %s logs cleared via API", name)
	writeJSON(w, http.StatusOK, map[string]string{"message": name + " log cleared"})
}
