package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"streamline/core"
	"streamline/database"
	"streamline/logger"
	"streamline/models"
)

// ProxyHandlers exposes the proxy lifecycle over HTTP.
type ProxyHandlers struct {
	svc *core.ProxyService
}

// startErrorStatus maps a start failure onto an HTTP status.
func startErrorStatus(err error) int {
	kind, ok := core.StartErrorKindOf(err)
	if !ok {
		if errors.Is(err, core.ErrInvalidPort) {
			return http.StatusBadRequest
		}
		return http.StatusInternalServerError
	}
	switch kind {
	case core.NoActiveRules:
		return http.StatusUnprocessableEntity
	case core.PortUnavailable, core.AlreadyRunning:
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

// Status reports whether a run is active.
// @Summary Proxy status
// @Tags Proxy
// @Produce json
// @Success 200 {object} models.ProxyStatusResponse
// @Router /proxy/status [get]
func (h *ProxyHandlers) Status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.Status())
}

// Start snapshots the active rules and starts the proxy.
// @Summary Start the proxy
// @Tags Proxy
// @Accept json
// @Produce json
// @Param request body models.ProxyStartRequest false "Port override"
// @Success 201 {object} models.ProxyStatusResponse
// @Failure 400 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse "PortUnavailable or AlreadyRunning"
// @Failure 422 {object} models.ErrorResponse "NoActiveRules"
// @Router /proxy/start [post]
func (h *ProxyHandlers) Start(w http.ResponseWriter, r *http.Request) {
	var req models.ProxyStartRequest
	if r.Body != nil {
		if err := decodeJSON(r, &req, true); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}
	run, err := h.svc.Start(req.Port)
	if err != nil {
		kind, _ := core.StartErrorKindOf(err)
		logger.Error("Proxy start via API failed: %v", err)
		writeErrorKind(w, startErrorStatus(err), string(kind), err.Error())
		return
	}
	logger.Info("Proxy run %s started via API on port %d", run.ID, run.Port)
	writeJSON(w, http.StatusCreated, h.svc.Status())
}

// Stop drains and stops the active run.
// @Summary Stop the proxy
// @Tags Proxy
// @Produce json
// @Success 200 {object} models.MessageResponse
// @Failure 409 {object} models.ErrorResponse
// @Router /proxy/stop [post]
func (h *ProxyHandlers) Stop(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Stop(r.Context()); err != nil {
		if errors.Is(err, core.ErrNotRunning) {
			writeError(w, http.StatusConflict, err.Error())
			return
		}
		logger.Error("Proxy stop via API failed: %v", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, models.MessageResponse{Message: "Proxy stopped."})
}

// Runs lists recent proxy runs, newest first.
// @Summary Proxy run history
// @Tags Proxy
// @Produce json
// @Param limit query int false "Maximum rows (default 20)"
// @Success 200 {array} models.ProxyRun
// @Router /proxy/runs [get]
func (h *ProxyHandlers) Runs(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}
	runs, err := database.GetRecentProxyRuns(limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if runs == nil {
		runs = []models.ProxyRun{}
	}
	writeJSON(w, http.StatusOK, runs)
}
