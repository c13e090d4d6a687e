package handlers

import (
	"errors"
	"net/http"
	"streamline/database"
	"streamline/logger"
	"streamline/models"
	"strings"
)

func ruleErrorStatus(err error) int {
	switch {
	case errors.Is(err, database.ErrEmptyPattern):
		return http.StatusBadRequest
	case errors.Is(err, database.ErrRuleNotFound):
		return http.StatusNotFound
	case errors.Is(err, database.ErrRuleExists):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// ListRulesHandler returns every rule in store order, or one rule when ?pattern= is given.
// @Summary List block rules
// @Tags Rules
// @Produce json
// @Param pattern query string false "Return only this rule"
// @Success 200 {array} models.BlockRule
// @Failure 404 {object} models.ErrorResponse
// @Router /rules [get]
func ListRulesHandler(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Has("pattern") {
		rule, err := database.GetBlockRule(r.URL.Query().Get("pattern"))
		if err != nil {
			writeError(w, ruleErrorStatus(err), err.Error())
			return
		}
		writeJSON(w, http.StatusOK, rule)
		return
	}
	rules, err := database.GetAllBlockRules()
	if err != nil {
		logger.Error("ListRulesHandler: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to retrieve rules")
		return
	}
	if rules == nil {
		rules = []models.BlockRule{}
	}
	writeJSON(w, http.StatusOK, rules)
}

// CreateRuleHandler adds a rule. Rules start inactive unless "active" is true.
// @Summary Add a block rule
// @Tags Rules
// @Accept json
// @Produce json
// @Param rule body models.BlockRuleInput true "Rule"
// @Success 201 {object} models.BlockRule
// @Failure 400 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Router /rules [post]
func CreateRuleHandler(w http.ResponseWriter, r *http.Request) {
	var in models.BlockRuleInput
	if err := decodeJSON(r, &in, false); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	rule := models.BlockRule{Pattern: in.Pattern, Description: strings.TrimSpace(in.Description)}
	if in.Active != nil {
		rule.Active = *in.Active
	}
	if err := database.AddBlockRule(rule); err != nil {
		writeError(w, ruleErrorStatus(err), err.Error())
		return
	}
	created, err := database.GetBlockRule(rule.Pattern)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	logger.Info("Rule %q added via API", rule.Pattern)
	writeJSON(w, http.StatusCreated, created)
}

// UpdateRuleHandler edits the rule named by ?pattern=. The body may rename it.
// An omitted "active" resets the rule to inactive.
// @Summary Edit a block rule
// @Tags Rules
// @Accept json
// @Produce json
// @Param pattern query string true "Current pattern"
// @Param rule body models.BlockRuleInput true "New values"
// @Success 200 {object} models.BlockRule
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Router /rules [put]
func UpdateRuleHandler(w http.ResponseWriter, r *http.Request) {
	if !r.URL.Query().Has("pattern") {
		writeError(w, http.StatusBadRequest, "query parameter 'pattern' is required")
		return
	}
	oldPattern := r.URL.Query().Get("pattern")
	var in models.BlockRuleInput
	if err := decodeJSON(r, &in, false); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	rule := models.BlockRule{Pattern: in.Pattern, Description: strings.TrimSpace(in.Description)}
	if in.Active != nil {
		rule.Active = *in.Active
	}
	if err := database.UpdateBlockRule(oldPattern, rule); err != nil {
		writeError(w, ruleErrorStatus(err), err.Error())
		return
	}
	updated, err := database.GetBlockRule(rule.Pattern)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	logger.Info("Rule %q updated via API (now %q)", oldPattern, rule.Pattern)
	writeJSON(w, http.StatusOK, updated)
}

// DeleteRulesHandler removes the listed patterns.
// @Summary Delete block rules
// @Tags Rules
// @Accept json
// @Produce json
// @Param patterns body models.BlockRulePatterns true "Patterns"
// @Success 200 {object} map[string]int64
// @Router /rules [delete]
func DeleteRulesHandler(w http.ResponseWriter, r *http.Request) {
	var in models.BlockRulePatterns
	if err := decodeJSON(r, &in, false); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	n, err := database.DeleteBlockRules(in.Patterns...)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	logger.Info("Deleted %d rule(s) via API", n)
	writeJSON(w, http.StatusOK, map[string]int64{"deleted": n})
}

// EnableRulesHandler activates the listed patterns.
// @Summary Enable block rules
// @Tags Rules
// @Accept json
// @Produce json
// @Param patterns body models.BlockRulePatterns true "Patterns"
// @Success 200 {object} map[string]int64
// @Router /rules/enable [post]
func EnableRulesHandler(w http.ResponseWriter, r *http.Request) {
	setRulesActive(w, r, true)
}

// DisableRulesHandler deactivates the listed patterns.
// @Summary Disable block rules
// @Tags Rules
// @Accept json
// @Produce json
// @Param patterns body models.BlockRulePatterns true "Patterns"
// @Success 200 {object} map[string]int64
// @Router /rules/disable [post]
func DisableRulesHandler(w http.ResponseWriter, r *http.Request) {
	setRulesActive(w, r, false)
}

func setRulesActive(w http.ResponseWriter, r *http.Request, active bool) {
	var in models.BlockRulePatterns
	if err := decodeJSON(r, &in, false); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	n, err := database.SetBlockRulesActive(active, in.Patterns...)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"updated": n})
}
