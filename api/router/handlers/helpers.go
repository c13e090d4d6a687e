package handlers

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"streamline/logger"
	"streamline/models"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("Error encoding JSON response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, models.ErrorResponse{Message: message})
}

func writeErrorKind(w http.ResponseWriter, status int, kind, message string) {
	writeJSON(w, status, models.ErrorResponse{Message: message, Kind: kind})
}

// decodeJSON reads r's body into v. An empty body leaves v untouched when allowEmpty is set.
func decodeJSON(r *http.Request, v interface{}, allowEmpty bool) error {
	defer r.Body.Close()
	err := json.NewDecoder(r.Body).Decode(v)
	if err == io.EOF && allowEmpty {
		return nil
	}
	if err != nil {
		return fmt.Errorf("invalid request payload: %w", err)
	}
	return nil
}
