package handlers

import (
	"github.com/go-chi/chi/v5"
)

func RegisterLogRoutes(r chi.Router, paths LogPaths) {
	h := &LogHandlers{paths: paths}
	r.Get("/logs", h.Show)
	r.Delete("/logs", h.Clear)
}
