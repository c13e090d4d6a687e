package handlers

import (
	"github.com/go-chi/chi/v5"
)

func RegisterSettingsRoutes(r chi.Router) {
	r.Route("/settings", func(r chi.Router) {
		r.Get("/", GetSettingsHandler)
		r.Put("/", SaveSettingsHandler)
	})
}
