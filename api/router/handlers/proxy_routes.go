package handlers

import (
	"streamline/core"

	"github.com/go-chi/chi/v5"
)

func RegisterProxyRoutes(r chi.Router, svc *core.ProxyService) {
	h := &ProxyHandlers{svc: svc}
	r.Route("/proxy", func(r chi.Router) {
		r.Get("/status", h.Status)
		r.Post("/start", h.Start)
		r.Post("/stop", h.Stop)
		r.Get("/runs", h.Runs)
	})
}
