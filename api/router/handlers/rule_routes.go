package handlers

import (
	"github.com/go-chi/chi/v5"
)

func RegisterRuleRoutes(r chi.Router) {
	r.Route("/rules", func(r chi.Router) {
		r.Get("/", ListRulesHandler)
		r.Post("/", CreateRuleHandler)
		r.Put("/", UpdateRuleHandler)
		r.Delete("/", DeleteRulesHandler)
		r.Post("/enable", EnableRulesHandler)
		r.Post("/disable", DisableRulesHandler)
	})
}
