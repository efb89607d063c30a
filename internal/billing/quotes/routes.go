package quotes

import (
	"github.com/go-chi/chi/v5"
)

func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.authz.RequireAny("billing.quote.view"))
		r.Get("/quotes", h.List)
		r.Get("/quotes/{id}", h.Show)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.authz.RequireAll("billing.quote.create"))
		r.Post("/quotes", h.Create)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.authz.RequireAll("billing.quote.edit"))
		r.Put("/quotes/{id}", h.Update)
		r.Post("/quotes/{id}/status", h.ChangeStatus)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.authz.RequireAll("billing.quote.delete"))
		r.Delete("/quotes/{id}", h.Delete)
	})
}
