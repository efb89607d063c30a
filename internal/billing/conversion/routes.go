package conversion

import (
	"github.com/go-chi/chi/v5"
)

func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.authz.RequireAll("billing.quote.convert"))
		r.Post("/quotes/{id}/convert-to-invoice", h.Convert)
	})
}
