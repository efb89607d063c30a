package invoices

import (
	"github.com/go-chi/chi/v5"
)

func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.authz.RequireAny("billing.invoice.view"))
		r.Get("/invoices", h.List)
		r.Get("/invoices/{id}", h.Show)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.authz.RequireAll("billing.invoice.create"))
		r.Post("/invoices", h.Create)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.authz.RequireAll("billing.invoice.edit"))
		r.Put("/invoices/{id}", h.Update)
		r.Post("/invoices/{id}/send", h.Send)
		r.Post("/invoices/{id}/cancel", h.Cancel)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.authz.RequireAll("billing.payment.record"))
		r.Post("/invoices/{id}/payments", h.RecordPayment)
		r.Delete("/payments/{id}", h.DeletePayment)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.authz.RequireAll("billing.invoice.delete"))
		r.Delete("/invoices/{id}", h.Delete)
	})
}
