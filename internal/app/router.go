package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/gescom-erp/gescom/internal/billing/conversion"
	"github.com/gescom-erp/gescom/internal/billing/invoices"
	"github.com/gescom-erp/gescom/internal/billing/quotes"
	"github.com/gescom-erp/gescom/internal/documents"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger            *slog.Logger
	Config            *Config
	QuoteHandler      *quotes.Handler
	InvoiceHandler    *invoices.Handler
	ConversionHandler *conversion.Handler
	DocumentHandler   *documents.Handler
}

// NewRouter constructs the chi.Router with application defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger: params.Logger,
		Config: params.Config,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	params.QuoteHandler.MountRoutes(r)
	params.InvoiceHandler.MountRoutes(r)
	params.ConversionHandler.MountRoutes(r)
	params.DocumentHandler.MountRoutes(r)

	return r
}
