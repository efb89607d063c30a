package documents

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/gescom-erp/gescom/internal/authz"
	"github.com/gescom-erp/gescom/internal/billing/invoices"
	"github.com/gescom-erp/gescom/internal/billing/quotes"
	"github.com/gescom-erp/gescom/internal/platform/httpx"
)

// Handler serves rendered PDF views of quotes and invoices.
type Handler struct {
	logger   *slog.Logger
	quotes   *quotes.Service
	invoices *invoices.Service
	renderer Renderer
	cache    *RenderCache
	authz    authz.Middleware
}

func NewHandler(logger *slog.Logger, q *quotes.Service, inv *invoices.Service, renderer Renderer, cache *RenderCache, authz authz.Middleware) *Handler {
	return &Handler{logger: logger, quotes: q, invoices: inv, renderer: renderer, cache: cache, authz: authz}
}

func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.authz.RequireAny("billing.quote.view"))
		r.Get("/quotes/{id}/pdf", h.QuotePDF)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.authz.RequireAny("billing.invoice.view"))
		r.Get("/invoices/{id}/pdf", h.InvoicePDF)
	})
}

func (h *Handler) QuotePDF(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "numeric id expected")
		return
	}

	quote, err := h.quotes.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}

	if pdf, ok := h.cache.Get(r.Context(), "quote", id, quote.UpdatedAt); ok {
		servePDF(w, quote.Reference, pdf)
		return
	}

	html, err := QuoteHTML(quote)
	if err != nil {
		h.logger.Error("build quote document", slog.Any("error", err), slog.Int64("id", id))
		httpx.Problem(w, http.StatusInternalServerError, "Render Failed", "could not build document")
		return
	}
	pdf, err := h.renderer.RenderHTML(r.Context(), html)
	if err != nil {
		h.logger.Error("render quote pdf", slog.Any("error", err), slog.Int64("id", id))
		httpx.Problem(w, http.StatusBadGateway, "Render Failed", "document rendering is unavailable")
		return
	}
	h.cache.Set(r.Context(), "quote", id, quote.UpdatedAt, pdf)
	servePDF(w, quote.Reference, pdf)
}

func (h *Handler) InvoicePDF(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "numeric id expected")
		return
	}

	inv, err := h.invoices.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}

	if pdf, ok := h.cache.Get(r.Context(), "invoice", id, inv.UpdatedAt); ok {
		servePDF(w, inv.Reference, pdf)
		return
	}

	html, err := InvoiceHTML(inv)
	if err != nil {
		h.logger.Error("build invoice document", slog.Any("error", err), slog.Int64("id", id))
		httpx.Problem(w, http.StatusInternalServerError, "Render Failed", "could not build document")
		return
	}
	pdf, err := h.renderer.RenderHTML(r.Context(), html)
	if err != nil {
		h.logger.Error("render invoice pdf", slog.Any("error", err), slog.Int64("id", id))
		httpx.Problem(w, http.StatusBadGateway, "Render Failed", "document rendering is unavailable")
		return
	}
	h.cache.Set(r.Context(), "invoice", id, inv.UpdatedAt, pdf)
	servePDF(w, inv.Reference, pdf)
}

func servePDF(w http.ResponseWriter, reference string, pdf []byte) {
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%s.pdf", reference))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(pdf)
}
