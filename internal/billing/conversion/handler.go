package conversion

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/gescom-erp/gescom/internal/authz"
	"github.com/gescom-erp/gescom/internal/platform/httpx"
)

type Handler struct {
	logger  *slog.Logger
	service *Service
	authz   authz.Middleware
}

func NewHandler(logger *slog.Logger, service *Service, authz authz.Middleware) *Handler {
	return &Handler{logger: logger, service: service, authz: authz}
}

// Convert answers 201 when this call created the invoice and 200 when the
// quote was already converted and the existing invoice is returned.
func (h *Handler) Convert(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "numeric id expected")
		return
	}

	inv, created, err := h.service.Convert(r.Context(), id)
	if err != nil {
		h.logger.Error("convert quote", slog.Any("error", err), slog.Int64("quote_id", id))
		httpx.RespondError(w, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	httpx.JSON(w, status, inv)
}
