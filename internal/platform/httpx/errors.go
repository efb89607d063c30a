package httpx

import (
	"errors"
	"net/http"

	"github.com/gescom-erp/gescom/internal/billing/docref"
	"github.com/gescom-erp/gescom/internal/billing/shared"
)

// RespondError maps billing domain errors to HTTP problem responses.
// Unknown errors collapse to a bare 500 so storage details never leak to
// callers.
func RespondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, shared.ErrValidation):
		Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, shared.ErrNotFound):
		Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, shared.ErrInvalidState):
		Problem(w, http.StatusConflict, "Invalid State", err.Error())
	case errors.Is(err, docref.ErrExhausted):
		Problem(w, http.StatusServiceUnavailable, "Reference Exhausted", "retry the request")
	case errors.Is(err, shared.ErrConversionFailed):
		Problem(w, http.StatusInternalServerError, "Conversion Failed", "retry the request")
	default:
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
