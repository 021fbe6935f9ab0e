package handlers

import (
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/quoteforge/quoting/internal/httpx"
	"github.com/quoteforge/quoting/internal/services"
)

// writeServiceError maps the service error taxonomy onto HTTP statuses:
// validation 400, not found 404, conflicts and lifecycle violations 409,
// incomplete quote data 422, persistence 500.
func writeServiceError(w http.ResponseWriter, err error) {
	if e, ok := services.IsValidationError(err); ok {
		details := map[string]any{"field": e.Field}
		if len(e.Suggestions) > 0 {
			details["suggestions"] = e.Suggestions
		}
		httpx.JSONError(w, http.StatusBadRequest, e.Message, details)
		return
	}
	if e, ok := services.IsNotFoundError(err); ok {
		httpx.JSONError(w, http.StatusNotFound, e.Error(), nil)
		return
	}
	if e, ok := services.IsConflictError(err); ok {
		httpx.JSONError(w, http.StatusConflict, e.Message, map[string]any{"resource": e.Resource})
		return
	}
	if e, ok := services.IsQuoteNotEditableError(err); ok {
		httpx.JSONError(w, http.StatusConflict, e.Error(), map[string]any{"status": string(e.Status)})
		return
	}
	if e, ok := services.IsInvalidTransitionError(err); ok {
		httpx.JSONError(w, http.StatusConflict, e.Error(),
			map[string]any{"from": string(e.From), "to": string(e.To)})
		return
	}
	if e, ok := services.IsIncompleteQuoteError(err); ok {
		httpx.JSONError(w, http.StatusUnprocessableEntity, e.Error(), map[string]any{"missing": e.Missing})
		return
	}
	logrus.WithError(err).Error("unhandled service error")
	httpx.JSONError(w, http.StatusInternalServerError, "internal_error", nil)
}
