package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/septivank/asset-tracker/internal/auth"
	"github.com/septivank/asset-tracker/internal/logging"
	"github.com/septivank/asset-tracker/internal/service"
	"github.com/septivank/asset-tracker/internal/store"
	"github.com/septivank/asset-tracker/internal/store/rest"
	"github.com/septivank/asset-tracker/internal/validator"
	"go.uber.org/zap"
)

func respondJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}

// respondError maps err onto a status code. Only unexpected errors are
// logged; their message is not sent to the client.
func (a *API) respondError(w http.ResponseWriter, r *http.Request, err error) {
	var invalid *validator.ValidationError
	switch {
	case errors.As(err, &invalid), errors.Is(err, service.ErrInvalidInput):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, store.ErrNotFound):
		http.Error(w, "not found", http.StatusNotFound)
	case errors.Is(err, auth.ErrMissingToken), errors.Is(err, auth.ErrInvalidToken):
		http.Error(w, err.Error(), http.StatusUnauthorized)
	case errors.Is(err, service.ErrForbidden):
		http.Error(w, "forbidden", http.StatusForbidden)
	case errors.Is(err, rest.ErrStorageDisabled):
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
	default:
		logger := logging.WithRequestID(a.logger, middleware.GetReqID(r.Context()))
		logger = logging.WithUser(logger, auth.CallerFrom(r.Context()).UserID.String())
		logger.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}
