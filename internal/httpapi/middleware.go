package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/septivank/asset-tracker/internal/auth"
	"github.com/septivank/asset-tracker/internal/logging"
	"go.uber.org/zap"
)

// requestLogger logs one line per request
func requestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)

			logging.WithRequestID(logger, middleware.GetReqID(r.Context())).Info("request handled",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("duration", time.Since(start)),
			)
		})
	}
}

// resolveCaller binds the session's user row to a caller. It runs after
// auth.RequireSession.
func (a *API) resolveCaller(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		session, ok := auth.SessionFrom(r.Context())
		if !ok {
			a.respondError(w, r, auth.ErrMissingToken)
			return
		}

		caller, err := a.callers.FromSession(r.Context(), session)
		if err != nil {
			a.respondError(w, r, err)
			return
		}

		logging.WithRequestID(a.logger, middleware.GetReqID(r.Context())).Debug("caller resolved",
			zap.String("user_id", caller.UserID.String()),
			zap.String("role", caller.Role.Name()),
		)
		next.ServeHTTP(w, r.WithContext(auth.WithCaller(r.Context(), caller)))
	})
}
