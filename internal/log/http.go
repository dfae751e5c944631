package log

import (
	"net/http"

	"github.com/felixge/httpsnoop"
	"go.uber.org/zap"
)

// WrapHandler wraps an http.Handler, adding request logging and decorating
// its request context with the logger.
//
// Query strings are not logged since the OAuth callback carries the
// authorization code in them.
func WrapHandler(h http.Handler, logger *zap.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqLogger := logger.With(
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
		)

		r = r.WithContext(ToContext(r.Context(), reqLogger))

		metrics := httpsnoop.CaptureMetrics(h, w, r)

		reqLogger.Debug("handled",
			zap.Int("code", metrics.Code),
			zap.Int64("size", metrics.Written),
			zap.Duration("duration", metrics.Duration))
	})
}
