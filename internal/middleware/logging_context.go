package middleware

import (
	"net/http"

	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"flashdetail/pkg/logging/logging"
)

// RequestIDHeader echoes the request ID back so callers can quote it when
// reporting a bad resolution.
const RequestIDHeader = "X-Request-Id"

// LoggingContext derives a request logger from baseLogger and stores it in
// the request context. Must run after chi's RequestID and RealIP.
func LoggingContext(baseLogger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fields := []zap.Field{
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
			}
			if reqID := chimw.GetReqID(r.Context()); reqID != "" {
				w.Header().Set(RequestIDHeader, reqID)
				fields = append(fields, zap.String("request_id", reqID))
			}
			if r.RemoteAddr != "" {
				fields = append(fields, zap.String("remote_ip", r.RemoteAddr))
			}
			if ua := r.UserAgent(); ua != "" {
				fields = append(fields, zap.String("user_agent", ua))
			}

			ctx := logging.WithLogger(r.Context(), baseLogger.With(fields...))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
