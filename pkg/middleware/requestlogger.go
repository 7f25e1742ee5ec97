package middleware

import (
	"log/slog"
	"net/http"

	"github.com/AlejandroAndrade98/embipos/pkg/logger"
)

// RequestLogger builds a request-scoped logger enriched with correlation_id,
// user_id, session_id, trace_id and span_id and stores it in the context.
// Mount it after RequestLogging, Tracing and Auth.
func RequestLogger(base *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			if claims := ClaimsFromContext(ctx); claims != nil {
				ctx = logger.WithUserID(ctx, claims.UserID)
				ctx = logger.WithSessionID(ctx, claims.SessionID)
			}

			ctx = logger.NewContext(ctx, logger.WithContext(ctx, base))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
