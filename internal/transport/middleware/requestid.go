package middleware

import (
	"net/http"

	"github.com/frahmantamala/moviemix/pkg/logger"
	"github.com/go-chi/chi/middleware"
	"github.com/google/uuid"
)

const HeaderTraceID = "X-Trace-ID"

// RequestID reuses an inbound trace id, or chi's request id, or mints one,
// and scopes the request logger with it.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		traceID := r.Header.Get(HeaderTraceID)
		if traceID == "" {
			traceID = middleware.GetReqID(r.Context())
		}
		if traceID == "" {
			traceID = uuid.NewString()
		}

		ctx := logger.With(r.Context(), "traceID", traceID)
		w.Header().Set(HeaderTraceID, traceID)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
