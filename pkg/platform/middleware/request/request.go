// Package request carries per-request correlation and access logging.
package request

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/CommandOSSLabs/personal-data-wallet-sub010/pkg/requestcontext"
)

const HeaderRequestID = "X-Request-ID"

// RequestID reuses an inbound X-Request-ID or mints one, echoes it on the
// response and stores it in the context.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(HeaderRequestID)
		if id == "" || len(id) > 128 {
			id = uuid.NewString()
		}
		w.Header().Set(HeaderRequestID, id)
		ctx := requestcontext.WithRequestID(r.Context(), id)
		ctx = requestcontext.WithTime(ctx, time.Now())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// AccessLog logs one line per request after it completes.
func AccessLog(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)

			ctx := r.Context()
			level := slog.LevelInfo
			if rec.status >= http.StatusInternalServerError {
				level = slog.LevelError
			}
			logger.Log(ctx, level, "http request",
				"request_id", requestcontext.RequestID(ctx),
				"method", r.Method,
				"path", r.URL.Path,
				"status", rec.status,
				"duration", time.Since(requestcontext.Now(ctx)),
			)
		})
	}
}
