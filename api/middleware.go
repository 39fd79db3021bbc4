package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/warp/bookkeeping/ledger"
	"github.com/warp/bookkeeping/logger"
)

// requestLogger puts a request-scoped logger into the context and logs
// every request once it completes. Must run after middleware.RequestID.
func requestLogger(log zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			reqLog := log.With().Str("request_id", middleware.GetReqID(r.Context())).Logger()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r.WithContext(logger.WithContext(r.Context(), reqLog)))

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			evt := reqLog.Info()
			if status >= http.StatusInternalServerError {
				evt = reqLog.Warn()
			}
			evt.Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", status).
				Int("bytes", ww.BytesWritten()).
				Dur("duration", time.Since(start)).
				Str("remote_addr", r.RemoteAddr).
				Msg("HTTP request")
		})
	}
}

// recoverer turns a panic into a 500 envelope and keeps the server running.
func recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}
			panicLog := logger.FromContext(r.Context())
			panicLog.Error().
				Interface("panic", rec).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Msg("Panic recovered")

			writeEnvelope(w, http.StatusInternalServerError, Envelope{
				Status:  statusError,
				Message: "Internal server error",
				Error:   &ErrorBody{Code: "internal_error"},
			})
		}()

		next.ServeHTTP(w, r)
	})
}

// businessScope validates {businessID} and stores it for businessFrom.
func businessScope(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := chi.URLParam(r, "businessID")
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			writeError(w, r, &ledger.ValidationError{Field: "businessID", Message: "must be a positive integer"})
			return
		}
		ctx := context.WithValue(r.Context(), businessKey{}, ledger.BusinessID(id))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
