package server

import (
	"net/http"
	"time"

	"github.com/chainguard-dev/clog"
	"github.com/google/uuid"

	"github.com/tognete/codi/internal/metrics"
)

// requestIDHeader carries the id assigned to each request.
const requestIDHeader = "X-Request-Id"

// statusRecorder captures the status code written by a handler.
type statusRecorder struct {
	http.ResponseWriter
	code int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.code = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// instrument tags the request with an id and a request-scoped logger, then
// logs and records the outcome under route.
func instrument(route string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)

		log := clog.FromContext(r.Context()).With("request_id", id, "method", r.Method, "route", route)
		ctx := clog.WithLogger(r.Context(), log)

		rec := &statusRecorder{ResponseWriter: w, code: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rec, r.WithContext(ctx))
		d := time.Since(start)

		metrics.RecordHTTP(route, rec.code, d)
		log.Info("request handled", "code", rec.code, "duration", d)
	})
}

// recoverPanics turns a handler panic into a 500 response.
func recoverPanics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if v := recover(); v != nil {
				if v == http.ErrAbortHandler {
					panic(v)
				}
				clog.FromContext(r.Context()).Error("handler panic", "panic", v, "path", r.URL.Path)
				writeDetail(w, http.StatusInternalServerError, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}
