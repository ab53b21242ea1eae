package httpapi

import (
	"net/http"
	"time"

	"github.com/akulikov/stashkeeper/internal/common"
	"github.com/google/uuid"
)

// statusRecorder captures the status code written by a handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// requestIDMiddleware assigns a request id unless the client sent one, and
// echoes it back in the response.
func (s *Server) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(common.RequestIDHeaderName)
		if id == "" {
			id = uuid.New().String()
			r.Header.Set(common.RequestIDHeaderName, id)
		}
		w.Header().Set(common.RequestIDHeaderName, id)
		next.ServeHTTP(w, r)
	})
}

// loggingMiddleware logs one line per request: method, path, status,
// duration, request id.
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		s.logger.Info(r.Context(), "request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start).String(),
			"request_id", r.Header.Get(common.RequestIDHeaderName),
		)
	})
}
