// Package middleware provides HTTP middleware for the exporter's endpoints.
package middleware

import (
	"net/http"
	"time"

	"go.uber.org/zap"
)

// LogMiddleware logs one line per request at debug level; scrapes are
// frequent and would drown everything else at info.
func LogMiddleware(logger *zap.SugaredLogger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			lrw := &loggingResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(lrw, r)

			duration := time.Since(start)

			logger.Debugf(
				"method=%s uri=%s status=%d size=%d duration=%s remote=%s agent=%q",
				r.Method, r.RequestURI, lrw.statusCode, lrw.size, duration, r.RemoteAddr, r.UserAgent(),
			)
			if lrw.statusCode >= http.StatusInternalServerError {
				logger.Errorf("request %s %s failed with status %d", r.Method, r.RequestURI, lrw.statusCode)
			}
		})
	}
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
	size       int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Write(b []byte) (int, error) {
	n, err := lrw.ResponseWriter.Write(b)
	lrw.size += n
	return n, err
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (lrw *loggingResponseWriter) Unwrap() http.ResponseWriter {
	return lrw.ResponseWriter
}
