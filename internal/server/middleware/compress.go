package middleware

import (
	"net/http"

	"github.com/klauspost/compress/gzhttp"
)

// CompressMiddleware gzips responses for clients that accept it. Handlers
// that already set Content-Encoding are passed through untouched.
func CompressMiddleware(next http.Handler) http.Handler {
	return gzhttp.GzipHandler(next)
}
