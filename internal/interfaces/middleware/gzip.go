package middleware

import (
	"net/http"

	"github.com/klauspost/compress/gzhttp"
)

// Gzip compresses responses for clients that accept it. It wraps the whole
// router rather than running as a gin handler.
func Gzip(next http.Handler) http.Handler {
	return gzhttp.GzipHandler(next)
}
