package middleware

import (
	"fmt"
	"net/http"
)

// MaxBody limits the bodies of POST, PUT and PATCH requests to limit bytes.
// A declared Content-Length over the limit is answered with 413 before the
// handler runs; a body that only turns out too long while being read fails
// with *http.MaxBytesError in the handler.
func MaxBody(limit int64) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodPost, http.MethodPut, http.MethodPatch:
			default:
				next.ServeHTTP(w, r)
				return
			}

			if r.ContentLength > limit {
				writeError(w, http.StatusRequestEntityTooLarge,
					fmt.Sprintf("request body exceeds %d bytes", limit))
				return
			}
			r.Body = http.MaxBytesReader(w, r.Body, limit)
			next.ServeHTTP(w, r)
		})
	}
}
