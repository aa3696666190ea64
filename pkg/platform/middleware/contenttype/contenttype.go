// Package contenttype rejects mutating requests whose body is not JSON
// before any handler decodes it.
package contenttype

import (
	"mime"
	"net/http"

	dErrors "parapet/pkg/domain-errors"
	"parapet/pkg/platform/httputil"
)

// RequireJSON enforces Content-Type application/json on requests that carry a
// body. GET, HEAD, and bodyless mutations (e.g. POST /risks/{id}/submit) pass
// through untouched.
func RequireJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.ContentLength == 0 {
			next.ServeHTTP(w, r)
			return
		}

		contentType := r.Header.Get("Content-Type")
		mediaType, _, err := mime.ParseMediaType(contentType)
		if err != nil || mediaType != "application/json" {
			httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "Content-Type must be application/json"))
			return
		}

		next.ServeHTTP(w, r)
	})
}
