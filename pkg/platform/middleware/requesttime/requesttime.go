// Package requesttime freezes one timestamp per request. Everything a request
// touches reads the same clock through requestcontext.Now, so a mutation and
// the audit events describing it carry identical times.
package requesttime

import (
	"net/http"
	"time"

	"parapet/pkg/requestcontext"
)

// Middleware stamps the request's arrival time into its context.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := requestcontext.WithTime(r.Context(), time.Now())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
