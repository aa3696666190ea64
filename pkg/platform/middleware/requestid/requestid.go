// Package requestid assigns a correlation ID to every request. The ID is
// taken from the X-Request-ID header when a trusted proxy already minted one,
// generated otherwise, and echoed back on the response so clients can quote
// it in support tickets.
package requestid

import (
	"net/http"

	"github.com/google/uuid"

	"parapet/pkg/requestcontext"
)

// Header is the canonical request ID header.
const Header = "X-Request-ID"

// Middleware ensures a request ID is present in the context and response.
// This should run first in the chain so every log line and audit event
// downstream carries the correlation ID.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(Header)
		if requestID == "" {
			requestID = uuid.NewString()
		}

		w.Header().Set(Header, requestID)
		ctx := requestcontext.WithRequestID(r.Context(), requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
