// Package recovery converts handler panics into JSON 500 responses so a
// single bad request cannot take the process down.
package recovery

import (
	"log/slog"
	"net/http"
	"runtime/debug"

	dErrors "parapet/pkg/domain-errors"
	"parapet/pkg/platform/httputil"
	"parapet/pkg/requestcontext"
)

// Middleware recovers panics, logs the stack, and writes the standard error
// envelope. http.ErrAbortHandler is re-raised per its contract.
func Middleware(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}

				ctx := r.Context()
				logger.ErrorContext(ctx, "panic recovered",
					"panic", rec,
					"method", r.Method,
					"path", r.URL.Path,
					"request_id", requestcontext.RequestID(ctx),
					"stack", string(debug.Stack()),
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeInternal, "internal server error"))
			}()

			next.ServeHTTP(w, r)
		})
	}
}
