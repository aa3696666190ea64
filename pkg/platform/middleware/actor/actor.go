// Package actor resolves bearer tokens into an actor identity for audit
// attribution. It is deliberately not an authorization layer: there are no
// roles or permissions, only "who did this" on the audit trail. Requests
// without a usable token proceed anonymously unless the route opts into
// RequireActor.
package actor

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	id "parapet/pkg/domain"
	dErrors "parapet/pkg/domain-errors"
	"parapet/pkg/platform/audit"
	"parapet/pkg/platform/httputil"
	"parapet/pkg/requestcontext"
)

// TokenValidator checks a bearer token and returns the actor it identifies.
type TokenValidator interface {
	ExtractActorID(tokenString string) (id.UserID, error)
}

// SecurityPublisher records failed authentication attempts.
type SecurityPublisher interface {
	Emit(ctx context.Context, event audit.SecurityEvent)
}

// Attribution extracts the actor from an optional Authorization header.
// A valid token stamps the actor ID into the request context; a missing or
// invalid token leaves it empty and the request continues. Invalid tokens are
// recorded on the security trail since repeated failures are a probe signal.
func Attribution(validator TokenValidator, security SecurityPublisher, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				next.ServeHTTP(w, r)
				return
			}

			ctx := r.Context()

			token, ok := strings.CutPrefix(authHeader, "Bearer ")
			if !ok {
				authFailed(ctx, security, logger, "malformed authorization header")
				next.ServeHTTP(w, r)
				return
			}

			actorID, err := validator.ExtractActorID(token)
			if err != nil {
				authFailed(ctx, security, logger, dErrors.MessageOf(err))
				next.ServeHTTP(w, r)
				return
			}

			ctx = requestcontext.WithActorID(ctx, actorID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireActor rejects anonymous requests with 401. Place it after
// Attribution on routes where the audit trail must name an actor.
func RequireActor(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			if requestcontext.ActorID(ctx).IsNil() {
				logger.WarnContext(ctx, "anonymous request rejected",
					"path", r.URL.Path,
					"request_id", requestcontext.RequestID(ctx),
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func authFailed(ctx context.Context, security SecurityPublisher, logger *slog.Logger, reason string) {
	logger.WarnContext(ctx, "actor attribution failed",
		"reason", reason,
		"request_id", requestcontext.RequestID(ctx),
	)
	if security == nil {
		return
	}
	security.Emit(ctx, audit.SecurityEvent{
		Subject:   requestcontext.ClientIP(ctx),
		Action:    string(audit.EventActorAuthFailed),
		Reason:    reason,
		IP:        requestcontext.ClientIP(ctx),
		UserAgent: requestcontext.UserAgent(ctx),
		RequestID: requestcontext.RequestID(ctx),
		Severity:  audit.SeverityWarning,
	})
}
