// Package requestcontext carries request-scoped values between the HTTP
// middleware that captures them and the services that consume them, without
// either side importing net/http.
//
// Middleware writes, services read:
//
//	ctx = requestcontext.WithRequestID(ctx, requestID)
//	...
//	log.InfoContext(ctx, "approved", "request_id", requestcontext.RequestID(ctx))
//
// Tests inject values directly, most importantly the clock:
//
//	ctx = requestcontext.WithTime(ctx, fixedTime)
//	ctx = requestcontext.WithActorID(ctx, reviewerID)
//
// Every mutation in a request reads its timestamp from Now(ctx), so rows
// touched together carry identical times and tests can freeze the clock.
package requestcontext

import (
	"context"
	"time"

	id "parapet/pkg/domain"
)

type (
	actorKey     struct{}
	clientIPKey  struct{}
	userAgentKey struct{}
	requestIDKey struct{}
	clockKey     struct{}
)

func value[T any](ctx context.Context, key any) T {
	v, _ := ctx.Value(key).(T)
	return v
}

// ActorID returns the attributed actor, or the zero UserID for anonymous
// requests.
func ActorID(ctx context.Context) id.UserID {
	return value[id.UserID](ctx, actorKey{})
}

// WithActorID records who is acting, for audit attribution.
func WithActorID(ctx context.Context, actorID id.UserID) context.Context {
	return context.WithValue(ctx, actorKey{}, actorID)
}

// ClientIP returns the client address captured at ingress, or "".
func ClientIP(ctx context.Context) string {
	return value[string](ctx, clientIPKey{})
}

// UserAgent returns the normalized user-agent summary, or "".
func UserAgent(ctx context.Context) string {
	return value[string](ctx, userAgentKey{})
}

// WithClientMetadata records the client address and user-agent summary.
func WithClientMetadata(ctx context.Context, clientIP, userAgent string) context.Context {
	ctx = context.WithValue(ctx, clientIPKey{}, clientIP)
	return context.WithValue(ctx, userAgentKey{}, userAgent)
}

// RequestID returns the request correlation ID, or "".
func RequestID(ctx context.Context) string {
	return value[string](ctx, requestIDKey{})
}

// WithRequestID records the request correlation ID.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

// Now returns the request's frozen timestamp. Outside a request (workers,
// tests that never set one) it falls back to the wall clock.
func Now(ctx context.Context) time.Time {
	if t, ok := ctx.Value(clockKey{}).(time.Time); ok {
		return t
	}
	return time.Now()
}

// WithTime pins the timestamp Now returns for this context.
func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, clockKey{}, t)
}
