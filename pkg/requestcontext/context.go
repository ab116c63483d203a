// Package requestcontext provides transport-independent accessors for
// request-scoped values.
//
// The registry core consumes three values the execution environment supplies
// per call: the caller principal, the current ledger height, and the request
// time. Middleware sets them at the HTTP boundary; tests inject them
// directly. Keeping this package free of net/http lets services import only
// what they need.
package requestcontext

import (
	"context"
	"time"

	"provenance/pkg/domain"
)

type (
	callerKey      struct{}
	heightKey      struct{}
	requestIDKey   struct{}
	requestTimeKey struct{}
	clientIPKey    struct{}
	userAgentKey   struct{}
)

// Caller retrieves the authenticated caller principal from the context.
// Returns the zero principal if not set.
func Caller(ctx context.Context) domain.Principal {
	if p, ok := ctx.Value(callerKey{}).(domain.Principal); ok {
		return p
	}
	return ""
}

// WithCaller injects the caller principal into the context.
func WithCaller(ctx context.Context, caller domain.Principal) context.Context {
	return context.WithValue(ctx, callerKey{}, caller)
}

// Height retrieves the ledger height for this call. Falls back to zero when
// unset; every state-changing path is reached through middleware or a test
// that sets it.
func Height(ctx context.Context) uint64 {
	if h, ok := ctx.Value(heightKey{}).(uint64); ok {
		return h
	}
	return 0
}

// WithHeight injects the ledger height into the context.
func WithHeight(ctx context.Context, height uint64) context.Context {
	return context.WithValue(ctx, heightKey{}, height)
}

// RequestID retrieves the request ID from the context.
func RequestID(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey{}).(string); ok {
		return id
	}
	return ""
}

// WithRequestID injects a request ID into the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

// Now retrieves the request-scoped time from context. Falls back to
// time.Now() for non-HTTP contexts such as workers and tests.
func Now(ctx context.Context) time.Time {
	if t, ok := ctx.Value(requestTimeKey{}).(time.Time); ok {
		return t
	}
	return time.Now()
}

// WithTime injects a specific time into a context.
func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, requestTimeKey{}, t)
}

// ClientIP retrieves the client IP address from the context.
func ClientIP(ctx context.Context) string {
	if ip, ok := ctx.Value(clientIPKey{}).(string); ok {
		return ip
	}
	return ""
}

// UserAgent retrieves the client user agent family from the context.
func UserAgent(ctx context.Context) string {
	if ua, ok := ctx.Value(userAgentKey{}).(string); ok {
		return ua
	}
	return ""
}

// WithClientMetadata injects client IP and user agent into a context.
// Useful for service unit tests that skip the HTTP middleware chain.
func WithClientMetadata(ctx context.Context, clientIP, userAgent string) context.Context {
	ctx = context.WithValue(ctx, clientIPKey{}, clientIP)
	ctx = context.WithValue(ctx, userAgentKey{}, userAgent)
	return ctx
}
