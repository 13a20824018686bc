// Package requestcontext provides HTTP-independent context accessors for
// request-scoped values.
//
// Middleware sets these values; services consume them. Keeping the package
// free of net/http lets the engine read the caller's principal without
// pulling in transport code.
//
// Usage in services (read values):
//
//	principal := requestcontext.Principal(ctx)
//	now := requestcontext.Now(ctx)
//
// Usage in tests (inject values):
//
//	ctx = requestcontext.WithPrincipal(ctx, p)
//	ctx = requestcontext.WithTime(ctx, fixedTime)
package requestcontext

import (
	"context"
	"time"

	id "bunkhouse/pkg/domain"
)

// PrincipalInfo is the opaque caller identity supplied by the external
// identity provider: who is calling and which farm they administer. The
// engine never interprets it beyond tenant scoping and notification routing.
type PrincipalInfo struct {
	ID      id.PrincipalID
	FarmID  id.FarmID
	Subject string
	Role    string
}

// Context key types (unexported for encapsulation).
type (
	principalKey   struct{}
	requestIDKey   struct{}
	requestTimeKey struct{}
)

// Principal retrieves the caller's principal from the context.
// Returns the zero value if not set.
func Principal(ctx context.Context) PrincipalInfo {
	if p, ok := ctx.Value(principalKey{}).(PrincipalInfo); ok {
		return p
	}
	return PrincipalInfo{}
}

// WithPrincipal injects a principal into the context.
func WithPrincipal(ctx context.Context, p PrincipalInfo) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// RequestID retrieves the request ID from the context.
func RequestID(ctx context.Context) string {
	if reqID, ok := ctx.Value(requestIDKey{}).(string); ok {
		return reqID
	}
	return ""
}

// WithRequestID injects a request ID into the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

// Now retrieves the request-scoped time from context.
// Falls back to time.Now() for non-HTTP contexts (repair ticker, tests that
// don't pin the clock).
func Now(ctx context.Context) time.Time {
	if t, ok := ctx.Value(requestTimeKey{}).(time.Time); ok {
		return t
	}
	return time.Now()
}

// WithTime injects a specific time into a context. Useful for service unit
// tests and for keeping one consistent timestamp across a repair batch.
func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, requestTimeKey{}, t)
}
