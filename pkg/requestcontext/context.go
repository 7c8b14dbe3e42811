// Package requestcontext provides HTTP-independent context accessors for
// request-scoped values.
//
// Middleware sets the values; services and the decryption pipeline read them
// for log correlation and consistent timestamps:
//
//	requestID := requestcontext.RequestID(ctx)
//	now := requestcontext.Now(ctx)
package requestcontext

import (
	"context"
	"time"

	"github.com/CommandOSSLabs/personal-data-wallet-sub010/pkg/domain"
)

type (
	requestIDKey   struct{}
	requestTimeKey struct{}
	callerKey      struct{}
)

// WithRequestID stores the correlation id for the current request.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

// RequestID returns the correlation id, or "".
func RequestID(ctx context.Context) string {
	if v, ok := ctx.Value(requestIDKey{}).(string); ok {
		return v
	}
	return ""
}

// WithTime pins "now" for the request.
func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, requestTimeKey{}, t)
}

// Now returns the request-scoped time, falling back to time.Now.
func Now(ctx context.Context) time.Time {
	if t, ok := ctx.Value(requestTimeKey{}).(time.Time); ok {
		return t
	}
	return time.Now()
}

// WithCaller records the wallet address a request acts for.
func WithCaller(ctx context.Context, addr domain.Address) context.Context {
	return context.WithValue(ctx, callerKey{}, addr)
}

// Caller returns the caller address and whether one was set.
func Caller(ctx context.Context) (domain.Address, bool) {
	addr, ok := ctx.Value(callerKey{}).(domain.Address)
	return addr, ok
}
