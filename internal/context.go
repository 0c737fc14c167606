package internal

import (
	"context"
	"time"
)

type ctxKey string

const ContextOwnerKey ctxKey = "owner"

// OwnerFromContext returns the identity (email or user id) of the caller, or "".
func OwnerFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if owner, ok := ctx.Value(ContextOwnerKey).(string); ok {
		return owner
	}
	return ""
}

func ContextWithOwner(ctx context.Context, owner string) context.Context {
	return context.WithValue(ctx, ContextOwnerKey, owner)
}

// WithTimeout returns a context with timeout, defaulting to 5 seconds if duration is zero or negative.
func WithTimeout(ctx context.Context, duration time.Duration) (context.Context, context.CancelFunc) {
	if duration <= 0 {
		duration = 5 * time.Second
	}
	return context.WithTimeout(ctx, duration)
}
