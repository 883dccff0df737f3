// Package requestcontext provides HTTP-independent context accessors for
// request-scoped values.
//
// Middleware sets these values; services read them. Keeping the package free
// of net/http lets services import only what they need.
package requestcontext

import (
	"context"
	"time"

	id "datex/pkg/domain"
)

// Context key types (unexported for encapsulation).
type (
	participantIDKey struct{}
	requestIDKey     struct{}
	requestTimeKey   struct{}
	clientIPKey      struct{}
	userAgentKey     struct{}
)

// Exported context keys for tests that need context.WithValue directly.
var (
	ContextKeyParticipantID = participantIDKey{}
	ContextKeyRequestID     = requestIDKey{}
	ContextKeyRequestTime   = requestTimeKey{}
	ContextKeyClientIP      = clientIPKey{}
	ContextKeyUserAgent     = userAgentKey{}
)

// ParticipantID retrieves the authenticated participant from the context.
// Returns the zero value if not set.
func ParticipantID(ctx context.Context) id.ParticipantID {
	if pid, ok := ctx.Value(ContextKeyParticipantID).(id.ParticipantID); ok {
		return pid
	}
	return id.ParticipantID{}
}

// WithParticipantID injects a participant ID into the context.
func WithParticipantID(ctx context.Context, pid id.ParticipantID) context.Context {
	return context.WithValue(ctx, ContextKeyParticipantID, pid)
}

// RequestID retrieves the correlation ID assigned by middleware.
func RequestID(ctx context.Context) string {
	if rid, ok := ctx.Value(ContextKeyRequestID).(string); ok {
		return rid
	}
	return ""
}

// WithRequestID injects a correlation ID into the context.
func WithRequestID(ctx context.Context, rid string) context.Context {
	return context.WithValue(ctx, ContextKeyRequestID, rid)
}

// Now returns the request-scoped time when set, falling back to wall clock.
// Tests inject a fixed time via WithTime to make expiry logic deterministic.
func Now(ctx context.Context) time.Time {
	if t, ok := ctx.Value(ContextKeyRequestTime).(time.Time); ok {
		return t
	}
	return time.Now()
}

// WithTime pins the request-scoped clock.
func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, ContextKeyRequestTime, t)
}

// ClientIP retrieves the caller's remote address as recorded by middleware.
func ClientIP(ctx context.Context) string {
	if ip, ok := ctx.Value(ContextKeyClientIP).(string); ok {
		return ip
	}
	return ""
}

// WithClientIP injects the caller's remote address.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, ContextKeyClientIP, ip)
}

// UserAgent retrieves the parsed caller user agent (browser/library name and
// version) recorded by the metadata middleware.
func UserAgent(ctx context.Context) string {
	if ua, ok := ctx.Value(ContextKeyUserAgent).(string); ok {
		return ua
	}
	return ""
}

// WithUserAgent injects the caller user agent.
func WithUserAgent(ctx context.Context, ua string) context.Context {
	return context.WithValue(ctx, ContextKeyUserAgent, ua)
}
