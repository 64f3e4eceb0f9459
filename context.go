package signway

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"time"
)

// contextKey is a private type for context keys to avoid collisions
// with keys set by other packages.
type contextKey string

const (
	contextKeyRequestID contextKey = "signway_request_id"
	contextKeyClientID  contextKey = "signway_client_id"
	contextKeyStartTime contextKey = "signway_start_time"
)

// WithRequestID adds a request ID to the context, used to correlate log
// lines across admission and forwarding for a single inbound request.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, contextKeyRequestID, id)
}

// RequestIDFromContext retrieves the request ID, or "" if none is set.
func RequestIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(contextKeyRequestID).(string); ok {
		return id
	}
	return ""
}

// WithGeneratedRequestID adds a freshly generated request ID to the
// context.
func WithGeneratedRequestID(ctx context.Context) context.Context {
	return WithRequestID(ctx, generateRequestID())
}

// generateRequestID returns a random hex-encoded request ID. Falls back
// to a nanosecond UTC timestamp suffix only if crypto/rand itself fails,
// which on any supported platform does not happen in practice.
func generateRequestID() string {
	buf := make([]byte, 12)
	if _, err := rand.Read(buf); err != nil {
		return "req_" + time.Now().UTC().Format("20060102T150405.000000000Z")
	}
	return "req_" + hex.EncodeToString(buf)
}

// WithClientID adds the resolved X-Sw-Credential id to the context once
// Verify has succeeded.
func WithClientID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, contextKeyClientID, id)
}

// ClientIDFromContext retrieves the resolved client id, or "" if none is
// set (e.g. the request was rejected before resolution).
func ClientIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(contextKeyClientID).(string); ok {
		return id
	}
	return ""
}

// WithStartTime adds the request's admission time to the context. The
// admission handler sets it; nothing in this module reads it back.
func WithStartTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, contextKeyStartTime, t)
}

// StartTimeFromContext retrieves the start time, or the zero Time if
// none is set.
func StartTimeFromContext(ctx context.Context) time.Time {
	if t, ok := ctx.Value(contextKeyStartTime).(time.Time); ok {
		return t
	}
	return time.Time{}
}
