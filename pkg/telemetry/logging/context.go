package logging

import (
	"context"
)

// Context keys for common log fields.
type contextKey string

const (
	// RequestIDKey is the context key for request IDs.
	RequestIDKey contextKey = "request_id"

	// LimiterKey is the context key for the limiter a request targets.
	LimiterKey contextKey = "limiter"

	// ClientKey is the context key for the authenticated client name.
	ClientKey contextKey = "client"
)

// WithRequestID adds a request ID to the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// GetRequestID retrieves the request ID from the context.
func GetRequestID(ctx context.Context) string {
	if requestID, ok := ctx.Value(RequestIDKey).(string); ok {
		return requestID
	}
	return ""
}

// WithLimiter adds a limiter name to the context.
func WithLimiter(ctx context.Context, limiter string) context.Context {
	return context.WithValue(ctx, LimiterKey, limiter)
}

// GetLimiter retrieves the limiter name from the context.
func GetLimiter(ctx context.Context) string {
	if limiter, ok := ctx.Value(LimiterKey).(string); ok {
		return limiter
	}
	return ""
}

// WithClient adds the authenticated client name to the context.
func WithClient(ctx context.Context, client string) context.Context {
	return context.WithValue(ctx, ClientKey, client)
}

// GetClient retrieves the authenticated client name from the context.
func GetClient(ctx context.Context) string {
	if client, ok := ctx.Value(ClientKey).(string); ok {
		return client
	}
	return ""
}

// extractContextFields returns the known fields present in ctx as
// alternating key/value arguments.
func extractContextFields(ctx context.Context) []any {
	var fields []any
	if v := GetRequestID(ctx); v != "" {
		fields = append(fields, string(RequestIDKey), v)
	}
	if v := GetLimiter(ctx); v != "" {
		fields = append(fields, string(LimiterKey), v)
	}
	if v := GetClient(ctx); v != "" {
		fields = append(fields, string(ClientKey), v)
	}
	return fields
}
