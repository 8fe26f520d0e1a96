package utils

import "context"

type contextKey string

// RequestIDKey carries the HTTP request id into flows and outbound calls
const RequestIDKey contextKey = "request_id"

// RequestIDFromContext returns the request id set by the HTTP layer, or ""
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(RequestIDKey).(string)
	return id
}
