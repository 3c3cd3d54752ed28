package observability

import "context"

type contextKey int

const (
	requestIDKey contextKey = iota
	routeKey
	userIDKey
)

// WithRequestMetadata stamps the request id and resolved route into ctx.
func WithRequestMetadata(ctx context.Context, requestID, route string) context.Context {
	if requestID != "" {
		ctx = context.WithValue(ctx, requestIDKey, requestID)
	}
	if route != "" {
		ctx = context.WithValue(ctx, routeKey, route)
	}
	return ctx
}

// WithRequestIdentity stamps the authenticated user id into ctx.
func WithRequestIdentity(ctx context.Context, userID string) context.Context {
	if userID == "" {
		return ctx
	}
	return context.WithValue(ctx, userIDKey, userID)
}

// RequestIDFromContext returns the request id, if any.
func RequestIDFromContext(ctx context.Context) (string, bool) {
	value, ok := ctx.Value(requestIDKey).(string)
	return value, ok && value != ""
}

// RouteFromContext returns the resolved route, if any.
func RouteFromContext(ctx context.Context) (string, bool) {
	value, ok := ctx.Value(routeKey).(string)
	return value, ok && value != ""
}

// UserIDFromContext returns the authenticated user id, if any.
func UserIDFromContext(ctx context.Context) (string, bool) {
	value, ok := ctx.Value(userIDKey).(string)
	return value, ok && value != ""
}
