package logging

import (
	"context"

	"go.uber.org/zap"
)

type ctxKey int

const (
	requestIDKey ctxKey = iota
	subscriptionKey
)

// ContextWithRequestID stores the request id picked by the request middleware.
func ContextWithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFromContext returns the stored request id, or "".
func RequestIDFromContext(ctx context.Context) string {
	return stringValue(ctx, requestIDKey)
}

// ContextWithSubscription tags ctx with the webhook subscription a delivery
// arrived on.
func ContextWithSubscription(ctx context.Context, subscription string) context.Context {
	return context.WithValue(ctx, subscriptionKey, subscription)
}

// SubscriptionFromContext returns the stored subscription, or "".
func SubscriptionFromContext(ctx context.Context) string {
	return stringValue(ctx, subscriptionKey)
}

func stringValue(ctx context.Context, key ctxKey) string {
	if ctx == nil {
		return ""
	}
	v, _ := ctx.Value(key).(string)
	return v
}

func contextFields(ctx context.Context) []zap.Field {
	var fields []zap.Field
	if id := RequestIDFromContext(ctx); id != "" {
		fields = append(fields, zap.String("request_id", id))
	}
	if sub := SubscriptionFromContext(ctx); sub != "" {
		fields = append(fields, zap.String("subscription", sub))
	}
	return fields
}
