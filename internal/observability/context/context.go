// Package context carries request correlation identifiers for logs and spans.
package context

import (
	"context"
	"strings"
)

type key int

const (
	requestIDKey key = iota
	actorIDKey
	orgIDKey
	eventIDKey
)

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, strings.TrimSpace(requestID))
}

func RequestIDFromContext(ctx context.Context) string {
	return stringValue(ctx, requestIDKey)
}

func WithActorID(ctx context.Context, actorID string) context.Context {
	return context.WithValue(ctx, actorIDKey, strings.TrimSpace(actorID))
}

func ActorIDFromContext(ctx context.Context) string {
	return stringValue(ctx, actorIDKey)
}

func WithOrgID(ctx context.Context, orgID string) context.Context {
	return context.WithValue(ctx, orgIDKey, strings.TrimSpace(orgID))
}

func OrgIDFromContext(ctx context.Context) string {
	return stringValue(ctx, orgIDKey)
}

// WithEventID tags the context with the provider delivery id being handled.
func WithEventID(ctx context.Context, eventID string) context.Context {
	return context.WithValue(ctx, eventIDKey, strings.TrimSpace(eventID))
}

func EventIDFromContext(ctx context.Context) string {
	return stringValue(ctx, eventIDKey)
}

func stringValue(ctx context.Context, k key) string {
	if ctx == nil {
		return ""
	}
	value, _ := ctx.Value(k).(string)
	return value
}
