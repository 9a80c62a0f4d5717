package api

import (
	"context"
	"encoding/json"
)

// contextKey is a private type to prevent context key collisions across packages.
type contextKey string

const (
	// ContextKeyRequestID stores the unique request identifier (string)
	ContextKeyRequestID contextKey = "request_id"

	// ContextKeyJSONBody stores the parsed JSON request body (json.RawMessage)
	ContextKeyJSONBody contextKey = "json_body"
)

// WithRequestID returns a context carrying the request ID.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ContextKeyRequestID, requestID)
}

// GetRequestID extracts the request ID from the context.
func GetRequestID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(ContextKeyRequestID).(string)
	return id, ok
}

// WithJSONBody returns a context carrying a parsed JSON body.
func WithJSONBody(ctx context.Context, body json.RawMessage) context.Context {
	return context.WithValue(ctx, ContextKeyJSONBody, body)
}

// JSONBody returns the request body parsed by the JSON body middleware.
// ok is false when the request had no JSON body.
func JSONBody(ctx context.Context) (json.RawMessage, bool) {
	body, ok := ctx.Value(ContextKeyJSONBody).(json.RawMessage)
	return body, ok
}
