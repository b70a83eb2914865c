package services

import "context"

type contextKey string

const (
	requestIDKey contextKey = "request_id"
	documentKey  contextKey = "document"
	characterKey contextKey = "character"
)

// WithRequestID annotates context with a correlation identifier for one
// operator-invoked operation (an import batch, a purge, a migration run).
func WithRequestID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFromContext returns the correlation identifier if present.
func RequestIDFromContext(ctx context.Context) (string, bool) {
	return stringValue(ctx, requestIDKey)
}

// WithDocument annotates context with the source document name being decomposed.
func WithDocument(ctx context.Context, name string) context.Context {
	if name == "" {
		return ctx
	}
	return context.WithValue(ctx, documentKey, name)
}

// DocumentFromContext returns the document name if present.
func DocumentFromContext(ctx context.Context) (string, bool) {
	return stringValue(ctx, documentKey)
}

// WithCharacter annotates context with the character the current work targets.
func WithCharacter(ctx context.Context, name string) context.Context {
	if name == "" {
		return ctx
	}
	return context.WithValue(ctx, characterKey, name)
}

// CharacterFromContext returns the character name if present.
func CharacterFromContext(ctx context.Context) (string, bool) {
	return stringValue(ctx, characterKey)
}

func stringValue(ctx context.Context, key contextKey) (string, bool) {
	if ctx == nil {
		return "", false
	}
	if str, ok := ctx.Value(key).(string); ok && str != "" {
		return str, true
	}
	return "", false
}
