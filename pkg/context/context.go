// Package context carries render tracing values through context.Context
package context

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Context keys for render tracing.
// Using unexported struct pointers prevents key collisions.
var (
	renderIDKey   = &struct{}{}
	uriKey        = &struct{}{}
	operationKey  = &struct{}{}
	generationKey = &struct{}{}
	startTimeKey  = &struct{}{}
)

// WithRenderID adds a render ID to the context, generating one when empty
func WithRenderID(parent context.Context, renderID string) context.Context {
	if renderID == "" {
		renderID = GenerateRenderID()
	}
	return context.WithValue(parent, renderIDKey, renderID)
}

// GetRenderID retrieves the render ID from context
func GetRenderID(ctx context.Context) string {
	if id, ok := ctx.Value(renderIDKey).(string); ok && id != "" {
		return id
	}
	return ""
}

// WithURI adds the rendered URI to the context
func WithURI(parent context.Context, uri string) context.Context {
	return context.WithValue(parent, uriKey, uri)
}

// GetURI retrieves the rendered URI from context
func GetURI(ctx context.Context) string {
	if uri, ok := ctx.Value(uriKey).(string); ok {
		return uri
	}
	return ""
}

// WithOperation adds an operation name to the context
func WithOperation(parent context.Context, operation string) context.Context {
	return context.WithValue(parent, operationKey, operation)
}

// GetOperation retrieves the operation name from context
func GetOperation(ctx context.Context) string {
	if op, ok := ctx.Value(operationKey).(string); ok {
		return op
	}
	return ""
}

// WithGeneration records which pipeline generation handles the work
func WithGeneration(parent context.Context, generation int) context.Context {
	return context.WithValue(parent, generationKey, generation)
}

// GetGeneration retrieves the pipeline generation, or zero when unset
func GetGeneration(ctx context.Context) int {
	if g, ok := ctx.Value(generationKey).(int); ok {
		return g
	}
	return 0
}

// WithStartTime adds the operation start time to the context
func WithStartTime(parent context.Context, startTime time.Time) context.Context {
	return context.WithValue(parent, startTimeKey, startTime)
}

// GetDuration returns the time elapsed since the start time in ctx,
// or zero when no start time was recorded.
func GetDuration(ctx context.Context) time.Duration {
	if t, ok := ctx.Value(startTimeKey).(time.Time); ok {
		return time.Since(t)
	}
	return 0
}

// GenerateRenderID creates a new unique render ID
func GenerateRenderID() string {
	return "rnd_" + uuid.New().String()
}

// ForRender returns a context describing one render request
func ForRender(parent context.Context, renderID, uri string) context.Context {
	ctx := WithRenderID(parent, renderID)
	ctx = WithURI(ctx, uri)
	ctx = WithOperation(ctx, "render")
	return WithStartTime(ctx, time.Now())
}

// TracingFields returns the tracing values present in ctx
func TracingFields(ctx context.Context) map[string]interface{} {
	fields := make(map[string]interface{})
	if id := GetRenderID(ctx); id != "" {
		fields["render_id"] = id
	}
	if uri := GetURI(ctx); uri != "" {
		fields["uri"] = uri
	}
	if op := GetOperation(ctx); op != "" {
		fields["operation"] = op
	}
	if g := GetGeneration(ctx); g > 0 {
		fields["generation"] = g
	}
	if d := GetDuration(ctx); d > 0 {
		fields["duration_ms"] = d.Milliseconds()
	}
	return fields
}
