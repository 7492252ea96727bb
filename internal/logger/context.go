package logger

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

type (
	loggerKey struct{}
	eventKey  struct{}
)

// ContextWithLogger stores a logger in the context.
func ContextWithLogger(ctx context.Context, logger *zap.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}

// FromContext extracts a logger from the context.
// Returns zap.NewNop() if no logger is found.
func FromContext(ctx context.Context) *zap.Logger {
	if l, ok := ctx.Value(loggerKey{}).(*zap.Logger); ok {
		return l
	}
	return zap.NewNop()
}

// Event collects fields for the single canonical log line emitted per request.
type Event struct {
	mu     sync.Mutex
	fields []zap.Field
}

// Add appends fields to the event.
func (e *Event) Add(fields ...zap.Field) {
	e.mu.Lock()
	e.fields = append(e.fields, fields...)
	e.mu.Unlock()
}

// Fields returns a copy of the collected fields.
func (e *Event) Fields() []zap.Field {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]zap.Field(nil), e.fields...)
}

// ContextWithEvent attaches a fresh event to the context.
func ContextWithEvent(ctx context.Context) (context.Context, *Event) {
	ev := &Event{}
	return context.WithValue(ctx, eventKey{}, ev), ev
}

// AddEventFields appends fields to the request event, if the context carries one.
func AddEventFields(ctx context.Context, fields ...zap.Field) {
	if ev, ok := ctx.Value(eventKey{}).(*Event); ok {
		ev.Add(fields...)
	}
}
