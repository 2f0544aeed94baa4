package audit

import (
	"context"
	"time"

	"github.com/dirgate/dirgate/pkg/contextkeys"
)

// Logger records audit events. Implementations must be safe for
// concurrent use.
type Logger interface {
	Log(ctx context.Context, event *Event) error
	Close() error
}

// NewEvent builds an event stamped with the current time, picking the
// principal and request ID out of the context when present.
func NewEvent(ctx context.Context, eventType EventType, status EventStatus) *Event {
	event := &Event{
		Timestamp: time.Now().UTC(),
		Type:      eventType,
		Status:    status,
	}
	if principal, ok := contextkeys.Principal(ctx); ok {
		event.Principal = principal
	}
	if requestID := contextkeys.RequestID(ctx); requestID != "" {
		event.RequestID = requestID
	}
	return event
}

// Trail is a logger whose events can be queried back. Store and
// MemoryLogger both satisfy it.
type Trail interface {
	Logger
	Search(ctx context.Context, filter SearchFilter) ([]*Event, error)
}

// MultiLogger fans each event out to every wrapped logger. The first
// error is returned but all loggers still see the event.
type MultiLogger struct {
	loggers []Logger
}

// NewMultiLogger combines loggers into one.
func NewMultiLogger(loggers ...Logger) *MultiLogger {
	return &MultiLogger{loggers: loggers}
}

// Log writes the event to every logger.
func (m *MultiLogger) Log(ctx context.Context, event *Event) error {
	var firstErr error
	for _, logger := range m.loggers {
		if err := logger.Log(ctx, event); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Close closes every logger.
func (m *MultiLogger) Close() error {
	var firstErr error
	for _, logger := range m.loggers {
		if err := logger.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
