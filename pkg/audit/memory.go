package audit

import (
	"context"
	"sync"
)

// MemoryLogger keeps the most recent events in a bounded in-process
// buffer. It backs the trail when no SQLite path is configured.
type MemoryLogger struct {
	mu     sync.RWMutex
	events []*Event
	max    int
	nextID int64
}

// DefaultMemoryCapacity bounds the in-memory trail.
const DefaultMemoryCapacity = 10000

// NewMemoryLogger creates a memory logger retaining up to max events;
// max <= 0 uses DefaultMemoryCapacity.
func NewMemoryLogger(max int) *MemoryLogger {
	if max <= 0 {
		max = DefaultMemoryCapacity
	}
	return &MemoryLogger{max: max, nextID: 1}
}

// Log appends the event, evicting the oldest past capacity.
func (m *MemoryLogger) Log(_ context.Context, event *Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored := *event
	stored.ID = m.nextID
	m.nextID++

	m.events = append(m.events, &stored)
	if len(m.events) > m.max {
		m.events = m.events[len(m.events)-m.max:]
	}
	return nil
}

// Search filters the retained events, newest first.
func (m *MemoryLogger) Search(_ context.Context, filter SearchFilter) ([]*Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	limit := filter.Limit
	if limit <= 0 {
		limit = DefaultSearchLimit
	}

	var matched []*Event
	skipped := 0
	for i := len(m.events) - 1; i >= 0 && len(matched) < limit; i-- {
		event := m.events[i]
		if !matches(event, filter) {
			continue
		}
		if skipped < filter.Offset {
			skipped++
			continue
		}
		copied := *event
		matched = append(matched, &copied)
	}
	return matched, nil
}

func matches(event *Event, filter SearchFilter) bool {
	if !filter.Start.IsZero() && event.Timestamp.Before(filter.Start) {
		return false
	}
	if !filter.End.IsZero() && event.Timestamp.After(filter.End) {
		return false
	}
	if len(filter.Types) > 0 {
		found := false
		for _, t := range filter.Types {
			if event.Type == t {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if filter.Status != "" && event.Status != filter.Status {
		return false
	}
	if filter.Principal != "" && event.Principal != filter.Principal {
		return false
	}
	if filter.DN != "" && event.DN != filter.DN {
		return false
	}
	return true
}

// Close is a no-op.
func (m *MemoryLogger) Close() error { return nil }
