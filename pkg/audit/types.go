package audit

import (
	"time"
)

// EventType categorizes an audit event.
type EventType string

const (
	// Authentication events
	EventAuthSuccess EventType = "auth.success"
	EventAuthFailure EventType = "auth.failure"

	// Authorization events
	EventAccessDenied EventType = "authz.denied"

	// Directory mutation events
	EventEntryAdded    EventType = "directory.add"
	EventEntryModified EventType = "directory.modify"
	EventEntryRenamed  EventType = "directory.rename"
	EventEntryDeleted  EventType = "directory.delete"
)

// EventStatus is the outcome recorded with an event.
type EventStatus string

const (
	StatusSuccess EventStatus = "success"
	StatusFailure EventStatus = "failure"
	StatusDenied  EventStatus = "denied"
)

// Event is a single audit trail record. DN is the distinguished name of
// the entry an operation touched; for authentication events it is empty.
type Event struct {
	ID        int64             `json:"id,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
	Type      EventType         `json:"event_type"`
	Status    EventStatus       `json:"status"`
	Principal string            `json:"principal,omitempty"`
	RequestID string            `json:"request_id,omitempty"`
	DN        string            `json:"dn,omitempty"`
	NewDN     string            `json:"new_dn,omitempty"`
	Message   string            `json:"message,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// SearchFilter narrows a trail query. Zero values mean "no constraint".
type SearchFilter struct {
	Start     time.Time
	End       time.Time
	Types     []EventType
	Status    EventStatus
	Principal string
	DN        string
	Limit     int
	Offset    int
}

// DefaultSearchLimit caps unbounded trail queries.
const DefaultSearchLimit = 100
