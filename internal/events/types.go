// Package events provides the in-process event bus that carries session,
// catalog, persistence, and transcode notifications to subscribers
// (primarily the websocket bridge that feeds the UI).
package events

import (
	"time"
)

// EventType represents the type of event
type EventType string

// System-wide event types
const (
	// Catalog events
	EventCatalogScanned  EventType = "catalog.scanned"
	EventCatalogDegraded EventType = "catalog.degraded"
	EventCatalogStale    EventType = "catalog.stale"

	// Session events
	EventSessionOpened    EventType = "session.opened"
	EventSessionClosed    EventType = "session.closed"
	EventSessionPhase     EventType = "session.phase"
	EventSessionItem      EventType = "session.item"
	EventSessionSeek      EventType = "session.seek"
	EventSessionSettings  EventType = "session.settings"
	EventSessionError     EventType = "session.error"

	// Progress persistence events
	EventProgressSaved      EventType = "progress.saved"
	EventProgressSaveFailed EventType = "progress.save_failed"

	// Resume protocol events
	EventResumeOffered  EventType = "resume.offered"
	EventResumeResolved EventType = "resume.resolved"

	// Transcode events
	EventTranscodeStarted   EventType = "transcode.started"
	EventTranscodeProgress  EventType = "transcode.progress"
	EventTranscodeCompleted EventType = "transcode.completed"
	EventTranscodeFailed    EventType = "transcode.failed"

	// Storage events
	EventPermissionRevoked EventType = "storage.permission_revoked"

	// System events
	EventSystemStarted EventType = "system.started"
	EventSystemStopped EventType = "system.stopped"
)

// Event represents a system event
type Event struct {
	ID        string                 `json:"id"`
	Type      EventType              `json:"type"`
	Source    string                 `json:"source"`
	Title     string                 `json:"title,omitempty"`
	Message   string                 `json:"message,omitempty"`
	Data      map[string]interface{} `json:"data,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

// EventHandler represents a function that handles events
type EventHandler func(event Event) error

// EventFilter represents filters for event subscriptions. An empty filter
// matches every event.
type EventFilter struct {
	Types   []EventType `json:"types,omitempty"`
	Sources []string    `json:"sources,omitempty"`
}

// Subscription represents an event subscription
type Subscription struct {
	ID           string       `json:"id"`
	Filter       EventFilter  `json:"filter"`
	Handler      EventHandler `json:"-"`
	Created      time.Time    `json:"created"`
	TriggerCount int64        `json:"trigger_count"`
}

// EventStats represents statistics about events
type EventStats struct {
	TotalEvents         int64            `json:"total_events"`
	EventsByType        map[string]int64 `json:"events_by_type"`
	ActiveSubscriptions int              `json:"active_subscriptions"`
}

// EventBusConfig represents configuration for the event bus
type EventBusConfig struct {
	BufferSize   int `json:"buffer_size"`
	RecentEvents int `json:"recent_events"`
}

// DefaultEventBusConfig returns default configuration
func DefaultEventBusConfig() EventBusConfig {
	return EventBusConfig{
		BufferSize:   256,
		RecentEvents: 100,
	}
}

// MatchesFilter reports whether an event matches a subscription filter.
func MatchesFilter(event Event, filter EventFilter) bool {
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
	if len(filter.Sources) > 0 {
		found := false
		for _, s := range filter.Sources {
			if event.Source == s {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
