// Package sse broadcasts catalog events to connected clients over
// Server-Sent Events.
package sse

import (
	"time"

	"github.com/cewkb/kbsearch/internal/catalog"
)

// EventType represents the type of SSE Event.
type EventType string

const (
	// EventCatalogRefreshed is sent after a new catalog snapshot is installed.
	EventCatalogRefreshed EventType = "catalog.refreshed"
	// EventHeartbeat represents a connection keepalive event.
	EventHeartbeat EventType = "heartbeat"
)

// Event is one message on the stream.
type Event struct {
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data,omitempty"`
}

// CatalogRefreshedData describes an installed snapshot.
type CatalogRefreshedData struct {
	Version      uint64    `json:"version"`
	Source       string    `json:"source"`
	Articles     int       `json:"articles"`
	Tags         int       `json:"tags"`
	UsedFallback bool      `json:"used_fallback"`
	LoadedAt     time.Time `json:"loaded_at"`
}

// NewCatalogRefreshedEvent describes snap.
func NewCatalogRefreshedEvent(snap *catalog.Snapshot) Event {
	return Event{
		Type:      EventCatalogRefreshed,
		Timestamp: time.Now(),
		Data: CatalogRefreshedData{
			Version:      snap.Version,
			Source:       snap.Source,
			Articles:     len(snap.Collection.Articles),
			Tags:         len(snap.Collection.Tags),
			UsedFallback: snap.UsedFallback,
			LoadedAt:     snap.LoadedAt,
		},
	}
}

// NewHeartbeatEvent creates a keepalive event.
func NewHeartbeatEvent() Event {
	return Event{Type: EventHeartbeat, Timestamp: time.Now()}
}
