package watcher

import "time"

// EventType is the kind of change a settled file went through.
type EventType int

const (
	// EventAdded is emitted for a file that was not present before.
	EventAdded EventType = iota
	// EventModified is emitted when a known file settles after a change.
	EventModified
	// EventRemoved is emitted when a file is deleted or renamed away.
	EventRemoved
)

// String returns the string representation of the event type.
func (t EventType) String() string {
	switch t {
	case EventAdded:
		return "added"
	case EventModified:
		return "modified"
	case EventRemoved:
		return "removed"
	default:
		return "unknown"
	}
}

// Event is a settled file system change.
type Event struct {
	Type    EventType
	Path    string
	Size    int64
	ModTime time.Time
}
