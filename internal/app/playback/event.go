package playback

import "github.com/cockroachdb/errors"

// EventType represents a playback event type.
type EventType int

const (
	EventStateChanged EventType = iota // Any observable field changed
	EventTimeUpdate                    // Position advanced
	EventTrackChanged                  // A new track was selected and loaded
	EventQueueLoaded                   // The queue was replaced
	EventError                         // The media resource faulted
	EventCleared                       // Nothing left to play
	EventDestroyed                     // Engine was torn down
)

// String returns the string representation of the event type.
func (e EventType) String() string {
	switch e {
	case EventStateChanged:
		return "state_changed"
	case EventTimeUpdate:
		return "time_update"
	case EventTrackChanged:
		return "track_changed"
	case EventQueueLoaded:
		return "queue_loaded"
	case EventError:
		return "error"
	case EventCleared:
		return "cleared"
	case EventDestroyed:
		return "destroyed"
	default:
		return "unknown"
	}
}

// EventTypes lists every event type in declaration order.
var EventTypes = []EventType{
	EventStateChanged, EventTimeUpdate, EventTrackChanged, EventQueueLoaded,
	EventError, EventCleared, EventDestroyed,
}

// ParseEventType is the inverse of EventType.String.
func ParseEventType(s string) (EventType, error) {
	for _, t := range EventTypes {
		if t.String() == s {
			return t, nil
		}
	}
	return 0, errors.Newf("invalid event type: %q", s)
}

// Event is delivered to subscribers after every state mutation.
type Event struct {
	Type  EventType
	State State // Snapshot taken right after the mutation
}
