package session

import "github.com/osa030/voicememo/internal/app/session/state"

// EventType represents the type of session event.
type EventType int

const (
	EventStateChanged  EventType = iota // A command or transition changed the session
	EventStatusUpdated                  // A device status was applied
	EventFailure                        // LastError was replaced
)

// String returns the string representation of the event type.
func (t EventType) String() string {
	switch t {
	case EventStateChanged:
		return "state_changed"
	case EventStatusUpdated:
		return "status_updated"
	case EventFailure:
		return "failure"
	default:
		return "unknown"
	}
}

// Event is emitted after every published change.
type Event struct {
	Type     EventType
	Snapshot state.Snapshot
}
