// Package playback provides position arithmetic and derived playback state.
package playback

// State represents the playback state as shown to the user.
type State int

const (
	StateUnloaded State = iota // No sound loaded
	StateStopped               // Loaded, not playing, at position 0
	StatePlaying               // Sound is playing
	StatePaused                // Loaded, not playing, past position 0
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateUnloaded:
		return "unloaded"
	case StateStopped:
		return "stopped"
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	default:
		return "unknown"
	}
}

// StateOf derives the state from the last known status fields.
func StateOf(loaded, isPlaying bool, positionMillis int64) State {
	switch {
	case !loaded:
		return StateUnloaded
	case isPlaying:
		return StatePlaying
	case positionMillis > 0:
		return StatePaused
	default:
		return StateStopped
	}
}
