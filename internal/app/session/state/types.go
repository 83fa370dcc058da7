// Package state provides the session state record owned by the controller.
package state

import "github.com/cockroachdb/errors"

// Mode represents the controller's position in the record/playback lifecycle.
type Mode int

const (
	ModeIdle              Mode = iota // No resource, nothing in flight
	ModePreparing                     // Acquiring and starting a recorder
	ModeRecording                     // Recorder is capturing
	ModeStoppingRecording             // Recorder is being stopped and released
	ModeLoadingPlayback               // Recorded audio is being loaded for playback
	ModePlaybackReady                 // Last recording is loaded and playable
)

var modeNames = map[Mode]string{
	ModeIdle:              "idle",
	ModePreparing:         "preparing",
	ModeRecording:         "recording",
	ModeStoppingRecording: "stopping_recording",
	ModeLoadingPlayback:   "loading_playback",
	ModePlaybackReady:     "playback_ready",
}

// String returns the string representation of the mode.
func (m Mode) String() string {
	if name, ok := modeNames[m]; ok {
		return name
	}
	return "unknown"
}

// IsTransition reports whether the mode only exists while a transition is in flight.
func (m Mode) IsTransition() bool {
	return m == ModePreparing || m == ModeStoppingRecording || m == ModeLoadingPlayback
}

// MarshalText encodes the mode by name.
func (m Mode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText decodes a mode name.
func (m *Mode) UnmarshalText(text []byte) error {
	for mode, name := range modeNames {
		if name == string(text) {
			*m = mode
			return nil
		}
	}
	return errors.Newf("unknown mode %q", string(text))
}

// FailureKind classifies errors reported to the presentation layer.
type FailureKind string

const (
	FailurePermissionDenied  FailureKind = "permission_denied"
	FailureDeviceUnavailable FailureKind = "device_unavailable"
	FailureNoDataRecorded    FailureKind = "no_data_recorded"
	FailurePlaybackLoad      FailureKind = "playback_load_error"
	FailureUnknown           FailureKind = "unknown"
)

// ResourceKind names the variant held in the resource slot.
type ResourceKind string

const (
	ResourceNone      ResourceKind = "none"
	ResourceRecording ResourceKind = "recording"
	ResourcePlayback  ResourceKind = "playback"
)
