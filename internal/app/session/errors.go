package session

import (
	"github.com/cockroachdb/errors"

	"github.com/osa030/voicememo/internal/app/session/state"
)

var (
	ErrPermissionDenied  = errors.New("recording permission denied")
	ErrDeviceUnavailable = errors.New("audio device unavailable")
	ErrNoDataRecorded    = errors.New("no audio data recorded")
	ErrPlaybackLoad      = errors.New("playback failed to load")
	ErrClosed            = errors.New("session controller is closed")
)

// KindOf classifies err for snapshots and metrics.
func KindOf(err error) state.FailureKind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrPermissionDenied):
		return state.FailurePermissionDenied
	case errors.Is(err, ErrNoDataRecorded):
		return state.FailureNoDataRecorded
	case errors.Is(err, ErrPlaybackLoad):
		return state.FailurePlaybackLoad
	case errors.Is(err, ErrDeviceUnavailable):
		return state.FailureDeviceUnavailable
	default:
		return state.FailureUnknown
	}
}

// IsWarning reports whether err is an expected condition rather than a fault.
func IsWarning(err error) bool {
	return errors.Is(err, ErrNoDataRecorded)
}

func deviceError(err error, msg string) error {
	return errors.Mark(errors.Wrap(err, msg), ErrDeviceUnavailable)
}
