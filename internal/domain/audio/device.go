// Package audio defines the audio device capability the session controller drives.
package audio

import (
	"context"

	"github.com/cockroachdb/errors"
)

// ErrNoData is returned by RecordingHandle.StopAndRelease when the device
// stopped before any audio was captured.
var ErrNoData = errors.New("no audio data received")

// Device is the platform audio backend.
type Device interface {
	// SetMode switches the process-wide audio mode.
	SetMode(ctx context.Context, mode Mode) error
	// PrepareRecording allocates a recorder configured with the given preset.
	PrepareRecording(ctx context.Context, preset QualityPreset) (RecordingHandle, error)
	// LoadPlayback creates a playable sound from a finished recording.
	LoadPlayback(ctx context.Context, rec RecordingHandle, opts PlaybackOptions) (PlaybackHandle, error)
}

// RecordingHandle is an in-progress or just-finished capture.
type RecordingHandle interface {
	Start(ctx context.Context) error
	// StopAndRelease stops capturing and frees the recorder. It returns the
	// final duration in milliseconds, or an error marked with ErrNoData.
	StopAndRelease(ctx context.Context) (int64, error)
	// OnStatus replaces the status callback. A nil fn detaches it.
	OnStatus(fn func(RecordingStatus))
	// URI identifies the recorded audio. Diagnostics only.
	URI() string
}

// PlaybackHandle is a loaded, playable sound.
type PlaybackHandle interface {
	Play(ctx context.Context) error
	Pause(ctx context.Context) error
	// Stop pauses and rewinds to position 0.
	Stop(ctx context.Context) error
	SeekTo(ctx context.Context, positionMillis int64) error
	PlayFrom(ctx context.Context, positionMillis int64) error
	SetVolume(ctx context.Context, volume float64) error
	SetMuted(ctx context.Context, muted bool) error
	SetRate(ctx context.Context, rate float64, correctPitch bool) error
	// OnStatus replaces the status callback. A nil fn detaches it.
	OnStatus(fn func(PlaybackStatus))
	Release(ctx context.Context) error
}

// PermissionRequester asks the platform for microphone access.
type PermissionRequester interface {
	RequestRecordingPermission(ctx context.Context) (bool, error)
}
