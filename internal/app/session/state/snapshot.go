package state

import (
	"github.com/osa030/voicememo/internal/app/playback"
	"github.com/osa030/voicememo/internal/domain/timecode"
)

// Snapshot is a read-only copy of the session for the presentation layer.
type Snapshot struct {
	Version     uint64       `json:"version"`
	Mode        Mode         `json:"mode"`
	Resource    ResourceKind `json:"resource"`
	IsLoading   bool         `json:"is_loading"`
	Recording   *Recording   `json:"recording,omitempty"`
	Playback    *Playback    `json:"playback,omitempty"`
	IsSeeking   bool         `json:"is_seeking"`
	SeekPreview float64      `json:"seek_preview"`
	Prefs       Preferences  `json:"prefs"`
	LastError   *Failure     `json:"last_error,omitempty"`
}

// Snapshot copies the session. Handles are not exposed.
func (s *Session) Snapshot() Snapshot {
	snap := Snapshot{
		Version:     s.Version,
		Mode:        s.Mode,
		Resource:    KindOf(s.Active),
		IsLoading:   s.IsLoading,
		IsSeeking:   s.IsSeeking,
		SeekPreview: s.SeekPreview,
		Prefs:       s.Prefs,
	}
	if s.Recording != nil {
		r := *s.Recording
		snap.Recording = &r
	}
	if s.Playback != nil {
		p := *s.Playback
		snap.Playback = &p
	}
	if s.LastError != nil {
		f := *s.LastError
		snap.LastError = &f
	}
	return snap
}

// SliderFraction returns the seek slider position in [0,1].
func (s Snapshot) SliderFraction() float64 {
	if s.Playback == nil {
		return 0
	}
	return playback.SliderFraction(s.Playback.PositionMillis, s.Playback.DurationMillis)
}

// PlaybackTimestamp returns "mm:ss / mm:ss", or "" when nothing is loaded.
func (s Snapshot) PlaybackTimestamp() string {
	if s.Playback == nil || s.Playback.DurationMillis <= 0 {
		return ""
	}
	return timecode.FormatProgress(s.Playback.PositionMillis, s.Playback.DurationMillis)
}

// RecordingTimestamp returns the recorded length as mm:ss.
func (s Snapshot) RecordingTimestamp() string {
	if s.Recording == nil {
		return timecode.FormatMillis(0)
	}
	return timecode.FormatMillis(s.Recording.DurationMillis)
}

// PlaybackState derives the play/pause/stop indicator.
func (s Snapshot) PlaybackState() playback.State {
	if s.Playback == nil {
		return playback.StateUnloaded
	}
	return playback.StateOf(true, s.Playback.IsPlaying, s.Playback.PositionMillis)
}

// CanRecord reports whether the record toggle is enabled.
func (s Snapshot) CanRecord() bool {
	return !s.IsLoading
}

// PlaybackAllowed reports whether the playback controls are enabled.
func (s Snapshot) PlaybackAllowed() bool {
	return s.Playback != nil && !s.IsLoading
}

// IsRecording reports whether the recorder is capturing.
func (s Snapshot) IsRecording() bool {
	return s.Recording != nil && s.Recording.IsRecording
}
