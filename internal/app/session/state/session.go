package state

import (
	"time"

	"github.com/cockroachdb/errors"

	"github.com/osa030/voicememo/internal/domain/audio"
)

// Recording is the bookkeeping for the active or just-finished recorder.
type Recording struct {
	DurationMillis int64 `json:"duration_millis"`
	IsRecording    bool  `json:"is_recording"`
}

// Playback mirrors the last status pushed by the loaded sound.
type Playback struct {
	PositionMillis     int64   `json:"position_millis"`
	DurationMillis     int64   `json:"duration_millis"`
	IsPlaying          bool    `json:"is_playing"`
	ShouldPlay         bool    `json:"should_play"`
	IsLooping          bool    `json:"is_looping"`
	IsSeekable         bool    `json:"is_seekable"`
	Volume             float64 `json:"volume"`
	Rate               float64 `json:"rate"`
	Muted              bool    `json:"muted"`
	ShouldCorrectPitch bool    `json:"should_correct_pitch"`
}

// Preferences are the user-chosen playback settings applied to the next load.
type Preferences struct {
	Volume             float64 `json:"volume"`
	Rate               float64 `json:"rate"`
	Muted              bool    `json:"muted"`
	ShouldCorrectPitch bool    `json:"should_correct_pitch"`
}

// DefaultPreferences returns full volume, normal rate, pitch correction on.
func DefaultPreferences() Preferences {
	return Preferences{Volume: 1.0, Rate: 1.0, ShouldCorrectPitch: true}
}

// Failure is the last error reported by the controller.
type Failure struct {
	Kind    FailureKind `json:"kind"`
	Message string      `json:"message"`
	Warning bool        `json:"warning"` // expected condition, not an application fault
	At      time.Time   `json:"at"`
}

// Session is the controller's mutable state. It is not safe for concurrent
// use; the controller confines it to a single goroutine.
type Session struct {
	Mode      Mode
	Active    Resource
	IsLoading bool

	Recording *Recording
	Playback  *Playback

	IsSeeking             bool
	PendingResumePlayback bool
	SeekPreview           float64

	Prefs     Preferences
	LastError *Failure

	// Version increments on every published change.
	Version uint64
}

// New creates an idle session.
func New(prefs Preferences) *Session {
	return &Session{
		Mode:  ModeIdle,
		Prefs: prefs,
	}
}

// ActiveRecording returns the recorder in the resource slot, if any.
func (s *Session) ActiveRecording() (RecordingResource, bool) {
	r, ok := s.Active.(RecordingResource)
	return r, ok
}

// ActivePlayback returns the sound in the resource slot, if any.
func (s *Session) ActivePlayback() (PlaybackResource, bool) {
	p, ok := s.Active.(PlaybackResource)
	return p, ok
}

// HasPlayback reports whether a sound is loaded and playable.
func (s *Session) HasPlayback() bool {
	_, ok := s.ActivePlayback()
	return ok && s.Playback != nil
}

// ClearRecording drops the recorder and its bookkeeping.
func (s *Session) ClearRecording() {
	if _, ok := s.ActiveRecording(); ok {
		s.Active = nil
	}
	s.Recording = nil
}

// ClearPlayback drops the sound, its status mirror and any seek in progress.
func (s *Session) ClearPlayback() {
	if _, ok := s.ActivePlayback(); ok {
		s.Active = nil
	}
	s.Playback = nil
	s.IsSeeking = false
	s.PendingResumePlayback = false
	s.SeekPreview = 0
}

// NewPlayback builds the status mirror for a freshly loaded sound.
func NewPlayback(opts audio.PlaybackOptions, durationMillis int64) *Playback {
	return &Playback{
		DurationMillis:     durationMillis,
		ShouldPlay:         opts.ShouldPlay,
		IsLooping:          opts.IsLooping,
		IsSeekable:         true,
		Volume:             opts.Volume,
		Rate:               opts.Rate,
		Muted:              opts.IsMuted,
		ShouldCorrectPitch: opts.ShouldCorrectPitch,
	}
}

// CheckInvariants returns an error describing the first violated invariant.
func (s *Session) CheckInvariants() error {
	if s.IsLoading != s.Mode.IsTransition() {
		return errors.Newf("is_loading=%t does not match mode=%s", s.IsLoading, s.Mode)
	}
	if s.Playback != nil {
		if _, ok := s.ActivePlayback(); !ok {
			return errors.Newf("playback state present without a playback handle (resource=%s)", KindOf(s.Active))
		}
		if s.Playback.DurationMillis > 0 && s.Playback.PositionMillis > s.Playback.DurationMillis {
			return errors.Newf("position %d exceeds duration %d", s.Playback.PositionMillis, s.Playback.DurationMillis)
		}
	}
	switch s.Mode {
	case ModeRecording:
		if _, ok := s.ActiveRecording(); !ok {
			return errors.Newf("mode=%s without a recording handle", s.Mode)
		}
	case ModePlaybackReady:
		if !s.HasPlayback() {
			return errors.Newf("mode=%s without a loaded sound", s.Mode)
		}
	case ModeIdle:
		if s.Active != nil {
			return errors.Newf("mode=%s holding a %s resource", s.Mode, s.Active.Kind())
		}
	}
	if s.IsSeeking && !s.HasPlayback() {
		return errors.New("seeking without a loaded sound")
	}
	return nil
}
