package guard

import (
	"github.com/osa030/voicememo/internal/app/playback"
	"github.com/osa030/voicememo/internal/app/session/state"
)

func init() {
	Register("transition_guard", func() Guard { return &TransitionGuard{} })
	Register("value_range_guard", func() Guard { return &ValueRangeGuard{} })
	Register("playback_required_guard", func() Guard { return &PlaybackRequiredGuard{} })
	Register("seek_guard", func() Guard { return &SeekGuard{} })
}

// MaxRate is the fastest supported playback rate.
const MaxRate = 32.0

// TransitionGuard ignores every command while a transition is in flight.
type TransitionGuard struct{}

func (g *TransitionGuard) Name() string { return "transition_guard" }

func (g *TransitionGuard) Description() string {
	return "Ignores commands while the controller is preparing, stopping or loading"
}

func (g *TransitionGuard) ReturnCodes() []string { return []string{CodeTransitionInFlight} }

func (g *TransitionGuard) AppliesTo(cmd Command) bool { return true }

func (g *TransitionGuard) Check(req Request, s *state.Session) Result {
	if s.IsLoading {
		return Reject(CodeTransitionInFlight)
	}
	return Accept()
}

// PlaybackRequiredGuard rejects playback controls when no sound is loaded.
type PlaybackRequiredGuard struct{}

func (g *PlaybackRequiredGuard) Name() string { return "playback_required_guard" }

func (g *PlaybackRequiredGuard) Description() string {
	return "Rejects playback controls until a recording has been loaded"
}

func (g *PlaybackRequiredGuard) ReturnCodes() []string { return []string{CodeNoPlayback} }

func (g *PlaybackRequiredGuard) AppliesTo(cmd Command) bool {
	return appliesTo(cmd,
		CommandTogglePlayPause,
		CommandStopPlayback,
		CommandSeekBegin,
		CommandSeekUpdate,
		CommandSeekComplete,
	)
}

func (g *PlaybackRequiredGuard) Check(req Request, s *state.Session) Result {
	if !s.HasPlayback() {
		return Reject(CodeNoPlayback)
	}
	return Accept()
}

// SeekGuard enforces seek-begin / seek-complete pairing.
type SeekGuard struct{}

func (g *SeekGuard) Name() string { return "seek_guard" }

func (g *SeekGuard) Description() string {
	return "Allows one seek gesture at a time; updates and completion need a started seek"
}

func (g *SeekGuard) ReturnCodes() []string { return []string{CodeAlreadySeeking, CodeNotSeeking} }

func (g *SeekGuard) AppliesTo(cmd Command) bool {
	return appliesTo(cmd, CommandSeekBegin, CommandSeekUpdate, CommandSeekComplete)
}

func (g *SeekGuard) Check(req Request, s *state.Session) Result {
	if req.Command == CommandSeekBegin {
		if s.IsSeeking {
			return Reject(CodeAlreadySeeking)
		}
		return Accept()
	}
	if !s.IsSeeking {
		return Reject(CodeNotSeeking)
	}
	return Accept()
}

// ValueRangeGuard validates command arguments.
type ValueRangeGuard struct{}

func (g *ValueRangeGuard) Name() string { return "value_range_guard" }

func (g *ValueRangeGuard) Description() string {
	return "Rejects seek fractions and volumes outside [0,1] and rates outside (0,32]"
}

func (g *ValueRangeGuard) ReturnCodes() []string { return []string{CodeOutOfRange} }

func (g *ValueRangeGuard) AppliesTo(cmd Command) bool {
	return appliesTo(cmd, CommandSeekUpdate, CommandSeekComplete, CommandSetVolume, CommandSetRate)
}

func (g *ValueRangeGuard) Check(req Request, s *state.Session) Result {
	switch req.Command {
	case CommandSetRate:
		if !(req.Value > 0 && req.Value <= MaxRate) {
			return Reject(CodeOutOfRange)
		}
	default:
		if !playback.ValidFraction(req.Value) {
			return Reject(CodeOutOfRange)
		}
	}
	return Accept()
}
