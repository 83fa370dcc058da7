// Package guard provides the command guards evaluated before a command runs.
package guard

import "github.com/osa030/voicememo/internal/app/session/state"

// Command identifies a user command.
type Command int

const (
	CommandToggleRecord Command = iota
	CommandTogglePlayPause
	CommandStopPlayback
	CommandSeekBegin
	CommandSeekUpdate
	CommandSeekComplete
	CommandSetVolume
	CommandSetMuted
	CommandSetRate
)

var commandNames = map[Command]string{
	CommandToggleRecord:    "toggle_record",
	CommandTogglePlayPause: "toggle_play_pause",
	CommandStopPlayback:    "stop_playback",
	CommandSeekBegin:       "seek_begin",
	CommandSeekUpdate:      "seek_update",
	CommandSeekComplete:    "seek_complete",
	CommandSetVolume:       "set_volume",
	CommandSetMuted:        "set_muted",
	CommandSetRate:         "set_rate",
}

// String returns the string representation of the command.
func (c Command) String() string {
	if name, ok := commandNames[c]; ok {
		return name
	}
	return "unknown"
}

// Rejection codes.
const (
	CodeTransitionInFlight = "transition_in_flight"
	CodeNoPlayback         = "no_playback"
	CodeAlreadySeeking     = "already_seeking"
	CodeNotSeeking         = "not_seeking"
	CodeOutOfRange         = "out_of_range"
	CodeDeviceBusy         = "device_busy"
)

// Request is a command with its argument.
type Request struct {
	Command Command
	Value   float64 // fraction, volume or rate
	Flag    bool    // muted, or correct-pitch for CommandSetRate
}

// Result represents the result of a guard check.
type Result struct {
	Accepted bool
	Code     string
}

// Accept returns an accepted result.
func Accept() Result {
	return Result{Accepted: true}
}

// Reject returns a rejected result with the given code.
func Reject(code string) Result {
	return Result{Accepted: false, Code: code}
}

// Guard is the interface for command guards.
type Guard interface {
	// Name returns the guard name.
	Name() string
	// Description returns a human-readable description.
	Description() string
	// ReturnCodes returns the codes this guard can return.
	ReturnCodes() []string
	// AppliesTo returns true if this guard should be evaluated for the command.
	AppliesTo(cmd Command) bool
	// Check inspects the session without modifying it.
	Check(req Request, s *state.Session) Result
}

// registry holds registered guard factories.
var registry = make(map[string]func() Guard)

// Register registers a guard factory.
func Register(name string, factory func() Guard) {
	registry[name] = factory
}

// GetRegistered returns all registered guard factories.
func GetRegistered() map[string]func() Guard {
	return registry
}

func appliesTo(cmd Command, cmds ...Command) bool {
	for _, c := range cmds {
		if c == cmd {
			return true
		}
	}
	return false
}
