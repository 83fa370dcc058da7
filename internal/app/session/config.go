package session

import (
	"github.com/cockroachdb/errors"

	"github.com/osa030/voicememo/internal/app/guard"
	"github.com/osa030/voicememo/internal/app/session/state"
	"github.com/osa030/voicememo/internal/domain/audio"
)

// Config holds controller settings.
type Config struct {
	Preset  audio.QualityPreset
	Looping bool
	// QueueSize bounds the inbox and the device job queue.
	QueueSize   int
	EventBuffer int
	Prefs       state.Preferences
}

// DefaultConfig returns the settings used when none are configured.
func DefaultConfig() Config {
	return Config{
		Preset:      audio.PresetHighQuality,
		Looping:     true,
		QueueSize:   16,
		EventBuffer: 64,
		Prefs:       state.DefaultPreferences(),
	}
}

func (c *Config) validate() error {
	switch c.Preset {
	case audio.PresetLowQuality, audio.PresetHighQuality:
	default:
		return errors.Newf("unknown quality preset %q", c.Preset)
	}
	if c.QueueSize <= 0 {
		c.QueueSize = DefaultConfig().QueueSize
	}
	if c.EventBuffer <= 0 {
		c.EventBuffer = DefaultConfig().EventBuffer
	}
	return nil
}

// Option configures a Controller.
type Option func(*Controller)

// WithObserver installs an activity observer.
func WithObserver(o Observer) Option {
	return func(c *Controller) {
		if o != nil {
			c.observer = o
		}
	}
}

// WithGuards replaces the default guard chain.
func WithGuards(chain *guard.Chain) Option {
	return func(c *Controller) {
		if chain != nil {
			c.guards = chain
		}
	}
}
