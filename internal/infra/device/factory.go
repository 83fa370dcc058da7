// Package device provides the audio backends the daemon can drive.
package device

import (
	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/voicememo/internal/domain/audio"
	"github.com/osa030/voicememo/internal/infra/config"
)

// Backend is an audio device that can also ask for microphone access.
type Backend interface {
	audio.Device
	audio.PermissionRequester
}

// New creates the backend selected by the configuration.
func New(cfg config.DeviceConfig) (Backend, error) {
	zlog.Debug().Msgf("creating audio backend: type=%s settings=%+v", cfg.Type, cfg.Settings)

	var (
		backend Backend
		err     error
	)
	switch cfg.Type {
	case "simulated":
		backend, err = NewSimulated(cfg.Settings)
	default:
		return nil, errors.Newf("unsupported device type: %s", cfg.Type)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to create device (type %s)", cfg.Type)
	}

	zlog.Info().Msgf("audio backend ready: type=%s", cfg.Type)
	return backend, nil
}
