package device

import (
	"context"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/mitchellh/mapstructure"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/voicememo/internal/domain/audio"
)

var (
	errInjected      = errors.New("injected device failure")
	errReleased      = errors.New("handle already released")
	errModeForbidden = errors.New("current audio mode does not allow recording")
)

// SimulatedConfig holds the settings of the in-process backend.
type SimulatedConfig struct {
	TickMs int `mapstructure:"tick_ms" default:"100" validate:"gte=1,lte=10000"`
	// MaxDurationMs stops the recorder on its own. 0 means unlimited.
	MaxDurationMs int64 `mapstructure:"max_duration_ms" validate:"gte=0"`
	// MinDataMs is the shortest capture that yields audio data.
	MinDataMs      int64 `mapstructure:"min_data_ms" default:"200" validate:"gte=0"`
	DenyPermission bool  `mapstructure:"deny_permission"`
	FailPrepare    bool  `mapstructure:"fail_prepare"`
	FailStart      bool  `mapstructure:"fail_start"`
	FailLoad       bool  `mapstructure:"fail_load"`
}

func (c SimulatedConfig) tick() time.Duration {
	return time.Duration(c.TickMs) * time.Millisecond
}

// Simulated is an audio device that produces silence in memory. It follows
// the status contract of a real backend: subscribers are called from a
// ticker goroutine and must not block.
type Simulated struct {
	cfg SimulatedConfig

	mu         sync.Mutex
	mode       audio.Mode
	recordings map[string]int64 // uri -> captured millis
}

// NewSimulated decodes settings over the defaults and creates the backend,
// so an explicit zero such as min_data_ms: 0 is kept.
func NewSimulated(settings map[string]any) (*Simulated, error) {
	var cfg SimulatedConfig
	if err := defaults.Set(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to set defaults")
	}
	if err := mapstructure.Decode(settings, &cfg); err != nil {
		return nil, errors.Wrap(err, "failed to decode settings")
	}
	zlog.Debug().Msgf("simulated device config: %+v", cfg)
	if err := validator.New().Struct(cfg); err != nil {
		zlog.Error().Msgf("simulated device validation failed: %v", err)
		return nil, errors.Wrap(err, "validation failed")
	}
	return &Simulated{
		cfg:        cfg,
		recordings: make(map[string]int64),
	}, nil
}

// Config returns the effective settings.
func (d *Simulated) Config() SimulatedConfig {
	return d.cfg
}

// RequestRecordingPermission grants access unless deny_permission is set.
func (d *Simulated) RequestRecordingPermission(ctx context.Context) (bool, error) {
	return !d.cfg.DenyPermission, nil
}

// SetMode records the audio mode; recorders only start while it allows recording.
func (d *Simulated) SetMode(ctx context.Context, mode audio.Mode) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.mode = mode
	zlog.Debug().Msgf("audio mode set: allows_recording=%t silent_mode=%t background=%t duck_others=%t",
		mode.AllowsRecording, mode.PlaysInSilentMode, mode.StaysActiveInBackground, mode.DuckOthers)
	return nil
}

// Mode returns the last mode set.
func (d *Simulated) Mode() audio.Mode {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.mode
}

// PrepareRecording creates an idle recorder whose URI extension follows the preset.
func (d *Simulated) PrepareRecording(ctx context.Context, preset audio.QualityPreset) (audio.RecordingHandle, error) {
	if d.cfg.FailPrepare {
		return nil, errors.Wrap(errInjected, "prepare recording")
	}

	ext := ".m4a"
	if preset == audio.PresetLowQuality {
		ext = ".3gp"
	}
	r := &recorder{
		dev: d,
		uri: "memory://recordings/" + uuid.New().String() + ext,
	}
	zlog.Debug().Msgf("recorder prepared: uri=%s preset=%s", r.uri, preset)
	return r, nil
}

// LoadPlayback opens a sound for a recording this device captured.
func (d *Simulated) LoadPlayback(ctx context.Context, rec audio.RecordingHandle, opts audio.PlaybackOptions) (audio.PlaybackHandle, error) {
	if d.cfg.FailLoad {
		return nil, errors.Wrap(errInjected, "load playback")
	}
	if rec == nil {
		return nil, errors.New("no recording to load")
	}

	d.mu.Lock()
	duration, ok := d.recordings[rec.URI()]
	d.mu.Unlock()
	if !ok {
		return nil, errors.Newf("recording not found: %s", rec.URI())
	}
	return newSound(d.cfg.tick(), duration, opts), nil
}

func (d *Simulated) allowsRecording() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.mode.AllowsRecording
}

func (d *Simulated) store(uri string, durationMillis int64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.recordings[uri] = durationMillis
}
