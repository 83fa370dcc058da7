package audio

// QualityPreset selects the recorder encoding settings.
type QualityPreset string

const (
	PresetLowQuality  QualityPreset = "low_quality"
	PresetHighQuality QualityPreset = "high_quality"
)

// Mode is the process-wide audio mode.
type Mode struct {
	AllowsRecording         bool
	PlaysInSilentMode       bool
	StaysActiveInBackground bool
	DuckOthers              bool
}

// RecordingMode returns the mode used while a recorder is active.
func RecordingMode() Mode {
	return Mode{
		AllowsRecording:         true,
		PlaysInSilentMode:       true,
		StaysActiveInBackground: true,
		DuckOthers:              true,
	}
}

// PlaybackMode returns the mode used once recording has finished.
func PlaybackMode() Mode {
	m := RecordingMode()
	m.AllowsRecording = false
	return m
}

// RecordingStatus is pushed by a RecordingHandle while it is subscribed.
type RecordingStatus struct {
	CanRecord       bool
	IsRecording     bool
	IsDoneRecording bool
	DurationMillis  int64
}

// PlaybackStatus is pushed by a PlaybackHandle while it is subscribed.
// DurationMillis is 0 when the device does not know the duration yet.
type PlaybackStatus struct {
	Loaded             bool
	PositionMillis     int64
	DurationMillis     int64
	IsPlaying          bool
	ShouldPlay         bool
	IsLooping          bool
	IsSeekable         bool
	Rate               float64
	IsMuted            bool
	Volume             float64
	ShouldCorrectPitch bool
	Err                error // set only when Loaded is false
}

// PlaybackOptions are applied when a sound is loaded.
type PlaybackOptions struct {
	ShouldPlay         bool
	IsLooping          bool
	IsMuted            bool
	Volume             float64
	Rate               float64
	ShouldCorrectPitch bool
}
