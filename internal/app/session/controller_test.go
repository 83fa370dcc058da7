package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/voicememo/internal/app/guard"
	"github.com/osa030/voicememo/internal/app/playback"
	"github.com/osa030/voicememo/internal/app/session/state"
	"github.com/osa030/voicememo/internal/domain/audio"
)

const (
	waitFor = time.Second
	tick    = 5 * time.Millisecond
)

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Preset = audio.PresetLowQuality
	cfg.QueueSize = 8
	cfg.EventBuffer = 256
	return cfg
}

func newTestController(t *testing.T, d *fakeDevice, opts ...Option) *Controller {
	t.Helper()
	c, err := NewController(d, testConfig(), opts...)
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, c.Close(context.Background()))
		assert.Zero(t, c.violations.Load(), "session invariants were violated")
	})
	return c
}

// flush waits until every message posted so far has been handled.
func flush(c *Controller) {
	c.apply(func(*state.Session) {})
}

func accepted(t *testing.T, res guard.Result, err error) {
	t.Helper()
	require.NoError(t, err)
	require.True(t, res.Accepted, "command rejected: %s", res.Code)
}

func startRecording(t *testing.T, c *Controller) {
	t.Helper()
	res, err := c.ToggleRecord(context.Background())
	accepted(t, res, err)
	require.Equal(t, state.ModeRecording, c.Snapshot().Mode)
}

func recordAndLoad(t *testing.T, c *Controller, d *fakeDevice) *fakeSound {
	t.Helper()
	startRecording(t, c)
	res, err := c.ToggleRecord(context.Background())
	accepted(t, res, err)
	require.Equal(t, state.ModePlaybackReady, c.Snapshot().Mode)
	s := d.sound(0)
	require.NotNil(t, s)
	return s
}

func loadedStatus(position, duration int64, playing bool) audio.PlaybackStatus {
	return audio.PlaybackStatus{
		Loaded:             true,
		PositionMillis:     position,
		DurationMillis:     duration,
		IsPlaying:          playing,
		ShouldPlay:         playing,
		IsLooping:          true,
		IsSeekable:         true,
		Rate:               1,
		Volume:             1,
		ShouldCorrectPitch: true,
	}
}

func TestNewController_Validation(t *testing.T) {
	_, err := NewController(nil, testConfig())
	assert.Error(t, err)

	cfg := testConfig()
	cfg.Preset = "lossless"
	_, err = NewController(newFakeDevice(), cfg)
	assert.Error(t, err)
}

func TestController_RecordThenPlayback(t *testing.T) {
	ctx := context.Background()
	d := newFakeDevice()
	c := newTestController(t, d)

	snap := c.Snapshot()
	assert.Equal(t, state.ModeIdle, snap.Mode)
	assert.True(t, snap.CanRecord())
	assert.False(t, snap.PlaybackAllowed())

	startRecording(t, c)
	snap = c.Snapshot()
	assert.Equal(t, state.ResourceRecording, snap.Resource)
	assert.False(t, snap.IsLoading)
	assert.True(t, snap.IsRecording())
	assert.Equal(t, []audio.Mode{audio.RecordingMode()}, d.modeHistory())

	rec := d.recorder(0)
	require.NotNil(t, rec)
	assert.Equal(t, audio.PresetLowQuality, rec.preset)

	rec.send(audio.RecordingStatus{CanRecord: true, IsRecording: true, DurationMillis: 1500})
	flush(c)
	assert.Equal(t, "00:01", c.Snapshot().RecordingTimestamp())

	res, err := c.ToggleRecord(ctx)
	accepted(t, res, err)

	snap = c.Snapshot()
	assert.Equal(t, state.ModePlaybackReady, snap.Mode)
	assert.Equal(t, state.ResourcePlayback, snap.Resource)
	assert.False(t, snap.IsLoading)
	require.NotNil(t, snap.Playback)
	assert.Equal(t, int64(5000), snap.Playback.DurationMillis)
	assert.False(t, snap.Playback.IsPlaying)
	require.NotNil(t, snap.Recording)
	assert.Equal(t, int64(5000), snap.Recording.DurationMillis)
	assert.False(t, snap.Recording.IsRecording)
	assert.Equal(t, "00:00 / 00:05", snap.PlaybackTimestamp())
	assert.True(t, snap.PlaybackAllowed())
	assert.Nil(t, snap.LastError)

	assert.Equal(t, []audio.Mode{audio.RecordingMode(), audio.PlaybackMode()}, d.modeHistory())
	assert.Equal(t, []string{"start", "detach", "stop_and_release"}, rec.callLog())
	assert.Equal(t, []audio.PlaybackOptions{{
		IsLooping:          true,
		Volume:             1,
		Rate:               1,
		ShouldCorrectPitch: true,
	}}, d.loadHistory())
}

func TestController_NoDataRecorded(t *testing.T) {
	ctx := context.Background()
	d := newFakeDevice()
	d.stopErr = errors.Wrap(audio.ErrNoData, "recorder stopped immediately")
	c := newTestController(t, d)

	startRecording(t, c)
	res, err := c.ToggleRecord(ctx)
	require.Error(t, err)
	assert.True(t, res.Accepted)
	assert.True(t, errors.Is(err, ErrNoDataRecorded))
	assert.Equal(t, state.FailureNoDataRecorded, KindOf(err))

	snap := c.Snapshot()
	assert.Equal(t, state.ModeIdle, snap.Mode)
	assert.Equal(t, state.ResourceNone, snap.Resource)
	assert.Nil(t, snap.Recording)
	assert.Nil(t, snap.Playback)
	require.NotNil(t, snap.LastError)
	assert.Equal(t, state.FailureNoDataRecorded, snap.LastError.Kind)
	assert.True(t, snap.LastError.Warning)

	assert.Empty(t, d.loadHistory())
	assert.Len(t, d.modeHistory(), 1)

	var sawFailure bool
	for drained := false; !drained; {
		select {
		case ev := <-c.Events():
			if ev.Type == EventFailure {
				sawFailure = true
			}
		default:
			drained = true
		}
	}
	assert.True(t, sawFailure)
}

func TestController_Seek(t *testing.T) {
	tests := []struct {
		name     string
		playing  bool
		wantSeek []int64
		wantPlay []int64
	}{
		{name: "resumes when it was playing", playing: true, wantPlay: []int64{60000}},
		{name: "stays paused when it was paused", playing: false, wantSeek: []int64{60000}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			d := newFakeDevice()
			c := newTestController(t, d)
			s := recordAndLoad(t, c, d)

			s.send(loadedStatus(30000, 120000, tt.playing))
			flush(c)
			assert.InDelta(t, 0.25, c.Snapshot().SliderFraction(), 1e-9)

			res, err := c.SeekBegin(ctx)
			accepted(t, res, err)
			snap := c.Snapshot()
			assert.True(t, snap.IsSeeking)
			assert.InDelta(t, 0.25, snap.SeekPreview, 1e-9)
			assert.Contains(t, s.callLog(), "pause")

			// Position reports are ignored while the slider is held.
			s.send(loadedStatus(31000, 120000, false))
			res, err = c.SeekUpdate(ctx, 0.4)
			accepted(t, res, err)
			snap = c.Snapshot()
			assert.InDelta(t, 0.4, snap.SeekPreview, 1e-9)
			assert.Equal(t, int64(30000), snap.Playback.PositionMillis)

			res, err = c.SeekComplete(ctx, 0.5)
			accepted(t, res, err)

			seekTo, playFrom := s.seeks()
			assert.Equal(t, tt.wantSeek, seekTo)
			assert.Equal(t, tt.wantPlay, playFrom)

			snap = c.Snapshot()
			assert.False(t, snap.IsSeeking)
			assert.Equal(t, int64(60000), snap.Playback.PositionMillis)

			res, err = c.SeekComplete(ctx, 0.5)
			require.NoError(t, err)
			assert.Equal(t, guard.Reject(guard.CodeNotSeeking), res)
		})
	}
}

func TestController_DeviceInitiatedStop(t *testing.T) {
	d := newFakeDevice()
	d.stopDuration = 7000
	c := newTestController(t, d)

	startRecording(t, c)
	rec := d.recorder(0)
	rec.send(audio.RecordingStatus{IsDoneRecording: true, DurationMillis: 7000})

	assert.Eventually(t, func() bool {
		return c.Snapshot().Mode == state.ModePlaybackReady
	}, waitFor, tick)

	snap := c.Snapshot()
	assert.Equal(t, int64(7000), snap.Playback.DurationMillis)
	assert.Equal(t, 1, rec.stops())
	assert.Equal(t, 1, d.recorderCount())
}

func TestController_DeviceStopDuringStartup(t *testing.T) {
	d := newFakeDevice()
	d.startHook = func(r *fakeRecorder) {
		r.send(audio.RecordingStatus{IsDoneRecording: true, DurationMillis: 200})
	}
	c := newTestController(t, d)

	res, err := c.ToggleRecord(context.Background())
	accepted(t, res, err)

	assert.Eventually(t, func() bool {
		return c.Snapshot().Mode == state.ModePlaybackReady
	}, waitFor, tick)
	assert.Equal(t, 1, d.recorder(0).stops())
}

func TestController_ManualStopRacesDeviceStop(t *testing.T) {
	done := audio.RecordingStatus{IsDoneRecording: true, DurationMillis: 5000}

	t.Run("manual stop first", func(t *testing.T) {
		d := newFakeDevice()
		gate := make(chan struct{})
		d.stopGate = gate
		c := newTestController(t, d)
		open := sync.OnceFunc(func() { close(gate) })
		t.Cleanup(open)

		startRecording(t, c)
		rec := d.recorder(0)

		type outcome struct {
			res guard.Result
			err error
		}
		stopped := make(chan outcome, 1)
		go func() {
			res, err := c.ToggleRecord(context.Background())
			stopped <- outcome{res, err}
		}()

		<-rec.stopEntered
		rec.sendLate(done)
		flush(c)
		snap := c.Snapshot()
		assert.Equal(t, state.ModeStoppingRecording, snap.Mode)
		assert.True(t, snap.IsLoading)

		open()
		out := <-stopped
		accepted(t, out.res, out.err)

		assert.Equal(t, state.ModePlaybackReady, c.Snapshot().Mode)
		assert.Equal(t, 1, rec.stops())
		assert.Len(t, d.loadHistory(), 1)
	})

	t.Run("device stop first", func(t *testing.T) {
		d := newFakeDevice()
		gate := make(chan struct{})
		d.stopGate = gate
		c := newTestController(t, d)
		open := sync.OnceFunc(func() { close(gate) })
		t.Cleanup(open)

		startRecording(t, c)
		rec := d.recorder(0)
		rec.send(done)
		<-rec.stopEntered

		res, err := c.ToggleRecord(context.Background())
		require.NoError(t, err)
		assert.Equal(t, guard.Reject(guard.CodeTransitionInFlight), res)

		open()
		assert.Eventually(t, func() bool {
			return c.Snapshot().Mode == state.ModePlaybackReady
		}, waitFor, tick)
		assert.Equal(t, 1, rec.stops())
		assert.Equal(t, 1, d.recorderCount())
	})
}

func TestController_RecordOverPlaybackReleasesSound(t *testing.T) {
	d := newFakeDevice()
	c := newTestController(t, d)
	s := recordAndLoad(t, c, d)

	startRecording(t, c)

	assert.Equal(t, []string{"stop", "detach", "release"}, s.callLog())
	snap := c.Snapshot()
	assert.Equal(t, state.ResourceRecording, snap.Resource)
	assert.Nil(t, snap.Playback)
	assert.False(t, snap.IsSeeking)
	assert.Equal(t, 2, d.recorderCount())
}

func TestController_DeviceUnavailable(t *testing.T) {
	tests := []struct {
		name      string
		setup     func(d *fakeDevice)
		record    bool // start recording successfully, then fail on stop
		loaded    bool // reach PlaybackReady first, then fail the next recording
		recorders int
	}{
		{
			name:  "set mode fails",
			setup: func(d *fakeDevice) { d.setModeErr = errors.New("session category rejected") },
		},
		{
			name:  "prepare fails",
			setup: func(d *fakeDevice) { d.prepareErr = errors.New("microphone busy") },
		},
		{
			name:      "start fails",
			setup:     func(d *fakeDevice) { d.startErr = errors.New("input route lost") },
			recorders: 1,
		},
		{
			name:      "stop fails",
			setup:     func(d *fakeDevice) { d.stopErr = errors.New("encoder crashed") },
			record:    true,
			recorders: 1,
		},
		{
			name:      "load fails",
			setup:     func(d *fakeDevice) { d.loadErr = errors.New("unsupported container") },
			record:    true,
			recorders: 1,
		},
		{
			name:      "set mode fails after playback",
			setup:     func(d *fakeDevice) { d.setModeErr = errors.New("session category rejected") },
			loaded:    true,
			recorders: 1,
		},
		{
			name:      "prepare fails after playback",
			setup:     func(d *fakeDevice) { d.prepareErr = errors.New("microphone busy") },
			loaded:    true,
			recorders: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := newFakeDevice()
			if !tt.loaded {
				tt.setup(d)
			}
			c := newTestController(t, d)

			switch {
			case tt.record:
				startRecording(t, c)
			case tt.loaded:
				recordAndLoad(t, c, d)
				require.NotNil(t, c.Snapshot().Recording)
				d.mu.Lock()
				tt.setup(d)
				d.mu.Unlock()
			}
			res, err := c.ToggleRecord(context.Background())
			require.Error(t, err)
			assert.True(t, res.Accepted)
			assert.True(t, errors.Is(err, ErrDeviceUnavailable))

			snap := c.Snapshot()
			assert.Equal(t, state.ModeIdle, snap.Mode)
			assert.Equal(t, state.ResourceNone, snap.Resource)
			assert.False(t, snap.IsLoading)
			assert.Nil(t, snap.Playback)
			require.NotNil(t, snap.LastError)
			assert.Equal(t, state.FailureDeviceUnavailable, snap.LastError.Kind)
			assert.False(t, snap.LastError.Warning)
			assert.Equal(t, tt.recorders, d.recorderCount())
			if tt.loaded {
				assert.Nil(t, snap.Recording, "a failed new recording must not leave the old one behind")
				assert.Equal(t, "00:00", snap.RecordingTimestamp())
			}
		})
	}
}

func TestController_StartFailureReleasesRecorder(t *testing.T) {
	d := newFakeDevice()
	d.startErr = errors.New("input route lost")
	c := newTestController(t, d)

	_, err := c.ToggleRecord(context.Background())
	require.Error(t, err)

	assert.Equal(t, []string{"start", "detach", "stop_and_release"}, d.recorder(0).callLog())
	assert.Nil(t, c.Snapshot().Recording)
}

func TestController_PlaybackUnloaded(t *testing.T) {
	d := newFakeDevice()
	c := newTestController(t, d)
	s := recordAndLoad(t, c, d)

	s.send(audio.PlaybackStatus{Loaded: false, Err: errors.New("decoder crashed")})

	assert.Eventually(t, func() bool {
		return s.releases() == 1 && c.Snapshot().Mode == state.ModeIdle
	}, waitFor, tick)
	snap := c.Snapshot()
	assert.Equal(t, state.ModeIdle, snap.Mode)
	assert.Equal(t, state.ResourceNone, snap.Resource)
	assert.Nil(t, snap.Playback)
	require.NotNil(t, snap.LastError)
	assert.Equal(t, state.FailurePlaybackLoad, snap.LastError.Kind)
	assert.Equal(t, []string{"detach", "release"}, s.callLog())
}

func TestController_PlaybackStatusClampsPosition(t *testing.T) {
	d := newFakeDevice()
	c := newTestController(t, d)
	s := recordAndLoad(t, c, d)

	s.send(loadedStatus(6000, 5000, true))
	flush(c)
	snap := c.Snapshot()
	assert.Equal(t, int64(5000), snap.Playback.PositionMillis)
	assert.Equal(t, playback.StatePlaying, snap.PlaybackState())

	// An unknown duration keeps the last known one.
	s.send(loadedStatus(1000, 0, false))
	flush(c)
	snap = c.Snapshot()
	assert.Equal(t, int64(5000), snap.Playback.DurationMillis)
	assert.Equal(t, int64(1000), snap.Playback.PositionMillis)
	assert.Equal(t, playback.StatePaused, snap.PlaybackState())
}

func TestController_StaleStatusDropped(t *testing.T) {
	d := newFakeDevice()
	c := newTestController(t, d)
	recordAndLoad(t, c, d)

	d.recorder(0).sendLate(audio.RecordingStatus{CanRecord: true, IsRecording: true, DurationMillis: 99999})
	flush(c)

	snap := c.Snapshot()
	assert.Equal(t, int64(5000), snap.Recording.DurationMillis)
	assert.False(t, snap.Recording.IsRecording)
	assert.Equal(t, state.ModePlaybackReady, snap.Mode)
}

func TestController_GuardRejections(t *testing.T) {
	ctx := context.Background()
	c := newTestController(t, newFakeDevice())

	tests := []struct {
		name string
		call func() (guard.Result, error)
		code string
	}{
		{"play without playback", func() (guard.Result, error) { return c.TogglePlayPause(ctx) }, guard.CodeNoPlayback},
		{"stop without playback", func() (guard.Result, error) { return c.StopPlayback(ctx) }, guard.CodeNoPlayback},
		{"seek begin without playback", func() (guard.Result, error) { return c.SeekBegin(ctx) }, guard.CodeNoPlayback},
		{"seek update without playback", func() (guard.Result, error) { return c.SeekUpdate(ctx, 0.5) }, guard.CodeNoPlayback},
		{"seek complete out of range", func() (guard.Result, error) { return c.SeekComplete(ctx, 2) }, guard.CodeOutOfRange},
		{"negative volume", func() (guard.Result, error) { return c.SetVolume(ctx, -0.1) }, guard.CodeOutOfRange},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := tt.call()
			require.NoError(t, err)
			assert.Equal(t, guard.Reject(tt.code), res)
		})
	}
	assert.Equal(t, uint64(0), c.Snapshot().Version)
}

func TestController_TogglePlayPauseAndStop(t *testing.T) {
	ctx := context.Background()
	d := newFakeDevice()
	c := newTestController(t, d)
	s := recordAndLoad(t, c, d)

	res, err := c.TogglePlayPause(ctx)
	accepted(t, res, err)
	assert.Equal(t, []string{"play"}, s.callLog())
	assert.True(t, c.Snapshot().Playback.ShouldPlay)

	s.send(loadedStatus(1000, 5000, true))
	flush(c)

	res, err = c.TogglePlayPause(ctx)
	accepted(t, res, err)
	assert.Equal(t, []string{"play", "pause"}, s.callLog())

	res, err = c.StopPlayback(ctx)
	accepted(t, res, err)
	assert.Equal(t, []string{"play", "pause", "stop"}, s.callLog())

	snap := c.Snapshot()
	assert.Equal(t, int64(0), snap.Playback.PositionMillis)
	assert.False(t, snap.Playback.IsPlaying)
	assert.Equal(t, playback.StateStopped, snap.PlaybackState())
}

func TestController_PlaybackCommandFailure(t *testing.T) {
	d := newFakeDevice()
	c := newTestController(t, d)
	s := recordAndLoad(t, c, d)

	s.mu.Lock()
	s.failCalls = errors.New("output route lost")
	s.mu.Unlock()

	res, err := c.TogglePlayPause(context.Background())
	require.Error(t, err)
	assert.True(t, res.Accepted)
	assert.True(t, errors.Is(err, ErrDeviceUnavailable))

	snap := c.Snapshot()
	require.NotNil(t, snap.LastError)
	assert.Equal(t, state.FailureDeviceUnavailable, snap.LastError.Kind)
	assert.Equal(t, state.ModePlaybackReady, snap.Mode)
}

func TestController_Preferences(t *testing.T) {
	ctx := context.Background()
	d := newFakeDevice()
	c := newTestController(t, d)

	res, err := c.SetVolume(ctx, 0.3)
	accepted(t, res, err)
	res, err = c.SetMuted(ctx, true)
	accepted(t, res, err)
	res, err = c.SetRate(ctx, 1.5, false)
	accepted(t, res, err)

	assert.Equal(t, state.Preferences{Volume: 0.3, Rate: 1.5, Muted: true}, c.Snapshot().Prefs)

	s := recordAndLoad(t, c, d)
	assert.Equal(t, []audio.PlaybackOptions{{
		IsLooping: true,
		IsMuted:   true,
		Volume:    0.3,
		Rate:      1.5,
	}}, d.loadHistory())
	assert.Empty(t, s.callLog())

	res, err = c.SetVolume(ctx, 0.8)
	accepted(t, res, err)
	assert.Equal(t, []string{"set_volume"}, s.callLog())

	snap := c.Snapshot()
	assert.Equal(t, 0.8, snap.Prefs.Volume)
	assert.Equal(t, 0.8, snap.Playback.Volume)

	res, err = c.SetRate(ctx, 40, true)
	require.NoError(t, err)
	assert.Equal(t, guard.Reject(guard.CodeOutOfRange), res)
}

func TestController_CloseReleasesActiveResource(t *testing.T) {
	t.Run("playback", func(t *testing.T) {
		d := newFakeDevice()
		c := newTestController(t, d)
		s := recordAndLoad(t, c, d)

		require.NoError(t, c.Close(context.Background()))
		assert.Equal(t, 1, s.releases())

		_, err := c.ToggleRecord(context.Background())
		assert.True(t, errors.Is(err, ErrClosed))
	})

	t.Run("recording", func(t *testing.T) {
		d := newFakeDevice()
		c := newTestController(t, d)
		startRecording(t, c)

		require.NoError(t, c.Close(context.Background()))
		assert.Equal(t, 1, d.recorder(0).stops())
		assert.Equal(t, state.ModeIdle, c.Snapshot().Mode)
	})
}

type countingObserver struct {
	mu          sync.Mutex
	commands    map[string]int
	transitions map[string]string
	failures    int
	dropped     int
}

func newCountingObserver() *countingObserver {
	return &countingObserver{commands: map[string]int{}, transitions: map[string]string{}}
}

func (o *countingObserver) CommandHandled(cmd guard.Command, result guard.Result) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.commands[cmd.String()]++
}

func (o *countingObserver) TransitionFinished(name, outcome string, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.transitions[name] = outcome
}

func (o *countingObserver) StatusReceived(_ state.ResourceKind, dropped bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if dropped {
		o.dropped++
	}
}

func (o *countingObserver) FailureReported(state.FailureKind) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.failures++
}

func TestController_Observer(t *testing.T) {
	d := newFakeDevice()
	d.stopErr = audio.ErrNoData
	obs := newCountingObserver()
	c := newTestController(t, d, WithObserver(obs))

	startRecording(t, c)
	_, err := c.ToggleRecord(context.Background())
	require.Error(t, err)
	_, err = c.TogglePlayPause(context.Background())
	require.NoError(t, err)

	d.recorder(0).sendLate(audio.RecordingStatus{CanRecord: true})
	flush(c)

	obs.mu.Lock()
	defer obs.mu.Unlock()
	assert.Equal(t, 2, obs.commands["toggle_record"])
	assert.Equal(t, 1, obs.commands["toggle_play_pause"])
	assert.Equal(t, "ok", obs.transitions["begin_recording"])
	assert.Equal(t, string(state.FailureNoDataRecorded), obs.transitions["stop_recording"])
	assert.Equal(t, 1, obs.failures)
	assert.Equal(t, 1, obs.dropped)
}

func TestController_WithGuards(t *testing.T) {
	c := newTestController(t, newFakeDevice(), WithGuards(guard.NewChain()))

	// Without the playback guard the command is still refused by the controller.
	res, err := c.TogglePlayPause(context.Background())
	require.NoError(t, err)
	assert.Equal(t, guard.Reject(guard.CodeNoPlayback), res)
}
