package session

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/voicememo/internal/app/guard"
	"github.com/osa030/voicememo/internal/app/session/state"
	"github.com/osa030/voicememo/internal/domain/audio"
)

// transition is a multi-step device sequence run on the worker. run returns
// the mode the session settles in.
type transition struct {
	name  string
	entry state.Mode
	run   func(ctx context.Context, prior state.Resource) (state.Mode, error)
}

func (c *Controller) beginTransition() transition {
	return transition{name: "begin_recording", entry: state.ModePreparing, run: c.beginRecording}
}

func (c *Controller) stopTransition() transition {
	return transition{name: "stop_recording", entry: state.ModeStoppingRecording, run: c.stopRecording}
}

// startTransition marks the session loading and queues t. Called on the loop.
func (c *Controller) startTransition(t transition) (<-chan error, guard.Result) {
	if c.closing.Load() {
		return nil, guard.Reject(guard.CodeTransitionInFlight)
	}

	prior := c.s.Active
	done := make(chan error, 1)
	ok := c.enqueue(job{
		name: t.name,
		run:  func(ctx context.Context) error { return c.runTransition(ctx, t, prior) },
		done: done,
	})
	if !ok {
		return nil, guard.Reject(guard.CodeDeviceBusy)
	}

	zlog.Info().Msgf("transition started: name=%s from=%s to=%s", t.name, c.s.Mode, t.entry)
	c.s.IsLoading = true
	c.s.Mode = t.entry
	c.transitionPrior = prior
	return done, guard.Accept()
}

func (c *Controller) runTransition(ctx context.Context, t transition, prior state.Resource) error {
	start := time.Now()
	mode, err := t.run(ctx, prior)

	c.apply(func(s *state.Session) {
		s.IsLoading = false
		s.Mode = settle(s, mode)
		c.transitionPrior = nil
		if err != nil {
			c.fail(err)
		}
		zlog.Info().Msgf("transition finished: name=%s mode=%s elapsed=%v", t.name, s.Mode, time.Since(start))
	})

	outcome := "ok"
	if err != nil {
		outcome = string(KindOf(err))
	}
	c.observer.TransitionFinished(t.name, outcome, time.Since(start))
	return err
}

// settle falls back to Idle when the resource a mode needs went away while
// the transition was running.
func settle(s *state.Session, mode state.Mode) state.Mode {
	switch mode {
	case state.ModeRecording:
		if _, ok := s.ActiveRecording(); !ok {
			return state.ModeIdle
		}
	case state.ModePlaybackReady:
		if !s.HasPlayback() {
			return state.ModeIdle
		}
	case state.ModeIdle:
		if s.Active != nil {
			zlog.Error().Msgf("settling idle with an active resource: resource=%s", s.Active.Kind())
		}
	}
	return mode
}

func (c *Controller) beginRecording(ctx context.Context, prior state.Resource) (state.Mode, error) {
	if pb, ok := prior.(state.PlaybackResource); ok {
		if err := pb.Handle.Stop(ctx); err != nil {
			zlog.Debug().Msgf("failed to stop playback before recording: error=%v", err)
		}
		c.discard(ctx, pb)
		// The finished recording goes with its sound.
		c.apply(func(s *state.Session) {
			s.ClearPlayback()
			s.Recording = nil
		})
	}

	if err := c.device.SetMode(ctx, audio.RecordingMode()); err != nil {
		if rec, ok := prior.(state.RecordingResource); ok {
			c.discard(ctx, rec)
			c.apply(func(s *state.Session) { s.ClearRecording() })
		}
		return state.ModeIdle, deviceError(err, "failed to enable recording mode")
	}

	if rec, ok := prior.(state.RecordingResource); ok {
		zlog.Debug().Msgf("releasing previous recorder: uri=%s", rec.Handle.URI())
		c.discard(ctx, rec)
		c.apply(func(s *state.Session) { s.ClearRecording() })
	}

	h, err := c.device.PrepareRecording(ctx, c.cfg.Preset)
	if err != nil {
		return state.ModeIdle, deviceError(err, "failed to prepare recording")
	}

	gen := c.gen.Add(1)
	c.apply(func(s *state.Session) {
		s.Active = state.RecordingResource{Handle: h, Gen: gen}
		s.Recording = &state.Recording{}
	})
	h.OnStatus(c.recordingCallback(gen))

	if err := h.Start(ctx); err != nil {
		c.discard(ctx, state.RecordingResource{Handle: h, Gen: gen})
		c.apply(func(s *state.Session) { s.ClearRecording() })
		return state.ModeIdle, deviceError(err, "failed to start recording")
	}

	c.apply(func(s *state.Session) {
		if s.Recording != nil {
			s.Recording.IsRecording = true
		}
	})
	zlog.Info().Msgf("recording started: uri=%s preset=%s", h.URI(), c.cfg.Preset)
	return state.ModeRecording, nil
}

func (c *Controller) stopRecording(ctx context.Context, prior state.Resource) (state.Mode, error) {
	rec, ok := prior.(state.RecordingResource)
	if !ok {
		zlog.Warn().Msgf("stop requested without a recorder: resource=%s", state.KindOf(prior))
		return state.ModeIdle, nil
	}

	rec.Handle.OnStatus(nil)
	final, err := rec.Handle.StopAndRelease(ctx)
	if err != nil {
		c.apply(func(s *state.Session) { s.ClearRecording() })
		if errors.Is(err, audio.ErrNoData) {
			return state.ModeIdle, errors.Mark(errors.Wrap(err, "recording stopped before any audio was captured"), ErrNoDataRecorded)
		}
		return state.ModeIdle, deviceError(err, "failed to stop recording")
	}

	var prefs state.Preferences
	c.apply(func(s *state.Session) {
		s.Mode = state.ModeLoadingPlayback
		s.Active = nil
		if s.Recording == nil {
			s.Recording = &state.Recording{}
		}
		s.Recording.IsRecording = false
		s.Recording.DurationMillis = final
		prefs = s.Prefs
	})
	zlog.Info().Msgf("recording stopped: uri=%s duration_ms=%d", rec.Handle.URI(), final)

	if err := c.device.SetMode(ctx, audio.PlaybackMode()); err != nil {
		c.apply(func(s *state.Session) { s.ClearRecording() })
		return state.ModeIdle, deviceError(err, "failed to enable playback mode")
	}

	opts := audio.PlaybackOptions{
		ShouldPlay:         false,
		IsLooping:          c.cfg.Looping,
		IsMuted:            prefs.Muted,
		Volume:             prefs.Volume,
		Rate:               prefs.Rate,
		ShouldCorrectPitch: prefs.ShouldCorrectPitch,
	}
	pb, err := c.device.LoadPlayback(ctx, rec.Handle, opts)
	if err != nil {
		c.apply(func(s *state.Session) { s.ClearRecording() })
		return state.ModeIdle, deviceError(err, "failed to load recording for playback")
	}

	gen := c.gen.Add(1)
	c.apply(func(s *state.Session) {
		s.Active = state.PlaybackResource{Handle: pb, Gen: gen}
		s.Playback = state.NewPlayback(opts, final)
	})
	pb.OnStatus(c.playbackCallback(gen))

	zlog.Info().Msgf("playback loaded: uri=%s duration_ms=%d looping=%t", rec.Handle.URI(), final, opts.IsLooping)
	return state.ModePlaybackReady, nil
}

// fail records err as the session's last error. Called on the loop.
func (c *Controller) fail(err error) {
	kind := KindOf(err)
	warning := IsWarning(err)
	c.s.LastError = &state.Failure{
		Kind:    kind,
		Message: err.Error(),
		Warning: warning,
		At:      time.Now(),
	}
	if warning {
		zlog.Warn().Msgf("session warning: kind=%s error=%v", kind, err)
	} else {
		zlog.Error().Msgf("session failure: kind=%s error=%v", kind, err)
	}
	c.observer.FailureReported(kind)
}
