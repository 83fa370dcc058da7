package session

import (
	"context"

	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/voicememo/internal/app/guard"
	"github.com/osa030/voicememo/internal/app/playback"
	"github.com/osa030/voicememo/internal/app/session/state"
	"github.com/osa030/voicememo/internal/domain/audio"
)

// ToggleRecord starts a recording, or stops the current one and loads it
// for playback.
func (c *Controller) ToggleRecord(ctx context.Context) (guard.Result, error) {
	return c.do(ctx, guard.Request{Command: guard.CommandToggleRecord})
}

// TogglePlayPause plays the loaded recording if it is not playing, and
// pauses it otherwise.
func (c *Controller) TogglePlayPause(ctx context.Context) (guard.Result, error) {
	return c.do(ctx, guard.Request{Command: guard.CommandTogglePlayPause})
}

// StopPlayback stops and rewinds the loaded recording.
func (c *Controller) StopPlayback(ctx context.Context) (guard.Result, error) {
	return c.do(ctx, guard.Request{Command: guard.CommandStopPlayback})
}

// SeekBegin starts a slider drag and pauses playback.
func (c *Controller) SeekBegin(ctx context.Context) (guard.Result, error) {
	return c.do(ctx, guard.Request{Command: guard.CommandSeekBegin})
}

// SeekUpdate moves the slider preview without touching the device.
func (c *Controller) SeekUpdate(ctx context.Context, fraction float64) (guard.Result, error) {
	return c.do(ctx, guard.Request{Command: guard.CommandSeekUpdate, Value: fraction})
}

// SeekComplete ends the drag and seeks to fraction of the duration,
// resuming playback if it was playing when the drag began.
func (c *Controller) SeekComplete(ctx context.Context, fraction float64) (guard.Result, error) {
	return c.do(ctx, guard.Request{Command: guard.CommandSeekComplete, Value: fraction})
}

// SetVolume sets the playback volume in [0,1].
func (c *Controller) SetVolume(ctx context.Context, volume float64) (guard.Result, error) {
	return c.do(ctx, guard.Request{Command: guard.CommandSetVolume, Value: volume})
}

// SetMuted mutes or unmutes playback.
func (c *Controller) SetMuted(ctx context.Context, muted bool) (guard.Result, error) {
	return c.do(ctx, guard.Request{Command: guard.CommandSetMuted, Flag: muted})
}

// SetRate sets the playback rate in (0,32].
func (c *Controller) SetRate(ctx context.Context, rate float64, correctPitch bool) (guard.Result, error) {
	return c.do(ctx, guard.Request{Command: guard.CommandSetRate, Value: rate, Flag: correctPitch})
}

func (c *Controller) do(ctx context.Context, req guard.Request) (guard.Result, error) {
	if c.closing.Load() {
		return guard.Result{}, ErrClosed
	}

	reply := make(chan commandReply, 1)
	select {
	case c.inbox <- commandMsg{req: req, reply: reply}:
	case <-ctx.Done():
		return guard.Result{}, ctx.Err()
	case <-c.loopDone:
		return guard.Result{}, ErrClosed
	}

	var r commandReply
	select {
	case r = <-reply:
	case <-ctx.Done():
		return guard.Result{}, ctx.Err()
	case <-c.loopDone:
		return guard.Result{}, ErrClosed
	}
	if r.err != nil || r.done == nil {
		return r.result, r.err
	}

	select {
	case err := <-r.done:
		return r.result, err
	case <-ctx.Done():
		return r.result, ctx.Err()
	case <-c.workerDone:
		return r.result, ErrClosed
	}
}

func (c *Controller) handleCommand(m commandMsg) bool {
	respond := func(r commandReply) {
		c.afterPublish = append(c.afterPublish, func() { m.reply <- r })
	}

	if c.closing.Load() {
		respond(commandReply{err: ErrClosed})
		return false
	}

	result := c.guards.Execute(m.req, c.s)
	if !result.Accepted {
		zlog.Debug().Msgf("command ignored: command=%s code=%s mode=%s", m.req.Command, result.Code, c.s.Mode)
		c.observer.CommandHandled(m.req.Command, result)
		respond(commandReply{result: result})
		return false
	}

	var (
		done    <-chan error
		changed bool
	)
	switch m.req.Command {
	case guard.CommandToggleRecord:
		if c.s.Mode == state.ModeRecording {
			done, result = c.startTransition(c.stopTransition())
		} else {
			done, result = c.startTransition(c.beginTransition())
		}
		changed = result.Accepted
	case guard.CommandSeekUpdate:
		c.s.SeekPreview = m.req.Value
		changed = true
	case guard.CommandSetVolume, guard.CommandSetMuted, guard.CommandSetRate:
		done, result = c.applyPreference(m.req)
		changed = result.Accepted
	default:
		done, result = c.playbackCommand(m.req)
		changed = result.Accepted
	}

	c.observer.CommandHandled(m.req.Command, result)
	respond(commandReply{result: result, done: done})
	return changed
}

// playbackCommand runs a command that needs the loaded sound.
func (c *Controller) playbackCommand(req guard.Request) (<-chan error, guard.Result) {
	pb, ok := c.s.ActivePlayback()
	if !ok || c.s.Playback == nil {
		return nil, guard.Reject(guard.CodeNoPlayback)
	}
	h := pb.Handle
	p := c.s.Playback

	var (
		name string
		call func(ctx context.Context) error
		mut  func()
	)
	switch req.Command {
	case guard.CommandTogglePlayPause:
		if p.IsPlaying {
			name, call = "pause", h.Pause
			mut = func() { p.ShouldPlay = false }
		} else {
			name, call = "play", h.Play
			mut = func() { p.ShouldPlay = true }
		}
	case guard.CommandStopPlayback:
		name, call = "stop", h.Stop
		mut = func() {
			p.PositionMillis = 0
			p.IsPlaying = false
			p.ShouldPlay = false
		}
	case guard.CommandSeekBegin:
		name, call = "pause", h.Pause
		mut = func() {
			c.s.IsSeeking = true
			c.s.PendingResumePlayback = p.ShouldPlay
			c.s.SeekPreview = playback.SliderFraction(p.PositionMillis, p.DurationMillis)
		}
	case guard.CommandSeekComplete:
		target := playback.SeekTarget(req.Value, p.DurationMillis)
		resume := c.s.PendingResumePlayback
		if resume {
			name = "play_from"
			call = func(ctx context.Context) error { return h.PlayFrom(ctx, target) }
		} else {
			name = "seek_to"
			call = func(ctx context.Context) error { return h.SeekTo(ctx, target) }
		}
		mut = func() {
			c.s.IsSeeking = false
			c.s.PendingResumePlayback = false
			c.s.SeekPreview = req.Value
			p.PositionMillis = target
			p.ShouldPlay = resume
		}
		zlog.Debug().Msgf("seek complete: fraction=%.3f target_ms=%d resume=%t", req.Value, target, resume)
	default:
		return nil, guard.Reject(guard.CodeNoPlayback)
	}

	done, ok := c.submit(name, call)
	if !ok {
		return nil, guard.Reject(guard.CodeDeviceBusy)
	}
	mut()
	return done, guard.Accept()
}

// applyPreference updates the preferences and the loaded sound, if any.
func (c *Controller) applyPreference(req guard.Request) (<-chan error, guard.Result) {
	var (
		name string
		call func(ctx context.Context, h audio.PlaybackHandle) error
		mut  func(prefs *state.Preferences)
	)
	switch req.Command {
	case guard.CommandSetVolume:
		name = "set_volume"
		call = func(ctx context.Context, h audio.PlaybackHandle) error { return h.SetVolume(ctx, req.Value) }
		mut = func(prefs *state.Preferences) { prefs.Volume = req.Value }
	case guard.CommandSetMuted:
		name = "set_muted"
		call = func(ctx context.Context, h audio.PlaybackHandle) error { return h.SetMuted(ctx, req.Flag) }
		mut = func(prefs *state.Preferences) { prefs.Muted = req.Flag }
	default:
		name = "set_rate"
		call = func(ctx context.Context, h audio.PlaybackHandle) error { return h.SetRate(ctx, req.Value, req.Flag) }
		mut = func(prefs *state.Preferences) {
			prefs.Rate = req.Value
			prefs.ShouldCorrectPitch = req.Flag
		}
	}

	var done <-chan error
	if pb, ok := c.s.ActivePlayback(); ok && c.s.Playback != nil {
		h := pb.Handle
		var submitted bool
		done, submitted = c.submit(name, func(ctx context.Context) error { return call(ctx, h) })
		if !submitted {
			return nil, guard.Reject(guard.CodeDeviceBusy)
		}
		p := c.s.Playback
		prefs := state.Preferences{Volume: p.Volume, Rate: p.Rate, Muted: p.Muted, ShouldCorrectPitch: p.ShouldCorrectPitch}
		mut(&prefs)
		p.Volume, p.Rate, p.Muted, p.ShouldCorrectPitch = prefs.Volume, prefs.Rate, prefs.Muted, prefs.ShouldCorrectPitch
	}
	mut(&c.s.Prefs)
	return done, guard.Accept()
}

// submit queues a device call for a playback command. A failed call is
// recorded as the session's last error.
func (c *Controller) submit(name string, call func(ctx context.Context) error) (<-chan error, bool) {
	done := make(chan error, 1)
	ok := c.enqueue(job{
		name: name,
		run: func(ctx context.Context) error {
			if err := call(ctx); err != nil {
				err = deviceError(err, "playback command "+name+" failed")
				c.apply(func(s *state.Session) { c.fail(err) })
				return err
			}
			return nil
		},
		done: done,
	})
	return done, ok
}
