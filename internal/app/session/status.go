package session

import (
	"context"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/voicememo/internal/app/playback"
	"github.com/osa030/voicememo/internal/app/session/state"
)

func (c *Controller) onRecordingStatus(m recordingStatusMsg) bool {
	rec, ok := c.s.ActiveRecording()
	if !ok || rec.Gen != m.gen {
		zlog.Debug().Msgf("stale recording status dropped: gen=%d", m.gen)
		c.observer.StatusReceived(state.ResourceRecording, true)
		return false
	}
	c.observer.StatusReceived(state.ResourceRecording, false)

	st := m.status
	if c.s.Recording == nil {
		c.s.Recording = &state.Recording{}
	}

	if st.CanRecord {
		c.s.Recording.IsRecording = st.IsRecording
		c.s.Recording.DurationMillis = st.DurationMillis
		return true
	}
	if !st.IsDoneRecording {
		return false
	}

	c.s.Recording.IsRecording = false
	c.s.Recording.DurationMillis = st.DurationMillis

	switch {
	case !c.s.IsLoading && c.s.Mode == state.ModeRecording:
		zlog.Info().Msgf("recording finished by device: duration_ms=%d", st.DurationMillis)
		c.startDeviceStop()
	case c.s.Mode == state.ModePreparing:
		// The recorder finished before the start sequence completed.
		c.pendingDeviceStop = m.gen
	default:
		zlog.Debug().Msgf("recording done while transition in flight: mode=%s", c.s.Mode)
	}
	return true
}

// checkDeviceStop runs a device-initiated stop deferred by startup.
func (c *Controller) checkDeviceStop() bool {
	if c.pendingDeviceStop == 0 || c.s.IsLoading {
		return false
	}
	gen := c.pendingDeviceStop
	c.pendingDeviceStop = 0

	if rec, ok := c.s.ActiveRecording(); ok && rec.Gen == gen && c.s.Mode == state.ModeRecording {
		zlog.Info().Msg("recording finished by device during startup")
		c.startDeviceStop()
		return true
	}
	return false
}

func (c *Controller) startDeviceStop() {
	if _, result := c.startTransition(c.stopTransition()); !result.Accepted {
		zlog.Warn().Msgf("device-initiated stop not started: code=%s", result.Code)
	}
}

func (c *Controller) onPlaybackStatus(m playbackStatusMsg) bool {
	pb, ok := c.s.ActivePlayback()
	if !ok || pb.Gen != m.gen {
		zlog.Debug().Msgf("stale playback status dropped: gen=%d", m.gen)
		c.observer.StatusReceived(state.ResourcePlayback, true)
		return false
	}
	c.observer.StatusReceived(state.ResourcePlayback, false)

	st := m.status
	if !st.Loaded {
		zlog.Info().Msgf("playback unloaded by device: gen=%d", m.gen)
		c.s.ClearPlayback()
		if !c.s.IsLoading {
			c.s.Mode = state.ModeIdle
		}
		if st.Err != nil {
			c.fail(errors.Mark(errors.Wrap(st.Err, "playback unloaded"), ErrPlaybackLoad))
		}
		if c.transitionPrior == nil || c.transitionPrior.Generation() != m.gen {
			c.enqueueCleanup(job{
				name: "release_playback",
				run: func(ctx context.Context) error {
					c.discard(ctx, pb)
					return nil
				},
			})
		}
		return true
	}

	if c.s.Playback == nil {
		c.s.Playback = &state.Playback{}
	}
	p := c.s.Playback

	duration := st.DurationMillis
	if duration <= 0 {
		duration = p.DurationMillis
	}
	position := st.PositionMillis
	if c.s.IsSeeking {
		position = p.PositionMillis
	}

	*p = state.Playback{
		PositionMillis:     playback.ClampPosition(position, duration),
		DurationMillis:     duration,
		IsPlaying:          st.IsPlaying,
		ShouldPlay:         st.ShouldPlay,
		IsLooping:          st.IsLooping,
		IsSeekable:         st.IsSeekable,
		Volume:             st.Volume,
		Rate:               st.Rate,
		Muted:              st.IsMuted,
		ShouldCorrectPitch: st.ShouldCorrectPitch,
	}
	return true
}
