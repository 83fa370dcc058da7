package device

import (
	"context"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/voicememo/internal/domain/audio"
)

// sound plays a recording by advancing a position clock.
type sound struct {
	tick time.Duration

	emitMu sync.Mutex // serializes status delivery
	mu     sync.Mutex
	cb     func(audio.PlaybackStatus)
	status audio.PlaybackStatus
	last   time.Time
	// released is set once; the ticker exits on stop.
	released bool
	stop     chan struct{}
	done     chan struct{}
}

func newSound(tick time.Duration, durationMillis int64, opts audio.PlaybackOptions) *sound {
	rate := opts.Rate
	if rate <= 0 {
		rate = 1.0
	}
	s := &sound{
		tick: tick,
		status: audio.PlaybackStatus{
			Loaded:             true,
			DurationMillis:     durationMillis,
			IsPlaying:          opts.ShouldPlay,
			ShouldPlay:         opts.ShouldPlay,
			IsLooping:          opts.IsLooping,
			IsSeekable:         true,
			Rate:               rate,
			IsMuted:            opts.IsMuted,
			Volume:             opts.Volume,
			ShouldCorrectPitch: opts.ShouldCorrectPitch,
		},
		last: time.Now(),
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
	go s.run()
	return s
}

func (s *sound) run() {
	defer close(s.done)

	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case now := <-ticker.C:
			s.advance(now)
		}
	}
}

func (s *sound) advance(now time.Time) {
	s.emitMu.Lock()
	defer s.emitMu.Unlock()

	s.mu.Lock()
	if s.released || !s.status.IsPlaying {
		s.last = now
		s.mu.Unlock()
		return
	}
	delta := float64(now.Sub(s.last).Milliseconds()) * s.status.Rate
	s.last = now
	s.status.PositionMillis += int64(delta)

	if d := s.status.DurationMillis; s.status.PositionMillis >= d {
		if s.status.IsLooping && d > 0 {
			s.status.PositionMillis %= d
		} else {
			s.status.PositionMillis = d
			s.status.IsPlaying = false
			s.status.ShouldPlay = false
			zlog.Debug().Msgf("sound reached end: duration_ms=%d", d)
		}
	}
	st, cb := s.status, s.cb
	s.mu.Unlock()

	if cb != nil {
		cb(st)
	}
}

// update applies fn under the lock and delivers the resulting status.
func (s *sound) update(fn func(st *audio.PlaybackStatus)) error {
	s.emitMu.Lock()
	defer s.emitMu.Unlock()

	s.mu.Lock()
	if s.released {
		s.mu.Unlock()
		return errReleased
	}
	s.last = time.Now()
	fn(&s.status)
	st, cb := s.status, s.cb
	s.mu.Unlock()

	if cb != nil {
		cb(st)
	}
	return nil
}

func (s *sound) clamp(positionMillis int64) int64 {
	if positionMillis < 0 {
		return 0
	}
	if d := s.status.DurationMillis; positionMillis > d {
		return d
	}
	return positionMillis
}

func (s *sound) Play(ctx context.Context) error {
	return s.update(func(st *audio.PlaybackStatus) {
		if st.PositionMillis >= st.DurationMillis {
			st.PositionMillis = 0
		}
		st.IsPlaying = true
		st.ShouldPlay = true
	})
}

func (s *sound) Pause(ctx context.Context) error {
	return s.update(func(st *audio.PlaybackStatus) {
		st.IsPlaying = false
		st.ShouldPlay = false
	})
}

func (s *sound) Stop(ctx context.Context) error {
	return s.update(func(st *audio.PlaybackStatus) {
		st.IsPlaying = false
		st.ShouldPlay = false
		st.PositionMillis = 0
	})
}

func (s *sound) SeekTo(ctx context.Context, positionMillis int64) error {
	return s.update(func(st *audio.PlaybackStatus) {
		st.PositionMillis = s.clamp(positionMillis)
	})
}

func (s *sound) PlayFrom(ctx context.Context, positionMillis int64) error {
	return s.update(func(st *audio.PlaybackStatus) {
		st.PositionMillis = s.clamp(positionMillis)
		st.IsPlaying = true
		st.ShouldPlay = true
	})
}

func (s *sound) SetVolume(ctx context.Context, volume float64) error {
	return s.update(func(st *audio.PlaybackStatus) {
		st.Volume = volume
	})
}

func (s *sound) SetMuted(ctx context.Context, muted bool) error {
	return s.update(func(st *audio.PlaybackStatus) {
		st.IsMuted = muted
	})
}

func (s *sound) SetRate(ctx context.Context, rate float64, correctPitch bool) error {
	return s.update(func(st *audio.PlaybackStatus) {
		st.Rate = rate
		st.ShouldCorrectPitch = correctPitch
	})
}

// OnStatus replaces the callback and delivers the current status to it.
func (s *sound) OnStatus(fn func(audio.PlaybackStatus)) {
	s.emitMu.Lock()
	defer s.emitMu.Unlock()

	s.mu.Lock()
	s.cb = fn
	st := s.status
	s.mu.Unlock()

	if fn != nil {
		fn(st)
	}
}

func (s *sound) Release(ctx context.Context) error {
	s.mu.Lock()
	if s.released {
		s.mu.Unlock()
		return nil
	}
	s.released = true
	s.mu.Unlock()

	close(s.stop)
	select {
	case <-s.done:
	case <-ctx.Done():
		return errors.Wrap(ctx.Err(), "wait for sound")
	}

	s.emitMu.Lock()
	defer s.emitMu.Unlock()
	s.mu.Lock()
	cb := s.cb
	s.cb = nil
	s.mu.Unlock()
	if cb != nil {
		cb(audio.PlaybackStatus{Loaded: false})
	}
	return nil
}
