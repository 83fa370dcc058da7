package device

import (
	"context"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/voicememo/internal/domain/audio"
)

// recorder captures wall-clock time instead of samples.
type recorder struct {
	dev *Simulated
	uri string

	emitMu sync.Mutex // serializes status delivery
	mu     sync.Mutex
	cb     func(audio.RecordingStatus)

	started  time.Time
	finished int64 // duration at which max_duration_ms stopped capture, 0 if not yet
	stop     chan struct{}
	done     chan struct{}
	released bool
}

func (r *recorder) URI() string {
	return r.uri
}

func (r *recorder) OnStatus(fn func(audio.RecordingStatus)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cb = fn
}

func (r *recorder) Start(ctx context.Context) error {
	if r.dev.cfg.FailStart {
		return errors.Wrap(errInjected, "start recording")
	}
	if !r.dev.allowsRecording() {
		return errModeForbidden
	}

	r.mu.Lock()
	if r.released {
		r.mu.Unlock()
		return errReleased
	}
	if r.stop != nil {
		r.mu.Unlock()
		return errors.New("recorder already started")
	}
	r.started = time.Now()
	r.stop = make(chan struct{})
	r.done = make(chan struct{})
	stop, done := r.stop, r.done
	r.mu.Unlock()

	zlog.Debug().Msgf("recorder started: uri=%s", r.uri)
	go r.run(stop, done)
	return nil
}

func (r *recorder) run(stop, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(r.dev.cfg.tick())
	defer ticker.Stop()

	r.emit(audio.RecordingStatus{CanRecord: true, IsRecording: true})
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
		}

		r.mu.Lock()
		elapsed := time.Since(r.started).Milliseconds()
		limit := r.dev.cfg.MaxDurationMs
		reached := limit > 0 && elapsed >= limit
		if reached {
			r.finished = limit
		}
		r.mu.Unlock()

		if reached {
			zlog.Info().Msgf("recorder reached max duration: uri=%s duration_ms=%d", r.uri, limit)
			r.emit(audio.RecordingStatus{IsDoneRecording: true, DurationMillis: limit})
			return
		}
		r.emit(audio.RecordingStatus{CanRecord: true, IsRecording: true, DurationMillis: elapsed})
	}
}

func (r *recorder) emit(st audio.RecordingStatus) {
	r.emitMu.Lock()
	defer r.emitMu.Unlock()

	r.mu.Lock()
	cb := r.cb
	r.mu.Unlock()
	if cb != nil {
		cb(st)
	}
}

func (r *recorder) StopAndRelease(ctx context.Context) (int64, error) {
	r.mu.Lock()
	if r.released {
		r.mu.Unlock()
		return 0, errReleased
	}
	r.released = true
	stop, done := r.stop, r.done
	r.mu.Unlock()

	if stop == nil {
		return 0, errors.Mark(errors.New("recorder was never started"), audio.ErrNoData)
	}
	close(stop)
	select {
	case <-done:
	case <-ctx.Done():
		return 0, errors.Wrap(ctx.Err(), "wait for recorder")
	}

	r.mu.Lock()
	duration := r.finished
	if duration == 0 {
		duration = time.Since(r.started).Milliseconds()
	}
	r.mu.Unlock()

	if duration < r.dev.cfg.MinDataMs {
		return 0, errors.Wrapf(audio.ErrNoData, "captured %dms, need %dms", duration, r.dev.cfg.MinDataMs)
	}
	r.dev.store(r.uri, duration)
	zlog.Debug().Msgf("recorder released: uri=%s duration_ms=%d", r.uri, duration)
	return duration, nil
}
