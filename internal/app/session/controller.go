// Package session provides the recording/playback session controller.
package session

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/voicememo/internal/app/guard"
	"github.com/osa030/voicememo/internal/app/session/state"
	"github.com/osa030/voicememo/internal/domain/audio"
)

// Controller owns the session state and the single active audio resource.
//
// All state lives on one loop goroutine that consumes the inbox. Device calls
// run sequentially on a worker goroutine; transitions running there mutate
// state only through apply, so device status keeps flowing while they wait.
type Controller struct {
	device   audio.Device
	cfg      Config
	guards   *guard.Chain
	observer Observer

	inbox  chan message
	jobs   chan job
	events chan Event

	snapshot atomic.Pointer[state.Snapshot]
	gen      atomic.Uint64
	closing  atomic.Bool

	// Loop-owned.
	s                 *state.Session
	transitionPrior   state.Resource
	pendingDeviceStop uint64
	afterPublish      []func()
	violations        atomic.Int64

	ctx        context.Context
	cancel     context.CancelFunc
	loopDone   chan struct{}
	workerDone chan struct{}
	closeOnce  sync.Once
}

// NewController creates a controller and starts its goroutines.
func NewController(device audio.Device, cfg Config, opts ...Option) (*Controller, error) {
	if device == nil {
		return nil, errors.New("audio device is required")
	}
	if err := cfg.validate(); err != nil {
		return nil, errors.Wrap(err, "invalid session config")
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &Controller{
		device:     device,
		cfg:        cfg,
		guards:     guard.DefaultChain(),
		observer:   nopObserver{},
		inbox:      make(chan message, cfg.QueueSize),
		jobs:       make(chan job, cfg.QueueSize),
		events:     make(chan Event, cfg.EventBuffer),
		s:          state.New(cfg.Prefs),
		ctx:        ctx,
		cancel:     cancel,
		loopDone:   make(chan struct{}),
		workerDone: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}

	snap := c.s.Snapshot()
	c.snapshot.Store(&snap)

	go c.loop()
	go c.worker()

	zlog.Info().Msgf("session controller started: preset=%s looping=%t", cfg.Preset, cfg.Looping)
	return c, nil
}

// Snapshot returns the latest published state.
func (c *Controller) Snapshot() state.Snapshot {
	return *c.snapshot.Load()
}

// Events returns the event channel. Events are dropped when the buffer is
// full; Snapshot always returns the latest state.
func (c *Controller) Events() <-chan Event {
	return c.events
}

// Done is closed when the controller has stopped.
func (c *Controller) Done() <-chan struct{} {
	return c.loopDone
}

// Close releases the active resource and stops the controller.
func (c *Controller) Close(ctx context.Context) error {
	var err error
	c.closeOnce.Do(func() {
		c.closing.Store(true)
		zlog.Info().Msg("closing session controller")

		done := make(chan error, 1)
		select {
		case c.jobs <- job{name: "shutdown", run: c.shutdown, done: done}:
			select {
			case err = <-done:
			case <-ctx.Done():
				err = ctx.Err()
			}
		case <-ctx.Done():
			err = ctx.Err()
		}

		c.cancel()
		<-c.loopDone
		<-c.workerDone
		zlog.Info().Msg("session controller closed")
	})
	return err
}

func (c *Controller) shutdown(ctx context.Context) error {
	var active state.Resource
	c.apply(func(s *state.Session) {
		active = s.Active
		s.ClearPlayback()
		s.ClearRecording()
		s.Active = nil
		s.Mode = state.ModeIdle
		s.IsLoading = false
	})
	if active != nil {
		zlog.Info().Msgf("releasing active resource on shutdown: resource=%s", active.Kind())
	}
	c.discard(ctx, active)
	return nil
}

func (c *Controller) loop() {
	defer close(c.loopDone)

	for {
		select {
		case <-c.ctx.Done():
			return
		case msg := <-c.inbox:
			c.dispatch(msg)
		}
	}
}

func (c *Controller) dispatch(msg message) {
	prevErr := c.s.LastError

	var (
		changed bool
		typ     = EventStateChanged
	)
	switch m := msg.(type) {
	case commandMsg:
		changed = c.handleCommand(m)
	case recordingStatusMsg:
		changed = c.onRecordingStatus(m)
		typ = EventStatusUpdated
	case playbackStatusMsg:
		changed = c.onPlaybackStatus(m)
		typ = EventStatusUpdated
	case applyMsg:
		m.fn(c.s)
		changed = true
		c.afterPublish = append(c.afterPublish, func() { close(m.done) })
	}

	if c.checkDeviceStop() {
		changed = true
	}

	if c.s.LastError != prevErr {
		typ = EventFailure
	}
	if changed {
		c.publish(typ)
	}

	for _, fn := range c.afterPublish {
		fn()
	}
	c.afterPublish = c.afterPublish[:0]
}

func (c *Controller) publish(typ EventType) {
	c.s.Version++
	if err := c.s.CheckInvariants(); err != nil {
		c.violations.Add(1)
		zlog.Error().Msgf("session invariant violated: version=%d error=%v", c.s.Version, err)
	}

	snap := c.s.Snapshot()
	c.snapshot.Store(&snap)

	select {
	case c.events <- Event{Type: typ, Snapshot: snap}:
	default:
		zlog.Debug().Msgf("event dropped: type=%s version=%d", typ, snap.Version)
	}
}

// post delivers a message from a device callback.
func (c *Controller) post(msg message) {
	select {
	case c.inbox <- msg:
	case <-c.ctx.Done():
	}
}

// apply runs fn on the loop goroutine and waits until its result is published.
func (c *Controller) apply(fn func(s *state.Session)) {
	done := make(chan struct{})
	select {
	case c.inbox <- applyMsg{fn: fn, done: done}:
	case <-c.loopDone:
		return
	}
	select {
	case <-done:
	case <-c.loopDone:
	}
}

func (c *Controller) worker() {
	defer close(c.workerDone)

	for {
		select {
		case <-c.ctx.Done():
			return
		case j := <-c.jobs:
			err := j.run(c.ctx)
			if j.done != nil {
				j.done <- err
			}
		}
	}
}

// enqueue hands a job to the worker without blocking the loop.
func (c *Controller) enqueue(j job) bool {
	select {
	case c.jobs <- j:
		return true
	default:
		zlog.Warn().Msgf("device queue full: job=%s", j.name)
		return false
	}
}

// enqueueCleanup queues a release job, waiting for room if necessary.
func (c *Controller) enqueueCleanup(j job) {
	if c.enqueue(j) {
		return
	}
	go func() {
		select {
		case c.jobs <- j:
		case <-c.ctx.Done():
		}
	}()
}

// discard detaches and releases r.
func (c *Controller) discard(ctx context.Context, r state.Resource) {
	switch res := r.(type) {
	case state.RecordingResource:
		res.Handle.OnStatus(nil)
		if _, err := res.Handle.StopAndRelease(ctx); err != nil && !errors.Is(err, audio.ErrNoData) {
			zlog.Warn().Msgf("failed to release recording: uri=%s error=%v", res.Handle.URI(), err)
		}
	case state.PlaybackResource:
		res.Handle.OnStatus(nil)
		if err := res.Handle.Release(ctx); err != nil {
			zlog.Warn().Msgf("failed to release playback: error=%v", err)
		}
	}
}

func (c *Controller) recordingCallback(gen uint64) func(audio.RecordingStatus) {
	return func(st audio.RecordingStatus) {
		c.post(recordingStatusMsg{gen: gen, status: st})
	}
}

func (c *Controller) playbackCallback(gen uint64) func(audio.PlaybackStatus) {
	return func(st audio.PlaybackStatus) {
		c.post(playbackStatusMsg{gen: gen, status: st})
	}
}
