package session

import (
	"context"
	"fmt"
	"sync"

	"github.com/osa030/voicememo/internal/domain/audio"
)

// fakeDevice is a scripted audio.Device. Status is pushed by the test
// through the handles' send methods.
type fakeDevice struct {
	mu sync.Mutex

	modes      []audio.Mode
	setModeErr error
	prepareErr error
	loadErr    error
	loadOpts   []audio.PlaybackOptions

	// Applied to each recorder as it is prepared.
	startErr     error
	stopDuration int64
	stopErr      error
	stopGate     chan struct{}
	startHook    func(r *fakeRecorder)

	recorders []*fakeRecorder
	sounds    []*fakeSound
}

func newFakeDevice() *fakeDevice {
	return &fakeDevice{stopDuration: 5000}
}

func (d *fakeDevice) SetMode(ctx context.Context, mode audio.Mode) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.setModeErr != nil {
		return d.setModeErr
	}
	d.modes = append(d.modes, mode)
	return nil
}

func (d *fakeDevice) PrepareRecording(ctx context.Context, preset audio.QualityPreset) (audio.RecordingHandle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.prepareErr != nil {
		return nil, d.prepareErr
	}
	r := &fakeRecorder{
		uri:          fmt.Sprintf("memory://recording-%d", len(d.recorders)+1),
		preset:       preset,
		startErr:     d.startErr,
		stopDuration: d.stopDuration,
		stopErr:      d.stopErr,
		stopGate:     d.stopGate,
		stopEntered:  make(chan struct{}),
		startHook:    d.startHook,
	}
	d.recorders = append(d.recorders, r)
	return r, nil
}

func (d *fakeDevice) LoadPlayback(ctx context.Context, rec audio.RecordingHandle, opts audio.PlaybackOptions) (audio.PlaybackHandle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.loadErr != nil {
		return nil, d.loadErr
	}
	d.loadOpts = append(d.loadOpts, opts)
	s := &fakeSound{uri: rec.URI()}
	d.sounds = append(d.sounds, s)
	return s, nil
}

func (d *fakeDevice) recorder(i int) *fakeRecorder {
	d.mu.Lock()
	defer d.mu.Unlock()
	if i >= len(d.recorders) {
		return nil
	}
	return d.recorders[i]
}

func (d *fakeDevice) sound(i int) *fakeSound {
	d.mu.Lock()
	defer d.mu.Unlock()
	if i >= len(d.sounds) {
		return nil
	}
	return d.sounds[i]
}

func (d *fakeDevice) recorderCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.recorders)
}

func (d *fakeDevice) modeHistory() []audio.Mode {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]audio.Mode(nil), d.modes...)
}

func (d *fakeDevice) loadHistory() []audio.PlaybackOptions {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]audio.PlaybackOptions(nil), d.loadOpts...)
}

type fakeRecorder struct {
	mu sync.Mutex

	uri          string
	preset       audio.QualityPreset
	startErr     error
	stopDuration int64
	stopErr      error
	stopGate     chan struct{}
	stopEntered  chan struct{}
	startHook    func(r *fakeRecorder)

	cb        func(audio.RecordingStatus)
	firstCB   func(audio.RecordingStatus)
	stopCalls int
	calls     []string
}

func (r *fakeRecorder) Start(ctx context.Context) error {
	r.mu.Lock()
	r.calls = append(r.calls, "start")
	err := r.startErr
	hook := r.startHook
	r.mu.Unlock()

	if err == nil && hook != nil {
		hook(r)
	}
	return err
}

func (r *fakeRecorder) StopAndRelease(ctx context.Context) (int64, error) {
	r.mu.Lock()
	r.calls = append(r.calls, "stop_and_release")
	r.stopCalls++
	first := r.stopCalls == 1
	gate := r.stopGate
	r.mu.Unlock()

	if first {
		close(r.stopEntered)
	}
	if gate != nil {
		<-gate
	}
	return r.stopDuration, r.stopErr
}

func (r *fakeRecorder) OnStatus(fn func(audio.RecordingStatus)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if fn == nil {
		r.calls = append(r.calls, "detach")
	} else if r.firstCB == nil {
		r.firstCB = fn
	}
	r.cb = fn
}

func (r *fakeRecorder) URI() string { return r.uri }

// send delivers st through the current subscription, if any.
func (r *fakeRecorder) send(st audio.RecordingStatus) {
	r.mu.Lock()
	cb := r.cb
	r.mu.Unlock()
	if cb != nil {
		cb(st)
	}
}

// sendLate delivers st through the original subscription even after it was
// detached, like a callback already in flight.
func (r *fakeRecorder) sendLate(st audio.RecordingStatus) {
	r.mu.Lock()
	cb := r.firstCB
	r.mu.Unlock()
	if cb != nil {
		cb(st)
	}
}

func (r *fakeRecorder) stops() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stopCalls
}

func (r *fakeRecorder) callLog() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

type fakeSound struct {
	mu sync.Mutex

	uri       string
	cb        func(audio.PlaybackStatus)
	firstCB   func(audio.PlaybackStatus)
	calls     []string
	seekTo    []int64
	playFrom  []int64
	volume    float64
	rate      float64
	muted     bool
	released  int
	failCalls error
}

func (s *fakeSound) record(call string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, call)
	return s.failCalls
}

func (s *fakeSound) Play(ctx context.Context) error  { return s.record("play") }
func (s *fakeSound) Pause(ctx context.Context) error { return s.record("pause") }
func (s *fakeSound) Stop(ctx context.Context) error  { return s.record("stop") }

func (s *fakeSound) SeekTo(ctx context.Context, positionMillis int64) error {
	s.mu.Lock()
	s.seekTo = append(s.seekTo, positionMillis)
	s.mu.Unlock()
	return s.record("seek_to")
}

func (s *fakeSound) PlayFrom(ctx context.Context, positionMillis int64) error {
	s.mu.Lock()
	s.playFrom = append(s.playFrom, positionMillis)
	s.mu.Unlock()
	return s.record("play_from")
}

func (s *fakeSound) SetVolume(ctx context.Context, volume float64) error {
	s.mu.Lock()
	s.volume = volume
	s.mu.Unlock()
	return s.record("set_volume")
}

func (s *fakeSound) SetMuted(ctx context.Context, muted bool) error {
	s.mu.Lock()
	s.muted = muted
	s.mu.Unlock()
	return s.record("set_muted")
}

func (s *fakeSound) SetRate(ctx context.Context, rate float64, correctPitch bool) error {
	s.mu.Lock()
	s.rate = rate
	s.mu.Unlock()
	return s.record("set_rate")
}

func (s *fakeSound) OnStatus(fn func(audio.PlaybackStatus)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if fn == nil {
		s.calls = append(s.calls, "detach")
	} else if s.firstCB == nil {
		s.firstCB = fn
	}
	s.cb = fn
}

func (s *fakeSound) Release(ctx context.Context) error {
	s.mu.Lock()
	s.released++
	s.mu.Unlock()
	return s.record("release")
}

func (s *fakeSound) send(st audio.PlaybackStatus) {
	s.mu.Lock()
	cb := s.cb
	s.mu.Unlock()
	if cb != nil {
		cb(st)
	}
}

func (s *fakeSound) callLog() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}

func (s *fakeSound) seeks() ([]int64, []int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int64(nil), s.seekTo...), append([]int64(nil), s.playFrom...)
}

func (s *fakeSound) releases() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.released
}
