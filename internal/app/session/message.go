package session

import (
	"context"

	"github.com/osa030/voicememo/internal/app/guard"
	"github.com/osa030/voicememo/internal/app/session/state"
	"github.com/osa030/voicememo/internal/domain/audio"
)

// message is anything the loop goroutine consumes from the inbox.
type message interface{}

type commandMsg struct {
	req   guard.Request
	reply chan commandReply
}

// commandReply carries the guard result and, for accepted commands that
// reach the device, the channel the job reports on.
type commandReply struct {
	result guard.Result
	done   <-chan error
	err    error
}

type recordingStatusMsg struct {
	gen    uint64
	status audio.RecordingStatus
}

type playbackStatusMsg struct {
	gen    uint64
	status audio.PlaybackStatus
}

// applyMsg runs fn on the loop goroutine and closes done once the result
// has been published.
type applyMsg struct {
	fn   func(s *state.Session)
	done chan struct{}
}

type job struct {
	name string
	run  func(ctx context.Context) error
	done chan error
}
