package session

import (
	"time"

	"github.com/osa030/voicememo/internal/app/guard"
	"github.com/osa030/voicememo/internal/app/session/state"
)

// Observer receives controller activity for instrumentation.
// Methods are called from the controller's goroutines and must not block.
type Observer interface {
	CommandHandled(cmd guard.Command, result guard.Result)
	// TransitionFinished reports outcome "ok" or the failure kind.
	TransitionFinished(name string, outcome string, elapsed time.Duration)
	StatusReceived(kind state.ResourceKind, dropped bool)
	FailureReported(kind state.FailureKind)
}

type nopObserver struct{}

func (nopObserver) CommandHandled(guard.Command, guard.Result)       {}
func (nopObserver) TransitionFinished(string, string, time.Duration) {}
func (nopObserver) StatusReceived(state.ResourceKind, bool)          {}
func (nopObserver) FailureReported(state.FailureKind)                {}
