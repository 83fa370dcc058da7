package connect

import (
	"context"
	"net/http"

	"connectrpc.com/connect"
	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/voicememo/internal/app/guard"
	"github.com/osa030/voicememo/internal/app/notification"
	"github.com/osa030/voicememo/internal/app/session"
	"github.com/osa030/voicememo/internal/app/session/state"
)

// Controller is the part of session.Controller the service drives.
type Controller interface {
	Snapshot() state.Snapshot
	Done() <-chan struct{}
	ToggleRecord(ctx context.Context) (guard.Result, error)
	TogglePlayPause(ctx context.Context) (guard.Result, error)
	StopPlayback(ctx context.Context) (guard.Result, error)
	SeekBegin(ctx context.Context) (guard.Result, error)
	SeekUpdate(ctx context.Context, fraction float64) (guard.Result, error)
	SeekComplete(ctx context.Context, fraction float64) (guard.Result, error)
	SetVolume(ctx context.Context, volume float64) (guard.Result, error)
	SetMuted(ctx context.Context, muted bool) (guard.Result, error)
	SetRate(ctx context.Context, rate float64, correctPitch bool) (guard.Result, error)
}

var _ Controller = (*session.Controller)(nil)

// SessionService implements memo.v1.SessionService.
type SessionService struct {
	ctrl      Controller
	notif     *notification.Manager
	sessionID string
	permitted bool
}

// NewSessionService creates a new SessionService. permitted is the outcome
// of the daemon's recording permission check.
func NewSessionService(ctrl Controller, notif *notification.Manager, sessionID string, permitted bool) *SessionService {
	return &SessionService{
		ctrl:      ctrl,
		notif:     notif,
		sessionID: sessionID,
		permitted: permitted,
	}
}

// NewHandler builds the HTTP handler serving every procedure of the
// service. It returns the path prefix to mount it on.
func NewHandler(svc *SessionService, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = append([]connect.HandlerOption{WithJSON()}, opts...)

	mux := http.NewServeMux()
	mux.Handle(GetStatusProcedure, connect.NewUnaryHandler(GetStatusProcedure, svc.GetStatus, opts...))
	mux.Handle(ToggleRecordProcedure, connect.NewUnaryHandler(ToggleRecordProcedure, svc.ToggleRecord, opts...))
	mux.Handle(TogglePlayPauseProcedure, connect.NewUnaryHandler(TogglePlayPauseProcedure, svc.TogglePlayPause, opts...))
	mux.Handle(StopPlaybackProcedure, connect.NewUnaryHandler(StopPlaybackProcedure, svc.StopPlayback, opts...))
	mux.Handle(SeekBeginProcedure, connect.NewUnaryHandler(SeekBeginProcedure, svc.SeekBegin, opts...))
	mux.Handle(SeekUpdateProcedure, connect.NewUnaryHandler(SeekUpdateProcedure, svc.SeekUpdate, opts...))
	mux.Handle(SeekCompleteProcedure, connect.NewUnaryHandler(SeekCompleteProcedure, svc.SeekComplete, opts...))
	mux.Handle(SetVolumeProcedure, connect.NewUnaryHandler(SetVolumeProcedure, svc.SetVolume, opts...))
	mux.Handle(SetMutedProcedure, connect.NewUnaryHandler(SetMutedProcedure, svc.SetMuted, opts...))
	mux.Handle(SetRateProcedure, connect.NewUnaryHandler(SetRateProcedure, svc.SetRate, opts...))
	mux.Handle(SubscribeProcedure, connect.NewServerStreamHandler(SubscribeProcedure, svc.Subscribe, opts...))
	return "/" + ServiceName + "/", mux
}

func (s *SessionService) status() Status {
	return newStatus(s.sessionID, s.ctrl.Snapshot(), s.permitted)
}

// GetStatus returns the current session status.
func (s *SessionService) GetStatus(
	ctx context.Context,
	req *connect.Request[Empty],
) (*connect.Response[Status], error) {
	status := s.status()
	return connect.NewResponse(&status), nil
}

// ToggleRecord starts or stops a recording.
func (s *SessionService) ToggleRecord(
	ctx context.Context,
	req *connect.Request[Empty],
) (*connect.Response[CommandResponse], error) {
	if !s.permitted {
		return nil, connect.NewError(connect.CodePermissionDenied, session.ErrPermissionDenied)
	}
	return s.command(ctx, s.ctrl.ToggleRecord)
}

func (s *SessionService) TogglePlayPause(
	ctx context.Context,
	req *connect.Request[Empty],
) (*connect.Response[CommandResponse], error) {
	return s.command(ctx, s.ctrl.TogglePlayPause)
}

func (s *SessionService) StopPlayback(
	ctx context.Context,
	req *connect.Request[Empty],
) (*connect.Response[CommandResponse], error) {
	return s.command(ctx, s.ctrl.StopPlayback)
}

func (s *SessionService) SeekBegin(
	ctx context.Context,
	req *connect.Request[Empty],
) (*connect.Response[CommandResponse], error) {
	return s.command(ctx, s.ctrl.SeekBegin)
}

func (s *SessionService) SeekUpdate(
	ctx context.Context,
	req *connect.Request[SeekRequest],
) (*connect.Response[CommandResponse], error) {
	return s.command(ctx, func(ctx context.Context) (guard.Result, error) {
		return s.ctrl.SeekUpdate(ctx, req.Msg.Fraction)
	})
}

func (s *SessionService) SeekComplete(
	ctx context.Context,
	req *connect.Request[SeekRequest],
) (*connect.Response[CommandResponse], error) {
	return s.command(ctx, func(ctx context.Context) (guard.Result, error) {
		return s.ctrl.SeekComplete(ctx, req.Msg.Fraction)
	})
}

func (s *SessionService) SetVolume(
	ctx context.Context,
	req *connect.Request[SetVolumeRequest],
) (*connect.Response[CommandResponse], error) {
	return s.command(ctx, func(ctx context.Context) (guard.Result, error) {
		return s.ctrl.SetVolume(ctx, req.Msg.Volume)
	})
}

func (s *SessionService) SetMuted(
	ctx context.Context,
	req *connect.Request[SetMutedRequest],
) (*connect.Response[CommandResponse], error) {
	return s.command(ctx, func(ctx context.Context) (guard.Result, error) {
		return s.ctrl.SetMuted(ctx, req.Msg.Muted)
	})
}

func (s *SessionService) SetRate(
	ctx context.Context,
	req *connect.Request[SetRateRequest],
) (*connect.Response[CommandResponse], error) {
	return s.command(ctx, func(ctx context.Context) (guard.Result, error) {
		return s.ctrl.SetRate(ctx, req.Msg.Rate, req.Msg.CorrectPitch)
	})
}

// Subscribe streams the current snapshot followed by every change.
func (s *SessionService) Subscribe(
	ctx context.Context,
	req *connect.Request[Empty],
	stream *connect.ServerStream[notification.Notification],
) error {
	initial := &notification.Notification{
		Type:       "initial_state",
		SequenceNo: s.notif.NextSequenceNo(),
		Snapshot:   s.ctrl.Snapshot(),
	}
	if err := stream.Send(initial); err != nil {
		return err
	}

	adapter := &notificationStreamAdapter{stream: stream}
	subscriptionID := s.notif.Subscribe(adapter)
	defer s.notif.Unsubscribe(subscriptionID)

	select {
	case <-ctx.Done():
	case <-s.ctrl.Done():
	}
	return nil
}

// command runs a controller command and converts its outcome. An expected
// condition such as an empty recording is an accepted command whose code
// names the warning.
func (s *SessionService) command(
	ctx context.Context,
	call func(ctx context.Context) (guard.Result, error),
) (*connect.Response[CommandResponse], error) {
	result, err := call(ctx)
	if err != nil {
		if !session.IsWarning(err) {
			return nil, toConnectError(err)
		}
		result.Code = string(session.KindOf(err))
	}
	return connect.NewResponse(newCommandResponse(result, s.status())), nil
}

func toConnectError(err error) *connect.Error {
	code := connect.CodeInternal
	switch {
	case errors.Is(err, context.Canceled):
		code = connect.CodeCanceled
	case errors.Is(err, context.DeadlineExceeded):
		code = connect.CodeDeadlineExceeded
	case errors.Is(err, session.ErrClosed):
		code = connect.CodeUnavailable
	default:
		switch session.KindOf(err) {
		case state.FailurePermissionDenied:
			code = connect.CodePermissionDenied
		case state.FailureDeviceUnavailable:
			code = connect.CodeUnavailable
		case state.FailurePlaybackLoad:
			code = connect.CodeFailedPrecondition
		}
	}
	if code == connect.CodeInternal {
		zlog.Error().Msgf("command failed: error=%v", err)
	}
	return connect.NewError(code, err)
}

// notificationStreamAdapter adapts connect.ServerStream to notification.Stream.
type notificationStreamAdapter struct {
	stream *connect.ServerStream[notification.Notification]
}

func (a *notificationStreamAdapter) Send(n *notification.Notification) error {
	return a.stream.Send(n)
}
