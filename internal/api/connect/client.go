package connect

import (
	"context"
	"strings"

	"connectrpc.com/connect"

	"github.com/osa030/voicememo/internal/app/notification"
)

// Client is a typed client for memo.v1.SessionService.
type Client struct {
	getStatus       *connect.Client[Empty, Status]
	toggleRecord    *connect.Client[Empty, CommandResponse]
	togglePlayPause *connect.Client[Empty, CommandResponse]
	stopPlayback    *connect.Client[Empty, CommandResponse]
	seekBegin       *connect.Client[Empty, CommandResponse]
	seekUpdate      *connect.Client[SeekRequest, CommandResponse]
	seekComplete    *connect.Client[SeekRequest, CommandResponse]
	setVolume       *connect.Client[SetVolumeRequest, CommandResponse]
	setMuted        *connect.Client[SetMutedRequest, CommandResponse]
	setRate         *connect.Client[SetRateRequest, CommandResponse]
	subscribe       *connect.Client[Empty, notification.Notification]
}

// NewClient creates a client for the daemon at baseURL. A non-empty token
// is sent in the control token header.
func NewClient(httpClient connect.HTTPClient, baseURL, token string, opts ...connect.ClientOption) *Client {
	baseURL = strings.TrimRight(baseURL, "/")
	opts = append([]connect.ClientOption{
		WithJSON(),
		connect.WithInterceptors(withControlToken(token)),
	}, opts...)

	return &Client{
		getStatus:       connect.NewClient[Empty, Status](httpClient, baseURL+GetStatusProcedure, opts...),
		toggleRecord:    connect.NewClient[Empty, CommandResponse](httpClient, baseURL+ToggleRecordProcedure, opts...),
		togglePlayPause: connect.NewClient[Empty, CommandResponse](httpClient, baseURL+TogglePlayPauseProcedure, opts...),
		stopPlayback:    connect.NewClient[Empty, CommandResponse](httpClient, baseURL+StopPlaybackProcedure, opts...),
		seekBegin:       connect.NewClient[Empty, CommandResponse](httpClient, baseURL+SeekBeginProcedure, opts...),
		seekUpdate:      connect.NewClient[SeekRequest, CommandResponse](httpClient, baseURL+SeekUpdateProcedure, opts...),
		seekComplete:    connect.NewClient[SeekRequest, CommandResponse](httpClient, baseURL+SeekCompleteProcedure, opts...),
		setVolume:       connect.NewClient[SetVolumeRequest, CommandResponse](httpClient, baseURL+SetVolumeProcedure, opts...),
		setMuted:        connect.NewClient[SetMutedRequest, CommandResponse](httpClient, baseURL+SetMutedProcedure, opts...),
		setRate:         connect.NewClient[SetRateRequest, CommandResponse](httpClient, baseURL+SetRateProcedure, opts...),
		subscribe:       connect.NewClient[Empty, notification.Notification](httpClient, baseURL+SubscribeProcedure, opts...),
	}
}

func unary[Req, Res any](ctx context.Context, c *connect.Client[Req, Res], msg *Req) (*Res, error) {
	resp, err := c.CallUnary(ctx, connect.NewRequest(msg))
	if err != nil {
		return nil, err
	}
	return resp.Msg, nil
}

func (c *Client) GetStatus(ctx context.Context) (*Status, error) {
	return unary(ctx, c.getStatus, &Empty{})
}

func (c *Client) ToggleRecord(ctx context.Context) (*CommandResponse, error) {
	return unary(ctx, c.toggleRecord, &Empty{})
}

func (c *Client) TogglePlayPause(ctx context.Context) (*CommandResponse, error) {
	return unary(ctx, c.togglePlayPause, &Empty{})
}

func (c *Client) StopPlayback(ctx context.Context) (*CommandResponse, error) {
	return unary(ctx, c.stopPlayback, &Empty{})
}

func (c *Client) SeekBegin(ctx context.Context) (*CommandResponse, error) {
	return unary(ctx, c.seekBegin, &Empty{})
}

func (c *Client) SeekUpdate(ctx context.Context, fraction float64) (*CommandResponse, error) {
	return unary(ctx, c.seekUpdate, &SeekRequest{Fraction: fraction})
}

func (c *Client) SeekComplete(ctx context.Context, fraction float64) (*CommandResponse, error) {
	return unary(ctx, c.seekComplete, &SeekRequest{Fraction: fraction})
}

func (c *Client) SetVolume(ctx context.Context, volume float64) (*CommandResponse, error) {
	return unary(ctx, c.setVolume, &SetVolumeRequest{Volume: volume})
}

func (c *Client) SetMuted(ctx context.Context, muted bool) (*CommandResponse, error) {
	return unary(ctx, c.setMuted, &SetMutedRequest{Muted: muted})
}

func (c *Client) SetRate(ctx context.Context, rate float64, correctPitch bool) (*CommandResponse, error) {
	return unary(ctx, c.setRate, &SetRateRequest{Rate: rate, CorrectPitch: correctPitch})
}

// Subscribe calls fn for the initial snapshot and every change until the
// stream ends or fn returns an error.
func (c *Client) Subscribe(ctx context.Context, fn func(*notification.Notification) error) error {
	stream, err := c.subscribe.CallServerStream(ctx, connect.NewRequest(&Empty{}))
	if err != nil {
		return err
	}
	defer stream.Close()

	for stream.Receive() {
		if err := fn(stream.Msg()); err != nil {
			return err
		}
	}
	if err := stream.Err(); err != nil && connect.CodeOf(err) != connect.CodeCanceled {
		return err
	}
	return nil
}
