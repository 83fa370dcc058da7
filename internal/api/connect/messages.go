package connect

import (
	"github.com/osa030/voicememo/internal/app/guard"
	"github.com/osa030/voicememo/internal/app/session/state"
)

// ServiceName is the fully qualified name of the session service.
const ServiceName = "memo.v1.SessionService"

// Procedure paths.
const (
	GetStatusProcedure       = "/" + ServiceName + "/GetStatus"
	ToggleRecordProcedure    = "/" + ServiceName + "/ToggleRecord"
	TogglePlayPauseProcedure = "/" + ServiceName + "/TogglePlayPause"
	StopPlaybackProcedure    = "/" + ServiceName + "/StopPlayback"
	SeekBeginProcedure       = "/" + ServiceName + "/SeekBegin"
	SeekUpdateProcedure      = "/" + ServiceName + "/SeekUpdate"
	SeekCompleteProcedure    = "/" + ServiceName + "/SeekComplete"
	SetVolumeProcedure       = "/" + ServiceName + "/SetVolume"
	SetMutedProcedure        = "/" + ServiceName + "/SetMuted"
	SetRateProcedure         = "/" + ServiceName + "/SetRate"
	SubscribeProcedure       = "/" + ServiceName + "/Subscribe"
)

// Empty is used by procedures without parameters.
type Empty struct{}

// Status is the snapshot together with the values a client renders.
type Status struct {
	SessionID          string         `json:"session_id"`
	Snapshot           state.Snapshot `json:"snapshot"`
	CanRecord          bool           `json:"can_record"`
	PlaybackAllowed    bool           `json:"playback_allowed"`
	PlaybackState      string         `json:"playback_state"`
	SliderFraction     float64        `json:"slider_fraction"`
	PlaybackTimestamp  string         `json:"playback_timestamp"`
	RecordingTimestamp string         `json:"recording_timestamp"`
	PermissionGranted  bool           `json:"permission_granted"`
}

// SeekRequest carries a slider fraction in [0,1].
type SeekRequest struct {
	Fraction float64 `json:"fraction"`
}

type SetVolumeRequest struct {
	Volume float64 `json:"volume"`
}

type SetMutedRequest struct {
	Muted bool `json:"muted"`
}

type SetRateRequest struct {
	Rate         float64 `json:"rate"`
	CorrectPitch bool    `json:"correct_pitch"`
}

// CommandResponse reports whether a command was accepted. Code is a guard
// rejection code, or a warning kind for accepted commands that completed
// with an expected condition.
type CommandResponse struct {
	Accepted bool   `json:"accepted"`
	Code     string `json:"code,omitempty"`
	Status   Status `json:"status"`
}

func newStatus(sessionID string, snap state.Snapshot, permitted bool) Status {
	return Status{
		SessionID:          sessionID,
		Snapshot:           snap,
		CanRecord:          snap.CanRecord() && permitted,
		PlaybackAllowed:    snap.PlaybackAllowed(),
		PlaybackState:      snap.PlaybackState().String(),
		SliderFraction:     snap.SliderFraction(),
		PlaybackTimestamp:  snap.PlaybackTimestamp(),
		RecordingTimestamp: snap.RecordingTimestamp(),
		PermissionGranted:  permitted,
	}
}

func newCommandResponse(result guard.Result, status Status) *CommandResponse {
	return &CommandResponse{Accepted: result.Accepted, Code: result.Code, Status: status}
}
